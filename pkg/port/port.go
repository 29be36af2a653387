// Package port holds the definition of a physical output port
package port

import (
	"fmt"
	"time"
)

// Level is the logical state of a digital output line.
type Level int

const (
	// Low indicates the inactive (deasserted) state.
	Low Level = 0
	// High indicates the active (asserted) state.
	High Level = 1
)

func (l Level) String() string {
	switch l {
	case Low:
		return "low"
	case High:
		return "high"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ConfigStage identifies the configuration step that failed while setting
// up an output line.
type ConfigStage int

const (
	_ ConfigStage = iota
	// StageRequest is the initial request/initialize step of a line.
	StageRequest
	// StagePower is the power-up step of a line.
	StagePower
	// StageDirection is the set-direction-to-output step of a line.
	StageDirection
	// StageSetLevel is a set-output-value step of a line.
	StageSetLevel
)

func (s ConfigStage) String() string {
	switch s {
	case StageRequest:
		return "request"
	case StagePower:
		return "power"
	case StageDirection:
		return "direction"
	case StageSetLevel:
		return "setlevel"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// HardwareConfigError reports a failed configuration step of an output line.
type HardwareConfigError struct {
	// Pin is the line number the failure occurred on.
	Pin int
	// Stage is the configuration step that failed.
	Stage ConfigStage
	// Err is the underlying driver error.
	Err error
}

func (e *HardwareConfigError) Error() string {
	return fmt.Sprintf("pin %d: %s failed: %v", e.Pin, e.Stage, e.Err)
}

func (e *HardwareConfigError) Unwrap() error {
	return e.Err
}

// Output is a single digital output line.
// Configure must be called once before SetLevel; configuration failures are
// reported as *HardwareConfigError.
type Output interface {
	Configure() error
	SetLevel(l Level) error
}

// WaitFunc blocks the caller for the given duration.
// Production code uses Sleep, tests inject a recorder.
type WaitFunc func(d time.Duration)

// Sleep is the default WaitFunc.
func Sleep(d time.Duration) {
	time.Sleep(d)
}
