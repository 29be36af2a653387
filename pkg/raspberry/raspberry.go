// Package raspberry drives the gpio output lines used for timing signals
package raspberry

import (
	"fmt"

	"inftrace/pkg/port"
)

const (
	// DriverChardev selects the gpio character device backend (gpiod).
	DriverChardev = "chardev"
	// DriverMemmap selects the memory mapped rpi backend (/dev/gpiomem).
	DriverMemmap = "memmap"
	// DriverEmulated selects the in-memory backend for off-device runs.
	DriverEmulated = "emulated"
)

var ErrInvalidParam = fmt.Errorf("invalid parameters")

// Pin is a single requested output line.
// Pin satisfies port.Output; Configure requests the line from the driver and
// drives it low, SetLevel changes the physical level.
type Pin interface {
	port.Output

	// Pin returns the line number this Pin represents.
	Pin() int

	// Close releases all resources held by the requested line.
	Close() error
}

// GPIO is a gpio backend that hands out output lines.
type GPIO interface {
	// OutputPin requests control of a single output line.
	// bank selects the gpio bank (chip) for backends that have more than
	// one; line is the offset within the bank.
	OutputPin(bank, line int) (Pin, error)

	// Close releases the backend.
	// It does not release any lines which may be requested - they must be
	// closed independently.
	Close() error
}
