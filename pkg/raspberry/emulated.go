package raspberry

import (
	"fmt"
	"sync"

	"inftrace/pkg/port"
)

// EmulatedGPIO keeps line states in memory.
// It backs the emulated driver so the harness can run off-device and is what
// the windows build uses for every driver name.
type EmulatedGPIO struct {
	mu   sync.Mutex
	pins map[[2]int]*EmulatedPin
}

// EmulatedPin is an in-memory output line.
type EmulatedPin struct {
	gpio *EmulatedGPIO

	bank, line int
	configured bool
	level      port.Level
}

func openEmulated() *EmulatedGPIO {
	return &EmulatedGPIO{pins: map[[2]int]*EmulatedPin{}}
}

func (g *EmulatedGPIO) OutputPin(bank, line int) (Pin, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := [2]int{bank, line}
	if _, ok := g.pins[key]; ok {
		return nil, fmt.Errorf("pin %v/%v already used", bank, line)
	}

	p := &EmulatedPin{gpio: g, bank: bank, line: line}
	g.pins[key] = p
	return p, nil
}

func (g *EmulatedGPIO) Close() error {
	return nil
}

func (p *EmulatedPin) Configure() error {
	p.configured = true
	p.level = port.Low
	return nil
}

func (p *EmulatedPin) SetLevel(l port.Level) error {
	if !p.configured {
		return &port.HardwareConfigError{Pin: p.line, Stage: port.StageSetLevel, Err: fmt.Errorf("line not requested")}
	}
	p.level = l
	return nil
}

// Level reports the emulated line state.
func (p *EmulatedPin) Level() port.Level {
	return p.level
}

func (p *EmulatedPin) Pin() int {
	return p.line
}

func (p *EmulatedPin) Close() error {
	p.gpio.mu.Lock()
	defer p.gpio.mu.Unlock()
	delete(p.gpio.pins, [2]int{p.bank, p.line})
	return nil
}
