//go:build !windows
// +build !windows

package raspberry

import (
	"fmt"

	"github.com/warthog618/gpio"
	"github.com/warthog618/gpiod"

	"inftrace/pkg/port"
)

// Open opens the gpio backend selected by driver.
// The chardev backend talks to /dev/gpiochipN through the character device
// interface, the memmap backend maps the rpi gpio registers from
// /dev/gpiomem and ignores the bank parameter (lines are BCM numbers).
func Open(driver string) (GPIO, error) {
	switch driver {
	case DriverChardev:
		return &chardevGPIO{chips: map[int]*gpiod.Chip{}}, nil
	case DriverMemmap:
		if err := gpio.Open(); err != nil {
			return nil, err
		}
		return &memmapGPIO{pins: map[int]*memmapPin{}}, nil
	case DriverEmulated:
		return openEmulated(), nil
	}
	return nil, ErrInvalidParam
}

// chardevGPIO hands out lines through the gpio character device.
// Chips are opened lazily per bank and shared between lines.
type chardevGPIO struct {
	chips map[int]*gpiod.Chip
}

type chardevPin struct {
	chip *gpiod.Chip
	line int

	gpiodLine *gpiod.Line
}

func (g *chardevGPIO) OutputPin(bank, line int) (Pin, error) {
	chip, ok := g.chips[bank]
	if !ok {
		c, err := gpiod.NewChip(fmt.Sprintf("gpiochip%d", bank))
		if err != nil {
			return nil, err
		}
		g.chips[bank] = c
		chip = c
	}

	return &chardevPin{chip: chip, line: line}, nil
}

func (g *chardevGPIO) Close() error {
	var err error
	for _, c := range g.chips {
		if e := c.Close(); e != nil {
			err = e
		}
	}
	return err
}

// Configure requests the line as an output driven low.
func (p *chardevPin) Configure() error {
	l, err := p.chip.RequestLine(p.line, gpiod.AsOutput(0))
	if err != nil {
		return &port.HardwareConfigError{Pin: p.line, Stage: port.StageRequest, Err: err}
	}
	p.gpiodLine = l
	return nil
}

func (p *chardevPin) SetLevel(l port.Level) error {
	if p.gpiodLine == nil {
		return &port.HardwareConfigError{Pin: p.line, Stage: port.StageSetLevel, Err: fmt.Errorf("line not requested")}
	}
	if err := p.gpiodLine.SetValue(int(l)); err != nil {
		return &port.HardwareConfigError{Pin: p.line, Stage: port.StageSetLevel, Err: err}
	}
	return nil
}

func (p *chardevPin) Pin() int {
	return p.line
}

func (p *chardevPin) Close() error {
	if p.gpiodLine == nil {
		return nil
	}
	return p.gpiodLine.Close()
}

// memmapGPIO hands out lines through the memory mapped rpi registers.
type memmapGPIO struct {
	pins map[int]*memmapPin
}

type memmapPin struct {
	gpioPin *gpio.Pin
	line    int
}

// OutputPin creates a new pin object.
// The line number provided is the BCM GPIO number; bank is ignored.
func (g *memmapGPIO) OutputPin(bank, line int) (Pin, error) {
	if _, ok := g.pins[line]; ok {
		return nil, fmt.Errorf("pin %v already used", line)
	}

	p := &memmapPin{gpioPin: gpio.NewPin(line), line: line}
	g.pins[line] = p
	return p, nil
}

// Close unmaps the GPIO memory.
func (g *memmapGPIO) Close() error {
	return gpio.Close()
}

// Configure sets the pin as output and drives it low.
// The memory mapped register interface cannot fail per operation.
func (p *memmapPin) Configure() error {
	p.gpioPin.Output()
	p.gpioPin.Low()
	return nil
}

func (p *memmapPin) SetLevel(l port.Level) error {
	switch l {
	case port.High:
		p.gpioPin.High()
	case port.Low:
		p.gpioPin.Low()
	default:
		return &port.HardwareConfigError{Pin: p.line, Stage: port.StageSetLevel, Err: ErrInvalidParam}
	}
	return nil
}

func (p *memmapPin) Pin() int {
	return p.line
}

func (p *memmapPin) Close() error {
	return nil
}
