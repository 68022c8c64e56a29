package plugins

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// CE pin backends
const (
	CEBackendGPIOCDev = "gpiocdev"
	CEBackendPeriph   = "periph"
)

// CEPin drives the nRF24 chip enable line. It satisfies nrf24.Pin.
type CEPin interface {
	Out(l gpio.Level) error
	Close() error
	Info() string
}

// CELine drives CE through the GPIO character device.
type CELine struct {
	chip     *gpiocdev.Chip
	line     *gpiocdev.Line
	chipPath string
	offset   int
}

// NewCELine requests offset on chipPath as an output, initially low.
func NewCELine(chipPath string, offset int) (*CELine, error) {
	chip, err := gpiocdev.NewChip(chipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chipPath, err)
	}

	line, err := chip.RequestLine(
		offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("nrf24-ce"),
	)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("failed to request CE line %d: %w", offset, err)
	}

	return &CELine{
		chip:     chip,
		line:     line,
		chipPath: chipPath,
		offset:   offset,
	}, nil
}

// Out sets the CE level.
func (g *CELine) Out(l gpio.Level) error {
	if g.line == nil {
		return fmt.Errorf("CE line not initialized")
	}

	value := 0
	if l {
		value = 1
	}
	if err := g.line.SetValue(value); err != nil {
		return fmt.Errorf("failed to set CE line to %v: %w", l, err)
	}
	return nil
}

// Close drives CE low and releases the line and chip.
func (g *CELine) Close() error {
	var errs []error

	if g.line != nil {
		if err := g.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("failed to lower CE line: %w", err))
		}
		if err := g.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close CE line: %w", err))
		}
		g.line = nil
	}

	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close GPIO chip: %w", err))
		}
		g.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing GPIO: %v", errs)
	}
	return nil
}

// Info describes the line for status responses.
func (g *CELine) Info() string {
	if g.chip == nil {
		return fmt.Sprintf("%s line %d (closed)", g.chipPath, g.offset)
	}
	return fmt.Sprintf("%s (%s, %s) line %d", g.chipPath, g.chip.Name, g.chip.Label, g.offset)
}

// PeriphCE drives CE through a periph.io pin, looked up by name
// ("GPIO25", "P1_22").
type PeriphCE struct {
	pin  gpio.PinIO
	name string
}

// NewPeriphCE looks the pin up and drives it low.
func NewPeriphCE(name string) (*PeriphCE, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io: %w", err)
	}

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("GPIO pin %s not found", name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("failed to set %s as output: %w", name, err)
	}

	return &PeriphCE{pin: pin, name: name}, nil
}

// Out sets the CE level.
func (p *PeriphCE) Out(l gpio.Level) error {
	return p.pin.Out(l)
}

// Close drives CE low. periph.io pins need no release.
func (p *PeriphCE) Close() error {
	return p.pin.Out(gpio.Low)
}

// Info describes the pin for status responses.
func (p *PeriphCE) Info() string {
	return fmt.Sprintf("%s (%s)", p.name, p.pin)
}

// ValidateGPIOChip checks that the GPIO chip exists and is accessible.
func ValidateGPIOChip(chipPath string) error {
	chip, err := gpiocdev.NewChip(chipPath)
	if err != nil {
		return fmt.Errorf("cannot access GPIO chip %s: %w", chipPath, err)
	}
	defer chip.Close()

	if chip.Name == "" {
		return fmt.Errorf("GPIO chip %s has invalid name", chipPath)
	}
	return nil
}

// ValidateGPIOLine checks that offset exists on the chip and is not held
// by another consumer.
func ValidateGPIOLine(chipPath string, offset int) error {
	if offset < 0 {
		return fmt.Errorf("invalid line %d: must be non-negative", offset)
	}

	chip, err := gpiocdev.NewChip(chipPath)
	if err != nil {
		return fmt.Errorf("cannot access GPIO chip %s: %w", chipPath, err)
	}
	defer chip.Close()

	info, err := chip.LineInfo(offset)
	if err != nil {
		return fmt.Errorf("invalid line %d for chip %s: %w", offset, chipPath, err)
	}
	if info.Used {
		return fmt.Errorf("line %d on %s is in use by %q", offset, chipPath, info.Consumer)
	}
	return nil
}
