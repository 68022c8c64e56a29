package nrf24

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
)

// Bus performs one full-duplex SPI exchange with chip select asserted
// for its whole duration. len(w) == len(r). periph.io's spi.Conn
// satisfies it.
type Bus interface {
	Tx(w, r []byte) error
}

// Pin drives the CE line. periph.io's gpio.PinOut satisfies it.
type Pin interface {
	Out(l gpio.Level) error
}

// resetConfig is CONFIG after power on reset: CRC enabled, all
// interrupts unmasked, powered down.
const resetConfig Config = 0b0000_1000

// Device is the chip behind its bus and CE line. It is owned by exactly
// one mode at a time and never copied.
type Device struct {
	bus Bus
	ce  Pin
	// config mirrors the last CONFIG value written to the chip.
	config Config
	ceHigh bool

	w, r [maxFrameLen]byte
}

func newDevice(bus Bus, ce Pin) *Device {
	return &Device{bus: bus, ce: ce, config: resetConfig}
}

// SendCommand runs cmd in a single exchange and returns the Status the
// chip shifted out first. cmd decodes its own response.
func (d *Device) SendCommand(cmd Command) (Status, error) {
	n := cmd.Len()
	if n > maxFrameLen {
		panic(fmt.Sprintf("nrf24: %d byte frame exceeds %d byte transfer buffer", n, maxFrameLen))
	}
	w, r := d.w[:n], d.r[:n]
	clear(w)
	clear(r)
	cmd.Encode(w)
	if err := d.bus.Tx(w, r); err != nil {
		return 0, &BusError{Op: fmt.Sprint(cmd), Err: err}
	}
	cmd.Decode(r)
	return Status(r[0]), nil
}

// ReadRegister reads reg from the chip into reg.
func (d *Device) ReadRegister(reg ReadableRegister) (Status, error) {
	return d.SendCommand(ReadRegisterCmd{Reg: reg})
}

// WriteRegister writes reg unconditionally.
func (d *Device) WriteRegister(reg Register) (Status, error) {
	return d.SendCommand(WriteRegisterCmd{Reg: reg})
}

// UpdateConfig applies f to the cached CONFIG and writes it back only if
// the value changed. The cache is updated once the write succeeded.
func (d *Device) UpdateConfig(f func(*Config)) error {
	next := d.config
	f(&next)
	if next == d.config {
		return nil
	}
	if _, err := d.WriteRegister(next); err != nil {
		return err
	}
	d.config = next
	return nil
}

// Config returns the cached CONFIG register.
func (d *Device) Config() Config { return d.config }

// CE reports the level last driven on the CE line.
func (d *Device) CE() gpio.Level { return gpio.Level(d.ceHigh) }

// IsConnected reads SETUP_AW and validates it.
func (d *Device) IsConnected() (bool, error) {
	var aw SetupAW
	if _, err := d.ReadRegister(&aw); err != nil {
		return false, err
	}
	return aw.valid(), nil
}

func (d *Device) setCE(high bool) error {
	if err := d.ce.Out(gpio.Level(high)); err != nil {
		return &PinError{High: high, Err: err}
	}
	d.ceHigh = high
	return nil
}

func (d *Device) ceEnable() error  { return d.setCE(true) }
func (d *Device) ceDisable() error { return d.setCE(false) }

// UpdateRegister reads a register, applies f and writes it back. Unlike
// UpdateConfig the write always happens.
func UpdateRegister[R any, P interface {
	*R
	ReadableRegister
}](d *Device, f func(P)) (Status, error) {
	var reg R
	p := P(&reg)
	if _, err := d.ReadRegister(p); err != nil {
		return 0, err
	}
	f(p)
	return d.WriteRegister(p)
}

// New takes over the chip: CE low, presence check, DPL and DYN_ACK
// features enabled, powered up. The chip is returned in Standby.
func New(bus Bus, ce Pin) (*StandbyMode, error) {
	d := newDevice(bus, ce)
	if err := d.ceDisable(); err != nil {
		return nil, err
	}

	ok, err := d.IsConnected()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotConnected
	}

	var features Feature
	features.SetEnDynAck(true)
	features.SetEnDPL(true)
	if _, err := d.WriteRegister(features); err != nil {
		return nil, err
	}

	if err := d.UpdateConfig(func(c *Config) { c.SetPwrUp(true) }); err != nil {
		return nil, err
	}
	slog.Debug("nrf24 powered up", "config", d.config)
	return newStandby(d), nil
}
