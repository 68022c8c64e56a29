package nrf24

import "log/slog"

// StandbyMode is Standby-I: powered up, CE low. It is the only mode
// that can enter RX or TX.
type StandbyMode struct {
	handle
}

func newStandby(d *Device) *StandbyMode {
	return &StandbyMode{handle{dev: d}}
}

// Name returns "standby".
func (s *StandbyMode) Name() string { return ModeStandby }

func (s *StandbyMode) String() string { return "StandbyMode" }

// Rx sets PRIM_RX and raises CE. s is spent on success; on error it
// still owns the device.
func (s *StandbyMode) Rx() (*RxMode, error) {
	d := s.Device()
	if err := d.UpdateConfig(func(c *Config) { c.SetPrimRx(true) }); err != nil {
		return nil, err
	}
	if err := d.ceEnable(); err != nil {
		return nil, err
	}
	slog.Debug("nrf24 mode transition", "from", ModeStandby, "to", ModeRx)
	return newRx(s.take()), nil
}

// Tx clears PRIM_RX. CE stays low until the first Send. s is spent on
// success; on error it still owns the device.
func (s *StandbyMode) Tx() (*TxMode, error) {
	d := s.Device()
	if err := d.UpdateConfig(func(c *Config) { c.SetPrimRx(false) }); err != nil {
		return nil, err
	}
	slog.Debug("nrf24 mode transition", "from", ModeStandby, "to", ModeTx)
	return newTx(s.take()), nil
}
