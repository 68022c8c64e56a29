package nrf24

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
	"periph.io/x/conn/v3/gpio"

	"github.com/linht/nrf24-manager/simchip"
)

func TestModeTransitions(t *testing.T) {
	chip, s := newSim(t)

	rx, err := s.Rx()
	assert.NilError(t, err)
	assert.Equal(t, rx.Name(), ModeRx)
	assert.Equal(t, chip.CE(), gpio.High)
	assert.Check(t, rx.Device().Config().PrimRx())
	assert.Equal(t, chip.Reg(RegConfig), byte(0x0b))

	s, err = rx.Standby()
	assert.NilError(t, err)
	assert.Equal(t, chip.CE(), gpio.Low)
	// PRIM_RX only changes on the next transition.
	assert.Equal(t, chip.Reg(RegConfig), byte(0x0b))

	tx, err := s.Tx()
	assert.NilError(t, err)
	assert.Equal(t, tx.Name(), ModeTx)
	assert.Equal(t, chip.CE(), gpio.Low)
	assert.Equal(t, chip.Reg(RegConfig), byte(0x0a))

	s, err = tx.Standby()
	assert.NilError(t, err)
	assert.Equal(t, chip.CE(), gpio.Low)
	assert.Equal(t, s.Name(), ModeStandby)
}

func TestSpentModePanics(t *testing.T) {
	_, s := newSim(t)
	rx, err := s.Rx()
	assert.NilError(t, err)

	assert.Check(t, cmp.Panics(func() { _, _ = s.Status() }))
	assert.Check(t, cmp.Panics(func() { _, _ = s.Tx() }))
	assert.Check(t, cmp.Panics(func() { s.Device() }))

	_, err = rx.Standby()
	assert.NilError(t, err)
	assert.Check(t, cmp.Panics(func() { _, _ = rx.Read() }))
}

func TestFailedTransitionKeepsMode(t *testing.T) {
	chip, s := newSim(t)

	chip.FailBus = simchip.ErrBus
	rx, err := s.Rx()
	assert.Check(t, rx == nil)
	assert.ErrorIs(t, err, simchip.ErrBus)
	assert.Check(t, !s.Device().Config().PrimRx())

	chip.FailBus = nil
	chip.FailPin = errors.New("gpio")
	_, err = s.Rx()
	var pe *PinError
	assert.Assert(t, errors.As(err, &pe))
	assert.Check(t, pe.High)
	assert.Equal(t, chip.CE(), gpio.Low)

	chip.FailPin = nil
	rx, err = s.Rx()
	assert.NilError(t, err)
	assert.Equal(t, chip.CE(), gpio.High)
	assert.Check(t, rx != nil)
}

func TestModesShareConfigurator(t *testing.T) {
	_, s := newSim(t)
	assert.NilError(t, s.SetFrequency(10))

	tx, err := s.Tx()
	assert.NilError(t, err)
	ch, err := tx.Frequency()
	assert.NilError(t, err)
	assert.Equal(t, ch, uint8(10))

	var c Configurator = tx
	assert.NilError(t, c.SetFrequency(20))
	s, err = tx.Standby()
	assert.NilError(t, err)
	ch, err = s.Frequency()
	assert.NilError(t, err)
	assert.Equal(t, ch, uint8(20))
}
