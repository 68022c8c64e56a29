package nrf24

import (
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestFrequency(t *testing.T) {
	chip, s := newSim(t)
	for _, ch := range []uint8{0, 76, 125} {
		assert.NilError(t, s.SetFrequency(ch))
		got, err := s.Frequency()
		assert.NilError(t, err)
		assert.Equal(t, got, ch)
		assert.Equal(t, chip.Reg(RegRfCh), ch)
	}
	assert.Check(t, cmp.Panics(func() { _ = s.SetFrequency(126) }))
}

func TestRF(t *testing.T) {
	chip, s := newSim(t)
	tests := []struct {
		rate  DataRate
		power PALevel
		raw   byte
	}{
		{DataRate250Kbps, PALevelLow, 0x22},
		{DataRate1Mbps, PALevelMax, 0x06},
		{DataRate2Mbps, PALevelMin, 0x08},
	}
	for _, tt := range tests {
		t.Run(tt.rate.String(), func(t *testing.T) {
			assert.NilError(t, s.SetRF(tt.rate, tt.power))
			assert.Equal(t, chip.Reg(RegRfSetup), tt.raw)
			rate, power, err := s.RF()
			assert.NilError(t, err)
			assert.Equal(t, rate, tt.rate)
			assert.Equal(t, power, tt.power)
		})
	}
	assert.Check(t, cmp.Panics(func() { _ = s.SetRF(DataRate1Mbps, 4) }))
}

func TestCRC(t *testing.T) {
	chip, s := newSim(t)
	for _, tt := range []struct {
		mode CRCMode
		bits byte
	}{
		{CRCDisabled, 0x00},
		{CRCOneByte, 0x08},
		{CRCTwoBytes, 0x0c},
	} {
		assert.NilError(t, s.SetCRC(tt.mode))
		assert.Equal(t, chip.Reg(RegConfig)&0x0c, tt.bits, tt.mode.String())
	}
	// PWR_UP survives CRC changes.
	assert.Check(t, s.Device().Config().PwrUp())
}

func TestInterruptMask(t *testing.T) {
	chip, s := newSim(t)
	assert.NilError(t, s.SetInterruptMask(true, false, true))
	assert.Equal(t, chip.Reg(RegConfig)&0x70, byte(0x50))

	writes := chip.Count(OpWriteRegister | RegConfig)
	assert.NilError(t, s.SetInterruptMask(true, false, true))
	assert.Equal(t, chip.Count(OpWriteRegister|RegConfig), writes)
}

func TestAddresses(t *testing.T) {
	chip, s := newSim(t)
	assert.NilError(t, s.SetAddressWidth(3))
	width, err := s.AddressWidth()
	assert.NilError(t, err)
	assert.Equal(t, width, uint8(3))
	assert.Check(t, cmp.Panics(func() { _ = s.SetAddressWidth(6) }))
	assert.Check(t, cmp.Panics(func() { _ = s.SetAddressWidth(1) }))

	assert.NilError(t, s.SetTxAddr([]byte{1, 2, 3}))
	assert.DeepEqual(t, chip.Addr(RegTxAddr)[:3], []byte{1, 2, 3})

	assert.NilError(t, s.SetRxAddr(1, []byte{4, 5, 6}))
	assert.DeepEqual(t, chip.Addr(RegRxAddrP0 + 1)[:3], []byte{4, 5, 6})

	assert.NilError(t, s.SetRxAddr(3, []byte{7, 8, 9}))
	assert.Equal(t, chip.Reg(RegRxAddrP0+3), byte(7))
}

func TestPipes(t *testing.T) {
	chip, s := newSim(t)
	pipes := [PipesCount]bool{true, false, true}

	assert.NilError(t, s.SetAutoAck(pipes))
	got, err := s.AutoAck()
	assert.NilError(t, err)
	assert.Equal(t, got, pipes)

	assert.NilError(t, s.SetPipesRxEnable(pipes))
	assert.Equal(t, chip.Reg(RegEnRxAddr), byte(0x05))
}

func TestAutoRetransmit(t *testing.T) {
	chip, s := newSim(t)
	assert.NilError(t, s.SetAutoRetransmit(5, 15))
	assert.Equal(t, chip.Reg(RegSetupRetr), byte(0x5f))
	assert.Check(t, cmp.Panics(func() { _ = s.SetAutoRetransmit(16, 0) }))
	assert.Check(t, cmp.Panics(func() { _ = s.SetAutoRetransmit(0, 16) }))
}

func TestPipesRxLengths(t *testing.T) {
	chip, s := newSim(t)
	chip.SetReg(RegFeature, 0x01)

	assert.NilError(t, s.SetPipesRxLengths([PipesCount]uint8{32, 0, 8, 0, 1, 2}))
	assert.Equal(t, chip.Reg(RegDynpd), byte(0x0a))
	assert.Equal(t, chip.Reg(RegFeature), byte(0x05))
	for pipe, want := range []byte{32, 0, 8, 0, 1, 2} {
		assert.Equal(t, chip.Reg(RegRxPwP0+byte(pipe)), want)
	}

	chip.ResetTrace()
	assert.NilError(t, s.SetPipesRxLengths([PipesCount]uint8{1, 1, 1, 1, 1, 1}))
	assert.Equal(t, chip.Reg(RegDynpd), byte(0))
	assert.Equal(t, chip.Count(OpReadRegister|RegFeature), 0)
}

func TestTextMarshaling(t *testing.T) {
	for _, rate := range []DataRate{DataRate1Mbps, DataRate2Mbps, DataRate250Kbps} {
		b, err := rate.MarshalText()
		assert.NilError(t, err)
		var got DataRate
		assert.NilError(t, got.UnmarshalText(b))
		assert.Equal(t, got, rate)
	}
	var rate DataRate
	assert.ErrorContains(t, rate.UnmarshalText([]byte("3mbps")), "unknown data rate")

	var crc CRCMode
	assert.NilError(t, crc.UnmarshalText([]byte("off")))
	assert.Equal(t, crc, CRCDisabled)
	assert.NilError(t, crc.UnmarshalText([]byte("16")))
	assert.Equal(t, crc, CRCTwoBytes)
	assert.ErrorContains(t, crc.UnmarshalText([]byte("32")), "unknown crc mode")

	assert.Equal(t, PALevelMin.String(), "-18dBm")
	assert.Equal(t, PALevelMax.String(), "0dBm")
}
