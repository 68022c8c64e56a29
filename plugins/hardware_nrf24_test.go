package plugins

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/linht/nrf24-manager/nrf24"
	"github.com/linht/nrf24-manager/simchip"
)

func simConfig(loopback, lossy bool) RadioConfig {
	cfg := RadioConfig{Backend: BackendSim}
	cfg.Sim.Loopback = loopback
	cfg.Sim.Lossy = lossy
	return cfg.withDefaults()
}

func openSim(t *testing.T, loopback, lossy bool) *RadioController {
	t.Helper()
	r := NewRadioController(simConfig(loopback, lossy))
	assert.NilError(t, r.Open())
	t.Cleanup(func() { r.Close() })
	return r
}

func TestControllerOpen(t *testing.T) {
	r := openSim(t, false, false)
	assert.Equal(t, r.Mode(), nrf24.ModeStandby)
	assert.ErrorIs(t, r.Open(), ErrRadioOpen)

	sim := r.Sim()
	assert.Assert(t, sim != nil)
	assert.Equal(t, sim.Reg(nrf24.RegRfCh), byte(76))
	assert.Equal(t, sim.Reg(nrf24.RegConfig), byte(0x0e))

	st, err := r.Status()
	assert.NilError(t, err)
	assert.Check(t, st.Open)
	assert.Equal(t, st.Mode, nrf24.ModeStandby)
	assert.Equal(t, st.Channel, uint8(76))
	assert.Equal(t, st.RxPipe, -1)
	assert.Equal(t, st.Bus, "simulated")
	assert.Check(t, !st.CEActive)
}

func TestControllerClosed(t *testing.T) {
	r := NewRadioController(simConfig(false, false))

	st, err := r.Status()
	assert.NilError(t, err)
	assert.Check(t, !st.Open)
	assert.Equal(t, st.Mode, "closed")

	_, err = r.Send([]byte{1})
	assert.ErrorIs(t, err, ErrRadioClosed)
	_, err = r.Read()
	assert.ErrorIs(t, err, ErrRadioClosed)
	_, err = r.Registers()
	assert.ErrorIs(t, err, ErrRadioClosed)
	assert.ErrorIs(t, r.SetMode(nrf24.ModeRx), ErrRadioClosed)
	assert.ErrorIs(t, r.Flush("tx"), ErrRadioClosed)

	// Closing a closed radio is a no-op.
	assert.NilError(t, r.Close())
}

func TestControllerOpenUnknownBackend(t *testing.T) {
	r := NewRadioController(RadioConfig{Backend: "bogus"}.withDefaults())
	err := r.Open()
	assert.ErrorContains(t, err, `unknown radio backend "bogus"`)
	assert.Equal(t, r.Mode(), "closed")
}

func TestControllerModes(t *testing.T) {
	r := openSim(t, false, false)
	sim := r.Sim()

	tests := []struct {
		mode   string
		primRx bool
		ce     bool
	}{
		{nrf24.ModeRx, true, true},
		{nrf24.ModeTx, false, false},
		{nrf24.ModeRx, true, true},
		{nrf24.ModeStandby, true, false},
		{nrf24.ModeTx, false, false},
		{nrf24.ModeStandby, false, false},
	}
	for _, tc := range tests {
		assert.NilError(t, r.SetMode(tc.mode))
		assert.Equal(t, r.Mode(), tc.mode)
		assert.Equal(t, sim.Reg(nrf24.RegConfig)&0x01 != 0, tc.primRx, tc.mode)
		assert.Equal(t, bool(sim.CE()), tc.ce, tc.mode)
	}

	assert.ErrorContains(t, r.SetMode("sleep"), `invalid mode "sleep"`)
}

func TestControllerSetModeFailureKeepsMode(t *testing.T) {
	r := openSim(t, false, false)
	sim := r.Sim()

	sim.FailBus = simchip.ErrBus
	err := r.SetMode(nrf24.ModeRx)
	assert.Check(t, nrf24.IsBusError(err))
	assert.Equal(t, r.Mode(), nrf24.ModeStandby)

	sim.FailBus = nil
	assert.NilError(t, r.SetMode(nrf24.ModeRx))
	assert.Equal(t, r.Mode(), nrf24.ModeRx)
}

func TestControllerSendLoopback(t *testing.T) {
	r := openSim(t, true, false)

	_, err := r.Send([]byte{1, 2, 3})
	var modeErr *ModeError
	assert.Check(t, errors.As(err, &modeErr))
	assert.Equal(t, modeErr.Have, nrf24.ModeStandby)

	assert.NilError(t, r.SetMode(nrf24.ModeTx))
	id, err := r.Send([]byte{1, 2, 3})
	assert.NilError(t, err)
	assert.Assert(t, id != "")

	out, err := r.Poll()
	assert.NilError(t, err)
	assert.Equal(t, out.Result, "delivered")
	assert.DeepEqual(t, out.IDs, []string{id})

	// Nothing left to settle.
	out, err = r.Poll()
	assert.NilError(t, err)
	assert.Equal(t, out.Result, "delivered")
	assert.Equal(t, len(out.IDs), 0)

	assert.NilError(t, r.SetMode(nrf24.ModeRx))
	p, err := r.Read()
	assert.NilError(t, err)
	assert.Equal(t, p.Pipe, 0)
	assert.DeepEqual(t, p.Bytes(), []byte{1, 2, 3})

	_, err = r.Read()
	assert.ErrorIs(t, err, nrf24.ErrRxEmpty)
}

func TestControllerSendLossy(t *testing.T) {
	r := openSim(t, false, true)
	assert.NilError(t, r.SetMode(nrf24.ModeTx))

	first, err := r.Send([]byte{0xaa})
	assert.NilError(t, err)
	second, err := r.Send([]byte{0xbb})
	assert.NilError(t, err)

	out, err := r.Poll()
	assert.NilError(t, err)
	assert.Equal(t, out.Result, "failed")
	assert.DeepEqual(t, out.IDs, []string{first, second})
	assert.Equal(t, r.Sim().TxQueued(), 0)
	assert.Equal(t, r.Sim().Count(nrf24.OpFlushTx), 1)

	st, err := r.Status()
	assert.NilError(t, err)
	assert.Equal(t, st.Lost, uint8(1))
	assert.Equal(t, st.Pending, 0)
}

func TestControllerSendFifoFull(t *testing.T) {
	r := openSim(t, false, true)
	assert.NilError(t, r.SetMode(nrf24.ModeTx))

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := r.Send([]byte{byte(i)})
		assert.NilError(t, err)
		ids = append(ids, id)
	}
	for i := 0; i < 2; i++ {
		_, err := r.Send([]byte{0xff})
		assert.ErrorIs(t, err, ErrTxFull)
	}
	assert.Equal(t, r.Sim().TxQueued(), 3)

	st, err := r.Status()
	assert.NilError(t, err)
	assert.Equal(t, st.Pending, 3)

	out, err := r.Poll()
	assert.NilError(t, err)
	assert.Equal(t, out.Result, "failed")
	assert.DeepEqual(t, out.IDs, ids)
}

func TestControllerSendLength(t *testing.T) {
	r := openSim(t, false, false)
	assert.NilError(t, r.SetMode(nrf24.ModeTx))

	_, err := r.Send(nil)
	assert.ErrorContains(t, err, "payload length 0 out of range")
	_, err = r.Send(make([]byte, nrf24.MaxPayload+1))
	assert.ErrorContains(t, err, "payload length 33 out of range")
}

func TestControllerFlush(t *testing.T) {
	r := openSim(t, false, false)
	sim := r.Sim()

	assert.Check(t, sim.Inject(1, []byte{1, 2}))
	assert.NilError(t, r.Flush("rx"))
	assert.Equal(t, sim.RxQueued(), 0)

	assert.NilError(t, r.SetMode(nrf24.ModeTx))
	_, err := r.Send([]byte{1})
	assert.NilError(t, err)
	assert.NilError(t, r.Flush("tx"))
	assert.Equal(t, sim.TxQueued(), 0)

	st, err := r.Status()
	assert.NilError(t, err)
	assert.Equal(t, st.Pending, 0)

	assert.ErrorContains(t, r.Flush("both"), `invalid FIFO "both"`)
}

func TestControllerClearInterrupts(t *testing.T) {
	r := openSim(t, false, false)
	sim := r.Sim()

	sim.Inject(0, []byte{1})
	st, err := r.Status()
	assert.NilError(t, err)
	assert.Check(t, st.RxDR)
	assert.Equal(t, st.RxPipe, 0)

	assert.NilError(t, r.ClearInterrupts())
	st, err = r.Status()
	assert.NilError(t, err)
	assert.Check(t, !st.RxDR)
}

func TestControllerConfigure(t *testing.T) {
	r := openSim(t, false, false)
	sim := r.Sim()

	p := nrf24.DefaultProfile()
	p.Channel = 100
	p.AddressWidth = 3
	p.TxAddr = nrf24.Address{0xa1, 0xa2, 0xa3}
	p.RxAddrs = map[int]nrf24.Address{1: {0xb1, 0xb2, 0xb3}}
	p.PayloadLengths = map[int]uint8{1: 8}
	assert.NilError(t, r.Configure(p))

	assert.Equal(t, sim.Reg(nrf24.RegRfCh), byte(100))
	assert.Equal(t, sim.Reg(nrf24.RegSetupAW), byte(0x01))
	assert.DeepEqual(t, sim.Addr(nrf24.RegTxAddr)[:3], []byte{0xa1, 0xa2, 0xa3})
	assert.Equal(t, sim.Reg(nrf24.RegRxPwP0+1), byte(8))
	assert.Equal(t, r.Profile().Channel, uint8(100))

	bad := p
	bad.Channel = 126
	assert.ErrorContains(t, r.Configure(bad), "channel 126 out of range")
	assert.Equal(t, r.Profile().Channel, uint8(100))
}

func TestControllerConfigureClosed(t *testing.T) {
	r := NewRadioController(simConfig(false, false))

	p := nrf24.DefaultProfile()
	p.Channel = 42
	assert.NilError(t, r.Configure(p))

	assert.NilError(t, r.Open())
	t.Cleanup(func() { r.Close() })
	assert.Equal(t, r.Sim().Reg(nrf24.RegRfCh), byte(42))
}

func TestControllerRegisters(t *testing.T) {
	r := openSim(t, false, false)

	regs, err := r.Registers()
	assert.NilError(t, err)
	assert.Equal(t, len(regs), len(registerMap))

	byName := make(map[string]RegisterValue, len(regs))
	for _, reg := range regs {
		byName[reg.Name] = reg
	}
	assert.Equal(t, byName["CONFIG"].Address, "0x00")
	assert.Equal(t, byName["CONFIG"].Value, "0E")
	assert.Equal(t, byName["RF_CH"].Value, "4C")
	assert.Equal(t, byName["RF_CH"].Decoded, "76")
	assert.Equal(t, byName["SETUP_AW"].Decoded, "5 bytes")
	assert.Equal(t, byName["TX_ADDR"].Value, "E7E7E7E7E7")
	assert.Equal(t, byName["RX_ADDR_P1"].Decoded, "c2c2c2c2c2")
	assert.Equal(t, byName["RX_PW_P0"].Decoded, "dynamic")
	assert.Equal(t, byName["FEATURE"].Address, "0x1D")
}

func TestControllerServiceRx(t *testing.T) {
	r := openSim(t, false, false)
	sim := r.Sim()

	// Nothing to do in standby.
	events, err := r.service()
	assert.NilError(t, err)
	assert.Equal(t, len(events), 0)

	assert.NilError(t, r.SetMode(nrf24.ModeRx))
	sim.Inject(1, []byte{0x01})
	sim.Inject(2, []byte{0x02, 0x03})

	events, err = r.service()
	assert.NilError(t, err)
	assert.Equal(t, len(events), 2)
	assert.Equal(t, events[0].Type, EventPacket)
	assert.Equal(t, *events[0].Pipe, 1)
	assert.Equal(t, events[0].Data, "01")
	assert.Equal(t, *events[1].Pipe, 2)
	assert.Equal(t, events[1].Data, "0203")
	assert.Equal(t, events[1].Length, 2)
	assert.Equal(t, sim.RxQueued(), 0)
}

func TestControllerServiceTx(t *testing.T) {
	r := openSim(t, false, false)
	assert.NilError(t, r.SetMode(nrf24.ModeTx))

	// No pending packets: no poll.
	before := r.Sim().Count(nrf24.OpReadRegister | nrf24.RegFifoStatus)
	events, err := r.service()
	assert.NilError(t, err)
	assert.Equal(t, len(events), 0)
	assert.Equal(t, r.Sim().Count(nrf24.OpReadRegister|nrf24.RegFifoStatus), before)

	id, err := r.Send([]byte{9})
	assert.NilError(t, err)
	events, err = r.service()
	assert.NilError(t, err)
	assert.Equal(t, len(events), 1)
	assert.Equal(t, events[0].Type, EventSend)
	assert.Equal(t, events[0].Result, "delivered")
	assert.DeepEqual(t, events[0].IDs, []string{id})
}

func TestControllerCloseReturnsToStandby(t *testing.T) {
	r := NewRadioController(simConfig(false, false))
	assert.NilError(t, r.Open())
	sim := r.Sim()

	assert.NilError(t, r.SetMode(nrf24.ModeRx))
	assert.NilError(t, r.Close())
	assert.Equal(t, r.Mode(), "closed")
	assert.Check(t, !bool(sim.CE()))
	assert.Check(t, r.Sim() == nil)
}
