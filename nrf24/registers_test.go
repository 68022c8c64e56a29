package nrf24

import (
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestConfigFieldsAreIndependent(t *testing.T) {
	setters := []struct {
		name string
		set  func(*Config, bool)
		get  func(Config) bool
		bit  byte
	}{
		{"PrimRx", (*Config).SetPrimRx, Config.PrimRx, 0},
		{"PwrUp", (*Config).SetPwrUp, Config.PwrUp, 1},
		{"CRCO", (*Config).SetCRCO, Config.CRCO, 2},
		{"EnCRC", (*Config).SetEnCRC, Config.EnCRC, 3},
		{"MaskMaxRT", (*Config).SetMaskMaxRT, Config.MaskMaxRT, 4},
		{"MaskTxDS", (*Config).SetMaskTxDS, Config.MaskTxDS, 5},
		{"MaskRxDR", (*Config).SetMaskRxDR, Config.MaskRxDR, 6},
	}
	for _, tt := range setters {
		t.Run(tt.name, func(t *testing.T) {
			for _, start := range []Config{0x00, 0x7f, 0x55, 0x2a} {
				c := start
				tt.set(&c, true)
				assert.Check(t, tt.get(c))
				assert.Equal(t, byte(c)&^(1<<tt.bit), byte(start)&^(1<<tt.bit))

				tt.set(&c, false)
				assert.Check(t, !tt.get(c))
				assert.Equal(t, byte(c), byte(start)&^(1<<tt.bit))
			}
		})
	}
}

func TestMultiBitFields(t *testing.T) {
	var retr SetupRetr = 0xff
	retr.SetARC(5)
	assert.Equal(t, retr.ARC(), uint8(5))
	assert.Equal(t, retr.ARD(), uint8(15))
	retr.SetARD(2)
	assert.Equal(t, byte(retr), byte(0x25))

	var rf RfSetup = 0xff
	rf.SetRfPwr(1)
	assert.Equal(t, rf.RfPwr(), uint8(1))
	assert.Equal(t, byte(rf), byte(0xfb))

	var ch RfCh = 0x80
	ch.SetChannel(125)
	assert.Equal(t, ch.Channel(), uint8(125))
	assert.Equal(t, byte(ch), byte(0x80|125))
}

func TestPipeRegisters(t *testing.T) {
	for bits := 0; bits < 1<<PipesCount; bits++ {
		var pipes [PipesCount]bool
		for i := range pipes {
			pipes[i] = bits&(1<<i) != 0
		}
		for _, got := range [][PipesCount]bool{
			EnAAFromBools(pipes).Bools(),
			EnRxAddrFromBools(pipes).Bools(),
			DynpdFromBools(pipes).Bools(),
		} {
			assert.Equal(t, got, pipes)
		}
		assert.Equal(t, byte(EnAAFromBools(pipes)), byte(bits))
	}

	var aa EnAA
	aa.SetPipe(3, true)
	assert.Check(t, aa.Pipe(3))
	assert.Check(t, !aa.Pipe(2))
	assert.Equal(t, aa.String(), "P5- P4- P3+ P2- P1- P0-")
	assert.Check(t, cmp.Panics(func() { aa.Pipe(6) }))
	assert.Check(t, cmp.Panics(func() { aa.SetPipe(-1, true) }))
}

func TestSetupAW(t *testing.T) {
	for width := uint8(MinAddrBytes); width <= MaxAddrBytes; width++ {
		aw := SetupAWFromWidth(width)
		assert.Equal(t, aw.Width(), width)
		assert.Equal(t, aw.AW(), width-2)
		assert.Check(t, aw.valid())
	}
	for _, width := range []uint8{0, 1, 6, 255} {
		assert.Check(t, cmp.Panics(func() { SetupAWFromWidth(width) }), "width %d", width)
	}

	assert.Check(t, !SetupAW(0xff).valid())
	assert.Check(t, !SetupAW(0x04).valid())
}

func TestAddrReg(t *testing.T) {
	addr := []byte{0x01, 0x02, 0x03, 0x04, 0x05}

	tx := NewTxAddr(addr)
	assert.Equal(t, tx.Addr(), byte(RegTxAddr))
	assert.Equal(t, tx.Len(), 5)
	assert.DeepEqual(t, tx.Bytes(), addr)

	p1 := NewRxAddr(1, addr[:3])
	assert.Equal(t, p1.Addr(), byte(0x0b))
	assert.Equal(t, p1.Len(), 3)

	p4 := NewRxAddr(4, addr)
	assert.Equal(t, p4.Addr(), byte(0x0e))
	assert.Equal(t, p4.Len(), 1)
	assert.DeepEqual(t, p4.Bytes(), []byte{0x01})

	buf := RxAddrBuf(5, 5)
	assert.Equal(t, buf.Len(), 1)

	assert.Check(t, cmp.Panics(func() { NewTxAddr(addr[:1]) }))
	assert.Check(t, cmp.Panics(func() { NewTxAddr(make([]byte, 6)) }))
	assert.Check(t, cmp.Panics(func() { NewRxAddr(6, addr) }))
	assert.Check(t, cmp.Panics(func() { TxAddrBuf(1) }))
}

func TestRxPw(t *testing.T) {
	pw := NewRxPw(3, 32)
	assert.Equal(t, pw.Addr(), byte(0x14))
	assert.Check(t, !pw.Dynamic())
	assert.Check(t, NewRxPw(0, 0).Dynamic())
	assert.Check(t, cmp.Panics(func() { NewRxPw(0, 33) }))
	assert.Check(t, cmp.Panics(func() { NewRxPw(6, 1) }))
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		raw    byte
		pipe   int
		ok     bool
		rxDR   bool
		txDS   bool
		maxRT  bool
		txFull bool
	}{
		{name: "idle", raw: 0x0e, pipe: -1},
		{name: "payload on pipe 2", raw: 0x44, pipe: 2, ok: true, rxDR: true},
		{name: "sent", raw: 0x2e, pipe: -1, txDS: true},
		{name: "retransmit limit", raw: 0x1f, pipe: -1, maxRT: true, txFull: true},
		{name: "unused pipe number", raw: 0x0c, pipe: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Status(tt.raw)
			pipe, ok := s.RxPipe()
			assert.Equal(t, pipe, tt.pipe)
			assert.Equal(t, ok, tt.ok)
			assert.Equal(t, s.RxDR(), tt.rxDR)
			assert.Equal(t, s.TxDS(), tt.txDS)
			assert.Equal(t, s.MaxRT(), tt.maxRT)
			assert.Equal(t, s.TxFull(), tt.txFull)
		})
	}

	assert.Equal(t, byte(StatusClear(false, true, true)), byte(0x30))
	assert.Equal(t, byte(StatusClear(true, true, true)), byte(0x70))
	assert.Equal(t, Status(0x44).String(), "RxDR+ TxDS- MaxRT- TxFull- RxPipe:2")
}
