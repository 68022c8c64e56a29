// Package simchip simulates an nRF24L01+ at the SPI level, for tests and
// for running the manager without hardware.
//
// Chip implements both the SPI exchange (Tx) and the CE output (Out).
// Air time is modelled per exchange: while CE is high in PTX mode, every
// SPI exchange first transmits the packet at the head of the TX FIFO.
package simchip

import (
	"errors"
	"sync"

	"periph.io/x/conn/v3/gpio"
)

const (
	fifoDepth  = 3
	maxPayload = 32

	regConfig     = 0x00
	regEnAA       = 0x01
	regSetupAW    = 0x03
	regSetupRetr  = 0x04
	regRfCh       = 0x05
	regStatus     = 0x07
	regObserveTx  = 0x08
	regRxAddrP0   = 0x0a
	regRxAddrP1   = 0x0b
	regTxAddr     = 0x10
	regRxPwP0     = 0x11
	regFifoStatus = 0x17
	regDynpd      = 0x1c
	regFeature    = 0x1d

	statusRxDR  = 1 << 6
	statusTxDS  = 1 << 5
	statusMaxRT = 1 << 4
	statusIRQ   = statusRxDR | statusTxDS | statusMaxRT

	configPrimRx = 1 << 0
	configPwrUp  = 1 << 1
)

// ErrBus is returned by Tx while a bus failure is injected.
var ErrBus = errors.New("simchip: bus failure")

// Packet is a payload that went on air or was injected for reception.
type Packet struct {
	Pipe int
	Data []byte
}

// Chip is a simulated transceiver. The zero value is not usable; call
// New.
type Chip struct {
	mu sync.Mutex

	regs  [0x20]byte
	addrs map[byte][]byte
	irq   byte

	tx [][]byte
	rx []Packet

	ce    gpio.Level
	sent  []Packet
	ops   map[byte]int
	trace []byte

	// Absent makes the chip answer every exchange with 0xff, as a
	// floating MISO line would.
	Absent bool
	// Lossy makes every acknowledged transmission fail: the retransmit
	// limit is reached and the packet stays at the head of the FIFO.
	Lossy bool
	// FailBus makes Tx fail without touching the chip state.
	FailBus error
	// FailPin makes Out fail without changing the CE level.
	FailPin error
	// OnAir, when set, is called for each packet that leaves the chip,
	// outside the chip's lock.
	OnAir func(addr []byte, data []byte)
}

// New returns a chip in its power on reset state.
func New() *Chip {
	c := &Chip{
		addrs: make(map[byte][]byte),
		ops:   make(map[byte]int),
	}
	c.reset()
	return c
}

func (c *Chip) reset() {
	c.regs = [0x20]byte{}
	c.regs[regConfig] = 0x08
	c.regs[regEnAA] = 0x3f
	c.regs[0x02] = 0x03
	c.regs[regSetupAW] = 0x03
	c.regs[regSetupRetr] = 0x03
	c.regs[regRfCh] = 0x02
	c.regs[0x06] = 0x0e
	c.addrs[regRxAddrP0] = []byte{0xe7, 0xe7, 0xe7, 0xe7, 0xe7}
	c.addrs[regRxAddrP1] = []byte{0xc2, 0xc2, 0xc2, 0xc2, 0xc2}
	c.addrs[regTxAddr] = []byte{0xe7, 0xe7, 0xe7, 0xe7, 0xe7}
	for i := byte(0); i < 4; i++ {
		c.regs[0x0c+i] = 0xc3 + i
	}
	c.irq = 0
	c.tx = nil
	c.rx = nil
}

// Out drives CE.
func (c *Chip) Out(l gpio.Level) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailPin != nil {
		return c.FailPin
	}
	c.ce = l
	return nil
}

// Tx performs one SPI exchange.
func (c *Chip) Tx(w, r []byte) error {
	c.mu.Lock()
	aired, err := c.exchange(w, r)
	onAir := c.OnAir
	c.mu.Unlock()
	if aired != nil && onAir != nil {
		onAir(aired.addr, aired.data)
	}
	return err
}

type airPacket struct {
	addr, data []byte
}

func (c *Chip) exchange(w, r []byte) (*airPacket, error) {
	if c.FailBus != nil {
		return nil, c.FailBus
	}
	if len(w) != len(r) {
		return nil, errors.New("simchip: tx and rx buffers differ in length")
	}
	if len(w) == 0 {
		return nil, nil
	}
	if c.Absent {
		for i := range r {
			r[i] = 0xff
		}
		return nil, nil
	}

	aired := c.airtime()
	r[0] = c.status()
	for i := 1; i < len(r); i++ {
		r[i] = 0
	}
	op := w[0]
	c.ops[op]++
	c.trace = append(c.trace, op)
	c.execute(op, w[1:], r[1:])
	return aired, nil
}

// airtime transmits the head of the TX FIFO if the chip is an active PTX.
func (c *Chip) airtime() *airPacket {
	cfg := c.regs[regConfig]
	if !bool(c.ce) || cfg&configPwrUp == 0 || cfg&configPrimRx != 0 {
		return nil
	}
	if len(c.tx) == 0 || c.irq&statusMaxRT != 0 {
		return nil
	}
	acked := c.regs[regEnAA]&1 != 0 && c.regs[regSetupRetr]&0x0f != 0
	if acked && c.Lossy {
		c.irq |= statusMaxRT
		plos := c.regs[regObserveTx] >> 4
		if plos < 15 {
			plos++
		}
		c.regs[regObserveTx] = plos<<4 | c.regs[regSetupRetr]&0x0f
		return nil
	}
	pkt := c.tx[0]
	c.tx = c.tx[1:]
	c.irq |= statusTxDS
	c.regs[regObserveTx] &^= 0x0f
	c.sent = append(c.sent, Packet{Data: pkt})
	addr := append([]byte(nil), c.addrs[regTxAddr][:c.addrWidth()]...)
	return &airPacket{addr: addr, data: pkt}
}

func (c *Chip) addrWidth() int {
	return int(c.regs[regSetupAW]&0x03) + 2
}

func (c *Chip) status() byte {
	s := c.irq
	pipe := byte(0x07)
	if len(c.rx) > 0 {
		pipe = byte(c.rx[0].Pipe)
	}
	s |= pipe << 1
	if len(c.tx) >= fifoDepth {
		s |= 1
	}
	return s
}

func (c *Chip) fifoStatus() byte {
	var f byte
	if len(c.rx) == 0 {
		f |= 1 << 0
	}
	if len(c.rx) >= fifoDepth {
		f |= 1 << 1
	}
	if len(c.tx) == 0 {
		f |= 1 << 4
	}
	if len(c.tx) >= fifoDepth {
		f |= 1 << 5
	}
	return f
}

func (c *Chip) execute(op byte, in, out []byte) {
	switch {
	case op&0xe0 == 0x00:
		c.readRegister(op&0x1f, out)
	case op&0xe0 == 0x20:
		c.writeRegister(op&0x1f, in)
	case op == 0x60:
		if len(out) > 0 && len(c.rx) > 0 {
			out[0] = byte(len(c.rx[0].Data))
		}
	case op == 0x61:
		if len(c.rx) > 0 {
			copy(out, c.rx[0].Data)
			c.rx = c.rx[1:]
		}
	case op == 0xa0:
		if len(c.tx) < fifoDepth && len(in) > 0 {
			c.tx = append(c.tx, append([]byte(nil), in...))
		}
	case op == 0xe1:
		c.tx = nil
	case op == 0xe2:
		c.rx = nil
	}
}

func (c *Chip) readRegister(addr byte, out []byte) {
	if a, ok := c.addrs[addr]; ok {
		copy(out, a)
		return
	}
	if len(out) == 0 {
		return
	}
	switch addr {
	case regStatus:
		out[0] = c.status()
	case regFifoStatus:
		out[0] = c.fifoStatus()
	default:
		out[0] = c.regs[addr]
	}
}

func (c *Chip) writeRegister(addr byte, in []byte) {
	if _, ok := c.addrs[addr]; ok {
		a := c.addrs[addr]
		copy(a, in)
		return
	}
	if len(in) == 0 {
		return
	}
	v := in[0]
	switch addr {
	case regStatus:
		c.irq &^= v & statusIRQ
	case regObserveTx, regFifoStatus:
	case regRfCh:
		c.regs[addr] = v & 0x7f
		c.regs[regObserveTx] &^= 0xf0
	case regSetupAW:
		c.regs[addr] = v & 0x03
	default:
		if addr >= regRxPwP0 && addr < regRxPwP0+6 {
			v &= 0x3f
		}
		c.regs[addr] = v
	}
}

// Inject places a received payload in the RX FIFO and raises RX_DR. It
// reports false when the FIFO is full and the payload was lost.
func (c *Chip) Inject(pipe int, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rx) >= fifoDepth {
		return false
	}
	c.rx = append(c.rx, Packet{Pipe: pipe, Data: append([]byte(nil), data...)})
	c.irq |= statusRxDR
	return true
}

// CE returns the CE level.
func (c *Chip) CE() gpio.Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ce
}

// Reg returns the raw value of a single byte register.
func (c *Chip) Reg(addr byte) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch addr {
	case regStatus:
		return c.status()
	case regFifoStatus:
		return c.fifoStatus()
	}
	if a, ok := c.addrs[addr]; ok {
		return a[0]
	}
	return c.regs[addr&0x1f]
}

// SetReg overwrites a single byte register, bypassing SPI.
func (c *Chip) SetReg(addr, v byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[addr&0x1f] = v
}

// Addr returns the full contents of an address register.
func (c *Chip) Addr(addr byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.addrs[addr]...)
}

// Sent returns the packets transmitted so far.
func (c *Chip) Sent() []Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Packet(nil), c.sent...)
}

// TxQueued returns the number of packets in the TX FIFO.
func (c *Chip) TxQueued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tx)
}

// RxQueued returns the number of payloads in the RX FIFO.
func (c *Chip) RxQueued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rx)
}

// Count returns how many exchanges started with opcode op.
func (c *Chip) Count(op byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ops[op]
}

// Trace returns the opcodes of every exchange, in order.
func (c *Chip) Trace() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.trace...)
}

// ResetTrace forgets the recorded opcodes and counters.
func (c *Chip) ResetTrace() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trace = nil
	c.ops = make(map[byte]int)
}
