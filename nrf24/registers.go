package nrf24

import (
	"fmt"
	"strconv"
)

// Register addresses.
const (
	RegConfig     = 0x00
	RegEnAA       = 0x01
	RegEnRxAddr   = 0x02
	RegSetupAW    = 0x03
	RegSetupRetr  = 0x04
	RegRfCh       = 0x05
	RegRfSetup    = 0x06
	RegStatus     = 0x07
	RegObserveTx  = 0x08
	RegRPD        = 0x09
	RegRxAddrP0   = 0x0a
	RegTxAddr     = 0x10
	RegRxPwP0     = 0x11
	RegFifoStatus = 0x17
	RegDynpd      = 0x1c
	RegFeature    = 0x1d
)

const (
	// PipesCount is the number of RX data pipes.
	PipesCount = 6
	// MinAddrBytes is the shortest address the chip supports.
	MinAddrBytes = 2
	// MaxAddrBytes is the longest address the chip supports.
	MaxAddrBytes = 5
	// MaxPayload is the largest payload a FIFO entry can hold.
	MaxPayload = 32
)

// Register is a chip register that can be written with W_REGISTER.
type Register interface {
	// Addr returns the 5-bit register address.
	Addr() byte
	// Len returns the number of value bytes on the wire.
	Len() int

	encode(buf []byte)
}

// ReadableRegister is a Register that can also be filled from an
// R_REGISTER response. Pointers to register values implement it.
type ReadableRegister interface {
	Register

	decode(buf []byte)
}

// Encode returns the wire bytes of reg, least significant byte first.
func Encode(reg Register) []byte {
	buf := make([]byte, reg.Len())
	reg.encode(buf)
	return buf
}

func bit(b byte, n uint) bool {
	return b&(1<<n) != 0
}

func setBit(b byte, n uint, v bool) byte {
	if v {
		return b | 1<<n
	}
	return b &^ (1 << n)
}

func field(b byte, lo, width uint) byte {
	return b >> lo & (1<<width - 1)
}

func setField(b byte, lo, width uint, v byte) byte {
	mask := byte(1<<width-1) << lo
	return b&^mask | v<<lo&mask
}

// flags renders set bits as name+ and cleared bits as name-.
func flags(b byte, names ...string) string {
	buf := make([]byte, 0, 64)
	for i, name := range names {
		if name == "" {
			continue
		}
		if len(buf) > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, name...)
		if bit(b, uint(len(names)-1-i)) {
			buf = append(buf, '+')
		} else {
			buf = append(buf, '-')
		}
	}
	return string(buf)
}

func checkPipe(pipe int) {
	if uint(pipe) >= PipesCount {
		panic("nrf24: pipe " + strconv.Itoa(pipe) + " out of range [0,5]")
	}
}

// Config is the CONFIG register.
type Config byte

func (Config) Addr() byte             { return RegConfig }
func (Config) Len() int               { return 1 }
func (c Config) encode(buf []byte)    { buf[0] = byte(c) }
func (c *Config) decode(buf []byte)   { *c = Config(buf[0]) }
func (c Config) PrimRx() bool         { return bit(byte(c), 0) }
func (c *Config) SetPrimRx(v bool)    { *c = Config(setBit(byte(*c), 0, v)) }
func (c Config) PwrUp() bool          { return bit(byte(c), 1) }
func (c *Config) SetPwrUp(v bool)     { *c = Config(setBit(byte(*c), 1, v)) }
func (c Config) CRCO() bool           { return bit(byte(c), 2) }
func (c *Config) SetCRCO(v bool)      { *c = Config(setBit(byte(*c), 2, v)) }
func (c Config) EnCRC() bool          { return bit(byte(c), 3) }
func (c *Config) SetEnCRC(v bool)     { *c = Config(setBit(byte(*c), 3, v)) }
func (c Config) MaskMaxRT() bool      { return bit(byte(c), 4) }
func (c *Config) SetMaskMaxRT(v bool) { *c = Config(setBit(byte(*c), 4, v)) }
func (c Config) MaskTxDS() bool       { return bit(byte(c), 5) }
func (c *Config) SetMaskTxDS(v bool)  { *c = Config(setBit(byte(*c), 5, v)) }
func (c Config) MaskRxDR() bool       { return bit(byte(c), 6) }
func (c *Config) SetMaskRxDR(v bool)  { *c = Config(setBit(byte(*c), 6, v)) }

func (c Config) String() string {
	return flags(byte(c), "", "MaskRxDR", "MaskTxDS", "MaskMaxRT", "EnCRC", "CRCO", "PwrUp", "PrimRx")
}

// pipeBits packs one bool per pipe, pipe n at bit n.
func pipeBits(pipes [PipesCount]bool) byte {
	var b byte
	for i, on := range pipes {
		b = setBit(b, uint(i), on)
	}
	return b
}

func bitsPipes(b byte) [PipesCount]bool {
	var pipes [PipesCount]bool
	for i := range pipes {
		pipes[i] = bit(b, uint(i))
	}
	return pipes
}

func pipesString(b byte) string {
	return flags(b, "", "", "P5", "P4", "P3", "P2", "P1", "P0")
}

// EnAA is the EN_AA register: auto acknowledgment per pipe.
type EnAA byte

// EnAAFromBools builds EN_AA from one flag per pipe.
func EnAAFromBools(pipes [PipesCount]bool) EnAA { return EnAA(pipeBits(pipes)) }

func (EnAA) Addr() byte                { return RegEnAA }
func (EnAA) Len() int                  { return 1 }
func (r EnAA) encode(buf []byte)       { buf[0] = byte(r) }
func (r *EnAA) decode(buf []byte)      { *r = EnAA(buf[0]) }
func (r EnAA) Bools() [PipesCount]bool { return bitsPipes(byte(r)) }
func (r EnAA) Pipe(n int) bool {
	checkPipe(n)
	return bit(byte(r), uint(n))
}
func (r *EnAA) SetPipe(n int, v bool) {
	checkPipe(n)
	*r = EnAA(setBit(byte(*r), uint(n), v))
}
func (r EnAA) String() string { return pipesString(byte(r)) }

// EnRxAddr is the EN_RXADDR register: enabled RX pipes.
type EnRxAddr byte

// EnRxAddrFromBools builds EN_RXADDR from one flag per pipe.
func EnRxAddrFromBools(pipes [PipesCount]bool) EnRxAddr { return EnRxAddr(pipeBits(pipes)) }

func (EnRxAddr) Addr() byte                { return RegEnRxAddr }
func (EnRxAddr) Len() int                  { return 1 }
func (r EnRxAddr) encode(buf []byte)       { buf[0] = byte(r) }
func (r *EnRxAddr) decode(buf []byte)      { *r = EnRxAddr(buf[0]) }
func (r EnRxAddr) Bools() [PipesCount]bool { return bitsPipes(byte(r)) }
func (r EnRxAddr) Pipe(n int) bool {
	checkPipe(n)
	return bit(byte(r), uint(n))
}
func (r *EnRxAddr) SetPipe(n int, v bool) {
	checkPipe(n)
	*r = EnRxAddr(setBit(byte(*r), uint(n), v))
}
func (r EnRxAddr) String() string { return pipesString(byte(r)) }

// Dynpd is the DYNPD register: dynamic payload length per pipe.
type Dynpd byte

// DynpdFromBools builds DYNPD from one flag per pipe.
func DynpdFromBools(pipes [PipesCount]bool) Dynpd { return Dynpd(pipeBits(pipes)) }

func (Dynpd) Addr() byte                { return RegDynpd }
func (Dynpd) Len() int                  { return 1 }
func (r Dynpd) encode(buf []byte)       { buf[0] = byte(r) }
func (r *Dynpd) decode(buf []byte)      { *r = Dynpd(buf[0]) }
func (r Dynpd) Bools() [PipesCount]bool { return bitsPipes(byte(r)) }
func (r Dynpd) Pipe(n int) bool {
	checkPipe(n)
	return bit(byte(r), uint(n))
}
func (r *Dynpd) SetPipe(n int, v bool) {
	checkPipe(n)
	*r = Dynpd(setBit(byte(*r), uint(n), v))
}
func (r Dynpd) String() string { return pipesString(byte(r)) }

// SetupAW is the SETUP_AW register. The raw field holds width-2.
type SetupAW byte

// SetupAWFromWidth encodes an address width of 2..5 bytes. Other widths
// panic.
func SetupAWFromWidth(width uint8) SetupAW {
	if width < MinAddrBytes || width > MaxAddrBytes {
		panic(fmt.Sprintf("nrf24: address width %d out of range [2,5]", width))
	}
	return SetupAW(width - MinAddrBytes)
}

func (SetupAW) Addr() byte           { return RegSetupAW }
func (SetupAW) Len() int             { return 1 }
func (r SetupAW) encode(buf []byte)  { buf[0] = byte(r) }
func (r *SetupAW) decode(buf []byte) { *r = SetupAW(buf[0]) }
func (r SetupAW) AW() uint8          { return field(byte(r), 0, 2) }
func (r *SetupAW) SetAW(v uint8)     { *r = SetupAW(setField(byte(*r), 0, 2, v)) }
func (r SetupAW) Width() uint8       { return r.AW() + MinAddrBytes }
func (r SetupAW) String() string     { return strconv.Itoa(int(r.Width())) + " bytes" }

// valid reports whether the reserved bits read back as zero. An absent
// chip leaves MISO floating and reads as 0xff.
func (r SetupAW) valid() bool { return byte(r)&^0x03 == 0 }

// SetupRetr is the SETUP_RETR register.
type SetupRetr byte

func (SetupRetr) Addr() byte           { return RegSetupRetr }
func (SetupRetr) Len() int             { return 1 }
func (r SetupRetr) encode(buf []byte)  { buf[0] = byte(r) }
func (r *SetupRetr) decode(buf []byte) { *r = SetupRetr(buf[0]) }

// ARC is the auto retransmit count (0 disables retransmission).
func (r SetupRetr) ARC() uint8      { return field(byte(r), 0, 4) }
func (r *SetupRetr) SetARC(v uint8) { *r = SetupRetr(setField(byte(*r), 0, 4, v)) }

// ARD is the auto retransmit delay in steps of 250µs (0 means 250µs).
func (r SetupRetr) ARD() uint8      { return field(byte(r), 4, 4) }
func (r *SetupRetr) SetARD(v uint8) { *r = SetupRetr(setField(byte(*r), 4, 4, v)) }

func (r SetupRetr) String() string {
	return fmt.Sprintf("%d times, %dus", r.ARC(), (int(r.ARD())+1)*250)
}

// RfCh is the RF_CH register.
type RfCh byte

func (RfCh) Addr() byte            { return RegRfCh }
func (RfCh) Len() int              { return 1 }
func (r RfCh) encode(buf []byte)   { buf[0] = byte(r) }
func (r *RfCh) decode(buf []byte)  { *r = RfCh(buf[0]) }
func (r RfCh) Channel() uint8      { return field(byte(r), 0, 7) }
func (r *RfCh) SetChannel(v uint8) { *r = RfCh(setField(byte(*r), 0, 7, v)) }
func (r RfCh) String() string      { return strconv.Itoa(int(r.Channel())) }

// RfSetup is the RF_SETUP register.
type RfSetup byte

func (RfSetup) Addr() byte            { return RegRfSetup }
func (RfSetup) Len() int              { return 1 }
func (r RfSetup) encode(buf []byte)   { buf[0] = byte(r) }
func (r *RfSetup) decode(buf []byte)  { *r = RfSetup(buf[0]) }
func (r RfSetup) RfPwr() uint8        { return field(byte(r), 1, 2) }
func (r *RfSetup) SetRfPwr(v uint8)   { *r = RfSetup(setField(byte(*r), 1, 2, v)) }
func (r RfSetup) RfDrHigh() bool      { return bit(byte(r), 3) }
func (r *RfSetup) SetRfDrHigh(v bool) { *r = RfSetup(setBit(byte(*r), 3, v)) }
func (r RfSetup) PllLock() bool       { return bit(byte(r), 4) }
func (r *RfSetup) SetPllLock(v bool)  { *r = RfSetup(setBit(byte(*r), 4, v)) }
func (r RfSetup) RfDrLow() bool       { return bit(byte(r), 5) }
func (r *RfSetup) SetRfDrLow(v bool)  { *r = RfSetup(setBit(byte(*r), 5, v)) }
func (r RfSetup) ContWave() bool      { return bit(byte(r), 7) }
func (r *RfSetup) SetContWave(v bool) { *r = RfSetup(setBit(byte(*r), 7, v)) }

// DataRate decodes RF_DR_LOW and RF_DR_HIGH.
func (r RfSetup) DataRate() DataRate {
	switch {
	case r.RfDrLow():
		return DataRate250Kbps
	case r.RfDrHigh():
		return DataRate2Mbps
	default:
		return DataRate1Mbps
	}
}

func (r RfSetup) String() string {
	return flags(byte(r), "ContWave", "", "DRLow", "PllLock", "DRHigh", "", "", "") +
		" Pwr:" + PALevel(r.RfPwr()).String()
}

// ObserveTx is the read-only OBSERVE_TX register.
type ObserveTx byte

func (ObserveTx) Addr() byte           { return RegObserveTx }
func (ObserveTx) Len() int             { return 1 }
func (r ObserveTx) encode(buf []byte)  { buf[0] = byte(r) }
func (r *ObserveTx) decode(buf []byte) { *r = ObserveTx(buf[0]) }

// ArcCnt counts retransmits of the current packet.
func (r ObserveTx) ArcCnt() uint8 { return field(byte(r), 0, 4) }

// PlosCnt counts lost packets; it saturates at 15 and resets on an RF_CH
// write.
func (r ObserveTx) PlosCnt() uint8 { return field(byte(r), 4, 4) }

func (r ObserveTx) String() string {
	return fmt.Sprintf("%d pkt lost, %d retr", r.PlosCnt(), r.ArcCnt())
}

// RPD is the received power detector register.
type RPD byte

func (RPD) Addr() byte           { return RegRPD }
func (RPD) Len() int             { return 1 }
func (r RPD) encode(buf []byte)  { buf[0] = byte(r) }
func (r *RPD) decode(buf []byte) { *r = RPD(buf[0]) }

// Detected reports a received power above -64dBm.
func (r RPD) Detected() bool { return bit(byte(r), 0) }

func (r RPD) String() string {
	if r.Detected() {
		return "carrier"
	}
	return "-"
}

// FifoStatus is the read-only FIFO_STATUS register.
type FifoStatus byte

func (FifoStatus) Addr() byte           { return RegFifoStatus }
func (FifoStatus) Len() int             { return 1 }
func (r FifoStatus) encode(buf []byte)  { buf[0] = byte(r) }
func (r *FifoStatus) decode(buf []byte) { *r = FifoStatus(buf[0]) }
func (r FifoStatus) RxEmpty() bool      { return bit(byte(r), 0) }
func (r FifoStatus) RxFull() bool       { return bit(byte(r), 1) }
func (r FifoStatus) TxEmpty() bool      { return bit(byte(r), 4) }
func (r FifoStatus) TxFull() bool       { return bit(byte(r), 5) }
func (r FifoStatus) TxReuse() bool      { return bit(byte(r), 6) }

func (r FifoStatus) String() string {
	return flags(byte(r), "", "TxReuse", "TxFull", "TxEmpty", "", "", "RxFull", "RxEmpty")
}

// Feature is the FEATURE register.
type Feature byte

func (Feature) Addr() byte            { return RegFeature }
func (Feature) Len() int              { return 1 }
func (r Feature) encode(buf []byte)   { buf[0] = byte(r) }
func (r *Feature) decode(buf []byte)  { *r = Feature(buf[0]) }
func (r Feature) EnDynAck() bool      { return bit(byte(r), 0) }
func (r *Feature) SetEnDynAck(v bool) { *r = Feature(setBit(byte(*r), 0, v)) }
func (r Feature) EnAckPay() bool      { return bit(byte(r), 1) }
func (r *Feature) SetEnAckPay(v bool) { *r = Feature(setBit(byte(*r), 1, v)) }
func (r Feature) EnDPL() bool         { return bit(byte(r), 2) }
func (r *Feature) SetEnDPL(v bool)    { *r = Feature(setBit(byte(*r), 2, v)) }

func (r Feature) String() string {
	return flags(byte(r), "", "", "", "", "", "DPL", "AckPay", "DynAck")
}

// RxPw is one of the RX_PW_P0..RX_PW_P5 registers. Width 0 means the
// pipe uses dynamic payload length.
type RxPw struct {
	Pipe  int
	Width uint8
}

// NewRxPw returns the payload width register of pipe. Widths above 32
// panic.
func NewRxPw(pipe int, width uint8) RxPw {
	checkPipe(pipe)
	if width > MaxPayload {
		panic(fmt.Sprintf("nrf24: payload width %d out of range [0,32]", width))
	}
	return RxPw{Pipe: pipe, Width: width}
}

func (r RxPw) Addr() byte {
	checkPipe(r.Pipe)
	return RegRxPwP0 + byte(r.Pipe)
}

func (RxPw) Len() int             { return 1 }
func (r RxPw) encode(buf []byte)  { buf[0] = r.Width & 0x3f }
func (r *RxPw) decode(buf []byte) { r.Width = buf[0] & 0x3f }
func (r RxPw) Dynamic() bool      { return r.Width == 0 }

func (r RxPw) String() string {
	if r.Dynamic() {
		return "dynamic"
	}
	return strconv.Itoa(int(r.Width)) + " bytes"
}

// AddrReg holds the bytes of an address register, least significant byte
// first as they travel on the wire.
type AddrReg struct {
	addr byte
	n    int
	b    [MaxAddrBytes]byte
}

func checkAddrLen(n int) {
	if n < MinAddrBytes || n > MaxAddrBytes {
		panic(fmt.Sprintf("nrf24: address length %d out of range [2,5]", n))
	}
}

// NewTxAddr builds TX_ADDR from 2..5 bytes. Other lengths panic.
func NewTxAddr(addr []byte) AddrReg {
	checkAddrLen(len(addr))
	r := AddrReg{addr: RegTxAddr, n: len(addr)}
	copy(r.b[:], addr)
	return r
}

// NewRxAddr builds RX_ADDR_Pn from 2..5 bytes. Pipes 2..5 only store the
// least significant byte; the rest is shared with pipe 1.
func NewRxAddr(pipe int, addr []byte) AddrReg {
	checkPipe(pipe)
	checkAddrLen(len(addr))
	r := AddrReg{addr: RegRxAddrP0 + byte(pipe), n: len(addr)}
	if pipe > 1 {
		r.n = 1
	}
	copy(r.b[:], addr[:r.n])
	return r
}

// TxAddrBuf returns a TX_ADDR register ready to receive width bytes.
func TxAddrBuf(width int) AddrReg {
	checkAddrLen(width)
	return AddrReg{addr: RegTxAddr, n: width}
}

// RxAddrBuf returns an RX_ADDR_Pn register ready to be read.
func RxAddrBuf(pipe, width int) AddrReg {
	checkPipe(pipe)
	checkAddrLen(width)
	if pipe > 1 {
		width = 1
	}
	return AddrReg{addr: RegRxAddrP0 + byte(pipe), n: width}
}

func (r AddrReg) Addr() byte         { return r.addr }
func (r AddrReg) Len() int           { return r.n }
func (r AddrReg) encode(buf []byte)  { copy(buf, r.b[:r.n]) }
func (r *AddrReg) decode(buf []byte) { copy(r.b[:r.n], buf) }
func (r AddrReg) Bytes() []byte      { return append([]byte(nil), r.b[:r.n]...) }
func (r AddrReg) String() string     { return fmt.Sprintf("%x", r.b[:r.n]) }
