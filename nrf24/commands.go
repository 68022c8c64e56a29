package nrf24

import "fmt"

// Command opcodes.
const (
	OpReadRegister   = 0x00 // 000AAAAA
	OpWriteRegister  = 0x20 // 001AAAAA
	OpReadRxWidth    = 0x60
	OpReadRxPayload  = 0x61
	OpWriteTxPayload = 0xa0
	OpFlushTx        = 0xe1
	OpFlushRx        = 0xe2
	OpNop            = 0xff

	regAddrMask = 0x1f
)

// maxFrameLen is the longest frame: opcode plus a full payload.
const maxFrameLen = 1 + MaxPayload

// Command is one SPI exchange with the chip. The set of commands is
// closed; see the Cmd types in this package.
type Command interface {
	// Len returns the frame length, opcode included.
	Len() int
	// Encode fills the outgoing frame. buf is zeroed and Len bytes long.
	Encode(buf []byte)
	// Decode consumes the incoming frame. buf[0] is the Status.
	Decode(buf []byte)

	opcode() byte
}

// ReadRegisterCmd is R_REGISTER. The register is filled on Decode.
type ReadRegisterCmd struct {
	Reg ReadableRegister
}

func (c ReadRegisterCmd) opcode() byte      { return OpReadRegister | c.Reg.Addr()&regAddrMask }
func (c ReadRegisterCmd) Len() int          { return 1 + c.Reg.Len() }
func (c ReadRegisterCmd) Encode(buf []byte) { buf[0] = c.opcode() }
func (c ReadRegisterCmd) Decode(buf []byte) { c.Reg.decode(buf[1:]) }

func (c ReadRegisterCmd) String() string {
	return fmt.Sprintf("R_REGISTER(0x%02x)", c.Reg.Addr())
}

// WriteRegisterCmd is W_REGISTER.
type WriteRegisterCmd struct {
	Reg Register
}

func (c WriteRegisterCmd) opcode() byte  { return OpWriteRegister | c.Reg.Addr()&regAddrMask }
func (c WriteRegisterCmd) Len() int      { return 1 + c.Reg.Len() }
func (c WriteRegisterCmd) Decode([]byte) {}

func (c WriteRegisterCmd) Encode(buf []byte) {
	buf[0] = c.opcode()
	c.Reg.encode(buf[1:])
}

func (c WriteRegisterCmd) String() string {
	return fmt.Sprintf("W_REGISTER(0x%02x)", c.Reg.Addr())
}

// ReadRxPayloadCmd is R_RX_PAYLOAD. len(Data) bytes are read into Data.
type ReadRxPayloadCmd struct {
	Data []byte
}

func (c ReadRxPayloadCmd) opcode() byte      { return OpReadRxPayload }
func (c ReadRxPayloadCmd) Len() int          { return 1 + len(c.Data) }
func (c ReadRxPayloadCmd) Encode(buf []byte) { buf[0] = OpReadRxPayload }
func (c ReadRxPayloadCmd) Decode(buf []byte) { copy(c.Data, buf[1:]) }
func (c ReadRxPayloadCmd) String() string    { return "R_RX_PAYLOAD" }

// WriteTxPayloadCmd is W_TX_PAYLOAD.
type WriteTxPayloadCmd struct {
	Data []byte
}

func (c WriteTxPayloadCmd) opcode() byte   { return OpWriteTxPayload }
func (c WriteTxPayloadCmd) Len() int       { return 1 + len(c.Data) }
func (c WriteTxPayloadCmd) Decode([]byte)  {}
func (c WriteTxPayloadCmd) String() string { return "W_TX_PAYLOAD" }

func (c WriteTxPayloadCmd) Encode(buf []byte) {
	buf[0] = OpWriteTxPayload
	copy(buf[1:], c.Data)
}

// ReadRxWidthCmd is R_RX_PL_WID: the width of the payload at the head of
// the RX FIFO.
type ReadRxWidthCmd struct {
	Width uint8
}

func (c *ReadRxWidthCmd) opcode() byte      { return OpReadRxWidth }
func (c *ReadRxWidthCmd) Len() int          { return 2 }
func (c *ReadRxWidthCmd) Encode(buf []byte) { buf[0] = OpReadRxWidth }
func (c *ReadRxWidthCmd) Decode(buf []byte) { c.Width = buf[1] }
func (c *ReadRxWidthCmd) String() string    { return "R_RX_PL_WID" }

// FlushTxCmd is FLUSH_TX.
type FlushTxCmd struct{}

func (FlushTxCmd) opcode() byte      { return OpFlushTx }
func (FlushTxCmd) Len() int          { return 1 }
func (FlushTxCmd) Encode(buf []byte) { buf[0] = OpFlushTx }
func (FlushTxCmd) Decode([]byte)     {}
func (FlushTxCmd) String() string    { return "FLUSH_TX" }

// FlushRxCmd is FLUSH_RX.
type FlushRxCmd struct{}

func (FlushRxCmd) opcode() byte      { return OpFlushRx }
func (FlushRxCmd) Len() int          { return 1 }
func (FlushRxCmd) Encode(buf []byte) { buf[0] = OpFlushRx }
func (FlushRxCmd) Decode([]byte)     {}
func (FlushRxCmd) String() string    { return "FLUSH_RX" }

// NopCmd is NOP; it only fetches the Status.
type NopCmd struct{}

func (NopCmd) opcode() byte      { return OpNop }
func (NopCmd) Len() int          { return 1 }
func (NopCmd) Encode(buf []byte) { buf[0] = OpNop }
func (NopCmd) Decode([]byte)     {}
func (NopCmd) String() string    { return "NOP" }
