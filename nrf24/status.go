package nrf24

import "strconv"

// Status is the STATUS register. The chip shifts it out as byte 0 of
// every SPI exchange, so every command returns one.
//
// Writing a Status clears the interrupt flags that are set in it.
type Status byte

// rxPipeNone is the RX_P_NO value reported while the RX FIFO is empty.
const rxPipeNone = 0x07

// StatusClear returns a Status that, once written, clears the selected
// interrupt flags.
func StatusClear(rxDR, txDS, maxRT bool) Status {
	var s Status
	s.SetRxDR(rxDR)
	s.SetTxDS(txDS)
	s.SetMaxRT(maxRT)
	return s
}

func (Status) Addr() byte           { return RegStatus }
func (Status) Len() int             { return 1 }
func (s Status) encode(buf []byte)  { buf[0] = byte(s) }
func (s *Status) decode(buf []byte) { *s = Status(buf[0]) }

// TxFull reports a full TX FIFO.
func (s Status) TxFull() bool { return bit(byte(s), 0) }

// RxPNo returns the raw 3-bit RX_P_NO field.
func (s Status) RxPNo() uint8 { return field(byte(s), 1, 3) }

// RxPipe returns the pipe of the payload at the head of the RX FIFO.
// ok is false when the RX FIFO is empty.
func (s Status) RxPipe() (pipe int, ok bool) {
	n := s.RxPNo()
	if n >= PipesCount {
		return -1, false
	}
	return int(n), true
}

// MaxRT is set when a packet used up its auto retransmits. The packet
// stays at the head of the TX FIFO until it is flushed.
func (s Status) MaxRT() bool      { return bit(byte(s), 4) }
func (s *Status) SetMaxRT(v bool) { *s = Status(setBit(byte(*s), 4, v)) }

// TxDS is set when a packet was sent (and acknowledged, with auto-ack).
func (s Status) TxDS() bool      { return bit(byte(s), 5) }
func (s *Status) SetTxDS(v bool) { *s = Status(setBit(byte(*s), 5, v)) }

// RxDR is set when a payload arrived in the RX FIFO.
func (s Status) RxDR() bool      { return bit(byte(s), 6) }
func (s *Status) SetRxDR(v bool) { *s = Status(setBit(byte(*s), 6, v)) }

func (s Status) String() string {
	pipe := "-"
	if n, ok := s.RxPipe(); ok {
		pipe = strconv.Itoa(n)
	}
	return flags(byte(s), "", "RxDR", "TxDS", "MaxRT", "", "", "", "TxFull") + " RxPipe:" + pipe
}
