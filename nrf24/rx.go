package nrf24

import (
	"fmt"
	"log/slog"
)

// RxMode is RX mode: PRIM_RX set, CE high, the chip listens.
type RxMode struct {
	handle
}

func newRx(d *Device) *RxMode {
	return &RxMode{handle{dev: d}}
}

// Name returns "rx".
func (r *RxMode) Name() string { return ModeRx }

func (r *RxMode) String() string { return "RxMode" }

// Standby lowers CE. Unread payloads stay in the RX FIFO.
func (r *RxMode) Standby() (*StandbyMode, error) {
	if err := r.Device().ceDisable(); err != nil {
		return nil, err
	}
	slog.Debug("nrf24 mode transition", "from", ModeRx, "to", ModeStandby)
	return newStandby(r.take()), nil
}

// CanRead returns the pipe of the next payload, if any.
func (r *RxMode) CanRead() (pipe int, ok bool, err error) {
	status, err := r.Status()
	if err != nil {
		return -1, false, err
	}
	pipe, ok = status.RxPipe()
	return pipe, ok, nil
}

// IsEmpty reports an empty RX FIFO.
func (r *RxMode) IsEmpty() (bool, error) {
	var fifo FifoStatus
	if _, err := r.Device().ReadRegister(&fifo); err != nil {
		return false, err
	}
	return fifo.RxEmpty(), nil
}

// IsFull reports a full RX FIFO.
func (r *RxMode) IsFull() (bool, error) {
	var fifo FifoStatus
	if _, err := r.Device().ReadRegister(&fifo); err != nil {
		return false, err
	}
	return fifo.RxFull(), nil
}

// Payload is one RX FIFO entry.
type Payload struct {
	Pipe int
	n    int
	data [MaxPayload]byte
}

// Bytes returns the payload data.
func (p *Payload) Bytes() []byte { return p.data[:p.n] }

// Len returns the payload width.
func (p *Payload) Len() int { return p.n }

func (p *Payload) String() string {
	return fmt.Sprintf("pipe %d: %x", p.Pipe, p.Bytes())
}

// Read takes exactly one payload off the RX FIFO. It returns ErrRxEmpty
// when there is none.
func (r *RxMode) Read() (*Payload, error) {
	pipe, ok, err := r.CanRead()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRxEmpty
	}

	width, err := r.payloadWidth(pipe)
	if err != nil {
		return nil, err
	}
	if width == 0 || width > MaxPayload {
		// The datasheet requires a flush when R_RX_PL_WID is out of range.
		if err := r.FlushRx(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %d bytes on pipe %d", ErrPayloadWidth, width, pipe)
	}

	p := &Payload{Pipe: pipe, n: int(width)}
	if _, err := r.Device().SendCommand(ReadRxPayloadCmd{Data: p.data[:p.n]}); err != nil {
		return nil, err
	}
	return p, nil
}

// payloadWidth returns the width of the head payload: R_RX_PL_WID for
// pipes with dynamic payload length, RX_PW_Pn otherwise.
func (r *RxMode) payloadWidth(pipe int) (uint8, error) {
	d := r.Device()
	var dynpd Dynpd
	if _, err := d.ReadRegister(&dynpd); err != nil {
		return 0, err
	}
	if dynpd.Pipe(pipe) {
		var cmd ReadRxWidthCmd
		if _, err := d.SendCommand(&cmd); err != nil {
			return 0, err
		}
		return cmd.Width, nil
	}
	pw := RxPw{Pipe: pipe}
	if _, err := d.ReadRegister(&pw); err != nil {
		return 0, err
	}
	return pw.Width, nil
}
