package nrf24

import (
	"fmt"
	"log/slog"
)

// TxMode is TX mode with its TX settling and Standby-II sub-states. CE
// is high while packets are in flight and low once the FIFO drained.
//
// The datasheet advises against staying in TX mode for more than 4ms at
// a time; no effect has been observed when exceeding it.
type TxMode struct {
	handle
}

func newTx(d *Device) *TxMode {
	return &TxMode{handle{dev: d}}
}

// Name returns "tx".
func (t *TxMode) Name() string { return ModeTx }

func (t *TxMode) String() string { return "TxMode" }

// SendResult is the outcome of PollSend.
type SendResult int

const (
	// SendPending means packets are still in the TX FIFO.
	SendPending SendResult = iota
	// SendDelivered means the TX FIFO drained. Without auto-ack this
	// only says the packets went on air.
	SendDelivered
	// SendFailed means a packet hit the retransmit limit. It and every
	// packet queued behind it were flushed.
	SendFailed
)

func (r SendResult) String() string {
	switch r {
	case SendPending:
		return "pending"
	case SendDelivered:
		return "delivered"
	case SendFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Standby drains the TX FIFO (see WaitEmpty) and returns to Standby.
func (t *TxMode) Standby() (*StandbyMode, error) {
	if err := t.WaitEmpty(); err != nil {
		return nil, err
	}
	slog.Debug("nrf24 mode transition", "from", ModeTx, "to", ModeStandby)
	return newStandby(t.take()), nil
}

func (t *TxMode) fifo() (Status, FifoStatus, error) {
	var fifo FifoStatus
	status, err := t.Device().ReadRegister(&fifo)
	return status, fifo, err
}

// IsEmpty reports an empty TX FIFO.
func (t *TxMode) IsEmpty() (bool, error) {
	_, fifo, err := t.fifo()
	return fifo.TxEmpty(), err
}

// IsFull reports a full TX FIFO.
func (t *TxMode) IsFull() (bool, error) {
	_, fifo, err := t.fifo()
	return fifo.TxFull(), err
}

// CanSend reports room in the TX FIFO.
func (t *TxMode) CanSend() (bool, error) {
	full, err := t.IsFull()
	return !full, err
}

// Send queues packet (1..32 bytes) and raises CE. It returns the Status
// read while writing and doesn't wait for the transmission.
func (t *TxMode) Send(packet []byte) (Status, error) {
	if len(packet) == 0 || len(packet) > MaxPayload {
		panic(fmt.Sprintf("nrf24: packet length %d out of range [1,32]", len(packet)))
	}
	d := t.Device()
	status, err := d.SendCommand(WriteTxPayloadCmd{Data: packet})
	if err != nil {
		return status, err
	}
	return status, d.ceEnable()
}

// PollSend checks on the packets queued by Send without blocking.
//
// Auto-ack and auto-retransmit must be enabled to learn whether a packet
// actually arrived; without them the chip sends once and reports
// success.
func (t *TxMode) PollSend() (SendResult, error) {
	status, fifo, err := t.fifo()
	if err != nil {
		return SendPending, err
	}
	switch {
	case status.MaxRT():
		// MAX_RT leaves the packet at the head of the FIFO. Without the
		// flush the chip retries it forever.
		if _, err := t.Device().SendCommand(FlushTxCmd{}); err != nil {
			return SendPending, err
		}
		slog.Debug("nrf24 retransmit limit reached, tx fifo flushed")
		if err := t.clearInterruptsAndCE(); err != nil {
			return SendPending, err
		}
		return SendFailed, nil
	case fifo.TxEmpty():
		if err := t.clearInterruptsAndCE(); err != nil {
			return SendPending, err
		}
		return SendDelivered, nil
	default:
		// A packet may have been queued while CE was low.
		if err := t.Device().ceEnable(); err != nil {
			return SendPending, err
		}
		return SendPending, nil
	}
}

// clearInterruptsAndCE clears TX_DS and MAX_RT so the next PollSend
// sees fresh flags, then lowers CE to save power.
func (t *TxMode) clearInterruptsAndCE() error {
	d := t.Device()
	if _, err := d.WriteRegister(StatusClear(false, true, true)); err != nil {
		return err
	}
	return d.ceDisable()
}

// WaitEmpty blocks until the TX FIFO is empty, then lowers CE.
//
// A packet that reaches the retransmit limit is flushed together with
// every packet behind it, and the loop carries on.
func (t *TxMode) WaitEmpty() error {
	d := t.Device()
	for {
		status, fifo, err := t.fifo()
		if err != nil {
			return err
		}
		empty := fifo.TxEmpty()
		if !empty {
			if err := d.ceEnable(); err != nil {
				return err
			}
		}
		// TX won't continue while MAX_RT is set.
		if status.MaxRT() {
			if _, err := d.SendCommand(FlushTxCmd{}); err != nil {
				return err
			}
			slog.Debug("nrf24 retransmit limit reached, tx fifo flushed")
			if _, err := d.WriteRegister(StatusClear(false, true, true)); err != nil {
				return err
			}
		}
		if empty {
			break
		}
	}
	return d.ceDisable()
}

// Observe reads OBSERVE_TX: lost packet and retransmit counters.
func (t *TxMode) Observe() (ObserveTx, error) {
	var obs ObserveTx
	_, err := t.Device().ReadRegister(&obs)
	return obs, err
}
