package nrf24

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by New when SETUP_AW reads back a value
	// the chip can't hold: the chip is absent or miswired.
	ErrNotConnected = errors.New("nrf24: chip not connected")

	// ErrRxEmpty is returned by RxMode.Read when there is nothing to read.
	ErrRxEmpty = errors.New("nrf24: rx fifo empty")

	// ErrPayloadWidth is returned when the chip reports a payload wider
	// than 32 bytes. The RX FIFO has been flushed.
	ErrPayloadWidth = errors.New("nrf24: invalid rx payload width")
)

// BusError is a failed SPI exchange. Exchanges are never retried.
type BusError struct {
	// Op is the command that failed.
	Op  string
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("nrf24: %s: bus transfer failed: %v", e.Op, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// PinError is a failed write to the CE line.
type PinError struct {
	High bool
	Err  error
}

func (e *PinError) Error() string {
	level := "low"
	if e.High {
		level = "high"
	}
	return fmt.Sprintf("nrf24: setting CE %s: %v", level, e.Err)
}

func (e *PinError) Unwrap() error { return e.Err }

// IsBusError returns true if err is or wraps a BusError.
func IsBusError(err error) bool {
	var be *BusError
	return errors.As(err, &be)
}
