// Package nrf24 drives the Nordic nRF24L01+ 2.4GHz transceiver over a
// full-duplex SPI bus and a chip-enable (CE) output line.
//
// The radio is always held by exactly one mode value:
//
//	StandbyMode  CE low, configuration freely writable
//	RxMode       CE high, the chip listens on its enabled pipes
//	TxMode       CE high only while a send is in flight
//
// Transitions consume the source mode and return the destination:
//
//	standby, err := nrf24.New(bus, ce)
//	tx, err := standby.Tx()
//	status, err := tx.Send(packet)
//	for {
//		res, err := tx.PollSend()
//		...
//	}
//	standby, err = tx.Standby()
//
// A mode that has been transitioned away from must not be used again;
// doing so panics. When a transition fails the source mode keeps the
// device and stays usable.
//
// Configuration methods (channel, data rate, CRC, addressing, auto-ack,
// interrupt mask...) are available on every mode through Configurator.
//
// The driver is single-threaded: it never locks, never spawns goroutines
// and only blocks inside the bus exchange. Callers that share a radio
// between goroutines serialize access themselves.
package nrf24
