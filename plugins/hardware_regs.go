package plugins

import "github.com/linht/nrf24-manager/nrf24"

// registerEntry describes one register of the dump. newReg returns a
// register ready to be read, given the configured address width.
type registerEntry struct {
	Addr   uint8
	Name   string
	Desc   string
	newReg func(width int) nrf24.ReadableRegister
}

func byteReg[R any, P interface {
	*R
	nrf24.ReadableRegister
}]() func(int) nrf24.ReadableRegister {
	return func(int) nrf24.ReadableRegister { return P(new(R)) }
}

func rxAddrReg(pipe int) func(int) nrf24.ReadableRegister {
	return func(width int) nrf24.ReadableRegister {
		r := nrf24.RxAddrBuf(pipe, width)
		return &r
	}
}

func rxPwReg(pipe int) func(int) nrf24.ReadableRegister {
	return func(int) nrf24.ReadableRegister { return &nrf24.RxPw{Pipe: pipe} }
}

// registerMap lists the registers in address order for the UI dump.
var registerMap = []registerEntry{
	{nrf24.RegConfig, "CONFIG", "Interrupt masks, CRC, power and RX/TX control", byteReg[nrf24.Config]()},
	{nrf24.RegEnAA, "EN_AA", "Auto acknowledgment per pipe", byteReg[nrf24.EnAA]()},
	{nrf24.RegEnRxAddr, "EN_RXADDR", "Enabled RX pipes", byteReg[nrf24.EnRxAddr]()},
	{nrf24.RegSetupAW, "SETUP_AW", "Address width", byteReg[nrf24.SetupAW]()},
	{nrf24.RegSetupRetr, "SETUP_RETR", "Auto retransmit delay and count", byteReg[nrf24.SetupRetr]()},
	{nrf24.RegRfCh, "RF_CH", "RF channel (2400 + n MHz)", byteReg[nrf24.RfCh]()},
	{nrf24.RegRfSetup, "RF_SETUP", "Data rate and output power", byteReg[nrf24.RfSetup]()},
	{nrf24.RegStatus, "STATUS", "Interrupt flags, RX pipe, TX full", byteReg[nrf24.Status]()},
	{nrf24.RegObserveTx, "OBSERVE_TX", "Lost and retransmitted packet counters", byteReg[nrf24.ObserveTx]()},
	{nrf24.RegRPD, "RPD", "Received power detector", byteReg[nrf24.RPD]()},
	{nrf24.RegRxAddrP0, "RX_ADDR_P0", "Pipe 0 address", rxAddrReg(0)},
	{nrf24.RegRxAddrP0 + 1, "RX_ADDR_P1", "Pipe 1 address", rxAddrReg(1)},
	{nrf24.RegRxAddrP0 + 2, "RX_ADDR_P2", "Pipe 2 address LSB", rxAddrReg(2)},
	{nrf24.RegRxAddrP0 + 3, "RX_ADDR_P3", "Pipe 3 address LSB", rxAddrReg(3)},
	{nrf24.RegRxAddrP0 + 4, "RX_ADDR_P4", "Pipe 4 address LSB", rxAddrReg(4)},
	{nrf24.RegRxAddrP0 + 5, "RX_ADDR_P5", "Pipe 5 address LSB", rxAddrReg(5)},
	{nrf24.RegTxAddr, "TX_ADDR", "Destination address", func(width int) nrf24.ReadableRegister {
		r := nrf24.TxAddrBuf(width)
		return &r
	}},
	{nrf24.RegRxPwP0, "RX_PW_P0", "Pipe 0 payload width", rxPwReg(0)},
	{nrf24.RegRxPwP0 + 1, "RX_PW_P1", "Pipe 1 payload width", rxPwReg(1)},
	{nrf24.RegRxPwP0 + 2, "RX_PW_P2", "Pipe 2 payload width", rxPwReg(2)},
	{nrf24.RegRxPwP0 + 3, "RX_PW_P3", "Pipe 3 payload width", rxPwReg(3)},
	{nrf24.RegRxPwP0 + 4, "RX_PW_P4", "Pipe 4 payload width", rxPwReg(4)},
	{nrf24.RegRxPwP0 + 5, "RX_PW_P5", "Pipe 5 payload width", rxPwReg(5)},
	{nrf24.RegFifoStatus, "FIFO_STATUS", "TX and RX FIFO state", byteReg[nrf24.FifoStatus]()},
	{nrf24.RegDynpd, "DYNPD", "Dynamic payload length per pipe", byteReg[nrf24.Dynpd]()},
	{nrf24.RegFeature, "FEATURE", "Dynamic length, ack payload, dynamic ack", byteReg[nrf24.Feature]()},
}

// RegisterDescriptions maps register address to a short description.
var RegisterDescriptions = func() map[uint8]string {
	m := make(map[uint8]string, len(registerMap))
	for _, e := range registerMap {
		m[e.Addr] = e.Name + " - " + e.Desc
	}
	return m
}()
