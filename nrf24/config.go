package nrf24

import (
	"fmt"
	"strings"
)

// DataRate is the air data rate.
type DataRate uint8

const (
	DataRate1Mbps DataRate = iota
	DataRate2Mbps
	DataRate250Kbps
)

func (r DataRate) String() string {
	switch r {
	case DataRate250Kbps:
		return "250kbps"
	case DataRate1Mbps:
		return "1mbps"
	case DataRate2Mbps:
		return "2mbps"
	default:
		return "unknown"
	}
}

func (r DataRate) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *DataRate) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "250kbps":
		*r = DataRate250Kbps
	case "1mbps", "":
		*r = DataRate1Mbps
	case "2mbps":
		*r = DataRate2Mbps
	default:
		return fmt.Errorf("nrf24: unknown data rate %q", b)
	}
	return nil
}

// PALevel is the TX output power, RF_PWR in RF_SETUP.
type PALevel uint8

const (
	PALevelMin  PALevel = iota // -18dBm
	PALevelLow                 // -12dBm
	PALevelHigh                // -6dBm
	PALevelMax                 // 0dBm
)

func (p PALevel) String() string {
	if p > PALevelMax {
		return "unknown"
	}
	return fmt.Sprintf("%ddBm", 6*int(p)-18)
}

// CRCMode selects the packet CRC.
type CRCMode uint8

const (
	CRCDisabled CRCMode = iota
	CRCOneByte
	CRCTwoBytes
)

func (m CRCMode) String() string {
	switch m {
	case CRCDisabled:
		return "off"
	case CRCOneByte:
		return "1byte"
	case CRCTwoBytes:
		return "2bytes"
	default:
		return "unknown"
	}
}

func (m CRCMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *CRCMode) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "off", "disabled", "none":
		*m = CRCDisabled
	case "1byte", "8":
		*m = CRCOneByte
	case "2bytes", "16", "":
		*m = CRCTwoBytes
	default:
		return fmt.Errorf("nrf24: unknown crc mode %q", b)
	}
	return nil
}

func (m CRCMode) apply(c *Config) {
	switch m {
	case CRCDisabled:
		c.SetEnCRC(false)
		c.SetCRCO(false)
	case CRCOneByte:
		c.SetEnCRC(true)
		c.SetCRCO(false)
	case CRCTwoBytes:
		c.SetEnCRC(true)
		c.SetCRCO(true)
	default:
		panic(fmt.Sprintf("nrf24: unknown crc mode %d", m))
	}
}

// Configurator is implemented by StandbyMode, RxMode and TxMode. The
// underlying registers may be written in any power state; the driver
// doesn't police datasheet advice on when to change them.
type Configurator interface {
	Device() *Device
	Name() string

	Status() (Status, error)
	FlushRx() error
	FlushTx() error
	Frequency() (uint8, error)
	SetFrequency(ch uint8) error
	RF() (DataRate, PALevel, error)
	SetRF(rate DataRate, power PALevel) error
	SetCRC(mode CRCMode) error
	SetInterruptMask(rxDR, txDS, maxRT bool) error
	SetPipesRxEnable(pipes [PipesCount]bool) error
	SetRxAddr(pipe int, addr []byte) error
	SetTxAddr(addr []byte) error
	SetAutoRetransmit(delay, count uint8) error
	AutoAck() ([PipesCount]bool, error)
	SetAutoAck(pipes [PipesCount]bool) error
	AddressWidth() (uint8, error)
	SetAddressWidth(width uint8) error
	Interrupts() (rxDR, txDS, maxRT bool, err error)
	ClearInterrupts() error
	SetPipesRxLengths(lengths [PipesCount]uint8) error
}

var (
	_ Configurator = (*StandbyMode)(nil)
	_ Configurator = (*RxMode)(nil)
	_ Configurator = (*TxMode)(nil)
)

// Status fetches STATUS with a NOP.
func (h *handle) Status() (Status, error) {
	return h.Device().SendCommand(NopCmd{})
}

// FlushRx discards every payload not yet read from the RX FIFO.
func (h *handle) FlushRx() error {
	_, err := h.Device().SendCommand(FlushRxCmd{})
	return err
}

// FlushTx discards every packet not yet sent.
func (h *handle) FlushTx() error {
	_, err := h.Device().SendCommand(FlushTxCmd{})
	return err
}

// Frequency returns the RF channel: 2400MHz + ch MHz.
func (h *handle) Frequency() (uint8, error) {
	var ch RfCh
	if _, err := h.Device().ReadRegister(&ch); err != nil {
		return 0, err
	}
	return ch.Channel(), nil
}

// SetFrequency selects the RF channel. ch must be below 126.
func (h *handle) SetFrequency(ch uint8) error {
	if ch >= 126 {
		panic(fmt.Sprintf("nrf24: channel %d out of range [0,125]", ch))
	}
	var reg RfCh
	reg.SetChannel(ch)
	_, err := h.Device().WriteRegister(reg)
	return err
}

// RF returns the configured data rate and output power.
func (h *handle) RF() (DataRate, PALevel, error) {
	var reg RfSetup
	if _, err := h.Device().ReadRegister(&reg); err != nil {
		return 0, 0, err
	}
	return reg.DataRate(), PALevel(reg.RfPwr()), nil
}

// SetRF sets data rate and output power. power must be below 4.
func (h *handle) SetRF(rate DataRate, power PALevel) error {
	if power > PALevelMax {
		panic(fmt.Sprintf("nrf24: power level %d out of range [0,3]", power))
	}
	var reg RfSetup
	reg.SetRfPwr(uint8(power))
	switch rate {
	case DataRate250Kbps:
		reg.SetRfDrLow(true)
	case DataRate2Mbps:
		reg.SetRfDrHigh(true)
	case DataRate1Mbps:
	default:
		panic(fmt.Sprintf("nrf24: unknown data rate %d", rate))
	}
	_, err := h.Device().WriteRegister(reg)
	return err
}

// SetCRC sets the CRC mode in CONFIG.
func (h *handle) SetCRC(mode CRCMode) error {
	return h.Device().UpdateConfig(mode.apply)
}

// SetInterruptMask masks interrupts off the IRQ pin. A true flag keeps
// the corresponding event from asserting IRQ.
func (h *handle) SetInterruptMask(rxDR, txDS, maxRT bool) error {
	return h.Device().UpdateConfig(func(c *Config) {
		c.SetMaskRxDR(rxDR)
		c.SetMaskTxDS(txDS)
		c.SetMaskMaxRT(maxRT)
	})
}

// SetPipesRxEnable selects the RX pipes that accept packets.
func (h *handle) SetPipesRxEnable(pipes [PipesCount]bool) error {
	_, err := h.Device().WriteRegister(EnRxAddrFromBools(pipes))
	return err
}

// SetRxAddr sets the address of pipe. Pipes 2..5 only take the first
// (least significant) byte of addr.
func (h *handle) SetRxAddr(pipe int, addr []byte) error {
	_, err := h.Device().WriteRegister(NewRxAddr(pipe, addr))
	return err
}

// SetTxAddr sets the destination address.
func (h *handle) SetTxAddr(addr []byte) error {
	_, err := h.Device().WriteRegister(NewTxAddr(addr))
	return err
}

// SetAutoRetransmit sets the retransmit delay (in 250µs steps, 0..15)
// and count (0..15). SetAutoRetransmit(0, 0) disables retransmission.
func (h *handle) SetAutoRetransmit(delay, count uint8) error {
	if delay > 15 || count > 15 {
		panic(fmt.Sprintf("nrf24: retransmit delay %d / count %d out of range [0,15]", delay, count))
	}
	var reg SetupRetr
	reg.SetARD(delay)
	reg.SetARC(count)
	_, err := h.Device().WriteRegister(reg)
	return err
}

// AutoAck returns the auto acknowledgment setting of every pipe.
func (h *handle) AutoAck() ([PipesCount]bool, error) {
	var reg EnAA
	if _, err := h.Device().ReadRegister(&reg); err != nil {
		return [PipesCount]bool{}, err
	}
	return reg.Bools(), nil
}

// SetAutoAck enables auto acknowledgment per pipe.
func (h *handle) SetAutoAck(pipes [PipesCount]bool) error {
	_, err := h.Device().WriteRegister(EnAAFromBools(pipes))
	return err
}

// AddressWidth returns the address width in bytes.
func (h *handle) AddressWidth() (uint8, error) {
	var reg SetupAW
	if _, err := h.Device().ReadRegister(&reg); err != nil {
		return 0, err
	}
	return reg.Width(), nil
}

// SetAddressWidth sets the address width; width must be 2..5.
func (h *handle) SetAddressWidth(width uint8) error {
	_, err := h.Device().WriteRegister(SetupAWFromWidth(width))
	return err
}

// Interrupts returns the pending RX_DR, TX_DS and MAX_RT flags.
func (h *handle) Interrupts() (rxDR, txDS, maxRT bool, err error) {
	status, err := h.Status()
	if err != nil {
		return false, false, false, err
	}
	return status.RxDR(), status.TxDS(), status.MaxRT(), nil
}

// ClearInterrupts clears RX_DR, TX_DS and MAX_RT.
func (h *handle) ClearInterrupts() error {
	_, err := h.Device().WriteRegister(StatusClear(true, true, true))
	return err
}

// SetPipesRxLengths sets the payload width of every pipe. A width of 0
// selects dynamic payload length for that pipe and turns on EN_DPL.
func (h *handle) SetPipesRxLengths(lengths [PipesCount]uint8) error {
	d := h.Device()
	var dynamic [PipesCount]bool
	for i, n := range lengths {
		dynamic[i] = n == 0
	}
	dynpd := DynpdFromBools(dynamic)
	if dynpd != 0 {
		if _, err := UpdateRegister(d, func(f *Feature) { f.SetEnDPL(true) }); err != nil {
			return err
		}
	}
	if _, err := d.WriteRegister(dynpd); err != nil {
		return err
	}
	for pipe, n := range lengths {
		if _, err := d.WriteRegister(NewRxPw(pipe, n)); err != nil {
			return err
		}
	}
	return nil
}
