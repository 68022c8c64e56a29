package nrf24

import (
	"encoding/hex"
	"fmt"
)

// Address is a pipe or TX address, least significant byte first. It
// marshals as hex.
type Address []byte

func (a Address) String() string { return hex.EncodeToString(a) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	v, err := hex.DecodeString(string(b))
	if err != nil {
		return fmt.Errorf("nrf24: address %q: %w", b, err)
	}
	if len(v) < MinAddrBytes || len(v) > MaxAddrBytes {
		return fmt.Errorf("nrf24: address %q: length %d out of range [2,5]", b, len(v))
	}
	*a = v
	return nil
}

// InterruptMask selects the events kept off the IRQ pin.
type InterruptMask struct {
	RxDR  bool `yaml:"rx_dr" json:"rx_dr"`
	TxDS  bool `yaml:"tx_ds" json:"tx_ds"`
	MaxRT bool `yaml:"max_rt" json:"max_rt"`
}

// Profile is a complete radio setup applied through a Configurator.
type Profile struct {
	Channel      uint8    `yaml:"channel" json:"channel"`
	DataRate     DataRate `yaml:"data_rate" json:"data_rate"`
	Power        PALevel  `yaml:"power" json:"power"`
	CRC          CRCMode  `yaml:"crc" json:"crc"`
	AddressWidth uint8    `yaml:"address_width" json:"address_width"`

	// TxAddr is also written to pipe 0 unless RxAddrs sets it, so that
	// acknowledgments are received.
	TxAddr  Address         `yaml:"tx_addr" json:"tx_addr"`
	RxAddrs map[int]Address `yaml:"rx_addrs" json:"rx_addrs"`

	// RxPipes lists the enabled pipes, AutoAck the pipes that
	// acknowledge.
	RxPipes []int `yaml:"rx_pipes" json:"rx_pipes"`
	AutoAck []int `yaml:"auto_ack" json:"auto_ack"`

	// PayloadLengths maps pipe to static width. Pipes left out use
	// dynamic payload length.
	PayloadLengths map[int]uint8 `yaml:"payload_lengths" json:"payload_lengths"`

	RetransmitDelay uint8 `yaml:"retransmit_delay" json:"retransmit_delay"`
	RetransmitCount uint8 `yaml:"retransmit_count" json:"retransmit_count"`

	InterruptMask InterruptMask `yaml:"interrupt_mask" json:"interrupt_mask"`
}

// Clone returns a copy of p that shares no maps, slices or addresses
// with it.
func (p Profile) Clone() Profile {
	c := p
	c.TxAddr = cloneSlice(p.TxAddr)
	if p.RxAddrs != nil {
		c.RxAddrs = make(map[int]Address, len(p.RxAddrs))
		for pipe, addr := range p.RxAddrs {
			c.RxAddrs[pipe] = cloneSlice(addr)
		}
	}
	c.RxPipes = cloneSlice(p.RxPipes)
	c.AutoAck = cloneSlice(p.AutoAck)
	if p.PayloadLengths != nil {
		c.PayloadLengths = make(map[int]uint8, len(p.PayloadLengths))
		for pipe, n := range p.PayloadLengths {
			c.PayloadLengths[pipe] = n
		}
	}
	return c
}

// cloneSlice copies s, keeping nil and empty apart.
func cloneSlice[S ~[]E, E any](s S) S {
	if s == nil {
		return nil
	}
	return append(make(S, 0, len(s)), s...)
}

// DefaultProfile returns the setup the chip commonly ships with in
// examples: channel 76, 1Mbps, full power, 2 byte CRC, 5 byte address,
// pipes 0 and 1 enabled with auto-ack, 3 retransmits 500µs apart.
func DefaultProfile() Profile {
	return Profile{
		Channel:         76,
		DataRate:        DataRate1Mbps,
		Power:           PALevelMax,
		CRC:             CRCTwoBytes,
		AddressWidth:    5,
		TxAddr:          Address{0xe7, 0xe7, 0xe7, 0xe7, 0xe7},
		RxAddrs:         map[int]Address{1: {0xc2, 0xc2, 0xc2, 0xc2, 0xc2}},
		RxPipes:         []int{0, 1},
		AutoAck:         []int{0, 1},
		RetransmitDelay: 1,
		RetransmitCount: 3,
	}
}

func pipeList(pipes []int) ([PipesCount]bool, error) {
	var set [PipesCount]bool
	for _, p := range pipes {
		if p < 0 || p >= PipesCount {
			return set, fmt.Errorf("nrf24: pipe %d out of range [0,5]", p)
		}
		set[p] = true
	}
	return set, nil
}

// Validate checks every field against the chip's limits, so that Apply
// doesn't hit a contract violation.
func (p *Profile) Validate() error {
	if p.Channel >= 126 {
		return fmt.Errorf("nrf24: channel %d out of range [0,125]", p.Channel)
	}
	if p.Power > PALevelMax {
		return fmt.Errorf("nrf24: power level %d out of range [0,3]", p.Power)
	}
	if p.DataRate > DataRate250Kbps {
		return fmt.Errorf("nrf24: unknown data rate %d", p.DataRate)
	}
	if p.CRC > CRCTwoBytes {
		return fmt.Errorf("nrf24: unknown crc mode %d", p.CRC)
	}
	if p.AddressWidth < MinAddrBytes || p.AddressWidth > MaxAddrBytes {
		return fmt.Errorf("nrf24: address width %d out of range [2,5]", p.AddressWidth)
	}
	if len(p.TxAddr) != int(p.AddressWidth) {
		return fmt.Errorf("nrf24: tx address %s is not %d bytes", p.TxAddr, p.AddressWidth)
	}
	for pipe, addr := range p.RxAddrs {
		if pipe < 0 || pipe >= PipesCount {
			return fmt.Errorf("nrf24: pipe %d out of range [0,5]", pipe)
		}
		if len(addr) != int(p.AddressWidth) {
			return fmt.Errorf("nrf24: pipe %d address %s is not %d bytes", pipe, addr, p.AddressWidth)
		}
	}
	if _, err := pipeList(p.RxPipes); err != nil {
		return err
	}
	if _, err := pipeList(p.AutoAck); err != nil {
		return err
	}
	for pipe, n := range p.PayloadLengths {
		if pipe < 0 || pipe >= PipesCount {
			return fmt.Errorf("nrf24: pipe %d out of range [0,5]", pipe)
		}
		if n > MaxPayload {
			return fmt.Errorf("nrf24: pipe %d payload width %d out of range [0,32]", pipe, n)
		}
	}
	if p.RetransmitDelay > 15 || p.RetransmitCount > 15 {
		return fmt.Errorf("nrf24: retransmit delay %d / count %d out of range [0,15]",
			p.RetransmitDelay, p.RetransmitCount)
	}
	return nil
}

// Apply validates p and writes it to the chip.
func (p *Profile) Apply(c Configurator) error {
	if err := p.Validate(); err != nil {
		return err
	}
	rxPipes, _ := pipeList(p.RxPipes)
	autoAck, _ := pipeList(p.AutoAck)
	var lengths [PipesCount]uint8
	for pipe, n := range p.PayloadLengths {
		lengths[pipe] = n
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"address width", func() error { return c.SetAddressWidth(p.AddressWidth) }},
		{"channel", func() error { return c.SetFrequency(p.Channel) }},
		{"rf setup", func() error { return c.SetRF(p.DataRate, p.Power) }},
		{"crc", func() error { return c.SetCRC(p.CRC) }},
		{"auto retransmit", func() error { return c.SetAutoRetransmit(p.RetransmitDelay, p.RetransmitCount) }},
		{"auto ack", func() error { return c.SetAutoAck(autoAck) }},
		{"tx address", func() error { return c.SetTxAddr(p.TxAddr) }},
		{"rx addresses", func() error {
			if _, ok := p.RxAddrs[0]; !ok {
				if err := c.SetRxAddr(0, p.TxAddr); err != nil {
					return err
				}
			}
			for pipe := 0; pipe < PipesCount; pipe++ {
				if addr, ok := p.RxAddrs[pipe]; ok {
					if err := c.SetRxAddr(pipe, addr); err != nil {
						return err
					}
				}
			}
			return nil
		}},
		{"rx pipes", func() error { return c.SetPipesRxEnable(rxPipes) }},
		{"payload lengths", func() error { return c.SetPipesRxLengths(lengths) }},
		{"interrupt mask", func() error {
			return c.SetInterruptMask(p.InterruptMask.RxDR, p.InterruptMask.TxDS, p.InterruptMask.MaxRT)
		}},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("applying %s: %w", step.name, err)
		}
	}
	return nil
}
