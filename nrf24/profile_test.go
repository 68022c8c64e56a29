package nrf24

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
	"gotest.tools/v3/assert"

	"github.com/linht/nrf24-manager/simchip"
)

func TestDefaultProfileApply(t *testing.T) {
	chip, s := newSim(t)
	p := DefaultProfile()
	assert.NilError(t, p.Apply(s))

	assert.Equal(t, chip.Reg(RegRfCh), byte(76))
	assert.Equal(t, chip.Reg(RegRfSetup), byte(0x06))
	assert.Equal(t, chip.Reg(RegSetupAW), byte(0x03))
	assert.Equal(t, chip.Reg(RegSetupRetr), byte(0x13))
	assert.Equal(t, chip.Reg(RegEnAA), byte(0x03))
	assert.Equal(t, chip.Reg(RegEnRxAddr), byte(0x03))
	assert.Equal(t, chip.Reg(RegDynpd), byte(0x3f))
	assert.Equal(t, chip.Reg(RegConfig), byte(0x0e))
	assert.DeepEqual(t, chip.Addr(RegTxAddr), []byte{0xe7, 0xe7, 0xe7, 0xe7, 0xe7})
	assert.DeepEqual(t, chip.Addr(RegRxAddrP0), []byte{0xe7, 0xe7, 0xe7, 0xe7, 0xe7})
	assert.DeepEqual(t, chip.Addr(RegRxAddrP0 + 1), []byte{0xc2, 0xc2, 0xc2, 0xc2, 0xc2})
}

func TestProfileStaticLengths(t *testing.T) {
	chip, s := newSim(t)
	p := DefaultProfile()
	p.PayloadLengths = map[int]uint8{1: 16}
	p.RxAddrs[0] = Address{1, 2, 3, 4, 5}
	assert.NilError(t, p.Apply(s))

	assert.Equal(t, chip.Reg(RegDynpd), byte(0x3d))
	assert.Equal(t, chip.Reg(RegRxPwP0 + 1), byte(16))
	assert.DeepEqual(t, chip.Addr(RegRxAddrP0), []byte{1, 2, 3, 4, 5})
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Profile)
		err    string
	}{
		{"channel", func(p *Profile) { p.Channel = 126 }, "channel 126"},
		{"power", func(p *Profile) { p.Power = 4 }, "power level 4"},
		{"address width", func(p *Profile) { p.AddressWidth = 6 }, "address width 6"},
		{"tx address length", func(p *Profile) { p.TxAddr = Address{1, 2} }, "tx address 0102 is not 5 bytes"},
		{"rx address pipe", func(p *Profile) { p.RxAddrs[6] = Address{1, 2, 3, 4, 5} }, "pipe 6"},
		{"rx pipes", func(p *Profile) { p.RxPipes = []int{0, 7} }, "pipe 7"},
		{"payload width", func(p *Profile) { p.PayloadLengths = map[int]uint8{0: 33} }, "payload width 33"},
		{"retransmit", func(p *Profile) { p.RetransmitCount = 16 }, "retransmit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile()
			tt.modify(&p)
			assert.ErrorContains(t, p.Validate(), tt.err)
		})
	}
	p := DefaultProfile()
	assert.NilError(t, p.Validate())
}

func TestProfileApplyWrapsErrors(t *testing.T) {
	chip, s := newSim(t)
	chip.FailBus = simchip.ErrBus
	p := DefaultProfile()
	err := p.Apply(s)
	assert.ErrorContains(t, err, "applying address width")
	assert.Check(t, IsBusError(err))
}

func TestProfileYAML(t *testing.T) {
	doc := `
channel: 100
data_rate: 250kbps
power: 1
crc: 1byte
address_width: 3
tx_addr: "a1b2c3"
rx_addrs:
  1: "d1d2d3"
rx_pipes: [1]
auto_ack: []
payload_lengths:
  1: 10
retransmit_delay: 0
retransmit_count: 0
`
	var p Profile
	assert.NilError(t, yaml.Unmarshal([]byte(doc), &p))
	assert.NilError(t, p.Validate())
	assert.Equal(t, p.DataRate, DataRate250Kbps)
	assert.Equal(t, p.CRC, CRCOneByte)
	assert.DeepEqual(t, p.TxAddr, Address{0xa1, 0xb2, 0xc3})
	assert.DeepEqual(t, p.RxAddrs[1], Address{0xd1, 0xd2, 0xd3})

	out, err := json.Marshal(p.TxAddr)
	assert.NilError(t, err)
	assert.Equal(t, string(out), `"a1b2c3"`)

	var bad Profile
	err = yaml.Unmarshal([]byte(`tx_addr: "a1"`), &bad)
	assert.ErrorContains(t, err, "length 1 out of range")
}

func TestProfileClone(t *testing.T) {
	p := DefaultProfile()
	p.PayloadLengths = map[int]uint8{1: 8}
	c := p.Clone()
	assert.DeepEqual(t, c, p)

	c.TxAddr[0] = 0x01
	c.RxAddrs[1][0] = 0x02
	c.RxAddrs[7] = Address{1, 2, 3}
	c.RxPipes[0] = 5
	c.PayloadLengths[2] = 4

	want := DefaultProfile()
	want.PayloadLengths = map[int]uint8{1: 8}
	assert.DeepEqual(t, p, want)

	var empty Profile
	assert.DeepEqual(t, empty.Clone(), empty)
}
