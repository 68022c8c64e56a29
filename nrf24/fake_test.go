package nrf24

import (
	"testing"

	"gotest.tools/v3/assert"
	"periph.io/x/conn/v3/gpio"

	"github.com/linht/nrf24-manager/simchip"
)

// scriptBus records every frame and lets the test answer it.
type scriptBus struct {
	frames [][]byte
	answer func(w, r []byte)
	err    error
}

func (b *scriptBus) Tx(w, r []byte) error {
	b.frames = append(b.frames, append([]byte(nil), w...))
	if b.err != nil {
		return b.err
	}
	r[0] = 0x0e
	if b.answer != nil {
		b.answer(w, r)
	}
	return nil
}

// count returns the number of frames starting with op.
func (b *scriptBus) count(op byte) int {
	n := 0
	for _, f := range b.frames {
		if f[0] == op {
			n++
		}
	}
	return n
}

type recordPin struct {
	levels []gpio.Level
	err    error
}

func (p *recordPin) Out(l gpio.Level) error {
	if p.err != nil {
		return p.err
	}
	p.levels = append(p.levels, l)
	return nil
}

func newSim(t *testing.T) (*simchip.Chip, *StandbyMode) {
	t.Helper()
	chip := simchip.New()
	s, err := New(chip, chip)
	assert.NilError(t, err)
	chip.ResetTrace()
	return chip, s
}
