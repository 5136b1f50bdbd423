package ugens

import (
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// Thru copies its input to its output, with an optional alternate
// source; when the alternate is active, output is taken from it instead
// with channel wrap/zero-fill. Used as the device-input and
// previous-output nodes.
type Thru struct {
	ugen.Base
	input  ugen.Ugen
	alt    ugen.Ugen
	useAlt bool
}

func (t *Thru) ClassName() string { return "thru" }

// NewThru constructs a Thru with the given input already bound.
func NewThru(id int, chans int, input ugen.Ugen) *Thru {
	t := &Thru{input: input}
	t.Init(id, ugen.Audio, chans, t, func() {
		if t.input != nil {
			t.input.Unref()
		}
		if t.alt != nil {
			t.alt.Unref()
		}
	})
	if input != nil {
		input.Ref()
	}
	return t
}

// ReplInput replaces the primary input, unref'ing the old one.
func (t *Thru) ReplInput(u ugen.Ugen) {
	if t.input != nil {
		t.input.Unref()
	}
	t.input = u
	if u != nil {
		u.Ref()
	}
}

// SetAlt installs (or clears, with nil) the alternate source.
func (t *Thru) SetAlt(u ugen.Ugen) {
	if t.alt != nil {
		t.alt.Unref()
	}
	t.alt = u
	if u != nil {
		u.Ref()
	}
}

// UseAlt switches output between the primary input and the alternate.
func (t *Thru) UseAlt(use bool) { t.useAlt = use }

func (t *Thru) RealRun(currentBlock int64) {
	src := t.input
	if t.useAlt && t.alt != nil {
		src = t.alt
	}
	out := t.Output()
	if src == nil {
		for i := range out {
			out[i] = 0
		}
		return
	}
	samps := src.Run(currentBlock)
	copyFanWrap(out, t.Chans(), samps, src.Chans(), src.Rate() == ugen.Audio, false)
	if t.HasFlag(ugen.CanTerminate) && src.HasFlag(ugen.Terminated) {
		t.Terminate(0)
	}
}

// WriteDeviceInput copies one callback's worth of deinterleaved device
// input frames directly into the output buffer and advances
// current_block without invoking RealRun. This is how internal/audioio
// feeds the device-input Thru ugen each callback; the
// previous-output ugen is fed the same way one block later.
func (t *Thru) WriteDeviceInput(currentBlock int64, deinterleaved []float32) {
	copy(t.Output(), deinterleaved)
	t.AdvanceBlock(currentBlock)
}
