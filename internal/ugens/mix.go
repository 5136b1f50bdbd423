package ugens

import (
	"fmt"

	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// mixInput is one contributor to a Mix or Sum: the signal plus (for Mix)
// a gain source and the ramp state carried across blocks. Grounded on
// Mix::Input in original_source/arco/src/mix.h.
type mixInput struct {
	u         ugen.Ugen
	gain      ugen.Ugen // nil for Sum, always non-nil for Mix
	prevGain  float32
	chanWrap  bool
}

// Mix sums a set of contributors, each scaled by an independently
// ramped, block-rate-or-const gain. Sum is the same machinery with gain
// fixed at 1 (mix.h/mix.cpp).
type Mix struct {
	ugen.Base
	inputs       []*mixInput
	startingSize int
	isSum        bool
}

func (m *Mix) ClassName() string {
	if m.isSum {
		return "sum"
	}
	return "mix"
}

// NewMix constructs an empty Mix (or, with sum=true, a Sum) ugen.
func NewMix(id, chans int, sum bool) *Mix {
	m := &Mix{isSum: sum}
	m.Init(id, ugen.Audio, chans, m, func() {
		for _, in := range m.inputs {
			in.u.Unref()
			if in.gain != nil {
				in.gain.Unref()
			}
		}
	})
	return m
}

// find returns the index of the contributor with the given input ugen,
// or -1.
func (m *Mix) find(id int) int {
	for i, in := range m.inputs {
		if in.u.ID() == id {
			return i
		}
	}
	return -1
}

// Ins adds a new contributor with the given gain source (gain is ignored
// for Sum). chanWrap is stored with the contributor but does not change
// how it is mixed: a mono contributor fans out to every channel, and
// otherwise output channel c reads contributor channel c % its channel
// count; contributor channels at or beyond the Mix's channel count are
// not mixed in.
func (m *Mix) Ins(u ugen.Ugen, gain ugen.Ugen, chanWrap bool) error {
	if m.find(u.ID()) >= 0 {
		return fmt.Errorf("mix: ugen %d already a contributor", u.ID())
	}
	u.Ref()
	in := &mixInput{u: u, chanWrap: chanWrap}
	if !m.isSum {
		gain.Ref()
		in.gain = gain
		in.prevGain = firstSample(gain)
	}
	m.inputs = append(m.inputs, in)
	m.startingSize++
	return nil
}

func firstSample(u ugen.Ugen) float32 {
	out := u.Output()
	if len(out) == 0 {
		return 1
	}
	return out[0]
}

// Rem removes the contributor bound to input id, if present.
func (m *Mix) Rem(id int) {
	i := m.find(id)
	if i < 0 {
		return
	}
	in := m.inputs[i]
	in.u.Unref()
	if in.gain != nil {
		in.gain.Unref()
	}
	m.inputs = append(m.inputs[:i], m.inputs[i+1:]...)
}

// SetGain replaces the gain source for the contributor bound to input
// id (repl_gain in mix.cpp).
func (m *Mix) SetGain(id int, gain ugen.Ugen) error {
	if m.isSum {
		return fmt.Errorf("sum: no gain to set")
	}
	i := m.find(id)
	if i < 0 {
		return fmt.Errorf("mix: no contributor for input %d", id)
	}
	in := m.inputs[i]
	in.gain.Unref()
	gain.Ref()
	in.gain = gain
	return nil
}

func (m *Mix) RealRun(currentBlock int64) {
	out := m.Output()
	for i := range out {
		out[i] = 0
	}
	chans := m.Chans()
	bl := block.BL

	var ramp [block.BL]float32
	live := m.inputs[:0:0]
	for _, in := range m.inputs {
		samps := in.u.Run(currentBlock)
		uchans := in.u.Chans()
		if in.gain == nil {
			// Sum: unit gain, straight accumulate with channel wrap.
			copyFanWrap(out, chans, samps, uchans, in.u.Rate() == ugen.Audio, true)
		} else {
			gsamps := in.gain.Run(currentBlock)
			cur := gsamps[0]
			// Epsilon-skip the ramp when the gain has not moved, the
			// way mix.cpp avoids needless interpolation work when
			// gincr is within +/-1e-6 of zero.
			gincr := (cur - in.prevGain) / float32(bl)
			if gincr > -1e-6 && gincr < 1e-6 {
				for j := 0; j < bl; j++ {
					ramp[j] = cur
				}
			} else {
				rampBlockParam(ramp[:], in.prevGain, cur)
			}
			in.prevGain = cur
			for c := 0; c < chans; c++ {
				sc := c
				if uchans == 1 {
					sc = 0
				} else {
					sc = c % uchans
				}
				for f := 0; f < bl; f++ {
					var v float32
					if in.u.Rate() == ugen.Audio {
						v = samps[sc*bl+f]
					} else {
						v = samps[sc]
					}
					out[c*bl+f] += v * ramp[f]
				}
			}
		}
		if !in.u.HasFlag(ugen.Terminated) {
			live = append(live, in)
		} else {
			in.u.Unref()
			if in.gain != nil {
				in.gain.Unref()
			}
		}
	}
	m.inputs = live

	if len(m.inputs) == 0 && m.startingSize > 0 && m.HasFlag(ugen.CanTerminate) {
		m.Terminate(0)
	}
}
