package ugens

import (
	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/ring"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// allpassChanState holds one channel's history buffer of (x + k*y) and
// the previous ramped parameter values.
type allpassChanState struct {
	buf      *ring.Buffer
	prevTime float32
	prevGain float32
}

// Allpass implements the Schroeder allpass equation
// y = -k*x + z^-N*(x + k*y), a ring-buffered delay line with feedback
// and feedforward through the same tap.
type Allpass struct {
	ugen.Base
	input, delayTime, gain ugen.Ugen
	maxDelaySeconds        float64
	states                 []*allpassChanState
}

func (a *Allpass) ClassName() string { return "allpass" }

// NewAllpass constructs an Allpass filter bounded to maxDelaySeconds of
// history per channel.
func NewAllpass(id, chans int, input, delayTime, gain ugen.Ugen, maxDelaySeconds float64) *Allpass {
	a := &Allpass{input: input, delayTime: delayTime, gain: gain, maxDelaySeconds: maxDelaySeconds}
	a.Init(id, ugen.Audio, chans, a, func() {
		a.input.Unref()
		a.delayTime.Unref()
		a.gain.Unref()
	})
	samples := int(maxDelaySeconds*block.AR) + 2
	a.states = make([]*allpassChanState, chans)
	for c := range a.states {
		a.states[c] = &allpassChanState{buf: ring.New(samples)}
	}
	input.Ref()
	delayTime.Ref()
	gain.Ref()
	return a
}

func (a *Allpass) RealRun(currentBlock int64) {
	in := a.input.Run(currentBlock)
	dt := a.delayTime.Run(currentBlock)
	gn := a.gain.Run(currentBlock)
	out := a.Output()
	chans := a.Chans()
	bl := block.BL

	inAudio := a.input.Rate() == ugen.Audio
	dtAudio := a.delayTime.Rate() == ugen.Audio
	gAudio := a.gain.Rate() == ugen.Audio
	inChans := a.input.Chans()
	dtChans := a.delayTime.Chans()
	gChans := a.gain.Chans()

	for c := 0; c < chans; c++ {
		st := a.states[c]
		ic := c % inChans
		dc := c % dtChans
		gc := c % gChans

		var dtRamp, gRamp [block.BL]float32
		if dtAudio {
			copy(dtRamp[:], dt[dc*bl:dc*bl+bl])
		} else {
			st.prevTime = rampBlockParam(dtRamp[:], st.prevTime, dt[dc])
		}
		if gAudio {
			copy(gRamp[:], gn[gc*bl:gc*bl+bl])
		} else {
			st.prevGain = rampBlockParam(gRamp[:], st.prevGain, gn[gc])
		}

		for f := 0; f < bl; f++ {
			var x float32
			if inAudio {
				x = in[ic*bl+f]
			} else {
				x = in[ic]
			}
			k := gRamp[f]
			delaySamples := float64(dtRamp[f]) * block.AR
			need := int(delaySamples) + 2
			if need > st.buf.Cap() {
				st.buf.SetFifoLen(need, true)
			}
			tapped := interpRead(st.buf, float32(delaySamples))
			y := -k*x + tapped
			out[c*bl+f] = y
			st.buf.Enqueue(x + k*y)
		}
	}

	if a.HasFlag(ugen.CanTerminate) && a.input.HasFlag(ugen.Terminated) {
		a.Terminate(int(block.BR * a.maxDelaySeconds))
	}
}
