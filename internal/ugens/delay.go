package ugens

import (
	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/ring"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// dcBlocker is the one-pole DC blocker applied to the Delay feedback
// path (original_source/arco/src/delay.h's Dcblock member); it removes
// the DC buildup that unconditional feedback through a ring buffer would
// otherwise accumulate.
type dcBlocker struct {
	prevIn, prevOut float32
}

const dcBlockPole = 0.995

func (d *dcBlocker) process(x float32) float32 {
	y := x - d.prevIn + dcBlockPole*d.prevOut
	d.prevIn = x
	d.prevOut = y
	return y
}

// delayChanState is the per-channel state a Delay keeps: its own ring
// buffer of history and a DC blocker on the feedback path. Allpass keeps
// its own allpassChanState, with no DC blocker.
type delayChanState struct {
	buf      *ring.Buffer
	dc       dcBlocker
	prevTime float32
	prevFb   float32
}

// Delay is a ring-buffered delay line with a per-sample interpolated
// read at a time-varying delay, feedback run through a DC blocker, and
// buffer growth that preserves history when the requested delay exceeds
// the current allocation.
type Delay struct {
	ugen.Base
	input, delayTime, feedback ugen.Ugen
	maxDelaySeconds            float64
	states                     []*delayChanState
}

func (d *Delay) ClassName() string { return "delay" }

// NewDelay constructs a Delay with the given bound on maximum delay
// time, used to size the initial ring buffers.
func NewDelay(id, chans int, input, delayTime, feedback ugen.Ugen, maxDelaySeconds float64) *Delay {
	d := &Delay{input: input, delayTime: delayTime, feedback: feedback, maxDelaySeconds: maxDelaySeconds}
	d.Init(id, ugen.Audio, chans, d, func() {
		d.input.Unref()
		d.delayTime.Unref()
		d.feedback.Unref()
	})
	samples := int(maxDelaySeconds*block.AR) + 2
	d.states = make([]*delayChanState, chans)
	for c := range d.states {
		d.states[c] = &delayChanState{buf: ring.New(samples)}
	}
	input.Ref()
	delayTime.Ref()
	feedback.Ref()
	return d
}

// growIfNeeded grows the channel's ring buffer (preserving history) when
// the requested delay in samples exceeds the buffer's current capacity,
// per the "buffer growth" error kind
func (st *delayChanState) growIfNeeded(delaySamples float64) {
	need := int(delaySamples) + 2
	if need > st.buf.Cap() {
		st.buf.SetFifoLen(need, true)
	}
}

// interpRead performs a linear-interpolated delay-line read at a
// fractional delay in samples.
func interpRead(buf *ring.Buffer, delaySamples float32) float32 {
	if delaySamples < 0 {
		delaySamples = 0
	}
	n := int(delaySamples)
	frac := delaySamples - float32(n)
	a := buf.GetNth(n)
	b := buf.GetNth(n + 1)
	return a + frac*(b-a)
}

func (d *Delay) RealRun(currentBlock int64) {
	in := d.input.Run(currentBlock)
	dt := d.delayTime.Run(currentBlock)
	fb := d.feedback.Run(currentBlock)
	out := d.Output()
	chans := d.Chans()
	bl := block.BL

	inAudio := d.input.Rate() == ugen.Audio
	dtAudio := d.delayTime.Rate() == ugen.Audio
	fbAudio := d.feedback.Rate() == ugen.Audio
	inChans := d.input.Chans()
	dtChans := d.delayTime.Chans()
	fbChans := d.feedback.Chans()

	for c := 0; c < chans; c++ {
		st := d.states[c]
		ic := c % inChans
		dc := c % dtChans
		fc := c % fbChans

		var dtRamp, fbRamp [block.BL]float32
		if dtAudio {
			copy(dtRamp[:], dt[dc*bl:dc*bl+bl])
		} else {
			st.prevTime = rampBlockParam(dtRamp[:], st.prevTime, dt[dc])
		}
		if fbAudio {
			copy(fbRamp[:], fb[fc*bl:fc*bl+bl])
		} else {
			st.prevFb = rampBlockParam(fbRamp[:], st.prevFb, fb[fc])
		}

		for f := 0; f < bl; f++ {
			var x float32
			if inAudio {
				x = in[ic*bl+f]
			} else {
				x = in[ic]
			}
			delaySamples := float64(dtRamp[f]) * block.AR
			st.growIfNeeded(delaySamples)
			read := interpRead(st.buf, float32(delaySamples))
			out[c*bl+f] = read
			fedback := st.dc.process(read) * fbRamp[f]
			st.buf.Enqueue(x + fedback)
		}
	}

	if d.HasFlag(ugen.CanTerminate) && d.input.HasFlag(ugen.Terminated) {
		d.Terminate(int(block.BR * d.maxDelaySeconds))
	}
}
