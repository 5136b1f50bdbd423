package ugens

import (
	"math"

	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/ring"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// olaChanState is the per-channel state an Olapitchshift keeps: its own
// ring buffer of recent input, read tap, and crossfade progress, so a
// multichannel instance doesn't share one tap across channels (each
// channel's input advances the tap independently, as Delay's
// delayChanState does for its ring buffer).
type olaChanState struct {
	buf           *ring.Buffer
	readPos       float64 // fractional offset behind the write head
	xfadeActive   bool
	xfadeProgress float64 // 0..1 across the crossfade
	xfadeOtherPos float64
	prevRatio     float32
}

// Olapitchshift is an overlap-add pitch shifter: a ring buffer of recent
// input is read by a fractional tap moving at (ratio-1) samples per
// output sample relative to the write tap; when the tap leaves the valid
// window it wraps to the far edge and crossfades with an equal-power
// raised-cosine curve.
type Olapitchshift struct {
	ugen.Base
	input         ugen.Ugen
	ratioUgen     ugen.Ugen
	windowSeconds float64
	xfadeSeconds  float64
	states        []*olaChanState
}

func (o *Olapitchshift) ClassName() string { return "olapitchshift" }

// NewOlapitchshift constructs a pitch shifter. windowSeconds must be at
// least 2*xfadeSeconds; each channel's ring buffer is
// sized to windowSeconds+1 of history.
func NewOlapitchshift(id, chans int, input, ratio ugen.Ugen, windowSeconds, xfadeSeconds float64) *Olapitchshift {
	if windowSeconds < 2*xfadeSeconds {
		windowSeconds = 2 * xfadeSeconds
	}
	o := &Olapitchshift{input: input, ratioUgen: ratio, windowSeconds: windowSeconds, xfadeSeconds: xfadeSeconds}
	o.Init(id, ugen.Audio, chans, o, func() {
		o.input.Unref()
		o.ratioUgen.Unref()
	})
	bufLen := int((windowSeconds+1)*block.AR) + block.BL
	o.states = make([]*olaChanState, chans)
	for c := range o.states {
		o.states[c] = &olaChanState{buf: ring.New(bufLen), readPos: windowSeconds * block.AR * 0.5}
	}
	input.Ref()
	ratio.Ref()
	return o
}

// equalPowerWindow returns the pair of gains (fading-out, fading-in) for
// a crossfade at progress t in [0,1] using an equal-power raised-cosine
// curve.
func equalPowerWindow(t float64) (out, in float64) {
	theta := t * math.Pi / 2
	return math.Cos(theta), math.Sin(theta)
}

func readAtOla(buf *ring.Buffer, pos float64) float32 {
	n := int(pos)
	frac := float32(pos - float64(n))
	a := buf.GetNth(n)
	b := buf.GetNth(n + 1)
	return a + frac*(b-a)
}

func (o *Olapitchshift) RealRun(currentBlock int64) {
	in := o.input.Run(currentBlock)
	rt := o.ratioUgen.Run(currentBlock)
	out := o.Output()
	chans := o.Chans()
	bl := block.BL
	inAudio := o.input.Rate() == ugen.Audio
	inChans := o.input.Chans()
	rtAudio := o.ratioUgen.Rate() == ugen.Audio
	rtChans := o.ratioUgen.Chans()

	windowSamples := o.windowSeconds * block.AR
	xfadeSamples := o.xfadeSeconds * block.AR

	for c := 0; c < chans; c++ {
		st := o.states[c]
		ic := c % inChans
		rc := c % rtChans
		var ratioRamp [block.BL]float32
		if rtAudio {
			copy(ratioRamp[:], rt[rc*bl:rc*bl+bl])
		} else {
			st.prevRatio = rampBlockParam(ratioRamp[:], st.prevRatio, rt[rc])
		}

		for f := 0; f < bl; f++ {
			var x float32
			if inAudio {
				x = in[ic*bl+f]
			} else {
				x = in[ic]
			}
			st.buf.Enqueue(x)
			ratio := ratioRamp[f]
			st.readPos += float64(1 - ratio)
			var v float32
			if st.xfadeActive {
				a := readAtOla(st.buf, st.readPos)
				b := readAtOla(st.buf, st.xfadeOtherPos)
				wOut, wIn := equalPowerWindow(st.xfadeProgress)
				v = float32(float64(a)*wOut + float64(b)*wIn)
				st.xfadeOtherPos += float64(1 - ratio)
				st.xfadeProgress += 1.0 / xfadeSamples
				if st.xfadeProgress >= 1 {
					st.xfadeActive = false
					st.readPos = st.xfadeOtherPos
				}
			} else {
				v = readAtOla(st.buf, st.readPos)
				if st.readPos > windowSamples-xfadeSamples || st.readPos < xfadeSamples {
					st.xfadeActive = true
					st.xfadeProgress = 0
					st.xfadeOtherPos = windowSamples - st.readPos
				}
			}
			out[c*bl+f] = v
		}
	}

	if o.HasFlag(ugen.CanTerminate) && o.input.HasFlag(ugen.Terminated) {
		o.Terminate(0)
	}
}
