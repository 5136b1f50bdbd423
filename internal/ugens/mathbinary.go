package ugens

import (
	"math/rand"

	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// BinaryOp identifies which two-input arithmetic operation a MathBinary
// ugen performs (mathugen.cpp's op codes).
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
)

// minDivisorMag is the minimum magnitude a divisor is clamped to before
// division, to avoid blow-up.
const minDivisorMag = 1e-6

func applyOp(op BinaryOp, a, b float32) float32 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		if b >= 0 && b < minDivisorMag {
			b = minDivisorMag
		} else if b < 0 && b > -minDivisorMag {
			b = -minDivisorMag
		}
		return a / b
	}
	return 0
}

// MathBinary implements the four-way rate-specialized binary arithmetic
// ugen (add/sub/mul/div) over two signal inputs x1, x2. RealRun branches
// on the rates of x1 and x2 each block.
type MathBinary struct {
	ugen.Base
	op       BinaryOp
	x1, x2   ugen.Ugen
	prevX1   []float32 // per-channel, used only when x1 is block-rate
	prevX2   []float32
}

func (m *MathBinary) ClassName() string { return "mathbinary" }

// NewMathBinary constructs a binary math ugen with both inputs already
// bound.
func NewMathBinary(id, chans int, op BinaryOp, x1, x2 ugen.Ugen) *MathBinary {
	m := &MathBinary{op: op, x1: x1, x2: x2}
	m.Init(id, ugen.Audio, chans, m, func() {
		m.x1.Unref()
		m.x2.Unref()
	})
	m.prevX1 = make([]float32, chans)
	m.prevX2 = make([]float32, chans)
	for c := 0; c < chans; c++ {
		m.prevX1[c] = sampleAt(x1, c)
		m.prevX2[c] = sampleAt(x2, c)
	}
	x1.Ref()
	x2.Ref()
	return m
}

// sampleAt reads channel c's current value from a block/const-rate ugen,
// or channel c's first sample from an audio-rate one, used to seed ramp
// state without guessing at a zero start.
func sampleAt(u ugen.Ugen, c int) float32 {
	out := u.Output()
	if len(out) == 0 {
		return 0
	}
	if u.Rate() == ugen.Audio {
		return out[(c%u.Chans())*block.BL]
	}
	return out[c%u.Chans()]
}

func (m *MathBinary) RealRun(currentBlock int64) {
	a := m.x1.Run(currentBlock)
	b := m.x2.Run(currentBlock)
	out := m.Output()
	chans := m.Chans()
	bl := block.BL
	aAudio := m.x1.Rate() == ugen.Audio
	bAudio := m.x2.Rate() == ugen.Audio
	achans := m.x1.Chans()
	bchans := m.x2.Chans()

	for c := 0; c < chans; c++ {
		ac := c % achans
		bc := c % bchans
		var aRamp, bRamp [block.BL]float32
		if aAudio {
			copy(aRamp[:], a[ac*bl:ac*bl+bl])
		} else {
			m.prevX1[c] = rampBlockParam(aRamp[:], m.prevX1[c], a[ac])
		}
		if bAudio {
			copy(bRamp[:], b[bc*bl:bc*bl+bl])
		} else {
			m.prevX2[c] = rampBlockParam(bRamp[:], m.prevX2[c], b[bc])
		}
		for f := 0; f < bl; f++ {
			out[c*bl+f] = applyOp(m.op, aRamp[f], bRamp[f])
		}
	}

	if m.HasFlag(ugen.CanTerminate) && (m.x1.HasFlag(ugen.Terminated) || m.x2.HasFlag(ugen.Terminated)) {
		m.Terminate(0)
	}
}

// SampleHold implements a zero-crossing-triggered sample-and-hold: it
// holds the value of x whenever trigger crosses from non-positive to
// positive.
type SampleHold struct {
	ugen.Base
	x, trigger ugen.Ugen
	held       []float32
	prevTrig   []float32
}

func (s *SampleHold) ClassName() string { return "samplehold" }

// NewSampleHold constructs a sample-and-hold ugen over x, triggered by
// zero crossings of trigger.
func NewSampleHold(id, chans int, x, trigger ugen.Ugen) *SampleHold {
	s := &SampleHold{x: x, trigger: trigger}
	s.Init(id, ugen.Audio, chans, s, func() {
		s.x.Unref()
		s.trigger.Unref()
	})
	s.held = make([]float32, chans)
	s.prevTrig = make([]float32, chans)
	x.Ref()
	trigger.Ref()
	return s
}

func (s *SampleHold) RealRun(currentBlock int64) {
	xs := s.x.Run(currentBlock)
	ts := s.trigger.Run(currentBlock)
	out := s.Output()
	chans := s.Chans()
	bl := block.BL
	xAudio := s.x.Rate() == ugen.Audio
	tAudio := s.trigger.Rate() == ugen.Audio
	xchans := s.x.Chans()
	tchans := s.trigger.Chans()

	for c := 0; c < chans; c++ {
		xc := c % xchans
		tc := c % tchans
		for f := 0; f < bl; f++ {
			var xv, tv float32
			if xAudio {
				xv = xs[xc*bl+f]
			} else {
				xv = xs[xc]
			}
			if tAudio {
				tv = ts[tc*bl+f]
			} else {
				tv = ts[tc]
			}
			if s.prevTrig[c] <= 0 && tv > 0 {
				s.held[c] = xv
			}
			s.prevTrig[c] = tv
			out[c*bl+f] = s.held[c]
		}
	}
}

// RandLerp picks a fresh random target value at a rate determined by the
// rate input and linearly interpolates toward it's
// "random linear interpolation" op.
type RandLerp struct {
	ugen.Base
	low, high, rate ugen.Ugen
	cur, target     []float32
	remaining       []int
	rng             *rand.Rand
}

func (r *RandLerp) ClassName() string { return "randlerp" }

// NewRandLerp constructs a random-linear-interpolation ugen. rate is a
// block-rate input giving the number of blocks between new targets.
func NewRandLerp(id, chans int, low, high, rate ugen.Ugen, seed int64) *RandLerp {
	r := &RandLerp{low: low, high: high, rate: rate, rng: rand.New(rand.NewSource(seed))}
	r.Init(id, ugen.Audio, chans, r, func() {
		r.low.Unref()
		r.high.Unref()
		r.rate.Unref()
	})
	r.cur = make([]float32, chans)
	r.target = make([]float32, chans)
	r.remaining = make([]int, chans)
	low.Ref()
	high.Ref()
	rate.Ref()
	return r
}

func (r *RandLerp) RealRun(currentBlock int64) {
	lo := r.low.Run(currentBlock)
	hi := r.high.Run(currentBlock)
	rt := r.rate.Run(currentBlock)
	out := r.Output()
	chans := r.Chans()
	bl := block.BL

	for c := 0; c < chans; c++ {
		if r.remaining[c] <= 0 {
			lov := lo[c%len(lo)]
			hiv := hi[c%len(hi)]
			r.target[c] = lov + r.rng.Float32()*(hiv-lov)
			blocks := int(rt[c%len(rt)])
			if blocks < 1 {
				blocks = 1
			}
			r.remaining[c] = blocks
		}
		var ramp [block.BL]float32
		incr := (r.target[c] - r.cur[c]) / float32(r.remaining[c]*bl)
		v := r.cur[c]
		for f := 0; f < bl; f++ {
			v += incr
			ramp[f] = v
		}
		r.cur[c] = v
		copy(out[c*bl:c*bl+bl], ramp[:])
		r.remaining[c]--
	}
}
