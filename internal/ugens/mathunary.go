package ugens

import (
	"math"

	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// UnaryOp identifies a single-input math operation (mathugenb.cpp).
type UnaryOp int

const (
	OpAbs UnaryOp = iota
	OpNeg
	OpSqrt
	OpExp
	OpLog
)

func applyUnary(op UnaryOp, x float32) float32 {
	switch op {
	case OpAbs:
		return float32(math.Abs(float64(x)))
	case OpNeg:
		return -x
	case OpSqrt:
		if x < 0 {
			x = 0
		}
		return float32(math.Sqrt(float64(x)))
	case OpExp:
		return float32(math.Exp(float64(x)))
	case OpLog:
		if x <= 0 {
			x = minDivisorMag
		}
		return float32(math.Log(float64(x)))
	}
	return x
}

// MathUnary is the single-input counterpart to MathBinary; it has only
// two rate specializations (audio input or block/const input) since
// there is only one operand.
type MathUnary struct {
	ugen.Base
	op   UnaryOp
	x    ugen.Ugen
	prev []float32
}

func (m *MathUnary) ClassName() string { return "mathunary" }

// NewMathUnary constructs a unary math ugen over x.
func NewMathUnary(id, chans int, op UnaryOp, x ugen.Ugen) *MathUnary {
	m := &MathUnary{op: op, x: x}
	m.Init(id, ugen.Audio, chans, m, func() { m.x.Unref() })
	m.prev = make([]float32, chans)
	for c := 0; c < chans; c++ {
		m.prev[c] = sampleAt(x, c)
	}
	x.Ref()
	return m
}

func (m *MathUnary) RealRun(currentBlock int64) {
	xs := m.x.Run(currentBlock)
	out := m.Output()
	chans := m.Chans()
	bl := block.BL
	xAudio := m.x.Rate() == ugen.Audio
	xchans := m.x.Chans()

	for c := 0; c < chans; c++ {
		xc := c % xchans
		if xAudio {
			for f := 0; f < bl; f++ {
				out[c*bl+f] = applyUnary(m.op, xs[xc*bl+f])
			}
		} else {
			var ramp [block.BL]float32
			m.prev[c] = rampBlockParam(ramp[:], m.prev[c], xs[xc])
			for f := 0; f < bl; f++ {
				out[c*bl+f] = applyUnary(m.op, ramp[f])
			}
		}
	}

	if m.HasFlag(ugen.CanTerminate) && m.x.HasFlag(ugen.Terminated) {
		m.Terminate(0)
	}
}
