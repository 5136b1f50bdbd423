package ugens

import (
	"math"
	"testing"

	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

func TestMathBinaryAudioRateAdd(t *testing.T) {
	a := newConstSignal(1, 1, 0.25)
	b := newConstSignal(2, 1, 0.5)
	m := NewMathBinary(3, 1, OpAdd, a, b)
	out := m.Run(1)
	for _, v := range out {
		if math.Abs(float64(v-0.75)) > 1e-6 {
			t.Fatalf("add output = %v, want all 0.75", out)
		}
	}
}

func TestMathBinaryMulWithBlockRateOperand(t *testing.T) {
	a := newConstSignal(1, 1, 2.0)
	b := NewConstF(2, 3.0) // const rate, held
	m := NewMathBinary(3, 1, OpMul, a, b)
	out := m.Run(1)
	for i, v := range out {
		if math.Abs(float64(v-6.0)) > 1e-6 {
			t.Fatalf("sample %d = %v, want 6.0", i, v)
		}
	}
}

func TestMathBinaryDivClampsNearZeroDivisor(t *testing.T) {
	a := newConstSignal(1, 1, 1.0)
	b := newConstSignal(2, 1, 0.0)
	m := NewMathBinary(3, 1, OpDiv, a, b)
	out := m.Run(1)
	want := float32(1.0 / minDivisorMag)
	for _, v := range out {
		if math.Abs(float64(v-want)) > 1e-3*math.Abs(float64(want)) {
			t.Fatalf("div-by-zero output = %v, want ~%v (clamped divisor)", v, want)
		}
	}
}

func TestMathBinaryTerminatesWhenEitherOperandTerminates(t *testing.T) {
	a := newConstSignal(1, 1, 1.0)
	b := newConstSignal(2, 1, 1.0)
	b.Term(0)
	b.Terminate(0)

	m := NewMathBinary(3, 1, OpAdd, a, b)
	m.SetFlag(ugen.CanTerminate)
	m.Run(1)
	if !m.HasFlag(ugen.Terminated) {
		t.Fatal("MathBinary did not terminate when an operand terminated")
	}
}

func TestSampleHoldLatchesOnPositiveZeroCrossing(t *testing.T) {
	x := newRampSignal(1, []float32{1, 2, 3, 4})
	trig := newRampSignal(2, []float32{-1, 1, -1, 1})
	s := NewSampleHold(3, 1, x, trig)
	out := s.Run(1)
	// Trigger crosses from <=0 to >0 at sample index 1 (value 2 in x) and
	// again at index 3 (value 4 in x); before any crossing, held is 0.
	if out[0] != 0 {
		t.Errorf("out[0] = %v, want 0 (no crossing yet)", out[0])
	}
	if out[1] != 2 {
		t.Errorf("out[1] = %v, want 2 (latched at first crossing)", out[1])
	}
	if out[2] != 2 {
		t.Errorf("out[2] = %v, want 2 (held)", out[2])
	}
	if out[3] != 4 {
		t.Errorf("out[3] = %v, want 4 (latched at second crossing)", out[3])
	}
}

// newRampSignal is an audio-rate source that plays back a short fixed
// sequence once, repeating (or padding with) the final value if the
// block is longer than the sequence.
type rampSignal struct {
	ugen.Base
	values []float32
}

func (r *rampSignal) ClassName() string { return "rampsignal" }
func (r *rampSignal) RealRun(blk int64) {
	out := r.Output()
	for i := range out {
		if i < len(r.values) {
			out[i] = r.values[i]
		} else {
			out[i] = r.values[len(r.values)-1]
		}
	}
}

func newRampSignal(id int, values []float32) *rampSignal {
	r := &rampSignal{values: values}
	r.Init(id, ugen.Audio, 1, r, nil)
	return r
}
