package ugens

import (
	"math"
	"testing"
)

func TestMathUnaryAbsAudioRate(t *testing.T) {
	x := newConstSignal(1, 1, -0.5)
	m := NewMathUnary(2, 1, OpAbs, x)
	out := m.Run(1)
	for _, v := range out {
		if math.Abs(float64(v-0.5)) > 1e-6 {
			t.Fatalf("abs output = %v, want all 0.5", out)
		}
	}
}

func TestMathUnaryNegAudioRate(t *testing.T) {
	x := newConstSignal(1, 1, 3.0)
	m := NewMathUnary(2, 1, OpNeg, x)
	out := m.Run(1)
	for _, v := range out {
		if math.Abs(float64(v+3.0)) > 1e-6 {
			t.Fatalf("neg output = %v, want all -3.0", out)
		}
	}
}

func TestMathUnarySqrtClampsNegativeToZero(t *testing.T) {
	x := newConstSignal(1, 1, -4.0)
	m := NewMathUnary(2, 1, OpSqrt, x)
	out := m.Run(1)
	for _, v := range out {
		if v != 0 {
			t.Fatalf("sqrt(-4) output = %v, want 0 (clamped)", v)
		}
	}
}

func TestMathUnaryLogClampsNonPositiveInput(t *testing.T) {
	x := newConstSignal(1, 1, 0.0)
	m := NewMathUnary(2, 1, OpLog, x)
	out := m.Run(1)
	want := float32(math.Log(float64(minDivisorMag)))
	for _, v := range out {
		if math.Abs(float64(v-want)) > 1e-3 {
			t.Fatalf("log(0) output = %v, want ~%v (clamped input)", v, want)
		}
	}
}

func TestMathUnaryWithConstRateOperandHoldsValue(t *testing.T) {
	x := NewConstF(1, 9.0)
	m := NewMathUnary(2, 1, OpSqrt, x)
	out := m.Run(1)
	for _, v := range out {
		if math.Abs(float64(v-3.0)) > 1e-6 {
			t.Fatalf("sqrt(9) with const operand = %v, want all 3.0", v)
		}
	}
}
