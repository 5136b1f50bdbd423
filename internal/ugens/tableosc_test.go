package ugens

import (
	"math"
	"testing"
)

func TestTableoscFlatTableScaledByAmp(t *testing.T) {
	freq := NewConstF(1, 0.0) // static phase, no advance
	amp := NewConstF(2, 0.5)
	osc := NewTableosc(3, 1, freq, amp)
	osc.CreateTTD(0, []float32{1, 1, 1, 1})
	osc.Select(0)

	out := osc.Run(1)
	for i, v := range out {
		if math.Abs(float64(v-0.5)) > 1e-6 {
			t.Fatalf("sample %d = %v, want 0.5 (flat table * amp)", i, v)
		}
	}
}

func TestTableoscNoTableOutputsSilence(t *testing.T) {
	freq := NewConstF(1, 440.0)
	amp := NewConstF(2, 1.0)
	osc := NewTableosc(3, 1, freq, amp)
	// No CreateTTD/Select call: table index 0 is unset.
	out := osc.Run(1)
	for _, v := range out {
		if v != 0 {
			t.Fatalf("table-less oscillator output = %v, want all 0", out)
		}
	}
}

func TestTableoscBorrowSharesTables(t *testing.T) {
	freq := NewConstF(1, 0.0)
	amp := NewConstF(2, 1.0)
	lender := NewTableosc(3, 1, freq, amp)
	lender.CreateTTD(0, []float32{0.25, 0.25, 0.25, 0.25})
	lender.Select(0)

	freq2 := NewConstF(4, 0.0)
	amp2 := NewConstF(5, 1.0)
	borrower := NewTableosc(6, 1, freq2, amp2)
	borrower.Borrow(lender)
	borrower.Select(0)

	out := borrower.Run(1)
	for i, v := range out {
		if math.Abs(float64(v-0.25)) > 1e-6 {
			t.Fatalf("borrower sample %d = %v, want 0.25", i, v)
		}
	}
	if lender.RefCount() != 2 {
		t.Errorf("lender.RefCount() = %d, want 2 (construction + Borrow)", lender.RefCount())
	}
}

func TestTableoscSetPhaseResetsAccumulator(t *testing.T) {
	freq := NewConstF(1, 0.0)
	amp := NewConstF(2, 1.0)
	osc := NewTableosc(3, 1, freq, amp)
	osc.CreateTTD(0, []float32{0, 1, 0, -1})
	osc.Select(0)
	osc.SetPhase(0.25) // index 1 in a 4-sample table: value 1

	out := osc.Run(1)
	if math.Abs(float64(out[0]-1.0)) > 1e-6 {
		t.Fatalf("after SetPhase(0.25), out[0] = %v, want 1.0", out[0])
	}
}
