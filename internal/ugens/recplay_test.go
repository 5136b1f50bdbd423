package ugens

import (
	"math"
	"testing"

	"github.com/rbdannenberg/arco-sub000/internal/block"
)

func TestRecplayRecordsThenPlaysBackExactly(t *testing.T) {
	values := make([]float32, block.BL)
	for i := range values {
		values[i] = float32(i + 1)
	}
	src := newRampSignal(1, values)
	r := NewRecplay(2, 1, src)

	r.Record(true)
	out := r.Run(1)
	for _, v := range out {
		if v != 0 {
			t.Fatalf("output during record-only block = %v, want all 0 (not playing)", out)
		}
	}

	r.Record(false)
	r.Start(0, 1, 0) // no fade: instant full-gain playback
	out = r.Run(2)
	for f, v := range out {
		want := values[f]
		if math.Abs(float64(v-want)) > 1e-4 {
			t.Fatalf("playback sample %d = %v, want %v", f, v, want)
		}
	}
}

func TestRecplayBorrowSharesRecordedBuffer(t *testing.T) {
	values := []float32{0.1, 0.2, 0.3, 0.4}
	for len(values) < block.BL {
		values = append(values, values[len(values)-1])
	}
	src := newRampSignal(1, values)
	lender := NewRecplay(2, 1, src)
	lender.Record(true)
	lender.Run(1)
	lender.Record(false)

	reader := NewRecplay(3, 1, nil)
	reader.Borrow(lender)
	reader.Start(0, 1, 0)
	out := reader.Run(1)
	if math.Abs(float64(out[0]-0.1)) > 1e-4 {
		t.Fatalf("borrower playback sample 0 = %v, want 0.1", out[0])
	}
	if lender.RefCount() != 2 {
		t.Errorf("lender.RefCount() = %d, want 2 (construction + Borrow)", lender.RefCount())
	}
}
