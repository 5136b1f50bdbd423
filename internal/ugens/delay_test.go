package ugens

import (
	"math"
	"testing"

	"github.com/rbdannenberg/arco-sub000/internal/block"
)

func TestDelayZeroTimeIsOneSampleLatency(t *testing.T) {
	values := make([]float32, block.BL)
	for i := range values {
		values[i] = float32(i + 1)
	}
	in := newRampSignal(1, values)
	dt := NewConstF(2, 0.0)
	fb := NewConstF(3, 0.0)
	d := NewDelay(4, 1, in, dt, fb, 0.01)

	out := d.Run(1)
	if out[0] != 0 {
		t.Fatalf("out[0] = %v, want 0 (buffer starts empty)", out[0])
	}
	for f := 1; f < block.BL; f++ {
		want := values[f-1]
		if math.Abs(float64(out[f]-want)) > 1e-5 {
			t.Fatalf("out[%d] = %v, want %v (one-sample delay)", f, out[f], want)
		}
	}
}

func TestDelayGrowIfNeededPreservesCapacityInvariant(t *testing.T) {
	in := newConstSignal(1, 1, 0)
	dt := NewConstF(2, 1.0) // 1 second delay, beyond the tiny initial buffer
	fb := NewConstF(3, 0.0)
	d := NewDelay(4, 1, in, dt, fb, 0.001) // tiny initial allocation
	// Running should grow the buffer rather than index out of range.
	d.Run(1)
	st := d.states[0]
	wantMin := int(1.0*block.AR) + 2
	if st.buf.Cap() < wantMin {
		t.Fatalf("buffer cap = %d, want >= %d after growth", st.buf.Cap(), wantMin)
	}
}
