package ugens

import (
	"math"
	"testing"

	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// With ratio exactly 1.0 the read tap's offset behind the write head never
// moves (readPos += 1-ratio == 0 every sample), so it never nears a window
// edge and the crossfade path never activates: output is a pure fixed-lag
// delay of the input, with no pitch shift and no crossfade mixing.
func TestOlapitchshiftUnityRatioNeverCrossfades(t *testing.T) {
	const v = float32(0.4)
	src := newConstSignal(1, 1, v)
	ratio := NewConstF(2, 1.0)
	o := NewOlapitchshift(3, 1, src, ratio, 0.001, 0.0004)

	var out []float32
	for blk := int64(1); blk <= 6; blk++ {
		out = o.Run(blk)
	}
	for i, s := range out {
		if math.Abs(float64(s-v)) > 1e-5 {
			t.Fatalf("sample %d = %v, want %v (fully warmed unity-ratio delay)", i, s, v)
		}
	}
}

func TestOlapitchshiftTerminatesWhenInputTerminates(t *testing.T) {
	src := newConstSignal(1, 1, 1.0)
	src.Term(0)
	src.Terminate(0)

	ratio := NewConstF(2, 1.0)
	o := NewOlapitchshift(3, 1, src, ratio, 0.001, 0.0004)
	o.SetFlag(ugen.CanTerminate)

	o.Run(1)
	if !o.HasFlag(ugen.Terminated) {
		t.Fatal("olapitchshift did not terminate after its input terminated")
	}
}
