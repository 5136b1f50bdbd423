package ugens

import (
	"math"
	"testing"

	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// constSignal is a minimal audio-rate source producing the same value
// every sample, standing in for a more elaborate oscillator so Mix's
// ramp behavior can be tested in isolation.
type constSignal struct {
	ugen.Base
	value float32
}

func (c *constSignal) ClassName() string { return "constsignal" }
func (c *constSignal) RealRun(blk int64) {
	out := c.Output()
	for i := range out {
		out[i] = c.value
	}
}

func newConstSignal(id int, chans int, v float32) *constSignal {
	c := &constSignal{value: v}
	c.Init(id, ugen.Audio, chans, c, nil)
	return c
}

// S3: over one block, changing the gain-backing Const from 1 to 0
// ramps linearly, sample 0 at gain 1 and the last sample at gain 0.
func TestMixRampsGainAcrossBlock(t *testing.T) {
	signal := newConstSignal(1, 1, 1.0)
	gain := NewConstF(2, 1.0)

	m := NewMix(3, 1, false)
	if err := m.Ins(signal, gain, false); err != nil {
		t.Fatalf("Ins: %v", err)
	}

	gain.Set(0, 0.0) // the edit happens before the block is pulled

	out := m.Run(1)
	if got, want := out[0], float32(1.0); math.Abs(float64(got-want)) > 1e-6 {
		t.Errorf("first sample gain = %v, want %v", got, want)
	}
	last := out[block.BL-1]
	if math.Abs(float64(last)) > 1e-6 {
		t.Errorf("last sample gain = %v, want 0", last)
	}
	// Monotonically decreasing across the block.
	for i := 1; i < block.BL; i++ {
		if out[i] > out[i-1]+1e-6 {
			t.Fatalf("ramp not monotonic at sample %d: %v -> %v", i, out[i-1], out[i])
		}
	}
}

func TestMixSumsMultipleContributors(t *testing.T) {
	a := newConstSignal(1, 1, 0.25)
	b := newConstSignal(2, 1, 0.5)
	gA := NewConstF(10, 1.0)
	gB := NewConstF(11, 1.0)

	m := NewMix(3, 1, false)
	m.Ins(a, gA, false)
	m.Ins(b, gB, false)

	out := m.Run(1)
	for i, v := range out {
		if math.Abs(float64(v-0.75)) > 1e-6 {
			t.Fatalf("sample %d = %v, want 0.75", i, v)
		}
	}
}

func TestMixTerminatesWhenEmptyAndCanTerminate(t *testing.T) {
	signal := newConstSignal(1, 1, 1.0)
	signal.Term(0)
	signal.Terminate(0) // signal becomes Terminated immediately (tail 0)

	gain := NewConstF(2, 1.0)
	m := NewMix(3, 1, false)
	m.Term(0)
	m.SetFlag(ugen.CanTerminate)
	m.Ins(signal, gain, false)

	m.Run(1)
	if !m.HasFlag(ugen.Terminated) {
		t.Fatal("Mix did not terminate after its only contributor terminated")
	}
}
