package graph

import (
	"testing"

	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

type constOutUgen struct {
	ugen.Base
	value float32
}

func (u *constOutUgen) ClassName() string { return "constout" }
func (u *constOutUgen) RealRun(blk int64) {
	out := u.Output()
	for i := range out {
		out[i] = u.value
	}
}

func newConstOutUgen(id, chans int, rate ugen.Rate, v float32) *constOutUgen {
	u := &constOutUgen{value: v}
	u.Init(id, rate, chans, u, nil)
	return u
}

func TestAddOutputRejectsNonAudioRate(t *testing.T) {
	sets := NewSets()
	u := newConstOutUgen(1, 1, ugen.Block, 1)
	if err := sets.AddOutput(u); err == nil {
		t.Fatal("expected error adding a block-rate ugen to the output set")
	}
}

func TestAddOutputIsIdempotent(t *testing.T) {
	sets := NewSets()
	u := newConstOutUgen(1, 1, ugen.Audio, 1)
	if err := sets.AddOutput(u); err != nil {
		t.Fatalf("AddOutput: %v", err)
	}
	if err := sets.AddOutput(u); err != nil {
		t.Fatalf("second AddOutput: %v", err)
	}
	if len(sets.Output()) != 1 {
		t.Fatalf("Output() has %d members, want 1 (no duplicate)", len(sets.Output()))
	}
}

func TestRemoveOutputUnrefsAndCompacts(t *testing.T) {
	sets := NewSets()
	u := newConstOutUgen(1, 1, ugen.Audio, 1)
	u.Ref() // hold our own reference so RefCount doesn't hit zero
	sets.AddOutput(u)
	sets.RemoveOutput(1)
	if len(sets.Output()) != 0 {
		t.Fatalf("Output() has %d members after remove, want 0", len(sets.Output()))
	}
	if u.HasFlag(ugen.InOutputSet) {
		t.Error("InOutputSet flag still set after RemoveOutput")
	}
}

func TestRepairRemovesFromBothSets(t *testing.T) {
	sets := NewSets()
	out := newConstOutUgen(1, 1, ugen.Audio, 1)
	run := newConstOutUgen(2, 1, ugen.Block, 1)
	out.Ref()
	run.Ref()
	sets.AddOutput(out)
	sets.AddRun(run)

	sets.Repair(out)
	sets.Repair(run)

	if len(sets.Output()) != 0 || len(sets.Run()) != 0 {
		t.Fatalf("sets not empty after Repair: output=%d run=%d", len(sets.Output()), len(sets.Run()))
	}
}

// MixOutput: first contributor copies and zero-fills, subsequent
// contributors accumulate.
func TestMixOutputSumsContributors(t *testing.T) {
	a := newConstOutUgen(1, 1, ugen.Audio, 0.25)
	b := newConstOutUgen(2, 1, ugen.Audio, 0.5)
	mix := make([]float32, 2*block.BL)
	MixOutput([]ugen.Ugen{a, b}, mix, 2, block.BL, 1)
	for f := 0; f < block.BL; f++ {
		if got, want := mix[f], float32(0.75); got != want {
			t.Fatalf("mix channel 0 frame %d = %v, want %v", f, got, want)
		}
	}
	// Neither contributor produced channel 1; it stays at zero.
	for f := 0; f < block.BL; f++ {
		if mix[block.BL+f] != 0 {
			t.Fatalf("mix channel 1 frame %d = %v, want 0", f, mix[block.BL+f])
		}
	}
}

func TestMixOutputWrapsExcessChannelsModuloMixChans(t *testing.T) {
	// A 2-channel contributor mixed down to a 1-channel mix wraps both
	// of its channels into channel 0.
	u := newConstOutUgen(1, 2, ugen.Audio, 1.0)
	mix := make([]float32, block.BL)
	MixOutput([]ugen.Ugen{u}, mix, 1, block.BL, 1)
	for f := 0; f < block.BL; f++ {
		if got, want := mix[f], float32(2.0); got != want {
			t.Fatalf("mix frame %d = %v, want %v (both channels wrapped in)", f, got, want)
		}
	}
}
