package ugens

import "testing"

// With enable=false at construction and never toggled on, every grain's
// granFall-state delayBlocks never clears the "disabled" gate in runGrain,
// so no grain ever advances to granRise: output stays silent regardless of
// input, deterministically (no dependency on the per-grain RNG draws).
func TestGranstreamDisabledProducesSilence(t *testing.T) {
	src := newConstSignal(1, 1, 1.0)
	g := NewGranstream(2, 1, src, 4, 0.05, false, 42)

	for blk := int64(1); blk <= 4; blk++ {
		out := g.Run(blk)
		for _, v := range out {
			if v != 0 {
				t.Fatalf("block %d: disabled granstream output = %v, want all 0", blk, v)
			}
		}
	}
}

func TestGranstreamRecordsInputIntoHistory(t *testing.T) {
	src := newConstSignal(1, 1, 0.33)
	g := NewGranstream(2, 1, src, 4, 0.05, false, 1)

	g.Run(1)
	got := g.states[0].history.GetNth(0)
	if got != 0.33 {
		t.Fatalf("history.GetNth(0) = %v, want 0.33 (most recent input sample)", got)
	}
}
