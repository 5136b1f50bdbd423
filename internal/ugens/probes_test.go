package ugens

import (
	"math"
	"testing"

	"github.com/rbdannenberg/arco-sub000/internal/block"
)

type recordingNotifier struct {
	addrs []string
	args  []any
}

func (r *recordingNotifier) Notify(addr string, args any) {
	r.addrs = append(r.addrs, addr)
	r.args = append(r.args, args)
}

func TestVuTracksPeakAndReportsAtWindowEnd(t *testing.T) {
	n := &recordingNotifier{}
	src := newConstSignal(1, 1, -0.75)
	vu := NewVu(2, src, n, "/vu", 2)

	vu.Run(1)
	if len(n.addrs) != 0 {
		t.Fatalf("notified before window elapsed: %v", n.addrs)
	}
	out := vu.Run(2)
	if math.Abs(float64(out[0]-0.75)) > 1e-6 {
		t.Fatalf("vu output = %v, want 0.75 (abs peak)", out[0])
	}
	if len(n.addrs) != 1 || n.addrs[0] != "/vu" {
		t.Fatalf("expected one /vu notification, got %v", n.addrs)
	}
	peaks := n.args[0].([]float32)
	if math.Abs(float64(peaks[0]-0.75)) > 1e-6 {
		t.Fatalf("reported peak = %v, want 0.75", peaks[0])
	}
}

func TestOnsetFiresOnceThenHoldsOff(t *testing.T) {
	n := &recordingNotifier{}
	src := newConstSignal(1, 1, 1.0)
	on := NewOnset(2, src, n, "/onset", 0.01, 5)

	on.Run(1) // energy goes from 0 to BL*1.0^2, flux exceeds threshold
	if len(n.addrs) != 1 {
		t.Fatalf("expected one onset notification after first block, got %d", len(n.addrs))
	}
	on.Run(2) // same constant signal: flux is ~0 now regardless of holdoff
	if len(n.addrs) != 1 {
		t.Fatalf("unexpected extra onset notification: %d", len(n.addrs))
	}
}

func TestSpectralCentroidFlatSignalMidBlock(t *testing.T) {
	src := newConstSignal(1, 1, 1.0)
	sc := NewSpectralCentroid(2, src)
	out := sc.Run(1)
	// A flat magnitude envelope weights every frame index equally, so the
	// centroid lands at the block's mean frame index (BL-1)/2, scaled to Hz.
	wantFrame := float32(block.BL-1) / 2
	want := wantFrame * float32(block.AR) / float32(block.BL)
	if math.Abs(float64(out[0]-want)) > 1e-2 {
		t.Fatalf("centroid = %v, want ~%v", out[0], want)
	}
}

func TestSpectralRolloffFlatSignal(t *testing.T) {
	src := newConstSignal(1, 1, 1.0)
	sr := NewSpectralRolloff(2, src)
	out := sr.Run(1)
	// Cumulative magnitude crosses 85% at frame ceil(0.85*BL)-1 for a flat
	// signal; verify it lands late in the block, not at the very start.
	if out[0] < 0.7 || out[0] > 1.0 {
		t.Fatalf("rolloff = %v, want within [0.7, 1.0] for a flat signal", out[0])
	}
}

func TestProbeCollectsAndNotifiesAtStride(t *testing.T) {
	n := &recordingNotifier{}
	src := NewConstF(1, 2.5) // block-rate input, one sample per block
	p := NewProbe(2, src, n, "/probe", 3, 1, 0, false)

	p.Run(1)
	p.Run(2)
	if len(n.addrs) != 0 {
		t.Fatalf("notified before stride reached: %v", n.addrs)
	}
	p.Run(3)
	if len(n.addrs) != 1 {
		t.Fatalf("expected notification once stride of 3 samples collected, got %d", len(n.addrs))
	}
	got := n.args[0].([]float32)
	if len(got) != 3 {
		t.Fatalf("reported batch has %d samples, want 3", len(got))
	}
	for _, v := range got {
		if v != 2.5 {
			t.Fatalf("batch sample = %v, want 2.5", v)
		}
	}
}

func TestProbeWaitsForThresholdBeforeCollecting(t *testing.T) {
	n := &recordingNotifier{}
	src := NewConstF(1, 0.1)
	p := NewProbe(2, src, n, "/probe", 1, 1, 0.5, true)

	p.Run(1) // below threshold, stays waiting
	if len(n.addrs) != 0 {
		t.Fatalf("notified while below threshold: %v", n.addrs)
	}
	src.Set(0, 0.9)
	p.Run(2) // crosses threshold this block, transitions to collecting
	p.Run(3) // collects the now-crossed sample
	if len(n.addrs) == 0 {
		t.Fatal("expected a notification once the threshold was crossed and a sample collected")
	}
}
