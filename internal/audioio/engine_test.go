package audioio

import (
	"testing"

	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/graph"
	"github.com/rbdannenberg/arco-sub000/internal/inbox"
	"github.com/rbdannenberg/arco-sub000/internal/ugens"
)

func newTestEngine(t *testing.T, graphChans int) *Engine {
	t.Helper()
	table := graph.NewTable(64)
	sets := graph.NewSets()
	ib := inbox.New(16)
	e := NewEngine(table, sets, ib, nil, graphChans)
	e.deviceChans.in = graphChans
	e.deviceChans.out = graphChans
	e.mixBuf = make([]float32, graphChans*block.BL)
	return e
}

func TestCallbackWritesSilenceOutsideRunning(t *testing.T) {
	e := newTestEngine(t, 2)
	in := make([]float32, 2*block.BL)
	out := e.Callback(in, block.BL)
	if len(out) != 2*block.BL {
		t.Fatalf("unexpected output length %d", len(out))
	}
	for _, v := range out {
		if v != 0 {
			t.Fatalf("expected silence while not running, got %v", v)
		}
	}
}

func TestCallbackMixesOutputSetWhenRunning(t *testing.T) {
	e := newTestEngine(t, 1)
	e.state.set(Running)

	c := ugens.NewConstF(100, 0.5)
	if err := e.sets.AddOutput(ugens.NewThru(101, 1, c)); err != nil {
		t.Fatalf("AddOutput: %v", err)
	}

	in := make([]float32, 1*block.BL)
	out := e.Callback(in, block.BL)
	for i, v := range out {
		if v != 0.5 {
			t.Fatalf("sample %d: got %v, want 0.5", i, v)
		}
	}
}

func TestInterleaveMixdownWrapsExtraChannels(t *testing.T) {
	// 2 graph channels down to 1 device channel: channel 1 wraps onto channel 0.
	planar := []float32{1, 1, 2, 2} // ch0 = [1,1], ch1 = [2,2] at BL=2
	out := interleaveMixdown(planar, 2, 1, 2)
	want := []float32{3, 3}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("frame %d: got %v, want %v", i, out[i], want[i])
		}
	}
}

func TestInterleaveMixdownZeroFillsExtraDeviceChannels(t *testing.T) {
	// 1 graph channel up to 2 device channels: channel 1 is zero-filled.
	planar := []float32{1, 1}
	out := interleaveMixdown(planar, 1, 2, 2)
	want := []float32{1, 0, 1, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("index %d: got %v, want %v", i, out[i], want[i])
		}
	}
}
