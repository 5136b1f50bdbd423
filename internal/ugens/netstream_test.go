package ugens

import "testing"

func TestNetResamplerUnityRatioPreservesValue(t *testing.T) {
	r := newNetResampler(1, 1) // 1:1 ratio, exercises the interpolation path trivially
	r.push([]float32{0, 1, 2, 3, 4, 5})
	out := r.pull(4)
	if out == nil {
		t.Fatal("expected enough buffered input")
	}
	want := []float32{0, 1, 2, 3}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("sample %d: got %v, want %v", i, out[i], want[i])
		}
	}
}

func TestNetResamplerReturnsNilWhenStarved(t *testing.T) {
	r := newNetResampler(1, 1)
	r.push([]float32{0, 1})
	if out := r.pull(10); out != nil {
		t.Fatalf("expected nil with insufficient input, got %v", out)
	}
}

func TestNetResamplerDownsampleInterpolates(t *testing.T) {
	// 2 input samples per output sample; output[1] lands exactly on
	// input[2].
	r := newNetResampler(2, 1)
	r.push([]float32{0, 1, 2, 3, 4, 5, 6, 7})
	out := r.pull(3)
	if out == nil {
		t.Fatal("expected enough buffered input")
	}
	if out[0] != 0 {
		t.Fatalf("sample 0: got %v, want 0", out[0])
	}
	if out[1] != 2 {
		t.Fatalf("sample 1: got %v, want 2", out[1])
	}
}

func TestFloatPCM16RoundTrip(t *testing.T) {
	for _, f := range []float32{0, 0.5, -0.5, 1, -1} {
		got := pcm16ToFloat(floatToPCM16(f))
		diff := got - f
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.001 {
			t.Fatalf("round trip for %v: got %v", f, got)
		}
	}
}

func TestFloatToPCM16Clamps(t *testing.T) {
	if floatToPCM16(2.0) != 32767 {
		t.Fatalf("expected clamp to max int16 scale, got %d", floatToPCM16(2.0))
	}
	if floatToPCM16(-2.0) != -32767 {
		t.Fatalf("expected clamp to min int16 scale, got %d", floatToPCM16(-2.0))
	}
}
