package prefs

import (
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefs.yaml")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.InChans != 2 || p.OutChans != 2 {
		t.Fatalf("expected default stereo in/out, got %+v", p)
	}
	if p.BufferSize != 256 {
		t.Fatalf("expected default buffer size 256, got %d", p.BufferSize)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefs.yaml")

	want := Prefs{
		AudioInName:  "Built-in Mic",
		AudioOutName: "Built-in Output",
		InChans:      1,
		OutChans:     2,
		BufferSize:   128,
		Latency:      5.5,
	}
	if err := Save(want, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, want)
	}
}
