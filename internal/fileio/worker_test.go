package fileio

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/rbdannenberg/arco-sub000/internal/audioblock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func writeTestWav(t *testing.T, path string, channels, rate int, frames []int16, n int) {
	t.Helper()
	w, err := CreateWavWriter(path, channels, rate)
	if err != nil {
		t.Fatalf("CreateWavWriter: %v", err)
	}
	if err := w.WriteFrames(frames, n); err != nil {
		t.Fatalf("WriteFrames: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestWavWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rt.wav")
	frames := []int16{1, -1, 2, -2, 3, -3}
	writeTestWav(t, path, 2, 44100, frames, 3)

	r, err := OpenWavReader(path)
	if err != nil {
		t.Fatalf("OpenWavReader: %v", err)
	}
	defer r.Close()
	if r.Channels != 2 || r.SampleRate != 44100 {
		t.Fatalf("header mismatch: channels=%d rate=%d", r.Channels, r.SampleRate)
	}
	buf := make([]int16, 10*2)
	n, last, err := r.ReadFrames(buf, 10)
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if n != 3 || !last {
		t.Fatalf("ReadFrames = (%d, %v), want (3, true)", n, last)
	}
	for i, want := range frames {
		if buf[i] != want {
			t.Fatalf("buf[%d] = %d, want %d", i, buf[i], want)
		}
	}
}

// drainOnce is unexported; Worker.Run's 20 Hz ticker is unnecessary for a
// deterministic test, so these tests call drainOnce directly instead of
// starting the poll goroutine.

func TestWorkerNewStreamDeliversReadyAndFirstBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.wav")
	frames := make([]int16, 8)
	for i := range frames {
		frames[i] = int16(i * 100)
	}
	writeTestWav(t, path, 1, 44100, frames, 8)

	w := NewWorker(discardLogger())
	r := w.NewStream(path, 0, 0, false)
	readers := make(map[*Reader]bool)
	w.drainOnce(readers)

	select {
	case reply := <-r.Ready:
		if !reply.OK || reply.Channels != 1 {
			t.Fatalf("ready reply = %+v, want OK=true Channels=1", reply)
		}
	default:
		t.Fatal("no ready reply delivered after drainOnce")
	}
	select {
	case blk := <-r.Samps:
		if blk.Frames != 8 || !blk.Last {
			t.Fatalf("first block = frames=%d last=%v, want frames=8 last=true", blk.Frames, blk.Last)
		}
		for i, want := range frames {
			if blk.Data[i] != want {
				t.Fatalf("blk.Data[%d] = %d, want %d", i, blk.Data[i], want)
			}
		}
	default:
		t.Fatal("no block delivered on Samps after drainOnce")
	}
}

func TestWorkerNewStreamOpenFailureReportsNotOK(t *testing.T) {
	w := NewWorker(discardLogger())
	r := w.NewStream(filepath.Join(t.TempDir(), "missing.wav"), 0, 0, false)
	w.drainOnce(make(map[*Reader]bool))

	select {
	case reply := <-r.Ready:
		if reply.OK {
			t.Fatal("expected OK=false for a missing file")
		}
	default:
		t.Fatal("no ready reply delivered after drainOnce")
	}
}

func TestWorkerReadRequestsSubsequentBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.wav")
	frames := make([]int16, 4)
	for i := range frames {
		frames[i] = int16(i + 1)
	}
	writeTestWav(t, path, 1, 44100, frames, 4)

	w := NewWorker(discardLogger())
	r := w.NewStream(path, 0, 0, false)
	readers := make(map[*Reader]bool)
	w.drainOnce(readers)
	<-r.Ready
	first := <-r.Samps
	if !first.Last {
		t.Fatal("expected the only block in a 4-frame file to be marked Last")
	}

	// Requesting another read past EOF without cycling yields an empty,
	// still-Last block rather than blocking.
	w.Read(r)
	w.drainOnce(readers)
	select {
	case second := <-r.Samps:
		if second.Frames != 0 || !second.Last {
			t.Fatalf("post-EOF block = frames=%d last=%v, want frames=0 last=true", second.Frames, second.Last)
		}
	default:
		t.Fatal("expected a (possibly empty) block after Read past EOF")
	}
}

func TestWorkerCyclingStreamReseeksOnLastBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycle.wav")
	frames := []int16{10, 20, 30}
	writeTestWav(t, path, 1, 44100, frames, 3)

	w := NewWorker(discardLogger())
	r := w.NewStream(path, 0, 0, true)
	readers := make(map[*Reader]bool)
	w.drainOnce(readers)
	<-r.Ready
	first := <-r.Samps
	if first.Last {
		t.Fatal("a cycling stream should clear Last once it reseeks to the start")
	}

	w.Read(r)
	w.drainOnce(readers)
	second := <-r.Samps
	for i, want := range frames {
		if second.Data[i] != want {
			t.Fatalf("cycled block Data[%d] = %d, want %d", i, second.Data[i], want)
		}
	}
}

func TestWorkerNewRecorderWritesFramesToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.wav")
	w := NewWorker(discardLogger())
	writer := w.NewRecorder(path, 1, 44100)
	w.drainOnce(make(map[*Reader]bool))
	if writer.w == nil {
		t.Fatal("writer.w is nil after drainOnce, expected CreateWavWriter to have succeeded")
	}

	blk := audioblock.Alloc(1)
	blk.Frames = 2
	blk.Last = true
	blk.Data[0], blk.Data[1] = 111, 222
	w.Write(writer, blk)
	w.drainOnce(make(map[*Reader]bool))

	select {
	case returned := <-writer.Samps:
		if returned != blk {
			t.Fatal("Write did not return the same block pointer on Samps")
		}
	default:
		t.Fatal("expected the written block to be returned on Samps")
	}

	rr, err := OpenWavReader(path)
	if err != nil {
		t.Fatalf("OpenWavReader on recorded file: %v", err)
	}
	defer rr.Close()
	buf := make([]int16, 2)
	n, _, err := rr.ReadFrames(buf, 2)
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if n != 2 || buf[0] != 111 || buf[1] != 222 {
		t.Fatalf("recorded frames = %v (n=%d), want [111 222] (n=2)", buf, n)
	}
}
