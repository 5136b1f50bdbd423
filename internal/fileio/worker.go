package fileio

import (
	"log/slog"
	"time"

	"github.com/rbdannenberg/arco-sub000/internal/audioblock"
)

// Reader is the file-side state for one streaming-read (strplay)
// session. In the original, audio-side and file-side objects exchange a
// 64-bit address as an opaque handle; since both sides share one Go
// process's memory safely, this is simply a shared pointer. The
// exactly-one-owning-reference-per-in-flight-message invariant still
// holds: a message is never sent until the previous one was received.
type Reader struct {
	r          *WavReader
	Channels   int
	cycle      bool
	startFrame int64
	endFrame   int64
	curFrame   int64

	Ready chan readyMsg
	Samps chan *audioblock.Block
	quit  chan struct{}
}

type readyMsg struct {
	Channels int
	OK       bool
}

// Writer is the file-side state for one streaming-record (filerec)
// session; symmetric to Reader.
type Writer struct {
	w     *WavWriter
	Samps chan *audioblock.Block // returns emptied buffers to the audio side
	quit  chan struct{}
}

// Worker owns the file-I/O thread: it polls pending open/read/write
// requests at a relaxed cadence (20 Hz, matching the design rationale in
// original_source/arco/src/fileio.h) rather than blocking indefinitely
// on any one stream, so many streams can share one goroutine's attention
// without head-of-line blocking.
type Worker struct {
	log      *slog.Logger
	newReq   chan newReadReq
	readReq  chan *Reader
	playReq  chan playReq
	newWrReq chan newWriteReq
	writeReq chan writeReq
	quitWr   chan *Writer
}

type newReadReq struct {
	filename           string
	startSec, endSec   float64
	cycle              bool
	reply              *Reader
}

type playReq struct {
	r    *Reader
	play bool
}

type newWriteReq struct {
	filename          string
	channels, rate    int
	reply             *Writer
}

type writeReq struct {
	w     *Writer
	block *audioblock.Block
}

// NewWorker constructs a Worker; call Run in its own goroutine to start
// the poll loop.
func NewWorker(log *slog.Logger) *Worker {
	return &Worker{
		log:      log,
		newReq:   make(chan newReadReq, 32),
		readReq:  make(chan *Reader, 256),
		playReq:  make(chan playReq, 32),
		newWrReq: make(chan newWriteReq, 32),
		writeReq: make(chan writeReq, 256),
		quitWr:   make(chan *Writer, 32),
	}
}

// Run drains the worker's request channels at 20 Hz until stop is
// closed, leaving the audio thread free of any blocking file I/O.
func (w *Worker) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	readers := make(map[*Reader]bool)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.drainOnce(readers)
		}
	}
}

func (w *Worker) drainOnce(readers map[*Reader]bool) {
	for {
		select {
		case req := <-w.newReq:
			w.handleNew(req)
		case r := <-w.readReq:
			readers[r] = true
			w.refill(r)
		case req := <-w.playReq:
			if !req.play {
				close(req.r.quit)
				delete(readers, req.r)
			}
		case req := <-w.newWrReq:
			w.handleNewWrite(req)
		case req := <-w.writeReq:
			w.handleWrite(req)
		case writer := <-w.quitWr:
			if writer.w != nil {
				if err := writer.w.Close(); err != nil {
					w.log.Error("filerec: close failed", "error", err)
				}
			}
		default:
			return
		}
	}
}

// NewStream queues a request to open filename for streaming playback and
// returns its Reader at once. When the worker handles the request it
// sends the first block on Samps and then the ready reply on Ready,
// mirroring strplay's new/samps/ready sequence.
func (w *Worker) NewStream(filename string, startSec, endSec float64, cycle bool) *Reader {
	r := &Reader{
		Ready: make(chan readyMsg, 1),
		Samps: make(chan *audioblock.Block, 2),
		quit:  make(chan struct{}),
	}
	req := newReadReq{filename: filename, startSec: startSec, endSec: endSec, cycle: cycle, reply: r}
	w.newReq <- req
	return r
}

func (w *Worker) handleNew(req newReadReq) {
	r := req.reply
	wr, err := OpenWavReader(req.filename)
	if err != nil {
		w.log.Warn("strplay: open failed", "file", req.filename, "error", err)
		r.Ready <- readyMsg{OK: false}
		return
	}
	r.r = wr
	r.Channels = wr.Channels
	r.cycle = req.cycle
	r.startFrame = int64(req.startSec * float64(wr.SampleRate))
	if req.endSec > 0 {
		r.endFrame = int64(req.endSec * float64(wr.SampleRate))
	}
	if err := wr.SeekFrame(r.startFrame); err != nil {
		w.log.Warn("strplay: seek failed", "file", req.filename, "error", err)
		r.Ready <- readyMsg{OK: false}
		return
	}
	r.curFrame = r.startFrame
	w.refill(r)
	r.Ready <- readyMsg{Channels: wr.Channels, OK: true}
}

// Read requests the next block for an already-open Reader (the "read"
// message).
func (w *Worker) Read(r *Reader) { w.readReq <- r }

func (w *Worker) refill(r *Reader) {
	blk := audioblock.Alloc(r.Channels)
	n, last, err := r.r.ReadFrames(blk.Data, audioblock.MaxFrames)
	if err != nil {
		w.log.Warn("strplay: read failed", "error", err)
		return
	}
	if last && r.cycle {
		if err := r.r.SeekFrame(r.startFrame); err == nil {
			r.curFrame = r.startFrame
			last = false
		}
	}
	blk.Frames = n
	blk.Last = last
	r.curFrame += int64(n)
	select {
	case r.Samps <- blk:
	default:
		w.log.Warn("strplay: samps channel full, dropping block")
	}
}

// Play stops a stream: with play=false the worker closes the reader's
// internal quit channel and stops refilling it. play=true has no effect.
func (w *Worker) Play(r *Reader, play bool) { w.playReq <- playReq{r: r, play: play} }

// NewRecorder opens filename for streaming record.
func (w *Worker) NewRecorder(filename string, channels, sampleRate int) *Writer {
	wr := &Writer{Samps: make(chan *audioblock.Block, 2), quit: make(chan struct{})}
	w.newWrReq <- newWriteReq{filename: filename, channels: channels, rate: sampleRate, reply: wr}
	return wr
}

func (w *Worker) handleNewWrite(req newWriteReq) {
	ww, err := CreateWavWriter(req.filename, req.channels, req.rate)
	if err != nil {
		w.log.Warn("filerec: create failed", "file", req.filename, "error", err)
		return
	}
	req.reply.w = ww
}

// Write hands a filled block to the file side (the "write" message of
// the recording protocol); the buffer is returned via Samps once
// flushed so the audio side can reuse it.
func (w *Worker) Write(writer *Writer, blk *audioblock.Block) {
	w.writeReq <- writeReq{w: writer, block: blk}
}

func (w *Worker) handleWrite(req writeReq) {
	if req.w.w == nil {
		return
	}
	if err := req.w.w.WriteFrames(req.block.Data, req.block.Frames); err != nil {
		w.log.Warn("filerec: write failed", "error", err)
	}
	if req.block.Last {
		w.quitWr <- req.w
	}
	select {
	case req.w.Samps <- req.block:
	default:
	}
}

// StopRecording closes the writer's file.
func (w *Worker) StopRecording(writer *Writer) { w.quitWr <- writer }
