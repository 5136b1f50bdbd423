package ugens

import (
	"log"

	"github.com/rbdannenberg/arco-sub000/internal/audioblock"
	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/fileio"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// Strplay is the audio-thread half of streaming file playback: it holds
// no file descriptor itself, only a reference to the file-I/O worker's
// Reader, and consumes frames from its Samps channel, requesting the
// next block once the current one is exhausted. Grounded on
// original_source/arco/src/strplay.h and the protocol
type Strplay struct {
	ugen.Base
	worker    *fileio.Worker
	reader    *fileio.Reader
	ready     bool
	finished  bool
	current   *audioblock.Block
	readPos   int
	underflow int
}

func (s *Strplay) ClassName() string { return "strplay" }

// NewStrplay opens filename for streaming playback via worker and
// constructs the ugen. Playback does not start producing real samples
// until the worker's ready reply arrives; until then the ugen outputs
// silence, matching the "streaming underflow... outputs zeros and logs"
// policy
func NewStrplay(id, chans int, worker *fileio.Worker, filename string, startSec, endSec float64, cycle bool) *Strplay {
	s := &Strplay{worker: worker}
	s.Init(id, ugen.Audio, chans, s, nil)
	s.reader = worker.NewStream(filename, startSec, endSec, cycle)
	return s
}

// Quit stops the stream (play(handle, false)).
func (s *Strplay) Quit() {
	if s.reader != nil {
		s.worker.Play(s.reader, false)
	}
}

func (s *Strplay) pollReady() {
	select {
	case reply := <-s.reader.Ready:
		s.ready = reply.OK
		if !reply.OK {
			log.Printf("[audio] strplay %d: open failed", s.ID())
			s.finished = true
		}
	default:
	}
}

func (s *Strplay) nextBlock() *audioblock.Block {
	select {
	case blk := <-s.reader.Samps:
		return blk
	default:
		return nil
	}
}

func (s *Strplay) RealRun(currentBlock int64) {
	out := s.Output()
	chans := s.Chans()
	bl := block.BL

	if !s.ready {
		s.pollReady()
	}
	if !s.ready || s.finished {
		for i := range out {
			out[i] = 0
		}
		return
	}

	fileChans := s.reader.Channels
	for f := 0; f < bl; f++ {
		if s.current == nil || s.readPos >= s.current.Frames*fileChans {
			s.current = s.nextBlock()
			s.readPos = 0
			if s.current == nil {
				s.underflow++
				if s.underflow <= 10 {
					log.Printf("[audio] strplay %d: underflow, outputting silence", s.ID())
				}
				for c := 0; c < chans; c++ {
					out[c*bl+f] = 0
				}
				continue
			}
			if s.current.Frames > 0 {
				s.worker.Read(s.reader)
			}
			if s.current.Last {
				s.finished = true
			}
		}
		for c := 0; c < chans; c++ {
			fc := c % fileChans
			v := float32(s.current.Data[s.readPos+fc]) / 32768.0
			out[c*bl+f] = v
		}
		s.readPos += fileChans
	}

	if s.finished && s.HasFlag(ugen.CanTerminate) {
		s.Terminate(0)
	}
}

// Filerec is the audio-thread half of streaming file recording: it
// accumulates a float input into a 16-bit block and hands it to the
// worker once full, double-buffering so the worker can write one block
// while the audio thread fills the next.
type Filerec struct {
	ugen.Base
	worker  *fileio.Worker
	writer  *fileio.Writer
	input   ugen.Ugen
	current *audioblock.Block
	pos     int
	recording bool
}

func (f *Filerec) ClassName() string { return "filerec" }

// NewFilerec opens filename for recording via worker.
func NewFilerec(id, chans int, worker *fileio.Worker, input ugen.Ugen, filename string) *Filerec {
	f := &Filerec{worker: worker, input: input, recording: true}
	f.Init(id, ugen.Audio, chans, f, func() { f.input.Unref() })
	input.Ref()
	f.writer = worker.NewRecorder(filename, chans, block.AR)
	f.current = audioblock.Alloc(chans)
	return f
}

// Stop flushes the current partial block (marked Last) and closes the
// file.
func (f *Filerec) Stop() {
	if !f.recording {
		return
	}
	f.recording = false
	f.current.Frames = f.pos / f.Chans()
	f.current.Last = true
	f.worker.Write(f.writer, f.current)
}

func (f *Filerec) RealRun(currentBlock int64) {
	in := f.input.Run(currentBlock)
	out := f.Output()
	copy(out, in) // Thru semantics: pass audio through while also recording

	if !f.recording {
		return
	}
	chans := f.Chans()
	bl := block.BL
	for fr := 0; fr < bl; fr++ {
		for c := 0; c < chans; c++ {
			s := in[c*bl+fr]
			if s > 1 {
				s = 1
			} else if s < -1 {
				s = -1
			}
			f.current.Data[f.pos] = int16(s * 32767)
			f.pos++
		}
		if f.pos >= len(f.current.Data) {
			f.current.Frames = audioblock.MaxFrames
			f.worker.Write(f.writer, f.current)
			f.current = audioblock.Alloc(chans)
			f.pos = 0
		}
	}
}
