package ugens

import (
	"log"
	"math"

	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// recBuffer is a dynamic array of fixed-size sample chunks built up
// while recording, played back by position index. Declared separately
// from Recplay so a borrower can share one without copying.
type recBuffer struct {
	chunkSize int
	chunks    [][]float32
	length    int // total recorded samples across all chunks
}

func newRecBuffer(chunkSize int) *recBuffer {
	return &recBuffer{chunkSize: chunkSize}
}

func (r *recBuffer) append(s float32) {
	lastIdx := r.length / r.chunkSize
	offset := r.length % r.chunkSize
	if offset == 0 {
		r.chunks = append(r.chunks, make([]float32, r.chunkSize))
		lastIdx = len(r.chunks) - 1
	}
	r.chunks[lastIdx][offset] = s
	r.length++
}

func (r *recBuffer) at(i int) float32 {
	if i < 0 || i >= r.length {
		return 0
	}
	return r.chunks[i/r.chunkSize][i%r.chunkSize]
}

// raisedCosine returns a [0,1] raised-cosine fade value at progress t in
// [0,1].
func raisedCosine(t float64) float64 {
	return 0.5 - 0.5*math.Cos(t*math.Pi)
}

// Recplay records input into a recBuffer and/or plays it back from a
// float position with speed control (linear interpolation when speed !=
// 1) and raised-cosine fade in/out. A player may Borrow another's buffer
// to enable polyphony over a single recording.
type Recplay struct {
	ugen.Base
	input        ugen.Ugen
	recording    bool
	playing      bool
	owned        *recBuffer
	lender       *Recplay
	pos          float64
	speed        float32
	fadeSeconds  float64
	fadeProgress float64
	fadingOut    bool
	warnedOnce   bool
}

func (r *Recplay) ClassName() string { return "recplay" }

// NewRecplay constructs a Recplay with its own recording buffer.
func NewRecplay(id, chans int, input ugen.Ugen) *Recplay {
	r := &Recplay{input: input, owned: newRecBuffer(block.AR), speed: 1}
	r.Init(id, ugen.Audio, chans, r, func() {
		if r.input != nil {
			r.input.Unref()
		}
		if r.lender != nil {
			r.lender.Unref()
		}
	})
	if input != nil {
		input.Ref()
	}
	return r
}

// Borrow shares lender's recorded buffer instead of owning one, holding
// a strong reference on the lender.
func (r *Recplay) Borrow(lender *Recplay) {
	lender.Ref()
	r.lender = lender
}

func (r *Recplay) buffer() *recBuffer {
	if r.lender != nil {
		return r.lender.owned
	}
	return r.owned
}

// Record starts or stops recording input into the buffer.
func (r *Recplay) Record(on bool) { r.recording = on }

// Start begins playback from the given sample position at the given
// speed, with a fadeSeconds raised-cosine fade-in.
func (r *Recplay) Start(pos float64, speed float32, fadeSeconds float64) {
	r.pos = pos
	r.speed = speed
	r.fadeSeconds = fadeSeconds
	r.fadeProgress = 0
	r.fadingOut = false
	r.playing = true
}

// Stop triggers the fade-out; playback continues until the fade
// completes, at which point it terminates.
func (r *Recplay) Stop(fadeSeconds float64) {
	if !r.playing {
		return
	}
	r.fadeSeconds = fadeSeconds
	r.fadeProgress = 0
	r.fadingOut = true
}

func (r *Recplay) RealRun(currentBlock int64) {
	out := r.Output()
	chans := r.Chans()
	bl := block.BL

	if r.recording && r.input != nil {
		in := r.input.Run(currentBlock)
		inAudio := r.input.Rate() == ugen.Audio
		inChans := r.input.Chans()
		for f := 0; f < bl; f++ {
			var s float32
			for ic := 0; ic < inChans; ic++ {
				if inAudio {
					s += in[ic*bl+f]
				} else {
					s += in[ic]
				}
			}
			if inChans > 0 {
				s /= float32(inChans)
			}
			r.owned.append(s)
		}
	} else if r.input != nil {
		r.input.Run(currentBlock)
	}

	buf := r.buffer()
	if !r.playing || buf == nil {
		for i := range out {
			out[i] = 0
		}
		return
	}

	// Playback position, fade progress, and the fade-out trigger are
	// single shared state (recplay plays back one mono position through
	// every output channel), so they are advanced once per block across
	// a single BL-sample pass rather than once per channel -- advancing
	// them inside the channel loop would make channel 1 read BL samples
	// further along than channel 0 read.
	var frame [block.BL]float32
	pos := r.pos
	fadeProgress := r.fadeProgress
	fadeSeconds := r.fadeSeconds
	fadingOut := r.fadingOut
	stillPlaying := true

	for f := 0; f < bl; f++ {
		n := int(pos)
		frac := float32(pos - float64(n))
		v := buf.at(n) + frac*(buf.at(n+1)-buf.at(n))

		gain := float32(1)
		nearEnd := pos+float64(r.speed)*float64(bl-f) >= float64(buf.length)
		if nearEnd && !fadingOut {
			// Near the end of the recording: trigger the
			// fade-out automatically rather than overrunning
			//. If the fade won't fit before the
			// end, it is clipped and a warning is logged once.
			remaining := (float64(buf.length) - pos) / math.Max(float64(r.speed), 1e-6) / block.AR
			if remaining < fadeSeconds && !r.warnedOnce {
				r.warnedOnce = true
				log.Printf("[audio] recplay %d: fade-out clipped to fit before the end of the recording", r.ID())
			}
			fadeSeconds = math.Min(fadeSeconds, math.Max(remaining, 0))
			fadingOut = true
			fadeProgress = 0
		}
		if fadeProgress < fadeSeconds*block.AR {
			t := fadeProgress / math.Max(fadeSeconds*block.AR, 1)
			if fadingOut {
				gain = float32(raisedCosine(1 - t))
			} else {
				gain = float32(raisedCosine(t))
			}
			fadeProgress++
		} else if fadingOut {
			stillPlaying = false
		}
		frame[f] = v * gain
		pos += float64(r.speed)
	}

	r.pos = pos
	r.fadeProgress = fadeProgress
	r.fadeSeconds = fadeSeconds
	r.fadingOut = fadingOut
	if !stillPlaying {
		r.playing = false
		if r.HasFlag(ugen.CanTerminate) {
			r.Terminate(0)
		}
	}

	for c := 0; c < chans; c++ {
		copy(out[c*bl:c*bl+bl], frame[:])
	}
}
