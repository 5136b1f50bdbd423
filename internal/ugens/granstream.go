package ugens

import (
	"math/rand"

	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/ring"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// granState is a grain's four-state lifecycle (predelay/rise/hold/fall),
// grounded on original_source/arco/src/granstream.h's Gran_state enum.
type granState int

const (
	granPredelay granState = iota
	granRise
	granHold
	granFall
)

// grain manages a single grain within one channel's polyphony.
type grain struct {
	state         granState
	delayBlocks   int // blocks remaining in predelay/fall before next transition
	durBlocks     int
	riseBlocks    int
	fallBlocks    int
	ratio         float32 // sample-rate conversion; pitch multiplier
	readPos       float32 // fractional read offset, negative relative to write head
	env           float32
	envIncr       float32
}

func (g *grain) reset() {
	g.state = granFall
	g.delayBlocks = 1
	g.env = 0
}

// channelState is one channel's delay-line history plus its grains.
type channelState struct {
	history *ring.Buffer
	writePos int
	grains   []grain
}

// Granstream is an input-driven granular texture generator: a ring per
// channel feeds a configurable polyphony of grains. The density field is
// not used in scheduling: each grain starts its next grain as soon as
// its fall (or its initial one-block predelay) ends.
type Granstream struct {
	ugen.Base
	input                        ugen.Ugen
	polyphony                    int
	durSeconds                   float64
	enable                       bool
	stopRequest                  bool
	high, low                    float32
	highDur, lowDur              float32
	density                      float32
	attack, release              float32
	states                       []*channelState
	rng                          *rand.Rand
}

func (g *Granstream) ClassName() string { return "granstream" }

// NewGranstream constructs a granular streamer over input with the given
// per-channel polyphony and history-buffer duration.
func NewGranstream(id, chans int, input ugen.Ugen, polyphony int, durSeconds float64, enable bool, seed int64) *Granstream {
	g := &Granstream{
		input: input, polyphony: polyphony, durSeconds: durSeconds, enable: enable,
		high: 1, low: 1, highDur: 0.1, lowDur: 0.1,
		attack: 0.02, release: 0.02,
		density: float32(polyphony) * 0.5,
		rng:     rand.New(rand.NewSource(seed)),
	}
	g.Init(id, ugen.Audio, chans, g, func() { g.input.Unref() })
	histLen := block.RoundUpToBlock(int(durSeconds*block.AR)) + block.BL
	g.states = make([]*channelState, chans)
	for c := range g.states {
		cs := &channelState{history: ring.New(histLen), grains: make([]grain, polyphony)}
		for i := range cs.grains {
			cs.grains[i].reset()
		}
		g.states[c] = cs
	}
	input.Ref()
	return g
}

// SetEnable starts or gracefully stops grain production: disabling sets
// stop_request so no new grains start, but the last active grain is
// allowed to finish.
func (g *Granstream) SetEnable(enable bool) {
	g.stopRequest = !enable
	if enable {
		g.enable = true
	}
}

func (g *Granstream) runGrain(cs *channelState, gr *grain, out []float32, bl int) bool {
	switch gr.state {
	case granPredelay, granFall:
		fading := gr.state == granFall && gr.delayBlocks > 0 && gr.env > 0
		if fading {
			g.advanceGrain(cs, gr, out, bl, false)
		}
		gr.delayBlocks--
		if gr.delayBlocks > 0 {
			return fading
		}
		if g.stopRequest || !g.enable {
			return false
		}
		// Pick parameters for the next grain and move to rise.
		gr.ratio = g.low + g.rng.Float32()*(g.high-g.low)
		durSec := g.lowDur + g.rng.Float32()*(g.highDur-g.lowDur)
		gr.durBlocks = block.SecondsToBlocks(float64(durSec))
		gr.riseBlocks = block.SecondsToBlocks(float64(g.attack))
		gr.fallBlocks = block.SecondsToBlocks(float64(g.release))
		maxBack := float32(cs.history.Len())
		gr.readPos = -g.rng.Float32() * maxBack * 0.5
		gr.state = granRise
		gr.env = 0
		gr.envIncr = 1.0 / float32(gr.riseBlocks*bl)
		return true
	case granRise:
		g.advanceGrain(cs, gr, out, bl, true)
		gr.riseBlocks--
		if gr.riseBlocks <= 0 {
			gr.state = granHold
		}
		return true
	case granHold:
		g.advanceGrain(cs, gr, out, bl, false)
		gr.durBlocks--
		if gr.durBlocks <= 0 {
			gr.state = granFall
			gr.envIncr = -1.0 / float32(gr.fallBlocks*bl)
			gr.delayBlocks = gr.fallBlocks
		}
		return true
	}
	return false
}

func (g *Granstream) advanceGrain(cs *channelState, gr *grain, out []float32, bl int, ramping bool) {
	for f := 0; f < bl; f++ {
		if ramping || gr.state == granFall {
			gr.env += gr.envIncr
			if gr.env > 1 {
				gr.env = 1
			}
			if gr.env < 0 {
				gr.env = 0
			}
		} else {
			gr.env = 1
		}
		idx := int(gr.readPos)
		s := cs.history.GetNth(-idx)
		out[f] += s * gr.env
		gr.readPos += gr.ratio
	}
}

func (g *Granstream) chanA(cs *channelState, out []float32, bl int) bool {
	active := false
	for i := range cs.grains {
		if g.runGrain(cs, &cs.grains[i], out, bl) {
			active = true
		}
	}
	return active
}

func (g *Granstream) RealRun(currentBlock int64) {
	in := g.input.Run(currentBlock)
	out := g.Output()
	chans := g.Chans()
	bl := block.BL
	inAudio := g.input.Rate() == ugen.Audio
	inChans := g.input.Chans()

	active := false
	for c := 0; c < chans; c++ {
		ic := c % inChans
		cs := g.states[c]
		if inAudio {
			cs.history.EnqueueBlock(in[ic*bl : ic*bl+bl])
		} else {
			for f := 0; f < bl; f++ {
				cs.history.Enqueue(in[ic])
			}
		}
		seg := out[c*bl : c*bl+bl]
		for i := range seg {
			seg[i] = 0
		}
		if g.chanA(cs, seg, bl) {
			active = true
		}
	}

	if g.stopRequest && !active {
		g.stopRequest = false
		g.enable = false
		for _, cs := range g.states {
			for i := range cs.grains {
				cs.grains[i].reset()
			}
		}
	}
}
