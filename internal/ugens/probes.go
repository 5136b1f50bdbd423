package ugens

import (
	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/notify"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// probeState mirrors the PROBE_IDLE/WAITING/COLLECTING/DELAYING state
// machine in original_source/arco/src/probe.h.
type probeState int

const (
	probeIdle probeState = iota
	probeWaiting
	probeCollecting
	probeDelaying
)

// Probe captures a configurable stride of samples from its input's first
// channel (other input channels are not read), optionally waiting for a
// threshold crossing, and sends an outbound message with a batch of
// floats. It produces no audio output
// and belongs in the run set.
type Probe struct {
	ugen.Base
	input      ugen.Ugen
	notifier   notify.Notifier
	addr       string
	stride     int
	threshold  float32
	waitFor    bool
	state      probeState
	collected  []float32
	sinceDelay int
	period     int
}

func (p *Probe) ClassName() string { return "probe" }

// NewProbe constructs a probe over input, reporting stride samples per
// notification to addr.
func NewProbe(id int, input ugen.Ugen, n notify.Notifier, addr string, stride, periodBlocks int, threshold float32, waitFor bool) *Probe {
	p := &Probe{input: input, notifier: n, addr: addr, stride: stride, threshold: threshold, waitFor: waitFor, period: periodBlocks}
	p.Init(id, ugen.Block, 1, p, func() { p.input.Unref() })
	input.Ref()
	if waitFor {
		p.state = probeWaiting
	} else {
		p.state = probeCollecting
	}
	return p
}

func (p *Probe) RealRun(currentBlock int64) {
	in := p.input.Run(currentBlock)
	inAudio := p.input.Rate() == ugen.Audio
	bl := block.BL

	switch p.state {
	case probeWaiting:
		crossed := false
		if inAudio {
			for f := 0; f < bl; f++ {
				if in[f] >= p.threshold {
					crossed = true
					break
				}
			}
		} else if in[0] >= p.threshold {
			crossed = true
		}
		if crossed {
			p.state = probeCollecting
		}
	case probeCollecting:
		if inAudio {
			p.collected = append(p.collected, in[:bl]...)
		} else {
			p.collected = append(p.collected, in[0])
		}
		if len(p.collected) >= p.stride {
			if p.notifier != nil {
				p.notifier.Notify(p.addr, append([]float32(nil), p.collected[:p.stride]...))
			}
			p.collected = p.collected[p.stride:]
			p.state = probeDelaying
			p.sinceDelay = 0
		}
	case probeDelaying:
		p.sinceDelay++
		if p.sinceDelay >= p.period {
			if p.waitFor {
				p.state = probeWaiting
			} else {
				p.state = probeCollecting
			}
		}
	}
}

// Vu tracks per-channel peak amplitude over a window and periodically
// reports it.
type Vu struct {
	ugen.Base
	input        ugen.Ugen
	notifier     notify.Notifier
	addr         string
	windowBlocks int
	blocksSeen   int
	peaks        []float32
}

func (v *Vu) ClassName() string { return "vu" }

// NewVu constructs a VU meter over input, reporting peaks to addr every
// windowBlocks blocks.
func NewVu(id int, input ugen.Ugen, n notify.Notifier, addr string, windowBlocks int) *Vu {
	v := &Vu{input: input, notifier: n, addr: addr, windowBlocks: windowBlocks}
	v.Init(id, ugen.Block, input.Chans(), v, func() { v.input.Unref() })
	v.peaks = make([]float32, input.Chans())
	input.Ref()
	return v
}

func (v *Vu) RealRun(currentBlock int64) {
	in := v.input.Run(currentBlock)
	chans := v.input.Chans()
	bl := block.BL
	audio := v.input.Rate() == ugen.Audio
	for c := 0; c < chans; c++ {
		if audio {
			for f := 0; f < bl; f++ {
				s := in[c*bl+f]
				if s < 0 {
					s = -s
				}
				if s > v.peaks[c] {
					v.peaks[c] = s
				}
			}
		} else {
			s := in[c]
			if s < 0 {
				s = -s
			}
			if s > v.peaks[c] {
				v.peaks[c] = s
			}
		}
	}
	copy(v.Output(), v.peaks)
	v.blocksSeen++
	if v.blocksSeen >= v.windowBlocks {
		if v.notifier != nil {
			v.notifier.Notify(v.addr, append([]float32(nil), v.peaks...))
		}
		for i := range v.peaks {
			v.peaks[i] = 0
		}
		v.blocksSeen = 0
	}
}

// Onset computes, for each block, a simple spectral-difference detection
// function per channel, keeping only the previous block's energy rather
// than a buffer of frames (an energy-flux onset detector -- a stand-in for
// the source's linear-prediction spectral difference, whose exact
// numeric kernel is explicitly out of scope), and sends
// an event message on detection.
type Onset struct {
	ugen.Base
	input       ugen.Ugen
	notifier    notify.Notifier
	addr        string
	threshold   float32
	prevEnergy  []float32
	holdoff     int
	holdoffLeft int
}

func (o *Onset) ClassName() string { return "onset" }

// NewOnset constructs an onset detector over input.
func NewOnset(id int, input ugen.Ugen, n notify.Notifier, addr string, threshold float32, holdoffBlocks int) *Onset {
	o := &Onset{input: input, notifier: n, addr: addr, threshold: threshold, holdoff: holdoffBlocks}
	o.Init(id, ugen.Block, input.Chans(), o, func() { o.input.Unref() })
	o.prevEnergy = make([]float32, input.Chans())
	input.Ref()
	return o
}

func (o *Onset) RealRun(currentBlock int64) {
	in := o.input.Run(currentBlock)
	chans := o.input.Chans()
	bl := block.BL
	out := o.Output()
	if o.holdoffLeft > 0 {
		o.holdoffLeft--
	}
	for c := 0; c < chans; c++ {
		var energy float32
		for f := 0; f < bl; f++ {
			s := in[c*bl+f]
			energy += s * s
		}
		flux := energy - o.prevEnergy[c]
		out[c] = flux
		o.prevEnergy[c] = energy
		if flux > o.threshold && o.holdoffLeft == 0 {
			o.holdoffLeft = o.holdoff
			if o.notifier != nil {
				o.notifier.Notify(o.addr, map[string]any{"channel": c, "flux": flux})
			}
		}
	}
}

// SpectralCentroid and SpectralRolloff are block-rate feature probes
// computed from a simple per-block magnitude-weighted frequency estimate
// rather than a full FFT; their rate/termination contract matches the
// other probes.
type SpectralCentroid struct {
	ugen.Base
	input ugen.Ugen
}

func (s *SpectralCentroid) ClassName() string { return "spectralcentroid" }

// NewSpectralCentroid constructs a per-channel spectral-centroid probe.
func NewSpectralCentroid(id int, input ugen.Ugen) *SpectralCentroid {
	s := &SpectralCentroid{input: input}
	s.Init(id, ugen.Block, input.Chans(), s, func() { s.input.Unref() })
	input.Ref()
	return s
}

func (s *SpectralCentroid) RealRun(currentBlock int64) {
	in := s.input.Run(currentBlock)
	chans := s.input.Chans()
	bl := block.BL
	out := s.Output()
	for c := 0; c < chans; c++ {
		var num, den float32
		for f := 0; f < bl; f++ {
			m := in[c*bl+f]
			if m < 0 {
				m = -m
			}
			num += m * float32(f)
			den += m
		}
		if den > 1e-9 {
			out[c] = (num / den) * float32(block.AR) / float32(bl)
		} else {
			out[c] = 0
		}
	}
}

// SpectralRolloff reports the fraction of frames into the block at
// which cumulative magnitude crosses 85% of the block total.
type SpectralRolloff struct {
	ugen.Base
	input ugen.Ugen
}

func (s *SpectralRolloff) ClassName() string { return "spectralrolloff" }

// NewSpectralRolloff constructs a per-channel spectral-rolloff probe.
func NewSpectralRolloff(id int, input ugen.Ugen) *SpectralRolloff {
	s := &SpectralRolloff{input: input}
	s.Init(id, ugen.Block, input.Chans(), s, func() { s.input.Unref() })
	input.Ref()
	return s
}

const rolloffFraction = 0.85

func (s *SpectralRolloff) RealRun(currentBlock int64) {
	in := s.input.Run(currentBlock)
	chans := s.input.Chans()
	bl := block.BL
	out := s.Output()
	for c := 0; c < chans; c++ {
		var total float32
		for f := 0; f < bl; f++ {
			m := in[c*bl+f]
			if m < 0 {
				m = -m
			}
			total += m
		}
		target := total * rolloffFraction
		var cum float32
		out[c] = 1
		for f := 0; f < bl; f++ {
			m := in[c*bl+f]
			if m < 0 {
				m = -m
			}
			cum += m
			if cum >= target {
				out[c] = float32(f) / float32(bl)
				break
			}
		}
	}
}
