package ugens

import (
	"encoding/binary"
	"log"
	"sync"

	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/netio"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"

	"gopkg.in/hraban/opus.v2"
)

// netstream relays mono audio over a netio session, Opus-encoded, the
// way client/audio.go's capture/playback pipeline encodes microphone
// input for voice relay. libopus only accepts 8/12/16/24/48 kHz, so both
// ugens resample between the graph's AR and a fixed 48kHz transport rate
// with a small linear resampler (no library in the retrieved pack does
// arbitrary-ratio resampling, so this one is hand-written and kept
// deliberately simple).
const (
	netstreamSampleRate     = 48000
	netstreamFrameMs        = 20
	netstreamFrameSamples   = netstreamSampleRate * netstreamFrameMs / 1000
	netstreamBitrate        = 32000
	netstreamMaxPacketBytes = 1275 // RFC 6716 max Opus packet size
)

// netResampler linearly resamples a push/pull stream between two fixed
// sample rates, buffering whatever input hasn't yet been consumed.
type netResampler struct {
	buf   []float32
	ratio float64 // input samples advanced per output sample
	pos   float64
}

func newNetResampler(fromRate, toRate int) *netResampler {
	return &netResampler{ratio: float64(fromRate) / float64(toRate)}
}

func (r *netResampler) push(samples []float32) {
	r.buf = append(r.buf, samples...)
}

// pull returns n resampled samples, or nil if not enough input has
// accumulated yet. Consumed input is dropped from the internal buffer.
func (r *netResampler) pull(n int) []float32 {
	needed := int(r.pos+float64(n)*r.ratio) + 1
	if needed >= len(r.buf) {
		return nil
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		idx := int(r.pos)
		frac := float32(r.pos - float64(idx))
		out[i] = r.buf[idx]*(1-frac) + r.buf[idx+1]*frac
		r.pos += r.ratio
	}
	consumed := int(r.pos)
	r.buf = r.buf[consumed:]
	r.pos -= float64(consumed)
	return out
}

func floatToPCM16(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(s * 32767)
}

func pcm16ToFloat(s int16) float32 {
	return float32(s) / 32768.0
}

// NetSend pulls its audio-rate input, accumulates it into 20ms Opus
// frames at 48kHz, and sends each encoded frame as a datagram over the
// given session, prefixed with a 2-byte big-endian sequence number so
// the receiver's NACK cache can serve retransmits.
type NetSend struct {
	ugen.Base
	input   ugen.Ugen
	session *netio.Session
	resamp  *netResampler
	enc     *opus.Encoder
	pcmBuf  []int16
	seq     uint16
}

func (n *NetSend) ClassName() string { return "netsend" }

// NewNetSend constructs a NetSend relaying input over session. session
// may be nil, in which case encoded frames are produced but not sent,
// useful for testing the encode path without a live transport.
func NewNetSend(id int, input ugen.Ugen, session *netio.Session) (*NetSend, error) {
	enc, err := opus.NewEncoder(netstreamSampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	enc.SetBitrate(netstreamBitrate)
	n := &NetSend{
		input:   input,
		session: session,
		resamp:  newNetResampler(block.AR, netstreamSampleRate),
		enc:     enc,
		pcmBuf:  make([]int16, netstreamFrameSamples),
	}
	n.Init(id, ugen.Audio, 1, n, func() {
		n.input.Unref()
	})
	input.Ref()
	return n, nil
}

func (n *NetSend) RealRun(currentBlock int64) {
	in := n.input.Run(currentBlock)
	out := n.Output()
	copy(out, in[:block.BL])
	n.resamp.push(in[:block.BL])

	for {
		frame := n.resamp.pull(netstreamFrameSamples)
		if frame == nil {
			break
		}
		for i, s := range frame {
			n.pcmBuf[i] = floatToPCM16(s)
		}
		packet := make([]byte, netstreamMaxPacketBytes)
		nBytes, err := n.enc.Encode(n.pcmBuf, packet)
		if err != nil {
			log.Printf("[netstream] encode failed: %v", err)
			continue
		}
		n.seq++
		payload := make([]byte, 2+nBytes)
		binary.BigEndian.PutUint16(payload, n.seq)
		copy(payload[2:], packet[:nBytes])
		if n.session != nil {
			if err := n.session.SendDatagram(payload); err != nil {
				log.Printf("[netstream] send failed: %v", err)
			}
		}
	}
}

// NetRecv decodes datagrams delivered via Deliver (called from the
// session's receive goroutine) and outputs the resampled, decoded audio
// one block at a time, outputting silence while the receive queue is
// empty -- an underflow is expected at stream start and after a network
// gap, not an error condition.
type NetRecv struct {
	ugen.Base
	dec    *opus.Decoder
	resamp *netResampler
	mu     sync.Mutex
}

func (r *NetRecv) ClassName() string { return "netrecv" }

// NewNetRecv constructs a NetRecv. It owns no session directly: whatever
// reads the session's datagrams calls Deliver with each payload.
func NewNetRecv(id int) (*NetRecv, error) {
	dec, err := opus.NewDecoder(netstreamSampleRate, 1)
	if err != nil {
		return nil, err
	}
	r := &NetRecv{dec: dec, resamp: newNetResampler(netstreamSampleRate, block.AR)}
	r.Init(id, ugen.Audio, 1, r, nil)
	return r, nil
}

// Deliver decodes one received datagram and queues its samples. Safe to
// call from any goroutine; RealRun is the only reader of the queue and
// always runs on the audio thread.
func (r *NetRecv) Deliver(payload []byte) {
	if len(payload) < 2 {
		return
	}
	pcm := make([]int16, netstreamFrameSamples)
	n, err := r.dec.Decode(payload[2:], pcm)
	if err != nil {
		log.Printf("[netstream] decode failed: %v", err)
		return
	}
	floats := make([]float32, n)
	for i := 0; i < n; i++ {
		floats[i] = pcm16ToFloat(pcm[i])
	}
	r.mu.Lock()
	r.resamp.push(floats)
	r.mu.Unlock()
}

func (r *NetRecv) RealRun(currentBlock int64) {
	r.mu.Lock()
	frame := r.resamp.pull(block.BL)
	r.mu.Unlock()
	out := r.Output()
	if frame == nil {
		for i := range out {
			out[i] = 0
		}
		return
	}
	copy(out, frame)
}
