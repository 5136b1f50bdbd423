// Package audioio implements the audio I/O state machine: device
// open/close, the duplex callback loop, deinterleave/interleave,
// mix-down/zero-fill across device vs. graph channel counts, and the
// wall-clock/audio-clock handoff. Grounded on
// original_source/arco/src/audioio.h/.cpp and structurally on
// client/audio.go's capture/playback goroutine pair, collapsed into one
// full-duplex loop because Arco's device callback carries both
// directions at once.
package audioio

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/graph"
	"github.com/rbdannenberg/arco-sub000/internal/inbox"
	"github.com/rbdannenberg/arco-sub000/internal/notify"
	"github.com/rbdannenberg/arco-sub000/internal/prefs"
	"github.com/rbdannenberg/arco-sub000/internal/ugens"

	"github.com/gordonklaus/portaudio"
)

// Device abstracts a duplex PortAudio stream for testing, mirroring the
// teacher's paStream interface in client/audio.go.
type Device interface {
	Start() error
	Stop() error
	Close() error
	Read() error
	Write() error
}

// Engine owns the audio I/O state machine, the duplex device stream, and
// the clock handoff between wall-clock and audio-frame time. Only the
// goroutine running Run may mutate graph state (table, sets, ugens);
// Notifier and everything reached through prefs is safe to touch from
// any goroutine before Open.
type Engine struct {
	mu    sync.Mutex
	state stateHolder

	table *graph.Table
	sets  *graph.Sets
	ib    *inbox.Inbox
	notif notify.Notifier

	deviceInput *ugens.Thru
	prevOutput  *ugens.Thru

	graphChans  int
	deviceChans struct{ in, out int }

	stream Device
	open   func(in, out, bufSize int, latencyMs float64) (Device, []float32, []float32, error)

	currentBlock int64
	wallOffset   time.Duration
	frameClock   time.Duration

	mixBuf        []float32
	deinterleaved []float32
}

// NewEngine constructs an Engine bound to the given graph table, output/
// run sets, inbox, and outbound notifier. graphChans is the ugen graph's
// channel count (the device's channel count may differ; the callback
// mixes down or zero-fills).
func NewEngine(table *graph.Table, sets *graph.Sets, ib *inbox.Inbox, notif notify.Notifier, graphChans int) *Engine {
	e := &Engine{
		table:      table,
		sets:       sets,
		ib:         ib,
		notif:      notif,
		graphChans: graphChans,
	}
	e.state.set(Uninitialized)
	e.deviceInput = ugens.NewThru(graph.InputID, graphChans, nil)
	e.prevOutput = ugens.NewThru(graph.PrevOutputID, graphChans, nil)
	table.Install(e.deviceInput)
	table.Install(e.prevOutput)
	e.state.set(Idle)
	return e
}

// State reports the current audio I/O state machine position.
func (e *Engine) State() State { return e.state.get() }

// openPortAudio is the production Device factory, matching client/
// audio.go's portaudio.OpenStream usage pattern but as a single duplex
// stream since Arco's callback carries both directions.
func openPortAudio(inDev, outDev *portaudio.DeviceInfo, bufSize int, latencyMs float64, inChans, outChans int) (Device, []float32, []float32, error) {
	latency := time.Duration(latencyMs * float64(time.Millisecond))
	inBuf := make([]float32, inChans*bufSize)
	outBuf := make([]float32, outChans*bufSize)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device: inDev, Channels: inChans, Latency: latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Device: outDev, Channels: outChans, Latency: latency,
		},
		SampleRate:      block.AR,
		FramesPerBuffer: bufSize,
	}
	stream, err := portaudio.OpenStream(params, inBuf, outBuf)
	if err != nil {
		return nil, nil, nil, err
	}
	return stream, inBuf, outBuf, nil
}

// Open transitions Idle -> Starting -> Started -> First, opening the
// device at the preferences given, and leaves the engine ready for Run
// to drive the callback loop. Failure reports via the notifier and
// leaves state at Idle.
func (e *Engine) Open(p prefs.Prefs) error {
	if !e.state.cas(Idle, Starting) {
		return fmt.Errorf("audioio: open called from state %s, want idle", e.state.get())
	}

	devices, err := portaudio.Devices()
	if err != nil {
		e.failOpen(err)
		return err
	}
	inDev, err := resolveDevice(devices, p.AudioInName, true)
	if err != nil {
		e.failOpen(err)
		return err
	}
	outDev, err := resolveDevice(devices, p.AudioOutName, false)
	if err != nil {
		e.failOpen(err)
		return err
	}

	e.deviceChans.in = p.InChans
	e.deviceChans.out = p.OutChans

	stream, inBuf, outBuf, err := openPortAudio(inDev, outDev, p.BufferSize, p.Latency, p.InChans, p.OutChans)
	if err != nil {
		e.failOpen(err)
		return err
	}
	if err := stream.Start(); err != nil {
		e.failOpen(err)
		return err
	}

	e.stream = stream
	e.deinterleaved = inBuf
	e.mixBuf = make([]float32, e.graphChans*block.BL)
	_ = outBuf

	e.state.set(Started)
	e.state.set(First)
	e.wallOffset = time.Duration(time.Now().UnixNano())
	e.frameClock = 0
	if e.notif != nil {
		e.notif.Notify("/arco/starting", nil)
	}
	return nil
}

func (e *Engine) failOpen(err error) {
	log.Printf("[audio] open failed: %v", err)
	e.state.set(Idle)
	if e.notif != nil {
		e.notif.Notify("/arco/open_failed", err.Error())
	}
}

// Close transitions Stopping -> Idle, restoring the wall-clock offset so
// clients observe continuous time across a stop/start cycle.
func (e *Engine) Close() error {
	e.state.set(Stopping)
	var err error
	if e.stream != nil {
		if stopErr := e.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		if closeErr := e.stream.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		e.stream = nil
	}
	e.wallOffset += e.frameClock
	e.state.set(Idle)
	if e.notif != nil {
		e.notif.Notify("/arco/stopped", nil)
	}
	return err
}

// Reset clears all ugens and sets while forcing state to Idle: the
// client may send reset to clear all ugens and sets while the callback
// is suspended. The reserved sentinel ugens (device-input, previous-
// output) are destroyed along with everything else and immediately
// recreated, since the engine itself holds no other reference to them.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.set(Idle)
	graph.ResetAll(e.table, e.sets)
	e.deviceInput = ugens.NewThru(graph.InputID, e.graphChans, nil)
	e.prevOutput = ugens.NewThru(graph.PrevOutputID, e.graphChans, nil)
	e.table.Install(e.deviceInput)
	e.table.Install(e.prevOutput)
	e.currentBlock = 0
	if e.notif != nil {
		e.notif.Notify("/arco/reset", nil)
	}
}

// RegisterReset installs the /arco/reset handler on ib, the one graph-
// lifecycle message that needs the audio state machine (to force the
// callback to Idle) rather than just the table and sets.
func (e *Engine) RegisterReset(ib graph.Registrar) {
	ib.Register("/arco/reset", func(json.RawMessage) error {
		e.Reset()
		return nil
	})
}

// RegisterOpenClose installs /arco/open and /arco/close, decoding the
// (in_dev, out_dev, latency_ms, buf_size, ctrl_service) argument tuple
// from §6 into a prefs.Prefs and calling Open/Close. ctrl_service is
// accepted for wire compatibility but unused here: this engine's control
// service is wired once at process startup by cmd/arcod, not per-open.
func (e *Engine) RegisterOpenClose(ib graph.Registrar) {
	ib.Register("/arco/open", func(raw json.RawMessage) error {
		var args struct {
			InDev, OutDev string
			LatencyMs     float64
			BufSize       int
			CtrlService   string
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		p := prefs.Default()
		p.AudioInName = args.InDev
		p.AudioOutName = args.OutDev
		if args.LatencyMs > 0 {
			p.Latency = args.LatencyMs
		}
		if args.BufSize > 0 {
			p.BufferSize = args.BufSize
		}
		return e.Open(p)
	})
	ib.Register("/arco/close", func(json.RawMessage) error {
		return e.Close()
	})
}

// ThreadPoll drains the inbox even when audio is not running, so the
// graph can be constructed ahead of time before the device opens. Safe
// to call from a ticker goroutine in cmd/arcod.
func (e *Engine) ThreadPoll() {
	if e.state.get() == Running {
		return
	}
	e.ib.Drain()
}

// Callback runs one device-buffer's worth of audio, which is processed
// as ceil(bufSize/BL) BL-sized sub-blocks: ugen output buffers are
// always sized chans*BL (ugen.go), so a device buffer larger than BL
// (the common case -- BufferSize defaults to 256) must be walked BL
// frames at a time, advancing current_block once per sub-block, rather
// than pulled in one bufSize-sized stride. The inbox is drained once per
// callback, before the first sub-block; each sub-block then feeds device
// input, pulls run set, mixes output set, and publishes previous-output;
// the sub-block results are assembled into one
// interleaved buffer ready for the device. It is the unit the device
// stream's Read/Write wraps, and is also what tests call directly
// without a real device.
func (e *Engine) Callback(deinterleavedIn []float32, bufSize int) (interleavedOut []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ib.Drain()

	outChans := e.deviceChans.out
	out := make([]float32, outChans*bufSize)

	if e.state.get() != Running {
		return out
	}

	bl := block.BL
	inChans := e.deviceChans.in
	for offset := 0; offset < bufSize; offset += bl {
		frames := bl
		if offset+frames > bufSize {
			frames = bufSize - offset
		}

		e.currentBlock++
		e.deviceInput.WriteDeviceInput(e.currentBlock, subBlockIn(deinterleavedIn, inChans, bufSize, offset, frames))

		e.sets.PullRunSet(e.currentBlock)
		graph.MixOutput(e.sets.Output(), e.mixBuf, e.graphChans, bl, e.currentBlock)
		flushDenormals(e.mixBuf)

		// Previous-output becomes visible only at block n+1, giving any
		// feedback path a well-defined one-block delay.
		prevCopy := append([]float32(nil), e.mixBuf...)
		e.prevOutput.WriteDeviceInput(e.currentBlock, prevCopy)

		subOut := interleaveMixdown(e.mixBuf, e.graphChans, outChans, bl)
		for f := 0; f < frames; f++ {
			copy(out[(offset+f)*outChans:(offset+f+1)*outChans], subOut[f*outChans:(f+1)*outChans])
		}
	}

	e.frameClock = time.Duration(e.currentBlock) * time.Duration(bl) * time.Second / block.AR
	return out
}

// subBlockIn extracts the planar [offset, offset+frames) slice of a
// chans-channel, bufSize-frame deinterleaved device buffer into a fresh
// chans*BL planar buffer, zero-padding past frames when the device
// buffer's length isn't an exact multiple of BL so the final short
// sub-block still gets a full BL-sized ugen pull.
func subBlockIn(planar []float32, chans, bufSize, offset, frames int) []float32 {
	bl := block.BL
	sub := make([]float32, chans*bl)
	for c := 0; c < chans; c++ {
		copy(sub[c*bl:c*bl+frames], planar[c*bufSize+offset:c*bufSize+offset+frames])
	}
	return sub
}

// Run drives the device stream until stop is closed, transitioning
// Started/First -> Running on the first iteration.
func (e *Engine) Run(stop <-chan struct{}, bufSize int) {
	if e.stream == nil {
		return
	}
	for {
		select {
		case <-stop:
			return
		default:
		}
		if err := e.stream.Read(); err != nil {
			log.Printf("[audio] read error: %v", err)
			continue
		}
		if e.state.get() == First {
			e.state.set(Running)
		}
		_ = e.Callback(e.deinterleaved, bufSize)
		if err := e.stream.Write(); err != nil {
			log.Printf("[audio] write error: %v", err)
		}
	}
}

func resolveDevice(devices []*portaudio.DeviceInfo, name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		if input {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("audioio: device %q not found", name)
}

// interleaveMixdown interleaves a graphChans-channel, bufSize-frame
// planar buffer down (or up) to deviceChans channels, summing extra
// graph channels modulo deviceChans when the device has fewer, and
// zero-filling extra device channels when it has more.
func interleaveMixdown(planar []float32, graphChans, deviceChans, bufSize int) []float32 {
	out := make([]float32, deviceChans*bufSize)
	for f := 0; f < bufSize; f++ {
		for c := 0; c < graphChans; c++ {
			out[f*deviceChans+(c%deviceChans)] += planar[c*bufSize+f]
		}
	}
	return out
}
