// Package inbox implements the control-message inbox: a handler
// registry, message decoding, and dispatch drained once per audio
// callback before any ugen is pulled. Grounded on the dispatch-by-Type switch in
// server/internal/core and server/client.go's processControl,
// generalized from a fixed Type enum to an open address-string registry
// the way original_source/arco/src/ugen.h's Initializer pattern
// registers one handler per OSC-style address at static-init time.
package inbox

import (
	"encoding/json"
	"fmt"
	"log"
)

// Msg is the wire envelope delivered to the audio thread's inbox. Addr is
// an OSC-style path such as "/arco/const/new"; Args is the undecoded
// positional-argument array, shaped per handler.
type Msg struct {
	Addr string          `json:"addr"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Handler decodes and applies one message. Handlers run exclusively on
// the audio thread's Drain call; they must never block.
type Handler func(args json.RawMessage) error

// Inbox is a single producer-to-audio-thread mailbox. Multiple producers
// (a control session, the file-I/O worker replying, a local caller) may
// each hold their own Inbox, since ordering only needs to be preserved
// per source, not across a single shared source.
type Inbox struct {
	handlers map[string]Handler
	queue    chan Msg

	warnCount int
}

// New creates an inbox with the given queue depth. A depth of a few
// hundred is typically ample since the inbox is drained every audio
// callback (roughly 172 times a second with the default 256-frame buffer
// at AR), and between callbacks by ThreadPoll when audio is not running.
func New(depth int) *Inbox {
	return &Inbox{
		handlers: make(map[string]Handler),
		queue:    make(chan Msg, depth),
	}
}

// Register installs the handler for addr. Registering the same address
// twice replaces the previous handler; concrete ugen constructors call
// this once per process at startup, mirroring the source's
// static-initializer address table. The parameter is the unnamed
// function type (rather than Handler) so that *Inbox satisfies the
// narrow Registrar interfaces each ugen package declares for itself
// (ugens.Registrar, graph.Registrar) without those packages importing
// inbox: Go only matches a defined parameter type against an interface
// method's literal function type when they are the same type, not
// merely the same underlying type.
func (ib *Inbox) Register(addr string, h func(args json.RawMessage) error) {
	ib.handlers[addr] = h
}

// Push enqueues a message for later draining. Returns false if the queue
// is full, in which case the caller (a network or local producer) should
// apply its own backpressure; Push itself never blocks.
func (ib *Inbox) Push(m Msg) bool {
	select {
	case ib.queue <- m:
		return true
	default:
		return false
	}
}

// Drain dispatches every message currently queued, in arrival order, and
// returns the number dispatched. It must be called exactly once at the
// top of each audio callback, before any ugen is pulled, so that graph
// mutations are atomic with respect to that block's computation.
func (ib *Inbox) Drain() int {
	n := 0
	for {
		select {
		case m := <-ib.queue:
			ib.dispatch(m)
			n++
		default:
			return n
		}
	}
}

func (ib *Inbox) dispatch(m Msg) {
	h, ok := ib.handlers[m.Addr]
	if !ok {
		ib.warn(fmt.Sprintf("inbox: no handler registered for %s", m.Addr))
		return
	}
	if err := h(m.Args); err != nil {
		// Lookup failures and type mismatches are the common case
		// here: log and drop, never panic the audio
		// thread.
		ib.warn(fmt.Sprintf("inbox: %s: %v", m.Addr, err))
	}
}

// warn rate-limits inbox warnings the way the audio thread's hot-path
// logging should: one line per event, but never so many that a
// misbehaving producer floods the log.
func (ib *Inbox) warn(msg string) {
	ib.warnCount++
	if ib.warnCount <= 20 || ib.warnCount%200 == 0 {
		log.Printf("[audio] %s", msg)
	}
}
