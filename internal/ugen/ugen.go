// Package ugen implements the base ugen contract shared by every node in
// the graph: channel count, rate, output buffer, reference counting,
// termination propagation, and parameter binding with stride-based
// channel adaptation. Grounded on
// original_source/arco/src/ugen.h/.cpp's Ugen base class.
package ugen

import (
	"fmt"
	"math"

	"github.com/rbdannenberg/arco-sub000/internal/block"
)

// Rate is the update rate of a ugen's output.
type Rate int

const (
	// Audio rate: one sample per frame, BL samples per call.
	Audio Rate = iota
	// Block rate: one value per block, held constant by consumers
	// across the block.
	Block
	// Const rate: one value, effectively infinite-lived; Run is a
	// no-op and current_block never advances.
	Const
)

func (r Rate) String() string {
	switch r {
	case Audio:
		return "audio"
	case Block:
		return "block"
	case Const:
		return "const"
	default:
		return "unknown"
	}
}

// Flags is the bit set carried by every ugen, mirroring Ugen::flags in
// the source.
type Flags uint32

const (
	InRunSet Flags = 1 << iota
	InOutputSet
	Mark
	CanTerminate
	Terminating
	Terminated
	Trace
)

// MaxTailBlocks bounds how long a termination tail can run; the source
// stores this as an int and callers should never request more than a few
// seconds' worth of blocks.
const MaxTailBlocks = 1 << 20

// Runner is implemented by every concrete ugen subclass; RealRun is the
// pull-model computation hook called at most once per block by the
// embedding Base's Run method.
type Runner interface {
	// RealRun computes this block's output into the ugen's own output
	// buffer. Implementations must pull every input via input.Run
	// and must honor the channel fan-out/one-to-one policy derived
	// from ComputeStride.
	RealRun(currentBlock int64)
	// ClassName returns a stable, interned class tag used for
	// RTTI-free type checks during table lookup.
	ClassName() string
}

// OnTerminate is an optional hook a concrete ugen may implement to run
// exactly once when its refcount reaches zero or when it transitions to
// Terminated, whichever the caller requests.
type OnTerminate interface {
	OnTerminate()
}

// Ugen is the interface the table, the output/run sets, and other ugens'
// input slots hold. Every concrete ugen embeds *Base and implements
// Runner to satisfy it.
type Ugen interface {
	ID() int
	Rate() Rate
	Chans() int
	Output() []float32
	CurrentBlock() int64
	Run(currentBlock int64) []float32
	Ref()
	Unref()
	RefCount() int32
	Flags() Flags
	SetFlag(f Flags)
	ClearFlag(f Flags)
	HasFlag(f Flags) bool
	Terminate(reason int)
	Term(tailSeconds float64)
	ActionID() int
	SetActionID(id int)
	ClassName() string
}

// Base implements Ugen and is embedded by every concrete ugen type. It
// holds everything common to the base contract; subclasses add their own
// input slots and call Base methods for bookkeeping.
type Base struct {
	id           int
	rate         Rate
	chans        int
	output       []float32
	currentBlock int64
	refcount     int32
	flags        Flags
	tailBlocks   int
	actionID     int

	self   Runner
	onTerm OnTerminate

	// onZero is invoked once, the moment refcount reaches zero, before
	// the base returns control to the caller's Unref. Concrete types
	// use it to unref their own input slots (the "destructor unrefs
	// inputs" rule).
	onZero func()
}

// Init must be called by every concrete constructor before the ugen is
// usable. self is the concrete value (so Run can dispatch to RealRun);
// onZero is the destructor-equivalent hook that unrefs this ugen's
// inputs.
func (b *Base) Init(id int, rate Rate, chans int, self Runner, onZero func()) {
	b.id = id
	b.rate = rate
	b.chans = chans
	b.self = self
	b.onZero = onZero
	b.refcount = 1
	if rate == Audio {
		b.output = make([]float32, chans*block.BL)
	} else {
		b.output = make([]float32, chans)
	}
	if rate == Const {
		// current_block pinned to "infinity" so Run is a no-op.
		b.currentBlock = math.MaxInt64
	}
}

func (b *Base) ID() int              { return b.id }
func (b *Base) Rate() Rate           { return b.rate }
func (b *Base) Chans() int           { return b.chans }
func (b *Base) Output() []float32    { return b.output }
func (b *Base) CurrentBlock() int64  { return b.currentBlock }
func (b *Base) RefCount() int32      { return b.refcount }
func (b *Base) Flags() Flags         { return b.flags }
func (b *Base) ActionID() int        { return b.actionID }
func (b *Base) SetActionID(id int)   { b.actionID = id }
func (b *Base) SetFlag(f Flags)      { b.flags |= f }
func (b *Base) ClearFlag(f Flags)    { b.flags &^= f }
func (b *Base) HasFlag(f Flags) bool { return b.flags&f != 0 }

// SetOnTerminate registers the optional lifecycle hook fired once when
// Terminated is set.
func (b *Base) SetOnTerminate(h OnTerminate) { b.onTerm = h }

// Ref increments the reference count; called by the table, by consumers
// binding this ugen as an input, and by the output/run sets.
func (b *Base) Ref() { b.refcount++ }

// Unref decrements the reference count; at zero it fires the on-terminate
// hook (at most once, guarded by the Terminated flag) and then the
// destructor-equivalent onZero callback, which recursively unrefs inputs.
func (b *Base) Unref() {
	b.refcount--
	if b.refcount > 0 {
		return
	}
	if b.refcount < 0 {
		// Defensive: never let a double-unref silently corrupt state;
		// the table's class-checked lookup should make this
		// unreachable, but a stray message arriving after free must
		// not panic the audio thread.
		b.refcount = 0
		return
	}
	b.fireOnTerminate()
	if b.onZero != nil {
		b.onZero()
	}
}

func (b *Base) fireOnTerminate() {
	if b.HasFlag(Terminated) {
		return
	}
	b.SetFlag(Terminated)
	if b.onTerm != nil {
		b.onTerm.OnTerminate()
	}
}

// Run is the pull entry point. If currentBlock is newer than the ugen's
// resident block, RealRun is invoked exactly once and current_block
// advances; otherwise the cached output is returned unchanged, which is
// what makes repeated pulls within one block idempotent.
func (b *Base) Run(currentBlock int64) []float32 {
	if b.rate == Const {
		return b.output
	}
	if currentBlock > b.currentBlock {
		b.currentBlock = currentBlock
		if b.HasFlag(Terminated) {
			for i := range b.output {
				b.output[i] = 0
			}
		} else {
			b.self.RealRun(currentBlock)
		}
	}
	return b.output
}

// AdvanceBlock marks currentBlock as resident without invoking RealRun,
// for the sole case where a caller outside the graph (the audio
// callback) has already written this block's samples directly into the
// output buffer -- the device-input ugen, fed from the hardware each
// callback. Advancing backward or to the same block is a
// no-op, preserving Run's idempotence within a block.
func (b *Base) AdvanceBlock(currentBlock int64) {
	if currentBlock > b.currentBlock {
		b.currentBlock = currentBlock
	}
}

// ConstSet writes one channel of a const-rate ugen's output directly.
// Valid only when Rate() == Const; panics otherwise since this indicates
// a programmer error in graph construction, not a runtime condition.
func (b *Base) ConstSet(ch int, v float32) {
	if b.rate != Const {
		panic(fmt.Sprintf("ConstSet on non-const ugen %d (rate=%s)", b.id, b.rate))
	}
	b.output[ch] = v
}

// Term marks the ugen as eligible to terminate and records a tail length
// in blocks, rounded up from tailSeconds. The countdown itself only
// starts once an input reports Terminated; see Terminate.
func (b *Base) Term(tailSeconds float64) {
	b.SetFlag(CanTerminate)
	tb := int(tailSeconds*block.BR + 0.999999)
	if tb < 0 {
		tb = 0
	}
	if tb > MaxTailBlocks {
		tb = MaxTailBlocks
	}
	b.tailBlocks = tb
}

// Terminate begins (or continues) the termination countdown. The first
// call sets Terminating; each subsequent call decrements the tail-block
// counter until it reaches zero, at which point Terminated is set and
// the on-terminate hook fires exactly once. reason is carried through to
// the control-service action message by callers that track
// an action ID; it is otherwise unused here.
func (b *Base) Terminate(reason int) {
	if b.HasFlag(Terminated) {
		return
	}
	if !b.HasFlag(Terminating) {
		b.SetFlag(Terminating)
	}
	if b.tailBlocks > 0 {
		b.tailBlocks--
		return
	}
	b.fireOnTerminate()
}

// Stride describes how many samples to advance per channel per frame
// when iterating an input in a real_run loop, derived from the input's
// rate and channel count relative to the consumer.
type Stride int

const (
	// StrideFanout: input is mono, consumer is multichannel; every
	// channel reads the same single sample (stride 0).
	StrideFanout Stride = 0
	// StrideBlock: input is block rate; one value per channel, held
	// constant across the block (logical stride of 1 per frame when
	// ramping, or 0 advance across the frame dimension).
	StrideBlock Stride = 1
	// StrideAudio: input is audio rate; stride is BL per channel.
	StrideAudio Stride = block.BL
)

// RateKey packs two inputs' rates into a 0..3 index (audio/block treated
// as the two-way choice that matters for inner-loop selection; const
// behaves like block): bit 0 is set when a is audio rate, bit 1 when b
// is. The ugens in internal/ugens do not call it; each branches on its
// inputs' rates inside RealRun.
func RateKey(a, b Rate) int {
	key := 0
	if a == Audio {
		key |= 1
	}
	if b == Audio {
		key |= 2
	}
	return key
}

// ComputeStride derives the iteration stride for binding an input of the
// given rate/chans to a consumer with consumerChans channels.
func ComputeStride(inputRate Rate, inputChans, consumerChans int) (Stride, error) {
	if inputChans == 1 && consumerChans > 1 {
		return StrideFanout, nil
	}
	if inputChans != consumerChans {
		return 0, fmt.Errorf("channel mismatch: input has %d channels, consumer expects %d (and input is not mono)", inputChans, consumerChans)
	}
	switch inputRate {
	case Audio:
		return StrideAudio, nil
	case Block, Const:
		return StrideBlock, nil
	default:
		return 0, fmt.Errorf("unknown rate %v", inputRate)
	}
}
