package ugens

import "github.com/rbdannenberg/arco-sub000/internal/ugen"

// Zero is the audio-rate always-silent sentinel installed at
// graph.ZeroID, used as a safe default input when no real source is
// bound yet (original_source/arco/src/zero.h).
type Zero struct {
	ugen.Base
}

func (z *Zero) ClassName() string   { return "zero" }
func (z *Zero) RealRun(block int64) {} // output buffer is already all-zero and never written

// NewZero constructs the audio-rate zero sentinel.
func NewZero(id, chans int) *Zero {
	z := &Zero{}
	z.Init(id, ugen.Audio, chans, z, nil)
	return z
}

// ZeroB is the block-rate always-zero sentinel installed at
// graph.ZeroBID (original_source/arco/src/zerob.h).
type ZeroB struct {
	ugen.Base
}

func (z *ZeroB) ClassName() string   { return "zerob" }
func (z *ZeroB) RealRun(block int64) {}

// NewZeroB constructs the block-rate zero sentinel.
func NewZeroB(id, chans int) *ZeroB {
	z := &ZeroB{}
	z.Init(id, ugen.Block, chans, z, nil)
	return z
}
