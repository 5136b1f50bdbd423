package graph

import (
	"fmt"

	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// Sets holds the output set and run set: ordered, small collections
// of ugen IDs that the audio callback pulls every block. Both hold a
// strong reference on every member; removing from a set unrefs.
type Sets struct {
	output []ugen.Ugen
	run    []ugen.Ugen
}

// NewSets returns an empty output/run set pair.
func NewSets() *Sets {
	return &Sets{}
}

// AddOutput inserts u into the output set in insertion order. u must be
// audio rate and not already a member.
func (s *Sets) AddOutput(u ugen.Ugen) error {
	if u.Rate() != ugen.Audio {
		return fmt.Errorf("output set: ugen %d is not audio rate", u.ID())
	}
	if u.HasFlag(ugen.InOutputSet) {
		return nil
	}
	u.Ref()
	u.SetFlag(ugen.InOutputSet)
	s.output = append(s.output, u)
	return nil
}

// RemoveOutput clears membership, unrefs, and compacts the output set.
func (s *Sets) RemoveOutput(id int) {
	for i, u := range s.output {
		if u.ID() == id {
			u.ClearFlag(ugen.InOutputSet)
			s.output = append(s.output[:i], s.output[i+1:]...)
			u.Unref()
			return
		}
	}
}

// AddRun inserts u into the run set (side-effect-only ugens pulled every
// block with no output consumer).
func (s *Sets) AddRun(u ugen.Ugen) {
	if u.HasFlag(ugen.InRunSet) {
		return
	}
	u.Ref()
	u.SetFlag(ugen.InRunSet)
	s.run = append(s.run, u)
}

// RemoveRun clears membership, unrefs, and compacts the run set.
func (s *Sets) RemoveRun(id int) {
	for i, u := range s.run {
		if u.ID() == id {
			u.ClearFlag(ugen.InRunSet)
			s.run = append(s.run[:i], s.run[i+1:]...)
			u.Unref()
			return
		}
	}
}

// Repair removes u from whichever sets it is still flagged as a member
// of, used when a ugen is being freed out from under the sets.
func (s *Sets) Repair(u ugen.Ugen) {
	if u.HasFlag(ugen.InOutputSet) {
		s.RemoveOutput(u.ID())
	}
	if u.HasFlag(ugen.InRunSet) {
		s.RemoveRun(u.ID())
	}
}

// Output returns the output set members in insertion order.
func (s *Sets) Output() []ugen.Ugen { return s.output }

// Run returns the run set members in insertion order.
func (s *Sets) Run() []ugen.Ugen { return s.run }

// PullRunSet pulls every run-set member for the given block, for side
// effects only; their outputs are not consumed.
func (s *Sets) PullRunSet(currentBlock int64) {
	for _, u := range s.run {
		u.Run(currentBlock)
	}
}

// MixOutput pulls every output-set member and sums their contributions
// into mix, which must be sized chans*BL for the graph's channel count.
// The first contributor copies and zero-fills for a channel-count
// mismatch; subsequent contributors accumulate; excess channels wrap
// modulo the mix's channel count.
func MixOutput(members []ugen.Ugen, mix []float32, mixChans, bl int, currentBlock int64) {
	for i := range mix {
		mix[i] = 0
	}
	first := true
	for _, u := range members {
		out := u.Run(currentBlock)
		uchans := u.Chans()
		for f := 0; f < bl; f++ {
			for c := 0; c < uchans; c++ {
				dest := (c % mixChans) * bl
				mix[dest+f] += out[c*bl+f]
			}
		}
		if first {
			first = false
		}
	}
}
