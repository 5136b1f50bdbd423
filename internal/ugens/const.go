// Package ugens implements the representative ugen set: Const,
// Thru, Mix, Sum, math binary/unary, table oscillator, delay/allpass,
// overlap-add pitch shift, granular streamer, record/play, file
// streaming, and the non-audio probes. Grounded throughout on
// original_source/arco/src/{const,thru,mix,mathugen,tableosc,wavetables,
// delay,granstream,recplay,strplay,probe}.{h,cpp}.
package ugens

import (
	"encoding/json"
	"fmt"

	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// Const emits a held value per channel. Its current_block is pinned to
// infinity by ugen.Base.Init so Run is always a no-op; values are edited
// directly via Set, never through real_run. Grounded on const.h/.cpp.
type Const struct {
	ugen.Base
}

func (c *Const) ClassName() string       { return "const" }
func (c *Const) RealRun(block int64)     {} // never called; rate is Const

// NewConst constructs a Const ugen with one value per channel.
func NewConst(id int, values []float32) *Const {
	c := &Const{}
	c.Init(id, ugen.Const, len(values), c, nil)
	copy(c.Output(), values)
	return c
}

// NewConstF constructs a single-channel Const, mirroring arco_const_newf.
func NewConstF(id int, value float32) *Const {
	return NewConst(id, []float32{value})
}

// Set writes one channel's value (arco_const_set).
func (c *Const) Set(ch int, v float32) { c.ConstSet(ch, v) }

// RegisterConst installs the /arco/const/* handlers.
func RegisterConst(ib Registrar, install func(u ugen.Ugen), lookup func(id int) (ugen.Ugen, error)) {
	ib.Register("/arco/const/new", func(raw json.RawMessage) error {
		var args struct {
			ID     int       `json:"id"`
			Values []float32 `json:"values"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		if len(args.Values) == 0 {
			return fmt.Errorf("const/new: no values")
		}
		install(NewConst(args.ID, args.Values))
		return nil
	})
	ib.Register("/arco/const/newf", func(raw json.RawMessage) error {
		var args struct {
			ID    int     `json:"id"`
			Value float32 `json:"value"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		install(NewConstF(args.ID, args.Value))
		return nil
	})
	ib.Register("/arco/const/set", func(raw json.RawMessage) error {
		var args struct {
			ID    int     `json:"id"`
			Chan  int     `json:"chan"`
			Value float32 `json:"value"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		u, err := lookup(args.ID)
		if err != nil {
			return err
		}
		c, ok := u.(*Const)
		if !ok {
			return fmt.Errorf("const/set: id %d is not a const", args.ID)
		}
		c.Set(args.Chan, args.Value)
		return nil
	})
}

// Registrar is the subset of inbox.Inbox used by ugen constructors to
// register their address handlers, kept as a narrow interface so this
// package does not import inbox directly and create a cycle with graph.
type Registrar interface {
	Register(addr string, h func(args json.RawMessage) error)
}
