// Registration of the control-message inbox handlers for every
// ugen in this package beyond Const (const.go has its own, being the
// first one written). Each Register* function follows the same shape as
// RegisterConst: decode a JSON args struct, look up any input ugens by
// ID, construct or mutate, install. Grounded on the message address
// table and the original_source per-class Initializer handler tables.
package ugens

import (
	"encoding/json"
	"fmt"

	"github.com/rbdannenberg/arco-sub000/internal/fileio"
	"github.com/rbdannenberg/arco-sub000/internal/netio"
	"github.com/rbdannenberg/arco-sub000/internal/notify"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// Lookup resolves an ID to a ugen, the shape graph.Table.Lookup already
// satisfies.
type Lookup func(id int) (ugen.Ugen, error)

// Install installs a newly constructed ugen into the table at its own
// ID, the shape graph.Table.Install already satisfies.
type Install func(u ugen.Ugen)

// RegisterThru installs /arco/thru/new, repl_input, and the alt-source
// handlers.
func RegisterThru(ib Registrar, install Install, lookup Lookup) {
	ib.Register("/arco/thru/new", func(raw json.RawMessage) error {
		var args struct {
			ID, Chans, Input int
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		install(NewThru(args.ID, args.Chans, in))
		return nil
	})
	ib.Register("/arco/thru/repl_input", func(raw json.RawMessage) error {
		var args struct{ ID, Input int }
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		t, err := lookupAs[*Thru](lookup, args.ID)
		if err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		t.ReplInput(in)
		return nil
	})
	ib.Register("/arco/thru/set_alt", func(raw json.RawMessage) error {
		var args struct {
			ID, Alt int
			Use     bool
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		t, err := lookupAs[*Thru](lookup, args.ID)
		if err != nil {
			return err
		}
		if args.Alt != 0 {
			alt, err := lookup(args.Alt)
			if err != nil {
				return err
			}
			t.SetAlt(alt)
		}
		t.UseAlt(args.Use)
		return nil
	})
}

// RegisterMix installs /arco/mix/new, /arco/sum/new, ins/rem/repl_gain.
func RegisterMix(ib Registrar, install Install, lookup Lookup) {
	newHandler := func(sum bool) func(json.RawMessage) error {
		return func(raw json.RawMessage) error {
			var args struct{ ID, Chans int }
			if err := json.Unmarshal(raw, &args); err != nil {
				return err
			}
			install(NewMix(args.ID, args.Chans, sum))
			return nil
		}
	}
	ib.Register("/arco/mix/new", newHandler(false))
	ib.Register("/arco/sum/new", newHandler(true))
	ib.Register("/arco/mix/ins", func(raw json.RawMessage) error {
		var args struct {
			ID, Input, Gain int
			ChanWrap        bool
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		m, err := lookupAs[*Mix](lookup, args.ID)
		if err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		var gain ugen.Ugen
		if !m.isSum {
			gain, err = lookup(args.Gain)
			if err != nil {
				return err
			}
		}
		return m.Ins(in, gain, args.ChanWrap)
	})
	ib.Register("/arco/mix/rem", func(raw json.RawMessage) error {
		var args struct{ ID, Input int }
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		m, err := lookupAs[*Mix](lookup, args.ID)
		if err != nil {
			return err
		}
		m.Rem(args.Input)
		return nil
	})
	ib.Register("/arco/mix/repl_gain", func(raw json.RawMessage) error {
		var args struct{ ID, Input, Gain int }
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		m, err := lookupAs[*Mix](lookup, args.ID)
		if err != nil {
			return err
		}
		gain, err := lookup(args.Gain)
		if err != nil {
			return err
		}
		return m.SetGain(args.Input, gain)
	})
}

// RegisterMathBinary installs /arco/mathbinary/new (op given by name),
// repl_x1/repl_x2, plus the sample-and-hold and random-lerp variants.
func RegisterMathBinary(ib Registrar, install Install, lookup Lookup) {
	ops := map[string]BinaryOp{"add": OpAdd, "sub": OpSub, "mul": OpMul, "div": OpDiv}
	ib.Register("/arco/mathbinary/new", func(raw json.RawMessage) error {
		var args struct {
			ID, Chans, X1, X2 int
			Op                string
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		op, ok := ops[args.Op]
		if !ok {
			return fmt.Errorf("mathbinary/new: unknown op %q", args.Op)
		}
		x1, err := lookup(args.X1)
		if err != nil {
			return err
		}
		x2, err := lookup(args.X2)
		if err != nil {
			return err
		}
		install(NewMathBinary(args.ID, args.Chans, op, x1, x2))
		return nil
	})
	ib.Register("/arco/mathbinary/repl_x1", replInputHandler(lookup, func(u ugen.Ugen) (*MathBinary, error) { return assertMathBinary(u) }, func(m *MathBinary, in ugen.Ugen) { m.x1.Unref(); in.Ref(); m.x1 = in }))
	ib.Register("/arco/mathbinary/repl_x2", replInputHandler(lookup, func(u ugen.Ugen) (*MathBinary, error) { return assertMathBinary(u) }, func(m *MathBinary, in ugen.Ugen) { m.x2.Unref(); in.Ref(); m.x2 = in }))

	ib.Register("/arco/samplehold/new", func(raw json.RawMessage) error {
		var args struct{ ID, Chans, X, Trigger int }
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		x, err := lookup(args.X)
		if err != nil {
			return err
		}
		trig, err := lookup(args.Trigger)
		if err != nil {
			return err
		}
		install(NewSampleHold(args.ID, args.Chans, x, trig))
		return nil
	})
	ib.Register("/arco/randlerp/new", func(raw json.RawMessage) error {
		var args struct {
			ID, Chans, Low, High, Rate int
			Seed                       int64
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		low, err := lookup(args.Low)
		if err != nil {
			return err
		}
		high, err := lookup(args.High)
		if err != nil {
			return err
		}
		rate, err := lookup(args.Rate)
		if err != nil {
			return err
		}
		install(NewRandLerp(args.ID, args.Chans, low, high, rate, args.Seed))
		return nil
	})
}

func assertMathBinary(u ugen.Ugen) (*MathBinary, error) {
	m, ok := u.(*MathBinary)
	if !ok {
		return nil, fmt.Errorf("ugen %d is not a mathbinary", u.ID())
	}
	return m, nil
}

// replInputHandler is a tiny generic helper: decode {ID, Input}, look up
// both, apply the given mutation. Used by the several repl_<param>
// handlers that only ever replace one input slot.
func replInputHandler[T any](lookup Lookup, assert func(ugen.Ugen) (T, error), apply func(T, ugen.Ugen)) func(json.RawMessage) error {
	return func(raw json.RawMessage) error {
		var args struct{ ID, Input int }
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		u, err := lookup(args.ID)
		if err != nil {
			return err
		}
		t, err := assert(u)
		if err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		apply(t, in)
		return nil
	}
}

func lookupAs[T any](lookup Lookup, id int) (T, error) {
	var zero T
	u, err := lookup(id)
	if err != nil {
		return zero, err
	}
	t, ok := u.(T)
	if !ok {
		return zero, fmt.Errorf("ugen %d has unexpected type", id)
	}
	return t, nil
}

// RegisterMathUnary installs /arco/mathunary/new and repl_x.
func RegisterMathUnary(ib Registrar, install Install, lookup Lookup) {
	ops := map[string]UnaryOp{"abs": OpAbs, "neg": OpNeg, "sqrt": OpSqrt, "exp": OpExp, "log": OpLog}
	ib.Register("/arco/mathunary/new", func(raw json.RawMessage) error {
		var args struct {
			ID, Chans, X int
			Op           string
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		op, ok := ops[args.Op]
		if !ok {
			return fmt.Errorf("mathunary/new: unknown op %q", args.Op)
		}
		x, err := lookup(args.X)
		if err != nil {
			return err
		}
		install(NewMathUnary(args.ID, args.Chans, op, x))
		return nil
	})
	ib.Register("/arco/mathunary/repl_x", replInputHandler(lookup, func(u ugen.Ugen) (*MathUnary, error) {
		m, ok := u.(*MathUnary)
		if !ok {
			return nil, fmt.Errorf("ugen %d is not a mathunary", u.ID())
		}
		return m, nil
	}, func(m *MathUnary, in ugen.Ugen) { m.x.Unref(); in.Ref(); m.x = in }))
}

// RegisterTableosc installs /arco/tableosc/new, createtas/createtcs/
// createttd, select, repl_freq, repl_amp.
func RegisterTableosc(ib Registrar, install Install, lookup Lookup) {
	ib.Register("/arco/tableosc/new", func(raw json.RawMessage) error {
		var args struct{ ID, Chans, Freq, Amp int }
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		freq, err := lookup(args.Freq)
		if err != nil {
			return err
		}
		amp, err := lookup(args.Amp)
		if err != nil {
			return err
		}
		install(NewTableosc(args.ID, args.Chans, freq, amp))
		return nil
	})
	ib.Register("/arco/tableosc/createtas", func(raw json.RawMessage) error {
		var args struct {
			ID, Table, N int
			Amps         []float64
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		t, err := lookupAs[*Tableosc](lookup, args.ID)
		if err != nil {
			return err
		}
		t.CreateTAS(args.Table, args.N, args.Amps)
		return nil
	})
	ib.Register("/arco/tableosc/createtcs", func(raw json.RawMessage) error {
		var args struct {
			ID, Table, N  int
			Amps, Phases  []float64
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		t, err := lookupAs[*Tableosc](lookup, args.ID)
		if err != nil {
			return err
		}
		t.CreateTCS(args.Table, args.N, args.Amps, args.Phases)
		return nil
	})
	ib.Register("/arco/tableosc/createttd", func(raw json.RawMessage) error {
		var args struct {
			ID, Table int
			Samples   []float32
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		t, err := lookupAs[*Tableosc](lookup, args.ID)
		if err != nil {
			return err
		}
		t.CreateTTD(args.Table, args.Samples)
		return nil
	})
	ib.Register("/arco/tableosc/select", func(raw json.RawMessage) error {
		var args struct{ ID, Table int }
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		t, err := lookupAs[*Tableosc](lookup, args.ID)
		if err != nil {
			return err
		}
		t.Select(args.Table)
		return nil
	})
	ib.Register("/arco/tableosc/repl_freq", replInputHandler(lookup, func(u ugen.Ugen) (*Tableosc, error) {
		t, ok := u.(*Tableosc)
		if !ok {
			return nil, fmt.Errorf("ugen %d is not a tableosc", u.ID())
		}
		return t, nil
	}, func(t *Tableosc, in ugen.Ugen) { t.freq.Unref(); in.Ref(); t.freq = in }))
	ib.Register("/arco/tableosc/repl_amp", replInputHandler(lookup, func(u ugen.Ugen) (*Tableosc, error) {
		t, ok := u.(*Tableosc)
		if !ok {
			return nil, fmt.Errorf("ugen %d is not a tableosc", u.ID())
		}
		return t, nil
	}, func(t *Tableosc, in ugen.Ugen) { t.amp.Unref(); in.Ref(); t.amp = in }))
}

// RegisterDelay installs /arco/delay/new, /arco/allpass/new, and their
// repl_delay/repl_fb handlers.
func RegisterDelay(ib Registrar, install Install, lookup Lookup) {
	ib.Register("/arco/delay/new", func(raw json.RawMessage) error {
		var args struct {
			ID, Chans, Input, DelayTime, Feedback int
			MaxDelaySeconds                       float64
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		dt, err := lookup(args.DelayTime)
		if err != nil {
			return err
		}
		fb, err := lookup(args.Feedback)
		if err != nil {
			return err
		}
		install(NewDelay(args.ID, args.Chans, in, dt, fb, args.MaxDelaySeconds))
		return nil
	})
	ib.Register("/arco/allpass/new", func(raw json.RawMessage) error {
		var args struct {
			ID, Chans, Input, DelayTime, Gain int
			MaxDelaySeconds                   float64
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		dt, err := lookup(args.DelayTime)
		if err != nil {
			return err
		}
		gain, err := lookup(args.Gain)
		if err != nil {
			return err
		}
		install(NewAllpass(args.ID, args.Chans, in, dt, gain, args.MaxDelaySeconds))
		return nil
	})
}

// RegisterOlapitchshift installs /arco/olapitchshift/new and repl_ratio.
func RegisterOlapitchshift(ib Registrar, install Install, lookup Lookup) {
	ib.Register("/arco/olapitchshift/new", func(raw json.RawMessage) error {
		var args struct {
			ID, Chans, Input, Ratio int
			WindowSeconds           float64
			XfadeSeconds            float64
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		ratio, err := lookup(args.Ratio)
		if err != nil {
			return err
		}
		install(NewOlapitchshift(args.ID, args.Chans, in, ratio, args.WindowSeconds, args.XfadeSeconds))
		return nil
	})
}

// RegisterGranstream installs /arco/granstream/new and enable/disable.
func RegisterGranstream(ib Registrar, install Install, lookup Lookup) {
	ib.Register("/arco/granstream/new", func(raw json.RawMessage) error {
		var args struct {
			ID, Chans, Input, Polyphony int
			DurSeconds                  float64
			Enable                      bool
			Seed                        int64
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		install(NewGranstream(args.ID, args.Chans, in, args.Polyphony, args.DurSeconds, args.Enable, args.Seed))
		return nil
	})
	ib.Register("/arco/granstream/enable", func(raw json.RawMessage) error {
		var args struct {
			ID     int
			Enable bool
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		g, err := lookupAs[*Granstream](lookup, args.ID)
		if err != nil {
			return err
		}
		g.SetEnable(args.Enable)
		return nil
	})
}

// RegisterRecplay installs /arco/recplay/new, record, start, stop.
func RegisterRecplay(ib Registrar, install Install, lookup Lookup) {
	ib.Register("/arco/recplay/new", func(raw json.RawMessage) error {
		var args struct{ ID, Chans, Input int }
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		install(NewRecplay(args.ID, args.Chans, in))
		return nil
	})
	ib.Register("/arco/recplay/record", func(raw json.RawMessage) error {
		var args struct {
			ID int
			On bool
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		r, err := lookupAs[*Recplay](lookup, args.ID)
		if err != nil {
			return err
		}
		r.Record(args.On)
		return nil
	})
	ib.Register("/arco/recplay/start", func(raw json.RawMessage) error {
		var args struct {
			ID          int
			Pos         float64
			Speed       float32
			FadeSeconds float64
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		r, err := lookupAs[*Recplay](lookup, args.ID)
		if err != nil {
			return err
		}
		r.Start(args.Pos, args.Speed, args.FadeSeconds)
		return nil
	})
	ib.Register("/arco/recplay/stop", func(raw json.RawMessage) error {
		var args struct {
			ID          int
			FadeSeconds float64
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		r, err := lookupAs[*Recplay](lookup, args.ID)
		if err != nil {
			return err
		}
		r.Stop(args.FadeSeconds)
		return nil
	})
}

// RegisterFileio installs /fileio/strplay/new|quit and /fileio/filerec/
// new|stop.
func RegisterFileio(ib Registrar, install Install, lookup Lookup, worker *fileio.Worker, n notify.Notifier, actionAddr string) {
	ib.Register("/fileio/strplay/new", func(raw json.RawMessage) error {
		var args struct {
			ID, Chans           int
			Filename            string
			StartSec, EndSec    float64
			Cycle               bool
			ActionID            int
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		s := NewStrplay(args.ID, args.Chans, worker, args.Filename, args.StartSec, args.EndSec, args.Cycle)
		s.SetActionID(args.ActionID)
		install(s)
		return nil
	})
	ib.Register("/fileio/strplay/play", func(raw json.RawMessage) error {
		var args struct {
			ID int
			On bool
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		s, err := lookupAs[*Strplay](lookup, args.ID)
		if err != nil {
			return err
		}
		if !args.On {
			s.Quit()
		}
		return nil
	})
	ib.Register("/fileio/filerec/new", func(raw json.RawMessage) error {
		var args struct {
			ID, Chans, Input int
			Filename         string
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		install(NewFilerec(args.ID, args.Chans, worker, in, args.Filename))
		return nil
	})
	ib.Register("/fileio/filerec/stop", func(raw json.RawMessage) error {
		var args struct{ ID int }
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		f, err := lookupAs[*Filerec](lookup, args.ID)
		if err != nil {
			return err
		}
		f.Stop()
		return nil
	})
}

// RegisterProbes installs /arco/probe/new, /arco/vu/new, /arco/onset/new,
// /arco/spectralcentroid/new, /arco/spectralrolloff/new.
func RegisterProbes(ib Registrar, install Install, lookup Lookup, n notify.Notifier) {
	ib.Register("/arco/probe/new", func(raw json.RawMessage) error {
		var args struct {
			ID, Input         int
			Addr              string
			Stride            int
			PeriodBlocks      int
			Threshold         float32
			WaitFor           bool
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		install(NewProbe(args.ID, in, n, args.Addr, args.Stride, args.PeriodBlocks, args.Threshold, args.WaitFor))
		return nil
	})
	ib.Register("/arco/vu/new", func(raw json.RawMessage) error {
		var args struct {
			ID, Input, WindowBlocks int
			Addr                    string
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		install(NewVu(args.ID, in, n, args.Addr, args.WindowBlocks))
		return nil
	})
	ib.Register("/arco/onset/new", func(raw json.RawMessage) error {
		var args struct {
			ID, Input, HoldoffBlocks int
			Addr                     string
			Threshold                float32
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		install(NewOnset(args.ID, in, n, args.Addr, args.Threshold, args.HoldoffBlocks))
		return nil
	})
	ib.Register("/arco/spectralcentroid/new", func(raw json.RawMessage) error {
		var args struct{ ID, Input int }
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		install(NewSpectralCentroid(args.ID, in))
		return nil
	})
	ib.Register("/arco/spectralrolloff/new", func(raw json.RawMessage) error {
		var args struct{ ID, Input int }
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		install(NewSpectralRolloff(args.ID, in))
		return nil
	})
}

// SessionLookup resolves a netio session ID to its live session, or nil
// if the session has since disconnected.
type SessionLookup func(id string) *netio.Session

// RegisterNetstream installs /arco/netsend/new and /arco/netrecv/new.
// NetRecv ugens are registered by ID so the caller can route delivered
// datagrams to them by ugen ID (cmd/arcod wires this to each session's
// datagram receive loop).
func RegisterNetstream(ib Registrar, install Install, lookup Lookup, sessions SessionLookup) {
	ib.Register("/arco/netsend/new", func(raw json.RawMessage) error {
		var args struct {
			ID, Input int
			Session   string
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		in, err := lookup(args.Input)
		if err != nil {
			return err
		}
		var sess *netio.Session
		if sessions != nil && args.Session != "" {
			sess = sessions(args.Session)
		}
		ns, err := NewNetSend(args.ID, in, sess)
		if err != nil {
			return fmt.Errorf("netsend/new: %w", err)
		}
		install(ns)
		return nil
	})
	ib.Register("/arco/netrecv/new", func(raw json.RawMessage) error {
		var args struct{ ID int }
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		nr, err := NewNetRecv(args.ID)
		if err != nil {
			return fmt.Errorf("netrecv/new: %w", err)
		}
		install(nr)
		return nil
	})
}

// RegisterAll installs every ugen package's handlers onto ib. cmd/arcod
// calls this once at startup, mirroring the original's per-class
// Initializer list.
func RegisterAll(ib Registrar, install Install, lookup Lookup, worker *fileio.Worker, n notify.Notifier, sessions SessionLookup) {
	RegisterConst(ib, install, lookup)
	RegisterThru(ib, install, lookup)
	RegisterMix(ib, install, lookup)
	RegisterMathBinary(ib, install, lookup)
	RegisterMathUnary(ib, install, lookup)
	RegisterTableosc(ib, install, lookup)
	RegisterDelay(ib, install, lookup)
	RegisterOlapitchshift(ib, install, lookup)
	RegisterGranstream(ib, install, lookup)
	RegisterRecplay(ib, install, lookup)
	RegisterProbes(ib, install, lookup, n)
	RegisterNetstream(ib, install, lookup, sessions)
	if worker != nil {
		RegisterFileio(ib, install, lookup, worker, n, "/arco/act")
	}
}
