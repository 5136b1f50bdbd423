package ugens

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

var errNotFound = errors.New("not found")

func TestNewConstHoldsValuesPerChannel(t *testing.T) {
	c := NewConst(1, []float32{0.25, 0.5, 0.75})
	out := c.Output()
	want := []float32{0.25, 0.5, 0.75}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("channel %d = %v, want %v", i, out[i], w)
		}
	}
}

func TestConstRunNeverAdvances(t *testing.T) {
	c := NewConstF(1, 3.0)
	out1 := c.Run(1)
	out2 := c.Run(500)
	if out1[0] != 3.0 || out2[0] != 3.0 {
		t.Fatalf("Run mutated a Const's held value: %v, %v", out1, out2)
	}
}

func TestConstSetWritesChannel(t *testing.T) {
	c := NewConst(1, []float32{1, 1})
	c.Set(1, 9.0)
	out := c.Output()
	if out[0] != 1 || out[1] != 9.0 {
		t.Fatalf("Set(1, 9.0) gave %v, want [1 9]", out)
	}
}

type fakeConstRegistrar struct {
	handlers map[string]func(json.RawMessage) error
}

func (f *fakeConstRegistrar) Register(addr string, h func(args json.RawMessage) error) {
	if f.handlers == nil {
		f.handlers = make(map[string]func(json.RawMessage) error)
	}
	f.handlers[addr] = h
}

func TestRegisterConstNewfAndSet(t *testing.T) {
	reg := &fakeConstRegistrar{}
	installed := map[int]ugen.Ugen{}
	install := func(u ugen.Ugen) { installed[u.ID()] = u }
	lookup := func(id int) (ugen.Ugen, error) {
		u, ok := installed[id]
		if !ok {
			return nil, errNotFound
		}
		return u, nil
	}
	RegisterConst(reg, install, lookup)

	newf := reg.handlers["/arco/const/newf"]
	if newf == nil {
		t.Fatal("/arco/const/newf not registered")
	}
	raw, _ := json.Marshal(map[string]any{"id": 42, "value": 5.0})
	if err := newf(raw); err != nil {
		t.Fatalf("newf: %v", err)
	}
	c, ok := installed[42].(*Const)
	if !ok {
		t.Fatalf("installed[42] is not *Const: %T", installed[42])
	}
	if c.Output()[0] != 5.0 {
		t.Fatalf("const/newf value = %v, want 5.0", c.Output()[0])
	}

	set := reg.handlers["/arco/const/set"]
	raw, _ = json.Marshal(map[string]any{"id": 42, "chan": 0, "value": 7.0})
	if err := set(raw); err != nil {
		t.Fatalf("set: %v", err)
	}
	if c.Output()[0] != 7.0 {
		t.Fatalf("const/set value = %v, want 7.0", c.Output()[0])
	}
}
