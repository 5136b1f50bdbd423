package graph

import (
	"testing"

	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

type testUgen struct {
	ugen.Base
}

func (u *testUgen) ClassName() string   { return "test" }
func (u *testUgen) RealRun(block int64) {}

func newTestUgen(id, chans int) *testUgen {
	u := &testUgen{}
	u.Init(id, ugen.Audio, chans, u, nil)
	return u
}

func TestTableInstallAndLookup(t *testing.T) {
	tbl := NewTable(0)
	u := newTestUgen(100, 1)
	tbl.Install(u)

	got, err := tbl.Lookup(100)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.ID() != 100 {
		t.Errorf("Lookup returned id %d, want 100", got.ID())
	}
}

func TestTableLookupMissingSlot(t *testing.T) {
	tbl := NewTable(0)
	if _, err := tbl.Lookup(999); err == nil {
		t.Fatal("expected error for empty slot")
	}
}

func TestTableLookupClassMismatch(t *testing.T) {
	tbl := NewTable(0)
	tbl.Install(newTestUgen(5, 1))
	if _, err := tbl.LookupClass(5, "const"); err == nil {
		t.Fatal("expected class mismatch error")
	}
	if _, err := tbl.LookupClass(5, "test"); err != nil {
		t.Fatalf("LookupClass with matching class: %v", err)
	}
}

func TestTableInstallUnrefsPriorOccupant(t *testing.T) {
	tbl := NewTable(0)
	first := newTestUgen(7, 1)
	second := newTestUgen(7, 1)
	tbl.Install(first)
	if first.RefCount() != 1 {
		t.Fatalf("first.RefCount() = %d, want 1", first.RefCount())
	}
	tbl.Install(second) // replaces and unrefs first
	if first.RefCount() != 0 {
		t.Errorf("first.RefCount() after replacement = %d, want 0", first.RefCount())
	}
	got, err := tbl.Lookup(7)
	if err != nil || got.ID() != second.ID() {
		t.Errorf("Lookup(7) did not return the replacement ugen")
	}
}

func TestTableRemoveUnrefsAndClearsSlot(t *testing.T) {
	tbl := NewTable(0)
	u := newTestUgen(9, 1)
	tbl.Install(u)
	if err := tbl.Remove(9); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if u.RefCount() != 0 {
		t.Errorf("RefCount() after Remove = %d, want 0", u.RefCount())
	}
	if _, err := tbl.Lookup(9); err == nil {
		t.Error("expected Lookup to fail after Remove")
	}
}

func TestTablePrintTreeListsOccupiedSlots(t *testing.T) {
	tbl := NewTable(0)
	tbl.Install(newTestUgen(1, 1))
	tbl.Install(newTestUgen(2, 1))
	lines := tbl.PrintTree()
	if len(lines) != 2 {
		t.Fatalf("PrintTree() returned %d lines, want 2", len(lines))
	}
}

func TestTableGrowsBeyondInitialCapacity(t *testing.T) {
	tbl := NewTable(0)
	u := newTestUgen(10000, 1)
	tbl.Install(u)
	got, err := tbl.Lookup(10000)
	if err != nil || got.ID() != 10000 {
		t.Fatalf("Lookup(10000) after growth: %v, %v", got, err)
	}
}
