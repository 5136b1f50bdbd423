// Package graph holds the process-wide mutable state the audio thread
// owns: the ugen table (ID -> ugen, with reserved sentinel IDs) and the
// output/run sets. Grounded on original_source/arco/src/ugen.h (Ugen
// table lookups), audioio.h (sentinel IDs ZERO_ID, ZEROB_ID, INPUT_ID,
// PREV_OUTPUT_ID, UGEN_BASE_ID), and the "audio service singleton"
// design note: this is that singleton, and only the audio
// thread may call its mutating methods.
package graph

import (
	"fmt"

	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// Reserved sentinel IDs, matching audioio.h.
const (
	ZeroID        = 0 // audio-rate zero source
	ZeroBID       = 1 // block-rate zero source
	InputID       = 2 // device-input Thru ugen
	PrevOutputID  = 3 // previous-block device-output Thru ugen
	UgenBaseID    = 4 // first ID available to the control client
	defaultTblCap = 4096
)

// Table is the bounded ID -> ugen map. Only the audio thread installs or
// removes entries; the control client allocates IDs on its own side and
// never reaches into this table directly.
type Table struct {
	slots []ugen.Ugen
}

// NewTable allocates a table with room for at least capacity IDs.
func NewTable(capacity int) *Table {
	if capacity < defaultTblCap {
		capacity = defaultTblCap
	}
	return &Table{slots: make([]ugen.Ugen, capacity)}
}

// Install places u at its own ID slot, growing the table if necessary,
// unref'ing any prior occupant first.
func (t *Table) Install(u ugen.Ugen) {
	id := u.ID()
	t.ensure(id)
	if prev := t.slots[id]; prev != nil {
		prev.Unref()
	}
	t.slots[id] = u
}

func (t *Table) ensure(id int) {
	if id < len(t.slots) {
		return
	}
	grown := make([]ugen.Ugen, id+1024)
	copy(grown, t.slots)
	t.slots = grown
}

// Lookup returns the ugen at id, reporting an error when the slot is
// empty. Class checking is layered on top by LookupClass.
func (t *Table) Lookup(id int) (ugen.Ugen, error) {
	if id < 0 || id >= len(t.slots) || t.slots[id] == nil {
		return nil, fmt.Errorf("ugen table: no ugen at id %d", id)
	}
	return t.slots[id], nil
}

// LookupClass looks up id and additionally checks that its ClassName
// matches class, giving the RTTI-free type discrimination the source
// achieves via interned-string pointer comparison.
func (t *Table) LookupClass(id int, class string) (ugen.Ugen, error) {
	u, err := t.Lookup(id)
	if err != nil {
		return nil, err
	}
	if u.ClassName() != class {
		return nil, fmt.Errorf("ugen table: id %d is class %q, expected %q", id, u.ClassName(), class)
	}
	return u, nil
}

// Remove unrefs and clears the slot at id. If the ugen was a member of
// the output or run set, the caller is responsible for repairing those
// sets first (Sets.Repair does this); Remove itself only touches the
// table slot.
func (t *Table) Remove(id int) error {
	u, err := t.Lookup(id)
	if err != nil {
		return err
	}
	t.slots[id] = nil
	u.Unref()
	return nil
}

// PrintTree renders one line per occupied slot, id and class name, for
// the control service's /arco/prtree introspection endpoint. It
// satisfies control.TreeProvider.
func (t *Table) PrintTree() []string {
	lines := make([]string, 0, len(t.slots))
	for id, u := range t.slots {
		if u == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d: %s", id, u.ClassName()))
	}
	return lines
}
