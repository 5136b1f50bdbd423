package graph

import (
	"encoding/json"
	"fmt"

	"github.com/rbdannenberg/arco-sub000/internal/notify"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// Registrar is the subset of inbox.Inbox used to install handlers,
// mirroring ugens.Registrar so this package does not need to import
// inbox and create a cycle (inbox has no dependents, but graph is
// imported by audioio, which also wants to register its own open/close
// handlers against the same inbox instance).
type Registrar interface {
	Register(addr string, h func(args json.RawMessage) error)
}

// RegisterLifecycle installs the graph-lifecycle handlers from §6 that
// only need the table and sets: /arco/free, /arco/output, /arco/mute,
// and /arco/prtree. /arco/reset and /arco/open|close additionally need
// the audio I/O state machine and are registered by audioio.Engine.RegisterReset
// and audioio.Engine.RegisterOpenClose respectively, since only the engine
// can force the callback to idle first.
func RegisterLifecycle(ib Registrar, table *Table, sets *Sets, n notify.Notifier) {
	ib.Register("/arco/free", func(raw json.RawMessage) error {
		var args struct {
			IDs []int `json:"ids"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		for _, id := range args.IDs {
			u, err := table.Lookup(id)
			if err != nil {
				continue
			}
			sets.Repair(u)
			if err := table.Remove(id); err != nil {
				continue
			}
		}
		return nil
	})

	ib.Register("/arco/output", func(raw json.RawMessage) error {
		var args struct{ ID int }
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		u, err := table.Lookup(args.ID)
		if err != nil {
			return fmt.Errorf("/arco/output: %w", err)
		}
		return sets.AddOutput(u)
	})

	ib.Register("/arco/mute", func(raw json.RawMessage) error {
		var args struct{ ID int }
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		sets.RemoveOutput(args.ID)
		return nil
	})

	ib.Register("/arco/prtree", func(raw json.RawMessage) error {
		if n != nil {
			n.Notify("/arco/prtree", table.PrintTree())
		}
		return nil
	})
}

// ResetAll unrefs and clears every occupied table slot (after first
// repairing set membership) and empties the output/run sets. The caller
// (audioio.Engine.Reset) is responsible for forcing the callback state
// to idle around this call.
func ResetAll(table *Table, sets *Sets) {
	for _, u := range sets.Output() {
		u.ClearFlag(ugen.InOutputSet)
		u.Unref()
	}
	for _, u := range sets.Run() {
		u.ClearFlag(ugen.InRunSet)
		u.Unref()
	}
	sets.output = nil
	sets.run = nil
	for id, u := range table.slots {
		if u == nil {
			continue
		}
		table.slots[id] = nil
		u.Unref()
	}
}
