// Command arcod is the thin host process: it opens an audio device,
// starts the ugen graph engine, and accepts control connections. It
// plays the role of the out-of-scope "host CLI" collaborator (spec.md
// §1); it contains none of the graph or audio logic itself, only
// lifecycle, flag parsing, and wiring, matching the shape of the
// teacher's cmd/root.go.
package main

import "github.com/rbdannenberg/arco-sub000/internal/recovery"

func main() {
	defer recovery.HandlePanic()
	Execute()
}
