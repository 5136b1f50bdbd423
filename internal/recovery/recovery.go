// Package recovery provides a top-level panic handler for the daemon's
// main goroutine and its background workers, so an unexpected panic in
// one audio-adjacent goroutine logs a stack trace instead of silently
// killing the process. Grounded on cwdecoder's internal/recovery.
package recovery

import (
	"fmt"
	"os"
	"runtime/debug"
)

// HandlePanic should be deferred at the top of main() or a goroutine; it
// logs panic details and exits with status 1.
func HandlePanic() {
	if r := recover(); r != nil {
		_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
		os.Exit(1)
	}
}

// HandlePanicFunc logs panic details, runs cleanup, then exits with
// status 1. Use in goroutines that own resources needing an orderly
// shutdown (closing a device, stopping a worker) before the process
// dies.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
		if cleanup != nil {
			cleanup()
		}
		os.Exit(1)
	}
}
