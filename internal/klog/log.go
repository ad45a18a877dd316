// Package klog adapts github.com/rs/zerolog for the kernel core's
// subsystems, the way joeycumines-go-utilpkg/logiface-zerolog wires
// zerolog behind a small package type instead of reaching for the global
// logger everywhere.
package klog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a component-scoped logger writing to w (os.Stderr if nil).
// Every subsystem constructor takes one of these rather than a package
// global, so tests can capture output per-case.
func New(component string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).With().Timestamp().Str("component", component).Logger()
}

// Nop returns a logger that discards everything; the default for
// subsystems constructed without an explicit logger (e.g. in tests that
// don't care about log output).
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
