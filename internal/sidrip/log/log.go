// Package log owns the process-wide slog default used by command
// entry points, and the panic guard wrapped around them.
package log

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
)

// Setup installs the default text handler on stderr. Safe to call more
// than once; only the first call wins.
func Setup(debugLevel bool) {
	initOnce.Do(func() {
		level := slog.LevelInfo
		if debugLevel {
			level = slog.LevelDebug
		}

		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level:     level,
			AddSource: debugLevel,
		})

		slog.SetDefault(slog.New(handler))
		initialized.Store(true)
	})
}

// Initialized reports whether Setup has run.
func Initialized() bool {
	return initialized.Load()
}

// RecoverPanic logs a recovered panic with its stack and runs the
// cleanup, for use as a deferred guard around command entry points.
func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		if Initialized() {
			slog.Error(fmt.Sprintf("Panic in %s", name),
				"panic", r,
				"stack", string(debug.Stack()))
		}
		if cleanup != nil {
			cleanup()
		}
	}
}
