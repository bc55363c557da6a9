// Package logging holds the *slog.Logger shared by the pdfsec packages.
//
// Nothing is logged unless a logger is installed with SetLogger. Key
// material and passwords are never passed to the logger.
package logging

import (
	"log/slog"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// SetLogger installs sl as the package-level logger. Passing nil restores the
// discard logger.
//
// To see the normalizer and parser decisions on stderr:
//
//	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr,
//		&slog.HandlerOptions{Level: slog.LevelDebug})))
//
// SetLogger is safe for concurrent use.
func SetLogger(sl *slog.Logger) {
	if sl == nil {
		sl = discard()
	}
	logger.Store(sl)
}

// Logger returns the package-level logger, or a discard logger when none has
// been installed.
func Logger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	l := discard()
	logger.CompareAndSwap(nil, l)
	return logger.Load()
}
