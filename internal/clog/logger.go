// Package clog holds the compiler's package-level logger, following
// wippyai-wasm-runtime's linker.Logger pattern: a nop logger by default,
// swappable by the embedding driver (cmd/move2wasm) before compilation.
package clog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// L returns the compiler's logger instance, defaulting to a no-op logger.
func L() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger installs l as the compiler's logger. Must be called before
// compilation begins.
func SetLogger(l *zap.Logger) {
	logger = l
}
