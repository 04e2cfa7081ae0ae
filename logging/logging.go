// Package logging provides the module's default slog loggers.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

var (
	level          slog.LevelVar
	defaultLogger  = NewLogger(os.Stderr, &level)
	disabledLogger = slog.New(noopHandler{})
)

// NewLogger returns a text logger writing to w. The leveler controls which
// records are emitted; pass a *slog.LevelVar to adjust it later.
func NewLogger(w io.Writer, leveler slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: leveler}))
}

// DefaultLogger returns the module's default logger, a text logger on
// stderr.
func DefaultLogger() *slog.Logger {
	return defaultLogger
}

// SetDefaultLevel adjusts the level of the default logger.
func SetDefaultLevel(l slog.Level) {
	level.Set(l)
}

// DisabledLogger returns a logger that emits nothing. Library operations use
// it when the caller doesn't supply a logger.
func DisabledLogger() *slog.Logger {
	return disabledLogger
}

// noopHandler discards all records at all levels.
type noopHandler struct{}

func (noopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (noopHandler) Handle(context.Context, slog.Record) error { return nil }
func (noopHandler) WithAttrs([]slog.Attr) slog.Handler        { return noopHandler{} }
func (noopHandler) WithGroup(string) slog.Handler             { return noopHandler{} }
