// Package logging builds the process logger. Records go to a rotated file
// under the storage directory so the terminal stays reserved for the user.
package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	osutil "github.com/monolythium/wallet-cli/internal/os"
)

const (
	// FileName is the log file inside <storage>/logs
	FileName = "wallet-cli.log"

	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

// Options configures New.
type Options struct {
	// StorageDir is the wallet storage directory
	StorageDir string
	Level      slog.Level
	// Writer overrides the rotated file, mainly for tests
	Writer io.Writer
}

// New returns a redacting logger and a closer for its file. The log
// directory is created on the first record.
func New(opts Options) (*slog.Logger, io.Closer) {
	var w io.Writer = opts.Writer
	var closer io.Closer = nopCloser{}
	if w == nil {
		lj := &lumberjack.Logger{
			Filename:   Path(opts.StorageDir),
			MaxSize:    maxSizeMB, // megabytes
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays, // days
		}
		w, closer = lj, lj
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.Level})
	return slog.New(NewRedactingHandler(handler, osutil.DefaultRunner())), closer
}

// Path returns the log file location for a storage directory.
func Path(storageDir string) string {
	return filepath.Join(storageDir, "logs", FileName)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// sensitiveKeys are attribute keys whose values are never logged.
var sensitiveKeys = map[string]bool{
	"password": true,
	"mnemonic": true,
	"seed":     true,
}

// RedactingHandler scrubs secrets from messages and string attributes.
type RedactingHandler struct {
	next   slog.Handler
	runner *osutil.Runner
}

// NewRedactingHandler wraps next with the runner's redaction patterns.
func NewRedactingHandler(next slog.Handler, runner *osutil.Runner) *RedactingHandler {
	return &RedactingHandler{next: next, runner: runner}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.runner.Redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		redacted = append(redacted, h.redactAttr(a))
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted), runner: h.runner}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), runner: h.runner}
}

func (h *RedactingHandler) redactAttr(a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[REDACTED]")
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.runner.Redact(v.String()))
	case slog.KindGroup:
		group := v.Group()
		attrs := make([]any, 0, len(group))
		for _, ga := range group {
			attrs = append(attrs, h.redactAttr(ga))
		}
		return slog.Group(a.Key, attrs...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, h.runner.Redact(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}
