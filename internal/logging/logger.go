package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Init installs the default slog logger: text records to the log file at the configured level
// and to stdout at INFO and above. An empty path logs to stdout only. The returned function
// closes the log file.
func Init(levelStr, path string) (func(), error) {
	level := ParseLevel(levelStr)
	h, f, err := setupHandler(os.Stdout, path, level)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	slog.SetDefault(slog.New(h))
	return func() {
		if f != nil {
			f.Close()
		}
	}, nil
}

func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupHandler(console io.Writer, path string, level slog.Level) (slog.Handler, *os.File, error) {
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{
		Level: max(level, slog.LevelInfo),
	})
	if path == "" {
		return consoleHandler, nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})
	return &multiHandler{handlers: []slog.Handler{fileHandler, consoleHandler}}, file, nil
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// nolint:gocritic // r must be passed by value to implement slog.Handler
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: out}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: out}
}
