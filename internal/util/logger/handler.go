package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	output   io.Writer = os.Stderr
	outputMu sync.RWMutex
)

// switchWriter 每次写入时读取当前的全局输出，
// 这样 SetOutput 对已经创建的 Logger 同样生效
type switchWriter struct{}

func (switchWriter) Write(p []byte) (int, error) {
	outputMu.RLock()
	w := output
	outputMu.RUnlock()
	return w.Write(p)
}

// levelHandler 带可调级别的子系统 Handler
type levelHandler struct {
	level *slog.LevelVar
	inner slog.Handler
}

func newLevelHandler(subsystem string, cfg *Config) *levelHandler {
	lv := new(slog.LevelVar)
	lv.Set(cfg.LevelFor(subsystem))

	opts := &slog.HandlerOptions{
		// 级别过滤交给 levelHandler，这里放行全部
		Level:     slog.LevelDebug,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}

	var inner slog.Handler
	if cfg.Format == FormatJSON {
		inner = slog.NewJSONHandler(switchWriter{}, opts)
	} else {
		inner = slog.NewTextHandler(switchWriter{}, opts)
	}

	return &levelHandler{
		level: lv,
		inner: inner.WithAttrs([]slog.Attr{slog.String("subsystem", subsystem)}),
	}
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, inner: h.inner.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, inner: h.inner.WithGroup(name)}
}

// discardHandler 丢弃全部记录
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
