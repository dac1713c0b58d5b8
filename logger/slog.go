package logger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SLogHandler translates slog.Record into zerolog.Event of the global logger.
// Groups opened with WithGroup are listed under GroupsFieldName.
type SLogHandler struct {
	attrs  []slog.Attr
	groups []string

	once sync.Once

	CallerSkipFrame int
	GroupsFieldName string
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	}
	return zerolog.ErrorLevel
}

// Enabled implements slog.Handler interface
func (h *SLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return zerolog.GlobalLevel() <= zerologLevel(level)
}

// Handle implements slog.Handler interface
func (h *SLogHandler) Handle(_ context.Context, r slog.Record) error {
	h.once.Do(func() {
		if h.GroupsFieldName == "" {
			h.GroupsFieldName = "logger"
		}
	})

	e := log.WithLevel(zerologLevel(r.Level))
	if len(h.groups) > 0 {
		e = e.Strs(h.GroupsFieldName, h.groups)
	}
	for _, attr := range h.attrs {
		appendAttr(e, attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		appendAttr(e, attr)
		return true
	})
	e.CallerSkipFrame(h.CallerSkipFrame).Msg(r.Message)
	return nil
}

func appendAttr(e *zerolog.Event, attr slog.Attr) {
	v := attr.Value.Resolve()
	switch v.Kind() {
	case slog.KindBool:
		e.Bool(attr.Key, v.Bool())
	case slog.KindDuration:
		e.Dur(attr.Key, v.Duration())
	case slog.KindFloat64:
		e.Float64(attr.Key, v.Float64())
	case slog.KindInt64:
		e.Int64(attr.Key, v.Int64())
	case slog.KindString:
		e.Str(attr.Key, v.String())
	case slog.KindTime:
		e.Time(attr.Key, v.Time())
	case slog.KindUint64:
		e.Uint64(attr.Key, v.Uint64())
	case slog.KindGroup:
		d := zerolog.Dict()
		for _, a := range v.Group() {
			appendAttr(d, a)
		}
		e.Dict(attr.Key, d)
	default:
		e.Any(attr.Key, v.Any())
	}
}

func (h *SLogHandler) clone() *SLogHandler {
	return &SLogHandler{
		attrs:           append([]slog.Attr(nil), h.attrs...),
		groups:          append([]string(nil), h.groups...),
		CallerSkipFrame: h.CallerSkipFrame,
		GroupsFieldName: h.GroupsFieldName,
	}
}

// WithAttrs implements slog.Handler interface
func (h *SLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nested := h.clone()
	nested.attrs = append(nested.attrs, attrs...)
	return nested
}

// WithGroup implements slog.Handler interface
func (h *SLogHandler) WithGroup(name string) slog.Handler {
	nested := h.clone()
	nested.groups = append(nested.groups, name)
	return nested
}
