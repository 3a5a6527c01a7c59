package logstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/Talis-dev/logvault/pkg/logentry"
)

// SlogLevelSuccess sits between slog.LevelInfo and slog.LevelWarn and maps
// to logentry.LevelSuccess.
const SlogLevelSuccess = slog.LevelInfo + 2

// CategoryKey is the attribute that sets an entry's category.
const CategoryKey = "category"

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	// Level is the minimum record level stored. Defaults to slog.LevelDebug.
	Level slog.Leveler
	// Category is used when a record has no category attribute.
	Category string
}

// Handler is a slog.Handler that logs records into a Store. Attributes other
// than the category become the entry's data; group names prefix keys with
// a dot.
type Handler struct {
	store    *Store
	level    slog.Leveler
	category string
	attrs    []slog.Attr
	prefix   string
}

var _ slog.Handler = (*Handler)(nil)

func NewHandler(s *Store, opts *HandlerOptions) *Handler {
	h := &Handler{store: s, level: slog.LevelDebug, category: "app"}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		if opts.Category != "" {
			h.category = opts.Category
		}
	}
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	category := h.category
	data := make(map[string]any)
	for _, a := range h.attrs {
		if a.Key == CategoryKey {
			category = a.Value.Resolve().String()
			continue
		}
		addAttr(data, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == CategoryKey && h.prefix == "" {
			category = a.Value.Resolve().String()
			return true
		}
		addAttr(data, h.prefix, a)
		return true
	})
	h.store.Log(entryLevel(r.Level), category, r.Message, data)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	nh := *h
	nh.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	nh.attrs = append(nh.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func entryLevel(l slog.Level) logentry.Level {
	switch {
	case l < slog.LevelInfo:
		return logentry.LevelDebug
	case l < SlogLevelSuccess:
		return logentry.LevelInfo
	case l < slog.LevelWarn:
		return logentry.LevelSuccess
	case l < slog.LevelError:
		return logentry.LevelWarning
	default:
		return logentry.LevelError
	}
}

func addAttr(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Key == "" && v.Kind() != slog.KindGroup {
		return
	}
	key := prefix + a.Key
	switch v.Kind() {
	case slog.KindGroup:
		p := prefix
		if a.Key != "" {
			p = key + "."
		}
		for _, ga := range v.Group() {
			addAttr(dst, p, ga)
		}
	case slog.KindTime:
		dst[key] = v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		dst[key] = v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			dst[key] = err.Error()
			return
		}
		dst[key] = v.Any()
	default:
		dst[key] = v.Any()
	}
}

