package logger

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

const (
	ansiReset = "\033[0m"
	ansiDim   = "\033[2m"
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiAmber = "\033[33m"
	ansiBlue  = "\033[34m"
	ansiCyan  = "\033[36m"
)

const streamTagLen = 8

// ConsoleOptions configures a ConsoleHandler.
type ConsoleOptions struct {
	Level slog.Leveler
	Color bool
}

// ConsoleHandler writes one line per record:
//
//	15:04:05.000 INF [1a2b3c4d] stream started key=value
//
// The stream_id attribute is lifted into the bracketed tag, cut to eight
// characters. Group attributes are flattened into dotted keys.
type ConsoleHandler struct {
	opts   ConsoleOptions
	w      io.Writer
	mu     *sync.Mutex
	prefix string
	stream string
	attrs  []byte
}

func NewConsoleHandler(w io.Writer, opts ConsoleOptions) *ConsoleHandler {
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	return &ConsoleHandler{opts: opts, w: w, mu: &sync.Mutex{}}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	stream := h.stream
	var attrs []byte
	r.Attrs(func(a slog.Attr) bool {
		if h.prefix == "" && a.Key == StreamKey {
			stream = a.Value.String()
			return true
		}
		attrs = h.appendAttr(attrs, h.prefix, a)
		return true
	})

	line := make([]byte, 0, 128+len(h.attrs)+len(attrs))
	line = h.paint(line, ansiDim, r.Time.AppendFormat(nil, "15:04:05.000"))
	line = append(line, ' ')
	line = h.paint(line, levelColor(r.Level), []byte(levelTag(r.Level)))
	if stream != "" {
		line = append(line, ' ')
		line = h.paint(line, ansiGreen, []byte("["+shorten(stream)+"]"))
	}
	line = append(line, ' ')
	line = append(line, r.Message...)
	line = append(line, h.attrs...)
	line = append(line, attrs...)
	line = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(line)
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if h.prefix == "" && a.Key == StreamKey {
			c.stream = a.Value.String()
			continue
		}
		c.attrs = c.appendAttr(c.attrs, c.prefix, a)
	}
	return c
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	return c
}

func (h *ConsoleHandler) clone() *ConsoleHandler {
	c := *h
	c.attrs = append([]byte(nil), h.attrs...)
	return &c
}

func (h *ConsoleHandler) paint(buf []byte, color string, s []byte) []byte {
	if !h.opts.Color {
		return append(buf, s...)
	}
	buf = append(buf, color...)
	buf = append(buf, s...)
	return append(buf, ansiReset...)
}

// appendAttr writes " key=value", flattening groups.
func (h *ConsoleHandler) appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, g := range a.Value.Group() {
			buf = h.appendAttr(buf, p, g)
		}
		return buf
	}

	buf = append(buf, ' ')
	buf = h.paint(buf, ansiCyan, []byte(prefix+a.Key+"="))
	val := formatValue(a.Value)
	if _, isErr := a.Value.Any().(error); isErr {
		return h.paint(buf, ansiRed, val)
	}
	return append(buf, val...)
}

func formatValue(v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if needsQuote(s) {
			return strconv.AppendQuote(nil, s)
		}
		return []byte(s)
	case slog.KindFloat64:
		return strconv.AppendFloat(nil, v.Float64(), 'g', 6, 64)
	case slog.KindDuration:
		return []byte(v.Duration().String())
	case slog.KindTime:
		return v.Time().AppendFormat(nil, time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return strconv.AppendQuote(nil, err.Error())
		}
	}
	s := v.String()
	if needsQuote(s) {
		return strconv.AppendQuote(nil, s)
	}
	return []byte(s)
}

func needsQuote(s string) bool {
	if s == "" {
		return true
	}
	for _, c := range s {
		if c <= ' ' || c == '"' || c == '=' || c > '~' {
			return true
		}
	}
	return false
}

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERR"
	case l >= slog.LevelWarn:
		return "WRN"
	case l >= slog.LevelInfo:
		return "INF"
	}
	return "DBG"
}

func levelColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return ansiRed
	case l >= slog.LevelWarn:
		return ansiAmber
	case l >= slog.LevelInfo:
		return ansiBlue
	}
	return ansiDim
}

func shorten(id string) string {
	if len(id) <= streamTagLen {
		return id
	}
	return id[:streamTagLen]
}
