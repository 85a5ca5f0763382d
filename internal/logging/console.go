package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// LevelFatal marks errors that stop an identity for good.
const LevelFatal = slog.Level(12)

// AccountKey is the attribute rendered as the line prefix instead of a
// key=value pair.
const AccountKey = "account"

// LevelName returns the display name of a level.
func LevelName(l slog.Level) string {
	switch {
	case l >= LevelFatal:
		return "FATAL"
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// ReplaceLevel renders LevelFatal as "FATAL" in slog's built-in handlers.
func ReplaceLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if l, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(LevelName(l))
		}
	}
	return a
}

type styles struct {
	time    lipgloss.Style
	account lipgloss.Style
	key     lipgloss.Style
	levels  map[string]lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		time:    r.NewStyle().Faint(true),
		account: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		key:     r.NewStyle().Foreground(lipgloss.Color("245")),
		levels: map[string]lipgloss.Style{
			"DEBUG": r.NewStyle().Foreground(lipgloss.Color("245")),
			"INFO":  r.NewStyle().Foreground(lipgloss.Color("42")),
			"WARN":  r.NewStyle().Foreground(lipgloss.Color("214")),
			"ERROR": r.NewStyle().Foreground(lipgloss.Color("203")),
			"FATAL": r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		},
	}
}

// ConsoleOptions configures a ConsoleHandler.
type ConsoleOptions struct {
	Level    slog.Leveler // Minimum level, default Info
	NoTime   bool         // Omit the timestamp column
	NoColors bool         // Never emit ANSI escapes
}

// ConsoleHandler is a slog.Handler for human-readable terminal output.
type ConsoleHandler struct {
	opts   ConsoleOptions
	styles styles

	mu *sync.Mutex
	w  io.Writer

	account string
	prefix  string // group prefix for keys
	attrs   string // preformatted WithAttrs output
}

// NewConsoleHandler creates a ConsoleHandler writing to w. Colors are used
// only when w is a terminal.
func NewConsoleHandler(w io.Writer, opts *ConsoleOptions) *ConsoleHandler {
	h := &ConsoleHandler{mu: &sync.Mutex{}, w: w}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}

	r := lipgloss.NewRenderer(w)
	if h.opts.NoColors {
		r = lipgloss.NewRenderer(io.Discard)
	}
	h.styles = newStyles(r)

	return h
}

// Enabled reports whether records at level are written.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle writes one line for r.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	if !h.opts.NoTime && !r.Time.IsZero() {
		b.WriteString(h.styles.time.Render(r.Time.Format(time.DateTime)))
		b.WriteByte(' ')
	}

	name := LevelName(r.Level)
	b.WriteString(h.styles.levels[name].Render("[" + name + "]"))
	b.WriteByte(' ')

	account := h.account
	var attrs strings.Builder
	attrs.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		if h.prefix == "" && a.Key == AccountKey {
			account = a.Value.String()
			return true
		}
		h.appendAttr(&attrs, h.prefix, a)
		return true
	})

	if account != "" {
		b.WriteString(h.styles.account.Render(account + ":"))
		b.WriteByte(' ')
	}
	b.WriteString(r.Message)
	b.WriteString(attrs.String())
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		if h.prefix == "" && a.Key == AccountKey {
			h2.account = a.Value.String()
			continue
		}
		h.appendAttr(&b, h.prefix, a)
	}
	h2.attrs = b.String()
	return &h2
}

// WithGroup returns a handler that qualifies later keys with name.
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

func (h *ConsoleHandler) appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range group {
			h.appendAttr(b, prefix, ga)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(h.styles.key.Render(prefix + a.Key + "="))
	b.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"=") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return strconv.Quote(err.Error())
		}
		s := fmt.Sprint(v.Any())
		if strings.ContainsAny(s, " \t\n\"=") {
			return strconv.Quote(s)
		}
		return s
	default:
		return v.String()
	}
}
