package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Format selects the encoding of the console/file output.
type Format string

const (
	FormatPretty Format = "pretty"
	FormatJSON   Format = "json"
)

// Options configure construction of a logger.
type Options struct {
	// Level is the textual minimum level (debug, info, warn, error).
	Level string
	// Format selects pretty or json output. Empty defaults to pretty.
	Format Format
	// Output receives log records. Defaults to os.Stderr.
	Output io.Writer
	// FilePath, when set, duplicates records into the named file.
	FilePath string
	// ForceColor enables ANSI colors even when Output is not a terminal.
	ForceColor bool
	// AddSource annotates records with the caller's file:line.
	AddSource bool
}

// New constructs a slog.Logger from Options. Invalid levels fall back to
// info rather than erroring; a file that cannot be opened is an error
// because silently dropping a requested log sink hides failures.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(out, f)
	}

	var handler slog.Handler
	switch opts.Format {
	case FormatJSON:
		handler = newJSONHandler(out, level, opts.AddSource)
	default:
		handler = newPrettyHandler(out, level, colorEnabled(opts))
	}
	return slog.New(handler), nil
}

func colorEnabled(opts Options) bool {
	if opts.ForceColor {
		return true
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := opts.Output.(*os.File)
	if !ok {
		f, ok = defaultTTY(opts)
		if !ok {
			return false
		}
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func defaultTTY(opts Options) (*os.File, bool) {
	if opts.Output == nil {
		return os.Stderr, true
	}
	return nil, false
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newJSONHandler(out io.Writer, level slog.Level, addSource bool) slog.Handler {
	return slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				a.Key = "ts"
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
			case slog.LevelKey:
				a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
			case slog.SourceKey:
				if src, ok := a.Value.Any().(*slog.Source); ok {
					a.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return a
		},
	})
}

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiCyan   = "\x1b[36m"
)

// prettyHandler renders human-oriented single-line records:
//
//	15:04:05 INFO  download scene downloaded pid=12 size=1.2GB
type prettyHandler struct {
	mu    *sync.Mutex
	out   io.Writer
	level slog.Level
	color bool
	attrs []slog.Attr
	group string
}

func newPrettyHandler(out io.Writer, level slog.Level, color bool) *prettyHandler {
	return &prettyHandler{
		mu:    &sync.Mutex{},
		out:   out,
		level: level,
		color: color,
	}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *prettyHandler) Handle(_ context.Context, rec slog.Record) error {
	var b strings.Builder

	ts := rec.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	h.dim(&b, ts.Format("15:04:05"))
	b.WriteByte(' ')
	h.levelLabel(&b, rec.Level)
	b.WriteByte(' ')

	attrs := make([]slog.Attr, 0, rec.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)
	rec.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	if comp := takeAttr(&attrs, FieldComponent); comp != "" {
		h.colorize(&b, ansiCyan, comp)
		b.WriteByte(' ')
	}
	b.WriteString(rec.Message)

	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
	for _, a := range attrs {
		b.WriteByte(' ')
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		h.dim(&b, key+"=")
		b.WriteString(formatValue(a.Value))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func (h *prettyHandler) levelLabel(b *strings.Builder, level slog.Level) {
	switch {
	case level >= slog.LevelError:
		h.colorize(b, ansiRed, "ERROR")
	case level >= slog.LevelWarn:
		h.colorize(b, ansiYellow, "WARN ")
	case level >= slog.LevelInfo:
		h.colorize(b, ansiBlue, "INFO ")
	default:
		h.dim(b, "DEBUG")
	}
}

func (h *prettyHandler) colorize(b *strings.Builder, code, s string) {
	if h.color {
		b.WriteString(code)
		b.WriteString(s)
		b.WriteString(ansiReset)
		return
	}
	b.WriteString(s)
}

func (h *prettyHandler) dim(b *strings.Builder, s string) {
	h.colorize(b, ansiDim, s)
}

func takeAttr(attrs *[]slog.Attr, key string) string {
	for i, a := range *attrs {
		if a.Key == key {
			*attrs = append((*attrs)[:i], (*attrs)[i+1:]...)
			return a.Value.String()
		}
	}
	return ""
}

func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindString:
		s := v.String()
		if strings.ContainsAny(s, " \t\"") {
			return fmt.Sprintf("%q", s)
		}
		return s
	default:
		return v.String()
	}
}
