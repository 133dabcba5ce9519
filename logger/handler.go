// Package logger the slog console handler
package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

const (
	red    = 31
	yellow = 33
	blue   = 36
	grey   = 38
)

var bufPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

func freeBuffer(buf *bytes.Buffer) {
	buf.Reset()
	bufPool.Put(buf)
}

// Options configure a ConsoleHandler.
type Options struct {
	// Level is the minimum level, defaults to slog.LevelInfo.
	Level slog.Leveler
	// NoColor disables the ANSI level colors.
	NoColor bool
	// Plain writes only the message and attributes, no time or level.
	// Used for script console output.
	Plain bool
	// Stdout receives records below slog.LevelWarn, defaults to os.Stdout.
	Stdout io.Writer
	// Stderr receives warnings and errors, defaults to os.Stderr.
	Stderr io.Writer
}

// ConsoleHandler is a Handler that writes Records to an io.Writer as
// single human-readable lines.
type ConsoleHandler struct {
	opts  Options
	mu    *sync.Mutex
	attrs string
	group string
}

// NewConsoleHandler creates a ConsoleHandler writing to the standard streams.
// NO_COLOR in the environment disables colors.
func NewConsoleHandler(l slog.Leveler) *ConsoleHandler {
	return NewHandler(Options{Level: l, NoColor: os.Getenv("NO_COLOR") != ""})
}

// NewHandler creates a ConsoleHandler with the options.
func NewHandler(opts Options) *ConsoleHandler {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &ConsoleHandler{opts: opts, mu: new(sync.Mutex)}
}

// Enabled reports whether the handler handles records at the given level.
// The handler ignores records whose level is lower.
func (c *ConsoleHandler) Enabled(_ context.Context, l slog.Level) bool {
	minLevel := slog.LevelInfo
	if c.opts.Level != nil {
		minLevel = c.opts.Level.Level()
	}
	return l >= minLevel
}

// WithAttrs returns a new ConsoleHandler whose attributes consists
// of h's attributes followed by attrs.
func (c *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	buf := bufPool.Get().(*bytes.Buffer)
	defer freeBuffer(buf)

	buf.WriteString(c.attrs)
	for _, attr := range attrs {
		c.writeAttr(buf, attr)
	}

	return &ConsoleHandler{
		opts:  c.opts,
		mu:    c.mu,
		group: c.group,
		attrs: buf.String(),
	}
}

// WithGroup returns a new Handler with the given group appended to
// the receiver's existing groups.
func (c *ConsoleHandler) WithGroup(name string) slog.Handler {
	group := name
	if c.group != "" {
		group = c.group + "." + name
	}
	return &ConsoleHandler{
		opts:  c.opts,
		mu:    c.mu,
		group: group,
		attrs: c.attrs,
	}
}

func (c *ConsoleHandler) writeAttr(buf *bytes.Buffer, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	buf.WriteByte(' ')
	if c.group != "" {
		buf.WriteString(c.group)
		buf.WriteByte('.')
	}
	buf.WriteString(a.Key)
	buf.WriteString(": ")
	buf.WriteString(a.Value.String())
}

// Handle formats its argument Record as single line.
//
// If the Record's time is zero, the time is omitted.
// In plain mode only the message and attributes are written.
//
// Each call to Handle results in a single serialized call to io.Writer.Write.
func (c *ConsoleHandler) Handle(_ context.Context, r slog.Record) (err error) {
	buf := bufPool.Get().(*bytes.Buffer)
	defer freeBuffer(buf)

	w := c.opts.Stdout
	if r.Level >= slog.LevelWarn {
		w = c.opts.Stderr
	}

	if !c.opts.Plain {
		if !r.Time.IsZero() {
			buf.WriteByte('[')
			buf.WriteString(r.Time.Format("15:04:05.000"))
			buf.WriteString("] ")
		}
		if c.opts.NoColor {
			buf.WriteString(r.Level.String())
		} else {
			fmt.Fprintf(buf, "\x1b[%dm%s\x1b[0m", levelColor(r.Level), r.Level.String())
		}
		buf.WriteByte(' ')
	}
	buf.WriteString(r.Message)
	buf.WriteString(c.attrs)
	r.Attrs(func(a slog.Attr) bool {
		c.writeAttr(buf, a)
		return true
	})
	buf.WriteByte('\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = w.Write(buf.Bytes())
	return
}

func levelColor(l slog.Level) int {
	switch {
	case l >= slog.LevelError:
		return red
	case l >= slog.LevelWarn:
		return yellow
	case l < slog.LevelInfo:
		return blue
	default:
		return grey
	}
}

// ParseLevel parses a level name such as "debug" or "warn".
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(s))
	return l, err
}
