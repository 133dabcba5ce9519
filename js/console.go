package js

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/grafana/sobek"
)

// Console implements the js console global. Every call becomes one record of
// the context logger: log, info, dir, count and the timers at slog.LevelInfo,
// debug at slog.LevelDebug, warn at slog.LevelWarn, error, trace and failed
// assertions at slog.LevelError.
type Console struct{}

func (Console) Global() {}

func (Console) Instantiate(rt *sobek.Runtime) (sobek.Value, error) {
	c := &console{
		rt:     rt,
		counts: make(map[string]int),
		timers: make(map[string]time.Time),
	}
	ret := rt.NewObject()
	for name, fn := range map[string]func(sobek.FunctionCall) sobek.Value{
		"log":            c.printer(slog.LevelInfo),
		"info":           c.printer(slog.LevelInfo),
		"debug":          c.printer(slog.LevelDebug),
		"warn":           c.printer(slog.LevelWarn),
		"error":          c.printer(slog.LevelError),
		"dir":            c.dir,
		"assert":         c.assert,
		"count":          c.count,
		"countReset":     c.countReset,
		"time":           c.time,
		"timeLog":        c.timeLog,
		"timeEnd":        c.timeEnd,
		"group":          c.group,
		"groupCollapsed": c.group,
		"groupEnd":       c.groupEnd,
		"trace":          c.trace,
	} {
		if err := ret.Set(name, fn); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// console is the per-runtime state behind the global.
type console struct {
	rt     *sobek.Runtime
	indent int
	counts map[string]int
	timers map[string]time.Time
}

func (c *console) print(level slog.Level, msg string) {
	if c.indent > 0 {
		pad := strings.Repeat("  ", c.indent)
		msg = pad + strings.ReplaceAll(msg, "\n", "\n"+pad)
	}
	ctx := Context(c.rt)
	Logger(ctx).Log(ctx, level, msg)
}

func (c *console) printer(level slog.Level) func(sobek.FunctionCall) sobek.Value {
	return func(call sobek.FunctionCall) sobek.Value {
		c.print(level, Format(c.rt, call.Arguments...))
		return sobek.Undefined()
	}
}

func (c *console) dir(call sobek.FunctionCall) sobek.Value {
	c.print(slog.LevelInfo, inspect(c.rt, call.Argument(0)))
	return sobek.Undefined()
}

func (c *console) assert(call sobek.FunctionCall) sobek.Value {
	if call.Argument(0).ToBoolean() {
		return sobek.Undefined()
	}
	msg := "Assertion failed"
	if len(call.Arguments) > 1 {
		msg += ": " + Format(c.rt, call.Arguments[1:]...)
	}
	c.print(slog.LevelError, msg)
	return sobek.Undefined()
}

// label returns the counter or timer label, "default" when omitted.
func label(v sobek.Value) string {
	if v == nil || sobek.IsUndefined(v) {
		return "default"
	}
	return v.String()
}

func (c *console) count(call sobek.FunctionCall) sobek.Value {
	name := label(call.Argument(0))
	c.counts[name]++
	c.print(slog.LevelInfo, fmt.Sprintf("%s: %d", name, c.counts[name]))
	return sobek.Undefined()
}

func (c *console) countReset(call sobek.FunctionCall) sobek.Value {
	name := label(call.Argument(0))
	if _, ok := c.counts[name]; !ok {
		c.print(slog.LevelWarn, fmt.Sprintf("Count for '%s' does not exist", name))
		return sobek.Undefined()
	}
	delete(c.counts, name)
	return sobek.Undefined()
}

func (c *console) time(call sobek.FunctionCall) sobek.Value {
	name := label(call.Argument(0))
	if _, ok := c.timers[name]; ok {
		c.print(slog.LevelWarn, fmt.Sprintf("Timer '%s' already exists", name))
		return sobek.Undefined()
	}
	c.timers[name] = time.Now()
	return sobek.Undefined()
}

func (c *console) elapsed(name string) (string, bool) {
	start, ok := c.timers[name]
	if !ok {
		c.print(slog.LevelWarn, fmt.Sprintf("Timer '%s' does not exist", name))
		return "", false
	}
	return fmt.Sprintf("%s: %dms", name, time.Since(start).Milliseconds()), true
}

func (c *console) timeLog(call sobek.FunctionCall) sobek.Value {
	msg, ok := c.elapsed(label(call.Argument(0)))
	if !ok {
		return sobek.Undefined()
	}
	if len(call.Arguments) > 1 {
		msg += " " + Format(c.rt, call.Arguments[1:]...)
	}
	c.print(slog.LevelInfo, msg)
	return sobek.Undefined()
}

func (c *console) timeEnd(call sobek.FunctionCall) sobek.Value {
	name := label(call.Argument(0))
	if msg, ok := c.elapsed(name); ok {
		delete(c.timers, name)
		c.print(slog.LevelInfo, msg)
	}
	return sobek.Undefined()
}

func (c *console) group(call sobek.FunctionCall) sobek.Value {
	if len(call.Arguments) > 0 {
		c.print(slog.LevelInfo, Format(c.rt, call.Arguments...))
	}
	c.indent++
	return sobek.Undefined()
}

func (c *console) groupEnd(sobek.FunctionCall) sobek.Value {
	if c.indent > 0 {
		c.indent--
	}
	return sobek.Undefined()
}

func (c *console) trace(call sobek.FunctionCall) sobek.Value {
	var b bytes.Buffer
	b.WriteString("Trace")
	if len(call.Arguments) > 0 {
		b.WriteString(": ")
		b.WriteString(Format(c.rt, call.Arguments...))
	}
	for _, frame := range c.rt.CaptureCallStack(0, nil) {
		b.WriteString("\n    at ")
		frame.Write(&b)
	}
	c.print(slog.LevelError, b.String())
	return sobek.Undefined()
}

// Format renders console arguments. A leading string is a format string
// understanding %s %d %i %f %j %o %O %c and %%; the arguments it does not
// consume are appended, separated by spaces.
func Format(rt *sobek.Runtime, args ...sobek.Value) string {
	var b strings.Builder
	rest := args
	if len(args) > 0 {
		if s, ok := args[0].Export().(string); ok {
			rest = format(rt, &b, s, args[1:])
		} else {
			b.WriteString(inspect(rt, args[0]))
			rest = args[1:]
		}
	}
	for _, arg := range rest {
		b.WriteByte(' ')
		b.WriteString(inspect(rt, arg))
	}
	return b.String()
}

// format writes f with its directives substituted and returns the unused args.
func format(rt *sobek.Runtime, b *strings.Builder, f string, args []sobek.Value) []sobek.Value {
	pct := false
	for _, r := range f {
		if !pct {
			if r == '%' {
				pct = true
			} else {
				b.WriteRune(r)
			}
			continue
		}
		pct = false
		if r == '%' {
			b.WriteByte('%')
			continue
		}
		if len(args) == 0 || !strings.ContainsRune("sdifjoOc", r) {
			b.WriteByte('%')
			b.WriteRune(r)
			continue
		}
		arg := args[0]
		args = args[1:]
		switch r {
		case 's':
			if _, ok := arg.(*sobek.Object); ok {
				b.WriteString(inspect(rt, arg))
			} else {
				b.WriteString(arg.String())
			}
		case 'd', 'f':
			b.WriteString(arg.ToNumber().String())
		case 'i':
			b.WriteString(rt.ToValue(arg.ToInteger()).String())
		case 'j':
			if s := stringify(rt, arg); s != "" {
				b.WriteString(s)
			} else {
				b.WriteString(inspect(rt, arg))
			}
		case 'o', 'O':
			b.WriteString(inspect(rt, arg))
		case 'c':
			// CSS styling has no terminal rendering
		}
	}
	if pct {
		b.WriteByte('%')
	}
	return args
}

// inspect renders one value the way the console prints it.
func inspect(rt *sobek.Runtime, v sobek.Value) string {
	if v == nil || sobek.IsUndefined(v) {
		return "undefined"
	}
	if sobek.IsNull(v) {
		return "null"
	}
	obj, ok := v.(*sobek.Object)
	if !ok {
		return v.String()
	}
	if _, ok := sobek.AssertFunction(v); ok {
		if name := obj.Get("name"); name != nil && name.String() != "" {
			return "[Function: " + name.String() + "]"
		}
		return "[Function (anonymous)]"
	}
	if obj.ClassName() == "Error" {
		if stack := obj.Get("stack"); stack != nil && !sobek.IsUndefined(stack) {
			return stack.String()
		}
		return obj.String()
	}
	if s := stringify(rt, v); s != "" {
		return s
	}
	return obj.String()
}

// stringify returns JSON.stringify(v), or "" when it throws or yields undefined.
func stringify(rt *sobek.Runtime, v sobek.Value) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	json, ok := rt.Get("JSON").(*sobek.Object)
	if !ok {
		return ""
	}
	fn, ok := sobek.AssertFunction(json.Get("stringify"))
	if !ok {
		return ""
	}
	res, err := fn(json, v)
	if err != nil || sobek.IsUndefined(res) {
		return ""
	}
	return res.String()
}

type loggerKey struct{}

// Logger get slog.Logger from the context
func Logger(ctx context.Context) *slog.Logger {
	if logger := ctx.Value(loggerKey{}); logger != nil {
		return logger.(*slog.Logger)
	}
	return slog.Default()
}

// WithLogger set the slog.Logger to context
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}
