package js

import (
	"context"
	"io"
	"os"

	"github.com/grafana/sobek"
)

// Host is the per-session state that host functions reach through the runtime.
type Host struct {
	Context    context.Context
	Loop       *EventLoop
	Args       []string
	Standalone bool
	Test       bool
	Stdout     io.Writer
	Stderr     io.Writer

	exit *ExitError
}

var symHost = sobek.NewSymbol("Symbol.__host__")

// Attach binds h to the runtime.
func Attach(rt *sobek.Runtime, h *Host) {
	if h.Context == nil {
		h.Context = context.Background()
	}
	if h.Loop == nil {
		h.Loop = NewEventLoop()
	}
	if h.Stdout == nil {
		h.Stdout = os.Stdout
	}
	if h.Stderr == nil {
		h.Stderr = os.Stderr
	}
	_ = rt.GlobalObject().DefineDataPropertySymbol(symHost, rt.ToValue(h),
		sobek.FLAG_FALSE, sobek.FLAG_FALSE, sobek.FLAG_FALSE)
}

// HostOf returns the Host bound to the runtime.
func HostOf(rt *sobek.Runtime) *Host {
	if h, ok := rt.GlobalObject().GetSymbol(symHost).Export().(*Host); ok {
		return h
	}
	panic(rt.NewTypeError(`symbol value of "host" must be Host`))
}

// EnqueueJob registers an outstanding operation on the session reactor.
func EnqueueJob(rt *sobek.Runtime) Enqueue { return HostOf(rt).Loop.EnqueueJob() }

// Context returns the current context of the sobek.Runtime
func Context(rt *sobek.Runtime) context.Context { return HostOf(rt).Context }

// Cleanup add a function to execute when the session is torn down.
func Cleanup(rt *sobek.Runtime, fn func()) { HostOf(rt).Loop.Cleanup(fn) }

// Exit stops the session with code. Script execution stops at the next instruction boundary.
func Exit(rt *sobek.Runtime, code int) {
	h := HostOf(rt)
	h.exit = &ExitError{Code: code}
	rt.Interrupt(h.exit)
}

// Exited returns the pending exit request, nil if the script did not call Exit.
func (h *Host) Exited() *ExitError { return h.exit }
