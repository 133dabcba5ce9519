package js

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"github.com/grafana/sobek"
)

// ErrorKind names a class of Deno.errors.
type ErrorKind string

const (
	NotFound         ErrorKind = "NotFound"
	PermissionDenied ErrorKind = "PermissionDenied"
	AlreadyExists    ErrorKind = "AlreadyExists"
	InvalidData      ErrorKind = "InvalidData"
	TimedOut         ErrorKind = "TimedOut"
	BadResource      ErrorKind = "BadResource"
	Busy             ErrorKind = "Busy"
	NotSupported     ErrorKind = "NotSupported"
	IsADirectory     ErrorKind = "IsADirectory"
	NotADirectory    ErrorKind = "NotADirectory"
	Other            ErrorKind = "Other"
)

// ErrorKinds lists every kind with a dedicated error class.
var ErrorKinds = []ErrorKind{
	NotFound, PermissionDenied, AlreadyExists, InvalidData, TimedOut,
	BadResource, Busy, NotSupported, IsADirectory, NotADirectory,
}

// ErrInvalidData reports malformed input to a host function.
var ErrInvalidData = errors.New("invalid data")

// KindOf classifies a Go error.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, fs.ErrNotExist):
		return NotFound
	case errors.Is(err, fs.ErrPermission):
		return PermissionDenied
	case errors.Is(err, fs.ErrExist):
		return AlreadyExists
	case errors.Is(err, syscall.EISDIR):
		return IsADirectory
	case errors.Is(err, syscall.ENOTDIR):
		return NotADirectory
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return TimedOut
	case errors.Is(err, fs.ErrClosed):
		return BadResource
	case errors.Is(err, syscall.EBUSY):
		return Busy
	case errors.Is(err, errors.ErrUnsupported):
		return NotSupported
	case errors.Is(err, ErrInvalidData), errors.Is(err, fs.ErrInvalid):
		return InvalidData
	default:
		return Other
	}
}

// Result is the tagged outcome of a host function.
type Result struct {
	Value any
	Kind  ErrorKind
	Err   error
}

// Ok returns a successful Result.
func Ok(value any) Result { return Result{Value: value} }

// Fail returns a failed Result classified by KindOf.
func Fail(err error) Result { return Result{Kind: KindOf(err), Err: err} }

// Settle returns the result value, or throws the error for a failed result.
func Settle(rt *sobek.Runtime, r Result) sobek.Value {
	if r.Err != nil {
		panic(ErrorValue(rt, r))
	}
	if r.Value == nil {
		return sobek.Undefined()
	}
	return rt.ToValue(r.Value)
}

// ErrorValue is the one place a failed Result becomes a JavaScript error:
// an instance of Deno.errors[kind], or a plain Error for kinds without a class.
func ErrorValue(rt *sobek.Runtime, r Result) *sobek.Object {
	msg := rt.ToValue(r.Err.Error())
	if ctor := errorClass(rt, r.Kind); ctor != nil {
		if obj, err := rt.New(ctor, msg); err == nil {
			return obj
		}
	}
	obj, err := New(rt, "Error", msg)
	if err != nil {
		return rt.NewGoError(r.Err)
	}
	return obj
}

func errorClass(rt *sobek.Runtime, kind ErrorKind) sobek.Value {
	if kind == "" || kind == Other {
		return nil
	}
	deno, ok := rt.Get("Deno").(*sobek.Object)
	if !ok {
		return nil
	}
	classes, ok := deno.Get("errors").(*sobek.Object)
	if !ok {
		return nil
	}
	ctor := classes.Get(string(kind))
	if ctor == nil || sobek.IsUndefined(ctor) {
		return nil
	}
	return ctor
}

// ExitError stops the session with an explicit process exit code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }
