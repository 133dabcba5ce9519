package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/bundle"
	"github.com/shiroyk/mdeno/js"
	"github.com/shiroyk/mdeno/modules"
)

// RuntimeException is an uncaught JavaScript exception.
type RuntimeException struct {
	Name    string
	Message string
	Stack   string
}

func (e *RuntimeException) Error() string {
	if e.Name != "" && e.Name != "Error" {
		return e.Name + ": " + e.Message
	}
	return e.Message
}

// Format returns the exception as printed on the diagnostic stream.
func (e *RuntimeException) Format() string {
	if e.Stack == "" {
		return "Error: " + e.Error()
	}
	return "Error: " + e.Error() + "\n" + e.Stack
}

// exception converts a thrown or rejected value.
func exception(v sobek.Value) *RuntimeException {
	if v == nil {
		return &RuntimeException{Message: "undefined"}
	}
	obj, ok := v.(*sobek.Object)
	if !ok {
		return &RuntimeException{Message: v.String()}
	}
	msg := obj.Get("message")
	if msg == nil || sobek.IsUndefined(msg) {
		return &RuntimeException{Message: v.String()}
	}
	ex := &RuntimeException{Message: msg.String()}
	if name := obj.Get("name"); name != nil && !sobek.IsUndefined(name) {
		ex.Name = name.String()
	}
	if stack := obj.Get("stack"); stack != nil && !sobek.IsUndefined(stack) {
		ex.Stack = trimStackHeader(stack.String(), ex)
	}
	return ex
}

// trimStackHeader drops the leading "Name: message" line some stacks carry.
func trimStackHeader(stack string, ex *RuntimeException) string {
	first, rest, _ := strings.Cut(stack, "\n")
	if first == ex.Message || first == ex.Name+": "+ex.Message {
		stack = rest
	}
	return strings.TrimRight(stack, "\n")
}

// toException converts an error surfaced by a job or an evaluation.
// Typed resolution, load, compile and exit errors pass through unchanged.
func toException(err error) error {
	var (
		re   *RuntimeException
		ex   *sobek.Exception
		ie   *sobek.InterruptedError
		exit *js.ExitError
		res  *modules.ResolutionError
		le   *modules.LoadError
		ce   *bundle.CompileError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &re), errors.As(err, &exit), errors.As(err, &res), errors.As(err, &le), errors.As(err, &ce):
		return err
	case errors.As(err, &ex):
		r := exception(ex.Value())
		if r.Stack == "" {
			if _, stack, ok := strings.Cut(ex.String(), "\n"); ok {
				r.Stack = strings.TrimRight(stack, "\n")
			}
		}
		return r
	case errors.As(err, &ie):
		if exit, ok := ie.Value().(*js.ExitError); ok {
			return exit
		}
		return &RuntimeException{Message: ie.Error()}
	default:
		return &RuntimeException{Message: err.Error()}
	}
}

// ExitCode maps the result of a run to the process exit status:
// 0 on success, the requested code for Deno.exit, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *js.ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 1
}

// FormatError renders err for the diagnostic stream. Runtime exceptions print
// their message and stack; other errors print the numbered cause chain.
func FormatError(err error) string {
	var re *RuntimeException
	if errors.As(err, &re) {
		return re.Format()
	}
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(err.Error())
	for i, cause := 0, errors.Unwrap(err); cause != nil && i < maxErrorDepth; i, cause = i+1, errors.Unwrap(cause) {
		if i == 0 {
			b.WriteString("\n\nCaused by:")
		}
		fmt.Fprintf(&b, "\n    %d: %s", i, cause)
	}
	return b.String()
}

const maxErrorDepth = 8
