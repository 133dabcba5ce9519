package promise

import (
	"errors"
	"fmt"

	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/js"
)

// New return a sobek.Promise object.
// The second argument is a long-running asynchronous task that will be executed in a child goroutine.
// The third optional argument is a callback that will be executed on the engine thread.
// Additional arguments will be ignored.
// Errors reject the promise through js.ErrorValue, so a missing file rejects with Deno.errors.NotFound.
//
//	readTextFile := func(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
//		name := call.Argument(0).String()
//		return rt.ToValue(promise.New(rt,
//			func() ([]byte, error) { return os.ReadFile(name) },
//			func(data []byte, err error) (any, error) { return string(data), err }))
//	}
func New[T any](rt *sobek.Runtime, async func() (T, error), then ...func(T, error) (any, error)) *sobek.Promise {
	enqueue := js.EnqueueJob(rt)
	promise, resolve, reject := rt.NewPromise()

	thenFun := func(r T, e error) (any, error) { return r, e }
	if len(then) > 0 {
		thenFun = then[0]
	}

	go func() {
		var (
			result T
			err    error
		)
		func() {
			defer func() {
				if x := recover(); x != nil {
					err = fmt.Errorf("panic: %v", x)
				}
			}()
			result, err = async()
		}()
		enqueue(func() error {
			value, err := thenFun(result, err)
			if err != nil {
				return reject(js.ErrorValue(rt, js.Fail(err)))
			}
			return resolve(value)
		})
	}()

	return promise
}

// Reject with reason
func Reject(rt *sobek.Runtime, reason any) sobek.Value {
	promise, _, rejectFn := rt.NewPromise()
	_ = rejectFn(reason)
	return rt.ToValue(promise)
}

// Resolve with value
func Resolve(rt *sobek.Runtime, value any) sobek.Value {
	promise, resolve, _ := rt.NewPromise()
	_ = resolve(value)
	return rt.ToValue(promise)
}

// Result returns the promise result, if it not promise return origin value.
func Result(value sobek.Value) (any, error) {
	if value == nil {
		return nil, nil
	}
	v := value.Export()
	promise, ok := v.(*sobek.Promise)
	if !ok {
		return v, nil
	}
	switch promise.State() {
	case sobek.PromiseStateRejected:
		return nil, errors.New(promise.Result().String())
	case sobek.PromiseStateFulfilled:
		return promise.Result().Export(), nil
	default:
		return nil, errors.New("unexpected promise pending state")
	}
}
