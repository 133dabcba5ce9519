// Package timers implements the JavaScript timer functions over the session reactor.
package timers

import (
	"time"

	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/js"
)

// Timers implements JavaScript timer functions
type Timers struct{}

func (t *Timers) Instantiate(rt *sobek.Runtime) (sobek.Value, error) {
	state := &timers{timer: make(map[int64]*timer)}
	_ = rt.GlobalObject().SetSymbol(symTimers, state)
	_ = rt.Set("setTimeout", t.setTimeout)
	_ = rt.Set("clearTimeout", t.clearTimeout)
	_ = rt.Set("setInterval", t.setInterval)
	_ = rt.Set("clearInterval", t.clearInterval)
	_ = rt.Set("queueMicrotask", t.queueMicrotask)
	js.Cleanup(rt, state.stopAll)
	return nil, nil
}

func (*Timers) Global() {}

func delayOf(v sobek.Value) time.Duration {
	delay := time.Duration(v.ToInteger()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	return delay
}

func argsOf(call sobek.FunctionCall) []sobek.Value {
	if len(call.Arguments) > 2 {
		return call.Arguments[2:]
	}
	return nil
}

func (*Timers) setTimeout(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	callback, ok := sobek.AssertFunction(call.Argument(0))
	if !ok {
		panic(rt.NewTypeError("setTimeout: first argument must be a function"))
	}
	args := argsOf(call)

	ctx := js.Context(rt)
	enqueue := js.EnqueueJob(rt)
	t := rtTimers(rt).new(delayOf(call.Argument(1)), false)
	task := func() error {
		if t.stopped() {
			return nil
		}
		t.stop()
		_, err := callback(sobek.Undefined(), args...)
		return err
	}

	go func() {
		select {
		case <-t.timer.C:
			enqueue(task)
		case <-t.done:
			enqueue(func() error { return nil })
		case <-ctx.Done():
			enqueue(func() error { t.stop(); return nil })
		}
	}()

	return rt.ToValue(t.id)
}

func (*Timers) clearTimeout(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	id := call.Argument(0).ToInteger()
	rtTimers(rt).stop(id)
	return sobek.Undefined()
}

func (*Timers) setInterval(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	callback, ok := sobek.AssertFunction(call.Argument(0))
	if !ok {
		panic(rt.NewTypeError("setInterval: first argument must be a function"))
	}
	args := argsOf(call)

	delay := delayOf(call.Argument(1))
	if delay == 0 {
		delay = time.Millisecond
	}

	ctx := js.Context(rt)
	loop := js.HostOf(rt).Loop
	enqueue := loop.EnqueueJob()
	t := rtTimers(rt).new(delay, true)
	task := func() error {
		if t.stopped() {
			return nil
		}
		_, err := callback(sobek.Undefined(), args...)
		return err
	}

	go func() {
		for {
			select {
			case <-t.ticker.C:
				// register the next tick before delivering this one so the reactor never looks idle
				next := loop.EnqueueJob()
				enqueue(task)
				enqueue = next
			case <-t.done:
				enqueue(func() error { return nil })
				return
			case <-ctx.Done():
				enqueue(func() error { t.stop(); return nil })
				return
			}
		}
	}()

	return rt.ToValue(t.id)
}

func (*Timers) clearInterval(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	id := call.Argument(0).ToInteger()
	rtTimers(rt).stop(id)
	return sobek.Undefined()
}

// queueMicrotask runs callback from the engine job queue once the current job completes.
func (*Timers) queueMicrotask(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	if _, ok := sobek.AssertFunction(call.Argument(0)); !ok {
		panic(rt.NewTypeError("queueMicrotask: argument must be a function"))
	}
	p, resolve, _ := rt.NewPromise()
	promise := rt.ToValue(p)
	then, _ := sobek.AssertFunction(promise.ToObject(rt).Get("then"))
	if _, err := then(promise, call.Argument(0)); err != nil {
		js.Throw(rt, err)
	}
	_ = resolve(sobek.Undefined())
	return sobek.Undefined()
}

type timer struct {
	id      int64
	timer   *time.Timer
	ticker  *time.Ticker
	done    chan struct{}
	cleanup func()
}

func (t *timer) stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// stop must be called on the engine thread.
func (t *timer) stop() {
	if t.stopped() {
		return
	}
	close(t.done)
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.ticker != nil {
		t.ticker.Stop()
	}
	t.cleanup()
}

type timers struct {
	id    int64
	timer map[int64]*timer
}

func (t *timers) new(delay time.Duration, repeat bool) *timer {
	t.id++
	id := t.id
	nt := &timer{
		id:      id,
		done:    make(chan struct{}),
		cleanup: func() { delete(t.timer, id) },
	}
	if repeat {
		nt.ticker = time.NewTicker(delay)
	} else {
		nt.timer = time.NewTimer(delay)
	}
	t.timer[id] = nt
	return nt
}

func (t *timers) stop(id int64) {
	if v, ok := t.timer[id]; ok {
		v.stop()
	}
}

func (t *timers) stopAll() {
	for _, v := range t.timer {
		v.stop()
	}
}

var symTimers = sobek.NewSymbol(`Symbol.__timers__`)

func rtTimers(rt *sobek.Runtime) *timers {
	t, ok := rt.GlobalObject().GetSymbol(symTimers).Export().(*timers)
	if ok {
		return t
	}
	panic(rt.NewTypeError(`symbol value of "timers" must be Timers`))
}
