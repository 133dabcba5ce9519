package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/js"
	"github.com/spf13/cast"
)

// testDef is one Deno.test registration.
type testDef struct {
	name   string
	fn     sobek.Callable
	ignore bool
	only   bool
}

// testContext collects the tests registered while the module evaluates.
type testContext struct {
	rt    *sobek.Runtime
	tests []testDef
}

// register implements Deno.test. It accepts (name, fn), ({name, fn, ignore, only}) and (namedFn).
// Registrations are ignored outside test mode.
func (c *testContext) register(call sobek.FunctionCall) sobek.Value {
	if !js.HostOf(c.rt).Test {
		return sobek.Undefined()
	}
	var def testDef
	arg := call.Argument(0)
	switch {
	case isString(arg):
		def.name = arg.String()
		fn, ok := sobek.AssertFunction(call.Argument(1))
		if !ok {
			panic(c.rt.NewTypeError("Deno.test: second argument must be a function"))
		}
		def.fn = fn
	case isFunction(arg):
		def.fn, _ = sobek.AssertFunction(arg)
		def.name = arg.ToObject(c.rt).Get("name").String()
	case isObject(arg):
		obj := arg.ToObject(c.rt)
		fn, ok := sobek.AssertFunction(obj.Get("fn"))
		if !ok {
			panic(c.rt.NewTypeError("Deno.test: options.fn must be a function"))
		}
		def.fn = fn
		def.name = cast.ToString(exportOf(obj.Get("name")))
		def.ignore = cast.ToBool(exportOf(obj.Get("ignore")))
		def.only = cast.ToBool(exportOf(obj.Get("only")))
	default:
		panic(c.rt.NewTypeError("Deno.test: first argument must be a string, function or options object"))
	}
	if def.name == "" {
		panic(c.rt.NewTypeError("Deno.test: the test name must not be empty"))
	}
	c.tests = append(c.tests, def)
	return sobek.Undefined()
}

func exportOf(v sobek.Value) any {
	if v == nil {
		return nil
	}
	return v.Export()
}

func isString(v sobek.Value) bool {
	_, ok := v.Export().(string)
	return ok
}

func isFunction(v sobek.Value) bool {
	_, ok := sobek.AssertFunction(v)
	return ok
}

func isObject(v sobek.Value) bool {
	_, ok := v.(*sobek.Object)
	return ok
}

// selected reports whether def runs: when any test is marked "only" just those run,
// otherwise every test not ignored.
func (c *testContext) selected(def testDef) bool {
	for _, t := range c.tests {
		if t.only {
			return def.only
		}
	}
	return !def.ignore
}

// count returns the number of tests that run.
func (c *testContext) count() (n int) {
	for _, def := range c.tests {
		if c.selected(def) {
			n++
		}
	}
	return
}

// TestStatus is the outcome of one test.
type TestStatus int

const (
	TestPassed TestStatus = iota
	TestFailed
	TestIgnored
)

func (s TestStatus) String() string {
	switch s {
	case TestPassed:
		return "ok"
	case TestIgnored:
		return "ignored"
	default:
		return "FAILED"
	}
}

// TestResult is the outcome of one test function.
type TestResult struct {
	Name     string
	Status   TestStatus
	Duration time.Duration
	Err      error
}

// PendingTestPromise is a test whose function returned a promise still pending after the first pass.
type PendingTestPromise struct {
	Name    string
	Promise *sobek.Promise
	Start   time.Time
}

// uncaughtTest names the result of an uncaught exception outside any test.
const uncaughtTest = "(uncaught error)"

// TestReport is the outcome of one test file.
type TestReport struct {
	File     string
	Results  []TestResult
	Duration time.Duration
}

// Passed returns the number of passed tests.
func (r *TestReport) Passed() int { return r.count(TestPassed) }

// Failed returns the number of failed tests.
func (r *TestReport) Failed() int { return r.count(TestFailed) }

// Ignored returns the number of ignored tests.
func (r *TestReport) Ignored() int { return r.count(TestIgnored) }

func (r *TestReport) count(status TestStatus) (n int) {
	for _, result := range r.Results {
		if result.Status == status {
			n++
		}
	}
	return
}

// OK reports whether every test passed.
func (r *TestReport) OK() bool { return r.Failed() == 0 }

// Test runs the entry module in test mode. The module is evaluated first, then
// synchronous tests run in registration order and pending test promises are
// awaited one by one while the reactor is driven. Uncaught exceptions are
// recorded against the test running at the time. The returned error is set
// only when the file cannot be run at all or the script called Deno.exit.
func (s *Session) Test(entry string) (*TestReport, error) {
	start := time.Now()
	if err := s.Load(entry); err != nil {
		return nil, err
	}
	report := &TestReport{File: s.cfg.Filename}
	if report.File == "" {
		report.File = entry
	}
	reporter := NewReporter(s.cfg.Stdout)

	// errors uncaught outside a running test
	var uncaught []error
	record := func(err error) error {
		uncaught = append(uncaught, err)
		return nil
	}

	s.setState(StateEvaluating)
	promise, err := s.evaluate()
	if err == nil {
		err = s.await(promise, record)
	}
	if err != nil {
		return nil, s.fail(err)
	}
	s.setState(StateDraining)
	s.cycles = 0
	if err = s.drain(record); err != nil {
		return nil, s.fail(err)
	}

	reporter.Header(s.tests.count(), report.File)

	var (
		pending []PendingTestPromise
		results []TestResult
	)
	for _, def := range s.tests.tests {
		if !s.tests.selected(def) {
			if def.ignore {
				result := TestResult{Name: def.name, Status: TestIgnored}
				reporter.Result(result)
				results = append(results, result)
			}
			continue
		}
		started := time.Now()
		var value sobek.Value
		err := s.check(s.guard(func() (err error) {
			value, err = def.fn(sobek.Undefined())
			return err
		}))
		var exit *js.ExitError
		if errors.As(err, &exit) {
			return nil, s.fail(exit)
		}
		if err == nil {
			if p, ok := value.Export().(*sobek.Promise); ok {
				s.watch(p)
				switch p.State() {
				case sobek.PromiseStatePending:
					pending = append(pending, PendingTestPromise{Name: def.name, Promise: p, Start: started})
					continue
				case sobek.PromiseStateRejected:
					err = exception(p.Result())
				}
			}
		}
		result := newResult(def.name, started, err)
		reporter.Result(result)
		results = append(results, result)
	}
	reporter.Failures(results, report.File)
	report.Results = append(report.Results, results...)

	results, err = s.awaitTests(pending, reporter)
	if err != nil {
		return nil, s.fail(err)
	}
	if len(results) > 0 {
		reporter.Failures(results, report.File)
	}
	report.Results = append(report.Results, results...)

	if err = s.drain(record); err != nil {
		return nil, s.fail(err)
	}
	if len(uncaught) > 0 {
		results = make([]TestResult, 0, len(uncaught))
		for _, err := range uncaught {
			results = append(results, TestResult{Name: uncaughtTest, Status: TestFailed, Err: err})
		}
		reporter.Failures(results, report.File)
		report.Results = append(report.Results, results...)
	}

	report.Duration = time.Since(start)
	s.setState(StateCompleted)
	s.release()
	return report, nil
}

// awaitTests settles the pending test promises in registration order.
// Uncaught exceptions raised while a promise is awaited fail that test.
func (s *Session) awaitTests(pending []PendingTestPromise, reporter *Reporter) ([]TestResult, error) {
	results := make([]TestResult, 0, len(pending))
	for _, p := range pending {
		var errs []error
		err := s.await(p.Promise, func(err error) error {
			errs = append(errs, err)
			return nil
		})
		var exit *js.ExitError
		if errors.As(err, &exit) {
			return nil, exit
		}
		if err == nil && len(errs) > 0 {
			err = errs[0]
		}
		result := newResult(p.Name, p.Start, err)
		reporter.Result(result)
		results = append(results, result)
	}
	return results, nil
}

func newResult(name string, start time.Time, err error) TestResult {
	result := TestResult{Name: name, Duration: time.Since(start)}
	if err != nil {
		result.Status = TestFailed
		result.Err = err
	}
	return result
}

// String returns the one-line form of the result.
func (r TestResult) String() string {
	return fmt.Sprintf("%s ... %s (%dms)", r.Name, r.Status, r.Duration.Milliseconds())
}
