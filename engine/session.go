// Package engine drives one script engine session through
// Init, Loading, Evaluating, Draining and a terminal Completed or Failed state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/bundle"
	"github.com/shiroyk/mdeno/js"
	"github.com/shiroyk/mdeno/modules"
)

var (
	// ErrNeverSettled a promise the session waits for is still pending after the reactor went idle.
	ErrNeverSettled = errors.New("Promise resolution is still pending but the event loop has already resolved")

	noop = sobek.MustCompile("", "", false)
)

// Session owns one script engine runtime. It is not safe for concurrent use:
// every method must be called from the goroutine that created it.
type Session struct {
	cfg      SessionConfig
	registry *modules.Registry
	pair     modules.Pair
	rt       *sobek.Runtime
	host     *js.Host
	logger   *slog.Logger

	state   State
	entry   string
	module  sobek.CyclicModuleRecord
	records map[string]sobek.CyclicModuleRecord
	names   map[sobek.ModuleRecord]string
	failed  map[string]error

	// rejected holds promises rejected without a handler, in rejection order.
	rejected []*sobek.Promise
	// awaited promises are observed explicitly and never reported as unhandled.
	awaited map[*sobek.Promise]struct{}

	tests  *testContext
	cycles int
}

// New creates a session bound to the resolver/loader pair and runs every
// built-in global initializer of the registry once, in registration order.
func New(ctx context.Context, registry *modules.Registry, pair modules.Pair, cfg SessionConfig) (*Session, error) {
	cfg = cfg.withDefaults()
	rt := sobek.New()
	rt.SetFieldNameMapper(sobek.TagFieldNameMapper("js", true))

	s := &Session{
		cfg:      cfg,
		registry: registry,
		pair:     pair,
		rt:       rt,
		logger:   cfg.Logger,
		records:  make(map[string]sobek.CyclicModuleRecord),
		names:    make(map[sobek.ModuleRecord]string),
		failed:   make(map[string]error),
		awaited:  make(map[*sobek.Promise]struct{}),
		tests:    &testContext{rt: rt},
	}
	s.host = &js.Host{
		Context:    js.WithLogger(ctx, cfg.Logger),
		Loop:       js.NewEventLoop(),
		Args:       cfg.Args,
		Standalone: cfg.Standalone,
		Test:       cfg.Test,
		Stdout:     cfg.Stdout,
		Stderr:     cfg.Stderr,
	}
	js.Attach(rt, s.host)

	rt.SetPromiseRejectionTracker(s.trackRejection)
	rt.SetImportModuleDynamically(s.importModuleDynamically)
	rt.SetGetImportMetaProperties(s.importMeta)

	if err := s.init(); err != nil {
		_ = s.fail(err)
		return nil, err
	}
	return s, nil
}

func (s *Session) init() error {
	err := s.registry.Globals(func(name string, mod modules.Global) error {
		value, err := mod.Instantiate(s.rt)
		if err != nil {
			return fmt.Errorf("init global %s: %w", name, err)
		}
		if value != nil {
			return s.rt.Set(name, value)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return js.Object(s.rt, "Deno").Set("test", s.tests.register)
}

// Runtime returns the session runtime.
func (s *Session) Runtime() *sobek.Runtime { return s.rt }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Entry returns the canonical specifier of the entry module once loaded.
func (s *Session) Entry() string { return s.entry }

// Cycles returns the number of reactor poll and drain cycles of the last Draining phase.
func (s *Session) Cycles() int { return s.cycles }

func (s *Session) setState(state State) {
	s.state = state
	s.logger.Debug("session state", "state", state.String(), "entry", s.entry)
}

// fail moves the session to Failed and releases its resources.
func (s *Session) fail(err error) error {
	s.setState(StateFailed)
	s.release()
	return err
}

func (s *Session) release() { s.host.Loop.Stop() }

// Close releases the session resources. It is safe to call more than once.
func (s *Session) Close() { s.release() }

// Run loads, evaluates and drains the entry module. The returned error is the
// first uncaught exception or the load failure; the session is released on return.
func (s *Session) Run(entry string) error {
	if err := s.Load(entry); err != nil {
		return err
	}
	if err := s.Evaluate(); err != nil {
		return err
	}
	return s.Drain()
}

// Load resolves, loads and links the entry module and its static imports.
func (s *Session) Load(entry string) error {
	if s.state != StateInit {
		return fmt.Errorf("session: cannot load in state %s", s.state)
	}
	s.setState(StateLoading)
	specifier, err := s.pair.Resolve(s.cfg.Base, entry)
	if err != nil {
		return s.fail(err)
	}
	s.entry = specifier
	module, err := s.load(specifier)
	if err != nil {
		return s.fail(err)
	}
	if err = module.Link(); err != nil {
		return s.fail(err)
	}
	s.module = module
	return nil
}

// Evaluate evaluates the entry module. A module graph with top-level await is
// not evaluated until its completion settles, so the reactor is driven meanwhile.
func (s *Session) Evaluate() error {
	if s.state != StateLoading || s.module == nil {
		return fmt.Errorf("session: cannot evaluate in state %s", s.state)
	}
	s.setState(StateEvaluating)
	promise, err := s.evaluate()
	if err == nil {
		err = s.await(promise, abort)
	}
	if err != nil {
		return s.fail(err)
	}
	return nil
}

// Drain alternates reactor polls with job draining until both are quiescent.
func (s *Session) Drain() error {
	if s.state != StateEvaluating {
		return fmt.Errorf("session: cannot drain in state %s", s.state)
	}
	s.setState(StateDraining)
	s.cycles = 0
	if err := s.drain(abort); err != nil {
		return s.fail(err)
	}
	s.setState(StateCompleted)
	s.release()
	return nil
}

func abort(err error) error { return err }

func (s *Session) evaluate() (promise *sobek.Promise, err error) {
	err = s.guard(func() error {
		promise = s.rt.CyclicModuleRecordEvaluate(s.module, s.resolveImportedModule)
		return nil
	})
	if err != nil {
		return nil, s.check(err)
	}
	s.watch(promise)
	if exit := s.host.Exited(); exit != nil {
		return nil, exit
	}
	return promise, nil
}

// drain repeats cycles until one yields no reactor completion and the reactor is idle.
// onError decides whether an uncaught exception stops the drain.
func (s *Session) drain(onError func(error) error) error {
	for {
		ran, err := s.cycle(onError)
		if err != nil {
			return err
		}
		if !ran && s.host.Loop.Idle() {
			return nil
		}
	}
}

// await drives the reactor until promise settles, then reports its rejection.
func (s *Session) await(promise *sobek.Promise, onError func(error) error) error {
	s.watch(promise)
	for promise.State() == sobek.PromiseStatePending && !s.host.Loop.Idle() {
		if _, err := s.cycle(onError); err != nil {
			return err
		}
	}
	if exit := s.host.Exited(); exit != nil {
		return exit
	}
	switch promise.State() {
	case sobek.PromiseStateRejected:
		return exception(promise.Result())
	case sobek.PromiseStatePending:
		return ErrNeverSettled
	default:
		return nil
	}
}

// cycle polls the reactor once and runs every delivered completion, checking for
// an uncaught exception after each one. It reports whether any completion ran.
func (s *Session) cycle(onError func(error) error) (bool, error) {
	s.cycles++
	jobs := s.host.Loop.Poll()
	if len(jobs) == 0 {
		return false, s.runJob(func() error { return nil }, onError)
	}
	for _, job := range jobs {
		if err := s.runJob(job, onError); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (s *Session) runJob(job js.Job, onError func(error) error) error {
	if err := s.check(s.guard(job)); err != nil {
		var exit *js.ExitError
		if errors.As(err, &exit) {
			return exit
		}
		return onError(err)
	}
	return nil
}

// guard runs fn on the engine thread, then drains the engine job queue.
func (s *Session) guard(fn func() error) (err error) {
	defer func() {
		if x := recover(); x != nil {
			if exit := s.host.Exited(); exit != nil {
				err = exit
				return
			}
			switch x := x.(type) {
			case *sobek.Exception:
				err = x
			case *sobek.Object:
				err = exception(x)
			default:
				panic(x)
			}
		}
	}()
	if err = fn(); err != nil {
		return err
	}
	_, err = s.rt.RunProgram(noop)
	return err
}

// check converts err, then reports an exit request or the oldest unhandled rejection.
// Every rejection left by the job is taken, so none outlives the job that caused it.
func (s *Session) check(err error) error {
	rejected := s.rejected
	s.rejected = nil
	if exit := s.host.Exited(); exit != nil {
		return exit
	}
	if err != nil {
		err = toException(err)
	} else if len(rejected) > 0 {
		err = exception(rejected[0].Result())
		rejected = rejected[1:]
	}
	for _, promise := range rejected {
		s.logger.Debug("unhandled rejection dropped", "entry", s.entry, "error", exception(promise.Result()))
	}
	return err
}

func (s *Session) trackRejection(promise *sobek.Promise, op sobek.PromiseRejectionOperation) {
	switch op {
	case sobek.PromiseRejectionReject:
		if _, ok := s.awaited[promise]; !ok {
			s.rejected = append(s.rejected, promise)
		}
	case sobek.PromiseRejectionHandle:
		s.forget(promise)
	}
}

// watch marks promise as observed by the session itself.
func (s *Session) watch(promise *sobek.Promise) {
	s.awaited[promise] = struct{}{}
	s.forget(promise)
}

func (s *Session) forget(promise *sobek.Promise) {
	s.rejected = slices.DeleteFunc(s.rejected, func(p *sobek.Promise) bool { return p == promise })
}

// resolveImportedModule is the engine resolution hook.
func (s *Session) resolveImportedModule(referencing any, requested string) (sobek.ModuleRecord, error) {
	base := s.cfg.Base
	if module, ok := referencing.(sobek.ModuleRecord); ok {
		if name, ok := s.names[module]; ok {
			base = name
		}
	}
	specifier, err := s.pair.Resolve(base, requested)
	if err != nil {
		return nil, err
	}
	return s.load(specifier)
}

func (s *Session) importModuleDynamically(referencing any, specifier sobek.Value, promiseCapability any) {
	module, err := s.resolveImportedModule(referencing, specifier.String())
	s.rt.FinishLoadingImportModule(referencing, specifier, promiseCapability, module, err)
}

func (s *Session) importMeta(module sobek.ModuleRecord) []sobek.MetaProperty {
	name := s.names[module]
	return []sobek.MetaProperty{
		{Key: "url", Value: s.rt.ToValue(name)},
		{Key: "main", Value: s.rt.ToValue(name == s.entry)},
	}
}

// load returns the module record of a canonical specifier, loading and parsing it once.
func (s *Session) load(specifier string) (sobek.CyclicModuleRecord, error) {
	if module, ok := s.records[specifier]; ok {
		return module, nil
	}
	if err, ok := s.failed[specifier]; ok {
		return nil, err
	}
	module, err := s.parse(specifier)
	if err != nil {
		s.failed[specifier] = err
		return nil, err
	}
	s.records[specifier] = module
	s.names[module] = specifier
	return module, nil
}

func (s *Session) parse(specifier string) (sobek.CyclicModuleRecord, error) {
	src, err := s.pair.Load(specifier)
	if err != nil {
		return nil, err
	}
	text := src.Text
	if src.Kind == modules.KindBytecode {
		if _, text, err = bundle.DecodeModule(src.Bytecode); err != nil {
			return nil, &modules.LoadError{Kind: modules.DeserializeFailure, Specifier: specifier, Err: err}
		}
	}
	module, err := sobek.ParseModule(specifier, text, s.resolveImportedModule)
	if err != nil {
		return nil, &bundle.CompileError{Specifier: specifier, Message: err.Error()}
	}
	return module, nil
}
