package bundle

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/grafana/sobek"
)

// CompileError names the module that failed to compile and keeps the engine diagnostic.
type CompileError struct {
	Specifier string
	Message   string
	Stack     string
	err       error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %s", e.Specifier, e.Message)
}

func (e *CompileError) Unwrap() error { return e.err }

var errNoResolve = errors.New("module resolution is not available at compile time")

func noResolve(any, string) (sobek.ModuleRecord, error) { return nil, errNoResolve }

// check parses source as an ES module with the engine.
func check(specifier, source string) error {
	if _, err := sobek.ParseModule(specifier, source, noResolve); err != nil {
		ce := &CompileError{Specifier: specifier, Message: err.Error(), err: err}
		var ex *sobek.Exception
		if errors.As(err, &ex) {
			ce.Message = ex.Value().String()
			if _, stack, ok := strings.Cut(ex.String(), "\n"); ok {
				ce.Stack = stack
			}
		}
		return ce
	}
	return nil
}

// Build compiles every source independently and assembles the Bundle.
// Modules are compiled in specifier order; the first failure aborts the batch.
func Build(sources map[string]string, entryPoint string) (*Bundle, error) {
	if _, ok := sources[entryPoint]; !ok {
		return nil, fmt.Errorf("bundle: entry point %q is not in the sources", entryPoint)
	}
	modules := make(map[string][]byte, len(sources))
	for _, specifier := range slices.Sorted(maps.Keys(sources)) {
		source := sources[specifier]
		if err := check(specifier, source); err != nil {
			return nil, err
		}
		blob, err := EncodeModule(specifier, source)
		if err != nil {
			return nil, fmt.Errorf("bundle: encode %s: %w", specifier, err)
		}
		modules[specifier] = blob
	}
	return &Bundle{EntryPoint: entryPoint, Modules: modules}, nil
}

// Compile compiles the sources and serializes the resulting bundle.
//
// Example:
//
//	data, err := bundle.Compile(map[string]string{
//		"a.js": "export const x = 1;",
//		"b.js": "import {x} from './a.js'; globalThis.result = x + 1;",
//	}, "b.js")
func Compile(sources map[string]string, entryPoint string) ([]byte, error) {
	b, err := Build(sources, entryPoint)
	if err != nil {
		return nil, err
	}
	return b.Marshal()
}

// CompileModule compiles a single module into the legacy raw form, a bare module
// image without the bundle wrapper.
func CompileModule(specifier, source string) ([]byte, error) {
	if err := check(specifier, source); err != nil {
		return nil, err
	}
	return EncodeModule(specifier, source)
}
