package modules

import (
	"errors"

	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/bundle"
)

var errNoResolve = errors.New("modules: resolution is not available while collecting")

func noResolve(any, string) (sobek.ModuleRecord, error) { return nil, errNoResolve }

// Collect walks the static import graph from entry through the pair and returns
// the source of every reachable module keyed by its canonical specifier, along
// with the canonical entry. Built-in modules of the registry are left out.
func Collect(pair Pair, registry *Registry, base, entry string) (map[string]string, string, error) {
	root, err := pair.Resolve(base, entry)
	if err != nil {
		return nil, "", err
	}
	sources := make(map[string]string)
	queue := []string{root}
	for len(queue) > 0 {
		specifier := queue[0]
		queue = queue[1:]
		if _, ok := sources[specifier]; ok || registry.Has(specifier) {
			continue
		}
		src, err := pair.Load(specifier)
		if err != nil {
			return nil, "", err
		}
		text := src.Text
		if src.Kind == KindBytecode {
			if _, text, err = bundle.DecodeModule(src.Bytecode); err != nil {
				return nil, "", &LoadError{Kind: DeserializeFailure, Specifier: specifier, Err: err}
			}
		}
		module, err := sobek.ParseModule(specifier, text, noResolve)
		if err != nil {
			return nil, "", &bundle.CompileError{Specifier: specifier, Message: err.Error()}
		}
		sources[specifier] = text
		for _, requested := range module.RequestedModules() {
			dep, err := pair.Resolve(specifier, requested)
			if err != nil {
				return nil, "", err
			}
			queue = append(queue, dep)
		}
	}
	return sources, root, nil
}
