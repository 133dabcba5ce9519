package modules

import (
	"slices"

	"github.com/grafana/sobek"
)

// Module is the interface that must be implemented by host provided globals.
// It defines how a module is instantiated and made available to the JavaScript runtime.
//
// Example implementation:
//
//	type Process struct{}
//
//	func (Process) Instantiate(rt *sobek.Runtime) (sobek.Value, error) {
//		ret := rt.NewObject()
//		_ = ret.Set("pid", os.Getpid())
//		return ret, nil
//	}
//
//	func (Process) Global() {}
type Module interface {
	Instantiate(*sobek.Runtime) (sobek.Value, error)
}

// Global implements the interface will load into global when the session is initialized.
// A non-nil value returned by Instantiate is bound to the global object under the registered name.
type Global interface {
	Module
	Global() // mark as global module
}

// SourceFunc produces the source text of a built-in module.
type SourceFunc func() string

type global struct {
	name string
	mod  Global
}

// Registry is the immutable set of built-in module names and the ordered
// built-in global initializers. It is safe to share between sessions.
type Registry struct {
	sources map[string]SourceFunc
	globals []global
}

// Has reports whether name is a built-in module.
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.sources[name]
	return ok
}

// Source returns the source text of the built-in module.
func (r *Registry) Source(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	fn, ok := r.sources[name]
	if !ok {
		return "", false
	}
	return fn(), true
}

// Names returns the sorted built-in module names.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Globals calls fn for every global initializer in registration order.
// It stops at the first error.
func (r *Registry) Globals(fn func(name string, mod Global) error) error {
	if r == nil {
		return nil
	}
	for _, g := range r.globals {
		if err := fn(g.name, g.mod); err != nil {
			return err
		}
	}
	return nil
}

// Builder collects the built-in modules and globals of one feature set.
//
// Example:
//
//	registry := modules.NewBuilder().
//		Global("console", new(Console)).
//		Source("mdeno:assert", func() string { return assertSource }).
//		Build()
type Builder struct {
	sources map[string]SourceFunc
	globals []global
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{sources: make(map[string]SourceFunc)}
}

// Global appends a global initializer. Initializers run in the order they were added,
// so later initializers may rely on names installed by earlier ones.
func (b *Builder) Global(name string, mod Global) *Builder {
	b.globals = append(b.globals, global{name: name, mod: mod})
	return b
}

// Source registers a built-in module whose source is produced by fn.
func (b *Builder) Source(name string, fn SourceFunc) *Builder {
	b.sources[name] = fn
	return b
}

// Build returns the immutable Registry. The Builder may be reused afterward
// without affecting the returned Registry.
func (b *Builder) Build() *Registry {
	sources := make(map[string]SourceFunc, len(b.sources))
	for k, v := range b.sources {
		sources[k] = v
	}
	return &Registry{
		sources: sources,
		globals: slices.Clone(b.globals),
	}
}
