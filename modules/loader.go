package modules

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/shiroyk/mdeno/bundle"
)

// SourceKind tells how a ModuleSource body is consumed by the engine.
type SourceKind int

const (
	// KindSource the body is source text parsed by the engine.
	KindSource SourceKind = iota
	// KindBytecode the body is a precompiled module image.
	KindBytecode
)

// ModuleSource is the body of one module.
type ModuleSource struct {
	Specifier string
	Kind      SourceKind
	Text      string
	Bytecode  []byte
}

// Loader returns the module body for a canonical specifier.
// Missing entries are reported as *LoadError, never as a panic.
type Loader interface {
	Load(specifier string) (ModuleSource, error)
}

// typeScriptExts are extensions the host never parses.
var typeScriptExts = []string{".ts", ".tsx", ".mts", ".cts"}

// IsTypeScript reports whether specifier names a TypeScript file.
func IsTypeScript(specifier string) bool {
	ext := path.Ext(specifier)
	for _, e := range typeScriptExts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func builtin(registry *Registry, specifier string) (ModuleSource, bool) {
	text, ok := registry.Source(specifier)
	if !ok {
		return ModuleSource{}, false
	}
	return ModuleSource{Specifier: specifier, Kind: KindSource, Text: text}, true
}

// FileLoader loads module source text from the filesystem.
type FileLoader struct {
	registry *Registry
	readFile func(string) ([]byte, error)
}

// NewFileLoader returns a FileLoader sharing the registry.
func NewFileLoader(registry *Registry) *FileLoader {
	return &FileLoader{registry: registry, readFile: os.ReadFile}
}

func (l *FileLoader) Load(specifier string) (ModuleSource, error) {
	if src, ok := builtin(l.registry, specifier); ok {
		return src, nil
	}
	if IsTypeScript(specifier) {
		return ModuleSource{}, &LoadError{Kind: DisallowedKind, Specifier: specifier}
	}
	p, ok := FilePath(specifier)
	if !ok {
		return ModuleSource{}, &LoadError{Kind: LoadNotFound, Specifier: specifier}
	}
	data, err := l.readFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ModuleSource{}, &LoadError{Kind: LoadNotFound, Specifier: specifier, Err: err}
		}
		return ModuleSource{}, &LoadError{Kind: IoFailure, Specifier: specifier, Err: err}
	}
	return ModuleSource{Specifier: specifier, Kind: KindSource, Text: string(data)}, nil
}

// BundleLoader loads precompiled module images from a bytecode bundle.
type BundleLoader struct {
	registry *Registry
	modules  map[string][]byte
}

// NewBundleLoader returns a BundleLoader over the bundle modules map.
// The map is never modified.
func NewBundleLoader(registry *Registry, modules map[string][]byte) *BundleLoader {
	return &BundleLoader{registry: registry, modules: modules}
}

func (l *BundleLoader) Load(specifier string) (ModuleSource, error) {
	if src, ok := builtin(l.registry, specifier); ok {
		return src, nil
	}
	blob, ok := l.modules[specifier]
	if !ok {
		return ModuleSource{}, &LoadError{Kind: LoadNotFound, Specifier: specifier}
	}
	if !bundle.IsModule(blob) {
		return ModuleSource{}, &LoadError{Kind: DeserializeFailure, Specifier: specifier, Err: bundle.ErrNotModule}
	}
	return ModuleSource{Specifier: specifier, Kind: KindBytecode, Bytecode: blob}, nil
}

// SourceLoader loads module source text from an in-memory map.
type SourceLoader struct {
	registry *Registry
	sources  map[string]string
}

// NewSourceLoader returns a SourceLoader over the sources map.
func NewSourceLoader(registry *Registry, sources map[string]string) *SourceLoader {
	return &SourceLoader{registry: registry, sources: sources}
}

func (l *SourceLoader) Load(specifier string) (ModuleSource, error) {
	if src, ok := builtin(l.registry, specifier); ok {
		return src, nil
	}
	text, ok := l.sources[specifier]
	if !ok {
		return ModuleSource{}, &LoadError{Kind: LoadNotFound, Specifier: specifier}
	}
	return ModuleSource{Specifier: specifier, Kind: KindSource, Text: text}, nil
}

// Pair couples a Resolver with the Loader sharing its backing store.
type Pair struct {
	Resolver
	Loader
}

// FilePair returns the filesystem backed resolver and loader.
func FilePair(registry *Registry) Pair {
	return Pair{NewFileResolver(registry), NewFileLoader(registry)}
}

// BundlePair returns the bundle backed resolver and loader.
func BundlePair(registry *Registry, modules map[string][]byte) Pair {
	return Pair{NewBundleResolver(registry, modules), NewBundleLoader(registry, modules)}
}

// SourcePair returns the in-memory source backed resolver and loader.
func SourcePair(registry *Registry, sources map[string]string) Pair {
	return Pair{NewSourceResolver(registry, sources), NewSourceLoader(registry, sources)}
}
