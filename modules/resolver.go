package modules

import (
	"os"
	"path/filepath"
)

// Resolver maps a (base, requested) pair to a canonical specifier.
// Resolution is deterministic: identical inputs always yield identical output.
type Resolver interface {
	Resolve(base, requested string) (string, error)
}

// FileResolver resolves specifiers against the local filesystem.
// Canonical specifiers are file:// URLs of symlink-free absolute paths.
type FileResolver struct {
	registry *Registry
}

// NewFileResolver returns a FileResolver sharing the registry.
func NewFileResolver(registry *Registry) *FileResolver {
	return &FileResolver{registry: registry}
}

func (r *FileResolver) Resolve(base, requested string) (string, error) {
	if r.registry.Has(requested) {
		return requested, nil
	}
	if IsRemote(requested) {
		return "", &ResolutionError{Kind: RequiresUpstreamResolution, Base: base, Specifier: requested}
	}
	if IsRemote(base) && IsRelative(requested) {
		if candidates := rebaseRemote(base, requested); len(candidates) > 0 {
			return candidates[0], nil
		}
		return "", &ResolutionError{Kind: ResolveNotFound, Base: base, Specifier: requested}
	}

	switch {
	case IsRelative(requested):
		joined := join(base, requested, fileLike)
		if IsFileURL(joined) {
			return canonicalFile(joined), nil
		}
		abs, err := filepath.Abs(filepath.FromSlash(joined))
		if err != nil {
			return "", &ResolutionError{Kind: ResolveNotFound, Base: base, Specifier: requested}
		}
		return canonicalFile(FileURL(abs)), nil
	case IsFileURL(requested):
		return canonicalFile(requested), nil
	default:
		if p, ok := FilePath(requested); ok {
			return canonicalFile(FileURL(filepath.Clean(p))), nil
		}
	}
	return "", &ResolutionError{Kind: ResolveNotFound, Base: base, Specifier: requested}
}

// fileLike reports whether a filesystem base names a file rather than a directory.
// A base that does not exist is treated as a file when it has an extension.
func fileLike(base string) bool {
	if p, ok := FilePath(base); ok {
		if info, err := os.Stat(p); err == nil {
			return !info.IsDir()
		}
	} else if info, err := os.Stat(filepath.FromSlash(base)); err == nil {
		return !info.IsDir()
	}
	return hasExt(base)
}

func canonicalFile(specifier string) string {
	p, _ := FilePath(specifier)
	if real, err := filepath.EvalSymlinks(p); err == nil {
		return FileURL(real)
	}
	return FileURL(filepath.Clean(p))
}

// mapResolver is shared by the resolver variants backed by an in-memory key set.
type mapResolver struct {
	registry *Registry
	has      func(string) bool
	// canonical enables the filesystem canonicalization fallback.
	canonical bool
}

func (r *mapResolver) resolve(base, requested string) (string, error) {
	if r.registry.Has(requested) {
		return requested, nil
	}
	if r.has(requested) {
		return requested, nil
	}
	if IsRemote(requested) {
		return "", &ResolutionError{Kind: RequiresUpstreamResolution, Base: base, Specifier: requested}
	}

	if IsRelative(requested) {
		if IsRemote(base) {
			for _, candidate := range rebaseRemote(base, requested) {
				if r.has(candidate) {
					return candidate, nil
				}
			}
			return "", &ResolutionError{Kind: ResolveNotFound, Base: base, Specifier: requested}
		}
		joined := join(base, requested, r.isFile)
		if r.has(joined) {
			return joined, nil
		}
		if r.canonical {
			if spec, ok := r.canonicalize(joined); ok {
				return spec, nil
			}
		}
		return "", &ResolutionError{Kind: ResolveNotFound, Base: base, Specifier: requested}
	}

	if p, ok := FilePath(requested); ok {
		spec := FileURL(filepath.Clean(p))
		if r.has(spec) {
			return spec, nil
		}
		if r.canonical {
			if spec, ok := r.canonicalize(spec); ok {
				return spec, nil
			}
		}
	}
	return "", &ResolutionError{Kind: ResolveNotFound, Base: base, Specifier: requested}
}

// isFile treats a known key, or a base with an extension, as a file.
func (r *mapResolver) isFile(base string) bool {
	return r.has(base) || hasExt(base)
}

// canonicalize matches the filesystem-canonical form of a joined specifier
// against the key set, covering symlink and relative-path drift between
// compile time and run time.
func (r *mapResolver) canonicalize(joined string) (string, bool) {
	p, ok := FilePath(joined)
	if !ok {
		abs, err := filepath.Abs(filepath.FromSlash(joined))
		if err != nil {
			return "", false
		}
		p = abs
	}
	candidates := []string{FileURL(p)}
	if real, err := filepath.EvalSymlinks(p); err == nil {
		candidates = append(candidates, FileURL(real), filepath.ToSlash(real))
	}
	for _, candidate := range candidates {
		if r.has(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// BundleResolver resolves specifiers against the keys of a bytecode bundle.
type BundleResolver struct {
	mapResolver
}

// NewBundleResolver returns a BundleResolver over the given bundle keys.
func NewBundleResolver(registry *Registry, modules map[string][]byte) *BundleResolver {
	return &BundleResolver{mapResolver{
		registry:  registry,
		has:       func(key string) bool { _, ok := modules[key]; return ok },
		canonical: true,
	}}
}

func (r *BundleResolver) Resolve(base, requested string) (string, error) {
	return r.resolve(base, requested)
}

// SourceResolver resolves specifiers against an in-memory specifier to source map.
type SourceResolver struct {
	mapResolver
}

// NewSourceResolver returns a SourceResolver over the given sources keys.
func NewSourceResolver(registry *Registry, sources map[string]string) *SourceResolver {
	return &SourceResolver{mapResolver{
		registry: registry,
		has:      func(key string) bool { _, ok := sources[key]; return ok },
	}}
}

func (r *SourceResolver) Resolve(base, requested string) (string, error) {
	return r.resolve(base, requested)
}
