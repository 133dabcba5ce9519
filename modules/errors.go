package modules

import (
	"errors"
	"fmt"
)

// ResolutionKind classifies a ResolutionError.
type ResolutionKind int

const (
	// ResolveNotFound the requested name matches no module of the resolution universe.
	ResolveNotFound ResolutionKind = iota
	// RequiresUpstreamResolution the requested name uses a remote package scheme that
	// must be resolved by the bundler before reaching the host.
	RequiresUpstreamResolution
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolveNotFound:
		return "NotFound"
	case RequiresUpstreamResolution:
		return "RequiresUpstreamResolution"
	default:
		return fmt.Sprintf("ResolutionKind(%d)", int(k))
	}
}

// ResolutionError is returned by Resolver.Resolve.
type ResolutionError struct {
	Kind      ResolutionKind
	Base      string
	Specifier string
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case RequiresUpstreamResolution:
		return fmt.Sprintf("module %q must be resolved at compile time", e.Specifier)
	default:
		if e.Base == "" {
			return fmt.Sprintf("module not found %q", e.Specifier)
		}
		return fmt.Sprintf("module not found %q from %q", e.Specifier, e.Base)
	}
}

// LoadKind classifies a LoadError.
type LoadKind int

const (
	// LoadNotFound the specifier has no module body in the backing store.
	LoadNotFound LoadKind = iota
	// IoFailure reading the backing store failed.
	IoFailure
	// DisallowedKind the specifier names a file kind the host never parses.
	DisallowedKind
	// DeserializeFailure the stored bytecode is malformed.
	DeserializeFailure
)

func (k LoadKind) String() string {
	switch k {
	case LoadNotFound:
		return "NotFound"
	case IoFailure:
		return "IoFailure"
	case DisallowedKind:
		return "DisallowedKind"
	case DeserializeFailure:
		return "DeserializeFailure"
	default:
		return fmt.Sprintf("LoadKind(%d)", int(k))
	}
}

// LoadError is returned by Loader.Load.
type LoadError struct {
	Kind      LoadKind
	Specifier string
	Err       error
}

func (e *LoadError) Error() string {
	switch e.Kind {
	case DisallowedKind:
		return fmt.Sprintf("cannot load %q: TypeScript files must be compiled first", e.Specifier)
	case LoadNotFound:
		return fmt.Sprintf("module not found %q", e.Specifier)
	default:
		if e.Err != nil {
			return fmt.Sprintf("load module %q: %s: %s", e.Specifier, e.Kind, e.Err)
		}
		return fmt.Sprintf("load module %q: %s", e.Specifier, e.Kind)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a ResolutionError or LoadError of the NotFound kind.
func IsNotFound(err error) bool {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Kind == ResolveNotFound
	}
	var le *LoadError
	if errors.As(err, &le) {
		return le.Kind == LoadNotFound
	}
	return false
}
