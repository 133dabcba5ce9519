// Package bundle implements the bytecode bundle: a self-contained
// {entry point, specifier to module image} artifact.
package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/fxamacker/cbor/v2"
)

// bundleMagic prefixes every structured bundle.
var bundleMagic = []byte("MDBN\x01")

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bundle: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Bundle is the deserialized bytecode bundle. EntryPoint is always a key of Modules.
type Bundle struct {
	EntryPoint string            `cbor:"1,keyasint"`
	Modules    map[string][]byte `cbor:"2,keyasint"`
}

// Specifiers returns the sorted module specifiers.
func (b *Bundle) Specifiers() []string {
	return slices.Sorted(maps.Keys(b.Modules))
}

// Marshal serializes the bundle into one contiguous byte slice.
func (b *Bundle) Marshal() ([]byte, error) {
	if _, ok := b.Modules[b.EntryPoint]; !ok {
		return nil, fmt.Errorf("bundle: entry point %q is not a bundled module", b.EntryPoint)
	}
	data, err := encMode.Marshal(b)
	if err != nil {
		return nil, err
	}
	return append(bytes.Clone(bundleMagic), data...), nil
}

// FormatError is returned by Load when the input is neither a structured bundle
// nor a legacy single module image.
type FormatError struct {
	// Bundle is the structured decode failure, nil if the header did not match.
	Bundle error
	// Module is the legacy decode failure.
	Module error
}

func (e *FormatError) Error() string {
	if e.Bundle != nil {
		return fmt.Sprintf("invalid bundle: %s; invalid module image: %s", e.Bundle, e.Module)
	}
	return fmt.Sprintf("invalid bundle: %s", e.Module)
}

func (e *FormatError) Unwrap() []error {
	var errs []error
	if e.Bundle != nil {
		errs = append(errs, e.Bundle)
	}
	if e.Module != nil {
		errs = append(errs, e.Module)
	}
	return errs
}

// IsBundle reports whether data carries the structured bundle header.
func IsBundle(data []byte) bool {
	return bytes.HasPrefix(data, bundleMagic)
}

// Load deserializes data. A structured bundle is tried first; otherwise data is
// treated as a legacy single module image whose own name becomes the entry point.
// data is never modified and no code is executed.
func Load(data []byte) (*Bundle, error) {
	var bundleErr error
	if IsBundle(data) {
		b, err := unmarshal(data[len(bundleMagic):])
		if err == nil {
			return b, nil
		}
		bundleErr = err
	}

	name, _, err := DecodeModule(data)
	if err != nil {
		return nil, &FormatError{Bundle: bundleErr, Module: err}
	}
	return &Bundle{
		EntryPoint: name,
		Modules:    map[string][]byte{name: bytes.Clone(data)},
	}, nil
}

func unmarshal(data []byte) (*Bundle, error) {
	var b Bundle
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	if _, ok := b.Modules[b.EntryPoint]; !ok {
		return nil, errors.New("entry point is not a bundled module")
	}
	return &b, nil
}
