// Package enginetest runs scripts in throwaway sessions backed by in-memory sources.
package enginetest

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/engine"
	"github.com/shiroyk/mdeno/logger"
	"github.com/shiroyk/mdeno/modules"
	"github.com/stretchr/testify/require"
)

// Main is the specifier a single-script VM runs as.
const Main = "file:///main.js"

// VM creates sessions sharing one registry. Console output at Info and above is captured
// in Stdout (log, info, debug) and Stderr (warn, error).
type VM struct {
	t        testing.TB
	registry *modules.Registry
	Stdout   bytes.Buffer
	Stderr   bytes.Buffer
	Args     []string
	Test     bool
}

// New returns a VM over the registry.
func New(t testing.TB, registry *modules.Registry) *VM {
	return &VM{t: t, registry: registry}
}

// Session returns a new session over the sources.
func (vm *VM) Session(sources map[string]string) *engine.Session {
	vm.t.Helper()
	handler := logger.NewHandler(logger.Options{
		Level:  slog.LevelInfo,
		Plain:  true,
		Stdout: &vm.Stdout,
		Stderr: &vm.Stderr,
	})
	s, err := engine.New(context.Background(), vm.registry, modules.SourcePair(vm.registry, sources), engine.SessionConfig{
		Args:   vm.Args,
		Test:   vm.Test,
		Stdout: &vm.Stdout,
		Stderr: &vm.Stderr,
		Logger: slog.New(handler),
	})
	require.NoError(vm.t, err)
	vm.t.Cleanup(s.Close)
	return s
}

// Run runs source as the module Main.
func (vm *VM) Run(source string) (*engine.Session, error) {
	vm.t.Helper()
	s := vm.Session(map[string]string{Main: source})
	return s, s.Run(Main)
}

// Result runs source and returns globalThis.result. The run must succeed.
func (vm *VM) Result(source string) sobek.Value {
	vm.t.Helper()
	s, err := vm.Run(source)
	require.NoError(vm.t, err)
	return s.Runtime().Get("result")
}
