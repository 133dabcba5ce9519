package engine

import (
	"io"
	"log/slog"
	"os"
)

// SessionConfig carries the per-invocation settings into a Session.
type SessionConfig struct {
	// Args are the script arguments exposed as Deno.args.
	Args []string
	// Standalone is set when running a bundle embedded in the executable.
	Standalone bool
	// Test enables test mode: uncaught exceptions are recorded against the running test.
	Test bool
	// Base is the specifier the entry is resolved against.
	Base string
	// Filename is the display name used in test reports, defaults to the entry.
	Filename string

	Stdout io.Writer
	Stderr io.Writer
	// Logger receives console output.
	Logger *slog.Logger
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Args == nil {
		c.Args = []string{}
	}
	return c
}
