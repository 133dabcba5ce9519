// Command mdeno runs JavaScript modules and compiled bundles.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shiroyk/mdeno/bundle"
	"github.com/shiroyk/mdeno/engine"
	"github.com/shiroyk/mdeno/js"
	"github.com/shiroyk/mdeno/standalone"
)

func main() {
	// a bundle embedded in this executable takes over the command line
	if data, err := standalone.Self(); err == nil {
		os.Exit(exit(runStandalone(data)))
	}
	os.Exit(exit(rootCmd.Execute()))
}

func runStandalone(data []byte) error {
	b, err := bundle.Load(data)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(context.Background())
	defer cancel()
	return runBundle(ctx, b, os.Args[1:], true)
}

// exit prints err and returns the process exit status.
func exit(err error) int {
	if err == nil {
		return 0
	}
	var exit *js.ExitError
	if !errors.As(err, &exit) {
		fmt.Fprintln(os.Stderr, engine.FormatError(err))
	}
	return engine.ExitCode(err)
}
