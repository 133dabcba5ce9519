package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/shiroyk/mdeno/bundle"
	"github.com/shiroyk/mdeno/config"
	"github.com/shiroyk/mdeno/engine"
	"github.com/shiroyk/mdeno/modules"
	"github.com/shiroyk/mdeno/modules/std"
	"github.com/spf13/cobra"
)

var (
	runBundleArg bool
	runCacheArg  bool
)

var runCmd = &cobra.Command{
	Use:   "run <file> [args...]",
	Short: "run a JavaScript module or a compiled bundle",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		return runFile(ctx, args[0], args[1:])
	},
}

func init() {
	runCmd.Flags().SetInterspersed(false)
	runCmd.Flags().BoolVarP(&runBundleArg, "bundle", "b", false, "treat the file as a compiled bundle")
	runCmd.Flags().BoolVar(&runCacheArg, "cache", false, "compile through the compile cache before running")
	rootCmd.AddCommand(runCmd)
}

// scriptExts are run from source unless --bundle is given.
var scriptExts = []string{".js", ".mjs", ".cjs", ".ts", ".mts", ".cts", ".tsx", ".jsx"}

func isScript(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range scriptExts {
		if ext == e {
			return true
		}
	}
	return false
}

func runFile(ctx context.Context, file string, args []string) error {
	path, err := filepath.Abs(file)
	if err != nil {
		return err
	}

	if runBundleArg || !isScript(path) {
		data, err := os.ReadFile(path) //nolint:gosec
		if err != nil {
			return err
		}
		if runBundleArg || bundle.IsBundle(data) || bundle.IsModule(data) {
			b, err := bundle.Load(data)
			if err != nil {
				return err
			}
			return runBundle(ctx, b, args, false)
		}
	}

	if runCacheArg && !modules.IsTypeScript(path) {
		data, err := compileGraph(ctx, path, config.FromContext(ctx).Cache.Enabled)
		if err != nil {
			return err
		}
		b, err := bundle.Load(data)
		if err != nil {
			return err
		}
		return runBundle(ctx, b, args, false)
	}

	s, err := newSession(ctx, modules.FilePair(std.Registry()), engine.SessionConfig{Args: args})
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Run(path)
}
