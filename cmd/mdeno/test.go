package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/shiroyk/mdeno/config"
	"github.com/shiroyk/mdeno/engine"
	"github.com/shiroyk/mdeno/js"
	"github.com/shiroyk/mdeno/modules"
	"github.com/shiroyk/mdeno/modules/std"
	"github.com/spf13/cobra"
)

var testIncludeArg []string

var testCmd = &cobra.Command{
	Use:   "test [paths...]",
	Short: "run the tests registered with Deno.test",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		include := config.FromContext(ctx).Test.Include
		if len(testIncludeArg) > 0 {
			include = testIncludeArg
		}
		files, err := discover(args, include)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return errors.New("no test modules found")
		}

		out := cmd.OutOrStdout()
		reporter := engine.NewReporter(out)
		start := time.Now()
		var passed, failed, ignored int
		for _, file := range files {
			s, err := newSession(ctx, modules.FilePair(std.Registry()), engine.SessionConfig{
				Test:     true,
				Filename: displayName(file),
				Stdout:   out,
			})
			if err != nil {
				return err
			}
			report, err := s.Test(file)
			s.Close()
			if err != nil {
				var exit *js.ExitError
				if errors.As(err, &exit) {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), engine.FormatError(err))
				failed++
				continue
			}
			passed += report.Passed()
			failed += report.Failed()
			ignored += report.Ignored()
		}
		reporter.Summary(passed, failed, ignored, time.Since(start))
		if failed > 0 {
			return &js.ExitError{Code: 1}
		}
		return nil
	},
}

func init() {
	testCmd.Flags().StringSliceVar(&testIncludeArg, "include", nil, "test file patterns, overrides the configuration")
	rootCmd.AddCommand(testCmd)
}

// discover returns the absolute test file paths under roots matching any
// include pattern. Files given directly are always included. Hidden
// directories and node_modules are skipped.
func discover(roots, include []string) ([]string, error) {
	if len(roots) == 0 {
		roots = []string{"."}
	}
	var files []string
	for _, root := range roots {
		root, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = fs.WalkDir(os.DirFS(root), ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != "." && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
					return fs.SkipDir
				}
				return nil
			}
			for _, pattern := range include {
				if ok, _ := doublestar.Match(pattern, path); ok {
					files = append(files, filepath.Join(root, filepath.FromSlash(path)))
					break
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// displayName returns path relative to the working directory when it is below it.
func displayName(path string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return "./" + filepath.ToSlash(rel)
}
