package main

import (
	"os"
	"path/filepath"

	"github.com/shiroyk/mdeno/engine"
	"github.com/shiroyk/mdeno/modules"
	"github.com/shiroyk/mdeno/modules/std"
	"github.com/spf13/cobra"
)

// evalModule is the module name evaluated code runs as.
const evalModule = "./$mdeno$eval.js"

var evalCmd = &cobra.Command{
	Use:   "eval <code> [args...]",
	Short: "evaluate JavaScript code as a module",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		specifier := modules.FileURL(filepath.Join(cwd, evalModule))
		sources := map[string]string{specifier: args[0]}

		s, err := newSession(ctx, modules.SourcePair(std.Registry(), sources), engine.SessionConfig{
			Args: args[1:],
			Base: modules.FileURL(cwd) + "/",
		})
		if err != nil {
			return err
		}
		defer s.Close()
		return s.Run(evalModule)
	},
}

func init() {
	evalCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(evalCmd)
}
