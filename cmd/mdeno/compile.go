package main

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shiroyk/mdeno/config"
	"github.com/shiroyk/mdeno/standalone"
	"github.com/spf13/cobra"
)

var (
	compileOutputArg     string
	compileStandaloneArg bool
	compileNoCacheArg    bool
)

var compileCmd = &cobra.Command{
	Use:   "compile <entry>",
	Short: "compile a module and its imports into a bundle or a standalone executable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		data, err := compileGraph(ctx, entry, config.FromContext(ctx).Cache.Enabled && !compileNoCacheArg)
		if err != nil {
			return err
		}

		out := compileOutputArg
		if out == "" {
			out = defaultOutput(entry, compileStandaloneArg, runtime.GOOS)
		}
		if compileStandaloneArg {
			exe, err := os.Executable()
			if err != nil {
				return err
			}
			err = standalone.EmbedFile(out, exe, data)
			if err != nil {
				return err
			}
		} else if err = os.WriteFile(out, data, 0o644); err != nil { //nolint:gosec
			return err
		}
		cmd.Printf("Compiled %s to %s\n", args[0], out)
		return nil
	},
}

// defaultOutput names the output after the entry file.
func defaultOutput(entry string, executable bool, goos string) string {
	name := strings.TrimSuffix(filepath.Base(entry), filepath.Ext(entry))
	switch {
	case !executable:
		name += ".bundle"
	case goos == "windows":
		name += ".exe"
	}
	return name
}

func init() {
	compileCmd.Flags().StringVarP(&compileOutputArg, "output", "o", "", "output file path")
	compileCmd.Flags().BoolVarP(&compileStandaloneArg, "standalone", "s", false, "embed the bundle into a copy of this executable")
	compileCmd.Flags().BoolVar(&compileNoCacheArg, "no-cache", false, "skip the compile cache")
	rootCmd.AddCommand(compileCmd)
}
