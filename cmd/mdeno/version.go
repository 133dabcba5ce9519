package main

import (
	"runtime"

	"github.com/shiroyk/mdeno/lib"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%v\n mdeno %v/%v %v\n", lib.Banner, lib.Version, lib.CommitSHA, runtime.Version())
		},
	})
}
