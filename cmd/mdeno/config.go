package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/shiroyk/mdeno/config"
	"github.com/spf13/cobra"
)

var configGenArg string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "print the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if configGenArg != "" {
			return writeDiskConfig(configGenArg)
		}
		data, err := config.FromContext(cmd.Context()).Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// writeDiskConfig writes the default configuration to path.
func writeDiskConfig(path string) error {
	file, err := config.ExpandPath(path)
	if err != nil {
		return err
	}
	if _, err = os.Stat(file); !errors.Is(err, os.ErrNotExist) {
		return errors.New("configuration file is already exists")
	}
	if err = os.MkdirAll(filepath.Dir(file), os.ModePerm); err != nil {
		return err
	}
	data, err := config.Default().Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(file, data, 0o600)
}

func init() {
	configCmd.Flags().StringVarP(&configGenArg, "gen", "g", "", "generate default configuration file")
	rootCmd.AddCommand(configCmd)
}
