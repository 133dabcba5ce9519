package main

import (
	"log/slog"
	"os"

	"github.com/shiroyk/mdeno/config"
	"github.com/shiroyk/mdeno/lib"
	"github.com/shiroyk/mdeno/logger"
	"github.com/spf13/cobra"
)

var (
	configArg   string
	logLevelArg string
	noColorArg  bool

	// cfg is the effective configuration once cobra initialized
	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:           "mdeno",
	Short:         "mdeno is a minimal JavaScript runtime for ES modules and compiled bundles.",
	Version:       lib.Version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cmd.SetContext(config.NewContext(cmd.Context(), cfg))
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configArg, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().StringVarP(&logLevelArg, "log-level", "L", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&noColorArg, "no-color", false, "disable colored output")
}

func initConfig() {
	var err error
	if cfg, err = config.Read(configArg); err != nil {
		slog.Error("error reading config file", "error", err)
	}
	if logLevelArg != "" {
		cfg.LogLevel = logLevelArg
	}
	if noColorArg {
		cfg.NoColor = true
	}
	if cfg.NoColor {
		_ = os.Setenv("NO_COLOR", "1")
	}
	slog.SetDefault(slog.New(logger.NewHandler(logger.Options{
		Level:   level(cfg),
		NoColor: cfg.NoColor || os.Getenv("NO_COLOR") != "",
	})))
}

func level(c config.Config) slog.Level {
	l, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}
