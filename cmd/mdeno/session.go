package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shiroyk/mdeno/bundle"
	"github.com/shiroyk/mdeno/cache"
	"github.com/shiroyk/mdeno/config"
	"github.com/shiroyk/mdeno/engine"
	"github.com/shiroyk/mdeno/logger"
	"github.com/shiroyk/mdeno/modules"
	"github.com/shiroyk/mdeno/modules/std"
)

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// consoleLogger receives script console output, without time or level.
func consoleLogger(c config.Config) *slog.Logger {
	return slog.New(logger.NewHandler(logger.Options{
		Level:   level(c),
		NoColor: c.NoColor,
		Plain:   true,
	}))
}

func newSession(ctx context.Context, pair modules.Pair, sc engine.SessionConfig) (*engine.Session, error) {
	if sc.Logger == nil {
		sc.Logger = consoleLogger(config.FromContext(ctx))
	}
	return engine.New(ctx, std.Registry(), pair, sc)
}

func runBundle(ctx context.Context, b *bundle.Bundle, args []string, standalone bool) error {
	s, err := newSession(ctx, modules.BundlePair(std.Registry(), b.Modules), engine.SessionConfig{
		Args:       args,
		Standalone: standalone,
	})
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Run(b.EntryPoint)
}

// compileGraph compiles entry and its static imports into bundle bytes,
// going through the compile cache of the context configuration when useCache is set.
func compileGraph(ctx context.Context, entry string, useCache bool) ([]byte, error) {
	registry := std.Registry()
	sources, root, err := modules.Collect(modules.FilePair(registry), registry, "", entry)
	if err != nil {
		return nil, err
	}
	if !useCache {
		return bundle.Compile(sources, root)
	}

	c := config.FromContext(ctx).Cache
	dir, err := config.ExpandPath(c.Path)
	if err != nil {
		return nil, err
	}
	db, err := cache.Open(dir, cache.Options{TTL: c.TTL, Logger: slog.Default()})
	if err != nil {
		slog.Warn("compile cache is not available", "path", dir, "error", err)
		return bundle.Compile(sources, root)
	}
	defer db.Close()

	data, hit, err := db.Compile(sources, root)
	if err != nil {
		return nil, err
	}
	slog.Debug("compiled bundle", "entry", root, "modules", len(sources), "cached", hit)
	return data, nil
}
