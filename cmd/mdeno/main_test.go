package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shiroyk/mdeno/bundle"
	"github.com/shiroyk/mdeno/cache"
	"github.com/shiroyk/mdeno/config"
	"github.com/shiroyk/mdeno/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, text := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(text), 0o644))
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	write(t, dir, map[string]string{
		"a_test.js":                "",
		"sub/b.test.mjs":           "",
		"sub/test.js":              "",
		"sub/helper.js":            "",
		".hidden/c_test.js":        "",
		"node_modules/d/d_test.js": "",
		"e_test.ts":                "",
	})

	files, err := discover([]string{dir}, []string{"**/{*_test,*.test,test}.{js,mjs}"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_test.js"),
		filepath.Join(dir, "sub", "b.test.mjs"),
		filepath.Join(dir, "sub", "test.js"),
	}, files)

	files, err = discover([]string{filepath.Join(dir, "sub", "helper.js"), dir}, []string{"*_test.js"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a_test.js"), filepath.Join(dir, "sub", "helper.js")}, files)

	_, err = discover([]string{filepath.Join(dir, "missing")}, nil)
	assert.Error(t, err)
}

func TestDefaultOutput(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "main.bundle", defaultOutput("/src/main.js", false, "linux"))
	assert.Equal(t, "main", defaultOutput("/src/main.js", true, "linux"))
	assert.Equal(t, "main.exe", defaultOutput("/src/main.js", true, "windows"))
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	write(t, dir, map[string]string{
		"main.js": `import { greet } from "./lib/greet.js"; Deno.writeTextFileSync(Deno.args[0], greet(Deno.args[1]));`,
		"lib/greet.js": `export const greet = (name) => "hello " + name;`,
		"exit.js":      `Deno.exit(4);`,
		"types.ts":     `const x: number = 1;`,
	})
	ctx := context.Background()

	require.NoError(t, runFile(ctx, filepath.Join(dir, "main.js"), []string{out, "mdeno"}))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello mdeno", string(data))

	err = runFile(ctx, filepath.Join(dir, "exit.js"), nil)
	assert.Equal(t, 4, engine.ExitCode(err))

	err = runFile(ctx, filepath.Join(dir, "types.ts"), nil)
	assert.Error(t, err)
	assert.Equal(t, 1, engine.ExitCode(err))

	// compiled bundles are recognized by their content
	data, err = compileGraph(ctx, filepath.Join(dir, "main.js"), false)
	require.NoError(t, err)
	assert.True(t, bundle.IsBundle(data))
	app := filepath.Join(dir, "app.bundle")
	require.NoError(t, os.WriteFile(app, data, 0o644))
	require.NoError(t, os.Remove(filepath.Join(dir, "lib", "greet.js")))

	require.NoError(t, runFile(ctx, app, []string{out, "bundle"}))
	data, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello bundle", string(data))
}

func TestCompileGraphCache(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	write(t, dir, map[string]string{
		"main.js": `import { x } from "./x.js"; globalThis.result = x;`,
		"x.js":    `export const x = 1;`,
	})
	c := config.Default()
	c.Cache.Path = filepath.Join(dir, "cache")
	c.Cache.TTL = time.Hour
	ctx := config.NewContext(context.Background(), c)

	data, err := compileGraph(ctx, filepath.Join(dir, "main.js"), true)
	require.NoError(t, err)
	assert.True(t, bundle.IsBundle(data))
	assert.FileExists(t, filepath.Join(c.Cache.Path, cache.DefaultName))

	again, err := compileGraph(ctx, filepath.Join(dir, "main.js"), true)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}
