package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shiroyk/mdeno/bundle"
	"github.com/shiroyk/mdeno/engine"
	"github.com/shiroyk/mdeno/engine/enginetest"
	"github.com/shiroyk/mdeno/js"
	"github.com/shiroyk/mdeno/modules"
	"github.com/shiroyk/mdeno/modules/std"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, pair modules.Pair) *engine.Session {
	t.Helper()
	s, err := engine.New(context.Background(), std.Registry(), pair, engine.SessionConfig{})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestBundleRun(t *testing.T) {
	t.Parallel()

	data, err := bundle.Compile(map[string]string{
		"a.js": "export const x = 1;",
		"b.js": "import {x} from './a.js'; globalThis.result = x + 1;",
	}, "b.js")
	require.NoError(t, err)

	b, err := bundle.Load(data)
	require.NoError(t, err)
	s := newSession(t, modules.BundlePair(std.Registry(), b.Modules))
	err = s.Run(b.EntryPoint)
	require.NoError(t, err)
	assert.Equal(t, 0, engine.ExitCode(err))
	assert.Equal(t, engine.StateCompleted, s.State())
	assert.EqualValues(t, 2, s.Runtime().Get("result").Export())
}

func TestLegacyModuleRun(t *testing.T) {
	t.Parallel()

	raw, err := bundle.CompileModule("main.js", "globalThis.result = 'legacy';")
	require.NoError(t, err)
	assert.False(t, bundle.IsBundle(raw))

	b, err := bundle.Load(raw)
	require.NoError(t, err)
	assert.Equal(t, "main.js", b.EntryPoint)

	s := newSession(t, modules.BundlePair(std.Registry(), b.Modules))
	require.NoError(t, s.Run(b.EntryPoint))
	assert.Equal(t, "legacy", s.Runtime().Get("result").String())
}

func TestTypeScriptEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := newSession(t, modules.FilePair(std.Registry()))
	err := s.Run(filepath.Join(dir, "main.ts"))

	var le *modules.LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, modules.DisallowedKind, le.Kind)
	assert.Equal(t, engine.StateFailed, s.State())
	assert.Equal(t, 1, engine.ExitCode(err))
}

func TestFileRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "dep.js"), []byte(`
		export const url = import.meta.url;
		export const main = import.meta.main;
	`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte(`
		import { url, main } from "./lib/dep.js";
		const dynamic = await import("./lib/dep.js");
		globalThis.result = [url.endsWith("/lib/dep.js"), main, import.meta.main, dynamic.url === url];
	`), 0o644))

	s := newSession(t, modules.FilePair(std.Registry()))
	require.NoError(t, s.Run(filepath.Join(dir, "main.js")))
	assert.Equal(t, []any{true, false, true, true}, s.Runtime().Get("result").Export())

	want, err := modules.Canonical(filepath.Join(dir, "main.js"))
	require.NoError(t, err)
	assert.Equal(t, want, s.Entry())
}

func TestUncaught(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, script, message string
	}{
		{"sync throw", `throw new Error("sync")`, "sync"},
		{"timer then throw", `await new Promise((r) => setTimeout(r, 0)); throw new Error("late");`, "late"},
		{"throw in timer", `setTimeout(() => { throw new TypeError("cb") }, 0);`, "TypeError: cb"},
		{"unhandled rejection", `Promise.reject(new Error("rejected"));`, "rejected"},
		{"async unhandled", `setTimeout(() => Promise.reject(new Error("later")), 0);`, "later"},
		{"throw string", `throw "plain";`, "plain"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			vm := enginetest.New(t, std.Registry())
			s, err := vm.Run(c.script)
			require.Error(t, err)

			var re *engine.RuntimeException
			require.ErrorAs(t, err, &re)
			assert.Contains(t, re.Error(), c.message)
			assert.Equal(t, engine.StateFailed, s.State())
			assert.Equal(t, 1, engine.ExitCode(err))
		})
	}
}

func TestHandledRejection(t *testing.T) {
	t.Parallel()
	vm := enginetest.New(t, std.Registry())
	result := vm.Result(`
		const p = Promise.reject(new Error("handled"));
		p.catch(() => {});
		globalThis.result = await Promise.reject(new Error("awaited")).catch((e) => e.message);
	`)
	assert.Equal(t, "awaited", result.String())
}

func TestDrainCycles(t *testing.T) {
	t.Parallel()

	vm := enginetest.New(t, std.Registry())
	s, err := vm.Run(`globalThis.result = 1;`)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Cycles())
	assert.Equal(t, engine.StateCompleted, s.State())

	s, err = vm.Run(`setTimeout(() => { globalThis.result = 1 }, 0);`)
	require.NoError(t, err)
	assert.Greater(t, s.Cycles(), 1)
}

func TestFairness(t *testing.T) {
	t.Parallel()

	vm := enginetest.New(t, std.Registry())
	result := vm.Result(`
		const out = [];
		setTimeout(() => {
			out.push("t1");
			Promise.resolve().then(() => out.push("t1-micro"));
		}, 0);
		setTimeout(() => out.push("t2"), 5);
		Promise.resolve().then(() => out.push("micro"));
		globalThis.result = out;
	`)
	assert.Equal(t, []any{"micro", "t1", "t1-micro", "t2"}, result.Export())
}

func TestTopLevelAwait(t *testing.T) {
	t.Parallel()

	vm := enginetest.New(t, std.Registry())
	s := vm.Session(map[string]string{
		"file:///a.js":    `export const value = await new Promise((r) => setTimeout(() => r(41), 5));`,
		enginetest.Main: `import { value } from "./a.js"; globalThis.result = value + 1;`,
	})
	require.NoError(t, s.Run(enginetest.Main))
	assert.EqualValues(t, 42, s.Runtime().Get("result").Export())
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	t.Run("not found", func(t *testing.T) {
		vm := enginetest.New(t, std.Registry())
		_, err := vm.Run(`import "./missing.js";`)
		assert.True(t, modules.IsNotFound(err), err)
	})

	t.Run("remote", func(t *testing.T) {
		vm := enginetest.New(t, std.Registry())
		_, err := vm.Run(`import "jsr:@std/assert";`)
		var re *modules.ResolutionError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, modules.RequiresUpstreamResolution, re.Kind)
	})

	t.Run("syntax", func(t *testing.T) {
		vm := enginetest.New(t, std.Registry())
		_, err := vm.Run(`let = ;`)
		var ce *bundle.CompileError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, enginetest.Main, ce.Specifier)
	})

	t.Run("dynamic not found", func(t *testing.T) {
		vm := enginetest.New(t, std.Registry())
		result := vm.Result(`globalThis.result = await import("./nope.js").then(() => "loaded", () => "rejected");`)
		assert.Equal(t, "rejected", result.String())
	})
}

func TestExit(t *testing.T) {
	t.Parallel()

	vm := enginetest.New(t, std.Registry())
	s, err := vm.Run(`setTimeout(() => Deno.exit(9), 0); setTimeout(() => { globalThis.result = "late" }, 50);`)
	var exit *js.ExitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, 9, engine.ExitCode(err))
	assert.Equal(t, engine.StateFailed, s.State())
	assert.Nil(t, s.Runtime().Get("result"))
}

func TestStateOrder(t *testing.T) {
	t.Parallel()

	vm := enginetest.New(t, std.Registry())
	s := vm.Session(map[string]string{enginetest.Main: `globalThis.result = 1;`})
	assert.Equal(t, engine.StateInit, s.State())
	assert.Error(t, s.Evaluate())
	assert.Error(t, s.Drain())

	require.NoError(t, s.Load(enginetest.Main))
	assert.Equal(t, engine.StateLoading, s.State())
	assert.Error(t, s.Load(enginetest.Main))
	require.NoError(t, s.Evaluate())
	assert.Equal(t, engine.StateEvaluating, s.State())
	require.NoError(t, s.Drain())
	assert.Equal(t, engine.StateCompleted, s.State())
	assert.True(t, s.State().Done())
}

func TestConsole(t *testing.T) {
	t.Parallel()

	vm := enginetest.New(t, std.Registry())
	_, err := vm.Run(`console.log("out %d", 1); console.error("err");`)
	require.NoError(t, err)
	assert.Equal(t, "out 1\n", vm.Stdout.String())
	assert.Equal(t, "err\n", vm.Stderr.String())
}

func TestFormatError(t *testing.T) {
	t.Parallel()

	vm := enginetest.New(t, std.Registry())
	_, err := vm.Run(`function boom() { throw new Error("x") }
boom();`)
	require.Error(t, err)
	out := engine.FormatError(err)
	assert.Contains(t, out, "Error: x")
	assert.Contains(t, out, "boom")

	_, err = vm.Run(`import "./missing.js";`)
	out = engine.FormatError(err)
	assert.Contains(t, out, "Error: module not found")
}
