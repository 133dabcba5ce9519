package modules

import (
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/shiroyk/mdeno/bundle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	files := map[string]string{
		"main.js":    `import { a } from "./lib/a.js"; import { assert } from "mdeno:assert"; assert(a);`,
		"lib/a.js":   `export { b as a } from "./b.js";`,
		"lib/b.js":   `import "../main.js"; export const b = 1;`,
		"unused.js":  `export default 0;`,
		"broken.js":  `import "./lib/a.js"; let = ;`,
		"remote.js":  `import "npm:left-pad";`,
		"typed.js":   `import "./lib/c.ts";`,
		"missing.js": `import "./nope.js";`,
	}
	for name, text := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
	}
	registry := testRegistry()
	pair := FilePair(registry)

	sources, entry, err := Collect(pair, registry, "", filepath.Join(dir, "main.js"))
	require.NoError(t, err)
	assert.Equal(t, FileURL(mustReal(t, dir))+"/main.js", entry)
	assert.Len(t, sources, 3)
	assert.Contains(t, sources, entry)
	assert.NotContains(t, sources, "mdeno:assert")

	data, err := bundle.Compile(sources, entry)
	require.NoError(t, err)
	b, err := bundle.Load(data)
	require.NoError(t, err)
	assert.Len(t, b.Modules, 3)

	_, _, err = Collect(pair, registry, "", filepath.Join(dir, "broken.js"))
	var ce *bundle.CompileError
	assert.ErrorAs(t, err, &ce)

	_, _, err = Collect(pair, registry, "", filepath.Join(dir, "remote.js"))
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, RequiresUpstreamResolution, re.Kind)

	_, _, err = Collect(pair, registry, "", filepath.Join(dir, "typed.js"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, DisallowedKind, le.Kind)

	_, _, err = Collect(pair, registry, "", filepath.Join(dir, "missing.js"))
	assert.True(t, IsNotFound(err))
}

func TestCollectSources(t *testing.T) {
	t.Parallel()

	pair := SourcePair(nil, map[string]string{
		"a.js": "export const x = 1;",
		"b.js": "import {x} from './a.js'; globalThis.result = x + 1;",
	})
	sources, entry, err := Collect(pair, nil, "", "b.js")
	require.NoError(t, err)
	assert.Equal(t, "b.js", entry)
	assert.Equal(t, []string{"a.js", "b.js"}, slices.Sorted(maps.Keys(sources)))
}

func mustReal(t *testing.T, p string) string {
	t.Helper()
	real, err := filepath.EvalSymlinks(p)
	require.NoError(t, err)
	return real
}
