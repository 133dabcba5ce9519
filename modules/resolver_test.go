package modules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewBuilder().
		Source("mdeno:assert", func() string { return "export function assert() {}" }).
		Build()
}

func TestFileResolver(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "a.js"), []byte(""), 0o644))

	r := NewFileResolver(testRegistry())
	main := FileURL(filepath.Join(dir, "main.js"))

	cases := []struct {
		name, base, requested, want string
		kind                        ResolutionKind
		err                         bool
	}{
		{name: "built-in", base: main, requested: "mdeno:assert", want: "mdeno:assert"},
		{name: "relative to file", base: main, requested: "./lib/a.js", want: FileURL(filepath.Join(dir, "lib", "a.js"))},
		{name: "relative to dir", base: FileURL(filepath.Join(dir, "lib")), requested: "./a.js", want: FileURL(filepath.Join(dir, "lib", "a.js"))},
		{name: "parent", base: FileURL(filepath.Join(dir, "lib", "a.js")), requested: "../main.js", want: main},
		{name: "file url", base: main, requested: main, want: main},
		{name: "remote", base: main, requested: "jsr:@std/assert", err: true, kind: RequiresUpstreamResolution},
		{name: "bare", base: main, requested: "lodash", err: true, kind: ResolveNotFound},
		{name: "rebase remote", base: "jsr:@std/assert@1.0.0/mod.ts", requested: "./equal.ts", want: "jsr:@std/assert@1.0.0/equal.js"},
		{name: "remote base without path", base: "npm:lodash", requested: "./x.js", err: true, kind: ResolveNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := r.Resolve(c.base, c.requested)
			if c.err {
				var re *ResolutionError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, c.kind, re.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)

			again, err := r.Resolve(c.base, c.requested)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestFileResolverSymlink(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	target := filepath.Join(dir, "real.js")
	require.NoError(t, os.WriteFile(target, []byte(""), 0o644))
	if err = os.Symlink(target, filepath.Join(dir, "link.js")); err != nil {
		t.Skip("symlink not supported")
	}

	r := NewFileResolver(nil)
	got, err := r.Resolve(FileURL(filepath.Join(dir, "main.js")), "./link.js")
	require.NoError(t, err)
	assert.Equal(t, FileURL(target), got)
}

func TestBundleResolver(t *testing.T) {
	t.Parallel()

	modules := map[string][]byte{
		"a.js":                           nil,
		"b.js":                           nil,
		"lib/c.js":                       nil,
		"jsr:@std/assert@1.0.0/mod.js":   nil,
		"jsr:@std/assert@1.0.0/equal.js": nil,
		"jsr:@std/fmt@1.0.0/colors":      nil,
	}
	r := NewBundleResolver(testRegistry(), modules)

	cases := []struct {
		name, base, requested, want string
		kind                        ResolutionKind
		err                         bool
	}{
		{name: "built-in", base: "b.js", requested: "mdeno:assert", want: "mdeno:assert"},
		{name: "exact key", base: "b.js", requested: "jsr:@std/assert@1.0.0/mod.js", want: "jsr:@std/assert@1.0.0/mod.js"},
		{name: "relative sibling", base: "b.js", requested: "./a.js", want: "a.js"},
		{name: "relative subdir", base: "b.js", requested: "./lib/c.js", want: "lib/c.js"},
		{name: "relative parent", base: "lib/c.js", requested: "../a.js", want: "a.js"},
		{name: "remote rebase", base: "jsr:@std/assert@1.0.0/mod.js", requested: "./equal.ts", want: "jsr:@std/assert@1.0.0/equal.js"},
		{name: "remote rebase extensionless", base: "jsr:@std/fmt@1.0.0/mod.ts", requested: "./colors.js", want: "jsr:@std/fmt@1.0.0/colors"},
		{name: "unresolved remote", base: "b.js", requested: "jsr:@std/path", err: true, kind: RequiresUpstreamResolution},
		{name: "missing", base: "b.js", requested: "./missing.js", err: true, kind: ResolveNotFound},
		{name: "bare", base: "b.js", requested: "react", err: true, kind: ResolveNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := r.Resolve(c.base, c.requested)
			if c.err {
				var re *ResolutionError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, c.kind, re.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestBundleResolverCanonical(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	real := filepath.Join(dir, "real")
	require.NoError(t, os.MkdirAll(real, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(real, "a.js"), []byte(""), 0o644))
	link := filepath.Join(dir, "link")
	if err = os.Symlink(real, link); err != nil {
		t.Skip("symlink not supported")
	}

	modules := map[string][]byte{FileURL(filepath.Join(real, "a.js")): nil}
	r := NewBundleResolver(nil, modules)

	got, err := r.Resolve(FileURL(filepath.Join(link, "main.js")), "./a.js")
	require.NoError(t, err)
	assert.Equal(t, FileURL(filepath.Join(real, "a.js")), got)
}

func TestSourceResolver(t *testing.T) {
	t.Parallel()

	r := NewSourceResolver(nil, map[string]string{
		"file:///app/main.js":    "",
		"file:///app/util/x.js":  "",
		"./$mdeno$eval.js":       "",
		"file:///app/util/y.mjs": "",
	})

	got, err := r.Resolve("file:///app/main.js", "./util/x.js")
	require.NoError(t, err)
	assert.Equal(t, "file:///app/util/x.js", got)

	got, err = r.Resolve("file:///app/util/x.js", "./y.mjs")
	require.NoError(t, err)
	assert.Equal(t, "file:///app/util/y.mjs", got)

	got, err = r.Resolve("", "./$mdeno$eval.js")
	require.NoError(t, err)
	assert.Equal(t, "./$mdeno$eval.js", got)

	_, err = r.Resolve("file:///app/main.js", "./nope.js")
	assert.True(t, IsNotFound(err))
}
