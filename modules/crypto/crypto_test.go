package crypto

import (
	"testing"

	"github.com/google/uuid"
	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/js"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRuntime(t *testing.T) *sobek.Runtime {
	rt := sobek.New()
	js.Attach(rt, &js.Host{Context: t.Context()})
	v, err := Crypto{}.Instantiate(rt)
	require.NoError(t, err)
	require.NoError(t, rt.Set("crypto", v))
	return rt
}

func TestRandomUUID(t *testing.T) {
	t.Parallel()
	rt := newRuntime(t)

	v, err := rt.RunString(`[crypto.randomUUID(), crypto.randomUUID()]`)
	require.NoError(t, err)
	ids := v.Export().([]any)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	for _, id := range ids {
		parsed, err := uuid.Parse(id.(string))
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(4), parsed.Version())
	}
}

func TestGetRandomValues(t *testing.T) {
	t.Parallel()
	rt := newRuntime(t)

	v, err := rt.RunString(`
		const a = new Uint8Array(64);
		const same = crypto.getRandomValues(a) === a;
		[same, a.some((b) => b !== 0)];
	`)
	require.NoError(t, err)
	assert.Equal(t, []any{true, true}, v.Export())

	v, err = rt.RunString(`
		const buf = new ArrayBuffer(16);
		crypto.getRandomValues(new Uint8Array(buf, 8, 8));
		new Uint8Array(buf, 0, 8).every((b) => b === 0);
	`)
	require.NoError(t, err)
	assert.True(t, v.ToBoolean())

	for _, script := range []string{
		`crypto.getRandomValues(new Float64Array(4))`,
		`crypto.getRandomValues([1, 2])`,
		`crypto.getRandomValues(new Uint8Array(65537))`,
	} {
		_, err = rt.RunString(script)
		assert.Error(t, err, script)
	}
}
