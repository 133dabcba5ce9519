package url

import (
	"testing"

	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/js"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRuntime(t *testing.T) *sobek.Runtime {
	rt := sobek.New()
	js.Attach(rt, &js.Host{Context: t.Context()})
	ctor, err := new(URL).Instantiate(rt)
	require.NoError(t, err)
	require.NoError(t, rt.Set("URL", ctor))
	ctor, err = new(URLSearchParams).Instantiate(rt)
	require.NoError(t, err)
	require.NoError(t, rt.Set("URLSearchParams", ctor))
	return rt
}

func TestURL(t *testing.T) {
	t.Parallel()
	rt := newRuntime(t)

	cases := []struct {
		script string
		want   any
	}{
		{`new URL("https://user:pw@example.com:8080/a/b?x=1#frag").hostname`, "example.com"},
		{`new URL("https://user:pw@example.com:8080/a/b?x=1#frag").port`, "8080"},
		{`new URL("https://user:pw@example.com:8080/a/b?x=1#frag").username`, "user"},
		{`new URL("https://user:pw@example.com:8080/a/b?x=1#frag").password`, "pw"},
		{`new URL("https://example.com/a/b?x=1#frag").search`, "?x=1"},
		{`new URL("https://example.com/a/b?x=1#frag").hash`, "#frag"},
		{`new URL("https://example.com").pathname`, "/"},
		{`new URL("https://example.com:8443/").origin`, "https://example.com:8443"},
		{`new URL("file:///tmp/a.js").origin`, "null"},
		{`new URL("./c.js", "file:///src/b.js").href`, "file:///src/c.js"},
		{`new URL("../c", "https://example.com/a/b/").href`, "https://example.com/a/c"},
		{`String(new URL("https://example.com/p"))`, "https://example.com/p"},
		{`JSON.stringify({u: new URL("https://example.com/p")})`, `{"u":"https://example.com/p"}`},
		{`URL.canParse("https://example.com")`, true},
		{`URL.canParse("/relative")`, false},
		{`URL.parse("nope")`, nil},
		{`URL.parse("https://example.com") instanceof URL`, true},
		{`Object.prototype.toString.call(new URL("https://example.com"))`, "[object URL]"},
		{`(() => { const u = new URL("https://example.com/"); u.pathname = "x"; u.hash = "h"; return u.href })()`,
			"https://example.com/x#h"},
	}
	for _, c := range cases {
		v, err := rt.RunString(c.script)
		require.NoError(t, err, c.script)
		assert.Equal(t, c.want, v.Export(), c.script)
	}

	_, err := rt.RunString(`new URL("/relative")`)
	assert.ErrorContains(t, err, "Invalid URL")
}

func TestURLSearchParamsView(t *testing.T) {
	t.Parallel()
	rt := newRuntime(t)

	v, err := rt.RunString(`
		const u = new URL("https://example.com/?a=1&b=2");
		const params = u.searchParams;
		const out = [params === u.searchParams, params.get("a")];

		params.append("c", "3 4");
		out.push(u.search);

		u.search = "?z=9";
		out.push(params.get("a"), params.get("z"), params.size);

		u.href = "https://example.com/?k=v";
		out.push(params.toString());

		params.delete("k");
		out.push(u.href);
		out;
	`)
	require.NoError(t, err)
	assert.Equal(t, []any{
		true, "1",
		"?a=1&b=2&c=3+4",
		nil, "9", int64(1),
		"k=v",
		"https://example.com/",
	}, v.Export())
}

func TestURLSearchParams(t *testing.T) {
	t.Parallel()
	rt := newRuntime(t)

	cases := []struct {
		script string
		want   any
	}{
		{`new URLSearchParams("?a=1&a=2&b=%20x").getAll("a")`, []any{"1", "2"}},
		{`new URLSearchParams("b=%20x+y").get("b")`, " x y"},
		{`new URLSearchParams({x: "1", y: "2"}).toString()`, "x=1&y=2"},
		{`new URLSearchParams([["x", "1"], ["x", "2"]]).toString()`, "x=1&x=2"},
		{`(() => { const p = new URLSearchParams("a=1&b=2&a=3"); p.set("a", "9"); return p.toString() })()`, "a=9&b=2"},
		{`(() => { const p = new URLSearchParams("c=1&a=2&b=3&a=1"); p.sort(); return p.toString() })()`, "a=2&a=1&b=3&c=1"},
		{`[...new URLSearchParams("a=1&b=2").keys()]`, []any{"a", "b"}},
		{`[...new URLSearchParams("a=1&b=2").values()]`, []any{"1", "2"}},
		{`[...new URLSearchParams("a=1")].map(([k, v]) => k + v)`, []any{"a1"}},
		{`new URLSearchParams("a=1&a=2").has("a", "2")`, true},
		{`new URLSearchParams("a=1").get("missing")`, nil},
		{`(() => { const out = []; new URLSearchParams("a=1&b=2").forEach((v, k) => out.push(k + v)); return out })()`,
			[]any{"a1", "b2"}},
		{`new URLSearchParams(new URLSearchParams("q=é")).toString()`, "q=%C3%A9"},
	}
	for _, c := range cases {
		v, err := rt.RunString(c.script)
		require.NoError(t, err, c.script)
		assert.Equal(t, c.want, v.Export(), c.script)
	}
}
