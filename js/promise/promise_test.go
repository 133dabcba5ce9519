package promise

import (
	"errors"
	"testing"

	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/js"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRuntime(t *testing.T) (*sobek.Runtime, *js.EventLoop) {
	t.Helper()
	rt := sobek.New()
	loop := js.NewEventLoop()
	js.Attach(rt, &js.Host{Context: t.Context(), Loop: loop})
	t.Cleanup(loop.Stop)
	return rt, loop
}

func settle(t *testing.T, loop *js.EventLoop) {
	t.Helper()
	for {
		jobs := loop.Poll()
		if len(jobs) == 0 {
			return
		}
		for _, job := range jobs {
			require.NoError(t, job())
		}
	}
}

func TestPromise(t *testing.T) {
	t.Parallel()

	t.Run("resolve", func(t *testing.T) {
		rt, loop := newRuntime(t)
		p := New(rt, func() (string, error) { return "resolve", nil })
		settle(t, loop)
		result, err := Result(rt.ToValue(p))
		require.NoError(t, err)
		assert.Equal(t, "resolve", result)
	})

	t.Run("reject", func(t *testing.T) {
		rt, loop := newRuntime(t)
		p := New(rt, func() (string, error) { return "", errors.New("reject") })
		settle(t, loop)
		_, err := Result(rt.ToValue(p))
		assert.ErrorContains(t, err, "reject")
	})

	t.Run("then", func(t *testing.T) {
		rt, loop := newRuntime(t)
		p := New(rt,
			func() (int, error) { return 20, nil },
			func(v int, err error) (any, error) { return v + 1, err })
		settle(t, loop)
		result, err := Result(rt.ToValue(p))
		require.NoError(t, err)
		assert.EqualValues(t, 21, result)
	})

	t.Run("panic on async", func(t *testing.T) {
		rt, loop := newRuntime(t)
		assert.NotPanics(t, func() {
			p := New(rt, func() (string, error) { panic("boom") })
			settle(t, loop)
			_, err := Result(rt.ToValue(p))
			assert.ErrorContains(t, err, "boom")
		})
	})

	t.Run("pending", func(t *testing.T) {
		rt, _ := newRuntime(t)
		p, _, _ := rt.NewPromise()
		_, err := Result(rt.ToValue(p))
		assert.ErrorContains(t, err, "pending")
	})

	t.Run("resolved and rejected", func(t *testing.T) {
		rt, _ := newRuntime(t)
		v, err := Result(Resolve(rt, "ok"))
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		_, err = Result(Reject(rt, "no"))
		assert.ErrorContains(t, err, "no")
	})
}
