package timers

import (
	"testing"

	"github.com/shiroyk/mdeno/engine"
	"github.com/shiroyk/mdeno/engine/enginetest"
	"github.com/shiroyk/mdeno/js"
	"github.com/shiroyk/mdeno/modules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVM(t *testing.T) *enginetest.VM {
	registry := modules.NewBuilder().
		Global("console", js.Console{}).
		Global("timers", new(Timers)).
		Build()
	return enginetest.New(t, registry)
}

func TestTimers(t *testing.T) {
	t.Parallel()

	t.Run("setTimeout", func(t *testing.T) {
		vm := newVM(t)
		result := vm.Result(`
			const start = Date.now();
			globalThis.result = await new Promise((resolve) => {
				setTimeout(() => resolve(Date.now() - start), 50);
			});
		`)
		assert.GreaterOrEqual(t, result.ToInteger(), int64(50))
	})

	t.Run("setTimeout with arguments", func(t *testing.T) {
		vm := newVM(t)
		result := vm.Result(`setTimeout((a, b) => { globalThis.result = a + b }, 0, 1, 2);`)
		assert.Equal(t, int64(3), result.ToInteger())
	})

	t.Run("clearTimeout", func(t *testing.T) {
		vm := newVM(t)
		result := vm.Result(`
			globalThis.result = "not called";
			const id = setTimeout(() => { globalThis.result = "called" }, 20);
			clearTimeout(id);
		`)
		assert.Equal(t, "not called", result.String())
	})

	t.Run("setInterval", func(t *testing.T) {
		vm := newVM(t)
		result := vm.Result(`
			globalThis.result = 0;
			const id = setInterval(() => {
				if (++globalThis.result === 3) clearInterval(id);
			}, 5);
		`)
		assert.Equal(t, int64(3), result.ToInteger())
	})

	t.Run("order", func(t *testing.T) {
		vm := newVM(t)
		result := vm.Result(`
			const out = [];
			setTimeout(() => out.push("timeout"), 0);
			queueMicrotask(() => out.push("microtask"));
			Promise.resolve().then(() => out.push("promise"));
			out.push("sync");
			globalThis.result = out;
		`)
		assert.Equal(t, []any{"sync", "microtask", "promise", "timeout"}, result.Export())
	})

	t.Run("uncaught in callback", func(t *testing.T) {
		vm := newVM(t)
		s, err := vm.Run(`setTimeout(() => { throw new Error("boom") }, 0);`)
		require.Error(t, err)
		assert.Equal(t, engine.StateFailed, s.State())
		assert.Contains(t, err.Error(), "boom")
		assert.Equal(t, 1, engine.ExitCode(err))
	})

	t.Run("uncaught in microtask", func(t *testing.T) {
		vm := newVM(t)
		_, err := vm.Run(`queueMicrotask(() => { throw new Error("micro") });`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "micro")
	})

	t.Run("invalid callback", func(t *testing.T) {
		vm := newVM(t)
		_, err := vm.Run(`setTimeout("code", 0);`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "first argument must be a function")
	})
}
