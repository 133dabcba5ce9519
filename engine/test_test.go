package engine_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/shiroyk/mdeno/engine"
	"github.com/shiroyk/mdeno/engine/enginetest"
	"github.com/shiroyk/mdeno/modules/std"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTests(t *testing.T, source string) (*engine.TestReport, *enginetest.VM) {
	t.Helper()
	vm := enginetest.New(t, std.Registry())
	vm.Test = true
	s := vm.Session(map[string]string{enginetest.Main: source})
	report, err := s.Test(enginetest.Main)
	require.NoError(t, err)
	assert.Equal(t, engine.StateCompleted, s.State())
	return report, vm
}

func statuses(report *engine.TestReport) map[string]engine.TestStatus {
	ret := make(map[string]engine.TestStatus, len(report.Results))
	for _, r := range report.Results {
		ret[r.Name] = r.Status
	}
	return ret
}

func TestTestMode(t *testing.T) {
	t.Parallel()

	report, vm := runTests(t, `
		import { assertEquals } from "mdeno:assert";

		Deno.test("sync pass", () => assertEquals(1 + 1, 2));
		Deno.test("sync fail", () => assertEquals(1, 2));
		Deno.test({ name: "skipped", ignore: true, fn: () => { throw new Error("ran") } });
		Deno.test(function named() {});
		Deno.test("async pass", async () => {
			await new Promise((r) => setTimeout(r, 1));
		});
		Deno.test("async fail", async () => {
			await new Promise((r) => setTimeout(r, 1));
			throw new Error("async boom");
		});
	`)

	assert.Equal(t, map[string]engine.TestStatus{
		"sync pass":  engine.TestPassed,
		"sync fail":  engine.TestFailed,
		"skipped":    engine.TestIgnored,
		"named":      engine.TestPassed,
		"async pass": engine.TestPassed,
		"async fail": engine.TestFailed,
	}, statuses(report))
	assert.Equal(t, 3, report.Passed())
	assert.Equal(t, 2, report.Failed())
	assert.Equal(t, 1, report.Ignored())
	assert.False(t, report.OK())
	assert.Equal(t, enginetest.Main, report.File)

	out := vm.Stdout.String()
	assert.Contains(t, out, "running 5 tests from "+enginetest.Main)
	assert.Contains(t, out, "sync pass ... ok")
	assert.Contains(t, out, "skipped ... ignored")
	assert.Contains(t, out, "sync fail ... FAILED")
	assert.Contains(t, out, " ERRORS ")
	assert.Contains(t, out, "async boom")
	assert.Contains(t, out, " FAILURES ")
}

func TestTestOnly(t *testing.T) {
	t.Parallel()

	report, _ := runTests(t, `
		Deno.test("plain", () => {});
		Deno.test({ name: "focused", only: true, fn: () => {} });
	`)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "focused", report.Results[0].Name)
	assert.True(t, report.OK())
}

func TestTestNeverSettled(t *testing.T) {
	t.Parallel()

	report, _ := runTests(t, `Deno.test("hang", () => new Promise(() => {}));`)
	require.Len(t, report.Results, 1)
	assert.Equal(t, engine.TestFailed, report.Results[0].Status)
	assert.ErrorIs(t, report.Results[0].Err, engine.ErrNeverSettled)
}

func TestTestUncaught(t *testing.T) {
	t.Parallel()

	report, _ := runTests(t, `
		setTimeout(() => { throw new Error("top level") }, 0);
		Deno.test("stray", async () => {
			setTimeout(() => { throw new Error("stray timer") }, 0);
			await new Promise((r) => setTimeout(r, 20));
		});
	`)

	var stray, uncaught *engine.TestResult
	for i := range report.Results {
		switch report.Results[i].Name {
		case "stray":
			stray = &report.Results[i]
		case "(uncaught error)":
			uncaught = &report.Results[i]
		}
	}
	require.NotNil(t, stray)
	require.NotNil(t, uncaught)
	assert.Equal(t, engine.TestFailed, stray.Status)
	assert.ErrorContains(t, stray.Err, "stray timer")
	assert.ErrorContains(t, uncaught.Err, "top level")
}

func TestTestRejectionIsolation(t *testing.T) {
	t.Parallel()

	report, _ := runTests(t, `
		Deno.test("a", () => {
			Promise.reject(new Error("x1"));
			Promise.reject(new Error("x2"));
		});
		Deno.test("b", () => {});
	`)
	assert.Equal(t, map[string]engine.TestStatus{
		"a": engine.TestFailed,
		"b": engine.TestPassed,
	}, statuses(report))
	require.Len(t, report.Results, 2)
	assert.ErrorContains(t, report.Results[0].Err, "x1")

	report, _ = runTests(t, `
		Promise.reject(new Error("r1"));
		Promise.reject(new Error("r2"));
		Deno.test("innocent", () => {});
	`)
	var innocent, uncaught []engine.TestResult
	for _, r := range report.Results {
		switch r.Name {
		case "innocent":
			innocent = append(innocent, r)
		case "(uncaught error)":
			uncaught = append(uncaught, r)
		}
	}
	require.Len(t, innocent, 1)
	assert.Equal(t, engine.TestPassed, innocent[0].Status)
	require.Len(t, uncaught, 1)
	assert.ErrorContains(t, uncaught[0].Err, "r1")
}

func TestTestExit(t *testing.T) {
	t.Parallel()

	vm := enginetest.New(t, std.Registry())
	vm.Test = true
	s := vm.Session(map[string]string{enginetest.Main: `Deno.test("exit", () => Deno.exit(3));`})
	_, err := s.Test(enginetest.Main)
	assert.Equal(t, 3, engine.ExitCode(err))
	assert.Equal(t, engine.StateFailed, s.State())
}

func TestTestRegistrationOutsideTestMode(t *testing.T) {
	t.Parallel()

	vm := enginetest.New(t, std.Registry())
	s, err := vm.Run(`Deno.test("x", () => { globalThis.result = 1 });`)
	require.NoError(t, err)
	assert.Nil(t, s.Runtime().Get("result"))
}

func TestTestRegistrationErrors(t *testing.T) {
	t.Parallel()

	for _, script := range []string{
		`Deno.test("", () => {})`,
		`Deno.test("no fn")`,
		`Deno.test({ name: "no fn" })`,
		`Deno.test(1)`,
	} {
		vm := enginetest.New(t, std.Registry())
		vm.Test = true
		s := vm.Session(map[string]string{enginetest.Main: script})
		_, err := s.Test(enginetest.Main)
		assert.ErrorContains(t, err, "Deno.test", script)
	}
}

func TestReporter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := engine.NewReporter(&buf)
	r.Header(2, "a_test.js")
	r.Result(engine.TestResult{Name: "one", Status: engine.TestPassed, Duration: 3 * time.Millisecond})
	r.Summary(1, 0, 1, 12*time.Millisecond)

	assert.Equal(t, "running 2 tests from a_test.js\n"+
		"one ... ok (3ms)\n"+
		"\nok | 1 passed | 0 failed | 1 ignored (12ms)\n\n", buf.String())

	assert.Equal(t, "one ... FAILED (0ms)", engine.TestResult{Name: "one", Status: engine.TestFailed}.String())
}
