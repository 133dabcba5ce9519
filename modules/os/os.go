// Package os installs the process members of the Deno namespace.
package os

import (
	"maps"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/js"
	"github.com/spf13/cast"
)

// OS adds args, exit, env, build, noColor, pid, ppid, cwd, hostname and execPath to Deno.
type OS struct{}

func (o OS) Instantiate(rt *sobek.Runtime) (sobek.Value, error) {
	host := js.HostOf(rt)
	deno := js.Object(rt, "Deno")

	args := rt.NewArray(toAny(host.Args)...)
	if err := js.FreezeObject(rt, args); err != nil {
		return nil, err
	}
	_ = deno.Set("args", args)
	_ = deno.Set("exit", o.exit)
	_ = deno.Set("env", o.env(rt))
	_ = deno.Set("build", map[string]string{
		"os":     runtime.GOOS,
		"arch":   buildArch(),
		"target": buildArch() + "-" + runtime.GOOS,
	})
	_ = deno.Set("noColor", os.Getenv("NO_COLOR") != "")
	_ = deno.Set("pid", os.Getpid())
	_ = deno.Set("ppid", os.Getppid())
	_ = deno.Set("standalone", host.Standalone)
	_ = deno.Set("cwd", o.cwd)
	_ = deno.Set("hostname", o.hostname)
	_ = deno.Set("execPath", o.execPath)
	return nil, nil
}

func (OS) Global() {}

func toAny(s []string) []any {
	ret := make([]any, len(s))
	for i, v := range s {
		ret[i] = v
	}
	return ret
}

func buildArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	default:
		return runtime.GOARCH
	}
}

// exit stops the session. The code defaults to 0; non-numeric codes are coerced.
func (OS) exit(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	code := 0
	if arg := call.Argument(0); !sobek.IsUndefined(arg) {
		var err error
		if code, err = cast.ToIntE(arg.Export()); err != nil {
			panic(rt.NewTypeError("Deno.exit: invalid exit code %s", arg.String()))
		}
	}
	js.Exit(rt, code)
	return sobek.Undefined()
}

func (OS) env(rt *sobek.Runtime) *sobek.Object {
	env := rt.NewObject()
	_ = env.Set("get", func(call sobek.FunctionCall) sobek.Value {
		if v, ok := os.LookupEnv(envKey(rt, call.Argument(0))); ok {
			return rt.ToValue(v)
		}
		return sobek.Undefined()
	})
	_ = env.Set("set", func(call sobek.FunctionCall) sobek.Value {
		value := cast.ToString(call.Argument(1).Export())
		return js.Settle(rt, js.Result{Err: os.Setenv(envKey(rt, call.Argument(0)), value)})
	})
	_ = env.Set("delete", func(call sobek.FunctionCall) sobek.Value {
		return js.Settle(rt, js.Result{Err: os.Unsetenv(envKey(rt, call.Argument(0)))})
	})
	_ = env.Set("has", func(call sobek.FunctionCall) sobek.Value {
		_, ok := os.LookupEnv(envKey(rt, call.Argument(0)))
		return rt.ToValue(ok)
	})
	_ = env.Set("toObject", func(call sobek.FunctionCall) sobek.Value {
		vars := make(map[string]string)
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
				vars[k] = v
			}
		}
		obj := rt.NewObject()
		for _, k := range slices.Sorted(maps.Keys(vars)) {
			_ = obj.Set(k, vars[k])
		}
		return obj
	})
	return env
}

func envKey(rt *sobek.Runtime, v sobek.Value) string {
	key := v.String()
	if key == "" || strings.ContainsAny(key, "=\x00") {
		panic(rt.NewTypeError("Key contains invalid characters: %q", key))
	}
	return key
}

func (OS) cwd(_ sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	dir, err := os.Getwd()
	return js.Settle(rt, js.Result{Value: dir, Kind: js.KindOf(err), Err: err})
}

func (OS) hostname(_ sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	name, err := os.Hostname()
	return js.Settle(rt, js.Result{Value: name, Kind: js.KindOf(err), Err: err})
}

func (OS) execPath(_ sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	p, err := os.Executable()
	return js.Settle(rt, js.Result{Value: p, Kind: js.KindOf(err), Err: err})
}
