// Package fs installs the file system members of the Deno namespace.
// Every operation has a promise returning form completed through the session
// reactor and a *Sync form.
package fs

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/js"
	"github.com/shiroyk/mdeno/js/promise"
	"github.com/shiroyk/mdeno/modules"
	"github.com/spf13/cast"
)

// FS adds the file system functions to Deno.
type FS struct{}

func (FS) Instantiate(rt *sobek.Runtime) (sobek.Value, error) {
	deno := js.Object(rt, "Deno")
	undefined := func(struct{}) sobek.Value { return sobek.Undefined() }
	text := func(s string) sobek.Value { return rt.ToValue(s) }

	define(rt, deno, "readFile", func(call sobek.FunctionCall) func() ([]byte, error) {
		name := pathArg(rt, call.Argument(0))
		return func() ([]byte, error) { return os.ReadFile(name) }
	}, func(data []byte) sobek.Value { return uint8Array(rt, data) })

	define(rt, deno, "readTextFile", func(call sobek.FunctionCall) func() (string, error) {
		name := pathArg(rt, call.Argument(0))
		return func() (string, error) {
			data, err := os.ReadFile(name)
			return string(data), err
		}
	}, text)

	define(rt, deno, "writeFile", func(call sobek.FunctionCall) func() (struct{}, error) {
		name := pathArg(rt, call.Argument(0))
		data, err := js.ToBytes(bytesArg(call.Argument(1)))
		if err != nil {
			js.Throw(rt, err)
		}
		opts := writeOptionsArg(rt, call.Argument(2))
		return func() (struct{}, error) { return struct{}{}, writeFile(name, data, opts) }
	}, undefined)

	define(rt, deno, "writeTextFile", func(call sobek.FunctionCall) func() (struct{}, error) {
		name := pathArg(rt, call.Argument(0))
		data := []byte(call.Argument(1).String())
		opts := writeOptionsArg(rt, call.Argument(2))
		return func() (struct{}, error) { return struct{}{}, writeFile(name, data, opts) }
	}, undefined)

	define(rt, deno, "stat", func(call sobek.FunctionCall) func() (os.FileInfo, error) {
		name := pathArg(rt, call.Argument(0))
		return func() (os.FileInfo, error) { return os.Stat(name) }
	}, func(info os.FileInfo) sobek.Value { return fileInfo(rt, info) })

	define(rt, deno, "lstat", func(call sobek.FunctionCall) func() (os.FileInfo, error) {
		name := pathArg(rt, call.Argument(0))
		return func() (os.FileInfo, error) { return os.Lstat(name) }
	}, func(info os.FileInfo) sobek.Value { return fileInfo(rt, info) })

	define(rt, deno, "mkdir", func(call sobek.FunctionCall) func() (struct{}, error) {
		name := pathArg(rt, call.Argument(0))
		opts := optionsArg(rt, call.Argument(1))
		recursive := cast.ToBool(opts["recursive"])
		mode := os.FileMode(cast.ToUint32(opts["mode"]))
		if mode == 0 {
			mode = 0o777
		}
		return func() (struct{}, error) {
			if recursive {
				return struct{}{}, os.MkdirAll(name, mode)
			}
			return struct{}{}, os.Mkdir(name, mode)
		}
	}, undefined)

	define(rt, deno, "remove", func(call sobek.FunctionCall) func() (struct{}, error) {
		name := pathArg(rt, call.Argument(0))
		recursive := cast.ToBool(optionsArg(rt, call.Argument(1))["recursive"])
		return func() (struct{}, error) {
			if recursive {
				if _, err := os.Lstat(name); err != nil {
					return struct{}{}, err
				}
				return struct{}{}, os.RemoveAll(name)
			}
			return struct{}{}, os.Remove(name)
		}
	}, undefined)

	define(rt, deno, "readDir", func(call sobek.FunctionCall) func() ([]os.DirEntry, error) {
		name := pathArg(rt, call.Argument(0))
		return func() ([]os.DirEntry, error) { return os.ReadDir(name) }
	}, func(entries []os.DirEntry) sobek.Value {
		ret := make([]any, 0, len(entries))
		for _, entry := range entries {
			ret = append(ret, map[string]any{
				"name":        entry.Name(),
				"isFile":      entry.Type().IsRegular(),
				"isDirectory": entry.IsDir(),
				"isSymlink":   entry.Type()&os.ModeSymlink != 0,
			})
		}
		return rt.NewArray(ret...)
	})

	define(rt, deno, "rename", func(call sobek.FunctionCall) func() (struct{}, error) {
		from, to := pathArg(rt, call.Argument(0)), pathArg(rt, call.Argument(1))
		return func() (struct{}, error) { return struct{}{}, os.Rename(from, to) }
	}, undefined)

	define(rt, deno, "copyFile", func(call sobek.FunctionCall) func() (struct{}, error) {
		from, to := pathArg(rt, call.Argument(0)), pathArg(rt, call.Argument(1))
		return func() (struct{}, error) { return struct{}{}, copyFile(from, to) }
	}, undefined)

	define(rt, deno, "realPath", func(call sobek.FunctionCall) func() (string, error) {
		name := pathArg(rt, call.Argument(0))
		return func() (string, error) {
			abs, err := filepath.Abs(name)
			if err != nil {
				return "", err
			}
			return filepath.EvalSymlinks(abs)
		}
	}, text)

	define(rt, deno, "truncate", func(call sobek.FunctionCall) func() (struct{}, error) {
		name := pathArg(rt, call.Argument(0))
		size := call.Argument(1).ToInteger()
		return func() (struct{}, error) { return struct{}{}, os.Truncate(name, size) }
	}, undefined)

	define(rt, deno, "makeTempDir", func(call sobek.FunctionCall) func() (string, error) {
		dir, pattern := tempArgs(rt, call.Argument(0))
		return func() (string, error) { return os.MkdirTemp(dir, pattern) }
	}, text)

	define(rt, deno, "makeTempFile", func(call sobek.FunctionCall) func() (string, error) {
		dir, pattern := tempArgs(rt, call.Argument(0))
		return func() (string, error) {
			f, err := os.CreateTemp(dir, pattern)
			if err != nil {
				return "", err
			}
			return f.Name(), f.Close()
		}
	}, text)

	return nil, nil
}

func (FS) Global() {}

// define installs name, returning a promise completed by the reactor, and nameSync.
// prepare reads the arguments on the engine thread and returns the blocking task;
// convert builds the JavaScript result on the engine thread.
func define[T any](rt *sobek.Runtime, deno *sobek.Object, name string,
	prepare func(sobek.FunctionCall) func() (T, error), convert func(T) sobek.Value) {
	_ = deno.Set(name, func(call sobek.FunctionCall) sobek.Value {
		task := prepare(call)
		return rt.ToValue(promise.New(rt, task, func(v T, err error) (any, error) {
			if err != nil {
				return nil, err
			}
			return convert(v), nil
		}))
	})
	_ = deno.Set(name+"Sync", func(call sobek.FunctionCall) sobek.Value {
		v, err := prepare(call)()
		if err != nil {
			return js.Settle(rt, js.Fail(err))
		}
		return convert(v)
	})
}

// pathArg accepts a path string, a file:// URL string or a URL object.
func pathArg(rt *sobek.Runtime, v sobek.Value) string {
	if sobek.IsUndefined(v) || sobek.IsNull(v) {
		panic(rt.NewTypeError("path must be a string or URL"))
	}
	s := v.String()
	if obj, ok := v.(*sobek.Object); ok {
		if href := obj.Get("href"); href != nil && !sobek.IsUndefined(href) {
			s = href.String()
		}
	}
	if modules.IsFileURL(s) {
		s, _ = modules.FilePath(s)
	}
	return s
}

func bytesArg(v sobek.Value) any {
	if obj, ok := v.(*sobek.Object); ok {
		if buf, ok := obj.Get("buffer").Export().(sobek.ArrayBuffer); ok {
			offset := obj.Get("byteOffset").ToInteger()
			length := obj.Get("byteLength").ToInteger()
			return buf.Bytes()[offset : offset+length]
		}
	}
	return v.Export()
}

func optionsArg(rt *sobek.Runtime, v sobek.Value) map[string]any {
	if sobek.IsUndefined(v) || sobek.IsNull(v) {
		return map[string]any{}
	}
	obj := v.ToObject(rt)
	opts := make(map[string]any)
	for _, key := range obj.Keys() {
		opts[key] = obj.Get(key).Export()
	}
	return opts
}

type writeOptions struct {
	append, create, createNew bool
	mode                      os.FileMode
}

func writeOptionsArg(rt *sobek.Runtime, v sobek.Value) writeOptions {
	opts := optionsArg(rt, v)
	ret := writeOptions{
		append:    cast.ToBool(opts["append"]),
		create:    true,
		createNew: cast.ToBool(opts["createNew"]),
		mode:      os.FileMode(cast.ToUint32(opts["mode"])),
	}
	if create, ok := opts["create"]; ok {
		ret.create = cast.ToBool(create)
	}
	if ret.mode == 0 {
		ret.mode = 0o666
	}
	return ret
}

func writeFile(name string, data []byte, opts writeOptions) error {
	flag := os.O_WRONLY
	if opts.append {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
	}
	if opts.createNew {
		flag |= os.O_CREATE | os.O_EXCL
	} else if opts.create {
		flag |= os.O_CREATE
	}
	f, err := os.OpenFile(name, flag, opts.mode)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return err
	}
	dst, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func tempArgs(rt *sobek.Runtime, v sobek.Value) (dir, pattern string) {
	opts := optionsArg(rt, v)
	return cast.ToString(opts["dir"]), cast.ToString(opts["prefix"]) + "*" + cast.ToString(opts["suffix"])
}

func uint8Array(rt *sobek.Runtime, data []byte) sobek.Value {
	arr, err := js.New(rt, "Uint8Array", rt.ToValue(rt.NewArrayBuffer(data)))
	if err != nil {
		js.Throw(rt, err)
	}
	return arr
}

func date(rt *sobek.Runtime, t time.Time) sobek.Value {
	if t.IsZero() {
		return sobek.Null()
	}
	d, err := js.New(rt, "Date", rt.ToValue(t.UnixMilli()))
	if err != nil {
		js.Throw(rt, err)
	}
	return d
}

func fileInfo(rt *sobek.Runtime, info os.FileInfo) sobek.Value {
	obj := rt.NewObject()
	_ = obj.Set("isFile", info.Mode().IsRegular())
	_ = obj.Set("isDirectory", info.IsDir())
	_ = obj.Set("isSymlink", info.Mode()&os.ModeSymlink != 0)
	_ = obj.Set("size", info.Size())
	_ = obj.Set("mtime", date(rt, info.ModTime()))
	_ = obj.Set("mode", uint32(info.Mode().Perm()))
	return obj
}
