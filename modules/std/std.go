// Package std assembles the default built-in registry.
package std

import (
	_ "embed"
	"sync"

	"github.com/shiroyk/mdeno/js"
	"github.com/shiroyk/mdeno/modules"
	"github.com/shiroyk/mdeno/modules/crypto"
	"github.com/shiroyk/mdeno/modules/denons"
	"github.com/shiroyk/mdeno/modules/encoding"
	"github.com/shiroyk/mdeno/modules/fs"
	"github.com/shiroyk/mdeno/modules/navigator"
	"github.com/shiroyk/mdeno/modules/os"
	"github.com/shiroyk/mdeno/modules/timers"
	"github.com/shiroyk/mdeno/modules/url"
)

// AssertModule is the built-in assertion module name.
const AssertModule = "mdeno:assert"

//go:embed assert.js
var assertSource string

// Builder returns a builder holding the default globals in initialization order.
// The Deno namespace comes first so later globals can extend it.
func Builder() *modules.Builder {
	return modules.NewBuilder().
		Global("Deno", denons.Deno{}).
		Global("console", js.Console{}).
		Global("timers", new(timers.Timers)).
		Global("crypto", crypto.Crypto{}).
		Global("URL", new(url.URL)).
		Global("URLSearchParams", new(url.URLSearchParams)).
		Global("TextEncoder", new(encoding.TextEncoder)).
		Global("TextDecoder", new(encoding.TextDecoder)).
		Global("base64", encoding.Base64{}).
		Global("navigator", navigator.Navigator{}).
		Global("os", os.OS{}).
		Global("fs", fs.FS{}).
		Source(AssertModule, func() string { return assertSource })
}

// Registry returns the shared default registry.
var Registry = sync.OnceValue(func() *modules.Registry { return Builder().Build() })
