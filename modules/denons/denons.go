// Package denons installs the Deno namespace object and its error classes.
package denons

import (
	"fmt"
	"runtime"

	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/js"
	"github.com/shiroyk/mdeno/lib"
)

// Deno is the global namespace. Later globals add their members to it.
type Deno struct{}

func (Deno) Instantiate(rt *sobek.Runtime) (sobek.Value, error) {
	deno := js.Object(rt, "Deno")
	classes := rt.NewObject()
	for _, kind := range js.ErrorKinds {
		ctor, err := errorClass(rt, string(kind))
		if err != nil {
			return nil, err
		}
		_ = classes.Set(string(kind), ctor)
	}
	if err := js.FreezeObject(rt, classes); err != nil {
		return nil, err
	}
	_ = deno.Set("errors", classes)
	_ = deno.Set("version", map[string]string{
		"mdeno": lib.Version,
		"go":    runtime.Version(),
	})
	return deno, nil
}

func (Deno) Global() {}

// errorClass defines an Error subclass whose name is kind.
func errorClass(rt *sobek.Runtime, kind string) (sobek.Value, error) {
	return rt.RunString(fmt.Sprintf(`(class %[1]s extends Error {
	constructor(message, options) {
		super(message, options);
		this.name = %[1]q;
	}
})`, kind))
}
