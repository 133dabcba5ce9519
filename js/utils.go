package js

import (
	"errors"
	"fmt"
	"iter"

	"github.com/grafana/sobek"
)

// Throw js exception
func Throw(rt *sobek.Runtime, err error) {
	var ex *sobek.Exception
	if errors.As(err, &ex) { //nolint:errorlint
		panic(ex)
	}
	panic(ErrorValue(rt, Fail(err)))
}

// ToBytes tries to return a byte slice from compatible types.
func ToBytes(data any) ([]byte, error) {
	switch dt := data.(type) {
	case []byte:
		return dt, nil
	case string:
		return []byte(dt), nil
	case sobek.ArrayBuffer:
		return dt.Bytes(), nil
	default:
		return nil, fmt.Errorf("expected string, []byte or ArrayBuffer, but got %T, ", data)
	}
}

// Unwrap the sobek.Value to the raw value
func Unwrap(value sobek.Value) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.Export().(type) {
	default:
		return v, nil
	case sobek.ArrayBuffer:
		return v.Bytes(), nil
	case *sobek.Promise:
		switch v.State() {
		case sobek.PromiseStateRejected:
			return nil, errors.New(v.Result().String())
		case sobek.PromiseStateFulfilled:
			return v.Result().Export(), nil
		default:
			return nil, errors.New("unexpected promise pending state")
		}
	}
}

// FreezeObject calls Object.freeze on obj.
func FreezeObject(rt *sobek.Runtime, obj sobek.Value) error {
	global := rt.GlobalObject().Get("Object").ToObject(rt)
	freeze, ok := sobek.AssertFunction(global.Get("freeze"))
	if !ok {
		panic("failed to get the Object.freeze function from the runtime")
	}
	_, err := freeze(sobek.Undefined(), obj)
	return err
}

// New create a new object from the constructor name
func New(rt *sobek.Runtime, name string, args ...sobek.Value) (*sobek.Object, error) {
	ctor := rt.Get(name)
	if ctor == nil {
		panic(rt.NewTypeError("%s is not defined", name))
	}
	return rt.New(ctor, args...)
}

// Object returns the global object property name, creating an empty object when missing.
func Object(rt *sobek.Runtime, name string) *sobek.Object {
	if obj, ok := rt.Get(name).(*sobek.Object); ok {
		return obj
	}
	obj := rt.NewObject()
	_ = rt.Set(name, obj)
	return obj
}

// Iterator returns a JavaScript iterator over the values produced by seq.
func Iterator(rt *sobek.Runtime, seq iter.Seq[any]) sobek.Value {
	var items []any
	for v := range seq {
		items = append(items, v)
	}
	arr := rt.NewArray(items...)
	values, ok := sobek.AssertFunction(arr.Get("values"))
	if !ok {
		panic(rt.NewTypeError("Array.prototype.values is not a function"))
	}
	it, err := values(arr)
	if err != nil {
		Throw(rt, err)
	}
	return it
}
