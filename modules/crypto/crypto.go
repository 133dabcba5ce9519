// Package crypto the Web Crypto subset available to scripts
package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/js"
)

// maxRandomBytes is the getRandomValues quota.
const maxRandomBytes = 65536

// Crypto js global
type Crypto struct{}

// Instantiate returns module instance
func (c Crypto) Instantiate(rt *sobek.Runtime) (sobek.Value, error) {
	ret := rt.NewObject()
	_ = ret.Set("randomUUID", c.randomUUID)
	_ = ret.Set("getRandomValues", c.getRandomValues)
	return ret, nil
}

func (Crypto) Global() {}

func (Crypto) randomUUID(_ sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	id, err := uuid.NewRandom()
	if err != nil {
		return js.Settle(rt, js.Fail(err))
	}
	return js.Settle(rt, js.Ok(id.String()))
}

// getRandomValues fills an integer typed array in place and returns it.
func (Crypto) getRandomValues(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	arg := call.Argument(0)
	obj, ok := arg.(*sobek.Object)
	if !ok || !isIntegerArray(obj.Export()) {
		panic(rt.NewTypeError("getRandomValues: argument must be an integer typed array"))
	}
	buffer, ok := obj.Get("buffer").Export().(sobek.ArrayBuffer)
	if !ok {
		panic(rt.NewTypeError("getRandomValues: argument must be an integer typed array"))
	}
	offset := obj.Get("byteOffset").ToInteger()
	length := obj.Get("byteLength").ToInteger()
	if length > maxRandomBytes {
		return js.Settle(rt, js.Result{Kind: js.Other,
			Err: fmt.Errorf("getRandomValues: byte length %d exceeds %d", length, maxRandomBytes)})
	}
	if _, err := rand.Read(buffer.Bytes()[offset : offset+length]); err != nil {
		js.Throw(rt, err)
	}
	return arg
}

func isIntegerArray(v any) bool {
	switch v.(type) {
	case []int8, []uint8, []int16, []uint16, []int32, []uint32, []int64, []uint64:
		return true
	default:
		return false
	}
}
