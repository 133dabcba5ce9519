package encoding

import (
	"unicode/utf8"

	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/js"
)

// TextEncoder takes a stream of code points as input and emits a stream of UTF-8 bytes.
// https://developer.mozilla.org/en-US/docs/Web/API/TextEncoder
type TextEncoder struct{}

func (t *TextEncoder) prototype(rt *sobek.Runtime) *sobek.Object {
	p := rt.NewObject()
	_ = p.DefineAccessorProperty("encoding", rt.ToValue(t.encoding), nil, sobek.FLAG_FALSE, sobek.FLAG_TRUE)
	_ = p.Set("encode", t.encode)
	_ = p.Set("encodeInto", t.encodeInto)
	_ = p.SetSymbol(sobek.SymToStringTag, func(sobek.FunctionCall) sobek.Value { return rt.ToValue("TextEncoder") })
	return p
}

func (t *TextEncoder) constructor(call sobek.ConstructorCall, rt *sobek.Runtime) *sobek.Object {
	obj := rt.NewObject()
	_ = obj.SetPrototype(call.This.Prototype())
	return obj
}

func (*TextEncoder) encoding(_ sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	return rt.ToValue("utf-8")
}

func (*TextEncoder) encode(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	var text string
	if v := call.Argument(0); !sobek.IsUndefined(v) {
		text = v.String()
	}
	ret, err := js.New(rt, "Uint8Array", rt.ToValue(rt.NewArrayBuffer([]byte(text))))
	if err != nil {
		js.Throw(rt, err)
	}
	return ret
}

// encodeInto writes whole characters only; read counts UTF-16 code units.
func (*TextEncoder) encodeInto(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	if len(call.Arguments) < 2 {
		panic(rt.NewTypeError("TextEncoder.encodeInto requires 2 arguments"))
	}
	text := call.Argument(0).String()
	dest, ok := call.Argument(1).Export().([]byte)
	if !ok {
		panic(rt.NewTypeError("argument 2 must be a Uint8Array"))
	}

	read, written := 0, 0
	for _, r := range text {
		n := utf8.RuneLen(r)
		if written+n > len(dest) {
			break
		}
		utf8.EncodeRune(dest[written:], r)
		written += n
		if r > 0xFFFF {
			read += 2
		} else {
			read++
		}
	}

	result := rt.NewObject()
	_ = result.Set("read", read)
	_ = result.Set("written", written)
	return result
}

func (t *TextEncoder) Instantiate(rt *sobek.Runtime) (sobek.Value, error) {
	proto := t.prototype(rt)
	ctor := rt.ToValue(t.constructor).(*sobek.Object)
	_ = proto.DefineDataProperty("constructor", ctor, sobek.FLAG_FALSE, sobek.FLAG_FALSE, sobek.FLAG_FALSE)
	_ = ctor.Set("prototype", proto)
	return ctor, nil
}

func (*TextEncoder) Global() {}
