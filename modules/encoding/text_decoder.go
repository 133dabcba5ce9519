package encoding

import (
	"bytes"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/grafana/sobek"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextDecoder a decoder for a specific text encoding, such as
// UTF-8, ISO-8859-2, KOI8-R, GBK, etc. Labels follow the WHATWG Encoding Standard.
// https://developer.mozilla.org/en-US/docs/Web/API/TextDecoder
type TextDecoder struct{}

func (t *TextDecoder) prototype(rt *sobek.Runtime) *sobek.Object {
	p := rt.NewObject()
	_ = p.DefineAccessorProperty("encoding", rt.ToValue(t.encoding), nil, sobek.FLAG_FALSE, sobek.FLAG_TRUE)
	_ = p.DefineAccessorProperty("fatal", rt.ToValue(t.fatal), nil, sobek.FLAG_FALSE, sobek.FLAG_TRUE)
	_ = p.DefineAccessorProperty("ignoreBOM", rt.ToValue(t.ignoreBOM), nil, sobek.FLAG_FALSE, sobek.FLAG_TRUE)
	_ = p.Set("decode", t.decode)
	_ = p.SetSymbol(sobek.SymToStringTag, func(sobek.FunctionCall) sobek.Value { return rt.ToValue("TextDecoder") })
	return p
}

func (t *TextDecoder) constructor(call sobek.ConstructorCall, rt *sobek.Runtime) *sobek.Object {
	label := "utf-8"
	if v := call.Argument(0); !sobek.IsUndefined(v) {
		label = strings.ToLower(strings.TrimSpace(v.String()))
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		panic(rt.NewTypeError("unsupported encoding: %s", label))
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = label
	}

	instance := &textDecoder{encoding: name, enc: enc}
	if v := call.Argument(1); !sobek.IsUndefined(v) && !sobek.IsNull(v) {
		opts := v.ToObject(rt)
		if v := opts.Get("fatal"); v != nil {
			instance.fatal = v.ToBoolean()
		}
		if v := opts.Get("ignoreBOM"); v != nil {
			instance.ignoreBOM = v.ToBoolean()
		}
	}

	obj := rt.ToValue(instance).(*sobek.Object)
	_ = obj.SetPrototype(call.This.Prototype())
	return obj
}

func (*TextDecoder) encoding(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	return rt.ToValue(toTextDecoder(rt, call.This).encoding)
}

func (*TextDecoder) fatal(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	return rt.ToValue(toTextDecoder(rt, call.This).fatal)
}

func (*TextDecoder) ignoreBOM(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	return rt.ToValue(toTextDecoder(rt, call.This).ignoreBOM)
}

func (*TextDecoder) decode(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toTextDecoder(rt, call.This)
	var input []byte
	if v := call.Argument(0); !sobek.IsUndefined(v) {
		switch t := v.Export().(type) {
		case []byte:
			input = t
		case sobek.ArrayBuffer:
			input = t.Bytes()
		default:
			panic(rt.NewTypeError("The provided value is not of type '(ArrayBuffer or ArrayBufferView)'"))
		}
	}
	text, err := this.decodeBytes(input)
	if err != nil {
		panic(rt.NewTypeError(err.Error()))
	}
	return rt.ToValue(text)
}

type textDecoder struct {
	encoding  string
	enc       encoding.Encoding
	fatal     bool
	ignoreBOM bool
}

type decodeError string

func (e decodeError) Error() string { return string(e) }

func (d *textDecoder) decodeBytes(input []byte) (string, error) {
	if len(input) == 0 {
		return "", nil
	}
	if d.encoding == "utf-8" {
		if !d.ignoreBOM {
			input = bytes.TrimPrefix(input, utf8BOM)
		}
		if utf8.Valid(input) {
			return string(input), nil
		}
		if d.fatal {
			return "", decodeError("The encoded data was not valid for encoding " + d.encoding)
		}
	}
	result, err := d.enc.NewDecoder().Bytes(input)
	if err != nil {
		return "", decodeError("The encoded data was not valid for encoding " + d.encoding)
	}
	if d.fatal && bytes.ContainsRune(result, utf8.RuneError) {
		return "", decodeError("The encoded data was not valid for encoding " + d.encoding)
	}
	return string(result), nil
}

var typeTextDecoder = reflect.TypeOf((*textDecoder)(nil))

func toTextDecoder(rt *sobek.Runtime, value sobek.Value) *textDecoder {
	if value.ExportType() == typeTextDecoder {
		return value.Export().(*textDecoder)
	}
	panic(rt.NewTypeError(`Value of "this" must be of type TextDecoder`))
}

func (t *TextDecoder) Instantiate(rt *sobek.Runtime) (sobek.Value, error) {
	proto := t.prototype(rt)
	ctor := rt.ToValue(t.constructor).(*sobek.Object)
	_ = proto.DefineDataProperty("constructor", ctor, sobek.FLAG_FALSE, sobek.FLAG_FALSE, sobek.FLAG_FALSE)
	_ = ctor.Set("prototype", proto)
	return ctor, nil
}

func (*TextDecoder) Global() {}
