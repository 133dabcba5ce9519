// Package encoding the TextEncoder, TextDecoder, atob and btoa globals
package encoding

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/grafana/sobek"
)

var (
	errLatin1       = errors.New("btoa: the string contains characters outside of the Latin1 range")
	errInvalidChars = errors.New("atob: the string to be decoded is not correctly encoded")
)

// Base64 installs atob and btoa.
type Base64 struct{}

func (b Base64) Instantiate(rt *sobek.Runtime) (sobek.Value, error) {
	global := rt.GlobalObject()
	_ = global.Set("atob", b.atob)
	_ = global.Set("btoa", b.btoa)
	return nil, nil
}

func (Base64) Global() {}

func (Base64) btoa(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	encoded, err := Btoa(call.Argument(0).String())
	if err != nil {
		panic(rt.NewTypeError(err.Error()))
	}
	return rt.ToValue(encoded)
}

func (Base64) atob(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	decoded, err := Atob(call.Argument(0).String())
	if err != nil {
		panic(rt.NewTypeError(err.Error()))
	}
	return rt.ToValue(decoded)
}

// Btoa encodes a binary string, one byte per character, to base64.
func Btoa(s string) (string, error) {
	data := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return "", errLatin1
		}
		data = append(data, byte(r))
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Atob decodes forgiving base64 into a binary string: ASCII whitespace is
// dropped and the padding is optional.
func Atob(s string) (string, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\f', '\r':
			return -1
		}
		return r
	}, s)
	if len(s)%4 == 0 {
		s = strings.TrimSuffix(s, "=")
		s = strings.TrimSuffix(s, "=")
	}
	if len(s)%4 == 1 || strings.ContainsRune(s, '=') {
		return "", errInvalidChars
	}
	data, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return "", errInvalidChars
	}
	runes := make([]rune, len(data))
	for i, c := range data {
		runes[i] = rune(c)
	}
	return string(runes), nil
}
