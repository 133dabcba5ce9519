package url

import (
	"reflect"
	"slices"
	"strings"

	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/js"
)

// URLSearchParams defines utility methods to work with the query string of a URL.
// https://developer.mozilla.org/en-US/docs/Web/API/URLSearchParams
type URLSearchParams struct{}

func (URLSearchParams) Global() {}

func (u *URLSearchParams) prototype(rt *sobek.Runtime) *sobek.Object {
	p := rt.NewObject()
	_ = p.Set("append", u.append)
	_ = p.Set("delete", u.delete)
	_ = p.Set("forEach", u.forEach)
	_ = p.Set("get", u.get)
	_ = p.Set("getAll", u.getAll)
	_ = p.Set("has", u.has)
	_ = p.Set("set", u.set)
	_ = p.Set("sort", u.sort)
	_ = p.Set("keys", u.keys)
	_ = p.Set("values", u.values)
	_ = p.Set("entries", u.entries)
	_ = p.Set("toString", u.toString)
	_ = p.DefineAccessorProperty("size", rt.ToValue(u.size), nil, sobek.FLAG_FALSE, sobek.FLAG_TRUE)
	_ = p.SetSymbol(sobek.SymIterator, u.entries)
	_ = p.SetSymbol(sobek.SymToStringTag, "URLSearchParams")
	return p
}

func (u *URLSearchParams) constructor(call sobek.ConstructorCall, rt *sobek.Runtime) *sobek.Object {
	params := call.Argument(0)

	var ret urlSearchParams
	switch {
	case sobek.IsUndefined(params), sobek.IsNull(params):
	case params.ExportType() == TypeURLSearchParams:
		other := params.Export().(*urlSearchParams)
		other.sync()
		ret.list = slices.Clone(other.list)
	case params.ExportType() != nil && params.ExportType().Kind() == reflect.String:
		// "foo=1&bar=2"
		ret.list = parseQuery(params.String())
	default:
		object := params.ToObject(rt)
		if iterator := object.GetSymbol(sobek.SymIterator); iterator != nil && !sobek.IsUndefined(iterator) {
			// [["foo", "1"], ["bar", "2"]]
			rt.ForOf(params, func(entry sobek.Value) bool {
				var kv []string
				rt.ForOf(entry, func(v sobek.Value) bool {
					kv = append(kv, v.String())
					return true
				})
				if len(kv) != 2 {
					panic(rt.NewTypeError("URLSearchParams: each pair must be a name/value tuple"))
				}
				ret.list = append(ret.list, pair{kv[0], kv[1]})
				return true
			})
			break
		}
		// {foo: "1", bar: "2"}
		for _, key := range object.Keys() {
			ret.list = append(ret.list, pair{key, object.Get(key).String()})
		}
	}

	obj := rt.ToValue(&ret).ToObject(rt)
	_ = obj.SetPrototype(call.This.Prototype())
	return obj
}

func (u *URLSearchParams) Instantiate(rt *sobek.Runtime) (sobek.Value, error) {
	proto := u.prototype(rt)
	ctor := rt.ToValue(u.constructor).(*sobek.Object)
	_ = proto.DefineDataProperty("constructor", ctor, sobek.FLAG_FALSE, sobek.FLAG_FALSE, sobek.FLAG_FALSE)
	_ = ctor.Set("prototype", proto)
	return ctor, nil
}

var (
	TypeURLSearchParams = reflect.TypeOf((*urlSearchParams)(nil))
)

func toURLSearchParams(rt *sobek.Runtime, value sobek.Value) *urlSearchParams {
	if value.ExportType() == TypeURLSearchParams {
		params := value.Export().(*urlSearchParams)
		params.sync()
		return params
	}
	panic(rt.NewTypeError(`Value of "this" must be of type URLSearchParams`))
}

type pair struct{ name, value string }

type urlSearchParams struct {
	list []pair
	// owner is the URL this view reads from, nil for a standalone instance.
	owner *record
	// seen is the owner version the list was read at.
	seen uint64
}

// sync re-reads the owner query when the URL changed since the last read.
func (u *urlSearchParams) sync() {
	if u.owner == nil || (u.list != nil && u.seen == u.owner.version) {
		return
	}
	u.list = parseQuery(u.owner.url.RawQuery)
	if u.list == nil {
		u.list = []pair{}
	}
	u.seen = u.owner.version
}

// commit writes the list back to the owner URL.
func (u *urlSearchParams) commit() {
	if u.owner == nil {
		return
	}
	u.owner.url.RawQuery = u.String()
	u.owner.url.ForceQuery = false
	u.owner.touch()
	u.seen = u.owner.version
}

func (u *urlSearchParams) String() string {
	var buf strings.Builder
	for _, p := range u.list {
		if buf.Len() > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(queryEscape(p.name))
		buf.WriteByte('=')
		buf.WriteString(queryEscape(p.value))
	}
	return buf.String()
}

func parseQuery(query string) []pair {
	var list []pair
	for _, kv := range strings.Split(strings.TrimPrefix(query, "?"), "&") {
		if kv == "" {
			continue
		}
		k, v, _ := strings.Cut(kv, "=")
		list = append(list, pair{queryUnescape(k), queryUnescape(v)})
	}
	return list
}

func (*URLSearchParams) append(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURLSearchParams(rt, call.This)
	this.list = append(this.list, pair{call.Argument(0).String(), call.Argument(1).String()})
	this.commit()
	return sobek.Undefined()
}

func (*URLSearchParams) delete(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURLSearchParams(rt, call.This)
	name := call.Argument(0).String()
	value := call.Argument(1)
	this.list = slices.DeleteFunc(this.list, func(p pair) bool {
		return p.name == name && (sobek.IsUndefined(value) || p.value == value.String())
	})
	this.commit()
	return sobek.Undefined()
}

func (*URLSearchParams) forEach(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURLSearchParams(rt, call.This)
	callback, ok := sobek.AssertFunction(call.Argument(0))
	if !ok {
		panic(rt.NewTypeError("callback is not a function"))
	}

	for _, p := range slices.Clone(this.list) {
		// forEach callback signature: (value, key, this)
		if _, err := callback(call.Argument(1), rt.ToValue(p.value), rt.ToValue(p.name), call.This); err != nil {
			js.Throw(rt, err)
		}
	}
	return sobek.Undefined()
}

func (*URLSearchParams) get(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURLSearchParams(rt, call.This)
	name := call.Argument(0).String()
	for _, p := range this.list {
		if p.name == name {
			return rt.ToValue(p.value)
		}
	}
	return sobek.Null()
}

func (*URLSearchParams) getAll(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURLSearchParams(rt, call.This)
	name := call.Argument(0).String()
	values := make([]any, 0)
	for _, p := range this.list {
		if p.name == name {
			values = append(values, p.value)
		}
	}
	return rt.NewArray(values...)
}

func (*URLSearchParams) has(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURLSearchParams(rt, call.This)
	name := call.Argument(0).String()
	value := call.Argument(1)
	return rt.ToValue(slices.ContainsFunc(this.list, func(p pair) bool {
		return p.name == name && (sobek.IsUndefined(value) || p.value == value.String())
	}))
}

// set replaces the first pair named name and removes the others.
func (*URLSearchParams) set(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURLSearchParams(rt, call.This)
	name := call.Argument(0).String()
	value := call.Argument(1).String()

	found := false
	this.list = slices.DeleteFunc(this.list, func(p pair) bool {
		if p.name != name {
			return false
		}
		if found {
			return true
		}
		found = true
		return false
	})
	if i := slices.IndexFunc(this.list, func(p pair) bool { return p.name == name }); i >= 0 {
		this.list[i].value = value
	} else {
		this.list = append(this.list, pair{name, value})
	}
	this.commit()
	return sobek.Undefined()
}

// sort orders the pairs by name, keeping the relative order of equal names.
func (*URLSearchParams) sort(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURLSearchParams(rt, call.This)
	slices.SortStableFunc(this.list, func(a, b pair) int { return strings.Compare(a.name, b.name) })
	this.commit()
	return sobek.Undefined()
}

func (*URLSearchParams) size(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURLSearchParams(rt, call.This)
	return rt.ToValue(len(this.list))
}

func (*URLSearchParams) toString(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURLSearchParams(rt, call.This)
	return rt.ToValue(this.String())
}

func (*URLSearchParams) keys(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURLSearchParams(rt, call.This)
	return js.Iterator(rt, func(yield func(any) bool) {
		for _, p := range this.list {
			if !yield(p.name) {
				return
			}
		}
	})
}

func (*URLSearchParams) values(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURLSearchParams(rt, call.This)
	return js.Iterator(rt, func(yield func(any) bool) {
		for _, p := range this.list {
			if !yield(p.value) {
				return
			}
		}
	})
}

func (*URLSearchParams) entries(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURLSearchParams(rt, call.This)
	return js.Iterator(rt, func(yield func(any) bool) {
		for _, p := range this.list {
			if !yield(rt.NewArray(p.name, p.value)) {
				return
			}
		}
	})
}
