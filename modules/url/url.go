// Package url implements the URL and URLSearchParams globals.
//
// A URL owns its parsed value. The URLSearchParams returned by url.searchParams
// is a view holding a back-reference to that value and the version it last
// observed: every mutation through either side bumps the version, and a stale
// view re-reads the query before use.
package url

import (
	"errors"
	pkgurl "net/url"
	"reflect"
	"strings"

	"github.com/grafana/sobek"
)

// URL is a component of the URL standard, which defines what constitutes
// a valid Uniform Resource Locator and the API that accesses and manipulates URLs.
// https://developer.mozilla.org/en-US/docs/Web/API/URL_API
type URL struct{}

func (URL) Global() {}

func (u *URL) prototype(rt *sobek.Runtime) *sobek.Object {
	p := rt.NewObject()

	accessor := func(name string, get, set any) {
		var setter sobek.Value
		if set != nil {
			setter = rt.ToValue(set)
		}
		_ = p.DefineAccessorProperty(name, rt.ToValue(get), setter, sobek.FLAG_FALSE, sobek.FLAG_TRUE)
	}
	accessor("hash", u.hash, u.setHash)
	accessor("host", u.host, u.setHost)
	accessor("hostname", u.hostname, u.setHostname)
	accessor("href", u.href, u.setHref)
	accessor("origin", u.origin, nil)
	accessor("password", u.password, u.setPassword)
	accessor("pathname", u.pathname, u.setPathname)
	accessor("port", u.port, u.setPort)
	accessor("protocol", u.protocol, u.setProtocol)
	accessor("username", u.username, u.setUsername)
	accessor("search", u.search, u.setSearch)
	accessor("searchParams", u.searchParams, nil)

	_ = p.Set("toString", u.href)
	_ = p.Set("toJSON", u.href)

	_ = p.SetSymbol(sobek.SymToStringTag, "URL")
	return p
}

func (u *URL) constructor(call sobek.ConstructorCall, rt *sobek.Runtime) *sobek.Object {
	if len(call.Arguments) == 0 {
		panic(rt.NewTypeError("URL constructor requires at least 1 argument"))
	}
	parsed, err := parse(call.Argument(0), call.Argument(1))
	if err != nil {
		panic(rt.NewTypeError("Invalid URL: %s", call.Argument(0).String()))
	}
	obj := rt.ToValue(&url{record: &record{url: parsed}}).(*sobek.Object)
	_ = obj.SetPrototype(call.This.Prototype())
	return obj
}

func (u *URL) Instantiate(rt *sobek.Runtime) (sobek.Value, error) {
	proto := u.prototype(rt)
	ctor := rt.ToValue(u.constructor).(*sobek.Object)
	_ = proto.DefineDataProperty("constructor", ctor, sobek.FLAG_FALSE, sobek.FLAG_FALSE, sobek.FLAG_FALSE)
	_ = ctor.Set("prototype", proto)
	_ = ctor.Set("canParse", u.canParse)
	_ = ctor.Set("parse", u.parse)
	return ctor, nil
}

// parse resolves raw against the optional base. Only absolute results are valid.
func parse(raw, base sobek.Value) (*pkgurl.URL, error) {
	var (
		parsed *pkgurl.URL
		err    error
	)
	if base != nil && !sobek.IsUndefined(base) {
		var baseURL *pkgurl.URL
		baseURL, err = pkgurl.Parse(base.String())
		if err != nil {
			return nil, err
		}
		if !baseURL.IsAbs() {
			return nil, errNotAbsolute
		}
		parsed, err = baseURL.Parse(raw.String())
	} else {
		parsed, err = pkgurl.Parse(raw.String())
	}
	if err != nil {
		return nil, err
	}
	if !parsed.IsAbs() {
		return nil, errNotAbsolute
	}
	if parsed.Path == "" && parsed.Host != "" {
		parsed.Path = "/"
	}
	return parsed, nil
}

var (
	typeURL = reflect.TypeOf((*url)(nil))
)

func toURL(rt *sobek.Runtime, value sobek.Value) *url {
	if value.ExportType() == typeURL {
		return value.Export().(*url)
	}
	panic(rt.NewTypeError(`Value of "this" must be of type URL`))
}

// record is the single owned parsed URL. version increases on every mutation.
type record struct {
	url     *pkgurl.URL
	version uint64
}

func (r *record) touch() { r.version++ }

type url struct {
	record *record
	// view is the cached searchParams object, created on first access.
	view *sobek.Object
}

func (*URL) hash(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	if this.record.url.Fragment == "" {
		return rt.ToValue("")
	}
	return rt.ToValue("#" + this.record.url.EscapedFragment())
}

func (*URL) setHash(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	this.record.url.Fragment = strings.TrimPrefix(call.Argument(0).String(), "#")
	this.record.url.RawFragment = ""
	this.record.touch()
	return sobek.Undefined()
}

func (*URL) host(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	return rt.ToValue(this.record.url.Host)
}

func (*URL) setHost(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	this.record.url.Host = call.Argument(0).String()
	this.record.touch()
	return sobek.Undefined()
}

func (*URL) hostname(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	return rt.ToValue(this.record.url.Hostname())
}

func (*URL) setHostname(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	hostname := call.Argument(0).String()
	if port := this.record.url.Port(); port != "" {
		this.record.url.Host = hostname + ":" + port
	} else {
		this.record.url.Host = hostname
	}
	this.record.touch()
	return sobek.Undefined()
}

func (*URL) href(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	return rt.ToValue(this.record.url.String())
}

func (*URL) setHref(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	parsed, err := parse(call.Argument(0), nil)
	if err != nil {
		panic(rt.NewTypeError("Invalid URL: %s", call.Argument(0).String()))
	}
	this.record.url = parsed
	this.record.touch()
	return sobek.Undefined()
}

func (*URL) origin(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	switch this.record.url.Scheme {
	case "http", "https", "ws", "wss", "ftp":
		return rt.ToValue(this.record.url.Scheme + "://" + this.record.url.Host)
	default:
		return rt.ToValue("null")
	}
}

func (*URL) password(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	if this.record.url.User == nil {
		return rt.ToValue("")
	}
	pass, _ := this.record.url.User.Password()
	return rt.ToValue(pass)
}

func (*URL) setPassword(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	username := ""
	if this.record.url.User != nil {
		username = this.record.url.User.Username()
	}
	this.record.url.User = pkgurl.UserPassword(username, call.Argument(0).String())
	this.record.touch()
	return sobek.Undefined()
}

func (*URL) pathname(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	return rt.ToValue(this.record.url.EscapedPath())
}

func (*URL) setPathname(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	p := call.Argument(0).String()
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	this.record.url.Path = p
	this.record.url.RawPath = ""
	this.record.touch()
	return sobek.Undefined()
}

func (*URL) port(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	return rt.ToValue(this.record.url.Port())
}

func (*URL) setPort(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	port := call.Argument(0).String()
	host := this.record.url.Hostname()
	if port != "" {
		this.record.url.Host = host + ":" + port
	} else {
		this.record.url.Host = host
	}
	this.record.touch()
	return sobek.Undefined()
}

func (*URL) protocol(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	return rt.ToValue(this.record.url.Scheme + ":")
}

func (*URL) setProtocol(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	this.record.url.Scheme = strings.TrimSuffix(call.Argument(0).String(), ":")
	this.record.touch()
	return sobek.Undefined()
}

func (*URL) username(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	if this.record.url.User == nil {
		return rt.ToValue("")
	}
	return rt.ToValue(this.record.url.User.Username())
}

func (*URL) setUsername(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	password := ""
	if this.record.url.User != nil {
		password, _ = this.record.url.User.Password()
	}
	this.record.url.User = pkgurl.UserPassword(call.Argument(0).String(), password)
	this.record.touch()
	return sobek.Undefined()
}

func (*URL) search(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	if this.record.url.RawQuery == "" {
		return rt.ToValue("")
	}
	return rt.ToValue("?" + this.record.url.RawQuery)
}

func (*URL) setSearch(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	this.record.url.RawQuery = strings.TrimPrefix(call.Argument(0).String(), "?")
	this.record.url.ForceQuery = false
	this.record.touch()
	return sobek.Undefined()
}

// searchParams returns the view over the query, the same object on every access.
func (*URL) searchParams(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	this := toURL(rt, call.This)
	if this.view == nil {
		view := &urlSearchParams{owner: this.record}
		view.sync()
		ctor, ok := rt.Get("URLSearchParams").(*sobek.Object)
		if !ok {
			panic(rt.NewTypeError("URLSearchParams is not defined"))
		}
		this.view = rt.ToValue(view).(*sobek.Object)
		_ = this.view.SetPrototype(ctor.Get("prototype").ToObject(rt))
	}
	return this.view
}

func (*URL) parse(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	if len(call.Arguments) == 0 {
		panic(rt.NewTypeError("URL.parse requires at least 1 argument"))
	}
	parsed, err := parse(call.Argument(0), call.Argument(1))
	if err != nil {
		return sobek.Null()
	}
	ctor, ok := rt.Get("URL").(*sobek.Object)
	if !ok {
		panic(rt.NewTypeError("URL is not defined"))
	}
	obj := rt.ToValue(&url{record: &record{url: parsed}}).(*sobek.Object)
	_ = obj.SetPrototype(ctor.Get("prototype").ToObject(rt))
	return obj
}

func (*URL) canParse(call sobek.FunctionCall, rt *sobek.Runtime) sobek.Value {
	if len(call.Arguments) == 0 {
		panic(rt.NewTypeError("URL.canParse requires at least 1 argument"))
	}
	_, err := parse(call.Argument(0), call.Argument(1))
	return rt.ToValue(err == nil)
}

var errNotAbsolute = errors.New("relative URL without a base")
