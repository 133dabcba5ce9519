// Package navigator the navigator global
package navigator

import (
	"os"
	"runtime"
	"strings"

	"github.com/grafana/sobek"
	"github.com/shiroyk/mdeno/lib"
	"golang.org/x/text/language"
)

// defaultLanguage is reported when the environment names no usable locale.
const defaultLanguage = "en-US"

// Navigator js global
type Navigator struct{}

func (Navigator) Global() {}

// Instantiate returns the read-only navigator object.
func (Navigator) Instantiate(rt *sobek.Runtime) (sobek.Value, error) {
	lang := Language(os.Getenv)
	props := map[string]sobek.Value{
		"userAgent":           rt.ToValue("mdeno/" + lib.Version),
		"language":            rt.ToValue(lang),
		"languages":           rt.NewArray(lang),
		"hardwareConcurrency": rt.ToValue(runtime.NumCPU()),
	}
	if platform := Platform(runtime.GOOS, runtime.GOARCH); platform != "" {
		props["platform"] = rt.ToValue(platform)
	}
	ret := rt.NewObject()
	for name, value := range props {
		if err := ret.DefineDataProperty(name, value, sobek.FLAG_FALSE, sobek.FLAG_FALSE, sobek.FLAG_TRUE); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// Platform returns the navigator.platform string of the target, empty when there is none.
func Platform(goos, goarch string) string {
	switch goos {
	case "darwin":
		return "MacIntel"
	case "windows":
		return "Win32"
	case "linux":
		switch goarch {
		case "amd64":
			return "Linux x86_64"
		case "arm64":
			return "Linux armv81"
		}
	}
	return ""
}

// Language returns the BCP 47 tag of the locale named by LC_ALL, LC_MESSAGES or LANG.
func Language(getenv func(string) string) string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		locale := getenv(key)
		locale, _, _ = strings.Cut(locale, ".")
		locale, _, _ = strings.Cut(locale, "@")
		if locale == "" || locale == "C" || locale == "POSIX" {
			continue
		}
		tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
		if err != nil {
			continue
		}
		return tag.String()
	}
	return defaultLanguage
}
