package modules

import (
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// remoteSchemes are package schemes a bundler resolves ahead of time.
var remoteSchemes = []string{"jsr:", "npm:"}

const fileScheme = "file://"

// IsRemote reports whether specifier uses a remote package scheme.
func IsRemote(specifier string) bool {
	for _, scheme := range remoteSchemes {
		if strings.HasPrefix(specifier, scheme) {
			return true
		}
	}
	return false
}

// IsRelative reports whether specifier is in the "./" or "../" form.
func IsRelative(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") ||
		specifier == "." || specifier == ".."
}

// IsFileURL reports whether specifier is a file:// URL.
func IsFileURL(specifier string) bool {
	return strings.HasPrefix(specifier, fileScheme)
}

// FileURL converts an absolute filesystem path to its file:// URL form.
func FileURL(p string) string {
	p = filepath.ToSlash(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return fileScheme + p
}

// FilePath converts a file:// URL or an absolute path to a filesystem path.
// The second result is false for every other specifier.
func FilePath(specifier string) (string, bool) {
	switch {
	case IsFileURL(specifier):
		p := strings.TrimPrefix(specifier, fileScheme)
		if runtime.GOOS == "windows" && len(p) > 2 && p[0] == '/' && p[2] == ':' {
			p = p[1:]
		}
		return filepath.FromSlash(p), true
	case filepath.IsAbs(specifier), strings.HasPrefix(specifier, "/"):
		return specifier, true
	default:
		return "", false
	}
}

// Canonical converts a filesystem path (relative to the working directory or absolute)
// into the canonical file:// specifier, following symlinks when the file exists.
func Canonical(p string) (string, error) {
	if IsFileURL(p) {
		p, _ = FilePath(p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return FileURL(abs), nil
}

// join resolves a relative requested name against base.
// isFile decides whether base names a file, in which case its parent is the join root.
func join(base, requested string, isFile func(string) bool) string {
	scheme := ""
	root := base
	if IsFileURL(base) {
		scheme = fileScheme
		root = strings.TrimPrefix(base, fileScheme)
	}
	if root == "" {
		root = "."
	}
	if isFile(base) {
		root = path.Dir(root)
	}
	return scheme + path.Join(root, requested)
}

// rebaseRemote resolves a relative requested name inside the package namespace of a remote base,
// returning the candidate specifiers in lookup order.
//
//	rebaseRemote("jsr:@std/assert@1.0.0/mod.ts", "./equal.ts")
//	// ["jsr:@std/assert@1.0.0/equal.js", "jsr:@std/assert@1.0.0/equal"]
func rebaseRemote(base, requested string) []string {
	i := strings.LastIndex(base, "/")
	if i < 0 {
		return nil
	}
	prefix, dir := packageRoot(base[:i])
	joined := path.Join("/", dir, requested)[1:]
	if ext := path.Ext(joined); ext == ".ts" || ext == ".mts" {
		joined = strings.TrimSuffix(joined, ext) + ".js"
	}
	candidates := []string{prefix + "/" + joined}
	if trimmed := strings.TrimSuffix(joined, ".js"); trimmed != joined {
		candidates = append(candidates, prefix+"/"+trimmed)
	}
	return candidates
}

// packageRoot splits a remote specifier directory into the package identity
// (scheme:@scope/pkg@version) and the directory path inside the package.
func packageRoot(dir string) (prefix, rest string) {
	n := 1
	if at := strings.Index(dir, ":@"); at >= 0 {
		n = 2
	}
	parts := strings.SplitN(dir, "/", n+1)
	if len(parts) <= n {
		return dir, ""
	}
	return strings.Join(parts[:n], "/"), parts[n]
}

// hasExt reports whether the last path element of specifier carries an extension.
func hasExt(specifier string) bool {
	return path.Ext(specifier) != ""
}
