package capture

import (
	"runtime/debug"
	"strings"
	"sync"
)

// versionLookup resolves a module's installed version the way the original
// walked pkg_resources.working_set: search the exact name, then strip
// trailing slash-separated path components (Go module paths) and retry
// until a match or the name has no slash left.
// It memoizes per Capture instance so repeated frames referencing the same
// package only search once.
type versionLookup struct {
	once    sync.Once
	modules map[string]string
	cache   sync.Map // string -> string
}

func (v *versionLookup) build() {
	v.once.Do(func() {
		v.modules = map[string]string{}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		v.modules[info.Main.Path] = info.Main.Version
		for _, dep := range info.Deps {
			v.modules[dep.Path] = dep.Version
		}
	})
}

// lookup resolves the installed version for a module name, or "" if none of
// its slash-separated path prefixes match a known dependency.
func (v *versionLookup) lookup(module string) (string, bool) {
	v.build()

	if cached, ok := v.cache.Load(module); ok {
		if cached == "" {
			return "", false
		}
		return cached.(string), true
	}

	name := module
	for {
		if version, ok := v.modules[name]; ok {
			v.cache.Store(module, version)
			return version, true
		}
		idx := strings.LastIndex(name, "/")
		if idx < 0 {
			break
		}
		name = name[:idx]
	}

	v.cache.Store(module, "")
	return "", false
}

// lookupVersions resolves versions for a set of module names, deduplicating
// within the call the way the original's check_list/libs memoization does.
func (v *versionLookup) lookupVersions(modules []string) map[string]string {
	out := map[string]string{}
	seen := map[string]bool{}
	for _, m := range modules {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		if version, ok := v.lookup(m); ok {
			out[m] = version
		}
	}
	return out
}
