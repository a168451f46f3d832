package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	starjson "go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// ModuleExtension is the file suffix of modules loaded from search paths.
const ModuleExtension = ".star"

// errModuleNotFound is returned when no registered or on-disk module matches.
var errModuleNotFound = errors.New("module not found")

// modules resolves import names to Starlark modules: Go-registered modules
// first, then <dir>/<name>.star under each search path. Loaded files are
// executed once per registry.
type modules struct {
	mu          sync.Mutex
	registered  map[string]*starlarkstruct.Module
	loaded      map[string]*starlarkstruct.Module
	loading     map[string]bool
	searchPaths []string
	allowed     map[string]bool
}

func newModules() *modules {
	return &modules{
		registered: map[string]*starlarkstruct.Module{
			"math": starmath.Module,
			"json": starjson.Module,
			"time": startime.Module,
		},
		loaded:  make(map[string]*starlarkstruct.Module),
		loading: make(map[string]bool),
	}
}

func (m *modules) register(name string, members starlark.StringDict) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members.Freeze()
	m.registered[name] = &starlarkstruct.Module{Name: name, Members: members}
}

func (m *modules) setSearchPaths(paths []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchPaths = append([]string(nil), paths...)
	m.loaded = make(map[string]*starlarkstruct.Module)
}

func (m *modules) setAllowed(names []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(names) == 0 {
		m.allowed = nil
		return
	}
	m.allowed = make(map[string]bool, len(names))
	for _, n := range names {
		m.allowed[n] = true
	}
}

func (m *modules) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	for name := range m.registered {
		seen[name] = true
	}
	for _, dir := range m.searchPaths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ModuleExtension) {
				seen[strings.TrimSuffix(e.Name(), ModuleExtension)] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		if m.allowed == nil || m.allowed[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// lookup returns the module bound to name, loading it from the search path
// with exec when it is not registered.
func (m *modules) lookup(name string, exec func(path, name string) (starlark.StringDict, error)) (*starlarkstruct.Module, error) {
	m.mu.Lock()
	if m.allowed != nil && !m.allowed[name] {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is not an allowed module", errModuleNotFound, name)
	}
	if mod, ok := m.registered[name]; ok {
		m.mu.Unlock()
		return mod, nil
	}
	if mod, ok := m.loaded[name]; ok {
		m.mu.Unlock()
		return mod, nil
	}
	if m.loading[name] {
		m.mu.Unlock()
		return nil, fmt.Errorf("import cycle through module %s", name)
	}
	path := m.find(name)
	if path == "" {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", errModuleNotFound, name)
	}
	m.loading[name] = true
	m.mu.Unlock()

	globals, err := exec(path, name)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.loading, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load module %s: %w", name, err)
	}
	mod := &starlarkstruct.Module{Name: name, Members: globals}
	m.loaded[name] = mod
	return mod, nil
}

// find must be called with mu held.
func (m *modules) find(name string) string {
	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/")) + ModuleExtension
	for _, dir := range m.searchPaths {
		path := filepath.Join(dir, rel)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// exported returns the member names a star import binds, sorted.
func exported(mod *starlarkstruct.Module) []string {
	names := make([]string, 0, len(mod.Members))
	for name := range mod.Members {
		if !strings.HasPrefix(name, "_") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
