// Package script is the Starlark-backed expr.Engine.
//
// Statements follow Starlark syntax with a thin front end for the
// declaration forms Starlark lacks: "import m [as n]", "from m import a
// [as b]" / "*", and "class Name(Base): ...". Imports resolve against
// modules registered in Go (math, json, time by default) and .star files
// found on the engine's search paths.
package script

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/xequation/xequation/pkg/expr"
	"github.com/xequation/xequation/pkg/value"
)

// Engine parses and evaluates equations with Starlark. It owns its parse
// cache and module registry; callers that share an Engine between
// goroutines must serialize Exec and Eval against the same context.
type Engine struct {
	hooks    *value.Hooks
	cache    *expr.ParseCache
	modules  *modules
	logger   zerolog.Logger
	maxSteps uint64

	mu       sync.RWMutex
	builtins starlark.StringDict
}

var _ expr.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithHooks sets the registry that values produced by the engine report to.
func WithHooks(hooks *value.Hooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithLogger sets the logger used for print() output and module loading.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithCacheSize sets the parse cache capacity.
func WithCacheSize(size int) Option {
	return func(e *Engine) { e.cache.Resize(size) }
}

// WithSearchPaths sets the directories searched for .star modules.
func WithSearchPaths(paths ...string) Option {
	return func(e *Engine) { e.modules.setSearchPaths(paths) }
}

// WithAllowedModules restricts imports to the named modules.
func WithAllowedModules(names ...string) Option {
	return func(e *Engine) { e.modules.setAllowed(names) }
}

// WithMaxSteps bounds the Starlark steps one Exec or Eval may take.
// Zero means unbounded.
func WithMaxSteps(steps uint64) Option {
	return func(e *Engine) { e.maxSteps = steps }
}

// New creates an engine.
func New(opts ...Option) (*Engine, error) {
	cache, err := expr.NewParseCache(expr.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cache:   cache,
		modules: newModules(),
		logger:  zerolog.Nop(),
		builtins: starlark.StringDict{
			"struct": starlarkstruct.Default,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Hooks returns the registry engine-produced values report to.
func (e *Engine) Hooks() *value.Hooks {
	return e.hooks
}

// NewContext creates a context bound to e.
func (e *Engine) NewContext() *expr.Context {
	return expr.NewContext(e.hooks).Bind(e)
}

// RegisterModule makes members importable under name.
func (e *Engine) RegisterModule(name string, members starlark.StringDict) {
	e.modules.register(name, members)
}

// SetSearchPaths replaces the module search path and forgets modules
// loaded from the previous one.
func (e *Engine) SetSearchPaths(paths ...string) {
	e.modules.setSearchPaths(paths)
}

// ModuleNames lists the importable modules.
func (e *Engine) ModuleNames() []string {
	return e.modules.names()
}

// RegisterBuiltin adds a predeclared name visible to every statement.
// Equations may not declare a builtin's name.
func (e *Engine) RegisterBuiltin(name string, v starlark.Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v.Freeze()
	e.builtins[name] = v
}

// IsBuiltin reports whether name is a Starlark universal or a registered
// builtin.
func (e *Engine) IsBuiltin(name string) bool {
	if starlark.Universe.Has(name) {
		return true
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.builtins[name]
	return ok
}

// Builtins returns every builtin name, sorted.
func (e *Engine) Builtins() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(starlark.Universe)+len(e.builtins))
	for name := range starlark.Universe {
		names = append(names, name)
	}
	for name := range e.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetMaxCacheSize bounds the parse cache.
func (e *Engine) SetMaxCacheSize(size int) {
	evicted := e.cache.Resize(size)
	if evicted > 0 {
		e.logger.Debug().Int("evicted", evicted).Int("size", size).Msg("Parse cache resized")
	}
}

// ClearCache empties the parse cache.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// CacheSize returns the number of cached parse results.
func (e *Engine) CacheSize() int {
	return e.cache.Len()
}

// CacheStats returns parse cache hits and misses.
func (e *Engine) CacheStats() (hits, misses uint64) {
	return e.cache.Stats()
}

// Parse analyzes every statement of code.
func (e *Engine) Parse(code string) (expr.ParseResult, error) {
	if r, ok := e.cache.Get(code); ok {
		return r, nil
	}
	r, err := e.parse(code)
	if err != nil {
		return expr.ParseResult{}, err
	}
	e.cache.Put(code, r)
	return r, nil
}

// ParseSingleStatement analyzes code, which must hold one statement.
func (e *Engine) ParseSingleStatement(code string) (expr.ParseResult, error) {
	r, err := e.Parse(code)
	if err != nil {
		return expr.ParseResult{}, err
	}
	if r.Statements != 1 {
		return expr.ParseResult{}, expr.NewParseError(expr.ParseErrMultiple, "expected a single statement").
			WithStatement(code, 1)
	}
	return r, nil
}

// ParseMultipleStatements parses each statement of code separately, so
// every statement gets its own cache entry and result.
func (e *Engine) ParseMultipleStatements(code string) ([]expr.ParseResult, error) {
	stmts := splitStatements(normalizeNewlines(code))
	if len(stmts) == 0 {
		return nil, expr.NewParseError(expr.ParseErrEmpty, "no statement to parse")
	}
	results := make([]expr.ParseResult, 0, len(stmts))
	for _, st := range stmts {
		r, err := e.Parse(st.text)
		if err != nil {
			var pe *expr.ParseError
			if errors.As(err, &pe) && pe.Line > 0 {
				pe.Line += st.line - 1
			}
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

func (e *Engine) parse(code string) (expr.ParseResult, error) {
	stmts := splitStatements(normalizeNewlines(code))
	if len(stmts) == 0 {
		return expr.ParseResult{}, expr.NewParseError(expr.ParseErrEmpty, "no statement to parse")
	}
	result := expr.ParseResult{Statements: len(stmts)}
	for _, st := range stmts {
		decls, err := e.analyze(st)
		if err != nil {
			return expr.ParseResult{}, err
		}
		result.Declarations = append(result.Declarations, decls...)
	}
	return result, nil
}

func normalizeNewlines(code string) string {
	return strings.ReplaceAll(code, "\r\n", "\n")
}
