package script

import (
	"errors"
	"os"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/xequation/xequation/pkg/expr"
	"github.com/xequation/xequation/pkg/value"
)

// Exec runs every statement of code in order. Later statements see the
// names bound by earlier ones, but nothing reaches ctx unless every
// statement succeeds.
func (e *Engine) Exec(code string, ctx *expr.Context) expr.ExecResult {
	b := newBindings(ctx)
	stmts := splitStatements(normalizeNewlines(code))
	for _, st := range stmts {
		var err error
		switch firstWord(st.text) {
		case "import", "from":
			err = e.execImport(st, b)
		case "class":
			err = e.execClass(st, b)
		default:
			err = e.execStarlark(st, b)
		}
		if err != nil {
			b.discard()
			return failure(err)
		}
	}
	b.commit()
	return expr.ExecResult{Status: expr.StatusSuccess}
}

// bindings stages the names bound during one Exec over a context.
type bindings struct {
	ctx     *expr.Context
	pending map[string]value.Value
	order   []string
}

func newBindings(ctx *expr.Context) *bindings {
	return &bindings{ctx: ctx, pending: make(map[string]value.Value)}
}

func (b *bindings) contains(name string) bool {
	if _, ok := b.pending[name]; ok {
		return true
	}
	return b.ctx.Contains(name)
}

func (b *bindings) get(name string) value.Value {
	if v, ok := b.pending[name]; ok {
		return v
	}
	return b.ctx.Get(name)
}

func (b *bindings) set(name string, v value.Value) {
	if old, ok := b.pending[name]; ok {
		old.Release()
	} else {
		b.order = append(b.order, name)
	}
	b.pending[name] = v
}

func (b *bindings) commit() {
	for _, name := range b.order {
		b.ctx.Set(name, b.pending[name])
	}
	b.pending, b.order = nil, nil
}

func (b *bindings) discard() {
	for _, name := range b.order {
		v := b.pending[name]
		v.Release()
	}
	b.pending, b.order = nil, nil
}

// Eval evaluates a single expression. Values are converted into the
// evaluation environment, so ctx is never modified.
func (e *Engine) Eval(code string, ctx *expr.Context) expr.EvalResult {
	src := strings.TrimSpace(normalizeNewlines(code))
	x, err := syntax.ParseExpr("<expr>", src, 0)
	if err != nil {
		r := failure(err)
		return expr.EvalResult{Value: value.Null(), Status: r.Status, Message: r.Message}
	}
	env, err := e.environment(newBindings(ctx), identNames(x))
	if err != nil {
		r := failure(err)
		return expr.EvalResult{Value: value.Null(), Status: r.Status, Message: r.Message}
	}
	v, err := starlark.Eval(e.thread("eval"), "<expr>", src, env)
	if err != nil {
		r := failure(err)
		return expr.EvalResult{Value: value.Null(), Status: r.Status, Message: r.Message}
	}
	return expr.EvalResult{
		Value:  ctx.Hooks().New(fromStarlark(v)),
		Status: expr.StatusSuccess,
	}
}

func (e *Engine) execStarlark(st statement, b *bindings) error {
	f, err := syntax.Parse(parseFilename, st.text, 0)
	if err != nil {
		return err
	}
	env, err := e.environment(b, identNames(f))
	if err != nil {
		return err
	}
	globals, err := starlark.ExecFile(e.thread("exec"), parseFilename, st.text, env)
	if err != nil {
		return err
	}
	h := b.ctx.Hooks()
	for _, name := range globals.Keys() {
		b.set(name, h.New(fromStarlark(globals[name])))
	}
	return nil
}

// execImport resolves every module and symbol of st before binding any of
// them.
func (e *Engine) execImport(st statement, b *bindings) error {
	specs, err := parseImportStatement(st)
	if err != nil {
		return kindErrorf("SyntaxError", "%v", err)
	}
	type binding struct {
		name    string
		payload any
	}
	var resolved []binding
	for _, spec := range specs {
		mod, err := e.modules.lookup(spec.module, e.execModule)
		if err != nil {
			if errors.Is(err, errModuleNotFound) {
				return kindErrorf("ModuleNotFoundError", "No module named '%s'", spec.module)
			}
			return kindErrorf("ImportError", "%v", err)
		}
		switch spec.symbol {
		case "":
			resolved = append(resolved, binding{spec.binding(), Object{Starlark: mod}})
		case "*":
			for _, name := range exported(mod) {
				resolved = append(resolved, binding{name, fromStarlark(mod.Members[name])})
			}
		default:
			member, ok := mod.Members[spec.symbol]
			if !ok {
				return kindErrorf("ImportError", "cannot import name '%s' from '%s'", spec.symbol, spec.module)
			}
			resolved = append(resolved, binding{spec.binding(), fromStarlark(member)})
		}
	}

	h := b.ctx.Hooks()
	for _, r := range resolved {
		b.set(r.name, h.New(r.payload))
	}
	return nil
}

func (e *Engine) execClass(st statement, b *bindings) error {
	h, err := parseClassHeader(st.text)
	if err != nil {
		return kindErrorf("SyntaxError", "%v", err)
	}
	body, err := syntax.Parse(parseFilename, h.body, 0)
	if err != nil {
		return err
	}
	names := identNames(body)
	for _, base := range h.bases {
		x, err := syntax.ParseExpr(parseFilename, base, 0)
		if err != nil {
			return err
		}
		names = append(names, identNames(x)...)
	}
	env, err := e.environment(b, names)
	if err != nil {
		return err
	}
	// methods look the class up by name when they run; the entry is
	// filled in once the class exists
	env[h.name] = starlark.None

	thread := e.thread("class " + h.name)
	class := &Class{name: h.name}
	for _, base := range h.bases {
		v, err := starlark.Eval(thread, parseFilename, base, env)
		if err != nil {
			return err
		}
		bc, ok := v.(*Class)
		if !ok {
			return kindErrorf("TypeError", "base of class %s must be a class, not %s", h.name, v.Type())
		}
		class.bases = append(class.bases, bc)
	}
	members, err := starlark.ExecFile(thread, parseFilename, h.body, env)
	if err != nil {
		return err
	}
	class.members = members
	class.Freeze()
	env[h.name] = class
	b.set(h.name, b.ctx.Hooks().New(Object{Starlark: class}))
	return nil
}

// execModule runs a module file found on the search path.
func (e *Engine) execModule(path, name string) (starlark.StringDict, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	e.logger.Debug().Str("module", name).Str("path", path).Msg("Loading module")
	return starlark.ExecFile(e.thread("module "+name), path, src, e.predeclared())
}

// load serves Starlark load() statements inside module files.
func (e *Engine) load(_ *starlark.Thread, module string) (starlark.StringDict, error) {
	mod, err := e.modules.lookup(module, e.execModule)
	if err != nil {
		return nil, err
	}
	return mod.Members, nil
}

func (e *Engine) thread(name string) *starlark.Thread {
	t := &starlark.Thread{
		Name: name,
		Print: func(t *starlark.Thread, msg string) {
			e.logger.Debug().Str("thread", t.Name).Msg(msg)
		},
		Load: e.load,
	}
	if e.maxSteps > 0 {
		t.SetMaxExecutionSteps(e.maxSteps)
	}
	return t
}

func (e *Engine) predeclared() starlark.StringDict {
	e.mu.RLock()
	defer e.mu.RUnlock()
	env := make(starlark.StringDict, len(e.builtins))
	for k, v := range e.builtins {
		env[k] = v
	}
	return env
}

// environment builds the predeclared dictionary for a statement: the
// engine builtins plus every binding the statement mentions.
func (e *Engine) environment(b *bindings, names []string) (starlark.StringDict, error) {
	env := e.predeclared()
	for _, name := range names {
		if _, builtin := env[name]; builtin || !b.contains(name) {
			continue
		}
		sv, err := toStarlark(b.get(name))
		if err != nil {
			return nil, kindErrorf("TypeError", "cannot use %s: %v", name, err)
		}
		env[name] = sv
	}
	return env, nil
}

// identNames lists every identifier in n. Resolution is left to the
// interpreter; extra names only widen the environment.
func identNames(n syntax.Node) []string {
	seen := make(map[string]bool)
	var names []string
	syntax.Walk(n, func(n syntax.Node) bool {
		if id, ok := n.(*syntax.Ident); ok && !seen[id.Name] {
			seen[id.Name] = true
			names = append(names, id.Name)
		}
		return true
	})
	return names
}
