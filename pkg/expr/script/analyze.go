package script

import (
	"fmt"

	"go.starlark.net/resolve"
	"go.starlark.net/syntax"

	"github.com/xequation/xequation/pkg/expr"
)

const parseFilename = "<equation>"

// analyze turns one statement into its declarations.
func (e *Engine) analyze(st statement) ([]expr.Declaration, error) {
	var (
		decls []expr.Declaration
		err   error
	)
	switch firstWord(st.text) {
	case "import", "from":
		decls, err = e.analyzeImport(st)
	case "class":
		decls, err = e.analyzeClass(st)
	default:
		decls, err = e.analyzeStarlark(st)
	}
	if err != nil {
		return nil, err
	}
	for _, d := range decls {
		if e.IsBuiltin(d.Name) {
			return nil, expr.NewParseError(expr.ParseErrBuiltinName,
				fmt.Sprintf("%s is a builtin name and cannot be redefined", d.Name)).
				WithStatement(st.text, st.line)
		}
	}
	return decls, nil
}

func (e *Engine) analyzeImport(st statement) ([]expr.Declaration, error) {
	specs, err := parseImportStatement(st)
	if err != nil {
		return nil, err
	}
	var decls []expr.Declaration
	for _, spec := range specs {
		if spec.symbol == "*" {
			mod, err := e.modules.lookup(spec.module, e.execModule)
			if err != nil {
				return nil, expr.NewParseError(expr.ParseErrImport, "cannot resolve star import").
					WithStatement(st.text, st.line).
					WithCause(err)
			}
			for _, name := range exported(mod) {
				member := importSpec{module: spec.module, symbol: name}
				decls = append(decls, expr.Declaration{
					Name:    name,
					Content: member.content(),
					Type:    expr.TypeImportFrom,
				})
			}
			continue
		}
		typ := expr.TypeImport
		if spec.symbol != "" {
			typ = expr.TypeImportFrom
		}
		decls = append(decls, expr.Declaration{
			Name:    spec.binding(),
			Content: spec.content(),
			Type:    typ,
		})
	}
	return decls, nil
}

func (e *Engine) analyzeClass(st statement) ([]expr.Declaration, error) {
	h, err := parseClassHeader(st.text)
	if err != nil {
		return nil, expr.NewParseError(expr.ParseErrSyntax, "invalid class statement").
			WithStatement(st.text, st.line).
			WithCause(err)
	}

	body, err := syntax.Parse(parseFilename, h.body, 0)
	if err != nil {
		return nil, syntaxError(st, err)
	}
	for _, s := range body.Stmts {
		switch s.(type) {
		case *syntax.AssignStmt, *syntax.DefStmt:
		default:
			return nil, expr.NewParseError(expr.ParseErrUnsupported,
				"class body may only contain assignments and function definitions").
				WithStatement(st.text, st.line)
		}
	}

	c := newCollector(e)
	if err := resolve.File(body, c.isPredeclared, c.isUniversal); err != nil {
		return nil, syntaxError(st, err)
	}
	// eager holds the names read while the class is built: bases, member
	// assignments and parameter defaults. Method bodies run after the class
	// is bound and may name it.
	eager := newCollector(e)
	for _, base := range h.bases {
		x, err := syntax.ParseExpr(parseFilename, base, 0)
		if err != nil {
			return nil, syntaxError(st, err)
		}
		if _, err := resolve.Expr(x, c.isPredeclared, c.isUniversal); err != nil {
			return nil, syntaxError(st, err)
		}
		c.walk(x)
		eager.walk(x)
	}
	// Class members resolve as file globals of the body, so they are
	// never free; the class name itself would be.
	c.walk(body)
	for _, s := range body.Stmts {
		if def, ok := s.(*syntax.DefStmt); ok {
			for _, p := range def.Params {
				eager.walk(p)
			}
			continue
		}
		eager.walk(s)
	}
	if eager.seen[h.name] {
		return nil, selfReference(st, h.name)
	}

	var deps []string
	for _, d := range c.free() {
		if d != h.name {
			deps = append(deps, d)
		}
	}
	return []expr.Declaration{{
		Name:         h.name,
		Content:      st.text,
		Dependencies: deps,
		Type:         expr.TypeClass,
	}}, nil
}

func (e *Engine) analyzeStarlark(st statement) ([]expr.Declaration, error) {
	f, err := syntax.Parse(parseFilename, st.text, 0)
	if err != nil {
		return nil, syntaxError(st, err)
	}
	if len(f.Stmts) != 1 {
		return nil, expr.NewParseError(expr.ParseErrMultiple, "expected a single statement").
			WithStatement(st.text, st.line)
	}

	var (
		name  *syntax.Ident
		typ   expr.Type
		unsup string
	)
	switch s := f.Stmts[0].(type) {
	case *syntax.AssignStmt:
		id, ok := s.LHS.(*syntax.Ident)
		switch {
		case s.Op != syntax.EQ:
			unsup = "augmented assignment is not supported"
		case !ok:
			unsup = "assignment target must be a single name"
		default:
			name, typ = id, expr.TypeVariable
		}
	case *syntax.DefStmt:
		name, typ = s.Name, expr.TypeFunction
	case *syntax.ExprStmt:
		unsup = "expression has no assignment target"
	case *syntax.LoadStmt:
		unsup = "load statements are not supported, use import"
	default:
		unsup = "statement does not declare a name"
	}
	if unsup != "" {
		return nil, expr.NewParseError(expr.ParseErrUnsupported, unsup).
			WithStatement(st.text, st.line)
	}

	c := newCollector(e)
	if err := resolve.File(f, c.isPredeclared, c.isUniversal); err != nil {
		return nil, syntaxError(st, err)
	}
	c.walk(f)
	if c.selfRef(name) {
		return nil, selfReference(st, name.Name)
	}
	return []expr.Declaration{{
		Name:         name.Name,
		Content:      st.text,
		Dependencies: c.free(),
		Type:         typ,
	}}, nil
}

// collector gathers the free names of a resolved syntax tree in source
// order. Names the resolver offers as predeclared are free unless they are
// builtins.
type collector struct {
	engine  *Engine
	seen    map[string]bool
	names   []string
	globals []*syntax.Ident
}

func newCollector(e *Engine) *collector {
	return &collector{engine: e, seen: make(map[string]bool)}
}

func (c *collector) isPredeclared(name string) bool {
	return !c.engine.IsBuiltin(name)
}

func (c *collector) isUniversal(name string) bool {
	return c.engine.IsBuiltin(name)
}

func (c *collector) walk(n syntax.Node) {
	syntax.Walk(n, func(n syntax.Node) bool {
		id, ok := n.(*syntax.Ident)
		if !ok {
			return true
		}
		b, ok := id.Binding.(*resolve.Binding)
		if !ok {
			return true
		}
		switch b.Scope {
		case resolve.Predeclared:
			if !c.seen[id.Name] {
				c.seen[id.Name] = true
				c.names = append(c.names, id.Name)
			}
		case resolve.Global:
			c.globals = append(c.globals, id)
		}
		return true
	})
}

// selfRef reports whether any use of a global other than decl was seen.
func (c *collector) selfRef(decl *syntax.Ident) bool {
	for _, id := range c.globals {
		if id != decl {
			return true
		}
	}
	return false
}

func (c *collector) free() []string {
	if len(c.names) == 0 {
		return nil
	}
	return append([]string(nil), c.names...)
}

func syntaxError(st statement, err error) error {
	return expr.NewParseError(expr.ParseErrSyntax, "invalid syntax").
		WithStatement(st.text, st.line).
		WithCause(err)
}

func selfReference(st statement, name string) error {
	return expr.NewParseError(expr.ParseErrSelfReference,
		fmt.Sprintf("%s refers to itself", name)).
		WithStatement(st.text, st.line)
}
