package script

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xequation/xequation/pkg/expr"
	"github.com/xequation/xequation/pkg/value"
)

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(opts...)
	require.NoError(t, err)
	return e
}

func requireParseError(t *testing.T, err error, code expr.ParseErrorCode) {
	t.Helper()
	var pe *expr.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, code, pe.Code, pe.Error())
}

func TestParseSingleStatement_Assignment(t *testing.T) {
	e := newEngine(t)

	r, err := e.ParseSingleStatement("a = b + c")
	require.NoError(t, err)
	require.Len(t, r.Declarations, 1)

	d := r.Declarations[0]
	assert.Equal(t, "a", d.Name)
	assert.Equal(t, []string{"b", "c"}, d.Dependencies)
	assert.Equal(t, expr.TypeVariable, d.Type)
	assert.Equal(t, "a = b + c", d.Content)
}

func TestParseSingleStatement_ImportList(t *testing.T) {
	e := newEngine(t)

	r, err := e.ParseSingleStatement("import os, math")
	require.NoError(t, err)
	require.Len(t, r.Declarations, 2)

	assert.Equal(t, "os", r.Declarations[0].Name)
	assert.Equal(t, "import os", r.Declarations[0].Content)
	assert.Equal(t, expr.TypeImport, r.Declarations[0].Type)
	assert.Empty(t, r.Declarations[0].Dependencies)

	assert.Equal(t, "math", r.Declarations[1].Name)
	assert.Equal(t, "import math", r.Declarations[1].Content)
	assert.Equal(t, expr.TypeImport, r.Declarations[1].Type)
	assert.Empty(t, r.Declarations[1].Dependencies)
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code expr.ParseErrorCode
	}{
		{"bare expression", "a+b", expr.ParseErrUnsupported},
		{"syntax error", "b = te+", expr.ParseErrSyntax},
		{"empty", "", expr.ParseErrEmpty},
		{"comment only", "# nothing here", expr.ParseErrEmpty},
		{"tuple target", "a, b = 1, 2", expr.ParseErrUnsupported},
		{"augmented", "a += 1", expr.ParseErrUnsupported},
		{"attribute target", "a.b = 1", expr.ParseErrUnsupported},
		{"load", `load("m", "x")`, expr.ParseErrUnsupported},
		{"builtin variable", "print = 1", expr.ParseErrBuiltinName},
		{"builtin function", "def len(x):\n    return 0", expr.ParseErrBuiltinName},
		{"builtin import alias", "from math import sqrt as max", expr.ParseErrBuiltinName},
		{"self reference", "a = a + 1", expr.ParseErrSelfReference},
		{"recursive function", "def f(n):\n    return f(n - 1)", expr.ParseErrSelfReference},
		{"class as its own base", "class Node(Node):\n    x = 1", expr.ParseErrSelfReference},
		{"class member reads class", "class Node:\n    kind = Node", expr.ParseErrSelfReference},
		{"class default reads class", "class Node:\n    def make(self, k=Node):\n        return k", expr.ParseErrSelfReference},
		{"dotted import", "import os.path", expr.ParseErrImport},
		{"unknown star import", "from nowhere import *", expr.ParseErrImport},
		{"class without colon", "class A\n    x = 1", expr.ParseErrSyntax},
		{"class with statement body", "class A:\n    print(1)", expr.ParseErrUnsupported},
	}

	e := newEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Parse(tt.src)
			require.Error(t, err)
			requireParseError(t, err, tt.code)
		})
	}
	assert.Equal(t, 0, e.CacheSize(), "failed parses must not be cached")
}

func TestParse_FunctionDependencies(t *testing.T) {
	e := newEngine(t)

	r, err := e.ParseSingleStatement("def f(x, y=z):\n    t = x + w\n    return [t * k for k in ks]")
	require.NoError(t, err)
	require.Len(t, r.Declarations, 1)

	d := r.Declarations[0]
	assert.Equal(t, "f", d.Name)
	assert.Equal(t, expr.TypeFunction, d.Type)
	assert.ElementsMatch(t, []string{"z", "w", "ks"}, d.Dependencies)
}

func TestParse_ExcludesBuiltinsAndComprehensionNames(t *testing.T) {
	e := newEngine(t)

	r, err := e.ParseSingleStatement("s = [len(x) * k for x in items if x != None]")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"k", "items"}, r.Declarations[0].Dependencies)
}

func TestParse_AttributeAndKeywordNamesAreNotDependencies(t *testing.T) {
	e := newEngine(t)

	r, err := e.ParseSingleStatement("p = point.x + dict(x=y)['x']")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"point", "y"}, r.Declarations[0].Dependencies)
}

func TestParse_FromImport(t *testing.T) {
	e := newEngine(t)

	r, err := e.ParseSingleStatement("from math import sqrt as root, pi")
	require.NoError(t, err)
	require.Len(t, r.Declarations, 2)
	assert.Equal(t, "root", r.Declarations[0].Name)
	assert.Equal(t, "from math import sqrt as root", r.Declarations[0].Content)
	assert.Equal(t, expr.TypeImportFrom, r.Declarations[0].Type)
	assert.Equal(t, "pi", r.Declarations[1].Name)
}

func TestParse_StarImportExpands(t *testing.T) {
	e := newEngine(t)

	r, err := e.ParseSingleStatement("from math import *")
	require.NoError(t, err)

	names := r.Names()
	assert.Contains(t, names, "sqrt")
	assert.Contains(t, names, "pi")
	for _, d := range r.Declarations {
		assert.Equal(t, expr.TypeImportFrom, d.Type)
		assert.Equal(t, "from math import "+d.Name, d.Content)
	}
}

func TestParse_Class(t *testing.T) {
	e := newEngine(t)

	r, err := e.ParseSingleStatement("class Point(Base):\n    scale = factor\n    def __init__(self, x):\n        self.x = x + offset")
	require.NoError(t, err)
	require.Len(t, r.Declarations, 1)

	d := r.Declarations[0]
	assert.Equal(t, "Point", d.Name)
	assert.Equal(t, expr.TypeClass, d.Type)
	assert.ElementsMatch(t, []string{"Base", "factor", "offset"}, d.Dependencies)
}

func TestParse_ClassMethodMayNameItsClass(t *testing.T) {
	e := newEngine(t)

	r, err := e.ParseSingleStatement("class Node:\n    def child(self):\n        return Node(parent=self, depth=limit)")
	require.NoError(t, err)
	require.Len(t, r.Declarations, 1)
	assert.Equal(t, []string{"limit"}, r.Declarations[0].Dependencies)
}

func TestParse_MultipleStatements(t *testing.T) {
	e := newEngine(t)

	r, err := e.Parse("a = 1\nb = a * 2; c = b")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Statements)
	assert.Equal(t, []string{"a", "b", "c"}, r.Names())
	assert.Equal(t, []string{"a"}, r.Declarations[1].Dependencies)

	_, err = e.ParseSingleStatement("a = 1\nb = a * 2")
	requireParseError(t, err, expr.ParseErrMultiple)
}

func TestParse_ErrorLine(t *testing.T) {
	e := newEngine(t)

	_, err := e.Parse("a = 1\n\nb = a +")
	var pe *expr.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Line)
	assert.Equal(t, "b = a +", pe.Statement)
}

func TestParse_Idempotent(t *testing.T) {
	e := newEngine(t)

	first, err := e.Parse("total = price * qty")
	require.NoError(t, err)
	second, err := e.Parse("total = price * qty")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, e.CacheSize())

	second.Declarations[0].Dependencies[0] = "changed"
	third, err := e.Parse("total = price * qty")
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestParse_RoundTrip(t *testing.T) {
	e := newEngine(t)

	for _, src := range []string{
		"a = b + c",
		"import os, math",
		"import os.path as osp",
		"from math import sqrt as root, pi",
		"def f(x):\n    return x * k",
		"class A(B):\n    x = y",
	} {
		r, err := e.ParseSingleStatement(src)
		require.NoError(t, err, src)
		for _, d := range r.Declarations {
			again, err := e.ParseSingleStatement(d.Content)
			require.NoError(t, err, d.Content)
			require.Len(t, again.Declarations, 1)
			assert.Equal(t, d.Name, again.Declarations[0].Name)
			assert.Equal(t, d.Type, again.Declarations[0].Type)
			assert.Equal(t, d.Dependencies, again.Declarations[0].Dependencies)
		}
	}
}

func TestEngine_CacheEviction(t *testing.T) {
	e := newEngine(t)
	e.SetMaxCacheSize(2)

	for _, src := range []string{"t=expr1", "t=expr2", "t=expr1", "t=expr3"} {
		_, err := e.Parse(src)
		require.NoError(t, err)
		assert.LessOrEqual(t, e.CacheSize(), 2)
	}
	assert.Equal(t, 2, e.CacheSize())
	assert.Equal(t, []string{"t=expr1", "t=expr3"}, e.cache.Keys())

	e.ClearCache()
	assert.Equal(t, 0, e.CacheSize())
}

func TestEngine_CacheIsWhitespaceSensitive(t *testing.T) {
	e := newEngine(t)

	_, err := e.Parse("a = b")
	require.NoError(t, err)
	_, err = e.Parse("a = b ")
	require.NoError(t, err)
	assert.Equal(t, 2, e.CacheSize())
}

func TestExec_Variables(t *testing.T) {
	e := newEngine(t)
	ctx := e.NewContext()

	r := e.Exec("a = 2\nb = a * 3; c = str(b)", ctx)
	require.True(t, r.OK(), r.Message)

	b, err := value.Cast[int64](ctx.Get("b"))
	require.NoError(t, err)
	assert.Equal(t, int64(6), b)
	assert.Equal(t, "'6'", ctx.Get("c").String())
}

func TestExec_FailureWritesNothing(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"import list", "import math, nosuchmod"},
		{"from import", "from math import pi, nosuchname"},
		{"statements", "a = 1\nb = missing + 1"},
		{"class then error", "class K:\n    z = 0\nc = 1 / 0"},
	}

	e := newEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := e.NewContext()
			ctx.Set("keep", ctx.Hooks().New(int64(7)))

			r := e.Exec(tt.src, ctx)
			assert.False(t, r.OK())
			assert.Equal(t, []string{"keep"}, ctx.Keys())
			assert.Equal(t, "7", ctx.Get("keep").String())
		})
	}
}

func TestExec_ErrorClassification(t *testing.T) {
	tests := []struct {
		src    string
		status expr.Status
	}{
		{"x = 1 / 0", expr.StatusZeroDivisionError},
		{"x = 1 // 0", expr.StatusZeroDivisionError},
		{"x = missing + 1", expr.StatusNameError},
		{"x = 1 + 'a'", expr.StatusTypeError},
		{"x = {'a': 1}['b']", expr.StatusKeyError},
		{"x = [1][5]", expr.StatusIndexError},
		{"x = (1).foo", expr.StatusAttributeError},
		{"x = 1 +", expr.StatusSyntaxError},
		{"x = int('abc')", expr.StatusValueError},
		{`x = fail("KeyError: custom")`, expr.StatusKeyError},
		{"x = chr(-1)", expr.StatusValueError},
		{"import nosuchmodule", expr.StatusValueError},
		{"from math import nosuchname", expr.StatusValueError},
	}

	e := newEngine(t)
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			ctx := e.NewContext()
			r := e.Exec(tt.src, ctx)
			assert.Equal(t, tt.status, r.Status, r.Message)
			assert.NotEmpty(t, r.Message)
			assert.False(t, ctx.Contains("x"))
		})
	}
}

func TestExec_MaxSteps(t *testing.T) {
	e := newEngine(t, WithMaxSteps(1000))
	ctx := e.NewContext()

	r := e.Exec("x = [i for i in range(100000)]", ctx)
	assert.Equal(t, expr.StatusOverflowError, r.Status, r.Message)
}

func TestExec_FunctionsUseContext(t *testing.T) {
	e := newEngine(t)
	ctx := e.NewContext()

	require.True(t, e.Exec("k = 10", ctx).OK())
	require.True(t, e.Exec("def scale(x):\n    return x * k", ctx).OK())

	r := e.Eval("scale(4)", ctx)
	require.True(t, r.OK(), r.Message)
	assert.Equal(t, "40", r.Value.String())
}

func TestExec_Imports(t *testing.T) {
	e := newEngine(t)
	ctx := e.NewContext()

	r := e.Exec("import math\nr = math.sqrt(16.0)\nfrom math import pi as p", ctx)
	require.True(t, r.OK(), r.Message)

	root, err := value.Cast[float64](ctx.Get("r"))
	require.NoError(t, err)
	assert.Equal(t, 4.0, root)
	assert.True(t, value.Is[float64](ctx.Get("p")))
	assert.True(t, value.Is[Object](ctx.Get("math")))
}

func TestExec_SearchPathModule(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util"+ModuleExtension),
		[]byte("def double(x):\n    return 2 * x\n\n_hidden = 1\n"), 0o644))

	e := newEngine(t, WithSearchPaths(dir))
	assert.Contains(t, e.ModuleNames(), "util")

	ctx := e.NewContext()
	r := e.Exec("from util import double\ny = double(21)", ctx)
	require.True(t, r.OK(), r.Message)
	assert.Equal(t, "42", ctx.Get("y").String())

	star, err := e.Parse("from util import *")
	require.NoError(t, err)
	assert.Equal(t, []string{"double"}, star.Names())
}

func TestExec_AllowedModules(t *testing.T) {
	e := newEngine(t, WithAllowedModules("math"))
	ctx := e.NewContext()

	assert.True(t, e.Exec("import math", ctx).OK())
	r := e.Exec("import json", ctx)
	assert.Equal(t, expr.StatusValueError, r.Status)
}

func TestExec_Classes(t *testing.T) {
	e := newEngine(t)
	ctx := e.NewContext()

	r := e.Exec("class Point:\n    def __init__(self, x, y):\n        self.x = x\n        self.y = y\n    def norm1(self):\n        return self.x + self.y", ctx)
	require.True(t, r.OK(), r.Message)

	r = e.Exec("p = Point(1, 2)\nn = p.norm1()", ctx)
	require.True(t, r.OK(), r.Message)
	assert.Equal(t, "3", ctx.Get("n").String())

	r = e.Exec("class Point3(Point):\n    z = 0", ctx)
	require.True(t, r.OK(), r.Message)
	ev := e.Eval("Point3(1, 2).norm1()", ctx)
	require.True(t, ev.OK(), ev.Message)
	assert.Equal(t, "3", ev.Value.String())

	r = e.Exec("class Bad(k):\n    z = 0", ctx)
	assert.Equal(t, expr.StatusNameError, r.Status)
}

func TestExec_ClassMethodBuildsOwnClass(t *testing.T) {
	e := newEngine(t)
	ctx := e.NewContext()

	r := e.Exec("class Node:\n    def child(self):\n        return Node(depth=self.depth + 1)", ctx)
	require.True(t, r.OK(), r.Message)

	ev := e.Eval("Node(depth=1).child().child().depth", ctx)
	require.True(t, ev.OK(), ev.Message)
	assert.Equal(t, "3", ev.Value.String())
}

func TestExec_ClassWithoutInit(t *testing.T) {
	e := newEngine(t)
	ctx := e.NewContext()

	require.True(t, e.Exec("class Settings:\n    debug = False", ctx).OK())

	r := e.Eval("Settings(level=3).level", ctx)
	require.True(t, r.OK(), r.Message)
	assert.Equal(t, "3", r.Value.String())

	r = e.Eval("Settings(3)", ctx)
	assert.Equal(t, expr.StatusTypeError, r.Status)
}

func TestEval_DoesNotMutateContext(t *testing.T) {
	e := newEngine(t)
	ctx := e.NewContext()
	require.True(t, e.Exec("a = [1, 2]", ctx).OK())

	r := e.Eval("a.append(3)", ctx)
	require.True(t, r.OK(), r.Message)
	assert.True(t, r.Value.IsNull())

	assert.Equal(t, "[1, 2]", ctx.Get("a").String())
	assert.Equal(t, []string{"a"}, ctx.Keys())
}

func TestEval_Errors(t *testing.T) {
	e := newEngine(t)
	ctx := e.NewContext()

	r := e.Eval("a +", ctx)
	assert.Equal(t, expr.StatusSyntaxError, r.Status)
	assert.True(t, r.Value.IsNull())

	r = e.Eval("undefined_name", ctx)
	assert.Equal(t, expr.StatusNameError, r.Status)
}

func TestExec_PrintGoesToLogger(t *testing.T) {
	var buf bytes.Buffer
	e := newEngine(t, WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

	r := e.Exec(`print("hello from starlark")`, e.NewContext())
	require.True(t, r.OK(), r.Message)
	assert.Contains(t, buf.String(), "hello from starlark")
}

func TestEngine_Builtins(t *testing.T) {
	e := newEngine(t)

	assert.True(t, e.IsBuiltin("len"))
	assert.True(t, e.IsBuiltin("struct"))
	assert.False(t, e.IsBuiltin("total"))

	e.RegisterBuiltin("clamp", e.predeclared()["struct"])
	assert.True(t, e.IsBuiltin("clamp"))
	_, err := e.Parse("clamp = 1")
	requireParseError(t, err, expr.ParseErrBuiltinName)
}

func TestExec_ValuesReportToContextHooks(t *testing.T) {
	hooks := value.NewHooks()
	var constructs int
	require.NoError(t, hooks.Register(reflect.TypeFor[float64](), nil, func(op value.Op, _ reflect.Type) {
		if op == value.OpConstruct {
			constructs++
		}
	}))

	e := newEngine(t, WithHooks(hooks))
	ctx := e.NewContext()
	require.True(t, e.Exec("x = 1.5", ctx).OK())
	assert.Equal(t, 1, constructs)
}

func TestParseMultipleStatements(t *testing.T) {
	e := newEngine(t)

	results, err := e.ParseMultipleStatements("a = 1\nimport math, json\nb = a")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"a"}, results[0].Names())
	assert.Equal(t, []string{"math", "json"}, results[1].Names())
	assert.Equal(t, []string{"a"}, results[2].Declarations[0].Dependencies)
	assert.Equal(t, 3, e.CacheSize())

	_, err = e.ParseMultipleStatements("a = 1\n\nb = +")
	var pe *expr.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Line)
}
