package script

import (
	"fmt"
	"strings"

	"github.com/xequation/xequation/pkg/expr"
)

// importSpec is one binding introduced by an import statement.
type importSpec struct {
	module string
	symbol string // empty for plain imports, "*" for star imports
	alias  string
}

// binding returns the name the import binds in the context.
func (s importSpec) binding() string {
	switch {
	case s.alias != "":
		return s.alias
	case s.symbol != "":
		return s.symbol
	default:
		return s.module
	}
}

// content reconstructs a single-binding statement for s.
func (s importSpec) content() string {
	var sb strings.Builder
	if s.symbol == "" {
		sb.WriteString("import ")
		sb.WriteString(s.module)
	} else {
		sb.WriteString("from ")
		sb.WriteString(s.module)
		sb.WriteString(" import ")
		sb.WriteString(s.symbol)
	}
	if s.alias != "" {
		sb.WriteString(" as ")
		sb.WriteString(s.alias)
	}
	return sb.String()
}

type importToken struct {
	kind byte // 'n' name, or the punctuation byte itself
	text string
}

func tokenizeImport(text string) ([]importToken, error) {
	var toks []importToken
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\\' && i+1 < len(text) && text[i+1] == '\n':
			i += 2
		case c == '.' || c == ',' || c == '*' || c == '(' || c == ')':
			toks = append(toks, importToken{kind: c, text: string(c)})
			i++
		case isIdentByte(c, false):
			j := i + 1
			for j < len(text) && isIdentByte(text[j], true) {
				j++
			}
			toks = append(toks, importToken{kind: 'n', text: text[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}
	return toks, nil
}

type importParser struct {
	toks []importToken
	pos  int
}

func (p *importParser) peek() importToken {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return importToken{}
}

func (p *importParser) next() importToken {
	t := p.peek()
	p.pos++
	return t
}

func (p *importParser) keyword(word string) bool {
	if t := p.peek(); t.kind == 'n' && t.text == word {
		p.pos++
		return true
	}
	return false
}

func (p *importParser) name() (string, error) {
	t := p.next()
	if t.kind != 'n' || t.text == "as" || t.text == "import" {
		return "", fmt.Errorf("expected a name, got %q", t.text)
	}
	return t.text, nil
}

func (p *importParser) dottedName() (string, error) {
	if p.peek().kind == '.' {
		return "", fmt.Errorf("relative imports are not supported")
	}
	parts := []string{}
	for {
		n, err := p.name()
		if err != nil {
			return "", err
		}
		parts = append(parts, n)
		if p.peek().kind != '.' {
			return strings.Join(parts, "."), nil
		}
		p.pos++
	}
}

func (p *importParser) alias() (string, error) {
	if !p.keyword("as") {
		return "", nil
	}
	return p.name()
}

func (p *importParser) done() bool {
	return p.pos >= len(p.toks)
}

// parseImport handles "import a.b as c, d".
func parseImport(text string) ([]importSpec, error) {
	toks, err := tokenizeImport(text)
	if err != nil {
		return nil, err
	}
	p := &importParser{toks: toks}
	if !p.keyword("import") {
		return nil, fmt.Errorf("expected 'import'")
	}
	var specs []importSpec
	for {
		module, err := p.dottedName()
		if err != nil {
			return nil, err
		}
		alias, err := p.alias()
		if err != nil {
			return nil, err
		}
		if alias == "" && strings.Contains(module, ".") {
			return nil, fmt.Errorf("import of submodule %s needs an alias", module)
		}
		specs = append(specs, importSpec{module: module, alias: alias})
		if p.done() {
			return specs, nil
		}
		if p.next().kind != ',' {
			return nil, fmt.Errorf("expected ',' between imported modules")
		}
	}
}

// parseFromImport handles "from m import a as b, c", the parenthesized form
// and "from m import *".
func parseFromImport(text string) ([]importSpec, error) {
	toks, err := tokenizeImport(text)
	if err != nil {
		return nil, err
	}
	p := &importParser{toks: toks}
	if !p.keyword("from") {
		return nil, fmt.Errorf("expected 'from'")
	}
	module, err := p.dottedName()
	if err != nil {
		return nil, err
	}
	if !p.keyword("import") {
		return nil, fmt.Errorf("expected 'import' after module name")
	}
	if p.peek().kind == '*' {
		p.pos++
		if !p.done() {
			return nil, fmt.Errorf("unexpected tokens after '*'")
		}
		return []importSpec{{module: module, symbol: "*"}}, nil
	}

	paren := p.peek().kind == '('
	if paren {
		p.pos++
	}
	var specs []importSpec
	for {
		if paren && p.peek().kind == ')' && len(specs) > 0 {
			break
		}
		symbol, err := p.name()
		if err != nil {
			return nil, err
		}
		alias, err := p.alias()
		if err != nil {
			return nil, err
		}
		specs = append(specs, importSpec{module: module, symbol: symbol, alias: alias})
		if p.peek().kind != ',' {
			break
		}
		p.pos++
		if !paren && p.done() {
			return nil, fmt.Errorf("trailing comma without parentheses")
		}
	}
	if paren {
		if p.next().kind != ')' {
			return nil, fmt.Errorf("expected ')'")
		}
	}
	if !p.done() {
		return nil, fmt.Errorf("unexpected %q", p.peek().text)
	}
	return specs, nil
}

func parseImportStatement(st statement) ([]importSpec, error) {
	var (
		specs []importSpec
		err   error
	)
	if firstWord(st.text) == "from" {
		specs, err = parseFromImport(st.text)
	} else {
		specs, err = parseImport(st.text)
	}
	if err != nil {
		return nil, expr.NewParseError(expr.ParseErrImport, "invalid import statement").
			WithStatement(st.text, st.line).
			WithCause(err)
	}
	return specs, nil
}
