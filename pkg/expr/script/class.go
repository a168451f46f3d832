package script

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"
)

// Class is the value a class statement binds: a namespace of members
// evaluated from the class body, optionally extending other classes.
// Calling a Class creates an Instance.
type Class struct {
	name    string
	bases   []*Class
	members starlark.StringDict
}

var (
	_ starlark.HasAttrs = (*Class)(nil)
	_ starlark.Callable = (*Class)(nil)
)

func (c *Class) String() string        { return fmt.Sprintf("<class %s>", c.name) }
func (c *Class) Type() string          { return "class" }
func (c *Class) Freeze()               { c.members.Freeze() }
func (c *Class) Truth() starlark.Bool  { return starlark.True }
func (c *Class) Name() string          { return c.name }
func (c *Class) Hash() (uint32, error) { return starlark.String(c.name).Hash() }

// lookup finds a member on c or, depth first, on its bases.
func (c *Class) lookup(name string) (starlark.Value, bool) {
	if v, ok := c.members[name]; ok {
		return v, true
	}
	for _, base := range c.bases {
		if v, ok := base.lookup(name); ok {
			return v, true
		}
	}
	return nil, false
}

func (c *Class) Attr(name string) (starlark.Value, error) {
	if v, ok := c.lookup(name); ok {
		return v, nil
	}
	return nil, nil
}

func (c *Class) AttrNames() []string {
	seen := make(map[string]bool)
	c.collectNames(seen)
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Class) collectNames(seen map[string]bool) {
	for n := range c.members {
		seen[n] = true
	}
	for _, base := range c.bases {
		base.collectNames(seen)
	}
}

// CallInternal constructs an instance. With an __init__ member the
// arguments go to it; otherwise only keyword arguments are accepted and
// become fields.
func (c *Class) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	inst := &Instance{class: c, fields: make(starlark.StringDict)}
	if init, ok := c.lookup("__init__"); ok {
		callArgs := make(starlark.Tuple, 0, len(args)+1)
		callArgs = append(callArgs, inst)
		callArgs = append(callArgs, args...)
		if _, err := starlark.Call(thread, init, callArgs, kwargs); err != nil {
			return nil, err
		}
		return inst, nil
	}
	if len(args) > 0 {
		return nil, kindErrorf("TypeError", "%s() takes no positional arguments", c.name)
	}
	for _, kv := range kwargs {
		inst.fields[string(kv[0].(starlark.String))] = kv[1]
	}
	return inst, nil
}

// Instance is an object created by calling a Class.
type Instance struct {
	class  *Class
	fields starlark.StringDict
	frozen bool
}

var _ starlark.HasSetField = (*Instance)(nil)

func (i *Instance) String() string {
	if len(i.fields) == 0 {
		return i.class.name + "()"
	}
	parts := make([]string, 0, len(i.fields))
	for _, n := range i.fields.Keys() {
		parts = append(parts, n+"="+i.fields[n].String())
	}
	return i.class.name + "(" + strings.Join(parts, ", ") + ")"
}

func (i *Instance) Type() string         { return i.class.name }
func (i *Instance) Truth() starlark.Bool { return starlark.True }

func (i *Instance) Freeze() {
	if !i.frozen {
		i.frozen = true
		i.fields.Freeze()
	}
}

func (i *Instance) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: %s", i.class.name)
}

// Attr returns a field, or a class member with functions bound to i.
func (i *Instance) Attr(name string) (starlark.Value, error) {
	if v, ok := i.fields[name]; ok {
		return v, nil
	}
	member, ok := i.class.lookup(name)
	if !ok {
		return nil, nil
	}
	fn, ok := member.(*starlark.Function)
	if !ok {
		return member, nil
	}
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		callArgs := make(starlark.Tuple, 0, len(args)+1)
		callArgs = append(callArgs, i)
		callArgs = append(callArgs, args...)
		return starlark.Call(thread, fn, callArgs, kwargs)
	}), nil
}

func (i *Instance) AttrNames() []string {
	seen := make(map[string]bool)
	i.class.collectNames(seen)
	for n := range i.fields {
		seen[n] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (i *Instance) SetField(name string, v starlark.Value) error {
	if i.frozen {
		return fmt.Errorf("cannot set .%s on frozen %s instance", name, i.class.name)
	}
	i.fields[name] = v
	return nil
}

// classHeader is the parsed first line of a class statement.
type classHeader struct {
	name  string
	bases []string
	body  string
}

// parseClassHeader splits "class Name(Base, ...): body" into its parts.
// The body is either the rest of the header line or the indented block.
func parseClassHeader(text string) (classHeader, error) {
	var h classHeader
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimLeft(text, " \t"), "class"))
	h.name = firstWord(rest)
	if h.name == "" {
		return h, fmt.Errorf("expected class name")
	}
	rest = strings.TrimLeft(rest[len(h.name):], " \t")

	if strings.HasPrefix(rest, "(") {
		end := matchingParen(rest)
		if end < 0 {
			return h, fmt.Errorf("unbalanced parentheses in class bases")
		}
		for _, base := range splitTopLevel(rest[1:end]) {
			if base = strings.TrimSpace(base); base != "" {
				h.bases = append(h.bases, base)
			}
		}
		rest = strings.TrimLeft(rest[end+1:], " \t")
	}

	if !strings.HasPrefix(rest, ":") {
		return h, fmt.Errorf("expected ':' after class header")
	}
	rest = rest[1:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && strings.TrimSpace(rest[:nl]) == "" {
		h.body = dedent(strings.TrimLeft(rest[nl+1:], "\n"))
	} else {
		h.body = strings.TrimSpace(rest)
	}
	if strings.TrimSpace(h.body) == "" {
		return h, fmt.Errorf("class %s has an empty body", h.name)
	}
	return h, nil
}

// matchingParen returns the index of the parenthesis closing s[0].
func matchingParen(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits s on commas outside brackets and quotes.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
