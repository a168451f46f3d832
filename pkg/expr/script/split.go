package script

import (
	"strings"
)

// statement is one logical statement cut out of a source block.
type statement struct {
	text string
	line int
}

// compoundKeywords start statements whose body may continue on indented
// lines or after a colon on the same line.
var compoundKeywords = map[string]bool{
	"def":   true,
	"class": true,
	"if":    true,
	"for":   true,
	"while": true,
	"with":  true,
	"try":   true,
}

// splitStatements cuts src into statements at newlines and semicolons that
// are outside string literals and brackets. Indented lines continue the
// statement above them. Comments are dropped.
func splitStatements(src string) []statement {
	s := &splitter{src: src, line: 1}
	s.run()
	return s.out
}

type splitter struct {
	src   string
	pos   int
	line  int
	depth int

	cur       strings.Builder
	curLine   int
	out       []statement
	lineStart bool
}

func (s *splitter) run() {
	s.lineStart = true
	for s.pos < len(s.src) {
		c := s.src[s.pos]

		if s.lineStart {
			s.lineStart = false
			if s.depth == 0 && s.cur.Len() > 0 && !s.continuesBlock() {
				s.flush()
			}
		}

		switch {
		case c == '#':
			s.skipComment()
		case c == '"' || c == '\'':
			s.readString()
		case c == '\\' && s.peek(1) == '\n':
			s.cur.WriteByte(' ')
			s.pos += 2
			s.line++
		case c == '(' || c == '[' || c == '{':
			s.depth++
			s.emit(c)
		case c == ')' || c == ']' || c == '}':
			if s.depth > 0 {
				s.depth--
			}
			s.emit(c)
		case c == ';' && s.depth == 0 && !s.inCompound():
			s.flush()
			s.pos++
		case c == '\n':
			s.cur.WriteByte('\n')
			s.pos++
			s.line++
			s.lineStart = true
		default:
			s.emit(c)
		}
	}
	s.flush()
}

func (s *splitter) peek(offset int) byte {
	if s.pos+offset < len(s.src) {
		return s.src[s.pos+offset]
	}
	return 0
}

func (s *splitter) emit(c byte) {
	if s.cur.Len() == 0 || strings.TrimSpace(s.cur.String()) == "" {
		if c != ' ' && c != '\t' && c != '\r' {
			s.curLine = s.line
		}
	}
	s.cur.WriteByte(c)
	s.pos++
}

// continuesBlock reports whether the line starting at pos belongs to the
// statement being built: it is indented, blank, or only a comment.
func (s *splitter) continuesBlock() bool {
	end := strings.IndexByte(s.src[s.pos:], '\n')
	lineText := s.src[s.pos:]
	if end >= 0 {
		lineText = s.src[s.pos : s.pos+end]
	}
	trimmed := strings.TrimSpace(lineText)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return true
	}
	return lineText[0] == ' ' || lineText[0] == '\t'
}

func (s *splitter) inCompound() bool {
	return compoundKeywords[firstWord(s.cur.String())]
}

func (s *splitter) skipComment() {
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		s.pos++
	}
}

func (s *splitter) readString() {
	quote := s.src[s.pos]
	triple := s.peek(1) == quote && s.peek(2) == quote
	if s.cur.Len() == 0 || strings.TrimSpace(s.cur.String()) == "" {
		s.curLine = s.line
	}
	if triple {
		s.cur.WriteString(s.src[s.pos : s.pos+3])
		s.pos += 3
	} else {
		s.cur.WriteByte(quote)
		s.pos++
	}

	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\' && s.pos+1 < len(s.src):
			s.cur.WriteString(s.src[s.pos : s.pos+2])
			if s.src[s.pos+1] == '\n' {
				s.line++
			}
			s.pos += 2
			continue
		case c == '\n':
			if !triple {
				// Unterminated literal; the parser reports it.
				return
			}
			s.line++
		case c == quote:
			if !triple {
				s.cur.WriteByte(c)
				s.pos++
				return
			}
			if s.peek(1) == quote && s.peek(2) == quote {
				s.cur.WriteString(s.src[s.pos : s.pos+3])
				s.pos += 3
				return
			}
		}
		s.cur.WriteByte(c)
		s.pos++
	}
}

func (s *splitter) flush() {
	text := dedent(strings.TrimRight(s.cur.String(), " \t\r\n"))
	text = strings.TrimLeft(text, "\n")
	if strings.TrimSpace(text) != "" {
		s.out = append(s.out, statement{text: text, line: s.curLine})
	}
	s.cur.Reset()
	s.curLine = s.line
}

// dedent removes the indentation of the first non-blank line from every
// line of text.
func dedent(text string) string {
	lines := strings.Split(text, "\n")
	indent := ""
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent = l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		break
	}
	if indent == "" {
		return text
	}
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, indent)
	}
	return strings.Join(lines, "\n")
}

// firstWord returns the leading identifier of text, ignoring indentation.
func firstWord(text string) string {
	text = strings.TrimLeft(text, " \t\r\n")
	end := 0
	for end < len(text) && isIdentByte(text[end], end > 0) {
		end++
	}
	return text[:end]
}

func isIdentByte(c byte, notFirst bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case notFirst && c >= '0' && c <= '9':
		return true
	}
	return false
}
