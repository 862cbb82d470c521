package harness

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokIdent tokenKind = iota + 1
	tokPunct
	tokString
	tokNumber
)

// token is a lexical token of a C-like source. depth is the brace depth the
// token lives at, both braces of a pair carry the depth outside of them.
type token struct {
	kind  tokenKind
	text  string
	depth int
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (t token) punct(text string) bool {
	return t.is(tokPunct, text)
}

func (t token) ident(text string) bool {
	return t.is(tokIdent, text)
}

// scanner tokenizes just enough of JavaScript / Java to find declarations:
// comments are dropped, string / template / regex / char literals become a
// single opaque token, so braces inside them never change the depth.
type scanner struct {
	src   string
	pos   int
	depth int
	js    bool
	toks  []token
}

func tokenize(src string, js bool) []token {
	s := &scanner{src: src, js: js}
	s.run()
	return s.toks
}

func (s *scanner) run() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '/' && s.peek(1) == '/':
			s.skipLine()
		case c == '/' && s.peek(1) == '*':
			s.skipBlockComment()
		case !s.js && strings.HasPrefix(s.src[s.pos:], `"""`):
			s.skipTextBlock()
		case c == '"' || c == '\'':
			s.skipQuoted(c)
		case s.js && c == '`':
			s.pos++
			s.skipTemplate()
			s.emit(tokString, "`")
		case s.js && c == '/' && s.regexAllowed():
			s.skipRegex()
		case c == '{':
			s.emit(tokPunct, "{")
			s.depth++
			s.pos++
		case c == '}':
			if s.depth > 0 {
				s.depth--
			}
			s.emit(tokPunct, "}")
			s.pos++
		case c < utf8.RuneSelf && (c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'):
			s.pos++
		case c >= '0' && c <= '9':
			s.readNumber()
		case isIdentStart(s.src[s.pos:]):
			s.readIdent()
		default:
			r, size := utf8.DecodeRuneInString(s.src[s.pos:])
			if unicode.IsSpace(r) {
				s.pos += size
				continue
			}
			s.emit(tokPunct, s.src[s.pos:s.pos+size])
			s.pos += size
		}
	}
}

func (s *scanner) peek(n int) byte {
	if s.pos+n < len(s.src) {
		return s.src[s.pos+n]
	}
	return 0
}

func (s *scanner) emit(kind tokenKind, text string) {
	s.toks = append(s.toks, token{kind: kind, text: text, depth: s.depth})
}

func (s *scanner) skipLine() {
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		s.pos++
	}
}

func (s *scanner) skipBlockComment() {
	end := strings.Index(s.src[s.pos+2:], "*/")
	if end < 0 {
		s.pos = len(s.src)
		return
	}
	s.pos += end + 4
}

func (s *scanner) skipTextBlock() {
	end := strings.Index(s.src[s.pos+3:], `"""`)
	if end < 0 {
		s.pos = len(s.src)
	} else {
		s.pos += end + 6
	}
	s.emit(tokString, `"""`)
}

// skipQuoted skips a single line string or char literal
func (s *scanner) skipQuoted(q byte) {
	s.pos++
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\':
			s.pos += 2
			continue
		case c == q:
			s.pos++
			s.emit(tokString, string(q))
			return
		case c == '\n':
			// unterminated literal, let the compiler report it
			s.emit(tokString, string(q))
			return
		}
		s.pos++
	}
	s.emit(tokString, string(q))
}

// skipTemplate skips a template literal body after the opening backtick,
// including nested ${ ... } expressions
func (s *scanner) skipTemplate() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\':
			s.pos += 2
		case c == '`':
			s.pos++
			return
		case c == '$' && s.peek(1) == '{':
			s.pos += 2
			s.skipTemplateExpr()
		default:
			s.pos++
		}
	}
}

func (s *scanner) skipTemplateExpr() {
	for n := 1; s.pos < len(s.src); {
		c := s.src[s.pos]
		switch c {
		case '{':
			n++
			s.pos++
		case '}':
			n--
			s.pos++
			if n == 0 {
				return
			}
		case '"', '\'':
			saved := len(s.toks)
			s.skipQuoted(c)
			s.toks = s.toks[:saved]
		case '`':
			s.pos++
			s.skipTemplate()
		default:
			s.pos++
		}
	}
}

var regexPrecedingKeywords = map[string]bool{
	"return": true, "typeof": true, "case": true, "do": true, "else": true,
	"in": true, "of": true, "new": true, "delete": true, "void": true,
	"throw": true, "instanceof": true, "yield": true, "await": true,
}

// regexAllowed decides whether a slash starts a regular expression literal
// rather than a division, based on the previous significant token
func (s *scanner) regexAllowed() bool {
	if len(s.toks) == 0 {
		return true
	}
	prev := s.toks[len(s.toks)-1]
	switch prev.kind {
	case tokIdent:
		return regexPrecedingKeywords[prev.text]
	case tokNumber, tokString:
		return false
	}
	return prev.text != ")" && prev.text != "]"
}

func (s *scanner) skipRegex() {
	s.pos++
	inClass := false
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\':
			s.pos += 2
			continue
		case c == '\n':
			s.emit(tokString, "/")
			return
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			s.pos++
			for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
				s.pos++
			}
			s.emit(tokString, "/")
			return
		}
		s.pos++
	}
	s.emit(tokString, "/")
}

func (s *scanner) readNumber() {
	start := s.pos
	for s.pos < len(s.src) && (isIdentPart(s.src[s.pos]) || s.src[s.pos] == '.') {
		s.pos++
	}
	s.emit(tokNumber, s.src[start:s.pos])
}

func (s *scanner) readIdent() {
	start := s.pos
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c < utf8.RuneSelf {
			if !isIdentPart(c) {
				break
			}
			s.pos++
			continue
		}
		r, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		s.pos += size
	}
	s.emit(tokIdent, s.src[start:s.pos])
}

func isIdentStart(s string) bool {
	c := s[0]
	if c < utf8.RuneSelf {
		return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	}
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLetter(r)
}

func isIdentPart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// isIdentifier reports whether name is a plain identifier, safe to embed
// into generated source
func isIdentifier(name string) bool {
	if name == "" || !isIdentStart(name) {
		return false
	}
	for _, r := range name {
		if r < utf8.RuneSelf {
			if !isIdentPart(byte(r)) {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// matching returns the index of the token closing the group opened at
// toks[i], or -1 when unbalanced
func matching(toks []token, i int) int {
	open := toks[i].text
	var close string
	switch open {
	case "(":
		close = ")"
	case "[":
		close = "]"
	case "{":
		close = "}"
	default:
		return -1
	}
	n := 0
	for j := i; j < len(toks); j++ {
		if toks[j].kind != tokPunct {
			continue
		}
		switch toks[j].text {
		case open:
			n++
		case close:
			n--
			if n == 0 {
				return j
			}
		}
	}
	return -1
}

// splitTopLevel splits toks at commas not nested in any bracket. angle also
// treats <> as brackets, for Java generics.
func splitTopLevel(toks []token, angle bool) [][]token {
	var (
		ret   [][]token
		start int
		n     int
	)
	for i, t := range toks {
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			n++
		case ")", "]", "}":
			n--
		case "<":
			if angle {
				n++
			}
		case ">":
			if angle {
				n--
			}
		case ",":
			if n == 0 {
				ret = append(ret, toks[start:i])
				start = i + 1
			}
		}
	}
	if start < len(toks) {
		ret = append(ret, toks[start:])
	}
	return ret
}
