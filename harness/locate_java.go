package harness

import (
	"strings"

	"github.com/codearena/judge/types"
	mapset "github.com/deckarep/golang-set/v2"
)

const javaClassName = "Solution"

// javaFallback names may be non-public
var javaFallback = []string{"solution", "solve", "answer", "calculate"}

// tokens that cannot end a return type, a call expression precedes them
var javaNotType = mapset.NewSet("new", "return", "throw", "else", "case", "record", "class", "interface", "enum")

var javaModifiers = mapset.NewSet(
	"public", "protected", "private", "static", "final", "abstract",
	"synchronized", "native", "strictfp", "default",
)

type javaMethod struct {
	name   string
	public bool
	params []Param
}

type javaLocator struct{}

// Locate finds class Solution and picks its first public method other than
// the constructor and main. Parameter types and names are taken from the
// declaration.
func (javaLocator) Locate(source string) (*Entry, error) {
	toks := tokenize(source, false)

	body := -1
	for i := 0; i+2 < len(toks); i++ {
		if toks[i].depth == 0 && toks[i].ident("class") && toks[i+1].ident(javaClassName) {
			for j := i + 2; j < len(toks); j++ {
				if toks[j].punct("{") {
					body = j
					break
				}
			}
			break
		}
	}
	if body < 0 {
		return nil, types.EntryPointNotFoundError("class " + javaClassName + " not found")
	}
	end := matching(toks, body)
	if end < 0 {
		end = len(toks)
	}

	methods := javaMethods(toks[body+1:end], toks[body].depth+1)
	var picked *javaMethod
	for i := range methods {
		m := &methods[i]
		if m.public && m.name != "main" {
			picked = m
			break
		}
	}
	if picked == nil {
	fallback:
		for _, n := range javaFallback {
			for i := range methods {
				if methods[i].name == n {
					picked = &methods[i]
					break fallback
				}
			}
		}
	}
	if picked == nil {
		return nil, types.EntryPointNotFoundError("no public method in class " + javaClassName)
	}

	named := true
	for _, p := range picked.params {
		if p.Name == "" {
			named = false
		}
	}
	return &Entry{
		Name:        picked.name,
		Candidates:  []string{picked.name},
		Params:      picked.params,
		Named:       named,
		StrictArity: true,
	}, nil
}

// javaMethods lists method declarations of a class body in source order,
// the constructor excluded. depth is the brace depth of the member tokens.
func javaMethods(toks []token, depth int) []javaMethod {
	var ret []javaMethod
	stmt := 0 // start of the current member declaration
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.depth != depth {
			continue
		}
		if t.punct(";") || t.punct("{") || t.punct("}") {
			stmt = i + 1
			continue
		}
		if t.kind != tokIdent || i+1 >= len(toks) || !toks[i+1].punct("(") || i == 0 {
			continue
		}
		prev := toks[i-1]
		isType := (prev.kind == tokIdent && !javaNotType.Contains(prev.text) && !javaModifiers.Contains(prev.text)) ||
			prev.punct(">") || prev.punct("]")
		if !isType || t.text == javaClassName {
			continue
		}
		// a member declaration starts right after a statement boundary,
		// annotations and modifiers in between
		if !javaDeclStart(toks[stmt:i]) {
			continue
		}
		m := javaMethod{name: t.text}
		for _, h := range toks[stmt:i] {
			if h.ident("public") {
				m.public = true
			}
		}
		end := matching(toks, i+1)
		if end < 0 {
			break
		}
		m.params = javaParams(toks[i+2 : end])
		ret = append(ret, m)
		i = end
	}
	return ret
}

// javaDeclStart rejects expressions like field initializers: the header of a
// method declaration holds no '=' outside of annotation arguments
func javaDeclStart(header []token) bool {
	n := 0
	for _, t := range header {
		switch {
		case t.punct("("):
			n++
		case t.punct(")"):
			n--
		case t.punct("=") && n == 0:
			return false
		}
	}
	return true
}

// javaParams parses "final int[] a, List<Integer> b, String... c"
func javaParams(toks []token) []Param {
	var ps []Param
	for _, seg := range splitTopLevel(toks, true) {
		seg = stripAnnotations(seg)
		for len(seg) > 0 && seg[0].ident("final") {
			seg = seg[1:]
		}
		if len(seg) == 0 {
			continue
		}
		// trailing [] after the name: int a[]
		dims := 0
		for len(seg) >= 2 && seg[len(seg)-1].punct("]") && seg[len(seg)-2].punct("[") {
			dims++
			seg = seg[:len(seg)-2]
		}
		name := seg[len(seg)-1]
		if name.kind != tokIdent || len(seg) < 2 {
			ps = append(ps, Param{Type: joinTokens(seg)})
			continue
		}
		typ := joinTokens(seg[:len(seg)-1])
		typ = strings.Replace(typ, "...", "[]", 1)
		typ += strings.Repeat("[]", dims)
		ps = append(ps, Param{Name: name.text, Type: typ})
	}
	if ps == nil {
		ps = []Param{}
	}
	return ps
}

func stripAnnotations(seg []token) []token {
	for len(seg) >= 2 && seg[0].punct("@") {
		seg = seg[2:]
		if len(seg) > 0 && seg[0].punct("(") {
			end := matching(seg, 0)
			if end < 0 {
				return nil
			}
			seg = seg[end+1:]
		}
	}
	return seg
}

func joinTokens(toks []token) string {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 && t.kind == tokIdent && toks[i-1].kind == tokIdent {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.text)
	}
	return sb.String()
}
