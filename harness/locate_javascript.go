package harness

import (
	"github.com/codearena/judge/types"
	mapset "github.com/deckarep/golang-set/v2"
)

// names the harness itself uses or the runtime owns
var jsReserved = mapset.NewSet(
	"require", "module", "exports", "__filename", "__dirname",
	"console", "process", "globalThis", "global",
	"runTests", "findUserFunction", "testCases",
)

// jsFallback names are tried when no declaration was found
var jsFallback = []string{"solution", "solve", "main", "answer"}

type jsLocator struct{}

// Locate collects top level function declarations and function / arrow
// bindings in source order:
//
//	function name(...)            async function name(...)
//	const name = function (...)   let name = async (...) => ...
//	var name = x => ...
func (jsLocator) Locate(source string) (*Entry, error) {
	toks := tokenize(source, true)

	var (
		names  []string
		params [][]Param
		named  []bool
	)
	add := func(name string, ps []Param, ok bool) {
		if jsReserved.Contains(name) {
			return
		}
		names = append(names, name)
		params = append(params, ps)
		named = append(named, ok)
	}

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.depth != 0 || t.kind != tokIdent {
			continue
		}
		switch t.text {
		case "function":
			j := i + 1
			if j < len(toks) && toks[j].punct("*") {
				j++
			}
			if j+1 < len(toks) && toks[j].kind == tokIdent && toks[j+1].punct("(") {
				ps, ok := jsParams(toks, j+1)
				add(toks[j].text, ps, ok)
				i = j
			}
		case "const", "let", "var":
			if i+2 >= len(toks) || toks[i+1].kind != tokIdent || !toks[i+2].punct("=") {
				continue
			}
			if ps, ok, isFunc := jsFunctionValue(toks, i+3); isFunc {
				add(toks[i+1].text, ps, ok)
			}
			i += 2
		}
	}

	// fallback names count only when they appear in the source at all
	present := mapset.NewSet[string]()
	for _, t := range toks {
		if t.kind == tokIdent {
			present.Add(t.text)
		}
	}
	candidates := append([]string{}, names...)
	for _, n := range jsFallback {
		if present.Contains(n) {
			candidates = append(candidates, n)
		}
	}
	candidates = dedupe(candidates)
	if len(candidates) == 0 {
		return nil, types.EntryPointNotFoundError("no function declaration or binding found")
	}

	e := &Entry{Name: candidates[0], Candidates: candidates}
	if len(names) > 0 {
		e.Params = params[0]
		e.Named = named[0]
	}
	return e, nil
}

// jsFunctionValue checks whether the expression starting at toks[i] is a
// function expression or an arrow function, and recovers its parameters
func jsFunctionValue(toks []token, i int) ([]Param, bool, bool) {
	if i < len(toks) && toks[i].ident("async") {
		i++
	}
	if i >= len(toks) {
		return nil, false, false
	}
	switch t := toks[i]; {
	case t.ident("function"):
		j := i + 1
		if j < len(toks) && toks[j].punct("*") {
			j++
		}
		if j < len(toks) && toks[j].kind == tokIdent {
			j++
		}
		if j < len(toks) && toks[j].punct("(") {
			ps, ok := jsParams(toks, j)
			return ps, ok, true
		}
	case t.punct("("):
		end := matching(toks, i)
		if end > 0 && isArrow(toks, end+1) {
			ps, ok := jsParams(toks, i)
			return ps, ok, true
		}
	case t.kind == tokIdent:
		if isArrow(toks, i+1) {
			return []Param{{Name: t.text}}, true, true
		}
	}
	return nil, false, false
}

func isArrow(toks []token, i int) bool {
	return i+1 < len(toks) && toks[i].punct("=") && toks[i+1].punct(">")
}

// jsParams recovers parameter names of the list opened at toks[open].
// Destructuring and rest parameters make the names unusable for object
// input mapping.
func jsParams(toks []token, open int) ([]Param, bool) {
	end := matching(toks, open)
	if end < 0 {
		return nil, false
	}
	inner := toks[open+1 : end]
	if len(inner) == 0 {
		return []Param{}, true
	}
	ok := true
	var ps []Param
	for _, seg := range splitTopLevel(inner, false) {
		if len(seg) == 0 {
			continue
		}
		if seg[0].kind != tokIdent {
			ok = false
			ps = append(ps, Param{})
			continue
		}
		// plain name, optionally with a default value
		if len(seg) > 1 && !seg[1].punct("=") {
			ok = false
		}
		ps = append(ps, Param{Name: seg[0].text})
	}
	return ps, ok
}
