package harness

// Param is a declared parameter of the entry point. Type is empty for
// dynamically typed languages.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Entry describes the callable the harness tests
type Entry struct {
	// Name is the first discovered candidate
	Name string `json:"name"`

	// Candidates are tried in order at runtime, the first one that resolves
	// to a callable is used
	Candidates []string `json:"candidates"`

	// Params of the first candidate, Named is false when any parameter name
	// could not be recovered from the signature
	Params []Param `json:"params,omitempty"`
	Named  bool    `json:"named"`

	// StrictArity rejects test inputs whose length differs from Params
	StrictArity bool `json:"strictArity"`
}

// Locator finds the entry point of a submission. The current locators scan
// the source text, a parser backed implementation can replace them without
// touching the generators.
type Locator interface {
	Locate(source string) (*Entry, error)
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	ret := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		ret = append(ret, n)
	}
	return ret
}
