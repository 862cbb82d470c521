// Package harness synthesizes a self-contained test program from submitted
// source code and test cases.
//
// The generated program first reads the run token from standard input,
// before any submitted code is loaded. It then loads the submitted code
// unmodified, locates the entry point, calls it once per test case and
// prints exactly one line to standard output, tagged with the token:
//
//	{"run":"<token>","allPassed":true,"results":[{"input":"[1,2]","expected":"3","actual":"3","passed":true}]}
//
// When nothing could be tested at all the line carries an "error" and a
// "kind" field instead of results.
package harness

import (
	"fmt"

	"github.com/codearena/judge/language"
	"github.com/codearena/judge/types"
	"github.com/google/uuid"
)

// File is a file of the execution artifact
type File struct {
	Name    string
	Content []byte
}

// Unit is a synthesized executable unit, ready to be written into a
// workspace and run by the sandbox
type Unit struct {
	Language types.Language
	Profile  *language.Profile
	Entry    *Entry
	Files    []File

	// Token is fed to the harness on standard input and echoed on its
	// result line. It never appears in the workspace files.
	Token string

	// Compile is nil when the language has no compile step
	Compile []string
	Run     []string
}

// generator produces the harness source for one language
type generator interface {
	Locator
	Generate(source string, e *Entry, cases []caseData, p *language.Profile) ([]File, error)
}

// Synthesizer builds executable units for the registered languages
type Synthesizer struct {
	languages  *language.Registry
	generators map[types.Language]generator
}

// New creates a synthesizer with the built-in generators
func New(languages *language.Registry) *Synthesizer {
	return &Synthesizer{
		languages: languages,
		generators: map[types.Language]generator{
			types.LanguageJavaScript: &jsGenerator{},
			types.LanguageJava:       &javaGenerator{},
		},
	}
}

// Supports reports whether a language has both a profile and a generator
func (s *Synthesizer) Supports(lang types.Language) bool {
	_, ok := s.languages.Get(lang)
	_, hasGen := s.generators[lang]
	return ok && hasGen
}

// Synthesize creates the executable unit for the submission
func (s *Synthesizer) Synthesize(source string, lang types.Language, cases []types.TestCase) (*Unit, error) {
	p, ok := s.languages.Get(lang)
	gen, hasGen := s.generators[lang]
	if !ok || !hasGen {
		return nil, types.UnsupportedLanguageError(lang)
	}

	e, err := gen.Locate(source)
	if err != nil {
		return nil, err
	}
	files, err := gen.Generate(source, e, buildCases(cases, e), p)
	if err != nil {
		return nil, fmt.Errorf("generate %s harness: %w", lang, err)
	}

	compile, err := p.CompileArgs()
	if err != nil {
		return nil, err
	}
	run, err := p.RunArgs()
	if err != nil {
		return nil, err
	}
	return &Unit{
		Language: lang,
		Profile:  p,
		Entry:    e,
		Files:    files,
		Token:    uuid.NewString(),
		Compile:  compile,
		Run:      run,
	}, nil
}
