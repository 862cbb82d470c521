package harness

import (
	"bytes"
	"embed"
	"encoding/json"
	"text/template"

	"github.com/codearena/judge/language"
)

//go:embed templates/*.tmpl
var templates embed.FS

var (
	jsTemplate   = template.Must(template.ParseFS(templates, "templates/runner.js.tmpl"))
	javaTemplate = template.Must(template.ParseFS(templates, "templates/Main.java.tmpl"))
)

type jsGenerator struct {
	jsLocator
}

type jsTemplateData struct {
	SourceFile string
	Candidates string
	Cases      string
}

// Generate writes the submission unmodified next to a runner that loads it
// through the vm module. JSON is valid JavaScript, so every embedded value
// is emitted with the JSON encoder and never spliced in as raw text.
func (g *jsGenerator) Generate(source string, e *Entry, cases []caseData, p *language.Profile) ([]File, error) {
	sourceFile, err := jsLiteral(p.SourceFile)
	if err != nil {
		return nil, err
	}
	candidates, err := jsLiteral(e.Candidates)
	if err != nil {
		return nil, err
	}
	cs, err := jsLiteral(cases)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jsTemplate.Execute(&buf, jsTemplateData{
		SourceFile: sourceFile,
		Candidates: candidates,
		Cases:      cs,
	}); err != nil {
		return nil, err
	}
	return []File{
		{Name: p.SourceFile, Content: []byte(source)},
		{Name: p.HarnessFile, Content: buf.Bytes()},
	}, nil
}

// jsLiteral encodes v as a JavaScript literal. The encoder escapes U+2028,
// U+2029 and HTML characters, so the output is safe in any source position.
func jsLiteral(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
