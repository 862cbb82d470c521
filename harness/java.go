package harness

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/codearena/judge/language"
)

// a constant string literal must stay below 65535 bytes in the class file
const javaChunkSize = 60000

type javaGenerator struct {
	javaLocator
}

type javaTemplateData struct {
	Method string
	Arity  int
	Chunks []string
}

// Generate emits Main.java. The test data travels as base64 text, which
// never needs escaping inside a Java string literal, and is decoded and
// parsed by the harness at runtime.
func (g *javaGenerator) Generate(source string, e *Entry, cases []caseData, p *language.Profile) ([]File, error) {
	if !isIdentifier(e.Name) {
		return nil, fmt.Errorf("invalid method name %q", e.Name)
	}
	data, err := json.Marshal(cases)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := javaTemplate.Execute(&buf, javaTemplateData{
		Method: javaString(e.Name),
		Arity:  len(e.Params),
		Chunks: chunk(base64.StdEncoding.EncodeToString(data), javaChunkSize),
	}); err != nil {
		return nil, err
	}
	return []File{
		{Name: p.SourceFile, Content: []byte(source)},
		{Name: p.HarnessFile, Content: buf.Bytes()},
	}, nil
}

func chunk(s string, n int) []string {
	var ret []string
	for len(s) > n {
		ret = append(ret, s[:n])
		s = s[n:]
	}
	if s != "" {
		ret = append(ret, s)
	}
	return ret
}

// javaString quotes s as a Java string literal. Non-ASCII characters become
// \uXXXX escapes and control characters octal escapes, so the literal is
// plain ASCII and no unicode escape can ever produce a quote or line break.
func javaString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			sb.WriteString(`\"`)
		case r == '\\':
			sb.WriteString(`\\`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&sb, `\%03o`, r)
		case r < 0x80:
			sb.WriteRune(r)
		default:
			for _, u := range utf16.Encode([]rune{r}) {
				fmt.Fprintf(&sb, `\u%04x`, u)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
