package types

import (
	"fmt"
	"strings"
)

// Language identifies the language of a submission
type Language string

// Supported languages
const (
	LanguageJavaScript Language = "javascript"
	LanguageJava       Language = "java"
)

// ParseLanguage normalizes a caller supplied language identifier. Unknown
// values are returned unchanged so the coordinator can report them.
func ParseLanguage(s string) Language {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "javascript", "js", "node":
		return LanguageJavaScript
	case "java":
		return LanguageJava
	}
	return Language(s)
}

// TestCase is a single hidden test. Both fields are opaque serialized strings,
// Input holds the arguments (JSON array or object) and Output the expected
// serialized return value.
type TestCase struct {
	Input  string `json:"input" toml:"input"`
	Output string `json:"output" toml:"output"`
}

// ExecutionRequest is one submission to be judged
type ExecutionRequest struct {
	RequestID  string     `json:"requestId,omitempty"`
	SourceCode string     `json:"sourceCode"`
	Language   Language   `json:"language"`
	TestCases  []TestCase `json:"testCases"`
}

func (r *ExecutionRequest) String() string {
	return fmt.Sprintf("ExecutionRequest[%s](language=%s, source=%d bytes, cases=%d)",
		r.RequestID, r.Language, len(r.SourceCode), len(r.TestCases))
}

// TestResult is the outcome of a single test case, in the order of the request
type TestResult struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
}

// Verdict is the final result of one execution
type Verdict struct {
	Status    Status       `json:"status"`
	Results   []TestResult `json:"results"`
	Message   string       `json:"message,omitempty"`
	Kind      ErrorKind    `json:"kind,omitempty"`
	RawOutput string       `json:"rawOutput,omitempty"`
}

// NewVerdict derives the status from the results. An empty result set passes.
func NewVerdict(results []TestResult) Verdict {
	if results == nil {
		results = []TestResult{}
	}
	st := StatusPassed
	for _, r := range results {
		if !r.Passed {
			st = StatusFailed
			break
		}
	}
	return Verdict{Status: st, Results: results}
}

// PassedCount returns the number of passed test results
func (v Verdict) PassedCount() int {
	n := 0
	for _, r := range v.Results {
		if r.Passed {
			n++
		}
	}
	return n
}

func (v Verdict) String() string {
	switch v.Status {
	case StatusError:
		return fmt.Sprintf("Verdict(error, kind=%s, message=%q)", v.Kind, v.Message)
	default:
		return fmt.Sprintf("Verdict(%s, %d/%d)", v.Status, v.PassedCount(), len(v.Results))
	}
}
