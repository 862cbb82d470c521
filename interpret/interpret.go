// Package interpret turns the raw output of the sandbox steps into a verdict.
package interpret

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codearena/judge/sandbox"
	"github.com/codearena/judge/types"
)

// Outcome collects the output of the steps of one execution
type Outcome struct {
	// Compile is nil when the language has no compile step
	Compile *sandbox.Output
	Run     sandbox.Output

	// Token is the run token handed to the harness. Only a result line
	// carrying it is accepted.
	Token string
	// Cases are the submitted test cases the results are checked against
	Cases []types.TestCase
}

// resultLine is the single line printed by the harness
type resultLine struct {
	Run       string              `json:"run"`
	AllPassed *bool               `json:"allPassed"`
	Results   *[]types.TestResult `json:"results"`
	Error     string              `json:"error"`
	Kind      types.ErrorKind     `json:"kind"`
}

// Interpret derives the verdict. Every outcome maps to exactly one of
// passed, failed or error.
func Interpret(o Outcome) types.Verdict {
	if c := o.Compile; c != nil {
		if c.TimedOut {
			return types.ErrorVerdict(types.TimeoutError(sandbox.StepCompile))
		}
		if CompileFailed(c) {
			return types.ErrorVerdict(types.CompileError(compileDiagnostics(c)))
		}
	}

	r := o.Run
	if r.TimedOut {
		return types.ErrorVerdict(types.TimeoutError(sandbox.StepRun))
	}

	if line, ok := extract(r.Stdout, o.Token); ok {
		if line.Error != "" {
			kind := line.Kind
			if kind == "" {
				kind = types.KindRuntime
			}
			return types.Verdict{
				Status:  types.StatusError,
				Results: []types.TestResult{},
				Message: line.Error,
				Kind:    kind,
			}
		}
		results, ok := match(*line.Results, o.Cases)
		if !ok {
			return types.Verdict{
				Status:    types.StatusError,
				Results:   []types.TestResult{},
				Message:   types.MsgResultParse,
				Kind:      types.KindResultParse,
				RawOutput: r.Stdout,
			}
		}
		return types.NewVerdict(results)
	}

	if stderr := strings.TrimSpace(r.Stderr); stderr != "" {
		return types.Verdict{
			Status:    types.StatusError,
			Results:   []types.TestResult{},
			Message:   stderr,
			Kind:      types.KindRuntime,
			RawOutput: r.Stdout,
		}
	}
	msg := types.MsgResultParse
	if r.ExitCode != 0 {
		msg = fmt.Sprintf("%s (exit code %d)", msg, r.ExitCode)
	}
	return types.Verdict{
		Status:    types.StatusError,
		Results:   []types.TestResult{},
		Message:   msg,
		Kind:      types.KindResultParse,
		RawOutput: r.Stdout,
	}
}

func compileDiagnostics(c *sandbox.Output) string {
	if d := strings.TrimSpace(c.Stderr); d != "" {
		return d
	}
	if d := strings.TrimSpace(c.Stdout); d != "" {
		return d
	}
	return fmt.Sprintf("compilation failed with exit code %d", c.ExitCode)
}

// extract finds the result line tagged with token. The harness always
// prints the run token as the first member, so the line starts with a
// prefix no other output can produce without knowing the token.
func extract(stdout, token string) (*resultLine, bool) {
	if token == "" {
		return nil, false
	}
	prefix, err := json.Marshal(token)
	if err != nil {
		return nil, false
	}
	start := strings.Index(stdout, `{"run":`+string(prefix)+`,`)
	if start < 0 {
		return nil, false
	}
	end := balanced(stdout, start)
	if end < 0 {
		return nil, false
	}
	line, ok := decode(stdout[start:end])
	if !ok || line.Run != token {
		return nil, false
	}
	return line, true
}

// match checks the reported results against the submitted cases, one per
// case in order, and recomputes every passed flag from actual and expected
func match(results []types.TestResult, cases []types.TestCase) ([]types.TestResult, bool) {
	if len(results) != len(cases) {
		return nil, false
	}
	ret := make([]types.TestResult, len(results))
	for i, r := range results {
		if r.Input != cases[i].Input || r.Expected != cases[i].Output {
			return nil, false
		}
		r.Passed = r.Actual == r.Expected
		ret[i] = r
	}
	return ret, true
}

// balanced returns the end index (exclusive) of the object starting at
// s[start], ignoring braces inside strings, or -1
func balanced(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func decode(s string) (*resultLine, bool) {
	var line resultLine
	if err := json.Unmarshal([]byte(s), &line); err != nil {
		return nil, false
	}
	if line.Error != "" {
		return &line, true
	}
	if line.AllPassed == nil || line.Results == nil {
		return nil, false
	}
	return &line, true
}

// CompileFailed reports whether the run step must be skipped
func CompileFailed(c *sandbox.Output) bool {
	return c != nil && (c.TimedOut || c.ExitCode != 0 || strings.TrimSpace(c.Stderr) != "")
}
