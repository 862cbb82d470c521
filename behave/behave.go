// Package behave loads judging scenarios from TOML files and checks the
// verdicts produced for them.
package behave

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/codearena/judge/types"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// SpecTest is a single test case in the behaviour file
type SpecTest struct {
	Input  string `toml:"input"`
	Output string `toml:"output"`
}

// SpecExpect describes the expected verdict. Empty fields are not checked.
type SpecExpect struct {
	Status          string   `toml:"status"`
	Kind            string   `toml:"kind"`
	MessageContains string   `toml:"message_contains"`
	Passed          []bool   `toml:"passed"`
	Actual          []string `toml:"actual"`
}

type specScenario struct {
	Description string     `toml:"description"`
	Language    string     `toml:"language"`
	Code        string     `toml:"code"`
	Tests       []SpecTest `toml:"tests"`
	Expect      SpecExpect `toml:"expect"`
}

type specRoot struct {
	Scenarios []specScenario `toml:"scenarios"`
}

// Case is a runnable scenario converted from TOML
type Case struct {
	Name    string
	Request types.ExecutionRequest
	Expect  SpecExpect
}

// Executor judges a request
type Executor interface {
	Execute(ctx context.Context, req *types.ExecutionRequest) types.Verdict
}

// Outcome is the result of running one case
type Outcome struct {
	Case       Case
	Verdict    types.Verdict
	Mismatches []string
	Duration   time.Duration
}

// OK reports whether the verdict matched the expectation
func (o *Outcome) OK() bool {
	return len(o.Mismatches) == 0
}

// Load reads a behaviour TOML file
func Load(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read behaviour file: %w", err)
	}
	return Parse(data)
}

// Parse converts behaviour TOML into runnable cases
func Parse(data []byte) ([]Case, error) {
	var root specRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cases := make([]Case, 0, len(root.Scenarios))
	for i, s := range root.Scenarios {
		name := s.Description
		if name == "" {
			name = fmt.Sprintf("scenario %d", i+1)
		}
		if s.Language == "" {
			return nil, fmt.Errorf("%s: language is required", name)
		}
		if s.Expect.Status != "" {
			if _, err := types.StringToStatus(s.Expect.Status); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
		tests := make([]types.TestCase, 0, len(s.Tests))
		for _, t := range s.Tests {
			tests = append(tests, types.TestCase{Input: t.Input, Output: t.Output})
		}
		cases = append(cases, Case{
			Name: name,
			Request: types.ExecutionRequest{
				RequestID:  uuid.NewString(),
				SourceCode: s.Code,
				Language:   types.ParseLanguage(s.Language),
				TestCases:  tests,
			},
			Expect: s.Expect,
		})
	}
	return cases, nil
}

// Check compares the verdict against the expectation and returns every
// mismatch found
func (c *Case) Check(v types.Verdict) []string {
	var m []string
	e := c.Expect
	if e.Status != "" && v.Status.String() != e.Status {
		m = append(m, fmt.Sprintf("status: expected %s, got %s (%s)", e.Status, v.Status, v.Message))
	}
	if e.Kind != "" && string(v.Kind) != e.Kind {
		m = append(m, fmt.Sprintf("kind: expected %s, got %q", e.Kind, v.Kind))
	}
	if e.MessageContains != "" && !strings.Contains(v.Message, e.MessageContains) {
		m = append(m, fmt.Sprintf("message: expected to contain %q, got %q", e.MessageContains, v.Message))
	}
	if e.Passed != nil {
		if len(e.Passed) != len(v.Results) {
			m = append(m, fmt.Sprintf("results: expected %d, got %d", len(e.Passed), len(v.Results)))
		} else {
			for i, p := range e.Passed {
				if v.Results[i].Passed != p {
					m = append(m, fmt.Sprintf("test %d: expected passed=%v, got %v (actual %q)", i+1, p, v.Results[i].Passed, v.Results[i].Actual))
				}
			}
		}
	}
	for i, a := range e.Actual {
		if i >= len(v.Results) {
			m = append(m, fmt.Sprintf("test %d: missing result", i+1))
			break
		}
		if v.Results[i].Actual != a {
			m = append(m, fmt.Sprintf("test %d: expected actual %q, got %q", i+1, a, v.Results[i].Actual))
		}
	}
	if v.Status != types.StatusError {
		for i, r := range v.Results {
			if i >= len(c.Request.TestCases) || r.Input != c.Request.TestCases[i].Input {
				m = append(m, fmt.Sprintf("test %d: results out of order", i+1))
				break
			}
		}
	}
	return m
}

// Run executes the cases one after another, reporting each outcome to fn
// when not nil
func Run(ctx context.Context, exec Executor, cases []Case, fn func(Outcome)) []Outcome {
	ret := make([]Outcome, 0, len(cases))
	for _, c := range cases {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		v := exec.Execute(ctx, &c.Request)
		o := Outcome{Case: c, Verdict: v, Mismatches: c.Check(v), Duration: time.Since(start)}
		if fn != nil {
			fn(o)
		}
		ret = append(ret, o)
	}
	return ret
}
