package model

import (
	"testing"

	"github.com/codearena/judge/judge"
	"github.com/codearena/judge/types"
)

func TestConvertRequest(t *testing.T) {
	r := Request{Code: "function f(){}", Language: "JS"}
	req := r.ConvertRequest()
	if req.RequestID == "" {
		t.Fatal("expected generated request id")
	}
	if req.Language != types.LanguageJavaScript {
		t.Fatalf("expected javascript, got %q", req.Language)
	}
	if req.TestCases == nil || len(req.TestCases) != 0 {
		t.Fatalf("expected empty test cases, got %v", req.TestCases)
	}

	r.RequestID = "abc"
	if id := r.ConvertRequest().RequestID; id != "abc" {
		t.Fatalf("expected request id kept, got %q", id)
	}
}

func TestConvertResponse(t *testing.T) {
	tests := []struct {
		name   string
		v      types.Verdict
		status types.Status
		output string
	}{
		{
			name:   "passed",
			v:      types.NewVerdict([]types.TestResult{{Input: "[1]", Expected: "1", Actual: "1", Passed: true}}),
			status: types.StatusPassed,
		},
		{
			name:   "compile",
			v:      types.ErrorVerdict(types.CompileError("Solution.java:3: error: ';' expected")),
			status: types.StatusError,
			output: "Solution.java:3: error: ';' expected",
		},
		{
			name: "raw output",
			v: types.Verdict{
				Status:    types.StatusError,
				Kind:      types.KindResultParse,
				Message:   types.MsgResultParse,
				RawOutput: "garbage\n",
			},
			status: types.StatusError,
			output: types.MsgResultParse + "\ngarbage",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ret := ConvertResponse(judge.Response{RequestID: "r", Verdict: tc.v})
			if ret.Status != tc.status {
				t.Errorf("expected status %v, got %v", tc.status, ret.Status)
			}
			if ret.Output != tc.output {
				t.Errorf("expected output %q, got %q", tc.output, ret.Output)
			}
			if ret.Results == nil {
				t.Error("results must not be nil")
			}
		})
	}
}
