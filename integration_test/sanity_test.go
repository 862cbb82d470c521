//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

type runTestCase struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

type runRequest struct {
	Code      string        `json:"code"`
	Language  string        `json:"language"`
	TestCases []runTestCase `json:"testCases"`
}

type runResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Input  string `json:"input"`
		Actual string `json:"actual"`
		Passed bool   `json:"passed"`
	} `json:"results"`
	Output string `json:"output"`
}

func serverURL() string {
	if u := os.Getenv("AJ_SERVER_URL"); u != "" {
		return u
	}
	return "http://localhost:5050/run"
}

// TestSanity_Run needs a running arena-judge with the docker runtime
func TestSanity_Run(t *testing.T) {
	type Expectation struct {
		Status         string
		OutputContains string
		Passed         []bool
	}

	tests := []struct {
		Name   string
		Input  runRequest
		Expect Expectation
	}{
		{
			Name: "JS add",
			Input: runRequest{
				Code:      "function add(a, b) { return a + b; }",
				Language:  "javascript",
				TestCases: []runTestCase{{"[1,2]", "3"}, {"[2,2]", "5"}},
			},
			Expect: Expectation{Status: "failed", Passed: []bool{true, false}},
		},
		{
			Name: "JS source runs without module scope",
			Input: runRequest{
				Code:      "function probe() { return typeof require; }",
				Language:  "javascript",
				TestCases: []runTestCase{{"[]", `"undefined"`}},
			},
			Expect: Expectation{Status: "passed", Passed: []bool{true}},
		},
		{
			Name: "JS infinite loop",
			Input: runRequest{
				Code:      "function spin() { while (true) {} }",
				Language:  "javascript",
				TestCases: []runTestCase{{"[]", "0"}},
			},
			Expect: Expectation{Status: "error", OutputContains: "execution timed out"},
		},
		{
			Name: "Java two sum",
			Input: runRequest{
				Code: `import java.util.*;
public class Solution {
    public int[] twoSum(int[] nums, int target) {
        Map<Integer, Integer> seen = new HashMap<>();
        for (int i = 0; i < nums.length; i++) {
            Integer j = seen.get(target - nums[i]);
            if (j != null) return new int[]{j, i};
            seen.put(nums[i], i);
        }
        return new int[0];
    }
}`,
				Language:  "java",
				TestCases: []runTestCase{{"[[2,7,11,15],9]", "[0,1]"}, {`{"nums":[3,2,4],"target":6}`, "[1,2]"}},
			},
			Expect: Expectation{Status: "passed", Passed: []bool{true, true}},
		},
		{
			Name: "Java compile error",
			Input: runRequest{
				Code:      "public class Solution { public int f() { return 1 } }",
				Language:  "java",
				TestCases: []runTestCase{{"[]", "1"}},
			},
			Expect: Expectation{Status: "error", OutputContains: "';' expected"},
		},
	}

	client := &http.Client{Timeout: 60 * time.Second}
	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			body, _ := json.Marshal(tc.Input)
			resp, err := client.Post(serverURL(), "application/json", bytes.NewReader(body))
			if err != nil {
				t.Skipf("server unavailable: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("unexpected status code %d", resp.StatusCode)
			}
			var res runResponse
			if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if res.Status != tc.Expect.Status {
				t.Fatalf("expected status %s, got %s (%s)", tc.Expect.Status, res.Status, res.Output)
			}
			if tc.Expect.OutputContains != "" && !strings.Contains(res.Output, tc.Expect.OutputContains) {
				t.Errorf("expected output to contain %q, got %q", tc.Expect.OutputContains, res.Output)
			}
			if tc.Expect.Passed != nil {
				if len(res.Results) != len(tc.Expect.Passed) {
					t.Fatalf("expected %d results, got %d", len(tc.Expect.Passed), len(res.Results))
				}
				for i, p := range tc.Expect.Passed {
					if res.Results[i].Passed != p {
						t.Errorf("test %d: expected passed=%v, got %v (actual %q)", i+1, p, res.Results[i].Passed, res.Results[i].Actual)
					}
				}
			}
		})
	}
}
