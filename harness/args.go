package harness

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/codearena/judge/types"
)

// caseData is one test case as embedded into a harness. Args holds the
// positional arguments as a JSON array; when the input could not be turned
// into arguments Error is set and the harness reports it without calling the
// entry point.
type caseData struct {
	Input    string          `json:"input"`
	Expected string          `json:"expected"`
	Args     json.RawMessage `json:"args,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func buildCases(cases []types.TestCase, e *Entry) []caseData {
	ret := make([]caseData, 0, len(cases))
	for _, c := range cases {
		d := caseData{Input: c.Input, Expected: c.Output}
		args, err := normalizeArgs(c.Input, e)
		if err != nil {
			d.Error = err.Error()
		} else {
			d.Args = args
		}
		ret = append(ret, d)
	}
	return ret
}

// normalizeArgs turns a test input into a JSON array of positional
// arguments:
//   - a JSON array is used as is
//   - a JSON object is mapped onto the declared parameter names, unknown
//     keys are ignored and missing keys become null (the zero value)
//   - any other JSON value is a single argument
func normalizeArgs(input string, e *Entry) (json.RawMessage, error) {
	in := strings.TrimSpace(input)
	if in == "" {
		in = "[]"
	}
	if !json.Valid([]byte(in)) {
		return nil, types.ArgumentCoercionError("invalid input %q: not a JSON value", input)
	}

	var args []json.RawMessage
	switch in[0] {
	case '[':
		if err := json.Unmarshal([]byte(in), &args); err != nil {
			return nil, types.ArgumentCoercionError("invalid input %q: %v", input, err)
		}
	case '{':
		if e.Named && len(e.Params) > 0 {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal([]byte(in), &obj); err != nil {
				return nil, types.ArgumentCoercionError("invalid input %q: %v", input, err)
			}
			for _, p := range e.Params {
				v, ok := obj[p.Name]
				if !ok {
					v = json.RawMessage("null")
				}
				args = append(args, v)
			}
		} else {
			args = []json.RawMessage{json.RawMessage(in)}
		}
	default:
		args = []json.RawMessage{json.RawMessage(in)}
	}

	if e.StrictArity && len(args) != len(e.Params) {
		return nil, types.ArgumentCoercionError("expected %d arguments, got %d", len(e.Params), len(args))
	}
	if args == nil {
		args = []json.RawMessage{}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(args); err != nil {
		return nil, types.ArgumentCoercionError("invalid input %q: %v", input, err)
	}
	return json.RawMessage(bytes.TrimSpace(buf.Bytes())), nil
}
