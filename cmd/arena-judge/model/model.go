package model

import (
	"strings"

	"github.com/codearena/judge/judge"
	"github.com/codearena/judge/types"
	"github.com/google/uuid"
)

// Request is the body of POST /run
type Request struct {
	RequestID string           `json:"requestId,omitempty"`
	Code      string           `json:"code"`
	Language  string           `json:"language"`
	TestCases []types.TestCase `json:"testCases"`
}

// Response is the reply of POST /run. Output carries the error message
// and the raw program output when the verdict is an error.
type Response struct {
	RequestID string             `json:"requestId,omitempty"`
	Status    types.Status       `json:"status"`
	Results   []types.TestResult `json:"results"`
	Output    string             `json:"output,omitempty"`
}

// EventType is the type of a streamed websocket event
type EventType string

// Streamed event types, in the order they are sent
const (
	EventQueued  EventType = "queued"
	EventRunning EventType = "running"
	EventVerdict EventType = "verdict"
)

// Event is a single websocket message sent back to the client
type Event struct {
	Type      EventType      `json:"type"`
	RequestID string         `json:"requestId"`
	Verdict   *types.Verdict `json:"verdict,omitempty"`
	Time      int64          `json:"time,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// ConvertRequest converts the /run body into a worker request
func (r *Request) ConvertRequest() *judge.Request {
	return NewWorkerRequest(&types.ExecutionRequest{
		RequestID:  r.RequestID,
		SourceCode: r.Code,
		Language:   types.ParseLanguage(r.Language),
		TestCases:  r.TestCases,
	})
}

// NewWorkerRequest wraps an execution request, assigning a request id when
// the caller did not provide one
func NewWorkerRequest(req *types.ExecutionRequest) *judge.Request {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	req.Language = types.ParseLanguage(string(req.Language))
	if req.TestCases == nil {
		req.TestCases = []types.TestCase{}
	}
	return &judge.Request{ExecutionRequest: req}
}

// ConvertResponse converts the worker response into the /run reply
func ConvertResponse(rt judge.Response) Response {
	v := rt.Verdict
	ret := Response{
		RequestID: rt.RequestID,
		Status:    v.Status,
		Results:   v.Results,
	}
	if ret.Results == nil {
		ret.Results = []types.TestResult{}
	}
	if v.Status == types.StatusError {
		ret.Output = strings.TrimSpace(strings.Join([]string{v.Message, v.RawOutput}, "\n"))
	}
	return ret
}
