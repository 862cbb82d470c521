package wsexecutor

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codearena/judge/cmd/arena-judge/model"
	"github.com/codearena/judge/judge"
	"github.com/codearena/judge/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

type mockWorker struct {
	judge.Worker
}

func (m *mockWorker) Submit(_ context.Context, req *judge.Request) <-chan judge.Response {
	ch := make(chan judge.Response, 1)
	if req.OnStart != nil {
		req.OnStart()
	}
	ch <- judge.Response{
		RequestID: req.RequestID,
		Language:  req.Language,
		Verdict:   types.NewVerdict([]types.TestResult{{Input: "[1,2]", Expected: "3", Actual: "3", Passed: true}}),
		Duration:  20 * time.Millisecond,
	}
	return ch
}

func TestWebSocketEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	New(&mockWorker{}, zaptest.NewLogger(t)).Register(router)
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := types.ExecutionRequest{
		RequestID:  "ws-1",
		SourceCode: "function add(a,b){return a+b;}",
		Language:   "js",
		TestCases:  []types.TestCase{{Input: "[1,2]", Output: "3"}},
	}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	want := []model.EventType{model.EventQueued, model.EventRunning, model.EventVerdict}
	for _, typ := range want {
		var e model.Event
		if err := conn.ReadJSON(&e); err != nil {
			t.Fatalf("read %s: %v", typ, err)
		}
		if e.Type != typ || e.RequestID != "ws-1" {
			t.Fatalf("expected %s event for ws-1, got %+v", typ, e)
		}
		if typ == model.EventVerdict {
			if e.Verdict == nil || e.Verdict.Status != types.StatusPassed {
				t.Fatalf("unexpected verdict %+v", e.Verdict)
			}
			if e.Time != 20 {
				t.Fatalf("expected time 20, got %d", e.Time)
			}
		}
	}
}
