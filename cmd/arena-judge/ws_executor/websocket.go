package wsexecutor

import (
	"context"
	"net/http"
	"time"

	"github.com/codearena/judge/cmd/arena-judge/model"
	"github.com/codearena/judge/judge"
	"github.com/codearena/judge/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Register registers web socket handle /ws
type Register interface {
	Register(*gin.Engine)
}

// New creates new websocket handle
func New(worker judge.Worker, logger *zap.Logger) Register {
	return &wsHandle{
		worker: worker,
		logger: logger,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

type wsHandle struct {
	worker judge.Worker
	logger *zap.Logger
}

func (h *wsHandle) Register(r *gin.Engine) {
	r.GET("/ws", h.handleWS)
}

// handleWS accepts execution requests as JSON messages and streams
// queued / running / verdict events for each of them
func (h *wsHandle) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.Error(err)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	eventCh := make(chan model.Event, 128)
	send := func(e model.Event) {
		select {
		case eventCh <- e:
		case <-ctx.Done():
		}
	}

	// read request
	go func() {
		defer cancel()
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		for {
			req := new(types.ExecutionRequest)
			if err := conn.ReadJSON(req); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.logger.Sugar().Warn("ws read error: ", err)
				}
				return
			}
			r := model.NewWorkerRequest(req)
			r.OnStart = func() {
				send(model.Event{Type: model.EventRunning, RequestID: r.RequestID})
			}
			go func() {
				send(model.Event{Type: model.EventQueued, RequestID: r.RequestID})
				ret := <-h.worker.Submit(ctx, r)
				send(model.Event{
					Type:      model.EventVerdict,
					RequestID: ret.RequestID,
					Verdict:   &ret.Verdict,
					Time:      ret.Duration.Milliseconds(),
				})
			}()
		}
	}()

	// write result
	go func() {
		defer conn.Close()
		defer cancel()
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case e := <-eventCh:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(e); err != nil {
					h.logger.Sugar().Warn("ws write error: ", err)
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-ctx.Done():
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}()
}
