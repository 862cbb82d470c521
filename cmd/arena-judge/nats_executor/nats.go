// Package natsexecutor consumes execution requests from a NATS queue group
// and replies with the verdict.
package natsexecutor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codearena/judge/cmd/arena-judge/model"
	"github.com/codearena/judge/judge"
	"github.com/codearena/judge/types"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Config defines the subscription of the consumer
type Config struct {
	Subject string
	Queue   string
}

// Consumer judges every request published on the subject. Members of the
// same queue group share the load.
type Consumer struct {
	nc     *nats.Conn
	worker judge.Worker
	conf   Config
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	sub    *nats.Subscription
}

// New creates a consumer over an established connection
func New(nc *nats.Conn, worker judge.Worker, conf Config, logger *zap.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		nc:     nc,
		worker: worker,
		conf:   conf,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the subject
func (c *Consumer) Start() error {
	sub, err := c.nc.QueueSubscribe(c.conf.Subject, c.conf.Queue, c.handleMsg)
	if err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", c.conf.Subject, err)
	}
	c.sub = sub
	return nil
}

// Stop drains the subscription and cancels the requests in flight
func (c *Consumer) Stop() error {
	var err error
	if c.sub != nil {
		err = c.sub.Drain()
	}
	c.cancel()
	return err
}

func (c *Consumer) handleMsg(msg *nats.Msg) {
	if msg.Reply == "" {
		c.logger.Warn("nats request without reply subject dropped", zap.String("subject", msg.Subject))
		return
	}
	go func() {
		if err := msg.Respond(c.handle(c.ctx, msg.Data)); err != nil {
			c.logger.Warn("nats respond failed", zap.String("reply", msg.Reply), zap.Error(err))
		}
	}()
}

// handle decodes one request and returns the encoded verdict
func (c *Consumer) handle(ctx context.Context, data []byte) []byte {
	req := new(types.ExecutionRequest)
	var v types.Verdict
	if err := json.Unmarshal(data, req); err != nil {
		v = types.ErrorVerdict(fmt.Errorf("invalid request: %w", err))
	} else {
		rt := <-c.worker.Submit(ctx, model.NewWorkerRequest(req))
		v = rt.Verdict
	}
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to encode verdict", zap.Error(err))
		return nil
	}
	return b
}
