package restexecutor

import (
	"net/http"

	"github.com/codearena/judge/cmd/arena-judge/model"
	"github.com/codearena/judge/judge"
	"github.com/codearena/judge/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type cmdHandle struct {
	worker judge.Worker
	logger *zap.Logger
}

// NewCmdHandle creates a new command handle
func NewCmdHandle(worker judge.Worker, logger *zap.Logger) Register {
	return &cmdHandle{
		worker: worker,
		logger: logger,
	}
}

func (c *cmdHandle) Register(r *gin.Engine) {
	// Run handle
	r.POST("/run", c.handleRun)
	// Submission handle
	r.POST("/execute", c.handleExecute)
}

func (c *cmdHandle) handleRun(ctx *gin.Context) {
	var req model.Request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.Error(err)
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Code == "" || req.Language == "" {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "code and language are required"})
		return
	}
	if req.TestCases == nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "test cases are required"})
		return
	}
	rt := c.submit(ctx, req.ConvertRequest())
	ctx.JSON(http.StatusOK, model.ConvertResponse(rt))
}

func (c *cmdHandle) handleExecute(ctx *gin.Context) {
	var req types.ExecutionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.Error(err)
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt := c.submit(ctx, model.NewWorkerRequest(&req))
	ctx.JSON(http.StatusOK, rt.Verdict)
}

func (c *cmdHandle) submit(ctx *gin.Context, r *judge.Request) judge.Response {
	c.logger.Sugar().Debugf("request: %v", r.ExecutionRequest)
	rt := <-c.worker.Submit(ctx.Request.Context(), r)
	c.logger.Sugar().Debugf("response: %v", rt.Verdict)
	return rt
}
