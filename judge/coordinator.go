// Package judge sequences synthesis, sandbox execution and interpretation
// for one submission and guarantees the workspace is removed afterwards.
package judge

import (
	"context"
	"fmt"
	"time"

	"github.com/codearena/judge/harness"
	"github.com/codearena/judge/interpret"
	"github.com/codearena/judge/sandbox"
	"github.com/codearena/judge/types"
	"github.com/codearena/judge/workspace"
	"go.uber.org/zap"
)

// Cache stores verdicts of previously judged requests
type Cache interface {
	Get(ctx context.Context, req *types.ExecutionRequest) (types.Verdict, bool)
	Put(ctx context.Context, req *types.ExecutionRequest, v types.Verdict)
}

// Runner is the sandbox side of an execution
type Runner interface {
	Compile(ctx context.Context, u *harness.Unit, dir string) (*sandbox.Output, error)
	Execute(ctx context.Context, u *harness.Unit, dir string) (sandbox.Output, error)
}

// Config defines the coordinator dependencies
type Config struct {
	Synthesizer *harness.Synthesizer
	Runner      Runner
	Workspaces  *workspace.Manager

	// Cache is optional
	Cache  Cache
	Logger *zap.Logger
}

// Coordinator is the single entry point for judging a submission
type Coordinator struct {
	synth      *harness.Synthesizer
	runner     Runner
	workspaces *workspace.Manager
	cache      Cache
	logger     *zap.Logger
}

// NewCoordinator creates a coordinator
func NewCoordinator(conf Config) *Coordinator {
	logger := conf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		synth:      conf.Synthesizer,
		runner:     conf.Runner,
		workspaces: conf.Workspaces,
		cache:      conf.Cache,
		logger:     logger,
	}
}

// Supports reports whether the language can be judged
func (c *Coordinator) Supports(lang types.Language) bool {
	return c.synth.Supports(lang)
}

// Execute judges the request. It always returns a verdict, every failure
// including a panic ends up as an error verdict.
func (c *Coordinator) Execute(ctx context.Context, req *types.ExecutionRequest) (v types.Verdict) {
	logger := c.logger.With(zap.String("requestId", req.RequestID), zap.String("language", string(req.Language)))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during execution", zap.Any("panic", r), zap.Stack("stack"))
			v = types.ErrorVerdict(&types.Error{Kind: types.KindInternal, Message: "internal error"})
		}
		logger.Info("execution finished",
			zap.Stringer("status", v.Status),
			zap.String("kind", string(v.Kind)),
			zap.Int("passed", v.PassedCount()),
			zap.Int("total", len(v.Results)),
			zap.Duration("duration", time.Since(start)))
	}()

	if !c.synth.Supports(req.Language) {
		return types.ErrorVerdict(types.UnsupportedLanguageError(req.Language))
	}
	if len(req.TestCases) == 0 {
		return types.NewVerdict(nil)
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, req); ok {
			logger.Debug("verdict served from cache")
			return cached
		}
	}

	v = c.execute(ctx, req, logger)
	if c.cache != nil && v.Status != types.StatusError {
		c.cache.Put(ctx, req, v)
	}
	return v
}

func (c *Coordinator) execute(ctx context.Context, req *types.ExecutionRequest, logger *zap.Logger) types.Verdict {
	ws, err := c.workspaces.Acquire(req.RequestID)
	if err != nil {
		logger.Error("failed to acquire workspace", zap.Error(err))
		return types.ErrorVerdict(types.InfrastructureError(err))
	}
	defer ws.Release()

	unit, err := c.synth.Synthesize(req.SourceCode, req.Language, req.TestCases)
	if err != nil {
		logger.Info("synthesis failed", zap.Error(err))
		return types.ErrorVerdict(err)
	}
	for _, f := range unit.Files {
		if err := ws.WriteFile(f.Name, f.Content); err != nil {
			logger.Error("failed to write workspace file", zap.String("file", f.Name), zap.Error(err))
			return types.ErrorVerdict(types.InfrastructureError(fmt.Errorf("write %s: %w", f.Name, err)))
		}
	}

	compiled, err := c.runner.Compile(ctx, unit, ws.Path())
	if err != nil {
		return c.stepError(logger, sandbox.StepCompile, err)
	}
	outcome := interpret.Outcome{Compile: compiled, Token: unit.Token, Cases: req.TestCases}
	if interpret.CompileFailed(compiled) {
		return interpret.Interpret(outcome)
	}
	if compiled != nil {
		if files, err := ws.List(); err == nil {
			logger.Debug("compiled", zap.Strings("files", files))
		}
	}

	outcome.Run, err = c.runner.Execute(ctx, unit, ws.Path())
	if err != nil {
		return c.stepError(logger, sandbox.StepRun, err)
	}
	return interpret.Interpret(outcome)
}

func (c *Coordinator) stepError(logger *zap.Logger, step string, err error) types.Verdict {
	switch types.KindOf(err) {
	case types.KindInfrastructure:
		logger.Error("sandbox unavailable", zap.String("step", step), zap.Error(err))
	default:
		logger.Warn("sandbox step aborted", zap.String("step", step), zap.Error(err))
	}
	return types.ErrorVerdict(err)
}
