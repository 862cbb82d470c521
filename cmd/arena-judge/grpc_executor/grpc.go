package grpcexecutor

import (
	"context"

	"github.com/codearena/judge/cmd/arena-judge/model"
	"github.com/codearena/judge/judge"
	"github.com/codearena/judge/language"
	"github.com/codearena/judge/types"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// New creates grpc executor server
func New(worker judge.Worker, languages *language.Registry, logger *zap.Logger) JudgeServer {
	return &execServer{
		worker:    worker,
		languages: languages,
		logger:    logger,
	}
}

type execServer struct {
	worker    judge.Worker
	languages *language.Registry
	logger    *zap.Logger
}

func (e *execServer) Execute(ctx context.Context, req *types.ExecutionRequest) (*types.Verdict, error) {
	if req.Language == "" {
		return nil, status.Error(codes.InvalidArgument, "language is required")
	}
	r := model.NewWorkerRequest(req)
	e.logger.Sugar().Debugf("request: %v", r.ExecutionRequest)
	rt := <-e.worker.Submit(ctx, r)
	e.logger.Sugar().Debugf("response: %v", rt.Verdict)
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	return &rt.Verdict, nil
}

func (e *execServer) Languages(context.Context, *LanguagesRequest) (*LanguagesResponse, error) {
	return &LanguagesResponse{Languages: e.languages.List()}, nil
}
