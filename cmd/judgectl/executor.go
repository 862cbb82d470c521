package main

import (
	"context"
	"fmt"

	grpcexecutor "github.com/codearena/judge/cmd/arena-judge/grpc_executor"
	"github.com/codearena/judge/harness"
	"github.com/codearena/judge/judge"
	"github.com/codearena/judge/language"
	"github.com/codearena/judge/sandbox"
	"github.com/codearena/judge/types"
	"github.com/codearena/judge/workspace"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// executor judges requests and lists languages, locally or remotely
type executor interface {
	Execute(ctx context.Context, req *types.ExecutionRequest) types.Verdict
	Languages(ctx context.Context) ([]language.Profile, error)
	Close() error
}

func newExecutor(cmd *cli.Command) (executor, error) {
	logger := zap.NewNop()
	if cmd.Bool("verbose") {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}
	if addr := cmd.String("server"); addr != "" {
		return newRemoteExecutor(addr, cmd.String("token"))
	}
	return newLocalExecutor(cmd, logger)
}

type localExecutor struct {
	*judge.Coordinator
	languages  *language.Registry
	workspaces *workspace.Manager
}

func newLocalExecutor(cmd *cli.Command, logger *zap.Logger) (*localExecutor, error) {
	languages := language.Default()
	if f := cmd.String("languages"); f != "" {
		var err error
		if languages, err = language.Load(f); err != nil {
			return nil, err
		}
	}
	var rt sandbox.Runtime
	switch cmd.String("runtime") {
	case "local":
		rt = &sandbox.LocalRuntime{Logger: logger}
	case "docker":
		dc, err := sandbox.NewDockerClient()
		if err != nil {
			return nil, err
		}
		d := sandbox.NewDockerRuntime(dc, sandbox.DockerConfig{Logger: logger})
		if err := d.Ping(context.Background()); err != nil {
			return nil, fmt.Errorf("docker daemon unavailable: %w", err)
		}
		rt = d
	default:
		return nil, fmt.Errorf("unknown runtime %q", cmd.String("runtime"))
	}
	workspaces, err := workspace.NewManager(cmd.String("dir"), logger)
	if err != nil {
		return nil, err
	}
	c := judge.NewCoordinator(judge.Config{
		Synthesizer: harness.New(languages),
		Runner: sandbox.NewRunner(sandbox.Config{
			Runtime:        rt,
			Slots:          1,
			CompileTimeout: cmd.Duration("compile-timeout"),
			RunTimeout:     cmd.Duration("run-timeout"),
			Logger:         logger,
		}),
		Workspaces: workspaces,
		Logger:     logger,
	})
	return &localExecutor{Coordinator: c, languages: languages, workspaces: workspaces}, nil
}

func (l *localExecutor) Languages(context.Context) ([]language.Profile, error) {
	return l.languages.List(), nil
}

func (l *localExecutor) Close() error {
	return l.workspaces.Shutdown()
}

type remoteExecutor struct {
	conn   *grpc.ClientConn
	client grpcexecutor.JudgeClient
	token  string
}

func newRemoteExecutor(addr, token string) (*remoteExecutor, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s: %w", addr, err)
	}
	return &remoteExecutor{
		conn:   conn,
		client: grpcexecutor.NewJudgeClient(conn),
		token:  token,
	}, nil
}

func (r *remoteExecutor) withToken(ctx context.Context) context.Context {
	if r.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+r.token)
}

func (r *remoteExecutor) Execute(ctx context.Context, req *types.ExecutionRequest) types.Verdict {
	v, err := r.client.Execute(r.withToken(ctx), req)
	if err != nil {
		return types.ErrorVerdict(fmt.Errorf("remote execution failed: %w", err))
	}
	return *v
}

func (r *remoteExecutor) Languages(ctx context.Context) ([]language.Profile, error) {
	resp, err := r.client.Languages(r.withToken(ctx), &grpcexecutor.LanguagesRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Languages, nil
}

func (r *remoteExecutor) Close() error {
	return r.conn.Close()
}
