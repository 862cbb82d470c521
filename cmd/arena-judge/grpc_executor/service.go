package grpcexecutor

import (
	"context"

	"github.com/codearena/judge/language"
	"github.com/codearena/judge/types"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified name of the judge service
const ServiceName = "arena.judge.Judge"

const (
	executeMethod   = "/" + ServiceName + "/Execute"
	languagesMethod = "/" + ServiceName + "/Languages"
)

// LanguagesRequest is the empty request of Languages
type LanguagesRequest struct{}

// LanguagesResponse lists the supported languages
type LanguagesResponse struct {
	Languages []language.Profile `json:"languages"`
}

// JudgeServer is the server API for the judge service
type JudgeServer interface {
	Execute(context.Context, *types.ExecutionRequest) (*types.Verdict, error)
	Languages(context.Context, *LanguagesRequest) (*LanguagesResponse, error)
}

// RegisterJudgeServer registers the judge service to the grpc server
func RegisterJudgeServer(s grpc.ServiceRegistrar, srv JudgeServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc is the grpc.ServiceDesc for the judge service
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*JudgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Execute",
			Handler:    executeHandler,
		},
		{
			MethodName: "Languages",
			Handler:    languagesHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "judge",
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(types.ExecutionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JudgeServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: executeMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(JudgeServer).Execute(ctx, req.(*types.ExecutionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func languagesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LanguagesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JudgeServer).Languages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: languagesMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(JudgeServer).Languages(ctx, req.(*LanguagesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// JudgeClient is the client API for the judge service
type JudgeClient interface {
	Execute(ctx context.Context, in *types.ExecutionRequest, opts ...grpc.CallOption) (*types.Verdict, error)
	Languages(ctx context.Context, in *LanguagesRequest, opts ...grpc.CallOption) (*LanguagesResponse, error)
}

type judgeClient struct {
	cc grpc.ClientConnInterface
}

// NewJudgeClient creates a judge client over the connection
func NewJudgeClient(cc grpc.ClientConnInterface) JudgeClient {
	return &judgeClient{cc: cc}
}

func (c *judgeClient) Execute(ctx context.Context, in *types.ExecutionRequest, opts ...grpc.CallOption) (*types.Verdict, error) {
	out := new(types.Verdict)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, executeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *judgeClient) Languages(ctx context.Context, in *LanguagesRequest, opts ...grpc.CallOption) (*LanguagesResponse, error) {
	out := new(LanguagesResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, languagesMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
