// Command arena-judge starts a http server that judges submissions against
// hidden test cases inside a container sandbox.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/codearena/judge/cache"
	"github.com/codearena/judge/cmd/arena-judge/config"
	grpcexecutor "github.com/codearena/judge/cmd/arena-judge/grpc_executor"
	natsexecutor "github.com/codearena/judge/cmd/arena-judge/nats_executor"
	restexecutor "github.com/codearena/judge/cmd/arena-judge/rest_executor"
	"github.com/codearena/judge/cmd/arena-judge/version"
	wsexecutor "github.com/codearena/judge/cmd/arena-judge/ws_executor"
	"github.com/codearena/judge/harness"
	"github.com/codearena/judge/judge"
	"github.com/codearena/judge/language"
	"github.com/codearena/judge/sandbox"
	"github.com/codearena/judge/workspace"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	grpc_auth "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/grpclog"
	"google.golang.org/grpc/status"
)

var logger *zap.Logger

func main() {
	conf := loadConf()
	if conf.Version {
		fmt.Println(version.Version)
		return
	}
	initLogger(conf)
	defer logger.Sync()
	if ce := logger.Check(zap.InfoLevel, "Config loaded"); ce != nil {
		ce.Write(zap.String("config", fmt.Sprintf("%+v", conf)))
	}

	languages := newLanguages(conf)
	workspaces := newWorkspaces(conf)
	verdictCache := newCache(conf)
	coordinator := judge.NewCoordinator(judge.Config{
		Synthesizer: harness.New(languages),
		Runner:      newRunner(conf),
		Workspaces:  workspaces,
		Cache:       verdictCache,
		Logger:      logger,
	})
	work := newWorker(conf, coordinator, workspaces, languages)
	work.Start()
	logger.Info("Worker started",
		zap.Int("parallelism", conf.Parallelism),
		zap.String("runtime", conf.Runtime),
		zap.String("dir", workspaces.Root()))

	servers := []initFunc{
		cleanUpWorker(work, workspaces),
		cleanUpCache(verdictCache),
		initHTTPServer(conf, work, languages),
		initMonitorHTTPServer(conf),
		initGRPCServer(conf, work, languages),
		initNatsConsumer(conf, work),
	}

	// Gracefully shutdown, with signal / HTTP server / gRPC server / Monitor HTTP server
	sig := make(chan os.Signal, 1+len(servers))

	stops := []stopFunc{}
	for _, s := range servers {
		start, stop := s()
		if start != nil {
			go func() {
				start()
				sig <- os.Interrupt
			}()
		}
		if stop != nil {
			stops = append(stops, stop)
		}
	}

	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	signal.Reset(syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Shutting Down...")

	ctx, cancel := context.WithTimeout(context.TODO(), time.Second*3)
	defer cancel()

	var eg errgroup.Group
	for _, s := range stops {
		eg.Go(func() error {
			return s(ctx)
		})
	}

	go func() {
		logger.Info("Shutdown Finished", zap.Error(eg.Wait()))
		cancel()
	}()
	<-ctx.Done()
}

func loadConf() *config.Config {
	var conf config.Config
	if err := conf.Load(); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatalln("load config failed ", err)
	}
	return &conf
}

type (
	stopFunc func(ctx context.Context) error
	initFunc func() (start func(), cleanUp stopFunc)
)

// cleanUpWorker waits for running executions before removing the
// workspaces left behind
func cleanUpWorker(work judge.Worker, workspaces *workspace.Manager) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		return nil, func(ctx context.Context) error {
			work.Shutdown()
			logger.Info("Worker shutdown")
			err := workspaces.Shutdown()
			logger.Info("Workspaces cleaned up", zap.Error(err))
			return err
		}
	}
}

func cleanUpCache(c judge.Cache) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		rc, ok := c.(*cache.RedisCache)
		if !ok {
			return nil, nil
		}
		return nil, func(ctx context.Context) error {
			logger.Info("Verdict cache closed")
			return rc.Close()
		}
	}
}

func initHTTPServer(conf *config.Config, work judge.Worker, languages *language.Registry) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		// Init http handle
		r := initHTTPMux(conf, work, languages)
		srv := http.Server{
			Addr:    conf.HTTPAddr,
			Handler: r,
		}

		return func() {
				lis, err := net.Listen("tcp", conf.HTTPAddr)
				if err != nil {
					logger.Error("Http server listen failed", zap.Error(err))
					return
				}
				logger.Info("Starting http server", zap.String("addr", lis.Addr().String()))
				if err := srv.Serve(lis); errors.Is(err, http.ErrServerClosed) {
					logger.Info("Http server stopped", zap.Error(err))
				} else {
					logger.Error("Http server stopped", zap.Error(err))
				}
			}, func(ctx context.Context) error {
				logger.Info("Http server shutting down")
				return srv.Shutdown(ctx)
			}
	}
}

func initMonitorHTTPServer(conf *config.Config) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		// Init monitor HTTP server
		mr := initMonitorHTTPMux(conf)
		if mr == nil {
			return nil, nil
		}
		msrv := http.Server{
			Addr:    conf.MonitorAddr,
			Handler: mr,
		}
		return func() {
				lis, err := net.Listen("tcp", conf.MonitorAddr)
				if err != nil {
					logger.Error("Monitoring http listen failed", zap.Error(err))
					return
				}
				logger.Info("Starting monitoring http server", zap.String("addr", lis.Addr().String()))
				logger.Info("Monitoring http server stopped", zap.Error(msrv.Serve(lis)))
			}, func(ctx context.Context) error {
				logger.Info("Monitoring http server shutdown")
				return msrv.Shutdown(ctx)
			}
	}
}

func initGRPCServer(conf *config.Config, work judge.Worker, languages *language.Registry) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		if !conf.EnableGRPC {
			return nil, nil
		}
		// Init gRPC server
		esServer := grpcexecutor.New(work, languages, logger)
		grpcServer := newGRPCServer(conf, esServer)

		return func() {
				lis, err := net.Listen("tcp", conf.GRPCAddr)
				if err != nil {
					logger.Error("gRPC listen failed: ", zap.Error(err))
					return
				}
				logger.Info("Starting gRPC server", zap.String("addr", lis.Addr().String()))
				logger.Info("gRPC server stopped", zap.Error(grpcServer.Serve(lis)))
			}, func(ctx context.Context) error {
				grpcServer.GracefulStop()
				logger.Info("GRPC server shutdown")
				return nil
			}
	}
}

func initNatsConsumer(conf *config.Config, work judge.Worker) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		if conf.NatsURL == "" {
			return nil, nil
		}
		nc, err := nats.Connect(conf.NatsURL, nats.Name("arena-judge"))
		if err != nil {
			logger.Fatal("Connect to nats failed", zap.String("url", conf.NatsURL), zap.Error(err))
		}
		consumer := natsexecutor.New(nc, work, natsexecutor.Config{
			Subject: conf.NatsSubject,
			Queue:   conf.NatsQueue,
		}, logger)
		if err := consumer.Start(); err != nil {
			logger.Fatal("Start nats consumer failed", zap.Error(err))
		}
		logger.Info("Nats consumer started",
			zap.String("subject", conf.NatsSubject),
			zap.String("queue", conf.NatsQueue))
		return nil, func(ctx context.Context) error {
			err := consumer.Stop()
			nc.Close()
			logger.Info("Nats consumer stopped", zap.Error(err))
			return err
		}
	}
}

func initLogger(conf *config.Config) {
	if conf.Silent {
		logger = zap.NewNop()
		return
	}

	var err error
	if conf.Release {
		logger, err = zap.NewProduction()
	} else {
		config := zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if !conf.EnableDebug {
			config.Level.SetLevel(zap.InfoLevel)
		}
		logger, err = config.Build()
	}
	if err != nil {
		log.Fatalln("init logger failed ", err)
	}
}

func initHTTPMux(conf *config.Config, work judge.Worker, languages *language.Registry) http.Handler {
	var r *gin.Engine
	if conf.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	r = gin.New()
	r.Use(ginzap.Ginzap(logger, "", false))
	r.Use(ginzap.RecoveryWithZap(logger, true))

	// Metrics Handle
	if conf.EnableMetrics {
		initGinMetrics(r)
	}

	// Version handle
	r.GET("/version", handleVersion)

	// Language handle
	restexecutor.NewLanguageHandle(languages).Register(r)

	// Add auth token
	if conf.AuthToken != "" {
		r.Use(tokenAuth(conf.AuthToken))
		logger.Info("Attach token auth")
	}

	// Rest Handle
	cmdHandle := restexecutor.NewCmdHandle(work, logger)
	cmdHandle.Register(r)

	// WebSocket Handle
	wsHandle := wsexecutor.New(work, logger)
	wsHandle.Register(r)

	return r
}

func initMonitorHTTPMux(conf *config.Config) http.Handler {
	if !conf.EnableMetrics && !conf.EnableDebug {
		return nil
	}
	mux := http.NewServeMux()
	if conf.EnableMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}
	if conf.EnableDebug {
		initDebugRoute(mux)
	}
	return mux
}

func initDebugRoute(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

// InterceptorLogger adapts zap logger to the grpc middleware logger
func InterceptorLogger(l *zap.Logger) grpc_logging.Logger {
	return grpc_logging.LoggerFunc(func(ctx context.Context, lvl grpc_logging.Level, msg string, fields ...any) {
		f := make([]zap.Field, 0, len(fields)/2)

		for i := 0; i+1 < len(fields); i += 2 {
			key := fmt.Sprint(fields[i])
			switch v := fields[i+1].(type) {
			case string:
				f = append(f, zap.String(key, v))
			case int:
				f = append(f, zap.Int(key, v))
			case bool:
				f = append(f, zap.Bool(key, v))
			default:
				f = append(f, zap.Any(key, v))
			}
		}

		logger := l.WithOptions(zap.AddCallerSkip(1)).With(f...)

		switch lvl {
		case grpc_logging.LevelDebug:
			logger.Debug(msg)
		case grpc_logging.LevelInfo:
			logger.Info(msg)
		case grpc_logging.LevelWarn:
			logger.Warn(msg)
		default:
			logger.Error(msg)
		}
	})
}

func newGRPCServer(conf *config.Config, esServer grpcexecutor.JudgeServer) *grpc.Server {
	prom := grpc_prometheus.NewServerMetrics(grpc_prometheus.WithServerHandlingTimeHistogram())
	grpclog.SetLoggerV2(zapgrpc.NewLogger(logger))
	unaryMiddleware := []grpc.UnaryServerInterceptor{
		prom.UnaryServerInterceptor(),
		grpc_logging.UnaryServerInterceptor(InterceptorLogger(logger)),
		grpc_recovery.UnaryServerInterceptor(),
	}
	if conf.AuthToken != "" {
		unaryMiddleware = append(unaryMiddleware, grpc_auth.UnaryServerInterceptor(grpcTokenAuth(conf.AuthToken)))
	}
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unaryMiddleware...),
		grpc.MaxRecvMsgSize(int(conf.GRPCMsgSize.Byte())),
	)
	grpcexecutor.RegisterJudgeServer(grpcServer, esServer)
	prom.InitializeMetrics(grpcServer)
	prometheus.MustRegister(prom)
	return grpcServer
}

func initGinMetrics(r *gin.Engine) {
	p := ginprometheus.NewWithConfig(ginprometheus.Config{
		Subsystem:          "gin",
		DisableBodyReading: true,
	})
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		return c.FullPath()
	}
	r.Use(p.HandlerFunc())
}

func tokenAuth(token string) gin.HandlerFunc {
	const bearer = "Bearer "
	return func(c *gin.Context) {
		reqToken := c.GetHeader("Authorization")
		if strings.HasPrefix(reqToken, bearer) && reqToken[len(bearer):] == token {
			c.Next()
			return
		}
		c.AbortWithStatus(http.StatusUnauthorized)
	}
}

func grpcTokenAuth(token string) func(context.Context) (context.Context, error) {
	return func(ctx context.Context) (context.Context, error) {
		reqToken, err := grpc_auth.AuthFromMD(ctx, "bearer")
		if err != nil {
			return nil, err
		}
		if reqToken != token {
			return nil, status.Error(codes.Unauthenticated, "invalid auth token")
		}
		return ctx, nil
	}
}

func handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}

func newLanguages(conf *config.Config) *language.Registry {
	if conf.Languages == "" {
		return language.Default()
	}
	r, err := language.Load(conf.Languages)
	if err != nil {
		logger.Fatal("Load language profiles failed", zap.String("file", conf.Languages), zap.Error(err))
	}
	logger.Info("Language profiles loaded", zap.String("file", conf.Languages), zap.Any("languages", r.IDs()))
	return r
}

func newWorkspaces(conf *config.Config) *workspace.Manager {
	m, err := workspace.NewManager(conf.Dir, logger)
	if err != nil {
		logger.Fatal("Create workspace root failed", zap.String("dir", conf.Dir), zap.Error(err))
	}
	return m
}

func newCache(conf *config.Config) judge.Cache {
	if conf.RedisAddr == "" {
		return nil
	}
	c, err := cache.New(cache.Config{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
		TTL:      conf.CacheTTL,
	}, logger)
	if err != nil {
		logger.Fatal("Connect to verdict cache failed", zap.String("addr", conf.RedisAddr), zap.Error(err))
	}
	logger.Info("Verdict cache enabled", zap.String("addr", conf.RedisAddr), zap.Duration("ttl", conf.CacheTTL))
	return c
}

func newRuntime(conf *config.Config) sandbox.Runtime {
	switch conf.Runtime {
	case "docker":
		cli, err := sandbox.NewDockerClient()
		if err != nil {
			logger.Fatal("Create docker client failed", zap.Error(err))
		}
		rt := sandbox.NewDockerRuntime(cli, sandbox.DockerConfig{
			NanoCPUs:    conf.NanoCPUs,
			PidsLimit:   conf.PidsLimit,
			TmpfsSize:   *conf.TmpfsSize,
			User:        conf.SandboxUser,
			OutputLimit: *conf.OutputLimit,
			Logger:      logger,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.Ping(ctx); err != nil {
			logger.Fatal("Docker daemon unavailable", zap.Error(err))
		}
		return rt
	case "local":
		logger.Warn("Local runtime runs submissions on the host without isolation, use it in development only")
		return &sandbox.LocalRuntime{
			OutputLimit: *conf.OutputLimit,
			Logger:      logger,
		}
	default:
		logger.Fatal("Unknown runtime", zap.String("runtime", conf.Runtime))
		return nil
	}
}

func newRunner(conf *config.Config) *sandbox.Runner {
	return sandbox.NewRunner(sandbox.Config{
		Runtime:        newRuntime(conf),
		Slots:          conf.Parallelism,
		CompileTimeout: conf.CompileTimeout,
		RunTimeout:     conf.RunTimeout,
		MemoryLimit:    *conf.MemoryLimit,
		Logger:         logger,
	})
}

func newWorker(conf *config.Config, exec judge.Executor, workspaces *workspace.Manager, languages *language.Registry) judge.Worker {
	wc := judge.WorkerConfig{
		Executor:    exec,
		Parallelism: conf.Parallelism,
	}
	if conf.EnableMetrics {
		wc.ExecObserver = newExecObserver(languages)
		registerWorkspaceMetrics(workspaces)
	}
	return judge.NewWorker(wc)
}
