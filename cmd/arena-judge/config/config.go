package config

import (
	"errors"
	"io/fs"
	"os"
	"runtime"
	"time"

	"github.com/codearena/judge/types"
	"github.com/joho/godotenv"
	"github.com/koding/multiconfig"
)

// Config defines arena-judge server configuration
type Config struct {
	// sandbox
	Runtime     string      `flagUsage:"sandbox runtime, docker or local" default:"docker"`
	Parallelism int         `flagUsage:"control the # of concurrent executions (default equal to number of cpu)"`
	Dir         string      `flagUsage:"specifies the root directory of the per request workspaces"`
	Languages   string      `flagUsage:"specifies language profile overrides (yaml)"`
	NanoCPUs    int64       `flagUsage:"cpu quota of each container in 1e-9 cpus" default:"1000000000"`
	PidsLimit   int64       `flagUsage:"max number of processes in each container" default:"64"`
	TmpfsSize   *types.Size `flagUsage:"size of the /tmp tmpfs inside the container" default:"64m"`
	SandboxUser string      `flagUsage:"uid:gid the containers run as (default the uid:gid of this process)"`
	OutputLimit *types.Size `flagUsage:"specifies the max captured stdout / stderr of each step" default:"4m"`

	// default limits when the language profile has none
	CompileTimeout time.Duration `flagUsage:"default compile step timeout" default:"10s"`
	RunTimeout     time.Duration `flagUsage:"default run step timeout" default:"5s"`
	MemoryLimit    *types.Size   `flagUsage:"default memory limit of each step" default:"256m"`

	// verdict cache
	RedisAddr     string        `flagUsage:"redis address of the verdict cache (disabled when empty)"`
	RedisPassword string        `flagUsage:"redis password"`
	RedisDB       int           `flagUsage:"redis database"`
	CacheTTL      time.Duration `flagUsage:"verdict cache ttl" default:"1h"`

	// server config
	HTTPAddr      string      `flagUsage:"specifies the http binding address" default:":5050"`
	EnableGRPC    bool        `flagUsage:"enable gRPC endpoint"`
	GRPCAddr      string      `flagUsage:"specifies the grpc binding address" default:":5051"`
	GRPCMsgSize   *types.Size `flagUsage:"message size limit for gRPC message" default:"16m"`
	MonitorAddr   string      `flagUsage:"specifies the metrics binding address" default:":5052"`
	AuthToken     string      `flagUsage:"bearer token auth for REST / gRPC"`
	EnableDebug   bool        `flagUsage:"enable debug endpoint"`
	EnableMetrics bool        `flagUsage:"enable promethus metrics endpoint"`

	// nats consumer
	NatsURL     string `flagUsage:"nats server url (consumer disabled when empty)"`
	NatsSubject string `flagUsage:"nats subject of execution requests" default:"arena.judge.execute"`
	NatsQueue   string `flagUsage:"nats queue group" default:"arena-judge"`

	// logger config
	Release bool `flagUsage:"release level of logs"`
	Silent  bool `flagUsage:"do not print logs"`

	// show version and exit
	Version bool `flagUsage:"show version and exit"`
}

// Load loads config from .env, flag & environment variables
func (c *Config) Load() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	cl := multiconfig.MultiLoader(
		&multiconfig.TagLoader{},
		&multiconfig.EnvironmentLoader{
			Prefix:    "AJ",
			CamelCase: true,
		},
		&multiconfig.FlagLoader{
			CamelCase: true,
			EnvPrefix: "AJ",
		},
	)
	if os.Getpid() == 1 {
		c.Release = true
	}
	if err := cl.Load(c); err != nil {
		return err
	}
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.NumCPU()
	}
	return nil
}
