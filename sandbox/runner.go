package sandbox

import (
	"context"
	"time"

	"github.com/codearena/judge/harness"
	"github.com/codearena/judge/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Step names
const (
	StepCompile = "compile"
	StepRun     = "run"
)

// Config defines the runner limits. Zero values in a language profile fall
// back to these.
type Config struct {
	Runtime        Runtime
	Slots          int
	CompileTimeout time.Duration
	RunTimeout     time.Duration
	MemoryLimit    types.Size
	Logger         *zap.Logger
}

// Runner executes the compile and run steps of a unit
type Runner struct {
	runtime        Runtime
	pool           *SlotPool
	compileTimeout time.Duration
	runTimeout     time.Duration
	memoryLimit    types.Size
	logger         *zap.Logger
}

// NewRunner creates a runner over the runtime
func NewRunner(conf Config) *Runner {
	logger := conf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		runtime:        conf.Runtime,
		pool:           NewSlotPool("aj-"+uuid.NewString()[:8], conf.Slots),
		compileTimeout: conf.CompileTimeout,
		runTimeout:     conf.RunTimeout,
		memoryLimit:    conf.MemoryLimit,
		logger:         logger,
	}
}

// Prefix returns the container name prefix of the runner
func (r *Runner) Prefix() string {
	return r.pool.Prefix()
}

// Compile runs the compile step of the unit in dir. It returns nil when the
// language has no compile step.
func (r *Runner) Compile(ctx context.Context, u *harness.Unit, dir string) (*Output, error) {
	if len(u.Compile) == 0 {
		return nil, nil
	}
	o, err := r.Run(ctx, r.step(StepCompile, u, dir))
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Execute runs the harness of the unit in dir
func (r *Runner) Execute(ctx context.Context, u *harness.Unit, dir string) (Output, error) {
	return r.Run(ctx, r.step(StepRun, u, dir))
}

// Run executes a single step holding a slot of the pool
func (r *Runner) Run(ctx context.Context, s Step) (Output, error) {
	slot, err := r.pool.Get(ctx)
	if err != nil {
		return Output{}, err
	}
	defer r.pool.Put(slot)

	name := slot.ContainerName(s.Name)
	o, err := r.runtime.Run(ctx, name, s)
	if err != nil {
		r.logger.Warn("sandbox step failed", zap.String("name", name), zap.Error(err))
		return o, err
	}
	r.logger.Debug("sandbox step finished",
		zap.String("name", name),
		zap.Int("exitCode", o.ExitCode),
		zap.Bool("timedOut", o.TimedOut),
		zap.Duration("duration", o.Duration))
	return o, nil
}

func (r *Runner) step(name string, u *harness.Unit, dir string) Step {
	s := Step{
		Name:        name,
		Image:       u.Profile.Image,
		Dir:         dir,
		MemoryLimit: u.Profile.MemoryLimit,
	}
	if s.MemoryLimit == 0 {
		s.MemoryLimit = r.memoryLimit
	}
	switch name {
	case StepCompile:
		s.Args = u.Compile
		s.Timeout = firstPositive(u.Profile.CompileTimeout, r.compileTimeout)
	default:
		s.Args = u.Run
		s.Timeout = firstPositive(u.Profile.RunTimeout, r.runTimeout)
		if u.Token != "" {
			s.Stdin = u.Token + "\n"
		}
	}
	return s
}

func firstPositive(d ...time.Duration) time.Duration {
	for _, v := range d {
		if v > 0 {
			return v
		}
	}
	return 5 * time.Second
}
