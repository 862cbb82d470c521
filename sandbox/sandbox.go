// Package sandbox runs synthesized units inside an isolated runtime.
//
// Every step gets a fresh container (or process group), a wall clock limit
// and bounded output capture. A timed out step is killed together with all
// of its children before Run returns.
package sandbox

import (
	"context"
	"time"

	"github.com/codearena/judge/types"
)

// AppDir is where the workspace is mounted inside the sandbox
const AppDir = "/app"

// Step is a single invocation inside the sandbox
type Step struct {
	// Name is "compile" or "run", used for logs and container names
	Name  string
	Image string
	Args  []string

	// Dir is the host directory mounted read/write at AppDir
	Dir string

	// Stdin is written to the standard input of the step, which is then
	// closed. Empty means no input.
	Stdin string

	Timeout     time.Duration
	MemoryLimit types.Size
}

// Output is the captured result of a step
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool

	// Truncated is set when either stream exceeded the output limit
	Truncated bool
	Duration  time.Duration
}

// Failed reports whether the step did not exit cleanly
func (o *Output) Failed() bool {
	return o.TimedOut || o.ExitCode != 0
}

// Runtime is the outbound contract to an isolation backend.
// Errors are returned only when the runtime itself failed, timeouts and
// non-zero exits are reported through Output.
type Runtime interface {
	Run(ctx context.Context, name string, s Step) (Output, error)
}

// withTimeout applies the step timeout, zero means no limit
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
