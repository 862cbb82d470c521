package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/codearena/judge/types"
	"go.uber.org/zap"
)

// LocalRuntime runs steps directly on the host in a new process group.
// It provides no isolation beyond the time and output limits and is meant
// for development and tests only.
type LocalRuntime struct {
	OutputLimit types.Size
	Logger      *zap.Logger
}

// Run executes the step args in s.Dir
func (l *LocalRuntime) Run(ctx context.Context, name string, s Step) (Output, error) {
	if len(s.Args) == 0 {
		return Output{}, types.InfrastructureError(errors.New("empty command"))
	}
	runCtx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	stdout := newLimitedBuffer(int(l.OutputLimit))
	stderr := newLimitedBuffer(int(l.OutputLimit))

	cmd := exec.Command(s.Args[0], s.Args[1:]...)
	cmd.Dir = s.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if s.Stdin != "" {
		cmd.Stdin = strings.NewReader(s.Stdin)
	}
	cmd.WaitDelay = time.Second
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Output{}, types.InfrastructureError(fmt.Errorf("start %s: %w", name, err))
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var (
		err      error
		timedOut bool
	)
	select {
	case err = <-done:
	case <-runCtx.Done():
		if kerr := killGroup(cmd); kerr != nil && l.Logger != nil {
			l.Logger.Warn("failed to kill process group", zap.String("name", name), zap.Error(kerr))
		}
		err = <-done
		if ctx.Err() != nil {
			return Output{}, ctx.Err()
		}
		timedOut = true
	}

	o := Output{
		ExitCode:  exitCode(err),
		TimedOut:  timedOut,
		Duration:  time.Since(start),
		Truncated: stdout.truncated || stderr.truncated,
	}
	if timedOut {
		o.Stderr = stderr.String()
		return o, nil
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) && !errors.Is(err, exec.ErrWaitDelay) {
		return o, types.InfrastructureError(fmt.Errorf("wait %s: %w", name, err))
	}
	o.Stdout = stdout.String()
	o.Stderr = stderr.String()
	return o, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
