package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/codearena/judge/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"
)

const cleanupTimeout = 10 * time.Second

// DockerConfig defines the container limits of every step
type DockerConfig struct {
	NanoCPUs    int64
	PidsLimit   int64
	TmpfsSize   types.Size
	OutputLimit types.Size

	// User is the uid:gid of the step processes. Files they leave in the
	// workspace stay removable by the judge, which defaults it to its own.
	User   string
	Logger *zap.Logger
}

// DockerRuntime starts one throw-away container per step through the
// Docker Engine API
type DockerRuntime struct {
	cli  client.APIClient
	conf DockerConfig
	log  *zap.Logger
}

// NewDockerClient connects to the daemon configured by the DOCKER_* env
func NewDockerClient() (*client.Client, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

// NewDockerRuntime creates the runtime over cli
func NewDockerRuntime(cli client.APIClient, conf DockerConfig) *DockerRuntime {
	logger := conf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if conf.TmpfsSize == 0 {
		conf.TmpfsSize = 64 << 20
	}
	if conf.User == "" {
		conf.User = currentUser()
	}
	return &DockerRuntime{cli: cli, conf: conf, log: logger}
}

// Ping checks the daemon is reachable
func (d *DockerRuntime) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return types.InfrastructureError(fmt.Errorf("docker ping: %w", err))
	}
	return nil
}

// Run creates, starts and waits for a container executing the step. The
// container is always force removed before Run returns.
func (d *DockerRuntime) Run(ctx context.Context, name string, s Step) (Output, error) {
	cfg, hostCfg := d.containerConfig(s)

	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			err = fmt.Errorf("image %s not available: %w", s.Image, err)
		}
		return Output{}, types.InfrastructureError(fmt.Errorf("create container: %w", err))
	}
	defer d.remove(resp.ID, name)

	var feed func() error
	if s.Stdin != "" {
		hijack, err := d.cli.ContainerAttach(ctx, resp.ID, container.AttachOptions{Stream: true, Stdin: true})
		if err != nil {
			return Output{}, types.InfrastructureError(fmt.Errorf("attach container: %w", err))
		}
		defer hijack.Close()
		feed = func() error {
			if err := hijack.Conn.SetWriteDeadline(time.Now().Add(cleanupTimeout)); err != nil {
				return err
			}
			if _, err := io.Copy(hijack.Conn, strings.NewReader(s.Stdin)); err != nil {
				return err
			}
			return hijack.CloseWrite()
		}
	}

	runCtx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	// wait before start so a fast exit is not missed
	waitCh, errCh := d.cli.ContainerWait(runCtx, resp.ID, container.WaitConditionNextExit)

	start := time.Now()
	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return Output{}, types.InfrastructureError(fmt.Errorf("start container: %w", err))
	}
	if feed != nil {
		// the step may exit without reading its input
		if err := feed(); err != nil {
			d.log.Warn("failed to write container stdin", zap.String("name", name), zap.Error(err))
		}
	}

	var exitCode int64
	select {
	case w := <-waitCh:
		if w.Error != nil && w.Error.Message != "" {
			return Output{}, types.InfrastructureError(fmt.Errorf("wait container: %s", w.Error.Message))
		}
		exitCode = w.StatusCode

	case err := <-errCh:
		switch {
		case ctx.Err() != nil:
			d.kill(resp.ID, name)
			return Output{}, ctx.Err()
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			d.kill(resp.ID, name)
			d.log.Info("container timed out", zap.String("name", name), zap.Duration("timeout", s.Timeout))
			return Output{TimedOut: true, ExitCode: -1, Duration: time.Since(start)}, nil
		default:
			return Output{}, types.InfrastructureError(fmt.Errorf("wait container: %w", err))
		}
	}
	duration := time.Since(start)

	stdout := newLimitedBuffer(int(d.conf.OutputLimit))
	stderr := newLimitedBuffer(int(d.conf.OutputLimit))
	if err := d.collect(resp.ID, stdout, stderr); err != nil {
		return Output{}, types.InfrastructureError(fmt.Errorf("read container logs: %w", err))
	}
	return Output{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  int(exitCode),
		Duration:  duration,
		Truncated: stdout.truncated || stderr.truncated,
	}, nil
}

func (d *DockerRuntime) containerConfig(s Step) (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		Image:           s.Image,
		Cmd:             s.Args,
		WorkingDir:      AppDir,
		User:            d.conf.User,
		Env:             []string{"HOME=/tmp"},
		NetworkDisabled: true,
		Tty:             false,
	}
	if s.Stdin != "" {
		cfg.AttachStdin = true
		cfg.OpenStdin = true
		cfg.StdinOnce = true
	}
	hostCfg := &container.HostConfig{
		Binds:          []string{s.Dir + ":" + AppDir},
		NetworkMode:    "none",
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		ReadonlyRootfs: true,
		Tmpfs: map[string]string{
			"/tmp": fmt.Sprintf("rw,exec,nosuid,size=%d", d.conf.TmpfsSize.Byte()),
		},
		Resources: container.Resources{
			NanoCPUs: d.conf.NanoCPUs,
		},
	}
	if s.MemoryLimit > 0 {
		hostCfg.Memory = int64(s.MemoryLimit.Byte())
		hostCfg.MemorySwap = hostCfg.Memory
	}
	if d.conf.PidsLimit > 0 {
		pids := d.conf.PidsLimit
		hostCfg.PidsLimit = &pids
	}
	return cfg, hostCfg
}

// collect demultiplexes the container log stream into stdout and stderr
func (d *DockerRuntime) collect(id string, stdout, stderr *limitedBuffer) error {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	rc, err := d.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = stdcopy.StdCopy(stdout, stderr, rc)
	return err
}

// currentUser returns the uid:gid of this process, empty where the platform
// has none
func currentUser() string {
	uid, gid := os.Getuid(), os.Getgid()
	if uid < 0 || gid < 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", uid, gid)
}

func (d *DockerRuntime) kill(id, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := d.cli.ContainerKill(ctx, id, "KILL"); err != nil && !errdefs.IsNotFound(err) && !errdefs.IsConflict(err) {
		d.log.Warn("failed to kill container", zap.String("name", name), zap.Error(err))
	}
}

func (d *DockerRuntime) remove(id, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := d.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil && !errdefs.IsNotFound(err) {
		d.log.Error("failed to remove container", zap.String("name", name), zap.Error(err))
	}
}
