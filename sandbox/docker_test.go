package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/codearena/judge/types"
	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeDocker implements the calls the runtime makes. Anything else panics
// through the nil embedded interface.
type fakeDocker struct {
	client.APIClient

	createErr error
	startErr  error
	waitErr   error
	pingErr   error
	// hang keeps the container running until the wait context ends
	hang   bool
	exit   int64
	stdout string
	stderr string

	mu      sync.Mutex
	config  *container.Config
	host    *container.HostConfig
	name    string
	killed  bool
	removed bool
	stdin   bytes.Buffer
	readers sync.WaitGroup
}

func (f *fakeDocker) Ping(context.Context) (dockertypes.Ping, error) {
	return dockertypes.Ping{}, f.pingErr
}

func (f *fakeDocker) ContainerCreate(_ context.Context, cfg *container.Config, host *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config, f.host, f.name = cfg, host, name
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	return container.CreateResponse{ID: "c1"}, nil
}

func (f *fakeDocker) ContainerAttach(context.Context, string, container.AttachOptions) (dockertypes.HijackedResponse, error) {
	local, remote := net.Pipe()
	f.readers.Add(1)
	go func() {
		defer f.readers.Done()
		b, _ := io.ReadAll(remote)
		f.mu.Lock()
		f.stdin.Write(b)
		f.mu.Unlock()
	}()
	return dockertypes.HijackedResponse{Conn: local, Reader: bufio.NewReader(local)}, nil
}

func (f *fakeDocker) ContainerWait(ctx context.Context, _ string, _ container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	waitCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)
	switch {
	case f.waitErr != nil:
		errCh <- f.waitErr
	case f.hang:
		go func() {
			<-ctx.Done()
			errCh <- ctx.Err()
		}()
	default:
		waitCh <- container.WaitResponse{StatusCode: f.exit}
	}
	return waitCh, errCh
}

func (f *fakeDocker) ContainerStart(context.Context, string, container.StartOptions) error {
	return f.startErr
}

func (f *fakeDocker) ContainerLogs(context.Context, string, container.LogsOptions) (io.ReadCloser, error) {
	var buf bytes.Buffer
	stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(f.stdout))
	stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(f.stderr))
	return io.NopCloser(&buf), nil
}

func (f *fakeDocker) ContainerKill(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = true
	return nil
}

func (f *fakeDocker) ContainerRemove(_ context.Context, _ string, opts container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = opts.Force
	return nil
}

func newDockerRuntime(t *testing.T, f *fakeDocker) *DockerRuntime {
	return NewDockerRuntime(f, DockerConfig{
		NanoCPUs:    1e9,
		PidsLimit:   32,
		OutputLimit: 1 << 10,
		User:        "1000:1000",
		Logger:      zaptest.NewLogger(t),
	})
}

func dockerStep() Step {
	return Step{
		Name:        StepRun,
		Image:       "node:18-alpine",
		Args:        []string{"node", "runner.js"},
		Dir:         "/work/r1",
		Timeout:     time.Second,
		MemoryLimit: 128 << 20,
	}
}

func TestDockerContainerConfig(t *testing.T) {
	f := &fakeDocker{}
	d := newDockerRuntime(t, f)
	cfg, host := d.containerConfig(dockerStep())

	assert.Equal(t, "node:18-alpine", cfg.Image)
	assert.Equal(t, []string{"node", "runner.js"}, []string(cfg.Cmd))
	assert.Equal(t, AppDir, cfg.WorkingDir)
	assert.Equal(t, "1000:1000", cfg.User)
	assert.True(t, cfg.NetworkDisabled)
	assert.False(t, cfg.OpenStdin)

	assert.Equal(t, container.NetworkMode("none"), host.NetworkMode)
	assert.Equal(t, []string{"ALL"}, []string(host.CapDrop))
	assert.Contains(t, host.SecurityOpt, "no-new-privileges")
	assert.True(t, host.ReadonlyRootfs)
	assert.Equal(t, []string{"/work/r1:" + AppDir}, host.Binds)
	assert.Contains(t, host.Tmpfs, "/tmp")
	assert.Equal(t, int64(128<<20), host.Memory)
	assert.Equal(t, host.Memory, host.MemorySwap)
	assert.Equal(t, int64(1e9), host.NanoCPUs)
	require.NotNil(t, host.PidsLimit)
	assert.Equal(t, int64(32), *host.PidsLimit)

	s := dockerStep()
	s.Stdin = "token\n"
	cfg, _ = d.containerConfig(s)
	assert.True(t, cfg.OpenStdin)
	assert.True(t, cfg.StdinOnce)
	assert.True(t, cfg.AttachStdin)
}

func TestDockerDefaultUser(t *testing.T) {
	d := NewDockerRuntime(&fakeDocker{}, DockerConfig{})
	cfg, _ := d.containerConfig(dockerStep())
	assert.Equal(t, currentUser(), cfg.User)
}

func TestDockerRun(t *testing.T) {
	f := &fakeDocker{exit: 3, stdout: "out", stderr: "err"}
	d := newDockerRuntime(t, f)
	s := dockerStep()
	s.Stdin = "token\n"

	o, err := d.Run(context.Background(), "aj-1-run", s)
	require.NoError(t, err)
	f.readers.Wait()

	assert.Equal(t, "out", o.Stdout)
	assert.Equal(t, "err", o.Stderr)
	assert.Equal(t, 3, o.ExitCode)
	assert.False(t, o.TimedOut)
	assert.Equal(t, "aj-1-run", f.name)
	assert.Equal(t, "token\n", f.stdin.String())
	assert.True(t, f.removed)
	assert.False(t, f.killed)
}

func TestDockerRunOutputLimit(t *testing.T) {
	f := &fakeDocker{stdout: string(bytes.Repeat([]byte("x"), 4<<10))}
	o, err := newDockerRuntime(t, f).Run(context.Background(), "n", dockerStep())
	require.NoError(t, err)
	assert.Len(t, o.Stdout, 1<<10)
	assert.True(t, o.Truncated)
}

func TestDockerRunTimeout(t *testing.T) {
	f := &fakeDocker{hang: true, stdout: "partial"}
	s := dockerStep()
	s.Timeout = 50 * time.Millisecond

	o, err := newDockerRuntime(t, f).Run(context.Background(), "n", s)
	require.NoError(t, err)
	assert.True(t, o.TimedOut)
	assert.Equal(t, -1, o.ExitCode)
	assert.Empty(t, o.Stdout, "stdout of a timed out step is discarded")
	assert.True(t, f.killed)
	assert.True(t, f.removed)
}

func TestDockerRunParentCancel(t *testing.T) {
	f := &fakeDocker{hang: true}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := newDockerRuntime(t, f).Run(ctx, "n", dockerStep())
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, f.killed)
	assert.True(t, f.removed)
}

func TestDockerRunInfrastructureErrors(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeDocker
		msg     string
		removed bool
	}{
		{
			name: "image missing",
			fake: &fakeDocker{createErr: errdefs.NotFound(errors.New("No such image: node:18-alpine"))},
			msg:  "image node:18-alpine not available",
		},
		{
			name:    "start failed",
			fake:    &fakeDocker{startErr: errors.New("oci runtime error")},
			msg:     "start container",
			removed: true,
		},
		{
			name:    "wait failed",
			fake:    &fakeDocker{waitErr: errors.New("daemon gone")},
			msg:     "wait container",
			removed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newDockerRuntime(t, tt.fake).Run(context.Background(), "n", dockerStep())
			require.ErrorIs(t, err, types.ErrInfrastructure)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Equal(t, tt.removed, tt.fake.removed)
		})
	}
}

func TestDockerPing(t *testing.T) {
	assert.NoError(t, newDockerRuntime(t, &fakeDocker{}).Ping(context.Background()))
	err := newDockerRuntime(t, &fakeDocker{pingErr: errors.New("refused")}).Ping(context.Background())
	assert.ErrorIs(t, err, types.ErrInfrastructure)
}
