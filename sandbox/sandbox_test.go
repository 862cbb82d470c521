//go:build unix

package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codearena/judge/harness"
	"github.com/codearena/judge/language"
	"github.com/codearena/judge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sh(script string) []string {
	return []string{"/bin/sh", "-c", script}
}

func TestLocalRuntimeStreams(t *testing.T) {
	rt := &LocalRuntime{Logger: zaptest.NewLogger(t)}
	o, err := rt.Run(context.Background(), "t", Step{
		Args:    sh("echo out; echo err >&2; exit 3"),
		Dir:     t.TempDir(),
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "out\n", o.Stdout)
	assert.Equal(t, "err\n", o.Stderr)
	assert.Equal(t, 3, o.ExitCode)
	assert.False(t, o.TimedOut)
	assert.True(t, o.Failed())
}

func TestLocalRuntimeStdin(t *testing.T) {
	rt := &LocalRuntime{}
	o, err := rt.Run(context.Background(), "t", Step{Args: sh("read tok; echo got $tok"), Dir: t.TempDir(), Timeout: 5 * time.Second, Stdin: "abc\n"})
	require.NoError(t, err)
	assert.Equal(t, "got abc\n", o.Stdout)

	o, err = rt.Run(context.Background(), "t", Step{Args: sh("cat; echo done"), Dir: t.TempDir(), Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "done\n", o.Stdout, "no stdin means an empty input")
}

func TestLocalRuntimeWorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in.txt"), []byte("hello"), 0o644))

	rt := &LocalRuntime{}
	o, err := rt.Run(context.Background(), "t", Step{Args: sh("cat in.txt > out.txt; cat out.txt"), Dir: dir, Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "hello", o.Stdout)
	assert.FileExists(t, filepath.Join(dir, "out.txt"))
}

func TestLocalRuntimeTimeoutKillsGroup(t *testing.T) {
	rt := &LocalRuntime{Logger: zaptest.NewLogger(t)}
	start := time.Now()
	o, err := rt.Run(context.Background(), "t", Step{
		Args:    sh("echo partial; sleep 30 & sleep 30"),
		Dir:     t.TempDir(),
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, o.TimedOut)
	assert.Empty(t, o.Stdout, "partial stdout is discarded on timeout")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLocalRuntimeParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := (&LocalRuntime{}).Run(ctx, "t", Step{Args: sh("sleep 30"), Dir: t.TempDir(), Timeout: 10 * time.Second})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalRuntimeMissingBinary(t *testing.T) {
	_, err := (&LocalRuntime{}).Run(context.Background(), "t", Step{
		Args:    []string{"/definitely/not/here"},
		Dir:     t.TempDir(),
		Timeout: time.Second,
	})
	require.ErrorIs(t, err, types.ErrInfrastructure)
	assert.Equal(t, types.MsgInfrastructure, types.ErrorVerdict(err).Message)
}

func TestLocalRuntimeOutputLimit(t *testing.T) {
	rt := &LocalRuntime{OutputLimit: 16}
	o, err := rt.Run(context.Background(), "t", Step{
		Args:    sh("i=0; while [ $i -lt 100 ]; do echo 0123456789; i=$((i+1)); done"),
		Dir:     t.TempDir(),
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Len(t, o.Stdout, 16)
	assert.True(t, o.Truncated)
	assert.Equal(t, 0, o.ExitCode)
}

func TestLimitedBuffer(t *testing.T) {
	b := newLimitedBuffer(5)
	n, err := b.Write([]byte("abc"))
	assert.Equal(t, 3, n)
	assert.NoError(t, err)
	n, _ = b.Write([]byte("defg"))
	assert.Equal(t, 4, n)
	assert.Equal(t, "abcde", b.String())
	assert.True(t, b.truncated)

	unlimited := newLimitedBuffer(0)
	unlimited.Write([]byte(strings.Repeat("x", 1000)))
	assert.Len(t, unlimited.String(), 1000)
	assert.False(t, unlimited.truncated)
}

func TestSlotPoolBound(t *testing.T) {
	p := NewSlotPool("test", 2)
	var (
		running, peak atomic.Int32
		wg            sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := p.Get(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			p.Put(s)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.LessOrEqual(t, p.next, 2, "slots are reused")
}

func TestSlotPoolContext(t *testing.T) {
	p := NewSlotPool("test", 1)
	s, err := p.Get(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.Put(s)
	s2, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, s, s2)
	assert.NotEqual(t, s.ContainerName("run"), s2.ContainerName("run"))
}

type recordRuntime struct {
	mu    sync.Mutex
	steps []Step
	names []string
}

func (r *recordRuntime) Run(_ context.Context, name string, s Step) (Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, s)
	r.names = append(r.names, name)
	return Output{Stdout: "ok"}, nil
}

func TestRunnerSteps(t *testing.T) {
	reg := language.Default()
	java, _ := reg.Get(types.LanguageJava)
	js, _ := reg.Get(types.LanguageJavaScript)

	rt := &recordRuntime{}
	r := NewRunner(Config{
		Runtime:        rt,
		Slots:          1,
		CompileTimeout: time.Minute,
		RunTimeout:     time.Minute,
		MemoryLimit:    types.Size(64 << 20),
		Logger:         zaptest.NewLogger(t),
	})

	jsUnit := &harness.Unit{Profile: js, Run: []string{"node", "runner.js"}}
	o, err := r.Compile(context.Background(), jsUnit, "/w")
	require.NoError(t, err)
	assert.Nil(t, o, "interpreted languages have no compile step")
	assert.Empty(t, rt.steps)

	javaUnit := &harness.Unit{Profile: java, Compile: []string{"javac", "Main.java"}, Run: []string{"java", "Main"}, Token: "t0k"}
	co, err := r.Compile(context.Background(), javaUnit, "/w")
	require.NoError(t, err)
	require.NotNil(t, co)
	_, err = r.Execute(context.Background(), javaUnit, "/w")
	require.NoError(t, err)

	require.Len(t, rt.steps, 2)
	assert.Equal(t, StepCompile, rt.steps[0].Name)
	assert.Equal(t, java.CompileTimeout, rt.steps[0].Timeout)
	assert.Equal(t, java.Image, rt.steps[0].Image)
	assert.Equal(t, []string{"javac", "Main.java"}, rt.steps[0].Args)
	assert.Equal(t, StepRun, rt.steps[1].Name)
	assert.Equal(t, java.RunTimeout, rt.steps[1].Timeout)
	assert.Equal(t, java.MemoryLimit, rt.steps[1].MemoryLimit)
	assert.Equal(t, "/w", rt.steps[1].Dir)
	assert.Empty(t, rt.steps[0].Stdin, "the compiler never sees the token")
	assert.Equal(t, "t0k\n", rt.steps[1].Stdin)
	assert.NotEqual(t, rt.names[0], rt.names[1])
}

func TestRunnerDefaults(t *testing.T) {
	rt := &recordRuntime{}
	r := NewRunner(Config{Runtime: rt, RunTimeout: 3 * time.Second, MemoryLimit: 1 << 20})
	u := &harness.Unit{Profile: &language.Profile{Image: "img"}, Run: []string{"x"}}
	_, err := r.Execute(context.Background(), u, "/w")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, rt.steps[0].Timeout)
	assert.Equal(t, types.Size(1<<20), rt.steps[0].MemoryLimit)
}
