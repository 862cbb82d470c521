package judge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codearena/judge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowExecutor struct {
	delay         time.Duration
	running, peak atomic.Int32
}

func (e *slowExecutor) Execute(ctx context.Context, req *types.ExecutionRequest) types.Verdict {
	n := e.running.Add(1)
	defer e.running.Add(-1)
	for {
		old := e.peak.Load()
		if n <= old || e.peak.CompareAndSwap(old, n) {
			break
		}
	}
	select {
	case <-time.After(e.delay):
	case <-ctx.Done():
		return types.ErrorVerdict(ctx.Err())
	}
	return types.NewVerdict([]types.TestResult{{Input: req.RequestID, Passed: true}})
}

func request(id string) *Request {
	return &Request{ExecutionRequest: &types.ExecutionRequest{RequestID: id, Language: types.LanguageJavaScript}}
}

func TestWorkerBoundedParallelism(t *testing.T) {
	exec := &slowExecutor{delay: 20 * time.Millisecond}
	var observed atomic.Int32
	w := NewWorker(WorkerConfig{
		Executor:     exec,
		Parallelism:  2,
		ExecObserver: func(Response) { observed.Add(1) },
	})
	w.Start()
	defer w.Shutdown()

	var chans []<-chan Response
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		chans = append(chans, w.Submit(context.Background(), request(id)))
	}
	for i, ch := range chans {
		rt := <-ch
		assert.Equal(t, types.StatusPassed, rt.Verdict.Status)
		assert.Equal(t, string(rune('a'+i)), rt.RequestID)
		assert.Equal(t, types.LanguageJavaScript, rt.Language)
	}
	assert.LessOrEqual(t, exec.peak.Load(), int32(2))
	assert.Equal(t, int32(6), observed.Load())
}

func TestWorkerOnStart(t *testing.T) {
	w := NewWorker(WorkerConfig{Executor: &slowExecutor{}, Parallelism: 1})
	w.Start()
	defer w.Shutdown()

	started := make(chan struct{})
	req := request("x")
	req.OnStart = func() { close(started) }
	rt := <-w.Submit(context.Background(), req)
	assert.Equal(t, types.StatusPassed, rt.Verdict.Status)
	select {
	case <-started:
	default:
		t.Fatal("OnStart was not called")
	}
}

func TestWorkerExecuteBypassesBound(t *testing.T) {
	exec := &slowExecutor{delay: 50 * time.Millisecond}
	w := NewWorker(WorkerConfig{Executor: exec, Parallelism: 1})
	w.Start()
	defer w.Shutdown()

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-w.Execute(context.Background(), request("x"))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(3), exec.peak.Load())
}

func TestWorkerCanceledContext(t *testing.T) {
	w := NewWorker(WorkerConfig{Executor: &slowExecutor{}, Parallelism: 1})
	w.Start()
	defer w.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rt := <-w.Submit(ctx, request("x"))
	assert.Equal(t, types.StatusError, rt.Verdict.Status)
}

func TestWorkerShutdown(t *testing.T) {
	w := NewWorker(WorkerConfig{Executor: &slowExecutor{}, Parallelism: 1})
	w.Start()
	w.Shutdown()
	w.Shutdown()

	select {
	case rt := <-w.Submit(context.Background(), request("late")):
		require.Equal(t, types.StatusError, rt.Verdict.Status)
		assert.Equal(t, types.KindInfrastructure, rt.Verdict.Kind)
	case <-time.After(time.Second):
		t.Fatal("submit after shutdown must not block")
	}
}

func TestWorkerSubmitRacingShutdown(t *testing.T) {
	for range 50 {
		w := NewWorker(WorkerConfig{Executor: &slowExecutor{delay: time.Millisecond}, Parallelism: 1})
		w.Start()

		var (
			mu    sync.Mutex
			chans []<-chan Response
			wg    sync.WaitGroup
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 20 {
					ch := w.Submit(context.Background(), request("r"))
					mu.Lock()
					chans = append(chans, ch)
					mu.Unlock()
				}
			}()
		}
		w.Shutdown()
		wg.Wait()

		for _, ch := range chans {
			select {
			case <-ch:
			case <-time.After(5 * time.Second):
				t.Fatal("submitted request was never answered")
			}
		}
	}
}
