package judge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/codearena/judge/types"
)

const maxWaiting = 512

var errShutdown = errors.New("worker is shutting down")

// Executor judges a single request
type Executor interface {
	Execute(ctx context.Context, req *types.ExecutionRequest) types.Verdict
}

// Request defines a single worker request
type Request struct {
	*types.ExecutionRequest

	// OnStart is called from the worker goroutine before execution begins
	OnStart func()
}

// Response is delivered once per request
type Response struct {
	RequestID string
	Language  types.Language
	Verdict   types.Verdict
	Duration  time.Duration
	Queued    time.Duration
}

// WorkerConfig defines worker configuration
type WorkerConfig struct {
	Executor     Executor
	Parallelism  int
	ExecObserver func(Response)
}

// Worker defines interface for executor
type Worker interface {
	Start()
	Submit(context.Context, *Request) <-chan Response
	Execute(context.Context, *Request) <-chan Response
	Shutdown()
}

// worker runs requests on a fixed number of goroutines
type worker struct {
	executor     Executor
	parallelism  int
	execObserver func(Response)

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup

	// submitMu orders enqueues before the shutdown drain
	submitMu sync.RWMutex
	workCh   chan workRequest
	done     chan struct{}
}

type workRequest struct {
	*Request
	context.Context
	submitted time.Time
	resultCh  chan<- Response
}

// NewWorker creates new worker
func NewWorker(conf WorkerConfig) Worker {
	if conf.Parallelism <= 0 {
		conf.Parallelism = 1
	}
	return &worker{
		executor:     conf.Executor,
		parallelism:  conf.Parallelism,
		execObserver: conf.ExecObserver,
		workCh:       make(chan workRequest, maxWaiting),
		done:         make(chan struct{}),
	}
}

// Start starts worker loops with given parallelism
func (w *worker) Start() {
	w.startOnce.Do(func() {
		w.wg.Add(w.parallelism)
		for i := 0; i < w.parallelism; i++ {
			go w.loop()
		}
	})
}

// Submit queues a single request, waiting for capacity when the queue is
// full
func (w *worker) Submit(ctx context.Context, req *Request) <-chan Response {
	ch := make(chan Response, 1)
	wr := workRequest{
		Request:   req,
		Context:   ctx,
		submitted: time.Now(),
		resultCh:  ch,
	}
	w.submitMu.RLock()
	defer w.submitMu.RUnlock()

	select {
	case <-w.done:
		ch <- w.rejected(req, types.InfrastructureError(errShutdown))
		return ch
	default:
	}
	select {
	case <-w.done:
		ch <- w.rejected(req, types.InfrastructureError(errShutdown))
	case <-ctx.Done():
		ch <- w.rejected(req, ctx.Err())
	case w.workCh <- wr:
	}
	return ch
}

// Execute will execute the request in new goroutine (bypass the parallelism limit)
func (w *worker) Execute(ctx context.Context, req *Request) <-chan Response {
	ch := make(chan Response, 1)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.workDo(workRequest{
			Request:   req,
			Context:   ctx,
			submitted: time.Now(),
			resultCh:  ch,
		})
	}()
	return ch
}

// Shutdown stops accepting work and waits for running requests to finish.
// Requests still queued are answered with an infrastructure error.
func (w *worker) Shutdown() {
	w.stopOnce.Do(func() {
		close(w.done)
		// wait for submits already past the done check
		w.submitMu.Lock()
		w.submitMu.Unlock()
		w.wg.Wait()
		for {
			select {
			case req := <-w.workCh:
				req.resultCh <- w.rejected(req.Request, types.InfrastructureError(errShutdown))
			default:
				return
			}
		}
	})
}

func (w *worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case req := <-w.workCh:
			w.workDo(req)
		case <-w.done:
			return
		}
	}
}

func (w *worker) workDo(req workRequest) {
	start := time.Now()
	rt := Response{
		RequestID: req.RequestID,
		Language:  req.Language,
		Queued:    start.Sub(req.submitted),
	}
	if err := req.Context.Err(); err != nil {
		rt.Verdict = types.ErrorVerdict(err)
	} else {
		if req.OnStart != nil {
			req.OnStart()
		}
		rt.Verdict = w.executor.Execute(req.Context, req.ExecutionRequest)
	}
	rt.Duration = time.Since(start)
	if w.execObserver != nil {
		w.execObserver(rt)
	}
	req.resultCh <- rt
}

func (w *worker) rejected(req *Request, err error) Response {
	return Response{
		RequestID: req.RequestID,
		Language:  req.Language,
		Verdict:   types.ErrorVerdict(err),
	}
}
