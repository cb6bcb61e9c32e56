// Package bulk runs batches of remote write operations under a concurrency
// cap, dispatching each outcome to typed per-task hooks.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/contentstack/cli-sub008/internal/infrastructure/bulk"

// ErrHookPanic marks a panic recovered from a task hook
var ErrHookPanic = errors.New("bulk: hook panicked")

// Summary counts task outcomes for one Run.
// When Run returns nil, Skipped+Succeeded+Failed == Submitted and NotLaunched == 0.
type Summary struct {
	Submitted    int
	Skipped      int
	Succeeded    int
	Failed       int
	NotLaunched  int
	PeakInFlight int
	Duration     time.Duration
}

// Option configures an Executor
type Option func(*settings)

type settings struct {
	name        string
	concurrency int
	limiter     *rate.Limiter
	logger      *zap.Logger
	tracer      trace.Tracer
}

// WithConcurrency sets the maximum number of tasks in flight (default 1)
func WithConcurrency(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithRateLimit paces remote calls to qps with the given burst.
// A non-positive qps disables pacing.
func WithRateLimit(qps float64, burst int) Option {
	return func(s *settings) {
		if qps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(qps), burst)
	}
}

// WithLimiter shares an existing limiter across executors
func WithLimiter(l *rate.Limiter) Option {
	return func(s *settings) {
		s.limiter = l
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithName labels spans and log lines
func WithName(name string) Option {
	return func(s *settings) {
		s.name = name
	}
}

// WithTracer overrides the global tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(s *settings) {
		s.tracer = tracer
	}
}

// Executor runs tasks against a remote Call with bounded concurrency.
//
// Thread Safety: Run may be called concurrently; each call has its own pool.
type Executor[P, R any] struct {
	call Call[P, R]
	settings
}

// New creates an executor for call
func New[P, R any](call Call[P, R], opts ...Option) *Executor[P, R] {
	s := settings{
		name:        "bulk",
		concurrency: 1,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return &Executor[P, R]{call: call, settings: s}
}

// Concurrency returns the configured in-flight limit
func (e *Executor[P, R]) Concurrency() int {
	return e.concurrency
}

type counters struct {
	submitted atomic.Int64
	skipped   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	inFlight  atomic.Int64
	peak      atomic.Int64
}

func (c *counters) enter() {
	n := c.inFlight.Add(1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (c *counters) leave() {
	c.inFlight.Add(-1)
}

// Run launches tasks in submission order, keeping at most Concurrency of them
// between Serialize and their terminal hook. It returns once every launched
// task has finished.
//
// Remote failures never surface here. The returned error is the first hook
// failure, or ctx.Err() when the context ended before all tasks launched.
// Either way no further tasks are launched after the failure is observed.
func (e *Executor[P, R]) Run(ctx context.Context, tasks []Task[P, R]) (Summary, error) {
	start := time.Now()
	var c counters
	var aborted atomic.Bool

	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)

	var notLaunched atomic.Int64
	for i := range tasks {
		if aborted.Load() || ctx.Err() != nil {
			notLaunched.Add(int64(len(tasks) - i))
			break
		}
		task := tasks[i]
		// Go blocks while the pool is full, so re-check the abort flag once
		// the task actually gets a slot.
		g.Go(func() error {
			if aborted.Load() || ctx.Err() != nil {
				notLaunched.Add(1)
				return nil
			}
			if err := e.runTask(ctx, task, &c); err != nil {
				aborted.Store(true)
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil && notLaunched.Load() > 0 {
		err = ctx.Err()
	}

	summary := Summary{
		Submitted:    int(c.submitted.Load()),
		Skipped:      int(c.skipped.Load()),
		Succeeded:    int(c.succeeded.Load()),
		Failed:       int(c.failed.Load()),
		NotLaunched:  int(notLaunched.Load()),
		PeakInFlight: int(c.peak.Load()),
		Duration:     time.Since(start),
	}

	fields := []zap.Field{
		zap.String("executor", e.name),
		zap.Int("tasks", len(tasks)),
		zap.Int("skipped", summary.Skipped),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration),
	}
	if err != nil {
		e.logger.Error("bulk batch aborted", append(fields, zap.Int("not_launched", summary.NotLaunched), zap.Error(err))...)
	} else {
		e.logger.Debug("bulk batch finished", fields...)
	}
	return summary, err
}

func (e *Executor[P, R]) runTask(ctx context.Context, task Task[P, R], c *counters) (err error) {
	c.enter()
	defer c.leave()
	c.submitted.Add(1)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: task %q: %v", ErrHookPanic, task.Name, r)
		}
	}()

	payload := task.Payload
	if task.Serialize != nil {
		out, ok, serr := task.Serialize(ctx, payload)
		if serr != nil {
			return fmt.Errorf("serialize task %q: %w", task.Name, serr)
		}
		if !ok {
			c.skipped.Add(1)
			return nil
		}
		payload = out
	}

	res := e.invoke(ctx, task.Name, payload)
	if res.IsOk() {
		c.succeeded.Add(1)
		if task.OnSuccess != nil {
			if herr := task.OnSuccess(ctx, res.Value, payload); herr != nil {
				return fmt.Errorf("success hook for task %q: %w", task.Name, herr)
			}
		}
		return nil
	}

	c.failed.Add(1)
	if task.OnFailure != nil {
		if herr := task.OnFailure(ctx, res.Err, payload); herr != nil {
			return fmt.Errorf("failure hook for task %q: %w", task.Name, herr)
		}
	}
	return nil
}

// invoke performs the remote call, converting panics into failures
func (e *Executor[P, R]) invoke(ctx context.Context, name string, payload P) (res Result[R]) {
	ctx, span := e.tracer.Start(ctx, e.name+".call",
		trace.WithAttributes(
			attribute.String("bulk.executor", e.name),
			attribute.String("bulk.task", name),
		),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			res = Err[R](fmt.Errorf("remote call panicked: %v", r))
		}
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
	}()

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return Err[R](fmt.Errorf("rate limiter: %w", err))
		}
	}

	value, err := e.call(ctx, payload)
	if err != nil {
		return Err[R](err)
	}
	return Ok(value)
}
