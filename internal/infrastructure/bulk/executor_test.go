package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

func echo(_ context.Context, p string) (string, error) {
	return "new-" + p, nil
}

func makeTasks(n int, onSuccess func(ctx context.Context, r, p string) error) []Task[string, string] {
	tasks := make([]Task[string, string], n)
	for i := range tasks {
		tasks[i] = Task[string, string]{
			Name:      fmt.Sprintf("t%d", i),
			Payload:   fmt.Sprintf("p%d", i),
			OnSuccess: onSuccess,
		}
	}
	return tasks
}

func TestExecutor_RunAllSucceed(t *testing.T) {
	var mu sync.Mutex
	var got []string

	exec := New(echo, WithLogger(zaptest.NewLogger(t)))
	summary, err := exec.Run(context.Background(), makeTasks(3, func(_ context.Context, r, _ string) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, r)
		return nil
	}))

	require.NoError(t, err)
	assert.Equal(t, []string{"new-p0", "new-p1", "new-p2"}, got, "concurrency 1 keeps submission order")
	assert.Equal(t, 3, summary.Submitted)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, summary.PeakInFlight)
	assert.Equal(t, 1, exec.Concurrency())
}

func TestExecutor_ConcurrencyBound(t *testing.T) {
	const limit, total = 2, 7

	var inFlight, maxSeen atomic.Int64
	release := make(chan struct{})
	call := func(ctx context.Context, p string) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		<-release
		return p, nil
	}

	exec := New(call, WithConcurrency(limit))
	done := make(chan Summary, 1)
	go func() {
		summary, err := exec.Run(context.Background(), makeTasks(total, nil))
		assert.NoError(t, err)
		done <- summary
	}()

	require.Eventually(t, func() bool { return inFlight.Load() == limit }, time.Second, time.Millisecond)
	// Give the executor a chance to over-launch if it were going to
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(limit), inFlight.Load())

	close(release)
	summary := <-done

	assert.Equal(t, int64(limit), maxSeen.Load())
	assert.LessOrEqual(t, summary.PeakInFlight, limit)
	assert.Equal(t, total, summary.Succeeded)
}

func TestExecutor_ExactlyOneOutcome(t *testing.T) {
	call := func(_ context.Context, p string) (string, error) {
		switch p {
		case "fail":
			return "", errors.New("Invalid field")
		case "panic":
			panic("remote blew up")
		}
		return "ok-" + p, nil
	}

	var mu sync.Mutex
	outcomes := map[string][]string{}
	record := func(name, outcome string) {
		mu.Lock()
		defer mu.Unlock()
		outcomes[name] = append(outcomes[name], outcome)
	}

	var tasks []Task[string, string]
	for i, p := range []string{"a", "skip", "fail", "b", "panic", "skip", "c"} {
		name := fmt.Sprintf("%d-%s", i, p)
		tasks = append(tasks, Task[string, string]{
			Name:    name,
			Payload: p,
			Serialize: func(_ context.Context, p string) (string, bool, error) {
				if p == "skip" {
					record(name, "skip")
					return p, false, nil
				}
				return p, true, nil
			},
			OnSuccess: func(_ context.Context, _ string, _ string) error {
				record(name, "success")
				return nil
			},
			OnFailure: func(_ context.Context, err error, _ string) error {
				record(name, "failure:"+err.Error())
				return nil
			},
		})
	}

	summary, err := New(call, WithConcurrency(3)).Run(context.Background(), tasks)
	require.NoError(t, err)

	require.Len(t, outcomes, len(tasks))
	for name, got := range outcomes {
		assert.Len(t, got, 1, "task %s", name)
	}
	assert.Equal(t, "failure:Invalid field", outcomes["2-fail"][0])
	assert.Contains(t, outcomes["4-panic"][0], "remote call panicked: remote blew up")

	assert.Equal(t, len(tasks), summary.Submitted)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, summary.Submitted, summary.Skipped+summary.Succeeded+summary.Failed)
}

func TestExecutor_HookErrorFailsFast(t *testing.T) {
	boom := errors.New("mapper write failed")
	var calls atomic.Int64
	call := func(ctx context.Context, p string) (string, error) {
		calls.Add(1)
		return p, nil
	}

	tasks := makeTasks(5, func(_ context.Context, r, _ string) error {
		if r == "p1" {
			return boom
		}
		return nil
	})

	summary, err := New(call).Run(context.Background(), tasks)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `task "t1"`)
	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, 3, summary.NotLaunched)
}

func TestExecutor_HookPanicIsFatal(t *testing.T) {
	tasks := makeTasks(2, func(context.Context, string, string) error {
		panic("nil map")
	})

	_, err := New(echo).Run(context.Background(), tasks)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHookPanic)
}

func TestExecutor_SerializeErrorIsFatal(t *testing.T) {
	bad := errors.New("cannot tick")
	tasks := []Task[string, string]{{
		Name:    "t0",
		Payload: "p0",
		Serialize: func(context.Context, string) (string, bool, error) {
			return "", false, bad
		},
	}}

	_, err := New(echo).Run(context.Background(), tasks)
	assert.ErrorIs(t, err, bad)
}

func TestExecutor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := New(echo).Run(ctx, makeTasks(4, nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 4, summary.NotLaunched)
	assert.Zero(t, summary.Submitted)
}

func TestExecutor_RateLimitWaitFailureGoesToOnFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var failures atomic.Int64
	tasks := makeTasks(2, nil)
	for i := range tasks {
		tasks[i].OnFailure = func(_ context.Context, err error, _ string) error {
			assert.Contains(t, err.Error(), "rate limiter")
			failures.Add(1)
			return nil
		}
	}

	// One token up front, then a refill far beyond the deadline
	summary, err := New(echo, WithRateLimit(0.001, 1)).Run(ctx, tasks)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, int64(1), failures.Load())
}

func TestExecutor_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	call := func(_ context.Context, p string) (string, error) {
		if p == "p1" {
			return "", errors.New("rejected")
		}
		return p, nil
	}

	_, err := New(call, WithName("labels"), WithTracer(tp.Tracer("test"))).
		Run(context.Background(), makeTasks(2, nil))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, "labels.call", s.Name())
	}
}

func TestResult(t *testing.T) {
	assert.True(t, Ok(1).IsOk())
	r := Err[int](errors.New("x"))
	assert.False(t, r.IsOk())
	assert.Zero(t, r.Value)
}
