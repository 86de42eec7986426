package worker

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finledger/internal/core"
	applog "finledger/internal/log"
)

type staticUsers []int64

func (u staticUsers) ListUserIDs(context.Context) ([]int64, error) {
	return u, nil
}

type stubEvaluator struct {
	mu      sync.Mutex
	calls   []int64
	failFor int64
}

func (e *stubEvaluator) Evaluate(_ context.Context, userID int64, _ time.Time) ([]core.Alert, error) {
	e.mu.Lock()
	e.calls = append(e.calls, userID)
	e.mu.Unlock()
	if userID == e.failFor {
		return nil, errors.New("store unavailable")
	}
	return []core.Alert{{ID: userID, UserID: userID}}, nil
}

func (e *stubEvaluator) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func TestDefaultEvaluationConfig(t *testing.T) {
	p := NewEvaluationProcessor(staticUsers{}, &stubEvaluator{}, EvaluationConfig{})
	assert.Equal(t, 15*time.Minute, p.config.PollInterval)
	assert.Equal(t, 4, p.config.Concurrency)
}

func TestEvaluationProcessor_SweepOnce(t *testing.T) {
	eval := &stubEvaluator{failFor: 3}
	p := NewEvaluationProcessor(staticUsers{1, 2, 3, 4, 5}, eval, EvaluationConfig{Concurrency: 2})

	var buf bytes.Buffer
	ctx := applog.ToContext(context.Background(),
		applog.New(applog.Config{Component: applog.ComponentWorker, Output: &buf}))

	res, err := p.SweepOnce(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Users: 5, Created: 4, Failed: 1}, res)
	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, eval.calls)

	out := buf.String()
	assert.Contains(t, out, `msg="Alert evaluation failed"`)
	assert.Contains(t, out, "component=worker")
	assert.Contains(t, out, "user_id=3")
	assert.Contains(t, out, "operation=evaluate")
}

func TestEvaluationProcessor_Lifecycle(t *testing.T) {
	eval := &stubEvaluator{}
	p := NewEvaluationProcessor(staticUsers{1}, eval, EvaluationConfig{PollInterval: time.Hour})
	assert.False(t, p.IsRunning(), "processor should not be running initially")

	ctx := context.Background()
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(ctx), "second start must fail")

	// The startup sweep runs before the first tick.
	assert.Eventually(t, func() bool { return eval.callCount() == 1 }, time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
}

func TestEvaluationProcessor_ConcurrentStop(t *testing.T) {
	p := NewEvaluationProcessor(staticUsers{1}, &stubEvaluator{}, EvaluationConfig{PollInterval: time.Hour})
	ctx := context.Background()
	require.NoError(t, p.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = p.Stop(stopCtx)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.False(t, p.IsRunning())

	// The processor can be started again after a concurrent stop.
	require.NoError(t, p.Start(ctx))
	require.NoError(t, p.Stop(stopCtx))
}

func TestEvaluationProcessor_StopNotRunning(t *testing.T) {
	p := NewEvaluationProcessor(staticUsers{}, &stubEvaluator{}, DefaultEvaluationConfig())
	assert.NoError(t, p.Stop(context.Background()))
}
