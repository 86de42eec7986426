package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"finledger/internal/core"
	applog "finledger/internal/log"
)

// UserLister lists the users an evaluation sweep covers.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// Evaluator runs the alert evaluation for one user.
type Evaluator interface {
	Evaluate(ctx context.Context, userID int64, now time.Time) ([]core.Alert, error)
}

// EvaluationConfig holds configuration for the evaluation processor
type EvaluationConfig struct {
	// PollInterval is how often every user is evaluated (default: 15m)
	PollInterval time.Duration

	// Concurrency bounds the users evaluated in parallel (default: 4)
	Concurrency int
}

// DefaultEvaluationConfig returns sensible defaults
func DefaultEvaluationConfig() EvaluationConfig {
	return EvaluationConfig{
		PollInterval: 15 * time.Minute,
		Concurrency:  4,
	}
}

// SweepResult summarizes one evaluation sweep.
type SweepResult struct {
	Users   int
	Created int
	Failed  int
}

// EvaluationProcessor periodically evaluates alert conditions for all users.
type EvaluationProcessor struct {
	users     UserLister
	evaluator Evaluator
	config    EvaluationConfig
	now       func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewEvaluationProcessor(users UserLister, evaluator Evaluator, config EvaluationConfig) *EvaluationProcessor {
	defaults := DefaultEvaluationConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	return &EvaluationProcessor{
		users:     users,
		evaluator: evaluator,
		config:    config,
		now:       time.Now,
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (p *EvaluationProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("evaluation processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	applog.FromContext(ctx).InfoContext(ctx, "Evaluation processor started",
		"poll_interval", p.config.PollInterval,
		"concurrency", p.config.Concurrency)

	return nil
}

// Stop signals the loop and waits for the current sweep to finish. It is
// safe to call from several goroutines; only the first one closes the loop.
func (p *EvaluationProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.stopCh = nil
	p.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}

	logger := applog.FromContext(ctx)
	select {
	case <-doneCh:
		logger.InfoContext(ctx, "Evaluation processor stopped gracefully")
	case <-ctx.Done():
		logger.WarnContext(ctx, "Evaluation processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	if p.doneCh == doneCh {
		p.running = false
	}
	p.mu.Unlock()

	return nil
}

func (p *EvaluationProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *EvaluationProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Sweep immediately on startup
	p.sweep(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *EvaluationProcessor) sweep(ctx context.Context) {
	if _, err := p.SweepOnce(ctx, p.now()); err != nil {
		applog.FromContext(ctx).LogError(ctx, "Evaluation sweep failed", err)
	}
}

// SweepOnce evaluates every user at now. A failing user is logged and
// counted; it does not stop the others.
func (p *EvaluationProcessor) SweepOnce(ctx context.Context, now time.Time) (SweepResult, error) {
	ids, err := p.users.ListUserIDs(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list users: %w", err)
	}

	logger := applog.FromContext(ctx)
	var created, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			alerts, err := p.evaluator.Evaluate(gctx, id, now)
			if err != nil {
				failed.Add(1)
				logger.WithUser(id).LogError(gctx, "Alert evaluation failed", err,
					applog.FieldOperation, applog.OpEvaluate)
				return nil
			}
			created.Add(int64(len(alerts)))
			return nil
		})
	}
	_ = g.Wait()

	res := SweepResult{Users: len(ids), Created: int(created.Load()), Failed: int(failed.Load())}
	logger.InfoContext(ctx, "Evaluation sweep completed",
		"users", res.Users,
		"created", res.Created,
		"failed", res.Failed)
	return res, ctx.Err()
}
