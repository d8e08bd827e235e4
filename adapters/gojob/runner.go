package gojob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-credvault/core"
	"github.com/goliatone/go-job/queue/worker"
)

// ScheduleRefresh enqueues a refresh of the provider's OAuth credential for
// userID. Duplicate refreshes for the same credential share an idempotency key.
func ScheduleRefresh(ctx context.Context, enqueuer core.JobEnqueuer, providerID string, userID string) error {
	if enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is required")
	}
	msg, err := core.NewRefreshJobMessage(providerID, userID)
	if err != nil {
		return err
	}
	return enqueuer.Enqueue(ctx, msg)
}

func SchedulePruneOAuthStates(ctx context.Context, enqueuer core.JobEnqueuer) error {
	if enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is required")
	}
	return enqueuer.Enqueue(ctx, core.NewPruneOAuthStatesJobMessage())
}

// ProcessDelivery runs one delivery through handler. Success acks; failure
// nacks with the policy backoff for the delivery's attempt and returns the
// handler error.
func ProcessDelivery(ctx context.Context, handler core.JobHandler, delivery core.JobDelivery, policy RetryPolicy) error {
	if handler == nil {
		return fmt.Errorf("gojob: job handler is required")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	handleErr := handler.HandleJob(ctx, delivery.Message())
	if handleErr == nil {
		return delivery.Ack(ctx)
	}
	nackErr := delivery.Nack(ctx, core.JobNackOptions{
		Delay:   policy.Backoff(attemptOf(delivery)),
		Requeue: true,
		Reason:  handleErr.Error(),
	})
	if nackErr != nil {
		return errors.Join(handleErr, fmt.Errorf("gojob: nack: %w", nackErr))
	}
	return handleErr
}

func attemptOf(delivery core.JobDelivery) int {
	if counted, ok := delivery.(interface{ Attempt() int }); ok {
		return max(counted.Attempt(), 1)
	}
	return 1
}

type RunnerOption func(*Runner)

func WithHook(hook worker.Hook) RunnerOption {
	return func(r *Runner) {
		r.hook = hook
	}
}

func WithIdleWait(wait time.Duration) RunnerOption {
	return func(r *Runner) {
		if wait > 0 {
			r.idleWait = wait
		}
	}
}

// Runner drains a dequeuer into the vault job handler.
type Runner struct {
	handler  core.JobHandler
	dequeuer core.JobDequeuer
	policy   RetryPolicy
	hook     worker.Hook
	idleWait time.Duration
	now      func() time.Time
}

func NewRunner(handler core.JobHandler, dequeuer core.JobDequeuer, policy RetryPolicy, opts ...RunnerOption) (*Runner, error) {
	if handler == nil {
		return nil, fmt.Errorf("gojob: job handler is required")
	}
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	runner := &Runner{
		handler:  handler,
		dequeuer: dequeuer,
		policy:   policy,
		idleWait: time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(runner)
		}
	}
	return runner, nil
}

// RunOnce handles at most one delivery. It reports false when the queue was
// empty. Handler failures are nacked and reported through the hook, not
// returned.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	delivery, err := r.dequeuer.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if delivery == nil {
		return false, nil
	}
	event := worker.Event{
		Message:   toJobMessage(delivery.Message()),
		Attempt:   attemptOf(delivery),
		StartedAt: r.now(),
	}
	if r.hook != nil {
		r.hook.OnStart(ctx, event)
	}

	err = ProcessDelivery(ctx, r.handler, delivery, r.policy)
	event.Duration = r.now().Sub(event.StartedAt)
	event.Err = err
	if r.hook == nil {
		return true, nil
	}
	switch {
	case err == nil:
		r.hook.OnSuccess(ctx, event)
	case r.policy.MaxAttempts > 0 && event.Attempt >= r.policy.MaxAttempts:
		r.hook.OnFailure(ctx, event)
	default:
		event.Delay = r.policy.Backoff(event.Attempt)
		r.hook.OnRetry(ctx, event)
	}
	return true, nil
}

// Run loops until ctx is done, waiting idleWait whenever the queue is empty.
func (r *Runner) Run(ctx context.Context) error {
	for {
		handled, err := r.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if handled {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.idleWait):
		}
	}
}
