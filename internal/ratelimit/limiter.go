// Package ratelimit bounds concurrency and admission rate for outbound calls.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter admits at most maxConcurrent tasks at once and starts a new task
// no more than once per interval. Waiting tasks are admitted in FIFO order.
type Limiter struct {
	sem     *semaphore.Weighted
	bucket  *rate.Limiter
	max     int
	mu      sync.Mutex
	queued  int
	pending int
	idle    chan struct{} // closed while queued+pending == 0
}

// New creates a Limiter. An interval <= 0 disables spacing; maxConcurrent < 1 is treated as 1.
func New(interval time.Duration, maxConcurrent int) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	idle := make(chan struct{})
	close(idle)
	return &Limiter{
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		bucket: rate.NewLimiter(limit, 1),
		max:    maxConcurrent,
		idle:   idle,
	}
}

// Do runs task once admitted and returns its error unchanged. If ctx is
// cancelled while the task is still queued, the task is not run and
// ctx.Err() is returned.
func (l *Limiter) Do(ctx context.Context, task func(context.Context) error) error {
	l.enqueue()
	started := false
	defer func() {
		if !started {
			l.dequeue(false)
		}
	}()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}

	started = true
	l.dequeue(true)
	defer l.finish()

	err := task(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("rate limited task failed")
	}
	return err
}

// Execute runs task through l and returns its result.
func Execute[T any](ctx context.Context, l *Limiter, task func(context.Context) (T, error)) (T, error) {
	var result T
	err := l.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = task(ctx)
		return err
	})
	return result, err
}

// Size reports tasks waiting for admission. Diagnostic only.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queued
}

// Pending reports tasks currently running. Diagnostic only.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// MaxConcurrent returns the concurrency bound.
func (l *Limiter) MaxConcurrent() int { return l.max }

// WaitForEmpty blocks until no task is queued or running, or ctx is done.
func (l *Limiter) WaitForEmpty(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.queued+l.pending == 0 {
			l.mu.Unlock()
			return nil
		}
		idle := l.idle
		l.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Limiter) enqueue() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.queued+l.pending == 0 {
		l.idle = make(chan struct{})
	}
	l.queued++
}

// dequeue removes a task from the queue, moving it to pending when it starts.
func (l *Limiter) dequeue(start bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queued--
	if start {
		l.pending++
	}
	l.signalIdle()
}

func (l *Limiter) finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending--
	l.signalIdle()
}

func (l *Limiter) signalIdle() {
	if l.queued+l.pending == 0 {
		close(l.idle)
	}
}
