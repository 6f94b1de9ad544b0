package session

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBackoff    = time.Second
	DefaultTimeout    = 10 * time.Second
)

type Status int

const (
	Authenticated Status = iota
	Unauthenticated
	// Failed means restoration did not finish in time. Unlike Unauthenticated the user
	// is offered a retry.
	Failed
)

func (s Status) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the terminal result of a restore.
type Outcome struct {
	Status   Status
	Session  *Session
	Attempts int
	Err      error
}

// Resolver restores the session at startup with a bounded number of retries.
type Resolver struct {
	provider   Provider
	maxRetries int
	backoff    time.Duration
	timeout    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	log        *slog.Logger
}

// NewResolver returns a resolver with linear backoff: the n-th retry waits n*backoff.
// Zero values select the defaults.
func NewResolver(p Provider, maxRetries int, backoff, timeout time.Duration, logger *slog.Logger) *Resolver {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{
		provider:   p,
		maxRetries: maxRetries,
		backoff:    backoff,
		timeout:    timeout,
		sleep:      sleepContext,
		log:        logger,
	}
}

// Restore fetches the current session. Errors are retried up to the retry limit and
// then reported as Unauthenticated; running past the timeout reports Failed.
func (r *Resolver) Restore(ctx context.Context) Outcome {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		s, err := r.current(ctx)
		if err == nil {
			if s == nil {
				return Outcome{Status: Unauthenticated, Attempts: attempt + 1}
			}
			return Outcome{Status: Authenticated, Session: s, Attempts: attempt + 1}
		}
		if ctx.Err() != nil {
			r.log.Warn("Session restore timed out", "attempts", attempt+1, "error", ctx.Err())
			return Outcome{Status: Failed, Attempts: attempt + 1, Err: ctx.Err()}
		}

		r.log.Error("Session restore failed", "attempt", attempt+1, "error", err)
		if attempt >= r.maxRetries {
			return Outcome{Status: Unauthenticated, Attempts: attempt + 1, Err: err}
		}

		delay := time.Duration(attempt+1) * r.backoff
		r.log.Info("Retrying session restore", "retry", attempt+1, "max", r.maxRetries, "delay", delay)
		if err := r.sleep(ctx, delay); err != nil {
			return Outcome{Status: Failed, Attempts: attempt + 1, Err: err}
		}
	}
}

// current guards against providers that ignore cancellation.
func (r *Resolver) current(ctx context.Context) (*Session, error) {
	type result struct {
		s   *Session
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := r.provider.CurrentSession(ctx)
		done <- result{s, err}
	}()

	select {
	case res := <-done:
		return res.s, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
