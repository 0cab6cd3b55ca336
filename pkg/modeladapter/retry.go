package modeladapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/germanamz/tether/pkg/chats/turn"
	"github.com/germanamz/tether/pkg/modeladapter/usage"
	"github.com/germanamz/tether/pkg/tools/toolbox"
)

var _ Completer = (*RetryingCompleter)(nil)

// RetryOpts configures the RetryingCompleter.
type RetryOpts struct {
	MaxRetries int           // Retries after the first attempt (default 3).
	BaseDelay  time.Duration // First backoff delay (default 1s).
	MaxDelay   time.Duration // Cap for a single delay (default 30s).
	Jitter     float64       // Randomisation factor in [0,1) (0 = none).
}

// RetryingCompleter wraps a Completer and retries calls rejected with HTTP
// 429. The delay doubles on every retry, and a larger Retry-After from the
// server wins. Nothing else is retried.
type RetryingCompleter struct {
	inner Completer
	opts  RetryOpts
	log   *slog.Logger

	// sleepFunc is used for testing; defaults to a context-aware sleep.
	sleepFunc func(ctx context.Context, d time.Duration) error

	fallbackTracker usage.Tracker
}

// NewRetryingCompleter wraps inner with 429 retries.
func NewRetryingCompleter(inner Completer, opts RetryOpts) *RetryingCompleter {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}

	return &RetryingCompleter{
		inner:     inner,
		opts:      opts,
		log:       slog.New(slog.DiscardHandler),
		sleepFunc: contextSleep,
	}
}

// SetSleepFunc overrides the sleep function (for testing).
func (r *RetryingCompleter) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	r.sleepFunc = fn
}

// SetLogger sets the logger used to report retries.
func (r *RetryingCompleter) SetLogger(l *slog.Logger) { r.log = l }

func (r *RetryingCompleter) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = r.opts.Jitter
	b.MaxInterval = r.opts.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

// Complete implements Completer.
func (r *RetryingCompleter) Complete(ctx context.Context, model string, history []turn.Turn, decls []toolbox.Declaration) (Reply, error) {
	b := r.newBackOff()

	for attempt := 0; ; attempt++ {
		reply, err := r.inner.Complete(ctx, model, history, decls)
		if err == nil {
			return reply, nil
		}

		var rle *RateLimitError
		if !errors.As(err, &rle) || attempt >= r.opts.MaxRetries {
			return Reply{}, err
		}

		delay := max(b.NextBackOff(), rle.RetryAfter)
		r.log.WarnContext(ctx, "model rate limited, retrying",
			"model", model,
			"attempt", attempt+1,
			"retry_in", delay,
		)

		if err := r.sleepFunc(ctx, delay); err != nil {
			return Reply{}, err
		}
	}
}

// UsageTracker forwards to the inner completer if it implements UsageReporter.
func (r *RetryingCompleter) UsageTracker() *usage.Tracker {
	if ur, ok := r.inner.(UsageReporter); ok {
		return ur.UsageTracker()
	}
	return &r.fallbackTracker
}

// contextSleep sleeps for d or until ctx is cancelled.
func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
