// Package ratelimit admits or rejects calls per credential against a
// per-minute and a per-hour limit.
//
// Each credential has two fixed windows. A window starts on the first call
// after its previous boundary and lasts exactly its size; crossing the
// boundary resets its counter. A call is admitted only when both counters
// are below their limits, and then both are incremented. Backends perform
// the roll, check and increment atomically per credential.
//
// A rejected call reports RetryAfter as the wait until every exhausted
// window has reset. When only one window is exhausted that is its reset.
// When both are, it is the later of the two resets, not the nearer one: a
// retry at the nearer reset would still be rejected by the other window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Sentinel errors.
var (
	// ErrInvalidCredential is returned for an empty credential.
	ErrInvalidCredential = errors.New("ratelimit: invalid credential")

	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("ratelimit: store unavailable")
)

// Window sizes.
const (
	Minute = time.Minute
	Hour   = time.Hour
)

// Limits are the per-credential call budgets.
type Limits struct {
	PerMinute int
	PerHour   int
}

// DefaultLimits are 60 calls per minute and 1000 per hour.
var DefaultLimits = Limits{PerMinute: 60, PerHour: 1000}

// Quota is the budget left in each window.
type Quota struct {
	MinuteRemaining int
	HourRemaining   int
	MinuteReset     time.Time
	HourReset       time.Time
}

// Decision is the outcome of Admit.
type Decision struct {
	Allowed bool

	// RetryAfter is set when rejected: the wait until every exhausted
	// window has reset.
	RetryAfter time.Duration

	Quota Quota
}

// Store is a rate-limit backend. Implementations must make Admit atomic
// per credential.
type Store interface {
	// Admit rolls expired windows, checks both limits and, when admitted,
	// increments both counters.
	Admit(ctx context.Context, credential string, now time.Time, l Limits) (Decision, error)

	// Peek reports the quota without consuming any.
	Peek(ctx context.Context, credential string, now time.Time, l Limits) (Quota, error)
}

// Config configures a Limiter.
type Config struct {
	// Store holds the counters. Defaults to a new Memory store.
	Store Store

	// Limits default to DefaultLimits field by field.
	Limits Limits

	// FailOpen admits calls when the store fails. The default rejects them.
	FailOpen bool

	// FailureRetryAfter is reported to rejected callers when the store
	// fails closed. Defaults to one second.
	FailureRetryAfter time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Limiter applies Limits through a Store.
type Limiter struct {
	store      Store
	limits     Limits
	failOpen   bool
	retryAfter time.Duration
	now        func() time.Time
	log        *slog.Logger
}

// New returns a limiter.
func New(cfg Config) *Limiter {
	if cfg.Store == nil {
		cfg.Store = NewMemory()
	}
	if cfg.Limits.PerMinute <= 0 {
		cfg.Limits.PerMinute = DefaultLimits.PerMinute
	}
	if cfg.Limits.PerHour <= 0 {
		cfg.Limits.PerHour = DefaultLimits.PerHour
	}
	if cfg.FailureRetryAfter <= 0 {
		cfg.FailureRetryAfter = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Limiter{
		store:      cfg.Store,
		limits:     cfg.Limits,
		failOpen:   cfg.FailOpen,
		retryAfter: cfg.FailureRetryAfter,
		now:        cfg.Now,
		log:        cfg.Logger,
	}
}

// Limits returns the configured budgets.
func (l *Limiter) Limits() Limits { return l.limits }

// Admit consumes one call for credential if both windows allow it.
//
// When the store fails, a fail-open limiter admits with a nil error; a
// fail-closed one returns a rejecting Decision together with an error
// wrapping ErrStoreUnavailable.
func (l *Limiter) Admit(ctx context.Context, credential string) (Decision, error) {
	if credential == "" {
		return Decision{}, ErrInvalidCredential
	}
	d, err := l.store.Admit(ctx, credential, l.now(), l.limits)
	if err == nil {
		return d, nil
	}
	if l.failOpen {
		l.log.Warn("rate limit store failed, admitting", "credential", Redact(credential), "error", err)
		return Decision{Allowed: true}, nil
	}
	l.log.Error("rate limit store failed, rejecting", "credential", Redact(credential), "error", err)
	return Decision{RetryAfter: l.retryAfter}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Remaining reports the quota left for credential without consuming any.
func (l *Limiter) Remaining(ctx context.Context, credential string) (Quota, error) {
	if credential == "" {
		return Quota{}, ErrInvalidCredential
	}
	q, err := l.store.Peek(ctx, credential, l.now(), l.limits)
	if err != nil {
		return Quota{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return q, nil
}

// Redact shortens a credential for logs.
func Redact(credential string) string {
	if len(credential) <= 8 {
		return credential
	}
	return credential[:8] + "..."
}

// window is one fixed counter.
type window struct {
	count int
	reset time.Time
}

// roll starts a new window when now has reached the boundary.
func (w *window) roll(now time.Time, size time.Duration) {
	if !now.Before(w.reset) {
		w.count = 0
		w.reset = now.Add(size)
	}
}

func remaining(limit, count int) int {
	return max(0, limit-count)
}

// decide builds the Decision for windows already rolled and, when allowed,
// incremented.
func decide(now time.Time, l Limits, allowed bool, minute, hour window) Decision {
	d := Decision{
		Allowed: allowed,
		Quota: Quota{
			MinuteRemaining: remaining(l.PerMinute, minute.count),
			HourRemaining:   remaining(l.PerHour, hour.count),
			MinuteReset:     minute.reset,
			HourReset:       hour.reset,
		},
	}
	if allowed {
		return d
	}
	if minute.count >= l.PerMinute {
		d.RetryAfter = max(d.RetryAfter, minute.reset.Sub(now))
	}
	if hour.count >= l.PerHour {
		d.RetryAfter = max(d.RetryAfter, hour.reset.Sub(now))
	}
	return d
}
