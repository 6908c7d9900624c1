package worker

import (
	"math"
	"time"

	"bengkel/internal/config"
)

const (
	defaultMaxRetries    = 5
	defaultInitialDelay  = 2 * time.Second
	defaultMaxDelay      = time.Minute
	defaultBackoffFactor = 2
)

// RetryPolicy controls how failed sheet tasks are rescheduled.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func RetryPolicyFromConfig(cfg config.WorkerConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
	}.withDefaults()
}

func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxRetries <= 0 {
		r.MaxRetries = defaultMaxRetries
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = defaultInitialDelay
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = defaultMaxDelay
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = defaultBackoffFactor
	}
	return r
}

// Exhausted reports whether a task that just failed its attempt-th run
// goes to the dead letter queue instead of being retried.
func (r RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= r.MaxRetries
}

// NextDelay returns the wait before the next run after the attempt-th
// failure (1-based), capped at MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	if delay > float64(r.MaxDelay) || math.IsInf(delay, 0) {
		return r.MaxDelay
	}
	return time.Duration(delay)
}
