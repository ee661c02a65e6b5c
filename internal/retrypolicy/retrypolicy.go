// Package retrypolicy decides whether and when a failed stage attempt runs
// again. Delay growth is geometric from a configured base and multiplier.
package retrypolicy

import (
	"math"
	"time"

	"scribe/internal/config"
	"scribe/internal/services"
)

// Policy is the retry budget applied per job stage.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
}

// FromConfig builds a Policy from the retry configuration section.
func FromConfig(cfg *config.Config) Policy {
	return Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  time.Duration(cfg.Retry.BaseDelaySeconds) * time.Second,
		Multiplier: cfg.Retry.Multiplier,
	}
}

// Decision is the outcome of consulting the policy after a failure.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Next returns the decision for a failure on the given zero-based attempt.
// Attempt 0 is the first execution; a policy with MaxRetries 3 allows
// attempts 0 through 3 and gives up afterwards. Errors that classify as
// non-retryable exhaust the budget immediately.
func (p Policy) Next(attempt int, err error) Decision {
	if err != nil && !services.Retryable(err) {
		return Decision{}
	}
	if attempt >= p.MaxRetries {
		return Decision{}
	}
	return Decision{Retry: true, Delay: p.delay(attempt)}
}

// delay computes base * multiplier^attempt, saturating instead of
// overflowing for large attempt counts.
func (p Policy) delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	scaled := float64(p.BaseDelay) * math.Pow(multiplier, float64(attempt))
	if scaled > float64(math.MaxInt64) || math.IsInf(scaled, 1) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(scaled)
}

// Schedule returns every delay the policy would grant, in order. Useful for
// logging the full backoff plan when a job first fails.
func (p Policy) Schedule() []time.Duration {
	delays := make([]time.Duration, 0, p.MaxRetries)
	for attempt := 0; attempt < p.MaxRetries; attempt++ {
		delays = append(delays, p.delay(attempt))
	}
	return delays
}
