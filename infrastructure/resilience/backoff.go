// Package resilience provides the Dispatch Queue's retry-delay shape and
// a per-pool resilient executor built on fortify.
package resilience

import (
	"math"
	"math/rand"
	"time"
)

// BackoffType selects the delay curve shape.
type BackoffType string

// Supported backoff curves, per spec §4.1.
const (
	BackoffExponential BackoffType = "exponential"
	BackoffLinear      BackoffType = "linear"
	BackoffConstant     BackoffType = "constant"
)

// BackoffConfig shapes the Dispatch Queue's retry delay.
type BackoffConfig struct {
	Type       BackoffType
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64 // fraction of delay, symmetric: delay * Jitter * U(-1,1)
}

// DefaultBackoffConfig matches the spec §6 defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Type:       BackoffExponential,
		Base:       100 * time.Millisecond,
		Max:        30 * time.Second,
		Multiplier: 2,
		Jitter:     0.1,
	}
}

// Delay computes the backoff delay for the given attempt count (the number
// of attempts made so far, i.e. the attempt about to be retried is
// attempts+1), per spec §4.1:
//
//	delay = min(maxDelay, base * multiplier^(attempts-1))  (exponential)
//
// then clamps to >= 0 after adding symmetric jitter.
func Delay(cfg BackoffConfig, attempts int, rng *rand.Rand) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	var raw float64
	base := float64(cfg.Base)
	switch cfg.Type {
	case BackoffLinear:
		raw = base * float64(attempts)
	case BackoffConstant:
		raw = base
	default: // exponential
		mult := cfg.Multiplier
		if mult <= 0 {
			mult = 2
		}
		raw = base * math.Pow(mult, float64(attempts-1))
	}

	maxDelay := float64(cfg.Max)
	if maxDelay > 0 && raw > maxDelay {
		raw = maxDelay
	}

	if cfg.Jitter > 0 {
		var u float64
		if rng != nil {
			u = rng.Float64()*2 - 1 // U(-1,1)
		}
		raw += raw * cfg.Jitter * u
	}

	if raw < 0 {
		raw = 0
	}
	return time.Duration(raw)
}
