package config

import "fmt"

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates a FleetConfig.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

var validBackoffTypes = map[string]bool{
	"exponential": true,
	"linear":      true,
	"constant":    true,
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(cfg *FleetConfig) ValidationErrors {
	v.errors = nil

	v.validatePool(cfg)
	v.validateQueue(cfg)
	v.validateBackoff(cfg)
	v.validateHeartbeat(cfg)
	v.validateRouter(cfg)
	v.validateCollector(cfg)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validatePool(cfg *FleetConfig) {
	if cfg.Pool.MinWorkers < 0 {
		v.addError("pool.minWorkers", "must be non-negative")
	}
	if cfg.Pool.MaxWorkers <= 0 {
		v.addError("pool.maxWorkers", "must be positive")
	}
	if cfg.Pool.MinWorkers > cfg.Pool.MaxWorkers {
		v.addError("pool.minWorkers", "must not exceed pool.maxWorkers")
	}
	if cfg.Pool.IdleTimeoutMS <= 0 {
		v.addError("pool.idleTimeoutMs", "must be positive")
	}
	if cfg.Pool.TaskTimeoutMS <= 0 {
		v.addError("pool.taskTimeoutMs", "must be positive")
	}
}

func (v *Validator) validateQueue(cfg *FleetConfig) {
	if cfg.Queue.MaxConcurrent <= 0 {
		v.addError("queue.maxConcurrent", "must be positive")
	}
	if cfg.Queue.DefaultMaxAttempts <= 0 {
		v.addError("queue.defaultMaxAttempts", "must be positive")
	}
	if cfg.Queue.DefaultTimeoutMS <= 0 {
		v.addError("queue.defaultTimeoutMs", "must be positive")
	}
}

func (v *Validator) validateBackoff(cfg *FleetConfig) {
	if !validBackoffTypes[cfg.Backoff.Type] {
		v.addError("backoff.type", fmt.Sprintf("unknown backoff type: %s", cfg.Backoff.Type))
	}
	if cfg.Backoff.BaseMS <= 0 {
		v.addError("backoff.base", "must be positive")
	}
	if cfg.Backoff.MaxMS < cfg.Backoff.BaseMS {
		v.addError("backoff.max", "must be >= backoff.base")
	}
	if cfg.Backoff.Multiplier < 1 {
		v.addError("backoff.mult", "must be >= 1")
	}
	if cfg.Backoff.Jitter < 0 || cfg.Backoff.Jitter > 1 {
		v.addError("backoff.jitter", "must be within [0, 1]")
	}
}

func (v *Validator) validateHeartbeat(cfg *FleetConfig) {
	if cfg.Heartbeat.IntervalMS <= 0 {
		v.addError("heartbeat.interval", "must be positive")
	}
	if cfg.Heartbeat.TimeoutMS <= 0 {
		v.addError("heartbeat.timeout", "must be positive")
	}
	if cfg.Heartbeat.MaxMiss <= 0 {
		v.addError("heartbeat.maxMiss", "must be positive")
	}
	if cfg.Heartbeat.DegradedMS <= 0 {
		v.addError("heartbeat.degraded", "must be positive")
	}
}

func (v *Validator) validateRouter(cfg *FleetConfig) {
	if cfg.Router.MainThreadThreshold < 0 {
		v.addError("router.mainThreadThreshold", "must be non-negative")
	}
	if cfg.Router.SharedWorkerThreshold < cfg.Router.MainThreadThreshold {
		v.addError("router.sharedWorkerThreshold", "must be >= router.mainThreadThreshold")
	}
}

func (v *Validator) validateCollector(cfg *FleetConfig) {
	if cfg.Collector.MaxRetainedResults <= 0 {
		v.addError("collector.maxRetainedResults", "must be positive")
	}
}
