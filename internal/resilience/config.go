package resilience

import (
	"time"
)

// ForOperation builds a RetryConfig from profile-level settings. Zero values
// keep the defaults from DefaultRetryConfig.
func ForOperation(operation string, maxAttempts int, baseDelay, attemptTimeout time.Duration, onAttempt func(AttemptEvent)) RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.Operation = operation
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if baseDelay > 0 {
		cfg.InitialBackoff = baseDelay
		if cfg.MaxBackoff < baseDelay {
			cfg.MaxBackoff = baseDelay
		}
	}
	cfg.AttemptTimeout = attemptTimeout
	cfg.OnAttempt = onAttempt
	return cfg
}
