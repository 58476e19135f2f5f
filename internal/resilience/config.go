package resilience

import "time"

// FromPageLoadConfig builds the fixed-delay retry used around page loads.
// Non-positive values fall back to 3 attempts and a 3 s delay.
func FromPageLoadConfig(attempts int, backoff time.Duration) RetryConfig {
	if attempts <= 0 {
		attempts = 3
	}
	if backoff <= 0 {
		backoff = 3 * time.Second
	}
	return FixedBackoff(attempts, backoff)
}

// FromCircuitConfig converts vision config values to a CircuitBreakerConfig.
func FromCircuitConfig(failureThreshold int, resetTimeout time.Duration) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeout > 0 {
		cfg.ResetTimeout = resetTimeout
	}
	return cfg
}
