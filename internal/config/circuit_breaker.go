package config

import (
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// NewCircuitBreaker creates a circuit breaker with standard settings.
// isFailure decides which errors count toward tripping; nil counts every error.
func NewCircuitBreaker(name string, isFailure func(err error) bool) *gobreaker.CircuitBreaker {
	var timeout time.Duration

	switch name {
	case "Redis-Records":
		timeout = time.Second * 5
	default:
		timeout = time.Second * 30
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Second * 10,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Open circuit after 3 consecutive failures
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[CRITICAL] Circuit Breaker %s: %s -> %s", name, from, to)
		},
	}
	if isFailure != nil {
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !isFailure(err)
		}
	}

	return gobreaker.NewCircuitBreaker(settings)
}
