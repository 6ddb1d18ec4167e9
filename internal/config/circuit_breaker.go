package config

import (
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// NewCircuitBreaker creates a circuit breaker with standard settings.
// The name parameter uniquely identifies the circuit breaker instance.
func NewCircuitBreaker(name string, log *zap.SugaredLogger) *gobreaker.CircuitBreaker {
	var timeout time.Duration

	// Open-state timeouts follow the health check budget of each dependency.
	switch {
	case name == "Redis-Sessions":
		timeout = 5 * time.Second
	case strings.HasSuffix(name, "PostgreSQL"), name == "MongoDB":
		timeout = 10 * time.Second
	case name == "Nominatim":
		timeout = 15 * time.Second
	default:
		timeout = 30 * time.Second // RabbitMQ, Cloudinary
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warnw("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			}
		},
	})
}
