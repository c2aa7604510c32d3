// Package circuitbreaker builds the breakers guarding outbound provider calls.
// This is part of the platform layer and contains no business logic.
package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker"
)

// New returns a breaker that opens once at least three requests in a
// one-minute window fail at a 60% ratio, and retries after a minute.
// isSuccessful decides which errors still count as a healthy dependency;
// nil treats every error as a failure.
func New(name string, isSuccessful func(error) bool) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: isSuccessful,
	}
	return gobreaker.NewCircuitBreaker(settings)
}
