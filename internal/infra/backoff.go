package infra

import (
	"math"
	"time"
)

const (
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// CalculateBackoff returns the delay for the current retry attempt
func CalculateBackoff(retryCount int) time.Duration {
	if retryCount > 6 {
		return maxDelay
	}
	delay := baseDelay * time.Duration(math.Pow(2, float64(retryCount)))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
