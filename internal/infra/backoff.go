package infra

import "time"

const (
	backoffBase = 1 * time.Second
	backoffMax  = 60 * time.Second
)

// CalculateBackoff returns a capped exponential delay for the given retry
// count. Retry 0 and 1 wait the base delay.
func CalculateBackoff(retryCount int) time.Duration {
	if retryCount <= 1 {
		return backoffBase
	}
	delay := backoffBase
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= backoffMax {
			return backoffMax
		}
	}
	return delay
}
