package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	appErrors "engram-backend/pkg/errors"
)

// Config defines retry behavior configuration
type Config struct {
	MaxAttempts   int           // Maximum number of attempts, including the first
	BaseDelay     time.Duration // Base delay between retries
	MaxDelay      time.Duration // Maximum delay between retries
	BackoffFactor float64       // Exponential backoff multiplier
	JitterFactor  float64       // Jitter factor to prevent thundering herd
}

// DefaultConfig returns default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// Operation represents an operation that can be retried
type Operation func() error

// Do executes an operation with exponential backoff retry logic. Only errors
// the taxonomy marks retryable are attempted again; everything else is
// returned immediately.
func Do(ctx context.Context, config Config, operation Operation) error {
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !appErrors.IsRetryable(err) {
			return err
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		delay := config.calculateDelay(attempt)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// calculateDelay calculates the delay for the given attempt number
func (c Config) calculateDelay(attempt int) time.Duration {
	backoff := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(attempt))

	// Jitter prevents synchronized retry storms against a struggling collaborator
	jitter := backoff * c.JitterFactor * (rand.Float64() - 0.5) * 2
	delay := time.Duration(backoff + jitter)

	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}

	return delay
}
