// Tool Executor with Retry Logic.
//
// Information Hiding:
// - Retry strategy implementation hidden
// - Backoff algorithm hidden
// - Error classification logic hidden

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// Executor provides tool execution with retry and timeout support.
//
// Only transient failures are retried: Go errors returned by the tool, and
// failed results wrapping a network error or a deadline. Research tools
// run once since every call counts against the circuit breaker, and a
// commit the store refused (ErrNotPersisted) is returned as it is.
type Executor struct {
	config ToolConfig
}

// NewExecutor creates a new tool executor with the given configuration.
func NewExecutor(config ToolConfig) *Executor {
	return &Executor{config: config}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return &Executor{config: DefaultToolConfig()}
}

// Execute validates the arguments then runs the tool with retry logic.
// Validation failures are returned as failed results without running.
func (e *Executor) Execute(ctx context.Context, tool Tool, args json.RawMessage) (ToolResult, error) {
	if err := tool.Validate(args); err != nil {
		return FailureResult(fmt.Errorf("validation failed: %w", err)), nil
	}

	meta := tool.Metadata()
	attempts := e.config.Retries()
	if meta.Exploratory {
		attempts = 1
	}

	var lastErr error
	for attempt := uint32(0); attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ToolResult{}, ctx.Err()
			case <-time.After(e.calculateBackoff(attempt)):
			}
		}

		result, err := tool.Execute(ctx, args)
		if err != nil {
			if ctx.Err() != nil {
				return ToolResult{}, ctx.Err()
			}
			lastErr = err
			continue
		}
		if result.Success() || !transient(result.Error) {
			return result, nil
		}
		lastErr = result.Error
	}

	if attempts == 1 {
		return FailureResult(lastErr), nil
	}
	return FailureResultf("tool '%s' failed after %d attempts: %v", meta.Name, attempts, lastErr), nil
}

// calculateBackoff returns the backoff duration for the given attempt.
func (e *Executor) calculateBackoff(attempt uint32) time.Duration {
	const (
		baseDelay = 100 * time.Millisecond
		maxDelay  = 5 * time.Second
	)

	delay := baseDelay * time.Duration(1<<attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// transient reports whether a failed result may succeed on another attempt.
func transient(err error) bool {
	if err == nil || errors.Is(err, ErrNotRetryable) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Timeout is the configured limit for one tool call, retries included.
func (e *Executor) Timeout() time.Duration {
	return time.Duration(e.config.Timeout()) * time.Second
}

// ExecuteWithTimeout runs a tool with a specific timeout.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, tool Tool, args json.RawMessage, timeout time.Duration) (ToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return e.Execute(ctx, tool, args)
}
