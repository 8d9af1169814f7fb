// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by Execute while the breaker refuses work
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerState is the position of a CircuitBreaker
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig configures a CircuitBreaker
type BreakerConfig struct {
	Name string
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold int
	// Cooldown is how long the breaker stays open before it admits a trial call
	Cooldown time.Duration
	// IsFailure selects the errors that count against the breaker; nil counts every error
	IsFailure func(error) bool
	// OnStateChange is called with the breaker lock held and must not call back into it
	OnStateChange func(name string, from, to BreakerState)
}

// DefaultBreakerConfig counts only retryable errors
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
		IsFailure:        IsRetryable,
	}
}

// CircuitBreaker stops calling a shared dependency after repeated failures.
// Once Cooldown has passed a single trial call is let through: success closes
// the breaker and failure opens it again.
type CircuitBreaker struct {
	config BreakerConfig

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	trialing bool
}

// NewCircuitBreaker returns a closed breaker
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 1
	}
	return &CircuitBreaker{config: config}
}

// Execute runs fn unless the breaker is open. The error from fn is returned
// unchanged; a refused call returns an error wrapping ErrBreakerOpen.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	cb.record(err, trial)
	return err
}

// State returns the current state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// admit reports whether the call may run and whether it is the trial call
func (cb *CircuitBreaker) admit() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if time.Since(cb.openedAt) < cb.config.Cooldown {
			return false, fmt.Errorf("%s: %w", cb.config.Name, ErrBreakerOpen)
		}
		cb.transition(StateHalfOpen)
	}

	if cb.trialing {
		return false, fmt.Errorf("%s: trial call in progress: %w", cb.config.Name, ErrBreakerOpen)
	}
	cb.trialing = true
	return true, nil
}

func (cb *CircuitBreaker) record(err error, trial bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil
	if cb.config.IsFailure != nil {
		failed = cb.config.IsFailure(err)
	}

	if trial {
		cb.trialing = false
		if failed {
			cb.open()
		} else {
			cb.failures = 0
			cb.transition(StateClosed)
		}
		return
	}

	if !failed {
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.state == StateClosed && cb.failures >= cb.config.FailureThreshold {
		cb.open()
	}
}

func (cb *CircuitBreaker) open() {
	cb.openedAt = time.Now()
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to BreakerState) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
