package remote

import (
	"errors"
	"sync"
	"time"
)

// Breaker gates calls to the hosted table service so a flapping backend is
// not hammered on every operation. While open, operations report the
// service as unavailable without attempting network I/O.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

var ErrBreakerOpen = errors.New("remote circuit breaker is open")

type BreakerConfig struct {
	MaxFailures      int
	Timeout          time.Duration
	HalfOpenMaxCalls int
}

func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

type Breaker struct {
	mu              sync.RWMutex
	state           breakerState
	failureCount    int
	successCount    int
	lastFailureTime time.Time

	maxFailures      int
	timeout          time.Duration
	halfOpenMaxCalls int
}

func NewBreaker(config *BreakerConfig) *Breaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	return &Breaker{
		state:            breakerClosed,
		maxFailures:      config.MaxFailures,
		timeout:          config.Timeout,
		halfOpenMaxCalls: config.HalfOpenMaxCalls,
	}
}

func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return ErrBreakerOpen
	}

	if err := fn(); err != nil {
		b.recordFailure()
		return err
	}

	b.recordSuccess()
	return nil
}

func (b *Breaker) allow() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		return b.shouldAttemptReset()
	case breakerHalfOpen:
		return b.successCount < b.halfOpenMaxCalls
	default:
		return false
	}
}

func (b *Breaker) shouldAttemptReset() bool {
	return time.Since(b.lastFailureTime) >= b.timeout
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = time.Now()

	switch b.state {
	case breakerClosed:
		if b.failureCount >= b.maxFailures {
			b.state = breakerOpen
		}
	case breakerHalfOpen:
		b.state = breakerOpen
		b.successCount = 0
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		b.failureCount = 0
	case breakerHalfOpen:
		b.successCount++
		if b.successCount >= b.halfOpenMaxCalls {
			b.state = breakerClosed
			b.failureCount = 0
			b.successCount = 0
		}
	case breakerOpen:
		if b.shouldAttemptReset() {
			b.state = breakerHalfOpen
			b.successCount = 1
		}
	}
}

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state == breakerOpen && !b.shouldAttemptReset()
}

func (b *Breaker) Stats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stateName := "closed"
	switch b.state {
	case breakerOpen:
		stateName = "open"
	case breakerHalfOpen:
		stateName = "half-open"
	}

	return map[string]interface{}{
		"state":         stateName,
		"failure_count": b.failureCount,
		"success_count": b.successCount,
		"last_failure":  b.lastFailureTime.Unix(),
		"max_failures":  b.maxFailures,
	}
}
