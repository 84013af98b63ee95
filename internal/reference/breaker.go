package reference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/maximewewer/xentime-provider/pkg/logger"
)

// BreakerConfig configures the per-server circuit breakers
type BreakerConfig struct {
	// MaxRequests may pass while half-open
	MaxRequests uint32
	// Interval clears the counts while closed
	Interval time.Duration
	// Timeout is how long a breaker stays open
	Timeout time.Duration
	// FailureThreshold is the failure ratio, over at least three requests, that opens a breaker
	FailureThreshold float64

	// OnStateChange, if set, is called after a breaker changes state
	OnStateChange func(server string, to gobreaker.State)
}

// DefaultBreakerConfig returns the settings used when none are configured
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
	}
}

func (c BreakerConfig) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < 3 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureThreshold
}

// BreakerClient wraps a Querier with one circuit breaker per server, so a dead
// reference stops being queried for a while
type BreakerClient struct {
	querier Querier
	config  BreakerConfig

	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerClient wraps querier. A zero MaxRequests selects DefaultBreakerConfig.
func NewBreakerClient(querier Querier, config BreakerConfig) *BreakerClient {
	if config.MaxRequests == 0 {
		onChange := config.OnStateChange
		config = DefaultBreakerConfig()
		config.OnStateChange = onChange
	}

	return &BreakerClient{
		querier:  querier,
		config:   config,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (b *BreakerClient) breaker(server string) *gobreaker.CircuitBreaker {
	b.mu.RLock()
	cb, ok := b.breakers[server]
	b.mu.RUnlock()
	if ok {
		return cb
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[server]; ok {
		return cb
	}

	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        server,
		MaxRequests: b.config.MaxRequests,
		Interval:    b.config.Interval,
		Timeout:     b.config.Timeout,
		ReadyToTrip: b.config.readyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.SafeInfo("reference", "Circuit breaker state changed", map[string]interface{}{
				"server": name,
				"from":   from.String(),
				"to":     to.String(),
			})
			if b.config.OnStateChange != nil {
				b.config.OnStateChange(name, to)
			}
		},
	})
	b.breakers[server] = cb
	return cb
}

// Query queries server unless its breaker is open
func (b *BreakerClient) Query(ctx context.Context, server string) (*Response, error) {
	result, err := b.breaker(server).Execute(func() (interface{}, error) {
		return b.querier.Query(ctx, server)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("circuit breaker open for %s: %w", server, err)
		}
		return nil, err
	}
	return result.(*Response), nil
}

// State returns the breaker state for server; unknown servers are closed
func (b *BreakerClient) State(server string) gobreaker.State {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cb, ok := b.breakers[server]
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}
