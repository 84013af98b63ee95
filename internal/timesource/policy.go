package timesource

import (
	"sync"

	"github.com/maximewewer/xentime-provider/internal/xeniface"
	"github.com/maximewewer/xentime-provider/pkg/logger"
)

// State is the position of a Policy in its one-way state machine.
type State int32

const (
	// StateNotYetProbed: the direct source has not answered yet
	StateNotYetProbed State = iota
	// StateDirectHostTime: the direct source has answered at least once. It is
	// still queried every cycle and may still fall back.
	StateDirectHostTime
	// StateFallback is terminal: only the offset-corrected source is used
	StateFallback
)

func (s State) String() string {
	switch s {
	case StateNotYetProbed:
		return "not_yet_probed"
	case StateDirectHostTime:
		return "direct_host_time"
	case StateFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Source identifies which query produced a Reading
type Source int

const (
	SourceHostTime Source = iota
	SourceOffsetStore
)

func (s Source) String() string {
	switch s {
	case SourceHostTime:
		return "host_time"
	case SourceOffsetStore:
		return "offset_store"
	default:
		return "unknown"
	}
}

// Policy selects between the direct and the fallback source.
//
// With fallback disallowed the direct source is always used and its errors are
// returned as they are. With fallback allowed, the first direct query that fails
// because the driver does not implement it moves the policy to StateFallback for
// good, and the fallback source answers the same call. Reconfiguring never
// leaves StateFallback.
type Policy struct {
	mu            sync.Mutex
	state         State
	allowFallback bool

	direct     ReadFunc
	fallback   ReadFunc
	onFallback func(cause error)
}

// NewPolicy creates a policy in StateNotYetProbed. onFallback, if set, runs once,
// at the transition to StateFallback.
func NewPolicy(allowFallback bool, direct, fallback ReadFunc, onFallback func(cause error)) *Policy {
	return &Policy{
		allowFallback: allowFallback,
		direct:        direct,
		fallback:      fallback,
		onFallback:    onFallback,
	}
}

// SetAllowFallback changes whether falling back is permitted from now on
func (p *Policy) SetAllowFallback(allow bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowFallback = allow
}

// AllowFallback reports the current setting
func (p *Policy) AllowFallback() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allowFallback
}

// State returns the current state
func (p *Policy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Resolve reads hypervisor time from whichever source the policy currently
// selects. The caller must hold the device for the whole call.
func (p *Policy) Resolve(dev xeniface.Device) (Reading, Source, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateFallback {
		r, err := p.fallback(dev)
		return r, SourceOffsetStore, err
	}

	r, err := p.direct(dev)
	if !p.allowFallback {
		return r, SourceHostTime, err
	}

	switch {
	case err == nil:
		p.transition(StateDirectHostTime)
		return r, SourceHostTime, nil
	case xeniface.IsUnsupported(err):
		if p.transition(StateFallback) && p.onFallback != nil {
			p.onFallback(err)
		}
		r, err = p.fallback(dev)
		return r, SourceOffsetStore, err
	default:
		return Reading{}, SourceHostTime, err
	}
}

// transition is the only place the state changes. It moves forward only and
// reports whether it did.
func (p *Policy) transition(to State) bool {
	if p.state == StateFallback || p.state == to || to == StateNotYetProbed {
		return false
	}

	logger.SafeInfo("timesource", "Time source state changed", map[string]interface{}{
		"from": p.state.String(),
		"to":   to.String(),
	})
	p.state = to
	return true
}
