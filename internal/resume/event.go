package resume

import (
	"context"
	"sync/atomic"
)

var chanEventIDs atomic.Uint64

// ChanEvent is an Event signalled from Go code. Signals are not counted: several
// signals before a Wait wake it once.
type ChanEvent struct {
	id uint64
	ch chan struct{}
}

// NewChanEvent creates an unsignalled channel event
func NewChanEvent() *ChanEvent {
	return &ChanEvent{
		id: chanEventIDs.Add(1),
		ch: make(chan struct{}, 1),
	}
}

// Handle returns an identifier unique within the process
func (e *ChanEvent) Handle() uintptr {
	return uintptr(e.id)
}

// Signal wakes one pending or future Wait
func (e *ChanEvent) Signal() {
	select {
	case e.ch <- struct{}{}:
	default:
	}
}

func (e *ChanEvent) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.ch:
		return nil
	}
}

func (e *ChanEvent) Close() error {
	return nil
}
