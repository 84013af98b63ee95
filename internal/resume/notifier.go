// Package resume delivers a notification each time the virtual machine resumes
// from suspend, as signalled by the Xen interface driver.
package resume

import (
	"context"
	"fmt"
	"sync"

	"github.com/maximewewer/xentime-provider/internal/xeniface"
	"github.com/maximewewer/xentime-provider/pkg/logger"
)

// Event is a waitable object the driver can signal.
type Event interface {
	// Handle is the value passed to the driver at registration
	Handle() uintptr
	// Wait blocks until the event is signalled or ctx is done
	Wait(ctx context.Context) error
	Close() error
}

// Notifier registers with a device and forwards its resume signals to Events.
// Events survives Detach/Attach cycles, so subscribers can hold on to it while
// the device comes and goes.
type Notifier struct {
	newEvent func() (Event, error)
	events   chan struct{}

	mu     sync.Mutex
	dev    xeniface.Device
	event  Event
	token  uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNotifier creates a detached notifier. newEvent is called on every Attach.
func NewNotifier(newEvent func() (Event, error)) *Notifier {
	return &Notifier{
		newEvent: newEvent,
		events:   make(chan struct{}, 1),
	}
}

// Events receives one value per resume. Resumes that happen while a previous
// one is still unread are coalesced.
func (n *Notifier) Events() <-chan struct{} {
	return n.events
}

// Attach registers for resume notifications on dev. An existing registration
// is dropped first.
func (n *Notifier) Attach(dev xeniface.Device) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.detachLocked()

	ev, err := n.newEvent()
	if err != nil {
		return fmt.Errorf("create resume event: %w", err)
	}

	token, err := xeniface.SuspendRegister(dev, ev.Handle())
	if err != nil {
		ev.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.dev = dev
	n.event = ev
	n.token = token
	n.cancel = cancel
	n.done = make(chan struct{})

	go n.watch(ctx, ev, n.done)

	logger.Debug("resume", "Registered for resume notifications")
	return nil
}

func (n *Notifier) watch(ctx context.Context, ev Event, done chan struct{}) {
	defer close(done)
	for {
		if err := ev.Wait(ctx); err != nil {
			return
		}
		logger.Info("resume", "Resume from suspend signalled")
		select {
		case n.events <- struct{}{}:
		default:
		}
	}
}

// Detach deregisters from the device and stops watching. It is safe to call
// when not attached.
func (n *Notifier) Detach() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.detachLocked()
}

func (n *Notifier) detachLocked() {
	if n.dev == nil {
		return
	}

	n.cancel()
	<-n.done

	if err := xeniface.SuspendDeregister(n.dev, n.token); err != nil {
		logger.Error("resume", "Failed to deregister resume notification", err)
	}
	if err := n.event.Close(); err != nil {
		logger.Error("resume", "Failed to close resume event", err)
	}

	n.dev = nil
	n.event = nil
	n.token = 0
	n.cancel = nil
	n.done = nil
}
