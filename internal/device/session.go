// Package device owns the connection to the Xen interface driver.
//
// A Session holds at most one open Device together with the path it was opened
// from. Callers never keep the device: they Borrow it for the duration of one
// operation, during which the session is locked, and Release it afterwards.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maximewewer/xentime-provider/internal/timesource"
	"github.com/maximewewer/xentime-provider/internal/xeniface"
	"github.com/maximewewer/xentime-provider/pkg/logger"
)

// ErrNotConnected is returned when no live device is available. It is a pending
// condition, not a failure: the next poll may find the device connected.
var ErrNotConnected = fmt.Errorf("device not connected: %w", timesource.ErrPending)

// ErrClosed is returned by Connect after Close
var ErrClosed = errors.New("device session closed")

// OpenFunc opens the device at path
type OpenFunc func(path string) (xeniface.Device, error)

// Hooks are notified when the session gains or loses its device. They run with
// the session locked and must not Borrow.
type Hooks struct {
	OnConnect     func(dev xeniface.Device)
	OnDisconnect  func(dev xeniface.Device)
	OnConnectFail func(err error)
}

// Session serialises access to the driver handle
type Session struct {
	mu     sync.Mutex
	path   string
	open   OpenFunc
	hooks  Hooks
	dev    xeniface.Device
	closed bool
}

// NewSession creates a disconnected session for the device at path
func NewSession(path string, open OpenFunc, hooks Hooks) *Session {
	return &Session{
		path:  path,
		open:  open,
		hooks: hooks,
	}
}

// Borrow is an exclusive, scoped view of the session. Device is nil when the
// session is not connected.
type Borrow struct {
	Device xeniface.Device
	Path   string

	s        *Session
	released bool
}

// Borrow locks the session and returns a view of the current device.
// The caller must Release it, typically with defer.
func (s *Session) Borrow() *Borrow {
	s.mu.Lock()
	return &Borrow{
		Device: s.dev,
		Path:   s.path,
		s:      s,
	}
}

// Valid reports whether the borrowed device is live
func (b *Borrow) Valid() bool {
	return b.Device != nil
}

// Release unlocks the session. The borrow must not be used afterwards.
func (b *Borrow) Release() {
	if b.released {
		return
	}
	b.released = true
	b.Device = nil
	b.s.mu.Unlock()
}

// Invalidate drops the borrowed device while the session is still held. The
// borrow is no longer valid afterwards; Run reopens the device.
func (b *Borrow) Invalidate() {
	if b.released {
		return
	}
	b.Device = nil
	b.s.dropLocked()
}

// Connected reports whether the session currently holds a device
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev != nil
}

// Path returns the device path the session opens
func (s *Session) Path() string {
	return s.path
}

// Connect opens the device if the session does not hold one yet.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.dev != nil {
		return nil
	}

	dev, err := s.open(s.path)
	if err != nil {
		logger.Device("open", s.path, map[string]interface{}{
			"error": err.Error(),
		})
		if s.hooks.OnConnectFail != nil {
			s.hooks.OnConnectFail(err)
		}
		return fmt.Errorf("connect %s: %w", s.path, err)
	}
	s.dev = dev

	logger.SafeInfo("device", "Device connected", map[string]interface{}{
		"path": s.path,
	})
	if s.hooks.OnConnect != nil {
		s.hooks.OnConnect(dev)
	}
	return nil
}

// Invalidate drops the current device, e.g. after the driver went away.
// A later Connect reopens it.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked()
}

func (s *Session) dropLocked() {
	if s.dev == nil {
		return
	}
	if s.hooks.OnDisconnect != nil {
		s.hooks.OnDisconnect(s.dev)
	}
	if err := s.dev.Close(); err != nil {
		logger.Error("device", "Failed to close device", err)
	}
	s.dev = nil

	logger.SafeInfo("device", "Device disconnected", map[string]interface{}{
		"path": s.path,
	})
}

// Close releases the device. The session cannot be reconnected afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropLocked()
	s.closed = true
	return nil
}

// Run keeps trying to connect every interval until the session is connected,
// then keeps checking so an invalidated device gets reopened. It returns when
// ctx is done or the session is closed.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Connect(); errors.Is(err, ErrClosed) {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
