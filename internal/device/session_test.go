package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/maximewewer/xentime-provider/internal/timesource"
	"github.com/maximewewer/xentime-provider/internal/xeniface"
	testutil "github.com/maximewewer/xentime-provider/pkg/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockOpener(dev *xeniface.MockDevice, err error) (OpenFunc, *int) {
	calls := 0
	return func(path string) (xeniface.Device, error) {
		calls++
		if err != nil {
			return nil, err
		}
		return dev, nil
	}, &calls
}

func TestErrNotConnected_IsPending(t *testing.T) {
	assert.ErrorIs(t, ErrNotConnected, timesource.ErrPending)
}

func TestSession_BorrowBeforeConnect(t *testing.T) {
	open, _ := mockOpener(xeniface.NewMockDevice(), nil)
	s := NewSession(`\\.\xeniface`, open, Hooks{})

	b := s.Borrow()
	defer b.Release()

	assert.False(t, b.Valid())
	assert.Equal(t, `\\.\xeniface`, b.Path)
}

func TestSession_ConnectAndBorrow(t *testing.T) {
	dev := xeniface.NewMockDevice()
	open, calls := mockOpener(dev, nil)
	s := NewSession("xeniface0", open, Hooks{})

	require.NoError(t, s.Connect())
	require.NoError(t, s.Connect())
	assert.Equal(t, 1, *calls, "connected session must not reopen")

	b := s.Borrow()
	assert.True(t, b.Valid())
	assert.Same(t, dev, b.Device)
	b.Release()
	b.Release()

	assert.True(t, s.Connected())
}

func TestSession_ConnectFailure(t *testing.T) {
	open, _ := mockOpener(nil, xeniface.ErrUnsupportedPlatform)
	var hookErr error
	s := NewSession("xeniface0", open, Hooks{
		OnConnectFail: func(err error) { hookErr = err },
	})

	err := s.Connect()

	assert.ErrorIs(t, err, xeniface.ErrUnsupportedPlatform)
	assert.ErrorIs(t, hookErr, xeniface.ErrUnsupportedPlatform)
	assert.False(t, s.Connected())
}

func TestSession_BorrowIsExclusive(t *testing.T) {
	dev := xeniface.NewMockDevice()
	open, _ := mockOpener(dev, nil)
	s := NewSession("xeniface0", open, Hooks{})
	require.NoError(t, s.Connect())

	b := s.Borrow()

	acquired := make(chan struct{})
	go func() {
		b2 := s.Borrow()
		defer b2.Release()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second borrow acquired while first was held")
	case <-time.After(50 * time.Millisecond):
	}

	b.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second borrow never acquired")
	}
}

func TestSession_HooksAndInvalidate(t *testing.T) {
	dev := xeniface.NewMockDevice()
	open, calls := mockOpener(dev, nil)

	var connects, disconnects int
	s := NewSession("xeniface0", open, Hooks{
		OnConnect:    func(xeniface.Device) { connects++ },
		OnDisconnect: func(xeniface.Device) { disconnects++ },
	})

	require.NoError(t, s.Connect())
	s.Invalidate()
	assert.False(t, s.Connected())
	assert.True(t, dev.Closed())

	require.NoError(t, s.Connect())
	assert.Equal(t, 2, *calls)
	assert.Equal(t, 2, connects)
	assert.Equal(t, 1, disconnects)
}

func TestSession_Close(t *testing.T) {
	dev := xeniface.NewMockDevice()
	open, _ := mockOpener(dev, nil)
	s := NewSession("xeniface0", open, Hooks{})
	require.NoError(t, s.Connect())

	require.NoError(t, s.Close())

	assert.True(t, dev.Closed())
	assert.ErrorIs(t, s.Connect(), ErrClosed)

	b := s.Borrow()
	defer b.Release()
	assert.False(t, b.Valid())
}

func TestSession_Run(t *testing.T) {
	dev := xeniface.NewMockDevice()

	var mu sync.Mutex
	fail := true
	s := NewSession("xeniface0", func(string) (xeniface.Device, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return nil, errors.New("not yet")
		}
		return dev, nil
	}, Hooks{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, 5*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, s.Connected())

	mu.Lock()
	fail = false
	mu.Unlock()

	testutil.WaitForCondition(t, s.Connected, time.Second, "session connected")

	cancel()
	assert.NoError(t, <-done)
}

func TestSession_BorrowInvalidate(t *testing.T) {
	dev := xeniface.NewMockDevice()
	open, calls := mockOpener(dev, nil)

	disconnects := 0
	s := NewSession("xeniface0", open, Hooks{
		OnDisconnect: func(xeniface.Device) { disconnects++ },
	})
	require.NoError(t, s.Connect())

	b := s.Borrow()
	require.True(t, b.Valid())
	b.Invalidate()
	assert.False(t, b.Valid())
	b.Release()

	assert.False(t, s.Connected())
	assert.True(t, dev.Closed())
	assert.Equal(t, 1, disconnects)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, 5*time.Millisecond) }()

	testutil.WaitForCondition(t, s.Connected, time.Second, "session reopened")
	assert.Equal(t, 2, *calls)

	cancel()
	assert.NoError(t, <-done)
}
