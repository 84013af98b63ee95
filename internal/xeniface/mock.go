package xeniface

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
)

// MockDevice is an in-process stand-in for the driver. It answers the same control
// codes with the same record layouts, which makes it usable both in tests and for
// running the provider outside a Xen guest.
type MockDevice struct {
	mu sync.Mutex

	hostTime     TimeRecord
	hostTimeFunc func() TimeRecord
	hostTimeErr  error

	guestTime     TimeRecord
	guestTimeFunc func() TimeRecord
	guestTimeErr  error

	store    map[string]string
	storeErr map[string]error

	hooks         map[uint32]func()
	callCounts    map[uint32]int
	registrations map[uint64]uint64
	nextToken     uint64
	closed        bool
}

// NewMockDevice creates a mock device with an empty store
func NewMockDevice() *MockDevice {
	return &MockDevice{
		store:         make(map[string]string),
		storeErr:      make(map[string]error),
		hooks:         make(map[uint32]func()),
		callCounts:    make(map[uint32]int),
		registrations: make(map[uint64]uint64),
		nextToken:     1,
	}
}

// IoControl dispatches a request the way the driver would
func (m *MockDevice) IoControl(code uint32, in, out []byte) (int, error) {
	m.mu.Lock()
	m.callCounts[code]++
	hook := m.hooks[code]
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return 0, errors.New("mock device closed")
	}

	// Hooks run unlocked so they can reconfigure the mock mid-request
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch code {
	case IoctlSharedInfoGetHostTime:
		if m.hostTimeErr != nil {
			return 0, m.hostTimeErr
		}
		rec := m.hostTime
		if m.hostTimeFunc != nil {
			rec = m.hostTimeFunc()
		}
		return writeTime(rec, out)

	case IoctlSharedInfoGetTime:
		if m.guestTimeErr != nil {
			return 0, m.guestTimeErr
		}
		rec := m.guestTime
		if m.guestTimeFunc != nil {
			rec = m.guestTimeFunc()
		}
		return writeTime(rec, out)

	case IoctlStoreRead:
		path := string(in)
		if i := bytes.IndexByte(in, 0); i >= 0 {
			path = string(in[:i])
		}
		if err, ok := m.storeErr[path]; ok {
			return 0, err
		}
		value, ok := m.store[path]
		if !ok {
			return 0, ErrNotFound
		}
		if len(value)+1 > len(out) {
			return 0, ErrPayloadTooLarge
		}
		n := copy(out, value)
		out[n] = 0
		return n + 1, nil

	case IoctlSuspendRegister:
		event, err := getUint64(in)
		if err != nil {
			return 0, err
		}
		token := m.nextToken
		m.nextToken++
		m.registrations[token] = event
		if len(out) < suspendRecordSize {
			return 0, ErrShortResponse
		}
		binary.LittleEndian.PutUint64(out, token)
		return suspendRecordSize, nil

	case IoctlSuspendDeregister:
		token, err := getUint64(in)
		if err != nil {
			return 0, err
		}
		if _, ok := m.registrations[token]; !ok {
			return 0, Errno(87)
		}
		delete(m.registrations, token)
		return 0, nil
	}

	return 0, ErrInvalidFunction
}

func writeTime(rec TimeRecord, out []byte) (int, error) {
	b, _ := rec.MarshalBinary()
	if len(out) < len(b) {
		return 0, ErrShortResponse
	}
	return copy(out, b), nil
}

// Close marks the device closed; later requests fail
func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetHostTime configures the host-time answer
func (m *MockDevice) SetHostTime(ticks uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hostTime = TimeRecord{Time: ticks}
	m.hostTimeErr = nil
}

// SetHostTimeFunc makes every host-time answer come from fn
func (m *MockDevice) SetHostTimeFunc(fn func() TimeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hostTimeFunc = fn
	m.hostTimeErr = nil
}

// SetHostTimeError makes host-time queries fail with err
func (m *MockDevice) SetHostTimeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hostTimeErr = err
}

// SetGuestTime configures the shared-info time answer
func (m *MockDevice) SetGuestTime(ticks uint64, local bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guestTime = TimeRecord{Time: ticks, Local: local}
	m.guestTimeErr = nil
}

// SetGuestTimeFunc makes every shared-info time answer come from fn
func (m *MockDevice) SetGuestTimeFunc(fn func() TimeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guestTimeFunc = fn
	m.guestTimeErr = nil
}

// SetGuestTimeError makes shared-info time queries fail with err
func (m *MockDevice) SetGuestTimeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guestTimeErr = err
}

// SetStoreValue stores value under path
func (m *MockDevice) SetStoreValue(path, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[path] = value
	delete(m.storeErr, path)
}

// SetStoreError makes reads of path fail with err
func (m *MockDevice) SetStoreError(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeErr[path] = err
}

// OnRequest installs fn to run at the start of every request with the given code
func (m *MockDevice) OnRequest(code uint32, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[code] = fn
}

// CallCount returns how many requests with code were issued
func (m *MockDevice) CallCount(code uint32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCounts[code]
}

// Registrations returns the number of live suspend registrations
func (m *MockDevice) Registrations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.registrations)
}

// Closed reports whether Close was called
func (m *MockDevice) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
