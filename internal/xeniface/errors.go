package xeniface

import (
	"errors"
	"strconv"
)

// Errno is an error code reported by the driver for a failed control request.
type Errno uint32

// Codes the driver uses to say an operation is not implemented by the installed version.
const (
	ErrInvalidFunction Errno = 1
	ErrNotSupported    Errno = 50
)

// ErrNotFound is returned by a store read for a key that does not exist.
const ErrNotFound Errno = 2

// Codes meaning the handle no longer refers to a usable driver instance.
const (
	ErrInvalidHandle      Errno = 6
	ErrNotReady           Errno = 21
	ErrDeviceNotConnected Errno = 1167
	ErrDeviceRemoved      Errno = 1617
)

func (e Errno) Error() string {
	switch e {
	case ErrInvalidFunction:
		return "incorrect function"
	case ErrNotSupported:
		return "the request is not supported"
	case ErrNotFound:
		return "not found"
	default:
		return "device error " + strconv.FormatUint(uint64(e), 10)
	}
}

var (
	// ErrShortResponse is returned when the driver wrote fewer bytes than the record needs
	ErrShortResponse = errors.New("short device response")

	// ErrPayloadTooLarge is returned when a store key does not fit in one request
	ErrPayloadTooLarge = errors.New("store payload exceeds maximum size")

	// ErrUnsupportedPlatform is returned by Open where no driver can exist
	ErrUnsupportedPlatform = errors.New("xeniface devices are only available on windows")
)

// IsUnsupported reports whether err means the present driver does not implement the
// requested operation. Both driver codes for this are treated the same.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrInvalidFunction) || errors.Is(err, ErrNotSupported)
}

// IsDeviceGone reports whether err means the open handle is dead and the device
// has to be reopened.
func IsDeviceGone(err error) bool {
	var errno Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case ErrInvalidHandle, ErrNotReady, ErrDeviceNotConnected, ErrDeviceRemoved:
		return true
	}
	return false
}
