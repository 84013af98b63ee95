//go:build windows
// +build windows

package xeniface

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

type winDevice struct {
	handle windows.Handle
	path   string
}

// Open opens the driver's device interface at path.
func Open(path string) (Device, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid device path %q: %w", path, err)
	}

	h, err := windows.CreateFile(
		p,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, translate(err))
	}

	return &winDevice{handle: h, path: path}, nil
}

func (d *winDevice) IoControl(code uint32, in, out []byte) (int, error) {
	var inPtr, outPtr *byte
	if len(in) > 0 {
		inPtr = &in[0]
	}
	if len(out) > 0 {
		outPtr = &out[0]
	}

	var returned uint32
	err := windows.DeviceIoControl(d.handle, code, inPtr, uint32(len(in)), outPtr, uint32(len(out)), &returned, nil)
	if err != nil {
		return 0, translate(err)
	}
	return int(returned), nil
}

func (d *winDevice) Close() error {
	if d.handle == windows.InvalidHandle {
		return nil
	}
	err := windows.CloseHandle(d.handle)
	d.handle = windows.InvalidHandle
	return err
}

// translate maps a Win32 error code onto Errno so callers can match it on any platform
func translate(err error) error {
	var errno windows.Errno
	if errors.As(err, &errno) {
		return Errno(uint32(errno))
	}
	return err
}
