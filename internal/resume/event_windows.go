//go:build windows
// +build windows

package resume

import (
	"context"
	"fmt"

	"golang.org/x/sys/windows"
)

// pollMillis bounds how long Wait blocks before rechecking its context
const pollMillis = 250

type winEvent struct {
	h windows.Handle
}

// NewEvent creates a manual-reset Win32 event for the driver to signal
func NewEvent() (Event, error) {
	h, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateEvent: %w", err)
	}
	return &winEvent{h: h}, nil
}

func (e *winEvent) Handle() uintptr {
	return uintptr(e.h)
}

func (e *winEvent) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := windows.WaitForSingleObject(e.h, pollMillis)
		switch r {
		case windows.WAIT_OBJECT_0:
			return windows.ResetEvent(e.h)
		case uint32(windows.WAIT_TIMEOUT):
			continue
		default:
			return fmt.Errorf("WaitForSingleObject: %w", err)
		}
	}
}

func (e *winEvent) Close() error {
	return windows.CloseHandle(e.h)
}
