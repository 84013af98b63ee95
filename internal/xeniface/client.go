package xeniface

import (
	"bytes"
	"fmt"

	"github.com/maximewewer/xentime-provider/pkg/logger"
)

// GetHostTime queries the hypervisor host's wall clock.
func GetHostTime(dev Device) (TimeRecord, error) {
	return queryTime(dev, IoctlSharedInfoGetHostTime)
}

// GetTime queries the guest wall clock kept in the shared-info page.
func GetTime(dev Device) (TimeRecord, error) {
	return queryTime(dev, IoctlSharedInfoGetTime)
}

func queryTime(dev Device, code uint32) (TimeRecord, error) {
	var rec TimeRecord

	out := make([]byte, TimeRecordSize)
	n, err := dev.IoControl(code, nil, out)
	if err != nil {
		logger.SafeDebug("xeniface", "Time query failed", map[string]interface{}{
			"ioctl": codeName(code),
			"error": err.Error(),
		})
		return rec, fmt.Errorf("%s: %w", codeName(code), err)
	}

	if err := rec.UnmarshalBinary(out[:n]); err != nil {
		return rec, fmt.Errorf("%s: %w", codeName(code), err)
	}
	return rec, nil
}

// StoreRead reads one value from the hypervisor's key/value store.
func StoreRead(dev Device, path string) (string, error) {
	in := make([]byte, 0, len(path)+1)
	in = append(in, path...)
	in = append(in, 0)
	if len(in) > StorePayloadMax {
		return "", fmt.Errorf("store read %q: %w", path, ErrPayloadTooLarge)
	}

	out := make([]byte, StorePayloadMax)
	n, err := dev.IoControl(IoctlStoreRead, in, out)
	if err != nil {
		logger.SafeDebug("xeniface", "Store read failed", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return "", fmt.Errorf("store read %q: %w", path, err)
	}

	value := out[:n]
	if i := bytes.IndexByte(value, 0); i >= 0 {
		value = value[:i]
	}
	return string(value), nil
}

// SuspendRegister asks the driver to signal event after every resume from suspend.
// The returned token must be handed back to SuspendDeregister.
func SuspendRegister(dev Device, event uintptr) (uint64, error) {
	out := make([]byte, suspendRecordSize)
	n, err := dev.IoControl(IoctlSuspendRegister, putUint64(uint64(event)), out)
	if err != nil {
		return 0, fmt.Errorf("suspend register: %w", err)
	}
	token, err := getUint64(out[:n])
	if err != nil {
		return 0, fmt.Errorf("suspend register: %w", err)
	}
	return token, nil
}

// SuspendDeregister cancels a registration made by SuspendRegister.
func SuspendDeregister(dev Device, token uint64) error {
	if _, err := dev.IoControl(IoctlSuspendDeregister, putUint64(token), nil); err != nil {
		return fmt.Errorf("suspend deregister: %w", err)
	}
	return nil
}
