package timesource

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/maximewewer/xentime-provider/internal/xeniface"
)

const (
	// vmKey holds the VM's root path in the store
	vmKey = "vm"

	offsetSuffix = "rtc/timeoffset"
)

// VMOffsetPath returns the store path of the RTC offset below the VM root
func VMOffsetPath(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: empty %s path", ErrMalformed, vmKey)
	}
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return root + offsetSuffix, nil
}

// ReadOffsetPath looks up the VM root and derives the RTC offset path from it
func ReadOffsetPath(dev xeniface.Device) (string, error) {
	root, err := storeRead(dev, vmKey)
	if err != nil {
		return "", err
	}
	return VMOffsetPath(root)
}

// storeRead reports a key the store does not hold as malformed data
func storeRead(dev xeniface.Device, path string) (string, error) {
	value, err := xeniface.StoreRead(dev, path)
	if errors.Is(err, xeniface.ErrNotFound) {
		return "", fmt.Errorf("%w: %s missing: %v", ErrMalformed, path, err)
	}
	return value, err
}

// ParseOffset parses the store's offset text, a signed count of seconds. The
// whole text must be consumed.
func ParseOffset(text string) (int64, error) {
	seconds, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, text)
	}
	return seconds, nil
}
