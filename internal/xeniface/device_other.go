//go:build !windows
// +build !windows

package xeniface

// Open is not supported on this platform.
func Open(path string) (Device, error) {
	return nil, ErrUnsupportedPlatform
}
