//go:build !windows
// +build !windows

package resume

// NewEvent returns a channel-backed event; no driver exists to signal it here
func NewEvent() (Event, error) {
	return NewChanEvent(), nil
}
