// Package xeniface speaks the device-control protocol of the Xen PV interface driver.
//
// Requests and responses are fixed-layout little-endian records exchanged through a
// single generic control call, see Device. The typed helpers in this package
// (GetHostTime, GetTime, StoreRead, SuspendRegister, SuspendDeregister) build the
// request buffer, issue the call and decode the response.
package xeniface

// Control code composition as used by the driver (device type, function, method, access).
const (
	fileDeviceUnknown = 0x22
	methodBuffered    = 0
	fileAnyAccess     = 0
)

// Control codes understood by the driver.
const (
	IoctlStoreRead             uint32 = fileDeviceUnknown<<16 | fileAnyAccess<<14 | 0x800<<2 | methodBuffered
	IoctlSuspendRegister       uint32 = fileDeviceUnknown<<16 | fileAnyAccess<<14 | 0x831<<2 | methodBuffered
	IoctlSuspendDeregister     uint32 = fileDeviceUnknown<<16 | fileAnyAccess<<14 | 0x832<<2 | methodBuffered
	IoctlSharedInfoGetTime     uint32 = fileDeviceUnknown<<16 | fileAnyAccess<<14 | 0x840<<2 | methodBuffered
	IoctlSharedInfoGetHostTime uint32 = fileDeviceUnknown<<16 | fileAnyAccess<<14 | 0x841<<2 | methodBuffered
)

// StorePayloadMax bounds both the key path of a store read (including the
// terminating NUL) and the value returned for it.
const StorePayloadMax = 4096

// Device is an open control channel to the driver.
type Device interface {
	// IoControl issues one synchronous control request and returns the number
	// of bytes written into out.
	IoControl(code uint32, in, out []byte) (int, error)

	// Close releases the underlying handle.
	Close() error
}

// codeName is used for log fields and error messages
func codeName(code uint32) string {
	switch code {
	case IoctlStoreRead:
		return "store_read"
	case IoctlSuspendRegister:
		return "suspend_register"
	case IoctlSuspendDeregister:
		return "suspend_deregister"
	case IoctlSharedInfoGetTime:
		return "sharedinfo_get_time"
	case IoctlSharedInfoGetHostTime:
		return "sharedinfo_get_host_time"
	default:
		return "unknown"
	}
}
