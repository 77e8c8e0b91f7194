package driver

import "errors"

// Driver errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or could not be opened.
	ErrBackendNotAvailable = errors.New("driver: backend not available")

	// ErrFragmentedPool is returned by DescriptorPool.Allocate when the pool
	// has raw capacity left but cannot satisfy this allocation shape.
	// It is recoverable: the caller tries another pool.
	ErrFragmentedPool = errors.New("driver: descriptor pool fragmented")

	// ErrOutOfPoolMemory is returned by DescriptorPool.Allocate when the pool
	// has no capacity left for the request. It is recoverable like
	// ErrFragmentedPool.
	ErrOutOfPoolMemory = errors.New("driver: descriptor pool out of memory")

	// ErrUnsupported is returned for requests the backend cannot express.
	ErrUnsupported = errors.New("driver: unsupported")

	// ErrDeviceReleased is returned when using a released device.
	ErrDeviceReleased = errors.New("driver: device released")
)

// IsPoolExhausted reports whether err is one of the recoverable descriptor
// pool conditions.
func IsPoolExhausted(err error) bool {
	return errors.Is(err, ErrFragmentedPool) || errors.Is(err, ErrOutOfPoolMemory)
}
