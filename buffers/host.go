package buffers

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// HostManager is the host-memory reference implementation of ResourceManager.
// "Device" buffers it allocates live in host memory too; it exists so that the
// metadata engine and its tests run without an accelerator runtime.
type HostManager struct {
	deviceID   int
	numDevices int
}

// NewHostManager creates a resource manager for deviceID out of numDevices.
func NewHostManager(deviceID, numDevices int) (*HostManager, error) {
	if numDevices <= 0 {
		return nil, errors.Errorf("number of devices must be positive, got %d", numDevices)
	}
	if deviceID < 0 || deviceID >= numDevices {
		return nil, errors.Errorf("device id %d out of range [0, %d)", deviceID, numDevices)
	}
	return &HostManager{deviceID: deviceID, numDevices: numDevices}, nil
}

// DeviceID returns the device this manager is bound to.
func (m *HostManager) DeviceID() int { return m.deviceID }

// NumDevices returns the number of devices in the job.
func (m *HostManager) NumDevices() int { return m.numDevices }

// Allocate returns a zero-initialized buffer. Device placement is simulated in
// host memory.
func (m *HostManager) Allocate(placement Placement, dtype dtypes.DType, dims ...int) (*Buffer, error) {
	return newBuffer(placement, m.deviceID, dtype, dims)
}
