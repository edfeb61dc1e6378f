// Package buffers provides the typed, shaped buffer abstraction the embedding
// collection metadata binds to: allocation by shape and dtype through a
// ResourceManager, host<->device copies with optional asynchrony, tagged views
// over buffer storage, and shared channels that pack several buffers into one
// externally managed allocation.
//
// The package ships a host-memory reference implementation; a real accelerator
// backend supplies its own ResourceManager and Stream.
package buffers

import (
	"fmt"
	"slices"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Placement says where a buffer's storage lives.
type Placement int8

const (
	Host Placement = iota
	Device
)

func (p Placement) String() string {
	switch p {
	case Host:
		return "Host"
	case Device:
		return "Device"
	}
	return fmt.Sprintf("Placement(%d)", p)
}

// Stream is an opaque execution stream owned by the caller. Copies given a nil
// Stream execute synchronously before returning; with a non-nil Stream they may
// complete asynchronously, and the caller synchronizes the stream before reading.
type Stream interface {
	Synchronize() error
}

// ResourceManager supplies device identity and buffer allocation. It mirrors the
// per-device resource context of an accelerator runtime; the metadata engine only
// ever asks it for buffers of a given placement, dtype and shape.
type ResourceManager interface {
	// DeviceID returns the id of the device this manager is bound to.
	DeviceID() int

	// NumDevices returns the number of devices participating in the job.
	NumDevices() int

	// Allocate returns a zero-initialized buffer of the given placement, dtype and dimensions.
	Allocate(placement Placement, dtype dtypes.DType, dims ...int) (*Buffer, error)
}

// Buffer is a typed, shaped block of memory, either host- or device-resident.
//
// A Buffer may own its storage (allocated through a ResourceManager) or be bound
// to caller-owned storage with BindBytes, in which case it is only a typed view
// and never frees the memory behind it.
type Buffer struct {
	dtype     dtypes.DType
	dims      []int
	placement Placement
	deviceID  int
	data      []byte
	bound     bool
}

// New creates a host buffer with its own zeroed storage.
// Buffers on other devices are allocated through a ResourceManager.
func New(dtype dtypes.DType, dims ...int) (*Buffer, error) {
	return newBuffer(Host, 0, dtype, dims)
}

func newBuffer(placement Placement, deviceID int, dtype dtypes.DType, dims []int) (*Buffer, error) {
	if dtype == dtypes.InvalidDType {
		return nil, errors.New("cannot allocate a buffer with an invalid dtype")
	}
	n := 1
	for _, dim := range dims {
		if dim < 0 {
			return nil, errors.Errorf("buffer dimensions must be non-negative, got %v", dims)
		}
		n *= dim
	}
	return &Buffer{
		dtype:     dtype,
		dims:      slices.Clone(dims),
		placement: placement,
		deviceID:  deviceID,
		data:      make([]byte, n*int(dtype.Memory())),
	}, nil
}

// DType returns the element type of the buffer.
func (b *Buffer) DType() dtypes.DType { return b.dtype }

// Dims returns a copy of the buffer dimensions.
func (b *Buffer) Dims() []int { return slices.Clone(b.dims) }

// Placement returns where the buffer storage lives.
func (b *Buffer) Placement() Placement { return b.placement }

// DeviceID returns the device the buffer belongs to. Zero for host buffers.
func (b *Buffer) DeviceID() int { return b.deviceID }

// NumElements returns the product of the buffer dimensions.
func (b *Buffer) NumElements() int {
	n := 1
	for _, dim := range b.dims {
		n *= dim
	}
	return n
}

// SizeBytes returns the storage size of the buffer.
func (b *Buffer) SizeBytes() int {
	return b.NumElements() * int(b.dtype.Memory())
}

// Bytes returns the raw storage of the buffer.
func (b *Buffer) Bytes() []byte { return b.data }

// IsBound reports whether the buffer is a view over caller-owned storage.
func (b *Buffer) IsBound() bool { return b.bound }

// BindBytes attaches caller-owned storage as this buffer's backing memory.
// The storage must be at least SizeBytes long; the buffer never frees it.
func (b *Buffer) BindBytes(data []byte) error {
	if len(data) < b.SizeBytes() {
		return errors.Errorf("cannot bind %d bytes of storage to a buffer of %s%v: %d bytes required",
			len(data), b.dtype, b.dims, b.SizeBytes())
	}
	b.data = data[:b.SizeBytes()]
	b.bound = true
	return nil
}

// String implements fmt.Stringer.
func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(%s%v, %s)", b.dtype, b.dims, b.placement)
}

// Zero clears the buffer contents.
func (b *Buffer) Zero() {
	clear(b.data)
}

// CopyFrom copies the contents of src into b. Both must have the same dtype and
// number of elements. A nil stream makes the copy synchronous; the host reference
// implementation completes the copy before returning in either case.
func (b *Buffer) CopyFrom(src *Buffer, stream Stream) error {
	if src.dtype != b.dtype {
		return errors.Errorf("cannot copy %s into %s: dtype mismatch", src, b)
	}
	if src.NumElements() != b.NumElements() {
		return errors.Errorf("cannot copy %s into %s: element count mismatch", src, b)
	}
	copy(b.data, src.data)
	_ = stream
	return nil
}

func elementsOf[T any](b *Buffer, want dtypes.DType) []T {
	if b.dtype != want {
		exceptions.Panicf("buffer %s accessed as %s", b, want)
	}
	n := b.NumElements()
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b.data[0])), n)
}

// Int32s returns the buffer contents as an []int32. It panics if the dtype is not S32.
func (b *Buffer) Int32s() []int32 { return elementsOf[int32](b, dtypes.S32) }

// Int64s returns the buffer contents as an []int64. It panics if the dtype is not S64.
func (b *Buffer) Int64s() []int64 { return elementsOf[int64](b, dtypes.S64) }

// Uint32s returns the buffer contents as a []uint32. It panics if the dtype is not U32.
func (b *Buffer) Uint32s() []uint32 { return elementsOf[uint32](b, dtypes.U32) }

// Uint64s returns the buffer contents as a []uint64. It panics if the dtype is not U64.
func (b *Buffer) Uint64s() []uint64 { return elementsOf[uint64](b, dtypes.U64) }

// Float32s returns the buffer contents as a []float32. It panics if the dtype is not F32.
func (b *Buffer) Float32s() []float32 { return elementsOf[float32](b, dtypes.F32) }

// SetFloats fills the buffer from float32 values, converting to the buffer dtype:
// F32 copies directly, F64 widens and F16 narrows through IEEE 754 half precision.
func (b *Buffer) SetFloats(values []float32) error {
	if len(values) != b.NumElements() {
		return errors.Errorf("SetFloats with %d values on %s: %d elements required",
			len(values), b, b.NumElements())
	}
	switch b.dtype {
	case dtypes.F32:
		copy(b.Float32s(), values)
	case dtypes.F64:
		flat := elementsOf[float64](b, dtypes.F64)
		for i, v := range values {
			flat[i] = float64(v)
		}
	case dtypes.F16:
		flat := elementsOf[float16.Float16](b, dtypes.F16)
		for i, v := range values {
			flat[i] = float16.Fromfloat32(v)
		}
	default:
		return errors.Errorf("SetFloats not supported for dtype %s", b.dtype)
	}
	return nil
}

// Floats returns the buffer contents converted to float32, for the dtypes
// supported by SetFloats.
func (b *Buffer) Floats() ([]float32, error) {
	values := make([]float32, b.NumElements())
	switch b.dtype {
	case dtypes.F32:
		copy(values, b.Float32s())
	case dtypes.F64:
		for i, v := range elementsOf[float64](b, dtypes.F64) {
			values[i] = float32(v)
		}
	case dtypes.F16:
		for i, v := range elementsOf[float16.Float16](b, dtypes.F16) {
			values[i] = v.Float32()
		}
	default:
		return nil, errors.Errorf("Floats not supported for dtype %s", b.dtype)
	}
	return values, nil
}
