package buffers

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Channel is one externally managed allocation into which several gradient
// buffers are packed, so that their collective traffic travels in a single
// communication call. Reservations hand out non-overlapping, aligned offsets;
// the channel owner performs the actual communication.
type Channel struct {
	storage   *Buffer
	alignment int
	used      int
}

// NewChannel allocates a channel of capacityBytes through the resource manager.
// Reservation offsets are rounded up to alignment bytes; alignment must be a
// power of two.
func NewChannel(rm ResourceManager, capacityBytes, alignment int) (*Channel, error) {
	if capacityBytes <= 0 {
		return nil, errors.Errorf("channel capacity must be positive, got %d", capacityBytes)
	}
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		return nil, errors.Errorf("channel alignment must be a power of two, got %d", alignment)
	}
	storage, err := rm.Allocate(Device, dtypes.U8, capacityBytes)
	if err != nil {
		return nil, errors.Wrap(err, "allocating channel storage")
	}
	return &Channel{storage: storage, alignment: alignment}, nil
}

// Reserve claims sizeBytes of the channel and returns the byte offset of the
// claimed region. Reservations never overlap and are stable for a fixed
// reservation order.
func (c *Channel) Reserve(sizeBytes int) (int, error) {
	if sizeBytes <= 0 {
		return 0, errors.Errorf("channel reservation must be positive, got %d", sizeBytes)
	}
	offset := (c.used + c.alignment - 1) &^ (c.alignment - 1)
	if offset+sizeBytes > c.storage.SizeBytes() {
		return 0, errors.Errorf("channel of %d bytes cannot fit %d more bytes at offset %d",
			c.storage.SizeBytes(), sizeBytes, offset)
	}
	c.used = offset + sizeBytes
	return offset, nil
}

// Slice returns the storage of the region [offset, offset+sizeBytes).
func (c *Channel) Slice(offset, sizeBytes int) []byte {
	return c.storage.Bytes()[offset : offset+sizeBytes]
}

// Used returns the bytes consumed by reservations so far, including padding.
func (c *Channel) Used() int { return c.used }

// Capacity returns the total channel size in bytes.
func (c *Channel) Capacity() int { return c.storage.SizeBytes() }
