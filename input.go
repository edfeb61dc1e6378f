package embcollection

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/gomlx/embcollection/buffers"
	"github.com/gomlx/embcollection/internal/utils"
	"github.com/gomlx/embcollection/types"
)

// EmbeddingInput holds one batch's raw and routed keys for a grouped lookup:
// the flattened keys, the bucket ranges delimiting each lookup x sample span,
// and, for dense groups, the compression mappings that scatter/gather keys
// between the device-local layout and the shard-owning devices. External
// kernels populate the buffers; this package only defines their shapes.
type EmbeddingInput struct {
	// Keys is the flattened key array; capacity-sized, NumKeysHost valid entries.
	Keys *buffers.Buffer

	// NumKeys mirrors NumKeysHost on device, for kernels that consume it there.
	NumKeys     *buffers.Buffer // one uint64
	NumKeysHost int

	// BucketRange delimits, per lookup x sample, the span of keys belonging to
	// it: monotonically non-decreasing, length numLookups*localBatchSize+1.
	BucketRange *buffers.Buffer

	// NumKeysPerBucket holds the per-bucket key counts BucketRange is the prefix
	// sum of.
	NumKeysPerBucket *buffers.Buffer

	// DenseCompression is only allocated for dense grouped lookups.
	DenseCompression *DenseCompressionInput

	numLookups     int
	localBatchSize int
}

// DataParallelCompressionInput maps locally deduplicated unique keys back to
// their original bucket positions, used when a batch is deduplicated before any
// communication.
type DataParallelCompressionInput struct {
	// ReverseIdx permutes unique keys back to bucket positions; capacity-sized,
	// NumReverseIdx valid entries.
	ReverseIdx    *buffers.Buffer
	DstBucketIDs  *buffers.Buffer
	NumReverseIdx int
}

// ModelParallelCompressionInput drives the all-to-all key exchange of a sharded
// group: host-side per-device send/receive counts, and the reverse-index
// mappings on the model (shard-owning) and network (batch-owning) sides. The
// underlying buffers are capacity-sized, so valid-entry counts travel
// alongside them.
type ModelParallelCompressionInput struct {
	// SendKeysPerDevice and RecvKeysPerDevice are host-resident counts, one per
	// device, consumed directly by the communication layer.
	SendKeysPerDevice *buffers.Buffer
	RecvKeysPerDevice *buffers.Buffer

	ModelReverseIdx    *buffers.Buffer
	NumModelReverseIdx int

	NetworkReverseIdx    *buffers.Buffer
	NumNetworkReverseIdx int

	NetworkDstBucketIDs *buffers.Buffer
}

// DenseCompressionInput gathers the per-placement compression mappings plus the
// per-table key bucketing of the batch.
type DenseCompressionInput struct {
	DataParallel  *DataParallelCompressionInput
	ModelParallel *ModelParallelCompressionInput

	// NumKeysPerTableOffset is the prefix-sum array saying how many keys of this
	// batch map to each table of the group; length = #distinct tables + 1.
	NumKeysPerTableOffset *buffers.Buffer

	// TableIDs names the tables the offsets refer to, in the same order.
	TableIDs *buffers.Buffer
}

// NewEmbeddingInput allocates the input buffers of one grouped lookup, sized
// from the group's lookups, hotness bounds and the per-device batch size.
func NewEmbeddingInput(core buffers.ResourceManager, param *EmbeddingCollectionParam, groupedID int) (*EmbeddingInput, error) {
	group, err := param.GroupedLookup(groupedID)
	if err != nil {
		return nil, err
	}
	localBatchSize := param.LocalBatchSize()
	maxKeys := 0
	for _, lookupID := range group.LookupIDs {
		maxKeys += localBatchSize * param.LookupParams[lookupID].MaxHotness
	}
	numBuckets := len(group.LookupIDs) * localBatchSize

	input := &EmbeddingInput{
		numLookups:     len(group.LookupIDs),
		localBatchSize: localBatchSize,
	}
	if input.Keys, err = core.Allocate(buffers.Device, param.KeyType, maxKeys); err != nil {
		return nil, errors.Wrap(err, "allocating input keys")
	}
	if input.NumKeys, err = core.Allocate(buffers.Device, dtypes.U64, 1); err != nil {
		return nil, errors.Wrap(err, "allocating input key count")
	}
	if input.BucketRange, err = core.Allocate(buffers.Device, param.OffsetType, numBuckets+1); err != nil {
		return nil, errors.Wrap(err, "allocating input bucket range")
	}
	if input.NumKeysPerBucket, err = core.Allocate(buffers.Device, param.OffsetType, numBuckets); err != nil {
		return nil, errors.Wrap(err, "allocating input per-bucket key counts")
	}

	if group.EmbeddingType != types.Sparse {
		input.DenseCompression, err = newDenseCompressionInput(core, param, group, maxKeys)
		if err != nil {
			return nil, err
		}
	}
	return input, nil
}

func newDenseCompressionInput(core buffers.ResourceManager, param *EmbeddingCollectionParam,
	group types.GroupedLookupParam, maxKeys int) (*DenseCompressionInput, error) {
	groupTables := utils.MakeSet[int](len(group.LookupIDs))
	for _, lookupID := range group.LookupIDs {
		groupTables.Insert(param.LookupParams[lookupID].TableID)
	}
	numTables := len(groupTables)

	dense := &DenseCompressionInput{}
	var err error
	if dense.NumKeysPerTableOffset, err = core.Allocate(buffers.Device, param.OffsetType, numTables+1); err != nil {
		return nil, errors.Wrap(err, "allocating per-table key offsets")
	}
	if dense.TableIDs, err = core.Allocate(buffers.Device, dtypes.S32, numTables); err != nil {
		return nil, errors.Wrap(err, "allocating per-table table ids")
	}

	switch group.Placement {
	case types.DataParallel:
		dp := &DataParallelCompressionInput{}
		if dp.ReverseIdx, err = core.Allocate(buffers.Device, param.IndexType, maxKeys); err != nil {
			return nil, errors.Wrap(err, "allocating data-parallel reverse index")
		}
		if dp.DstBucketIDs, err = core.Allocate(buffers.Device, param.IndexType, maxKeys); err != nil {
			return nil, errors.Wrap(err, "allocating data-parallel destination buckets")
		}
		dense.DataParallel = dp
	case types.ModelParallel:
		mp := &ModelParallelCompressionInput{}
		numDevices := core.NumDevices()
		if mp.SendKeysPerDevice, err = core.Allocate(buffers.Host, param.OffsetType, numDevices); err != nil {
			return nil, errors.Wrap(err, "allocating model-parallel send counts")
		}
		if mp.RecvKeysPerDevice, err = core.Allocate(buffers.Host, param.OffsetType, numDevices); err != nil {
			return nil, errors.Wrap(err, "allocating model-parallel receive counts")
		}
		if mp.ModelReverseIdx, err = core.Allocate(buffers.Device, param.IndexType, maxKeys); err != nil {
			return nil, errors.Wrap(err, "allocating model-side reverse index")
		}
		if mp.NetworkReverseIdx, err = core.Allocate(buffers.Device, param.IndexType, maxKeys); err != nil {
			return nil, errors.Wrap(err, "allocating network-side reverse index")
		}
		if mp.NetworkDstBucketIDs, err = core.Allocate(buffers.Device, param.IndexType, maxKeys); err != nil {
			return nil, errors.Wrap(err, "allocating network destination buckets")
		}
		dense.ModelParallel = mp
	}
	return dense, nil
}

// Validate checks the bucket-range invariant: monotonically non-decreasing,
// first entry zero, length numLookups*localBatchSize+1.
func (in *EmbeddingInput) Validate() error {
	want := in.numLookups*in.localBatchSize + 1
	if in.BucketRange.NumElements() != want {
		return errors.Errorf("bucket range holds %d entries, %d lookups x %d samples need %d",
			in.BucketRange.NumElements(), in.numLookups, in.localBatchSize, want)
	}
	view := buffers.NewView(in.BucketRange, 0, want, buffers.BucketRangeArrangement)
	if view.IntAt(0) != 0 {
		return errors.Errorf("bucket range must start at 0, got %d", view.IntAt(0))
	}
	for i := 1; i < want; i++ {
		if view.IntAt(i) < view.IntAt(i-1) {
			return errors.Errorf("bucket range not monotonic at entry %d: %d < %d",
				i, view.IntAt(i), view.IntAt(i-1))
		}
	}
	if last := view.IntAt(want - 1); last > int64(in.Keys.NumElements()) {
		return errors.Errorf("bucket range ends at %d, key buffer holds %d", last, in.Keys.NumElements())
	}
	return nil
}

// DistributionInput is the per-lookup table of key and bucket-range buffers the
// data distributor publishes to the device before routing a batch. Accessors
// hand out tagged views rather than raw pointers.
type DistributionInput struct {
	numLookup           int
	keyType, offsetType dtypes.DType
	keys, bucketRanges  []*buffers.Buffer
}

// NewDistributionInput prepares a distribution input for numLookup lookups.
func NewDistributionInput(numLookup int, keyType, offsetType dtypes.DType) (*DistributionInput, error) {
	if numLookup <= 0 {
		return nil, errors.Errorf("number of lookups must be positive, got %d", numLookup)
	}
	return &DistributionInput{
		numLookup:  numLookup,
		keyType:    keyType,
		offsetType: offsetType,
	}, nil
}

// Publish installs this batch's per-lookup key and bucket-range buffers. With a
// stream the device-side publication may complete asynchronously; without one
// it is synchronous. The host reference implementation completes immediately.
func (d *DistributionInput) Publish(keys, bucketRanges []*buffers.Buffer, stream buffers.Stream) error {
	if len(keys) != d.numLookup || len(bucketRanges) != d.numLookup {
		return errors.Errorf("publish needs %d key and bucket-range buffers, got %d and %d",
			d.numLookup, len(keys), len(bucketRanges))
	}
	for i, buf := range keys {
		if buf.DType() != d.keyType {
			return errors.Errorf("key buffer #%d has dtype %s, job keys are %s", i, buf.DType(), d.keyType)
		}
	}
	for i, buf := range bucketRanges {
		if buf.DType() != d.offsetType {
			return errors.Errorf("bucket-range buffer #%d has dtype %s, job offsets are %s",
				i, buf.DType(), d.offsetType)
		}
	}
	d.keys = keys
	d.bucketRanges = bucketRanges
	_ = stream
	return nil
}

// KeyView returns the tagged view over one lookup's raw keys.
func (d *DistributionInput) KeyView(lookupID int) buffers.View {
	buf := d.keys[lookupID]
	return buffers.NewView(buf, 0, buf.NumElements(), buffers.KeysArrangement)
}

// BucketRangeView returns the tagged view over one lookup's bucket-range offsets.
func (d *DistributionInput) BucketRangeView(lookupID int) buffers.View {
	buf := d.bucketRanges[lookupID]
	return buffers.NewView(buf, 0, buf.NumElements(), buffers.BucketRangeArrangement)
}
