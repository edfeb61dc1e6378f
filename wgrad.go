package embcollection

import (
	"slices"
	"sort"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/embcollection/buffers"
	"github.com/gomlx/embcollection/internal/utils"
	"github.com/gomlx/embcollection/types"
)

// WgradAttr is the per-group gradient layout metadata: the orderings and
// deduplicated table sets that let the backward pass process contiguous runs of
// keys for the same table as one unit.
type WgradAttr struct {
	// NumTable and NumLookup are the job-wide counts, used for the 1:1 shortcut
	// in UniqueTableIDs.
	NumTable  int
	NumLookup int

	// LookupIDToTableIDs holds the table id of every lookup in the group, in
	// lookup-id order.
	LookupIDToTableIDs []int

	// SortedLookupIDs holds the group's lookup ids stably sorted by table id,
	// ties broken by original lookup id ascending.
	SortedLookupIDs []int

	// SortedTableIDs holds the table ids in SortedLookupIDs order.
	SortedTableIDs []int

	// SortedUniqueTableIDs is the deduplicated, strictly increasing table-id set
	// of the group.
	SortedUniqueTableIDs []int

	// TableIDToEvSize maps table id to embedding vector width, for every table
	// of the job (zero for tables no lookup reads).
	TableIDToEvSize []int

	// IsSameEvSize is true iff every table of the group shares one vector width
	// (SameEvSize), enabling fixed-stride addressing into the gradient buffer.
	IsSameEvSize bool
	SameEvSize   int

	// Type is the gradient element type.
	Type dtypes.DType
}

// ComputeWgradAttr derives the gradient layout metadata of one grouped lookup.
// It is a pure function of (job configuration, grouped id): re-running yields
// an identical WgradAttr.
func ComputeWgradAttr(param *EmbeddingCollectionParam, groupedID int) (*WgradAttr, error) {
	group, err := param.GroupedLookup(groupedID)
	if err != nil {
		return nil, err
	}

	attr := &WgradAttr{
		NumTable:  param.NumTable,
		NumLookup: param.NumLookup,
		Type:      param.WgradType,
	}

	attr.LookupIDToTableIDs = make([]int, 0, len(group.LookupIDs))
	for _, lookupID := range group.LookupIDs {
		attr.LookupIDToTableIDs = append(attr.LookupIDToTableIDs, param.LookupParams[lookupID].TableID)
	}

	attr.SortedLookupIDs = slices.Clone(group.LookupIDs)
	sort.SliceStable(attr.SortedLookupIDs, func(i, j int) bool {
		a, b := attr.SortedLookupIDs[i], attr.SortedLookupIDs[j]
		ta, tb := param.LookupParams[a].TableID, param.LookupParams[b].TableID
		if ta != tb {
			return ta < tb
		}
		return a < b
	})

	attr.SortedTableIDs = make([]int, 0, len(attr.SortedLookupIDs))
	for _, lookupID := range attr.SortedLookupIDs {
		attr.SortedTableIDs = append(attr.SortedTableIDs, param.LookupParams[lookupID].TableID)
	}
	for i, tableID := range attr.SortedTableIDs {
		if i == 0 || tableID != attr.SortedTableIDs[i-1] {
			attr.SortedUniqueTableIDs = append(attr.SortedUniqueTableIDs, tableID)
		}
	}

	attr.TableIDToEvSize = make([]int, param.NumTable)
	for _, lookup := range param.LookupParams {
		if prev := attr.TableIDToEvSize[lookup.TableID]; prev != 0 && prev != lookup.EvSize {
			return nil, errors.Errorf("table %d is read with conflicting vector sizes %d and %d",
				lookup.TableID, prev, lookup.EvSize)
		}
		attr.TableIDToEvSize[lookup.TableID] = lookup.EvSize
	}

	evSizes := utils.MakeSet[int](len(attr.SortedUniqueTableIDs))
	for _, tableID := range attr.SortedUniqueTableIDs {
		evSizes.Insert(attr.TableIDToEvSize[tableID])
	}
	if len(evSizes) == 1 {
		attr.IsSameEvSize = true
		attr.SameEvSize = attr.TableIDToEvSize[attr.SortedUniqueTableIDs[0]]
	}
	return attr, nil
}

// intSize narrows an element or byte count computed in int64 to int, failing
// instead of wrapping on platforms where int is 32 bits.
func intSize(n int64) (int, error) {
	if int64(int(n)) != n {
		return 0, errors.Errorf("buffer of %d elements is not addressable on this platform", n)
	}
	return int(n), nil
}

// UniqueTableIDs returns the deduplicated table ids of the group. When the job
// maps tables and lookups 1:1 there is nothing to deduplicate, and the raw
// lookup-to-table map is returned directly.
func (a *WgradAttr) UniqueTableIDs() []int {
	if a.NumTable == a.NumLookup {
		return a.LookupIDToTableIDs
	}
	return a.SortedUniqueTableIDs
}

// EvSizeOf returns the vector width of the table.
func (a *WgradAttr) EvSizeOf(tableID int) int {
	return a.TableIDToEvSize[tableID]
}

// Wgrad is the realized per-group gradient payload: the layout metadata plus
// the buffers the backward kernels populate. The data buffer may be bound to
// caller-owned storage; Wgrad never frees it. Each step has a single writer per
// group buffer, which is logically reset before the next step reuses it.
type Wgrad struct {
	Attr *WgradAttr

	// UniqueKeys and NumUniqueKeys hold the deduplicated keys touched this step
	// and their count (buffers are capacity-sized, not size-exact).
	UniqueKeys    *buffers.Buffer
	NumUniqueKeys *buffers.Buffer // one uint64

	// TableIDs holds, per unique key, the table it belongs to.
	TableIDs *buffers.Buffer

	// EvStartIndices holds, per unique key, the element offset of its gradient
	// row in Data; monotonically increasing, first entry zero.
	EvStartIndices *buffers.Buffer

	// Data is the gradient storage, one row per unique key.
	Data *buffers.Buffer

	// MaxBufferSize is the capacity of Data, in elements.
	MaxBufferSize int64

	// ChannelOffset is the byte offset of Data inside a shared channel, when the
	// grouped all-reduce binding mode is used. Zero otherwise.
	ChannelOffset int
}

// BindData attaches caller-owned storage as this group's gradient memory.
func (w *Wgrad) BindData(data []byte) error {
	if w.Data == nil {
		return errors.New("wgrad data buffer not initialized; run the initializer first")
	}
	return w.Data.BindBytes(data)
}

// WgradInitializer sizes and allocates the gradient bookkeeping of one grouped
// lookup. It is a pure pipeline over (job configuration, grouped id): Attr
// computes the layout, InitIndices allocates the per-key index buffers, and
// InitData allocates the gradient storage.
type WgradInitializer struct {
	Core      buffers.ResourceManager
	Param     *EmbeddingCollectionParam
	GroupedID int
}

// Attr computes the gradient layout metadata of the group.
func (init WgradInitializer) Attr() (*WgradAttr, error) {
	return ComputeWgradAttr(init.Param, init.GroupedID)
}

// maxKeysPerStep bounds the keys one step can produce for the group on this device.
func (init WgradInitializer) maxKeysPerStep() int {
	group := init.Param.groupedLookupParams[init.GroupedID]
	localBatchSize := init.Param.LocalBatchSize()
	maxKeys := 0
	for _, lookupID := range group.LookupIDs {
		maxKeys += localBatchSize * init.Param.LookupParams[lookupID].MaxHotness
	}
	return maxKeys
}

// InitIndices allocates the unique-key index buffers, capacity-sized for the
// worst case where no key repeats.
func (init WgradInitializer) InitIndices(attr *WgradAttr) (*Wgrad, error) {
	maxKeys := init.maxKeysPerStep()
	w := &Wgrad{Attr: attr}
	var err error
	if w.UniqueKeys, err = init.Core.Allocate(buffers.Device, init.Param.KeyType, maxKeys); err != nil {
		return nil, errors.Wrap(err, "allocating wgrad unique keys")
	}
	if w.NumUniqueKeys, err = init.Core.Allocate(buffers.Device, dtypes.U64, 1); err != nil {
		return nil, errors.Wrap(err, "allocating wgrad unique key count")
	}
	if w.TableIDs, err = init.Core.Allocate(buffers.Device, dtypes.S32, maxKeys); err != nil {
		return nil, errors.Wrap(err, "allocating wgrad table ids")
	}
	if w.EvStartIndices, err = init.Core.Allocate(buffers.Device, dtypes.U32, maxKeys); err != nil {
		return nil, errors.Wrap(err, "allocating wgrad ev start indices")
	}
	return w, nil
}

// InitData sizes and allocates the gradient storage: one row per potential
// unique key, row width per table vector size.
func (init WgradInitializer) InitData(w *Wgrad) error {
	group := init.Param.groupedLookupParams[init.GroupedID]
	localBatchSize := init.Param.LocalBatchSize()
	var maxBufferSize int64
	for _, lookupID := range group.LookupIDs {
		lookup := init.Param.LookupParams[lookupID]
		maxBufferSize += int64(localBatchSize * lookup.MaxHotness * lookup.EvSize)
	}
	size, err := intSize(maxBufferSize)
	if err != nil {
		return err
	}
	data, err := init.Core.Allocate(buffers.Device, w.Attr.Type, size)
	if err != nil {
		return errors.Wrap(err, "allocating wgrad data")
	}
	w.Data = data
	w.MaxBufferSize = maxBufferSize
	klog.V(2).Infof("wgrad group #%d: %d max keys, data capacity %d x %s",
		init.GroupedID, init.maxKeysPerStep(), maxBufferSize, w.Attr.Type)
	return nil
}

// Init runs the full pipeline: layout, index buffers, data buffer.
func (init WgradInitializer) Init() (*Wgrad, error) {
	attr, err := init.Attr()
	if err != nil {
		return nil, err
	}
	w, err := init.InitIndices(attr)
	if err != nil {
		return nil, err
	}
	if err := init.InitData(w); err != nil {
		return nil, err
	}
	return w, nil
}

// AllreduceWgradInitializer builds the gradient bookkeeping of a data-parallel
// group whose gradients are exchanged with a dense all-reduce: the gradient
// buffer covers the whole vocabulary of every table in the group, so the index
// buffers are fully determined at setup time.
type AllreduceWgradInitializer struct {
	Core  buffers.ResourceManager
	Param *EmbeddingCollectionParam

	// TableIDToVocabularySize holds the row count of every table of the job.
	TableIDToVocabularySize []int

	GroupedID int
}

func (init AllreduceWgradInitializer) validate() error {
	if len(init.TableIDToVocabularySize) != init.Param.NumTable {
		return errors.Errorf("vocabulary sizes given for %d tables, job has %d",
			len(init.TableIDToVocabularySize), init.Param.NumTable)
	}
	strategy := init.Param.AllreduceStrategy
	if strategy != types.AllreduceDense && strategy != types.AllreduceGroupDense {
		return errors.Errorf("dense all-reduce wgrad requires the Dense or GroupDense strategy, job uses %s",
			strategy)
	}
	return nil
}

// Attr computes the gradient layout metadata of the group.
func (init AllreduceWgradInitializer) Attr() (*WgradAttr, error) {
	if err := init.validate(); err != nil {
		return nil, err
	}
	return ComputeWgradAttr(init.Param, init.GroupedID)
}

// InitIndices allocates and fully populates the index buffers: every vocabulary
// row of every table in the group is a "unique key", in table order.
func (init AllreduceWgradInitializer) InitIndices(attr *WgradAttr) (*Wgrad, error) {
	if err := init.validate(); err != nil {
		return nil, err
	}
	totalRows := 0
	for _, tableID := range attr.SortedUniqueTableIDs {
		totalRows += init.TableIDToVocabularySize[tableID]
	}

	w := &Wgrad{Attr: attr}
	var err error
	if w.UniqueKeys, err = init.Core.Allocate(buffers.Device, init.Param.KeyType, totalRows); err != nil {
		return nil, errors.Wrap(err, "allocating allreduce wgrad unique keys")
	}
	if w.NumUniqueKeys, err = init.Core.Allocate(buffers.Device, dtypes.U64, 1); err != nil {
		return nil, errors.Wrap(err, "allocating allreduce wgrad unique key count")
	}
	if w.TableIDs, err = init.Core.Allocate(buffers.Device, dtypes.S32, totalRows); err != nil {
		return nil, errors.Wrap(err, "allocating allreduce wgrad table ids")
	}
	if w.EvStartIndices, err = init.Core.Allocate(buffers.Device, dtypes.U32, totalRows); err != nil {
		return nil, errors.Wrap(err, "allocating allreduce wgrad ev start indices")
	}

	keys := buffers.NewView(w.UniqueKeys, 0, totalRows, buffers.FlatArrangement)
	tableIDs := w.TableIDs.Int32s()
	evStartIndices := w.EvStartIndices.Uint32s()
	row := 0
	evOffset := uint32(0)
	for _, tableID := range attr.SortedUniqueTableIDs {
		evSize := uint32(attr.TableIDToEvSize[tableID])
		for key := 0; key < init.TableIDToVocabularySize[tableID]; key++ {
			keys.SetIntAt(row, int64(key))
			tableIDs[row] = int32(tableID)
			evStartIndices[row] = evOffset
			evOffset += evSize
			row++
		}
	}
	w.NumUniqueKeys.Uint64s()[0] = uint64(totalRows)
	return w, nil
}

func (init AllreduceWgradInitializer) bufferSize(attr *WgradAttr) int64 {
	var size int64
	for _, tableID := range attr.SortedUniqueTableIDs {
		size += int64(init.TableIDToVocabularySize[tableID] * attr.TableIDToEvSize[tableID])
	}
	return size
}

// InitData allocates a dedicated gradient buffer for this group.
func (init AllreduceWgradInitializer) InitData(w *Wgrad) error {
	size := init.bufferSize(w.Attr)
	elems, err := intSize(size)
	if err != nil {
		return err
	}
	data, err := init.Core.Allocate(buffers.Device, w.Attr.Type, elems)
	if err != nil {
		return errors.Wrap(err, "allocating allreduce wgrad data")
	}
	w.Data = data
	w.MaxBufferSize = size
	return nil
}

// InitDataGrouped places this group's gradient buffer inside a shared channel,
// at a non-overlapping offset, so that several groups' all-reduce traffic is
// batched into one communication call.
func (init AllreduceWgradInitializer) InitDataGrouped(w *Wgrad, channel *buffers.Channel) error {
	size := init.bufferSize(w.Attr)
	elems, err := intSize(size)
	if err != nil {
		return err
	}
	sizeBytes, err := intSize(size * int64(w.Attr.Type.Memory()))
	if err != nil {
		return err
	}
	offset, err := channel.Reserve(sizeBytes)
	if err != nil {
		return errors.Wrapf(err, "reserving channel space for wgrad group #%d", init.GroupedID)
	}
	data, err := buffers.New(w.Attr.Type, elems)
	if err != nil {
		return err
	}
	if err := data.BindBytes(channel.Slice(offset, sizeBytes)); err != nil {
		return err
	}
	w.Data = data
	w.MaxBufferSize = size
	w.ChannelOffset = offset
	return nil
}

// Init runs the full pipeline with a dedicated (ungrouped) data buffer.
func (init AllreduceWgradInitializer) Init() (*Wgrad, error) {
	attr, err := init.Attr()
	if err != nil {
		return nil, err
	}
	w, err := init.InitIndices(attr)
	if err != nil {
		return nil, err
	}
	if err := init.InitData(w); err != nil {
		return nil, err
	}
	return w, nil
}
