package embcollection_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/embcollection"
	"github.com/gomlx/embcollection/buffers"
	"github.com/gomlx/embcollection/types"
)

func TestComputeWgradAttr(t *testing.T) {
	param := must.M1(embcollection.NewEmbeddingCollectionParam(testConfig()))

	t.Run("repeated table, stable order", func(t *testing.T) {
		// Grouped lookup 0 holds lookups 0 and 2, both over table 0.
		attr := must.M1(embcollection.ComputeWgradAttr(param, 0))
		assert.Equal(t, []int{0, 0}, attr.LookupIDToTableIDs)
		assert.Equal(t, []int{0, 2}, attr.SortedLookupIDs)
		assert.Equal(t, []int{0, 0}, attr.SortedTableIDs)
		assert.Equal(t, []int{0}, attr.SortedUniqueTableIDs)
		assert.True(t, attr.IsSameEvSize)
		assert.Equal(t, 8, attr.SameEvSize)
		assert.Equal(t, dtypes.F32, attr.Type)
	})

	t.Run("distinct tables", func(t *testing.T) {
		// Grouped lookup 2 holds lookups 3 and 4 over tables 2 and 3.
		attr := must.M1(embcollection.ComputeWgradAttr(param, 2))
		assert.Equal(t, []int{2, 3}, attr.LookupIDToTableIDs)
		assert.Equal(t, []int{3, 4}, attr.SortedLookupIDs)
		assert.Equal(t, []int{2, 3}, attr.SortedTableIDs)
		assert.Equal(t, []int{2, 3}, attr.SortedUniqueTableIDs)
		assert.True(t, attr.IsSameEvSize)
		assert.Equal(t, 16, attr.SameEvSize)
		assert.Equal(t, 16, attr.EvSizeOf(2))
	})

	t.Run("deterministic", func(t *testing.T) {
		first := must.M1(embcollection.ComputeWgradAttr(param, 2))
		second := must.M1(embcollection.ComputeWgradAttr(param, 2))
		assert.Equal(t, first, second)
	})

	t.Run("bad grouped id", func(t *testing.T) {
		_, err := embcollection.ComputeWgradAttr(param, 9)
		require.Error(t, err)
	})
}

func TestWgradAttr_UniqueTableIDs(t *testing.T) {
	t.Run("deduplicated", func(t *testing.T) {
		param := must.M1(embcollection.NewEmbeddingCollectionParam(testConfig()))
		attr := must.M1(embcollection.ComputeWgradAttr(param, 0))
		assert.Equal(t, []int{0}, attr.UniqueTableIDs())
	})

	t.Run("one-to-one shortcut keeps lookup order", func(t *testing.T) {
		cfg := embcollection.CollectionConfig{
			NumTable: 2,
			LookupParams: []types.LookupParam{
				types.NewLookupParam(0, 1, types.Sum, 2, 8),
				types.NewLookupParam(1, 0, types.Sum, 2, 8),
			},
			ShardMatrix: embcollection.ShardMatrix{
				{true, false},
				{false, true},
			},
			GroupedTableParams: []types.GroupedTableParam{
				types.NewGroupedTableParam(types.ModelParallel, []int{0, 1}),
			},
			UniversalBatchSize: 4,
			KeyType:            dtypes.S64,
			IndexType:          dtypes.U32,
			OffsetType:         dtypes.U32,
			EmbType:            dtypes.F32,
			WgradType:          dtypes.F32,
		}
		param := must.M1(embcollection.NewEmbeddingCollectionParam(cfg))
		attr := must.M1(embcollection.ComputeWgradAttr(param, 0))

		assert.Equal(t, []int{1, 0}, attr.LookupIDToTableIDs)
		assert.Equal(t, []int{0, 1}, attr.SortedUniqueTableIDs)
		// With as many tables as lookups nothing repeats, so the raw
		// lookup-to-table map is handed out as-is.
		assert.Equal(t, []int{1, 0}, attr.UniqueTableIDs())
	})
}

func TestWgradInitializer(t *testing.T) {
	param := must.M1(embcollection.NewEmbeddingCollectionParam(testConfig()))
	core := must.M1(buffers.NewHostManager(0, 2))

	// Local batch 4; grouped lookup 2 holds hotness 5 and 1 over ev size 16.
	w := must.M1(embcollection.WgradInitializer{Core: core, Param: param, GroupedID: 2}.Init())

	maxKeys := 4*5 + 4*1
	assert.Equal(t, maxKeys, w.UniqueKeys.NumElements())
	assert.Equal(t, dtypes.S64, w.UniqueKeys.DType())
	assert.Equal(t, maxKeys, w.TableIDs.NumElements())
	assert.Equal(t, maxKeys, w.EvStartIndices.NumElements())
	assert.Equal(t, 1, w.NumUniqueKeys.NumElements())

	assert.Equal(t, int64(4*5*16+4*1*16), w.MaxBufferSize)
	assert.Equal(t, int(w.MaxBufferSize), w.Data.NumElements())
	assert.Equal(t, dtypes.F32, w.Data.DType())
	assert.Equal(t, 0, w.ChannelOffset)

	t.Run("bind caller storage", func(t *testing.T) {
		storage := make([]byte, w.Data.SizeBytes())
		require.NoError(t, w.BindData(storage))
		assert.True(t, w.Data.IsBound())

		require.Error(t, (&embcollection.Wgrad{}).BindData(storage))
	})
}

// allreduceConfig splits the data-parallel tables into their own groups so each
// can carry a dense all-reduce gradient buffer.
func allreduceConfig() embcollection.CollectionConfig {
	cfg := testConfig()
	cfg.GroupedTableParams = []types.GroupedTableParam{
		types.NewGroupedTableParam(types.ModelParallel, []int{0, 1}),
		types.NewGroupedTableParam(types.DataParallel, []int{2}),
		types.NewGroupedTableParam(types.DataParallel, []int{3}),
	}
	cfg.AllreduceStrategy = types.AllreduceDense
	return cfg
}

func TestAllreduceWgradInitializer(t *testing.T) {
	param := must.M1(embcollection.NewEmbeddingCollectionParam(allreduceConfig()))
	core := must.M1(buffers.NewHostManager(0, 2))
	vocab := []int{10, 20, 30, 40}

	// Grouped lookups: sparse and dense over the model-parallel group, then one
	// sparse group per data-parallel table.
	require.Equal(t, 4, param.NumGroupedLookups())

	t.Run("indices fully populated", func(t *testing.T) {
		w := must.M1(embcollection.AllreduceWgradInitializer{
			Core:                    core,
			Param:                   param,
			TableIDToVocabularySize: vocab,
			GroupedID:               2, // table 2, vocabulary 30, ev size 16
		}.Init())

		assert.Equal(t, uint64(30), w.NumUniqueKeys.Uint64s()[0])
		keys := w.UniqueKeys.Int64s()
		assert.Equal(t, int64(0), keys[0])
		assert.Equal(t, int64(29), keys[29])
		tableIDs := w.TableIDs.Int32s()
		assert.Equal(t, int32(2), tableIDs[0])
		assert.Equal(t, int32(2), tableIDs[29])
		evStartIndices := w.EvStartIndices.Uint32s()
		assert.Equal(t, uint32(0), evStartIndices[0])
		assert.Equal(t, uint32(16), evStartIndices[1])
		assert.Equal(t, uint32(29*16), evStartIndices[29])

		assert.Equal(t, int64(30*16), w.MaxBufferSize)
		assert.Equal(t, 30*16, w.Data.NumElements())
	})

	t.Run("rejects sparse allreduce jobs", func(t *testing.T) {
		cfg := allreduceConfig()
		cfg.AllreduceStrategy = types.AllreduceSparse
		sparseParam := must.M1(embcollection.NewEmbeddingCollectionParam(cfg))
		_, err := embcollection.AllreduceWgradInitializer{
			Core:                    core,
			Param:                   sparseParam,
			TableIDToVocabularySize: vocab,
			GroupedID:               2,
		}.Init()
		require.Error(t, err)
	})

	t.Run("rejects wrong vocabulary count", func(t *testing.T) {
		_, err := embcollection.AllreduceWgradInitializer{
			Core:                    core,
			Param:                   param,
			TableIDToVocabularySize: []int{10, 20},
			GroupedID:               2,
		}.Init()
		require.Error(t, err)
	})
}

func TestAllreduceWgradInitializer_Grouped(t *testing.T) {
	cfg := allreduceConfig()
	cfg.AllreduceStrategy = types.AllreduceGroupDense
	param := must.M1(embcollection.NewEmbeddingCollectionParam(cfg))
	core := must.M1(buffers.NewHostManager(0, 2))
	vocab := []int{10, 20, 30, 40}

	channel := must.M1(buffers.NewChannel(core, 1<<20, 256))

	var wgrads []*embcollection.Wgrad
	for _, groupedID := range []int{2, 3} {
		init := embcollection.AllreduceWgradInitializer{
			Core:                    core,
			Param:                   param,
			TableIDToVocabularySize: vocab,
			GroupedID:               groupedID,
		}
		attr := must.M1(init.Attr())
		w := must.M1(init.InitIndices(attr))
		require.NoError(t, init.InitDataGrouped(w, channel))
		wgrads = append(wgrads, w)
	}

	// Table 2: 30 rows x ev 16 x 4 bytes = 1920 bytes from offset 0.
	// Table 3 starts at the next 256-byte boundary.
	assert.Equal(t, 0, wgrads[0].ChannelOffset)
	assert.Equal(t, int64(30*16), wgrads[0].MaxBufferSize)
	assert.Equal(t, 2048, wgrads[1].ChannelOffset)
	assert.Equal(t, int64(40*16), wgrads[1].MaxBufferSize)
	assert.Equal(t, 2048+40*16*4, channel.Used())

	// Both buffers are bound into the channel storage, not separately owned.
	assert.True(t, wgrads[0].Data.IsBound())
	assert.True(t, wgrads[1].Data.IsBound())

	// Writes through a bound buffer land in the channel region it was given.
	wgrads[0].Data.Float32s()[0] = 1.5
	region := channel.Slice(0, 4)
	assert.NotEqual(t, []byte{0, 0, 0, 0}, region)
}
