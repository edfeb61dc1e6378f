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

func TestNewEmbeddingInput(t *testing.T) {
	param := must.M1(embcollection.NewEmbeddingCollectionParam(testConfig()))
	core := must.M1(buffers.NewHostManager(0, 2))

	t.Run("sparse group", func(t *testing.T) {
		// Grouped lookup 0: lookups 0 and 2, hotness 4 and 3, local batch 4.
		input := must.M1(embcollection.NewEmbeddingInput(core, param, 0))

		assert.Equal(t, 4*4+4*3, input.Keys.NumElements())
		assert.Equal(t, dtypes.S64, input.Keys.DType())
		assert.Equal(t, 2*4+1, input.BucketRange.NumElements())
		assert.Equal(t, dtypes.U32, input.BucketRange.DType())
		assert.Equal(t, 2*4, input.NumKeysPerBucket.NumElements())
		assert.Nil(t, input.DenseCompression)
	})

	t.Run("model-parallel dense group", func(t *testing.T) {
		// Grouped lookup 1: the Concat lookup over the model-parallel table 1.
		input := must.M1(embcollection.NewEmbeddingInput(core, param, 1))

		require.NotNil(t, input.DenseCompression)
		dense := input.DenseCompression
		assert.Equal(t, 2, dense.NumKeysPerTableOffset.NumElements())
		assert.Equal(t, 1, dense.TableIDs.NumElements())

		require.NotNil(t, dense.ModelParallel)
		assert.Nil(t, dense.DataParallel)
		mp := dense.ModelParallel
		assert.Equal(t, 2, mp.SendKeysPerDevice.NumElements())
		assert.Equal(t, buffers.Host, mp.SendKeysPerDevice.Placement())
		assert.Equal(t, buffers.Host, mp.RecvKeysPerDevice.Placement())
		assert.Equal(t, 4*2, mp.ModelReverseIdx.NumElements())
		assert.Equal(t, 4*2, mp.NetworkReverseIdx.NumElements())
	})

	t.Run("data-parallel dense group", func(t *testing.T) {
		cfg := testConfig()
		cfg.ShardMatrix = embcollection.ShardMatrix{
			{true, true, true, true},
			{false, true, true, true},
		}
		cfg.GroupedTableParams = []types.GroupedTableParam{
			types.NewGroupedTableParam(types.ModelParallel, []int{0}),
			types.NewGroupedTableParam(types.DataParallel, []int{1, 2, 3}),
		}
		dpParam := must.M1(embcollection.NewEmbeddingCollectionParam(cfg))

		// The Concat lookup now lands in a data-parallel group; its grouped
		// lookup comes after both sparse groups.
		grouped := dpParam.GroupedLookupParams()
		require.Len(t, grouped, 3)
		require.Equal(t, types.Dense, grouped[2].EmbeddingType)

		input := must.M1(embcollection.NewEmbeddingInput(core, dpParam, 2))
		require.NotNil(t, input.DenseCompression)
		require.NotNil(t, input.DenseCompression.DataParallel)
		assert.Nil(t, input.DenseCompression.ModelParallel)
		dp := input.DenseCompression.DataParallel
		assert.Equal(t, 4*2, dp.ReverseIdx.NumElements())
		assert.Equal(t, 4*2, dp.DstBucketIDs.NumElements())
	})

	t.Run("bad grouped id", func(t *testing.T) {
		_, err := embcollection.NewEmbeddingInput(core, param, 11)
		require.Error(t, err)
	})
}

func TestEmbeddingInput_Validate(t *testing.T) {
	param := must.M1(embcollection.NewEmbeddingCollectionParam(testConfig()))
	core := must.M1(buffers.NewHostManager(0, 2))
	input := must.M1(embcollection.NewEmbeddingInput(core, param, 0))

	n := input.BucketRange.NumElements()
	view := buffers.NewView(input.BucketRange, 0, n, buffers.BucketRangeArrangement)

	t.Run("monotonic range passes", func(t *testing.T) {
		for i := 0; i < n; i++ {
			view.SetIntAt(i, int64(2*i))
		}
		require.NoError(t, input.Validate())
	})

	t.Run("non-monotonic range fails", func(t *testing.T) {
		view.SetIntAt(3, 100)
		view.SetIntAt(4, 99)
		err := input.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not monotonic")
	})

	t.Run("nonzero start fails", func(t *testing.T) {
		for i := 0; i < n; i++ {
			view.SetIntAt(i, int64(i+1))
		}
		err := input.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "start at 0")
	})

	t.Run("overflowing range fails", func(t *testing.T) {
		for i := 0; i < n; i++ {
			view.SetIntAt(i, 0)
		}
		view.SetIntAt(n-1, int64(input.Keys.NumElements()+1))
		err := input.Validate()
		require.Error(t, err)
	})
}

func TestDistributionInput(t *testing.T) {
	core := must.M1(buffers.NewHostManager(0, 1))

	newKeys := func(values ...int64) *buffers.Buffer {
		buf := must.M1(core.Allocate(buffers.Device, dtypes.S64, len(values)))
		copy(buf.Int64s(), values)
		return buf
	}
	newRange := func(values ...uint32) *buffers.Buffer {
		buf := must.M1(core.Allocate(buffers.Device, dtypes.U32, len(values)))
		copy(buf.Uint32s(), values)
		return buf
	}

	d := must.M1(embcollection.NewDistributionInput(2, dtypes.S64, dtypes.U32))

	t.Run("publish and view", func(t *testing.T) {
		keys := []*buffers.Buffer{newKeys(7, 8, 9), newKeys(3, 4)}
		ranges := []*buffers.Buffer{newRange(0, 2, 3), newRange(0, 1, 2)}
		require.NoError(t, d.Publish(keys, ranges, nil))

		keyView := d.KeyView(0)
		assert.Equal(t, buffers.KeysArrangement, keyView.Tag)
		assert.Equal(t, 3, keyView.Len)
		assert.Equal(t, int64(8), keyView.IntAt(1))

		rangeView := d.BucketRangeView(1)
		assert.Equal(t, buffers.BucketRangeArrangement, rangeView.Tag)
		assert.Equal(t, int64(2), rangeView.IntAt(2))
	})

	t.Run("wrong buffer count", func(t *testing.T) {
		err := d.Publish([]*buffers.Buffer{newKeys(1)}, []*buffers.Buffer{newRange(0, 1)}, nil)
		require.Error(t, err)
	})

	t.Run("wrong dtype", func(t *testing.T) {
		badKeys := must.M1(core.Allocate(buffers.Device, dtypes.S32, 2))
		err := d.Publish(
			[]*buffers.Buffer{badKeys, newKeys(1, 2)},
			[]*buffers.Buffer{newRange(0, 1), newRange(0, 1)}, nil)
		require.Error(t, err)
	})

	t.Run("needs at least one lookup", func(t *testing.T) {
		_, err := embcollection.NewDistributionInput(0, dtypes.S64, dtypes.U32)
		require.Error(t, err)
	})
}
