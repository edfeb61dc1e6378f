package embcollection_test

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/embcollection"
)

func TestShardMatrix(t *testing.T) {
	// Two tables, each sharded on exactly one of two devices.
	m := embcollection.ShardMatrix{
		{true, false},
		{false, true},
	}

	t.Run("shard devices", func(t *testing.T) {
		assert.Equal(t, 2, m.NumDevices())
		assert.Equal(t, []int{0}, m.ShardDevices(0))
		assert.Equal(t, []int{1}, m.ShardDevices(1))

		assert.True(t, m.HasShard(0, 0))
		assert.False(t, m.HasShard(0, 1))
		assert.False(t, m.HasShard(2, 0))
		assert.False(t, m.HasShard(0, 5))
	})

	t.Run("shard ids", func(t *testing.T) {
		shardID, numShard := m.TableShardID(0, 0)
		assert.Equal(t, 0, shardID)
		assert.Equal(t, 1, numShard)

		shardID, numShard = m.TableShardID(1, 1)
		assert.Equal(t, 0, shardID)
		assert.Equal(t, 1, numShard)
	})

	t.Run("miss panics", func(t *testing.T) {
		require.Panics(t, func() { m.TableShardID(1, 0) })
		require.Panics(t, func() { m.TableShardID(5, 0) })
		require.Panics(t, func() { m.TableShardID(0, 5) })
	})
}

func TestShardMatrix_RoundTrip(t *testing.T) {
	m := embcollection.ShardMatrix{
		{true, false, true, true},
		{false, true, true, true},
		{true, true, false, true},
	}
	for tableID := 0; tableID < 4; tableID++ {
		shardDevices := m.ShardDevices(tableID)
		for wantShardID, deviceID := range shardDevices {
			shardID, numShard := m.TableShardID(deviceID, tableID)
			assert.Equal(t, wantShardID, shardID, "device %d table %d", deviceID, tableID)
			assert.Equal(t, len(shardDevices), numShard)
		}
	}
}

func TestReplicaGroupsForGroup(t *testing.T) {
	param := must.M1(embcollection.NewEmbeddingCollectionParam(testConfig()))

	// Grouped lookup 0 reads only table 0, sharded on device 0.
	groups := must.M1(param.ReplicaGroupsForGroup(0))
	assert.Equal(t, [][]int{{0}}, groups)

	// Grouped lookup 2 reads the data-parallel tables 2 and 3, replicated on
	// both devices.
	groups = must.M1(param.ReplicaGroupsForGroup(2))
	assert.Equal(t, [][]int{{0, 1}, {0, 1}}, groups)

	_, err := param.ReplicaGroupsForGroup(17)
	require.Error(t, err)
}
