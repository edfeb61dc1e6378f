package embcollection

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// ShardMatrix is the device x table shard-membership grid: ShardMatrix[d][t]
// says whether device d hosts a shard of table t. It is read-only for the
// lifetime of a job.
type ShardMatrix [][]bool

func (m ShardMatrix) validate(numTable int) error {
	if len(m) == 0 {
		return errors.New("shard matrix must have at least one device row")
	}
	for deviceID, row := range m {
		if len(row) != numTable {
			return errors.Errorf("shard matrix row %d has %d columns, job has %d tables",
				deviceID, len(row), numTable)
		}
	}
	return nil
}

// NumDevices returns the number of device rows.
func (m ShardMatrix) NumDevices() int { return len(m) }

// HasShard reports whether the device hosts a shard of the table.
func (m ShardMatrix) HasShard(deviceID, tableID int) bool {
	if deviceID < 0 || deviceID >= len(m) {
		return false
	}
	row := m[deviceID]
	if tableID < 0 || tableID >= len(row) {
		return false
	}
	return row[tableID]
}

// ShardDevices returns the devices hosting a shard of the table, in ascending
// device-id order. The position of a device in this list is its shard id.
func (m ShardMatrix) ShardDevices(tableID int) []int {
	var shardDevices []int
	for deviceID, row := range m {
		if tableID < len(row) && row[tableID] {
			shardDevices = append(shardDevices, deviceID)
		}
	}
	return shardDevices
}

// TableShardID returns the device's shard index for the table and the total
// shard count. Correctly routed traffic only ever queries devices that hold a
// shard: a miss is a caller bug and panics rather than returning a sentinel,
// since proceeding would corrupt downstream addressing.
func (m ShardMatrix) TableShardID(deviceID, tableID int) (shardID, numShard int) {
	if deviceID < 0 || deviceID >= len(m) {
		exceptions.Panicf("TableShardID: device id %d out of range [0, %d)", deviceID, len(m))
	}
	if tableID < 0 || tableID >= len(m[deviceID]) {
		exceptions.Panicf("TableShardID: table id %d out of range [0, %d)", tableID, len(m[deviceID]))
	}
	shardDevices := m.ShardDevices(tableID)
	for i, shardDevice := range shardDevices {
		if shardDevice == deviceID {
			return i, len(shardDevices)
		}
	}
	exceptions.Panicf("TableShardID: device %d holds no shard of table %d (shard devices: %v)",
		deviceID, tableID, shardDevices)
	return 0, 0
}

// ReplicaGroupsForGroup returns, per unique table of the grouped lookup (in
// sorted-unique-table order, see WgradAttr), the devices participating in that
// table's collective exchange. The communication layer indexes its all-to-all
// and all-reduce calls with these groups.
func (p *EmbeddingCollectionParam) ReplicaGroupsForGroup(groupedID int) ([][]int, error) {
	attr, err := ComputeWgradAttr(p, groupedID)
	if err != nil {
		return nil, err
	}
	uniqueTableIDs := attr.SortedUniqueTableIDs
	groups := make([][]int, 0, len(uniqueTableIDs))
	for _, tableID := range uniqueTableIDs {
		groups = append(groups, p.ShardMatrix.ShardDevices(tableID))
	}
	return groups, nil
}
