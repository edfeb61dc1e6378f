// Package embcollection is the configuration and bookkeeping engine for a
// multi-device embedding-table lookup subsystem used in recommendation-model
// training.
//
// It decides, once per training job, how table lookups are grouped into
// physically-schedulable units (the grouping engine), where each device sits
// among a table's shards (the shard locator), what per-batch key routing
// buffers look like (EmbeddingInput), and how each group's gradients are
// deduplicated, ordered and laid out (WgradAttr / Wgrad). The actual lookup,
// combine and gradient math runs in external device kernels; this package only
// produces the metadata those kernels and the communication layer consume.
package embcollection

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/embcollection/buffers"
	"github.com/gomlx/embcollection/types"
)

// CollectionConfig is the input configuration of a job, before grouping.
type CollectionConfig struct {
	NumTable int

	LookupParams       []types.LookupParam
	ShardMatrix        ShardMatrix
	GroupedTableParams []types.GroupedTableParam

	// UniversalBatchSize is the global batch size, summed over all devices.
	UniversalBatchSize int

	// Element types of the key, reverse-index, bucket-range, embedding and
	// gradient buffers.
	KeyType, IndexType, OffsetType, EmbType, WgradType dtypes.DType

	InputLayout, OutputLayout types.EmbeddingLayout

	SortStrategy             types.SortStrategy
	KeysPreprocessStrategy   types.KeysPreprocessStrategy
	AllreduceStrategy        types.AllreduceStrategy
	CommStrategy             types.CommunicationStrategy
	DenseCompressionStrategy types.DenseCompressionStrategy
}

// EmbeddingCollectionParam is the whole-job configuration: the validated input
// configuration plus the derived grouped lookups. It is immutable after
// construction; derived summaries (see DeriveOutputAttr) are recomputed from it
// rather than cached in place.
type EmbeddingCollectionParam struct {
	CollectionConfig

	NumLookup int

	groupedLookupParams []types.GroupedLookupParam

	denseFrequentKeys *DenseFrequentKeysData
}

// DenseFrequentKeysData holds the externally mined hot keys per table that seed
// the device-local frequent cache under the CacheFrequent strategy.
type DenseFrequentKeysData struct {
	TableIDs     []int
	FrequentKeys []*buffers.Buffer // host-resident, parallel to TableIDs
}

// NewEmbeddingCollectionParam validates the configuration and derives the
// grouped lookups. All configuration errors surface here, before any device
// work: an unsupported combiner, placement or compression value fails
// construction, never silently defaults.
func NewEmbeddingCollectionParam(cfg CollectionConfig) (*EmbeddingCollectionParam, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	param := &EmbeddingCollectionParam{
		CollectionConfig: cfg,
		NumLookup:        len(cfg.LookupParams),
	}
	if err := param.groupLookups(); err != nil {
		return nil, err
	}

	if klog.V(1).Enabled() {
		klog.Infof("embedding collection: %d lookups over %d tables grouped into %d grouped lookups",
			param.NumLookup, param.NumTable, len(param.groupedLookupParams))
		for i, grouped := range param.groupedLookupParams {
			klog.V(2).Infof("  grouped lookup #%d: %s", i, grouped)
		}
	}
	return param, nil
}

func validateConfig(cfg *CollectionConfig) error {
	if cfg.NumTable <= 0 {
		return errors.Errorf("number of tables must be positive, got %d", cfg.NumTable)
	}
	if len(cfg.LookupParams) == 0 {
		return errors.New("at least one lookup is required")
	}
	if cfg.UniversalBatchSize <= 0 {
		return errors.Errorf("universal batch size must be positive, got %d", cfg.UniversalBatchSize)
	}
	if !cfg.DenseCompressionStrategy.IsADenseCompressionStrategy() {
		return errors.Errorf("dense compression strategy %d is not supported", cfg.DenseCompressionStrategy)
	}
	if numDevices := cfg.ShardMatrix.NumDevices(); numDevices > 0 && cfg.UniversalBatchSize%numDevices != 0 {
		return errors.Errorf("universal batch size %d is not divisible by the %d devices",
			cfg.UniversalBatchSize, numDevices)
	}

	for i, lookup := range cfg.LookupParams {
		if err := lookup.Validate(); err != nil {
			return err
		}
		if lookup.LookupID != i {
			return errors.Errorf("lookup ids must be dense and ascending: entry %d has lookup id %d",
				i, lookup.LookupID)
		}
		if lookup.TableID >= cfg.NumTable {
			return errors.Errorf("lookup %d references table %d, job has %d tables",
				lookup.LookupID, lookup.TableID, cfg.NumTable)
		}
	}

	// A table id must appear in exactly one table group.
	tableToGroup := make(map[int]int, cfg.NumTable)
	for groupIdx, tableParam := range cfg.GroupedTableParams {
		if err := tableParam.Validate(); err != nil {
			return errors.Wrapf(err, "grouped table param #%d", groupIdx)
		}
		for _, tableID := range tableParam.TableIDs {
			if tableID < 0 || tableID >= cfg.NumTable {
				return errors.Errorf("grouped table param #%d references table %d, job has %d tables",
					groupIdx, tableID, cfg.NumTable)
			}
			if prev, found := tableToGroup[tableID]; found {
				return errors.Errorf("table %d appears in grouped table params #%d and #%d",
					tableID, prev, groupIdx)
			}
			tableToGroup[tableID] = groupIdx
		}
	}
	// Every table a lookup reads must be placed, or the lookup would never be
	// scheduled.
	for _, lookup := range cfg.LookupParams {
		if _, found := tableToGroup[lookup.TableID]; !found {
			return errors.Errorf("lookup %d reads table %d, which belongs to no grouped table param",
				lookup.LookupID, lookup.TableID)
		}
	}

	if err := cfg.ShardMatrix.validate(cfg.NumTable); err != nil {
		return err
	}
	// Data-parallel tables must be replicated on every device; every table needs
	// at least one shard.
	for groupIdx, tableParam := range cfg.GroupedTableParams {
		for _, tableID := range tableParam.TableIDs {
			shards := len(cfg.ShardMatrix.ShardDevices(tableID))
			switch tableParam.Placement {
			case types.DataParallel:
				if shards != cfg.ShardMatrix.NumDevices() {
					return errors.Errorf(
						"table %d in data-parallel group #%d must be replicated on all %d devices, found %d",
						tableID, groupIdx, cfg.ShardMatrix.NumDevices(), shards)
				}
			case types.ModelParallel:
				if shards == 0 {
					return errors.Errorf("table %d in model-parallel group #%d has no shard on any device",
						tableID, groupIdx)
				}
			}
		}
	}
	return nil
}

// groupLookups partitions the lookups of each table group by combiner family
// and emits the grouped lookups in deterministic order. Downstream gradient
// buffers are addressed by group index, so re-running on identical inputs must
// yield an identical sequence.
func (p *EmbeddingCollectionParam) groupLookups() error {
	p.groupedLookupParams = p.groupedLookupParams[:0]
	for groupIdx, tableParam := range p.GroupedTableParams {
		var sparseLookupIDs, denseLookupIDs []int
		for lookupID := 0; lookupID < p.NumLookup; lookupID++ {
			lookup := p.LookupParams[lookupID]
			if !tableParam.HasTable(lookup.TableID) {
				continue
			}
			switch lookup.Combiner {
			case types.Sum, types.Average:
				sparseLookupIDs = append(sparseLookupIDs, lookupID)
			case types.Concat:
				denseLookupIDs = append(denseLookupIDs, lookupID)
			default:
				return errors.Errorf("combiner %d of lookup %d not supported in embedding collection",
					lookup.Combiner, lookupID)
			}
		}

		if len(sparseLookupIDs) > 0 {
			p.groupedLookupParams = append(p.groupedLookupParams, types.GroupedLookupParam{
				Group:         types.TableGroupRef(groupIdx),
				Placement:     tableParam.Placement,
				LookupIDs:     sparseLookupIDs,
				EmbeddingType: types.Sparse,
			})
		}
		if len(denseLookupIDs) == 0 {
			continue
		}
		switch p.DenseCompressionStrategy {
		case types.DenseCompressionUnique:
			p.groupedLookupParams = append(p.groupedLookupParams, types.GroupedLookupParam{
				Group:         types.TableGroupRef(groupIdx),
				Placement:     tableParam.Placement,
				LookupIDs:     denseLookupIDs,
				EmbeddingType: types.Dense,
			})
		case types.DenseCompressionCacheFrequent:
			// Two-tier cache: the same dense lookups are emitted twice, once for
			// the cold sharded path and once for the hot device-local cache.
			p.groupedLookupParams = append(p.groupedLookupParams, types.GroupedLookupParam{
				Group:         types.TableGroupRef(groupIdx),
				Placement:     tableParam.Placement,
				LookupIDs:     denseLookupIDs,
				EmbeddingType: types.InfrequentDense,
			})
			p.groupedLookupParams = append(p.groupedLookupParams, types.GroupedLookupParam{
				Group:         types.LocalFrequentCacheRef(),
				Placement:     tableParam.Placement,
				LookupIDs:     slices.Clone(denseLookupIDs),
				EmbeddingType: types.FrequentDense,
			})
		default:
			return errors.Errorf("dense compression strategy %d not supported in embedding collection",
				p.DenseCompressionStrategy)
		}
	}
	return nil
}

// LocalBatchSize returns the per-device share of the universal batch size.
func (p *EmbeddingCollectionParam) LocalBatchSize() int {
	return p.UniversalBatchSize / p.ShardMatrix.NumDevices()
}

// GroupedLookupParams returns the derived grouped lookups in their scheduling order.
func (p *EmbeddingCollectionParam) GroupedLookupParams() []types.GroupedLookupParam {
	return slices.Clone(p.groupedLookupParams)
}

// NumGroupedLookups returns the number of derived grouped lookups.
func (p *EmbeddingCollectionParam) NumGroupedLookups() int {
	return len(p.groupedLookupParams)
}

// GroupedLookup returns the grouped lookup with the given index.
func (p *EmbeddingCollectionParam) GroupedLookup(groupedID int) (types.GroupedLookupParam, error) {
	if groupedID < 0 || groupedID >= len(p.groupedLookupParams) {
		return types.GroupedLookupParam{}, errors.Errorf("grouped lookup id %d out of range [0, %d)",
			groupedID, len(p.groupedLookupParams))
	}
	return p.groupedLookupParams[groupedID], nil
}

// LookupIDInGroup reports whether the lookup belongs to the grouped lookup.
func (p *EmbeddingCollectionParam) LookupIDInGroup(groupedID, lookupID int) bool {
	if groupedID < 0 || groupedID >= len(p.groupedLookupParams) {
		return false
	}
	return p.groupedLookupParams[groupedID].HasLookup(lookupID)
}

// HasTableShard reports whether the device participates in serving lookupID as
// part of the grouped lookup: the lookup must belong to the group and the
// device must hold a shard of the lookup's table.
func (p *EmbeddingCollectionParam) HasTableShard(deviceID, groupedID, lookupID int) bool {
	if lookupID < 0 || lookupID >= p.NumLookup {
		return false
	}
	tableID := p.LookupParams[lookupID].TableID
	return p.LookupIDInGroup(groupedID, lookupID) && p.ShardMatrix.HasShard(deviceID, tableID)
}

// InitDenseFrequentKeys installs the hot-key data backing the device-local
// frequent cache. Only meaningful under the CacheFrequent strategy.
func (p *EmbeddingCollectionParam) InitDenseFrequentKeys(data *DenseFrequentKeysData) error {
	if p.DenseCompressionStrategy != types.DenseCompressionCacheFrequent {
		return errors.Errorf("frequent keys are only used with the CacheFrequent strategy, job uses %s",
			p.DenseCompressionStrategy)
	}
	if len(data.TableIDs) != len(data.FrequentKeys) {
		return errors.Errorf("frequent keys data has %d table ids but %d key buffers",
			len(data.TableIDs), len(data.FrequentKeys))
	}
	p.denseFrequentKeys = data
	return nil
}

// DenseFrequentKeys returns the installed hot-key data, or nil.
func (p *EmbeddingCollectionParam) DenseFrequentKeys() *DenseFrequentKeysData {
	return p.denseFrequentKeys
}
