package types

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// LookupParam is the static configuration of one logical embedding lookup.
type LookupParam struct {
	// LookupID identifies the lookup; unique and dense (0..numLookup-1) within a job.
	LookupID int

	// TableID is the embedding table this lookup reads from.
	TableID int

	// Combiner is the reduction applied to the vectors of one sample.
	Combiner Combiner

	// MaxHotness bounds the number of keys one sample may contribute to this lookup.
	MaxHotness int

	// EvSize is the width of this table's embedding vectors.
	EvSize int
}

// NewLookupParam creates a LookupParam with the given configuration.
func NewLookupParam(lookupID, tableID int, combiner Combiner, maxHotness, evSize int) LookupParam {
	return LookupParam{
		LookupID:   lookupID,
		TableID:    tableID,
		Combiner:   combiner,
		MaxHotness: maxHotness,
		EvSize:     evSize,
	}
}

// Validate checks the per-lookup invariants.
func (p LookupParam) Validate() error {
	if p.LookupID < 0 {
		return errors.Errorf("lookup id must be non-negative, got %d", p.LookupID)
	}
	if p.TableID < 0 {
		return errors.Errorf("lookup %d: table id must be non-negative, got %d", p.LookupID, p.TableID)
	}
	if !p.Combiner.IsACombiner() {
		return errors.Errorf("lookup %d: combiner %d is not supported", p.LookupID, p.Combiner)
	}
	if p.MaxHotness <= 0 {
		return errors.Errorf("lookup %d: max hotness must be positive, got %d", p.LookupID, p.MaxHotness)
	}
	if p.EvSize <= 0 {
		return errors.Errorf("lookup %d: embedding vector size must be positive, got %d", p.LookupID, p.EvSize)
	}
	return nil
}

// String implements fmt.Stringer.
func (p LookupParam) String() string {
	return fmt.Sprintf("LookupParam(lookup_id=%d, table_id=%d, combiner=%s, max_hotness=%d, ev_size=%d)",
		p.LookupID, p.TableID, p.Combiner, p.MaxHotness, p.EvSize)
}

// GroupedTableParam describes one physical table-placement unit: the placement
// strategy and the tables co-located under it. A table id must appear in exactly
// one GroupedTableParam of a job.
type GroupedTableParam struct {
	Placement TablePlacement
	TableIDs  []int
}

// NewGroupedTableParam creates a GroupedTableParam over a copy of tableIDs.
func NewGroupedTableParam(placement TablePlacement, tableIDs []int) GroupedTableParam {
	return GroupedTableParam{Placement: placement, TableIDs: slices.Clone(tableIDs)}
}

// Validate checks the per-group invariants.
func (p GroupedTableParam) Validate() error {
	if !p.Placement.IsATablePlacement() {
		return errors.Errorf("table placement %d is not supported", p.Placement)
	}
	if len(p.TableIDs) == 0 {
		return errors.New("grouped table param must hold at least one table id")
	}
	return nil
}

// HasTable reports whether tableID belongs to this group.
func (p GroupedTableParam) HasTable(tableID int) bool {
	return slices.Contains(p.TableIDs, tableID)
}

// String implements fmt.Stringer.
func (p GroupedTableParam) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "GroupedTableParam(%s, tables=%v)", p.Placement, p.TableIDs)
	return sb.String()
}

// GroupRef identifies the physical home of a grouped lookup: either one of the
// job's table groups (by index into the grouped table params), or the
// device-local frequent-key cache, which is not tied to any table-group shard.
type GroupRef struct {
	idx int
}

// TableGroupRef returns a GroupRef pointing at the table group with the given index.
func TableGroupRef(idx int) GroupRef {
	if idx < 0 {
		panic(fmt.Sprintf("TableGroupRef: table group index must be non-negative, got %d", idx))
	}
	return GroupRef{idx: idx}
}

// LocalFrequentCacheRef returns the GroupRef of the device-local frequent-key cache.
func LocalFrequentCacheRef() GroupRef {
	return GroupRef{idx: -1}
}

// IsLocalFrequentCache reports whether the reference points at the device-local
// frequent-key cache rather than a table group.
func (g GroupRef) IsLocalFrequentCache() bool {
	return g.idx < 0
}

// TableGroupIndex returns the referenced table-group index and true, or (0, false)
// for the local frequent cache.
func (g GroupRef) TableGroupIndex() (int, bool) {
	if g.idx < 0 {
		return 0, false
	}
	return g.idx, true
}

// String implements fmt.Stringer.
func (g GroupRef) String() string {
	if g.IsLocalFrequentCache() {
		return "LocalFrequentCache"
	}
	return fmt.Sprintf("TableGroup(%d)", g.idx)
}

// GroupedLookupParam is one physically-schedulable unit of lookups: the lookups
// that share a table group and an embedding-type category. It is derived by the
// grouping engine, never configured directly.
type GroupedLookupParam struct {
	// Group is the table group (or local frequent cache) serving these lookups.
	Group GroupRef

	// Placement is inherited from the table group.
	Placement TablePlacement

	// LookupIDs lists the member lookups in ascending lookup-id order.
	LookupIDs []int

	// EmbeddingType tags the category the compute kernels use to schedule this group.
	EmbeddingType EmbeddingType
}

// HasLookup reports whether lookupID is a member of this grouped lookup.
func (p GroupedLookupParam) HasLookup(lookupID int) bool {
	return slices.Contains(p.LookupIDs, lookupID)
}

// String implements fmt.Stringer.
func (p GroupedLookupParam) String() string {
	return fmt.Sprintf("GroupedLookupParam(%s, %s, lookups=%v, %s)",
		p.Group, p.Placement, p.LookupIDs, p.EmbeddingType)
}
