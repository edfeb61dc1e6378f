package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumRoundTrips(t *testing.T) {
	t.Run("combiner", func(t *testing.T) {
		for _, c := range CombinerValues() {
			parsed, err := CombinerString(c.String())
			require.NoError(t, err)
			assert.Equal(t, c, parsed)
			assert.True(t, c.IsACombiner())
		}
		_, err := CombinerString("median")
		require.Error(t, err)
		assert.False(t, Combiner(42).IsACombiner())
	})

	t.Run("table placement", func(t *testing.T) {
		for _, p := range TablePlacementValues() {
			parsed, err := TablePlacementString(p.String())
			require.NoError(t, err)
			assert.Equal(t, p, parsed)
		}
		// Parsing is case-insensitive on the lowered form.
		parsed, err := TablePlacementString("dataparallel")
		require.NoError(t, err)
		assert.Equal(t, DataParallel, parsed)
	})

	t.Run("embedding type", func(t *testing.T) {
		assert.Equal(t, "Sparse", Sparse.String())
		assert.Equal(t, "FrequentDense", FrequentDense.String())
		for _, e := range EmbeddingTypeValues() {
			parsed, err := EmbeddingTypeString(e.String())
			require.NoError(t, err)
			assert.Equal(t, e, parsed)
		}
	})

	t.Run("dense compression strategy", func(t *testing.T) {
		assert.Equal(t, "Unique", DenseCompressionUnique.String())
		assert.Equal(t, "CacheFrequent", DenseCompressionCacheFrequent.String())
		parsed, err := DenseCompressionStrategyString("CacheFrequent")
		require.NoError(t, err)
		assert.Equal(t, DenseCompressionCacheFrequent, parsed)
	})
}

func TestCombinerIsSparse(t *testing.T) {
	assert.True(t, Sum.IsSparse())
	assert.True(t, Average.IsSparse())
	assert.False(t, Concat.IsSparse())
}

func TestLookupParamValidate(t *testing.T) {
	valid := NewLookupParam(0, 3, Sum, 10, 16)
	require.NoError(t, valid.Validate())

	for name, mutate := range map[string]func(*LookupParam){
		"negative lookup id": func(p *LookupParam) { p.LookupID = -1 },
		"negative table id":  func(p *LookupParam) { p.TableID = -2 },
		"bad combiner":       func(p *LookupParam) { p.Combiner = Combiner(9) },
		"zero hotness":       func(p *LookupParam) { p.MaxHotness = 0 },
		"zero ev size":       func(p *LookupParam) { p.EvSize = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			require.Error(t, p.Validate())
		})
	}
}

func TestGroupedTableParam(t *testing.T) {
	tableIDs := []int{3, 1}
	g := NewGroupedTableParam(ModelParallel, tableIDs)
	require.NoError(t, g.Validate())
	assert.True(t, g.HasTable(1))
	assert.False(t, g.HasTable(2))

	// The group keeps its own copy of the table ids.
	tableIDs[0] = 99
	assert.Equal(t, []int{3, 1}, g.TableIDs)

	require.Error(t, NewGroupedTableParam(ModelParallel, nil).Validate())
	require.Error(t, GroupedTableParam{Placement: TablePlacement(5), TableIDs: []int{0}}.Validate())
}

func TestGroupRef(t *testing.T) {
	ref := TableGroupRef(2)
	assert.False(t, ref.IsLocalFrequentCache())
	idx, ok := ref.TableGroupIndex()
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, "TableGroup(2)", ref.String())

	cache := LocalFrequentCacheRef()
	assert.True(t, cache.IsLocalFrequentCache())
	_, ok = cache.TableGroupIndex()
	assert.False(t, ok)
	assert.Equal(t, "LocalFrequentCache", cache.String())

	assert.Panics(t, func() { TableGroupRef(-1) })
}

func TestGroupedLookupParam(t *testing.T) {
	p := GroupedLookupParam{
		Group:         TableGroupRef(0),
		Placement:     DataParallel,
		LookupIDs:     []int{1, 4},
		EmbeddingType: Sparse,
	}
	assert.True(t, p.HasLookup(4))
	assert.False(t, p.HasLookup(2))
	assert.Contains(t, p.String(), "lookups=[1 4]")
}
