package embcollection

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/gomlx/embcollection/internal/utils"
	"github.com/gomlx/embcollection/types"
)

// evAlignment is the element alignment vectorized output kernels assume.
const evAlignment = 4

// EmbeddingOutputAttr summarizes the layout of the combined embedding output of
// a job: per-lookup vector sizes, combiners, start offsets and hotness bounds.
// It is an immutable snapshot derived from the job configuration; re-derive it
// whenever the configuration it depends on changes.
type EmbeddingOutputAttr struct {
	NumLookup int

	// IDToEvSize, IDToCombiner and IDToHotness are indexed by lookup id.
	IDToEvSize   []int
	IDToCombiner []types.Combiner
	IDToHotness  []int
	HotnessSum   int

	// IDToEvStartIndices holds the element offset of each lookup's span within
	// one sample's output row: prefix sums, first entry zero, length NumLookup+1.
	IDToEvStartIndices []int

	// NumElementsPerSample is the total output width of one sample.
	NumElementsPerSample int

	MaxEvSize int

	// IsRagged is true when lookups produce spans of different widths.
	IsRagged bool

	// IsAligned is true when every span width is a multiple of the vectorized
	// access alignment.
	IsAligned bool

	Layout types.EmbeddingLayout
	Type   dtypes.DType
}

// DeriveOutputAttr computes the output layout summary of the job for the given
// layout. It is a pure function of the configuration: callers hold the returned
// snapshot per step instead of mutating shared state.
func DeriveOutputAttr(param *EmbeddingCollectionParam, layout types.EmbeddingLayout) (*EmbeddingOutputAttr, error) {
	attr := &EmbeddingOutputAttr{
		NumLookup:    param.NumLookup,
		IDToEvSize:   make([]int, 0, param.NumLookup),
		IDToCombiner: make([]types.Combiner, 0, param.NumLookup),
		IDToHotness:  make([]int, 0, param.NumLookup),
		Layout:       layout,
		Type:         param.EmbType,
	}

	// A lookup's output span is one vector for reducing combiners and hotness
	// many vectors for Concat.
	spans := make([]int, 0, param.NumLookup)
	for _, lookup := range param.LookupParams {
		span := 0
		switch lookup.Combiner {
		case types.Sum, types.Average:
			span = lookup.EvSize
		case types.Concat:
			span = lookup.MaxHotness * lookup.EvSize
		default:
			return nil, errors.Errorf("combiner %d of lookup %d not supported in embedding output",
				lookup.Combiner, lookup.LookupID)
		}
		spans = append(spans, span)

		attr.IDToEvSize = append(attr.IDToEvSize, lookup.EvSize)
		attr.IDToCombiner = append(attr.IDToCombiner, lookup.Combiner)
		attr.IDToHotness = append(attr.IDToHotness, lookup.MaxHotness)
		attr.HotnessSum += lookup.MaxHotness
		attr.MaxEvSize = max(attr.MaxEvSize, lookup.EvSize)
	}

	attr.IDToEvStartIndices = utils.PrefixSum(spans)
	attr.NumElementsPerSample = attr.IDToEvStartIndices[len(attr.IDToEvStartIndices)-1]

	attr.IsAligned = true
	for i, span := range spans {
		if i > 0 && span != spans[0] {
			attr.IsRagged = true
		}
		if span%evAlignment != 0 {
			attr.IsAligned = false
		}
	}
	return attr, nil
}
