// Package types defines the configuration vocabulary of an embedding collection:
// the combiner and placement enums, the per-lookup and per-table-group parameters,
// and the strategy knobs that select sorting, key preprocessing, compression and
// communication behavior.
package types

import "fmt"

// Combiner is the reduction applied to the embedding vectors retrieved for one
// sample of a lookup: Sum and Average reduce them to a single vector, Concat
// keeps them side by side (no reduction).
type Combiner int

//go:generate go tool enumer -type=Combiner -output=gen_combiner_enumer.go types.go

const (
	Sum Combiner = iota
	Average
	Concat
)

// IsSparse reports whether the combiner reduces the looked-up vectors.
// Sum and Average lookups are grouped as sparse; Concat lookups as dense.
func (c Combiner) IsSparse() bool {
	return c == Sum || c == Average
}

// TablePlacement defines whether a table group's embedding rows are replicated
// on every device (DataParallel) or partitioned into shards (ModelParallel).
type TablePlacement int

//go:generate go tool enumer -type=TablePlacement -output=gen_tableplacement_enumer.go types.go

const (
	DataParallel TablePlacement = iota
	ModelParallel
)

// EmbeddingType categorizes a grouped lookup for the compute kernels.
type EmbeddingType int

//go:generate go tool enumer -type=EmbeddingType -output=gen_embeddingtype_enumer.go types.go

const (
	// Sparse groups hold Sum/Average lookups.
	Sparse EmbeddingType = iota

	// Dense groups hold Concat lookups under the Unique compression strategy.
	Dense

	// FrequentDense is the hot tier of the CacheFrequent strategy: dense keys
	// served from a replicated device-local cache.
	FrequentDense

	// InfrequentDense is the cold tier of the CacheFrequent strategy: dense keys
	// routed through the regular sharded path.
	InfrequentDense
)

// DenseCompressionStrategy selects how dense (Concat) lookups are compressed.
type DenseCompressionStrategy int

//go:generate go tool enumer -type=DenseCompressionStrategy -trimprefix=DenseCompression -output=gen_densecompressionstrategy_enumer.go types.go

const (
	// DenseCompressionUnique deduplicates keys exactly, with no frequency split.
	DenseCompressionUnique DenseCompressionStrategy = iota

	// DenseCompressionCacheFrequent splits keys into a hot replicated cache and
	// a cold sharded path.
	DenseCompressionCacheFrequent
)

// EmbeddingLayout defines the memory arrangement of the embedding input/output:
// all samples of one feature contiguous (FeatureMajor) or all features of one
// sample contiguous (BatchMajor).
type EmbeddingLayout int

const (
	FeatureMajor EmbeddingLayout = iota
	BatchMajor
)

func (l EmbeddingLayout) String() string {
	switch l {
	case FeatureMajor:
		return "FeatureMajor"
	case BatchMajor:
		return "BatchMajor"
	}
	return fmt.Sprintf("EmbeddingLayout(%d)", l)
}

// SortStrategy selects the device-side key sorting algorithm.
type SortStrategy int

const (
	SortRadix SortStrategy = iota
	SortSegmented
)

func (s SortStrategy) String() string {
	switch s {
	case SortRadix:
		return "Radix"
	case SortSegmented:
		return "Segmented"
	}
	return fmt.Sprintf("SortStrategy(%d)", s)
}

// KeysPreprocessStrategy selects whether raw keys are offset into a unified
// key space before routing.
type KeysPreprocessStrategy int

const (
	KeysPreprocessNone KeysPreprocessStrategy = iota
	KeysPreprocessAddOffset
)

func (k KeysPreprocessStrategy) String() string {
	switch k {
	case KeysPreprocessNone:
		return "None"
	case KeysPreprocessAddOffset:
		return "AddOffset"
	}
	return fmt.Sprintf("KeysPreprocessStrategy(%d)", k)
}

// AllreduceStrategy selects how data-parallel gradients are exchanged.
type AllreduceStrategy int

const (
	// AllreduceSparse exchanges only the touched unique rows.
	AllreduceSparse AllreduceStrategy = iota

	// AllreduceDense exchanges the whole vocabulary of each table, one buffer
	// per grouped lookup.
	AllreduceDense

	// AllreduceGroupDense packs the dense buffers of several grouped lookups
	// into one shared channel so that they travel in a single collective call.
	AllreduceGroupDense
)

func (a AllreduceStrategy) String() string {
	switch a {
	case AllreduceSparse:
		return "Sparse"
	case AllreduceDense:
		return "Dense"
	case AllreduceGroupDense:
		return "GroupDense"
	}
	return fmt.Sprintf("AllreduceStrategy(%d)", a)
}

// CommunicationStrategy selects the collective topology used for the key and
// gradient exchange.
type CommunicationStrategy int

const (
	CommUniform CommunicationStrategy = iota
	CommHierarchical
)

func (c CommunicationStrategy) String() string {
	switch c {
	case CommUniform:
		return "Uniform"
	case CommHierarchical:
		return "Hierarchical"
	}
	return fmt.Sprintf("CommunicationStrategy(%d)", c)
}
