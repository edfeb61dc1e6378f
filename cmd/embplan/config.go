package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/gomlx/embcollection"
	"github.com/gomlx/embcollection/types"
)

// jobConfig is the on-disk description of an embedding collection job, loaded
// from YAML or JSON depending on the file extension.
type jobConfig struct {
	NumTables int `yaml:"num_tables" json:"num_tables"`
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	KeyType    string `yaml:"key_type" json:"key_type"`
	OffsetType string `yaml:"offset_type" json:"offset_type"`
	IndexType  string `yaml:"index_type" json:"index_type"`
	EmbType    string `yaml:"emb_type" json:"emb_type"`
	WgradType  string `yaml:"wgrad_type" json:"wgrad_type"`

	Lookups []struct {
		Table    int    `yaml:"table" json:"table"`
		Combiner string `yaml:"combiner" json:"combiner"`
		Hotness  int    `yaml:"hotness" json:"hotness"`
		EvSize   int    `yaml:"ev_size" json:"ev_size"`
	} `yaml:"lookups" json:"lookups"`

	TableGroups []struct {
		Placement string `yaml:"placement" json:"placement"`
		Tables    []int  `yaml:"tables" json:"tables"`
	} `yaml:"table_groups" json:"table_groups"`

	// ShardMatrix rows are devices, columns tables, entries 0 or 1.
	ShardMatrix [][]int `yaml:"shard_matrix" json:"shard_matrix"`

	DenseCompression string `yaml:"dense_compression" json:"dense_compression"`
	Allreduce        string `yaml:"allreduce" json:"allreduce"`

	VocabularySizes []int `yaml:"vocabulary_sizes" json:"vocabulary_sizes"`
}

func loadJobConfig(path string) (*jobConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading job config %q", path)
	}
	cfg := &jobConfig{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return nil, errors.Errorf("job config %q: unsupported extension %q (want .yaml, .yml or .json)", path, ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing job config %q", path)
	}
	return cfg, nil
}

func parseDType(name, fallback string) (dtypes.DType, error) {
	if name == "" {
		name = fallback
	}
	switch strings.ToLower(name) {
	case "s32", "int32":
		return dtypes.S32, nil
	case "s64", "int64":
		return dtypes.S64, nil
	case "u32", "uint32":
		return dtypes.U32, nil
	case "u64", "uint64":
		return dtypes.U64, nil
	case "f16", "float16":
		return dtypes.F16, nil
	case "f32", "float32":
		return dtypes.F32, nil
	case "f64", "float64":
		return dtypes.F64, nil
	}
	return dtypes.InvalidDType, errors.Errorf("unsupported dtype %q", name)
}

// toCollectionParam converts the on-disk config into a validated job configuration.
func (cfg *jobConfig) toCollectionParam() (*embcollection.EmbeddingCollectionParam, error) {
	collection := embcollection.CollectionConfig{
		NumTable:           cfg.NumTables,
		UniversalBatchSize: cfg.BatchSize,
	}

	var err error
	if collection.KeyType, err = parseDType(cfg.KeyType, "s64"); err != nil {
		return nil, err
	}
	if collection.OffsetType, err = parseDType(cfg.OffsetType, "u32"); err != nil {
		return nil, err
	}
	if collection.IndexType, err = parseDType(cfg.IndexType, "u32"); err != nil {
		return nil, err
	}
	if collection.EmbType, err = parseDType(cfg.EmbType, "f32"); err != nil {
		return nil, err
	}
	if collection.WgradType, err = parseDType(cfg.WgradType, "f32"); err != nil {
		return nil, err
	}

	for i, lookup := range cfg.Lookups {
		combiner, err := types.CombinerString(lookup.Combiner)
		if err != nil {
			return nil, errors.Wrapf(err, "lookup #%d", i)
		}
		collection.LookupParams = append(collection.LookupParams,
			types.NewLookupParam(i, lookup.Table, combiner, lookup.Hotness, lookup.EvSize))
	}

	for i, group := range cfg.TableGroups {
		placement, err := types.TablePlacementString(group.Placement)
		if err != nil {
			return nil, errors.Wrapf(err, "table group #%d", i)
		}
		collection.GroupedTableParams = append(collection.GroupedTableParams,
			types.NewGroupedTableParam(placement, group.Tables))
	}

	collection.ShardMatrix = make(embcollection.ShardMatrix, len(cfg.ShardMatrix))
	for deviceID, row := range cfg.ShardMatrix {
		collection.ShardMatrix[deviceID] = make([]bool, len(row))
		for tableID, entry := range row {
			collection.ShardMatrix[deviceID][tableID] = entry != 0
		}
	}

	if cfg.DenseCompression != "" {
		if collection.DenseCompressionStrategy, err = types.DenseCompressionStrategyString(cfg.DenseCompression); err != nil {
			return nil, err
		}
	}
	switch strings.ToLower(cfg.Allreduce) {
	case "", "sparse":
		collection.AllreduceStrategy = types.AllreduceSparse
	case "dense":
		collection.AllreduceStrategy = types.AllreduceDense
	case "groupdense", "group_dense":
		collection.AllreduceStrategy = types.AllreduceGroupDense
	default:
		return nil, errors.Errorf("unsupported allreduce strategy %q", cfg.Allreduce)
	}

	return embcollection.NewEmbeddingCollectionParam(collection)
}
