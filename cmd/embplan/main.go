// embplan inspects an embedding collection job configuration: how its lookups
// are grouped, where table shards live, and what the per-group gradient layout
// looks like.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/gomlx/embcollection"
	"github.com/gomlx/embcollection/buffers"
)

func main() {
	app := &cli.Command{
		Name:  "embplan",
		Usage: "Inspect the grouping and gradient layout of an embedding collection job",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			planCmd(),
			wgradCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Usage:    "job configuration file (.yaml, .yml or .json)",
		Required: true,
	}
}

func planCmd() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Print the grouped lookups and shard placement of the job",
		Flags: []cli.Flag{configFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			param, err := loadParam(cmd.String("config"))
			if err != nil {
				return err
			}

			fmt.Printf("%d lookups over %d tables on %d devices, local batch %d\n",
				param.NumLookup, param.NumTable, param.ShardMatrix.NumDevices(), param.LocalBatchSize())
			for groupedID, grouped := range param.GroupedLookupParams() {
				fmt.Printf("grouped lookup #%d: %s\n", groupedID, grouped)
			}
			for tableID := 0; tableID < param.NumTable; tableID++ {
				fmt.Printf("table %d shards on devices %v\n", tableID, param.ShardMatrix.ShardDevices(tableID))
			}
			return nil
		},
	}
}

func wgradCmd() *cli.Command {
	return &cli.Command{
		Name:  "wgrad",
		Usage: "Print the per-group gradient layout of the job",
		Flags: []cli.Flag{configFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			param, err := loadParam(cmd.String("config"))
			if err != nil {
				return err
			}
			core, err := buffers.NewHostManager(0, param.ShardMatrix.NumDevices())
			if err != nil {
				return err
			}

			for groupedID := 0; groupedID < param.NumGroupedLookups(); groupedID++ {
				w, err := embcollection.WgradInitializer{
					Core:      core,
					Param:     param,
					GroupedID: groupedID,
				}.Init()
				if err != nil {
					return err
				}
				attr := w.Attr
				fmt.Printf("grouped lookup #%d:\n", groupedID)
				fmt.Printf("  sorted lookups %v over tables %v\n", attr.SortedLookupIDs, attr.SortedTableIDs)
				fmt.Printf("  unique tables %v\n", attr.UniqueTableIDs())
				if attr.IsSameEvSize {
					fmt.Printf("  fixed stride %d\n", attr.SameEvSize)
				} else {
					fmt.Printf("  ragged ev sizes\n")
				}
				fmt.Printf("  data capacity %d x %s\n", w.MaxBufferSize, attr.Type)
			}
			return nil
		},
	}
}

func loadParam(path string) (*embcollection.EmbeddingCollectionParam, error) {
	cfg, err := loadJobConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg.toCollectionParam()
}
