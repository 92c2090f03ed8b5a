package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dromadaire/internal/aggregate"
	"dromadaire/internal/model"
	"dromadaire/internal/storage"
)

func newPoolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pools",
		Short: "Fetch pools of the selected chains once and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			ids, _ := cmd.Flags().GetStringSlice("chains")
			query, _ := cmd.Flags().GetString("query")
			format, _ := cmd.Flags().GetString("format")
			if format != "table" && format != "jsonl" {
				return fmt.Errorf("unknown format %q", format)
			}

			if len(ids) > 0 {
				err = a.ctrl.SetSelection(ctx, ids)
			} else {
				fallback, ferr := a.fallback()
				if ferr != nil {
					return ferr
				}
				err = a.ctrl.Restore(ctx, fallback)
			}
			if err != nil {
				return err
			}
			a.ctrl.Wait()

			view := a.ctrl.SetQuery(query)
			for _, failure := range view.Aggregate.Failures {
				fmt.Fprintln(os.Stderr, "Error loading pools: "+failure.Error())
			}
			if view.Aggregate.Notice != "" {
				fmt.Fprintln(os.Stderr, view.Aggregate.Notice)
			}

			if format == "jsonl" {
				err = storage.WritePools(os.Stdout, view.Pools)
			} else {
				err = printPools(view.Pools)
			}
			if err != nil {
				return err
			}

			if view.Aggregate.Status == aggregate.StatusError {
				return fmt.Errorf("no chain returned pools: %w", view.Aggregate.Err())
			}
			return nil
		},
	}

	cmd.Flags().StringSlice("chains", nil, "chain ids to query; saved as the new selection")
	cmd.Flags().String("query", "", "search query (pool/token address, pool name or substring)")
	cmd.Flags().String("format", "table", "output format (table, jsonl)")
	return cmd
}

func printPools(pools []model.LiquidityPool) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHAIN\tPOOL\tTYPE\tTVL\tFEE\tADDRESS")
	for _, pool := range pools {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			pool.SourceName, pool.Label(), pool.Kind(), pool.TVLLabel(), pool.FeeLabel(), pool.Address)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(os.Stdout, "%d pools\n", len(pools))
	return err
}
