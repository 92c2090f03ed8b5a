package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dromadaire/internal/aggregate"
	"dromadaire/internal/storage"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch pools once and write them to JSONL and/or Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			ids, _ := cmd.Flags().GetStringSlice("chains")
			out, _ := cmd.Flags().GetString("out")

			var sinks []storage.PoolSink
			if out != "" {
				sinks = append(sinks, storage.NewJsonlSink(out))
			}
			if a.pg != nil {
				sinks = append(sinks, a.pg)
			}
			if len(sinks) == 0 {
				return errors.New("nothing to write: set --out or --pg-dsn")
			}

			sel, err := a.selection(ctx, ids)
			if err != nil {
				return err
			}
			if sel.Empty() {
				return errors.New(aggregate.NoticeNoChains)
			}

			a.logger.Info("snapshot start",
				zap.Strings("chains", sel.IDs()),
				zap.String("out", out),
				zap.Bool("postgres", a.pg != nil),
			)
			started := time.Now()

			a.pool.Apply(ctx, sel)
			agg, err := a.engine.FetchAll(ctx)
			if err != nil {
				return err
			}
			for _, failure := range agg.Failures {
				a.logger.Warn("source failed", zap.String("chain", failure.Source.ID), zap.Error(failure.Err))
			}
			if agg.Status == aggregate.StatusError {
				return fmt.Errorf("no chain returned pools: %w", agg.Err())
			}

			for _, sink := range sinks {
				if err := sink.PutPools(ctx, agg.Pools); err != nil {
					return err
				}
			}

			a.logger.Info("snapshot done",
				zap.Int("pools", len(agg.Pools)),
				zap.Int("failures", len(agg.Failures)),
				zap.Duration("elapsed", time.Since(started)),
			)
			return nil
		},
	}

	cmd.Flags().StringSlice("chains", nil, "chain ids to fetch")
	cmd.Flags().String("out", "", "append pools to this JSONL file")
	cmd.Flags().String("pg-dsn", "", "upsert pools into this Postgres database")
	return cmd
}
