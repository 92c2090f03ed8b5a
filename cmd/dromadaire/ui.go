package main

import (
	"context"

	"github.com/spf13/cobra"

	"dromadaire/internal/tui"
)

func newUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Browse pools interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd, appOptions{logToFile: true})
			if err != nil {
				return err
			}
			defer a.Close()

			// Cancelled before Close so in-flight fetches do not hold up exit.
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			fallback, err := a.fallback()
			if err != nil {
				return err
			}
			if err := a.ctrl.Restore(ctx, fallback); err != nil {
				return err
			}
			return tui.Run(ctx, a.ctrl)
		},
	}
}
