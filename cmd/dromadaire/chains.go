package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dromadaire/internal/registry"
)

func newChainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List supported chains and mark the selected ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			sel, err := a.selection(cmd.Context(), nil)
			if err != nil {
				return err
			}
			return printChains(a, sel)
		},
	}
}

func printChains(a *app, sel registry.Selection) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEL\tID\tNAME\tRPC\tSUGAR")
	for _, src := range registry.Catalog() {
		mark := ""
		if sel.Contains(src.ID) {
			mark = "*"
		}
		sugar := a.cfg.Sugar[src.ID]
		if sugar == "" {
			sugar = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, src.ID, src.Name, a.cfg.RPC[src.ID], sugar)
	}
	return w.Flush()
}
