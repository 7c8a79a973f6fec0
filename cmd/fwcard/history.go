package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ufgtools/fwcard/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent inject and flash runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Recent(ctx, historyLimit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			status := r.Status
			if r.Status == "failed" && r.Error != "" {
				status = fmt.Sprintf("failed (%s)", r.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\n",
				r.StartedAt.Local().Format(time.RFC3339), r.Kind, r.Target, r.Image, status)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs to show")
}
