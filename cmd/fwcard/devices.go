package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ufgtools/fwcard/internal/devices"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List candidate removable devices",
	Long: `Devices prints one tab-separated line per removable device:
path, size, manufacturer.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		found, err := devices.List(ctx)
		if err != nil {
			return err
		}
		for _, d := range found {
			fmt.Fprintln(cmd.OutOrStdout(), d.Row())
		}
		return nil
	},
}
