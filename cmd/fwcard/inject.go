package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ufgtools/fwcard/internal/inject"
	"github.com/ufgtools/fwcard/internal/platform"
)

var injectCmd = &cobra.Command{
	Use:   "inject <base-image> <config-package>",
	Short: "Copy a base image and add a config package to its first partition",
	Long: `Inject copies the base image into a scratch workspace, attaches the copy
as a block device, mounts its first partition and places the config package
in the filesystem root. On success the path of the prepared image is the
only line written to stdout; the caller owns that file.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		ops, err := platform.New()
		if err != nil {
			return err
		}

		p := inject.New(ops)
		p.Retry = inject.RetryPolicy{
			Attempts: cfg.Inject.RetryAttempts,
			Delay:    time.Duration(cfg.Inject.RetryDelaySeconds) * time.Second,
			Sleep:    time.Sleep,
		}

		store := openHistory()
		var runID string
		if store != nil {
			defer store.Close()
			runID, _ = store.Start(ctx, "inject", args[1], args[0])
		}

		result, err := p.Run(ctx, args[0], args[1])
		if store != nil && runID != "" {
			_ = store.Finish(ctx, runID, err)
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), result)
		return nil
	},
}
