package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ufgtools/fwcard/internal/flash"
	"github.com/ufgtools/fwcard/internal/platform"
)

var flashCmd = &cobra.Command{
	Use:   "flash <device> <image>",
	Short: "Write an image onto a removable device and verify it",
	Long: `Flash unmounts every partition of the target device, writes the image
with a raw sequential copy and flushes it to stable storage. Where the
platform supports reading the device back, the first image-length bytes are
compared byte-for-byte. Progress lines go to stderr; stdout carries
FLASH_IMAGE_SIZE_BYTES=<n> and a final OK.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		ops, err := platform.New()
		if err != nil {
			return err
		}

		p := flash.New(ops)
		p.Out = cmd.OutOrStdout()
		p.Progress = cmd.ErrOrStderr()
		if cfg.Flash.ProgressIntervalSeconds > 0 {
			p.ProgressInterval = time.Duration(cfg.Flash.ProgressIntervalSeconds) * time.Second
		}

		store := openHistory()
		var runID string
		if store != nil {
			defer store.Close()
			runID, _ = store.Start(ctx, "flash", args[0], args[1])
		}

		err = p.Run(ctx, args[0], args[1])
		if store != nil && runID != "" {
			_ = store.Finish(ctx, runID, err)
		}
		return err
	},
}
