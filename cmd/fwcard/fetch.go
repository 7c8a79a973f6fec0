package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ufgtools/fwcard/internal/fetch"
)

var fetchOutDir string

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download a config package archive",
	Long: `Fetch downloads a config package archive from a ready URL and prints
the local path. If the configured token environment variable is set, its
value is sent as a bearer token.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		dir := fetchOutDir
		if dir == "" {
			dir = cfg.Fetch.Dir
		}
		if dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}

		c := fetch.New(logrus.StandardLogger())
		if cfg.Fetch.TokenEnv != "" {
			c.Token = os.Getenv(cfg.Fetch.TokenEnv)
		}

		dest, err := c.Download(ctx, args[0], dir)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), dest)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutDir, "output-dir", "o", "", "directory to download into (default from config)")
}
