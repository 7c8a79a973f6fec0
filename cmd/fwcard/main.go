// fwcard prepares and flashes firmware cards: it injects host-specific
// config packages into base disk images and writes the result onto
// removable devices with verification.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ufgtools/fwcard/internal/config"
	"github.com/ufgtools/fwcard/internal/history"
)

var (
	cfgPath string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "fwcard",
	Short:        "Prepare and flash firmware cards for embedded hosts",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Diagnostics go to stderr; stdout is reserved for machine-readable
		// results (prepared image path, FLASH_IMAGE_SIZE_BYTES, OK).
		logrus.SetOutput(os.Stderr)
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}

		var err error
		cfg, err = config.Load(cfgPath)
		return err
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "/etc/fwcard/config.json", "path to the JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(injectCmd, flashCmd, devicesCmd, fetchCmd, imageCmd, serveCmd, historyCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fwcard:", err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM so pipelines
// unwind and clean up before the process exits.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openHistory opens the run log; a failure only disables recording.
func openHistory() *history.Store {
	if cfg.History.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0755); err != nil {
		logrus.Warnf("history disabled: %v", err)
		return nil
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		logrus.Warnf("history disabled: %v", err)
		return nil
	}
	return store
}
