package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ufgtools/fwcard/internal/devices"
	"github.com/ufgtools/fwcard/internal/mdns"
	"github.com/ufgtools/fwcard/internal/platform"
	"github.com/ufgtools/fwcard/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the card-station web UI daemon",
	Long: `Serve runs the HTTP daemon backing the card-station web UI: device
inventory, inject and flash jobs with progress, and run history. When
enabled, the service is advertised on the local network via Avahi.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		log := logrus.StandardLogger()

		ops, err := platform.New()
		if err != nil {
			return err
		}

		store := openHistory()
		if store != nil {
			defer store.Close()
		}

		h := server.New(devices.List, ops, store, log)

		c := cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORS.AllowedOrigins,
			AllowedMethods:   cfg.Server.CORS.AllowedMethods,
			AllowedHeaders:   cfg.Server.CORS.AllowedHeaders,
			AllowCredentials: cfg.Server.CORS.AllowCredentials,
		})

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      c.Handler(h.Routes()),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		}

		stopAdvert := advertise(log)
		defer stopAdvert()

		errCh := make(chan error, 1)
		go func() {
			log.Infof("listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// advertise publishes the service over mDNS and returns a stop function.
// Advertisement failures are logged, never fatal.
func advertise(log *logrus.Logger) func() {
	if !cfg.MDNS.Enabled {
		return func() {}
	}

	name := cfg.MDNS.ServiceName
	port := cfg.Server.Port

	if cfg.MDNS.UseDBus && mdns.IsAvahiDBusAvailable() {
		pub, err := mdns.PublishHTTPDBus(name, port, cfg.MDNS.TXTRecords...)
		if err == nil {
			log.Infof("advertising %q on port %d via Avahi D-Bus", name, port)
			return func() { _ = pub.Stop() }
		}
		log.Warnf("Avahi D-Bus advertisement failed: %v", err)
	}

	if mdns.IsAvahiAvailable() {
		pub, err := mdns.PublishHTTP(name, port, cfg.MDNS.TXTRecords...)
		if err == nil {
			log.Infof("advertising %q on port %d via avahi-publish-service", name, port)
			return func() { _ = pub.Stop() }
		}
		log.Warnf("Avahi advertisement failed: %v", err)
	}

	log.Warn("mDNS advertisement unavailable, continuing without it")
	return func() {}
}
