package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/realtime"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/session"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web API",
	Long: `Start the HTTP server. It exposes the capture session, one-shot
picture matching, the citizen registry and the sighting log under /api,
a websocket event stream under /ws and Prometheus metrics under /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Listen host (overrides config)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides config)")
	serveCmd.Flags().String("device", "", "Camera device or video file (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Server.Host = host
	}
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Server.Port = port
	}
	device := cfg.Camera.Device
	if d := mustGetString(cmd, "device"); d != "" {
		device = d
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.loadRecognizer(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(originChecker(cfg.Server.AllowedOrigins))
	a.recorder.OnRecord(func(s storage.Sighting) {
		hub.Notify(session.EventSightingRecorded, s)
	})
	sup := a.supervisor(device, hub)

	srv := &web.Server{
		Sessions:       sup,
		Registry:       a.registry,
		NewOneShot:     func() web.OneShotRunner { return a.oneShot(cfg.Session.RecordOneShot) },
		Realtime:       hub.ServeWS,
		Metrics:        promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{}),
		ResultsDir:     cfg.Storage.ResultsDir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logging.Infof("Listening on http://%s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Shutting down")

		if err := sup.Stop(); err != nil && session.CodeOf(err) != session.CodeNotRunning {
			logging.WithError(err).Warn("Failed to stop capture session")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// originChecker accepts websocket upgrades from the configured origins.
// Requests without an Origin header come from non-browser clients.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return nil
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
