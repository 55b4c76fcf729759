package main

import (
	"context"
	"errors"
	"log/slog"
	nethttp "net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"docrag/internal/http"
	"docrag/internal/service"
	"docrag/internal/watch"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and ingest periodically",
	Long: `Starts the HTTP API, runs an ingestion pass of every source and repeats
it every --interval. With --watch, a pass of a single source also runs
whenever files under its root change.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Bool("watch", false, "ingest a source when files under its root change")
	serveCmd.Flags().Duration("interval", 0, "time between periodic passes, 0 disables (default INGEST_INTERVAL)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := cfg.IngestInterval
	if cmd.Flags().Changed("interval") {
		interval, _ = cmd.Flags().GetDuration("interval")
	}
	watchFiles, _ := cmd.Flags().GetBool("watch")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	// Passes triggered over the API must return before a.Close releases
	// the store they write to.
	var passes sync.WaitGroup
	defer func() {
		if !waitPasses(&passes, shutdownTimeout) {
			slog.Warn("Triggered passes still running at shutdown", "timeout", shutdownTimeout)
		}
	}()

	router := http.NewRouter(&http.Deps{
		IngestService: a.ingest,
		VectorStore:   a.vectors,
		DB:            a.db,
		Collection:    cfg.QdrantCollection,
		PassContext:   gctx,
		Passes:        &passes,
	})
	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		slog.Info("Starting API server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("Shutting down API server")
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		runPeriodic(gctx, a.ingest, interval)
		return nil
	})

	if watchFiles {
		w, err := watch.New(gctx, a.sources, func(ctx context.Context, sourceID string) {
			if _, err := a.ingest.IngestSource(ctx, sourceID); err != nil {
				slog.ErrorContext(ctx, "Triggered ingestion failed", "source", sourceID, "error", err)
			}
		})
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	return g.Wait()
}

// waitPasses blocks until wg is released or timeout elapses and reports
// whether wg was released.
func waitPasses(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// runPeriodic runs a pass of every source now and then once per interval
// until ctx is done. A non-positive interval runs the first pass only.
func runPeriodic(ctx context.Context, svc service.IngestService, interval time.Duration) {
	pass := func() {
		slog.Info("Starting ingestion of all sources")
		if _, err := svc.IngestAll(ctx); err != nil {
			slog.Error("Ingestion completed with errors", "error", err)
		}
	}

	pass()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pass()
		}
	}
}
