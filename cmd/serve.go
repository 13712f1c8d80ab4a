package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sameday-cli/internal/observability"
	"github.com/KaramelBytes/sameday-cli/internal/server"
)

var (
	serveAddr            string
	serveShutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis over an HTTP JSON API",
	Long: `Serve GET /api/range, GET /api/analyze?date=YYYY-MM-DD, POST /api/upload,
GET /healthz and GET /metrics. The configured data file, if any, is loaded at
startup; an upload replaces the current table.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := settings()
		addr := c.HTTPAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		log := logger
		if log == nil {
			log = observability.Discard()
		}

		metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
		sess := newSession(metrics)
		if c.DataFile != "" {
			if _, err := loadDataset(sess, c.DataFile); err != nil {
				log.Warn("initial data file not loaded", "path", c.DataFile, "error", err)
			}
		}

		srv := server.New(sess, server.Options{
			Addr:   addr,
			Report: reportOptions(),
			Logger: log,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
		}
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown error", "error", err)
		}
		log.Info("shutdown complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides http_addr)")
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown deadline")
}
