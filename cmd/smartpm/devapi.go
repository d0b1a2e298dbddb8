package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tgienger/smartpm/internal/config"
	"github.com/tgienger/smartpm/internal/db"
	"github.com/tgienger/smartpm/internal/devapi"
)

func devAPICmd() *cobra.Command {
	var addr string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "devapi",
		Short: "Run a local stand-in for the indexing service and table store",
		Long: `Run a local stand-in for the indexing service and table store.

It serves /index/... and /rest/v1/... from a sqlite file, so the client can
run without the hosted services. Point api_url and store.url at it:

  smartpm devapi --addr :8000
  SMARTPM_STORE=postgrest SMARTPM_STORE_URL=http://localhost:8000 smartpm`,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

			if dbPath == "" {
				dir, err := config.DataDir()
				if err != nil {
					return err
				}
				dbPath = filepath.Join(dir, "devapi.db")
			}

			database, err := db.New(dbPath)
			if err != nil {
				logger.Error("unable to open database", slog.String("error", err.Error()))
				return err
			}
			defer database.Close()

			srv := devapi.New(database, devapi.StubEnricher{}, logger)
			httpServer := &http.Server{
				Addr:    addr,
				Handler: srv.Engine(),
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("starting server", slog.String("addr", httpServer.Addr), slog.String("db", dbPath))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
					serveErr <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-quit:
			case err := <-serveErr:
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(ctx); err != nil {
				logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			}

			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.EnvOrDefault("SMARTPM_DEVAPI_ADDR", ":8000"), "HTTP listen address")
	cmd.Flags().StringVar(&dbPath, "db", config.EnvOrDefault("SMARTPM_DEVAPI_DB", ""), "Path to sqlite database file")
	return cmd
}
