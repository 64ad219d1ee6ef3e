package cmd

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/username/portafolio/backend/src/config"
	"github.com/username/portafolio/backend/src/database"
	"github.com/username/portafolio/backend/src/handlers"
	"github.com/username/portafolio/backend/src/logger"
	"github.com/username/portafolio/backend/src/repository"
	"github.com/username/portafolio/backend/src/services"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				config.Cfg.Port = port
			}
			logger.L.Info("Portafolio backend server starting...")

			logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
			database.InitDB(config.Cfg.DatabasePath)
			defer database.DB.Close()
			logger.L.Info("Database initialized successfully.")

			return runServer(cmd.Context(), newServer(database.DB, config.Cfg))
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "override PORT")
	return cmd
}

// newServer wires storage, parsers, service and routes into an http.Server.
func newServer(db *sql.DB, cfg *config.AppConfig) *http.Server {
	logger.L.Info("Initializing report cache...", "ttl", cfg.SummaryCacheTTL)
	reportCache := cache.New(cfg.SummaryCacheTTL, services.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...")
	uploadService := services.NewUploadService(repository.NewDataPointRepository(db), newDispatcher(), reportCache, cfg.SummaryCacheTTL)
	uploadHandler := handlers.NewUploadHandler(uploadService, cfg.MaxUploadSizeBytes, cfg.SupportedBrokers)

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	router := handlers.NewRouter(uploadHandler,
		handlers.CORSMiddleware(cfg.AllowedOrigins),
		handlers.RateLimitMiddleware(limiter),
		handlers.RequestLoggerMiddleware,
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// runServer serves until ctx is cancelled, then drains in-flight requests.
func runServer(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("Server starting", "address", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.L.Error("Failed to start server", "error", err)
		return err
	case <-ctx.Done():
	}

	logger.L.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.L.Info("Server stopped gracefully.")
	return nil
}
