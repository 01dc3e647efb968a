package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sander-remitly/packer/internal/api"
	"github.com/sander-remitly/packer/internal/cache"
	"github.com/sander-remitly/packer/internal/logger"
	"github.com/sander-remitly/packer/internal/repo"
	"github.com/sander-remitly/packer/internal/validation"
	"go.uber.org/zap"
)

// openRepository makes sure the data directory exists and opens the database
func openRepository(path string) (*repo.Repository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return repo.New(path)
}

// runServer starts the API, lets extend add more routes, and blocks until ctx
// is cancelled.
func runServer(ctx context.Context, name string, extend func(*chi.Mux) error) {
	logger.Initialize(logger.WithVerbose(verbose))
	defer logger.Sync()

	repository, err := openRepository(dbPath)
	if err != nil {
		logger.Log.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repository.Close()

	// Refuse to start on stored limits that are unusable at this scale
	limits, err := repository.GetLimits()
	if err != nil {
		logger.Log.Fatal("Failed to get limits", zap.Error(err))
	}
	if err := validation.CheckLimits(limits, scale); err != nil {
		logger.Log.Fatal("Stored limits are invalid", zap.Error(err))
	}
	logger.Log.Info("Package limits",
		zap.Int("max_capacity", limits.MaxCapacity),
		zap.Int("max_items", limits.MaxItems),
		zap.Float64("max_weight", limits.MaxWeight),
		zap.Float64("max_cost", limits.MaxCost),
	)

	// Initialize cache
	cacheInstance := cache.NewCache()
	defer cacheInstance.Close()

	// Setup API handler
	handler := api.NewHandler(repository, cacheInstance, packerOptions()...)
	router := handler.SetupRouter()

	if extend != nil {
		if err := extend(router); err != nil {
			logger.Log.Fatal("Failed to set up routes", zap.Error(err))
		}
	}

	// Create server
	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Log.Info(name+" starting",
			zap.String("url", fmt.Sprintf("http://localhost%s", addr)),
			zap.String("api", fmt.Sprintf("http://localhost%s/api", addr)),
			zap.String("health", fmt.Sprintf("http://localhost%s/api/health", addr)),
			zap.Int("workers", workers),
			zap.Int("scale", scale),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	logger.Log.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	logger.Log.Info("Server stopped")
}
