package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sander-remitly/packer/internal/cache"
	"github.com/sander-remitly/packer/internal/knapsack"
	"github.com/sander-remitly/packer/internal/logger"
	"github.com/sander-remitly/packer/internal/models"
	"github.com/sander-remitly/packer/internal/packer"
	"github.com/sander-remitly/packer/internal/parser"
	"github.com/sander-remitly/packer/internal/repo"
	"github.com/sander-remitly/packer/internal/validation"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// maxBodyBytes bounds documents posted to /api/pack
	maxBodyBytes = 1 << 20

	defaultHistoryLimit = 20
)

// Handler handles HTTP requests
type Handler struct {
	repo      *repo.Repository
	cache     *cache.Cache
	opts      []packer.Option
	scale     int
	startTime time.Time
}

// NewHandler creates a new API handler. opts are applied to every packer the
// handler builds; the validator always comes from the stored limits.
func NewHandler(repository *repo.Repository, cacheInstance *cache.Cache, opts ...packer.Option) *Handler {
	return &Handler{
		repo:      repository,
		cache:     cacheInstance,
		opts:      opts,
		scale:     packer.New(opts...).Scale(),
		startTime: time.Now(),
	}
}

// SetupRouter configures the Chi router with all routes
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/solve", h.HandleSolve)
		r.Post("/pack", h.HandlePack)
		r.Get("/examples", h.HandleExamples)
		r.Get("/history", h.HandleHistory)
		r.Post("/history/clear", h.HandleClearHistory)
		r.Get("/health", h.HandleHealth)
		r.Get("/limits", h.HandleGetLimits)
		r.Post("/limits", h.HandleUpdateLimits)

		// Cache endpoints
		r.Get("/cache/stats", h.HandleCacheStats)
		r.Post("/cache/clear", h.HandleCacheClear)
	})

	return r
}

// newPacker builds a packer that checks against the stored limits
func (h *Handler) newPacker() (*packer.Packer, *validation.Validator, error) {
	limits, err := h.repo.GetLimits()
	if err != nil {
		return nil, nil, err
	}

	v := validation.New(limits)
	opts := append([]packer.Option{packer.WithLogger(logger.Log)}, h.opts...)
	opts = append(opts, packer.WithValidator(v))

	return packer.New(opts...), v, nil
}

// HandleSolve solves a single package sent as JSON
func (h *Handler) HandleSolve(w http.ResponseWriter, r *http.Request) {
	var req models.SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	pkg := models.Package{Capacity: req.Capacity, Items: req.Items}

	p, v, err := h.newPacker()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get limits", err)
		return
	}

	// Report every broken constraint, not only the first
	if err := v.ValidateAll(pkg); err != nil {
		respondError(w, http.StatusBadRequest, "Package violates constraints", err)
		return
	}

	// Try to get from cache first
	if cached, found := h.cache.Get(pkg); found {
		logger.Log.Info("Cache HIT",
			zap.Int("capacity", pkg.Capacity),
			zap.Int("items", len(pkg.Items)),
			zap.Int("hit_count", cached.HitCount),
			zap.Duration("ttl", cached.CurrentTTL),
		)

		response := models.SolveResponse{
			Capacity:          cached.Package.Capacity,
			Items:             cached.Package.Items,
			Selected:          nonNil(cached.Selected),
			Output:            models.FormatSelection(cached.Selected),
			TotalCost:         cached.TotalCost,
			TotalWeight:       cached.TotalWeight,
			CalculationTimeMs: cached.CalculationTimeMs,
			Cached:            true,
			CacheTTL:          cached.CurrentTTL.String(),
			CacheHitCount:     cached.HitCount,
		}

		respondJSON(w, http.StatusOK, response)
		return
	}

	logger.Log.Info("Cache MISS",
		zap.Int("capacity", pkg.Capacity),
		zap.Int("items", len(pkg.Items)),
	)

	start := time.Now()
	result, err := p.Solve(pkg)
	duration := time.Since(start)
	if err != nil {
		respondError(w, statusFor(err), "Failed to solve package", err)
		return
	}

	if err := h.cache.Set(pkg, result.Selected, result.TotalCost, result.TotalWeight, duration.Milliseconds()); err != nil {
		logger.Log.Warn("Failed to cache result", zap.Error(err))
	}

	if err := h.repo.SaveSolution(pkg, result.Selected, result.TotalCost, result.TotalWeight); err != nil {
		logger.Log.Warn("Failed to save solution", zap.Error(err))
		// Don't fail the request, just log
	}

	response := models.SolveResponse{
		Capacity:          pkg.Capacity,
		Items:             pkg.Items,
		Selected:          nonNil(result.Selected),
		Output:            result.String(),
		TotalCost:         result.TotalCost,
		TotalWeight:       result.TotalWeight,
		CalculationTimeMs: duration.Milliseconds(),
		Cached:            false,
	}

	respondJSON(w, http.StatusOK, response)
}

// HandlePack solves a whole document in the line format
func (h *Handler) HandlePack(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, _, err := h.newPacker()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get limits", err)
		return
	}

	start := time.Now()
	results, err := p.Pack(r.Context(), bytes.NewReader(body))
	duration := time.Since(start)
	if err != nil {
		respondError(w, statusFor(err), "Failed to pack input", err)
		return
	}

	lines := make([]models.LineResult, len(results))
	for i, res := range results {
		lines[i] = models.LineResult{
			Line:        res.Line,
			Capacity:    res.Package.Capacity,
			Selected:    nonNil(res.Selected),
			Output:      res.String(),
			TotalCost:   res.TotalCost,
			TotalWeight: res.TotalWeight,
		}

		if err := h.repo.SaveSolution(res.Package, res.Selected, res.TotalCost, res.TotalWeight); err != nil {
			logger.Log.Warn("Failed to save solution", zap.Int("line", res.Line), zap.Error(err))
		}
	}

	response := models.PackResponse{
		Results:           lines,
		Output:            packer.Format(results),
		CalculationTimeMs: duration.Milliseconds(),
	}

	respondJSON(w, http.StatusOK, response)
}

// HandleExamples returns the sample packages
func (h *Handler) HandleExamples(w http.ResponseWriter, r *http.Request) {
	response := models.ExamplesResponse{
		Examples: models.GetExamples(),
	}
	respondJSON(w, http.StatusOK, response)
}

// HandleHistory returns recently solved packages. ?limit=N overrides the page size.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	history, err := h.repo.GetHistory(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get history", err)
		return
	}

	if history == nil {
		history = []models.HistoryEntry{}
	}

	response := models.HistoryResponse{
		History: history,
		Count:   len(history),
	}
	respondJSON(w, http.StatusOK, response)
}

// HandleClearHistory clears all solution history
func (h *Handler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.ClearHistory(); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to clear history", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "History cleared"})
}

// HandleHealth returns service health status
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	if err := h.repo.Ping(); err != nil {
		dbStatus = "disconnected"
	}

	uptime := time.Since(h.startTime).Round(time.Second).String()

	response := models.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  dbStatus,
		Uptime:    uptime,
	}

	respondJSON(w, http.StatusOK, response)
}

// HandleGetLimits returns the active package limits
func (h *Handler) HandleGetLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := h.repo.GetLimits()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get limits", err)
		return
	}

	response := models.LimitsResponse{
		Limits:    limits,
		UpdatedAt: time.Now(),
	}

	respondJSON(w, http.StatusOK, response)
}

// HandleUpdateLimits replaces the package limits
func (h *Handler) HandleUpdateLimits(w http.ResponseWriter, r *http.Request) {
	var limits models.Limits
	if err := json.NewDecoder(r.Body).Decode(&limits); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := validation.CheckLimits(limits, h.scale); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid limits", err)
		return
	}

	if err := h.repo.SetLimits(limits); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update limits", err)
		return
	}

	logger.Log.Info("Limits updated",
		zap.Int("max_capacity", limits.MaxCapacity),
		zap.Int("max_items", limits.MaxItems),
		zap.Float64("max_weight", limits.MaxWeight),
		zap.Float64("max_cost", limits.MaxCost),
	)

	response := models.LimitsResponse{
		Limits:    limits,
		UpdatedAt: time.Now(),
		Message:   "Limits updated successfully",
	}

	respondJSON(w, http.StatusOK, response)
}

// HandleCacheStats returns cache statistics
func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.GetStats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get cache stats", err)
		return
	}

	response := models.CacheStatsResponse{
		Enabled:    h.cache.IsEnabled(),
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		HitRate:    stats.HitRate,
		TotalKeys:  stats.TotalKeys,
		MemoryUsed: stats.MemoryUsed,
		Uptime:     stats.Uptime,
	}

	respondJSON(w, http.StatusOK, response)
}

// HandleCacheClear clears all cache entries
func (h *Handler) HandleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Clear(); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to clear cache", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Cache cleared successfully"})
}

// Helper functions

// statusFor maps input errors to 400 and everything else to 500
func statusFor(err error) int {
	switch {
	case errors.Is(err, parser.ErrSyntax),
		errors.Is(err, validation.ErrConstraint),
		errors.Is(err, knapsack.ErrInvalidProblem):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.Error("Error encoding JSON response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		fields := []zap.Field{
			zap.String("message", message),
			zap.Int("status", status),
			zap.Error(err),
		}
		if status >= http.StatusInternalServerError {
			logger.Log.Error("Request error", fields...)
		} else {
			logger.Log.Warn("Request rejected", fields...)
		}
	}

	response := models.ErrorResponse{
		Error: message,
		Code:  status,
	}

	if err != nil {
		response.Message = err.Error()
		if errs := multierr.Errors(err); len(errs) > 1 {
			for _, e := range errs {
				response.Details = append(response.Details, e.Error())
			}
		}
	}

	respondJSON(w, status, response)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
