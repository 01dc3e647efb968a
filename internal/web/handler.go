package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sander-remitly/packer/internal/logger"
	"github.com/sander-remitly/packer/internal/models"
	"go.uber.org/zap"
)

//go:embed templates/* static/*
var content embed.FS

// Handler handles web UI requests
type Handler struct {
	templates *template.Template
}

// pageData is what the index template renders
type pageData struct {
	Examples []models.Example
	Limits   models.Limits
}

// NewHandler creates a new web handler
func NewHandler() (*Handler, error) {
	// Parse templates
	tmpl, err := template.ParseFS(content, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Handler{
		templates: tmpl,
	}, nil
}

// SetupRoutes adds web UI routes to the router
func (h *Handler) SetupRoutes(r chi.Router) error {
	staticFS, err := fs.Sub(content, "static")
	if err != nil {
		return err
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	r.Get("/", h.HandleIndex)
	return nil
}

// HandleIndex serves the main UI page, prefilled with the sample inputs
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Examples: models.GetExamples(),
		Limits:   models.DefaultLimits(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		logger.Log.Error("Error rendering template", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
