// Package server exposes the upload, cancel and status API for enrichment
// jobs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/skiptrace/internal/job"
	"github.com/sells-group/skiptrace/internal/model"
	"github.com/sells-group/skiptrace/internal/store"
)

// Jobs is the job API the handlers drive. *job.Service satisfies it.
type Jobs interface {
	Submit(ctx context.Context, fileName string, data []byte) (*model.Job, error)
	Cancel(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, filter store.JobFilter) ([]model.Job, error)
}

// Config configures the router.
type Config struct {
	AllowedOrigins []string
	// MaxUploadBytes caps the multipart body. Default: 32 MiB.
	MaxUploadBytes int64
}

type handler struct {
	jobs Jobs
	cfg  Config
}

// NewRouter returns the HTTP handler for the API.
func NewRouter(jobs Jobs, cfg Config) http.Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	h := &handler{jobs: jobs, cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Route("/api/files", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.upload)
		r.Post("/{id}/cancel", h.cancel)
		r.Get("/{id}/status", h.status)
		r.Get("/{id}/download", h.download)
	})
	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadResponse struct {
	Success bool       `json:"success"`
	Result  *model.Job `json:"result"`
	Message string     `json:"message"`
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: "No file uploaded."})
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: "Could not read the uploaded file."})
		return
	}

	j, err := h.jobs.Submit(r.Context(), path.Base(header.Filename), data)
	switch {
	case errors.Is(err, job.ErrInvalidUpload):
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: "Required fields are not supplied"})
		return
	case err != nil:
		zap.L().Error("server: upload failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, uploadResponse{Message: "Oops there is an Error saving to DB"})
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Success: true, Result: j, Message: "Document created in DB successfully."})
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	err := h.jobs.Cancel(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Document not found")
	case errors.Is(err, store.ErrCompleted):
		writeError(w, http.StatusBadRequest, "Document has already been processed")
	case err != nil:
		zap.L().Error("server: cancel failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

type statusResponse struct {
	Status        model.JobStatus `json:"status"`
	TotalRows     int             `json:"totalRows"`
	RowsProcessed int             `json:"rowsProcessed"`
	CompletedAt   *time.Time      `json:"completedAt"`
	FileContent   string          `json:"fileContent"`
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	j, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:        j.Status,
		TotalRows:     j.TotalRows,
		RowsProcessed: j.RowsProcessed,
		CompletedAt:   j.CompletedAt,
		FileContent:   j.Content,
	})
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.List(r.Context(), store.JobFilter{})
	if err != nil {
		zap.L().Error("server: list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	writeJSON(w, http.StatusOK, map[string][]model.Job{"data": jobs})
}

func (h *handler) download(w http.ResponseWriter, r *http.Request) {
	j, ok := h.lookup(w, r)
	if !ok {
		return
	}
	name := strings.TrimSuffix(j.FileName, path.Ext(j.FileName))
	if name == "" {
		name = j.ID
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, j.Content)
}

func (h *handler) lookup(w http.ResponseWriter, r *http.Request) (*model.Job, bool) {
	j, err := h.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Document not found")
		return nil, false
	}
	if err != nil {
		zap.L().Error("server: get job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return nil, false
	}
	return j, true
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
