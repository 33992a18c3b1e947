package ingest

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vendtrack/vendtrack/internal/observability"
	"github.com/vendtrack/vendtrack/internal/platform/httpx"
	"github.com/vendtrack/vendtrack/internal/shared"
)

// Handler wires HTTP endpoints for CSV ingestion.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	metrics        *observability.Metrics
	maxUploadBytes int64
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{logger: logger, service: service, metrics: metrics, maxUploadBytes: maxUploadBytes}
}

// MountRoutes registers ingestion routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/upload", h.handleUpload)
	r.Get("/uploads", h.handleListUploads)
}

type uploadResponse struct {
	Message string `json:"message"`
	UploadSummary
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no file provided")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no file provided")
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("read upload", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unreadable file payload")
		return
	}

	summary, err := h.service.IngestFile(r.Context(), fileBytes, header.Filename, sess.User())
	if err != nil {
		if errors.Is(err, ErrMalformedCSV) {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		h.logger.Error("ingest file", slog.String("filename", header.Filename), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	if h.metrics != nil {
		status := string(StatusCompleted)
		if summary.ProcessedRows == 0 {
			status = string(StatusFailed)
		}
		h.metrics.ObserveUpload(status, summary.ProcessedRows, summary.FailedRows)
	}

	httpx.JSON(w, http.StatusOK, uploadResponse{
		Message:       "CSV processing completed",
		UploadSummary: summary,
	})
}

func (h *Handler) handleListUploads(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	uploads, err := h.service.ListUploads(r.Context(), limit)
	if err != nil {
		h.logger.Error("list uploads", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"uploads": uploads})
}
