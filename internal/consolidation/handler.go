package consolidation

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gescom-app/gescom/internal/documents"
	"github.com/gescom-app/gescom/internal/platform/httpx"
)

// ConsolidateRequest selects delivery notes to merge into one invoice.
type ConsolidateRequest struct {
	SourceIDs []int64 `json:"source_ids" validate:"required,min=1,dive,gt=0"`
}

// Handler serves the consolidation API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler creates a consolidation handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers the consolidation endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/consolidations", h.consolidate)
}

func (h *Handler) consolidate(w http.ResponseWriter, r *http.Request) {
	var req ConsolidateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, err := h.service.Consolidate(r.Context(), req.SourceIDs)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, documents.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrEmptySelection),
		errors.Is(err, ErrDuplicateSource):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrCustomerMismatch),
		errors.Is(err, ErrKindMismatch),
		errors.Is(err, ErrAlreadyConsolidated):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("consolidation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
