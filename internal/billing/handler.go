package billing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gescom-app/gescom/internal/documents"
	"github.com/gescom-app/gescom/internal/platform/httpx"
	"github.com/gescom-app/gescom/internal/tax"
)

// Handler serves the settlement API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler creates a billing handler.
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

// MountRoutes registers the settlement endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices/{id}", func(r chi.Router) {
		r.Get("/balance", h.balance)
		r.Get("/payments", h.listPayments)
		r.Post("/payments", h.applyPayment)
		r.Post("/cancel", h.cancel)
		r.Post("/credit-notes", h.createCreditNote)
	})
	r.Post("/payments/{id}/void", h.voidPayment)
	r.Get("/revenue", h.revenue)
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req ApplyPaymentInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	req.InvoiceID = invoiceID
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	payment, err := h.service.ApplyPayment(r.Context(), req)
	if err != nil {
		h.respondError(w, "apply payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) voidPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := h.parseID(w, r)
	if !ok {
		return
	}
	payment, err := h.service.VoidPayment(r.Context(), paymentID)
	if err != nil {
		h.respondError(w, "void payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.parseID(w, r)
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(r.Context(), invoiceID)
	if err != nil {
		h.respondError(w, "list payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.parseID(w, r)
	if !ok {
		return
	}
	balance, err := h.service.Balance(r.Context(), invoiceID)
	if err != nil {
		h.respondError(w, "invoice balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.parseID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.CancelInvoice(r.Context(), invoiceID)
	if err != nil {
		h.respondError(w, "cancel invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) createCreditNote(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req CreateCreditNoteInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	req.InvoiceID = invoiceID
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	note, err := h.service.CreateCreditNote(r.Context(), req)
	if err != nil {
		h.respondError(w, "create credit note", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, note)
}

func (h *Handler) revenue(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Revenue(r.Context())
	if err != nil {
		h.respondError(w, "revenue summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, documents.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotPayable),
		errors.Is(err, ErrNotCancellable),
		errors.Is(err, ErrNotCreditable),
		errors.Is(err, ErrInvoiceHasPayments),
		errors.Is(err, ErrPaymentAlreadyVoid):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNotInvoice),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, documents.ErrInvalidQuantity),
		errors.Is(err, tax.ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
