package payments

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquatrack/aquatrack/internal/platform/httpx"
)

// Handler exposes the payment ledger over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers payment routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/retail-sales/{id}/payments", h.Record)
	r.Get("/retail-sales/{id}/payments", h.ListForSale)
	r.Post("/credit-sales/{id}/payments", h.RecordCredit)
	r.Get("/customer-payments", h.List)
	r.Get("/customer-payments/{id}", h.Get)
	r.Patch("/customer-payments/{id}", h.Update)
	r.Delete("/customer-payments/{id}", h.Delete)
}

type recordRequest struct {
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	PaymentMethod string  `json:"payment_method" validate:"required"`
	Date          *string `json:"date"`
	RetailSaleID  *int64  `json:"retail_sale_id"`
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, false)
}

func (h *Handler) RecordCredit(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, true)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request, creditOnly bool) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := RecordInput{Amount: req.Amount, PaymentMethod: req.PaymentMethod, CreditOnly: creditOnly}
	if req.Date != nil {
		d, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be in YYYY-MM-DD format")
			return
		}
		input.Date = &d
	}
	payment, err := h.service.Record(r.Context(), id, input)
	if err != nil {
		h.logger.Error("record payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) ListForSale(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	payments, err := h.service.List(r.Context(), Filter{SaleID: &id})
	if err != nil {
		h.logger.Error("list sale payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter Filter
	if raw := q.Get("sale_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale_id")
			return
		}
		filter.SaleID = &id
	}
	var from, to time.Time
	if raw := q.Get("date_from"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date_from")
			return
		}
		from = d
	}
	if raw := q.Get("date_to"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date_to")
			return
		}
		to = d
	}
	filter.Start, filter.End = h.service.clock.RangeUTC(from, to)

	payments, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	payment, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

type updateRequest struct {
	Amount        *float64 `json:"amount" validate:"omitempty,gt=0"`
	PaymentMethod *string  `json:"payment_method"`
	Date          *string  `json:"date"`
	RetailSaleID  *int64   `json:"retail_sale_id"`
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.RetailSaleID != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "cannot reassign payment to another sale")
		return
	}
	input := UpdateInput{Amount: req.Amount, PaymentMethod: req.PaymentMethod}
	if req.Date != nil {
		d, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be in YYYY-MM-DD format")
			return
		}
		input.Date = &d
	}
	payment, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.logger.Error("update payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}
