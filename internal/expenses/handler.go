package expenses

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquatrack/aquatrack/internal/platform/httpx"
)

// Handler exposes expense tracking over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers expense routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/expenses", h.List)
	r.Post("/expenses", h.Create)
	r.Post("/expenses/cogs", h.RecordCOGS)
	r.Get("/expenses/today", h.today)
	r.Get("/expenses/yesterday", h.yesterday)
	r.Get("/expenses/last-7-days", h.lastSevenDays)
	r.Get("/expenses/{id}", h.Get)
	r.Patch("/expenses/{id}", h.Update)
	r.Delete("/expenses/{id}", h.Delete)
	r.Post("/expenses/{id}/restore", h.Restore)
}

type createRequest struct {
	Amount        *float64 `json:"amount" validate:"required,gte=0"`
	Description   string   `json:"description" validate:"required"`
	Date          *string  `json:"date"`
	PaymentMethod string   `json:"payment_method"`
	Category      *string  `json:"category"`
}

func (h *Handler) decodeCreate(w http.ResponseWriter, r *http.Request) (CreateInput, bool) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return CreateInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return CreateInput{}, false
	}
	input := CreateInput{
		Amount:        *req.Amount,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
		Category:      req.Category,
	}
	if req.Date != nil {
		d, ok := parseDay(*req.Date)
		if !ok {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be in YYYY-MM-DD format")
			return CreateInput{}, false
		}
		input.Date = &d
	}
	return input, true
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}
	expense, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create expense", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, expense)
}

func (h *Handler) RecordCOGS(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}
	expense, err := h.service.RecordCOGS(r.Context(), input)
	if err != nil {
		h.logger.Error("record cogs expense", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, expense)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		Category:       q.Get("category"),
		IncludeDeleted: q.Get("include_deleted") == "true",
	}
	if raw := q.Get("date_from"); raw != "" {
		d, ok := parseDay(raw)
		if !ok {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date_from")
			return
		}
		filter.DateFrom = d
	}
	if raw := q.Get("date_to"); raw != "" {
		d, ok := parseDay(raw)
		if !ok {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date_to")
			return
		}
		filter.DateTo = d
	}
	expenses, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list expenses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": expenses})
}

func (h *Handler) today(w http.ResponseWriter, r *http.Request) {
	h.listDay(w, r, 0)
}

func (h *Handler) yesterday(w http.ResponseWriter, r *http.Request) {
	h.listDay(w, r, 1)
}

func (h *Handler) listDay(w http.ResponseWriter, r *http.Request, offset int) {
	expenses, day, err := h.service.ListDay(r.Context(), offset)
	if err != nil {
		h.logger.Error("list expenses for day", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"date": day, "data": expenses})
}

func (h *Handler) lastSevenDays(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.service.ListRecent(r.Context(), 7)
	if err != nil {
		h.logger.Error("list recent expenses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": expenses})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	expense, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, expense)
}

type updateRequest struct {
	Amount        *float64 `json:"amount" validate:"omitempty,gte=0"`
	Description   *string  `json:"description"`
	Date          *string  `json:"date"`
	PaymentMethod *string  `json:"payment_method"`
	Category      *string  `json:"category"`
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
	input := UpdateInput{
		Amount:        req.Amount,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
		Category:      req.Category,
	}
	if req.Date != nil {
		d, ok := parseDay(*req.Date)
		if !ok {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be in YYYY-MM-DD format")
			return
		}
		input.Date = &d
	}
	expense, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.logger.Error("update expense", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, expense)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete expense", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Restore(r.Context(), id); err != nil {
		h.logger.Error("restore expense", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "restored"})
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func parseDay(raw string) (time.Time, bool) {
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
