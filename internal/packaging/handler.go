package packaging

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquatrack/aquatrack/internal/platform/httpx"
)

// Handler exposes packaging entries over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers packaging routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/packaging", h.List)
	r.Post("/packaging", h.Create)
	r.Get("/packaging/{id}", h.Get)
	r.Patch("/packaging/{id}", h.Update)
	r.Delete("/packaging/{id}", h.Delete)
	r.Post("/packaging/{id}/restore", h.Restore)
}

type createRequest struct {
	BottleSizeID int64   `json:"bottle_size_id" validate:"required,gt=0"`
	Cartons      *int    `json:"cartons" validate:"required,gte=0"`
	Date         *string `json:"date"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{BottleSizeID: req.BottleSizeID, Cartons: *req.Cartons}
	if req.Date != nil {
		d, ok := parseDate(*req.Date)
		if !ok {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be in YYYY-MM-DD format")
			return
		}
		input.Date = &d
	}
	view, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create packaging entry", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		IncludeDeleted: q.Get("include_deleted") == "true",
		OrderAsc:       q.Get("order") == "asc",
	}
	if raw := q.Get("bottle_size_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid bottle_size_id")
			return
		}
		filter.BottleSizeID = &id
	}
	if raw := q.Get("date_from"); raw != "" {
		d, ok := parseDate(raw)
		if !ok {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date_from")
			return
		}
		filter.DateFrom = d
	}
	if raw := q.Get("date_to"); raw != "" {
		d, ok := parseDate(raw)
		if !ok {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date_to")
			return
		}
		filter.DateTo = d
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	views, pagination, err := h.service.List(r.Context(), filter, page, perPage)
	if err != nil {
		h.logger.Error("list packaging entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       views,
		"pagination": pagination,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	view, err := h.service.Get(r.Context(), id, includeDeleted)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

type updateRequest struct {
	BottleSizeID *int64  `json:"bottle_size_id" validate:"omitempty,gt=0"`
	Cartons      *int    `json:"cartons" validate:"omitempty,gte=0"`
	Date         *string `json:"date"`
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
	input := UpdateInput{BottleSizeID: req.BottleSizeID, Cartons: req.Cartons}
	if req.Date != nil {
		d, ok := parseDate(*req.Date)
		if !ok {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be in YYYY-MM-DD format")
			return
		}
		input.Date = &d
	}
	view, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.logger.Error("update packaging entry", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete packaging entry", slog.Any("error", err))
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
	view, err := h.service.Restore(r.Context(), id)
	if err != nil {
		h.logger.Error("restore packaging entry", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func parseDate(raw string) (time.Time, bool) {
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
