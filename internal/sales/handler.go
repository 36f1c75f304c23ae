package sales

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquatrack/aquatrack/internal/platform/httpx"
)

// Handler exposes the sale engine over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sale routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/retail-sales", h.List)
	r.Post("/retail-sales", h.Create)
	r.Get("/retail-sales/search", h.Search)
	r.Get("/retail-sales/export.csv", h.ExportCSV)
	r.Get("/retail-sales/today", h.Today)
	r.Get("/retail-sales/yesterday", h.Yesterday)
	r.Get("/retail-sales/last-7-days", h.Last7Days)
	r.Get("/retail-sales/by-receipt/{receipt}", h.GetByReceipt)
	r.Get("/retail-sales/{id}", h.Get)
	r.Patch("/retail-sales/{id}", h.Update)
	r.Delete("/retail-sales/{id}", h.Delete)
	r.Post("/retail-sales/{id}/restore", h.Restore)
	r.Post("/retail-sales/{id}/close-dispatch", h.CloseDispatch)
	r.Get("/retail-sales/{id}/items", h.Items)
}

type itemRequest struct {
	BottleSizeID int64    `json:"bottle_size_id" validate:"required,gt=0"`
	Quantity     int      `json:"quantity" validate:"required,gt=0"`
	UnitPrice    *float64 `json:"unit_price" validate:"omitempty,gte=0"`
}

type createRequest struct {
	SaleType     string        `json:"sale_type"`
	CustomerID   *int64        `json:"customer_id" validate:"omitempty,gt=0"`
	CustomerName *string       `json:"customer_name"`
	Notes        *string       `json:"notes"`
	Items        []itemRequest `json:"items" validate:"required,min=1,dive"`
}

func toItemInputs(items []itemRequest) []ItemInput {
	out := make([]ItemInput, 0, len(items))
	for _, it := range items {
		out = append(out, ItemInput{BottleSizeID: it.BottleSizeID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return out
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
	sale, err := h.service.Create(r.Context(), CreateInput{
		SaleType:     req.SaleType,
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		Notes:        req.Notes,
		Items:        toItemInputs(req.Items),
	})
	if err != nil {
		h.logger.Error("create sale", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

// filterFromQuery reads the common listing filters, converting day params to
// UTC bounds.
func (h *Handler) filterFromQuery(r *http.Request) (Filter, bool) {
	q := r.URL.Query()
	filter := Filter{
		Query:          q.Get("q"),
		Receipt:        q.Get("receipt"),
		Customer:       q.Get("customer"),
		SaleType:       q.Get("sale_type"),
		PaidState:      q.Get("is_paid"),
		IncludeDeleted: q.Get("include_deleted") == "true",
		OrderAsc:       q.Get("order") == "asc",
	}
	var from, to time.Time
	if raw := q.Get("date_from"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return Filter{}, false
		}
		from = d
	}
	if raw := q.Get("date_to"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return Filter{}, false
		}
		to = d
	}
	filter.Start, filter.End = h.service.clock.RangeUTC(from, to)

	if raw := q.Get("added_by"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Filter{}, false
		}
		filter.AddedBy = &id
	}
	if raw := q.Get("bottle_size_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Filter{}, false
		}
		filter.BottleSizeID = &id
	}
	if raw := q.Get("min_total"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Filter{}, false
		}
		filter.MinTotal = &v
	}
	if raw := q.Get("max_total"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Filter{}, false
		}
		filter.MaxTotal = &v
	}
	return filter, true
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	h.listWith(w, r)
}

func (h *Handler) listWith(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filterFromQuery(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid filter parameter")
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	sales, pagination, err := h.service.List(r.Context(), filter, page, perPage)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       sales,
		"pagination": pagination,
	})
}

func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	h.dayView(w, r, 0)
}

func (h *Handler) Yesterday(w http.ResponseWriter, r *http.Request) {
	h.dayView(w, r, 1)
}

func (h *Handler) dayView(w http.ResponseWriter, r *http.Request, offset int) {
	start, end, day := h.service.DayWindow(offset)
	sales, err := h.service.ListWithItems(r.Context(), Filter{Start: start, End: end, OrderAsc: offset > 0})
	if err != nil {
		h.logger.Error("list day sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"date": day, "data": sales})
}

func (h *Handler) Last7Days(w http.ResponseWriter, r *http.Request) {
	start, end, from, to := h.service.RecentWindow(7)
	sales, err := h.service.ListWithItems(r.Context(), Filter{Start: start, End: end, OrderAsc: true})
	if err != nil {
		h.logger.Error("list recent sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"start_date": from, "end_date": to, "data": sales})
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filterFromQuery(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid filter parameter")
		return
	}
	includeItems := r.URL.Query().Get("include_items") == "true"

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename=retail_sales.csv`)
	if err := h.service.WriteCSV(r.Context(), w, filter, includeItems); err != nil {
		h.logger.Error("export sales csv", slog.Any("error", err))
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	sale, err := h.service.Get(r.Context(), id, includeDeleted)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) GetByReceipt(w http.ResponseWriter, r *http.Request) {
	receipt := chi.URLParam(r, "receipt")
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	sale, err := h.service.GetByReceipt(r.Context(), receipt, includeDeleted)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

type updateRequest struct {
	Date         *string       `json:"date"`
	CustomerID   *int64        `json:"customer_id" validate:"omitempty,gt=0"`
	CustomerName *string       `json:"customer_name"`
	SaleType     *string       `json:"sale_type"`
	Notes        *string       `json:"notes"`
	Items        []itemRequest `json:"items" validate:"omitempty,dive"`
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
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		SaleType:     req.SaleType,
		Notes:        req.Notes,
	}
	if req.Date != nil {
		d, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be in YYYY-MM-DD format")
			return
		}
		input.Date = &d
	}
	if req.Items != nil {
		input.ReplaceItems = true
		input.Items = toItemInputs(req.Items)
	}
	sale, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.logger.Error("update sale", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete sale", slog.Any("error", err))
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
	sale, err := h.service.Restore(r.Context(), id)
	if err != nil {
		h.logger.Error("restore sale", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

type returnRequest struct {
	BottleSizeID     int64 `json:"bottle_size_id" validate:"required,gt=0"`
	QuantityReturned *int  `json:"quantity_returned" validate:"required,gte=0"`
}

type closeDispatchRequest struct {
	Returns       []returnRequest `json:"returns" validate:"omitempty,dive"`
	AmountPaid    float64         `json:"amount_paid" validate:"gte=0"`
	PaymentMethod *string         `json:"payment_method"`
}

func (h *Handler) CloseDispatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req closeDispatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CloseDispatchInput{
		AmountPaid:    req.AmountPaid,
		PaymentMethod: req.PaymentMethod,
	}
	for _, ret := range req.Returns {
		input.Returns = append(input.Returns, ReturnInput{
			BottleSizeID:     ret.BottleSizeID,
			QuantityReturned: *ret.QuantityReturned,
		})
	}
	sale, err := h.service.CloseDispatch(r.Context(), id, input)
	if err != nil {
		h.logger.Error("close dispatch", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "dispatch closed", "data": sale})
}

func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	sale, err := h.service.Get(r.Context(), id, true)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale.Items)
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}
