package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aquatrack/aquatrack/internal/platform/httpx"
)

// Handler exposes the summary queries over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	renderer PDFRenderer
	business Business
}

// NewHandler constructs a Handler instance. renderer may be nil when PDF
// export is not configured.
func NewHandler(logger *slog.Logger, service *Service, renderer PDFRenderer, business Business) *Handler {
	return &Handler{logger: logger, service: service, renderer: renderer, business: business}
}

// MountRoutes registers summary routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/retail-sales/summary", func(r chi.Router) {
		r.Get("/cartons", h.cartons)
		r.Get("/cartons/today", h.cartonsDay(0))
		r.Get("/cartons/yesterday", h.cartonsDay(1))
		r.Get("/cartons/last-7-days", h.cartonsRecent)
		r.Get("/cartons/export.csv", h.cartonsCSV)
		r.Get("/cogs", h.margin)
		r.Get("/cogs/today", h.marginDay(0))
		r.Get("/cogs/yesterday", h.marginDay(1))
		r.Get("/cogs/last-7-days", h.marginRecent)
		r.Get("/cogs/export.csv", h.marginCSV)
		r.Get("/by-date", h.daily)
		r.Get("/by-date/export.csv", h.dailyCSV)
		r.Get("/export.pdf", h.exportPDF)
	})
	r.Post("/reports/cache/invalidate", h.invalidate)
}

func (h *Handler) windowFromQuery(w http.ResponseWriter, r *http.Request) (Window, bool) {
	q := r.URL.Query()
	win := Window{IncludeDeleted: q.Get("include_deleted") == "true"}
	if raw := q.Get("date_from"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date_from")
			return Window{}, false
		}
		win.From = d
	}
	if raw := q.Get("date_to"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date_to")
			return Window{}, false
		}
		win.To = d
	}
	return win, true
}

func (h *Handler) cartons(w http.ResponseWriter, r *http.Request) {
	win, ok := h.windowFromQuery(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Cartons(r.Context(), win)
	if err != nil {
		h.logger.Error("cartons summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

func (h *Handler) cartonsDay(offset int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, day := h.service.DayWindow(offset)
		summary, err := h.service.Cartons(r.Context(), win)
		if err != nil {
			h.logger.Error("cartons summary", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"date": day, "data": summary})
	}
}

func (h *Handler) cartonsRecent(w http.ResponseWriter, r *http.Request) {
	win, start, end := h.service.RecentWindow(7)
	summary, err := h.service.Cartons(r.Context(), win)
	if err != nil {
		h.logger.Error("cartons summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"start_date": start, "end_date": end, "data": summary})
}

func (h *Handler) cartonsCSV(w http.ResponseWriter, r *http.Request) {
	win, ok := h.windowFromQuery(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Cartons(r.Context(), win)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	writeCSVHeaders(w, "cartons-summary.csv")
	if err := WriteCartonsCSV(w, summary); err != nil {
		h.logger.Error("write cartons csv", slog.Any("error", err))
	}
}

func (h *Handler) margin(w http.ResponseWriter, r *http.Request) {
	win, ok := h.windowFromQuery(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Margin(r.Context(), win)
	if err != nil {
		h.logger.Error("margin summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

func (h *Handler) marginDay(offset int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, day := h.service.DayWindow(offset)
		summary, err := h.service.Margin(r.Context(), win)
		if err != nil {
			h.logger.Error("margin summary", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"date": day, "data": summary})
	}
}

func (h *Handler) marginRecent(w http.ResponseWriter, r *http.Request) {
	win, start, end := h.service.RecentWindow(7)
	summary, err := h.service.Margin(r.Context(), win)
	if err != nil {
		h.logger.Error("margin summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"start_date": start, "end_date": end, "data": summary})
}

func (h *Handler) marginCSV(w http.ResponseWriter, r *http.Request) {
	win, ok := h.windowFromQuery(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Margin(r.Context(), win)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	writeCSVHeaders(w, "margin-summary.csv")
	if err := WriteMarginCSV(w, summary); err != nil {
		h.logger.Error("write margin csv", slog.Any("error", err))
	}
}

func (h *Handler) daily(w http.ResponseWriter, r *http.Request) {
	win, ok := h.windowFromQuery(w, r)
	if !ok {
		return
	}
	rows, err := h.service.Daily(r.Context(), win)
	if err != nil {
		h.logger.Error("daily summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

func (h *Handler) dailyCSV(w http.ResponseWriter, r *http.Request) {
	win, ok := h.windowFromQuery(w, r)
	if !ok {
		return
	}
	rows, err := h.service.Daily(r.Context(), win)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	writeCSVHeaders(w, "daily-summary.csv")
	if err := WriteDailyCSV(w, rows); err != nil {
		h.logger.Error("write daily csv", slog.Any("error", err))
	}
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "PDF rendering is not configured")
		return
	}
	win, ok := h.windowFromQuery(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	cartons, err := h.service.Cartons(ctx, win)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	margin, err := h.service.Margin(ctx, win)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	daily, err := h.service.Daily(ctx, win)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	period := dayToken(win.From) + " to " + dayToken(win.To)
	pdf, err := RenderSummaryPDF(ctx, h.renderer, h.business, period, cartons, margin, daily)
	if err != nil {
		h.logger.Error("render summary pdf", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Render Failed", "PDF rendering failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="sales-report.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Invalidate(r.Context()); err != nil {
		h.logger.Error("invalidate report cache", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "cache invalidated"})
}

func writeCSVHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
}
