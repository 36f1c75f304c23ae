package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aquatrack/aquatrack/internal/platform/httpx"
	"github.com/aquatrack/aquatrack/internal/sales"
)

// SaleSource loads fully resolved sales with items and payments.
type SaleSource interface {
	Get(ctx context.Context, id int64, includeDeleted bool) (sales.Sale, error)
}

// UserDirectory resolves user ids to printable names.
type UserDirectory interface {
	DisplayName(ctx context.Context, id int64) (string, error)
}

// Handler serves rendered receipts.
type Handler struct {
	logger   *slog.Logger
	renderer *Renderer
	sales    SaleSource
	users    UserDirectory
}

// NewHandler constructs a Handler instance. users may be nil.
func NewHandler(logger *slog.Logger, renderer *Renderer, saleSource SaleSource, users UserDirectory) *Handler {
	return &Handler{logger: logger, renderer: renderer, sales: saleSource, users: users}
}

// MountRoutes registers the receipt route on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/retail-sales/{id}/receipt", h.render)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	sale, err := h.sales.Get(r.Context(), id, false)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	servedBy := ""
	if sale.AddedBy != nil {
		if h.users != nil {
			if name, err := h.users.DisplayName(r.Context(), *sale.AddedBy); err == nil {
				servedBy = name
			}
		}
		if servedBy == "" {
			servedBy = fmt.Sprintf("User #%d", *sale.AddedBy)
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(h.renderer.Render(sale, servedBy))); err != nil {
		h.logger.Warn("write receipt", slog.Any("error", err))
	}
}
