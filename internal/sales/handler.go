package sales

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kasira-pos/kasira-pos/internal/inventory"
	"github.com/kasira-pos/kasira-pos/internal/platform/httpx"
	"github.com/kasira-pos/kasira-pos/internal/rbac"
	"github.com/kasira-pos/kasira-pos/internal/shared"
)

// SaleService captures the service methods the handler depends on.
type SaleService interface {
	Record(ctx context.Context, actorID int64, req RecordSaleRequest) (Sale, error)
	List(ctx context.Context, filter ListFilter) ([]SaleWithUser, int, error)
	Get(ctx context.Context, saleID string) (SaleWithUser, error)
	ExportCSV(ctx context.Context, w io.Writer, filter ListFilter) error
}

// Handler exposes sale endpoints.
type Handler struct {
	logger    *slog.Logger
	service   SaleService
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service SaleService, rbacMw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMw, validator: validator.New()}
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermSalesCreate))
		r.Post("/", h.record)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermSalesView))
		r.Get("/", h.list)
		r.Get("/{saleID}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermSalesExport))
		r.Get("/export.csv", h.exportCSV)
	})
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var req RecordSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "session required")
		return
	}
	sale, err := h.service.Record(r.Context(), ident.UserID, req)
	if err != nil {
		var stockErr *inventory.InsufficientStockError
		if errors.As(err, &stockErr) {
			httpx.Problem(w, http.StatusBadRequest, "Insufficient Stock", stockErr.Error())
			return
		}
		if errors.Is(err, inventory.ErrInsufficientStock) {
			httpx.Problem(w, http.StatusBadRequest, "Insufficient Stock", err.Error())
			return
		}
		h.logger.Error("record sale failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sales, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list sales failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if sales == nil {
		sales = []SaleWithUser{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       sales,
		"pagination": shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sale, err := h.service.Get(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sales.csv"`)
	if err := h.service.ExportCSV(r.Context(), w, filter); err != nil {
		h.logger.Error("export sales failed", slog.Any("error", err))
	}
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{Page: 1, Limit: 50}

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return ListFilter{}, errors.New("from must be YYYY-MM-DD")
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return ListFilter{}, errors.New("to must be YYYY-MM-DD")
		}
		// Upper bound is exclusive, so include the whole named day.
		filter.To = t.AddDate(0, 0, 1)
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return ListFilter{}, errors.New("page must be a positive integer")
		}
		filter.Page = page
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 200 {
			return ListFilter{}, errors.New("limit must be between 1 and 200")
		}
		filter.Limit = limit
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return ListFilter{}, errors.New("to must not be before from")
	}
	return filter, nil
}
