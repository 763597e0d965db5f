package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kasira-pos/kasira-pos/internal/platform/httpx"
	"github.com/kasira-pos/kasira-pos/internal/rbac"
	"github.com/kasira-pos/kasira-pos/internal/shared"
)

// Handler exposes inventory endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMw, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermInventoryEdit))
		r.Post("/restock", h.restock)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermCatalogView))
		r.Get("/stock/{sku}", h.stock)
	})
}

func (h *Handler) restock(w http.ResponseWriter, r *http.Request) {
	var input RestockInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if ident, ok := shared.IdentityFromContext(r.Context()); ok {
		input.ActorID = ident.UserID
	}
	stock, err := h.service.Restock(r.Context(), input)
	if err != nil {
		h.logger.Error("restock failed", slog.String("sku", input.SKU), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sku": input.SKU, "stock": stock})
}

func (h *Handler) stock(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	stock, err := h.service.StockBySKU(r.Context(), sku)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sku": sku, "stock": stock})
}
