package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/notify"
	"github.com/utafrali/storefront/services/storefront/internal/service"
)

// ProductHandler serves the product listing and detail pages.
type ProductHandler struct {
	catalog CatalogReader
	store   *service.CartStore
	toast   Notifier
	logger  *slog.Logger
}

// NewProductHandler creates a product handler.
func NewProductHandler(catalog CatalogReader, store *service.CartStore, toast Notifier, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		store:   store,
		toast:   toast,
		logger:  orDefault(logger),
	}
}

// ListProducts handles GET /api/v1/products?page=&per_page=&q=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		page *domain.ProductsPage
		err  error
	)
	if query != "" {
		page, err = h.catalog.SearchProducts(r.Context(), query, params.Limit(), params.Skip())
	} else {
		page, err = h.catalog.ListProducts(r.Context(), params.Limit(), params.Skip())
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: pagination.NewResult(page.Products, page.Total, params),
	})
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	p, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: p})
}

// AddToCart handles POST /api/v1/products/{id}/cart. Only the product's id,
// title, price and thumbnail are forwarded to the cart.
func (h *ProductHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	p, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	state := h.store.AddItem(r.Context(), p.Ref())
	h.toast.Show(addedMessage(p.Title), notify.KindSuccess)

	logger.FromContext(r.Context()).InfoContext(r.Context(), "product added to cart",
		slog.Int("product_id", p.ID),
		slog.Int("total_items", state.TotalItems),
	)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: state})
}
