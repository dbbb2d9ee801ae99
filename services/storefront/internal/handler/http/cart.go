package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/notify"
	"github.com/utafrali/storefront/services/storefront/internal/service"
)

// MaxQuantity caps the quantity a shopper can set on one line.
const MaxQuantity = 999

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	store  *service.CartStore
	toast  Notifier
	logger *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(store *service.CartStore, toast Notifier, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		store:  store,
		toast:  toast,
		logger: orDefault(logger),
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a product to the cart.
type AddItemRequest struct {
	ID        int     `json:"id" validate:"required,gte=1"`
	Title     string  `json:"title" validate:"required,max=500"`
	Price     float64 `json:"price" validate:"gte=0"`
	Thumbnail string  `json:"thumbnail" validate:"omitempty,url"`
}

// SetQuantityRequest is the JSON request body for setting a line quantity.
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,lte=999"`
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.store.State()})
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	state := h.store.AddItem(r.Context(), domain.ProductRef{
		ID:        req.ID,
		Title:     req.Title,
		Price:     req.Price,
		Thumbnail: req.Thumbnail,
	})
	h.toast.Show(addedMessage(req.Title), notify.KindSuccess)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: state})
}

// SetQuantity handles PUT /api/v1/cart/items/{id}. A quantity of 0 removes
// the line.
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req SetQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	state, removed := h.store.SetQuantity(r.Context(), id, *req.Quantity)
	if removed != nil {
		h.toast.Show(removedMessage(removed.Title), notify.KindInfo)
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: state})
}

// RemoveItem handles DELETE /api/v1/cart/items/{id}. Removing an id that is
// not in the cart returns the unchanged cart.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	state, removed := h.store.RemoveItem(r.Context(), id)
	if removed != nil {
		h.toast.Show(removedMessage(removed.Title), notify.KindInfo)
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: state})
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	state := h.store.ClearCart(r.Context())
	h.toast.Show(clearedMessage, notify.KindInfo)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: state})
}
