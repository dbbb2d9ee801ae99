package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/service"
)

// DebugHandler serves the development-only cart inspector.
type DebugHandler struct {
	store  *service.CartStore
	mirror *service.CartMirror
	logger *slog.Logger
}

// NewDebugHandler creates a debug handler.
func NewDebugHandler(store *service.CartStore, mirror *service.CartMirror, logger *slog.Logger) *DebugHandler {
	return &DebugHandler{store: store, mirror: mirror, logger: orDefault(logger)}
}

// DebugCartResponse is the inspector view of the store and its stored copy.
type DebugCartResponse struct {
	State       domain.CartState `json:"state"`
	Version     int64            `json:"version"`
	Initialized bool             `json:"initialized"`
	StorageKey  string           `json:"storage_key"`
	Stored      bool             `json:"stored"`
	StoredValue *string          `json:"stored_value"`
	LastError   *persistErrorDTO `json:"last_error"`
}

type persistErrorDTO struct {
	Op      string    `json:"op"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Cart handles GET /api/v1/debug/cart
func (h *DebugHandler) Cart(w http.ResponseWriter, r *http.Request) {
	resp, err := h.view(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: resp})
}

// ClearStorage handles POST /api/v1/debug/cart/storage/clear. The stored copy
// is deleted; the in-memory cart is left as is.
func (h *DebugHandler) ClearStorage(w http.ResponseWriter, r *http.Request) {
	if err := h.mirror.Discard(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.Cart(w, r)
}

func (h *DebugHandler) view(r *http.Request) (*DebugCartResponse, error) {
	raw, stored, err := h.mirror.Raw(r.Context())
	if err != nil {
		return nil, err
	}

	resp := &DebugCartResponse{
		State:       h.store.State(),
		Version:     h.store.Version(),
		Initialized: h.store.Initialized(),
		StorageKey:  h.mirror.Key(),
		Stored:      stored,
	}
	if stored {
		resp.StoredValue = &raw
	}
	if last := h.mirror.LastError(); last != nil {
		resp.LastError = &persistErrorDTO{Op: last.Op, Message: last.Err.Error(), At: last.At}
	}
	return resp, nil
}
