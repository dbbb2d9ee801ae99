package http

import (
	"net/http"

	"github.com/utafrali/storefront/pkg/httputil"
)

// NotificationHandler exposes the current toast.
type NotificationHandler struct {
	toast Notifier
}

// NewNotificationHandler creates a notification handler.
func NewNotificationHandler(toast Notifier) *NotificationHandler {
	return &NotificationHandler{toast: toast}
}

// Current handles GET /api/v1/notification. 204 when nothing is visible.
func (h *NotificationHandler) Current(w http.ResponseWriter, _ *http.Request) {
	m, ok := h.toast.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: m})
}

// Dismiss handles DELETE /api/v1/notification
func (h *NotificationHandler) Dismiss(w http.ResponseWriter, _ *http.Request) {
	h.toast.Hide()
	w.WriteHeader(http.StatusNoContent)
}
