package http

import (
	"mime"
	"net/http"

	"github.com/utafrali/storefront/pkg/httputil"
)

// ContentTypeJSON rejects requests that carry a body, or declare a content
// type on a write method, unless the type is application/json. Bodyless
// POSTs such as /products/{id}/cart need no header.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasBody := r.ContentLength != 0
		ct := r.Header.Get("Content-Type")
		write := r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch

		if (hasBody || (write && ct != "")) && !isJSON(ct) {
			httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isJSON(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == "application/json"
}
