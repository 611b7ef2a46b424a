package request

import (
	"net/http"

	"attestor/pkg/platform/httputil"
)

// BodyLimit caps request bodies. Requests that declare an oversized
// Content-Length are refused up front; the rest are wrapped in
// http.MaxBytesReader so chunked uploads fail on read.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.ErrorResponse{
					Error: "request body too large",
					Kind:  "payload_too_large",
				})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
