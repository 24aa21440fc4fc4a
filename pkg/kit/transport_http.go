package kit

import "net/http"

// RequestIDHeader carries the request ID in and out of HTTP calls.
const RequestIDHeader = "X-Request-ID"

// HTTPContext stores the transport and a request ID (the caller's, or a new
// one) in the request context and echoes the ID in the response.
func HTTPContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = NewRequestID()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := WithRequestID(WithTransport(r.Context(), TransportHTTP), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
