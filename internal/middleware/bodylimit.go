package middleware

import "net/http"

// BodyLimit caps the size of every request body. Reads past the limit
// fail, which surfaces to clients as a 400 from the JSON decoders and
// stops oversized multipart uploads before they hit disk.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
