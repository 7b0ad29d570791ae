package middleware

import (
	"net/http"
	"strings"

	"github.com/drstein77/storefront/internal/compress"
)

// CompressResponseMiddleware compresses JSON responses with gzip when the
// client advertises support, and transparently decompresses gzip request bodies.
func CompressResponseMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// By default set the original http.ResponseWriter
		ow := w

		// Check if the client can accept compressed data
		acceptEncoding := r.Header.Get("Accept-Encoding")
		if strings.Contains(acceptEncoding, "gzip") {
			cw := compress.NewGzipWriter(w)
			ow = cw
			defer cw.Close()
		}

		// Check if the client sent compressed data
		contentEncoding := r.Header.Get("Content-Encoding")
		if contentEncoding == "gzip" {
			cr, err := compress.NewGzipReader(r.Body)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			r.Body = cr
			defer cr.Close()
		}

		// Transfer control to the handler
		next.ServeHTTP(ow, r)
	})
}
