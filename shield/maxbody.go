package shield

import (
	"errors"
	"net/http"
)

// MaxBody returns middleware that caps every request body at maxBytes.
// Reading past the cap fails with *http.MaxBytesError; handlers check it
// with IsTooLarge. maxBytes <= 0 disables the cap.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsTooLarge reports whether err came from a body exceeding the MaxBody cap.
func IsTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
