package shield

import "net/http"

// HeadToGet rewrites HEAD to GET so liveness probes that send HEAD hit the
// r.Get routes instead of a 405. net/http drops the body for HEAD responses.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
