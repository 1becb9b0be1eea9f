package httpapi

import "net/http"

// BoundedConcurrency limits the number of requests processed at once to
// n, queuing the rest behind a buffered channel acting as a semaphore.
// This is §5's "worker pool sized to hardware parallelism", expressed
// as middleware over a goroutine-per-request server rather than a
// manually managed thread pool.
func BoundedConcurrency(n int) func(http.Handler) http.Handler {
	if n <= 0 {
		n = 1
	}
	sem := make(chan struct{}, n)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sem <- struct{}{}
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		})
	}
}
