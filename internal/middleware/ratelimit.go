package middleware

import (
	"net/http"

	"golang.org/x/time/rate"
)

// LoginRateLimiter ограничивает частоту попыток входа на весь процесс.
// Переполнение бюджета отвечает 429 без обращения к аутентификатору.
func LoginRateLimiter(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(limit, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
