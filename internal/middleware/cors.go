package middleware

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CORSMiddleware lets the configured storefront origins call the API with
// credentials. Development additionally accepts any localhost origin.
func CORSMiddleware(allowedOrigins []string, isDevelopment bool) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	if isDevelopment {
		known := make(map[string]bool, len(allowedOrigins))
		for _, o := range allowedOrigins {
			known[o] = true
		}
		opts.AllowOriginFunc = func(r *http.Request, origin string) bool {
			if known[origin] {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && (u.Hostname() == "localhost" || u.Hostname() == "127.0.0.1")
		}
	}

	return cors.Handler(opts)
}

// DefaultMiddlewareStack returns the router-wide middleware every request passes through
func DefaultMiddlewareStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Compress(5),
	}
}
