package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func preflight(handler http.Handler, origin string) string {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/product/braintree/payment", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Idempotency-Key")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Header().Get("Access-Control-Allow-Origin")
}

func TestCORSMiddleware(t *testing.T) {
	origins := []string{"https://shop.example.com"}

	tests := []struct {
		name   string
		dev    bool
		origin string
		want   string
	}{
		{"configured origin", false, "https://shop.example.com", "https://shop.example.com"},
		{"foreign origin", false, "https://evil.example.com", ""},
		{"localhost outside development", false, "http://localhost:3000", ""},
		{"localhost in development", true, "http://localhost:3000", "http://localhost:3000"},
		{"configured origin in development", true, "https://shop.example.com", "https://shop.example.com"},
		{"foreign origin in development", true, "https://evil.example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORSMiddleware(origins, tt.dev)(okHandler())
			if got := preflight(handler, tt.origin); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
