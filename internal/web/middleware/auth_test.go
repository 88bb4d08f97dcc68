package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EijunnN/flash-route-sub001/internal/config"
)

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.SecurityConfig
		key        string
		wantStatus int
	}{
		{
			name:       "disabled lets everything through",
			cfg:        config.SecurityConfig{RequireAPIKey: false},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing key",
			cfg:        config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"sk-1"}},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong key",
			cfg:        config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"sk-1"}},
			key:        "sk-2",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "matches any configured key",
			cfg:        config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"sk-1", "sk-2"}},
			key:        "sk-2",
			wantStatus: http.StatusOK,
		},
		{
			name:       "enabled with no keys rejects all",
			cfg:        config.SecurityConfig{RequireAPIKey: true},
			key:        "sk-1",
			wantStatus: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := APIKeyAuth(&tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/imports", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestIsValidAPIKeyEmptyList(t *testing.T) {
	if isValidAPIKey("anything", nil) {
		t.Error("isValidAPIKey() = true with no configured keys, want false")
	}
}
