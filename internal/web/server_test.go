package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/EijunnN/flash-route-sub001/internal/config"
	"github.com/EijunnN/flash-route-sub001/internal/fleet"
	"github.com/EijunnN/flash-route-sub001/internal/importer"
)

// testConfig returns a config with everything the router touches set to
// test-friendly values. Rate limiting is off; tests that exercise it
// flip it on before building the server.
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Import.MaxFileSize = 1 << 20
	cfg.Import.MaxConcurrent = 2
	cfg.Import.MaxWaitTime = time.Second
	cfg.Security.EnableCSP = true
	return cfg
}

// buildServer wires a Server against the fleet API at fleetURL, without
// a history database.
func buildServer(t *testing.T, cfg *config.Config, fleetURL string) *Server {
	t.Helper()
	client := fleet.NewClient(fleetURL, "", 5*time.Second)
	loader := fleet.NewLoader(client, 100, 5000, 4)
	service := importer.NewService(client, loader, nil, cfg)
	return NewServer(service, nil, cfg)
}

// newTestServer wires a Server to a stub fleet backend that lives for
// the duration of the test.
func newTestServer(t *testing.T, cfg *config.Config, backend http.Handler) *Server {
	t.Helper()
	fleetSrv := httptest.NewServer(backend)
	t.Cleanup(fleetSrv.Close)
	return buildServer(t, cfg, fleetSrv.URL)
}

func doRequest(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(), http.NotFoundHandler())

	rec := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		Status        string `json:"status"`
		ActiveImports int    `json:"active_imports"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.ActiveImports != 0 {
		t.Errorf("active_imports = %d, want 0", body.ActiveImports)
	}
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func TestHealthDegraded(t *testing.T) {
	cfg := testConfig()
	fleetSrv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(fleetSrv.Close)

	client := fleet.NewClient(fleetSrv.URL, "", 5*time.Second)
	loader := fleet.NewLoader(client, 100, 5000, 4)
	service := importer.NewService(client, loader, nil, cfg)
	s := NewServer(service, stubPinger{err: errors.New("connection refused")}, cfg)

	rec := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(rec.Body.String(), "degraded") {
		t.Errorf("body = %q, want it to mention degraded", rec.Body.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, testConfig(), http.NotFoundHandler())

	rec := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	headers := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
	}
	for name, want := range headers {
		if got := rec.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestSecurityHeadersCSPDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Security.EnableCSP = false
	s := newTestServer(t, cfg, http.NotFoundHandler())

	rec := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := rec.Header().Get("Content-Security-Policy"); got != "" {
		t.Errorf("Content-Security-Policy = %q, want unset", got)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"orderValue":true}`))
	})

	tests := []struct {
		name       string
		require    bool
		keys       []string
		header     string
		wantStatus int
	}{
		{
			name:       "auth disabled passes through",
			require:    false,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing key rejected",
			require:    true,
			keys:       []string{"sk-primary"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid key rejected",
			require:    true,
			keys:       []string{"sk-primary"},
			header:     "sk-wrong",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "valid key accepted",
			require:    true,
			keys:       []string{"sk-primary", "sk-secondary"},
			header:     "sk-secondary",
			wantStatus: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Security.RequireAPIKey = tt.require
			cfg.Security.APIKeys = tt.keys
			s := newTestServer(t, cfg, backend)

			req := httptest.NewRequest(http.MethodGet, "/api/capabilities", nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := doRequest(t, s, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuthDoesNotGateHealth(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"sk-primary"}
	s := newTestServer(t, cfg, http.NotFoundHandler())

	rec := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d without API key", rec.Code, http.StatusOK)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 2
	s := newTestServer(t, cfg, http.NotFoundHandler())

	for i := 0; i < 2; i++ {
		rec := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want %q", got, "60")
	}
}

func TestImportRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 100
	cfg.Rate.ImportLimit = 1
	s := newTestServer(t, cfg, http.NotFoundHandler())

	// First request consumes the only import token; it fails for other
	// reasons (no file) but is not rate limited.
	rec := doRequest(t, s, httptest.NewRequest(http.MethodPost, "/api/imports/preview", nil))
	if rec.Code == http.StatusTooManyRequests {
		t.Fatalf("first request rate limited, status = %d", rec.Code)
	}

	rec = doRequest(t, s, httptest.NewRequest(http.MethodPost, "/api/imports/preview", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(), http.NotFoundHandler())

	rec := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain exposition", rec.Header().Get("Content-Type"))
	}
}
