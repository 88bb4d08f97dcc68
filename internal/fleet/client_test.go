package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/EijunnN/flash-route-sub001/internal/ingest"
)

func testCandidates(n int) []ingest.ImportCandidate {
	out := make([]ingest.ImportCandidate, n)
	for i := range out {
		out[i] = ingest.ImportCandidate{
			TrackingID: "PE" + strconv.Itoa(i),
			Address:    "Av. Sol 1, Surco, Lima, Lima",
			Latitude:   -12.1,
			Longitude:  -77.0,
		}
	}
	return out
}

func TestBulkCreateOrders(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody map[string]json.RawMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/orders/bulk" {
			t.Errorf("path = %s, want /api/orders/bulk", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(BulkCreateResult{
			Created:    2,
			Skipped:    1,
			Duplicates: []string{"PE0"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 0)
	result, err := client.BulkCreateOrders(context.Background(), testCandidates(3), true)
	if err != nil {
		t.Fatalf("BulkCreateOrders() error = %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-key")
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if _, ok := gotBody["orders"]; !ok {
		t.Error("request body missing orders key")
	}
	if raw, ok := gotBody["skipDuplicates"]; !ok || string(raw) != "true" {
		t.Errorf("skipDuplicates = %s, want true", raw)
	}
	if result.Created != 2 || result.Skipped != 1 {
		t.Errorf("result = %+v, want created 2 skipped 1", result)
	}
	if len(result.Duplicates) != 1 || result.Duplicates[0] != "PE0" {
		t.Errorf("duplicates = %v, want [PE0]", result.Duplicates)
	}
}

func TestBulkCreateOrdersAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"message": "validación fallida",
			"details": []FieldError{{Field: "latitude", Message: "fuera de rango"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	_, err := client.BulkCreateOrders(context.Background(), testCandidates(1), true)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d, want 422", apiErr.StatusCode)
	}
	if apiErr.Message != "validación fallida" {
		t.Errorf("Message = %q, want server message", apiErr.Message)
	}
	if len(apiErr.Details) != 1 || apiErr.Details[0].Field != "latitude" {
		t.Errorf("Details = %v, want latitude detail", apiErr.Details)
	}
	if !strings.Contains(apiErr.Error(), "latitude: fuera de rango") {
		t.Errorf("Error() = %q, want field detail in text", apiErr.Error())
	}
}

func TestBulkCreateOrdersPlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	_, err := client.BulkCreateOrders(context.Background(), testCandidates(1), true)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Message != "upstream exploded" {
		t.Errorf("Message = %q, want raw body text", apiErr.Message)
	}
}

func TestBulkCreateOrdersUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening anymore

	client := NewClient(server.URL, "", 0)
	_, err := client.BulkCreateOrders(context.Background(), testCandidates(1), true)
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("error = %v, want ErrUnreachable", err)
	}
}

func TestListOrdersPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("status"); got != "pending" {
			t.Errorf("status = %q, want pending", got)
		}
		if got := q.Get("active"); got != "true" {
			t.Errorf("active = %q, want true", got)
		}
		if got := q.Get("limit"); got != "100" {
			t.Errorf("limit = %q, want 100", got)
		}
		if got := q.Get("offset"); got != "200" {
			t.Errorf("offset = %q, want 200", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []Order{{ID: "o1", TrackCode: "PE1", Status: "pending", Active: true}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	orders, err := client.ListOrdersPage(context.Background(), OrderQuery{Status: "pending", Active: true}, 100, 200)
	if err != nil {
		t.Fatalf("ListOrdersPage() error = %v", err)
	}
	if len(orders) != 1 || orders[0].TrackCode != "PE1" {
		t.Errorf("orders = %v, want one PE1", orders)
	}
}

func TestGetCapabilities(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tenant/capabilities" {
			t.Errorf("path = %s, want /api/tenant/capabilities", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ingest.CapabilityProfile{OrderType: true, Weight: true})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	profile, err := client.GetCapabilities(context.Background())
	if err != nil {
		t.Fatalf("GetCapabilities() error = %v", err)
	}
	if !profile.OrderType || !profile.Weight || profile.Volume {
		t.Errorf("profile = %+v, want OrderType and Weight only", profile)
	}
}
