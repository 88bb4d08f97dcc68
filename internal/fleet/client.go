// Package fleet is the HTTP client for the fleet operations API: bulk
// order creation, paged order listing and tenant capability lookup. All
// calls take a context and return typed errors a handler can map to a
// status code; *APIError for non-2xx responses, ErrUnreachable-wrapped
// errors when no response arrived at all.
package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/EijunnN/flash-route-sub001/internal/ingest"
	"github.com/EijunnN/flash-route-sub001/internal/metrics"
)

// DefaultTimeout bounds each fleet API round trip when the configuration
// does not say otherwise.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response we read back. Fleet API
// error payloads are small; anything bigger is a proxy error page.
const maxErrorBody = 64 << 10

// ErrUnreachable marks transport-level failures: DNS, refused connections,
// timeouts. The batch is never retried; callers surface the error and the
// operator re-submits the file.
var ErrUnreachable = errors.New("fleet api unreachable")

// Client talks to one fleet API deployment.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client for the API at baseURL. apiKey may be empty
// for deployments that authenticate by network boundary.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Order is one order row from the fleet API's listing endpoint.
type Order struct {
	ID           string  `json:"id"`
	TrackCode    string  `json:"trackCode"`
	CustomerName string  `json:"customerName,omitempty"`
	Address      string  `json:"address"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Status       string  `json:"status"`
	Active       bool    `json:"active"`
}

// FieldError is one per-field rejection inside a bulk creation response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// BulkCreateResult is the fleet API's accounting for one submitted batch.
type BulkCreateResult struct {
	Created    int          `json:"created"`
	Skipped    int          `json:"skipped"`
	Invalid    int          `json:"invalid"`
	Duplicates []string     `json:"duplicates,omitempty"`
	Details    []FieldError `json:"details,omitempty"`
}

// APIError is a non-2xx response from the fleet API, carrying the server's
// message and any per-field details it reported.
type APIError struct {
	StatusCode int
	Message    string
	Details    []FieldError
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("fleet api (status %d): %s", e.StatusCode, e.Message)
	for _, d := range e.Details {
		msg += fmt.Sprintf("; %s: %s", d.Field, d.Message)
	}
	return msg
}

type bulkCreateRequest struct {
	Orders         []ingest.ImportCandidate `json:"orders"`
	SkipDuplicates bool                     `json:"skipDuplicates"`
}

// BulkCreateOrders submits one batch of validated candidates. With
// skipDuplicates the server counts already-known track codes as skipped
// instead of failing the batch.
func (c *Client) BulkCreateOrders(ctx context.Context, orders []ingest.ImportCandidate, skipDuplicates bool) (*BulkCreateResult, error) {
	var result BulkCreateResult
	body := bulkCreateRequest{Orders: orders, SkipDuplicates: skipDuplicates}
	if err := c.do(ctx, "bulk_create", http.MethodPost, "/api/orders/bulk", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// OrderQuery filters the order listing endpoint.
type OrderQuery struct {
	Status string
	Active bool
}

// ListOrdersPage fetches one page of the order listing. A page shorter
// than limit means the listing is exhausted; the server reports no totals.
func (c *Client) ListOrdersPage(ctx context.Context, q OrderQuery, limit, offset int) ([]Order, error) {
	query := url.Values{}
	if q.Status != "" {
		query.Set("status", q.Status)
	}
	query.Set("active", strconv.FormatBool(q.Active))
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	var payload struct {
		Data []Order `json:"data"`
	}
	if err := c.do(ctx, "list_orders", http.MethodGet, "/api/orders", query, nil, &payload); err != nil {
		return nil, err
	}
	metrics.FleetOrderPages.Inc()
	return payload.Data, nil
}

// GetCapabilities fetches the tenant's capability profile, which decides
// the required column set for import files.
func (c *Client) GetCapabilities(ctx context.Context) (ingest.CapabilityProfile, error) {
	var profile ingest.CapabilityProfile
	if err := c.do(ctx, "capabilities", http.MethodGet, "/api/tenant/capabilities", nil, nil, &profile); err != nil {
		return ingest.CapabilityProfile{}, err
	}
	return profile, nil
}

// do runs one request against the API: marshal body, send, check status,
// decode into out. Non-2xx responses become *APIError; transport failures
// wrap ErrUnreachable.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.FleetRequests.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("%w: %s: %v", ErrUnreachable, op, err)
	}
	defer resp.Body.Close()
	metrics.FleetRequests.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// apiError reads a non-2xx response into an *APIError, trying the API's
// JSON error shape first and degrading to the raw body, then to the HTTP
// status text.
func (c *Client) apiError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Message string       `json:"message"`
		Error   string       `json:"error"`
		Details []FieldError `json:"details"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
		apiErr.Details = payload.Details
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
