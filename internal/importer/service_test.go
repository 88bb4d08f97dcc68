package importer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/EijunnN/flash-route-sub001/internal/config"
	"github.com/EijunnN/flash-route-sub001/internal/fleet"
	"github.com/EijunnN/flash-route-sub001/internal/ingest"
)

const testHeader = "trackcode,nombre_cliente,direccion,referencia,departamento,provincia,distrito,latitud,longitud,telefono"

func validLine(track string) string {
	return track + ",Ana Torres,Av. Brasil 100,ref,Lima,Lima,Jesús María,-12.07,-77.05,999888777"
}

// missingCoordsLine fails validation: both coordinate cells are empty.
func missingCoordsLine(track string) string {
	return track + ",Ana Torres,Av. Brasil 100,ref,Lima,Lima,Jesús María,,,999888777"
}

func newTestService(fleetURL string) *Service {
	cfg := &config.Config{
		Import: config.ImportConfig{MaxConcurrent: 2, MaxWaitTime: time.Second},
	}
	client := fleet.NewClient(fleetURL, "", 0)
	loader := fleet.NewLoader(client, 100, 5000, 4)
	return NewService(client, loader, nil, cfg)
}

func TestImportMixedFile(t *testing.T) {
	var calls atomic.Int32
	var gotOrders int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body struct {
			Orders         []ingest.ImportCandidate `json:"orders"`
			SkipDuplicates bool                     `json:"skipDuplicates"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode bulk request: %v", err)
		}
		gotOrders = len(body.Orders)
		if !body.SkipDuplicates {
			t.Error("skipDuplicates = false, want true")
		}
		json.NewEncoder(w).Encode(fleet.BulkCreateResult{Created: len(body.Orders)})
	}))
	defer server.Close()

	service := newTestService(server.URL)
	data := []byte(testHeader + "\n" + validLine("PE1") + "\n" + missingCoordsLine("PE2"))

	report, err := service.Import(context.Background(), "pedidos.csv", data, ingest.CapabilityProfile{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("fleet API called %d times, want 1", calls.Load())
	}
	if gotOrders != 1 {
		t.Errorf("batch carried %d orders, want 1", gotOrders)
	}
	if report.Created != 1 || report.LocalSkips != 1 {
		t.Errorf("report = created %d localSkips %d, want 1 and 1", report.Created, report.LocalSkips)
	}
	if len(report.SkipPreview) != 1 || !strings.Contains(report.SkipPreview[0], "coordenadas") {
		t.Errorf("SkipPreview = %v, want the coordinate skip reason", report.SkipPreview)
	}
}

func TestImportEmptyBatchNeverCallsFleet(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(fleet.BulkCreateResult{})
	}))
	defer server.Close()

	service := newTestService(server.URL)
	data := []byte(testHeader + "\n" + missingCoordsLine("PE1") + "\n" + missingCoordsLine("PE2"))

	_, err := service.Import(context.Background(), "pedidos.csv", data, ingest.CapabilityProfile{})

	var emptyErr *EmptyBatchError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("Import() error = %v, want *EmptyBatchError", err)
	}
	if len(emptyErr.Skips) != 2 {
		t.Errorf("error carries %d skips, want 2", len(emptyErr.Skips))
	}
	if !strings.Contains(err.Error(), "coordenadas") {
		t.Errorf("Error() = %q, want skip reasons embedded", err.Error())
	}
	if calls.Load() != 0 {
		t.Errorf("fleet API called %d times, want 0 for an empty batch", calls.Load())
	}
}

func TestImportFleetRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{"message": "lote rechazado"})
	}))
	defer server.Close()

	service := newTestService(server.URL)
	data := []byte(testHeader + "\n" + validLine("PE1"))

	_, err := service.Import(context.Background(), "pedidos.csv", data, ingest.CapabilityProfile{})

	var apiErr *fleet.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Import() error = %v, want *fleet.APIError", err)
	}
	if apiErr.Message != "lote rechazado" {
		t.Errorf("Message = %q, want server message surfaced", apiErr.Message)
	}
}

func TestImportParseFailure(t *testing.T) {
	service := newTestService("http://fleet.invalid")
	_, err := service.Import(context.Background(), "vacío.csv", []byte(testHeader), ingest.CapabilityProfile{})
	if !errors.Is(err, ingest.ErrInsufficientRows) {
		t.Errorf("Import() error = %v, want ErrInsufficientRows", err)
	}
}

func TestImportMissingCapabilityColumn(t *testing.T) {
	service := newTestService("http://fleet.invalid")
	data := []byte(testHeader + "\n" + validLine("PE1"))

	_, err := service.Import(context.Background(), "pedidos.csv", data, ingest.CapabilityProfile{OrderType: true})

	var missing *ingest.MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("Import() error = %v, want *MissingColumnsError", err)
	}
	if len(missing.Columns) != 1 || missing.Columns[0] != ingest.ColOrderType {
		t.Errorf("missing = %v, want exactly [tipo_pedido]", missing.Columns)
	}
}

func TestAnalyze(t *testing.T) {
	// Analyze must never touch the network, so an unreachable URL is fine.
	service := newTestService("http://fleet.invalid")
	data := []byte(testHeader + "\n" + validLine("PE1") + "\n" + missingCoordsLine("PE2"))

	analysis, err := service.Analyze(context.Background(), "pedidos.csv", data, ingest.CapabilityProfile{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if analysis.Summary.TotalRows != 2 {
		t.Errorf("TotalRows = %d, want 2", analysis.Summary.TotalRows)
	}
	if analysis.Summary.Candidates != 1 || analysis.Summary.Skipped != 1 {
		t.Errorf("summary = %+v, want 1 candidate and 1 skip", analysis.Summary)
	}
	if len(analysis.CandidateSamples) != 1 || analysis.CandidateSamples[0].TrackingID != "PE1" {
		t.Errorf("CandidateSamples = %v, want PE1", analysis.CandidateSamples)
	}
	if len(analysis.SkipSamples) != 1 || !strings.Contains(analysis.SkipSamples[0].Reason, "coordenadas") {
		t.Errorf("SkipSamples = %v, want coordinate skip", analysis.SkipSamples)
	}
}

func TestImportHistoryUnconfigured(t *testing.T) {
	service := newTestService("http://fleet.invalid")
	if _, err := service.ImportHistory(context.Background(), 10); err == nil {
		t.Error("ImportHistory() error = nil, want failure without a history store")
	}
	if _, err := service.ImportDetail(context.Background(), "x"); err == nil {
		t.Error("ImportDetail() error = nil, want failure without a history store")
	}
}
