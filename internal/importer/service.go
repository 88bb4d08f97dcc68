package importer

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/EijunnN/flash-route-sub001/internal/config"
	"github.com/EijunnN/flash-route-sub001/internal/fleet"
	"github.com/EijunnN/flash-route-sub001/internal/ingest"
	"github.com/EijunnN/flash-route-sub001/internal/logging"
	"github.com/EijunnN/flash-route-sub001/internal/metrics"
)

// analysisSampleLimit caps how many candidates and skips a preview carries
// back to the browser.
const analysisSampleLimit = 10

// Service runs imports end to end. One Service is shared by all requests;
// it owns the concurrency limiter and writes the history trail.
type Service struct {
	fleet   *fleet.Client
	loader  *fleet.Loader
	history *History
	limiter *Limiter
}

// NewService wires the import pipeline. history may be nil when no
// database is configured; imports then run without an audit trail.
func NewService(client *fleet.Client, loader *fleet.Loader, history *History, cfg *config.Config) *Service {
	return &Service{
		fleet:   client,
		loader:  loader,
		history: history,
		limiter: NewLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
	}
}

// AnalysisSummary totals one preview run.
type AnalysisSummary struct {
	TotalRows  int `json:"totalRows"`
	Candidates int `json:"candidates"`
	Skipped    int `json:"skipped"`
}

// Analysis is the result of previewing a file without submitting it.
type Analysis struct {
	Summary          AnalysisSummary          `json:"summary"`
	CandidateSamples []ingest.ImportCandidate `json:"candidateSamples,omitempty"`
	SkipSamples      []ingest.SkipRecord      `json:"skipSamples,omitempty"`
	ProcessingTimeMs int64                    `json:"processingTimeMs"`
}

// Analyze runs the full pipeline on data without contacting the fleet
// API, so operators can sanity-check a file before committing it.
func (s *Service) Analyze(ctx context.Context, fileName string, data []byte, profile ingest.CapabilityProfile) (*Analysis, error) {
	start := time.Now()
	candidates, skips, totalRows, err := runPipeline(data, profile)
	if err != nil {
		logging.FromContext(ctx).Warn("preview rejected", "file", fileName, "error", err)
		return nil, err
	}

	analysis := &Analysis{
		Summary: AnalysisSummary{
			TotalRows:  totalRows,
			Candidates: len(candidates),
			Skipped:    len(skips),
		},
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	if len(candidates) > analysisSampleLimit {
		candidates = candidates[:analysisSampleLimit]
	}
	if len(skips) > analysisSampleLimit {
		skips = skips[:analysisSampleLimit]
	}
	analysis.CandidateSamples = candidates
	analysis.SkipSamples = skips
	return analysis, nil
}

// Import runs the pipeline on data and submits the surviving candidates
// to the fleet API as one batch.
//
// A file that yields no candidates fails locally with *EmptyBatchError
// and the fleet API is never contacted. A batch the API could not take
// (transport failure or non-2xx) is discarded, not retried; the operator
// re-submits the file. Every attempt lands in history regardless of
// outcome.
func (s *Service) Import(ctx context.Context, fileName string, data []byte, profile ingest.CapabilityProfile) (*Report, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()
	importID := uuid.New().String()
	logger := logging.WithFields(ctx, "import_id", importID, "file", fileName)

	entry := historyEntry{
		ID:       importID,
		FileName: fileName,
		FileSize: int64(len(data)),
	}

	candidates, skips, _, err := runPipeline(data, profile)
	if err != nil {
		logger.Warn("import rejected", "error", err)
		metrics.ImportsTotal.WithLabelValues(StatusRejected).Inc()
		entry.Status, entry.Err, entry.Duration = StatusRejected, err.Error(), time.Since(start)
		s.recordOutcome(ctx, entry)
		return nil, err
	}

	if len(candidates) == 0 {
		err := &EmptyBatchError{Skips: skips}
		logger.Warn("import rejected", "error", err, "skipped_rows", len(skips))
		metrics.ImportsTotal.WithLabelValues(StatusRejected).Inc()
		entry.Status, entry.Err, entry.Duration = StatusRejected, err.Error(), time.Since(start)
		entry.LocalSkips = len(skips)
		s.recordOutcome(ctx, entry)
		return nil, err
	}

	result, err := s.fleet.BulkCreateOrders(ctx, candidates, true)
	if err != nil {
		logger.Error("bulk create failed", "error", err, "candidates", len(candidates))
		metrics.ImportsTotal.WithLabelValues(StatusFailed).Inc()
		entry.Status, entry.Err, entry.Duration = StatusFailed, err.Error(), time.Since(start)
		entry.LocalSkips = len(skips)
		s.recordOutcome(ctx, entry)
		return nil, err
	}

	report := BuildReport(result, skips)
	elapsed := time.Since(start)
	metrics.ImportsTotal.WithLabelValues(StatusCompleted).Inc()
	metrics.ImportDuration.Observe(elapsed.Seconds())
	logger.Info("import completed",
		"created", report.Created,
		"skipped", report.Skipped,
		"invalid", report.Invalid,
		"local_skips", report.LocalSkips,
		"duration_ms", elapsed.Milliseconds())

	entry.Status, entry.Message, entry.Duration = StatusCompleted, report.Message, elapsed
	entry.Created, entry.Skipped, entry.Invalid = report.Created, report.Skipped, report.Invalid
	entry.LocalSkips = report.LocalSkips
	s.recordOutcome(ctx, entry)
	return report, nil
}

// runPipeline decodes, parses and validates one file. Skips are returned
// in file line order regardless of which stage produced them.
func runPipeline(data []byte, profile ingest.CapabilityProfile) (candidates []ingest.ImportCandidate, skips []ingest.SkipRecord, totalRows int, err error) {
	text := ingest.Decode(data)
	table, err := ingest.ParseTable(text, profile)
	if err != nil {
		return nil, nil, 0, err
	}

	skips = append(skips, table.Skipped...)
	candidates = make([]ingest.ImportCandidate, 0, len(table.Rows))
	for _, row := range table.Rows {
		candidate, skip := ingest.MapRow(row, table.Header, profile)
		if skip != nil {
			skips = append(skips, *skip)
			metrics.RowsTotal.WithLabelValues("skipped").Inc()
			continue
		}
		candidates = append(candidates, *candidate)
		metrics.RowsTotal.WithLabelValues("candidate").Inc()
	}
	sort.SliceStable(skips, func(i, j int) bool { return skips[i].Line < skips[j].Line })

	return candidates, skips, len(table.Rows) + len(table.Skipped), nil
}

// recordOutcome writes the history row. Detached from the request context
// so a client that disconnected mid-import still leaves a trail; failures
// are logged and swallowed.
func (s *Service) recordOutcome(ctx context.Context, entry historyEntry) {
	if s.history == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.history.record(writeCtx, entry); err != nil {
		logging.FromContext(ctx).Warn("history write failed", "import_id", entry.ID, "error", err)
	}
}

// LoadOrderSelection fetches the orders eligible for dispatch planning.
func (s *Service) LoadOrderSelection(ctx context.Context, q fleet.OrderQuery) ([]fleet.Order, error) {
	return s.loader.LoadAll(ctx, q)
}

// Capabilities returns the tenant's capability profile from the fleet API.
func (s *Service) Capabilities(ctx context.Context) (ingest.CapabilityProfile, error) {
	return s.fleet.GetCapabilities(ctx)
}

// ActiveImports returns how many imports are running right now.
func (s *Service) ActiveImports() int {
	return s.limiter.ActiveCount()
}

// WaitForImports blocks until running imports finish or ctx expires.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ImportHistory lists recent import attempts, newest first.
func (s *Service) ImportHistory(ctx context.Context, limit int) ([]ImportRecord, error) {
	if s.history == nil {
		return nil, errors.New("import history is not configured")
	}
	return s.history.List(ctx, limit)
}

// ImportDetail returns one import attempt by id.
func (s *Service) ImportDetail(ctx context.Context, id string) (*ImportRecord, error) {
	if s.history == nil {
		return nil, errors.New("import history is not configured")
	}
	return s.history.Get(ctx, id)
}
