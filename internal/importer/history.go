package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrImportNotFound is returned when an import id has no history row.
var ErrImportNotFound = errors.New("import not found")

// Import outcome statuses as stored in history.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
)

// ImportRecord is one row of the import history as served to clients.
type ImportRecord struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	FileSize   int64     `json:"fileSize"`
	Status     string    `json:"status"`
	Created    int       `json:"created"`
	Skipped    int       `json:"skipped"`
	Invalid    int       `json:"invalid"`
	LocalSkips int       `json:"localSkips"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// historyEntry is the write-side shape recorded after each attempt.
type historyEntry struct {
	ID         string
	FileName   string
	FileSize   int64
	Status     string
	Created    int
	Skipped    int
	Invalid    int
	LocalSkips int
	Message    string
	Err        string
	Duration   time.Duration
}

// History records one row per import attempt so operators can audit what
// was loaded, when and with what outcome. Writes are best effort: the
// import's fate never depends on the history table.
type History struct {
	pool *pgxpool.Pool
}

func NewHistory(pool *pgxpool.Pool) *History {
	return &History{pool: pool}
}

// EnsureSchema creates the history table when it does not exist yet.
func (h *History) EnsureSchema(ctx context.Context) error {
	_, err := h.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS import_history (
			id            UUID PRIMARY KEY,
			file_name     TEXT NOT NULL,
			file_size     BIGINT NOT NULL DEFAULT 0,
			status        TEXT NOT NULL,
			created_count INT NOT NULL DEFAULT 0,
			skipped_count INT NOT NULL DEFAULT 0,
			invalid_count INT NOT NULL DEFAULT 0,
			local_skips   INT NOT NULL DEFAULT 0,
			message       TEXT NOT NULL DEFAULT '',
			error         TEXT NOT NULL DEFAULT '',
			duration_ms   BIGINT NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure import_history schema: %w", err)
	}
	return nil
}

func (h *History) record(ctx context.Context, e historyEntry) error {
	_, err := h.pool.Exec(ctx, `
		INSERT INTO import_history
			(id, file_name, file_size, status, created_count, skipped_count,
			 invalid_count, local_skips, message, error, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.FileName, e.FileSize, e.Status, e.Created, e.Skipped,
		e.Invalid, e.LocalSkips, e.Message, e.Err, e.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record import history: %w", err)
	}
	return nil
}

// List returns the most recent import records, newest first. The limit is
// clamped to a sane range.
func (h *History) List(ctx context.Context, limit int) ([]ImportRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := h.pool.Query(ctx, `
		SELECT id::text, file_name, file_size, status, created_count,
		       skipped_count, invalid_count, local_skips, message, error,
		       duration_ms, created_at
		FROM import_history
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list import history: %w", err)
	}
	defer rows.Close()

	records := make([]ImportRecord, 0, limit)
	for rows.Next() {
		var r ImportRecord
		if err := rows.Scan(&r.ID, &r.FileName, &r.FileSize, &r.Status,
			&r.Created, &r.Skipped, &r.Invalid, &r.LocalSkips,
			&r.Message, &r.Error, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan import history row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import history: %w", err)
	}
	return records, nil
}

// Get returns one import record by id.
func (h *History) Get(ctx context.Context, id string) (*ImportRecord, error) {
	var r ImportRecord
	err := h.pool.QueryRow(ctx, `
		SELECT id::text, file_name, file_size, status, created_count,
		       skipped_count, invalid_count, local_skips, message, error,
		       duration_ms, created_at
		FROM import_history
		WHERE id = $1`, id).
		Scan(&r.ID, &r.FileName, &r.FileSize, &r.Status,
			&r.Created, &r.Skipped, &r.Invalid, &r.LocalSkips,
			&r.Message, &r.Error, &r.DurationMs, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrImportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import history row: %w", err)
	}
	return &r, nil
}

// RetentionConfig controls how long history rows are kept.
type RetentionConfig struct {
	MaxAgeDays    int
	SweepInterval time.Duration
}

// StartRetentionSweeper deletes history older than the retention window,
// once at startup and then on every interval tick, until ctx is canceled.
// Run it in its own goroutine.
func (h *History) StartRetentionSweeper(ctx context.Context, cfg RetentionConfig) {
	if cfg.MaxAgeDays <= 0 || cfg.SweepInterval <= 0 {
		return
	}
	slog.Info("history retention sweeper started",
		"max_age_days", cfg.MaxAgeDays,
		"interval", cfg.SweepInterval.String())

	h.sweep(ctx, cfg.MaxAgeDays)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("history retention sweeper stopped")
			return
		case <-ticker.C:
			h.sweep(ctx, cfg.MaxAgeDays)
		}
	}
}

func (h *History) sweep(ctx context.Context, maxAgeDays int) {
	tag, err := h.pool.Exec(ctx, `
		DELETE FROM import_history
		WHERE created_at < now() - make_interval(days => $1)`, maxAgeDays)
	if err != nil {
		slog.Error("history retention sweep failed", "error", err)
		return
	}
	if tag.RowsAffected() > 0 {
		slog.Info("history retention sweep completed", "entries_removed", tag.RowsAffected())
	}
}
