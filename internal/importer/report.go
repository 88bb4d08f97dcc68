package importer

import (
	"fmt"
	"strings"

	"github.com/EijunnN/flash-route-sub001/internal/fleet"
	"github.com/EijunnN/flash-route-sub001/internal/ingest"
)

const (
	duplicatePreviewLimit = 3
	skipPreviewLimit      = 3
	skipFailureLimit      = 5
)

// Report is the operator-facing outcome of one completed import: the
// server's accounting merged with the rows discarded locally before the
// batch was sent.
type Report struct {
	Created    int `json:"created"`
	Skipped    int `json:"skipped"`
	Invalid    int `json:"invalid"`
	LocalSkips int `json:"localSkips"`

	DuplicatePreview []string `json:"duplicatePreview,omitempty"`
	MoreDuplicates   bool     `json:"moreDuplicates,omitempty"`
	SkipPreview      []string `json:"skipPreview,omitempty"`

	Message string `json:"message"`
}

// BuildReport merges the fleet API's result with the local skip records
// into one report. Previews are capped so a 5000-row disaster still reads
// as one sentence.
func BuildReport(result *fleet.BulkCreateResult, skips []ingest.SkipRecord) *Report {
	r := &Report{
		Created:    result.Created,
		Skipped:    result.Skipped,
		Invalid:    result.Invalid,
		LocalSkips: len(skips),
	}
	for i, d := range result.Duplicates {
		if i == duplicatePreviewLimit {
			r.MoreDuplicates = true
			break
		}
		r.DuplicatePreview = append(r.DuplicatePreview, d)
	}
	for i, s := range skips {
		if i == skipPreviewLimit {
			break
		}
		r.SkipPreview = append(r.SkipPreview, s.Reason)
	}
	r.Message = r.buildMessage()
	return r
}

func (r *Report) buildMessage() string {
	parts := []string{fmt.Sprintf("%d pedidos creados", r.Created)}
	if r.Skipped > 0 {
		part := fmt.Sprintf("%d omitidos por duplicado", r.Skipped)
		if len(r.DuplicatePreview) > 0 {
			suffix := ""
			if r.MoreDuplicates {
				suffix = "..."
			}
			part += " (" + strings.Join(r.DuplicatePreview, ", ") + suffix + ")"
		}
		parts = append(parts, part)
	}
	if r.Invalid > 0 {
		parts = append(parts, fmt.Sprintf("%d rechazados por el servidor", r.Invalid))
	}
	if r.LocalSkips > 0 {
		part := fmt.Sprintf("%d filas descartadas antes del envío", r.LocalSkips)
		if len(r.SkipPreview) > 0 {
			part += " (" + strings.Join(r.SkipPreview, "; ") + ")"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ") + "."
}

// EmptyBatchError is returned when validation leaves nothing to submit.
// The fleet API is never contacted in that case; the error itself carries
// the first skip reasons so the operator sees why the file produced no
// orders.
type EmptyBatchError struct {
	Skips []ingest.SkipRecord
}

func (e *EmptyBatchError) Error() string {
	msg := "ningún pedido válido para importar"
	if len(e.Skips) == 0 {
		return msg
	}
	reasons := make([]string, 0, skipFailureLimit)
	for i, s := range e.Skips {
		if i == skipFailureLimit {
			break
		}
		reasons = append(reasons, s.Reason)
	}
	return msg + ": " + strings.Join(reasons, "; ")
}
