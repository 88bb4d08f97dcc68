package ingest

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrInsufficientRows is returned when the file does not contain at least a
// header line and one data line after blank lines are discarded.
var ErrInsufficientRows = errors.New("el archivo no tiene filas suficientes: se necesita una cabecera y al menos una fila de datos")

// MissingColumnsError reports required columns absent from the header after
// normalization. Columns keeps the canonical names in required-set order.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "faltan columnas requeridas: " + strings.Join(e.Columns, ", ")
}

// HeaderIndex maps column names to cell positions. Each header cell is
// indexed twice: under its normalized form and under its original form
// (lowercased and trimmed only). Lookups try the normalized index first so
// "Dirección" and "direccion" resolve to the same column, while files whose
// headers only match verbatim still work.
type HeaderIndex struct {
	normalized map[string]int
	original   map[string]int
}

// Lookup returns the cell index for name, preferring the normalized index.
func (h *HeaderIndex) Lookup(name string) (int, bool) {
	if i, ok := h.normalized[name]; ok {
		return i, true
	}
	i, ok := h.original[name]
	return i, ok
}

// Has reports whether name resolves to any column.
func (h *HeaderIndex) Has(name string) bool {
	_, ok := h.Lookup(name)
	return ok
}

// Columns returns the number of header cells.
func (h *HeaderIndex) Columns() int {
	return len(h.normalized)
}

// Table is the parsed form of an import file: an indexed header, the data
// rows that carried enough cells, and skip records for the rows that did
// not.
type Table struct {
	Header    *HeaderIndex
	Rows      []RawRow
	Skipped   []SkipRecord
	Delimiter rune
}

type numberedLine struct {
	number int
	text   string
}

// ParseTable splits decoded file text into an indexed table and verifies
// the header against the profile's required column set.
//
// Blank lines are discarded before counting; a file reduced to fewer than
// two lines fails with ErrInsufficientRows. The delimiter is sniffed from
// the header line only, preferring tab, then semicolon, then comma. Data
// rows with fewer cells than the required column count are not silently
// dropped: each becomes a SkipRecord so operators can see which lines of
// their file went missing.
func ParseTable(text string, profile CapabilityProfile) (*Table, error) {
	// A decoder that honored the BOM already stripped it, but text can
	// also reach here from other paths.
	text = strings.TrimPrefix(text, "\uFEFF")

	lines := splitLines(text)
	if len(lines) < 2 {
		return nil, ErrInsufficientRows
	}

	delimiter := sniffDelimiter(lines[0].text)
	header := buildHeaderIndex(splitCells(lines[0].text, delimiter))

	required := profile.RequiredColumns()
	var missing []string
	for _, col := range required {
		if !header.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	table := &Table{
		Header:    header,
		Rows:      make([]RawRow, 0, len(lines)-1),
		Delimiter: delimiter,
	}
	for _, line := range lines[1:] {
		cells := splitCells(line.text, delimiter)
		if len(cells) < len(required) {
			table.Skipped = append(table.Skipped, SkipRecord{
				Line:   line.number,
				Reason: fmt.Sprintf("fila %d: columnas insuficientes (%d de %d)", line.number, len(cells), len(required)),
			})
			continue
		}
		table.Rows = append(table.Rows, RawRow{Line: line.number, Cells: cells})
	}
	return table, nil
}

// splitLines breaks text on newlines, drops blank lines and keeps each
// surviving line's 1-based position in the original text so skip records
// point at the file the operator is looking at.
func splitLines(text string) []numberedLine {
	raw := strings.Split(text, "\n")
	lines := make([]numberedLine, 0, len(raw))
	for i, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, numberedLine{number: i + 1, text: line})
	}
	return lines
}

// sniffDelimiter picks the field delimiter from the header line: first of
// tab, semicolon, comma that appears wins, defaulting to comma. Data rows
// are never consulted.
func sniffDelimiter(header string) rune {
	for _, d := range []rune{'\t', ';', ','} {
		if strings.ContainsRune(header, d) {
			return d
		}
	}
	return ','
}

func splitCells(line string, delimiter rune) []string {
	cells := strings.Split(line, string(delimiter))
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

func buildHeaderIndex(cells []string) *HeaderIndex {
	h := &HeaderIndex{
		normalized: make(map[string]int, len(cells)),
		original:   make(map[string]int, len(cells)),
	}
	for i, cell := range cells {
		key := NormalizeHeader(cell)
		if _, exists := h.normalized[key]; !exists {
			h.normalized[key] = i
		}
		orig := strings.ToLower(strings.TrimSpace(cell))
		if _, exists := h.original[orig]; !exists {
			h.original[orig] = i
		}
	}
	return h
}

// NormalizeHeader reduces a header cell to its canonical column key:
// trimmed, lowercased, diacritics stripped by canonical decomposition
// ("Dirección" → "direccion", "Año" → "ano") and every remaining character
// outside [a-z0-9_] replaced with an underscore ("Track Code" →
// "track_code").
func NormalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	// Decompose, drop combining marks, recompose. The transform chain is
	// built per call: Transformer instances carry state and are not safe
	// for concurrent use.
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(chain, name); err == nil {
		name = stripped
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
