package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	maxTrackingIDLen = 50
	maxAddressLen    = 500
	maxNotesLen      = 500
)

var (
	coordinatePattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
	timeWindowPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)
)

// orderTypeVocabulary maps accepted spellings, already uppercased, to the
// normalized order type.
var orderTypeVocabulary = map[string]OrderType{
	"NEW":          OrderTypeNew,
	"NUEVO":        OrderTypeNew,
	"RESCHEDULED":  OrderTypeRescheduled,
	"REPROGRAMADO": OrderTypeRescheduled,
	"URGENT":       OrderTypeUrgent,
	"URGENTE":      OrderTypeUrgent,
}

// MapRow converts one raw row into an ImportCandidate or a SkipRecord,
// never both.
//
// Fatal checks run in a fixed order and the first failure wins: the row
// must carry a trackcode, both coordinate cells, at least one address
// component, and coordinates that survive cleaning as plain decimal
// numbers. Everything after that is best effort: optional fields that fail
// their own parsing are dropped from the candidate without affecting the
// row's fate.
//
// MapRow is a pure function of its arguments; mapping the same row twice
// yields identical candidates.
func MapRow(row RawRow, header *HeaderIndex, profile CapabilityProfile) (*ImportCandidate, *SkipRecord) {
	track := row.Value(header, ColTrackCode)
	if track == "" {
		return nil, row.skip(fmt.Sprintf("fila %d: sin trackcode", row.Line))
	}

	rawLat := row.Value(header, ColLatitude)
	rawLon := row.Value(header, ColLongitude)
	if rawLat == "" || rawLon == "" {
		return nil, row.skip(track + ": faltan coordenadas")
	}

	address := joinParts(", ",
		row.Value(header, ColAddress),
		row.Value(header, ColDistrict),
		row.Value(header, ColProvince),
		row.Value(header, ColDepartment),
	)
	if address == "" {
		return nil, row.skip(track + ": sin dirección")
	}

	cleanLat := CleanCoordinate(rawLat)
	cleanLon := CleanCoordinate(rawLon)
	if !coordinatePattern.MatchString(cleanLat) || !coordinatePattern.MatchString(cleanLon) {
		return nil, row.skip(track + ": coordenadas inválidas")
	}
	lat, errLat := strconv.ParseFloat(cleanLat, 64)
	lon, errLon := strconv.ParseFloat(cleanLon, 64)
	if errLat != nil || errLon != nil {
		return nil, row.skip(track + ": coordenadas inválidas")
	}

	name := row.Value(header, ColCustomerName)
	phone := row.Value(header, ColPhone)

	candidate := &ImportCandidate{
		TrackingID:    truncate(track, maxTrackingIDLen),
		Address:       truncate(address, maxAddressLen),
		Latitude:      lat,
		Longitude:     lon,
		CustomerName:  name,
		CustomerPhone: phone,
		Notes:         buildNotes(row.Value(header, ColReference), name, phone),
	}

	if profile.OrderValue {
		candidate.OrderValue = parsePositiveInt(row.Value(header, ColOrderValue))
	}
	if profile.Weight {
		candidate.WeightRequired = parsePositiveInt(row.Value(header, ColWeight))
	}
	if profile.Volume {
		candidate.VolumeRequired = parsePositiveInt(row.Value(header, ColVolume))
	}
	if profile.Units {
		candidate.UnitsRequired = parsePositiveInt(row.Value(header, ColUnits))
	}
	if profile.OrderType {
		candidate.OrderType = parseOrderType(row.Value(header, ColOrderType))
	}

	candidate.Priority = parsePriority(row.Value(header, ColPriority))
	candidate.TimeWindowStart = parseTimeWindow(row.Value(header, ColWindowStart))
	candidate.TimeWindowEnd = parseTimeWindow(row.Value(header, ColWindowEnd))

	return candidate, nil
}

// Value returns the trimmed cell under the named column, or "" when the
// column is unknown or the row is too short to reach it.
func (r RawRow) Value(header *HeaderIndex, name string) string {
	i, ok := header.Lookup(name)
	if !ok || i >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[i])
}

func (r RawRow) skip(reason string) *SkipRecord {
	return &SkipRecord{Line: r.Line, Reason: reason}
}

// CleanCoordinate prepares a raw coordinate cell for parsing: decimal
// commas become points ("40,7128" → "40.7128") and every character outside
// [0-9.-] is dropped, which strips degree signs, spaces and stray quotes
// from spreadsheet exports.
func CleanCoordinate(raw string) string {
	raw = strings.ReplaceAll(raw, ",", ".")
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// joinParts joins the non-empty parts with sep, preserving order.
func joinParts(sep string, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// buildNotes assembles the operator-facing notes line from the reference
// cell plus labeled customer name and phone, truncated to the notes limit.
func buildNotes(reference, name, phone string) string {
	var parts []string
	if reference != "" {
		parts = append(parts, reference)
	}
	if name != "" {
		parts = append(parts, "Cliente: "+name)
	}
	if phone != "" {
		parts = append(parts, "Tel: "+phone)
	}
	return truncate(strings.Join(parts, " | "), maxNotesLen)
}

// truncate limits s to limit runes. Cutting on runes rather than bytes
// keeps multi-byte characters intact at the boundary.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// parsePositiveInt accepts strictly positive integers and rejects
// everything else, including zero, negatives and decimal strings.
func parsePositiveInt(raw string) *int {
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func parseOrderType(raw string) *OrderType {
	if raw == "" {
		return nil
	}
	t, ok := orderTypeVocabulary[strings.ToUpper(raw)]
	if !ok {
		return nil
	}
	return &t
}

// parsePriority accepts integers in [0, 100].
func parsePriority(raw string) *int {
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 100 {
		return nil
	}
	return &n
}

// parseTimeWindow accepts HH:MM wall-clock times ("08:30", "8:30"); any
// other shape, including out-of-range fields and single-digit minutes, is
// dropped.
func parseTimeWindow(raw string) *string {
	if raw == "" {
		return nil
	}
	if !timeWindowPattern.MatchString(raw) {
		return nil
	}
	return &raw
}
