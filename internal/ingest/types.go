package ingest

// RawRow is one data row of a parsed file: its 1-based line number in the
// original text and its trimmed cells, positionally aligned with the header.
type RawRow struct {
	Line  int
	Cells []string
}

// SkipRecord explains why a row was excluded from the import batch. Reasons
// are operator-facing Spanish text.
type SkipRecord struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// OrderType is the normalized order classification accepted by the fleet
// API. Files may spell these in English or Spanish; see MapRow.
type OrderType string

const (
	OrderTypeNew         OrderType = "NEW"
	OrderTypeRescheduled OrderType = "RESCHEDULED"
	OrderTypeUrgent      OrderType = "URGENT"
)

// ImportCandidate is one validated order ready for bulk creation. Required
// fields are always set; pointer fields are nil when the file did not carry
// a usable value for them. The JSON shape matches the fleet API's bulk
// creation contract.
type ImportCandidate struct {
	TrackingID string  `json:"trackingId"`
	Address    string  `json:"address"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`

	CustomerName  string `json:"customerName,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`
	Notes         string `json:"notes,omitempty"`

	OrderValue     *int       `json:"orderValue,omitempty"`
	WeightRequired *int       `json:"weightRequired,omitempty"`
	VolumeRequired *int       `json:"volumeRequired,omitempty"`
	UnitsRequired  *int       `json:"unitsRequired,omitempty"`
	OrderType      *OrderType `json:"orderType,omitempty"`

	Priority        *int    `json:"priority,omitempty"`
	TimeWindowStart *string `json:"timeWindowStart,omitempty"`
	TimeWindowEnd   *string `json:"timeWindowEnd,omitempty"`
}
