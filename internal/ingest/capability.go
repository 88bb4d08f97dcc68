package ingest

// Canonical column keys after header normalization. Files may carry these
// decorated with case, whitespace and diacritics ("Dirección", " TRACKCODE ");
// NormalizeHeader reduces them all to these forms.
const (
	ColTrackCode    = "trackcode"
	ColCustomerName = "nombre_cliente"
	ColAddress      = "direccion"
	ColReference    = "referencia"
	ColDepartment   = "departamento"
	ColProvince     = "provincia"
	ColDistrict     = "distrito"
	ColLatitude     = "latitud"
	ColLongitude    = "longitud"
	ColPhone        = "telefono"

	// Capability-gated columns.
	ColOrderValue = "valorizado"
	ColWeight     = "peso"
	ColVolume     = "volumen"
	ColUnits      = "unidades"
	ColOrderType  = "tipo_pedido"

	// Optional columns, parsed when present regardless of capabilities.
	ColPriority    = "prioridad"
	ColWindowStart = "ventana_horaria_inicio"
	ColWindowEnd   = "ventana_horaria_fin"
)

// baseColumns is required of every import file regardless of tenant
// capabilities. Order matters only for error messages.
var baseColumns = []string{
	ColTrackCode,
	ColCustomerName,
	ColAddress,
	ColReference,
	ColDepartment,
	ColProvince,
	ColDistrict,
	ColLatitude,
	ColLongitude,
	ColPhone,
}

// CapabilityProfile describes which optional order fields the tenant has
// enabled. Each enabled flag adds one column to the required set and turns
// on parsing of the matching candidate field.
type CapabilityProfile struct {
	OrderValue bool `json:"orderValue"`
	Weight     bool `json:"weight"`
	Volume     bool `json:"volume"`
	Units      bool `json:"units"`
	OrderType  bool `json:"orderType"`
}

// RequiredColumns returns the canonical column names an import file must
// provide under this profile: the base set plus one column per enabled
// capability, in stable order.
func (p CapabilityProfile) RequiredColumns() []string {
	cols := make([]string, 0, len(baseColumns)+5)
	cols = append(cols, baseColumns...)
	if p.OrderValue {
		cols = append(cols, ColOrderValue)
	}
	if p.Weight {
		cols = append(cols, ColWeight)
	}
	if p.Volume {
		cols = append(cols, ColVolume)
	}
	if p.Units {
		cols = append(cols, ColUnits)
	}
	if p.OrderType {
		cols = append(cols, ColOrderType)
	}
	return cols
}
