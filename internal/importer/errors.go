// Package importer orchestrates bulk order imports: it runs the ingest
// pipeline, submits batches to the fleet API, builds operator-facing
// reports and keeps the import history.
//
// Error code reference:
//
//	FILE001 - file exceeds the configured size limit
//	FILE002 - file has too few rows to import
//	FILE003 - request carried no file
//	FILE004 - file was empty
//	FILE005 - upload body was not a valid multipart form
//	VAL001  - required columns missing from the header
//	VAL002  - no row survived validation
//	VAL003  - capability profile payload was invalid
//	RATE001 - rate limited
//	API001  - fleet API rejected the batch
//	API002  - fleet API unreachable
//	IMP001  - too many concurrent imports
//	IMP002  - import canceled
//	IMP003  - import timed out
//	IMP004  - import not found in history
//	DB001   - history database unavailable
//	ERR000  - unclassified error
package importer

import (
	"fmt"
	"strings"
)

// UserMessage is what an operator sees when something fails: a Spanish
// description, a suggested action and a stable code for support tickets.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	message UserMessage
}

// errorPatterns maps technical error text to user messages. Matching is
// case-insensitive substring search in declaration order, so more specific
// patterns must come before the general ones they contain ("fleet api
// unreachable" before "fleet api").
var errorPatterns = []errorPattern{
	{
		pattern: "faltan columnas",
		message: UserMessage{
			Message: "El archivo no tiene todas las columnas requeridas",
			Action:  "Revise la cabecera del archivo y agregue las columnas que faltan.",
			Code:    "VAL001",
		},
	},
	{
		pattern: "ningún pedido válido",
		message: UserMessage{
			Message: "Ninguna fila del archivo pasó la validación",
			Action:  "Revise los motivos de descarte y corrija el archivo.",
			Code:    "VAL002",
		},
	},
	{
		pattern: "filas suficientes",
		message: UserMessage{
			Message: "El archivo no tiene filas suficientes",
			Action:  "El archivo debe tener una cabecera y al menos una fila de datos.",
			Code:    "FILE002",
		},
	},
	{
		pattern: "body too large",
		message: UserMessage{
			Message: "El archivo supera el tamaño máximo permitido",
			Action:  "Divida el archivo en partes más pequeñas e intente de nuevo.",
			Code:    "FILE001",
		},
	},
	{
		pattern: "file too large",
		message: UserMessage{
			Message: "El archivo supera el tamaño máximo permitido",
			Action:  "Divida el archivo en partes más pequeñas e intente de nuevo.",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		message: UserMessage{
			Message: "No se recibió ningún archivo",
			Action:  "Adjunte el archivo de pedidos y vuelva a intentarlo.",
			Code:    "FILE003",
		},
	},
	{
		pattern: "empty file",
		message: UserMessage{
			Message: "El archivo está vacío",
			Action:  "Verifique que exportó el archivo correcto.",
			Code:    "FILE004",
		},
	},
	{
		pattern: "malformed upload",
		message: UserMessage{
			Message: "La solicitud de importación es inválida",
			Action:  "Vuelva a subir el archivo desde la consola; si persiste contacte a soporte.",
			Code:    "FILE005",
		},
	},
	{
		pattern: "invalid capabilities",
		message: UserMessage{
			Message: "El perfil de capacidades es inválido",
			Action:  "Revise el formato del perfil de capacidades e intente de nuevo.",
			Code:    "VAL003",
		},
	},
	{
		pattern: "rate limit",
		message: UserMessage{
			Message: "Demasiadas solicitudes en poco tiempo",
			Action:  "Espere un momento antes de volver a intentarlo.",
			Code:    "RATE001",
		},
	},
	{
		pattern: "fleet api unreachable",
		message: UserMessage{
			Message: "No se pudo contactar al servidor de flota",
			Action:  "El lote no fue enviado. Verifique la conexión y vuelva a subir el archivo.",
			Code:    "API002",
		},
	},
	{
		pattern: "fleet api",
		message: UserMessage{
			Message: "El servidor de flota rechazó la operación",
			Action:  "Revise el detalle del error; si persiste contacte a soporte.",
			Code:    "API001",
		},
	},
	{
		pattern: "too many concurrent imports",
		message: UserMessage{
			Message: "Hay demasiadas importaciones en curso",
			Action:  "Espere a que terminen las importaciones activas e intente de nuevo.",
			Code:    "IMP001",
		},
	},
	{
		pattern: "context canceled",
		message: UserMessage{
			Message: "La importación fue cancelada",
			Action:  "Vuelva a subir el archivo si el lote no se completó.",
			Code:    "IMP002",
		},
	},
	{
		pattern: "context deadline exceeded",
		message: UserMessage{
			Message: "La operación tardó demasiado",
			Action:  "Intente con un archivo más pequeño o vuelva a intentarlo más tarde.",
			Code:    "IMP003",
		},
	},
	{
		pattern: "import not found",
		message: UserMessage{
			Message: "No se encontró la importación solicitada",
			Action:  "Verifique el identificador e intente de nuevo.",
			Code:    "IMP004",
		},
	},
	{
		pattern: "connection refused",
		message: UserMessage{
			Message: "No se pudo conectar a la base de datos",
			Action:  "Intente de nuevo en unos minutos; si persiste contacte a soporte.",
			Code:    "DB001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "Ocurrió un error inesperado",
	Action:  "Vuelva a intentarlo; si persiste contacte a soporte con el código.",
	Code:    "ERR000",
}

// MapError translates a technical error into its operator-facing message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	msg := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(msg, p.pattern) {
			return p.message
		}
	}
	return defaultMessage
}

// FormatUserError renders the mapped message as a single line for plain
// text surfaces.
func FormatUserError(err error) string {
	m := MapError(err)
	return fmt.Sprintf("%s (Code: %s). %s", m.Message, m.Code, m.Action)
}

// IsUserFacing reports whether err maps to a specific known message rather
// than the generic fallback.
func IsUserFacing(err error) bool {
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with a pre-built user message, for
// call sites that know the mapping better than the pattern table does.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	if e.Technical != nil {
		return e.Technical.Error()
	}
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError wraps err with an explicit user message.
func NewUserError(err error, message UserMessage) *UserError {
	return &UserError{Technical: err, User: message}
}
