package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("catalog item not found")
	ErrNameRequired = errors.New("el nombre es obligatorio")
	ErrBatchUnknown = errors.New("carga no encontrada")
)

// Kind classifies failures for callers that map them onto a transport.
type Kind string

const (
	KindSchema      Kind = "schema"
	KindEmpty       Kind = "empty_input"
	KindParse       Kind = "parse_error"
	KindQuota       Kind = "quota_exceeded"
	KindPersistence Kind = "persistence"
	KindNotFound    Kind = "not_found"
	KindValidation  Kind = "validation"
	KindUnknown     Kind = "unknown"
)

// TemplateHint is appended to schema failures.
const TemplateHint = "Descarga la plantilla de referencia y vuelve a intentarlo."

// SchemaError rejects a file whose header does not match the category columns.
type SchemaError struct {
	Category Category
	FileName string
	Missing  []string
	Unknown  []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("El archivo %q no tiene el formato de %s. %s", e.FileName, e.Category.Label(), TemplateHint)
}

// Details lists the offending columns.
func (e *SchemaError) Details() []string {
	var out []string
	if len(e.Missing) > 0 {
		out = append(out, "faltan columnas: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		out = append(out, "columnas desconocidas: "+strings.Join(e.Unknown, ", "))
	}
	return out
}

// EmptyInputError rejects a file that has a header but no data rows.
type EmptyInputError struct {
	Category Category
	FileName string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("El archivo %q no contiene %s.", e.FileName, e.Category.Label())
}

// ParseError rejects files that are not tabular or cannot be read.
type ParseError struct {
	FileName string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("No se pudo leer %q: %s", e.FileName, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// QuotaError is a hard stop: nothing was admitted.
type QuotaError struct {
	Category  Category
	Limit     int
	Current   int
	Requested int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("Alcanzaste el límite de %d %s de tu plan.", e.Limit, e.Category.Label())
}

// PersistenceError carries the server's message verbatim.
type PersistenceError struct {
	Op      string
	Message string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Op + " failed"
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError wraps a collaborator failure, keeping its message.
func NewPersistenceError(op string, err error) *PersistenceError {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe
	}
	return &PersistenceError{Op: op, Message: err.Error(), Err: err}
}

// KindOf classifies err.
func KindOf(err error) Kind {
	var (
		schema  *SchemaError
		empty   *EmptyInputError
		parse   *ParseError
		quota   *QuotaError
		persist *PersistenceError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &schema):
		return KindSchema
	case errors.As(err, &empty):
		return KindEmpty
	case errors.As(err, &parse):
		return KindParse
	case errors.As(err, &quota):
		return KindQuota
	case errors.As(err, &persist):
		return KindPersistence
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrBatchUnknown):
		return KindNotFound
	case errors.Is(err, ErrNameRequired), errors.Is(err, ErrVideoURLRequired):
		return KindValidation
	default:
		return KindUnknown
	}
}
