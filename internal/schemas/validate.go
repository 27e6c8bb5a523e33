// Package schemas validates assembled run documents against the task JSON
// Schema before they reach the persistence layer.
package schemas

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed task.schema.json
var taskSchema []byte

// FieldError is a single validation error at a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError aggregates all schema violations for one document.
type ValidationError struct {
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("document validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError reports a failure to load or compile the schema itself.
type SchemaLoadError struct {
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load task schema: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load task schema: %s", e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// ValidateDocument checks a document (any JSON-marshalable value) against
// the task schema. It returns nil when valid, a *ValidationError listing
// every violation otherwise.
func ValidateDocument(doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return &SchemaLoadError{Message: "marshaling document", Cause: err}
	}

	schemaLoader := gojsonschema.NewBytesLoader(taskSchema)
	docLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return &SchemaLoadError{Message: "running validation", Cause: err}
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{}
	for _, resErr := range result.Errors() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   resErr.Field(),
			Message: resErr.Description(),
		})
	}
	return ve
}
