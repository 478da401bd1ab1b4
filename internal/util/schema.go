package util

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// SchemaFor reflects a JSON schema from a Go struct. Fields without
// omitempty are required; descriptions come from `jsonschema:"description=..."`
// tags. The result is a plain map suitable for model tool declarations.
func SchemaFor(v any) map[string]any {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
		Anonymous:      true,
	}

	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	delete(schema, "$schema")
	delete(schema, "$id")

	return schema
}

// ValidateParameters validates params against a JSON schema and reports the
// first violation as a *ValidationError.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	if params == nil {
		params = map[string]any{}
	}

	res, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(params))
	if err != nil {
		return &ValidationError{Field: "(schema)", Message: err.Error()}
	}

	if res.Valid() {
		return nil
	}

	first := res.Errors()[0]
	field := first.Field()

	if field == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
		if p, ok := first.Details()["property"].(string); ok {
			field = p
		}
	}

	return &ValidationError{
		Field:   field,
		Value:   first.Value(),
		Message: first.Description(),
	}
}
