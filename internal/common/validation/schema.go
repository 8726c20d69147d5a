package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// UpdateSchema describes the subset of a Telegram Update the webhook consumes. Updates
// without a message (edits, callbacks) are valid and ignored downstream.
const UpdateSchema = `{
	"type": "object",
	"required": ["update_id"],
	"properties": {
		"update_id": {"type": "integer"},
		"message": {
			"type": "object",
			"required": ["chat", "from"],
			"properties": {
				"text": {"type": "string", "maxLength": 4096},
				"chat": {
					"type": "object",
					"required": ["id"],
					"properties": {"id": {"type": "integer"}}
				},
				"from": {
					"type": "object",
					"required": ["id"],
					"properties": {
						"id": {"type": "integer"},
						"first_name": {"type": "string"},
						"username": {"type": "string"}
					}
				}
			}
		}
	}
}`

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error joins the field errors into one line.
func (r *ValidationResult) Error() string {
	if r.Valid {
		return ""
	}
	msg := ""
	for i, e := range r.Errors {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return msg
}

// Validator holds a compiled schema and is safe for concurrent use.
type Validator struct {
	schema *gojsonschema.Schema
}

func NewValidator(schema string) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// ValidateBytes validates a raw JSON document. Malformed JSON is reported as a single
// error on the root field.
func (v *Validator) ValidateBytes(body []byte) *ValidationResult {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &ValidationResult{
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "MALFORMED_JSON"}},
		}
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	return &ValidationResult{Errors: errs}
}
