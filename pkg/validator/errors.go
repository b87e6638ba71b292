package validator

import "strings"

// ValidationErrors collects field failures.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// FieldError is one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}
	return "validation failed: " + strings.Join(v.Messages(), "; ")
}

// First returns the first message, or "".
func (v *ValidationErrors) First() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}
	return v.Errors[0].Message
}

// Messages returns every message in order.
func (v *ValidationErrors) Messages() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.Errors))
	for i, fe := range v.Errors {
		out[i] = fe.Message
	}
	return out
}

// ForField returns the messages reported for field.
func (v *ValidationErrors) ForField(field string) []string {
	if v == nil {
		return nil
	}
	var out []string
	for _, fe := range v.Errors {
		if fe.Field == field {
			out = append(out, fe.Message)
		}
	}
	return out
}

// NewValidationError builds a single-entry ValidationErrors.
func NewValidationError(field, tag, message string) *ValidationErrors {
	return &ValidationErrors{Errors: []FieldError{{Field: field, Tag: tag, Message: message}}}
}
