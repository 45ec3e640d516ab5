// Package validation checks a form snapshot before it is submitted.
package validation

import (
	"sort"
	"strings"
)

// FieldError is a problem with one field. Field is empty for errors that
// concern the form as a whole.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Errors is a list of field errors.
type Errors []FieldError

func (e *Errors) Error() string {
	if e == nil || len(*e) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(*e))
	for _, fe := range *e {
		parts = append(parts, fe.String())
	}
	return strings.Join(parts, "; ")
}

// Add appends an error.
func (e *Errors) Add(field, message string) {
	*e = append(*e, FieldError{Field: field, Message: message})
}

// Len returns the number of errors; zero for a nil list.
func (e *Errors) Len() int {
	if e == nil {
		return 0
	}
	return len(*e)
}

// Field returns the messages for one field.
func (e *Errors) Field(name string) []string {
	if e == nil {
		return nil
	}
	var out []string
	for _, fe := range *e {
		if fe.Field == name {
			out = append(out, fe.Message)
		}
	}
	return out
}

// Sort orders errors by field, keeping the original order within a field.
func (e *Errors) Sort() {
	if e == nil {
		return
	}
	sort.SliceStable(*e, func(i, j int) bool { return (*e)[i].Field < (*e)[j].Field })
}

// orNil returns nil for an empty list so callers can test the result
// against nil.
func (e *Errors) orNil() *Errors {
	if e.Len() == 0 {
		return nil
	}
	return e
}
