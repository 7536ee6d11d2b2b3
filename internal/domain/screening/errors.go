package screening

import (
	"errors"
	"strings"
)

// Sentinel kinds for screening errors.
var (
	ErrInvalidInput = errors.New("invalid screening input")
)

// FieldError describes one rejected field of a screening payload.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// ValidationErrors collects every rejected field of a payload, in feature order.
// It matches ErrInvalidInput through errors.Is.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Error()
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap exposes the sentinel kind.
func (v ValidationErrors) Unwrap() error { return ErrInvalidInput }

// Fields returns the names of the rejected fields.
func (v ValidationErrors) Fields() []string {
	names := make([]string, len(v))
	for i, fe := range v {
		names[i] = fe.Field
	}
	return names
}
