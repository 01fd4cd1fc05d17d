package domain

import "fmt"

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func Invalid(field, msg string) error {
	return ValidationError{Field: field, Msg: msg}
}
