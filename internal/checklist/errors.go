package checklist

import (
	"errors"
	"fmt"
)

// ErrItemNotFound is returned when an id (or, for the name-keyed commands,
// a name) does not match any item in the list.
var ErrItemNotFound = errors.New("item not found")

// ValidationError reports a malformed partial update or a reorder request
// that leaves out an incomplete item. Field is empty for the latter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation helps callers tell bad input apart from missing items.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err wraps ErrItemNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound)
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrItemNotFound, id)
}
