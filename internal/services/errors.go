package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInput marks item lists that cannot be produced or parsed.
	ErrInput = errors.New("input error")
	// ErrValidation marks control requests that are invalid for the current state.
	ErrValidation = errors.New("validation error")
	// ErrItem marks a single item failure; the run continues.
	ErrItem = errors.New("item error")
	// ErrResource marks processor acquisition or release failures.
	ErrResource = errors.New("resource error")
	// ErrInternal marks unexpected failures inside the execution loop.
	ErrInternal = errors.New("internal error")
)

// ErrorKind names the taxonomy bucket an error belongs to.
type ErrorKind string

const (
	KindInput      ErrorKind = "input"
	KindValidation ErrorKind = "validation"
	KindItem       ErrorKind = "item"
	KindResource   ErrorKind = "resource"
	KindInternal   ErrorKind = "internal"
	KindUnknown    ErrorKind = "unknown"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind reports the taxonomy bucket of err.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInput):
		return KindInput
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrItem):
		return KindItem
	case errors.Is(err, ErrResource):
		return KindResource
	case errors.Is(err, ErrInternal):
		return KindInternal
	default:
		return KindUnknown
	}
}

// ErrorDetails is the structured view of a classified error used for logs
// and operator-facing messages.
type ErrorDetails struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Details extracts the classification and a marker-free message from err.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: Kind(err), Message: strings.TrimSpace(err.Error())}
	for _, marker := range []error{ErrInput, ErrValidation, ErrItem, ErrResource, ErrInternal} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(details.Message, prefix) {
			details.Message = strings.TrimPrefix(details.Message, prefix)
			break
		}
	}
	if unwrapped, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range unwrapped.Unwrap() {
			if !isMarker(inner) {
				details.Cause = inner
			}
		}
	}
	return details
}

func isMarker(err error) bool {
	switch err {
	case ErrInput, ErrValidation, ErrItem, ErrResource, ErrInternal:
		return true
	}
	return false
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
