package models

import (
	"errors"
	"fmt"
	"strings"
)

// MissingInputError means a required input file (timing track or audio) is absent.
type MissingInputError struct {
	Kind string // "timing", "audio", "video"
	Path string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s input not found: %s", e.Kind, e.Path)
}

// EncodingFailure is returned when every encoder strategy failed.
type EncodingFailure struct {
	Attempts []error
}

func (e *EncodingFailure) Error() string {
	return "all encoders failed: " + joinAttempts(e.Attempts)
}

func (e *EncodingFailure) Unwrap() []error { return e.Attempts }

// GeometryFailure is returned when no vertical reflow strategy produced a file.
type GeometryFailure struct {
	Attempts []error
}

func (e *GeometryFailure) Error() string {
	return "vertical reflow failed: " + joinAttempts(e.Attempts)
}

func (e *GeometryFailure) Unwrap() []error { return e.Attempts }

// PartialTimingFailure describes a section excluded from rendering. It is
// logged, never returned up the stack.
type PartialTimingFailure struct {
	Section string
	Reason  string
}

func (e *PartialTimingFailure) Error() string {
	return fmt.Sprintf("section %q excluded: %s", e.Section, e.Reason)
}

// IsMissingInput reports whether err (or anything it wraps) is a MissingInputError.
func IsMissingInput(err error) bool {
	var m *MissingInputError
	return errors.As(err, &m)
}

func joinAttempts(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}
