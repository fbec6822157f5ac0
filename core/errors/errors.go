// Package errors provides standardized error types and helpers for the seglate codebase.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common cases
var (
	// ErrMalformedInput indicates an unparseable source document.
	ErrMalformedInput = errors.New("malformed input")
	// ErrDuplicateSegmentID indicates a segment ID generation collision.
	ErrDuplicateSegmentID = errors.New("duplicate segment id")
	// ErrSegmentCountMismatch indicates a translated-segments artifact is
	// missing an ID the skeleton requires.
	ErrSegmentCountMismatch = errors.New("segment count mismatch")
	// ErrPlaceholderSetMismatch indicates a translated segment's placeholder
	// token multiset diverges from its source segment.
	ErrPlaceholderSetMismatch = errors.New("placeholder set mismatch")
	// ErrUnknownPlaceholderToken indicates a token with no entry in the tag
	// mapping or DNT map.
	ErrUnknownPlaceholderToken = errors.New("unknown placeholder token")
	// ErrNotFound indicates a resource was not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure.
	ErrInvalidInput = errors.New("invalid input")
)

// MalformedInputError reports a source document that could not be parsed.
type MalformedInputError struct {
	Path string // File path, if known
	Err  error  // Underlying parse error
}

func (e *MalformedInputError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("malformed input %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("malformed input: %v", e.Err)
}

func (e *MalformedInputError) Unwrap() error {
	return ErrMalformedInput
}

// DuplicateSegmentIDError reports an ID collision during extraction.
type DuplicateSegmentIDError struct {
	ID string // The colliding segment ID
}

func (e *DuplicateSegmentIDError) Error() string {
	return fmt.Sprintf("duplicate segment id: %s", e.ID)
}

func (e *DuplicateSegmentIDError) Unwrap() error {
	return ErrDuplicateSegmentID
}

// SegmentCountMismatchError reports a skeleton segment with no translation.
type SegmentCountMismatchError struct {
	SegmentID string // The segment ID missing from the translated set
}

func (e *SegmentCountMismatchError) Error() string {
	return fmt.Sprintf("translated segments missing id: %s", e.SegmentID)
}

func (e *SegmentCountMismatchError) Unwrap() error {
	return ErrSegmentCountMismatch
}

// PlaceholderSetMismatchError reports token drift between a source segment
// and its translation.
type PlaceholderSetMismatchError struct {
	SegmentID string   // The offending segment
	Missing   []string // Tokens present in the source but absent in the translation
	Extra     []string // Tokens present in the translation but absent in the source
}

func (e *PlaceholderSetMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, " "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "extra "+strings.Join(e.Extra, " "))
	}
	return fmt.Sprintf("segment %s: placeholder set mismatch: %s", e.SegmentID, strings.Join(parts, ", "))
}

func (e *PlaceholderSetMismatchError) Unwrap() error {
	return ErrPlaceholderSetMismatch
}

// UnknownPlaceholderTokenError reports a token that has no mapping entry.
type UnknownPlaceholderTokenError struct {
	SegmentID string // The segment containing the token, if known
	Token     string // The unmapped token text
}

func (e *UnknownPlaceholderTokenError) Error() string {
	if e.SegmentID != "" {
		return fmt.Sprintf("segment %s: unknown placeholder token %s", e.SegmentID, e.Token)
	}
	return fmt.Sprintf("unknown placeholder token %s", e.Token)
}

func (e *UnknownPlaceholderTokenError) Unwrap() error {
	return ErrUnknownPlaceholderToken
}

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "skeleton", "artifact", "segment")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "JSON", "XML", "TOML")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard library's errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard library's errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with additional context using fmt.Errorf with %w.
// Returns nil if err is nil.
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}
