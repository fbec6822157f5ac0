package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestMalformedInputError(t *testing.T) {
	tests := []struct {
		name    string
		err     *MalformedInputError
		wantMsg string
	}{
		{
			name:    "with path",
			err:     &MalformedInputError{Path: "topic.xml", Err: fmt.Errorf("unexpected EOF")},
			wantMsg: "malformed input topic.xml: unexpected EOF",
		},
		{
			name:    "without path",
			err:     &MalformedInputError{Err: fmt.Errorf("unexpected EOF")},
			wantMsg: "malformed input: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrMalformedInput) {
				t.Error("errors.Is(err, ErrMalformedInput) = false, want true")
			}
		})
	}
}

func TestDuplicateSegmentIDError(t *testing.T) {
	err := &DuplicateSegmentIDError{ID: "a1b2c3"}
	if got := err.Error(); got != "duplicate segment id: a1b2c3" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrDuplicateSegmentID) {
		t.Error("errors.Is(err, ErrDuplicateSegmentID) = false, want true")
	}
}

func TestSegmentCountMismatchError(t *testing.T) {
	err := &SegmentCountMismatchError{SegmentID: "deadbeef"}
	if got := err.Error(); got != "translated segments missing id: deadbeef" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrSegmentCountMismatch) {
		t.Error("errors.Is(err, ErrSegmentCountMismatch) = false, want true")
	}
}

func TestPlaceholderSetMismatchError(t *testing.T) {
	tests := []struct {
		name    string
		err     *PlaceholderSetMismatchError
		wantMsg string
	}{
		{
			name:    "missing only",
			err:     &PlaceholderSetMismatchError{SegmentID: "s1", Missing: []string{"{1}", "{/1}"}},
			wantMsg: "segment s1: placeholder set mismatch: missing {1} {/1}",
		},
		{
			name:    "extra only",
			err:     &PlaceholderSetMismatchError{SegmentID: "s1", Extra: []string{"{2}"}},
			wantMsg: "segment s1: placeholder set mismatch: extra {2}",
		},
		{
			name:    "both",
			err:     &PlaceholderSetMismatchError{SegmentID: "s1", Missing: []string{"{1}"}, Extra: []string{"{2}"}},
			wantMsg: "segment s1: placeholder set mismatch: missing {1}, extra {2}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrPlaceholderSetMismatch) {
				t.Error("errors.Is(err, ErrPlaceholderSetMismatch) = false, want true")
			}
		})
	}
}

func TestUnknownPlaceholderTokenError(t *testing.T) {
	err := &UnknownPlaceholderTokenError{SegmentID: "s9", Token: "{7}"}
	if got := err.Error(); got != "segment s9: unknown placeholder token {7}" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrUnknownPlaceholderToken) {
		t.Error("errors.Is(err, ErrUnknownPlaceholderToken) = false, want true")
	}

	err = &UnknownPlaceholderTokenError{Token: "{7}"}
	if got := err.Error(); got != "unknown placeholder token {7}" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{Resource: "skeleton", ID: "topic.skeleton.xml"}
	if got := err.Error(); got != "skeleton not found: topic.skeleton.xml" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) = false, want true")
	}

	underlying := fmt.Errorf("disk error")
	err = &NotFoundError{Resource: "file", ID: "a.xml", Err: underlying}
	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}
}

func TestWrap(t *testing.T) {
	base := errors.New("base error")
	wrapped := Wrap(base, "context %d", 42)
	if wrapped.Error() != "context 42: base error" {
		t.Errorf("Wrap() = %q", wrapped.Error())
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should match base with errors.Is")
	}
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestAs(t *testing.T) {
	var target *PlaceholderSetMismatchError
	err := Wrap(&PlaceholderSetMismatchError{SegmentID: "s1", Extra: []string{"{3}"}}, "merging")
	if !As(err, &target) {
		t.Fatal("As() = false, want true")
	}
	if target.SegmentID != "s1" {
		t.Errorf("target.SegmentID = %q, want s1", target.SegmentID)
	}
}
