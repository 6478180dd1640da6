package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidDocument, "bad document: %s", "doc-1")

	if err.Code != ErrCodeInvalidDocument {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidDocument)
	}
	if err.Message != "bad document: doc-1" {
		t.Errorf("Message = %v", err.Message)
	}

	expected := "INVALID_DOCUMENT: bad document: doc-1"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrCodeStore, cause, "saving plan")

	if err.Code != ErrCodeStore {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeStore)
	}
	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if errors.Unwrap(err) != cause {
		t.Error("Unwrap should return the cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through the wrapper")
	}

	expected := "STORE_ERROR: saving plan: disk full"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestHasCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"matching code", New(ErrCodeInvalidGeometry, "bad"), ErrCodeInvalidGeometry, true},
		{"non-matching code", New(ErrCodeInvalidGeometry, "bad"), ErrCodeStore, false},
		{"outermost wins", Wrap(ErrCodeStore, New(ErrCodeNotFound, "inner"), "outer"), ErrCodeStore, true},
		{"plain error", errors.New("plain"), ErrCodeStore, false},
		{"nil", nil, ErrCodeStore, false},
		{"deep in chain", fmt.Errorf("outer: %w", New(ErrCodeNotFound, "inner")), ErrCodeNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(ErrCodeNotFound, "x")); got != ErrCodeNotFound {
		t.Errorf("CodeOf = %v, want %v", got, ErrCodeNotFound)
	}
	if got := CodeOf(errors.New("plain")); got != ErrCodeInternal {
		t.Errorf("CodeOf(plain) = %v, want internal", got)
	}
}
