package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestError(t *testing.T) {
	cause := errors.New("dial tcp 127.0.0.1:5432: connection refused")
	err := Unavailable("like", cause)

	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Got %v, want it to match %v", err, ErrStorageUnavailable)
	}
	if errors.Is(err, cause) {
		t.Error("Substrate error leaks through errors.Is")
	}
	if got, want := err.Error(), "like: storage unavailable"; got != want {
		t.Errorf("Got %q, want %q", got, want)
	}
	var se *Error
	if !errors.As(err, &se) || se.Err != cause {
		t.Errorf("Got %#v, want cause kept in Err", err)
	}
}

func TestUnavailable(t *testing.T) {
	if err := Unavailable("save", nil); err != nil {
		t.Errorf("Got %v, want nil", err)
	}

	notFound := Errorf("like", ErrNotFound, nil)
	wrapped := fmt.Errorf("tx: %w", notFound)
	if err := Unavailable("like", wrapped); !errors.Is(err, ErrNotFound) {
		t.Errorf("Got %v, want kind preserved", err)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"Nil", nil, nil},
		{"Plain", errors.New("boom"), nil},
		{"NotFound", Errorf("like", ErrNotFound, nil), ErrNotFound},
		{"Duplicate", Errorf("save", ErrDuplicateID, nil), ErrDuplicateID},
		{"Conflict", Errorf("like", ErrConflictRetryExhausted, nil), ErrConflictRetryExhausted},
		{"Unavailable", Unavailable("save", errors.New("boom")), ErrStorageUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Got %v, want %v", got, tt.want)
			}
		})
	}
}
