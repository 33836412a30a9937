package storage

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTaxonomyMessagesBeginWithError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "validation error",
			err:  &ValidationError{Op: OpUpdateUser, Reason: "empty patch"},
		},
		{
			name: "not found error with id",
			err:  &NotFoundError{Op: OpGetUser, ID: "badId"},
		},
		{
			name: "not found error without id",
			err:  &NotFoundError{Op: OpGetUserByEmail},
		},
		{
			name: "persistence error",
			err:  &PersistenceError{Op: OpAddUser, Err: fmt.Errorf("connection refused")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasPrefix(tt.err.Error(), "Error") {
				t.Errorf("want message beginning with %q, got %q", "Error", tt.err.Error())
			}
		})
	}
}

func TestParseID(t *testing.T) {
	if _, err := ParseID(OpGetUser, "badId"); err == nil {
		t.Fatal("want error for malformed id, got nil")
	} else {
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("want NotFoundError, got %T", err)
		}
	}

	oid, err := ParseID(OpGetUser, "64b0f0a1c2d3e4f5a6b7c8d9")
	if err != nil {
		t.Fatalf("unexpected error parsing well-formed id: %v", err)
	}
	if oid.Hex() != "64b0f0a1c2d3e4f5a6b7c8d9" {
		t.Errorf("want id %q, got id %q", "64b0f0a1c2d3e4f5a6b7c8d9", oid.Hex())
	}
}

func TestPersistenceErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("driver fault")
	err := &PersistenceError{Op: OpGetUsers, Err: cause}
	if !errors.Is(err, cause) {
		t.Errorf("want the wrapped cause to be reachable with errors.Is")
	}
}
