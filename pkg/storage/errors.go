package storage

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrConnectDB       = fmt.Errorf("unable to establish DB connection")
	ErrDBNotResponding = fmt.Errorf("DB not responding")
)

// The error taxonomy below is the only way a store fault reaches a caller:
// implementations never let a raw driver error escape. Every message begins
// with "Error" and names the failing operation.

// ValidationError reports malformed input: an empty patch, a missing
// required field, an empty password.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Error %s: %s", e.Op, e.Reason)
}

// NotFoundError reports an id that is either malformed for the store's id
// format or well-formed but matching no document.
type NotFoundError struct {
	Op string
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("Error %s: no document with id %q", e.Op, e.ID)
	}
	return "Error " + e.Op
}

// PersistenceError wraps a low-level driver fault: store unreachable or a
// write rejected for a reason not covered by the other kinds.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Error %s: %v", e.Op, e.Err)
	}
	return "Error " + e.Op
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ParseID validates the hex wire format of an id. A malformed id is reported
// as NotFoundError, matching findById semantics.
func ParseID(op, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, &NotFoundError{Op: op, ID: id}
	}
	return oid, nil
}
