package labtest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// StaleStateError reports that the persisted status did not match the
// transition's expected source state, typically because a concurrent
// operator got there first. The caller must refetch and retry; the
// engine never silently overwrites.
type StaleStateError struct {
	TestID   uuid.UUID
	Expected Status
	Actual   Status
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("visit test %s is %s, expected %s; refresh and retry", e.TestID, e.Actual, e.Expected)
}

// IncompleteResultError names the template parameters missing a value.
// It is raised before any persistence write; there are no partial saves.
type IncompleteResultError struct {
	Missing []string
}

func (e *IncompleteResultError) Error() string {
	return fmt.Sprintf("missing required result fields: %s", strings.Join(e.Missing, ", "))
}

// PermissionError reports that the actor's role does not allow the
// operation.
type PermissionError struct {
	Role     string
	Required string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("role %s may not perform this operation (requires %s)", e.Role, e.Required)
}

// ActorRequiredError reports a mutation attempted without an
// authenticated actor. This is a hard precondition, never a silent no-op.
type ActorRequiredError struct{}

func (e *ActorRequiredError) Error() string {
	return "an authenticated actor is required"
}

// NotFoundError reports an unknown visit test id.
type NotFoundError struct {
	TestID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("visit test %s not found", e.TestID)
}

// ValidationError reports bad transition input other than missing result
// fields (empty rejection reason, short cancellation reason, malformed
// culture payload).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// PersistenceError wraps a transient downstream store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
