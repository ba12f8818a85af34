// internal/app/engine/assign/errors.go
package assign

import (
	"errors"
	"fmt"
)

// Sentinel errors produced by the assignment engine. Handlers map these to
// HTTP statuses; callers are expected to test with errors.Is / errors.As.
var (
	// ErrLeadNotFound means the lead referenced by the operation does not exist.
	ErrLeadNotFound = errors.New("lead not found")

	// ErrBrokerNotFound means the broker referenced by the operation does not exist.
	ErrBrokerNotFound = errors.New("broker not found")

	// ErrInactiveBroker means the target broker exists but is deactivated and
	// cannot receive new leads.
	ErrInactiveBroker = errors.New("broker is not active")

	// ErrAlreadyAssigned means the lead already carries an assignment entry for
	// the target broker.
	ErrAlreadyAssigned = errors.New("lead is already assigned to this broker")

	// ErrNotAssigned means an unassign was requested for a pair with no
	// existing assignment on either side.
	ErrNotAssigned = errors.New("lead is not assigned to this broker")

	// ErrContention means an operation kept losing optimistic-concurrency
	// retries and gave up. Safe to retry from the caller.
	ErrContention = errors.New("operation aborted after repeated concurrent modification")

	// ErrInvalidAgent means the requested assignee is not an active, approved agent.
	ErrInvalidAgent = errors.New("user is not an active approved agent")
)

// MembersError reports a refused broker delete: the broker still has member
// leads and must be emptied first.
type MembersError struct {
	Count int
}

func (e *MembersError) Error() string {
	return fmt.Sprintf("broker still has %d assigned lead(s); unassign them before deleting", e.Count)
}

// PartialFailureError reports a data-integrity incident: the lead-side write
// succeeded, the broker-side write failed, and the compensating revert of the
// lead failed too, leaving the pair out of sync until repaired. Err is the
// broker-side failure; CompErr is the compensation failure. When compensation
// succeeds the engine returns the broker-side error alone, so this type is
// only ever seen when the documents genuinely diverged.
type PartialFailureError struct {
	Op       string
	LeadID   string
	BrokerID string
	Err      error
	CompErr  error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s lead=%s broker=%s: %v (compensation also failed: %v)",
		e.Op, e.LeadID, e.BrokerID, e.Err, e.CompErr)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }
