// internal/app/engine/assign/checker.go
package assign

import (
	"github.com/dalemusser/leadhub/internal/domain/models"
)

// The checker functions are pure predicates over already-loaded documents.
// They never touch storage; the engine re-reads fresh state and re-runs them
// before every write attempt.

// CanAssign reports whether the broker may be added to the lead's assignment
// set. Rejects an inactive broker and an already-present pairing on either
// side — idempotent-assign is an error, not a silent no-op.
func CanAssign(lead *models.Lead, broker *models.Broker) error {
	if !broker.IsActive {
		return ErrInactiveBroker
	}
	if lead.IsAssignedToBroker(broker.ID) || broker.HasMember(lead.ID) {
		return ErrAlreadyAssigned
	}
	return nil
}

// CanUnassign reports whether the pairing exists to be removed. The pair
// counts as assigned if either side records it, so a half-written pair can
// still be unassigned (which repairs it).
func CanUnassign(lead *models.Lead, broker *models.Broker) error {
	if !lead.IsAssignedToBroker(broker.ID) && !broker.HasMember(lead.ID) {
		return ErrNotAssigned
	}
	return nil
}

// CanDeleteBroker refuses deletion while the member set is non-empty,
// surfacing the count so callers can explain the refusal.
func CanDeleteBroker(broker *models.Broker) error {
	if n := broker.MemberCount(); n > 0 {
		return &MembersError{Count: n}
	}
	return nil
}

// PairConsistent reports whether the lead and broker agree about each other:
// the broker appears in the lead's assignment set exactly when the lead
// appears in the broker's member set.
func PairConsistent(lead *models.Lead, broker *models.Broker) bool {
	return lead.IsAssignedToBroker(broker.ID) == broker.HasMember(lead.ID)
}
