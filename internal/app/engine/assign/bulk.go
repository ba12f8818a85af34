// internal/app/engine/assign/bulk.go
package assign

import (
	"context"
	"errors"

	"github.com/dalemusser/leadhub/internal/app/policy/leadpolicy"
	leadstore "github.com/dalemusser/leadhub/internal/app/store/leads"
	userstore "github.com/dalemusser/leadhub/internal/app/store/users"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BulkItemFailure records why one lead in a bulk operation was skipped.
type BulkItemFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkResult is the per-item outcome of a best-effort bulk operation. A
// failure on one lead never aborts the rest.
type BulkResult struct {
	Succeeded []string          `json:"succeeded"`
	Failed    []BulkItemFailure `json:"failed"`
}

// BulkAssignAgent assigns the given agent to every lead in leadIDs,
// overwriting any previous agent assignment. The agent is validated once up
// front; an ineligible agent fails the whole call rather than every item.
func (e *Engine) BulkAssignAgent(ctx context.Context, leadIDs []primitive.ObjectID, agentID primitive.ObjectID) (BulkResult, error) {
	agent, err := e.users.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return BulkResult{}, ErrInvalidAgent
		}
		return BulkResult{}, err
	}
	if !agent.CanTakeLeads() {
		return BulkResult{}, ErrInvalidAgent
	}

	res := BulkResult{Succeeded: []string{}, Failed: []BulkItemFailure{}}
	for _, leadID := range leadIDs {
		if err := e.assignAgentOnce(ctx, leadID, agentID); err != nil {
			res.Failed = append(res.Failed, BulkItemFailure{ID: leadID.Hex(), Reason: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, leadID.Hex())
	}
	return res, nil
}

// BulkUnassignAgent clears the agent assignment on every lead in leadIDs.
// Leads with no agent count as successes; the end state is what matters.
func (e *Engine) BulkUnassignAgent(ctx context.Context, leadIDs []primitive.ObjectID) (BulkResult, error) {
	res := BulkResult{Succeeded: []string{}, Failed: []BulkItemFailure{}}
	for _, leadID := range leadIDs {
		if err := e.unassignAgentOnce(ctx, leadID); err != nil {
			res.Failed = append(res.Failed, BulkItemFailure{ID: leadID.Hex(), Reason: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, leadID.Hex())
	}
	return res, nil
}

func (e *Engine) assignAgentOnce(ctx context.Context, leadID, agentID primitive.ObjectID) error {
	for attempt := 0; attempt < maxRetries; attempt++ {
		lead, err := e.leads.GetByID(ctx, leadID)
		if err != nil {
			if errors.Is(err, leadstore.ErrNotFound) {
				return ErrLeadNotFound
			}
			return err
		}
		err = e.leads.AssignAgent(ctx, leadID, agentID, lead.Version)
		if errors.Is(err, leadstore.ErrStale) {
			continue
		}
		return err
	}
	return ErrContention
}

func (e *Engine) unassignAgentOnce(ctx context.Context, leadID primitive.ObjectID) error {
	for attempt := 0; attempt < maxRetries; attempt++ {
		lead, err := e.leads.GetByID(ctx, leadID)
		if err != nil {
			if errors.Is(err, leadstore.ErrNotFound) {
				return ErrLeadNotFound
			}
			return err
		}
		if lead.AssignedAgent == nil {
			return nil
		}
		err = e.leads.UnassignAgent(ctx, leadID, lead.Version)
		if errors.Is(err, leadstore.ErrStale) {
			continue
		}
		return err
	}
	return ErrContention
}

// BulkDelete deletes every lead the caller's scope and filter match,
// reporting only how many were removed. Leads with broker assignments are
// never deleted: unless the filter already restricts the match to
// broker-unassigned leads, an emptiness guard is added to the query, so an
// assignment landing mid-operation protects its lead.
func (e *Engine) BulkDelete(ctx context.Context, scope leadpolicy.ListScope, f leadstore.Filter) (int64, error) {
	query, ok := leadstore.BuildQuery(scope, f)
	if !ok {
		return 0, leadpolicy.ErrForbidden
	}
	if f.Assigned == nil || *f.Assigned {
		query["assigned_brokers"] = bson.M{"$size": 0}
	}
	return e.leads.DeleteByQuery(ctx, query)
}
