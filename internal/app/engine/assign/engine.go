// internal/app/engine/assign/engine.go
//
// Package assign keeps the denormalized lead/broker relationship
// bidirectionally consistent. A lead's assigned_brokers set and a broker's
// member_leads set are the only representation of the pairing; every mutation
// here writes the lead first, then the broker, and reverts the lead when the
// broker write fails. Where the deployment supports multi-document
// transactions both writes run in one; otherwise the ordered-compensation
// path carries the same guarantees minus one narrow window, which is reported
// as a PartialFailureError instead of being papered over.
package assign

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	brokerstore "github.com/dalemusser/leadhub/internal/app/store/brokers"
	leadstore "github.com/dalemusser/leadhub/internal/app/store/leads"
	userstore "github.com/dalemusser/leadhub/internal/app/store/users"
	"github.com/dalemusser/leadhub/internal/app/system/txn"
	"github.com/dalemusser/leadhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// maxRetries bounds the optimistic-concurrency loop. Each retry re-reads
// both documents and re-runs the invariant checks, so a lost race converges
// on the correct typed error instead of spinning.
const maxRetries = 3

// Engine performs the paired lead/broker mutations.
type Engine struct {
	client  *mongo.Client
	leads   *leadstore.Store
	brokers *brokerstore.Store
	users   *userstore.Store
	log     *zap.Logger

	// txnUnsupported flips once the deployment reports it cannot run
	// multi-document transactions; later calls skip straight to the
	// compensation path.
	txnUnsupported atomic.Bool
}

// New builds an engine over the given database. The client is needed for
// transaction sessions; stores are constructed internally.
func New(client *mongo.Client, db *mongo.Database, logger *zap.Logger) *Engine {
	return &Engine{
		client:  client,
		leads:   leadstore.New(db),
		brokers: brokerstore.New(db),
		users:   userstore.New(db),
		log:     logger,
	}
}

// Leads exposes the lead store for read paths that live outside the engine.
func (e *Engine) Leads() *leadstore.Store { return e.leads }

// Brokers exposes the broker store for read paths outside the engine.
func (e *Engine) Brokers() *brokerstore.Store { return e.brokers }

// AssignContext carries who made the assignment and the snapshot context
// recorded on the lead's assignment record.
type AssignContext struct {
	ActorID primitive.ObjectID
	OrderID *primitive.ObjectID
	Network string
	Domain  string
}

func isStale(err error) bool {
	return errors.Is(err, leadstore.ErrStale) || errors.Is(err, brokerstore.ErrStale)
}

/* --------------------------------- assign --------------------------------- */

// Assign adds broker brokerID to lead leadID's assignment set and mirrors
// the lead into the broker's member set. Returns the updated documents.
func (e *Engine) Assign(ctx context.Context, leadID, brokerID primitive.ObjectID, actx AssignContext) (models.Lead, models.Broker, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		lead, broker, err := e.load(ctx, leadID, brokerID)
		if err != nil {
			return models.Lead{}, models.Broker{}, err
		}
		if err := CanAssign(&lead, &broker); err != nil {
			return models.Lead{}, models.Broker{}, err
		}

		rec := models.BrokerAssignment{
			BrokerID:   brokerID,
			AssignedBy: actx.ActorID,
			AssignedAt: time.Now().UTC(),
			OrderID:    actx.OrderID,
			Network:    actx.Network,
			Domain:     actx.Domain,
		}

		err = e.runPaired(ctx, "assign", lead.ID, broker.ID,
			func(c context.Context) error {
				return e.leads.PushBrokerAssignment(c, leadID, rec, lead.Version)
			},
			func(c context.Context) error {
				return e.brokers.AddMember(c, brokerID, leadID, broker.Version)
			},
			func(c context.Context) error {
				_, err := e.leads.ForcePullBrokerAssignment(c, leadID, brokerID)
				return err
			})
		switch {
		case err == nil:
			return e.load(ctx, leadID, brokerID)
		case isStale(err):
			continue
		default:
			return models.Lead{}, models.Broker{}, err
		}
	}
	return models.Lead{}, models.Broker{}, ErrContention
}

/* -------------------------------- unassign -------------------------------- */

// Unassign removes the pairing from both sides. A half-written pair (present
// on one side only) is accepted and repaired rather than rejected.
func (e *Engine) Unassign(ctx context.Context, leadID, brokerID primitive.ObjectID) (models.Lead, models.Broker, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		lead, broker, err := e.load(ctx, leadID, brokerID)
		if err != nil {
			return models.Lead{}, models.Broker{}, err
		}
		if err := CanUnassign(&lead, &broker); err != nil {
			return models.Lead{}, models.Broker{}, err
		}

		rec, leadHas := lead.BrokerAssignmentFor(brokerID)
		if !leadHas {
			// Broker-side-only remnant: one forced pull repairs it.
			if _, err := e.brokers.ForceRemoveMember(ctx, brokerID, leadID); err != nil {
				return models.Lead{}, models.Broker{}, err
			}
			return e.load(ctx, leadID, brokerID)
		}

		err = e.runPaired(ctx, "unassign", lead.ID, broker.ID,
			func(c context.Context) error {
				return e.leads.PullBrokerAssignment(c, leadID, brokerID, lead.Version)
			},
			func(c context.Context) error {
				// Forced: removal is idempotent, and a version guard here
				// could only turn a harmless no-op into a spurious retry.
				_, err := e.brokers.ForceRemoveMember(c, brokerID, leadID)
				return err
			},
			func(c context.Context) error {
				_, err := e.leads.RestoreBrokerAssignment(c, leadID, rec)
				return err
			})
		switch {
		case err == nil:
			return e.load(ctx, leadID, brokerID)
		case isStale(err):
			continue
		default:
			return models.Lead{}, models.Broker{}, err
		}
	}
	return models.Lead{}, models.Broker{}, ErrContention
}

/* ------------------------------ delete broker ------------------------------ */

// DeleteBroker removes a broker, refusing while its member set is non-empty.
// The emptiness condition is re-checked inside the delete filter, so an
// assignment that lands between the read and the delete wins.
func (e *Engine) DeleteBroker(ctx context.Context, brokerID primitive.ObjectID) error {
	broker, err := e.brokers.GetByID(ctx, brokerID)
	if err != nil {
		if errors.Is(err, brokerstore.ErrNotFound) {
			return ErrBrokerNotFound
		}
		return err
	}
	if err := CanDeleteBroker(&broker); err != nil {
		return err
	}

	deleted, err := e.brokers.DeleteIfEmpty(ctx, brokerID)
	if err != nil {
		return err
	}
	if deleted {
		return nil
	}

	// The guarded delete matched nothing: the broker either gained a member
	// or disappeared since the read.
	broker, err = e.brokers.GetByID(ctx, brokerID)
	if err != nil {
		if errors.Is(err, brokerstore.ErrNotFound) {
			return ErrBrokerNotFound
		}
		return err
	}
	return &MembersError{Count: broker.MemberCount()}
}

/* ------------------------------ shared plumbing ---------------------------- */

// load fetches fresh copies of both documents, mapping store not-found
// errors onto the engine taxonomy.
func (e *Engine) load(ctx context.Context, leadID, brokerID primitive.ObjectID) (models.Lead, models.Broker, error) {
	lead, err := e.leads.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, leadstore.ErrNotFound) {
			return models.Lead{}, models.Broker{}, ErrLeadNotFound
		}
		return models.Lead{}, models.Broker{}, err
	}
	broker, err := e.brokers.GetByID(ctx, brokerID)
	if err != nil {
		if errors.Is(err, brokerstore.ErrNotFound) {
			return models.Lead{}, models.Broker{}, ErrBrokerNotFound
		}
		return models.Lead{}, models.Broker{}, err
	}
	return lead, broker, nil
}

// runPaired executes the lead write then the broker write, in one
// transaction when the deployment supports it, otherwise with the
// compensation discipline: a failed broker write triggers compensate to
// revert the lead, and a failed compensation is a PartialFailureError.
func (e *Engine) runPaired(ctx context.Context, op string, leadID, brokerID primitive.ObjectID,
	leadWrite, brokerWrite, compensate func(context.Context) error) error {

	if !e.txnUnsupported.Load() {
		err := txn.Run(ctx, e.client, func(sc mongo.SessionContext) error {
			if err := leadWrite(sc); err != nil {
				return err
			}
			return brokerWrite(sc)
		})
		if err == nil {
			return nil
		}
		if !txn.IsNotSupported(err) {
			return err
		}
		e.txnUnsupported.Store(true)
		e.log.Info("transactions unavailable; falling back to ordered compensation",
			zap.String("op", op), zap.Error(err))
	}

	if err := leadWrite(ctx); err != nil {
		return err
	}
	if err := brokerWrite(ctx); err != nil {
		if cerr := compensate(ctx); cerr != nil {
			pf := &PartialFailureError{
				Op:       op,
				LeadID:   leadID.Hex(),
				BrokerID: brokerID.Hex(),
				Err:      err,
				CompErr:  cerr,
			}
			e.log.Error("paired write diverged and compensation failed",
				zap.String("op", op),
				zap.String("lead_id", pf.LeadID),
				zap.String("broker_id", pf.BrokerID),
				zap.NamedError("write_err", err),
				zap.NamedError("compensation_err", cerr))
			return pf
		}
		return err
	}
	return nil
}

/* ---------------------------- consistency sweep ---------------------------- */

// Inconsistency is one lead/broker pair whose two sides disagree.
type Inconsistency struct {
	LeadID        primitive.ObjectID `json:"lead_id"`
	BrokerID      primitive.ObjectID `json:"broker_id"`
	LeadHasBroker bool               `json:"lead_has_broker"`
	BrokerHasLead bool               `json:"broker_has_lead"`
}

// FindInconsistencies scans every broker against the leads that claim it and
// reports pairs recorded on only one side. Empty result means the
// bidirectional invariant holds across the data set.
func (e *Engine) FindInconsistencies(ctx context.Context) ([]Inconsistency, error) {
	brokers, err := e.brokers.All(ctx)
	if err != nil {
		return nil, err
	}

	var out []Inconsistency
	for _, broker := range brokers {
		leads, err := e.leads.AssignedTo(ctx, broker.ID)
		if err != nil {
			return nil, err
		}

		leadSide := make(map[primitive.ObjectID]bool, len(leads))
		for _, l := range leads {
			leadSide[l.ID] = true
		}
		brokerSide := make(map[primitive.ObjectID]bool, len(broker.MemberLeads))
		for _, id := range broker.MemberLeads {
			brokerSide[id] = true
		}

		for id := range leadSide {
			if !brokerSide[id] {
				out = append(out, Inconsistency{
					LeadID: id, BrokerID: broker.ID,
					LeadHasBroker: true, BrokerHasLead: false,
				})
			}
		}
		for id := range brokerSide {
			if !leadSide[id] {
				out = append(out, Inconsistency{
					LeadID: id, BrokerID: broker.ID,
					LeadHasBroker: false, BrokerHasLead: true,
				})
			}
		}
	}
	return out, nil
}

// RepairPair forcibly removes the pairing from both sides. Operator tool for
// resolving a reported inconsistency; the unassigned state is the only one
// that can be restored safely without guessing assignment context.
func (e *Engine) RepairPair(ctx context.Context, leadID, brokerID primitive.ObjectID) error {
	if _, err := e.leads.ForcePullBrokerAssignment(ctx, leadID, brokerID); err != nil {
		return err
	}
	_, err := e.brokers.ForceRemoveMember(ctx, brokerID, leadID)
	return err
}
