// internal/app/store/leads/leadstore.go
package leadstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/leadhub/internal/app/policy/leadpolicy"
	"github.com/dalemusser/leadhub/internal/app/system/normalize"
	"github.com/dalemusser/leadhub/internal/app/system/paging"
	"github.com/dalemusser/leadhub/internal/app/system/search"
	"github.com/dalemusser/leadhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	// ErrNotFound means no lead matched the id.
	ErrNotFound = errors.New("lead not found")

	// ErrStale means a version-guarded write matched nothing: either the
	// document's version moved or a membership precondition no longer held.
	// Callers re-read and decide.
	ErrStale = errors.New("lead was modified concurrently")
)

// DuplicateEmailError reports that another lead already holds the email.
type DuplicateEmailError struct {
	Email string
}

func (e *DuplicateEmailError) Error() string {
	return fmt.Sprintf("email %q is already in use by another lead", e.Email)
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("leads")}
}

// Create inserts a lead. Contact fields are normalized and names folded for
// the case-insensitive indexes.
func (s *Store) Create(ctx context.Context, lead models.Lead) (models.Lead, error) {
	now := time.Now().UTC()
	lead.ID = primitive.NewObjectID()
	lead.FirstName = strings.TrimSpace(lead.FirstName)
	lead.LastName = strings.TrimSpace(lead.LastName)
	lead.FirstNameCI = text.Fold(lead.FirstName)
	lead.LastNameCI = text.Fold(lead.LastName)
	lead.NewEmail = normalize.Email(lead.NewEmail)
	lead.OldEmail = normalize.Email(lead.OldEmail)
	lead.NewPhone = normalize.Phone(lead.NewPhone)
	lead.OldPhone = normalize.Phone(lead.OldPhone)
	lead.Country = normalize.Country(lead.Country)
	if lead.Status == "" {
		lead.Status = models.LeadStatusActive
	}
	if lead.AssignedBrokers == nil {
		lead.AssignedBrokers = []models.BrokerAssignment{}
	}
	lead.CreatedAt = now
	lead.UpdatedAt = now
	lead.Version = 1

	if _, err := s.c.InsertOne(ctx, lead); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Lead{}, &DuplicateEmailError{Email: lead.NewEmail}
		}
		return models.Lead{}, err
	}
	return lead, nil
}

// Update modifies a lead's contact fields. Assignment state is owned by the
// assignment engine and never touched here.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, lead models.Lead) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if lead.FirstName != "" {
		name := strings.TrimSpace(lead.FirstName)
		set["first_name"] = name
		set["first_name_ci"] = text.Fold(name)
	}
	if lead.LastName != "" {
		name := strings.TrimSpace(lead.LastName)
		set["last_name"] = name
		set["last_name_ci"] = text.Fold(name)
	}
	if lead.NewEmail != "" {
		set["new_email"] = normalize.Email(lead.NewEmail)
	}
	if lead.OldEmail != "" {
		set["old_email"] = normalize.Email(lead.OldEmail)
	}
	if lead.NewPhone != "" {
		set["new_phone"] = normalize.Phone(lead.NewPhone)
	}
	if lead.OldPhone != "" {
		set["old_phone"] = normalize.Phone(lead.OldPhone)
	}
	if lead.Country != "" {
		set["country"] = normalize.Country(lead.Country)
	}
	if lead.Gender != "" {
		set["gender"] = lead.Gender
	}
	if lead.Client != "" {
		set["client"] = lead.Client
	}
	if lead.Prefix != "" {
		set["prefix"] = lead.Prefix
	}
	if lead.Status != "" {
		set["status"] = lead.Status
	}

	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set, "$inc": bson.M{"version": 1}})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return &DuplicateEmailError{Email: normalize.Email(lead.NewEmail)}
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus sets only the lifecycle status.
func (s *Store) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"status": status, "updated_at": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddComment appends a comment with a generated id. The body is expected to
// be sanitized by the caller.
func (s *Store) AddComment(ctx context.Context, id primitive.ObjectID, authorID primitive.ObjectID, body string) (models.LeadComment, error) {
	comment := models.LeadComment{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updated_at": comment.CreatedAt},
		"$inc":  bson.M{"version": 1},
	})
	if err != nil {
		return models.LeadComment{}, err
	}
	if res.MatchedCount == 0 {
		return models.LeadComment{}, ErrNotFound
	}
	return comment, nil
}

// AddDocument appends an uploaded document reference.
func (s *Store) AddDocument(ctx context.Context, id primitive.ObjectID, doc models.LeadDocument) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{
		"$push": bson.M{"documents": doc},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
		"$inc":  bson.M{"version": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Lead, error) {
	var lead models.Lead
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&lead)
	if err == mongo.ErrNoDocuments {
		return models.Lead{}, ErrNotFound
	}
	if err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

// GetByIDs loads multiple leads by their ObjectIDs.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Lead, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var leads []models.Lead
	if err := cur.All(ctx, &leads); err != nil {
		return nil, err
	}
	return leads, nil
}

// Delete removes one lead. Returns ErrNotFound when nothing matched.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByQuery removes every lead matching query and reports only the count,
// never the ids.
func (s *Store) DeleteByQuery(ctx context.Context, query bson.M) (int64, error) {
	res, err := s.c.DeleteMany(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

/* -------------------------------------------------------------------------- */
/* Listing: closed filter set + role scope                                     */
/* -------------------------------------------------------------------------- */

// Filter is the closed set of list predicates. Anything not expressible here
// is not queryable; there is no raw-query passthrough from handlers.
type Filter struct {
	LeadType       string
	Country        string
	Gender         string
	Status         string
	DocumentStatus string
	// Assigned filters on broker-assignment state: true → leads with a
	// non-empty assignment set, false → leads with an empty one.
	Assigned *bool
	Search   string
	// IncludeConverted keeps converted leads in the result. By default they
	// are filtered out of listings unless an explicit status is requested.
	IncludeConverted bool
}

// Sort orders accepted by List. Anything else falls back to SortNewest.
const (
	SortNewest   = "newest"
	SortOldest   = "oldest"
	SortNameAsc  = "name_asc"
	SortNameDesc = "name_desc"
)

// SortOrder maps a sort name to a Mongo sort document. Every order carries a
// trailing _id key so pagination stays stable across documents with equal
// primary keys.
func SortOrder(sort string) bson.D {
	switch sort {
	case SortOldest:
		return bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
	case SortNameAsc:
		return bson.D{{Key: "last_name_ci", Value: 1}, {Key: "first_name_ci", Value: 1}, {Key: "_id", Value: 1}}
	case SortNameDesc:
		return bson.D{{Key: "last_name_ci", Value: -1}, {Key: "first_name_ci", Value: -1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
	}
}

// BuildQuery combines the caller's scope with the filter into a Mongo query.
// Returns ok=false when the scope does not permit listing at all. The scope
// clause is always ANDed in, so a handler cannot widen its reach by crafting
// filter values.
func BuildQuery(scope leadpolicy.ListScope, f Filter) (bson.M, bool) {
	if !scope.CanList {
		return nil, false
	}

	query := bson.M{}
	switch {
	case scope.All:
		// no scope clause
	case scope.CreatorID != primitive.NilObjectID:
		query["created_by"] = scope.CreatorID
	case scope.AgentID != primitive.NilObjectID:
		query["assigned_agent"] = scope.AgentID
	default:
		return nil, false
	}

	if f.LeadType != "" && models.ValidLeadType(f.LeadType) {
		query["lead_type"] = f.LeadType
	}
	if f.Country != "" {
		query["country"] = normalize.Country(f.Country)
	}
	if f.Gender != "" {
		query["gender"] = f.Gender
	}
	if f.Status != "" && models.ValidLeadStatus(f.Status) {
		query["status"] = f.Status
	} else if !f.IncludeConverted {
		query["status"] = bson.M{"$ne": models.LeadStatusConverted}
	}
	if f.DocumentStatus != "" {
		query["documents.status"] = f.DocumentStatus
	}
	if f.Assigned != nil {
		if *f.Assigned {
			query["assigned_brokers.0"] = bson.M{"$exists": true}
		} else {
			query["assigned_brokers"] = bson.M{"$size": 0}
		}
	}
	if f.Search != "" {
		if clause := search.AnyField(f.Search,
			"first_name_ci", "last_name_ci", "new_email", "new_phone", "client"); clause != nil {
			query["$or"] = clause["$or"]
		}
	}
	return query, true
}

// List returns a page of leads matching query in the given sort order, plus
// the total match count.
func (s *Store) List(ctx context.Context, query bson.M, sort string, page paging.Page) ([]models.Lead, int64, error) {
	if query == nil {
		query = bson.M{}
	}
	total, err := s.c.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(SortOrder(sort)).
		SetSkip(page.Skip()).
		SetLimit(page.Limit64())
	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var leads []models.Lead
	if err := cur.All(ctx, &leads); err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

// Count returns the number of leads matching the given filter.
func (s *Store) Count(ctx context.Context, query bson.M) (int64, error) {
	if query == nil {
		query = bson.M{}
	}
	return s.c.CountDocuments(ctx, query)
}

/* -------------------------------------------------------------------------- */
/* Agent assignment (exclusive, single-valued)                                 */
/* -------------------------------------------------------------------------- */

// AssignAgent sets the exclusive agent assignment. The version guard makes
// the write lose cleanly to any concurrent mutation; the caller re-reads and
// retries. Reassignment from one agent to another is a single write.
func (s *Store) AssignAgent(ctx context.Context, leadID, agentID primitive.ObjectID, version int64) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": leadID, "version": version},
		bson.M{
			"$set": bson.M{
				"is_assigned":    true,
				"assigned_agent": agentID,
				"assigned_at":    now,
				"updated_at":     now,
			},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	return nil
}

// UnassignAgent clears the exclusive agent assignment.
func (s *Store) UnassignAgent(ctx context.Context, leadID primitive.ObjectID, version int64) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": leadID, "version": version},
		bson.M{
			"$set": bson.M{
				"is_assigned": false,
				"updated_at":  time.Now().UTC(),
			},
			"$unset": bson.M{"assigned_agent": "", "assigned_at": ""},
			"$inc":   bson.M{"version": 1},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Broker assignment set (paired with broker.member_leads)                     */
/* -------------------------------------------------------------------------- */

// PushBrokerAssignment appends a broker-assignment record. The filter
// requires the expected version and the broker not already present, so the
// $push can never produce a duplicate entry for the same broker. Zero match
// is reported as ErrStale for the caller to re-read and diagnose.
func (s *Store) PushBrokerAssignment(ctx context.Context, leadID primitive.ObjectID, rec models.BrokerAssignment, version int64) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":                        leadID,
			"version":                    version,
			"assigned_brokers.broker_id": bson.M{"$ne": rec.BrokerID},
		},
		bson.M{
			"$push": bson.M{"assigned_brokers": rec},
			"$set":  bson.M{"updated_at": rec.AssignedAt},
			"$inc":  bson.M{"version": 1},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	return nil
}

// PullBrokerAssignment removes the assignment record for brokerID under a
// version guard. Zero match → ErrStale.
func (s *Store) PullBrokerAssignment(ctx context.Context, leadID, brokerID primitive.ObjectID, version int64) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":                        leadID,
			"version":                    version,
			"assigned_brokers.broker_id": brokerID,
		},
		bson.M{
			"$pull": bson.M{"assigned_brokers": bson.M{"broker_id": brokerID}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
			"$inc":  bson.M{"version": 1},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	return nil
}

// ForcePullBrokerAssignment removes the record regardless of version. This
// is the compensation write: it must not fail on a version bump caused by
// the write it is reverting.
func (s *Store) ForcePullBrokerAssignment(ctx context.Context, leadID, brokerID primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": leadID, "assigned_brokers.broker_id": brokerID},
		bson.M{
			"$pull": bson.M{"assigned_brokers": bson.M{"broker_id": brokerID}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
			"$inc":  bson.M{"version": 1},
		})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// RestoreBrokerAssignment re-adds a previously removed record regardless of
// version, keeping the dedup guard. This is the compensation write for a
// failed unassign: it must not fail on the version bump caused by the pull
// it reverts.
func (s *Store) RestoreBrokerAssignment(ctx context.Context, leadID primitive.ObjectID, rec models.BrokerAssignment) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":                        leadID,
			"assigned_brokers.broker_id": bson.M{"$ne": rec.BrokerID},
		},
		bson.M{
			"$push": bson.M{"assigned_brokers": rec},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
			"$inc":  bson.M{"version": 1},
		})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// AssignedTo returns leads whose broker-assignment set contains brokerID.
func (s *Store) AssignedTo(ctx context.Context, brokerID primitive.ObjectID) ([]models.Lead, error) {
	cur, err := s.c.Find(ctx, bson.M{"assigned_brokers.broker_id": brokerID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var leads []models.Lead
	if err := cur.All(ctx, &leads); err != nil {
		return nil, err
	}
	return leads, nil
}

/* -------------------------------------------------------------------------- */
/* Stats                                                                       */
/* -------------------------------------------------------------------------- */

// Stats summarizes the lead pool for dashboards.
type Stats struct {
	Total          int64            `json:"total"`
	ByType         map[string]int64 `json:"by_type"`
	ByStatus       map[string]int64 `json:"by_status"`
	AgentAssigned  int64            `json:"agent_assigned"`
	BrokerAssigned int64            `json:"broker_assigned"`
}

// GetStats aggregates counts per type and status in one pipeline pass.
func (s *Store) GetStats(ctx context.Context, scopeQuery bson.M) (Stats, error) {
	if scopeQuery == nil {
		scopeQuery = bson.M{}
	}
	stats := Stats{
		ByType:   map[string]int64{},
		ByStatus: map[string]int64{},
	}

	pipe := mongo.Pipeline{
		bson.D{{Key: "$match", Value: scopeQuery}},
		bson.D{{Key: "$facet", Value: bson.M{
			"total": []bson.M{{"$count": "n"}},
			"byType": []bson.M{
				{"$group": bson.M{"_id": "$lead_type", "n": bson.M{"$sum": 1}}},
			},
			"byStatus": []bson.M{
				{"$group": bson.M{"_id": "$status", "n": bson.M{"$sum": 1}}},
			},
			"agentAssigned": []bson.M{
				{"$match": bson.M{"is_assigned": true}},
				{"$count": "n"},
			},
			"brokerAssigned": []bson.M{
				{"$match": bson.M{"assigned_brokers.0": bson.M{"$exists": true}}},
				{"$count": "n"},
			},
		}}},
	}

	cur, err := s.c.Aggregate(ctx, pipe)
	if err != nil {
		return stats, err
	}
	defer cur.Close(ctx)

	var agg struct {
		Total []struct {
			N int64 `bson:"n"`
		} `bson:"total"`
		ByType []struct {
			ID string `bson:"_id"`
			N  int64  `bson:"n"`
		} `bson:"byType"`
		ByStatus []struct {
			ID string `bson:"_id"`
			N  int64  `bson:"n"`
		} `bson:"byStatus"`
		AgentAssigned []struct {
			N int64 `bson:"n"`
		} `bson:"agentAssigned"`
		BrokerAssigned []struct {
			N int64 `bson:"n"`
		} `bson:"brokerAssigned"`
	}
	if cur.Next(ctx) {
		if err := cur.Decode(&agg); err != nil {
			return stats, err
		}
	}

	if len(agg.Total) > 0 {
		stats.Total = agg.Total[0].N
	}
	for _, row := range agg.ByType {
		stats.ByType[row.ID] = row.N
	}
	for _, row := range agg.ByStatus {
		stats.ByStatus[row.ID] = row.N
	}
	if len(agg.AgentAssigned) > 0 {
		stats.AgentAssigned = agg.AgentAssigned[0].N
	}
	if len(agg.BrokerAssigned) > 0 {
		stats.BrokerAssigned = agg.BrokerAssigned[0].N
	}
	return stats, nil
}
