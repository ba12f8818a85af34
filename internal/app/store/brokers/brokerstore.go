// internal/app/store/brokers/brokerstore.go
package brokerstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/leadhub/internal/app/system/normalize"
	"github.com/dalemusser/leadhub/internal/app/system/paging"
	"github.com/dalemusser/leadhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	// ErrNotFound means no broker matched the id.
	ErrNotFound = errors.New("broker not found")

	// ErrStale means a guarded write matched nothing: the document's version
	// moved, the broker was deactivated, or the membership precondition no
	// longer held. Callers re-read and decide.
	ErrStale = errors.New("broker was modified concurrently")
)

// DuplicateFieldError reports which unique field collided and with what value,
// so callers can render "name 'Acme' is already in use" instead of a raw
// index error.
type DuplicateFieldError struct {
	Field string
	Value string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("%s %q is already in use", e.Field, e.Value)
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("brokers")}
}

// Create inserts a broker. The name is folded for the case-insensitive unique
// index and a blank domain is stored as an absent field so the sparse unique
// index ignores it. Uniqueness is pre-checked, then the insert still runs
// against the constrained indexes; a race between the two is classified from
// the duplicate-key error.
func (s *Store) Create(ctx context.Context, b models.Broker) (models.Broker, error) {
	now := time.Now().UTC()
	b.ID = primitive.NewObjectID()
	b.Name = strings.TrimSpace(b.Name)
	b.NameCI = text.Fold(b.Name)
	if b.Domain != nil {
		b.Domain = normalize.Domain(*b.Domain)
	}
	if b.MemberLeads == nil {
		b.MemberLeads = []primitive.ObjectID{}
	}
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Version = 1

	if dup, err := s.findDuplicate(ctx, b.NameCI, b.Domain, primitive.NilObjectID); err != nil {
		return models.Broker{}, err
	} else if dup != nil {
		return models.Broker{}, dup
	}

	if _, err := s.c.InsertOne(ctx, b); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Broker{}, s.classifyDup(err, b.Name, b.Domain)
		}
		return models.Broker{}, err
	}
	return b, nil
}

// Update modifies a broker's editable fields. The member set, counters, and
// assignment timestamps are owned by the assignment engine and never touched
// here. An explicit empty domain clears the stored field via $unset.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, b models.Broker) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	unset := bson.M{}

	if b.Name != "" {
		name := strings.TrimSpace(b.Name)
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	if b.Domain != nil {
		if d := normalize.Domain(*b.Domain); d != nil {
			set["domain"] = *d
		} else {
			unset["domain"] = ""
		}
	}
	if b.Description != "" {
		set["description"] = b.Description
	}

	nameCI := ""
	if b.Name != "" {
		nameCI = text.Fold(strings.TrimSpace(b.Name))
	}
	var domainPtr *string
	if b.Domain != nil {
		domainPtr = normalize.Domain(*b.Domain)
	}
	if dup, err := s.findDuplicate(ctx, nameCI, domainPtr, id); err != nil {
		return err
	} else if dup != nil {
		return dup
	}

	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	res, err := s.c.UpdateByID(ctx, id, update)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return s.classifyDup(err, b.Name, domainPtr)
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive flips the broker's active flag.
func (s *Store) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"is_active": active, "updated_at": time.Now().UTC()},
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

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Broker, error) {
	var b models.Broker
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return models.Broker{}, ErrNotFound
	}
	if err != nil {
		return models.Broker{}, err
	}
	return b, nil
}

// GetByIDs loads multiple brokers by their ObjectIDs.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Broker, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var brokers []models.Broker
	if err := cur.All(ctx, &brokers); err != nil {
		return nil, err
	}
	return brokers, nil
}

// DeleteIfEmpty removes a broker only while its member set is empty. The
// member_leads guard is part of the delete filter, so a concurrent assignment
// that lands first makes the delete match nothing.
func (s *Store) DeleteIfEmpty(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{
		"_id":          id,
		"member_leads": bson.M{"$size": 0},
	})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

// List returns a page of brokers matching filter, newest-name-first order,
// plus the total match count.
func (s *Store) List(ctx context.Context, filter bson.M, page paging.Page) ([]models.Broker, int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit64())
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var brokers []models.Broker
	if err := cur.All(ctx, &brokers); err != nil {
		return nil, 0, err
	}
	return brokers, total, nil
}

// AddMember appends leadID to the broker's member set and bumps the lifetime
// assignment counter. The filter requires the expected version, an active
// broker, and the lead not already present, so the $push can never produce a
// duplicate member. A zero match is reported as ErrStale for the caller to
// re-read and diagnose.
func (s *Store) AddMember(ctx context.Context, brokerID, leadID primitive.ObjectID, version int64) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":          brokerID,
			"version":      version,
			"is_active":    true,
			"member_leads": bson.M{"$ne": leadID},
		},
		bson.M{
			"$push": bson.M{"member_leads": leadID},
			"$inc":  bson.M{"total_leads_assigned": 1, "version": 1},
			"$set":  bson.M{"last_assigned_at": now, "updated_at": now},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	return nil
}

// RemoveMember pulls leadID from the broker's member set. The lifetime
// counter is deliberately not decremented: it records total leads ever
// assigned, not current membership. Zero match → ErrStale.
func (s *Store) RemoveMember(ctx context.Context, brokerID, leadID primitive.ObjectID, version int64) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":          brokerID,
			"version":      version,
			"member_leads": leadID,
		},
		bson.M{
			"$pull": bson.M{"member_leads": leadID},
			"$inc":  bson.M{"version": 1},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStale
	}
	return nil
}

// ForceRemoveMember pulls leadID regardless of version. Used by the
// consistency repair path, never by the normal engine flow.
func (s *Store) ForceRemoveMember(ctx context.Context, brokerID, leadID primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": brokerID, "member_leads": leadID},
		bson.M{
			"$pull": bson.M{"member_leads": leadID},
			"$inc":  bson.M{"version": 1},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// MembersHolding returns the brokers whose member set contains leadID.
func (s *Store) MembersHolding(ctx context.Context, leadID primitive.ObjectID) ([]models.Broker, error) {
	cur, err := s.c.Find(ctx, bson.M{"member_leads": leadID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var brokers []models.Broker
	if err := cur.All(ctx, &brokers); err != nil {
		return nil, err
	}
	return brokers, nil
}

// All returns every broker. Used by the consistency sweep, which must see
// the full member-set picture; listings go through List.
func (s *Store) All(ctx context.Context) ([]models.Broker, error) {
	cur, err := s.c.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var brokers []models.Broker
	if err := cur.All(ctx, &brokers); err != nil {
		return nil, err
	}
	return brokers, nil
}

// Count returns the number of brokers matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	return s.c.CountDocuments(ctx, filter)
}

// Stats summarizes the broker pool: active/inactive split plus current and
// lifetime per-broker lead totals.
type Stats struct {
	Total    int64        `json:"total"`
	Active   int64        `json:"active"`
	Inactive int64        `json:"inactive"`
	Brokers  []BrokerLoad `json:"brokers"`
}

// BrokerLoad is one broker's row in the stats report.
type BrokerLoad struct {
	ID               primitive.ObjectID `bson:"_id" json:"id"`
	Name             string             `bson:"name" json:"name"`
	IsActive         bool               `bson:"is_active" json:"is_active"`
	CurrentMembers   int64              `bson:"current_members" json:"current_members"`
	LifetimeAssigned int64              `bson:"total_leads_assigned" json:"lifetime_assigned"`
}

// GetStats aggregates the active/inactive split and per-broker lead totals
// in one pipeline pass.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats

	pipe := mongo.Pipeline{
		bson.D{{Key: "$project", Value: bson.M{
			"name":                 1,
			"is_active":            1,
			"total_leads_assigned": 1,
			"current_members":      bson.M{"$size": bson.M{"$ifNull": []interface{}{"$member_leads", []interface{}{}}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "name", Value: 1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipe)
	if err != nil {
		return stats, err
	}
	defer cur.Close(ctx)

	if err := cur.All(ctx, &stats.Brokers); err != nil {
		return stats, err
	}
	for _, b := range stats.Brokers {
		stats.Total++
		if b.IsActive {
			stats.Active++
		} else {
			stats.Inactive++
		}
	}
	return stats, nil
}

// findDuplicate pre-checks the unique fields, excluding excludeID (use
// NilObjectID on create). Returns a typed error naming the colliding field,
// or nil when both are free.
func (s *Store) findDuplicate(ctx context.Context, nameCI string, domain *string, excludeID primitive.ObjectID) (*DuplicateFieldError, error) {
	if nameCI != "" {
		filter := bson.M{"name_ci": nameCI}
		if excludeID != primitive.NilObjectID {
			filter["_id"] = bson.M{"$ne": excludeID}
		}
		err := s.c.FindOne(ctx, filter).Err()
		if err == nil {
			return &DuplicateFieldError{Field: "name", Value: nameCI}, nil
		}
		if err != mongo.ErrNoDocuments {
			return nil, err
		}
	}
	if domain != nil {
		filter := bson.M{"domain": *domain}
		if excludeID != primitive.NilObjectID {
			filter["_id"] = bson.M{"$ne": excludeID}
		}
		err := s.c.FindOne(ctx, filter).Err()
		if err == nil {
			return &DuplicateFieldError{Field: "domain", Value: *domain}, nil
		}
		if err != mongo.ErrNoDocuments {
			return nil, err
		}
	}
	return nil, nil
}

// classifyDup maps a duplicate-key error from a constrained write to the
// field that collided, using the index name embedded in the error text.
func (s *Store) classifyDup(err error, name string, domain *string) error {
	msg := err.Error()
	if strings.Contains(msg, "uniq_brokers_domain") && domain != nil {
		return &DuplicateFieldError{Field: "domain", Value: *domain}
	}
	return &DuplicateFieldError{Field: "name", Value: name}
}
