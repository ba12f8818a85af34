package testutil

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/leadhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
	n  int
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// seq returns a per-fixture counter for generating distinct emails/names.
func (f *Fixtures) seq() int {
	f.n++
	return f.n
}

// CreateLead inserts an unassigned lead of the given type and returns it.
func (f *Fixtures) CreateLead(ctx context.Context, leadType string) models.Lead {
	f.t.Helper()

	now := time.Now().UTC()
	n := f.seq()
	lead := models.Lead{
		ID:              primitive.NewObjectID(),
		LeadType:        leadType,
		FirstName:       "Test",
		LastName:        fmt.Sprintf("Lead%d", n),
		FirstNameCI:     text.Fold("Test"),
		LastNameCI:      text.Fold(fmt.Sprintf("Lead%d", n)),
		NewEmail:        fmt.Sprintf("lead%d-%s@test.com", n, lead8(primitive.NewObjectID())),
		NewPhone:        fmt.Sprintf("+1555000%04d", n),
		Country:         "US",
		Status:          models.LeadStatusActive,
		AssignedBrokers: []models.BrokerAssignment{},
		CreatedBy:       primitive.NewObjectID(),
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}

	if _, err := f.db.Collection("leads").InsertOne(ctx, lead); err != nil {
		f.t.Fatalf("failed to create test lead: %v", err)
	}
	return lead
}

// CreateLeadOwnedBy inserts a lead created by the given user.
func (f *Fixtures) CreateLeadOwnedBy(ctx context.Context, leadType string, creator primitive.ObjectID) models.Lead {
	f.t.Helper()

	lead := f.CreateLead(ctx, leadType)
	lead.CreatedBy = creator
	if _, err := f.db.Collection("leads").ReplaceOne(ctx, bson.M{"_id": lead.ID}, lead); err != nil {
		f.t.Fatalf("failed to set lead creator: %v", err)
	}
	return lead
}

// CreateBroker inserts an active broker with the given name and no members.
func (f *Fixtures) CreateBroker(ctx context.Context, name string) models.Broker {
	f.t.Helper()

	now := time.Now().UTC()
	broker := models.Broker{
		ID:          primitive.NewObjectID(),
		Name:        name,
		NameCI:      text.Fold(name),
		IsActive:    true,
		MemberLeads: []primitive.ObjectID{},
		CreatedBy:   primitive.NewObjectID(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}

	if _, err := f.db.Collection("brokers").InsertOne(ctx, broker); err != nil {
		f.t.Fatalf("failed to create test broker: %v", err)
	}
	return broker
}

// CreateInactiveBroker inserts a deactivated broker.
func (f *Fixtures) CreateInactiveBroker(ctx context.Context, name string) models.Broker {
	f.t.Helper()

	broker := f.CreateBroker(ctx, name)
	broker.IsActive = false
	if _, err := f.db.Collection("brokers").ReplaceOne(ctx, bson.M{"_id": broker.ID}, broker); err != nil {
		f.t.Fatalf("failed to deactivate test broker: %v", err)
	}
	return broker
}

// CreateUser inserts a user with the given role.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, role string) models.User {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("test-password"), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("failed to hash fixture password: %v", err)
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           primitive.NewObjectID(),
		FullName:     fullName,
		FullNameCI:   text.Fold(fullName),
		Email:        fmt.Sprintf("user%d-%s@test.com", f.seq(), lead8(primitive.NewObjectID())),
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
		Status:       models.UserStatusApproved,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateAgent inserts an active, approved agent eligible for assignment.
func (f *Fixtures) CreateAgent(ctx context.Context, fullName string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, "agent")
}

// CreateIneligibleAgent inserts an agent that must be rejected for
// assignment (inactive).
func (f *Fixtures) CreateIneligibleAgent(ctx context.Context, fullName string) models.User {
	f.t.Helper()

	agent := f.CreateAgent(ctx, fullName)
	agent.IsActive = false
	if _, err := f.db.Collection("users").ReplaceOne(ctx, bson.M{"_id": agent.ID}, agent); err != nil {
		f.t.Fatalf("failed to deactivate test agent: %v", err)
	}
	return agent
}

// CreateOrder inserts a pending order for the given requester.
func (f *Fixtures) CreateOrder(ctx context.Context, requester primitive.ObjectID, req models.OrderRequests) models.Order {
	f.t.Helper()

	now := time.Now().UTC()
	order := models.Order{
		ID:        primitive.NewObjectID(),
		Requester: requester,
		Status:    models.OrderStatusPending,
		Requests:  req,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("orders").InsertOne(ctx, order); err != nil {
		f.t.Fatalf("failed to create test order: %v", err)
	}
	return order
}

// lead8 shortens an ObjectID for use in generated emails.
func lead8(id primitive.ObjectID) string {
	return id.Hex()[:8]
}
