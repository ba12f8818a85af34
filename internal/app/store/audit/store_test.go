package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/leadhub/internal/app/store/audit"
	"github.com/dalemusser/leadhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	event := audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        "192.168.1.1",
		UserAgent: "TestBrowser/1.0",
		Success:   true,
	}

	if err := store.Log(ctx, event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.Query(ctx, audit.QueryFilter{UserID: &userID})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID.IsZero() {
		t.Error("expected ID to be auto-generated")
	}
	if events[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be auto-set")
	}
}

func TestStore_GetByLead(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	leadID := primitive.NewObjectID()
	otherLead := primitive.NewObjectID()
	brokerID := primitive.NewObjectID()

	for _, lid := range []primitive.ObjectID{leadID, leadID, otherLead} {
		lid := lid
		err := store.Log(ctx, audit.Event{
			Category:  audit.CategoryAssignment,
			EventType: audit.EventBrokerAssigned,
			LeadID:    &lid,
			BrokerID:  &brokerID,
			IP:        "10.0.0.1",
			Success:   true,
		})
		if err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events, err := store.GetByLead(ctx, leadID, 10)
	if err != nil {
		t.Fatalf("GetByLead failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for lead, got %d", len(events))
	}
}

func TestStore_Query_ByCategory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	seed := []audit.Event{
		{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, IP: "1.1.1.1", Success: true},
		{Category: audit.CategoryAssignment, EventType: audit.EventBrokerAssigned, IP: "1.1.1.1", Success: true},
		{Category: audit.CategoryAdmin, EventType: audit.EventBrokerDeleted, IP: "1.1.1.1", Success: true},
	}
	for _, e := range seed {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events, err := store.Query(ctx, audit.QueryFilter{Category: audit.CategoryAssignment})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 assignment event, got %d", len(events))
	}
	if events[0].EventType != audit.EventBrokerAssigned {
		t.Errorf("expected %s, got %s", audit.EventBrokerAssigned, events[0].EventType)
	}
}

func TestStore_Query_ByTimeRange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	old := audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		Timestamp: time.Now().Add(-48 * time.Hour),
		IP:        "1.1.1.1",
		Success:   true,
	}
	recent := audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		IP:        "1.1.1.1",
		Success:   true,
	}
	if err := store.Log(ctx, old); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := store.Log(ctx, recent); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	since := time.Now().Add(-time.Hour)
	events, err := store.Query(ctx, audit.QueryFilter{StartTime: &since})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 recent event, got %d", len(events))
	}
	if events[0].EventType != audit.EventLoginSuccess {
		t.Errorf("wrong event returned: %s", events[0].EventType)
	}
}

func TestStore_CountByFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	brokerID := primitive.NewObjectID()
	for i := 0; i < 3; i++ {
		err := store.Log(ctx, audit.Event{
			Category:  audit.CategoryAssignment,
			EventType: audit.EventBrokerAssigned,
			BrokerID:  &brokerID,
			IP:        "1.1.1.1",
			Success:   true,
		})
		if err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	n, err := store.CountByFilter(ctx, audit.QueryFilter{BrokerID: &brokerID})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 events, got %d", n)
	}
}

func TestStore_GetFailedLogins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	seed := []audit.Event{
		{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, IP: "1.1.1.1", Success: true},
		{Category: audit.CategoryAuth, EventType: audit.EventLoginFailedWrongPassword, IP: "1.1.1.1", Success: false},
		{Category: audit.CategoryAuth, EventType: audit.EventLoginFailedRateLimit, IP: "1.1.1.1", Success: false},
	}
	for _, e := range seed {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events, err := store.GetFailedLogins(ctx, time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("GetFailedLogins failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 failed logins, got %d", len(events))
	}
}
