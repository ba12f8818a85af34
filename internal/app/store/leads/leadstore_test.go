package leadstore_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/leadhub/internal/app/policy/leadpolicy"
	leadstore "github.com/dalemusser/leadhub/internal/app/store/leads"
	"github.com/dalemusser/leadhub/internal/app/system/indexes"
	"github.com/dalemusser/leadhub/internal/app/system/paging"
	"github.com/dalemusser/leadhub/internal/domain/models"
	"github.com/dalemusser/leadhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func setup(t *testing.T) (*leadstore.Store, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	return leadstore.New(db), db
}

func newLead(name, email string) models.Lead {
	return models.Lead{
		LeadType:  models.LeadTypeCold,
		FirstName: name,
		LastName:  "Test",
		NewEmail:  email,
		NewPhone:  "+1 555 0100",
		Country:   "US",
		CreatedBy: primitive.NewObjectID(),
	}
}

func TestStore_Create(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, newLead("Ada", "  Ada@Example.COM "))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.NewEmail != "ada@example.com" {
		t.Errorf("expected normalized email, got %q", created.NewEmail)
	}
	if created.NewPhone != "+15550100" {
		t.Errorf("expected normalized phone, got %q", created.NewPhone)
	}
	if created.Status != models.LeadStatusActive {
		t.Errorf("expected default status active, got %q", created.Status)
	}
	if created.AssignedBrokers == nil || len(created.AssignedBrokers) != 0 {
		t.Error("expected empty broker-assignment set")
	}
	if created.Version != 1 {
		t.Errorf("expected version 1, got %d", created.Version)
	}
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, newLead("First", "dup@example.com")); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	_, err := store.Create(ctx, newLead("Second", "DUP@example.com"))
	var dup *leadstore.DuplicateEmailError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateEmailError, got %v", err)
	}
	if dup.Email != "dup@example.com" {
		t.Errorf("expected offending email in error, got %q", dup.Email)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); err != leadstore.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_AddComment(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, newLead("Commented", "comment@example.com"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	author := primitive.NewObjectID()

	comment, err := store.AddComment(ctx, created.ID, author, "called, no answer")
	if err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}
	if comment.ID == "" {
		t.Error("expected generated comment id")
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(got.Comments) != 1 || got.Comments[0].Body != "called, no answer" {
		t.Errorf("comment not persisted: %+v", got.Comments)
	}
	if got.Comments[0].AuthorID != author {
		t.Error("expected author id on comment")
	}
}

/* ------------------------- broker-assignment writes ------------------------ */

func TestStore_PushBrokerAssignment(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, newLead("Pushed", "push@example.com"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rec := models.BrokerAssignment{
		BrokerID:   primitive.NewObjectID(),
		AssignedBy: primitive.NewObjectID(),
		AssignedAt: time.Now().UTC(),
		Network:    "adnet-1",
	}
	if err := store.PushBrokerAssignment(ctx, created.ID, rec, created.Version); err != nil {
		t.Fatalf("PushBrokerAssignment failed: %v", err)
	}

	got, _ := store.GetByID(ctx, created.ID)
	if !got.IsAssignedToBroker(rec.BrokerID) {
		t.Error("expected assignment record on lead")
	}
	if got.Version != created.Version+1 {
		t.Errorf("expected version bump, got %d", got.Version)
	}
}

func TestStore_PushBrokerAssignment_DuplicateBrokerRejected(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, newLead("Deduped", "dedup@example.com"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	brokerID := primitive.NewObjectID()
	rec := models.BrokerAssignment{BrokerID: brokerID, AssignedBy: primitive.NewObjectID(), AssignedAt: time.Now().UTC()}

	if err := store.PushBrokerAssignment(ctx, created.ID, rec, created.Version); err != nil {
		t.Fatalf("first push failed: %v", err)
	}

	got, _ := store.GetByID(ctx, created.ID)
	if err := store.PushBrokerAssignment(ctx, created.ID, rec, got.Version); err != leadstore.ErrStale {
		t.Errorf("expected ErrStale for duplicate broker, got %v", err)
	}

	got, _ = store.GetByID(ctx, created.ID)
	if len(got.AssignedBrokers) != 1 {
		t.Errorf("expected exactly one assignment record, got %d", len(got.AssignedBrokers))
	}
}

func TestStore_PushBrokerAssignment_StaleVersion(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, newLead("Stale", "stale@example.com"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rec := models.BrokerAssignment{BrokerID: primitive.NewObjectID(), AssignedBy: primitive.NewObjectID(), AssignedAt: time.Now().UTC()}
	if err := store.PushBrokerAssignment(ctx, created.ID, rec, created.Version+7); err != leadstore.ErrStale {
		t.Errorf("expected ErrStale, got %v", err)
	}
}

func TestStore_ForcePullBrokerAssignment(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, newLead("Pulled", "pull@example.com"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	brokerID := primitive.NewObjectID()
	rec := models.BrokerAssignment{BrokerID: brokerID, AssignedBy: primitive.NewObjectID(), AssignedAt: time.Now().UTC()}
	if err := store.PushBrokerAssignment(ctx, created.ID, rec, created.Version); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	// Force pull ignores the version moved by the push it reverts.
	removed, err := store.ForcePullBrokerAssignment(ctx, created.ID, brokerID)
	if err != nil {
		t.Fatalf("ForcePullBrokerAssignment failed: %v", err)
	}
	if !removed {
		t.Fatal("expected record removed")
	}

	removed, err = store.ForcePullBrokerAssignment(ctx, created.ID, brokerID)
	if err != nil {
		t.Fatalf("second ForcePull failed: %v", err)
	}
	if removed {
		t.Error("expected second pull to be a no-op")
	}
}

/* ------------------------------ agent writes ------------------------------- */

func TestStore_AssignAgent(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, newLead("Agented", "agent@example.com"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	agentID := primitive.NewObjectID()

	if err := store.AssignAgent(ctx, created.ID, agentID, created.Version); err != nil {
		t.Fatalf("AssignAgent failed: %v", err)
	}

	got, _ := store.GetByID(ctx, created.ID)
	if !got.IsAssigned || got.AssignedAgent == nil || *got.AssignedAgent != agentID {
		t.Errorf("agent assignment not persisted: %+v", got)
	}
	if got.AssignedAt == nil {
		t.Error("expected AssignedAt to be set")
	}
}

func TestStore_UnassignAgent(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, newLead("Unagented", "unagent@example.com"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.AssignAgent(ctx, created.ID, primitive.NewObjectID(), created.Version); err != nil {
		t.Fatalf("AssignAgent failed: %v", err)
	}

	got, _ := store.GetByID(ctx, created.ID)
	if err := store.UnassignAgent(ctx, created.ID, got.Version); err != nil {
		t.Fatalf("UnassignAgent failed: %v", err)
	}

	got, _ = store.GetByID(ctx, created.ID)
	if got.IsAssigned || got.AssignedAgent != nil {
		t.Errorf("expected agent assignment cleared: %+v", got)
	}
}

/* ------------------------------ query builder ------------------------------ */

func TestBuildQuery_ScopeDenied(t *testing.T) {
	if _, ok := leadstore.BuildQuery(leadpolicy.ListScope{}, leadstore.Filter{}); ok {
		t.Error("expected ok=false for a scope that cannot list")
	}
}

func TestBuildQuery_CreatorScopeAlwaysApplied(t *testing.T) {
	creator := primitive.NewObjectID()
	scope := leadpolicy.ListScope{CanList: true, CreatorID: creator}

	query, ok := leadstore.BuildQuery(scope, leadstore.Filter{LeadType: models.LeadTypeFTD})
	if !ok {
		t.Fatal("expected ok=true")
	}
	if query["created_by"] != creator {
		t.Error("creator scope clause missing from query")
	}
	if query["lead_type"] != models.LeadTypeFTD {
		t.Error("lead_type filter missing from query")
	}
}

func TestBuildQuery_InvalidEnumsIgnored(t *testing.T) {
	scope := leadpolicy.ListScope{CanList: true, All: true}

	query, ok := leadstore.BuildQuery(scope, leadstore.Filter{LeadType: "bogus", Status: "bogus"})
	if !ok {
		t.Fatal("expected ok=true")
	}
	if _, present := query["lead_type"]; present {
		t.Error("invalid lead_type must not reach the query")
	}
	if query["status"] == "bogus" {
		t.Error("invalid status must not reach the query")
	}
}

func TestBuildQuery_ConvertedExcludedByDefault(t *testing.T) {
	scope := leadpolicy.ListScope{CanList: true, All: true}

	query, _ := leadstore.BuildQuery(scope, leadstore.Filter{})
	if _, present := query["status"]; !present {
		t.Error("expected default query to exclude converted leads")
	}

	query, _ = leadstore.BuildQuery(scope, leadstore.Filter{IncludeConverted: true})
	if _, present := query["status"]; present {
		t.Error("IncludeConverted must drop the status exclusion")
	}

	query, _ = leadstore.BuildQuery(scope, leadstore.Filter{Status: models.LeadStatusConverted})
	if query["status"] != models.LeadStatusConverted {
		t.Error("an explicit status filter must win over the default exclusion")
	}
}

func TestBuildQuery_AssignedFilter(t *testing.T) {
	scope := leadpolicy.ListScope{CanList: true, All: true}

	assigned := true
	query, _ := leadstore.BuildQuery(scope, leadstore.Filter{Assigned: &assigned})
	if _, present := query["assigned_brokers.0"]; !present {
		t.Error("expected non-empty-set clause for Assigned=true")
	}

	assigned = false
	query, _ = leadstore.BuildQuery(scope, leadstore.Filter{Assigned: &assigned})
	if _, present := query["assigned_brokers"]; !present {
		t.Error("expected empty-set clause for Assigned=false")
	}
}

func TestStore_List_ScopedAndPaged(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := primitive.NewObjectID()
	for i := 0; i < 3; i++ {
		lead := newLead("Mine", primitive.NewObjectID().Hex()+"@example.com")
		lead.CreatedBy = creator
		if _, err := store.Create(ctx, lead); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if _, err := store.Create(ctx, newLead("Other", "other@example.com")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	query, ok := leadstore.BuildQuery(leadpolicy.ListScope{CanList: true, CreatorID: creator}, leadstore.Filter{})
	if !ok {
		t.Fatal("expected ok=true")
	}

	page := paging.Page{Number: 1, Limit: 2}
	leads, total, err := store.List(ctx, query, leadstore.SortNewest, page)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total 3 scoped leads, got %d", total)
	}
	if len(leads) != 2 {
		t.Errorf("expected page of 2, got %d", len(leads))
	}
}

func TestStore_List_SortOrders(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, last := range []string{"Zimmer", "Abbott", "Moore"} {
		lead := newLead("Sorted", last+"@example.com")
		lead.LastName = last
		if _, err := store.Create(ctx, lead); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	query, _ := leadstore.BuildQuery(leadpolicy.ListScope{CanList: true, All: true}, leadstore.Filter{})
	page := paging.Page{Number: 1, Limit: 10}

	lastNames := func(sort string) []string {
		t.Helper()
		leads, _, err := store.List(ctx, query, sort, page)
		if err != nil {
			t.Fatalf("List(%s) failed: %v", sort, err)
		}
		names := make([]string, len(leads))
		for i, l := range leads {
			names[i] = l.LastName
		}
		return names
	}

	if got := lastNames(leadstore.SortNewest); got[0] != "Moore" || got[2] != "Zimmer" {
		t.Errorf("newest: got order %v", got)
	}
	if got := lastNames(leadstore.SortOldest); got[0] != "Zimmer" || got[2] != "Moore" {
		t.Errorf("oldest: got order %v", got)
	}
	if got := lastNames(leadstore.SortNameAsc); got[0] != "Abbott" || got[2] != "Zimmer" {
		t.Errorf("name_asc: got order %v", got)
	}
	if got := lastNames(leadstore.SortNameDesc); got[0] != "Zimmer" || got[2] != "Abbott" {
		t.Errorf("name_desc: got order %v", got)
	}
	// Unknown sort names fall back to newest-first.
	if got := lastNames("bogus"); got[0] != "Moore" {
		t.Errorf("fallback: got order %v", got)
	}
}

func TestStore_DeleteByQuery_ReportsCountOnly(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 2; i++ {
		if _, err := store.Create(ctx, newLead("Doomed", primitive.NewObjectID().Hex()+"@example.com")); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	query, _ := leadstore.BuildQuery(leadpolicy.ListScope{CanList: true, All: true}, leadstore.Filter{})
	n, err := store.DeleteByQuery(ctx, query)
	if err != nil {
		t.Fatalf("DeleteByQuery failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deletions, got %d", n)
	}
}

func TestStore_GetStats(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ftd := newLead("Stat1", "stat1@example.com")
	ftd.LeadType = models.LeadTypeFTD
	if _, err := store.Create(ctx, ftd); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	cold, err := store.Create(ctx, newLead("Stat2", "stat2@example.com"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.AssignAgent(ctx, cold.ID, primitive.NewObjectID(), cold.Version); err != nil {
		t.Fatalf("AssignAgent failed: %v", err)
	}

	stats, err := store.GetStats(ctx, nil)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("expected total 2, got %d", stats.Total)
	}
	if stats.ByType[models.LeadTypeFTD] != 1 || stats.ByType[models.LeadTypeCold] != 1 {
		t.Errorf("unexpected type counts: %+v", stats.ByType)
	}
	if stats.AgentAssigned != 1 {
		t.Errorf("expected 1 agent-assigned lead, got %d", stats.AgentAssigned)
	}
}
