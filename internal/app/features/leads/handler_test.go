// internal/app/features/leads/handler_test.go
package leads_test

import (
	"net/http"
	"testing"

	"github.com/dalemusser/leadhub/internal/app/engine/assign"
	"github.com/dalemusser/leadhub/internal/app/features/leads"
	userstore "github.com/dalemusser/leadhub/internal/app/store/users"
	"github.com/dalemusser/leadhub/internal/domain/models"
	"github.com/dalemusser/leadhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func setup(t *testing.T) (chi.Router, *assign.Engine, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	eng := assign.New(db.Client(), db, zap.NewNop())
	h := leads.NewHandler(eng, userstore.New(db), nil, zap.NewNop())
	return leads.Routes(h), eng, testutil.NewFixtures(t, db)
}

// agentSession builds a session user backed by a real eligible agent
// document, so scope checks and the users collection agree on the id.
func agentSession(agent models.User) testutil.TestUser {
	return testutil.TestUser{
		ID:    agent.ID.Hex(),
		Name:  agent.FullName,
		Email: agent.Email,
		Role:  "agent",
	}
}

func TestServeCreate(t *testing.T) {
	router, _, _ := setup(t)

	req := testutil.NewJSONRequest("POST", "/", map[string]any{
		"lead_type":  "ftd",
		"first_name": "Noor",
		"last_name":  "Haddad",
		"new_email":  "noor.haddad@example.com",
		"country":    "AE",
	})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.LeadManagerUser()))

	rec.AssertStatus(t, http.StatusCreated)
	rec.AssertContains(t, "noor.haddad@example.com")
}

func TestServeCreate_AgentForbidden(t *testing.T) {
	router, _, _ := setup(t)

	req := testutil.NewJSONRequest("POST", "/", map[string]any{
		"lead_type": "ftd", "first_name": "A", "last_name": "B", "new_email": "x@y.com",
	})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AgentUser()))

	rec.AssertStatus(t, http.StatusForbidden)
}

func TestServeCreate_UnknownLeadType(t *testing.T) {
	router, _, _ := setup(t)

	req := testutil.NewJSONRequest("POST", "/", map[string]any{
		"lead_type": "vip", "first_name": "A", "last_name": "B", "new_email": "x@y.com",
	})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AdminUser()))

	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServeCreate_DuplicateEmail(t *testing.T) {
	router, _, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	existing := fx.CreateLead(ctx, "ftd")

	req := testutil.NewJSONRequest("POST", "/", map[string]any{
		"lead_type": "ftd", "first_name": "A", "last_name": "B", "new_email": existing.NewEmail,
	})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AdminUser()))

	rec.AssertStatus(t, http.StatusConflict)
}

func TestServeGet_AgentScope(t *testing.T) {
	router, eng, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	agent := fx.CreateAgent(ctx, "Scoped Agent")
	mine := fx.CreateLead(ctx, "ftd")
	other := fx.CreateLead(ctx, "ftd")
	if _, err := eng.BulkAssignAgent(ctx, []primitive.ObjectID{mine.ID}, agent.ID); err != nil {
		t.Fatalf("seed agent assignment: %v", err)
	}

	req := testutil.NewAuthenticatedRequest("GET", "/"+mine.ID.Hex(), agentSession(agent))
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	// Another agent's lead reads as not found, not forbidden.
	req = testutil.NewAuthenticatedRequest("GET", "/"+other.ID.Hex(), agentSession(agent))
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestServeList_AgentSeesOnlyOwnLeads(t *testing.T) {
	router, eng, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	agent := fx.CreateAgent(ctx, "Listing Agent")
	mine := fx.CreateLead(ctx, "ftd")
	fx.CreateLead(ctx, "ftd")
	if _, err := eng.BulkAssignAgent(ctx, []primitive.ObjectID{mine.ID}, agent.ID); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := testutil.NewAuthenticatedRequest("GET", "/", agentSession(agent))
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	var env struct {
		Data struct {
			Leads []struct {
				ID string `json:"id"`
			} `json:"leads"`
			Paging struct {
				Total int64 `json:"total"`
			} `json:"paging"`
		} `json:"data"`
	}
	rec.DecodeJSON(t, &env)
	if env.Data.Paging.Total != 1 || len(env.Data.Leads) != 1 {
		t.Fatalf("agent listing = %+v, want exactly own lead", env.Data)
	}
	if env.Data.Leads[0].ID != mine.ID.Hex() {
		t.Errorf("listed lead %s, want %s", env.Data.Leads[0].ID, mine.ID.Hex())
	}
}

func TestServeList_LeadManagerScopedToOwnCreations(t *testing.T) {
	router, _, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	manager := testutil.LeadManagerUser()
	managerID, err := primitive.ObjectIDFromHex(manager.ID)
	if err != nil {
		t.Fatalf("manager id: %v", err)
	}
	fx.CreateLeadOwnedBy(ctx, "ftd", managerID)
	fx.CreateLead(ctx, "ftd") // someone else's

	req := testutil.NewAuthenticatedRequest("GET", "/", manager)
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	var env struct {
		Data struct {
			Paging struct {
				Total int64 `json:"total"`
			} `json:"paging"`
		} `json:"data"`
	}
	rec.DecodeJSON(t, &env)
	if env.Data.Paging.Total != 1 {
		t.Fatalf("lead manager sees %d leads, want 1", env.Data.Paging.Total)
	}
}

func TestServeList_FilterByType(t *testing.T) {
	router, _, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateLead(ctx, "ftd")
	fx.CreateLead(ctx, "cold")

	req := testutil.NewAuthenticatedRequest("GET", "/?lead_type=cold", testutil.AdminUser())
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	var env struct {
		Data struct {
			Leads []struct {
				LeadType string `json:"lead_type"`
			} `json:"leads"`
		} `json:"data"`
	}
	rec.DecodeJSON(t, &env)
	if len(env.Data.Leads) != 1 || env.Data.Leads[0].LeadType != "cold" {
		t.Fatalf("filtered listing = %+v, want one cold lead", env.Data.Leads)
	}
}

func TestServeAssignUnassignBroker(t *testing.T) {
	router, _, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	lead := fx.CreateLead(ctx, "ftd")
	broker := fx.CreateBroker(ctx, "Route Target")
	path := "/" + lead.ID.Hex() + "/brokers/" + broker.ID.Hex()

	req := testutil.NewJSONRequest("POST", path, map[string]any{"network": "acme"})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AffiliateManagerUser()))
	rec.AssertStatus(t, http.StatusOK)

	// Second assignment of the same pair conflicts.
	req = testutil.NewJSONRequest("POST", path, nil)
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AffiliateManagerUser()))
	rec.AssertStatus(t, http.StatusConflict)

	req = testutil.NewJSONRequest("DELETE", path, nil)
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AffiliateManagerUser()))
	rec.AssertStatus(t, http.StatusOK)

	// And unassigning again reports the pair is gone.
	req = testutil.NewJSONRequest("DELETE", path, nil)
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AffiliateManagerUser()))
	rec.AssertStatus(t, http.StatusConflict)
}

func TestServeAssignBroker_LeadManagerForbidden(t *testing.T) {
	router, _, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	lead := fx.CreateLead(ctx, "ftd")
	broker := fx.CreateBroker(ctx, "Out Of Reach")
	path := "/" + lead.ID.Hex() + "/brokers/" + broker.ID.Hex()

	req := testutil.NewJSONRequest("POST", path, nil)
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.LeadManagerUser()))
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestServeDelete_RefusesAssignedLead(t *testing.T) {
	router, eng, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	lead := fx.CreateLead(ctx, "ftd")
	broker := fx.CreateBroker(ctx, "Holding Broker")
	if _, _, err := eng.Assign(ctx, lead.ID, broker.ID, assign.AssignContext{}); err != nil {
		t.Fatalf("seed assign: %v", err)
	}

	req := testutil.NewAuthenticatedRequest("DELETE", "/"+lead.ID.Hex(), testutil.AdminUser())
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusConflict)

	if _, _, err := eng.Unassign(ctx, lead.ID, broker.ID); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	req = testutil.NewAuthenticatedRequest("DELETE", "/"+lead.ID.Hex(), testutil.AdminUser())
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)
}

func TestServeAddComment_Sanitized(t *testing.T) {
	router, _, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	lead := fx.CreateLead(ctx, "ftd")

	req := testutil.NewJSONRequest("POST", "/"+lead.ID.Hex()+"/comments", map[string]any{
		"body": `<p>called, answered</p><script>alert(1)</script>`,
	})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AdminUser()))

	rec.AssertStatus(t, http.StatusCreated)
	rec.AssertContains(t, "called, answered")
	var env struct {
		Data struct {
			Body string `json:"body"`
		} `json:"data"`
	}
	rec.DecodeJSON(t, &env)
	if env.Data.Body == "" || env.Data.Body != "<p>called, answered</p>" {
		t.Errorf("sanitized body = %q", env.Data.Body)
	}
}

func TestServeBulkDelete_AdminOnly(t *testing.T) {
	router, _, _ := setup(t)

	req := testutil.NewJSONRequest("POST", "/bulk/delete", map[string]any{})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AffiliateManagerUser()))
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestServeBulkDelete_ReportsCount(t *testing.T) {
	router, _, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateLead(ctx, "cold")
	fx.CreateLead(ctx, "cold")
	fx.CreateLead(ctx, "ftd")

	req := testutil.NewJSONRequest("POST", "/bulk/delete", map[string]any{"lead_type": "cold"})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AdminUser()))

	rec.AssertStatus(t, http.StatusOK)
	var env struct {
		Data struct {
			Deleted int64 `json:"deleted"`
		} `json:"data"`
	}
	rec.DecodeJSON(t, &env)
	if env.Data.Deleted != 2 {
		t.Fatalf("deleted = %d, want 2", env.Data.Deleted)
	}
}

func TestServeBulkAssignAgent(t *testing.T) {
	router, _, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	agent := fx.CreateAgent(ctx, "Bulk Agent")
	l1 := fx.CreateLead(ctx, "ftd")
	l2 := fx.CreateLead(ctx, "live")
	missing := primitive.NewObjectID()

	req := testutil.NewJSONRequest("POST", "/bulk/assign-agent", map[string]any{
		"lead_ids": []string{l1.ID.Hex(), missing.Hex(), l2.ID.Hex()},
		"agent_id": agent.ID.Hex(),
	})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AdminUser()))

	rec.AssertStatus(t, http.StatusOK)
	var env struct {
		Data struct {
			Succeeded []string `json:"succeeded"`
			Failed    []struct {
				ID string `json:"id"`
			} `json:"failed"`
		} `json:"data"`
	}
	rec.DecodeJSON(t, &env)
	if len(env.Data.Succeeded) != 2 || len(env.Data.Failed) != 1 {
		t.Fatalf("bulk result = %+v, want 2 succeeded / 1 failed", env.Data)
	}
}

func TestServeBulkAssignAgent_IneligibleAgent(t *testing.T) {
	router, _, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	benched := fx.CreateIneligibleAgent(ctx, "Benched")
	lead := fx.CreateLead(ctx, "ftd")

	req := testutil.NewJSONRequest("POST", "/bulk/assign-agent", map[string]any{
		"lead_ids": []string{lead.ID.Hex()},
		"agent_id": benched.ID.Hex(),
	})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusBadRequest)
}
