// internal/app/features/brokers/handler_test.go
package brokers_test

import (
	"net/http"
	"testing"

	"github.com/dalemusser/leadhub/internal/app/engine/assign"
	"github.com/dalemusser/leadhub/internal/app/features/brokers"
	"github.com/dalemusser/leadhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func setup(t *testing.T) (chi.Router, *assign.Engine, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	eng := assign.New(db.Client(), db, zap.NewNop())
	h := brokers.NewHandler(eng, nil, zap.NewNop())
	passthrough := func(next http.Handler) http.Handler { return next }
	return brokers.Routes(h, passthrough), eng, testutil.NewFixtures(t, db)
}

func TestServeCreate(t *testing.T) {
	router, _, _ := setup(t)

	req := testutil.NewJSONRequest("POST", "/", map[string]any{
		"name":   "Quantum Markets",
		"domain": "quantum.example.com",
	})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AdminUser()))

	rec.AssertStatus(t, http.StatusCreated)
	rec.AssertContains(t, "Quantum Markets")
}

func TestServeCreate_AgentForbidden(t *testing.T) {
	router, _, _ := setup(t)

	req := testutil.NewJSONRequest("POST", "/", map[string]any{"name": "Nope Capital"})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AgentUser()))

	rec.AssertStatus(t, http.StatusForbidden)
}

func TestServeCreate_DuplicateName(t *testing.T) {
	router, _, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx.CreateBroker(ctx, "Taken Name")

	req := testutil.NewJSONRequest("POST", "/", map[string]any{"name": "taken name"})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AdminUser()))

	rec.AssertStatus(t, http.StatusConflict)
}

func TestServeGet_NotFound(t *testing.T) {
	router, _, _ := setup(t)

	req := testutil.NewAuthenticatedRequest("GET", "/64b000000000000000000000", testutil.AdminUser())
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)

	rec.AssertStatus(t, http.StatusNotFound)
}

func TestServeDelete_GuardedByMembers(t *testing.T) {
	router, eng, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	broker := fx.CreateBroker(ctx, "Sticky Broker")
	lead := fx.CreateLead(ctx, "ftd")
	actx := assign.AssignContext{}
	if _, _, err := eng.Assign(ctx, lead.ID, broker.ID, actx); err != nil {
		t.Fatalf("seed assign: %v", err)
	}

	req := testutil.NewAuthenticatedRequest("DELETE", "/"+broker.ID.Hex(), testutil.AdminUser())
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusConflict)
	rec.AssertContains(t, "1 assigned lead")

	if _, _, err := eng.Unassign(ctx, lead.ID, broker.ID); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	req = testutil.NewAuthenticatedRequest("DELETE", "/"+broker.ID.Hex(), testutil.AdminUser())
	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)
}

func TestServeList_ActiveFilter(t *testing.T) {
	router, _, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateBroker(ctx, "Awake Broker")
	fx.CreateInactiveBroker(ctx, "Asleep Broker")

	req := testutil.NewAuthenticatedRequest("GET", "/?active=true", testutil.AgentUser())
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Awake Broker")
	var env struct {
		Data struct {
			Brokers []struct {
				Name string `json:"name"`
			} `json:"brokers"`
		} `json:"data"`
	}
	rec.DecodeJSON(t, &env)
	for _, b := range env.Data.Brokers {
		if b.Name == "Asleep Broker" {
			t.Error("inactive broker leaked into active=true listing")
		}
	}
}

func TestServeSetActive(t *testing.T) {
	router, _, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	broker := fx.CreateBroker(ctx, "Toggle Broker")

	req := testutil.NewJSONRequest("POST", "/"+broker.ID.Hex()+"/active", map[string]any{"is_active": false})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusOK)
}

func TestServeUpdate_ClearDomain(t *testing.T) {
	router, eng, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	broker := fx.CreateBroker(ctx, "Domain Holder")

	req := testutil.NewJSONRequest("PUT", "/"+broker.ID.Hex(), map[string]any{
		"name":   "Domain Holder",
		"domain": "",
	})
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusOK)

	got, err := eng.Brokers().GetByID(ctx, broker.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Domain != nil {
		t.Errorf("domain = %q, want cleared", *got.Domain)
	}
}
