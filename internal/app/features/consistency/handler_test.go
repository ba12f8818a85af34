package consistency_test

import (
	"encoding/json"
	"testing"

	"github.com/dalemusser/leadhub/internal/app/engine/assign"
	"github.com/dalemusser/leadhub/internal/app/features/consistency"
	"github.com/dalemusser/leadhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*assign.Engine, *testutil.Fixtures, *consistency.Handler) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	eng := assign.New(db.Client(), db, zap.NewNop())
	h := consistency.NewHandler(eng, nil, zap.NewNop())
	return eng, testutil.NewFixtures(t, db), h
}

type sweepBody struct {
	Data struct {
		Count           int                    `json:"count"`
		Inconsistencies []assign.Inconsistency `json:"inconsistencies"`
	} `json:"data"`
}

func TestServeSweep_CleanDatabase(t *testing.T) {
	_, fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	lead := fx.CreateLead(ctx, "cold")
	broker := fx.CreateBroker(ctx, "Tidy Capital")
	_ = lead
	_ = broker

	req := testutil.NewAuthenticatedRequest("GET", "/", testutil.AdminUser())
	rec := testutil.NewRecorder()
	consistency.Routes(h).ServeHTTP(rec, req)
	rec.AssertStatus(t, 200)

	var body sweepBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Count != 0 {
		t.Errorf("clean database reported %d divergent pairs", body.Data.Count)
	}
	if body.Data.Inconsistencies == nil {
		t.Error("inconsistencies should serialize as an empty list, not null")
	}
}

func TestSweepThenRepair(t *testing.T) {
	_, fx, h := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	lead := fx.CreateLead(ctx, "ftd")
	broker := fx.CreateBroker(ctx, "Divergent Capital")

	// Plant a lead-side remnant with no matching member entry.
	_, err := fx.DB().Collection("leads").UpdateByID(ctx, lead.ID,
		bson.M{"$push": bson.M{"assigned_brokers": bson.M{"broker_id": broker.ID}}})
	if err != nil {
		t.Fatalf("seed divergence: %v", err)
	}

	router := consistency.Routes(h)

	req := testutil.NewAuthenticatedRequest("GET", "/", testutil.AdminUser())
	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, req)
	rec.AssertStatus(t, 200)

	var body sweepBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Count != 1 {
		t.Fatalf("sweep found %d pairs, want 1", body.Data.Count)
	}
	found := body.Data.Inconsistencies[0]
	if !found.LeadHasBroker || found.BrokerHasLead {
		t.Errorf("divergence flags wrong: %+v", found)
	}

	repairReq := testutil.NewJSONRequest("POST", "/repair", map[string]string{
		"lead_id":   lead.ID.Hex(),
		"broker_id": broker.ID.Hex(),
	})
	repairReq = testutil.WithUser(repairReq, testutil.AdminUser())
	repairRec := testutil.NewRecorder()
	router.ServeHTTP(repairRec, repairReq)
	repairRec.AssertStatus(t, 200)

	rec2 := testutil.NewRecorder()
	router.ServeHTTP(rec2, testutil.NewAuthenticatedRequest("GET", "/", testutil.AdminUser()))
	rec2.AssertStatus(t, 200)

	var after sweepBody
	if err := json.Unmarshal(rec2.Body.Bytes(), &after); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if after.Data.Count != 0 {
		t.Errorf("pair still divergent after repair: %d", after.Data.Count)
	}
}

func TestServeRepair_BadIDs(t *testing.T) {
	_, _, h := setup(t)

	req := testutil.NewJSONRequest("POST", "/repair", map[string]string{
		"lead_id":   "not-an-id",
		"broker_id": "also-not",
	})
	req = testutil.WithUser(req, testutil.AdminUser())
	rec := testutil.NewRecorder()
	consistency.Routes(h).ServeHTTP(rec, req)
	rec.AssertStatus(t, 400)
}
