package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/example/blood-matching/internal/dispatch"
	"github.com/example/blood-matching/internal/observability"
	"github.com/example/blood-matching/internal/donors"
	"github.com/example/blood-matching/internal/matcher"
	"github.com/example/blood-matching/internal/models"
	"github.com/example/blood-matching/internal/stats"
	"github.com/example/blood-matching/internal/storage"
)

func newTestServer() *Server {
	store := storage.NewMemoryStore()
	dir := donors.NewIndex()
	logger := slog.Default()
	s := &Server{
		Store:   store,
		Donors:  dir,
		Matcher: &matcher.Service{Store: store, Donors: dir, Logger: logger},
		Stats:   &stats.Service{Store: store},
		WSReg:   dispatch.NewWSRegistry(),
		mux:     mux.NewRouter(),
		logger:  logger,
	}
	s.routes()
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestMatchSelectFlow(t *testing.T) {
	s := newTestServer()

	w := doJSON(t, s, "POST", "/api/v1/requests", models.BloodRequest{
		ID:         "req1",
		PatientID:  "p1",
		HospitalID: "h1",
		BloodType:  models.BPos,
		Urgency:    models.UrgencyCritical,
		Hospital:   models.Coord{Lat: 11.0168, Lon: 76.9558},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create request: %d %s", w.Code, w.Body.String())
	}

	for i, rel := range []float64{0.9, 0.7} {
		w = doJSON(t, s, "POST", "/internal/donors", models.Donor{
			ID:          fmt.Sprintf("d%d", i+1),
			BloodType:   models.BPos,
			Available:   true,
			Reliability: &rel,
			Loc:         models.Coord{Lat: 11.03, Lon: 76.96},
		})
		if w.Code != http.StatusNoContent {
			t.Fatalf("donor upsert: %d %s", w.Code, w.Body.String())
		}
	}

	w = doJSON(t, s, "POST", "/api/v1/requests/req1/match", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("match: %d %s", w.Code, w.Body.String())
	}
	var res matcher.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(res.Attempts))
	}
	if res.Attempts[0].DonorID != "d1" {
		t.Fatalf("expected d1 ranked first, got %s", res.Attempts[0].DonorID)
	}

	w = doJSON(t, s, "POST", "/api/v1/requests/req1/select", map[string]string{"donor_id": "d1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("select: %d %s", w.Code, w.Body.String())
	}
	var don models.Donation
	if err := json.Unmarshal(w.Body.Bytes(), &don); err != nil {
		t.Fatal(err)
	}
	if don.DonorID != "d1" || don.Status != models.DonationScheduled {
		t.Fatalf("unexpected donation %+v", don)
	}

	// second selection conflicts
	w = doJSON(t, s, "POST", "/api/v1/requests/req1/select", map[string]string{"donor_id": "d2"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	w = doJSON(t, s, "GET", "/api/v1/matching/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %d", w.Code)
	}
	var snap models.StatsSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.TotalMatches != 2 || snap.SuccessfulMatches != 1 || snap.SuccessRate != 50.0 {
		t.Fatalf("unexpected stats %+v", snap)
	}
}

func TestMatchUnknownRequestIs404(t *testing.T) {
	s := newTestServer()
	if w := doJSON(t, s, "POST", "/api/v1/requests/nope/match", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestMatchEmptyPoolIs200WithMessage(t *testing.T) {
	s := newTestServer()
	doJSON(t, s, "POST", "/api/v1/requests", models.BloodRequest{
		ID: "req1", BloodType: models.ABNeg, Urgency: models.UrgencyRoutine,
	})
	w := doJSON(t, s, "POST", "/api/v1/requests/req1/match", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty pool, got %d", w.Code)
	}
	var res matcher.Result
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Message == "" || len(res.Attempts) != 0 {
		t.Fatalf("expected informational empty result, got %+v", res)
	}
}

func TestCreateRequestRejectsBadBloodType(t *testing.T) {
	s := newTestServer()
	w := doJSON(t, s, "POST", "/api/v1/requests", map[string]string{"blood_type": "Z+"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCompatibilityEndpoint(t *testing.T) {
	s := newTestServer()
	w := doJSON(t, s, "GET", "/api/v1/compatibility/AB+", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("compat: %d", w.Code)
	}
	var out struct {
		Donors []models.BloodType `json:"compatible_donors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Donors) != 8 {
		t.Fatalf("AB+ should accept all 8 groups, got %d", len(out.Donors))
	}
}

func TestDonorsAvailableGaugeTracksDirectory(t *testing.T) {
	s := newTestServer()
	upsert := func(available bool) {
		w := doJSON(t, s, "POST", "/internal/donors", models.Donor{
			ID: "d1", BloodType: models.OPos, Available: available,
			Loc: models.Coord{Lat: 11.03, Lon: 76.96},
		})
		if w.Code != http.StatusNoContent {
			t.Fatalf("donor upsert: %d %s", w.Code, w.Body.String())
		}
	}

	upsert(true)
	upsert(true) // re-upserting the same donor must not double-count
	if got := testutil.ToFloat64(observability.DonorsAvailable); got != 1 {
		t.Fatalf("expected gauge 1 after re-upsert, got %v", got)
	}

	upsert(false)
	if got := testutil.ToFloat64(observability.DonorsAvailable); got != 0 {
		t.Fatalf("expected gauge 0 after availability flip, got %v", got)
	}
}

func TestCancelRequest(t *testing.T) {
	s := newTestServer()
	doJSON(t, s, "POST", "/api/v1/requests", models.BloodRequest{
		ID: "req1", BloodType: models.OPos, Urgency: models.UrgencyRoutine,
	})
	if w := doJSON(t, s, "POST", "/api/v1/requests/req1/cancel", nil); w.Code != http.StatusNoContent {
		t.Fatalf("cancel: %d", w.Code)
	}
	// a cancelled request can no longer be selected
	w := doJSON(t, s, "POST", "/api/v1/requests/req1/select", map[string]string{"donor_id": "d1"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 after cancel, got %d", w.Code)
	}
}
