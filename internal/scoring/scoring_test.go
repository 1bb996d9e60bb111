package scoring

import (
	"testing"
	"time"

	"github.com/example/blood-matching/internal/models"
)

func testRequest(u models.Urgency) *models.BloodRequest {
	return &models.BloodRequest{
		ID:         "req1",
		BloodType:  models.BPos,
		Urgency:    u,
		Hospital:   models.Coord{Lat: 11.0168, Lon: 76.9558},
		RequiredBy: time.Now().Add(24 * time.Hour),
	}
}

func rel(v float64) *float64 { return &v }

func testDonor() models.Donor {
	return models.Donor{
		ID:          "d1",
		BloodType:   models.BPos,
		Available:   true,
		Reliability: rel(0.9),
		Loc:         models.Coord{Lat: 11.03, Lon: 76.96},
	}
}

func TestComposeCriticalNeighborhood(t *testing.T) {
	b := Compose(testRequest(models.UrgencyCritical), testDonor())
	if b.Compatibility != 1.0 {
		t.Fatalf("compatibility = %f, want 1.0", b.Compatibility)
	}
	if b.DistanceKm < 1.0 || b.DistanceKm > 3.0 {
		t.Fatalf("distanceKm = %f, want 1-3", b.DistanceKm)
	}
	if b.DistanceScore < 0.93 || b.DistanceScore > 0.99 {
		t.Fatalf("distanceScore = %f, want ~0.94-0.96", b.DistanceScore)
	}
	if b.UrgencyMultiplier != 1.5 {
		t.Fatalf("multiplier = %f, want 1.5", b.UrgencyMultiplier)
	}
	// (40 + ~23.75 + 18 + 15) * 1.5 ≈ 146
	if b.Total < 140 || b.Total < 0 || b.Total > 150 {
		t.Fatalf("total = %f, want ~146", b.Total)
	}
}

func TestComposeMonotonicInDistance(t *testing.T) {
	req := testRequest(models.UrgencyRoutine)
	near := testDonor()
	far := testDonor()
	far.Loc = models.Coord{Lat: 11.4, Lon: 77.2}
	bn, bf := Compose(req, near), Compose(req, far)
	if bf.Total > bn.Total {
		t.Fatalf("score should not increase with distance: near=%f far=%f", bn.Total, bf.Total)
	}
	if bf.DistanceKm <= bn.DistanceKm {
		t.Fatalf("expected far donor to be farther: %f vs %f", bf.DistanceKm, bn.DistanceKm)
	}
}

func TestComposeMonotonicInReliability(t *testing.T) {
	req := testRequest(models.UrgencyRoutine)
	lo := testDonor()
	lo.Reliability = rel(0.4)
	hi := testDonor()
	hi.Reliability = rel(0.95)
	if Compose(req, lo).Total > Compose(req, hi).Total {
		t.Fatal("score should not decrease with reliability")
	}
	// zero is the bottom of the range, not a gap in history
	zero := testDonor()
	zero.Reliability = rel(0)
	if Compose(req, zero).Total > Compose(req, lo).Total {
		t.Fatal("zero-reliability donor must not outscore a mid-reliability one")
	}
}

func TestComposeUrgencyScaling(t *testing.T) {
	d := testDonor()
	routine := Compose(testRequest(models.UrgencyRoutine), d)
	urgent := Compose(testRequest(models.UrgencyUrgent), d)
	critical := Compose(testRequest(models.UrgencyCritical), d)
	base := routine.Total
	approx := func(got, want float64) bool { return got > want-0.05 && got < want+0.05 }
	if !approx(urgent.Total, base*1.2) {
		t.Fatalf("urgent = %f, want %f", urgent.Total, base*1.2)
	}
	if !approx(critical.Total, base*1.5) {
		t.Fatalf("critical = %f, want %f", critical.Total, base*1.5)
	}
}

func TestUrgencyMultiplierFallback(t *testing.T) {
	if m := UrgencyMultiplier(models.Urgency("bogus")); m != 1.0 {
		t.Fatalf("unknown urgency multiplier = %f, want 1.0", m)
	}
}

func TestTravelTimeFloor(t *testing.T) {
	req := testRequest(models.UrgencyRoutine)
	d := testDonor()
	d.Loc = req.Hospital // zero distance
	b := Compose(req, d)
	if b.TravelTimeMin != 15 {
		t.Fatalf("travel time = %d, want floor 15", b.TravelTimeMin)
	}
	d.Loc = models.Coord{Lat: 11.4, Lon: 77.2}
	b = Compose(req, d)
	if b.TravelTimeMin < 15 {
		t.Fatalf("travel time below floor: %d", b.TravelTimeMin)
	}
	if want := int(b.DistanceKm*2.5 + 0.5); b.TravelTimeMin < want-1 || b.TravelTimeMin > want+1 {
		t.Fatalf("travel time = %d, want ~%d", b.TravelTimeMin, want)
	}
}

func TestComposeDefaultsReliability(t *testing.T) {
	d := testDonor()
	d.Reliability = nil
	if b := Compose(testRequest(models.UrgencyRoutine), d); b.Reliability != 1.0 {
		t.Fatalf("unset reliability should default to 1.0, got %f", b.Reliability)
	}
	d.Reliability = rel(0)
	if b := Compose(testRequest(models.UrgencyRoutine), d); b.Reliability != 0 {
		t.Fatalf("recorded 0.0 reliability must score 0.0, got %f", b.Reliability)
	}
}

func TestComposeBeyondFiftyKm(t *testing.T) {
	req := testRequest(models.UrgencyRoutine)
	d := testDonor()
	d.Loc = models.Coord{Lat: 12.9716, Lon: 77.5946} // ~230 km away
	b := Compose(req, d)
	if b.DistanceScore != 0 {
		t.Fatalf("distance score beyond 50km = %f, want 0", b.DistanceScore)
	}
	if b.Total < 0 {
		t.Fatalf("total must stay non-negative, got %f", b.Total)
	}
}
