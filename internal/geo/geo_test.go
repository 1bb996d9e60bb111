package geo

import (
	"math"
	"testing"

	"github.com/example/blood-matching/internal/models"
)

func TestDistanceKmZero(t *testing.T) {
	p := models.Coord{Lat: 11.0168, Lon: 76.9558}
	if d := DistanceKm(p, p); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceKmKnown(t *testing.T) {
	// hospital in Coimbatore to a donor a couple of km away
	h := models.Coord{Lat: 11.0168, Lon: 76.9558}
	d := models.Coord{Lat: 11.03, Lon: 76.96}
	got := DistanceKm(h, d)
	if got < 1.0 || got > 3.0 {
		t.Fatalf("expected 1-3 km, got %f", got)
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := models.Coord{Lat: 12.9716, Lon: 77.5946}
	b := models.Coord{Lat: 13.0827, Lon: 80.2707}
	if math.Abs(DistanceKm(a, b)-DistanceKm(b, a)) > 1e-9 {
		t.Fatal("distance not symmetric")
	}
	// Bangalore to Chennai is roughly 290 km great-circle
	if d := DistanceKm(a, b); d < 250 || d > 330 {
		t.Fatalf("implausible distance %f", d)
	}
}
