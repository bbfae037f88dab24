package search

import (
	"testing"

	"github.com/jamesbot/james/internal/models"
)

func TestNewCriteriaDefaults(t *testing.T) {
	c := NewCriteria()
	if c.PriceCeiling != models.MaxPriceTier {
		t.Errorf("expected default price ceiling %d, got %d", models.MaxPriceTier, c.PriceCeiling)
	}
	if c.OpenOnly {
		t.Error("expected OpenOnly to default to false")
	}
	if c.RatingFloor != DefaultRatingFloor {
		t.Errorf("expected rating floor %v, got %v", DefaultRatingFloor, c.RatingFloor)
	}
	if c.Sort != SortRelevance {
		t.Errorf("expected default sort %q, got %q", SortRelevance, c.Sort)
	}
	if c.RadiusMeters != DefaultRadiusMeters {
		t.Errorf("expected default radius %d, got %d", DefaultRadiusMeters, c.RadiusMeters)
	}
}

func TestPriceFilter(t *testing.T) {
	cases := []struct {
		ceiling  int
		expected string
	}{
		{4, "1,2,3,4"},
		{3, "1,2,3"},
		{2, "1,2"},
		{1, "1"},
		{0, "1"},       // clamped to floor
		{9, "1,2,3,4"}, // clamped to ceiling
	}
	for _, c := range cases {
		if got := PriceFilter(c.ceiling); got != c.expected {
			t.Errorf("PriceFilter(%d) = %q, want %q", c.ceiling, got, c.expected)
		}
	}
}

func TestLowerPriceCeilingIdempotentAtFloor(t *testing.T) {
	c := NewCriteria()
	for i := 0; i < 3; i++ {
		if !c.LowerPriceCeiling() {
			t.Fatalf("expected decrement %d to apply", i+1)
		}
	}
	if c.PriceCeiling != 1 {
		t.Fatalf("expected ceiling 1, got %d", c.PriceCeiling)
	}
	// Repeated calls at the floor must keep reporting not-applied.
	for i := 0; i < 5; i++ {
		if c.LowerPriceCeiling() {
			t.Error("expected applied=false at price floor")
		}
		if c.PriceCeiling != 1 {
			t.Errorf("ceiling moved below floor: %d", c.PriceCeiling)
		}
	}
}

func TestWidenRadiusStrictlyIncreases(t *testing.T) {
	c := NewCriteria()
	prev := c.RadiusMeters
	for i := 0; i < 12; i++ {
		c.WidenRadius(1.5)
		if c.RadiusMeters < prev {
			t.Fatalf("radius decreased from %d to %d", prev, c.RadiusMeters)
		}
		if c.RadiusMeters == prev && prev < MaxRadiusMeters {
			t.Fatalf("radius did not increase below cap: %d", c.RadiusMeters)
		}
		prev = c.RadiusMeters
	}
	if c.RadiusMeters > MaxRadiusMeters {
		t.Errorf("radius exceeded provider cap: %d", c.RadiusMeters)
	}

	c = NewCriteria()
	c.WidenRadius(0) // bogus multiplier still widens
	if c.RadiusMeters <= DefaultRadiusMeters {
		t.Errorf("expected widened radius, got %d", c.RadiusMeters)
	}
}

func TestWidenRadiusReportsCap(t *testing.T) {
	c := NewCriteria()
	if !c.WidenRadius(1.5) {
		t.Error("expected applied=true below the cap")
	}

	c.RadiusMeters = MaxRadiusMeters
	if c.WidenRadius(1.5) {
		t.Error("expected applied=false at the cap")
	}
	if c.RadiusMeters != MaxRadiusMeters {
		t.Errorf("radius moved past the cap: %d", c.RadiusMeters)
	}
}

func TestToQueryParams(t *testing.T) {
	c := NewCriteria()
	c.Cuisine = "thai"
	c.Coords = &models.Coordinates{Latitude: 1.29, Longitude: 103.85}

	p := c.ToQueryParams()
	if p.Term != "thai food" {
		t.Errorf("expected term %q, got %q", "thai food", p.Term)
	}
	if !p.HasCoords || p.Latitude != 1.29 || p.Longitude != 103.85 {
		t.Errorf("coordinates not carried: %+v", p)
	}
	if p.Price != "1,2,3,4" {
		t.Errorf("expected price %q, got %q", "1,2,3,4", p.Price)
	}
	if p.OpenNow {
		t.Error("expected open_now false by default")
	}
	if p.SortBy != string(SortRelevance) {
		t.Errorf("expected sort %q, got %q", SortRelevance, p.SortBy)
	}
	if p.Radius != DefaultRadiusMeters {
		t.Errorf("expected radius %d, got %d", DefaultRadiusMeters, p.Radius)
	}
	if p.Limit != DefaultResultLimit {
		t.Errorf("expected limit %d, got %d", DefaultResultLimit, p.Limit)
	}

	// No cuisine: term is just "food".
	c.Cuisine = ""
	if p := c.ToQueryParams(); p.Term != "food" {
		t.Errorf("expected bare term %q, got %q", "food", p.Term)
	}

	// Refinements show up deterministically.
	c.RequireOpen()
	c.RaiseRatingBar()
	c.LowerPriceCeiling()
	p = c.ToQueryParams()
	if !p.OpenNow || p.SortBy != string(SortRating) || p.Price != "1,2,3" {
		t.Errorf("refined params wrong: %+v", p)
	}
}

func TestReset(t *testing.T) {
	c := NewCriteria()
	c.Cuisine = "ramen"
	c.Location = "Singapore"
	c.RequireOpen()
	c.RaiseRatingBar()
	c.LowerPriceCeiling()
	c.WidenRadius(2)

	c.Reset()
	if c.PriceCeiling != models.MaxPriceTier || c.OpenOnly || c.Sort != SortRelevance ||
		c.RadiusMeters != DefaultRadiusMeters || c.Cuisine != "" || c.Location != "" || c.Coords != nil {
		t.Errorf("reset left residue: %+v", c)
	}
}
