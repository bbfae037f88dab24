// Package search holds the per-session search state: the mutable filter
// criteria refined turn by turn, and the result cursor that walks the
// candidate list from the last search.
package search

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jamesbot/james/internal/models"
)

// SortMode selects the ordering of search results.
type SortMode string

const (
	// SortRelevance is the provider's default best-match ordering.
	SortRelevance SortMode = "best_match"
	// SortRating orders results best-rated first.
	SortRating SortMode = "rating"
)

// Criteria defaults.
const (
	DefaultPriceCeiling = models.MaxPriceTier
	DefaultRatingFloor  = 3.0
	DefaultRadiusMeters = 2000
	DefaultResultLimit  = 30
	// MaxRadiusMeters is the provider's hard cap on search radius.
	MaxRadiusMeters = 40000
)

// Criteria is the mutable state of the current search filters for one
// session. Instances are exclusively owned by their session and mutated
// only by the engine handling that session's current turn.
type Criteria struct {
	PriceCeiling int
	OpenOnly     bool
	RatingFloor  float64
	Sort         SortMode
	RadiusMeters int
	Offset       int

	Cuisine  string
	Location string
	Coords   *models.Coordinates
}

// NewCriteria returns criteria at conversation-start defaults.
func NewCriteria() *Criteria {
	c := &Criteria{}
	c.Reset()
	return c
}

// QueryParams is the deterministic search request derived from criteria.
type QueryParams struct {
	Term      string
	Location  string
	Latitude  float64
	Longitude float64
	HasCoords bool
	Price     string // comma-joined tiers "1,2,..,ceiling"
	OpenNow   bool
	SortBy    string
	Radius    int
	Offset    int
	Limit     int
}

// ToQueryParams derives the search request parameters from current state.
// The derivation is deterministic: equal criteria always produce equal
// parameters.
func (c *Criteria) ToQueryParams() QueryParams {
	p := QueryParams{
		Term:     strings.TrimSpace(c.Cuisine + " food"),
		Location: c.Location,
		Price:    PriceFilter(c.PriceCeiling),
		OpenNow:  c.OpenOnly,
		SortBy:   string(c.Sort),
		Radius:   c.RadiusMeters,
		Offset:   c.Offset,
		Limit:    DefaultResultLimit,
	}
	if c.Coords != nil {
		p.Latitude = c.Coords.Latitude
		p.Longitude = c.Coords.Longitude
		p.HasCoords = true
	}
	return p
}

// PriceFilter renders a price ceiling as the comma-joined list of all
// tiers up to and including it, e.g. 3 -> "1,2,3".
func PriceFilter(ceiling int) string {
	if ceiling < models.MinPriceTier {
		ceiling = models.MinPriceTier
	}
	if ceiling > models.MaxPriceTier {
		ceiling = models.MaxPriceTier
	}
	tiers := make([]string, 0, ceiling)
	for t := models.MinPriceTier; t <= ceiling; t++ {
		tiers = append(tiers, fmt.Sprintf("%d", t))
	}
	return strings.Join(tiers, ",")
}

// LowerPriceCeiling decrements the price ceiling by one tier. It reports
// false when the ceiling is already at the cheapest tier, in which case
// the ceiling is unchanged and the caller must surface "already cheapest".
func (c *Criteria) LowerPriceCeiling() bool {
	if c.PriceCeiling <= models.MinPriceTier {
		slog.Debug("Criteria LowerPriceCeiling already at floor", "ceiling", c.PriceCeiling)
		return false
	}
	c.PriceCeiling--
	slog.Debug("Criteria LowerPriceCeiling applied", "ceiling", c.PriceCeiling)
	return true
}

// RequireOpen restricts subsequent searches to businesses open now.
func (c *Criteria) RequireOpen() {
	c.OpenOnly = true
}

// RaiseRatingBar switches result ordering to rating-first. The preference
// persists across subsequent searches until Reset.
func (c *Criteria) RaiseRatingBar() {
	c.Sort = SortRating
}

// WidenRadius strictly increases the search radius by the given
// multiplier. The radius never decreases within one conversation. It
// reports false when the radius is already at the provider's cap, in
// which case the radius is unchanged and the caller must surface "as
// wide as I can search".
func (c *Criteria) WidenRadius(multiplier float64) bool {
	if multiplier <= 1 {
		multiplier = 1.5
	}
	widened := int(float64(c.RadiusMeters) * multiplier)
	if widened <= c.RadiusMeters {
		widened = c.RadiusMeters + 1
	}
	if widened > MaxRadiusMeters {
		widened = MaxRadiusMeters
	}
	if widened <= c.RadiusMeters {
		slog.Debug("Criteria WidenRadius already at cap", "radius_meters", c.RadiusMeters)
		return false
	}
	c.RadiusMeters = widened
	slog.Debug("Criteria WidenRadius applied", "radius_meters", c.RadiusMeters)
	return true
}

// Reset returns all fields to conversation-start defaults. Called when a
// conversation ends.
func (c *Criteria) Reset() {
	c.PriceCeiling = DefaultPriceCeiling
	c.OpenOnly = false
	c.RatingFloor = DefaultRatingFloor
	c.Sort = SortRelevance
	c.RadiusMeters = DefaultRadiusMeters
	c.Offset = 0
	c.Cuisine = ""
	c.Location = ""
	c.Coords = nil
}

// HasPlace reports whether the criteria carry enough location information
// to issue a search.
func (c *Criteria) HasPlace() bool {
	return c.Coords != nil || c.Location != ""
}
