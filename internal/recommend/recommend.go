// Package recommend turns a session's search criteria into a presented
// restaurant candidate. It owns the search/enrich/present pipeline; the
// conversation engine decides what to say about the outcome.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jamesbot/james/internal/metrics"
	"github.com/jamesbot/james/internal/models"
	"github.com/jamesbot/james/internal/search"
	"github.com/jamesbot/james/internal/session"
)

// SearchProvider runs a business search for the given query parameters.
type SearchProvider interface {
	Search(ctx context.Context, params search.QueryParams) ([]models.Candidate, error)
}

// DetailProvider looks up the live open/closed status of one business.
type DetailProvider interface {
	FetchOpenNow(ctx context.Context, businessID string) (models.OpenStatus, error)
}

// Outcome classifies what a recommendation attempt produced.
type Outcome string

const (
	// OutcomeOK means a candidate is ready to present.
	OutcomeOK Outcome = "ok"
	// OutcomeNoResults means the search returned nothing usable.
	OutcomeNoResults Outcome = "no_results"
	// OutcomeExhausted means every qualifying candidate has been shown.
	OutcomeExhausted Outcome = "exhausted"
)

// Nudge is the refinement suggestion to surface alongside a candidate,
// chosen by fixed priority: closed beats price beats rating.
type Nudge string

const (
	NudgeNone   Nudge = ""
	NudgeClosed Nudge = "closed"
	NudgePrice  Nudge = "price"
	NudgeRating Nudge = "rating"
)

// Result is the outcome of one recommendation attempt. Candidate is
// meaningful only when Outcome is OutcomeOK.
type Result struct {
	Outcome   Outcome
	Candidate models.Candidate
	Nudge     Nudge
}

// DefaultSearchTimeout bounds one search round trip.
const DefaultSearchTimeout = 8 * time.Second

// Opts holds configuration for the orchestrator.
type Opts struct {
	SearchTimeout time.Duration

	// DisableShuffle keeps the provider's result order, used by tests
	// that assert on specific candidates.
	DisableShuffle bool
}

// Option configures an Orchestrator.
type Option func(*Opts)

// WithSearchTimeout bounds the search round trip.
func WithSearchTimeout(timeout time.Duration) Option {
	return func(o *Opts) { o.SearchTimeout = timeout }
}

// WithoutShuffle keeps the provider's result order.
func WithoutShuffle() Option {
	return func(o *Opts) { o.DisableShuffle = true }
}

// Orchestrator coordinates search, cursor and enrichment for one
// recommendation attempt. It is stateless; all per-conversation state
// lives on the session.
type Orchestrator struct {
	searcher SearchProvider
	details  DetailProvider
	opts     Opts
}

// NewOrchestrator creates an orchestrator over the given providers.
func NewOrchestrator(searcher SearchProvider, details DetailProvider, options ...Option) *Orchestrator {
	opts := Opts{SearchTimeout: DefaultSearchTimeout}
	for _, opt := range options {
		opt(&opts)
	}
	return &Orchestrator{searcher: searcher, details: details, opts: opts}
}

// Recommend runs a fresh search from the session's current criteria,
// loads the cursor and presents the first qualifying candidate.
func (o *Orchestrator) Recommend(ctx context.Context, sess *session.Session) (Result, error) {
	params := sess.Criteria.ToQueryParams()
	slog.Debug("Orchestrator searching", "session", sess.ID, "term", params.Term,
		"price", params.Price, "open_now", params.OpenNow, "sort_by", params.SortBy, "radius", params.Radius)

	searchCtx, cancel := context.WithTimeout(ctx, o.opts.SearchTimeout)
	defer cancel()
	candidates, err := o.searcher.Search(searchCtx, params)
	if err != nil {
		metrics.RecordCollaboratorError("search")
		slog.Error("Orchestrator search failed", "session", sess.ID, "error", err)
		return Result{}, fmt.Errorf("failed to search for candidates: %w", err)
	}

	sess.Cursor.Load(candidates)
	// Relevance-ordered results get a single permutation so repeat
	// searches do not open with the same place. A rating sort keeps the
	// provider's order, best rated first.
	if !o.opts.DisableShuffle && sess.Criteria.Sort == search.SortRelevance {
		sess.Cursor.Shuffle()
	}
	return o.present(ctx, sess)
}

// Advance moves the session's cursor to the next qualifying candidate
// and presents it. Running out yields OutcomeExhausted, not an error.
func (o *Orchestrator) Advance(ctx context.Context, sess *session.Session) (Result, error) {
	if _, err := sess.Cursor.Advance(); err != nil && !errors.Is(err, models.ErrCursorExhausted) {
		return Result{}, err
	}
	return o.present(ctx, sess)
}

// Restart rewinds the session's cursor to the first qualifying candidate
// and presents it again.
func (o *Orchestrator) Restart(ctx context.Context, sess *session.Session) (Result, error) {
	if _, err := sess.Cursor.Restart(); err != nil && !errors.Is(err, models.ErrCursorExhausted) {
		return Result{}, err
	}
	return o.present(ctx, sess)
}

// present reads the current cursor position, enriches the candidate and
// classifies the outcome.
func (o *Orchestrator) present(ctx context.Context, sess *session.Session) (Result, error) {
	candidate, err := sess.Cursor.Current()
	if errors.Is(err, models.ErrCursorExhausted) {
		// A list that never held a qualifying candidate is a failed
		// search, not an exhausted walk.
		outcome := OutcomeExhausted
		if !anyQualifies(sess.Cursor.Candidates()) {
			outcome = OutcomeNoResults
		}
		metrics.RecordRecommendation(string(outcome))
		return Result{Outcome: outcome}, nil
	}
	if err != nil {
		return Result{}, err
	}

	candidate.OpenNow = o.fetchOpenStatus(ctx, candidate.ID)
	nudge := nudgeFor(candidate, sess.Criteria)

	metrics.RecordRecommendation(string(OutcomeOK))
	slog.Debug("Orchestrator presenting candidate", "session", sess.ID,
		"candidate", candidate.ID, "position", sess.Cursor.Position(), "nudge", nudge)
	return Result{Outcome: OutcomeOK, Candidate: candidate, Nudge: nudge}, nil
}

// fetchOpenStatus enriches a candidate with its live open status,
// degrading to unknown when the lookup fails. A missing status never
// blocks a recommendation.
func (o *Orchestrator) fetchOpenStatus(ctx context.Context, businessID string) models.OpenStatus {
	detailCtx, cancel := context.WithTimeout(ctx, o.opts.SearchTimeout)
	defer cancel()
	status, err := o.details.FetchOpenNow(detailCtx, businessID)
	if err != nil {
		metrics.RecordCollaboratorError("details")
		slog.Error("Orchestrator open-status lookup failed", "candidate", businessID, "error", err)
		return models.OpenStatusUnknown
	}
	return status
}

func anyQualifies(candidates []models.Candidate) bool {
	for _, c := range candidates {
		if search.Qualifies(c) {
			return true
		}
	}
	return false
}

// nudgeFor picks the refinement suggestion for a candidate. At most one
// nudge is surfaced per presentation, by fixed priority.
func nudgeFor(candidate models.Candidate, criteria *search.Criteria) Nudge {
	if candidate.OpenNow == models.OpenStatusClosed && !criteria.OpenOnly {
		return NudgeClosed
	}
	if candidate.PriceTier >= criteria.PriceCeiling && candidate.PriceTier > models.PriceTierUnknown {
		return NudgePrice
	}
	if candidate.Rating > 0 && candidate.Rating <= criteria.RatingFloor {
		return NudgeRating
	}
	return NudgeNone
}
