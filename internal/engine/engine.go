// Package engine implements the conversation state machine: it
// interprets inbound Messenger events against the per-user session and
// decides what to ask, recommend or refine next.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/jamesbot/james/internal/messenger"
	"github.com/jamesbot/james/internal/metrics"
	"github.com/jamesbot/james/internal/models"
	"github.com/jamesbot/james/internal/nlu"
	"github.com/jamesbot/james/internal/recommend"
	"github.com/jamesbot/james/internal/session"
	"github.com/jamesbot/james/internal/store"
)

// Conversation states, carried in the session context under
// session.KeyState.
const (
	StateAwaitingLocation = "AWAITING_LOCATION"
	StateReadyToRecommend = "READY_TO_RECOMMEND"
	StatePresentingResult = "PRESENTING_RESULT"
	StateExhausted        = "EXHAUSTED"
	StateDone             = "DONE"
)

// Fixed keywords the quick replies feed back as message text.
const (
	KeywordLetsGo       = "Let's go!"
	KeywordImHungry     = "I'm hungry!"
	KeywordShowMe       = "Okay, show me."
	KeywordClosed       = "Um.. it's closed..."
	KeywordTooExpensive = "It's too expensive!"
	KeywordBadRating    = "Kinda badly rated no..."
	KeywordSatisfied    = "This is good! Thks!"
)

// Payloads delivered by postback buttons and quick-reply taps.
const (
	PayloadStartConvo   = "startConvo"
	PayloadRestart      = "restartRecommend"
	PayloadWiden        = "widenSearch"
	PayloadHungry       = "I_M_HUNGRY"
	PayloadNextChoice   = "nextChoice"
	PayloadRefineOpen   = "refineOpen"
	PayloadRefinePrice  = "refinePrice"
	PayloadRefineRating = "refineRating"
	PayloadEndConv      = "endConv"
)

// Recommender is the slice of the orchestrator the engine drives.
type Recommender interface {
	Recommend(ctx context.Context, sess *session.Session) (recommend.Result, error)
	Advance(ctx context.Context, sess *session.Session) (recommend.Result, error)
	Restart(ctx context.Context, sess *session.Session) (recommend.Result, error)
}

type intentHandler func(ctx context.Context, sess *session.Session, parsed nlu.Result)

// Engine drives one conversation turn per inbound event. All state it
// mutates lives on the session; the engine itself is safe for
// concurrent use across users.
type Engine struct {
	sessions *session.Store
	orch     Recommender
	sender   messenger.Sender
	parser   nlu.IntentParser
	profiles store.Store

	handlers map[models.Intent]intentHandler
}

// New creates an engine over its collaborators.
func New(sessions *session.Store, orch Recommender, sender messenger.Sender, parser nlu.IntentParser, profiles store.Store) *Engine {
	e := &Engine{
		sessions: sessions,
		orch:     orch,
		sender:   sender,
		parser:   parser,
		profiles: profiles,
	}
	e.handlers = map[models.Intent]intentHandler{
		models.IntentGreeting: e.handleGreeting,
		models.IntentGetFood:  e.handleGetFood,
	}
	return e
}

// HandleEvent enqueues one inbound event on its user's turn queue.
// Turns for the same user run strictly in arrival order, one at a
// time; turns for different users run concurrently. The call returns
// as soon as the turn is queued so the webhook can acknowledge fast.
func (e *Engine) HandleEvent(ctx context.Context, event models.Event) {
	sess := e.sessions.Resolve(event.SenderID)
	metrics.ActiveSessions.Set(float64(e.sessions.Len()))

	// The webhook context dies when the 200 goes out; the turn must not.
	turnCtx := context.WithoutCancel(ctx)
	sess.Do(func() {
		start := time.Now()
		e.handleTurn(turnCtx, sess, event)
		metrics.TurnDuration.Observe(time.Since(start).Seconds())
	})
}

func (e *Engine) handleTurn(ctx context.Context, sess *session.Session, event models.Event) {
	e.upsertProfile(event.SenderID)

	switch {
	case event.Payload != "":
		metrics.RecordEvent("postback")
		e.handlePayload(ctx, sess, event.Payload)
	case event.Location != nil:
		metrics.RecordEvent("location")
		e.handleLocation(ctx, sess, *event.Location)
	case event.HasAttachment:
		metrics.RecordEvent("attachment")
		e.send(ctx, sess, msgRandomAttachment)
	case event.Text != "":
		metrics.RecordEvent("text")
		e.handleText(ctx, sess, event.Text)
	default:
		metrics.RecordEvent("unhandled")
		slog.Debug("Engine ignoring empty event", "userID", event.SenderID)
	}
}

// upsertProfile records the user in the profile store. Persistence is
// best effort; a failed upsert never stalls the turn.
func (e *Engine) upsertProfile(fbid string) {
	wasNew, err := e.profiles.UpsertUser(fbid, "")
	if err != nil {
		metrics.RecordCollaboratorError("profiles")
		slog.Error("Engine failed to upsert user profile", "userID", fbid, "error", err)
		return
	}
	if wasNew {
		slog.Debug("Engine registered new user", "userID", fbid)
	}
}

func (e *Engine) handleText(ctx context.Context, sess *session.Session, text string) {
	switch text {
	case KeywordLetsGo, KeywordImHungry:
		e.askForLocation(ctx, sess)
	case KeywordShowMe:
		e.nextSuggestion(ctx, sess)
	case KeywordClosed:
		sess.Criteria.RequireOpen()
		e.research(ctx, sess, msgOpenOnes)
	case KeywordTooExpensive:
		e.lowerPrice(ctx, sess)
	case KeywordBadRating:
		sess.Criteria.RaiseRatingBar()
		e.research(ctx, sess, msgBestRated)
	case KeywordSatisfied:
		e.endConversation(ctx, sess)
	default:
		e.routeToParser(ctx, sess, text)
	}
}

func (e *Engine) handlePayload(ctx context.Context, sess *session.Session, payload string) {
	switch payload {
	case PayloadStartConvo:
		e.send(ctx, sess, msgIntro)
		e.sendQuickReplies(ctx, sess, msgShallWeBegin, startReplies())
	case PayloadHungry:
		e.askForLocation(ctx, sess)
	case PayloadRestart:
		e.restartSuggestions(ctx, sess)
	case PayloadWiden:
		e.widenSearch(ctx, sess)
	case PayloadNextChoice:
		e.nextSuggestion(ctx, sess)
	case PayloadRefineOpen:
		sess.Criteria.RequireOpen()
		e.research(ctx, sess, msgOpenOnes)
	case PayloadRefinePrice:
		e.lowerPrice(ctx, sess)
	case PayloadRefineRating:
		sess.Criteria.RaiseRatingBar()
		e.research(ctx, sess, msgBestRated)
	case PayloadEndConv:
		e.endConversation(ctx, sess)
	default:
		slog.Debug("Engine ignoring unknown payload", "userID", sess.UserID, "payload", payload)
	}
}

// handleLocation stores the shared coordinates and kicks off a search.
// A location share always restarts the search from the user's new spot,
// whatever state the conversation was in.
func (e *Engine) handleLocation(ctx context.Context, sess *session.Session, coords models.Coordinates) {
	sess.Criteria.Coords = &coords
	sess.Criteria.Location = ""
	sess.Set(session.KeyLocation, "coordinates", session.KeyMissingLocation)
	sess.Set(session.KeyState, StateReadyToRecommend)
	e.research(ctx, sess, msgHowAboutThis)
}

// askForLocation prompts for a location share and waits.
func (e *Engine) askForLocation(ctx context.Context, sess *session.Session) {
	sess.Set(session.KeyMissingLocation, "true", session.KeyLocation)
	sess.Set(session.KeyState, StateAwaitingLocation)
	e.sendQuickReplies(ctx, sess, msgAskLocation, []messenger.QuickReply{messenger.LocationRequest()})
}

// nextSuggestion advances the cursor and presents whatever comes up.
func (e *Engine) nextSuggestion(ctx context.Context, sess *session.Session) {
	result, err := e.orch.Advance(ctx, sess)
	if err != nil {
		e.reportSearchTrouble(ctx, sess, err)
		return
	}
	if result.Outcome == recommend.OutcomeOK {
		e.send(ctx, sess, msgHowAboutThis)
	}
	e.presentOutcome(ctx, sess, result)
}

// restartSuggestions rewinds to the first recommendation after the
// user accepted the restart offer.
func (e *Engine) restartSuggestions(ctx context.Context, sess *session.Session) {
	result, err := e.orch.Restart(ctx, sess)
	if err != nil {
		e.reportSearchTrouble(ctx, sess, err)
		return
	}
	if result.Outcome == recommend.OutcomeOK {
		e.send(ctx, sess, msgHowAboutThis)
	}
	e.presentOutcome(ctx, sess, result)
}

// widenSearch grows the radius and searches again. At the provider's
// radius cap there is nothing further out to find, so offer a restart
// instead of re-running an identical search.
func (e *Engine) widenSearch(ctx context.Context, sess *session.Session) {
	if !sess.Criteria.WidenRadius(1.5) {
		e.send(ctx, sess, msgMaxRadius)
		e.sendQuickReplies(ctx, sess, msgShallIRestart, restartReplies())
		return
	}
	sess.Set(session.KeyState, StateReadyToRecommend)
	e.research(ctx, sess, msgWiderSearch)
}

// lowerPrice applies the "too expensive" refinement. At the cheapest
// tier there is nothing to lower, so the engine offers a restart
// instead of re-searching.
func (e *Engine) lowerPrice(ctx context.Context, sess *session.Session) {
	if !sess.Criteria.LowerPriceCeiling() {
		e.send(ctx, sess, msgAlreadyCheapest)
		e.sendQuickReplies(ctx, sess, msgShallIRestart, restartReplies())
		return
	}
	e.research(ctx, sess, msgCheaper)
}

// endConversation records the accepted place, says goodbye and resets
// everything for the next time the user shows up.
func (e *Engine) endConversation(ctx context.Context, sess *session.Session) {
	if candidate, err := sess.Cursor.Current(); err == nil {
		if err := e.profiles.RecordSavedResult(sess.UserID, candidate.Name, candidate.CategoryLine()); err != nil {
			metrics.RecordCollaboratorError("profiles")
			slog.Error("Engine failed to record saved result", "userID", sess.UserID, "error", err)
		}
	}
	sess.Set(session.KeyState, StateDone)
	e.send(ctx, sess, msgGoodbye)
	sess.ResetContext()
	e.sessions.Clear(sess.UserID)
	metrics.ActiveSessions.Set(float64(e.sessions.Len()))
}

// routeToParser hands free-form text to the intent parser and
// dispatches the classified intent through the handler map.
func (e *Engine) routeToParser(ctx context.Context, sess *session.Session, text string) {
	parsed, err := e.parser.Parse(ctx, text)
	if err != nil {
		metrics.RecordCollaboratorError("nlu")
		slog.Error("Engine intent parse failed", "userID", sess.UserID, "error", err)
		e.send(ctx, sess, msgFallback)
		return
	}
	handler, ok := e.handlers[parsed.Intent]
	if !ok {
		slog.Debug("Engine has no handler for intent", "userID", sess.UserID, "intent", parsed.Intent)
		e.send(ctx, sess, msgFallback)
		return
	}
	handler(ctx, sess, parsed)
}

func (e *Engine) handleGreeting(ctx context.Context, sess *session.Session, _ nlu.Result) {
	e.sendQuickReplies(ctx, sess, msgShallWeBegin, startReplies())
}

// handleGetFood merges the utterance's entities into the session and
// searches once both a place and enough context are known.
func (e *Engine) handleGetFood(ctx context.Context, sess *session.Session, parsed nlu.Result) {
	if cuisine := nlu.FirstEntityValue(parsed.Entities, models.EntityCuisine); cuisine != "" {
		sess.Criteria.Cuisine = cuisine
		sess.Set(session.KeyCuisine, cuisine)
	}
	if location := nlu.FirstEntityValue(parsed.Entities, models.EntityLocation); location != "" {
		sess.Criteria.Location = location
		sess.Criteria.Coords = nil
		sess.Set(session.KeyLocation, location, session.KeyMissingLocation)
	}

	if !sess.Criteria.HasPlace() {
		e.askForLocation(ctx, sess)
		return
	}

	sess.Set(session.KeyState, StateReadyToRecommend)
	announcement := msgHowAboutThis
	if sess.Criteria.Cuisine != "" && sess.Criteria.Location != "" {
		announcement = msgKnowWhere(sess.Criteria.Cuisine, sess.Criteria.Location)
	}
	e.research(ctx, sess, announcement)
}

// research announces, runs a fresh search from the current criteria
// and presents the outcome.
func (e *Engine) research(ctx context.Context, sess *session.Session, announcement string) {
	e.send(ctx, sess, announcement)
	e.typing(ctx, sess, true)
	defer e.typing(ctx, sess, false)

	result, err := e.orch.Recommend(ctx, sess)
	if err != nil {
		e.reportSearchTrouble(ctx, sess, err)
		return
	}
	e.presentOutcome(ctx, sess, result)
}

// presentOutcome turns an orchestrator result into outbound messages
// and the next conversation state.
func (e *Engine) presentOutcome(ctx context.Context, sess *session.Session, result recommend.Result) {
	switch result.Outcome {
	case recommend.OutcomeOK:
		if err := e.sender.SendCard(ctx, sess.UserID, result.Candidate); err != nil {
			metrics.RecordCollaboratorError("messenger")
			slog.Error("Engine failed to send card", "userID", sess.UserID, "error", err)
		}
		sess.Set(session.KeyState, StatePresentingResult)
		sess.Set(session.KeyRecommendGiven, "true")
		e.sendQuickReplies(ctx, sess, msgDifferentSuggestion, nudgeReplies(result.Nudge))

	case recommend.OutcomeNoResults:
		sess.Set(session.KeyState, StateExhausted)
		e.send(ctx, sess, msgNoResults)
		e.sendQuickReplies(ctx, sess, msgShallIWiden, widenReplies())

	case recommend.OutcomeExhausted:
		sess.Set(session.KeyState, StateExhausted)
		e.send(ctx, sess, msgExhausted)
		e.sendQuickReplies(ctx, sess, msgShallIRestart, exhaustedReplies())
	}
}

// reportSearchTrouble surfaces a collaborator failure without touching
// criteria or context, so the next inbound event can simply retry.
func (e *Engine) reportSearchTrouble(ctx context.Context, sess *session.Session, err error) {
	slog.Error("Engine search failed", "userID", sess.UserID, "error", err)
	e.send(ctx, sess, msgSearchTrouble)
}

func (e *Engine) send(ctx context.Context, sess *session.Session, text string) {
	if err := e.sender.SendText(ctx, sess.UserID, text); err != nil {
		metrics.RecordCollaboratorError("messenger")
		slog.Error("Engine failed to send text", "userID", sess.UserID, "error", err)
	}
}

func (e *Engine) sendQuickReplies(ctx context.Context, sess *session.Session, text string, replies []messenger.QuickReply) {
	if err := e.sender.SendQuickReplies(ctx, sess.UserID, text, replies); err != nil {
		metrics.RecordCollaboratorError("messenger")
		slog.Error("Engine failed to send quick replies", "userID", sess.UserID, "error", err)
	}
}

func (e *Engine) typing(ctx context.Context, sess *session.Session, on bool) {
	if err := e.sender.SendTyping(ctx, sess.UserID, on); err != nil {
		slog.Debug("Engine typing indicator failed", "userID", sess.UserID, "error", err)
	}
}
