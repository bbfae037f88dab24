package engine

import (
	"fmt"

	"github.com/jamesbot/james/internal/messenger"
	"github.com/jamesbot/james/internal/recommend"
)

// Bot copy. James has a voice; keep it consistent.
const (
	msgIntro = "Name's James. I give you the best places to eat. At any point of time, " +
		"if you would like to get a new suggestion from me on places to eat, just share " +
		"your location or the location around which you would like to get suggestions from!"
	msgShallWeBegin = "Shall we begin?"
	msgAskLocation  = "Please share your current location or drop the pin in the region " +
		"of where you would like to eat."
	msgHowAboutThis = "How about this?"
	msgOpenOnes     = "Haha right. Here are some open ones."
	msgCheaper      = "Hmm, here are some cheaper alternatives."
	msgAlreadyCheapest = "Hmm, these are already the cheapest restaurants I have for you. " +
		"Maybe I should start the search again?"
	msgBestRated   = "Hmm, got it. I've ranked the best results first now."
	msgWiderSearch = "Okay, casting the net wider!"
	msgMaxRadius   = "That's as wide as I can search! Maybe I should start the search again?"
	msgExhausted   = "That's all I have! Shall I go back to the first recommendation?"
	msgNoResults   = "I couldn't find anything good around there. Shall I widen the search?"
	msgGoodbye     = "No problemo! Just share your location again in the future to restart " +
		"this conversation! Alternatively, you could just type Hi :). A smiley face is " +
		"also preferred."
	msgRandomAttachment = "C'mon, I'm just a bot. I won't understand random attachments..."
	msgSearchTrouble    = "Hmm, I'm having trouble searching right now. Give me a moment " +
		"and try again?"
	msgFallback = "I didn't quite get that. Just share your location, or tell me what " +
		"you're craving!"
	msgDifferentSuggestion = "Or would you like a different suggestion?"
	msgShallIRestart       = "Shall I?"
	msgShallIWiden         = "Shall I?"
)

func msgKnowWhere(cuisine, location string) string {
	return fmt.Sprintf("I know where to get good %s in %s! Follow me!", cuisine, location)
}

// startReplies opens a conversation.
func startReplies() []messenger.QuickReply {
	return []messenger.QuickReply{
		{Title: KeywordLetsGo, Payload: PayloadHungry},
		{Title: KeywordImHungry, Payload: PayloadHungry},
	}
}

// nudgeReplies follows a presented card: always "show me more" and
// "I'm happy", plus at most one refinement matching the nudge.
func nudgeReplies(nudge recommend.Nudge) []messenger.QuickReply {
	replies := []messenger.QuickReply{
		{Title: KeywordShowMe, Payload: PayloadNextChoice},
	}
	switch nudge {
	case recommend.NudgeClosed:
		replies = append(replies, messenger.QuickReply{Title: KeywordClosed, Payload: PayloadRefineOpen})
	case recommend.NudgePrice:
		replies = append(replies, messenger.QuickReply{Title: KeywordTooExpensive, Payload: PayloadRefinePrice})
	case recommend.NudgeRating:
		replies = append(replies, messenger.QuickReply{Title: KeywordBadRating, Payload: PayloadRefineRating})
	}
	return append(replies, messenger.QuickReply{Title: KeywordSatisfied, Payload: PayloadEndConv})
}

// restartReplies offers only a rewind.
func restartReplies() []messenger.QuickReply {
	return []messenger.QuickReply{
		{Title: "Okay.", Payload: PayloadRestart},
	}
}

// widenReplies offers only a wider search.
func widenReplies() []messenger.QuickReply {
	return []messenger.QuickReply{
		{Title: "Widen the search!", Payload: PayloadWiden},
	}
}

// exhaustedReplies offers the restart-or-widen choice.
func exhaustedReplies() []messenger.QuickReply {
	return []messenger.QuickReply{
		{Title: "Okay.", Payload: PayloadRestart},
		{Title: "Widen the search!", Payload: PayloadWiden},
	}
}
