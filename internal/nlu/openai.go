package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jamesbot/james/internal/models"
)

const classifierSystemPrompt = `You classify short restaurant-chat messages.
Reply with a single JSON object: {"intent": "...", "cuisine": "...", "location": "..."}.
Valid intents are "greetings" (hello or small talk), "getFood" (the user wants
food or a restaurant) and "" (anything else). Set "cuisine" to the cuisine or
dish mentioned, "location" to the place mentioned, or "" when absent.`

// classifierCompleter is the slice of the OpenAI client the fallback
// classifier uses, kept narrow so tests can stub it.
type classifierCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClassifier is a fallback IntentParser backed by a chat model.
// It never fails a turn: any API or decoding problem degrades to an
// unrecognized intent so the engine can recover conversationally.
type OpenAIClassifier struct {
	client classifierCompleter
	model  string
}

// NewOpenAIClassifier creates a classifier using the given API key.
func NewOpenAIClassifier(apiKey string) *OpenAIClassifier {
	return &OpenAIClassifier{
		client: openai.NewClient(apiKey),
		model:  openai.GPT3Dot5Turbo,
	}
}

type classifierVerdict struct {
	Intent   string `json:"intent"`
	Cuisine  string `json:"cuisine"`
	Location string `json:"location"`
}

// Parse classifies the utterance with a single chat completion.
func (c *OpenAIClassifier) Parse(ctx context.Context, utterance string) (Result, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: utterance},
		},
	})
	if err != nil {
		slog.Error("OpenAIClassifier completion failed", "error", err)
		return Result{Intent: models.IntentUnknown}, nil
	}
	if len(resp.Choices) == 0 {
		return Result{Intent: models.IntentUnknown}, nil
	}

	verdict, err := decodeVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		slog.Error("OpenAIClassifier returned undecodable verdict", "error", err)
		return Result{Intent: models.IntentUnknown}, nil
	}

	result := Result{Intent: models.IntentUnknown, Entities: make(map[string][]string)}
	switch verdict.Intent {
	case string(models.IntentGreeting):
		result.Intent = models.IntentGreeting
	case string(models.IntentGetFood):
		result.Intent = models.IntentGetFood
	}
	if verdict.Cuisine != "" {
		result.Entities[models.EntityCuisine] = []string{verdict.Cuisine}
	}
	if verdict.Location != "" {
		result.Entities[models.EntityLocation] = []string{verdict.Location}
	}
	return result, nil
}

// decodeVerdict parses the model output, tolerating prose around the
// JSON object.
func decodeVerdict(content string) (classifierVerdict, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return classifierVerdict{}, fmt.Errorf("no JSON object in %q", content)
	}
	var verdict classifierVerdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &verdict); err != nil {
		return classifierVerdict{}, fmt.Errorf("failed to decode verdict: %w", err)
	}
	return verdict, nil
}
