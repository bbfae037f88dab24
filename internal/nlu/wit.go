package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jamesbot/james/internal/models"
)

// DefaultWitBaseURL is the Wit.ai message endpoint root.
const DefaultWitBaseURL = "https://api.wit.ai"

// witAPIVersion pins the Wit.ai response shape.
const witAPIVersion = "20240304"

// minIntentConfidence is the floor below which a classified intent is
// discarded and the utterance is treated as unrecognized.
const minIntentConfidence = 0.6

// WitOpts holds configuration for the Wit.ai parser.
type WitOpts struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

// WitOption configures a WitClient.
type WitOption func(*WitOpts)

// WithWitToken sets the server access token sent as a bearer credential.
func WithWitToken(token string) WitOption {
	return func(o *WitOpts) { o.Token = token }
}

// WithWitBaseURL overrides the API root, mainly for tests.
func WithWitBaseURL(baseURL string) WitOption {
	return func(o *WitOpts) { o.BaseURL = baseURL }
}

// WithWitHTTPClient overrides the HTTP client used for requests.
func WithWitHTTPClient(client *http.Client) WitOption {
	return func(o *WitOpts) { o.HTTPClient = client }
}

// WitClient parses utterances with the Wit.ai /message endpoint.
type WitClient struct {
	opts WitOpts
}

// NewWitClient creates a Wit.ai-backed parser.
func NewWitClient(options ...WitOption) *WitClient {
	opts := WitOpts{
		BaseURL:    DefaultWitBaseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(&opts)
	}
	return &WitClient{opts: opts}
}

type witResponse struct {
	Text    string `json:"text"`
	Intents []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"intents"`
	Entities map[string][]witEntity `json:"entities"`
}

type witEntity struct {
	Value json.RawMessage `json:"value"`
}

// Parse submits the utterance to Wit.ai and maps the response into a
// Result. Entity keys are normalized to their bare names so that both
// built-in entities ("wit$location:location") and custom ones
// ("cuisine:cuisine") surface under the same names.
func (c *WitClient) Parse(ctx context.Context, utterance string) (Result, error) {
	endpoint := fmt.Sprintf("%s/message?v=%s&q=%s",
		strings.TrimRight(c.opts.BaseURL, "/"), witAPIVersion, url.QueryEscape(utterance))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create Wit request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	req.Header.Set("Accept", "application/json")

	slog.Debug("WitClient parsing utterance", "utterance", utterance)
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		slog.Error("WitClient request failed", "error", err)
		return Result{}, fmt.Errorf("failed to call Wit API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read Wit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("WitClient non-OK response", "status", resp.StatusCode, "body", string(body))
		return Result{}, fmt.Errorf("wit API returned status %d", resp.StatusCode)
	}

	var parsed witResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("failed to decode Wit response: %w", err)
	}

	result := Result{Intent: models.IntentUnknown, Entities: make(map[string][]string)}
	if len(parsed.Intents) > 0 && parsed.Intents[0].Confidence >= minIntentConfidence {
		result.Intent = models.Intent(parsed.Intents[0].Name)
	}
	for key, entities := range parsed.Entities {
		name := normalizeEntityKey(key)
		for _, ent := range entities {
			if value := entityValueString(ent.Value); value != "" {
				result.Entities[name] = append(result.Entities[name], value)
			}
		}
	}

	slog.Debug("WitClient parsed utterance", "intent", result.Intent, "entities", len(result.Entities))
	return result, nil
}

// normalizeEntityKey reduces Wit entity keys like "wit$location:location"
// or "cuisine:cuisine" to their bare entity name.
func normalizeEntityKey(key string) string {
	name, _, _ := strings.Cut(key, ":")
	return strings.TrimPrefix(name, "wit$")
}

// entityValueString extracts the resolved value of one entity, which
// Wit serializes either as a bare string or as an object with a
// "value" field. Anything else counts as absent.
func entityValueString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Value
	}
	return ""
}
