package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jamesbot/james/internal/models"
)

// DefaultBaseURL is the Facebook Graph API root.
const DefaultBaseURL = "https://graph.facebook.com/v19.0"

// Opts holds configuration for the Messenger client.
type Opts struct {
	PageToken  string
	BaseURL    string
	HTTPClient *http.Client
}

// Option configures a Client.
type Option func(*Opts)

// WithPageToken sets the page access token.
func WithPageToken(token string) Option {
	return func(o *Opts) { o.PageToken = token }
}

// WithBaseURL overrides the Graph API root, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(o *Opts) { o.BaseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = client }
}

// Client sends messages through the Messenger Send API.
type Client struct {
	opts Opts
}

// NewClient creates a Messenger Send API client.
func NewClient(options ...Option) *Client {
	opts := Opts{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(&opts)
	}
	return &Client{opts: opts}
}

type recipientPayload struct {
	ID string `json:"id"`
}

type quickReplyPayload struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title,omitempty"`
	Payload     string `json:"payload,omitempty"`
}

type buttonPayload struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Payload string `json:"payload,omitempty"`
}

type messagePayload struct {
	Text         string              `json:"text,omitempty"`
	QuickReplies []quickReplyPayload `json:"quick_replies,omitempty"`
	Attachment   any                 `json:"attachment,omitempty"`
}

type sendRequest struct {
	Recipient    recipientPayload `json:"recipient"`
	Message      *messagePayload  `json:"message,omitempty"`
	SenderAction string           `json:"sender_action,omitempty"`
}

// SendText delivers a plain text message to the recipient.
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	if recipientID == "" {
		return models.ErrEmptyRecipient
	}
	if text == "" {
		return models.ErrEmptyMessage
	}
	return c.post(ctx, sendRequest{
		Recipient: recipientPayload{ID: recipientID},
		Message:   &messagePayload{Text: text},
	})
}

// SendQuickReplies delivers a text message with tappable suggestions.
func (c *Client) SendQuickReplies(ctx context.Context, recipientID, text string, replies []QuickReply) error {
	if recipientID == "" {
		return models.ErrEmptyRecipient
	}
	if text == "" {
		return models.ErrEmptyMessage
	}
	payload := &messagePayload{Text: text}
	for _, reply := range replies {
		contentType := reply.ContentType
		if contentType == "" {
			contentType = "text"
		}
		payload.QuickReplies = append(payload.QuickReplies, quickReplyPayload{
			ContentType: contentType,
			Title:       reply.Title,
			Payload:     reply.Payload,
		})
	}
	return c.post(ctx, sendRequest{
		Recipient: recipientPayload{ID: recipientID},
		Message:   payload,
	})
}

// SendTyping toggles the typing indicator for the recipient.
func (c *Client) SendTyping(ctx context.Context, recipientID string, on bool) error {
	if recipientID == "" {
		return models.ErrEmptyRecipient
	}
	action := "typing_on"
	if !on {
		action = "typing_off"
	}
	return c.post(ctx, sendRequest{
		Recipient:    recipientPayload{ID: recipientID},
		SenderAction: action,
	})
}

// SendCard delivers a generic template card for the candidate, with
// website, call and map buttons.
func (c *Client) SendCard(ctx context.Context, recipientID string, candidate models.Candidate) error {
	if recipientID == "" {
		return models.ErrEmptyRecipient
	}

	buttons := []buttonPayload{
		{Type: "web_url", Title: "Website", URL: candidate.URL},
	}
	if candidate.Phone != "" {
		buttons = append(buttons, buttonPayload{Type: "phone_number", Title: "Call", Payload: candidate.Phone})
	}
	buttons = append(buttons, buttonPayload{
		Type:  "web_url",
		Title: "Map",
		URL: fmt.Sprintf("https://maps.apple.com/?q=%f,%f",
			candidate.Coordinates.Latitude, candidate.Coordinates.Longitude),
	})

	element := map[string]any{
		"title":     candidate.Name,
		"subtitle":  cardSubtitle(candidate),
		"item_url":  candidate.URL,
		"image_url": candidate.ImageURL,
		"buttons":   buttons,
	}
	attachment := map[string]any{
		"type": "template",
		"payload": map[string]any{
			"template_type": "generic",
			"elements":      []any{element},
		},
	}
	return c.post(ctx, sendRequest{
		Recipient: recipientPayload{ID: recipientID},
		Message:   &messagePayload{Attachment: attachment},
	})
}

func cardSubtitle(candidate models.Candidate) string {
	return fmt.Sprintf("%s\nRating: %.1f/5\nPricing: %s\n%s",
		candidate.CategoryLine(), candidate.Rating, priceLabel(candidate.PriceTier),
		candidate.OpenNow.Display())
}

func priceLabel(tier int) string {
	if tier <= models.PriceTierUnknown {
		return "Not available"
	}
	return strings.Repeat("$", tier)
}

func (c *Client) post(ctx context.Context, payload sendRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode send request: %w", err)
	}

	endpoint := c.opts.BaseURL + "/me/messages?access_token=" + c.opts.PageToken
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		slog.Error("Messenger send failed", "recipient", payload.Recipient.ID, "error", err)
		return fmt.Errorf("failed to call Send API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Send API response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
				Code    int    `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			slog.Error("Send API rejected message", "recipient", payload.Recipient.ID,
				"code", apiErr.Error.Code, "message", apiErr.Error.Message)
			return fmt.Errorf("send API error %d: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		slog.Error("Send API non-OK response", "recipient", payload.Recipient.ID,
			"status", resp.StatusCode, "body", string(respBody))
		return fmt.Errorf("send API returned status %d", resp.StatusCode)
	}

	slog.Debug("Messenger message delivered", "recipient", payload.Recipient.ID)
	return nil
}
