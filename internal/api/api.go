// Package api exposes the Messenger webhook surface: the subscription
// handshake, signed event delivery, health and metrics endpoints.
package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jamesbot/james/internal/models"
)

// EventHandler consumes one inbound Messenger event.
// internal/engine.Engine satisfies it.
type EventHandler interface {
	HandleEvent(ctx context.Context, event models.Event)
}

// Opts holds webhook configuration.
type Opts struct {
	// VerifyToken must match Facebook's subscription handshake.
	VerifyToken string
	// AppSecret signs delivery payloads. When empty, signature checks
	// are skipped with a warning; only do that in development.
	AppSecret string
}

// Option configures a Handler.
type Option func(*Opts)

// WithVerifyToken sets the handshake token.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// WithAppSecret sets the payload-signing secret.
func WithAppSecret(secret string) Option {
	return func(o *Opts) { o.AppSecret = secret }
}

// Handler serves the webhook endpoints.
type Handler struct {
	events EventHandler
	opts   Opts
}

// NewHandler creates a webhook handler delivering events to the engine.
func NewHandler(events EventHandler, options ...Option) *Handler {
	var opts Opts
	for _, opt := range options {
		opt(&opts)
	}
	return &Handler{events: events, opts: opts}
}

// Routes builds the HTTP router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/webhook", h.verifyWebhook)
	r.Post("/webhook", h.receiveWebhook)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// verifyWebhook answers Facebook's subscription handshake by echoing
// the challenge when the verify token matches.
func (h *Handler) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("hub.mode") == "subscribe" && query.Get("hub.verify_token") == h.opts.VerifyToken {
		w.Write([]byte(query.Get("hub.challenge")))
		return
	}
	slog.Error("Webhook verification failed", "mode", query.Get("hub.mode"))
	w.WriteHeader(http.StatusForbidden)
}

// receiveWebhook validates the delivery signature, maps the payload to
// events and hands them to the engine. It always acknowledges accepted
// deliveries fast; turns run on the session queues.
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !h.validSignature(r.Header.Get("x-hub-signature"), body) {
		slog.Error("Webhook delivery rejected: bad signature")
		w.WriteHeader(http.StatusForbidden)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Error("Webhook payload undecodable", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if payload.Object != "page" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	for _, entry := range payload.Entry {
		for _, raw := range entry.Messaging {
			event, ok := mapEvent(raw)
			if !ok {
				continue
			}
			h.events.HandleEvent(r.Context(), event)
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("EVENT_RECEIVED"))
}

// validSignature checks the x-hub-signature header, an HMAC-SHA1 of
// the raw body keyed with the app secret.
func (h *Handler) validSignature(header string, body []byte) bool {
	if h.opts.AppSecret == "" {
		slog.Warn("Webhook signature check skipped: no app secret configured")
		return true
	}
	method, signature, found := strings.Cut(header, "=")
	if !found || method != "sha1" {
		return false
	}
	mac := hmac.New(sha1.New, []byte(h.opts.AppSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []messagingEvent `json:"messaging"`
	} `json:"entry"`
}

type messagingEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Timestamp int64 `json:"timestamp"`
	Message   *struct {
		IsEcho     bool   `json:"is_echo"`
		Text       string `json:"text"`
		QuickReply *struct {
			Payload string `json:"payload"`
		} `json:"quick_reply"`
		Attachments []struct {
			Type    string `json:"type"`
			Payload struct {
				Coordinates *struct {
					Lat  float64 `json:"lat"`
					Long float64 `json:"long"`
				} `json:"coordinates"`
			} `json:"payload"`
		} `json:"attachments"`
	} `json:"message"`
	Postback *struct {
		Payload string `json:"payload"`
	} `json:"postback"`
}

// mapEvent flattens one raw messaging entry into a models.Event.
// Echoes of the bot's own messages are dropped.
func mapEvent(raw messagingEvent) (models.Event, bool) {
	event := models.Event{
		SenderID: raw.Sender.ID,
		Time:     raw.Timestamp,
	}
	switch {
	case raw.Postback != nil:
		event.Payload = raw.Postback.Payload
	case raw.Message != nil:
		msg := raw.Message
		if msg.IsEcho {
			return models.Event{}, false
		}
		event.Text = msg.Text
		if msg.QuickReply != nil {
			event.Payload = msg.QuickReply.Payload
		}
		for _, att := range msg.Attachments {
			if att.Type == "location" && att.Payload.Coordinates != nil {
				event.Location = &models.Coordinates{
					Latitude:  att.Payload.Coordinates.Lat,
					Longitude: att.Payload.Coordinates.Long,
				}
				break
			}
			event.HasAttachment = true
		}
	default:
		return models.Event{}, false
	}
	return event, true
}
