// Package yelp is a thin client for the Yelp Fusion business APIs,
// narrowed to the search and detail calls the recommender needs.
package yelp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jamesbot/james/internal/models"
	"github.com/jamesbot/james/internal/search"
)

// DefaultBaseURL is the Yelp Fusion API root.
const DefaultBaseURL = "https://api.yelp.com/v3"

// Opts holds configuration for the Yelp client.
type Opts struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Option configures a Client.
type Option func(*Opts)

// WithAPIKey sets the Fusion API key sent as a bearer credential.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the API root, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(o *Opts) { o.BaseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = client }
}

// Client calls the Yelp Fusion API.
type Client struct {
	opts Opts
}

// NewClient creates a Yelp Fusion client.
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

type businessPayload struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	URL        string  `json:"url"`
	ImageURL   string  `json:"image_url"`
	Phone      string  `json:"display_phone"`
	Rating     float64 `json:"rating"`
	Price      string  `json:"price"`
	Categories []struct {
		Title string `json:"title"`
	} `json:"categories"`
	Coordinates struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"coordinates"`
}

type searchPayload struct {
	Businesses []businessPayload `json:"businesses"`
	Total      int               `json:"total"`
}

type detailPayload struct {
	Hours []struct {
		IsOpenNow bool `json:"is_open_now"`
	} `json:"hours"`
}

// Search runs a business search with the given query parameters and
// maps each hit into a candidate record.
func (c *Client) Search(ctx context.Context, params search.QueryParams) ([]models.Candidate, error) {
	query := url.Values{}
	if params.Term != "" {
		query.Set("term", params.Term)
	}
	if params.HasCoords {
		query.Set("latitude", strconv.FormatFloat(params.Latitude, 'f', -1, 64))
		query.Set("longitude", strconv.FormatFloat(params.Longitude, 'f', -1, 64))
	} else if params.Location != "" {
		query.Set("location", params.Location)
	}
	if params.Price != "" {
		query.Set("price", params.Price)
	}
	if params.OpenNow {
		query.Set("open_now", "true")
	}
	if params.SortBy != "" {
		query.Set("sort_by", params.SortBy)
	}
	if params.Radius > 0 {
		query.Set("radius", strconv.Itoa(params.Radius))
	}
	if params.Offset > 0 {
		query.Set("offset", strconv.Itoa(params.Offset))
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}

	var payload searchPayload
	if err := c.get(ctx, "/businesses/search?"+query.Encode(), &payload); err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(payload.Businesses))
	for _, biz := range payload.Businesses {
		candidates = append(candidates, mapBusiness(biz))
	}
	slog.Debug("Yelp search completed", "term", params.Term, "results", len(candidates), "total", payload.Total)
	return candidates, nil
}

// FetchOpenNow looks up the current open/closed status of a business.
// Missing hours data maps to an unknown status, not an error.
func (c *Client) FetchOpenNow(ctx context.Context, businessID string) (models.OpenStatus, error) {
	var payload detailPayload
	if err := c.get(ctx, "/businesses/"+url.PathEscape(businessID), &payload); err != nil {
		return models.OpenStatusUnknown, err
	}
	if len(payload.Hours) == 0 {
		return models.OpenStatusUnknown, nil
	}
	if payload.Hours[0].IsOpenNow {
		return models.OpenStatusOpen, nil
	}
	return models.OpenStatusClosed, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	endpoint := strings.TrimRight(c.opts.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create Yelp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		slog.Error("Yelp request failed", "path", path, "error", err)
		return fmt.Errorf("failed to call Yelp API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Yelp response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("Yelp non-OK response", "path", path, "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("yelp API returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode Yelp response: %w", err)
	}
	return nil
}

func mapBusiness(biz businessPayload) models.Candidate {
	categories := make([]string, 0, len(biz.Categories))
	for _, cat := range biz.Categories {
		categories = append(categories, cat.Title)
	}
	return models.Candidate{
		ID:         biz.ID,
		Name:       biz.Name,
		URL:        biz.URL,
		ImageURL:   upgradeImageURL(biz.ImageURL),
		Categories: categories,
		Phone:      biz.Phone,
		Rating:     biz.Rating,
		PriceTier:  len(biz.Price),
		Coordinates: models.Coordinates{
			Latitude:  biz.Coordinates.Latitude,
			Longitude: biz.Coordinates.Longitude,
		},
		OpenNow: models.OpenStatusUnknown,
	}
}

// upgradeImageURL swaps Yelp's medium-size photo suffix for the
// original-size one, which renders better in chat cards.
func upgradeImageURL(imageURL string) string {
	return strings.Replace(imageURL, "ms.jpg", "o.jpg", 1)
}
