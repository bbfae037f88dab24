package yelp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jamesbot/james/internal/models"
	"github.com/jamesbot/james/internal/search"
)

const searchResponseBody = `{
	"total": 2,
	"businesses": [
		{
			"id": "hawker-one",
			"name": "Tian Tian Chicken Rice",
			"url": "https://yelp.com/biz/tian-tian",
			"image_url": "https://s3-media.fl.yelpcdn.com/bphoto/abc/ms.jpg",
			"display_phone": "+65 6123 4567",
			"rating": 4.5,
			"price": "$$",
			"categories": [{"title": "Hainanese"}, {"title": "Hawker Centre"}],
			"coordinates": {"latitude": 1.2801, "longitude": 103.8454}
		},
		{
			"id": "noodle-two",
			"name": "Noodle Story",
			"url": "https://yelp.com/biz/noodle-story",
			"image_url": "https://s3-media.fl.yelpcdn.com/bphoto/def/ms.jpg",
			"rating": 4.0,
			"categories": [{"title": "Noodles"}],
			"coordinates": {"latitude": 1.2793, "longitude": 103.8441}
		}
	]
}`

func TestClientSearch(t *testing.T) {
	var gotPath, gotAuth string
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchResponseBody))
	}))
	defer server.Close()

	client := NewClient(WithAPIKey("yelp-key"), WithBaseURL(server.URL))
	criteria := search.NewCriteria()
	criteria.Coords = &models.Coordinates{Latitude: 1.29, Longitude: 103.85}
	criteria.Cuisine = "chicken rice"

	candidates, err := client.Search(context.Background(), criteria.ToQueryParams())
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if gotPath != "/businesses/search" {
		t.Errorf("path = %q, want /businesses/search", gotPath)
	}
	if gotAuth != "Bearer yelp-key" {
		t.Errorf("Authorization = %q, want bearer key", gotAuth)
	}
	wantQuery := map[string]string{
		"term":      "chicken rice food",
		"latitude":  "1.29",
		"longitude": "103.85",
		"price":     "1,2,3,4",
		"sort_by":   "best_match",
		"radius":    "2000",
		"limit":     "30",
	}
	for key, want := range wantQuery {
		if got := gotQuery[key]; len(got) != 1 || got[0] != want {
			t.Errorf("query %s = %v, want %q", key, got, want)
		}
	}
	if _, ok := gotQuery["open_now"]; ok {
		t.Error("open_now should be omitted until requested")
	}
	if _, ok := gotQuery["location"]; ok {
		t.Error("location should be omitted when coordinates are set")
	}

	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	first := candidates[0]
	if first.ID != "hawker-one" || first.Name != "Tian Tian Chicken Rice" {
		t.Errorf("unexpected first candidate: %+v", first)
	}
	if first.ImageURL != "https://s3-media.fl.yelpcdn.com/bphoto/abc/o.jpg" {
		t.Errorf("ImageURL = %q, want original-size photo", first.ImageURL)
	}
	if first.PriceTier != 2 {
		t.Errorf("PriceTier = %d, want 2 for %q", first.PriceTier, "$$")
	}
	if len(first.Categories) != 2 || first.Categories[0] != "Hainanese" || first.Categories[1] != "Hawker Centre" {
		t.Errorf("Categories = %v, want titles in response order", first.Categories)
	}
	if first.OpenNow != models.OpenStatusUnknown {
		t.Errorf("OpenNow = %q, want unknown before detail fetch", first.OpenNow)
	}
	if candidates[1].PriceTier != models.PriceTierUnknown {
		t.Errorf("PriceTier = %d, want unknown when price is absent", candidates[1].PriceTier)
	}
}

func TestClientSearchLocationFallback(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"total": 0, "businesses": []}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	criteria := search.NewCriteria()
	criteria.Location = "Tiong Bahru"

	if _, err := client.Search(context.Background(), criteria.ToQueryParams()); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if got := gotQuery["location"]; len(got) != 1 || got[0] != "Tiong Bahru" {
		t.Errorf("location = %v, want place name", got)
	}
	if _, ok := gotQuery["latitude"]; ok {
		t.Error("latitude should be omitted without coordinates")
	}
}

func TestClientSearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": "VALIDATION_ERROR"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	if _, err := client.Search(context.Background(), search.NewCriteria().ToQueryParams()); err == nil {
		t.Error("expected error for non-OK status")
	}
}

func TestClientFetchOpenNow(t *testing.T) {
	tests := []struct {
		name string
		body string
		want models.OpenStatus
	}{
		{"open", `{"hours": [{"is_open_now": true}]}`, models.OpenStatusOpen},
		{"closed", `{"hours": [{"is_open_now": false}]}`, models.OpenStatusClosed},
		{"no hours data", `{"hours": []}`, models.OpenStatusUnknown},
		{"hours absent", `{}`, models.OpenStatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(WithBaseURL(server.URL))
			status, err := client.FetchOpenNow(context.Background(), "hawker-one")
			if err != nil {
				t.Fatalf("FetchOpenNow failed: %v", err)
			}
			if gotPath != "/businesses/hawker-one" {
				t.Errorf("path = %q, want business detail path", gotPath)
			}
			if status != tt.want {
				t.Errorf("status = %q, want %q", status, tt.want)
			}
		})
	}
}

func TestClientFetchOpenNowError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	status, err := client.FetchOpenNow(context.Background(), "missing")
	if err == nil {
		t.Error("expected error for non-OK status")
	}
	if status != models.OpenStatusUnknown {
		t.Errorf("status = %q, want unknown on error", status)
	}
}
