package collab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClientReview(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ArticleID != "a1" {
			t.Errorf("ArticleID = %q, want a1", req.ArticleID)
		}
		_ = json.NewEncoder(w).Encode(ReviewResult{
			Tags:       []string{"tech", "ai"},
			Summary:    "a summary",
			Confidence: 0.8,
			ModelID:    "light-v1",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "/review", 3*time.Second)
	result, err := client.Review(context.Background(), ReviewRequest{ArticleID: "a1", Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if result.Confidence != 0.8 || result.ModelID != "light-v1" {
		t.Errorf("Review() = %+v, unexpected", result)
	}
}

func TestHTTPClientReviewServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "/review", 3*time.Second)
	_, err := client.Review(context.Background(), ReviewRequest{ArticleID: "a1"})
	if !errors.Is(err, ErrTransient) {
		t.Errorf("Review() error = %v, want wrapping ErrTransient", err)
	}
}

func TestHTTPClientReviewClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "/review", 3*time.Second)
	_, err := client.Review(context.Background(), ReviewRequest{ArticleID: "a1"})
	if !errors.Is(err, ErrPermanent) {
		t.Errorf("Review() error = %v, want wrapping ErrPermanent", err)
	}
}

func TestHTTPClientRespectsContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(ReviewResult{})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "/review", time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := client.Review(ctx, ReviewRequest{ArticleID: "a1"})
	if err == nil {
		t.Error("Review() error = nil, want deadline exceeded error")
	}
}

func TestHTTPClientPublish(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(PublishResult{
			Results: []PublishOutcome{{Platform: "spotify", URL: "https://example.com/ep1"}},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "/publish", 3*time.Second)
	result, err := client.Publish(context.Background(), PublishRequest{EpisodeID: "e1", Platforms: []string{"spotify"}})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(result.Results) != 1 || result.Results[0].Platform != "spotify" {
		t.Errorf("Publish() = %+v, unexpected", result)
	}
}
