package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"overseer/internal/collab"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleSynthesizeIsDeterministic(t *testing.T) {
	h := &handlers{log: discardLogger()}

	req := collab.SynthesizeRequest{EpisodeID: "ep1", Script: "Speaker 1: hello world, this is a test script."}
	body, _ := json.Marshal(req)

	rec1 := httptest.NewRecorder()
	h.handleSynthesize(rec1, httptest.NewRequest(http.MethodPost, "/tts", bytes.NewReader(body)))

	rec2 := httptest.NewRecorder()
	h.handleSynthesize(rec2, httptest.NewRequest(http.MethodPost, "/tts", bytes.NewReader(body)))

	var r1, r2 collab.SynthesizeResult
	if err := json.Unmarshal(rec1.Body.Bytes(), &r1); err != nil {
		t.Fatalf("decode first response: %v", err)
	}
	if err := json.Unmarshal(rec2.Body.Bytes(), &r2); err != nil {
		t.Fatalf("decode second response: %v", err)
	}
	if r1.AudioURL != r2.AudioURL {
		t.Fatalf("expected stable audio URL for identical request, got %q and %q", r1.AudioURL, r2.AudioURL)
	}
	if r1.DurationSeconds <= 0 {
		t.Fatalf("expected positive duration, got %v", r1.DurationSeconds)
	}
}

func TestHandleSynthesizeRejectsEmptyScript(t *testing.T) {
	h := &handlers{log: discardLogger()}
	body, _ := json.Marshal(collab.SynthesizeRequest{EpisodeID: "ep1"})

	rec := httptest.NewRecorder()
	h.handleSynthesize(rec, httptest.NewRequest(http.MethodPost, "/tts", bytes.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandlePublishSucceedsForEveryPlatform(t *testing.T) {
	h := &handlers{log: discardLogger()}
	req := collab.PublishRequest{EpisodeID: "ep1", Platforms: []string{"rss", "spotify"}}
	body, _ := json.Marshal(req)

	rec := httptest.NewRecorder()
	h.handlePublish(rec, httptest.NewRequest(http.MethodPost, "/publish", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var result collab.PublishResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(result.Results))
	}
	for _, r := range result.Results {
		if r.URL == "" || r.Error != "" {
			t.Fatalf("expected every platform to succeed, got %+v", r)
		}
	}
}

func TestReviewPromptDiffersByTier(t *testing.T) {
	req := collab.ReviewRequest{ArticleID: "a1", Title: "Title", Body: "Body"}
	light := reviewPrompt(req, false)
	heavy := reviewPrompt(req, true)
	if light == heavy {
		t.Fatalf("expected light and heavy prompts to differ")
	}
}

func TestScriptPromptIncludesArticles(t *testing.T) {
	req := collab.ScriptRequest{
		Presenters:    []string{"Alex", "Sam"},
		WriterProfile: "casual",
		TargetMinutes: 10,
		Articles: []collab.ScriptArticle{
			{ID: "1", Title: "Big News", Summary: "Something happened", Body: "Details."},
		},
	}
	prompt := scriptPrompt(req)
	if !bytes.Contains([]byte(prompt), []byte("Big News")) {
		t.Fatalf("expected prompt to reference article title, got %q", prompt)
	}
}
