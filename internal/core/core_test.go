package core

import (
	"testing"
	"time"
)

func TestArticleCreation(t *testing.T) {
	now := time.Now()
	article := Article{
		ID:          "article-1",
		GroupID:     "group-1",
		Title:       "Test Article",
		Body:        "Body text",
		SourceURL:   "https://example.com/a",
		Fingerprint: "deadbeef",
		Status:      ArticleStatusPending,
		SubmittedAt: now,
	}

	if article.ID != "article-1" {
		t.Errorf("Expected ID to be 'article-1', got %s", article.ID)
	}
	if article.Status != ArticleStatusPending {
		t.Errorf("Expected Status to be pending, got %s", article.Status)
	}
	if article.GroupID != "group-1" {
		t.Errorf("Expected GroupID to be 'group-1', got %s", article.GroupID)
	}
}

func TestCollectionCreation(t *testing.T) {
	now := time.Now()
	c := Collection{
		ID:         "collection-1",
		GroupID:    "group-1",
		Status:     CollectionStatusBuilding,
		ArticleIDs: []string{"a1", "a2"},
		CreatedAt:  now,
	}

	if c.Status != CollectionStatusBuilding {
		t.Errorf("Expected Status to be building, got %s", c.Status)
	}
	if len(c.ArticleIDs) != 2 {
		t.Errorf("Expected 2 article IDs, got %d", len(c.ArticleIDs))
	}
	if c.SuccessorID != "" {
		t.Errorf("Expected SuccessorID to be empty for a building collection, got %s", c.SuccessorID)
	}
}

func TestPodcastGroupCreation(t *testing.T) {
	now := time.Now()
	g := PodcastGroup{
		ID:      "group-1",
		Name:    "Daily Tech",
		Cadence: CadenceDaily,
		CreatedAt: now,
	}

	if g.Cadence != CadenceDaily {
		t.Errorf("Expected Cadence to be daily, got %s", g.Cadence)
	}
	if !g.LastEpisodeAt.IsZero() {
		t.Errorf("Expected LastEpisodeAt to be zero for a new group")
	}
}

func TestEpisodeStateMachineFields(t *testing.T) {
	now := time.Now()
	e := Episode{
		ID:           "episode-1",
		GroupID:      "group-1",
		CollectionID: "collection-1",
		Status:       EpisodeStatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if e.Status != EpisodeStatusDraft {
		t.Errorf("Expected Status to be draft, got %s", e.Status)
	}
	if e.FailureStage != "" {
		t.Errorf("Expected FailureStage to be empty for a draft episode")
	}

	e.Status = EpisodeStatusFailed
	e.FailureStage = "scripted"
	e.FailureError = "writer timeout"

	if e.Status != EpisodeStatusFailed {
		t.Errorf("Expected Status to be failed, got %s", e.Status)
	}
	if e.FailureStage != "scripted" {
		t.Errorf("Expected FailureStage to be 'scripted', got %s", e.FailureStage)
	}
}

func TestAudioFileCreation(t *testing.T) {
	now := time.Now()
	af := AudioFile{
		ID:          "audio-1",
		EpisodeID:   "episode-1",
		URL:         "https://cdn.example.com/audio-1.mp3",
		DurationSec: 612.5,
		VoiceID:     "voice-a",
		CreatedAt:   now,
	}

	if af.EpisodeID != "episode-1" {
		t.Errorf("Expected EpisodeID to be 'episode-1', got %s", af.EpisodeID)
	}
	if af.DurationSec != 612.5 {
		t.Errorf("Expected DurationSec to be 612.5, got %f", af.DurationSec)
	}
}
