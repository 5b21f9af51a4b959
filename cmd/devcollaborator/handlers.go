package main

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"overseer/internal/collab"
)

type handlers struct {
	llm *llmClient
	log *slog.Logger
}

func decodeBody(r *http.Request, out interface{}) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(out)
}

var reviewSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"tags": {
			Type:        genai.TypeArray,
			Description: "up to 8 short topical tags",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
		"summary": {
			Type:        genai.TypeString,
			Description: "one or two sentence summary of the article",
		},
		"confidence": {
			Type:        genai.TypeNumber,
			Description: "confidence in the review, between 0 and 1",
		},
	},
	Required: []string{"tags", "summary", "confidence"},
}

func reviewPrompt(req collab.ReviewRequest, thorough bool) string {
	var b strings.Builder
	if thorough {
		b.WriteString("Perform a careful, in-depth editorial review of this article. ")
		b.WriteString("Read closely for nuance before tagging and summarizing.\n\n")
	} else {
		b.WriteString("Quickly review this article for inclusion in a news podcast.\n\n")
	}
	fmt.Fprintf(&b, "Title: %s\n\nBody:\n%s\n\n", req.Title, req.Body)
	b.WriteString("Respond with tags, a summary, and your confidence that this article is worth covering.")
	return b.String()
}

func (h *handlers) review(w http.ResponseWriter, r *http.Request, thorough bool) {
	var req collab.ReviewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var parsed struct {
		Tags       []string `json:"tags"`
		Summary    string   `json:"summary"`
		Confidence float64  `json:"confidence"`
	}
	if err := h.llm.generateJSON(r.Context(), reviewPrompt(req, thorough), reviewSchema, &parsed); err != nil {
		h.log.Error("devcollaborator: review failed", "article_id", req.ArticleID, "error", err)
		writeError(w, http.StatusBadGateway, "review generation failed")
		return
	}

	writeJSON(w, http.StatusOK, collab.ReviewResult{
		Tags:       parsed.Tags,
		Summary:    parsed.Summary,
		Confidence: parsed.Confidence,
		ModelID:    h.llm.modelName,
	})
}

func (h *handlers) handleReviewLight(w http.ResponseWriter, r *http.Request) { h.review(w, r, false) }
func (h *handlers) handleReviewHeavy(w http.ResponseWriter, r *http.Request) { h.review(w, r, true) }

func scriptPrompt(req collab.ScriptRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a podcast script for presenters %s, following this writer profile: %s.\n", strings.Join(req.Presenters, ", "), req.WriterProfile)
	fmt.Fprintf(&b, "Target length: about %d minutes spoken.\n\n", req.TargetMinutes)
	b.WriteString("Cover these articles:\n\n")
	for _, a := range req.Articles {
		fmt.Fprintf(&b, "- %s: %s\n  %s\n", a.Title, a.Summary, a.Body)
	}
	b.WriteString("\nFormat every line as \"Speaker N: text\", one presenter per line, alternating naturally.")
	return b.String()
}

func (h *handlers) handleScript(w http.ResponseWriter, r *http.Request) {
	var req collab.ScriptRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	script, err := h.llm.generateText(r.Context(), scriptPrompt(req))
	if err != nil {
		h.log.Error("devcollaborator: script generation failed", "snapshot_id", req.SnapshotID, "error", err)
		writeError(w, http.StatusBadGateway, "script generation failed")
		return
	}
	writeJSON(w, http.StatusOK, collab.ScriptResult{Script: script})
}

var metadataSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":       {Type: genai.TypeString},
		"description": {Type: genai.TypeString},
		"tags": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"title", "description", "tags"},
}

func (h *handlers) handleMetadata(w http.ResponseWriter, r *http.Request) {
	var req collab.MetadataRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prompt := fmt.Sprintf("Given this podcast episode script, write a catchy title, a one-paragraph description, and up to 8 tags.\n\nScript:\n%s", req.Script)

	var result collab.MetadataResult
	if err := h.llm.generateJSON(r.Context(), prompt, metadataSchema, &result); err != nil {
		h.log.Error("devcollaborator: metadata generation failed", "episode_id", req.EpisodeID, "error", err)
		writeError(w, http.StatusBadGateway, "metadata generation failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req collab.EditRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prompt := fmt.Sprintf(
		"Edit this podcast script for the show %q. Target runtime is about %d minutes spoken. "+
			"Tighten pacing, remove redundancy, and keep every line in \"Speaker N: text\" form.\n\nScript:\n%s",
		req.Context.GroupName, req.Context.TargetMinutes, req.Script,
	)

	edited, err := h.llm.generateText(r.Context(), prompt)
	if err != nil {
		h.log.Error("devcollaborator: edit failed", "error", err)
		writeError(w, http.StatusBadGateway, "edit failed")
		return
	}
	writeJSON(w, http.StatusOK, collab.EditResult{EditedScript: edited})
}

// handleSynthesize is a deterministic fixture: it does not call any real
// text-to-speech service. It derives a stable fake audio URL from the
// episode ID and script so repeated calls for the same request are
// idempotent, and estimates duration from word count at 150 words/min.
func (h *handlers) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req collab.SynthesizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Script == "" {
		writeError(w, http.StatusBadRequest, "script is required")
		return
	}

	sum := sha1.Sum([]byte(req.EpisodeID + req.Script))
	digest := hex.EncodeToString(sum[:])[:16]

	words := len(strings.Fields(req.Script))
	durationSec := float64(words) / 150.0 * 60.0

	writeJSON(w, http.StatusOK, collab.SynthesizeResult{
		AudioURL:        fmt.Sprintf("https://dev-audio.local/%s.mp3", digest),
		DurationSeconds: durationSec,
		ByteSize:        int64(durationSec * 16000),
		Format:          "mp3",
	})
}

// handlePublish is a deterministic fixture: every requested platform
// succeeds with a synthesized URL. There is no real distribution API in
// this repo to call.
func (h *handlers) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req collab.PublishRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results := make([]collab.PublishOutcome, 0, len(req.Platforms))
	for _, platform := range req.Platforms {
		results = append(results, collab.PublishOutcome{
			Platform: platform,
			URL:      fmt.Sprintf("https://dev-publish.local/%s/%s", platform, req.EpisodeID),
		})
	}
	writeJSON(w, http.StatusOK, collab.PublishResult{Results: results})
}
