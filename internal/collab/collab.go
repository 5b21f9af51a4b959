// Package collab defines the narrow capability interfaces for every
// external collaborator the core speaks to (Reviewer, Writer, Editor,
// TTS, Publisher) and a shared HTTP JSON client implementation of them.
// The core only forwards the documented request fields and trusts the
// response schema — prompt content is owned entirely by the
// collaborator on the other end of the wire.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ReviewRequest is submitted to either tier of Reviewer.
type ReviewRequest struct {
	ArticleID string       `json:"article_id"`
	Title     string       `json:"title"`
	Body      string       `json:"body"`
	Hints     *ReviewHints `json:"hints,omitempty"`
}

// ReviewHints carries the escalate hint from upstream classification.
type ReviewHints struct {
	Escalate bool `json:"escalate,omitempty"`
}

// ReviewResult is the shared response shape for both reviewer tiers.
type ReviewResult struct {
	Tags       []string `json:"tags"`
	Summary    string   `json:"summary"`
	Confidence float64  `json:"confidence"`
	ModelID    string   `json:"model_id"`
}

// Reviewer is the narrow capability the Review Router dispatches to for
// either the Light or the Heavy tier.
type Reviewer interface {
	Review(ctx context.Context, req ReviewRequest) (ReviewResult, error)
}

// ScriptArticle is one article forwarded to the Writer in a script request.
type ScriptArticle struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Body    string `json:"body"`
}

// ScriptRequest is submitted to the Writer to produce an episode's script.
type ScriptRequest struct {
	SnapshotID     string          `json:"snapshot_id"`
	Articles       []ScriptArticle `json:"articles"`
	Presenters     []string        `json:"presenters"`
	WriterProfile  string          `json:"writer_profile"`
	TargetMinutes  int             `json:"target_minutes"`
}

// ScriptResult carries the generated script text.
type ScriptResult struct {
	Script string `json:"script"`
}

// MetadataRequest asks the Writer for episode title/description/tags.
type MetadataRequest struct {
	EpisodeID string `json:"episode_id"`
	Script    string `json:"script"`
}

// MetadataResult is the Writer's episode metadata response.
type MetadataResult struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Writer is the narrow capability for script and metadata generation.
type Writer interface {
	Script(ctx context.Context, req ScriptRequest) (ScriptResult, error)
	Metadata(ctx context.Context, req MetadataRequest) (MetadataResult, error)
}

// EditContext carries framing information for the Editor.
type EditContext struct {
	GroupName     string `json:"group_name"`
	TargetMinutes int    `json:"target_minutes"`
}

// EditRequest is submitted to the Editor for an edit pass.
type EditRequest struct {
	Script  string      `json:"script"`
	Context EditContext `json:"context"`
}

// EditResult is the Editor's response.
type EditResult struct {
	EditedScript string `json:"edited_script"`
	Notes        string `json:"notes,omitempty"`
}

// Editor is the narrow capability for the edit pass.
type Editor interface {
	Edit(ctx context.Context, req EditRequest) (EditResult, error)
}

// SynthesizeRequest is submitted to the TTS collaborator.
type SynthesizeRequest struct {
	EpisodeID string            `json:"episode_id"`
	Script    string            `json:"script"`
	VoiceMap  map[string]string `json:"voice_map"`
}

// SynthesizeResult carries the generated audio's location and shape.
type SynthesizeResult struct {
	AudioURL        string  `json:"audio_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	ByteSize        int64   `json:"byte_size"`
	Format          string  `json:"format"`
}

// TTS is the narrow capability for audio synthesis.
type TTS interface {
	Synthesize(ctx context.Context, req SynthesizeRequest) (SynthesizeResult, error)
}

// PublishRequest is submitted to the Publisher collaborator.
type PublishRequest struct {
	EpisodeID string            `json:"episode_id"`
	AudioURL  string            `json:"audio_url"`
	Metadata  MetadataResult    `json:"metadata"`
	Platforms []string          `json:"platforms"`
}

// PublishOutcome is one platform's publish attempt result.
type PublishOutcome struct {
	Platform string `json:"platform"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PublishResult carries per-platform publish outcomes. An empty Results
// slice is not itself an error — it only prevents the episode from
// transitioning to published.
type PublishResult struct {
	Results []PublishOutcome `json:"results"`
}

// Publisher is the narrow capability for episode distribution.
type Publisher interface {
	Publish(ctx context.Context, req PublishRequest) (PublishResult, error)
}

// HTTPClient is a generic JSON-over-HTTP collaborator client implementing
// Reviewer, Writer, Editor, TTS, and Publisher against a single base URL.
// The orchestration core's main assembles every collaborator as one of
// these bound to a specific path; cmd/devcollaborator serves those paths.
type HTTPClient struct {
	baseURL string
	path    string
	client  *http.Client
}

// NewHTTPClient builds a collaborator client that POSTs JSON to
// baseURL+path and enforces timeout as the request's context deadline
// when the caller does not already supply a shorter one.
func NewHTTPClient(baseURL, path string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		path:    path,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) do(ctx context.Context, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode collaborator request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build collaborator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("collaborator request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: collaborator returned %d: %s", ErrTransient, resp.StatusCode, string(respBody))
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: collaborator returned %d: %s", ErrPermanent, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode collaborator response: %w", err)
	}
	return nil
}

// Review implements Reviewer.
func (c *HTTPClient) Review(ctx context.Context, req ReviewRequest) (ReviewResult, error) {
	var out ReviewResult
	err := c.do(ctx, req, &out)
	return out, err
}

// Script implements Writer.
func (c *HTTPClient) Script(ctx context.Context, req ScriptRequest) (ScriptResult, error) {
	var out ScriptResult
	err := c.do(ctx, req, &out)
	return out, err
}

// Metadata implements Writer.
func (c *HTTPClient) Metadata(ctx context.Context, req MetadataRequest) (MetadataResult, error) {
	var out MetadataResult
	err := c.do(ctx, req, &out)
	return out, err
}

// Edit implements Editor.
func (c *HTTPClient) Edit(ctx context.Context, req EditRequest) (EditResult, error) {
	var out EditResult
	err := c.do(ctx, req, &out)
	return out, err
}

// Synthesize implements TTS.
func (c *HTTPClient) Synthesize(ctx context.Context, req SynthesizeRequest) (SynthesizeResult, error) {
	var out SynthesizeResult
	err := c.do(ctx, req, &out)
	return out, err
}

// Publish implements Publisher.
func (c *HTTPClient) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	var out PublishResult
	err := c.do(ctx, req, &out)
	return out, err
}
