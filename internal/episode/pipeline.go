package episode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"overseer/internal/analytics"
	"overseer/internal/collab"
	"overseer/internal/collection"
	"overseer/internal/core"
	"overseer/internal/lock"
	"overseer/internal/logger"
	"overseer/internal/persistence"
)

// ErrLockHeld is returned when another episode is already generating
// for the requested group.
var ErrLockHeld = errors.New("episode: group generation lock held")

// ErrInactiveGroup is returned when the group is not active, or lacks a
// presenter or writer.
var ErrInactiveGroup = errors.New("episode: group is not eligible for generation")

// Params bundles the Episode Pipeline's dependencies and per-stage
// timing budgets.
type Params struct {
	DB             persistence.Database
	Collections    *collection.Manager
	GroupLocks     *lock.GenerationLocks
	ProductionLock *lock.ProductionLock
	Writer         collab.Writer
	Editor         collab.Editor
	TTS            collab.TTS
	Publisher      collab.Publisher
	Analytics      *analytics.Client

	MinArticles       int
	Platforms         []string
	GenerationLockTTL time.Duration
	ProductionLockTTL time.Duration

	ScriptSoftTimeout, ScriptHardTimeout time.Duration
	EditSoftTimeout, EditHardTimeout     time.Duration
	TTSSoftTimeout, TTSHardTimeout       time.Duration
	PublishTimeout                      time.Duration
}

// Pipeline is the Episode Pipeline (C6): a linear, failure-handled
// workflow that owns the production lock while it runs.
type Pipeline struct {
	db        persistence.Database
	coll      *collection.Manager
	groupLock *lock.GenerationLocks
	prodLock  *lock.ProductionLock
	writer    collab.Writer
	editor    collab.Editor
	tts       collab.TTS
	publisher collab.Publisher
	track     *analytics.Client
	log       *slog.Logger

	minArticles       int
	platforms         []string
	generationLockTTL time.Duration
	productionLockTTL time.Duration

	scriptSoft, scriptHard time.Duration
	editSoft, editHard     time.Duration
	ttsSoft, ttsHard       time.Duration
	publishTimeout         time.Duration
}

// New builds a Pipeline from Params.
func New(p Params) *Pipeline {
	return &Pipeline{
		db:                 p.DB,
		coll:               p.Collections,
		groupLock:          p.GroupLocks,
		prodLock:           p.ProductionLock,
		writer:             p.Writer,
		editor:             p.Editor,
		tts:                p.TTS,
		publisher:          p.Publisher,
		track:              p.Analytics,
		log:                logger.Get(),
		minArticles:        p.MinArticles,
		platforms:          p.Platforms,
		generationLockTTL:  p.GenerationLockTTL,
		productionLockTTL:  p.ProductionLockTTL,
		scriptSoft:         p.ScriptSoftTimeout,
		scriptHard:         p.ScriptHardTimeout,
		editSoft:           p.EditSoftTimeout,
		editHard:           p.EditHardTimeout,
		ttsSoft:            p.TTSSoftTimeout,
		ttsHard:            p.TTSHardTimeout,
		publishTimeout:     p.PublishTimeout,
	}
}

// Generate runs the full episode generation state machine for a group,
// returning the new episode's ID. It is safe to call concurrently for
// distinct groups; concurrent calls for the same group are serialized by
// the per-group generation lock, returning ErrLockHeld to every caller
// but the one that acquires it.
func (p *Pipeline) Generate(ctx context.Context, groupID string) (string, error) {
	acquired, err := p.groupLock.Acquire(groupID, p.generationLockTTL)
	if err != nil {
		return "", fmt.Errorf("failed to acquire group lock: %w", err)
	}
	if !acquired {
		return "", ErrLockHeld
	}
	defer func() {
		if err := p.groupLock.Release(groupID); err != nil {
			p.log.Warn("episode pipeline: failed to release group lock", "group_id", groupID, "error", err)
		}
	}()

	group, err := p.db.Groups().Get(ctx, groupID)
	if err != nil {
		return "", fmt.Errorf("failed to load group: %w", err)
	}
	if group == nil || !group.Active || len(group.Presenters) == 0 || group.WriterProfile == "" {
		return "", ErrInactiveGroup
	}

	// Production lock acquisition failure is best-effort: it is caught
	// and logged, never a hard failure.
	episodeID := uuid.NewString()
	if err := p.prodLock.Set(groupID, episodeID, p.productionLockTTL); err != nil {
		p.log.Warn("episode pipeline: failed to set production lock", "group_id", groupID, "episode_id", episodeID, "error", err)
	}
	defer func() {
		state, held, err := p.prodLock.Inspect()
		if err == nil && held && state.Manual {
			return
		}
		if err := p.prodLock.Clear(); err != nil {
			p.log.Warn("episode pipeline: failed to clear production lock", "group_id", groupID, "error", err)
		}
	}()

	episode := &core.Episode{
		ID:        episodeID,
		GroupID:   groupID,
		Status:    core.EpisodeStatusDraft,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := p.db.Episodes().Create(ctx, episode); err != nil {
		return "", fmt.Errorf("failed to create draft episode: %w", err)
	}

	snapshot, err := p.coll.Snapshot(ctx, groupID, episode.ID)
	if errors.Is(err, collection.ErrInsufficientContent) {
		p.fail(ctx, episode, "gather", "insufficient-articles")
		return episode.ID, nil
	}
	if err != nil {
		p.fail(ctx, episode, "gather", err.Error())
		return episode.ID, nil
	}

	episode.CollectionID = snapshot.ID
	articles, err := p.db.Articles().ListByCollection(ctx, snapshot.ID)
	if err != nil {
		p.fail(ctx, episode, "gather", err.Error())
		return episode.ID, nil
	}
	if len(articles) < p.minArticles {
		p.fail(ctx, episode, "gather", "insufficient-articles")
		return episode.ID, nil
	}

	if !p.runScript(ctx, episode, group, articles) {
		return episode.ID, nil
	}
	if !p.runEdit(ctx, episode, group) {
		return episode.ID, nil
	}
	p.runMetadata(ctx, episode, snapshot)
	audioURL, ok := p.runSynthesize(ctx, episode, group)
	if !ok {
		return episode.ID, nil
	}
	p.runPublish(ctx, episode, audioURL)

	return episode.ID, nil
}

func (p *Pipeline) runScript(ctx context.Context, episode *core.Episode, group *core.PodcastGroup, articles []core.Article) bool {
	start := time.Now()
	req := collab.ScriptRequest{
		SnapshotID:    episode.CollectionID,
		Presenters:    group.Presenters,
		WriterProfile: group.WriterProfile,
		TargetMinutes: group.TargetMinutes,
	}
	for _, a := range articles {
		req.Articles = append(req.Articles, collab.ScriptArticle{ID: a.ID, Title: a.Title, Summary: a.Summary, Body: a.Body})
	}

	cctx, cancel := context.WithTimeout(ctx, p.scriptHard)
	defer cancel()
	result, err := p.writer.Script(cctx, req)
	p.logSoftBudget("script", start, p.scriptSoft)
	if err != nil {
		p.fail(ctx, episode, "writer", err.Error())
		return false
	}

	episode.Script = CleanScript(result.Script)
	episode.Status = core.EpisodeStatusScripted
	episode.UpdatedAt = time.Now().UTC()
	if err := p.persistStage(ctx, episode, "writer"); err != nil {
		return false
	}
	return true
}

func (p *Pipeline) runEdit(ctx context.Context, episode *core.Episode, group *core.PodcastGroup) bool {
	start := time.Now()
	req := collab.EditRequest{
		Script: episode.Script,
		Context: collab.EditContext{
			GroupName:     group.Name,
			TargetMinutes: group.TargetMinutes,
		},
	}

	cctx, cancel := context.WithTimeout(ctx, p.editHard)
	defer cancel()
	result, err := p.editor.Edit(cctx, req)
	p.logSoftBudget("edit", start, p.editSoft)

	if err != nil || result.EditedScript == "" {
		episode.EditedScript = episode.Script
		episode.DegradedEditor = true
	} else {
		episode.EditedScript = CleanScript(result.EditedScript)
	}

	episode.Status = core.EpisodeStatusEdited
	episode.UpdatedAt = time.Now().UTC()
	if err := p.persistStage(ctx, episode, "editor"); err != nil {
		return false
	}
	return true
}

// runMetadata is best-effort: failures never fail the episode, only
// fall back to synthesized metadata from the snapshot.
func (p *Pipeline) runMetadata(ctx context.Context, episode *core.Episode, snapshot *core.Collection) {
	cctx, cancel := context.WithTimeout(ctx, p.scriptHard)
	defer cancel()
	result, err := p.writer.Metadata(cctx, collab.MetadataRequest{EpisodeID: episode.ID, Script: episode.EditedScript})
	if err != nil {
		episode.Title = "Episode " + episode.ID
		episode.Description = "Generated from " + snapshotName(snapshot)
		episode.Tags = nil
	} else {
		episode.Title = result.Title
		episode.Description = result.Description
		episode.Tags = result.Tags
	}
	episode.UpdatedAt = time.Now().UTC()
	if err := p.persistStage(ctx, episode, "metadata"); err != nil {
		p.log.Warn("episode pipeline: failed to persist metadata", "episode_id", episode.ID, "error", err)
	}
}

func (p *Pipeline) runSynthesize(ctx context.Context, episode *core.Episode, group *core.PodcastGroup) (string, bool) {
	start := time.Now()
	voiceMap := make(map[string]string, len(group.Presenters))
	for i, presenter := range group.Presenters {
		voiceMap[strconv.Itoa(i+1)] = presenter
	}

	cctx, cancel := context.WithTimeout(ctx, p.ttsHard)
	defer cancel()
	result, err := p.tts.Synthesize(cctx, collab.SynthesizeRequest{
		EpisodeID: episode.ID,
		Script:    episode.EditedScript,
		VoiceMap:  voiceMap,
	})
	p.logSoftBudget("tts", start, p.ttsSoft)
	if err != nil {
		p.fail(ctx, episode, "tts", err.Error())
		return "", false
	}

	audio := &core.AudioFile{
		ID:          uuid.NewString(),
		EpisodeID:   episode.ID,
		URL:         result.AudioURL,
		DurationSec: result.DurationSeconds,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.db.AudioFiles().Create(ctx, audio); err != nil {
		p.fail(ctx, episode, "tts", err.Error())
		return "", false
	}

	episode.AudioFileID = audio.ID
	episode.Status = core.EpisodeStatusVoiced
	episode.UpdatedAt = time.Now().UTC()
	if err := p.persistStage(ctx, episode, "tts"); err != nil {
		return "", false
	}
	return result.AudioURL, true
}

// runPublish hands the episode to the Publisher. An empty result is not
// an error — it only prevents the transition to published, leaving the
// episode at voiced and retriable via a later Retry call (see Retry).
func (p *Pipeline) runPublish(ctx context.Context, episode *core.Episode, audioURL string) {
	cctx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()
	result, err := p.publisher.Publish(cctx, collab.PublishRequest{
		EpisodeID: episode.ID,
		AudioURL:  audioURL,
		Metadata:  collab.MetadataResult{Title: episode.Title, Description: episode.Description, Tags: episode.Tags},
		Platforms: p.platforms,
	})
	if err != nil {
		p.fail(ctx, episode, "publish", err.Error())
		return
	}
	if len(result.Results) == 0 {
		if p.track != nil {
			p.track.TrackEpisodeStage(ctx, episode.GroupID, episode.ID, "publish", false, "no-platforms")
		}
		return
	}

	for _, outcome := range result.Results {
		if outcome.URL != "" {
			episode.PublishURL = outcome.URL
			break
		}
	}
	episode.Status = core.EpisodeStatusPublished
	episode.UpdatedAt = time.Now().UTC()
	if err := p.persistStage(ctx, episode, "publish"); err != nil {
		return
	}
	if err := p.db.Groups().UpdateLastEpisodeAt(ctx, episode.GroupID, episode.UpdatedAt); err != nil {
		p.log.Warn("episode pipeline: failed to record last episode time", "group_id", episode.GroupID, "error", err)
	}
}

func (p *Pipeline) persistStage(ctx context.Context, episode *core.Episode, stage string) error {
	if err := p.db.Episodes().UpdateStage(ctx, episode); err != nil {
		p.log.Error("episode pipeline: failed to persist stage", "episode_id", episode.ID, "stage", stage, "error", err)
		return err
	}
	if p.track != nil {
		p.track.TrackEpisodeStage(ctx, episode.GroupID, episode.ID, stage, false, "")
	}
	return nil
}

func (p *Pipeline) fail(ctx context.Context, episode *core.Episode, stage, reason string) {
	episode.Status = core.EpisodeStatusFailed
	episode.FailureStage = stage
	episode.FailureError = reason
	episode.UpdatedAt = time.Now().UTC()
	if err := p.db.Episodes().MarkFailed(ctx, episode.ID, stage, reason); err != nil {
		p.log.Error("episode pipeline: failed to persist failure", "episode_id", episode.ID, "stage", stage, "error", err)
	}
	if p.track != nil {
		p.track.TrackEpisodeStage(ctx, episode.GroupID, episode.ID, stage, true, reason)
	}
}

func (p *Pipeline) logSoftBudget(stage string, start time.Time, soft time.Duration) {
	if elapsed := time.Since(start); elapsed > soft {
		p.log.Warn("episode pipeline: stage exceeded soft budget", "stage", stage, "elapsed", elapsed, "soft_budget", soft)
	}
}

func snapshotName(c *core.Collection) string {
	if c == nil {
		return ""
	}
	return "collection " + c.ID
}

// Retry re-attempts the publish step for an episode stuck at voiced
// with no publish URL. It does not re-acquire the group generation
// lock: a voiced episode is no longer "in flight" for non-overlap
// purposes.
func (p *Pipeline) Retry(ctx context.Context, episodeID string) error {
	episode, err := p.db.Episodes().Get(ctx, episodeID)
	if err != nil {
		return fmt.Errorf("failed to load episode: %w", err)
	}
	if episode == nil || episode.Status != core.EpisodeStatusVoiced {
		return fmt.Errorf("episode: %s is not retriable from status %q", episodeID, episodeStatusOf(episode))
	}

	audio, err := p.db.AudioFiles().GetByEpisodeID(ctx, episodeID)
	if err != nil {
		return fmt.Errorf("failed to load audio file: %w", err)
	}
	audioURL := ""
	if audio != nil {
		audioURL = audio.URL
	}

	p.runPublish(ctx, episode, audioURL)
	return nil
}

func episodeStatusOf(e *core.Episode) core.EpisodeStatus {
	if e == nil {
		return ""
	}
	return e.Status
}
