// Package cadence implements the Cadence Controller (C4): a periodic
// tick that decides, per group, whether to skip or generate an episode,
// escalating (never compressing) the group's publishing bucket when
// content isn't ready at the preferred cadence.
package cadence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"overseer/internal/collection"
	"overseer/internal/core"
	"overseer/internal/faststate"
	"overseer/internal/lock"
	"overseer/internal/logger"
	"overseer/internal/persistence"
)

// bucketOrder is the escalation ladder: the controller may move right,
// never left, within one decision.
var bucketOrder = []core.CadenceBucket{core.CadenceDaily, core.CadenceThreeDay, core.CadenceWeekly}

func bucketIndex(b core.CadenceBucket) int {
	for i, candidate := range bucketOrder {
		if candidate == b {
			return i
		}
	}
	return 0
}

// DecisionKind is the outcome of one group's tick evaluation.
type DecisionKind string

const (
	Skip     DecisionKind = "skip"
	Generate DecisionKind = "generate"
)

// Decision is the result of evaluating a single group at tick time.
type Decision struct {
	Kind   DecisionKind
	Bucket core.CadenceBucket
	Reason string
}

// Status is the per-group readable cadence state exposed by the admin
// surface.
type Status struct {
	GroupID          string            `json:"group_id"`
	CurrentBucket    core.CadenceBucket `json:"current_bucket"`
	LastReason       string            `json:"last_reason"`
	NextEligibleAt   time.Time         `json:"next_eligible_at"`
	PendingApology   bool              `json:"pending_apology"`
	EvaluatedAt      time.Time         `json:"evaluated_at"`
}

// Dispatcher is the narrow capability the Cadence Controller hands a
// GENERATE decision to. The Episode Pipeline satisfies this: its
// Generate method owns the group lock for the run and releases it on
// every exit path, so the Controller never needs to hold or release
// the lock itself once it has dispatched.
type Dispatcher interface {
	Generate(ctx context.Context, groupID string) (string, error)
}

// Params bundles the Controller's dependencies and tuning knobs.
type Params struct {
	DB                persistence.Database
	Collections       *collection.Manager
	Locks             *lock.GenerationLocks
	Store             *faststate.Store
	Dispatcher        Dispatcher
	TickInterval      time.Duration
	DailyWindow       time.Duration
	ThreeDayWindow    time.Duration
	WeeklyWindow      time.Duration
	GenerationLockTTL time.Duration
}

// Controller is the Cadence Controller.
type Controller struct {
	db         persistence.Database
	coll       *collection.Manager
	locks      *lock.GenerationLocks
	store      *faststate.Store
	dispatcher Dispatcher
	tick       time.Duration
	windows    map[core.CadenceBucket]time.Duration
	lockTTL    time.Duration
	log        *slog.Logger
}

// New creates a Controller from Params.
func New(p Params) *Controller {
	return &Controller{
		db:         p.DB,
		coll:       p.Collections,
		locks:      p.Locks,
		store:      p.Store,
		dispatcher: p.Dispatcher,
		tick:       p.TickInterval,
		windows: map[core.CadenceBucket]time.Duration{
			core.CadenceDaily:    p.DailyWindow,
			core.CadenceThreeDay: p.ThreeDayWindow,
			core.CadenceWeekly:   p.WeeklyWindow,
		},
		lockTTL: p.GenerationLockTTL,
		log:     logger.Get(),
	}
}

// Run blocks, ticking every TickInterval until ctx is canceled, evaluating
// every group in turn on each tick.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Tick(ctx); err != nil {
				c.log.Error("cadence tick failed", "error", err)
			}
		}
	}
}

// Tick evaluates every group once and dispatches GENERATE decisions to
// the configured Dispatcher. The group lock itself is owned by the
// Dispatcher (the Episode Pipeline acquires and releases it around the
// full generation run); Tick only checks whether it is already held so
// it doesn't dispatch a group that's mid-generation from a prior tick.
func (c *Controller) Tick(ctx context.Context) error {
	groups, err := c.db.Groups().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	now := time.Now().UTC()
	for _, group := range groups {
		decision, err := c.Evaluate(ctx, group, now)
		if err != nil {
			c.log.Error("cadence evaluation failed", "group_id", group.ID, "error", err)
			continue
		}
		if err := c.db.Groups().UpdateLastTickAt(ctx, group.ID, now); err != nil {
			c.log.Warn("failed to record tick time", "group_id", group.ID, "error", err)
		}
		if decision.Kind != Generate {
			continue
		}

		if decision.Bucket != group.Cadence && bucketIndex(decision.Bucket) > bucketIndex(group.Cadence) {
			if err := c.db.Groups().UpdateCadence(ctx, group.ID, decision.Bucket); err != nil {
				c.log.Warn("failed to persist escalated cadence", "group_id", group.ID, "error", err)
			}
		}

		held, err := c.locks.Held(group.ID)
		if err != nil {
			c.log.Warn("failed to check generation lock", "group_id", group.ID, "error", err)
			continue
		}
		if held {
			c.setStatus(group.ID, Status{GroupID: group.ID, CurrentBucket: decision.Bucket, LastReason: "in-progress", EvaluatedAt: now})
			continue
		}
		if c.dispatcher == nil {
			continue
		}

		groupID := group.ID
		go func() {
			if _, err := c.dispatcher.Generate(context.Background(), groupID); err != nil {
				c.log.Warn("episode generation dispatch failed", "group_id", groupID, "error", err)
			}
		}()
	}
	return nil
}

// Evaluate runs the decision algorithm for a single group at wall time
// now. It does not check the generation lock or persist the escalated
// bucket — Tick does both for GENERATE decisions, and the Episode
// Pipeline acquires the lock. Evaluate does record the decision in the
// controller's per-group status.
func (c *Controller) Evaluate(ctx context.Context, group core.PodcastGroup, now time.Time) (Decision, error) {
	since := time.Duration(1<<63 - 1)
	if !group.LastEpisodeAt.IsZero() {
		since = now.Sub(group.LastEpisodeAt)
	}

	active, err := c.coll.GetActive(ctx, group.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve active collection: %w", err)
	}
	ready, err := c.coll.Readiness(ctx, active.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to compute readiness: %w", err)
	}

	preferred := group.Cadence
	if preferred == "" {
		preferred = core.CadenceDaily
	}
	idx := bucketIndex(preferred)

	for {
		bucket := bucketOrder[idx]
		window := c.windows[bucket]

		if since < window {
			decision := Decision{Kind: Skip, Bucket: bucket, Reason: "not-due"}
			c.recordStatus(group.ID, bucket, decision.Reason, group.LastEpisodeAt.Add(window), false, now)
			return decision, nil
		}

		if ready {
			decision := Decision{Kind: Generate, Bucket: bucket, Reason: "ready"}
			c.recordStatus(group.ID, bucket, decision.Reason, now, false, now)
			return decision, nil
		}

		if idx == len(bucketOrder)-1 {
			count, err := c.coll.ArticleCount(ctx, active.ID)
			if err != nil {
				return Decision{}, fmt.Errorf("failed to count collection articles: %w", err)
			}
			if count > 0 {
				decision := Decision{Kind: Generate, Bucket: bucket, Reason: "weekly-forced"}
				c.recordStatus(group.ID, bucket, decision.Reason, now, false, now)
				return decision, nil
			}
			decision := Decision{Kind: Skip, Bucket: bucket, Reason: "empty-weekly"}
			c.recordStatus(group.ID, bucket, decision.Reason, now.Add(c.windows[core.CadenceWeekly]), true, now)
			return decision, nil
		}

		nextBucket := bucketOrder[idx+1]
		nextWindow := c.windows[nextBucket]
		if since < nextWindow {
			decision := Decision{Kind: Skip, Bucket: bucket, Reason: "insufficient-content-retry"}
			c.recordStatus(group.ID, bucket, decision.Reason, group.LastEpisodeAt.Add(nextWindow), false, now)
			return decision, nil
		}
		idx++
	}
}

func statusKey(groupID string) string { return "cadence:status:" + groupID }

func (c *Controller) recordStatus(groupID string, bucket core.CadenceBucket, reason string, nextEligible time.Time, apology bool, now time.Time) {
	c.setStatus(groupID, Status{
		GroupID:        groupID,
		CurrentBucket:  bucket,
		LastReason:     reason,
		NextEligibleAt: nextEligible,
		PendingApology: apology,
		EvaluatedAt:    now,
	})
}

func (c *Controller) setStatus(groupID string, status Status) {
	if c.store == nil {
		return
	}
	payload, err := json.Marshal(status)
	if err != nil {
		c.log.Warn("failed to encode cadence status", "group_id", groupID, "error", err)
		return
	}
	if err := c.store.Set(statusKey(groupID), string(payload), 0); err != nil {
		c.log.Warn("failed to persist cadence status", "group_id", groupID, "error", err)
	}
}

// Status returns the last-recorded cadence status for a group, for the
// admin inspect surface.
func (c *Controller) Status(groupID string) (Status, bool, error) {
	raw, ok, err := c.store.Get(statusKey(groupID))
	if err != nil {
		return Status{}, false, fmt.Errorf("failed to read cadence status: %w", err)
	}
	if !ok {
		return Status{}, false, nil
	}
	var status Status
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return Status{}, false, fmt.Errorf("failed to decode cadence status: %w", err)
	}
	return status, true, nil
}
