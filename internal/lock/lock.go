// Package lock implements the Production Lock (C5) and the per-group
// generation lock that the Cadence Controller (C4) and Episode Pipeline
// (C6) use to guarantee non-overlap, as typed accessors over the
// fast-state store. Locks are process-wide and are not cached
// in-process beyond a single read.
package lock

import (
	"encoding/json"
	"fmt"
	"time"

	"overseer/internal/faststate"
)

const productionLockKey = "podcast:production:active"

func groupLockKey(groupID string) string {
	return fmt.Sprintf("overseer:group:%s:lock", groupID)
}

// GenerationLocks acquires and releases the per-group non-overlap lock
// that the Episode Pipeline holds for a generation run and the Cadence
// Controller checks before dispatching GENERATE.
type GenerationLocks struct {
	store *faststate.Store
}

// NewGenerationLocks wraps a fast-state store with group-lock accessors.
func NewGenerationLocks(store *faststate.Store) *GenerationLocks {
	return &GenerationLocks{store: store}
}

// Acquire attempts to take the group's generation lock with the given
// TTL. It reports false, not an error, when the lock is already held —
// the Episode Pipeline translates that into ErrLockHeld.
func (g *GenerationLocks) Acquire(groupID string, ttl time.Duration) (bool, error) {
	acquired, err := g.store.SetIfAbsent(groupLockKey(groupID), time.Now().UTC().Format(time.RFC3339Nano), ttl)
	if err != nil {
		return false, fmt.Errorf("failed to acquire group lock for %q: %w", groupID, err)
	}
	return acquired, nil
}

// Release clears the group's generation lock. Safe to call even if the
// lock was never held or already expired.
func (g *GenerationLocks) Release(groupID string) error {
	if err := g.store.Delete(groupLockKey(groupID)); err != nil {
		return fmt.Errorf("failed to release group lock for %q: %w", groupID, err)
	}
	return nil
}

// Held reports whether the group's generation lock is currently set.
func (g *GenerationLocks) Held(groupID string) (bool, error) {
	_, ok, err := g.store.Get(groupLockKey(groupID))
	return ok, err
}

// ProductionState is the value carried by the production lock while it is
// set: which group and episode are generating, when it started, and
// whether the hold is a manual admin pause rather than an in-flight
// pipeline run.
type ProductionState struct {
	GroupID   string    `json:"group_id"`
	EpisodeID string    `json:"episode_id"`
	StartedAt time.Time `json:"started_at"`
	Manual    bool      `json:"manual"`
}

// ProductionLock is the singleton process-wide lock that C6 sets at
// pipeline entry and clears at exit, pausing C2's workers meanwhile.
type ProductionLock struct {
	store *faststate.Store
}

// NewProductionLock wraps a fast-state store with production-lock
// accessors.
func NewProductionLock(store *faststate.Store) *ProductionLock {
	return &ProductionLock{store: store}
}

// Set marks the production lock active for the given group/episode, with
// the default (non-manual) TTL. Only C6 calls this.
func (p *ProductionLock) Set(groupID, episodeID string, ttl time.Duration) error {
	return p.set(ProductionState{GroupID: groupID, EpisodeID: episodeID, StartedAt: time.Now().UTC()}, ttl)
}

// SetManual marks the production lock active as an admin-initiated pause.
// Its Manual flag keeps pipeline completion elsewhere from clearing it.
func (p *ProductionLock) SetManual(ttl time.Duration) error {
	return p.set(ProductionState{StartedAt: time.Now().UTC(), Manual: true}, ttl)
}

func (p *ProductionLock) set(state ProductionState, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode production lock state: %w", err)
	}
	if err := p.store.Set(productionLockKey, string(payload), ttl); err != nil {
		return fmt.Errorf("failed to set production lock: %w", err)
	}
	return nil
}

// Clear releases the production lock unconditionally. Manual pauses are
// only cleared by an explicit admin resume call, never by pipeline exit —
// callers must check Inspect().Manual before clearing automatically.
func (p *ProductionLock) Clear() error {
	if err := p.store.Delete(productionLockKey); err != nil {
		return fmt.Errorf("failed to clear production lock: %w", err)
	}
	return nil
}

// Inspect reports the current production lock state. The second return
// is false when the lock is not set (or has expired).
func (p *ProductionLock) Inspect() (ProductionState, bool, error) {
	raw, ok, err := p.store.Get(productionLockKey)
	if err != nil {
		return ProductionState{}, false, fmt.Errorf("failed to inspect production lock: %w", err)
	}
	if !ok {
		return ProductionState{}, false, nil
	}

	var state ProductionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return ProductionState{}, false, fmt.Errorf("failed to decode production lock state: %w", err)
	}
	return state, true, nil
}

// Held reports only whether the production lock is currently set,
// without decoding its payload — the shape C2 workers poll before every
// dequeue.
func (p *ProductionLock) Held() (bool, error) {
	_, ok, err := p.Inspect()
	return ok, err
}
