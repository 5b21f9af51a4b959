// Package collection implements the Collection Manager (C3): it
// maintains exactly one building collection per group, seals it into a
// snapshot when an episode starts generating, and opens the successor
// that keeps absorbing newly accepted articles.
package collection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"overseer/internal/core"
	"overseer/internal/persistence"
)

// ErrInsufficientContent is returned by Snapshot when the active
// collection has fewer than MinArticles articles.
var ErrInsufficientContent = errors.New("collection: insufficient content")

// Manager is the Collection Manager.
type Manager struct {
	db            persistence.Database
	minArticles   int
	stalenessMax  time.Duration
	collectionTTL time.Duration
}

// New creates a Manager backed by db, with the readiness/expiration
// thresholds from config.
func New(db persistence.Database, minArticles int, stalenessMax, collectionTTL time.Duration) *Manager {
	return &Manager{
		db:            db,
		minArticles:   minArticles,
		stalenessMax:  stalenessMax,
		collectionTTL: collectionTTL,
	}
}

// GetActive returns the group's building collection, creating one if
// none is open yet.
func (m *Manager) GetActive(ctx context.Context, groupID string) (*core.Collection, error) {
	existing, err := m.db.Collections().GetActiveForGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active collection: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	c := &core.Collection{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		Status:    core.CollectionStatusBuilding,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.db.Collections().Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}
	return c, nil
}

// Assign attaches an accepted article to the active collection of each
// listed group, creating the active collection for a group if absent.
func (m *Manager) Assign(ctx context.Context, articleID string, groupIDs []string) error {
	for _, groupID := range groupIDs {
		active, err := m.GetActive(ctx, groupID)
		if err != nil {
			return fmt.Errorf("failed to resolve active collection for group %s: %w", groupID, err)
		}
		if err := m.db.Articles().AssignToCollection(ctx, articleID, active.ID); err != nil {
			return fmt.Errorf("failed to assign article %s to collection %s: %w", articleID, active.ID, err)
		}
		if err := m.db.Collections().AppendArticle(ctx, active.ID, articleID); err != nil {
			return fmt.Errorf("failed to append article %s to collection %s: %w", articleID, active.ID, err)
		}
	}
	return nil
}

// Readiness reports whether a collection has at least MinArticles
// articles and its oldest article is younger than StalenessMax. The
// ready status is advisory; Snapshot re-checks the article count, not
// staleness, at generation time.
func (m *Manager) Readiness(ctx context.Context, collectionID string) (bool, error) {
	articles, err := m.db.Articles().ListByCollection(ctx, collectionID)
	if err != nil {
		return false, fmt.Errorf("failed to list collection articles: %w", err)
	}
	return m.readinessOf(articles), nil
}

// ArticleCount returns how many articles a collection currently holds,
// for the Cadence Controller's weekly empty-bucket check.
func (m *Manager) ArticleCount(ctx context.Context, collectionID string) (int, error) {
	articles, err := m.db.Articles().ListByCollection(ctx, collectionID)
	if err != nil {
		return 0, fmt.Errorf("failed to list collection articles: %w", err)
	}
	return len(articles), nil
}

func (m *Manager) readinessOf(articles []core.Article) bool {
	if len(articles) < m.minArticles {
		return false
	}
	oldest := articles[0].SubmittedAt
	for _, a := range articles[1:] {
		if a.SubmittedAt.Before(oldest) {
			oldest = a.SubmittedAt
		}
	}
	return time.Since(oldest) < m.stalenessMax
}

// Snapshot atomically seals the group's active collection and opens its
// successor, returning the sealed (now-snapshot) collection. It fails
// with ErrInsufficientContent, leaving the building collection
// untouched, if the collection has fewer than MinArticles articles.
func (m *Manager) Snapshot(ctx context.Context, groupID, episodeID string) (*core.Collection, error) {
	active, err := m.db.Collections().GetActiveForGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active collection: %w", err)
	}
	if active == nil {
		return nil, fmt.Errorf("collection: no active collection for group %s", groupID)
	}

	articles, err := m.db.Articles().ListByCollection(ctx, active.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection articles: %w", err)
	}
	if len(articles) < m.minArticles {
		return nil, ErrInsufficientContent
	}

	tx, err := m.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	successor := &core.Collection{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		Status:    core.CollectionStatusBuilding,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Collections().Create(ctx, successor); err != nil {
		return nil, fmt.Errorf("failed to create successor collection: %w", err)
	}

	snapshotAt := time.Now().UTC()
	if err := tx.Collections().Snapshot(ctx, active.ID, successor.ID, episodeID, snapshotAt); err != nil {
		return nil, fmt.Errorf("failed to seal collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot transaction: %w", err)
	}

	active.Status = core.CollectionStatusSnapshot
	active.SnapshotAt = snapshotAt
	active.SuccessorID = successor.ID
	active.LinkedEpisodeID = episodeID
	return active, nil
}

// SweepExpired marks empty building collections older than collectionTTL
// as expired. Non-empty stale collections are left alone — expiration
// never discards accepted articles.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-m.collectionTTL)
	stale, err := m.db.Collections().ListExpiredBuilding(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired collections: %w", err)
	}

	expired := 0
	for _, c := range stale {
		articles, err := m.db.Articles().ListByCollection(ctx, c.ID)
		if err != nil {
			return expired, fmt.Errorf("failed to list articles for collection %s: %w", c.ID, err)
		}
		if len(articles) > 0 {
			continue
		}
		if err := m.db.Collections().MarkExpired(ctx, c.ID); err != nil {
			return expired, fmt.Errorf("failed to expire collection %s: %w", c.ID, err)
		}
		expired++
	}
	return expired, nil
}
