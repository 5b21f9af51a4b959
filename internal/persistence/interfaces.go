// Package persistence provides the durable-store abstraction: repository
// interfaces over the podcast orchestration entities, plus a Postgres
// implementation. Every repository accepts a context and is safe to use
// either standalone or bound to a transaction, so the collection manager's
// atomic snapshot can compose repository calls inside one BeginTx.
package persistence

import (
	"context"
	"time"

	"overseer/internal/core"
)

// ArticleRepository handles article persistence operations.
type ArticleRepository interface {
	// Create inserts a newly submitted article in pending status.
	Create(ctx context.Context, article *core.Article) error

	// Get retrieves an article by ID.
	Get(ctx context.Context, id string) (*core.Article, error)

	// GetByFingerprint retrieves an article by its dedup fingerprint,
	// scoped to a group, for callers that want a durable-store fallback
	// beyond the fast-state TTL window.
	GetByFingerprint(ctx context.Context, groupID, fingerprint string) (*core.Article, error)

	// ListPending retrieves articles awaiting review for a group, oldest first.
	ListPending(ctx context.Context, groupID string, limit int) ([]core.Article, error)

	// ListByCollection retrieves the accepted articles assigned to a collection.
	ListByCollection(ctx context.Context, collectionID string) ([]core.Article, error)

	// UpdateReview records a completed review's verdict: tier, confidence,
	// summary, tags, status and ReviewedAt.
	UpdateReview(ctx context.Context, article *core.Article) error

	// AssignToCollection marks an accepted article as belonging to a collection.
	AssignToCollection(ctx context.Context, articleID, collectionID string) error

	// List retrieves articles newest first, paginated by Limit and Offset,
	// for the admin surface. SortBy, Order and Filter are not applied.
	List(ctx context.Context, opts ListOptions) ([]core.Article, error)
}

// GroupRepository handles podcast group persistence operations.
type GroupRepository interface {
	// Create inserts a new podcast group.
	Create(ctx context.Context, group *core.PodcastGroup) error

	// Get retrieves a group by ID.
	Get(ctx context.Context, id string) (*core.PodcastGroup, error)

	// List retrieves every group, used by the cadence controller's tick fan-out.
	List(ctx context.Context) ([]core.PodcastGroup, error)

	// UpdateCadence persists an escalated (never compressed) cadence bucket.
	UpdateCadence(ctx context.Context, groupID string, cadence core.CadenceBucket) error

	// UpdateActiveCollection records which collection is currently building for a group.
	UpdateActiveCollection(ctx context.Context, groupID, collectionID string) error

	// UpdateLastEpisodeAt records when a group's latest episode was published.
	UpdateLastEpisodeAt(ctx context.Context, groupID string, when time.Time) error

	// UpdateLastTickAt records when the cadence controller last evaluated a group.
	UpdateLastTickAt(ctx context.Context, groupID string, when time.Time) error
}

// CollectionRepository handles collection lifecycle persistence operations.
type CollectionRepository interface {
	// Create opens a new building collection for a group.
	Create(ctx context.Context, collection *core.Collection) error

	// Get retrieves a collection by ID.
	Get(ctx context.Context, id string) (*core.Collection, error)

	// GetActiveForGroup retrieves the single building collection for a group, if any.
	GetActiveForGroup(ctx context.Context, groupID string) (*core.Collection, error)

	// AppendArticle appends an accepted article's ID to a building collection.
	AppendArticle(ctx context.Context, collectionID, articleID string) error

	// Snapshot atomically seals a building collection, links it to the
	// episode it was generated for, and records its successor. Callers
	// must run this inside a transaction (see Transaction.Collections).
	Snapshot(ctx context.Context, collectionID, successorID, episodeID string, snapshotAt time.Time) error

	// ListExpiredBuilding retrieves building collections past a staleness deadline.
	ListExpiredBuilding(ctx context.Context, olderThan time.Time) ([]core.Collection, error)

	// MarkExpired transitions a building collection directly to expired
	// without a successor, used when a stale collection never reached readiness.
	MarkExpired(ctx context.Context, collectionID string) error
}

// EpisodeRepository handles episode persistence operations.
type EpisodeRepository interface {
	// Create inserts a new episode in draft status.
	Create(ctx context.Context, episode *core.Episode) error

	// Get retrieves an episode by ID.
	Get(ctx context.Context, id string) (*core.Episode, error)

	// GetByCollectionID retrieves the episode generated from a given collection, if any.
	GetByCollectionID(ctx context.Context, collectionID string) (*core.Episode, error)

	// ListByGroup retrieves episodes for a group, most recent first.
	ListByGroup(ctx context.Context, groupID string, limit int) ([]core.Episode, error)

	// UpdateStage persists a stage transition: status plus whatever stage
	// output (script, edited script, title, audio file, publish URL) advanced.
	UpdateStage(ctx context.Context, episode *core.Episode) error

	// MarkFailed records a terminal failure at a given stage.
	MarkFailed(ctx context.Context, episodeID, stage, errMsg string) error
}

// AudioFileRepository handles synthesized audio persistence operations.
type AudioFileRepository interface {
	// Create inserts a new audio file record.
	Create(ctx context.Context, audio *core.AudioFile) error

	// Get retrieves an audio file by ID.
	Get(ctx context.Context, id string) (*core.AudioFile, error)

	// GetByEpisodeID retrieves the audio file produced for an episode, if any.
	GetByEpisodeID(ctx context.Context, episodeID string) (*core.AudioFile, error)
}

// ListOptions provides common filtering and pagination options.
type ListOptions struct {
	Limit  int               // Maximum number of results (0 for no limit)
	Offset int               // Number of results to skip
	SortBy string            // Field to sort by
	Order  string            // "asc" or "desc"
	Filter map[string]string // Key-value filters
}

// Database aggregates all repositories behind the durable store.
type Database interface {
	Articles() ArticleRepository
	Groups() GroupRepository
	Collections() CollectionRepository
	Episodes() EpisodeRepository
	AudioFiles() AudioFileRepository

	// Close closes the database connection.
	Close() error

	// Ping verifies the database connection.
	Ping(ctx context.Context) error

	// BeginTx starts a new transaction. The Collection Manager's snapshot
	// operation is the primary caller: sealing a building collection and
	// opening its successor must commit or fail together.
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction exposing the same
// repository accessors as Database, bound to the transaction.
type Transaction interface {
	Commit() error
	Rollback() error

	Articles() ArticleRepository
	Groups() GroupRepository
	Collections() CollectionRepository
	Episodes() EpisodeRepository
	AudioFiles() AudioFileRepository
}
