package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"overseer/internal/core"
)

// --- articles ---------------------------------------------------------

type postgresArticleRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresArticleRepo) query() queryExecer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *postgresArticleRepo) Create(ctx context.Context, a *core.Article) error {
	query := `
		INSERT INTO articles (
			id, group_id, title, body, source_url, fingerprint, status,
			tier, confidence, summary, tags, escalate, collection_id, reviewed_at, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.query().ExecContext(ctx, query,
		a.ID, a.GroupID, a.Title, a.Body, a.SourceURL, a.Fingerprint, a.Status,
		a.Tier, a.Confidence, a.Summary, pq.Array(a.Tags), a.Escalate, nullableString(a.CollectionID),
		nullableTime(a.ReviewedAt), a.SubmittedAt,
	)
	return err
}

func (r *postgresArticleRepo) Get(ctx context.Context, id string) (*core.Article, error) {
	row := r.query().QueryRowContext(ctx, articleSelect+` WHERE id = $1`, id)
	return scanArticleRow(row)
}

func (r *postgresArticleRepo) GetByFingerprint(ctx context.Context, groupID, fingerprint string) (*core.Article, error) {
	row := r.query().QueryRowContext(ctx, articleSelect+` WHERE group_id = $1 AND fingerprint = $2`, groupID, fingerprint)
	a, err := scanArticleRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (r *postgresArticleRepo) ListPending(ctx context.Context, groupID string, limit int) ([]core.Article, error) {
	if limit == 0 {
		limit = 100
	}
	rows, err := r.query().QueryContext(ctx,
		articleSelect+` WHERE group_id = $1 AND status = $2 ORDER BY submitted_at ASC LIMIT $3`,
		groupID, core.ArticleStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanArticleRows(rows)
}

func (r *postgresArticleRepo) ListByCollection(ctx context.Context, collectionID string) ([]core.Article, error) {
	rows, err := r.query().QueryContext(ctx, articleSelect+` WHERE collection_id = $1 ORDER BY submitted_at ASC`, collectionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanArticleRows(rows)
}

func (r *postgresArticleRepo) UpdateReview(ctx context.Context, a *core.Article) error {
	query := `
		UPDATE articles SET
			status = $2, tier = $3, confidence = $4, summary = $5, tags = $6, reviewed_at = $7
		WHERE id = $1
	`
	_, err := r.query().ExecContext(ctx, query, a.ID, a.Status, a.Tier, a.Confidence, a.Summary, pq.Array(a.Tags), nullableTime(a.ReviewedAt))
	return err
}

func (r *postgresArticleRepo) AssignToCollection(ctx context.Context, articleID, collectionID string) error {
	_, err := r.query().ExecContext(ctx, `UPDATE articles SET collection_id = $2 WHERE id = $1`, articleID, collectionID)
	return err
}

func (r *postgresArticleRepo) List(ctx context.Context, opts ListOptions) ([]core.Article, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = 100
	}
	rows, err := r.query().QueryContext(ctx, articleSelect+` ORDER BY submitted_at DESC LIMIT $1 OFFSET $2`, limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanArticleRows(rows)
}

const articleSelect = `
	SELECT id, group_id, title, body, source_url, fingerprint, status,
	       tier, confidence, summary, tags, escalate, collection_id, reviewed_at, submitted_at
	FROM articles`

func scanArticleRow(row *sql.Row) (*core.Article, error) {
	var a core.Article
	var tags pq.StringArray
	var collectionID sql.NullString
	var reviewedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.GroupID, &a.Title, &a.Body, &a.SourceURL, &a.Fingerprint, &a.Status,
		&a.Tier, &a.Confidence, &a.Summary, &tags, &a.Escalate, &collectionID, &reviewedAt, &a.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Tags = []string(tags)
	a.CollectionID = collectionID.String
	if reviewedAt.Valid {
		a.ReviewedAt = reviewedAt.Time
	}
	return &a, nil
}

func scanArticleRows(rows *sql.Rows) ([]core.Article, error) {
	var articles []core.Article
	for rows.Next() {
		var a core.Article
		var tags pq.StringArray
		var collectionID sql.NullString
		var reviewedAt sql.NullTime

		err := rows.Scan(
			&a.ID, &a.GroupID, &a.Title, &a.Body, &a.SourceURL, &a.Fingerprint, &a.Status,
			&a.Tier, &a.Confidence, &a.Summary, &tags, &a.Escalate, &collectionID, &reviewedAt, &a.SubmittedAt,
		)
		if err != nil {
			return nil, err
		}
		a.Tags = []string(tags)
		a.CollectionID = collectionID.String
		if reviewedAt.Valid {
			a.ReviewedAt = reviewedAt.Time
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// --- podcast groups -----------------------------------------------------

type postgresGroupRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresGroupRepo) query() queryExecer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const groupSelect = `
	SELECT id, name, active, cadence, presenters, writer_profile, target_minutes,
	       last_episode_at, last_tick_at, active_collection, created_at
	FROM podcast_groups`

func (r *postgresGroupRepo) Create(ctx context.Context, g *core.PodcastGroup) error {
	query := `
		INSERT INTO podcast_groups (
			id, name, active, cadence, presenters, writer_profile, target_minutes,
			last_episode_at, last_tick_at, active_collection, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.query().ExecContext(ctx, query,
		g.ID, g.Name, g.Active, g.Cadence, pq.Array(g.Presenters), g.WriterProfile, g.TargetMinutes,
		nullableTime(g.LastEpisodeAt), nullableTime(g.LastTickAt),
		nullableString(g.ActiveCollection), g.CreatedAt,
	)
	return err
}

func (r *postgresGroupRepo) Get(ctx context.Context, id string) (*core.PodcastGroup, error) {
	row := r.query().QueryRowContext(ctx, groupSelect+` WHERE id = $1`, id)
	return scanGroupRow(row)
}

func (r *postgresGroupRepo) List(ctx context.Context) ([]core.PodcastGroup, error) {
	rows, err := r.query().QueryContext(ctx, groupSelect+` ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var groups []core.PodcastGroup
	for rows.Next() {
		g, err := scanGroupRowCursor(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

func (r *postgresGroupRepo) UpdateCadence(ctx context.Context, groupID string, cadence core.CadenceBucket) error {
	_, err := r.query().ExecContext(ctx, `UPDATE podcast_groups SET cadence = $2 WHERE id = $1`, groupID, cadence)
	return err
}

func (r *postgresGroupRepo) UpdateActiveCollection(ctx context.Context, groupID, collectionID string) error {
	_, err := r.query().ExecContext(ctx, `UPDATE podcast_groups SET active_collection = $2 WHERE id = $1`, groupID, nullableString(collectionID))
	return err
}

func (r *postgresGroupRepo) UpdateLastEpisodeAt(ctx context.Context, groupID string, when time.Time) error {
	_, err := r.query().ExecContext(ctx, `UPDATE podcast_groups SET last_episode_at = $2 WHERE id = $1`, groupID, when)
	return err
}

func (r *postgresGroupRepo) UpdateLastTickAt(ctx context.Context, groupID string, when time.Time) error {
	_, err := r.query().ExecContext(ctx, `UPDATE podcast_groups SET last_tick_at = $2 WHERE id = $1`, groupID, when)
	return err
}

func scanGroupRow(row *sql.Row) (*core.PodcastGroup, error) {
	var g core.PodcastGroup
	var presenters pq.StringArray
	var lastEpisodeAt, lastTickAt sql.NullTime
	var activeCollection sql.NullString

	err := row.Scan(&g.ID, &g.Name, &g.Active, &g.Cadence, &presenters, &g.WriterProfile, &g.TargetMinutes,
		&lastEpisodeAt, &lastTickAt, &activeCollection, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	g.Presenters = []string(presenters)
	if lastEpisodeAt.Valid {
		g.LastEpisodeAt = lastEpisodeAt.Time
	}
	if lastTickAt.Valid {
		g.LastTickAt = lastTickAt.Time
	}
	g.ActiveCollection = activeCollection.String
	return &g, nil
}

func scanGroupRowCursor(rows *sql.Rows) (*core.PodcastGroup, error) {
	var g core.PodcastGroup
	var presenters pq.StringArray
	var lastEpisodeAt, lastTickAt sql.NullTime
	var activeCollection sql.NullString

	err := rows.Scan(&g.ID, &g.Name, &g.Active, &g.Cadence, &presenters, &g.WriterProfile, &g.TargetMinutes,
		&lastEpisodeAt, &lastTickAt, &activeCollection, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	g.Presenters = []string(presenters)
	if lastEpisodeAt.Valid {
		g.LastEpisodeAt = lastEpisodeAt.Time
	}
	if lastTickAt.Valid {
		g.LastTickAt = lastTickAt.Time
	}
	g.ActiveCollection = activeCollection.String
	return &g, nil
}

// --- collections ----------------------------------------------------------

type postgresCollectionRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresCollectionRepo) query() queryExecer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const collectionSelect = `
	SELECT id, group_id, status, article_ids, created_at, snapshot_at, successor_id, linked_episode_id
	FROM collections`

func (r *postgresCollectionRepo) Create(ctx context.Context, c *core.Collection) error {
	query := `
		INSERT INTO collections (id, group_id, status, article_ids, created_at, snapshot_at, successor_id, linked_episode_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.query().ExecContext(ctx, query,
		c.ID, c.GroupID, c.Status, pq.Array(c.ArticleIDs), c.CreatedAt,
		nullableTime(c.SnapshotAt), nullableString(c.SuccessorID), nullableString(c.LinkedEpisodeID),
	)
	return err
}

func (r *postgresCollectionRepo) Get(ctx context.Context, id string) (*core.Collection, error) {
	row := r.query().QueryRowContext(ctx, collectionSelect+` WHERE id = $1`, id)
	return scanCollectionRow(row)
}

func (r *postgresCollectionRepo) GetActiveForGroup(ctx context.Context, groupID string) (*core.Collection, error) {
	row := r.query().QueryRowContext(ctx, collectionSelect+` WHERE group_id = $1 AND status = $2`, groupID, core.CollectionStatusBuilding)
	c, err := scanCollectionRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (r *postgresCollectionRepo) AppendArticle(ctx context.Context, collectionID, articleID string) error {
	_, err := r.query().ExecContext(ctx,
		`UPDATE collections SET article_ids = array_append(article_ids, $2) WHERE id = $1`,
		collectionID, articleID)
	return err
}

func (r *postgresCollectionRepo) Snapshot(ctx context.Context, collectionID, successorID, episodeID string, snapshotAt time.Time) error {
	_, err := r.query().ExecContext(ctx,
		`UPDATE collections SET status = $2, snapshot_at = $3, successor_id = $4, linked_episode_id = $5 WHERE id = $1`,
		collectionID, core.CollectionStatusSnapshot, snapshotAt, successorID, episodeID)
	return err
}

func (r *postgresCollectionRepo) ListExpiredBuilding(ctx context.Context, olderThan time.Time) ([]core.Collection, error) {
	rows, err := r.query().QueryContext(ctx, collectionSelect+` WHERE status = $1 AND created_at < $2`, core.CollectionStatusBuilding, olderThan)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var collections []core.Collection
	for rows.Next() {
		c, err := scanCollectionRowCursor(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, *c)
	}
	return collections, rows.Err()
}

func (r *postgresCollectionRepo) MarkExpired(ctx context.Context, collectionID string) error {
	_, err := r.query().ExecContext(ctx, `UPDATE collections SET status = $2 WHERE id = $1`, collectionID, core.CollectionStatusExpired)
	return err
}

func scanCollectionRow(row *sql.Row) (*core.Collection, error) {
	var c core.Collection
	var articleIDs pq.StringArray
	var snapshotAt sql.NullTime
	var successorID, linkedEpisodeID sql.NullString

	err := row.Scan(&c.ID, &c.GroupID, &c.Status, &articleIDs, &c.CreatedAt, &snapshotAt, &successorID, &linkedEpisodeID)
	if err != nil {
		return nil, err
	}
	c.ArticleIDs = []string(articleIDs)
	if snapshotAt.Valid {
		c.SnapshotAt = snapshotAt.Time
	}
	c.SuccessorID = successorID.String
	c.LinkedEpisodeID = linkedEpisodeID.String
	return &c, nil
}

func scanCollectionRowCursor(rows *sql.Rows) (*core.Collection, error) {
	var c core.Collection
	var articleIDs pq.StringArray
	var snapshotAt sql.NullTime
	var successorID, linkedEpisodeID sql.NullString

	err := rows.Scan(&c.ID, &c.GroupID, &c.Status, &articleIDs, &c.CreatedAt, &snapshotAt, &successorID, &linkedEpisodeID)
	if err != nil {
		return nil, err
	}
	c.ArticleIDs = []string(articleIDs)
	if snapshotAt.Valid {
		c.SnapshotAt = snapshotAt.Time
	}
	c.SuccessorID = successorID.String
	c.LinkedEpisodeID = linkedEpisodeID.String
	return &c, nil
}

// --- episodes ---------------------------------------------------------

type postgresEpisodeRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresEpisodeRepo) query() queryExecer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const episodeSelect = `
	SELECT id, group_id, collection_id, status, script, edited_script, title,
	       description, tags, degraded_editor,
	       audio_file_id, publish_url, failure_stage, failure_error, created_at, updated_at
	FROM episodes`

func (r *postgresEpisodeRepo) Create(ctx context.Context, e *core.Episode) error {
	query := `
		INSERT INTO episodes (
			id, group_id, collection_id, status, script, edited_script, title,
			description, tags, degraded_editor,
			audio_file_id, publish_url, failure_stage, failure_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.query().ExecContext(ctx, query,
		e.ID, e.GroupID, e.CollectionID, e.Status, e.Script, e.EditedScript, e.Title,
		e.Description, pq.Array(e.Tags), e.DegradedEditor,
		nullableString(e.AudioFileID), nullableString(e.PublishURL), e.FailureStage, e.FailureError,
		e.CreatedAt, e.UpdatedAt,
	)
	return err
}

func (r *postgresEpisodeRepo) Get(ctx context.Context, id string) (*core.Episode, error) {
	row := r.query().QueryRowContext(ctx, episodeSelect+` WHERE id = $1`, id)
	return scanEpisodeRow(row)
}

func (r *postgresEpisodeRepo) GetByCollectionID(ctx context.Context, collectionID string) (*core.Episode, error) {
	row := r.query().QueryRowContext(ctx, episodeSelect+` WHERE collection_id = $1`, collectionID)
	e, err := scanEpisodeRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (r *postgresEpisodeRepo) ListByGroup(ctx context.Context, groupID string, limit int) ([]core.Episode, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := r.query().QueryContext(ctx, episodeSelect+` WHERE group_id = $1 ORDER BY created_at DESC LIMIT $2`, groupID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var episodes []core.Episode
	for rows.Next() {
		e, err := scanEpisodeRowCursor(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, *e)
	}
	return episodes, rows.Err()
}

func (r *postgresEpisodeRepo) UpdateStage(ctx context.Context, e *core.Episode) error {
	query := `
		UPDATE episodes SET
			status = $2, script = $3, edited_script = $4, title = $5,
			audio_file_id = $6, publish_url = $7, updated_at = $8
		WHERE id = $1
	`
	_, err := r.query().ExecContext(ctx, query,
		e.ID, e.Status, e.Script, e.EditedScript, e.Title,
		nullableString(e.AudioFileID), nullableString(e.PublishURL), e.UpdatedAt,
	)
	return err
}

func (r *postgresEpisodeRepo) MarkFailed(ctx context.Context, episodeID, stage, errMsg string) error {
	_, err := r.query().ExecContext(ctx,
		`UPDATE episodes SET status = $2, failure_stage = $3, failure_error = $4, updated_at = $5 WHERE id = $1`,
		episodeID, core.EpisodeStatusFailed, stage, errMsg, time.Now().UTC())
	return err
}

func scanEpisodeRow(row *sql.Row) (*core.Episode, error) {
	var e core.Episode
	var audioFileID, publishURL sql.NullString
	var tags pq.StringArray

	err := row.Scan(
		&e.ID, &e.GroupID, &e.CollectionID, &e.Status, &e.Script, &e.EditedScript, &e.Title,
		&e.Description, &tags, &e.DegradedEditor,
		&audioFileID, &publishURL, &e.FailureStage, &e.FailureError, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Tags = []string(tags)
	e.AudioFileID = audioFileID.String
	e.PublishURL = publishURL.String
	return &e, nil
}

func scanEpisodeRowCursor(rows *sql.Rows) (*core.Episode, error) {
	var e core.Episode
	var audioFileID, publishURL sql.NullString
	var tags pq.StringArray

	err := rows.Scan(
		&e.ID, &e.GroupID, &e.CollectionID, &e.Status, &e.Script, &e.EditedScript, &e.Title,
		&e.Description, &tags, &e.DegradedEditor,
		&audioFileID, &publishURL, &e.FailureStage, &e.FailureError, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Tags = []string(tags)
	e.AudioFileID = audioFileID.String
	e.PublishURL = publishURL.String
	return &e, nil
}

// --- audio files --------------------------------------------------------

type postgresAudioFileRepo struct {
	db *sql.DB
	tx *sql.Tx
}

func (r *postgresAudioFileRepo) query() queryExecer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const audioFileSelect = `
	SELECT id, episode_id, url, duration_sec, voice_id, created_at
	FROM audio_files`

func (r *postgresAudioFileRepo) Create(ctx context.Context, af *core.AudioFile) error {
	query := `
		INSERT INTO audio_files (id, episode_id, url, duration_sec, voice_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.query().ExecContext(ctx, query, af.ID, af.EpisodeID, af.URL, af.DurationSec, af.VoiceID, af.CreatedAt)
	return err
}

func (r *postgresAudioFileRepo) Get(ctx context.Context, id string) (*core.AudioFile, error) {
	row := r.query().QueryRowContext(ctx, audioFileSelect+` WHERE id = $1`, id)
	return scanAudioFileRow(row)
}

func (r *postgresAudioFileRepo) GetByEpisodeID(ctx context.Context, episodeID string) (*core.AudioFile, error) {
	row := r.query().QueryRowContext(ctx, audioFileSelect+` WHERE episode_id = $1`, episodeID)
	af, err := scanAudioFileRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return af, err
}

func scanAudioFileRow(row *sql.Row) (*core.AudioFile, error) {
	var af core.AudioFile
	err := row.Scan(&af.ID, &af.EpisodeID, &af.URL, &af.DurationSec, &af.VoiceID, &af.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &af, nil
}

// --- shared null helpers -------------------------------------------------

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
