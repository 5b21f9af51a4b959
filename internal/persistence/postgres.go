// Package persistence provides database implementations.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver
)

// PostgresDB implements the Database interface for PostgreSQL.
type PostgresDB struct {
	db          *sql.DB
	articles    ArticleRepository
	groups      GroupRepository
	collections CollectionRepository
	episodes    EpisodeRepository
	audioFiles  AudioFileRepository
}

// NewPostgresDB creates a new PostgreSQL database connection.
func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pgDB := &PostgresDB{db: db}
	pgDB.articles = &postgresArticleRepo{db: db}
	pgDB.groups = &postgresGroupRepo{db: db}
	pgDB.collections = &postgresCollectionRepo{db: db}
	pgDB.episodes = &postgresEpisodeRepo{db: db}
	pgDB.audioFiles = &postgresAudioFileRepo{db: db}

	return pgDB, nil
}

func (p *PostgresDB) Articles() ArticleRepository       { return p.articles }
func (p *PostgresDB) Groups() GroupRepository           { return p.groups }
func (p *PostgresDB) Collections() CollectionRepository { return p.collections }
func (p *PostgresDB) Episodes() EpisodeRepository       { return p.episodes }
func (p *PostgresDB) AudioFiles() AudioFileRepository   { return p.audioFiles }

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDB) BeginTx(ctx context.Context) (Transaction, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &postgresTx{
		tx:          tx,
		articles:    &postgresArticleRepo{db: p.db, tx: tx},
		groups:      &postgresGroupRepo{db: p.db, tx: tx},
		collections: &postgresCollectionRepo{db: p.db, tx: tx},
		episodes:    &postgresEpisodeRepo{db: p.db, tx: tx},
		audioFiles:  &postgresAudioFileRepo{db: p.db, tx: tx},
	}, nil
}

// postgresTx implements the Transaction interface.
type postgresTx struct {
	tx          *sql.Tx
	articles    ArticleRepository
	groups      GroupRepository
	collections CollectionRepository
	episodes    EpisodeRepository
	audioFiles  AudioFileRepository
}

func (t *postgresTx) Commit() error                       { return t.tx.Commit() }
func (t *postgresTx) Rollback() error                      { return t.tx.Rollback() }
func (t *postgresTx) Articles() ArticleRepository          { return t.articles }
func (t *postgresTx) Groups() GroupRepository              { return t.groups }
func (t *postgresTx) Collections() CollectionRepository    { return t.collections }
func (t *postgresTx) Episodes() EpisodeRepository          { return t.episodes }
func (t *postgresTx) AudioFiles() AudioFileRepository      { return t.audioFiles }

// queryExecer is satisfied by both *sql.DB and *sql.Tx, letting every repo
// below run standalone or bound to a transaction without duplicating logic.
type queryExecer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
