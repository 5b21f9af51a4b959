package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"overseer/internal/cadence"
	"overseer/internal/collection"
	"overseer/internal/config"
	"overseer/internal/core"
	"overseer/internal/faststate"
	"overseer/internal/lock"
	"overseer/internal/persistence"
	"overseer/internal/review"
)

type stubDB struct {
	mu          sync.Mutex
	groups      map[string]*core.PodcastGroup
	collections map[string]*core.Collection
	articles    map[string]*core.Article
}

func newStubDB() *stubDB {
	return &stubDB{
		groups:      make(map[string]*core.PodcastGroup),
		collections: make(map[string]*core.Collection),
		articles:    make(map[string]*core.Article),
	}
}

func (d *stubDB) Articles() persistence.ArticleRepository       { return &stubArticles{d: d} }
func (d *stubDB) Groups() persistence.GroupRepository           { return &stubGroups{d: d} }
func (d *stubDB) Collections() persistence.CollectionRepository { return &stubCollections{d: d} }
func (d *stubDB) Episodes() persistence.EpisodeRepository       { return nil }
func (d *stubDB) AudioFiles() persistence.AudioFileRepository   { return nil }
func (d *stubDB) Close() error                                  { return nil }
func (d *stubDB) Ping(ctx context.Context) error                { return nil }
func (d *stubDB) BeginTx(ctx context.Context) (persistence.Transaction, error) {
	return nil, nil
}

type stubGroups struct{ d *stubDB }

func (r *stubGroups) Create(ctx context.Context, g *core.PodcastGroup) error { return nil }
func (r *stubGroups) Get(ctx context.Context, id string) (*core.PodcastGroup, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	return r.d.groups[id], nil
}
func (r *stubGroups) List(ctx context.Context) ([]core.PodcastGroup, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := make([]core.PodcastGroup, 0, len(r.d.groups))
	for _, g := range r.d.groups {
		out = append(out, *g)
	}
	return out, nil
}
func (r *stubGroups) UpdateCadence(ctx context.Context, groupID string, c core.CadenceBucket) error {
	return nil
}
func (r *stubGroups) UpdateActiveCollection(ctx context.Context, groupID, collectionID string) error {
	return nil
}
func (r *stubGroups) UpdateLastEpisodeAt(ctx context.Context, groupID string, when time.Time) error {
	return nil
}
func (r *stubGroups) UpdateLastTickAt(ctx context.Context, groupID string, when time.Time) error {
	return nil
}

type stubCollections struct{ d *stubDB }

func (r *stubCollections) Create(ctx context.Context, c *core.Collection) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	r.d.collections[c.ID] = c
	return nil
}
func (r *stubCollections) Get(ctx context.Context, id string) (*core.Collection, error) {
	return r.d.collections[id], nil
}
func (r *stubCollections) GetActiveForGroup(ctx context.Context, groupID string) (*core.Collection, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, c := range r.d.collections {
		if c.GroupID == groupID && c.Status == core.CollectionStatusBuilding {
			return c, nil
		}
	}
	return nil, nil
}
func (r *stubCollections) AppendArticle(ctx context.Context, collectionID, articleID string) error {
	return nil
}
func (r *stubCollections) Snapshot(ctx context.Context, collectionID, successorID, episodeID string, snapshotAt time.Time) error {
	return nil
}
func (r *stubCollections) ListExpiredBuilding(ctx context.Context, olderThan time.Time) ([]core.Collection, error) {
	return nil, nil
}
func (r *stubCollections) MarkExpired(ctx context.Context, collectionID string) error { return nil }

type stubArticles struct{ d *stubDB }

func (r *stubArticles) Create(ctx context.Context, a *core.Article) error { return nil }
func (r *stubArticles) Get(ctx context.Context, id string) (*core.Article, error) {
	return nil, nil
}
func (r *stubArticles) GetByFingerprint(ctx context.Context, groupID, fingerprint string) (*core.Article, error) {
	return nil, nil
}
func (r *stubArticles) ListPending(ctx context.Context, groupID string, limit int) ([]core.Article, error) {
	return nil, nil
}
func (r *stubArticles) ListByCollection(ctx context.Context, collectionID string) ([]core.Article, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var out []core.Article
	for _, a := range r.d.articles {
		if a.CollectionID == collectionID {
			out = append(out, *a)
		}
	}
	return out, nil
}
func (r *stubArticles) UpdateReview(ctx context.Context, a *core.Article) error { return nil }
func (r *stubArticles) AssignToCollection(ctx context.Context, articleID, collectionID string) error {
	return nil
}
func (r *stubArticles) List(ctx context.Context, opts persistence.ListOptions) ([]core.Article, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, *stubDB) {
	t.Helper()
	db := newStubDB()
	db.groups["g1"] = &core.PodcastGroup{ID: "g1", Name: "Show", Active: true, Cadence: core.CadenceDaily}

	store, err := faststate.New(t.TempDir())
	if err != nil {
		t.Fatalf("faststate.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	coll := collection.New(db, 2, 72*time.Hour, 24*time.Hour)
	ctrl := cadence.New(cadence.Params{
		DB: db, Collections: coll, Locks: lock.NewGenerationLocks(store), Store: store,
		TickInterval: time.Hour, DailyWindow: 24 * time.Hour, ThreeDayWindow: 72 * time.Hour,
		WeeklyWindow: 168 * time.Hour, GenerationLockTTL: time.Hour,
	})
	if err := ctrl.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	reviewCfg, err := review.NewConfigStore(store, review.RuntimeConfig{LightThreshold: 0.4, HeavyThreshold: 0.7, WorkerCount: 4})
	if err != nil {
		t.Fatalf("NewConfigStore: %v", err)
	}

	srv := New(config.Admin{Host: "127.0.0.1", Port: 0, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}, db, ctrl, coll, reviewCfg, review.NewMetrics(), lock.NewProductionLock(store))
	return srv, db
}

func TestCadenceStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/cadence/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var statuses []cadence.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &statuses); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(statuses) != 1 || statuses[0].GroupID != "g1" {
		t.Fatalf("expected one status for g1, got %+v", statuses)
	}
}

func TestProductionStatusEndpointReportsCleared(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/production/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if held, _ := out["held"].(bool); held {
		t.Fatalf("expected production lock not held")
	}
}

func TestPatchConfigUpdatesThresholds(t *testing.T) {
	srv, _ := newTestServer(t)
	body := strings.NewReader(`{"light_threshold":0.55}`)
	req := httptest.NewRequest(http.MethodPatch, "/config", body)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	cfg, err := srv.reviewCfg.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.LightThreshold != 0.55 {
		t.Fatalf("expected light_threshold updated to 0.55, got %v", cfg.LightThreshold)
	}
	if cfg.HeavyThreshold != 0.7 {
		t.Fatalf("expected heavy_threshold untouched, got %v", cfg.HeavyThreshold)
	}
}

func TestGetConfigReturnsCurrentRuntimeConfig(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var cfg review.RuntimeConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.LightThreshold != 0.4 || cfg.WorkerCount != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestPatchConfigRejectsOutOfRangeThreshold(t *testing.T) {
	srv, _ := newTestServer(t)
	body := strings.NewReader(`{"light_threshold":1.5}`)
	req := httptest.NewRequest(http.MethodPatch, "/config", body)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCollectionStatsEndpoint(t *testing.T) {
	srv, db := newTestServer(t)
	ctx := context.Background()

	active, err := srv.coll.GetActive(ctx, "g1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	db.mu.Lock()
	db.articles["a1"] = &core.Article{ID: "a1", CollectionID: active.ID, SubmittedAt: time.Now()}
	db.mu.Unlock()

	req := httptest.NewRequest(http.MethodGet, "/collections/stats", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats []collectionStat
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stats) != 1 || stats[0].ArticleCount != 1 {
		t.Fatalf("expected one stat with article_count=1, got %+v", stats)
	}
}
