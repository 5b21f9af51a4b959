package cadence

import (
	"context"
	"sync"
	"testing"
	"time"

	"overseer/internal/collection"
	"overseer/internal/core"
	"overseer/internal/faststate"
	"overseer/internal/lock"
	"overseer/internal/persistence"
)

type fakeGroupRepo struct {
	mu     sync.Mutex
	groups map[string]*core.PodcastGroup
}

func (r *fakeGroupRepo) Create(ctx context.Context, g *core.PodcastGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *g
	r.groups[g.ID] = &cp
	return nil
}

func (r *fakeGroupRepo) Get(ctx context.Context, id string) (*core.PodcastGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (r *fakeGroupRepo) List(ctx context.Context) ([]core.PodcastGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.PodcastGroup
	for _, g := range r.groups {
		out = append(out, *g)
	}
	return out, nil
}

func (r *fakeGroupRepo) UpdateCadence(ctx context.Context, groupID string, cadence core.CadenceBucket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.groups[groupID]; ok {
		g.Cadence = cadence
	}
	return nil
}

func (r *fakeGroupRepo) UpdateActiveCollection(ctx context.Context, groupID, collectionID string) error {
	return nil
}

func (r *fakeGroupRepo) UpdateLastEpisodeAt(ctx context.Context, groupID string, when time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.groups[groupID]; ok {
		g.LastEpisodeAt = when
	}
	return nil
}

func (r *fakeGroupRepo) UpdateLastTickAt(ctx context.Context, groupID string, when time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.groups[groupID]; ok {
		g.LastTickAt = when
	}
	return nil
}

// stubDB is an in-memory persistence.Database covering just enough of
// the interface for the Collection Manager and Cadence Controller to
// operate against in tests: articles and collections, plus the group
// repository under test.
type stubDB struct {
	mu          sync.Mutex
	groups      *fakeGroupRepo
	collections map[string]*core.Collection
	articles    map[string]*core.Article
}

func newStubCollectionDB() *stubDB {
	return &stubDB{
		groups:      &fakeGroupRepo{groups: make(map[string]*core.PodcastGroup)},
		collections: make(map[string]*core.Collection),
		articles:    make(map[string]*core.Article),
	}
}

func seedArticleInDB(db *stubDB, id, collectionID string, submittedAt time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.articles[id] = &core.Article{ID: id, CollectionID: collectionID, SubmittedAt: submittedAt}
}

func (d *stubDB) Articles() persistence.ArticleRepository       { return &stubArticleRepo{d: d} }
func (d *stubDB) Groups() persistence.GroupRepository            { return d.groups }
func (d *stubDB) Collections() persistence.CollectionRepository { return &stubCollectionRepo{d: d} }
func (d *stubDB) Episodes() persistence.EpisodeRepository        { return nil }
func (d *stubDB) AudioFiles() persistence.AudioFileRepository    { return nil }
func (d *stubDB) Close() error                                   { return nil }
func (d *stubDB) Ping(ctx context.Context) error                 { return nil }
func (d *stubDB) BeginTx(ctx context.Context) (persistence.Transaction, error) {
	return &stubTx{d: d}, nil
}

type stubTx struct{ d *stubDB }

func (t *stubTx) Commit() error   { return nil }
func (t *stubTx) Rollback() error { return nil }

func (t *stubTx) Articles() persistence.ArticleRepository       { return &stubArticleRepo{d: t.d} }
func (t *stubTx) Groups() persistence.GroupRepository            { return t.d.groups }
func (t *stubTx) Collections() persistence.CollectionRepository { return &stubCollectionRepo{d: t.d} }
func (t *stubTx) Episodes() persistence.EpisodeRepository        { return nil }
func (t *stubTx) AudioFiles() persistence.AudioFileRepository    { return nil }

type stubCollectionRepo struct{ d *stubDB }

func (r *stubCollectionRepo) Create(ctx context.Context, c *core.Collection) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	cp := *c
	r.d.collections[c.ID] = &cp
	return nil
}

func (r *stubCollectionRepo) Get(ctx context.Context, id string) (*core.Collection, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	c, ok := r.d.collections[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *stubCollectionRepo) GetActiveForGroup(ctx context.Context, groupID string) (*core.Collection, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, c := range r.d.collections {
		if c.GroupID == groupID && c.Status == core.CollectionStatusBuilding {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *stubCollectionRepo) AppendArticle(ctx context.Context, collectionID, articleID string) error {
	return nil
}

func (r *stubCollectionRepo) Snapshot(ctx context.Context, collectionID, successorID, episodeID string, snapshotAt time.Time) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if c, ok := r.d.collections[collectionID]; ok {
		c.Status = core.CollectionStatusSnapshot
		c.SnapshotAt = snapshotAt
		c.SuccessorID = successorID
		c.LinkedEpisodeID = episodeID
	}
	return nil
}

func (r *stubCollectionRepo) ListExpiredBuilding(ctx context.Context, olderThan time.Time) ([]core.Collection, error) {
	return nil, nil
}

func (r *stubCollectionRepo) MarkExpired(ctx context.Context, collectionID string) error {
	return nil
}

type stubArticleRepo struct{ d *stubDB }

func (r *stubArticleRepo) Create(ctx context.Context, a *core.Article) error { return nil }

func (r *stubArticleRepo) Get(ctx context.Context, id string) (*core.Article, error) {
	return nil, nil
}

func (r *stubArticleRepo) GetByFingerprint(ctx context.Context, groupID, fingerprint string) (*core.Article, error) {
	return nil, nil
}

func (r *stubArticleRepo) ListPending(ctx context.Context, groupID string, limit int) ([]core.Article, error) {
	return nil, nil
}

func (r *stubArticleRepo) ListByCollection(ctx context.Context, collectionID string) ([]core.Article, error) {
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

func (r *stubArticleRepo) UpdateReview(ctx context.Context, a *core.Article) error { return nil }

func (r *stubArticleRepo) AssignToCollection(ctx context.Context, articleID, collectionID string) error {
	return nil
}

func (r *stubArticleRepo) List(ctx context.Context, opts persistence.ListOptions) ([]core.Article, error) {
	return nil, nil
}

func newController(t *testing.T, coll *collection.Manager, groups *fakeGroupRepo) *Controller {
	t.Helper()
	store, err := faststate.New(t.TempDir())
	if err != nil {
		t.Fatalf("faststate.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return New(Params{
		DB:                &stubDB{groups: groups},
		Collections:       coll,
		Locks:             lock.NewGenerationLocks(store),
		Store:             store,
		TickInterval:      time.Hour,
		DailyWindow:       24 * time.Hour,
		ThreeDayWindow:    72 * time.Hour,
		WeeklyWindow:      168 * time.Hour,
		GenerationLockTTL: time.Hour,
	})
}

func TestEvaluateSkipsNotDue(t *testing.T) {
	db := newStubCollectionDB()
	coll := collection.New(db, 3, 72*time.Hour, 24*time.Hour)
	groups := &fakeGroupRepo{groups: map[string]*core.PodcastGroup{
		"g1": {ID: "g1", Cadence: core.CadenceDaily, LastEpisodeAt: time.Now().Add(-2 * time.Hour)},
	}}
	ctrl := newController(t, coll, groups)

	decision, err := ctrl.Evaluate(context.Background(), *groups.groups["g1"], time.Now())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Kind != Skip || decision.Reason != "not-due" {
		t.Fatalf("expected skip/not-due, got %+v", decision)
	}
}

func TestEvaluateGeneratesWhenReadyAtPreferredBucket(t *testing.T) {
	db := newStubCollectionDB()
	coll := collection.New(db, 2, 72*time.Hour, 24*time.Hour)
	ctx := context.Background()

	active, err := coll.GetActive(ctx, "g1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	seedArticleInDB(db, "a1", active.ID, time.Now())
	seedArticleInDB(db, "a2", active.ID, time.Now())

	groups := &fakeGroupRepo{groups: map[string]*core.PodcastGroup{
		"g1": {ID: "g1", Cadence: core.CadenceDaily, LastEpisodeAt: time.Now().Add(-25 * time.Hour)},
	}}
	ctrl := newController(t, coll, groups)

	decision, err := ctrl.Evaluate(ctx, *groups.groups["g1"], time.Now())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Kind != Generate || decision.Bucket != core.CadenceDaily {
		t.Fatalf("expected generate/daily, got %+v", decision)
	}
}

func TestEvaluateEscalatesWhenNotReady(t *testing.T) {
	db := newStubCollectionDB()
	coll := collection.New(db, 5, 72*time.Hour, 24*time.Hour)
	ctx := context.Background()

	active, err := coll.GetActive(ctx, "g1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	seedArticleInDB(db, "a1", active.ID, time.Now())

	groups := &fakeGroupRepo{groups: map[string]*core.PodcastGroup{
		"g1": {ID: "g1", Cadence: core.CadenceDaily, LastEpisodeAt: time.Now().Add(-73 * time.Hour)},
	}}
	ctrl := newController(t, coll, groups)

	decision, err := ctrl.Evaluate(ctx, *groups.groups["g1"], time.Now())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Kind != Skip || decision.Bucket != core.CadenceThreeDay || decision.Reason != "insufficient-content-retry" {
		t.Fatalf("expected skip/three_day/insufficient-content-retry, got %+v", decision)
	}
}

func TestEvaluateForcesWeeklyGenerateWithAnyArticle(t *testing.T) {
	db := newStubCollectionDB()
	coll := collection.New(db, 5, 1000*time.Hour, 24*time.Hour)
	ctx := context.Background()

	active, err := coll.GetActive(ctx, "g1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	seedArticleInDB(db, "a1", active.ID, time.Now())

	groups := &fakeGroupRepo{groups: map[string]*core.PodcastGroup{
		"g1": {ID: "g1", Cadence: core.CadenceDaily, LastEpisodeAt: time.Now().Add(-200 * time.Hour)},
	}}
	ctrl := newController(t, coll, groups)

	decision, err := ctrl.Evaluate(ctx, *groups.groups["g1"], time.Now())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Kind != Generate || decision.Bucket != core.CadenceWeekly || decision.Reason != "weekly-forced" {
		t.Fatalf("expected generate/weekly/weekly-forced, got %+v", decision)
	}
}

func TestEvaluateSkipsEmptyWeeklyWithNoArticles(t *testing.T) {
	db := newStubCollectionDB()
	coll := collection.New(db, 5, 1000*time.Hour, 24*time.Hour)
	ctx := context.Background()

	if _, err := coll.GetActive(ctx, "g1"); err != nil {
		t.Fatalf("GetActive: %v", err)
	}

	groups := &fakeGroupRepo{groups: map[string]*core.PodcastGroup{
		"g1": {ID: "g1", Cadence: core.CadenceDaily, LastEpisodeAt: time.Now().Add(-200 * time.Hour)},
	}}
	ctrl := newController(t, coll, groups)

	decision, err := ctrl.Evaluate(ctx, *groups.groups["g1"], time.Now())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Kind != Skip || decision.Reason != "empty-weekly" {
		t.Fatalf("expected skip/empty-weekly, got %+v", decision)
	}

	status, ok, err := ctrl.Status("g1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !ok || !status.PendingApology {
		t.Fatalf("expected pending apology flag set, got %+v ok=%v", status, ok)
	}
}

func TestTickEscalatesCadenceOnWeeklyForcedGenerate(t *testing.T) {
	db := newStubCollectionDB()
	coll := collection.New(db, 5, 1000*time.Hour, 24*time.Hour)
	ctx := context.Background()

	active, err := coll.GetActive(ctx, "g1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	seedArticleInDB(db, "a1", active.ID, time.Now())

	groups := &fakeGroupRepo{groups: map[string]*core.PodcastGroup{
		"g1": {ID: "g1", Cadence: core.CadenceDaily, LastEpisodeAt: time.Now().Add(-200 * time.Hour)},
	}}
	ctrl := newController(t, coll, groups)

	if err := ctrl.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if groups.groups["g1"].Cadence != core.CadenceWeekly {
		t.Fatalf("expected cadence escalated to weekly, got %s", groups.groups["g1"].Cadence)
	}
}
