// Command overseer is the orchestration daemon: it runs the Review
// Router's worker pool, the Cadence Controller's tick loop, and the
// admin inspect/mutation HTTP surface, wiring the Episode Pipeline in
// as the Cadence Controller's generation dispatcher.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"overseer/internal/adminapi"
	"overseer/internal/analytics"
	"overseer/internal/cadence"
	"overseer/internal/collab"
	"overseer/internal/collection"
	"overseer/internal/config"
	"overseer/internal/dedup"
	"overseer/internal/episode"
	"overseer/internal/faststate"
	"overseer/internal/lock"
	"overseer/internal/logger"
	"overseer/internal/persistence"
	"overseer/internal/review"
)

func main() {
	configFile := flag.String("config", "", "config file path")
	flag.Parse()

	log := logger.Get()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("overseer: failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgresDB(cfg.Database.ConnectionString)
	if err != nil {
		log.Error("overseer: failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = pg.Close() }()

	if err := persistence.NewMigrationManager(pg).Migrate(ctx); err != nil {
		log.Error("overseer: failed to migrate database", "error", err)
		os.Exit(1)
	}

	store, err := faststate.New(cfg.FastState.Path)
	if err != nil {
		log.Error("overseer: failed to open fast-state store", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	track, err := analytics.New(cfg.Observability.PostHog)
	if err != nil {
		log.Error("overseer: failed to init analytics", "error", err)
		os.Exit(1)
	}

	genLocks := lock.NewGenerationLocks(store)
	prodLock := lock.NewProductionLock(store)
	dedupFilter := dedup.New(store, cfg.Dedup.TTL)
	coll := collection.New(pg, cfg.Collection.MinArticles, cfg.Collection.StalenessMax, cfg.Collection.CollectionTTL)

	lightReviewer := collab.NewHTTPClient(cfg.Collaborators.ReviewerLight.BaseURL, "/review/light", cfg.Collaborators.ReviewerLight.Timeout)
	heavyReviewer := collab.NewHTTPClient(cfg.Collaborators.ReviewerHeavy.BaseURL, "/review/heavy", cfg.Collaborators.ReviewerHeavy.Timeout)
	writerClient := writerHTTPClient{
		script:   collab.NewHTTPClient(cfg.Collaborators.Writer.BaseURL, "/script", cfg.Collaborators.Writer.Timeout),
		metadata: collab.NewHTTPClient(cfg.Collaborators.Writer.BaseURL, "/metadata", cfg.Collaborators.Writer.Timeout),
	}
	editorClient := collab.NewHTTPClient(cfg.Collaborators.Editor.BaseURL, "/edit", cfg.Collaborators.Editor.Timeout)
	ttsClient := collab.NewHTTPClient(cfg.Collaborators.TTS.BaseURL, "/tts", cfg.Collaborators.TTS.Timeout)
	publisherClient := collab.NewHTTPClient(cfg.Collaborators.Publisher.BaseURL, "/publish", cfg.Collaborators.Publisher.Timeout)

	router, err := review.New(review.Params{
		Articles:          pg.Articles(),
		Store:             store,
		ProductionLock:    prodLock,
		Light:             lightReviewer,
		Heavy:             heavyReviewer,
		Analytics:         track,
		QueueCapacity:     cfg.Review.QueueCapacity,
		LightHardTimeout:  cfg.Review.LightHardTimeout,
		HeavyHardTimeout:  cfg.Review.HeavyHardTimeout,
		PausePollInterval: cfg.Review.PausePollInterval,
		RetryBackoff:      cfg.Review.RetryBackoff,
		MaxBodyBytes:      cfg.Review.MaxBodyBytes,
		MaxSummaryChars:   cfg.Review.MaxSummaryChars,
		MaxTags:           cfg.Review.MaxTags,
		Initial: review.RuntimeConfig{
			LightThreshold: cfg.Review.LightThreshold,
			HeavyThreshold: cfg.Review.HeavyThreshold,
			WorkerCount:    cfg.Review.WorkerCount,
		},
	}, dedupFilter)
	if err != nil {
		log.Error("overseer: failed to build review router", "error", err)
		os.Exit(1)
	}

	pipeline := episode.New(episode.Params{
		DB:                pg,
		Collections:       coll,
		GroupLocks:        genLocks,
		ProductionLock:    prodLock,
		Writer:            writerClient,
		Editor:            editorClient,
		TTS:               ttsClient,
		Publisher:         publisherClient,
		Analytics:         track,
		MinArticles:       cfg.Collection.MinArticles,
		Platforms:         cfg.Episode.Platforms,
		GenerationLockTTL: cfg.Cadence.GenerationLockTTL,
		ProductionLockTTL: cfg.ProductionLock.TTL,
		ScriptSoftTimeout: cfg.Episode.ScriptSoftTimeout,
		ScriptHardTimeout: cfg.Episode.ScriptHardTimeout,
		EditSoftTimeout:   cfg.Episode.EditSoftTimeout,
		EditHardTimeout:   cfg.Episode.EditHardTimeout,
		TTSSoftTimeout:    cfg.Episode.TTSSoftTimeout,
		TTSHardTimeout:    cfg.Episode.TTSHardTimeout,
		PublishTimeout:    cfg.Episode.PublishTimeout,
	})

	cadenceCtrl := cadence.New(cadence.Params{
		DB:                pg,
		Collections:       coll,
		Locks:             genLocks,
		Store:             store,
		Dispatcher:        pipeline,
		TickInterval:      cfg.Cadence.TickInterval,
		DailyWindow:       cfg.Cadence.DailyWindow,
		ThreeDayWindow:    cfg.Cadence.ThreeDayWindow,
		WeeklyWindow:      cfg.Cadence.WeeklyWindow,
		GenerationLockTTL: cfg.Cadence.GenerationLockTTL,
	})

	reviewCfgStore, err := review.NewConfigStore(store, review.RuntimeConfig{
		LightThreshold: cfg.Review.LightThreshold,
		HeavyThreshold: cfg.Review.HeavyThreshold,
		WorkerCount:    cfg.Review.WorkerCount,
	})
	if err != nil {
		log.Error("overseer: failed to init review config store", "error", err)
		os.Exit(1)
	}

	admin := adminapi.New(cfg.Admin, pg, cadenceCtrl, coll, reviewCfgStore, router.Metrics(), prodLock)

	if err := router.Start(ctx); err != nil {
		log.Error("overseer: failed to start review router", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := cadenceCtrl.Run(ctx); err != nil {
			log.Error("overseer: cadence controller stopped", "error", err)
		}
	}()

	go func() {
		if err := admin.Start(); err != nil {
			log.Error("overseer: admin server stopped", "error", err)
		}
	}()

	go runSweeper(ctx, log, coll, store, cfg.Collection.SweepInterval)

	log.Info("overseer: started")
	<-ctx.Done()
	log.Info("overseer: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Admin.ShutdownTimeout)
	defer cancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		log.Error("overseer: admin shutdown failed", "error", err)
	}
	router.Wait()
}

// runSweeper periodically clears out expired state: empty building
// collections past their TTL (§4.3's background sweep) and expired
// fast-state rows (dedup fingerprints, stale queue entries, lock keys
// past TTL). It blocks until ctx is canceled.
func runSweeper(ctx context.Context, log *slog.Logger, coll *collection.Manager, store *faststate.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := coll.SweepExpired(ctx); err != nil {
				log.Warn("overseer: collection sweep failed", "error", err)
			} else if n > 0 {
				log.Info("overseer: expired building collections", "count", n)
			}
			if n, err := store.Reap(); err != nil {
				log.Warn("overseer: fast-state reap failed", "error", err)
			} else if n > 0 {
				log.Info("overseer: reaped expired fast-state rows", "count", n)
			}
		}
	}
}

// writerHTTPClient splits Writer's two operations across the two
// collaborator routes they're configured under.
type writerHTTPClient struct {
	script   *collab.HTTPClient
	metadata *collab.HTTPClient
}

func (w writerHTTPClient) Script(ctx context.Context, req collab.ScriptRequest) (collab.ScriptResult, error) {
	return w.script.Script(ctx, req)
}

func (w writerHTTPClient) Metadata(ctx context.Context, req collab.MetadataRequest) (collab.MetadataResult, error) {
	return w.metadata.Metadata(ctx, req)
}
