// Package review implements the Review Router (C2): a two-tier,
// confidence-gated dispatcher that routes each accepted article through
// a Light reviewer and, when confidence falls short, a Heavy reviewer,
// persisting tags, summary, confidence, and tier.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"overseer/internal/analytics"
	"overseer/internal/collab"
	"overseer/internal/core"
	"overseer/internal/dedup"
	"overseer/internal/faststate"
	"overseer/internal/lock"
	"overseer/internal/logger"
	"overseer/internal/persistence"
)

const queueName = "reviewer:queue"

// Params bundles the Router's dependencies and static (non-runtime-
// mutable) tuning knobs.
type Params struct {
	Articles          persistence.ArticleRepository
	Store             *faststate.Store
	ProductionLock    *lock.ProductionLock
	Light             collab.Reviewer
	Heavy             collab.Reviewer
	Analytics         *analytics.Client
	QueueCapacity     int
	LightHardTimeout  time.Duration
	HeavyHardTimeout  time.Duration
	PausePollInterval time.Duration
	RetryBackoff      time.Duration
	MaxBodyBytes      int64
	MaxSummaryChars   int
	MaxTags           int
	Initial           RuntimeConfig
}

// Router is the Review Router. One Router serves every group; articles
// carry their own group_id for collection assignment downstream.
type Router struct {
	articles persistence.ArticleRepository
	queue    *faststate.Store
	prodLock *lock.ProductionLock
	cfg      *ConfigStore
	light    collab.Reviewer
	heavy    collab.Reviewer
	track    *analytics.Client
	metrics  *Metrics
	dedup    *dedup.Filter
	log      *slog.Logger

	queueCapacity     int
	lightHardTimeout  time.Duration
	heavyHardTimeout  time.Duration
	pausePollInterval time.Duration
	retryBackoff      time.Duration
	maxBodyBytes      int64
	maxSummaryChars   int
	maxTags           int

	slots chan struct{}
	wg    sync.WaitGroup
}

// New builds a Router and primes its backpressure semaphore from the
// queue's current persisted depth, so a restarted process doesn't
// silently widen its effective capacity.
func New(p Params, dedupFilter *dedup.Filter) (*Router, error) {
	cfg, err := NewConfigStore(p.Store, p.Initial)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reviewer config: %w", err)
	}

	depth, err := p.Store.Len(queueName)
	if err != nil {
		return nil, fmt.Errorf("failed to read review queue depth: %w", err)
	}

	r := &Router{
		articles:          p.Articles,
		queue:             p.Store,
		prodLock:          p.ProductionLock,
		cfg:               cfg,
		light:             p.Light,
		heavy:             p.Heavy,
		track:             p.Analytics,
		metrics:           NewMetrics(),
		dedup:             dedupFilter,
		log:               logger.Get(),
		queueCapacity:     p.QueueCapacity,
		lightHardTimeout:  p.LightHardTimeout,
		heavyHardTimeout:  p.HeavyHardTimeout,
		pausePollInterval: p.PausePollInterval,
		retryBackoff:      p.RetryBackoff,
		maxBodyBytes:      p.MaxBodyBytes,
		maxSummaryChars:   p.MaxSummaryChars,
		maxTags:           p.MaxTags,
		slots:             make(chan struct{}, p.QueueCapacity),
	}

	for i := 0; i < depth && i < p.QueueCapacity; i++ {
		r.slots <- struct{}{}
	}

	return r, nil
}

// Metrics exposes the router's accumulated metrics for the admin surface.
func (r *Router) Metrics() *Metrics { return r.metrics }

// Submit runs the article through the Deduplication Filter (C1) and, on
// acceptance, persists a pending Article row and enqueues it for review.
// It blocks if the bounded queue is at capacity (backpressure). The
// returned article ID is empty when the result is Duplicate, since no
// row was created.
func (r *Router) Submit(ctx context.Context, article core.Article) (dedup.Result, string, error) {
	result, fingerprint, err := r.dedup.Check(article.Title, article.Body)
	if err != nil {
		return "", "", fmt.Errorf("dedup check failed: %w", err)
	}
	if result == dedup.Duplicate {
		r.metrics.RecordDuplicate()
		return result, "", nil
	}

	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	article.Fingerprint = fingerprint
	article.Status = core.ArticleStatusPending
	article.SubmittedAt = time.Now().UTC()

	if err := r.articles.Create(ctx, &article); err != nil {
		return "", "", fmt.Errorf("failed to persist article: %w", err)
	}

	select {
	case r.slots <- struct{}{}:
	case <-ctx.Done():
		return "", "", ctx.Err()
	}

	if err := r.queue.Push(queueName, article.ID); err != nil {
		<-r.slots
		return "", "", fmt.Errorf("failed to enqueue article: %w", err)
	}

	return result, article.ID, nil
}

// Start launches the configured number of worker goroutines, each
// independently pausing on the production lock and consuming the shared
// queue. Start returns immediately; call Wait to block until ctx is
// canceled and every worker has exited.
func (r *Router) Start(ctx context.Context) error {
	cfg, err := r.cfg.Get()
	if err != nil {
		return fmt.Errorf("failed to read reviewer config at startup: %w", err)
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
	return nil
}

// Wait blocks until every worker goroutine started by Start has exited.
func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) worker(ctx context.Context, id int) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		held, err := r.prodLock.Held()
		if err != nil {
			r.log.Warn("review worker: production lock check failed", "worker", id, "error", err)
		}
		if held {
			select {
			case <-time.After(r.pausePollInterval):
			case <-ctx.Done():
				return
			}
			continue
		}

		articleID, ok, err := r.queue.Pop(queueName)
		if err != nil {
			r.log.Warn("review worker: queue pop failed", "worker", id, "error", err)
			select {
			case <-time.After(r.pausePollInterval):
			case <-ctx.Done():
				return
			}
			continue
		}
		if !ok {
			select {
			case <-time.After(100 * time.Millisecond):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-r.slots:
		default:
		}

		r.processArticle(ctx, articleID)
	}
}

func (r *Router) callReviewer(ctx context.Context, reviewer collab.Reviewer, req collab.ReviewRequest, hardTimeout time.Duration) (collab.ReviewResult, error) {
	attempt := func() (collab.ReviewResult, error) {
		cctx, cancel := context.WithTimeout(ctx, hardTimeout)
		defer cancel()
		return reviewer.Review(cctx, req)
	}

	result, err := attempt()
	if err != nil && (errors.Is(err, collab.ErrTransient) || errors.Is(err, context.DeadlineExceeded)) {
		time.Sleep(r.retryBackoff)
		result, err = attempt()
	}
	return result, err
}

func (r *Router) processArticle(ctx context.Context, articleID string) {
	article, err := r.articles.Get(ctx, articleID)
	if err != nil || article == nil {
		r.log.Error("review worker: failed to load article", "article_id", articleID, "error", err)
		return
	}

	if int64(len(article.Body)) > r.maxBodyBytes {
		r.rejectArticle(ctx, article, "oversized-body")
		return
	}

	cfg, err := r.cfg.Get()
	if err != nil {
		r.log.Error("review worker: failed to read reviewer config", "error", err)
		return
	}

	req := collab.ReviewRequest{ArticleID: article.ID, Title: article.Title, Body: article.Body}
	if article.Escalate {
		req.Hints = &collab.ReviewHints{Escalate: true}
	}

	lightStart := time.Now()
	lightResult, lightErr := r.callReviewer(ctx, r.light, req, r.lightHardTimeout)
	r.metrics.RecordElapsed("light", time.Since(lightStart))

	confidence := 0.0
	if lightErr == nil {
		confidence = lightResult.Confidence
	}

	if lightErr == nil && confidence >= cfg.LightThreshold && !article.Escalate {
		r.finalizeReview(ctx, article, "light", lightResult, false)
		return
	}

	heavyStart := time.Now()
	heavyResult, heavyErr := r.callReviewer(ctx, r.heavy, req, r.heavyHardTimeout)
	r.metrics.RecordElapsed("heavy", time.Since(heavyStart))

	if heavyErr != nil {
		if lightErr != nil {
			r.rejectArticle(ctx, article, "reviewer-unavailable")
			return
		}
		r.finalizeReview(ctx, article, "light", lightResult, true)
		return
	}

	r.finalizeReview(ctx, article, "heavy", heavyResult, false)
}

func (r *Router) finalizeReview(ctx context.Context, article *core.Article, tier string, result collab.ReviewResult, degraded bool) {
	article.Status = core.ArticleStatusAccepted
	article.Tier = tier
	article.Confidence = result.Confidence
	article.Summary = truncateSummary(result.Summary, r.maxSummaryChars)
	article.Tags = normalizeTags(result.Tags, r.maxTags)
	article.ReviewedAt = time.Now().UTC()

	if err := r.articles.UpdateReview(ctx, article); err != nil {
		r.log.Error("review worker: failed to persist review", "article_id", article.ID, "error", err)
		return
	}

	r.metrics.RecordTier(tier)
	r.metrics.RecordConfidence(result.Confidence)
	if degraded {
		r.metrics.RecordDegraded()
	}
	if r.track != nil {
		elapsedMs := time.Since(article.SubmittedAt).Milliseconds()
		r.track.TrackReview(ctx, article.GroupID, article.ID, tier, elapsedMs, result.Confidence, degraded)
	}
}

func (r *Router) rejectArticle(ctx context.Context, article *core.Article, reason string) {
	article.Status = core.ArticleStatusRejected
	article.Summary = reason
	article.ReviewedAt = time.Now().UTC()

	if err := r.articles.UpdateReview(ctx, article); err != nil {
		r.log.Error("review worker: failed to persist rejection", "article_id", article.ID, "error", err)
		return
	}
	r.metrics.RecordRejected()
}

// normalizeTags lower-cases, deduplicates, sorts, and caps tags at max.
func normalizeTags(tags []string, max int) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func truncateSummary(summary string, max int) string {
	if max <= 0 || len(summary) <= max {
		return summary
	}
	return summary[:max]
}
