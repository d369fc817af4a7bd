package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"BioMedNews/internal/domain"
	"BioMedNews/internal/ports"
)

// BatchOptions tunes a single ScoreBatch run.
type BatchOptions struct {
	// Concurrency bounds parallel scoring; values below 2 run sequentially.
	Concurrency int
	// MaxTier caps quality assessment depth (1-3).
	MaxTier int
	// OnProgress receives the running count of scored papers and the batch total.
	OnProgress func(done, total int)
	// OnScored receives the id of each paper whose score was persisted.
	OnScored func(paperID int64)
}

// BatchScorer drains a batch of papers through relevance and quality scoring,
// persisting each result as it completes.
type BatchScorer struct {
	store    ports.PaperStore
	scorer   ports.RelevanceScorer
	assessor ports.QualityAssessor
	logger   *slog.Logger
}

// NewBatchScorer creates a BatchScorer over the given store and scorers.
func NewBatchScorer(store ports.PaperStore, scorer ports.RelevanceScorer, assessor ports.QualityAssessor, logger *slog.Logger) *BatchScorer {
	return &BatchScorer{store: store, scorer: scorer, assessor: assessor, logger: logger}
}

// ScoreBatch scores every paper against the profile and returns how many were
// persisted. A paper whose scoring fails is logged and skipped so a later run
// can retry it; the batch itself only fails on a canceled context.
func (b *BatchScorer) ScoreBatch(ctx context.Context, papers []domain.Paper, profile domain.Profile, opts BatchOptions) (int, error) {
	if b.store == nil || b.scorer == nil || b.assessor == nil {
		return 0, fmt.Errorf("score batch: missing dependencies")
	}

	total := len(papers)
	if total == 0 {
		return 0, nil
	}

	var (
		mu     sync.Mutex
		scored int
	)
	complete := func(paperID int64, ok bool) {
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		scored++
		if opts.OnProgress != nil {
			opts.OnProgress(scored, total)
		}
		if opts.OnScored != nil {
			opts.OnScored(paperID)
		}
	}

	if opts.Concurrency <= 1 {
		for _, paper := range papers {
			if err := ctx.Err(); err != nil {
				return scored, err
			}
			complete(paper.ID, b.scoreOne(ctx, paper, profile, opts.MaxTier))
		}
		return scored, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Concurrency)
	for _, paper := range papers {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			complete(paper.ID, b.scoreOne(groupCtx, paper, profile, opts.MaxTier))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return scored, err
	}
	return scored, nil
}

// scoreOne scores a single paper and persists the result. Reports success.
func (b *BatchScorer) scoreOne(ctx context.Context, paper domain.Paper, profile domain.Profile, maxTier int) bool {
	relevance, err := b.scorer.Score(ctx, paper, profile)
	if err != nil {
		b.warn("relevance scoring failed", "paper_id", paper.ID, "doi", paper.DOI, "error", err)
		return false
	}

	quality, err := b.assessor.Assess(ctx, paper, maxTier)
	if err != nil {
		b.warn("quality assessment failed", "paper_id", paper.ID, "doi", paper.DOI, "error", err)
		return false
	}

	score := domain.Score{
		PaperID:     paper.ID,
		ProfileID:   profile.ID,
		Relevance:   relevance.Score,
		Quality:     quality.Score,
		Combined:    domain.Combine(relevance.Score, quality.Score),
		Summary:     relevance.Summary,
		StudyDesign: quality.Design,
		QualityTier: quality.Tier,
		Detail:      scoreDetail(relevance, quality),
	}
	if err := b.store.SaveScore(ctx, score); err != nil {
		b.warn("score persistence failed", "paper_id", paper.ID, "doi", paper.DOI, "error", err)
		return false
	}

	if len(relevance.MatchedTags) > 0 {
		if err := b.store.SetPaperTags(ctx, paper.ID, relevance.MatchedTags); err != nil {
			b.warn("tag persistence failed", "paper_id", paper.ID, "error", err)
		}
	}

	b.ensureEmbedding(ctx, paper)
	return true
}

// ensureEmbedding computes and stores an embedding for papers that lack one.
// Failures are logged only; similarity search degrades, scoring does not.
func (b *BatchScorer) ensureEmbedding(ctx context.Context, paper domain.Paper) {
	if len(paper.Embedding) > 0 {
		return
	}
	vector, err := b.scorer.Embed(ctx, paper.EmbeddingText())
	if err != nil {
		b.warn("embedding failed", "paper_id", paper.ID, "error", err)
		return
	}
	if len(vector) == 0 {
		return
	}
	if err := b.store.SetEmbedding(ctx, paper.ID, vector); err != nil {
		b.warn("embedding persistence failed", "paper_id", paper.ID, "error", err)
	}
}

func (b *BatchScorer) warn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}

func scoreDetail(relevance domain.RelevanceResult, quality domain.QualityAssessment) map[string]any {
	detail := map[string]any{
		"assessed_tier": quality.AssessedTier,
		"confidence":    quality.Confidence,
	}
	if quality.RawScore > 0 {
		detail["raw_quality_score"] = quality.RawScore
	}
	if relevance.Rationale != "" {
		detail["relevance_rationale"] = relevance.Rationale
	}
	if len(relevance.KeyFindings) > 0 {
		detail["key_findings"] = relevance.KeyFindings
	}
	for k, v := range quality.Detail {
		detail[k] = v
	}
	return detail
}
