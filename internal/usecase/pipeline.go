// Package usecase orchestrates the fetch, store, score, and digest workflow
// over the driven adapters.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"BioMedNews/internal/domain"
	"BioMedNews/internal/fetch"
	"BioMedNews/internal/ports"
	"BioMedNews/internal/scoring"
)

// ErrPipelineBusy reports that a run is already in progress. Callers must not
// queue behind it; the triggering request fails immediately.
var ErrPipelineBusy = errors.New("pipeline run already in progress")

// Scorer drains a batch of unscored papers through relevance and quality
// scoring for one profile.
type Scorer interface {
	ScoreBatch(ctx context.Context, papers []domain.Paper, profile domain.Profile, opts scoring.BatchOptions) (int, error)
}

// DigestRenderer produces the delivery document from selected papers.
type DigestRenderer interface {
	Render(papers []domain.ScoredPaper, now time.Time) (ports.Digest, error)
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
// Mailer may be nil when SMTP is not configured; delivery then falls back to
// Printer with status "printed".
type PipelineDeps struct {
	Store    ports.PaperStore
	Sources  []ports.PaperSource
	Scorer   Scorer
	Renderer DigestRenderer
	Mailer   ports.DigestSender
	Printer  ports.DigestSender
	Profile  domain.Profile
	Options  Options
	Logger   *slog.Logger
}

// Options bounds each pipeline run.
type Options struct {
	LookbackDays   int
	UnscoredLimit  int
	Concurrency    int
	MaxQualityTier int
	MinRelevance   float64
	MinQuality     float64
	DigestLimit    int
}

// Summary reports the outcome of one pipeline run.
type Summary struct {
	RunID          uuid.UUID `json:"run_id"`
	Fetched        int       `json:"fetched"`
	Stored         int       `json:"stored"`
	Scored         int       `json:"scored"`
	DigestSize     int       `json:"digest_size"`
	DeliveryStatus string    `json:"delivery_status,omitempty"`
}

// RunStatus is a point-in-time snapshot of pipeline progress.
type RunStatus struct {
	Running   bool      `json:"running"`
	RunID     string    `json:"run_id,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	StartedAt time.Time `json:"started_at"`
	LastRun   *Summary  `json:"last_run,omitempty"`
}

// Pipeline implements the publication ingestion and delivery workflow. At most
// one run executes at a time; progress is observable through Status.
type Pipeline struct {
	store    ports.PaperStore
	sources  []ports.PaperSource
	scorer   Scorer
	selector *DeliverySelector
	renderer DigestRenderer
	mailer   ports.DigestSender
	printer  ports.DigestSender
	profile  domain.Profile
	opts     Options
	logger   *slog.Logger

	runMu sync.Mutex

	statusMu sync.Mutex
	status   RunStatus
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	opts := deps.Options
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 7
	}
	if opts.UnscoredLimit <= 0 {
		opts.UnscoredLimit = 100
	}
	if opts.DigestLimit <= 0 {
		opts.DigestLimit = 50
	}

	return &Pipeline{
		store:    deps.Store,
		sources:  deps.Sources,
		scorer:   deps.Scorer,
		selector: NewDeliverySelector(deps.Store),
		renderer: deps.Renderer,
		mailer:   deps.Mailer,
		printer:  deps.Printer,
		profile:  deps.Profile,
		opts:     opts,
		logger:   deps.Logger,
	}
}

// Run executes the full workflow once: fetch, store, ensure profile, score,
// select, render, send, record. A call while another run holds the lock fails
// immediately with ErrPipelineBusy.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	if !p.runMu.TryLock() {
		return Summary{}, ErrPipelineBusy
	}
	defer p.runMu.Unlock()

	summary := Summary{RunID: uuid.New()}
	p.beginRun(summary.RunID)

	err := p.run(ctx, &summary)
	p.endRun(summary, err)
	if err != nil {
		p.warn("pipeline run failed", "run_id", summary.RunID, "error", err)
	} else {
		p.info("pipeline run complete",
			"run_id", summary.RunID,
			"fetched", summary.Fetched,
			"stored", summary.Stored,
			"scored", summary.Scored,
			"digest_size", summary.DigestSize,
			"delivery_status", summary.DeliveryStatus)
	}
	return summary, err
}

func (p *Pipeline) run(ctx context.Context, summary *Summary) error {
	now := time.Now()
	since := now.AddDate(0, 0, -p.opts.LookbackDays)

	p.setStage("fetch", fmt.Sprintf("fetching %d sources since %s", len(p.sources), since.Format("2006-01-02")))
	fetched := fetch.All(ctx, p.sources, since, now, p.logger)
	summary.Fetched = len(fetched)
	if err := ctx.Err(); err != nil {
		return err
	}

	p.setStage("store", fmt.Sprintf("storing %d papers", len(fetched)))
	stored, err := p.storePapers(ctx, fetched)
	summary.Stored = stored
	if err != nil {
		return err
	}

	p.setStage("profile", "ensuring reader profile")
	profile, err := p.ensureProfile(ctx)
	if err != nil {
		return err
	}

	p.setStage("score", "scoring unscored papers")
	scored, err := p.scoreUnscored(ctx, profile)
	summary.Scored = scored
	if err != nil {
		return err
	}

	return p.deliver(ctx, profile, p.opts.DigestLimit, summary)
}

// Ingest stores externally fetched papers without scoring or delivery.
func (p *Pipeline) Ingest(ctx context.Context, papers []ports.FetchedPaper) (int, error) {
	if !p.runMu.TryLock() {
		return 0, ErrPipelineBusy
	}
	defer p.runMu.Unlock()

	return p.storePapers(ctx, papers)
}

// ScoreOnly scores pending papers for the configured profile and returns how
// many scores were persisted.
func (p *Pipeline) ScoreOnly(ctx context.Context) (int, error) {
	if !p.runMu.TryLock() {
		return 0, ErrPipelineBusy
	}
	defer p.runMu.Unlock()

	profile, err := p.ensureProfile(ctx)
	if err != nil {
		return 0, err
	}
	return p.scoreUnscored(ctx, profile)
}

// DigestOnly selects, renders, and delivers a digest from already scored
// papers without fetching or scoring.
func (p *Pipeline) DigestOnly(ctx context.Context, limit int) (Summary, error) {
	if !p.runMu.TryLock() {
		return Summary{}, ErrPipelineBusy
	}
	defer p.runMu.Unlock()

	if limit <= 0 {
		limit = p.opts.DigestLimit
	}

	summary := Summary{RunID: uuid.New()}
	profile, err := p.ensureProfile(ctx)
	if err != nil {
		return summary, err
	}
	err = p.deliver(ctx, profile, limit, &summary)
	return summary, err
}

// Status returns a snapshot of the current run state.
func (p *Pipeline) Status() RunStatus {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.status
}

func (p *Pipeline) storePapers(ctx context.Context, fetched []ports.FetchedPaper) (int, error) {
	stored := 0
	for i, fp := range fetched {
		if _, err := p.store.UpsertPaper(ctx, paperFromFetched(fp)); err != nil {
			return stored, fmt.Errorf("store paper %q: %w", fp.Title, err)
		}
		stored++
		p.setProgress(i+1, len(fetched))
	}
	return stored, nil
}

func (p *Pipeline) ensureProfile(ctx context.Context) (domain.Profile, error) {
	profile := p.profile
	id, err := p.store.UpsertProfile(ctx, profile)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("ensure profile: %w", err)
	}
	profile.ID = id
	return profile, nil
}

func (p *Pipeline) scoreUnscored(ctx context.Context, profile domain.Profile) (int, error) {
	if p.scorer == nil {
		return 0, nil
	}

	unscored, err := p.store.ListUnscored(ctx, profile.ID, p.opts.UnscoredLimit)
	if err != nil {
		return 0, fmt.Errorf("list unscored: %w", err)
	}
	if len(unscored) == 0 {
		return 0, nil
	}

	opts := scoring.BatchOptions{
		Concurrency: p.opts.Concurrency,
		MaxTier:     p.opts.MaxQualityTier,
		OnProgress:  p.setProgress,
	}
	scored, err := p.scorer.ScoreBatch(ctx, unscored, profile, opts)
	if err != nil {
		return scored, fmt.Errorf("score batch: %w", err)
	}
	return scored, nil
}

// deliver selects the digest, renders it, hands it to the configured
// transport, and records the attempt. An empty selection skips delivery and
// records nothing.
func (p *Pipeline) deliver(ctx context.Context, profile domain.Profile, limit int, summary *Summary) error {
	p.setStage("select", "selecting digest papers")
	top, err := p.selector.SelectForDelivery(ctx, profile, p.opts.MinRelevance, p.opts.MinQuality, limit, true)
	if err != nil {
		return err
	}
	summary.DigestSize = len(top)

	if len(top) == 0 {
		p.info("no papers above thresholds, skipping digest")
		return nil
	}

	p.setStage("render", fmt.Sprintf("rendering digest of %d papers", len(top)))
	doc, err := p.renderer.Render(top, time.Now())
	if err != nil {
		return fmt.Errorf("render digest: %w", err)
	}

	p.setStage("send", fmt.Sprintf("delivering digest to %s", profile.Email))
	status := p.send(ctx, doc, profile.Email)
	summary.DeliveryStatus = string(status)

	ids := make([]int64, len(top))
	for i, sp := range top {
		ids[i] = sp.Paper.ID
	}
	p.setStage("record", "recording delivery")
	if err := p.selector.RecordDelivery(ctx, profile.ID, ids, status); err != nil {
		return err
	}

	p.info("digest delivered", "papers", len(top), "status", status)
	return nil
}

// send picks the transport: mail when a relay is wired, stdout otherwise. A
// failed mail attempt maps to status "failed"; printing always counts as
// "printed".
func (p *Pipeline) send(ctx context.Context, doc ports.Digest, to string) domain.DeliveryStatus {
	if p.mailer != nil {
		if err := p.mailer.Send(ctx, doc, to); err != nil {
			p.warn("digest delivery failed", "to", to, "error", err)
			return domain.DeliveryFailed
		}
		return domain.DeliverySent
	}

	if p.printer != nil {
		if err := p.printer.Send(ctx, doc, to); err != nil {
			p.warn("digest print failed", "error", err)
		}
	}
	return domain.DeliveryPrinted
}

func paperFromFetched(fp ports.FetchedPaper) domain.Paper {
	return domain.Paper{
		DOI:           fp.DOI,
		Title:         fp.Title,
		Authors:       fp.Authors,
		Abstract:      fp.Abstract,
		URL:           fp.URL,
		Source:        fp.Source,
		PublishedDate: fp.PublishedDate,
		Categories:    fp.Categories,
		Metadata:      fp.Metadata,
	}
}

func (p *Pipeline) beginRun(runID uuid.UUID) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status = RunStatus{
		Running:   true,
		RunID:     runID.String(),
		Stage:     "start",
		Message:   "starting pipeline",
		StartedAt: time.Now(),
		LastRun:   p.status.LastRun,
	}
}

func (p *Pipeline) endRun(summary Summary, err error) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.Running = false
	if err != nil {
		p.status.Stage = "error"
		p.status.Message = fmt.Sprintf("pipeline error: %v", err)
	} else {
		p.status.Stage = "done"
		p.status.Message = "pipeline complete"
	}
	last := summary
	p.status.LastRun = &last
}

func (p *Pipeline) setStage(stage, message string) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.Stage = stage
	p.status.Message = message
	p.status.Done, p.status.Total = 0, 0
}

func (p *Pipeline) setProgress(done, total int) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.Done, p.status.Total = done, total
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
