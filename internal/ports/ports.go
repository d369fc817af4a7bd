package ports

import (
	"context"
	"time"

	"BioMedNews/internal/domain"
)

// FetchedPaper is the normalized record produced by every source fetcher.
type FetchedPaper struct {
	DOI           string
	Title         string
	Authors       []string
	Abstract      string
	URL           string
	Source        string
	PublishedDate time.Time
	Categories    []string
	Metadata      map[string]any
}

// PaperSource pulls fresh publications from one upstream provider.
type PaperSource interface {
	Name() string
	Fetch(ctx context.Context, since, until time.Time) ([]FetchedPaper, error)
}

// ListFilter narrows and orders paper listings for the browse surface.
type ListFilter struct {
	Sort        string
	Source      string
	QualityTier string
	StudyDesign string
	Tag         string
	Search      string
	Limit       int
	Offset      int
}

// PaperStore persists papers, scores, profiles, and delivery records.
// Two adapters exist (SQLite and Postgres); callers never branch on backend.
type PaperStore interface {
	Init(ctx context.Context) error

	UpsertPaper(ctx context.Context, paper domain.Paper) (int64, error)
	PaperExists(ctx context.Context, doi string) (bool, error)
	GetPaper(ctx context.Context, id int64) (*domain.Paper, error)
	GetPaperByDOI(ctx context.Context, doi string) (*domain.Paper, error)
	ListUnscored(ctx context.Context, profileID int64, limit int) ([]domain.Paper, error)
	ListPapers(ctx context.Context, filter ListFilter) ([]domain.ScoredPaper, error)
	CountPapers(ctx context.Context, filter ListFilter) (int, error)
	SetEmbedding(ctx context.Context, paperID int64, embedding []float32) error

	SaveScore(ctx context.Context, score domain.Score) error
	GetScore(ctx context.Context, paperID int64) (*domain.Score, error)
	TopScored(ctx context.Context, profileID int64, minRelevance, minQuality float64, limit int, excludeDelivered bool) ([]domain.ScoredPaper, error)

	UpsertProfile(ctx context.Context, profile domain.Profile) (int64, error)

	DeliveredPaperIDs(ctx context.Context, profileID int64) (map[int64]struct{}, error)
	RecordDelivery(ctx context.Context, profileID int64, paperIDs []int64, status domain.DeliveryStatus) (int64, error)

	FindSimilar(ctx context.Context, query []float32, limit int, threshold float64) ([]domain.SimilarPaper, error)

	SetPaperTags(ctx context.Context, paperID int64, tags []string) error
	GetPaperTags(ctx context.Context, paperID int64) ([]string, error)
	ListTags(ctx context.Context) ([]string, error)

	Close() error
}

// RelevanceScorer produces a 0-1 relevance value for a paper against a profile.
// Embed returns nil when the scorer does not support embeddings.
type RelevanceScorer interface {
	Score(ctx context.Context, paper domain.Paper, profile domain.Profile) (domain.RelevanceResult, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QualityAssessor estimates evidentiary quality with tiered escalation up to maxTier.
type QualityAssessor interface {
	Assess(ctx context.Context, paper domain.Paper, maxTier int) (domain.QualityAssessment, error)
}

// ChatClient abstracts the delegated text-understanding call used by scoring tiers.
type ChatClient interface {
	Chat(ctx context.Context, system, user string, jsonMode bool) (string, error)
}

// Embedder produces dense embeddings for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Digest is a rendered delivery document in both transport formats.
type Digest struct {
	Subject string
	Text    string
	HTML    string
}

// DigestSender delivers a rendered digest to a recipient address.
type DigestSender interface {
	Send(ctx context.Context, digest Digest, to string) error
}

// Scheduler controls when recurring pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
