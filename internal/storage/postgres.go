package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"BioMedNews/internal/domain"
	"BioMedNews/internal/ports"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL UNIQUE,
	interests TEXT NOT NULL DEFAULT '[]',
	min_relevance DOUBLE PRECISION NOT NULL DEFAULT 0,
	min_quality DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS papers (
	id BIGSERIAL PRIMARY KEY,
	doi TEXT UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	authors TEXT NOT NULL DEFAULT '[]',
	abstract TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	published_date TIMESTAMPTZ,
	categories TEXT NOT NULL DEFAULT '[]',
	metadata TEXT NOT NULL DEFAULT '{}',
	embedding vector(384),
	fetched_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_papers_fetched_at ON papers (fetched_at DESC);

CREATE TABLE IF NOT EXISTS scores (
	id BIGSERIAL PRIMARY KEY,
	paper_id BIGINT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
	profile_id BIGINT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	relevance DOUBLE PRECISION NOT NULL,
	quality DOUBLE PRECISION NOT NULL,
	combined DOUBLE PRECISION NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	study_design TEXT NOT NULL DEFAULT '',
	quality_tier TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '{}',
	scored_at TIMESTAMPTZ NOT NULL,
	UNIQUE (paper_id, profile_id)
);

CREATE INDEX IF NOT EXISTS idx_scores_profile_combined ON scores (profile_id, combined DESC);

CREATE TABLE IF NOT EXISTS delivery_records (
	id BIGSERIAL PRIMARY KEY,
	profile_id BIGINT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	paper_ids TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS paper_tags (
	paper_id BIGINT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
	tag TEXT NOT NULL,
	PRIMARY KEY (paper_id, tag)
);
`

const pgPaperColumns = `id, doi, title, authors, abstract, url, source, published_date, categories, metadata, embedding, fetched_at`

// PgxPool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it,
// so store queries are testable without a server.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Postgres persists papers in PostgreSQL. Similarity search delegates to the
// pgvector cosine-distance operator instead of ranking in process.
type Postgres struct {
	pool   PgxPool
	logger *slog.Logger
}

var _ ports.PaperStore = (*Postgres)(nil)

// NewPostgres connects a pgx pool with pgvector types registered per connection.
func NewPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 1 * time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Postgres{pool: pool, logger: logger}, nil
}

// NewPostgresWithPool wraps an existing pool (or a mock in tests).
func NewPostgresWithPool(pool PgxPool, logger *slog.Logger) *Postgres {
	return &Postgres{pool: pool, logger: logger}
}

// Init enables the pgvector extension and creates the schema. A failing
// extension call is only a warning: the extension may already be installed by
// an administrator, and anything else surfaces on the DDL that needs it.
func (p *Postgres) Init(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		p.warn("could not enable pgvector extension, similarity search requires it", "error", err)
	}
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// UpsertPaper inserts the paper or, when its DOI already exists, updates the
// mutable fields and returns the existing row id. Papers without a DOI always
// insert as new rows.
func (p *Postgres) UpsertPaper(ctx context.Context, paper domain.Paper) (int64, error) {
	fetchedAt := paper.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	args := []any{
		nullIfEmpty(paper.DOI),
		paper.Title,
		encodeStrings(paper.Authors),
		paper.Abstract,
		paper.URL,
		paper.Source,
		nullIfZeroTime(paper.PublishedDate),
		encodeStrings(paper.Categories),
		encodeMeta(paper.Metadata),
		pgEmbedding(paper.Embedding),
		fetchedAt,
	}

	query := `INSERT INTO papers (doi, title, authors, abstract, url, source, published_date, categories, metadata, embedding, fetched_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	if paper.DOI != "" {
		query = `INSERT INTO papers (doi, title, authors, abstract, url, source, published_date, categories, metadata, embedding, fetched_at)
		         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		         ON CONFLICT (doi) DO UPDATE SET
		             title = EXCLUDED.title,
		             authors = EXCLUDED.authors,
		             abstract = EXCLUDED.abstract,
		             url = EXCLUDED.url,
		             categories = EXCLUDED.categories,
		             metadata = EXCLUDED.metadata
		         RETURNING id`
	}

	var id int64
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert paper: %w", err)
	}
	return id, nil
}

// PaperExists reports whether a paper with the DOI is stored.
func (p *Postgres) PaperExists(ctx context.Context, doi string) (bool, error) {
	if doi == "" {
		return false, nil
	}
	var one int
	err := p.pool.QueryRow(ctx, `SELECT 1 FROM papers WHERE doi = $1`, doi).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query doi: %w", err)
	}
	return true, nil
}

// GetPaper returns the paper by id, or nil when absent.
func (p *Postgres) GetPaper(ctx context.Context, id int64) (*domain.Paper, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+pgPaperColumns+` FROM papers WHERE id = $1`, id)
	return p.scanOptionalPaper(row)
}

// GetPaperByDOI returns the paper with the DOI, or nil when absent.
func (p *Postgres) GetPaperByDOI(ctx context.Context, doi string) (*domain.Paper, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+pgPaperColumns+` FROM papers WHERE doi = $1`, doi)
	return p.scanOptionalPaper(row)
}

func (p *Postgres) scanOptionalPaper(row pgx.Row) (*domain.Paper, error) {
	paper, err := scanPgPaper(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan paper: %w", err)
	}
	return &paper, nil
}

// ListUnscored returns papers without a score for the profile, newest first.
func (p *Postgres) ListUnscored(ctx context.Context, profileID int64, limit int) ([]domain.Paper, error) {
	query := `SELECT p.id, p.doi, p.title, p.authors, p.abstract, p.url, p.source, p.published_date, p.categories, p.metadata, p.embedding, p.fetched_at
	          FROM papers p
	          LEFT JOIN scores s ON s.paper_id = p.id AND s.profile_id = $1
	          WHERE s.id IS NULL
	          ORDER BY p.fetched_at DESC
	          LIMIT $2`

	rows, err := p.pool.Query(ctx, query, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("query unscored: %w", err)
	}
	defer rows.Close()

	var papers []domain.Paper
	for rows.Next() {
		paper, err := scanPgPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unscored: %w", err)
		}
		papers = append(papers, paper)
	}
	return papers, rows.Err()
}

// SetEmbedding stores the embedding vector for a paper.
func (p *Postgres) SetEmbedding(ctx context.Context, paperID int64, embedding []float32) error {
	_, err := p.pool.Exec(ctx, `UPDATE papers SET embedding = $1 WHERE id = $2`, pgEmbedding(embedding), paperID)
	if err != nil {
		return fmt.Errorf("set embedding: %w", err)
	}
	return nil
}

// SaveScore upserts the score keyed by (paper_id, profile_id).
func (p *Postgres) SaveScore(ctx context.Context, score domain.Score) error {
	scoredAt := score.ScoredAt
	if scoredAt.IsZero() {
		scoredAt = time.Now().UTC()
	}

	query := `INSERT INTO scores (paper_id, profile_id, relevance, quality, combined, summary, study_design, quality_tier, detail, scored_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          ON CONFLICT (paper_id, profile_id) DO UPDATE SET
	              relevance = EXCLUDED.relevance,
	              quality = EXCLUDED.quality,
	              combined = EXCLUDED.combined,
	              summary = EXCLUDED.summary,
	              study_design = EXCLUDED.study_design,
	              quality_tier = EXCLUDED.quality_tier,
	              detail = EXCLUDED.detail,
	              scored_at = EXCLUDED.scored_at`

	_, err := p.pool.Exec(ctx, query,
		score.PaperID,
		score.ProfileID,
		score.Relevance,
		score.Quality,
		score.Combined,
		score.Summary,
		string(score.StudyDesign),
		string(score.QualityTier),
		encodeMeta(score.Detail),
		scoredAt,
	)
	if err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	return nil
}

// GetScore returns the newest score for the paper, or nil when unscored.
func (p *Postgres) GetScore(ctx context.Context, paperID int64) (*domain.Score, error) {
	query := `SELECT id, paper_id, profile_id, relevance, quality, combined, summary, study_design, quality_tier, detail, scored_at
	          FROM scores WHERE paper_id = $1 ORDER BY scored_at DESC LIMIT 1`

	var (
		score  domain.Score
		design string
		tier   string
		detail string
	)
	err := p.pool.QueryRow(ctx, query, paperID).Scan(
		&score.ID, &score.PaperID, &score.ProfileID,
		&score.Relevance, &score.Quality, &score.Combined,
		&score.Summary, &design, &tier, &detail, &score.ScoredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query score: %w", err)
	}
	score.StudyDesign = domain.StudyDesign(design)
	score.QualityTier = domain.QualityTier(tier)
	score.Detail = decodeMeta(detail)
	return &score, nil
}

// TopScored returns papers above both thresholds ordered by combined score.
// With excludeDelivered set, previously delivered papers are subtracted in
// SQL before the limit applies.
func (p *Postgres) TopScored(ctx context.Context, profileID int64, minRelevance, minQuality float64, limit int, excludeDelivered bool) ([]domain.ScoredPaper, error) {
	query := `SELECT p.id, p.doi, p.title, p.authors, p.abstract, p.url, p.source, p.published_date, p.categories, p.metadata, p.fetched_at,
	                 s.id, s.paper_id, s.profile_id, s.relevance, s.quality, s.combined, s.summary, s.study_design, s.quality_tier, s.detail, s.scored_at
	          FROM scores s
	          JOIN papers p ON p.id = s.paper_id
	          WHERE s.profile_id = $1 AND s.relevance >= $2 AND s.quality >= $3`
	args := []any{profileID, minRelevance, minQuality}

	if excludeDelivered {
		delivered, err := p.DeliveredPaperIDs(ctx, profileID)
		if err != nil {
			return nil, err
		}
		if len(delivered) > 0 {
			ids := make([]int64, 0, len(delivered))
			for id := range delivered {
				ids = append(ids, id)
			}
			query += ` AND NOT (p.id = ANY($4))`
			args = append(args, ids)
		}
	}

	query += ` ORDER BY s.combined DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query top scored: %w", err)
	}
	defer rows.Close()

	var result []domain.ScoredPaper
	for rows.Next() {
		sp, err := scanPgScoredPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan top scored: %w", err)
		}
		result = append(result, sp)
	}
	return result, rows.Err()
}

// UpsertProfile inserts or updates the profile keyed by email.
func (p *Postgres) UpsertProfile(ctx context.Context, profile domain.Profile) (int64, error) {
	query := `INSERT INTO profiles (name, email, interests, min_relevance, min_quality)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (email) DO UPDATE SET
	              name = EXCLUDED.name,
	              interests = EXCLUDED.interests,
	              min_relevance = EXCLUDED.min_relevance,
	              min_quality = EXCLUDED.min_quality
	          RETURNING id`

	var id int64
	err := p.pool.QueryRow(ctx, query,
		profile.Name,
		profile.Email,
		encodeStrings(profile.Interests),
		profile.MinRelevance,
		profile.MinQuality,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert profile: %w", err)
	}
	return id, nil
}

// DeliveredPaperIDs returns the union of paper ids across the profile's
// delivery records.
func (p *Postgres) DeliveredPaperIDs(ctx context.Context, profileID int64) (map[int64]struct{}, error) {
	rows, err := p.pool.Query(ctx, `SELECT paper_ids FROM delivery_records WHERE profile_id = $1`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	delivered := map[int64]struct{}{}
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		for _, id := range decodeIDs(encoded) {
			delivered[id] = struct{}{}
		}
	}
	return delivered, rows.Err()
}

// RecordDelivery appends a delivery record for the profile.
func (p *Postgres) RecordDelivery(ctx context.Context, profileID int64, paperIDs []int64, status domain.DeliveryStatus) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO delivery_records (profile_id, paper_ids, status, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		profileID, encodeIDs(paperIDs), string(status), time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("record delivery: %w", err)
	}
	return id, nil
}

// FindSimilar delegates cosine ranking to the pgvector <=> operator; its
// distance converts to similarity as 1 - distance. Threshold and limit apply
// at the engine, so results match the in-process fallback.
func (p *Postgres) FindSimilar(ctx context.Context, query []float32, limit int, threshold float64) ([]domain.SimilarPaper, error) {
	sqlQuery := `SELECT ` + prefixedPgPaperColumns("p") + `, 1 - (p.embedding <=> $1) AS similarity
	             FROM papers p
	             WHERE p.embedding IS NOT NULL AND 1 - (p.embedding <=> $1) >= $2
	             ORDER BY similarity DESC`
	if limit > 0 {
		sqlQuery += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := p.pool.Query(ctx, sqlQuery, pgvector.NewVector(query), threshold)
	if err != nil {
		return nil, fmt.Errorf("query similar: %w", err)
	}
	defer rows.Close()

	var matches []domain.SimilarPaper
	for rows.Next() {
		var (
			paper      domain.Paper
			doi        *string
			published  *time.Time
			authors    string
			categories string
			metadata   string
			embedding  *pgvector.Vector
			similarity float64
		)
		err := rows.Scan(&paper.ID, &doi, &paper.Title, &authors, &paper.Abstract, &paper.URL,
			&paper.Source, &published, &categories, &metadata, &embedding, &paper.FetchedAt, &similarity)
		if err != nil {
			return nil, fmt.Errorf("scan similar: %w", err)
		}
		fillPgPaper(&paper, doi, published, authors, categories, metadata, embedding)
		matches = append(matches, domain.SimilarPaper{Paper: paper, Similarity: similarity})
	}
	return matches, rows.Err()
}

// SetPaperTags replaces the paper's tags in one transaction.
func (p *Postgres) SetPaperTags(ctx context.Context, paperID int64, tags []string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tags tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM paper_tags WHERE paper_id = $1`, paperID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, err := tx.Exec(ctx, `INSERT INTO paper_tags (paper_id, tag) VALUES ($1, $2) ON CONFLICT DO NOTHING`, paperID, tag); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tags: %w", err)
	}
	return nil
}

// GetPaperTags returns the paper's tags sorted alphabetically.
func (p *Postgres) GetPaperTags(ctx context.Context, paperID int64) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT tag FROM paper_tags WHERE paper_id = $1 ORDER BY tag`, paperID)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()
	return collectPgStrings(rows)
}

// ListTags returns every distinct tag in use.
func (p *Postgres) ListTags(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT tag FROM paper_tags ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()
	return collectPgStrings(rows)
}

// ListPapers returns papers (with their score when present) for the browse view.
func (p *Postgres) ListPapers(ctx context.Context, filter ports.ListFilter) ([]domain.ScoredPaper, error) {
	query, args, err := paperListQuery(filter, sq.Dollar)
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query papers: %w", err)
	}
	defer rows.Close()

	var result []domain.ScoredPaper
	for rows.Next() {
		sp, err := scanPgListRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan paper row: %w", err)
		}
		result = append(result, sp)
	}
	return result, rows.Err()
}

// CountPapers counts papers matching the filter.
func (p *Postgres) CountPapers(ctx context.Context, filter ports.ListFilter) (int, error) {
	query, args, err := paperCountQuery(filter, sq.Dollar)
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count papers: %w", err)
	}
	return count, nil
}

func (p *Postgres) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

// pgEmbedding converts a raw vector to the pgvector parameter, NULL when empty.
func pgEmbedding(vec []float32) any {
	if len(vec) == 0 {
		return nil
	}
	return pgvector.NewVector(vec)
}

func prefixedPgPaperColumns(alias string) string {
	cols := strings.Split(pgPaperColumns, ", ")
	for i, col := range cols {
		cols[i] = alias + "." + col
	}
	return strings.Join(cols, ", ")
}

func scanPgPaper(row pgx.Row) (domain.Paper, error) {
	var (
		p          domain.Paper
		doi        *string
		published  *time.Time
		authors    string
		categories string
		metadata   string
		embedding  *pgvector.Vector
	)
	err := row.Scan(&p.ID, &doi, &p.Title, &authors, &p.Abstract, &p.URL, &p.Source,
		&published, &categories, &metadata, &embedding, &p.FetchedAt)
	if err != nil {
		return p, err
	}
	fillPgPaper(&p, doi, published, authors, categories, metadata, embedding)
	return p, nil
}

func fillPgPaper(p *domain.Paper, doi *string, published *time.Time, authors, categories, metadata string, embedding *pgvector.Vector) {
	if doi != nil {
		p.DOI = *doi
	}
	if published != nil {
		p.PublishedDate = *published
	}
	p.Authors = decodeStrings(authors)
	p.Categories = decodeStrings(categories)
	p.Metadata = decodeMeta(metadata)
	if embedding != nil {
		p.Embedding = embedding.Slice()
	}
}

func scanPgScoredPaper(row pgx.Row) (domain.ScoredPaper, error) {
	var (
		sp         domain.ScoredPaper
		doi        *string
		published  *time.Time
		authors    string
		categories string
		metadata   string
		design     string
		tier       string
		detail     string
	)
	err := row.Scan(
		&sp.Paper.ID, &doi, &sp.Paper.Title, &authors, &sp.Paper.Abstract, &sp.Paper.URL,
		&sp.Paper.Source, &published, &categories, &metadata, &sp.Paper.FetchedAt,
		&sp.Score.ID, &sp.Score.PaperID, &sp.Score.ProfileID,
		&sp.Score.Relevance, &sp.Score.Quality, &sp.Score.Combined,
		&sp.Score.Summary, &design, &tier, &detail, &sp.Score.ScoredAt,
	)
	if err != nil {
		return sp, err
	}

	fillPgPaper(&sp.Paper, doi, published, authors, categories, metadata, nil)
	sp.Score.StudyDesign = domain.StudyDesign(design)
	sp.Score.QualityTier = domain.QualityTier(tier)
	sp.Score.Detail = decodeMeta(detail)
	return sp, nil
}

// scanPgListRow scans the LEFT JOIN browse row where score columns may be null.
func scanPgListRow(row pgx.Row) (domain.ScoredPaper, error) {
	var (
		sp         domain.ScoredPaper
		doi        *string
		published  *time.Time
		authors    string
		categories string
		metadata   string
		scoreID    *int64
		relevance  *float64
		quality    *float64
		combined   *float64
		summary    *string
		design     *string
		tier       *string
		scoredAt   *time.Time
	)
	err := row.Scan(
		&sp.Paper.ID, &doi, &sp.Paper.Title, &authors, &sp.Paper.Abstract, &sp.Paper.URL,
		&sp.Paper.Source, &published, &categories, &metadata, &sp.Paper.FetchedAt,
		&scoreID, &relevance, &quality, &combined, &summary, &design, &tier, &scoredAt,
	)
	if err != nil {
		return sp, err
	}

	fillPgPaper(&sp.Paper, doi, published, authors, categories, metadata, nil)

	if scoreID != nil {
		sp.Score.ID = *scoreID
		sp.Score.PaperID = sp.Paper.ID
		sp.Score.Relevance = *relevance
		sp.Score.Quality = *quality
		sp.Score.Combined = *combined
		if summary != nil {
			sp.Score.Summary = *summary
		}
		if design != nil {
			sp.Score.StudyDesign = domain.StudyDesign(*design)
		}
		if tier != nil {
			sp.Score.QualityTier = domain.QualityTier(*tier)
		}
		if scoredAt != nil {
			sp.Score.ScoredAt = *scoredAt
		}
	}
	return sp, nil
}

func collectPgStrings(rows pgx.Rows) ([]string, error) {
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
