package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"BioMedNews/internal/domain"
	"BioMedNews/internal/ports"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL UNIQUE,
	interests TEXT NOT NULL DEFAULT '[]',
	min_relevance REAL NOT NULL DEFAULT 0,
	min_quality REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS papers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	doi TEXT UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	authors TEXT NOT NULL DEFAULT '[]',
	abstract TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	published_date DATETIME,
	categories TEXT NOT NULL DEFAULT '[]',
	metadata TEXT NOT NULL DEFAULT '{}',
	embedding TEXT,
	fetched_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_papers_fetched_at ON papers (fetched_at DESC);

CREATE TABLE IF NOT EXISTS scores (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	paper_id INTEGER NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
	profile_id INTEGER NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	relevance REAL NOT NULL,
	quality REAL NOT NULL,
	combined REAL NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	study_design TEXT NOT NULL DEFAULT '',
	quality_tier TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '{}',
	scored_at DATETIME NOT NULL,
	UNIQUE (paper_id, profile_id)
);

CREATE INDEX IF NOT EXISTS idx_scores_profile_combined ON scores (profile_id, combined DESC);

CREATE TABLE IF NOT EXISTS delivery_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	profile_id INTEGER NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	paper_ids TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS paper_tags (
	paper_id INTEGER NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
	tag TEXT NOT NULL,
	PRIMARY KEY (paper_id, tag)
);
`

const sqlitePaperColumns = `id, doi, title, authors, abstract, url, source, published_date, categories, metadata, embedding, fetched_at`

// SQLite persists papers in a single-file database. Similarity search loads
// embedded papers and ranks them in process since SQLite has no vector operator.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.PaperStore = (*SQLite)(nil)

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Writes are serialized in SQLite anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLite{db: db, logger: logger}, nil
}

// Init creates the schema when missing.
func (s *SQLite) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// UpsertPaper inserts the paper or, when its DOI already exists, updates the
// mutable fields and returns the existing row id. Papers without a DOI always
// insert as new rows.
func (s *SQLite) UpsertPaper(ctx context.Context, paper domain.Paper) (int64, error) {
	fetchedAt := paper.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	if paper.DOI == "" {
		query := `INSERT INTO papers (doi, title, authors, abstract, url, source, published_date, categories, metadata, embedding, fetched_at)
		          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
		var id int64
		err := s.db.QueryRowContext(ctx, query,
			nil,
			paper.Title,
			encodeStrings(paper.Authors),
			paper.Abstract,
			paper.URL,
			paper.Source,
			nullIfZeroTime(paper.PublishedDate),
			encodeStrings(paper.Categories),
			encodeMeta(paper.Metadata),
			nullIfEmpty(encodeEmbedding(paper.Embedding)),
			fetchedAt,
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert paper: %w", err)
		}
		return id, nil
	}

	query := `INSERT INTO papers (doi, title, authors, abstract, url, source, published_date, categories, metadata, embedding, fetched_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT (doi) DO UPDATE SET
	              title = excluded.title,
	              authors = excluded.authors,
	              abstract = excluded.abstract,
	              url = excluded.url,
	              categories = excluded.categories,
	              metadata = excluded.metadata
	          RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		paper.DOI,
		paper.Title,
		encodeStrings(paper.Authors),
		paper.Abstract,
		paper.URL,
		paper.Source,
		nullIfZeroTime(paper.PublishedDate),
		encodeStrings(paper.Categories),
		encodeMeta(paper.Metadata),
		nullIfEmpty(encodeEmbedding(paper.Embedding)),
		fetchedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert paper: %w", err)
	}
	return id, nil
}

// PaperExists reports whether a paper with the DOI is stored.
func (s *SQLite) PaperExists(ctx context.Context, doi string) (bool, error) {
	if doi == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM papers WHERE doi = ?`, doi).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query doi: %w", err)
	}
	return true, nil
}

// GetPaper returns the paper by id, or nil when absent.
func (s *SQLite) GetPaper(ctx context.Context, id int64) (*domain.Paper, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqlitePaperColumns+` FROM papers WHERE id = ?`, id)
	return s.scanOptionalPaper(row)
}

// GetPaperByDOI returns the paper with the DOI, or nil when absent.
func (s *SQLite) GetPaperByDOI(ctx context.Context, doi string) (*domain.Paper, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqlitePaperColumns+` FROM papers WHERE doi = ?`, doi)
	return s.scanOptionalPaper(row)
}

func (s *SQLite) scanOptionalPaper(row *sql.Row) (*domain.Paper, error) {
	paper, err := scanSQLitePaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan paper: %w", err)
	}
	return &paper, nil
}

// ListUnscored returns papers without a score for the profile, newest first.
func (s *SQLite) ListUnscored(ctx context.Context, profileID int64, limit int) ([]domain.Paper, error) {
	query := `SELECT p.id, p.doi, p.title, p.authors, p.abstract, p.url, p.source, p.published_date, p.categories, p.metadata, p.embedding, p.fetched_at
	          FROM papers p
	          LEFT JOIN scores s ON s.paper_id = p.id AND s.profile_id = ?
	          WHERE s.id IS NULL
	          ORDER BY p.fetched_at DESC
	          LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("query unscored: %w", err)
	}
	defer rows.Close()

	var papers []domain.Paper
	for rows.Next() {
		paper, err := scanSQLitePaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unscored: %w", err)
		}
		papers = append(papers, paper)
	}
	return papers, rows.Err()
}

// SetEmbedding stores the embedding vector for a paper.
func (s *SQLite) SetEmbedding(ctx context.Context, paperID int64, embedding []float32) error {
	_, err := s.db.ExecContext(ctx, `UPDATE papers SET embedding = ? WHERE id = ?`, encodeVector(embedding), paperID)
	if err != nil {
		return fmt.Errorf("set embedding: %w", err)
	}
	return nil
}

// SaveScore upserts the score keyed by (paper_id, profile_id).
func (s *SQLite) SaveScore(ctx context.Context, score domain.Score) error {
	scoredAt := score.ScoredAt
	if scoredAt.IsZero() {
		scoredAt = time.Now().UTC()
	}

	query := `INSERT INTO scores (paper_id, profile_id, relevance, quality, combined, summary, study_design, quality_tier, detail, scored_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT (paper_id, profile_id) DO UPDATE SET
	              relevance = excluded.relevance,
	              quality = excluded.quality,
	              combined = excluded.combined,
	              summary = excluded.summary,
	              study_design = excluded.study_design,
	              quality_tier = excluded.quality_tier,
	              detail = excluded.detail,
	              scored_at = excluded.scored_at`

	_, err := s.db.ExecContext(ctx, query,
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
func (s *SQLite) GetScore(ctx context.Context, paperID int64) (*domain.Score, error) {
	query := `SELECT id, paper_id, profile_id, relevance, quality, combined, summary, study_design, quality_tier, detail, scored_at
	          FROM scores WHERE paper_id = ? ORDER BY scored_at DESC LIMIT 1`

	var (
		score  domain.Score
		design string
		tier   string
		detail string
	)
	err := s.db.QueryRowContext(ctx, query, paperID).Scan(
		&score.ID, &score.PaperID, &score.ProfileID,
		&score.Relevance, &score.Quality, &score.Combined,
		&score.Summary, &design, &tier, &detail, &score.ScoredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
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
// With excludeDelivered set, previously delivered papers are removed before
// the limit is applied.
func (s *SQLite) TopScored(ctx context.Context, profileID int64, minRelevance, minQuality float64, limit int, excludeDelivered bool) ([]domain.ScoredPaper, error) {
	// The pool holds one connection, so the exclusion set must be resolved
	// before the main result set opens.
	var excluded map[int64]struct{}
	if excludeDelivered {
		var err error
		excluded, err = s.DeliveredPaperIDs(ctx, profileID)
		if err != nil {
			return nil, err
		}
	}

	query := `SELECT p.id, p.doi, p.title, p.authors, p.abstract, p.url, p.source, p.published_date, p.categories, p.metadata, p.fetched_at,
	                 s.id, s.paper_id, s.profile_id, s.relevance, s.quality, s.combined, s.summary, s.study_design, s.quality_tier, s.detail, s.scored_at
	          FROM scores s
	          JOIN papers p ON p.id = s.paper_id
	          WHERE s.profile_id = ? AND s.relevance >= ? AND s.quality >= ?
	          ORDER BY s.combined DESC`

	rows, err := s.db.QueryContext(ctx, query, profileID, minRelevance, minQuality)
	if err != nil {
		return nil, fmt.Errorf("query top scored: %w", err)
	}
	defer rows.Close()

	var result []domain.ScoredPaper
	for rows.Next() {
		sp, err := scanSQLiteScoredPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan top scored: %w", err)
		}
		if _, skip := excluded[sp.Paper.ID]; skip {
			continue
		}
		result = append(result, sp)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, rows.Err()
}

// UpsertProfile inserts or updates the profile keyed by email.
func (s *SQLite) UpsertProfile(ctx context.Context, profile domain.Profile) (int64, error) {
	query := `INSERT INTO profiles (name, email, interests, min_relevance, min_quality)
	          VALUES (?, ?, ?, ?, ?)
	          ON CONFLICT (email) DO UPDATE SET
	              name = excluded.name,
	              interests = excluded.interests,
	              min_relevance = excluded.min_relevance,
	              min_quality = excluded.min_quality
	          RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
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
func (s *SQLite) DeliveredPaperIDs(ctx context.Context, profileID int64) (map[int64]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT paper_ids FROM delivery_records WHERE profile_id = ?`, profileID)
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
func (s *SQLite) RecordDelivery(ctx context.Context, profileID int64, paperIDs []int64, status domain.DeliveryStatus) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO delivery_records (profile_id, paper_ids, status, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		profileID, encodeIDs(paperIDs), string(status), time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("record delivery: %w", err)
	}
	return id, nil
}

// FindSimilar ranks embedded papers by cosine similarity to the query vector.
func (s *SQLite) FindSimilar(ctx context.Context, query []float32, limit int, threshold float64) ([]domain.SimilarPaper, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqlitePaperColumns+` FROM papers WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query embedded papers: %w", err)
	}
	defer rows.Close()

	var matches []domain.SimilarPaper
	for rows.Next() {
		paper, err := scanSQLitePaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan embedded paper: %w", err)
		}
		similarity := CosineSimilarity(query, paper.Embedding)
		if similarity >= threshold {
			matches = append(matches, domain.SimilarPaper{Paper: paper, Similarity: similarity})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// SetPaperTags replaces the paper's tags in one transaction.
func (s *SQLite) SetPaperTags(ctx context.Context, paperID int64, tags []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tags tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM paper_tags WHERE paper_id = ?`, paperID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO paper_tags (paper_id, tag) VALUES (?, ?)`, paperID, tag); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tags: %w", err)
	}
	return nil
}

// GetPaperTags returns the paper's tags sorted alphabetically.
func (s *SQLite) GetPaperTags(ctx context.Context, paperID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM paper_tags WHERE paper_id = ? ORDER BY tag`, paperID)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

// ListTags returns every distinct tag in use.
func (s *SQLite) ListTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tag FROM paper_tags ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

// ListPapers returns papers (with their score when present) for the browse view.
func (s *SQLite) ListPapers(ctx context.Context, filter ports.ListFilter) ([]domain.ScoredPaper, error) {
	query, args, err := paperListQuery(filter, sq.Question)
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query papers: %w", err)
	}
	defer rows.Close()

	var result []domain.ScoredPaper
	for rows.Next() {
		sp, err := scanSQLiteListRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan paper row: %w", err)
		}
		result = append(result, sp)
	}
	return result, rows.Err()
}

// CountPapers counts papers matching the filter.
func (s *SQLite) CountPapers(ctx context.Context, filter ports.ListFilter) (int, error) {
	query, args, err := paperCountQuery(filter, sq.Question)
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count papers: %w", err)
	}
	return count, nil
}

func encodeEmbedding(vec []float32) string {
	if len(vec) == 0 {
		return ""
	}
	return encodeVector(vec)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePaper(row rowScanner) (domain.Paper, error) {
	var (
		p          domain.Paper
		doi        sql.NullString
		authors    string
		published  sql.NullTime
		categories string
		metadata   string
		embedding  sql.NullString
	)
	err := row.Scan(&p.ID, &doi, &p.Title, &authors, &p.Abstract, &p.URL, &p.Source,
		&published, &categories, &metadata, &embedding, &p.FetchedAt)
	if err != nil {
		return p, err
	}

	p.DOI = doi.String
	p.Authors = decodeStrings(authors)
	if published.Valid {
		p.PublishedDate = published.Time
	}
	p.Categories = decodeStrings(categories)
	p.Metadata = decodeMeta(metadata)
	if embedding.Valid {
		p.Embedding = decodeVector(embedding.String)
	}
	return p, nil
}

func scanSQLiteScoredPaper(row rowScanner) (domain.ScoredPaper, error) {
	var (
		sp         domain.ScoredPaper
		doi        sql.NullString
		authors    string
		published  sql.NullTime
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

	sp.Paper.DOI = doi.String
	sp.Paper.Authors = decodeStrings(authors)
	if published.Valid {
		sp.Paper.PublishedDate = published.Time
	}
	sp.Paper.Categories = decodeStrings(categories)
	sp.Paper.Metadata = decodeMeta(metadata)
	sp.Score.StudyDesign = domain.StudyDesign(design)
	sp.Score.QualityTier = domain.QualityTier(tier)
	sp.Score.Detail = decodeMeta(detail)
	return sp, nil
}

// scanSQLiteListRow scans the LEFT JOIN browse row where score columns may be null.
func scanSQLiteListRow(row rowScanner) (domain.ScoredPaper, error) {
	var (
		sp         domain.ScoredPaper
		doi        sql.NullString
		authors    string
		published  sql.NullTime
		categories string
		metadata   string
		scoreID    sql.NullInt64
		relevance  sql.NullFloat64
		quality    sql.NullFloat64
		combined   sql.NullFloat64
		summary    sql.NullString
		design     sql.NullString
		tier       sql.NullString
		scoredAt   sql.NullTime
	)
	err := row.Scan(
		&sp.Paper.ID, &doi, &sp.Paper.Title, &authors, &sp.Paper.Abstract, &sp.Paper.URL,
		&sp.Paper.Source, &published, &categories, &metadata, &sp.Paper.FetchedAt,
		&scoreID, &relevance, &quality, &combined, &summary, &design, &tier, &scoredAt,
	)
	if err != nil {
		return sp, err
	}

	sp.Paper.DOI = doi.String
	sp.Paper.Authors = decodeStrings(authors)
	if published.Valid {
		sp.Paper.PublishedDate = published.Time
	}
	sp.Paper.Categories = decodeStrings(categories)
	sp.Paper.Metadata = decodeMeta(metadata)

	if scoreID.Valid {
		sp.Score.ID = scoreID.Int64
		sp.Score.PaperID = sp.Paper.ID
		sp.Score.Relevance = relevance.Float64
		sp.Score.Quality = quality.Float64
		sp.Score.Combined = combined.Float64
		sp.Score.Summary = summary.String
		sp.Score.StudyDesign = domain.StudyDesign(design.String)
		sp.Score.QualityTier = domain.QualityTier(tier.String)
		if scoredAt.Valid {
			sp.Score.ScoredAt = scoredAt.Time
		}
	}
	return sp, nil
}

func collectStrings(rows *sql.Rows) ([]string, error) {
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
