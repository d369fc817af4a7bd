package storage

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"BioMedNews/internal/ports"
)

// EmbeddingDim is the fixed dimensionality of paper embeddings.
const EmbeddingDim = 384

// encodeStrings serializes a string slice as JSON text, never null.
func encodeStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeStrings(data string) []string {
	if data == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil
	}
	return values
}

func encodeMeta(meta map[string]any) string {
	if len(meta) == 0 {
		return "{}"
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeMeta(data string) map[string]any {
	if data == "" {
		return nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil
	}
	return meta
}

func encodeIDs(ids []int64) string {
	if len(ids) == 0 {
		return "[]"
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeIDs(data string) []int64 {
	if data == "" {
		return nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil
	}
	return ids
}

func encodeVector(vec []float32) string {
	if len(vec) == 0 {
		return "[]"
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeVector(data string) []float32 {
	if data == "" {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal([]byte(data), &vec); err != nil {
		return nil
	}
	return vec
}

// CosineSimilarity returns dot(a,b)/(|a||b|), or 0 when either vector has
// zero norm. The dot product pairs elements up to the shorter length; each
// norm covers its full vector.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	var normA, normB float64
	for _, v := range a {
		normA += float64(v) * float64(v)
	}
	for _, v := range b {
		normB += float64(v) * float64(v)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZeroTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// paperListColumns are the shared browse-view columns; embeddings are omitted.
var paperListColumns = []string{
	"p.id", "p.doi", "p.title", "p.authors", "p.abstract", "p.url",
	"p.source", "p.published_date", "p.categories", "p.metadata", "p.fetched_at",
	"s.id", "s.relevance", "s.quality", "s.combined", "s.summary",
	"s.study_design", "s.quality_tier", "s.scored_at",
}

// paperListQuery assembles the browse query for either backend's placeholders.
func paperListQuery(filter ports.ListFilter, format sq.PlaceholderFormat) (string, []any, error) {
	b := sq.Select(paperListColumns...).
		From("papers p").
		LeftJoin("scores s ON s.paper_id = p.id").
		OrderBy(paperOrder(filter.Sort))

	b = applyPaperFilter(b, filter)
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		b = b.Offset(uint64(filter.Offset))
	}
	return b.PlaceholderFormat(format).ToSql()
}

// paperCountQuery counts distinct papers matching the same filter.
func paperCountQuery(filter ports.ListFilter, format sq.PlaceholderFormat) (string, []any, error) {
	b := sq.Select("COUNT(DISTINCT p.id)").
		From("papers p").
		LeftJoin("scores s ON s.paper_id = p.id")

	b = applyPaperFilter(b, filter)
	return b.PlaceholderFormat(format).ToSql()
}

func applyPaperFilter(b sq.SelectBuilder, filter ports.ListFilter) sq.SelectBuilder {
	if filter.Source != "" {
		b = b.Where(sq.Eq{"p.source": filter.Source})
	}
	if filter.QualityTier != "" {
		b = b.Where(sq.Eq{"s.quality_tier": filter.QualityTier})
	}
	if filter.StudyDesign != "" {
		b = b.Where(sq.Eq{"s.study_design": filter.StudyDesign})
	}
	if filter.Tag != "" {
		b = b.Where("EXISTS (SELECT 1 FROM paper_tags t WHERE t.paper_id = p.id AND t.tag = ?)", filter.Tag)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		b = b.Where("(LOWER(p.title) LIKE ? OR LOWER(p.abstract) LIKE ?)", like, like)
	}
	return b
}

func paperOrder(sort string) string {
	switch sort {
	case "newest":
		return "p.fetched_at DESC"
	case "published":
		return "p.published_date DESC NULLS LAST"
	case "relevance":
		return "s.relevance DESC NULLS LAST"
	case "quality":
		return "s.quality DESC NULLS LAST"
	default:
		return "s.combined DESC NULLS LAST"
	}
}
