package domain

import "time"

// Weights of the combined score. Relevance to the reader's interests is judged
// more decisive for whether a paper gets read than raw evidentiary quality.
const (
	RelevanceWeight = 0.6
	QualityWeight   = 0.4
)

// Combine recomputes the weighted combined score from its two components.
func Combine(relevance, quality float64) float64 {
	return RelevanceWeight*relevance + QualityWeight*quality
}

// Score captures one profile's assessment of a paper. At most one Score exists
// per (paper, profile) pair; re-scoring overwrites it.
type Score struct {
	ID          int64
	PaperID     int64
	ProfileID   int64
	Relevance   float64
	Quality     float64
	Combined    float64
	Summary     string
	StudyDesign StudyDesign
	QualityTier QualityTier
	Detail      map[string]any
	ScoredAt    time.Time
}

// ScoredPaper pairs a paper with its score for ranking and digest selection.
type ScoredPaper struct {
	Paper Paper
	Score Score
}

// RelevanceResult is the outcome of a relevance-scoring pass over one paper.
type RelevanceResult struct {
	Score       float64
	Summary     string
	Rationale   string
	KeyFindings []string
	MatchedTags []string
}
