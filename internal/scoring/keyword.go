package scoring

import (
	"context"
	"regexp"
	"strings"

	"BioMedNews/internal/domain"
	"BioMedNews/internal/ports"
)

const (
	titleWeight     = 3.0
	abstractWeight  = 1.0
	overlapDiscount = 0.6
)

var wordExpr = regexp.MustCompile(`\w+`)

// KeywordScorer scores relevance via keyword and phrase matching against the
// title and abstract. Exact phrase hits outweigh partial token overlap, and
// title hits outweigh abstract hits. The paper's score is the mean per-phrase
// contribution across all interest phrases. It never produces embeddings.
type KeywordScorer struct{}

var _ ports.RelevanceScorer = (*KeywordScorer)(nil)

// NewKeywordScorer builds the dependency-free relevance strategy.
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{}
}

// Score returns the mean per-interest contribution in [0,1].
func (s *KeywordScorer) Score(_ context.Context, paper domain.Paper, profile domain.Profile) (domain.RelevanceResult, error) {
	if len(profile.Interests) == 0 {
		return domain.RelevanceResult{}, nil
	}

	title := strings.ToLower(paper.Title)
	abstract := strings.ToLower(paper.Abstract)
	titleTokens := tokenize(title)
	abstractTokens := tokenize(abstract)

	total := 0.0
	for _, interest := range profile.Interests {
		phrase := strings.ToLower(interest)
		phraseTokens := tokenize(phrase)
		if len(phraseTokens) == 0 {
			continue
		}

		score := 0.0
		if strings.Contains(title, phrase) {
			score = max(score, titleWeight)
		}
		if strings.Contains(abstract, phrase) {
			score = max(score, abstractWeight)
		}
		score = max(score, overlapRatio(phraseTokens, titleTokens)*titleWeight*overlapDiscount)
		score = max(score, overlapRatio(phraseTokens, abstractTokens)*abstractWeight*overlapDiscount)

		total += min(score/titleWeight, 1.0)
	}

	raw := total / float64(len(profile.Interests))
	return domain.RelevanceResult{Score: min(raw, 1.0)}, nil
}

// Embed reports that this strategy does not support embeddings.
func (s *KeywordScorer) Embed(context.Context, string) ([]float32, error) {
	return nil, nil
}

func tokenize(text string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, word := range wordExpr.FindAllString(text, -1) {
		tokens[word] = struct{}{}
	}
	return tokens
}

func overlapRatio(phrase, text map[string]struct{}) float64 {
	if len(phrase) == 0 {
		return 0
	}
	shared := 0
	for token := range phrase {
		if _, ok := text[token]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(phrase))
}
