package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"BioMedNews/internal/domain"
	"BioMedNews/internal/ports"
)

const embedCacheSize = 512

const relevanceSystemPrompt = `You score biomedical publications for relevance to a reader's research interests.
Respond with a single JSON object with keys: relevance_score (number 0.0-1.0),
summary (2-3 sentences), relevance_rationale (one sentence), key_findings
(array of strings), matched_tags (array of short topic labels).`

const relevancePromptFormat = `Reader interests: %s

Title: %s

Abstract: %s

Categories: %s

Score how relevant this publication is to the reader's interests.`

// AgentScorer delegates relevance scoring to a text-understanding model and
// caches embeddings by input text. Malformed model output degrades to a zero
// score instead of failing the paper.
type AgentScorer struct {
	chat     ports.ChatClient
	embedder ports.Embedder
	cache    *lru.Cache[string, []float32]
	logger   *slog.Logger
}

var _ ports.RelevanceScorer = (*AgentScorer)(nil)

// NewAgentScorer wires the chat client and an optional embedder.
func NewAgentScorer(chat ports.ChatClient, embedder ports.Embedder, logger *slog.Logger) *AgentScorer {
	cache, _ := lru.New[string, []float32](embedCacheSize)
	return &AgentScorer{chat: chat, embedder: embedder, cache: cache, logger: logger}
}

type agentVerdict struct {
	RelevanceScore float64  `json:"relevance_score"`
	Summary        string   `json:"summary"`
	Rationale      string   `json:"relevance_rationale"`
	KeyFindings    []string `json:"key_findings"`
	MatchedTags    []string `json:"matched_tags"`
}

// Score asks the model for a relevance verdict over title, abstract, and categories.
func (s *AgentScorer) Score(ctx context.Context, paper domain.Paper, profile domain.Profile) (domain.RelevanceResult, error) {
	if s.chat == nil {
		return domain.RelevanceResult{}, fmt.Errorf("agent scorer has no chat client")
	}

	prompt := fmt.Sprintf(relevancePromptFormat,
		profile.InterestText(),
		paper.Title,
		paper.Abstract,
		strings.Join(paper.Categories, "; "),
	)

	content, err := s.chat.Chat(ctx, relevanceSystemPrompt, prompt, true)
	if err != nil {
		return domain.RelevanceResult{}, fmt.Errorf("relevance chat: %w", err)
	}

	var verdict agentVerdict
	if err := json.Unmarshal([]byte(extractJSON(content)), &verdict); err != nil {
		s.warn("unparseable relevance response", "title", truncate(paper.Title, 80))
		return domain.RelevanceResult{Rationale: "parse error"}, nil
	}

	return domain.RelevanceResult{
		Score:       clamp01(verdict.RelevanceScore),
		Summary:     verdict.Summary,
		Rationale:   verdict.Rationale,
		KeyFindings: verdict.KeyFindings,
		MatchedTags: verdict.MatchedTags,
	}, nil
}

// Embed produces an embedding via the configured embedder, memoized by text.
// Returns nil when no embedder is configured.
func (s *AgentScorer) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, nil
	}
	if vec, ok := s.cache.Get(text); ok {
		return vec, nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if vec != nil {
		s.cache.Add(text, vec)
	}
	return vec, nil
}

func (s *AgentScorer) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

// extractJSON trims any prose the model wraps around the JSON object.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return content
	}
	return content[start : end+1]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
