package scoring

import (
	"context"
	"errors"
	"math"
	"testing"

	"BioMedNews/internal/domain"
	"BioMedNews/internal/logging"
)

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (e *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

func TestAgentScoreParsesVerdict(t *testing.T) {
	t.Parallel()

	chat := &stubChat{responses: []string{
		`Here is my verdict: {"relevance_score": 0.92, "summary": "Strong fit.",
		"relevance_rationale": "Directly addresses the reader's topic.",
		"key_findings": ["finding one"], "matched_tags": ["oncology"]} Hope this helps.`,
	}}
	s := NewAgentScorer(chat, nil, logging.Discard())

	got, err := s.Score(context.Background(), domain.Paper{Title: "T"}, domain.Profile{Interests: []string{"oncology"}})
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}

	if math.Abs(got.Score-0.92) > 1e-9 {
		t.Fatalf("expected score 0.92, got %f", got.Score)
	}
	if got.Summary != "Strong fit." {
		t.Fatalf("unexpected summary: %q", got.Summary)
	}
	if len(got.MatchedTags) != 1 || got.MatchedTags[0] != "oncology" {
		t.Fatalf("unexpected tags: %v", got.MatchedTags)
	}
	if len(got.KeyFindings) != 1 {
		t.Fatalf("unexpected findings: %v", got.KeyFindings)
	}
}

func TestAgentScoreClampsRange(t *testing.T) {
	t.Parallel()

	chat := &stubChat{responses: []string{`{"relevance_score": 1.7, "summary": "over"}`}}
	s := NewAgentScorer(chat, nil, logging.Discard())

	got, err := s.Score(context.Background(), domain.Paper{}, domain.Profile{})
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if got.Score != 1.0 {
		t.Fatalf("expected clamp to 1.0, got %f", got.Score)
	}
}

func TestAgentScoreMalformedResponseDegrades(t *testing.T) {
	t.Parallel()

	chat := &stubChat{responses: []string{"no verdict today"}}
	s := NewAgentScorer(chat, nil, logging.Discard())

	got, err := s.Score(context.Background(), domain.Paper{Title: "T"}, domain.Profile{})
	if err != nil {
		t.Fatalf("malformed output must not fail the paper: %v", err)
	}
	if got.Score != 0 {
		t.Fatalf("expected zero score, got %f", got.Score)
	}
	if got.Rationale != "parse error" {
		t.Fatalf("expected parse-error rationale, got %q", got.Rationale)
	}
}

func TestAgentScoreChatErrorPropagates(t *testing.T) {
	t.Parallel()

	chat := &stubChat{errs: []error{errors.New("upstream down")}}
	s := NewAgentScorer(chat, nil, logging.Discard())

	if _, err := s.Score(context.Background(), domain.Paper{}, domain.Profile{}); err == nil {
		t.Fatal("expected transport error to propagate")
	}
}

func TestAgentScoreRequiresChatClient(t *testing.T) {
	t.Parallel()

	s := NewAgentScorer(nil, nil, logging.Discard())
	if _, err := s.Score(context.Background(), domain.Paper{}, domain.Profile{}); err == nil {
		t.Fatal("expected error without chat client")
	}
}

func TestAgentEmbedCachesByText(t *testing.T) {
	t.Parallel()

	embedder := &stubEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	s := NewAgentScorer(&stubChat{}, embedder, logging.Discard())

	first, err := s.Embed(context.Background(), "same text")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	second, err := s.Embed(context.Background(), "same text")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}

	if embedder.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", embedder.calls)
	}
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("unexpected vectors: %v / %v", first, second)
	}
}

func TestAgentEmbedWithoutEmbedder(t *testing.T) {
	t.Parallel()

	s := NewAgentScorer(&stubChat{}, nil, logging.Discard())

	vec, err := s.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if vec != nil {
		t.Fatalf("expected nil embedding, got %v", vec)
	}
}
