package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"BioMedNews/internal/domain"
	"BioMedNews/internal/logging"
)

// stubChat replays scripted responses (or errors) per call, in order.
type stubChat struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
}

func (c *stubChat) Chat(_ context.Context, _, _ string, _ bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.calls
	c.calls++
	if idx < len(c.errs) && c.errs[idx] != nil {
		return "", c.errs[idx]
	}
	if idx < len(c.responses) {
		return c.responses[idx], nil
	}
	return "", fmt.Errorf("unscripted chat call %d", idx)
}

func (c *stubChat) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func rctPaper() domain.Paper {
	return domain.Paper{
		ID:       1,
		Title:    "A randomized trial of drug X",
		Abstract: "Double-blind placebo-controlled study.",
		Metadata: map[string]any{"pub_type": "Randomized Controlled Trial"},
	}
}

func TestAssessMetadataRCT(t *testing.T) {
	t.Parallel()

	a := NewTieredAssessor(nil, logging.Discard())

	got, err := a.Assess(context.Background(), rctPaper(), 1)
	if err != nil {
		t.Fatalf("Assess error: %v", err)
	}

	if got.Design != domain.DesignRCT {
		t.Fatalf("expected design rct, got %s", got.Design)
	}
	if got.Tier != domain.TierExperimental {
		t.Fatalf("expected experimental tier, got %s", got.Tier)
	}
	if math.Abs(got.Score-0.8) > 1e-9 {
		t.Fatalf("expected score 0.8, got %f", got.Score)
	}
	if got.AssessedTier != 1 {
		t.Fatalf("expected assessed tier 1, got %d", got.AssessedTier)
	}
}

func TestAssessMetadataMetaAnalysisBeatsReview(t *testing.T) {
	t.Parallel()

	paper := domain.Paper{Metadata: map[string]any{"pub_type": "Systematic Review and Meta-Analysis"}}
	a := NewTieredAssessor(nil, logging.Discard())

	got, err := a.Assess(context.Background(), paper, 1)
	if err != nil {
		t.Fatalf("Assess error: %v", err)
	}

	if got.Design != domain.DesignMetaAnalysis {
		t.Fatalf("expected design meta_analysis, got %s", got.Design)
	}
	if got.Tier != domain.TierSynthesis {
		t.Fatalf("expected synthesis tier, got %s", got.Tier)
	}
	if math.Abs(got.Score-0.9) > 1e-9 {
		t.Fatalf("expected score 0.9, got %f", got.Score)
	}
}

func TestAssessMetadataUnclassified(t *testing.T) {
	t.Parallel()

	a := NewTieredAssessor(nil, logging.Discard())

	got, err := a.Assess(context.Background(), domain.Paper{Title: "Untyped preprint"}, 1)
	if err != nil {
		t.Fatalf("Assess error: %v", err)
	}

	if got.Design != domain.DesignUnclassified {
		t.Fatalf("expected unclassified design, got %s", got.Design)
	}
	if math.Abs(got.Score-0.3) > 1e-9 {
		t.Fatalf("expected floor score 0.3, got %f", got.Score)
	}
	if got.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %f", got.Confidence)
	}
}

func TestAssessDelegatedClassification(t *testing.T) {
	t.Parallel()

	chat := &stubChat{responses: []string{`{"study_design": "cohort-prospective", "confidence": 0.7}`}}
	a := NewTieredAssessor(chat, logging.Discard())

	got, err := a.Assess(context.Background(), domain.Paper{Title: "Follow-up of 2000 adults"}, 2)
	if err != nil {
		t.Fatalf("Assess error: %v", err)
	}

	if got.Design != domain.DesignCohortProspective {
		t.Fatalf("expected cohort_prospective, got %s", got.Design)
	}
	if math.Abs(got.Score-0.6) > 1e-9 {
		t.Fatalf("expected score 0.6, got %f", got.Score)
	}
	if got.AssessedTier != 2 {
		t.Fatalf("expected assessed tier 2, got %d", got.AssessedTier)
	}
	if math.Abs(got.Confidence-0.7) > 1e-9 {
		t.Fatalf("expected confidence 0.7, got %f", got.Confidence)
	}
}

func TestAssessSkipsDelegationWhenClassified(t *testing.T) {
	t.Parallel()

	chat := &stubChat{responses: []string{`{"study_design": "review", "confidence": 0.9}`}}
	a := NewTieredAssessor(chat, logging.Discard())

	got, err := a.Assess(context.Background(), rctPaper(), 2)
	if err != nil {
		t.Fatalf("Assess error: %v", err)
	}

	if got.Design != domain.DesignRCT {
		t.Fatalf("expected rct from metadata, got %s", got.Design)
	}
	if chat.callCount() != 0 {
		t.Fatalf("expected no delegated calls, got %d", chat.callCount())
	}
}

func TestAssessDelegationFailureKeepsMetadata(t *testing.T) {
	t.Parallel()

	chat := &stubChat{errs: []error{errors.New("model unavailable")}}
	a := NewTieredAssessor(chat, logging.Discard())

	got, err := a.Assess(context.Background(), domain.Paper{Title: "Untyped preprint"}, 2)
	if err != nil {
		t.Fatalf("Assess must not fail the item: %v", err)
	}

	if got.Design != domain.DesignUnclassified {
		t.Fatalf("expected fallback to unclassified, got %s", got.Design)
	}
	if got.AssessedTier != 1 {
		t.Fatalf("expected assessed tier 1, got %d", got.AssessedTier)
	}
}

func TestAssessDeepScoreTakesPrecedence(t *testing.T) {
	t.Parallel()

	chat := &stubChat{responses: []string{
		`{"quality_score": 7, "strengths": ["large cohort"], "limitations": ["single center"]}`,
	}}
	a := NewTieredAssessor(chat, logging.Discard())

	got, err := a.Assess(context.Background(), rctPaper(), 3)
	if err != nil {
		t.Fatalf("Assess error: %v", err)
	}

	if math.Abs(got.Score-0.7) > 1e-9 {
		t.Fatalf("expected direct score 0.7 to override lookup, got %f", got.Score)
	}
	if got.RawScore != 7 {
		t.Fatalf("expected raw score 7, got %f", got.RawScore)
	}
	if got.AssessedTier != 3 {
		t.Fatalf("expected assessed tier 3, got %d", got.AssessedTier)
	}
	if got.Design != domain.DesignRCT {
		t.Fatalf("design must survive deep assessment, got %s", got.Design)
	}
	if _, ok := got.Detail["strengths"]; !ok {
		t.Fatalf("expected strengths in detail, got %v", got.Detail)
	}
}

func TestAssessDeepFailureKeepsLookupScore(t *testing.T) {
	t.Parallel()

	chat := &stubChat{errs: []error{errors.New("timeout")}}
	a := NewTieredAssessor(chat, logging.Discard())

	got, err := a.Assess(context.Background(), rctPaper(), 3)
	if err != nil {
		t.Fatalf("Assess must not fail the item: %v", err)
	}

	if math.Abs(got.Score-0.8) > 1e-9 {
		t.Fatalf("expected lookup score 0.8, got %f", got.Score)
	}
	if got.AssessedTier != 1 {
		t.Fatalf("expected assessed tier 1, got %d", got.AssessedTier)
	}
}

func TestAssessDeepZeroScoreIgnored(t *testing.T) {
	t.Parallel()

	chat := &stubChat{responses: []string{`{"quality_score": 0}`}}
	a := NewTieredAssessor(chat, logging.Discard())

	got, err := a.Assess(context.Background(), rctPaper(), 3)
	if err != nil {
		t.Fatalf("Assess error: %v", err)
	}

	if math.Abs(got.Score-0.8) > 1e-9 {
		t.Fatalf("non-positive direct score must not override lookup, got %f", got.Score)
	}
}

func TestAssessEscalatesThroughTiers(t *testing.T) {
	t.Parallel()

	chat := &stubChat{responses: []string{
		`{"study_design": "cohort_prospective", "confidence": 0.6}`,
		`{"quality_score": 9, "strengths": [], "limitations": []}`,
	}}
	a := NewTieredAssessor(chat, logging.Discard())

	got, err := a.Assess(context.Background(), domain.Paper{Title: "Untyped preprint"}, 3)
	if err != nil {
		t.Fatalf("Assess error: %v", err)
	}

	if chat.callCount() != 2 {
		t.Fatalf("expected classify then assess calls, got %d", chat.callCount())
	}
	if got.Design != domain.DesignCohortProspective {
		t.Fatalf("expected delegated design, got %s", got.Design)
	}
	if math.Abs(got.Score-0.9) > 1e-9 {
		t.Fatalf("expected direct score 0.9, got %f", got.Score)
	}
	if got.AssessedTier != 3 {
		t.Fatalf("expected assessed tier 3, got %d", got.AssessedTier)
	}
}
