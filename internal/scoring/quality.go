package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"BioMedNews/internal/domain"
	"BioMedNews/internal/ports"
)

const classifySystemPrompt = `You classify the study design of biomedical publications.
Respond with a single JSON object with keys: study_design (one of: rct,
controlled_trial, systematic_review, meta_analysis, cohort_prospective,
cohort_retrospective, case_control, cross_sectional, case_report, review,
unclassified) and confidence (number 0.0-1.0).`

const classifyPromptFormat = `Title: %s

Abstract: %s

Classify the study design.`

const assessSystemPrompt = `You assess the methodological quality of biomedical publications.
Respond with a single JSON object with keys: quality_score (number 0-10),
strengths (array of strings), limitations (array of strings).`

const assessPromptFormat = `Title: %s

Abstract: %s

Assess the methodological quality on a 0-10 scale.`

// designRules maps publication-type substrings to designs, most specific first.
var designRules = []struct {
	substr string
	design domain.StudyDesign
}{
	{"meta-analysis", domain.DesignMetaAnalysis},
	{"meta analysis", domain.DesignMetaAnalysis},
	{"systematic review", domain.DesignSystematicReview},
	{"randomized", domain.DesignRCT},
	{"randomised", domain.DesignRCT},
	{"controlled trial", domain.DesignControlledTrial},
	{"clinical trial", domain.DesignControlledTrial},
	{"case-control", domain.DesignCaseControl},
	{"case control", domain.DesignCaseControl},
	{"cross-sectional", domain.DesignCrossSectional},
	{"cross sectional", domain.DesignCrossSectional},
	{"retrospective", domain.DesignCohortRetrospective},
	{"prospective", domain.DesignCohortProspective},
	{"cohort", domain.DesignCohortProspective},
	{"case report", domain.DesignCaseReport},
	{"case series", domain.DesignCaseReport},
	{"review", domain.DesignReview},
}

// TieredAssessor estimates evidentiary quality with escalating cost:
// tier 1 classifies from declared metadata alone, tier 2 delegates design
// classification over title/abstract, tier 3 delegates a deep assessment
// producing a direct 0-10 score. A failed delegated call falls back to the
// next-lower tier's result; the item itself never fails.
type TieredAssessor struct {
	chat   ports.ChatClient
	logger *slog.Logger
}

var _ ports.QualityAssessor = (*TieredAssessor)(nil)

// NewTieredAssessor wires an optional chat client; without one only tier 1 runs.
func NewTieredAssessor(chat ports.ChatClient, logger *slog.Logger) *TieredAssessor {
	return &TieredAssessor{chat: chat, logger: logger}
}

// Assess runs the tier chain up to maxTier and returns the best assessment.
func (a *TieredAssessor) Assess(ctx context.Context, paper domain.Paper, maxTier int) (domain.QualityAssessment, error) {
	assessment := classifyMetadata(paper.PublicationTypes())

	if maxTier >= 2 && a.chat != nil && assessment.Design == domain.DesignUnclassified {
		if classified, err := a.classifyDelegated(ctx, paper); err != nil {
			a.warn("design classification failed", "paper_id", paper.ID, "error", err)
		} else {
			assessment = classified
		}
	}

	if maxTier >= 3 && a.chat != nil {
		if raw, detail, err := a.assessDelegated(ctx, paper); err != nil {
			a.warn("deep assessment failed", "paper_id", paper.ID, "error", err)
		} else if raw > 0 {
			assessment.RawScore = raw
			assessment.Score = clamp01(raw / 10)
			assessment.AssessedTier = 3
			if assessment.Detail == nil {
				assessment.Detail = detail
			} else {
				for k, v := range detail {
					assessment.Detail[k] = v
				}
			}
		}
	}

	return assessment, nil
}

// classifyMetadata is the tier-1 pass over declared publication-type strings.
func classifyMetadata(pubTypes []string) domain.QualityAssessment {
	joined := strings.ToLower(strings.Join(pubTypes, " | "))

	design := domain.DesignUnclassified
	confidence := 0.0
	for _, rule := range designRules {
		if strings.Contains(joined, rule.substr) {
			design = rule.design
			confidence = 0.9
			break
		}
	}

	return domain.QualityAssessment{
		Design:       design,
		Tier:         design.Tier(),
		Score:        design.Score(),
		Confidence:   confidence,
		AssessedTier: 1,
	}
}

type classifyVerdict struct {
	StudyDesign string  `json:"study_design"`
	Confidence  float64 `json:"confidence"`
}

func (a *TieredAssessor) classifyDelegated(ctx context.Context, paper domain.Paper) (domain.QualityAssessment, error) {
	prompt := fmt.Sprintf(classifyPromptFormat, paper.Title, paper.Abstract)

	content, err := a.chat.Chat(ctx, classifySystemPrompt, prompt, true)
	if err != nil {
		return domain.QualityAssessment{}, fmt.Errorf("classify chat: %w", err)
	}

	var verdict classifyVerdict
	if err := json.Unmarshal([]byte(extractJSON(content)), &verdict); err != nil {
		return domain.QualityAssessment{}, fmt.Errorf("parse classification: %w", err)
	}

	design := normalizeDesign(verdict.StudyDesign)
	return domain.QualityAssessment{
		Design:       design,
		Tier:         design.Tier(),
		Score:        design.Score(),
		Confidence:   clamp01(verdict.Confidence),
		AssessedTier: 2,
	}, nil
}

type assessVerdict struct {
	QualityScore float64  `json:"quality_score"`
	Strengths    []string `json:"strengths"`
	Limitations  []string `json:"limitations"`
}

func (a *TieredAssessor) assessDelegated(ctx context.Context, paper domain.Paper) (float64, map[string]any, error) {
	prompt := fmt.Sprintf(assessPromptFormat, paper.Title, paper.Abstract)

	content, err := a.chat.Chat(ctx, assessSystemPrompt, prompt, true)
	if err != nil {
		return 0, nil, fmt.Errorf("assess chat: %w", err)
	}

	var verdict assessVerdict
	if err := json.Unmarshal([]byte(extractJSON(content)), &verdict); err != nil {
		return 0, nil, fmt.Errorf("parse assessment: %w", err)
	}

	detail := map[string]any{
		"strengths":   verdict.Strengths,
		"limitations": verdict.Limitations,
	}
	return verdict.QualityScore, detail, nil
}

// normalizeDesign maps a model-reported label onto the fixed taxonomy.
func normalizeDesign(label string) domain.StudyDesign {
	normalized := strings.ToLower(strings.TrimSpace(label))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	switch domain.StudyDesign(normalized) {
	case domain.DesignRCT,
		domain.DesignControlledTrial,
		domain.DesignSystematicReview,
		domain.DesignMetaAnalysis,
		domain.DesignCohortProspective,
		domain.DesignCohortRetrospective,
		domain.DesignCaseControl,
		domain.DesignCrossSectional,
		domain.DesignCaseReport,
		domain.DesignReview:
		return domain.StudyDesign(normalized)
	}
	return domain.DesignUnclassified
}

func (a *TieredAssessor) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
