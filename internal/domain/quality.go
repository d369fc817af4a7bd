package domain

// StudyDesign classifies the methodology declared or inferred for a paper.
type StudyDesign string

const (
	DesignRCT                 StudyDesign = "rct"
	DesignControlledTrial     StudyDesign = "controlled_trial"
	DesignSystematicReview    StudyDesign = "systematic_review"
	DesignMetaAnalysis        StudyDesign = "meta_analysis"
	DesignCohortProspective   StudyDesign = "cohort_prospective"
	DesignCohortRetrospective StudyDesign = "cohort_retrospective"
	DesignCaseControl         StudyDesign = "case_control"
	DesignCrossSectional      StudyDesign = "cross_sectional"
	DesignCaseReport          StudyDesign = "case_report"
	DesignReview              StudyDesign = "review"
	DesignUnclassified        StudyDesign = "unclassified"
)

// QualityTier buckets evidence strength from anecdote to synthesis.
type QualityTier string

const (
	TierUnclassified  QualityTier = "UNCLASSIFIED"
	TierAnecdotal     QualityTier = "TIER_1_ANECDOTAL"
	TierObservational QualityTier = "TIER_2_OBSERVATIONAL"
	TierControlled    QualityTier = "TIER_3_CONTROLLED"
	TierExperimental  QualityTier = "TIER_4_EXPERIMENTAL"
	TierSynthesis     QualityTier = "TIER_5_SYNTHESIS"
)

var designScores = map[StudyDesign]float64{
	DesignRCT:                 0.8,
	DesignControlledTrial:     0.7,
	DesignSystematicReview:    0.9,
	DesignMetaAnalysis:        0.9,
	DesignCohortProspective:   0.6,
	DesignCohortRetrospective: 0.5,
	DesignCaseControl:         0.5,
	DesignCrossSectional:      0.4,
	DesignCaseReport:          0.3,
	DesignReview:              0.4,
	DesignUnclassified:        0.3,
}

var designTiers = map[StudyDesign]QualityTier{
	DesignRCT:                 TierExperimental,
	DesignControlledTrial:     TierControlled,
	DesignSystematicReview:    TierSynthesis,
	DesignMetaAnalysis:        TierSynthesis,
	DesignCohortProspective:   TierObservational,
	DesignCohortRetrospective: TierObservational,
	DesignCaseControl:         TierObservational,
	DesignCrossSectional:      TierObservational,
	DesignCaseReport:          TierAnecdotal,
	DesignReview:              TierAnecdotal,
	DesignUnclassified:        TierUnclassified,
}

var tierScores = map[QualityTier]float64{
	TierUnclassified:  0.3,
	TierAnecdotal:     0.3,
	TierObservational: 0.5,
	TierControlled:    0.7,
	TierExperimental:  0.85,
	TierSynthesis:     0.95,
}

// Score returns the 0-1 quality prior associated with the design.
func (d StudyDesign) Score() float64 {
	if s, ok := designScores[d]; ok {
		return s
	}
	return designScores[DesignUnclassified]
}

// Tier returns the evidence tier the design belongs to.
func (d StudyDesign) Tier() QualityTier {
	if t, ok := designTiers[d]; ok {
		return t
	}
	return TierUnclassified
}

// Score returns the approximate 0-1 quality value of the tier.
func (t QualityTier) Score() float64 {
	if s, ok := tierScores[t]; ok {
		return s
	}
	return tierScores[TierUnclassified]
}

// QualityAssessment is the outcome of a tiered quality pass over one paper.
// RawScore carries the direct 0-10 value when a deep assessment produced one;
// a positive RawScore takes precedence over the design lookup when computing Score.
type QualityAssessment struct {
	Design       StudyDesign
	Tier         QualityTier
	Score        float64
	RawScore     float64
	Confidence   float64
	AssessedTier int
	Detail       map[string]any
}
