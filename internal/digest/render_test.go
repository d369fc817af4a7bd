package digest

import (
	"strings"
	"testing"
	"time"

	"BioMedNews/internal/domain"
)

func samplePapers() []domain.ScoredPaper {
	return []domain.ScoredPaper{
		{
			Paper: domain.Paper{
				ID:            1,
				Title:         "Effect of Drug X on Condition Y",
				URL:           "https://doi.org/10.1101/test1",
				Authors:       []string{"Smith J", "Jones A"},
				Source:        "medrxiv",
				PublishedDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			},
			Score: domain.Score{
				Relevance:   0.85,
				Quality:     0.9,
				Combined:    domain.Combine(0.85, 0.9),
				Summary:     "Drug X significantly reduces Condition Y symptoms.",
				StudyDesign: domain.DesignRCT,
				QualityTier: domain.TierExperimental,
			},
		},
		{
			Paper: domain.Paper{
				ID:            2,
				Title:         "A Review of Treatment Approaches",
				URL:           "https://doi.org/10.1101/test2",
				Authors:       []string{"Brown B"},
				Source:        "europepmc",
				PublishedDate: time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
			},
			Score: domain.Score{
				Relevance:   0.72,
				Quality:     1.0,
				Combined:    domain.Combine(0.72, 1.0),
				Summary:     "Comprehensive review of treatment modalities.",
				StudyDesign: domain.DesignSystematicReview,
				QualityTier: domain.TierSynthesis,
			},
		},
	}
}

func TestRenderTextIncludesPaperDetails(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 17, 8, 30, 0, 0, time.UTC)
	r := NewRenderer("BioMedical News Digest")

	text := r.RenderText(samplePapers(), now)

	if !strings.HasPrefix(text, "BioMedical News Digest — January 17, 2024\n") {
		t.Fatalf("text digest does not start with subject line:\n%s", text)
	}
	for _, want := range []string{
		"2 new publications",
		"Effect of Drug X on Condition Y",
		"https://doi.org/10.1101/test1",
		"Smith J; Jones A",
		"2024-01-15",
		"medrxiv",
		"85%",
		"72%",
		"TIER_4_EXPERIMENTAL",
		"RCT",
		"SYSTEMATIC_REVIEW",
		"Drug X significantly reduces Condition Y symptoms.",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("text digest missing %q:\n%s", want, text)
		}
	}
}

func TestRenderHTMLEscapesContent(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 17, 8, 30, 0, 0, time.UTC)
	papers := samplePapers()
	papers[0].Paper.Title = "Statins & <Scripts> in Sepsis"

	html, err := NewRenderer("").RenderHTML(papers, now)
	if err != nil {
		t.Fatalf("render html: %v", err)
	}

	if !strings.Contains(html, "Statins &amp; &lt;Scripts&gt; in Sepsis") {
		t.Fatalf("html digest did not escape title:\n%s", html)
	}
	if strings.Contains(html, "<Scripts>") {
		t.Fatal("html digest contains unescaped markup")
	}
	for _, want := range []string{
		`<a href="https://doi.org/10.1101/test2">A Review of Treatment Approaches</a>`,
		"2 new publications",
		"85%",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("html digest missing %q:\n%s", want, html)
		}
	}
}

func TestRenderEmptyDigest(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 17, 8, 30, 0, 0, time.UTC)
	r := NewRenderer("")

	text := r.RenderText(nil, now)
	if !strings.Contains(text, "0 new publications") {
		t.Fatalf("empty text digest missing count line:\n%s", text)
	}

	html, err := r.RenderHTML(nil, now)
	if err != nil {
		t.Fatalf("render html: %v", err)
	}
	if !strings.Contains(html, "0 new publications") {
		t.Fatalf("empty html digest missing count line:\n%s", html)
	}
}

func TestRenderSubjectPrefix(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC)

	if got := NewRenderer("[Custom]").Subject(now); got != "[Custom] — March 5, 2024" {
		t.Fatalf("subject = %q", got)
	}
	if got := NewRenderer("").Subject(now); got != "BioMedical News Digest — March 5, 2024" {
		t.Fatalf("default subject = %q", got)
	}
}

func TestRenderProducesBothFormats(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 17, 8, 30, 0, 0, time.UTC)
	r := NewRenderer("BioMedical News Digest")

	d, err := r.Render(samplePapers(), now)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if d.Subject != r.Subject(now) {
		t.Fatalf("subject = %q", d.Subject)
	}
	if d.Text != r.RenderText(samplePapers(), now) {
		t.Fatal("text body differs from RenderText output")
	}
	if !strings.Contains(d.HTML, "<!DOCTYPE html>") {
		t.Fatal("html body is not a document")
	}
}

func TestRenderFallsBackToAbstract(t *testing.T) {
	t.Parallel()

	papers := samplePapers()[:1]
	papers[0].Score.Summary = ""
	papers[0].Paper.Abstract = "Original abstract body."

	text := NewRenderer("").RenderText(papers, time.Now())
	if !strings.Contains(text, "Original abstract body.") {
		t.Fatalf("text digest missing abstract fallback:\n%s", text)
	}
}
