// Package digest renders scored papers into an email-ready document and
// delivers it over SMTP or standard output.
package digest

import (
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"
	"time"

	"BioMedNews/internal/domain"
	"BioMedNews/internal/ports"
)

const textDigest = `{{.Subject}}
{{.Count}} new publications (generated {{.GeneratedAt}})

{{range .Items}}* {{.Title}}
  {{.URL}}
  {{.Authors}} | {{.Published}} | {{.Source}}
  Relevance {{.Relevance}} | {{.Tier}} | {{.Design}}
  {{.Summary}}

{{end}}`

const htmlDigest = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Georgia, serif; max-width: 680px; margin: 0 auto;">
<h1 style="font-size: 20px;">{{.Subject}}</h1>
<p>{{.Count}} new publications (generated {{.GeneratedAt}})</p>
{{range .Items}}<div style="margin-bottom: 24px;">
<h2 style="font-size: 16px; margin-bottom: 4px;"><a href="{{.URL}}">{{.Title}}</a></h2>
<p style="color: #555; margin: 2px 0;">{{.Authors}} &middot; {{.Published}} &middot; {{.Source}}</p>
<p style="color: #555; margin: 2px 0;">Relevance {{.Relevance}} &middot; {{.Tier}} &middot; {{.Design}}</p>
<p style="margin: 6px 0;">{{.Summary}}</p>
</div>
{{end}}</body>
</html>
`

var (
	textTemplate = template.Must(template.New("digest_text").Parse(textDigest))
	htmlTemplate = htmltemplate.Must(htmltemplate.New("digest_email").Parse(htmlDigest))
)

// Renderer builds the digest document from scored papers.
type Renderer struct {
	subjectPrefix string
}

// NewRenderer keeps the subject prefix used on every digest.
func NewRenderer(subjectPrefix string) *Renderer {
	if subjectPrefix == "" {
		subjectPrefix = "BioMedical News Digest"
	}
	return &Renderer{subjectPrefix: subjectPrefix}
}

// Subject formats the digest subject line for the given date.
func (r *Renderer) Subject(now time.Time) string {
	return fmt.Sprintf("%s — %s", r.subjectPrefix, now.Format("January 2, 2006"))
}

// Render produces the complete digest in both transport formats.
func (r *Renderer) Render(papers []domain.ScoredPaper, now time.Time) (ports.Digest, error) {
	html, err := r.RenderHTML(papers, now)
	if err != nil {
		return ports.Digest{}, err
	}
	return ports.Digest{
		Subject: r.Subject(now),
		Text:    r.RenderText(papers, now),
		HTML:    html,
	}, nil
}

// RenderText renders the plain-text alternative.
func (r *Renderer) RenderText(papers []domain.ScoredPaper, now time.Time) string {
	var sb strings.Builder
	// Execution over a constant template and plain string fields cannot fail.
	_ = textTemplate.Execute(&sb, r.digestData(papers, now))
	return sb.String()
}

// RenderHTML renders the HTML alternative with contextual escaping.
func (r *Renderer) RenderHTML(papers []domain.ScoredPaper, now time.Time) (string, error) {
	var sb strings.Builder
	if err := htmlTemplate.Execute(&sb, r.digestData(papers, now)); err != nil {
		return "", fmt.Errorf("render html digest: %w", err)
	}
	return sb.String(), nil
}

type digestData struct {
	Subject     string
	Count       int
	GeneratedAt string
	Items       []digestItem
}

type digestItem struct {
	Title     string
	URL       string
	Authors   string
	Published string
	Source    string
	Summary   string
	Relevance string
	Tier      string
	Design    string
}

func (r *Renderer) digestData(papers []domain.ScoredPaper, now time.Time) digestData {
	items := make([]digestItem, 0, len(papers))
	for _, sp := range papers {
		items = append(items, newDigestItem(sp))
	}
	return digestData{
		Subject:     r.Subject(now),
		Count:       len(papers),
		GeneratedAt: now.Format("2006-01-02 15:04"),
		Items:       items,
	}
}

func newDigestItem(sp domain.ScoredPaper) digestItem {
	summary := sp.Score.Summary
	if summary == "" {
		summary = sp.Paper.Abstract
	}

	published := ""
	if !sp.Paper.PublishedDate.IsZero() {
		published = sp.Paper.PublishedDate.Format("2006-01-02")
	}

	return digestItem{
		Title:     sp.Paper.Title,
		URL:       sp.Paper.URL,
		Authors:   strings.Join(sp.Paper.Authors, "; "),
		Published: published,
		Source:    sp.Paper.Source,
		Summary:   summary,
		Relevance: fmt.Sprintf("%.0f%%", sp.Score.Relevance*100),
		Tier:      string(sp.Score.QualityTier),
		Design:    strings.ToUpper(string(sp.Score.StudyDesign)),
	}
}
