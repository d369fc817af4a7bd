package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"BioMedNews/internal/ports"
)

const (
	medrxivDetailsURL = "https://api.medrxiv.org/details/medrxiv"
	biorxivDetailsURL = "https://api.biorxiv.org/details/biorxiv"
)

// MedRxiv pulls preprints from the medRxiv or bioRxiv details API. Pages are
// cursor-indexed (0, 100, 200, ...); the last page is the one that returns
// fewer than pageSize records.
type MedRxiv struct {
	server string
	base   string
	api    apiClient
}

var _ ports.PaperSource = (*MedRxiv)(nil)

// NewMedRxiv builds a fetcher for the "medrxiv" or "biorxiv" server.
func NewMedRxiv(server string, client *http.Client, logger *slog.Logger) (*MedRxiv, error) {
	var base string
	switch server {
	case "medrxiv":
		base = medrxivDetailsURL
	case "biorxiv":
		base = biorxivDetailsURL
	default:
		return nil, fmt.Errorf("unknown preprint server %q", server)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &MedRxiv{
		server: server,
		base:   base,
		api:    apiClient{http: client, backoff: retryBackoff, logger: logger, source: server},
	}, nil
}

// Name identifies the source inside the registry.
func (m *MedRxiv) Name() string {
	return m.server
}

// Fetch walks the cursor-paginated window [since, until] and returns every
// parseable record.
func (m *MedRxiv) Fetch(ctx context.Context, since, until time.Time) ([]ports.FetchedPaper, error) {
	if until.IsZero() {
		until = time.Now().UTC()
	}
	start := since.Format("2006-01-02")
	end := until.Format("2006-01-02")

	var papers []ports.FetchedPaper
	for cursor := 0; ; cursor += pageSize {
		pageURL := fmt.Sprintf("%s/%s/%s/%d", m.base, start, end, cursor)

		var page medrxivPage
		if err := m.api.getJSON(ctx, pageURL, &page); err != nil {
			return nil, fmt.Errorf("%s page at cursor %d: %w", m.server, cursor, err)
		}
		if len(page.Collection) == 0 {
			break
		}

		for _, item := range page.Collection {
			if paper, ok := m.parse(item); ok {
				papers = append(papers, paper)
			}
		}
		if len(page.Collection) < pageSize {
			break
		}
	}
	return papers, nil
}

type medrxivPage struct {
	Collection []medrxivItem `json:"collection"`
}

type medrxivItem struct {
	DOI          string `json:"rel_doi"`
	Title        string `json:"rel_title"`
	Authors      string `json:"rel_authors"`
	Abstract     string `json:"rel_abs"`
	Date         string `json:"rel_date"`
	Link         string `json:"rel_link"`
	Category     string `json:"category"`
	Version      string `json:"version"`
	Institutions string `json:"author_inst"`
	Type         string `json:"type"`
}

// parse normalizes one API record; records without a title are dropped.
func (m *MedRxiv) parse(item medrxivItem) (ports.FetchedPaper, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return ports.FetchedPaper{}, false
	}

	link := item.Link
	if link == "" && item.DOI != "" {
		link = "https://doi.org/" + item.DOI
	}

	var published time.Time
	if item.Date != "" {
		if parsed, err := time.Parse("2006-01-02", item.Date); err == nil {
			published = parsed
		}
	}

	var categories []string
	if item.Category != "" {
		categories = append(categories, item.Category)
	}

	meta := map[string]any{}
	if item.Version != "" {
		meta["version"] = item.Version
	}
	if item.Institutions != "" {
		meta["author_institutions"] = item.Institutions
	}
	if item.Type != "" {
		meta["type"] = item.Type
	}

	return ports.FetchedPaper{
		DOI:           item.DOI,
		Title:         title,
		Authors:       splitList(item.Authors, ";"),
		Abstract:      strings.TrimSpace(item.Abstract),
		URL:           link,
		Source:        m.server,
		PublishedDate: published,
		Categories:    categories,
		Metadata:      meta,
	}, true
}
