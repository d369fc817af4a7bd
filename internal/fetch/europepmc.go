package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"BioMedNews/internal/ports"
)

const europePMCSearchURL = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"

// EuropePMC pulls preprints from the Europe PMC search API. Pagination uses
// cursorMark; the walk ends when the next cursor is missing or repeats.
type EuropePMC struct {
	base string
	api  apiClient
}

var _ ports.PaperSource = (*EuropePMC)(nil)

// NewEuropePMC builds the Europe PMC preprint fetcher.
func NewEuropePMC(client *http.Client, logger *slog.Logger) *EuropePMC {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &EuropePMC{
		base: europePMCSearchURL,
		api:  apiClient{http: client, backoff: retryBackoff, logger: logger, source: "europepmc"},
	}
}

// Name identifies the source inside the registry.
func (e *EuropePMC) Name() string {
	return "europepmc"
}

// Fetch queries preprints first published inside [since, until].
func (e *EuropePMC) Fetch(ctx context.Context, since, until time.Time) ([]ports.FetchedPaper, error) {
	if until.IsZero() {
		until = time.Now().UTC()
	}
	query := fmt.Sprintf("(SRC:PPR) AND (FIRST_PDATE:[%s TO %s])",
		since.Format("2006-01-02"), until.Format("2006-01-02"))

	var papers []ports.FetchedPaper
	cursor := "*"
	for {
		params := url.Values{}
		params.Set("query", query)
		params.Set("format", "json")
		params.Set("pageSize", strconv.Itoa(pageSize))
		params.Set("cursorMark", cursor)
		params.Set("sort", "FIRST_PDATE desc")
		params.Set("resultType", "core")

		var page europePMCPage
		if err := e.api.getJSON(ctx, e.base+"?"+params.Encode(), &page); err != nil {
			return nil, fmt.Errorf("europepmc page at cursor %s: %w", cursor, err)
		}
		if len(page.ResultList.Result) == 0 {
			break
		}

		for _, item := range page.ResultList.Result {
			if paper, ok := parseEuropePMC(item); ok {
				papers = append(papers, paper)
			}
		}
		if page.NextCursorMark == "" || page.NextCursorMark == cursor {
			break
		}
		cursor = page.NextCursorMark
	}
	return papers, nil
}

type europePMCPage struct {
	NextCursorMark string `json:"nextCursorMark"`
	ResultList     struct {
		Result []europePMCItem `json:"result"`
	} `json:"resultList"`
}

type europePMCItem struct {
	ID                  string `json:"id"`
	SourceDB            string `json:"source"`
	DOI                 string `json:"doi"`
	Title               string `json:"title"`
	AuthorString        string `json:"authorString"`
	Abstract            string `json:"abstractText"`
	FirstPDate          string `json:"firstPublicationDate"`
	CitedByCount        int    `json:"citedByCount"`
	HasPDF              string `json:"hasPDF"`
	BookOrReportDetails struct {
		Publisher string `json:"publisher"`
	} `json:"bookOrReportDetails"`
	KeywordList struct {
		Keyword []string `json:"keyword"`
	} `json:"keywordList"`
	PubTypeList struct {
		PubType []string `json:"pubType"`
	} `json:"pubTypeList"`
	FullTextURLList struct {
		FullTextURL []struct {
			DocumentStyle string `json:"documentStyle"`
			URL           string `json:"url"`
		} `json:"fullTextUrl"`
	} `json:"fullTextUrlList"`
}

// parseEuropePMC normalizes one search result. Preprints relayed from known
// servers keep their origin as the source name.
func parseEuropePMC(item europePMCItem) (ports.FetchedPaper, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return ports.FetchedPaper{}, false
	}

	link := ""
	if item.DOI != "" {
		link = "https://doi.org/" + item.DOI
	} else {
		for _, u := range item.FullTextURLList.FullTextURL {
			if u.DocumentStyle == "html" {
				link = u.URL
				break
			}
		}
		if link == "" && len(item.FullTextURLList.FullTextURL) > 0 {
			link = item.FullTextURLList.FullTextURL[0].URL
		}
	}

	source := "europepmc"
	publisher := strings.ToLower(item.BookOrReportDetails.Publisher)
	switch {
	case strings.Contains(publisher, "medrxiv"):
		source = "medrxiv"
	case strings.Contains(publisher, "biorxiv"):
		source = "biorxiv"
	}

	var published time.Time
	if item.FirstPDate != "" {
		if parsed, err := time.Parse("2006-01-02", item.FirstPDate); err == nil {
			published = parsed
		}
	}

	hasPDF := item.HasPDF
	if hasPDF == "" {
		hasPDF = "N"
	}
	meta := map[string]any{
		"europepmc_id":   item.ID,
		"source_db":      item.SourceDB,
		"cited_by_count": item.CitedByCount,
		"has_pdf":        hasPDF,
	}
	if len(item.PubTypeList.PubType) > 0 {
		meta["pub_type"] = item.PubTypeList.PubType
	}

	return ports.FetchedPaper{
		DOI:           item.DOI,
		Title:         title,
		Authors:       splitList(item.AuthorString, ","),
		Abstract:      stripHTML(item.Abstract),
		URL:           link,
		Source:        source,
		PublishedDate: published,
		Categories:    item.KeywordList.Keyword,
		Metadata:      meta,
	}, true
}
