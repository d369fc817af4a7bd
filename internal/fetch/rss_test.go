package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"BioMedNews/internal/logging"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Preprint Watch</title>
    <link>https://example.org</link>
    <item>
      <title>CRISPR screen maps cardiac fibrosis drivers</title>
      <link>https://example.org/crispr-fibrosis</link>
      <description>&lt;p&gt;A genome-wide screen.&lt;/p&gt;</description>
      <pubDate>Tue, 10 Jun 2025 08:00:00 GMT</pubDate>
      <dc:identifier>doi:10.1101/2025.06.10.901</dc:identifier>
      <category>genomics</category>
    </item>
    <item>
      <title>Stale entry outside the window</title>
      <link>https://example.org/stale</link>
      <pubDate>Wed, 01 Jan 2025 08:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestRSSFetchNormalizesEntries(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed.xml" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFixture))
	}))
	defer server.Close()

	// The broken feed must be skipped without sinking the healthy one.
	r := NewRSS("journals", []string{server.URL + "/missing.xml", server.URL + "/feed.xml"}, server.Client(), logging.Discard())

	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	papers, err := r.Fetch(context.Background(), since, until)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("expected 1 paper inside window, got %d", len(papers))
	}

	paper := papers[0]
	if paper.DOI != "10.1101/2025.06.10.901" {
		t.Fatalf("dc identifier not extracted, doi %q", paper.DOI)
	}
	if paper.Title != "CRISPR screen maps cardiac fibrosis drivers" {
		t.Fatalf("unexpected title %q", paper.Title)
	}
	if paper.Source != "journals" {
		t.Fatalf("unexpected source %q", paper.Source)
	}
	if paper.Abstract != "A genome-wide screen." {
		t.Fatalf("description not stripped: %q", paper.Abstract)
	}
	if paper.URL != "https://example.org/crispr-fibrosis" {
		t.Fatalf("unexpected url %q", paper.URL)
	}
	if len(paper.Categories) != 1 || paper.Categories[0] != "genomics" {
		t.Fatalf("unexpected categories %v", paper.Categories)
	}
	if paper.Metadata["feed_title"] != "Preprint Watch" {
		t.Fatalf("unexpected metadata %v", paper.Metadata)
	}
	if paper.PublishedDate.IsZero() {
		t.Fatal("expected published date")
	}
}

func TestRSSFetchDefaultsName(t *testing.T) {
	t.Parallel()

	r := NewRSS("", nil, nil, nil)
	if r.Name() != "rss" {
		t.Fatalf("unexpected default name %q", r.Name())
	}
}
