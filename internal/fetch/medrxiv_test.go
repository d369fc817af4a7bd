package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"BioMedNews/internal/logging"
)

func TestNewMedRxivUnknownServer(t *testing.T) {
	t.Parallel()

	if _, err := NewMedRxiv("arxiv", nil, nil); err == nil {
		t.Fatal("expected error for unknown server")
	}
}

func TestMedRxivFetchPaginates(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "2025-06-01" || parts[1] != "2025-06-10" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}

		var page medrxivPage
		switch parts[2] {
		case "0":
			for i := 0; i < pageSize; i++ {
				page.Collection = append(page.Collection, medrxivItem{
					DOI:   fmt.Sprintf("10.1101/full.%03d", i),
					Title: fmt.Sprintf("Full-page paper %03d", i),
					Date:  "2025-06-05",
				})
			}
		case "100":
			page.Collection = []medrxivItem{
				{
					DOI:          "10.1101/2025.06.06.100",
					Title:        "  Sleep restriction and blood pressure  ",
					Authors:      "Kim J; Okafor A; ",
					Abstract:     " Background and methods. ",
					Date:         "2025-06-06",
					Category:     "cardiology",
					Version:      "2",
					Institutions: "Example University",
					Type:         "new results",
				},
				{Title: "   "},
			}
		default:
			t.Errorf("unexpected cursor %s", parts[2])
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	m, err := NewMedRxiv("medrxiv", server.Client(), logging.Discard())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	m.base = server.URL
	m.api.backoff = time.Millisecond

	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	papers, err := m.Fetch(context.Background(), since, until)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(papers) != pageSize+1 {
		t.Fatalf("expected %d papers, got %d", pageSize+1, len(papers))
	}

	last := papers[pageSize]
	if last.Title != "Sleep restriction and blood pressure" {
		t.Fatalf("title not trimmed: %q", last.Title)
	}
	if len(last.Authors) != 2 || last.Authors[0] != "Kim J" || last.Authors[1] != "Okafor A" {
		t.Fatalf("authors not split: %v", last.Authors)
	}
	if last.Abstract != "Background and methods." {
		t.Fatalf("abstract not trimmed: %q", last.Abstract)
	}
	if last.URL != "https://doi.org/10.1101/2025.06.06.100" {
		t.Fatalf("expected doi.org fallback url, got %q", last.URL)
	}
	if last.Source != "medrxiv" {
		t.Fatalf("unexpected source %q", last.Source)
	}
	if !last.PublishedDate.Equal(time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected published date %v", last.PublishedDate)
	}
	if len(last.Categories) != 1 || last.Categories[0] != "cardiology" {
		t.Fatalf("unexpected categories %v", last.Categories)
	}
	if last.Metadata["version"] != "2" || last.Metadata["type"] != "new results" {
		t.Fatalf("unexpected metadata %v", last.Metadata)
	}
}

func TestMedRxivFetchRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(medrxivPage{Collection: []medrxivItem{
			{DOI: "10.1101/recovered", Title: "Recovered"},
		}})
	}))
	defer server.Close()

	m, err := NewMedRxiv("biorxiv", server.Client(), logging.Discard())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	m.base = server.URL
	m.api.backoff = time.Millisecond

	papers, err := m.Fetch(context.Background(), time.Now().Add(-24*time.Hour), time.Now())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(papers) != 1 || papers[0].Title != "Recovered" {
		t.Fatalf("unexpected papers: %+v", papers)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestMedRxivFetchGivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "still down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	m, err := NewMedRxiv("medrxiv", server.Client(), logging.Discard())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	m.base = server.URL
	m.api.backoff = time.Millisecond

	if _, err := m.Fetch(context.Background(), time.Now().Add(-24*time.Hour), time.Now()); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if got := atomic.LoadInt32(&calls); got != retryAttempts {
		t.Fatalf("expected %d attempts, got %d", retryAttempts, got)
	}
}
