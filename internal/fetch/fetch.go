// Package fetch pulls fresh preprint records from upstream providers and
// normalizes them into ports.FetchedPaper values.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"BioMedNews/internal/ports"
)

const (
	pageSize      = 100
	retryAttempts = 3
	retryBackoff  = 2 * time.Second
	userAgent     = "BioMedNews/1.0"
)

// All queries every source in parallel and merges the results. A failing
// source is logged and contributes nothing; one provider outage must never
// abort the whole run.
func All(ctx context.Context, sources []ports.PaperSource, since, until time.Time, logger *slog.Logger) []ports.FetchedPaper {
	var (
		mu     sync.Mutex
		merged []ports.FetchedPaper
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, source := range sources {
		g.Go(func() error {
			papers, err := source.Fetch(ctx, since, until)
			if err != nil {
				if logger != nil {
					logger.Warn("source fetch failed", "source", source.Name(), "error", err)
				}
				return nil
			}
			if logger != nil {
				logger.Debug("source fetched", "source", source.Name(), "count", len(papers))
			}
			mu.Lock()
			merged = append(merged, papers...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return merged
}

// apiClient issues JSON GET requests with linear-backoff retries.
type apiClient struct {
	http    *http.Client
	backoff time.Duration
	logger  *slog.Logger
	source  string
}

func (c *apiClient) getJSON(ctx context.Context, url string, out any) error {
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = c.once(ctx, url, out)
		if lastErr == nil {
			return nil
		}
		c.warn("request failed", "attempt", attempt, "max_attempts", retryAttempts, "error", lastErr)

		if attempt < retryAttempts {
			select {
			case <-time.After(time.Duration(attempt) * c.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (c *apiClient) once(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, append([]any{"source", c.source}, args...)...)
	}
}

// splitList breaks a separated name list and drops blank entries.
func splitList(joined, sep string) []string {
	if joined == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(joined, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// stripHTML flattens markup that providers embed in abstracts.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
