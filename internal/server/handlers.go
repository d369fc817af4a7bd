package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"BioMedNews/internal/domain"
	"BioMedNews/internal/ports"
	"BioMedNews/internal/usecase"
)

const (
	defaultPageSize         = 20
	maxPageSize             = 100
	defaultSimilarLimit     = 5
	defaultSimilarThreshold = 0.3
)

type paperJSON struct {
	ID            int64      `json:"id"`
	DOI           string     `json:"doi,omitempty"`
	Title         string     `json:"title"`
	Authors       []string   `json:"authors,omitempty"`
	Abstract      string     `json:"abstract,omitempty"`
	URL           string     `json:"url,omitempty"`
	Source        string     `json:"source,omitempty"`
	PublishedDate string     `json:"published_date,omitempty"`
	Categories    []string   `json:"categories,omitempty"`
	FetchedAt     time.Time  `json:"fetched_at"`
	Score         *scoreJSON `json:"score,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
}

type scoreJSON struct {
	Relevance   float64   `json:"relevance"`
	Quality     float64   `json:"quality"`
	Combined    float64   `json:"combined"`
	Summary     string    `json:"summary,omitempty"`
	StudyDesign string    `json:"study_design,omitempty"`
	QualityTier string    `json:"quality_tier,omitempty"`
	ScoredAt    time.Time `json:"scored_at"`
}

type paperListJSON struct {
	Papers []paperJSON `json:"papers"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

type similarJSON struct {
	paperJSON
	Similarity float64 `json:"similarity"`
}

type similarListJSON struct {
	Papers []similarJSON `json:"papers"`
}

func newPaperJSON(p domain.Paper) paperJSON {
	published := ""
	if !p.PublishedDate.IsZero() {
		published = p.PublishedDate.Format("2006-01-02")
	}
	return paperJSON{
		ID:            p.ID,
		DOI:           p.DOI,
		Title:         p.Title,
		Authors:       p.Authors,
		Abstract:      p.Abstract,
		URL:           p.URL,
		Source:        p.Source,
		PublishedDate: published,
		Categories:    p.Categories,
		FetchedAt:     p.FetchedAt,
	}
}

func newScoreJSON(s domain.Score) *scoreJSON {
	return &scoreJSON{
		Relevance:   s.Relevance,
		Quality:     s.Quality,
		Combined:    s.Combined,
		Summary:     s.Summary,
		StudyDesign: string(s.StudyDesign),
		QualityTier: string(s.QualityTier),
		ScoredAt:    s.ScoredAt,
	}
}

func scoredPaperJSON(sp domain.ScoredPaper) paperJSON {
	view := newPaperJSON(sp.Paper)
	if sp.Score.ID != 0 {
		view.Score = newScoreJSON(sp.Score)
	}
	return view
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listPapers(c echo.Context) error {
	limit := queryInt(c, "limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	filter := ports.ListFilter{
		Sort:        c.QueryParam("sort"),
		Source:      c.QueryParam("source"),
		QualityTier: c.QueryParam("tier"),
		StudyDesign: c.QueryParam("design"),
		Tag:         c.QueryParam("tag"),
		Search:      c.QueryParam("q"),
		Limit:       limit,
		Offset:      queryInt(c, "offset", 0),
	}

	ctx := c.Request().Context()
	papers, err := s.store.ListPapers(ctx, filter)
	if err != nil {
		s.warn("list papers failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "list papers")
	}
	total, err := s.store.CountPapers(ctx, filter)
	if err != nil {
		s.warn("count papers failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "count papers")
	}

	views := make([]paperJSON, 0, len(papers))
	for _, sp := range papers {
		views = append(views, scoredPaperJSON(sp))
	}
	return c.JSON(http.StatusOK, paperListJSON{
		Papers: views,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func (s *Server) getPaper(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid paper id")
	}

	ctx := c.Request().Context()
	paper, err := s.store.GetPaper(ctx, id)
	if err != nil {
		s.warn("get paper failed", "paper_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "get paper")
	}
	if paper == nil {
		return echo.NewHTTPError(http.StatusNotFound, "paper not found")
	}

	view := newPaperJSON(*paper)

	score, err := s.store.GetScore(ctx, id)
	if err != nil {
		s.warn("get score failed", "paper_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "get score")
	}
	if score != nil {
		view.Score = newScoreJSON(*score)
	}

	tags, err := s.store.GetPaperTags(ctx, id)
	if err != nil {
		s.warn("get tags failed", "paper_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "get tags")
	}
	view.Tags = tags

	return c.JSON(http.StatusOK, view)
}

func (s *Server) similarPapers(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid paper id")
	}

	limit := queryInt(c, "limit", defaultSimilarLimit)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultSimilarLimit
	}
	threshold := queryFloat(c, "threshold", defaultSimilarThreshold)

	ctx := c.Request().Context()
	paper, err := s.store.GetPaper(ctx, id)
	if err != nil {
		s.warn("get paper failed", "paper_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "get paper")
	}
	if paper == nil {
		return echo.NewHTTPError(http.StatusNotFound, "paper not found")
	}

	views := []similarJSON{}
	if len(paper.Embedding) > 0 {
		// Fetch one extra hit; the query paper matches itself perfectly.
		hits, err := s.store.FindSimilar(ctx, paper.Embedding, limit+1, threshold)
		if err != nil {
			s.warn("similarity search failed", "paper_id", id, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "similarity search")
		}
		for _, hit := range hits {
			if hit.Paper.ID == id {
				continue
			}
			if len(views) == limit {
				break
			}
			views = append(views, similarJSON{paperJSON: newPaperJSON(hit.Paper), Similarity: hit.Similarity})
		}
	}

	return c.JSON(http.StatusOK, similarListJSON{Papers: views})
}

func (s *Server) listTags(c echo.Context) error {
	tags, err := s.store.ListTags(c.Request().Context())
	if err != nil {
		s.warn("list tags failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "list tags")
	}
	if tags == nil {
		tags = []string{}
	}
	return c.JSON(http.StatusOK, map[string][]string{"tags": tags})
}

// runPipeline triggers a background run. The run outlives the request, so it
// does not inherit the request context.
func (s *Server) runPipeline(c echo.Context) error {
	if s.pipeline.Status().Running {
		return echo.NewHTTPError(http.StatusConflict, usecase.ErrPipelineBusy.Error())
	}

	go func() {
		if _, err := s.pipeline.Run(context.Background()); err != nil && !errors.Is(err, usecase.ErrPipelineBusy) {
			s.warn("pipeline run failed", "error", err)
		}
	}()

	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) pipelineStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.pipeline.Status())
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func queryFloat(c echo.Context, name string, fallback float64) float64 {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return fallback
	}
	return v
}
