package domain

import "time"

// Paper is a core entity describing a preprint or article pulled from a source.
type Paper struct {
	ID            int64
	DOI           string
	Title         string
	Authors       []string
	Abstract      string
	URL           string
	Source        string
	PublishedDate time.Time
	Categories    []string
	Metadata      map[string]any
	Embedding     []float32
	FetchedAt     time.Time
}

// HasDOI reports whether the paper carries an external identifier usable for deduplication.
func (p Paper) HasDOI() bool {
	return p.DOI != ""
}

// EmbeddingText is the canonical text fed to the embedding model.
func (p Paper) EmbeddingText() string {
	if p.Abstract == "" {
		return p.Title
	}
	return p.Title + ". " + p.Abstract
}

// PublicationTypes collects declared publication-type strings from metadata and
// categories for metadata-only quality classification.
func (p Paper) PublicationTypes() []string {
	var types []string
	if raw, ok := p.Metadata["pub_type"]; ok {
		switch v := raw.(type) {
		case string:
			if v != "" {
				types = append(types, v)
			}
		case []string:
			types = append(types, v...)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					types = append(types, s)
				}
			}
		}
	}
	for _, cat := range p.Categories {
		if cat != "" {
			types = append(types, cat)
		}
	}
	return types
}

// SimilarPaper is a similarity-search hit together with its cosine similarity.
type SimilarPaper struct {
	Paper      Paper
	Similarity float64
}
