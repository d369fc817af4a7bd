package storage

import (
	"math"
	"strings"
	"testing"

	sq "github.com/Masterminds/squirrel"

	"BioMedNews/internal/ports"
)

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"partial", []float32{1, 0}, []float32{0.6, 0.8}, 0.6},
		{"zero left", []float32{0, 0}, []float32{1, 1}, 0},
		{"zero right", []float32{1, 1}, []float32{0, 0}, 0},
		{"empty", nil, []float32{1}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.a, tc.b)
			// float32 inputs round before the float64 math.
			if math.Abs(got-tc.want) > 1e-6 {
				t.Fatalf("CosineSimilarity(%v, %v) = %f, want %f", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestCosineSimilarityLengthMismatch(t *testing.T) {
	t.Parallel()

	// Dot pairs the shared elements; norms cover the full vectors, so the
	// unmatched dimension drags the score down.
	got := CosineSimilarity([]float32{1, 0, 5}, []float32{1, 0})
	want := 1 / math.Sqrt(26)
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("expected mismatch similarity %f, got %f", want, got)
	}
}

func TestStringCodec(t *testing.T) {
	t.Parallel()

	if got := encodeStrings(nil); got != "[]" {
		t.Fatalf("encodeStrings(nil) = %q", got)
	}
	round := decodeStrings(encodeStrings([]string{"a", "b c"}))
	if len(round) != 2 || round[0] != "a" || round[1] != "b c" {
		t.Fatalf("round trip mismatch: %v", round)
	}
	if got := decodeStrings("not json"); got != nil {
		t.Fatalf("expected nil for malformed input, got %v", got)
	}
}

func TestMetaCodec(t *testing.T) {
	t.Parallel()

	if got := encodeMeta(nil); got != "{}" {
		t.Fatalf("encodeMeta(nil) = %q", got)
	}
	round := decodeMeta(encodeMeta(map[string]any{"version": "3", "cited": float64(7)}))
	if round["version"] != "3" || round["cited"] != float64(7) {
		t.Fatalf("round trip mismatch: %v", round)
	}
	if got := decodeMeta(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestIDCodec(t *testing.T) {
	t.Parallel()

	round := decodeIDs(encodeIDs([]int64{5, 9}))
	if len(round) != 2 || round[0] != 5 || round[1] != 9 {
		t.Fatalf("round trip mismatch: %v", round)
	}
	if got := encodeIDs(nil); got != "[]" {
		t.Fatalf("encodeIDs(nil) = %q", got)
	}
	if got := decodeIDs("oops"); got != nil {
		t.Fatalf("expected nil for malformed input, got %v", got)
	}
}

func TestVectorCodec(t *testing.T) {
	t.Parallel()

	round := decodeVector(encodeVector([]float32{0.5, -1}))
	if len(round) != 2 || round[0] != 0.5 || round[1] != -1 {
		t.Fatalf("round trip mismatch: %v", round)
	}
	if got := decodeVector(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestPaperListQueryPlaceholders(t *testing.T) {
	t.Parallel()

	filter := ports.ListFilter{Source: "medrxiv", Limit: 10}

	qmark, args, err := paperListQuery(filter, sq.Question)
	if err != nil {
		t.Fatalf("build question query: %v", err)
	}
	if !strings.Contains(qmark, "p.source = ?") {
		t.Fatalf("expected ? placeholder, got %q", qmark)
	}
	if len(args) != 1 || args[0] != "medrxiv" {
		t.Fatalf("unexpected args: %v", args)
	}

	dollar, _, err := paperListQuery(filter, sq.Dollar)
	if err != nil {
		t.Fatalf("build dollar query: %v", err)
	}
	if !strings.Contains(dollar, "p.source = $1") {
		t.Fatalf("expected $1 placeholder, got %q", dollar)
	}
}

func TestPaperListQueryFilters(t *testing.T) {
	t.Parallel()

	filter := ports.ListFilter{
		QualityTier: "TIER_4_EXPERIMENTAL",
		StudyDesign: "rct",
		Tag:         "sleep",
		Search:      "Apnea",
		Limit:       5,
		Offset:      10,
	}
	query, args, err := paperListQuery(filter, sq.Question)
	if err != nil {
		t.Fatalf("build query: %v", err)
	}

	for _, clause := range []string{
		"s.quality_tier = ?",
		"s.study_design = ?",
		"EXISTS (SELECT 1 FROM paper_tags",
		"LOWER(p.title) LIKE ?",
		"LIMIT 5",
		"OFFSET 10",
	} {
		if !strings.Contains(query, clause) {
			t.Fatalf("missing %q in %q", clause, query)
		}
	}
	if len(args) != 5 {
		t.Fatalf("expected 5 args, got %v", args)
	}
	if args[3] != "%apnea%" {
		t.Fatalf("search arg should be lowercased, got %v", args[3])
	}
}

func TestPaperOrder(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":          "s.combined DESC NULLS LAST",
		"combined":  "s.combined DESC NULLS LAST",
		"newest":    "p.fetched_at DESC",
		"published": "p.published_date DESC NULLS LAST",
		"relevance": "s.relevance DESC NULLS LAST",
		"quality":   "s.quality DESC NULLS LAST",
	}
	for sort, want := range cases {
		if got := paperOrder(sort); got != want {
			t.Fatalf("paperOrder(%q) = %q, want %q", sort, got, want)
		}
	}
}

func TestPaperCountQuery(t *testing.T) {
	t.Parallel()

	query, args, err := paperCountQuery(ports.ListFilter{Source: "biorxiv"}, sq.Dollar)
	if err != nil {
		t.Fatalf("build count query: %v", err)
	}
	if !strings.Contains(query, "COUNT(DISTINCT p.id)") {
		t.Fatalf("expected distinct count, got %q", query)
	}
	if !strings.Contains(query, "p.source = $1") {
		t.Fatalf("expected source filter, got %q", query)
	}
	if len(args) != 1 {
		t.Fatalf("unexpected args: %v", args)
	}
}
