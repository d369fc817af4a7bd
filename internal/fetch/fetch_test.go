package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"BioMedNews/internal/logging"
	"BioMedNews/internal/ports"
)

type stubSource struct {
	name   string
	papers []ports.FetchedPaper
	err    error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context, since, until time.Time) ([]ports.FetchedPaper, error) {
	return s.papers, s.err
}

func TestAllMergesAndSkipsFailingSources(t *testing.T) {
	t.Parallel()

	sources := []ports.PaperSource{
		&stubSource{name: "healthy", papers: []ports.FetchedPaper{{Title: "A"}, {Title: "B"}}},
		&stubSource{name: "down", err: errors.New("connection refused")},
	}

	papers := All(context.Background(), sources, time.Now().Add(-24*time.Hour), time.Now(), logging.Discard())
	if len(papers) != 2 {
		t.Fatalf("expected 2 papers from the healthy source, got %d", len(papers))
	}
}

func TestAllWithNoSources(t *testing.T) {
	t.Parallel()

	papers := All(context.Background(), nil, time.Now(), time.Now(), nil)
	if len(papers) != 0 {
		t.Fatalf("expected no papers, got %d", len(papers))
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubSource{name: "medrxiv"})
	reg.Register(&stubSource{name: "europepmc"})

	source, err := reg.Resolve("medrxiv")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if source.Name() != "medrxiv" {
		t.Fatalf("unexpected source %q", source.Name())
	}

	if _, err := reg.Resolve("pubmed"); err == nil {
		t.Fatal("expected error for unregistered source")
	}

	all := reg.All()
	if len(all) != 2 || all[0].Name() != "medrxiv" || all[1].Name() != "europepmc" {
		t.Fatalf("unexpected registration order: %v", all)
	}

	// Re-registering replaces the implementation without duplicating the entry.
	replacement := &stubSource{name: "medrxiv", papers: []ports.FetchedPaper{{Title: "X"}}}
	reg.Register(replacement)
	all = reg.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 sources after re-register, got %d", len(all))
	}
	resolved, _ := reg.Resolve("medrxiv")
	if resolved != replacement {
		t.Fatal("expected replacement implementation")
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	got := splitList("Kim J; Okafor A; ", ";")
	if len(got) != 2 || got[0] != "Kim J" || got[1] != "Okafor A" {
		t.Fatalf("unexpected split: %v", got)
	}
	if splitList("", ";") != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestStripHTML(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"  padded  ", "padded"},
		{"<p>A genome-wide screen.</p>", "A genome-wide screen."},
		{"<h4>Background</h4> Methods follow.", "Background Methods follow."},
	}
	for _, tc := range cases {
		if got := stripHTML(tc.in); got != tc.want {
			t.Fatalf("stripHTML(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
