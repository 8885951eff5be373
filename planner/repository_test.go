package planner

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"cine-journey/index"
	"cine-journey/model"
	"cine-journey/scraper"
	"cine-journey/storage"

	"github.com/goccy/go-json"
)

type stubSearcher struct {
	mu      sync.Mutex
	titles  []string
	err     error
	queries []string
	limits  []int
}

func (s *stubSearcher) SearchTitles(ctx context.Context, query string, limit int) ([]string, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.limits = append(s.limits, limit)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if len(s.titles) > limit {
		return s.titles[:limit], nil
	}
	return s.titles, nil
}

type stubFetcher struct {
	mu        sync.Mutex
	pages     map[string]storage.Content
	ambiguous map[string][]string
	slow      map[string]bool
	release   chan struct{}
	calls     map[string]int
}

func (f *stubFetcher) FetchDetail(ctx context.Context, title string) (*storage.Content, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[title]++
	f.mu.Unlock()

	if f.slow[title] {
		// ignores ctx on purpose
		<-f.release
	}
	if options, ok := f.ambiguous[title]; ok {
		return nil, &scraper.DisambiguationError{Title: title, Options: options}
	}
	if c, ok := f.pages[title]; ok {
		return &c, nil
	}
	return nil, scraper.ErrNotFound
}

func (f *stubFetcher) callsFor(title string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[title]
}

type stubRatings struct {
	ratings map[string]float64
	err     error
}

func (r *stubRatings) FetchRating(ctx context.Context, title string) (*float64, error) {
	if r.err != nil {
		return nil, r.err
	}
	if v, ok := r.ratings[title]; ok {
		return &v, nil
	}
	return nil, scraper.ErrRatingUnavailable
}

type memCatalog struct {
	mu    sync.Mutex
	saved []string
}

func (c *memCatalog) SaveContent(content storage.Content) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved = append(c.saved, content.Title)
	return nil
}

// failingIndex rejects every write and search
type failingIndex struct{}

func (failingIndex) Upsert(ctx context.Context, key string, text string, metadata map[string]any) error {
	return index.ErrEncoding
}

func (failingIndex) Search(ctx context.Context, query string, limit int) ([]index.Result, error) {
	return nil, index.ErrEncoding
}

func (failingIndex) Clear() {}

func (failingIndex) Len() int { return 0 }

func page(title string, minutes int, description string) storage.Content {
	return storage.Content{
		Title:           title,
		ContentType:     storage.ContentTypeMovie,
		DurationMinutes: minutes,
		Description:     description,
		Genres:          []string{},
	}
}

func newHashIndex(t *testing.T) *index.Index {
	t.Helper()
	enc, err := model.NewHashModel(&model.ModelConfig{Dimension: 256})
	if err != nil {
		t.Fatalf("NewHashModel error: %v", err)
	}
	x, err := index.New(enc)
	if err != nil {
		t.Fatalf("index.New error: %v", err)
	}
	return x
}

func newTestRepository(t *testing.T, cfg RepositoryConfig) *Repository {
	t.Helper()
	if cfg.Index == nil {
		cfg.Index = newHashIndex(t)
	}
	repo, err := NewRepository(cfg)
	if err != nil {
		t.Fatalf("NewRepository error: %v", err)
	}
	return repo
}

func titlesOf(contents []storage.Content) string {
	var titles []string
	for _, c := range contents {
		titles = append(titles, c.Title)
	}
	return strings.Join(titles, ",")
}

func TestNewRepositoryRequiresCollaborators(t *testing.T) {
	if _, err := NewRepository(RepositoryConfig{}); err == nil {
		t.Error("expected error without collaborators")
	}
	if _, err := NewRepository(RepositoryConfig{Searcher: &stubSearcher{}, Fetcher: &stubFetcher{}}); err == nil {
		t.Error("expected error without an index")
	}
}

func TestSearchContentKeepsSearchOrder(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]storage.Content{
		"Heat":       page("Heat", 170, "A crime film."),
		"Ronin":      page("Ronin", 122, "An action thriller."),
		"Collateral": page("Collateral", 120, "A neo-noir film."),
	}}
	catalog := &memCatalog{}
	repo := newTestRepository(t, RepositoryConfig{
		Searcher: &stubSearcher{titles: []string{"Ronin", "Missing", "Heat", "Collateral"}},
		Fetcher:  fetcher,
		Ratings:  &stubRatings{ratings: map[string]float64{"Heat": 87}},
		Catalog:  catalog,
	})

	results, err := repo.SearchContent(context.Background(), "heist", 10)
	if err != nil {
		t.Fatalf("SearchContent error: %v", err)
	}
	if got := titlesOf(results); got != "Ronin,Heat,Collateral" {
		t.Errorf("unexpected results %s", got)
	}
	if results[1].Rating == nil || *results[1].Rating != 87 {
		t.Errorf("expected Heat rating 87, got %v", results[1].Rating)
	}
	if results[0].Rating != nil {
		t.Errorf("expected Ronin without rating, got %v", *results[0].Rating)
	}
	if repo.IndexSize() != 3 {
		t.Errorf("expected 3 indexed titles, got %d", repo.IndexSize())
	}
	if len(catalog.saved) != 3 {
		t.Errorf("expected 3 catalog saves, got %v", catalog.saved)
	}
}

func TestSearchContentRetriesDisambiguationOnce(t *testing.T) {
	fetcher := &stubFetcher{
		pages: map[string]storage.Content{
			"Mercury (film)": page("Mercury (film)", 95, "A thriller."),
		},
		ambiguous: map[string][]string{
			"Mercury":               {"Mercury (film)", "Mercury (planet)"},
			"Loop":                  {"Loop (disambiguation)"},
			"Loop (disambiguation)": {"Loop (film)"},
			"Empty":                 {},
		},
	}
	repo := newTestRepository(t, RepositoryConfig{
		Searcher: &stubSearcher{titles: []string{"Mercury", "Loop", "Empty"}},
		Fetcher:  fetcher,
	})

	results, err := repo.SearchContent(context.Background(), "mercury", 5)
	if err != nil {
		t.Fatalf("SearchContent error: %v", err)
	}
	if got := titlesOf(results); got != "Mercury (film)" {
		t.Errorf("unexpected results %s", got)
	}
	if n := fetcher.callsFor("Loop (disambiguation)"); n != 1 {
		t.Errorf("expected exactly one retry, got %d", n)
	}
	if n := fetcher.callsFor("Loop (film)"); n != 0 {
		t.Errorf("second ambiguity should be abandoned, fetched %d times", n)
	}
}

func TestSearchContentRatingFailures(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]storage.Content{
		"A": page("A", 90, ""),
		"B": page("B", 90, ""),
	}}

	repo := newTestRepository(t, RepositoryConfig{
		Searcher: &stubSearcher{titles: []string{"A"}},
		Fetcher:  fetcher,
		Ratings:  &stubRatings{err: errors.New("rating source down")},
	})
	results, _ := repo.SearchContent(context.Background(), "q", 5)
	if len(results) != 1 || results[0].Rating != nil {
		t.Errorf("expected record kept without rating, got %+v", results)
	}

	repo = newTestRepository(t, RepositoryConfig{
		Searcher: &stubSearcher{titles: []string{"B"}},
		Fetcher:  fetcher,
		Ratings:  &stubRatings{ratings: map[string]float64{"B": 150}},
	})
	results, _ = repo.SearchContent(context.Background(), "q", 5)
	if len(results) != 1 || results[0].Rating != nil {
		t.Errorf("expected out-of-range rating dropped, got %+v", results)
	}
}

func TestSearchContentNonFiniteRatingIsAbsent(t *testing.T) {
	catalog := &memCatalog{}
	repo := newTestRepository(t, RepositoryConfig{
		Searcher: &stubSearcher{titles: []string{"A", "B"}},
		Fetcher: &stubFetcher{pages: map[string]storage.Content{
			"A": page("A", 90, ""),
			"B": page("B", 100, ""),
		}},
		Ratings: &stubRatings{ratings: map[string]float64{"A": math.NaN(), "B": math.Inf(1)}},
		Catalog: catalog,
	})

	results, err := repo.SearchContent(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("SearchContent error: %v", err)
	}
	if got := titlesOf(results); got != "A,B" {
		t.Fatalf("unexpected results %s", got)
	}
	for _, c := range results {
		if c.Rating != nil {
			t.Errorf("%s: expected rating absent, got %v", c.Title, *c.Rating)
		}
		if err := c.Validate(); err != nil {
			t.Errorf("%s: invalid record: %v", c.Title, err)
		}
	}
	if _, err := json.Marshal(results); err != nil {
		t.Errorf("results do not encode: %v", err)
	}
}

func TestSearchContentTimeoutOmitsRecord(t *testing.T) {
	fetcher := &stubFetcher{
		pages: map[string]storage.Content{
			"Fast": page("Fast", 90, ""),
			"Slow": page("Slow", 90, ""),
		},
		slow:    map[string]bool{"Slow": true},
		release: make(chan struct{}),
	}
	t.Cleanup(func() { close(fetcher.release) })

	repo := newTestRepository(t, RepositoryConfig{
		Searcher:      &stubSearcher{titles: []string{"Slow", "Fast"}},
		Fetcher:       fetcher,
		LookupTimeout: 50 * time.Millisecond,
	})

	start := time.Now()
	results, err := repo.SearchContent(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("SearchContent error: %v", err)
	}
	if got := titlesOf(results); got != "Fast" {
		t.Errorf("expected only the fast title, got %s", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("search waited %v for a stuck lookup", elapsed)
	}
}

func TestSearchContentTitleSearchFailure(t *testing.T) {
	repo := newTestRepository(t, RepositoryConfig{
		Searcher: &stubSearcher{err: errors.New("search offline")},
		Fetcher:  &stubFetcher{},
	})

	results, err := repo.SearchContent(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("expected failure to be absorbed, got %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", results)
	}
}

func TestSearchContentLimitAndCancellation(t *testing.T) {
	searcher := &stubSearcher{titles: []string{"A"}}
	repo := newTestRepository(t, RepositoryConfig{Searcher: searcher, Fetcher: &stubFetcher{}})

	results, err := repo.SearchContent(context.Background(), "q", 0)
	if err != nil || len(results) != 0 {
		t.Errorf("expected empty result for zero limit, got %v, %v", results, err)
	}
	if len(searcher.queries) != 0 {
		t.Error("title search should not run for a zero limit")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := repo.SearchContent(ctx, "q", 5); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSearchContentNormalizesAndDeduplicates(t *testing.T) {
	messy := storage.Content{
		Title:       "  Twin Peaks  ",
		ContentType: storage.ContentTypeShow,
		Genres:      []string{"Drama", "drama", "Mystery", "Horror", "Comedy"},
		Description: strings.Repeat("x", 400),
	}
	fetcher := &stubFetcher{pages: map[string]storage.Content{
		"Twin Peaks":          messy,
		"Twin Peaks (series)": messy,
	}}
	repo := newTestRepository(t, RepositoryConfig{
		Searcher: &stubSearcher{titles: []string{"Twin Peaks", "Twin Peaks (series)"}},
		Fetcher:  fetcher,
	})

	results, err := repo.SearchContent(context.Background(), "peaks", 5)
	if err != nil {
		t.Fatalf("SearchContent error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected duplicates collapsed to one record, got %d", len(results))
	}

	c := results[0]
	if c.Title != "Twin Peaks" {
		t.Errorf("title not trimmed: %q", c.Title)
	}
	if c.DurationMinutes != storage.DefaultShowMinutes {
		t.Errorf("expected show default duration, got %d", c.DurationMinutes)
	}
	if strings.Join(c.Genres, ",") != "Drama,Mystery,Horror" {
		t.Errorf("unexpected genres %v", c.Genres)
	}
	if !strings.HasSuffix(c.Description, storage.TruncationMarker) {
		t.Error("description not truncated")
	}
}

func TestSearchContentIndexingFailureKeepsRecord(t *testing.T) {
	repo := newTestRepository(t, RepositoryConfig{
		Searcher: &stubSearcher{titles: []string{"A"}},
		Fetcher:  &stubFetcher{pages: map[string]storage.Content{"A": page("A", 90, "")}},
		Index:    failingIndex{},
	})

	results, err := repo.SearchContent(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("SearchContent error: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected record despite indexing failure, got %d", len(results))
	}

	if _, err := repo.SemanticSearch(context.Background(), "q", 5); !errors.Is(err, index.ErrEncoding) {
		t.Errorf("expected encoding failure to surface, got %v", err)
	}
}

func TestSemanticSearchRoundTrip(t *testing.T) {
	repo := newTestRepository(t, RepositoryConfig{
		Searcher: &stubSearcher{titles: []string{"Alpha", "Beta"}},
		Fetcher: &stubFetcher{pages: map[string]storage.Content{
			"Alpha": page("Alpha", 100, "Alpha is a heist drama about a bank vault."),
			"Beta":  page("Beta", 80, "Beta is a cooking documentary set in Lyon."),
		}},
		Ratings: &stubRatings{ratings: map[string]float64{"Alpha": 75}},
	})
	ctx := context.Background()

	if _, err := repo.SearchContent(ctx, "anything", 5); err != nil {
		t.Fatalf("SearchContent error: %v", err)
	}

	results, err := repo.SemanticSearch(ctx, "Alpha", 5)
	if err != nil {
		t.Fatalf("SemanticSearch error: %v", err)
	}
	if len(results) == 0 || results[0].Title != "Alpha" {
		t.Fatalf("expected Alpha first, got %s", titlesOf(results))
	}
	top := results[0]
	if top.DurationMinutes != 100 || top.Rating == nil || *top.Rating != 75 {
		t.Errorf("payload fields lost: %+v", top)
	}

	again, _ := repo.SemanticSearch(ctx, "Alpha", 5)
	if titlesOf(again) != titlesOf(results) {
		t.Errorf("search not deterministic: %s vs %s", titlesOf(again), titlesOf(results))
	}

	empty, err := repo.SemanticSearch(ctx, "Alpha", 0)
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty result for zero limit, got %v, %v", empty, err)
	}

	repo.ClearIndex()
	if repo.IndexSize() != 0 {
		t.Errorf("expected empty index after clear, got %d", repo.IndexSize())
	}
}

func TestContentFromPayloadDefaults(t *testing.T) {
	c := contentFromPayload("Orphan", map[string]any{"genres": []any{"Drama", 7, "drama"}})

	if c.Title != "Orphan" {
		t.Errorf("expected key as title, got %q", c.Title)
	}
	if c.ContentType != storage.ContentTypeMovie || c.DurationMinutes != storage.DefaultMovieMinutes {
		t.Errorf("expected movie defaults, got %s %d", c.ContentType, c.DurationMinutes)
	}
	if c.Rating != nil || c.Year != nil || c.SourceURL != nil {
		t.Errorf("expected absent optionals, got %+v", c)
	}
	if strings.Join(c.Genres, ",") != "Drama" {
		t.Errorf("unexpected genres %v", c.Genres)
	}
	if c.Description != "" {
		t.Errorf("expected empty description, got %q", c.Description)
	}
}

func TestCallWithTimeoutAbandonsSlowCall(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})

	start := time.Now()
	_, err := callWithTimeout(context.Background(), 50*time.Millisecond, func(context.Context) (int, error) {
		defer close(finished)
		<-release
		return 1, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("call was not bounded, took %v", elapsed)
	}

	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Error("abandoned call blocked delivering its result")
	}
}

func TestCallWithTimeoutReturnsResult(t *testing.T) {
	v, err := callWithTimeout(context.Background(), time.Second, func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Errorf("callWithTimeout = %q, %v", v, err)
	}
}
