package planner

import (
	"context"
	"errors"
	"strings"
	"time"

	"cine-journey/index"
	"cine-journey/metrics"
	"cine-journey/scraper"
	"cine-journey/storage"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency   = 4
	DefaultLookupTimeout = 10 * time.Second
)

// TitleSearcher finds candidate titles for a free-text query
type TitleSearcher interface {
	SearchTitles(ctx context.Context, query string, limit int) ([]string, error)
}

// DetailFetcher resolves a title to a record. It may return
// scraper.ErrNotFound or a *scraper.DisambiguationError.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, title string) (*storage.Content, error)
}

// RatingFetcher returns a 0-100 score, or nil when none is known
type RatingFetcher interface {
	FetchRating(ctx context.Context, title string) (*float64, error)
}

// Indexer is the embedding index as seen by the repository
type Indexer interface {
	Upsert(ctx context.Context, key string, text string, metadata map[string]any) error
	Search(ctx context.Context, query string, limit int) ([]index.Result, error)
	Clear()
	Len() int
}

// Catalog persists every resolved record
type Catalog interface {
	SaveContent(content storage.Content) error
}

type RepositoryConfig struct {
	Searcher TitleSearcher
	Fetcher  DetailFetcher
	Ratings  RatingFetcher
	Index    Indexer
	Catalog  Catalog

	Concurrency   int
	LookupTimeout time.Duration
}

// Repository discovers content through the external sources and keeps the
// embedding index up to date with everything it has seen.
type Repository struct {
	searcher TitleSearcher
	fetcher  DetailFetcher
	ratings  RatingFetcher
	index    Indexer
	catalog  Catalog

	concurrency   int
	lookupTimeout time.Duration
}

func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Searcher == nil || cfg.Fetcher == nil {
		return nil, errors.New("repository requires a title searcher and a detail fetcher")
	}
	if cfg.Index == nil {
		return nil, errors.New("repository requires an index")
	}

	r := &Repository{
		searcher:      cfg.Searcher,
		fetcher:       cfg.Fetcher,
		ratings:       cfg.Ratings,
		index:         cfg.Index,
		catalog:       cfg.Catalog,
		concurrency:   cfg.Concurrency,
		lookupTimeout: cfg.LookupTimeout,
	}
	if r.ratings == nil {
		r.ratings = scraper.NoRatings{}
	}
	if r.concurrency <= 0 {
		r.concurrency = DefaultConcurrency
	}
	if r.lookupTimeout <= 0 {
		r.lookupTimeout = DefaultLookupTimeout
	}
	return r, nil
}

// SearchContent discovers up to limit records for a query. Titles that cannot
// be resolved are left out; the rest come back in search order and are added
// to the index.
func (r *Repository) SearchContent(ctx context.Context, query string, limit int) ([]storage.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []storage.Content{}, nil
	}

	start := time.Now()
	titles, err := callWithTimeout(ctx, r.lookupTimeout, func(ctx context.Context) ([]string, error) {
		return r.searcher.SearchTitles(ctx, query, limit)
	})
	if err != nil {
		metrics.RecordLookup("search", metrics.OutcomeFailed, time.Since(start))
		log.Warn().Err(err).Str("query", query).Msg("Title search failed")
		return []storage.Content{}, nil
	}
	metrics.RecordLookup("search", metrics.OutcomeOK, time.Since(start))
	if len(titles) > limit {
		titles = titles[:limit]
	}

	resolved := make([]*storage.Content, len(titles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, title := range titles {
		g.Go(func() error {
			resolved[i] = r.resolve(gctx, title)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]storage.Content, 0, len(resolved))
	seen := make(map[string]struct{}, len(resolved))
	for _, content := range resolved {
		if content == nil {
			continue
		}
		key := strings.ToLower(content.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		results = append(results, *content)
	}

	for _, content := range results {
		r.store(ctx, content)
	}

	log.Info().
		Str("query", query).
		Int("titles", len(titles)).
		Int("resolved", len(results)).
		Msg("Content search completed")

	return results, nil
}

// SemanticSearch returns the indexed records closest in meaning to the query
func (r *Repository) SemanticSearch(ctx context.Context, query string, limit int) ([]storage.Content, error) {
	if limit <= 0 {
		return []storage.Content{}, nil
	}

	hits, err := r.index.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	results := make([]storage.Content, 0, len(hits))
	for _, hit := range hits {
		results = append(results, contentFromPayload(hit.Key, hit.Payload))
	}
	return results, nil
}

// ClearIndex forgets everything indexed so far
func (r *Repository) ClearIndex() {
	r.index.Clear()
	metrics.IndexEntries.Set(0)
}

// IndexSize reports how many titles are indexed
func (r *Repository) IndexSize() int {
	return r.index.Len()
}

// resolve turns a title into a rated record, or nil when it cannot be resolved
func (r *Repository) resolve(ctx context.Context, title string) *storage.Content {
	content, err := r.fetchDetail(ctx, title)

	var disambig *scraper.DisambiguationError
	if errors.As(err, &disambig) {
		if len(disambig.Options) == 0 {
			metrics.RecordLookup("detail", metrics.OutcomeAbandoned, 0)
			log.Debug().Str("title", title).Msg("Ambiguous title without options, skipping")
			return nil
		}
		metrics.RecordLookup("detail", metrics.OutcomeRetried, 0)
		content, err = r.fetchDetail(ctx, disambig.Options[0])
	}
	if err != nil {
		log.Debug().Err(err).Str("title", title).Msg("Skipping unresolved title")
		return nil
	}
	if content == nil {
		return nil
	}

	content.Normalize()
	if err := content.Validate(); err != nil {
		log.Debug().Err(err).Str("title", title).Msg("Skipping invalid record")
		return nil
	}

	content.Rating = r.fetchRating(ctx, content.Title)
	content.Normalize()
	return content
}

func (r *Repository) fetchDetail(ctx context.Context, title string) (*storage.Content, error) {
	start := time.Now()
	content, err := callWithTimeout(ctx, r.lookupTimeout, func(ctx context.Context) (*storage.Content, error) {
		return r.fetcher.FetchDetail(ctx, title)
	})

	outcome := metrics.OutcomeOK
	var disambig *scraper.DisambiguationError
	switch {
	case err == nil:
	case errors.Is(err, scraper.ErrNotFound):
		outcome = metrics.OutcomeNotFound
	case errors.As(err, &disambig):
		outcome = metrics.OutcomeRetried
	default:
		outcome = metrics.OutcomeFailed
	}
	if outcome != metrics.OutcomeRetried {
		metrics.RecordLookup("detail", outcome, time.Since(start))
	}

	return content, err
}

// fetchRating is best effort: any failure leaves the rating absent
func (r *Repository) fetchRating(ctx context.Context, title string) *float64 {
	start := time.Now()
	rating, err := callWithTimeout(ctx, r.lookupTimeout, func(ctx context.Context) (*float64, error) {
		return r.ratings.FetchRating(ctx, title)
	})
	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, scraper.ErrRatingUnavailable) {
			outcome = metrics.OutcomeNotFound
		}
		metrics.RecordLookup("rating", outcome, time.Since(start))
		log.Debug().Err(err).Str("title", title).Msg("Rating unavailable")
		return nil
	}
	metrics.RecordLookup("rating", metrics.OutcomeOK, time.Since(start))

	if rating == nil || !storage.ValidRating(*rating) {
		return nil
	}
	v := *rating
	return &v
}

// store indexes and catalogs a record. Neither failure drops the record.
func (r *Repository) store(ctx context.Context, content storage.Content) {
	err := r.index.Upsert(ctx, content.Title, indexText(content), contentPayload(content))
	metrics.RecordUpsert(err, r.index.Len())
	if err != nil {
		log.Warn().Err(err).Str("title", content.Title).Msg("Failed to index content")
	}

	if r.catalog != nil {
		if err := r.catalog.SaveContent(content); err != nil {
			log.Warn().Err(err).Str("title", content.Title).Msg("Failed to save content to catalog")
		}
	}
}

// callWithTimeout bounds fn by timeout even when fn ignores its context.
// A collaborator that ignores ctx keeps running in its goroutine after the
// caller has moved on; its result is dropped into the buffered channel and
// discarded. The scraper collectors cap their request timeout at the ctx
// deadline, so with them the abandoned work ends at the same time.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
