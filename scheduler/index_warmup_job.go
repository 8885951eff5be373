package scheduler

import (
	"context"
	"strings"

	"cine-journey/storage"

	"github.com/rs/zerolog/log"
)

const (
	IndexWarmupJobName = "index_warmup"
	DefaultWarmupLimit = 10
)

// ContentSearcher is the part of the planner the warm-up job drives
type ContentSearcher interface {
	SearchContent(ctx context.Context, query string, limit int) ([]storage.Content, error)
	ResetIndex()
}

// Notifier receives the titles indexed by a run
type Notifier interface {
	NotifyContentUpdate(contents []storage.Content, queries []string) error
}

type IndexWarmupOptions struct {
	Queries []string
	Limit   int
	// Reset clears the index before the queries run
	Reset bool
}

// IndexWarmupJob re-runs discovery queries so semantic search has material
// before the first user search.
type IndexWarmupJob struct {
	searcher ContentSearcher
	notifier Notifier
	queries  []string
	limit    int
	reset    bool
}

// NewIndexWarmupJob creates the job; notifier may be nil
func NewIndexWarmupJob(searcher ContentSearcher, notifier Notifier, opts IndexWarmupOptions) *IndexWarmupJob {
	queries := make([]string, 0, len(opts.Queries))
	for _, q := range opts.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultWarmupLimit
	}

	return &IndexWarmupJob{
		searcher: searcher,
		notifier: notifier,
		queries:  queries,
		limit:    limit,
		reset:    opts.Reset,
	}
}

func (j *IndexWarmupJob) Name() string {
	return IndexWarmupJobName
}

// Run executes the job. Failed queries are logged and skipped.
func (j *IndexWarmupJob) Run(ctx context.Context) error {
	log.Info().Int("queries", len(j.queries)).Bool("reset", j.reset).Msg("Running index warm-up")

	if j.reset {
		j.searcher.ResetIndex()
	}

	var indexed []storage.Content
	seen := map[string]bool{}

	for _, query := range j.queries {
		if err := ctx.Err(); err != nil {
			return err
		}

		contents, err := j.searcher.SearchContent(ctx, query, j.limit)
		if err != nil {
			log.Warn().Err(err).Str("query", query).Msg("Warm-up query failed")
			continue
		}

		for _, c := range contents {
			key := strings.ToLower(c.Title)
			if seen[key] {
				continue
			}
			seen[key] = true
			indexed = append(indexed, c)
		}
	}

	log.Info().
		Int("indexed", len(indexed)).
		Int("queries", len(j.queries)).
		Msg("Index warm-up complete")

	if j.notifier != nil && len(indexed) > 0 {
		if err := j.notifier.NotifyContentUpdate(indexed, j.queries); err != nil {
			log.Error().Err(err).Msg("Failed to send index digest")
		}
	}

	return nil
}
