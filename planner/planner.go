// Package planner discovers content and assembles it into journeys that fill
// a requested amount of viewing time.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cine-journey/metrics"
	"cine-journey/storage"

	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrInvalidLimit    = errors.New("limit out of range")
	ErrInternal        = errors.New("internal error")
)

const (
	PoolSize              = 20
	DefaultDiscoveryQuery = "popular movies"
	DefaultJourneyMinutes = 180
	MaxSearchLimit        = 50
)

// JourneyRequest asks for a journey of Duration minutes. Preferences is free
// text used to discover candidates; ContentType optionally restricts them.
type JourneyRequest struct {
	Duration    int
	Preferences string
	ContentType string
}

type Options struct {
	PoolSize     int
	DefaultQuery string
}

// Planner is the entry point used by the HTTP server and the scheduler
type Planner struct {
	repo         *Repository
	poolSize     int
	defaultQuery string
}

func New(repo *Repository, opts Options) *Planner {
	p := &Planner{
		repo:         repo,
		poolSize:     opts.PoolSize,
		defaultQuery: strings.TrimSpace(opts.DefaultQuery),
	}
	if p.poolSize <= 0 {
		p.poolSize = PoolSize
	}
	if p.defaultQuery == "" {
		p.defaultQuery = DefaultDiscoveryQuery
	}
	return p
}

// PlanJourney discovers a candidate pool and composes a journey from it
func (p *Planner) PlanJourney(ctx context.Context, req JourneyRequest) (Journey, error) {
	journey, err := p.planJourney(ctx, req)
	metrics.RecordJourney(journey.Len(), err)
	return journey, err
}

func (p *Planner) planJourney(ctx context.Context, req JourneyRequest) (Journey, error) {
	if req.Duration <= 0 {
		return Journey{}, fmt.Errorf("%w: %d", ErrInvalidDuration, req.Duration)
	}

	var filter storage.ContentType
	if strings.TrimSpace(req.ContentType) != "" {
		t, err := storage.ParseContentType(req.ContentType)
		if err != nil {
			return Journey{}, err
		}
		filter = t
	}

	query := strings.TrimSpace(req.Preferences)
	if query == "" {
		query = p.defaultQuery
	}

	pool, err := p.repo.SearchContent(ctx, query, p.poolSize)
	if err != nil {
		return Journey{}, err
	}

	journey, err := Compose(pool, req.Duration, filter)
	if err != nil {
		return Journey{}, err
	}

	log.Info().
		Str("query", query).
		Int("target", req.Duration).
		Int("pool", len(pool)).
		Int("items", journey.Len()).
		Int("total_duration", journey.TotalDuration()).
		Msg("Journey planned")

	return journey, nil
}

func (p *Planner) SearchContent(ctx context.Context, query string, limit int) ([]storage.Content, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	return p.repo.SearchContent(ctx, query, limit)
}

func (p *Planner) SemanticSearch(ctx context.Context, query string, limit int) ([]storage.Content, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	return p.repo.SemanticSearch(ctx, query, limit)
}

// ResetIndex drops every indexed title
func (p *Planner) ResetIndex() {
	p.repo.ClearIndex()
	log.Info().Msg("Embedding index cleared")
}

func (p *Planner) IndexSize() int {
	return p.repo.IndexSize()
}

func checkLimit(limit int) error {
	if limit < 1 || limit > MaxSearchLimit {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidLimit, limit, MaxSearchLimit)
	}
	return nil
}
