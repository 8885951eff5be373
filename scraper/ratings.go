package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cine-journey/storage"

	"github.com/goccy/go-json"
	"github.com/gocolly/colly"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

const DefaultOMDbURL = "https://www.omdbapi.com"

// BreakerSettings controls when the rating source is considered down
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

var DefaultBreakerSettings = BreakerSettings{
	MaxFailures: 5,
	OpenTimeout: 30 * time.Second,
}

// OMDbRatings looks up critic scores on OMDb, normalised to 0-100
type OMDbRatings struct {
	opts    Options
	breaker *gobreaker.CircuitBreaker[*float64]
}

func NewOMDbRatings(opts Options, settings BreakerSettings) *OMDbRatings {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = DefaultBreakerSettings.MaxFailures
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = DefaultBreakerSettings.OpenTimeout
	}

	cb := gobreaker.NewCircuitBreaker[*float64](gobreaker.Settings{
		Name:        "omdb",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			// a title OMDb does not know is not an outage
			return err == nil || errors.Is(err, ErrRatingUnavailable)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Rating source circuit breaker changed state")
		},
	})

	return &OMDbRatings{opts: opts, breaker: cb}
}

type omdbResponse struct {
	Response   string `json:"Response"`
	Error      string `json:"Error"`
	Metascore  string `json:"Metascore"`
	IMDbRating string `json:"imdbRating"`
	Ratings    []struct {
		Source string `json:"Source"`
		Value  string `json:"Value"`
	} `json:"Ratings"`
}

// FetchRating returns the best available score for a title
func (o *OMDbRatings) FetchRating(ctx context.Context, title string) (*float64, error) {
	rating, err := o.breaker.Execute(func() (*float64, error) {
		return o.fetch(ctx, title)
	})
	if err != nil {
		return nil, err
	}
	return rating, nil
}

func (o *OMDbRatings) fetch(ctx context.Context, title string) (*float64, error) {
	c, err := newCollector(ctx, o.opts)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("apikey", o.opts.APIKey)
	params.Set("t", title)
	endpoint := o.opts.baseURL(DefaultOMDbURL) + "/?" + params.Encode()

	var (
		resp     omdbResponse
		parseErr error
		status   int
	)

	c.OnResponse(func(r *colly.Response) {
		if err := json.Unmarshal(r.Body, &resp); err != nil {
			parseErr = fmt.Errorf("failed to decode rating response: %w", err)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
	})

	if err := c.Visit(endpoint); err != nil {
		return nil, fmt.Errorf("failed to fetch rating for %q: %w", title, visitError(err, status))
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if !strings.EqualFold(resp.Response, "true") {
		return nil, fmt.Errorf("%w: %s", ErrRatingUnavailable, resp.Error)
	}

	score, ok := resp.score()
	if !ok {
		return nil, ErrRatingUnavailable
	}
	return &score, nil
}

// score prefers Rotten Tomatoes, then Metacritic, then IMDb scaled to 100
func (r omdbResponse) score() (float64, bool) {
	for _, rating := range r.Ratings {
		if rating.Source == "Rotten Tomatoes" {
			if v, ok := parseScore(strings.TrimSuffix(rating.Value, "%"), 1); ok {
				return v, true
			}
		}
	}
	if v, ok := parseScore(r.Metascore, 1); ok {
		return v, true
	}
	if v, ok := parseScore(r.IMDbRating, 10); ok {
		return v, true
	}
	return 0, false
}

func parseScore(raw string, scale float64) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "N/A" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	v *= scale
	if !storage.ValidRating(v) {
		return 0, false
	}
	return v, true
}

// NoRatings is used when no rating source is configured
type NoRatings struct{}

func (NoRatings) FetchRating(ctx context.Context, title string) (*float64, error) {
	return nil, nil
}
