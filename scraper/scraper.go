package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly"
	"github.com/rs/zerolog/log"
)

const (
	DefaultUserAgent = "cine-journey/1.0 (+https://github.com/cine-journey)"
	DefaultTimeout   = 10 * time.Second
)

var (
	ErrNotFound          = errors.New("page not found")
	ErrRatingUnavailable = errors.New("rating unavailable")
)

// DisambiguationError is returned when a title resolves to a page listing
// several possible articles.
type DisambiguationError struct {
	Title   string
	Options []string
}

func (e *DisambiguationError) Error() string {
	return fmt.Sprintf("%q may refer to %d articles", e.Title, len(e.Options))
}

// Options configures how the scrapers reach their upstream site
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
	Transport http.RoundTripper
}

func (o Options) baseURL(fallback string) string {
	if o.BaseURL == "" {
		return fallback
	}
	return strings.TrimRight(o.BaseURL, "/")
}

// newCollector builds a single-use collector whose request timeout never
// outlives the caller's deadline.
func newCollector(ctx context.Context, opts Options) (*colly.Collector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)
	if opts.Transport != nil {
		c.WithTransport(opts.Transport)
	}

	c.OnRequest(func(r *colly.Request) {
		log.Debug().Str("url", r.URL.String()).Msg("Visiting")
	})

	return c, nil
}

// visitError maps colly failures onto the package errors
func visitError(err error, status int) error {
	if status == http.StatusNotFound {
		return ErrNotFound
	}
	if status >= 400 {
		return fmt.Errorf("upstream returned %d: %w", status, err)
	}
	return err
}
