package storage

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ContentType distinguishes movies from shows
type ContentType string

const (
	ContentTypeMovie ContentType = "movie"
	ContentTypeShow  ContentType = "show"
)

const (
	DefaultMovieMinutes = 120
	DefaultShowMinutes  = 45

	MaxGenres            = 3
	MaxDescriptionLength = 300
	TruncationMarker     = "..."
)

var ErrInvalidContentType = errors.New("invalid content type")

// ParseContentType accepts "movie" or "show" in any case
func ParseContentType(s string) (ContentType, error) {
	switch ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case ContentTypeMovie:
		return ContentTypeMovie, nil
	case ContentTypeShow:
		return ContentTypeShow, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidContentType, s)
}

// DefaultDuration returns the runtime assumed when none is known
func (t ContentType) DefaultDuration() int {
	if t == ContentTypeShow {
		return DefaultShowMinutes
	}
	return DefaultMovieMinutes
}

// Content is a normalized description of one watchable item
type Content struct {
	Title           string      `json:"title"`
	ContentType     ContentType `json:"content_type"`
	DurationMinutes int         `json:"duration_minutes"`
	Rating          *float64    `json:"rating"`
	Genres          []string    `json:"genres"`
	Description     string      `json:"description"`
	Year            *int        `json:"year"`
	SourceURL       *string     `json:"source_url"`
}

// Normalize applies defaults and enforces the record invariants in place
func (c *Content) Normalize() {
	c.Title = strings.TrimSpace(c.Title)

	if c.ContentType != ContentTypeMovie && c.ContentType != ContentTypeShow {
		c.ContentType = ContentTypeMovie
	}

	if c.DurationMinutes <= 0 {
		c.DurationMinutes = c.ContentType.DefaultDuration()
	}

	if c.Rating != nil && !ValidRating(*c.Rating) {
		c.Rating = nil
	}

	c.Genres = UniqueGenres(c.Genres)
	c.Description = TruncateDescription(c.Description)
}

// Validate reports the first invariant the record violates
func (c Content) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return errors.New("content title is empty")
	}
	if c.ContentType != ContentTypeMovie && c.ContentType != ContentTypeShow {
		return fmt.Errorf("%w: %q", ErrInvalidContentType, c.ContentType)
	}
	if c.DurationMinutes <= 0 {
		return fmt.Errorf("content %q has non-positive duration %d", c.Title, c.DurationMinutes)
	}
	if c.Rating != nil && !ValidRating(*c.Rating) {
		return fmt.Errorf("content %q has rating %.1f outside [0,100]", c.Title, *c.Rating)
	}
	if len(c.Genres) > MaxGenres {
		return fmt.Errorf("content %q has %d genres, max %d", c.Title, len(c.Genres), MaxGenres)
	}
	seen := make(map[string]struct{}, len(c.Genres))
	for _, g := range c.Genres {
		key := strings.ToLower(g)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("content %q lists genre %q twice", c.Title, g)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ValidRating reports whether v is a finite score in [0,100]
func ValidRating(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v <= 100
}

// UniqueGenres drops blanks and case-insensitive duplicates, keeping at most MaxGenres.
// The result is never nil so it serializes as an empty array.
func UniqueGenres(genres []string) []string {
	out := make([]string, 0, MaxGenres)
	seen := make(map[string]struct{}, len(genres))
	for _, g := range genres {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		key := strings.ToLower(g)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, g)
		if len(out) == MaxGenres {
			break
		}
	}
	return out
}

// TruncateDescription keeps the first MaxDescriptionLength characters and marks the cut
func TruncateDescription(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= MaxDescriptionLength {
		return s
	}
	return string(runes[:MaxDescriptionLength]) + TruncationMarker
}
