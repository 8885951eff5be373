package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"cine-journey/storage"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"
	"github.com/gocolly/colly"
	"github.com/rs/zerolog/log"
)

const DefaultWikipediaURL = "https://en.wikipedia.org"

// WikipediaSearcher finds article titles through the MediaWiki search API
type WikipediaSearcher struct {
	opts Options
}

func NewWikipediaSearcher(opts Options) *WikipediaSearcher {
	return &WikipediaSearcher{opts: opts}
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

// SearchTitles returns up to limit article titles in relevance order
func (s *WikipediaSearcher) SearchTitles(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}

	c, err := newCollector(ctx, s.opts)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(limit))
	params.Set("format", "json")
	params.Set("utf8", "1")
	endpoint := s.opts.baseURL(DefaultWikipediaURL) + "/w/api.php?" + params.Encode()

	var (
		titles   []string
		parseErr error
		status   int
	)

	c.OnResponse(func(r *colly.Response) {
		var resp searchResponse
		if err := json.Unmarshal(r.Body, &resp); err != nil {
			parseErr = fmt.Errorf("failed to decode search response: %w", err)
			return
		}
		for _, hit := range resp.Query.Search {
			if hit.Title != "" {
				titles = append(titles, hit.Title)
			}
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
	})

	if err := c.Visit(endpoint); err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", query, visitError(err, status))
	}
	if parseErr != nil {
		return nil, parseErr
	}

	if len(titles) > limit {
		titles = titles[:limit]
	}
	if titles == nil {
		titles = []string{}
	}
	return titles, nil
}

// WikipediaFetcher reads an article page and turns its lead section into Content
type WikipediaFetcher struct {
	opts Options
}

func NewWikipediaFetcher(opts Options) *WikipediaFetcher {
	return &WikipediaFetcher{opts: opts}
}

// ArticleURL returns the page address for a title
func (f *WikipediaFetcher) ArticleURL(title string) string {
	slug := strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
	return f.opts.baseURL(DefaultWikipediaURL) + "/wiki/" + url.PathEscape(slug)
}

// FetchDetail resolves a title to a Content record. A missing page yields
// ErrNotFound and a disambiguation page yields *DisambiguationError.
func (f *WikipediaFetcher) FetchDetail(ctx context.Context, title string) (*storage.Content, error) {
	c, err := newCollector(ctx, f.opts)
	if err != nil {
		return nil, err
	}

	var (
		heading      string
		canonical    string
		paragraphs   []string
		options      []string
		disambiguous bool
		bodySeen     bool
		status       int
	)

	c.OnHTML("h1#firstHeading", func(e *colly.HTMLElement) {
		heading = strings.TrimSpace(e.Text)
	})

	c.OnHTML(`link[rel="canonical"]`, func(e *colly.HTMLElement) {
		canonical = e.Attr("href")
	})

	c.OnHTML(`#disambigbox, .dmbox-disambig, #catlinks a[title="Category:Disambiguation pages"]`, func(e *colly.HTMLElement) {
		disambiguous = true
	})

	c.OnHTML("div.mw-parser-output", func(e *colly.HTMLElement) {
		if bodySeen {
			return
		}
		bodySeen = true

		paragraphs = leadParagraphs(e.DOM)
		options = linkedOptions(e.DOM)
	})

	c.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
	})

	if err := c.Visit(f.ArticleURL(title)); err != nil {
		err = visitError(err, status)
		if err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch %q: %w", title, err)
	}

	if heading == "" {
		heading = title
	}

	if disambiguous {
		return nil, &DisambiguationError{Title: heading, Options: options}
	}
	if !bodySeen {
		return nil, ErrNotFound
	}

	if canonical == "" {
		canonical = f.ArticleURL(heading)
	}

	content := BuildContent(heading, strings.Join(paragraphs, " "), canonical)

	log.Debug().
		Str("title", content.Title).
		Str("content_type", string(content.ContentType)).
		Int("duration_minutes", content.DurationMinutes).
		Msg("Fetched article")

	return &content, nil
}

// leadParagraphs collects the paragraphs before the first section heading
func leadParagraphs(body *goquery.Selection) []string {
	var out []string
	body.Children().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Is("h2, div.mw-heading") {
			return false
		}
		if s.Is("p") && !s.HasClass("mw-empty-elt") {
			if text := strings.TrimSpace(s.Text()); text != "" {
				out = append(out, text)
			}
		}
		return true
	})
	return out
}

// linkedOptions lists the article titles linked from list items on a
// disambiguation page, in page order.
func linkedOptions(body *goquery.Selection) []string {
	var out []string
	seen := map[string]bool{}
	body.Find("ul > li").Each(func(_ int, li *goquery.Selection) {
		link := li.Find(`a[href^="/wiki/"]`).First()
		title, ok := link.Attr("title")
		if !ok || title == "" || strings.Contains(title, ":") || seen[title] {
			return
		}
		seen[title] = true
		out = append(out, title)
	})
	return out
}
