package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"cine-journey/storage"
)

// Rules for turning a free-text article summary into a Content record.
// They are kept apart from the fetch path so they can be tested offline.

var (
	runtimePattern  = regexp.MustCompile(`(?i)(\d+)\s*(?:minutes?|mins?)\b`)
	yearPattern     = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	citationPattern = regexp.MustCompile(`\[(?:\d+|[a-z]|citation needed|note \d+)\]`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

// ShowKeywords mark a summary as describing a show rather than a movie
var ShowKeywords = []string{"television", "tv series", "series"}

// GenreKeywords are matched in order; the first three hits become the genres
var GenreKeywords = []string{
	"action", "comedy", "drama", "thriller", "horror",
	"science fiction", "romance", "documentary", "animation",
}

// ParseRuntime returns the first "N minutes" figure in the text
func ParseRuntime(text string) (int, bool) {
	m := runtimePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// InferContentType classifies the summary by keyword
func InferContentType(text string) storage.ContentType {
	lower := strings.ToLower(text)
	for _, kw := range ShowKeywords {
		if strings.Contains(lower, kw) {
			return storage.ContentTypeShow
		}
	}
	return storage.ContentTypeMovie
}

// ExtractYear returns the first plausible release year
func ExtractYear(text string) *int {
	m := yearPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &year
}

// ExtractGenres returns up to three title-cased genre keywords found in the text
func ExtractGenres(text string) []string {
	lower := strings.ToLower(text)
	genres := make([]string, 0, storage.MaxGenres)
	for _, kw := range GenreKeywords {
		if strings.Contains(lower, kw) {
			genres = append(genres, titleCase(kw))
			if len(genres) == storage.MaxGenres {
				break
			}
		}
	}
	return genres
}

// CleanSummary strips citation markers and collapses whitespace
func CleanSummary(text string) string {
	text = citationPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

// BuildContent applies every rule to an article summary. An explicit
// "N minutes" figure sets the runtime and keeps the record a movie; only
// without one do the show keywords decide the type and its default runtime.
func BuildContent(title string, summary string, sourceURL string) storage.Content {
	summary = CleanSummary(summary)

	content := storage.Content{
		Title:       title,
		ContentType: storage.ContentTypeMovie,
		Genres:      ExtractGenres(summary),
		Description: summary,
		Year:        ExtractYear(summary),
	}

	if minutes, ok := ParseRuntime(summary); ok {
		content.DurationMinutes = minutes
	} else {
		content.ContentType = InferContentType(summary)
	}
	if sourceURL != "" {
		content.SourceURL = &sourceURL
	}

	content.Normalize()
	return content
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
