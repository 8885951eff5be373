package scraper

import (
	"reflect"
	"strings"
	"testing"

	"cine-journey/storage"
)

func TestParseRuntime(t *testing.T) {
	tests := []struct {
		text   string
		want   int
		wantOK bool
	}{
		{"The film runs 142 minutes.", 142, true},
		{"Running time: 98 mins", 98, true},
		{"Each episode is 1 minute long", 1, true},
		{"It is 90 Minutes of fun", 90, true},
		{"Released in 1994", 0, false},
		{"0 minutes", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseRuntime(tt.text)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseRuntime(%q) = %d, %v; want %d, %v", tt.text, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestInferContentType(t *testing.T) {
	tests := []struct {
		text string
		want storage.ContentType
	}{
		{"an American television sitcom", storage.ContentTypeShow},
		{"a British TV series", storage.ContentTypeShow},
		{"the third series of the programme", storage.ContentTypeShow},
		{"a 1999 science fiction action film", storage.ContentTypeMovie},
		{"", storage.ContentTypeMovie},
	}
	for _, tt := range tests {
		if got := InferContentType(tt.text); got != tt.want {
			t.Errorf("InferContentType(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestExtractYear(t *testing.T) {
	if y := ExtractYear("a 1999 film, remade in 2021"); y == nil || *y != 1999 {
		t.Errorf("expected 1999, got %v", y)
	}
	if y := ExtractYear("set in 1850 and 2150"); y != nil {
		t.Errorf("expected no year, got %d", *y)
	}
}

func TestExtractGenres(t *testing.T) {
	got := ExtractGenres("A horror comedy with drama, action and romance elements")
	want := []string{"Action", "Comedy", "Drama"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractGenres = %v, want %v", got, want)
	}

	got = ExtractGenres("A science fiction film")
	if !reflect.DeepEqual(got, []string{"Science Fiction"}) {
		t.Errorf("expected title-cased multi-word genre, got %v", got)
	}

	got = ExtractGenres("nothing relevant")
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestCleanSummary(t *testing.T) {
	got := CleanSummary("Inception is a film.[1] It was  released[citation needed]\n in 2010.[a]")
	want := "Inception is a film. It was released in 2010."
	if got != want {
		t.Errorf("CleanSummary = %q, want %q", got, want)
	}
}

func TestBuildContent(t *testing.T) {
	summary := "Heat is a 1995 American crime thriller drama film. It runs 170 minutes."
	c := BuildContent("Heat (1995 film)", summary, "https://en.wikipedia.org/wiki/Heat_(1995_film)")

	if c.ContentType != storage.ContentTypeMovie {
		t.Errorf("expected movie, got %s", c.ContentType)
	}
	if c.DurationMinutes != 170 {
		t.Errorf("expected 170 minutes, got %d", c.DurationMinutes)
	}
	if c.Year == nil || *c.Year != 1995 {
		t.Errorf("expected year 1995, got %v", c.Year)
	}
	if !reflect.DeepEqual(c.Genres, []string{"Drama", "Thriller"}) {
		t.Errorf("unexpected genres %v", c.Genres)
	}
	if c.SourceURL == nil || !strings.HasSuffix(*c.SourceURL, "Heat_(1995_film)") {
		t.Errorf("unexpected source url %v", c.SourceURL)
	}
	if c.Rating != nil {
		t.Errorf("rating should be absent, got %v", *c.Rating)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("built content is invalid: %v", err)
	}
}

func TestBuildContentRuntimeKeepsMovie(t *testing.T) {
	c := BuildContent("X", "X is an American television series. Each episode runs 60 minutes.", "")
	if c.ContentType != storage.ContentTypeMovie || c.DurationMinutes != 60 {
		t.Errorf("expected movie/60, got %s/%d", c.ContentType, c.DurationMinutes)
	}

	c = BuildContent("Y", "Y is an American television series.", "")
	if c.ContentType != storage.ContentTypeShow || c.DurationMinutes != storage.DefaultShowMinutes {
		t.Errorf("expected show/%d, got %s/%d", storage.DefaultShowMinutes, c.ContentType, c.DurationMinutes)
	}
}

func TestBuildContentDefaultsAndTruncation(t *testing.T) {
	show := BuildContent("Some Show", "A long-running television programme.", "")
	if show.ContentType != storage.ContentTypeShow || show.DurationMinutes != storage.DefaultShowMinutes {
		t.Errorf("expected show default %d minutes, got %s %d", storage.DefaultShowMinutes, show.ContentType, show.DurationMinutes)
	}
	if show.SourceURL != nil {
		t.Errorf("expected no source url, got %s", *show.SourceURL)
	}

	long := BuildContent("Long", strings.Repeat("word ", 200), "")
	if !strings.HasSuffix(long.Description, storage.TruncationMarker) {
		t.Error("long description was not marked as truncated")
	}
	if n := len([]rune(long.Description)); n != storage.MaxDescriptionLength+len(storage.TruncationMarker) {
		t.Errorf("unexpected truncated length %d", n)
	}
	if long.DurationMinutes != storage.DefaultMovieMinutes {
		t.Errorf("expected movie default, got %d", long.DurationMinutes)
	}
}
