package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

const filmPage = `<!DOCTYPE html>
<html><head>
<link rel="canonical" href="https://en.wikipedia.org/wiki/Alien_(film)">
</head><body>
<h1 id="firstHeading"><span>Alien (film)</span></h1>
<div class="mw-parser-output">
<p class="mw-empty-elt"></p>
<p>Alien is a 1979 science fiction horror film.[1] It runs 117 minutes.</p>
<p>The film stars Sigourney Weaver.</p>
<div class="mw-heading"><h2>Plot</h2></div>
<p>The crew of the Nostromo answers a distress call.</p>
</div>
</body></html>`

const disambiguationPage = `<!DOCTYPE html>
<html><body>
<h1 id="firstHeading">Alien</h1>
<div class="mw-parser-output">
<p><b>Alien</b> may refer to:</p>
<ul>
<li><a href="/wiki/Alien_(film)" title="Alien (film)">Alien (film)</a>, a 1979 film</li>
<li><a href="/wiki/Alien_(law)" title="Alien (law)">Alien (law)</a></li>
<li><a href="/wiki/Help:Disambiguation" title="Help:Disambiguation">help</a></li>
</ul>
<div id="disambigbox" class="dmbox dmbox-disambig">This disambiguation page lists articles.</div>
</div>
</body></html>`

func newWikiServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("list") != "search" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"query":{"search":[{"title":"Alien (film)"},{"title":"Aliens (film)"},{"title":"Alien 3"}]}}`))
	})
	mux.HandleFunc("/wiki/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch strings.TrimPrefix(r.URL.Path, "/wiki/") {
		case "Alien_(film)":
			w.Write([]byte(filmPage))
		case "Alien":
			w.Write([]byte(disambiguationPage))
		case "Slow":
			time.Sleep(500 * time.Millisecond)
			w.Write([]byte(filmPage))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("<html><body>missing</body></html>"))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestWikipediaSearcher(t *testing.T) {
	srv := newWikiServer(t)
	s := NewWikipediaSearcher(Options{BaseURL: srv.URL})

	titles, err := s.SearchTitles(context.Background(), "alien", 2)
	if err != nil {
		t.Fatalf("SearchTitles error: %v", err)
	}
	if !reflect.DeepEqual(titles, []string{"Alien (film)", "Aliens (film)"}) {
		t.Errorf("unexpected titles %v", titles)
	}

	titles, err = s.SearchTitles(context.Background(), "alien", 0)
	if err != nil || len(titles) != 0 {
		t.Errorf("expected no titles for zero limit, got %v, %v", titles, err)
	}
}

func TestWikipediaSearcherCancelled(t *testing.T) {
	srv := newWikiServer(t)
	s := NewWikipediaSearcher(Options{BaseURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.SearchTitles(ctx, "alien", 5); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWikipediaFetcherArticle(t *testing.T) {
	srv := newWikiServer(t)
	f := NewWikipediaFetcher(Options{BaseURL: srv.URL})

	content, err := f.FetchDetail(context.Background(), "Alien (film)")
	if err != nil {
		t.Fatalf("FetchDetail error: %v", err)
	}
	if content.Title != "Alien (film)" {
		t.Errorf("unexpected title %q", content.Title)
	}
	if content.DurationMinutes != 117 {
		t.Errorf("expected 117 minutes, got %d", content.DurationMinutes)
	}
	if strings.Contains(content.Description, "Nostromo") {
		t.Error("description should stop at the first section heading")
	}
	if strings.Contains(content.Description, "[1]") {
		t.Error("citation markers should be stripped")
	}
	if !reflect.DeepEqual(content.Genres, []string{"Horror", "Science Fiction"}) {
		t.Errorf("unexpected genres %v", content.Genres)
	}
	if content.SourceURL == nil || *content.SourceURL != "https://en.wikipedia.org/wiki/Alien_(film)" {
		t.Errorf("unexpected source url %v", content.SourceURL)
	}
}

func TestWikipediaFetcherDisambiguation(t *testing.T) {
	srv := newWikiServer(t)
	f := NewWikipediaFetcher(Options{BaseURL: srv.URL})

	_, err := f.FetchDetail(context.Background(), "Alien")
	var disambig *DisambiguationError
	if !errors.As(err, &disambig) {
		t.Fatalf("expected DisambiguationError, got %v", err)
	}
	if !reflect.DeepEqual(disambig.Options, []string{"Alien (film)", "Alien (law)"}) {
		t.Errorf("unexpected options %v", disambig.Options)
	}
}

func TestWikipediaFetcherNotFound(t *testing.T) {
	srv := newWikiServer(t)
	f := NewWikipediaFetcher(Options{BaseURL: srv.URL})

	if _, err := f.FetchDetail(context.Background(), "No Such Page"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWikipediaFetcherTimeout(t *testing.T) {
	srv := newWikiServer(t)
	f := NewWikipediaFetcher(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	if _, err := f.FetchDetail(context.Background(), "Slow"); err == nil {
		t.Error("expected a timeout error")
	}
}
