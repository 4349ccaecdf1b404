package lister

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ratings-cli/internal/config"
	"github.com/sells-group/ratings-cli/internal/model"
	"github.com/sells-group/ratings-cli/internal/resilience"
	"github.com/sells-group/ratings-cli/internal/scrape"
)

const nameSel = "h2.company-title"
const pageSel = `a.page-link[aria-label^="Go to page"]`

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

// listingPage renders a page with the given names and pagination up to last.
func listingPage(last int, names ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><main>")
	for _, n := range names {
		fmt.Fprintf(&b, `<div class="card"><h2 class="company-title">%s</h2></div>`, n)
	}
	b.WriteString("</main><nav>")
	for i := 1; i <= last; i++ {
		fmt.Fprintf(&b, `<a class="page-link" aria-label="Go to page %d">%d</a>`, i, i)
	}
	b.WriteString("</nav>" + strings.Repeat("<p>listing</p>", 200) + "</body></html>")
	return b.String()
}

func TestMaxPage(t *testing.T) {
	assert.Equal(t, 3, MaxPage(docFrom(t, listingPage(3)), pageSel))
	assert.Equal(t, 1, MaxPage(docFrom(t, listingPage(0)), pageSel))
	assert.Equal(t, 1, MaxPage(docFrom(t, listingPage(3)), ""))
	assert.Equal(t, 1, MaxPage(docFrom(t, `<a class="page-link" aria-label="Go to page x">next</a>`), pageSel))
}

func TestPageURL(t *testing.T) {
	got, err := PageURL("https://builtin.example/companies?country=USA", 4)
	require.NoError(t, err)
	assert.Equal(t, "https://builtin.example/companies?country=USA&page=4", got)

	got, err = PageURL("https://builtin.example/companies?page=1", 2)
	require.NoError(t, err)
	assert.Equal(t, "https://builtin.example/companies?page=2", got)
}

func TestExtractEntities_NumberPrefix(t *testing.T) {
	html := `<p><b>1. Acme Health</b> leads.</p><p><b>Sponsored</b></p><p><b>2.  Zeta   AI</b></p><b>2024 Winners</b>`
	got := ExtractEntities(docFrom(t, html), "https://report.example/top-100", config.SourceConfig{
		NameSelector: "b",
		NumberPrefix: true,
	})
	assert.Equal(t, []model.Entity{{Name: "Acme Health"}, {Name: "Zeta AI"}}, got)
}

func TestExtractEntities_LinksWithOffsetAndExclusions(t *testing.T) {
	html := `<nav><a href="/about">About</a></nav>
<h3><strong>Acme</strong></h3><a href="https://viz.ai">skip</a><a href="https://acme.example">Acme</a>
<h3><strong>Zeta</strong></h3><a href="https://zeta.example/">Zeta</a>
<h3><strong>Orphan</strong></h3>`
	got := ExtractEntities(docFrom(t, html), "https://blog.example/post", config.SourceConfig{
		NameSelector: "h3 > strong",
		LinkSelector: "a[href]",
		LinkOffset:   1,
		ExcludeURLs:  []string{"viz.ai"},
	})
	assert.Equal(t, []model.Entity{
		{Name: "Acme", SourceURL: "https://acme.example"},
		{Name: "Zeta", SourceURL: "https://zeta.example/"},
		{Name: "Orphan"},
	}, got)
}

func TestExtractEntities_RelativeLinks(t *testing.T) {
	html := `<h3><strong>Acme</strong></h3><a href="/company/acme">Acme</a>`
	got := ExtractEntities(docFrom(t, html), "https://builtin.example/companies", config.SourceConfig{
		NameSelector: "h3 > strong",
		LinkSelector: "a[href]",
	})
	require.Len(t, got, 1)
	assert.Equal(t, "https://builtin.example/company/acme", got[0].SourceURL)
}

func TestList_PaginatedSource(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Query().Get("page") {
		case "", "1":
			fmt.Fprint(w, listingPage(3, "Acme", "Beta"))
		case "2":
			fmt.Fprint(w, listingPage(3, "Gamma", "Acme"))
		case "3":
			fmt.Fprint(w, listingPage(3, "Delta"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := New(scrape.NewLocalScraper(5*time.Second, ""), fastRetry(), 0, 2)
	got, err := l.List(context.Background(), []config.SourceConfig{{
		URL:                srv.URL + "/companies?country=USA",
		NameSelector:       nameSel,
		PaginationSelector: pageSel,
	}})
	require.NoError(t, err)

	names := make([]string, len(got))
	for i, e := range got {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"Acme", "Beta", "Gamma", "Delta"}, names)
	// Discovery fetch plus three page fetches.
	assert.Equal(t, int32(4), hits.Load())
}

func TestList_MaxPagesCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingPage(5, "Page"+r.URL.Query().Get("page")))
	}))
	defer srv.Close()

	l := New(scrape.NewLocalScraper(5*time.Second, ""), fastRetry(), 2, 4)
	got, err := l.List(context.Background(), []config.SourceConfig{{
		URL:                srv.URL,
		NameSelector:       nameSel,
		PaginationSelector: pageSel,
	}})
	require.NoError(t, err)
	assert.Equal(t, []model.Entity{{Name: "Page1"}, {Name: "Page2"}}, got)
}

func TestList_RetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, listingPage(0, "Acme"))
	}))
	defer srv.Close()

	l := New(scrape.NewLocalScraper(5*time.Second, ""), fastRetry(), 0, 1)
	got, err := l.List(context.Background(), []config.SourceConfig{{URL: srv.URL, NameSelector: nameSel}})
	require.NoError(t, err)
	assert.Equal(t, []model.Entity{{Name: "Acme"}}, got)
	assert.Equal(t, int32(2), hits.Load())
}

func TestList_FailedSourceIsSkipped(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage(0, "Acme"))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer bad.Close()

	l := New(scrape.NewLocalScraper(5*time.Second, ""), fastRetry(), 0, 1)
	got, err := l.List(context.Background(), []config.SourceConfig{
		{URL: bad.URL, NameSelector: nameSel},
		{URL: good.URL, NameSelector: nameSel},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.Entity{{Name: "Acme"}}, got)

	_, err = l.List(context.Background(), []config.SourceConfig{{URL: bad.URL, NameSelector: nameSel}})
	assert.Error(t, err)
}

func TestList_EmptyIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage(0))
	}))
	defer srv.Close()

	l := New(scrape.NewLocalScraper(5*time.Second, ""), fastRetry(), 0, 1)
	got, err := l.List(context.Background(), []config.SourceConfig{{URL: srv.URL, NameSelector: nameSel}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestList_NoSources(t *testing.T) {
	l := New(scrape.NewLocalScraper(time.Second, ""), fastRetry(), 0, 1)
	_, err := l.List(context.Background(), nil)
	assert.Error(t, err)
}
