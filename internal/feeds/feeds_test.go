package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"newslens/internal/cache"
	"newslens/internal/core"
	"newslens/internal/persistence"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Clarín</title>
  <link>https://www.clarin.com</link>
  <description>Lo último</description>
  <item>
    <title>El Senado aprobó la reforma</title>
    <link>https://www.clarin.com/politica/reforma.html</link>
    <description><![CDATA[<p>La Cámara alta <b>aprobó</b> el proyecto.</p><script>track()</script>]]></description>
    <pubDate>Wed, 10 Jan 2024 18:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Sin fecha</title>
    <link>https://www.clarin.com/sociedad/sin-fecha.html</link>
    <description>Texto plano</description>
  </item>
  <item>
    <title>Sin enlace</title>
    <description>Se descarta</description>
  </item>
</channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Actualización</title>
    <link href="https://example.com/atom/1"/>
    <id>urn:1</id>
    <updated>2024-01-11T09:00:00Z</updated>
    <summary>Resumen atom</summary>
  </entry>
</feed>`

type memoryCache struct {
	cache.Noop
	data map[string]string
}

func (m *memoryCache) Get(ctx context.Context, key string) (string, error) {
	return m.data[key], nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func feedServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.Header.Get("User-Agent") != "newslens-test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleRSS))
	})
	mux.HandleFunc("/atom", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(sampleAtom))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchFeed_RSS(t *testing.T) {
	srv := feedServer(t, nil)
	f := NewFetcher(nil, Options{UserAgent: "newslens-test"})

	articles, err := f.FetchFeed(context.Background(), srv.URL+"/rss")
	if err != nil {
		t.Fatalf("FetchFeed failed: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles with links, got %d", len(articles))
	}

	first := articles[0]
	if first.SourceName != "Clarín" || first.SourceType != core.SourceRSS {
		t.Errorf("unexpected source: %q/%q", first.SourceName, first.SourceType)
	}
	if first.Summary != "La Cámara alta aprobó el proyecto." {
		t.Errorf("expected HTML stripped summary, got %q", first.Summary)
	}
	want := time.Date(2024, 1, 10, 18, 0, 0, 0, time.UTC)
	if first.PublicationDate == nil || !first.PublicationDate.Equal(want) {
		t.Errorf("expected publication date %v, got %v", want, first.PublicationDate)
	}
	if first.FetchedAt.IsZero() {
		t.Error("expected fetch time to be set")
	}
	if articles[1].PublicationDate != nil {
		t.Errorf("expected no publication date, got %v", articles[1].PublicationDate)
	}
}

func TestFetchFeed_AtomUsesUpdatedAndUnknownSource(t *testing.T) {
	srv := feedServer(t, nil)
	f := NewFetcher(nil, Options{})

	articles, err := f.FetchFeed(context.Background(), srv.URL+"/atom")
	if err != nil {
		t.Fatalf("FetchFeed failed: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	if articles[0].SourceName != UnknownSource {
		t.Errorf("expected %q, got %q", UnknownSource, articles[0].SourceName)
	}
	if articles[0].PublicationDate == nil || articles[0].PublicationDate.Day() != 11 {
		t.Errorf("expected updated time as publication date, got %v", articles[0].PublicationDate)
	}
}

func TestFetchFeed_MaxItems(t *testing.T) {
	srv := feedServer(t, nil)
	f := NewFetcher(nil, Options{UserAgent: "newslens-test", MaxItemsPerFeed: 1})

	articles, err := f.FetchFeed(context.Background(), srv.URL+"/rss")
	if err != nil {
		t.Fatalf("FetchFeed failed: %v", err)
	}
	if len(articles) != 1 {
		t.Errorf("expected 1 article, got %d", len(articles))
	}
}

func TestFetchFeed_Cache(t *testing.T) {
	var hits int32
	srv := feedServer(t, &hits)
	c := &memoryCache{data: map[string]string{}}
	f := NewFetcher(c, Options{UserAgent: "newslens-test", CacheTTL: time.Minute})

	for i := 0; i < 2; i++ {
		if _, err := f.FetchFeed(context.Background(), srv.URL+"/rss"); err != nil {
			t.Fatalf("FetchFeed failed: %v", err)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("expected the second fetch served from cache, got %d requests", n)
	}
	if _, ok := c.data[cache.FeedKey(srv.URL+"/rss")]; !ok {
		t.Error("expected the feed body under its feed key")
	}
}

func TestIngest(t *testing.T) {
	srv := feedServer(t, nil)
	f := NewFetcher(nil, Options{UserAgent: "newslens-test"})
	store := persistence.NewMemoryStore()
	urls := []string{srv.URL + "/rss", srv.URL + "/broken", srv.URL + "/atom"}

	report, err := f.Ingest(context.Background(), store, urls)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if report.Fetched != 3 || report.Saved.Inserted != 3 {
		t.Errorf("expected 3 fetched and inserted, got %+v", report)
	}
	if len(report.Feeds) != 3 || report.Feeds[1].Error == "" {
		t.Errorf("expected the broken feed reported, got %+v", report.Feeds)
	}

	again, err := f.Ingest(context.Background(), store, urls[:1])
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if again.Saved.Inserted != 0 || again.Saved.Updated != 2 {
		t.Errorf("expected re-ingest to update by URL, got %+v", again.Saved)
	}
}

func TestExtractFullText(t *testing.T) {
	paragraph := strings.Repeat("El gobierno anunció hoy un nuevo plan de vacunación para todo el país. ", 10)
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Nota</title></head><body>
<nav>Menú</nav>
<article><h1>Plan de vacunación</h1><p>` + paragraph + `</p><p>` + paragraph + `</p></article>
</body></html>`))
	}))
	defer page.Close()

	f := NewFetcher(nil, Options{ExtractFullText: true, Timeout: 5 * time.Second})
	articles := []core.Article{{URL: page.URL}, {URL: "http://127.0.0.1:1/unreachable"}}
	f.extractAll(articles)

	if !strings.Contains(articles[0].Content, "plan de vacunación") {
		t.Errorf("expected extracted body text, got %q", articles[0].Content)
	}
	if articles[1].Content != "" {
		t.Errorf("expected empty content on failure, got %q", articles[1].Content)
	}
}

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  plain   text\n", "plain text"},
		{"<p>Uno</p><p>Dos</p>", "Uno Dos"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{`<div>Hola<script>var x = 1;</script><style>p{}</style></div>`, "Hola"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanHTML(tt.in); got != tt.want {
			t.Errorf("CleanHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
