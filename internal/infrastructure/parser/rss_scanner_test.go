package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ContentRewriter/internal/dedup"
	"ContentRewriter/internal/retry"
	"ContentRewriter/internal/scanner"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title>Tech Daily</title>
    <item>
      <title>First story</title>
      <link>https://example.com/first</link>
      <description><![CDATA[<p>Short <b>teaser</b></p>]]></description>
      <content:encoded><![CDATA[<p>Full body of the first story.</p>]]></content:encoded>
    </item>
    <item>
      <title>Second story</title>
      <guid>https://example.com/second</guid>
      <description>Plain teaser</description>
    </item>
    <item>
      <title>Third story</title>
      <link>https://example.com/third</link>
    </item>
    <item>
      <title>Fourth story</title>
      <link>https://example.com/fourth</link>
    </item>
  </channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Weekly</title>
  <entry>
    <title>Atom entry</title>
    <link rel="self" href="https://example.org/self"/>
    <link rel="alternate" href="https://example.org/entry"/>
    <summary>Entry summary</summary>
  </entry>
</feed>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rss":
			_, _ = w.Write([]byte(rssFeed))
		case "/atom":
			_, _ = w.Write([]byte(atomFeed))
		case "/busy":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRSSScannerReadsRSSAndAtom(t *testing.T) {
	t.Parallel()

	srv := feedServer(t)
	s := NewRSSScanner(srv.Client(), nil, nil)

	items, err := s.Scan(context.Background(), scanner.Request{
		SiteName: "news",
		Feeds: []scanner.Feed{
			{URL: srv.URL + "/rss"},
			{Name: "Atom", URL: srv.URL + "/atom"},
		},
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(items) != 4 {
		t.Fatalf("expected 3 rss + 1 atom items, got %d", len(items))
	}
	first := items[0]
	if first.URL != "https://example.com/first" || first.Title != "First story" || first.Source != "Tech Daily" {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if first.Content != "Full body of the first story." {
		t.Fatalf("encoded content should win and be stripped: %q", first.Content)
	}
	if first.Fingerprint != dedup.Fingerprint("https://example.com/first") {
		t.Fatal("fingerprint must be set from the link")
	}
	if items[1].URL != "https://example.com/second" || items[1].Content != "Plain teaser" {
		t.Fatalf("guid fallback broken: %+v", items[1])
	}
	if items[3].URL != "https://example.org/entry" || items[3].Source != "Atom" {
		t.Fatalf("atom entry broken: %+v", items[3])
	}
}

func TestRSSScannerMaxItems(t *testing.T) {
	t.Parallel()

	srv := feedServer(t)
	items, err := NewRSSScanner(srv.Client(), nil, nil).Scan(context.Background(), scanner.Request{
		Feeds:    []scanner.Feed{{URL: srv.URL + "/rss"}},
		MaxItems: 1,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}

func TestRSSScannerSkipsFailingFeed(t *testing.T) {
	t.Parallel()

	srv := feedServer(t)
	items, err := NewRSSScanner(srv.Client(), nil, nil).Scan(context.Background(), scanner.Request{
		Feeds: []scanner.Feed{{URL: srv.URL + "/missing"}, {URL: srv.URL + "/atom"}},
	})
	if err != nil {
		t.Fatalf("one good feed should be enough: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}

func TestRSSScannerAllFeedsFail(t *testing.T) {
	t.Parallel()

	srv := feedServer(t)
	_, err := NewRSSScanner(srv.Client(), nil, nil).Scan(context.Background(), scanner.Request{
		Feeds: []scanner.Feed{{URL: srv.URL + "/busy"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !retry.IsRetryable(err) {
		t.Fatalf("503 should be retryable: %v", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("error should carry the status: %v", err)
	}
}

func TestPlainText(t *testing.T) {
	t.Parallel()

	if got := plainText("<p>Hello <em>world</em></p><script>x()</script>"); got != "Hello world" {
		t.Fatalf("plainText = %q", got)
	}
	if got := plainText("  spaced \n text "); got != "spaced text" {
		t.Fatalf("plainText = %q", got)
	}
}
