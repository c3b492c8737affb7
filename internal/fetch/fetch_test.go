package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestExtractText(t *testing.T) {
	page := `<!doctype html><html><head><title>Example Domain</title>
<style>body{color:red}</style><script>var x = 1;</script></head>
<body><h1>Example   Domain</h1><p>This domain is for
use in <a href="#">examples</a>.</p><ul><li>one</li><li>two</li></ul></body></html>`

	got, err := ExtractText(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}
	want := "Example Domain\nThis domain is for use in examples .\none\ntwo"
	if got != want {
		t.Fatalf("got:\n%q\nwant:\n%q", got, want)
	}
}

func TestHTTPFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			io.WriteString(w, "<html><body><p>Hello <b>world</b></p></body></html>")
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			io.WriteString(w, "  just text \n")
		case "/image":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte{0x89, 'P', 'N', 'G'})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTP(HTTPConfig{Logger: testLogger()})
	ctx := context.Background()

	if got, err := f.Fetch(ctx, srv.URL+"/page"); err != nil || got != "Hello world" {
		t.Fatalf("page = %q, %v", got, err)
	}
	if got, err := f.Fetch(ctx, srv.URL+"/plain"); err != nil || got != "just text" {
		t.Fatalf("plain = %q, %v", got, err)
	}
	if _, err := f.Fetch(ctx, srv.URL+"/image"); err == nil {
		t.Fatal("expected unsupported content type error")
	}
	if _, err := f.Fetch(ctx, srv.URL+"/missing"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("missing err = %v", err)
	}
}

func TestHTTPFetch_MaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, strings.Repeat("x", 100))
	}))
	defer srv.Close()

	f := NewHTTP(HTTPConfig{MaxBytes: 10, Logger: testLogger()})
	got, err := f.Fetch(context.Background(), srv.URL)
	if err != nil || len(got) != 10 {
		t.Fatalf("got %d bytes, err %v", len(got), err)
	}
}

type stubFetcher struct {
	text string
	err  error
}

func (s stubFetcher) Fetch(context.Context, string) (string, error) { return s.text, s.err }

func TestFallback(t *testing.T) {
	f := Fallback{Primary: stubFetcher{err: errors.New("no chrome")}, Secondary: stubFetcher{text: "plain"}, Logger: testLogger()}
	if got, err := f.Fetch(context.Background(), "https://example.com"); err != nil || got != "plain" {
		t.Fatalf("got %q, %v", got, err)
	}
	f.Primary = stubFetcher{text: "rendered"}
	if got, _ := f.Fetch(context.Background(), "https://example.com"); got != "rendered" {
		t.Fatalf("got %q", got)
	}
}
