// Package fetch retrieves web pages and reduces them to readable text.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	defaultMaxBytes = 1 << 20
	userAgent       = "Mozilla/5.0 (compatible; VargasJR/1.0)"
)

// HTTP fetches pages with a plain GET.
type HTTP struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// HTTPConfig configures the HTTP fetcher. Client is optional.
type HTTPConfig struct {
	Client   *http.Client
	MaxBytes int
	Logger   *slog.Logger
}

func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &HTTP{client: cfg.Client, maxBytes: int64(cfg.MaxBytes), logger: cfg.Logger}
}

// Fetch implements action.Fetcher.
func (f *HTTP) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, f.maxBytes)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return ExtractText(body)
	case strings.HasPrefix(mediaType, "text/") || mediaType == "application/json":
		b, err := io.ReadAll(body)
		return strings.TrimSpace(string(b)), err
	}
	return "", fmt.Errorf("unsupported content type %s", mediaType)
}

// skipped elements contribute no text.
var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"svg": true, "iframe": true,
}

// block elements end a line.
var block = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true, "footer": true,
	"blockquote": true, "pre": true, "table": true, "ul": true, "ol": true,
}

// ExtractText parses HTML and returns its title and visible text, one
// block per line with runs of whitespace collapsed.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var title string
	var lines []string
	var cur strings.Builder
	flush := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "title" {
				if title == "" && n.FirstChild != nil {
					title = strings.Join(strings.Fields(n.FirstChild.Data), " ")
				}
				return
			}
			if skipped[n.Data] {
				return
			}
		}
		if n.Type == html.TextNode {
			cur.WriteString(n.Data)
			cur.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && block[n.Data] {
			flush()
		}
	}
	walk(doc)
	flush()

	if title != "" && (len(lines) == 0 || lines[0] != title) {
		lines = append([]string{title}, lines...)
	}
	return strings.Join(lines, "\n"), nil
}

// Fallback tries Primary and, if it fails, Secondary.
type Fallback struct {
	Primary   interface{ Fetch(context.Context, string) (string, error) }
	Secondary interface{ Fetch(context.Context, string) (string, error) }
	Logger    *slog.Logger
}

func (f Fallback) Fetch(ctx context.Context, url string) (string, error) {
	text, err := f.Primary.Fetch(ctx, url)
	if err == nil {
		return text, nil
	}
	if f.Logger != nil {
		f.Logger.Warn("primary fetch failed, falling back", "url", url, "err", err)
	}
	return f.Secondary.Fetch(ctx, url)
}
