package scrape

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/htmlindex"
)

const maxBodyBytes = 1 << 20

// LocalScraper fetches HTML via net/http, detects blocks, and converts to
// plaintext with goquery. Free, no API calls. Falls through to Jina or
// Firecrawl when blocked.
type LocalScraper struct {
	client    *http.Client
	userAgent string
}

// LocalOption configures a LocalScraper.
type LocalOption func(*LocalScraper)

// WithLocalHTTPClient sets a custom *http.Client.
func WithLocalHTTPClient(hc *http.Client) LocalOption {
	return func(l *LocalScraper) {
		l.client = hc
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) LocalOption {
	return func(l *LocalScraper) {
		l.userAgent = ua
	}
}

// NewLocalScraper creates a LocalScraper with sensible defaults.
func NewLocalScraper(opts ...LocalOption) *LocalScraper {
	l := &LocalScraper{
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: "Mozilla/5.0 (compatible; ShoppingBot/1.0)",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LocalScraper) Name() string           { return "local_http" }
func (l *LocalScraper) Supports(_ string) bool { return true }

// Scrape fetches a URL, detects blocks, strips HTML to plaintext.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	body, err := decodeBody(raw, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: decode body")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", blockType)
	}

	if resp.StatusCode >= 400 {
		return nil, &StatusError{Scraper: l.Name(), URL: targetURL, StatusCode: resp.StatusCode}
	}

	if len(body) < 100 {
		return nil, eris.New("local_http: empty page")
	}

	title, text, err := htmlToText(body)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: parse html")
	}
	if strings.TrimSpace(text) == "" {
		return nil, eris.New("local_http: no text content")
	}

	return &Result{
		Page: Page{
			URL:        targetURL,
			Title:      title,
			Text:       text,
			StatusCode: resp.StatusCode,
		},
		Source: l.Name(),
	}, nil
}

var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset=["']?([a-z0-9_\-]+)`)

// decodeBody converts the body to UTF-8 using the charset from the
// Content-Type header or a <meta> tag. Korean shops still serve EUC-KR.
func decodeBody(raw []byte, contentType string) ([]byte, error) {
	charset := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		charset = params["charset"]
	}
	if charset == "" {
		head := raw
		if len(head) > 2048 {
			head = head[:2048]
		}
		if m := metaCharsetRe.FindSubmatch(head); len(m) > 1 {
			charset = string(m[1])
		}
	}

	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return raw, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "unsupported charset %q", charset)
	}
	return io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(raw)))
}

// removedSelectors never carry product text.
const removedSelectors = "script, style, noscript, nav, footer, header, aside, iframe, svg, form"

// blockElements end a line of extracted text.
var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true, "br": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"dt": true, "dd": true, "table": true, "ul": true, "ol": true,
}

// htmlToText returns the page title and the visible body text, one line per
// block element.
func htmlToText(body []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
		title = strings.TrimSpace(title)
	}

	doc.Find(removedSelectors).Remove()

	var sb strings.Builder
	for _, n := range doc.Find("body").Nodes {
		writeText(&sb, n)
	}

	lines := strings.Split(sb.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return title, strings.Join(out, "\n"), nil
}

func writeText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch {
		case blockElements[n.Data]:
			sb.WriteByte('\n')
		case n.Data == "td" || n.Data == "th":
			sb.WriteByte(' ')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(sb, c)
	}
	if n.Type == html.ElementNode && blockElements[n.Data] {
		sb.WriteByte('\n')
	}
}
