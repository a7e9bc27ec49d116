// Package enrich downloads externally linked pages and extracts article
// metadata from them. Enrichment is best-effort: every failure degrades
// the record, none aborts a scan.
package enrich

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

const (
	// fetchTimeout bounds one external page fetch. After it fires the
	// fetch counts as failed and is not retried.
	fetchTimeout = 10 * time.Second

	maxBodyBytes = 10 << 20

	userAgent = "ail-feeder-discord"
)

// Article is the extracted metadata of one external page.
type Article struct {
	Text        string
	Authors     []string
	Keywords    []string
	PublishDate *time.Time
	TopImage    string
	MediaLinks  []string
}

// Meta renders the article under the sink's newspaper-style keys. Empty
// fields are omitted.
func (a Article) Meta() map[string]any {
	meta := map[string]any{}
	if a.Text != "" {
		meta["newspaper:text"] = a.Text
	}
	if len(a.Authors) > 0 {
		meta["newspaper:authors"] = a.Authors
	}
	if len(a.Keywords) > 0 {
		meta["newspaper:keywords"] = a.Keywords
	}
	if a.PublishDate != nil {
		meta["newspaper:publish_date"] = a.PublishDate.UTC().Format(time.RFC3339)
	}
	if a.TopImage != "" {
		meta["newspaper:top_image"] = a.TopImage
	}
	if len(a.MediaLinks) > 0 {
		meta["newspaper:movies"] = a.MediaLinks
	}
	return meta
}

// Enricher fetches and parses external pages.
type Enricher struct {
	logger *slog.Logger
	client *http.Client
}

func NewEnricher(log *slog.Logger) *Enricher {
	if log == nil {
		log = slog.Default()
	}
	return &Enricher{
		logger: log.With(slog.String("component", "enrich")),
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// Enrich downloads link and extracts the article. It returns the article
// metadata together with the raw page bytes, which the caller submits as
// the record payload. A fetch error returns no payload; a parse error
// still returns the payload so the record can degrade to "link observed".
func (e *Enricher) Enrich(ctx context.Context, link string) (Article, []byte, error) {
	pageURL, err := url.Parse(link)
	if err != nil {
		return Article{}, nil, fmt.Errorf("parse url %s: %w", link, err)
	}

	body, err := e.fetch(ctx, link)
	if err != nil {
		return Article{}, nil, err
	}

	art, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return Article{}, body, fmt.Errorf("parse article %s: %w", link, err)
	}

	text, err := htmltomarkdown.ConvertString(art.Content)
	if err != nil {
		// The readability text extraction is a usable fallback when
		// markdown rendering chokes on the document.
		e.logger.Debug("markdown conversion failed", slog.String("url", link), slog.Any("error", err))
		text = art.TextContent
	}

	article := Article{
		Text:        strings.TrimSpace(text),
		PublishDate: art.PublishedTime,
		TopImage:    art.Image,
	}
	if byline := strings.TrimSpace(art.Byline); byline != "" {
		article.Authors = []string{byline}
	}
	article.Keywords, article.MediaLinks = scanDocument(body)

	return article, body, nil
}

func (e *Enricher) fetch(ctx context.Context, link string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", link, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", link, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", link, err)
	}
	return body, nil
}

// scanDocument walks the raw page for meta keywords and embedded media
// sources. Malformed markup yields whatever was collected before the
// tokenizer gave up.
func scanDocument(body []byte) (keywords []string, mediaLinks []string) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, nil
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				if strings.EqualFold(attr(n, "name"), "keywords") {
					for _, kw := range strings.Split(attr(n, "content"), ",") {
						if kw = strings.TrimSpace(kw); kw != "" {
							keywords = append(keywords, kw)
						}
					}
				}
			case "video", "iframe", "embed", "source":
				if src := strings.TrimSpace(attr(n, "src")); src != "" {
					mediaLinks = append(mediaLinks, src)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return keywords, mediaLinks
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}
