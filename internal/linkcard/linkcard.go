// Package linkcard builds external link-card embeds for posts that carry a
// URL but no media. Everything here is best-effort: a failed or non-HTML
// fetch yields no card, never an error that could block posting.
package linkcard

import (
	"context"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/skybridge-labs/skybridge/internal/atproto"
	"github.com/skybridge-labs/skybridge/internal/logging"
)

// maxCardBody bounds how much of a page we read for metadata.
const maxCardBody = 512 << 10

// Fetcher fetches link-card metadata for URLs.
type Fetcher struct {
	http   *retryablehttp.Client
	policy *bluemonday.Policy
	log    *logging.Logger
}

// NewFetcher creates a link-card fetcher.
func NewFetcher(log *logging.Logger) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 1
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	return &Fetcher{
		http: client,
		// Scraped titles come from arbitrary pages; strip all markup.
		policy: bluemonday.StrictPolicy(),
		log:    log,
	}
}

// Fetch returns a link card for url, or nil when the target is not an HTML
// page or anything at all goes wrong.
func (f *Fetcher) Fetch(ctx context.Context, url string) *atproto.ExternalInfo {
	if !f.isHTML(ctx, url) {
		return nil
	}

	// The minimal card is the URL itself; metadata scraping only
	// improves on it.
	card := &atproto.ExternalInfo{URI: url, Title: url}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return card
	}
	resp, err := f.http.Do(req)
	if err != nil {
		f.log.Debug("link card fetch failed", zap.String("url", url), zap.Error(err))
		return card
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return card
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxCardBody))
	if err != nil {
		return card
	}

	if title := f.meta(doc, "og:title"); title != "" {
		card.Title = title
	} else if title := f.clean(doc.Find("title").First().Text()); title != "" {
		card.Title = title
	}
	card.Description = f.meta(doc, "og:description")

	return card
}

// isHTML issues the HEAD probe gating card creation.
func (f *Fetcher) isHTML(ctx context.Context, url string) bool {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return strings.Contains(resp.Header.Get("Content-Type"), "text/html")
}

func (f *Fetcher) meta(doc *goquery.Document, property string) string {
	content, _ := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	return f.clean(content)
}

func (f *Fetcher) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(f.policy.Sanitize(s)))
}
