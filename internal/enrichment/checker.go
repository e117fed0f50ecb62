package enrichment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Checker probes remote pages and images
type Checker struct {
	client  *http.Client
	timeout time.Duration
}

// NewChecker creates a Checker whose probes are bounded by timeout
func NewChecker(client *http.Client, timeout time.Duration) *Checker {
	if client == nil {
		client = &http.Client{}
	}
	return &Checker{client: client, timeout: timeout}
}

// IsOgImageAccessible reports whether a HEAD request for imageURL succeeds
// with a 2xx status within the probe timeout.
func (c *Checker) IsOgImageAccessible(ctx context.Context, imageURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// DiscoverOgImage fetches pageURL and returns its og:image (or twitter:image)
// resolved against the page URL.
func (c *Checker) DiscoverOgImage(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch %s: status %d", pageURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("%s is not an html page (%s)", pageURL, ct)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	var found string
	for _, sel := range []string{
		`meta[property="og:image"]`,
		`meta[property="og:image:url"]`,
		`meta[name="twitter:image"]`,
	} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			found = strings.TrimSpace(v)
			break
		}
	}
	if found == "" {
		return "", fmt.Errorf("no og:image on %s", pageURL)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return found, nil
	}
	ref, err := url.Parse(found)
	if err != nil {
		return "", fmt.Errorf("invalid og:image %q: %w", found, err)
	}
	return base.ResolveReference(ref).String(), nil
}

const userAgent = "Mozilla/5.0 (compatible; RecollectBot/1.0)"
