package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"recollect-worker/internal/config"
)

// Image is a rendered capture
type Image struct {
	Data        []byte
	ContentType string
}

// Client renders web pages and PDFs to images through external services
type Client struct {
	http *http.Client
	cfg  config.CaptureConfig
}

// NewClient creates a capture client
func NewClient(cfg config.CaptureConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{http: httpClient, cfg: cfg}
}

// Screenshot renders pageURL with the headless screenshot service
func (c *Client) Screenshot(ctx context.Context, pageURL string) (*Image, error) {
	if c.cfg.ScreenshotURL == "" {
		return nil, fmt.Errorf("screenshot service not configured")
	}

	endpoint, err := url.Parse(c.cfg.ScreenshotURL)
	if err != nil {
		return nil, fmt.Errorf("invalid screenshot service url: %w", err)
	}
	q := endpoint.Query()
	q.Set("url", pageURL)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build screenshot request: %w", err)
	}
	if c.cfg.ScreenshotToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.ScreenshotToken)
	}
	return c.do(req, "screenshot")
}

// PDFThumbnail renders the first page of the PDF at pdfURL
func (c *Client) PDFThumbnail(ctx context.Context, pdfURL string) (*Image, error) {
	if c.cfg.PDFURL == "" {
		return nil, fmt.Errorf("pdf thumbnail service not configured")
	}

	body, err := json.Marshal(map[string]string{"url": pdfURL})
	if err != nil {
		return nil, fmt.Errorf("failed to encode pdf request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.PDFURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build pdf request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.PDFSecretKey != "" {
		req.Header.Set("x-secret-key", c.cfg.PDFSecretKey)
	}
	return c.do(req, "pdf thumbnail")
}

func (c *Client) do(req *http.Request, what string) (*Image, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s service returned %d: %s", what, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", what, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s service returned an empty body", what)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	return &Image{Data: data, ContentType: contentType}, nil
}

// IsPDF reports whether a bookmark should be rendered as a PDF
func IsPDF(mediaType, rawURL string) bool {
	if strings.EqualFold(mediaType, "application/pdf") {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}
