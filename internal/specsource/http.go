package specsource

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const (
	maxPageBytes     = 5 << 20
	defaultUserAgent = "stepwright/1.0"
)

// HTTPSource fetches an issue tracker page and extracts its readable text.
// URLTemplate holds an "{id}" placeholder for the reference.
type HTTPSource struct {
	URLTemplate string
	Client      *http.Client
	UserAgent   string
	MaxRetries  uint64
}

func NewHTTPSource(urlTemplate string) *HTTPSource {
	return &HTTPSource{
		URLTemplate: urlTemplate,
		Client:      &http.Client{Timeout: 30 * time.Second},
		UserAgent:   defaultUserAgent,
		MaxRetries:  3,
	}
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) URL(ref string) string {
	if !strings.Contains(s.URLTemplate, "{id}") {
		return strings.TrimRight(s.URLTemplate, "/") + "/" + url.PathEscape(ref)
	}
	return strings.ReplaceAll(s.URLTemplate, "{id}", url.PathEscape(ref))
}

func (s *HTTPSource) Fetch(ctx context.Context, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("issue reference is required")
	}
	target := s.URL(ref)
	parsedURL, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	var body []byte
	op := func() error {
		b, err := s.get(ctx, target)
		if err != nil {
			return err
		}
		body = b
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.MaxRetries), ctx)
	notify := func(err error, d time.Duration) {
		log.Printf("[Source] fetch %s failed: %v; retrying in %s", target, err, d)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return "", err
	}

	return nonEmpty(extractText(body, parsedURL), target)
}

func (s *HTTPSource) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("failed to fetch URL: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("failed to fetch URL: status code %d", resp.StatusCode))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

// extractText prefers the readable article body and falls back to the
// page's plain text when readability finds nothing.
func extractText(page []byte, pageURL *url.URL) string {
	if article, err := readability.FromReader(bytes.NewReader(page), pageURL); err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return html.UnescapeString(bluemonday.StrictPolicy().Sanitize(text))
		}
	}
	return html.UnescapeString(bluemonday.StrictPolicy().Sanitize(string(page)))
}
