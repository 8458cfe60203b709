package judge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// PageContext carries one fetched page together with the URL it came from.
type PageContext struct {
	URL string
	Doc *goquery.Document
}

// DefaultHTTPClient returns the client used for judge-site fetches when the
// caller does not supply one.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
	}
}

// FetchPage fetches and parses the page at url.
func FetchPage(ctx context.Context, client *http.Client, url string) (*PageContext, error) {
	if client == nil {
		client = DefaultHTTPClient()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "csessync/1.0 (judge submission publisher)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return &PageContext{URL: url, Doc: doc}, nil
}

// ParsePage builds a PageContext from already-fetched markup. Used by tests
// and by callers that obtained the document some other way.
func ParsePage(url, markup string) (*PageContext, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &PageContext{URL: url, Doc: doc}, nil
}
