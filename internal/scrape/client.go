// Package scrape fetches pages over HTTP and extracts the pieces the tasks
// consume: anchor hrefs from listing pages and normalized text for the
// annotation agent. Transient network failures are retried with exponential
// backoff before being reported to the caller.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html"
)

// ErrBadStatus is returned when the server answers with a non-2xx status.
var ErrBadStatus = errors.New("unexpected HTTP status")

const maxFetchRetries = 3

// Client fetches and parses pages. It is safe for concurrent use.
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a scrape client whose requests time out after the given
// duration.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: logger.With("component", "scrape_client"),
	}
}

// fetch retrieves the page body, retrying transient failures with
// exponential backoff. 4xx answers are permanent; 5xx and transport errors
// are retried.
func (c *Client) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build request for %s: %w", pageURL, err))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Debug("fetch attempt failed", "url", pageURL, "error", err)
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("%w: %d from %s", ErrBadStatus, resp.StatusCode, pageURL))
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("%w: %d from %s", ErrBadStatus, resp.StatusCode, pageURL)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read body of %s: %w", pageURL, err)
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchRetries)
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

// Anchors returns the href of every anchor tag on the page, resolved
// against the page URL. Anchors without an href, fragment-only links, and
// hrefs that do not resolve to http(s) are dropped.
func (c *Client) Anchors(ctx context.Context, pageURL string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL %s: %w", pageURL, err)
	}

	body, err := c.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML of %s: %w", pageURL, err)
	}

	var anchors []string
	walk(root, func(node *html.Node) {
		if node.Type != html.ElementNode || node.Data != "a" {
			return
		}
		for _, attr := range node.Attr {
			if attr.Key != "href" {
				continue
			}
			href := strings.TrimSpace(attr.Val)
			if href == "" || strings.HasPrefix(href, "#") {
				continue
			}
			resolved, err := base.Parse(href)
			if err != nil {
				continue
			}
			if resolved.Scheme != "http" && resolved.Scheme != "https" {
				continue
			}
			anchors = append(anchors, resolved.String())
		}
	})

	c.logger.Debug("anchors extracted", "url", pageURL, "count", len(anchors))
	return anchors, nil
}

// Text returns the visible text content of the page, whitespace-collapsed,
// with script and style bodies removed.
func (c *Client) Text(ctx context.Context, pageURL string) (string, error) {
	body, err := c.fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}

	root, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML of %s: %w", pageURL, err)
	}

	var builder strings.Builder
	walk(root, func(node *html.Node) {
		if node.Type != html.TextNode {
			return
		}
		if parent := node.Parent; parent != nil &&
			(parent.Data == "script" || parent.Data == "style") {
			return
		}
		text := strings.TrimSpace(node.Data)
		if text == "" {
			return
		}
		if builder.Len() > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(text)
	})

	return builder.String(), nil
}

// walk applies fn to node and every descendant in document order.
func walk(node *html.Node, fn func(*html.Node)) {
	fn(node)
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		walk(child, fn)
	}
}
