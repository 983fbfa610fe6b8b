package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inbucket/html2text"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/pkg/retry"
)

const (
	maxFetchSize        = 1 << 20
	defaultFetchTimeout = 30 * time.Second
)

// Fetcher downloads material content and converts HTML pages to text.
type Fetcher struct {
	client  *http.Client
	retrier *retry.Retrier
}

func NewFetcher(timeout time.Duration, retryCfg *retry.Config) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if retryCfg == nil {
		retryCfg = retry.NewDefaultConfig()
		retryCfg.MaxRetries = 2
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		retrier: retry.NewRetrier(retryCfg),
	}
}

// Fetch returns the text of the document at rawURL. Client errors are not
// retried.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if !IsRemoteSource(rawURL) {
		return "", fmt.Errorf("%w: unsupported source %q", core.ErrInvalidInput, rawURL)
	}

	var body string
	err := f.retrier.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return retry.Stop(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", core.TuskUserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch url: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Stop(err)
			}
			return err
		}

		limited := io.LimitReader(resp.Body, maxFetchSize)
		if isHTML(resp.Header.Get("Content-Type")) {
			body, err = html2text.FromReader(limited, html2text.Options{PrettyTables: true})
		} else {
			var raw []byte
			raw, err = io.ReadAll(limited)
			body = string(raw)
		}
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(body), nil
}

// HTMLToText converts an HTML document to plain text.
func HTMLToText(doc string) (string, error) {
	text, err := html2text.FromString(doc, html2text.Options{PrettyTables: true})
	if err != nil {
		return "", fmt.Errorf("failed to convert html: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func IsRemoteSource(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isHTML(contentType string) bool {
	return contentType == "" || strings.Contains(contentType, "html")
}
