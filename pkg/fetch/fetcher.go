package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"listing-ingest/pkg/utils"
)

// Fetcher issues single-attempt HTTP GETs through the shared client. There is
// deliberately no retry loop: failures surface immediately and the caller
// decides whether a different policy would help.
type Fetcher struct {
	client *http.Client
	log    *logrus.Logger
}

// NewFetcher creates a Fetcher backed by the given client.
func NewFetcher(client *http.Client, log *logrus.Logger) *Fetcher {
	return &Fetcher{client: client, log: log}
}

// Get performs one GET with the policy's user agent and per-request timeout.
// Transport failures are wrapped with the network sentinel; any HTTP status is
// returned as a response for the caller to interpret. The caller must close
// the body.
func (f *Fetcher) Get(ctx context.Context, url, userAgent string, timeout time.Duration, referer string) (*http.Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		// The response body outlives this function; tie cancellation to it.
		resp, err := f.get(ctx, url, userAgent, referer)
		if err != nil {
			cancel()
			return nil, err
		}
		resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	return f.get(ctx, url, userAgent, referer)
}

func (f *Fetcher) get(ctx context.Context, url, userAgent, referer string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", utils.ErrRequestCreation, url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	f.log.WithFields(logrus.Fields{"url": url}).Debug("GET")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", utils.ErrNetwork, url, err)
	}
	f.log.WithFields(logrus.Fields{"url": url, "status": resp.StatusCode}).Debug("GET done")
	return resp, nil
}

// cancelReadCloser releases the request timeout context once the body is
// closed.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
