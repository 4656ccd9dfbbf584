package fetch

import (
	"context"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsHandler fetches, parses, and caches robots.txt data per host. Any
// failure to obtain rules (network error, 4xx, unparsable body) is treated as
// allow-all, so robots checks never block a listing on infrastructure faults.
type RobotsHandler struct {
	fetcher   *Fetcher
	userAgent string
	timeout   time.Duration
	cache     map[string]*robotstxt.RobotsData // hostname -> parsed data, nil on failure
	cacheMu   sync.Mutex
	log       *logrus.Entry
}

// NewRobotsHandler creates a RobotsHandler using the given fetcher and agent.
func NewRobotsHandler(fetcher *Fetcher, userAgent string, timeout time.Duration, log *logrus.Entry) *RobotsHandler {
	return &RobotsHandler{
		fetcher:   fetcher,
		userAgent: userAgent,
		timeout:   timeout,
		cache:     make(map[string]*robotstxt.RobotsData),
		log:       log,
	}
}

// Allowed reports whether the configured user agent may fetch targetURL.
// Returns true when no robots data could be obtained.
func (rh *RobotsHandler) Allowed(ctx context.Context, targetURL *url.URL) bool {
	data := rh.robotsData(ctx, targetURL)
	if data == nil {
		return true
	}
	return data.TestAgent(targetURL.RequestURI(), rh.userAgent)
}

// robotsData returns parsed robots.txt rules for the host, fetching on a
// cache miss. The result (including nil for failures) is cached per host.
func (rh *RobotsHandler) robotsData(ctx context.Context, targetURL *url.URL) *robotstxt.RobotsData {
	host := targetURL.Hostname()

	rh.cacheMu.Lock()
	data, found := rh.cache[host]
	rh.cacheMu.Unlock()
	if found {
		return data
	}

	robotsURL := &url.URL{Scheme: targetURL.Scheme, Host: targetURL.Host, Path: "/robots.txt"}
	if robotsURL.Scheme != "http" && robotsURL.Scheme != "https" {
		robotsURL.Scheme = "https"
	}
	robotsLog := rh.log.WithFields(logrus.Fields{"host": host, "robots_url": robotsURL.String()})
	robotsLog.Debug("Fetching robots.txt")

	data = rh.fetchAndParse(ctx, robotsURL.String(), robotsLog)

	rh.cacheMu.Lock()
	rh.cache[host] = data
	rh.cacheMu.Unlock()
	return data
}

func (rh *RobotsHandler) fetchAndParse(ctx context.Context, robotsURL string, robotsLog *logrus.Entry) *robotstxt.RobotsData {
	resp, err := rh.fetcher.Get(ctx, robotsURL, rh.userAgent, rh.timeout, "")
	if err != nil {
		robotsLog.Warnf("Fetching robots.txt failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		robotsLog.WithField("status", resp.StatusCode).Debug("robots.txt unavailable, assuming allow")
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		robotsLog.Warnf("Error reading robots.txt body: %v", err)
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		robotsLog.Warnf("Error parsing robots.txt: %v", err)
		return nil
	}
	robotsLog.Debug("Parsed robots.txt")
	return data
}
