package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"listing-ingest/pkg/config"
)

// RenderResult holds the output of a headless-browser render.
type RenderResult struct {
	HTML       string
	Screenshot []byte // nil unless a screenshot was requested
}

// Renderer executes JavaScript and returns the settled DOM for a URL.
// Implementations must bound their own execution time using the policy's
// render wait.
type Renderer interface {
	Render(ctx context.Context, pageURL string, policy *config.FetchPolicy) (*RenderResult, error)
}

// ChromedpRenderer renders pages in headless Chrome via chromedp. Listing
// portals build their photo galleries client-side, so the raw HTML often
// carries none of the media the rendered DOM does.
type ChromedpRenderer struct {
	log *logrus.Entry
}

// NewChromedpRenderer creates a renderer.
func NewChromedpRenderer(log *logrus.Entry) *ChromedpRenderer {
	return &ChromedpRenderer{log: log}
}

// Render navigates to pageURL, waits per the policy's wait-until mode, and
// captures the outer HTML plus an optional full-page screenshot.
func (r *ChromedpRenderer) Render(parentCtx context.Context, pageURL string, policy *config.FetchPolicy) (*RenderResult, error) {
	wait := policy.RenderWait
	if wait <= 0 {
		wait = 8 * time.Second
	}
	ctx, cancel := context.WithTimeout(parentCtx, wait+5*time.Second)
	defer cancel()

	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	}
	if ua := strings.TrimSpace(policy.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	defer allocCancel()

	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)
	defer chromeCancel()

	renderLog := r.log.WithFields(logrus.Fields{
		"url": pageURL, "wait_until": policy.RenderWaitUntil, "wait": wait,
	})
	start := time.Now()

	actions := []chromedp.Action{chromedp.Navigate(pageURL)}
	actions = append(actions, r.waitActions(policy, wait)...)

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	var screenshot []byte
	if policy.SaveScreenshot {
		actions = append(actions, chromedp.FullScreenshot(&screenshot, 90))
	}

	renderLog.Debug("Starting headless render")
	if err := chromedp.Run(chromeCtx, actions...); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	renderLog.WithFields(logrus.Fields{
		"latency": time.Since(start), "html_bytes": len(html),
	}).Debug("Render complete")

	return &RenderResult{HTML: html, Screenshot: screenshot}, nil
}

// waitActions builds the settle strategy for the configured wait-until mode.
// "networkidle" is approximated: document complete plus a settle fraction of
// the render wait for late XHR-driven gallery loads.
func (r *ChromedpRenderer) waitActions(policy *config.FetchPolicy, wait time.Duration) []chromedp.Action {
	var actions []chromedp.Action
	switch policy.RenderWaitUntil {
	case "domcontentloaded":
		actions = append(actions, waitForReadyState("interactive"))
	case "load":
		actions = append(actions, waitForReadyState("complete"))
	default: // networkidle
		settle := wait / 4
		if settle > 2*time.Second {
			settle = 2 * time.Second
		}
		actions = append(actions, waitForReadyState("complete"), chromedp.Sleep(settle))
	}
	if sel := strings.TrimSpace(policy.RenderSelector); sel != "" {
		actions = append(actions, chromedp.WaitReady(sel, chromedp.ByQuery))
	}
	return actions
}

// waitForReadyState polls document.readyState until it reaches at least the
// given state or the context expires.
func waitForReadyState(target string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			var readyState string
			if err := chromedp.Evaluate(`document.readyState`, &readyState).Do(ctx); err != nil {
				return err
			}
			if readyState == "complete" || readyState == target {
				return nil
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
}
