package config

import (
	"fmt"
	"time"

	"listing-ingest/pkg/models"
	"listing-ingest/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	pw, perr := c.Policy.validate()
	warnings = append(warnings, pw...)
	if perr != nil {
		return warnings, perr
	}

	mw, merr := c.Media.validate()
	warnings = append(warnings, mw...)
	if merr != nil {
		return warnings, merr
	}

	if c.HTTPClientSettings.Timeout <= 0 {
		c.HTTPClientSettings.Timeout = 30 * time.Second
	}
	if c.HTTPClientSettings.MaxIdleConns <= 0 {
		c.HTTPClientSettings.MaxIdleConns = 100
	}
	if c.HTTPClientSettings.MaxIdleConnsPerHost <= 0 {
		c.HTTPClientSettings.MaxIdleConnsPerHost = 4
	}

	return warnings, nil
}

func (p *FetchPolicy) validate() (warnings []string, err error) {
	if p.CacheDir == "" {
		return nil, fmt.Errorf("%w: cache_dir must not be empty", utils.ErrConfigValidation)
	}

	switch p.CaptchaMode {
	case "strict", "soft", "off":
	case "":
		warnings = append(warnings, "captcha_mode not specified, defaulting to 'soft'")
		p.CaptchaMode = "soft"
	default:
		return warnings, fmt.Errorf("%w: captcha_mode must be one of strict|soft|off, got %q", utils.ErrConfigValidation, p.CaptchaMode)
	}

	switch p.RenderWaitUntil {
	case "load", "domcontentloaded", "networkidle":
	case "":
		p.RenderWaitUntil = "networkidle"
	default:
		return warnings, fmt.Errorf("%w: render_wait_until must be one of load|domcontentloaded|networkidle, got %q", utils.ErrConfigValidation, p.RenderWaitUntil)
	}

	if p.Timeout <= 0 {
		warnings = append(warnings, "policy timeout should be > 0, defaulting to 15s")
		p.Timeout = 15 * time.Second
	}
	if p.RenderWait <= 0 {
		p.RenderWait = 8 * time.Second
	}
	if p.UserAgent == "" {
		warnings = append(warnings, "user_agent is empty, defaulting to listing-ingest UA")
		p.UserAgent = DefaultPolicy().UserAgent
	}
	if p.MinBodyText < 0 {
		return warnings, fmt.Errorf("%w: min_body_text cannot be negative", utils.ErrConfigValidation)
	}
	if p.MinBodyText == 0 {
		p.MinBodyText = 400
	}

	return warnings, nil
}

func (m *MediaConfig) validate() (warnings []string, err error) {
	if m.MaxItems <= 0 {
		warnings = append(warnings, "media max_items should be > 0, defaulting to 64")
		m.MaxItems = 64
	}
	if m.NumWorkers <= 0 {
		warnings = append(warnings, "media num_workers should be > 0, defaulting to 4")
		m.NumWorkers = 4
	}
	if m.MaxRequestsPerHost <= 0 {
		warnings = append(warnings, "media max_requests_per_host should be > 0, defaulting to 2")
		m.MaxRequestsPerHost = 2
	}
	if m.SemaphoreAcquireTimeout <= 0 {
		m.SemaphoreAcquireTimeout = 30 * time.Second
	}
	if m.MaxAspectRatio != 0 && m.MaxAspectRatio < 1.0 {
		return warnings, fmt.Errorf("%w: max_aspect_ratio must be >= 1.0, got %v", utils.ErrConfigValidation, m.MaxAspectRatio)
	}
	if m.MinBytes < 0 || m.MinBytesHint < 0 {
		return warnings, fmt.Errorf("%w: byte minimums cannot be negative", utils.ErrConfigValidation)
	}

	for _, k := range m.AllowedKinds {
		switch models.MediaKind(k) {
		case models.KindImage, models.KindVideo, models.KindFloorplan, models.KindDocument, models.KindOther:
		default:
			return warnings, fmt.Errorf("%w: unknown media kind %q in allowed_kinds", utils.ErrConfigValidation, k)
		}
	}

	return warnings, nil
}

// AllowedKindSet resolves the configured kinds into a set, applying the
// default of everything except "other".
func (m MediaConfig) AllowedKindSet() map[models.MediaKind]bool {
	set := make(map[models.MediaKind]bool, 5)
	if len(m.AllowedKinds) == 0 {
		set[models.KindImage] = true
		set[models.KindVideo] = true
		set[models.KindFloorplan] = true
		set[models.KindDocument] = true
		return set
	}
	for _, k := range m.AllowedKinds {
		set[models.MediaKind(k)] = true
	}
	return set
}
