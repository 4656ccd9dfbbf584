package config

import "time"

// FetchPolicy controls how the HTML fetcher behaves with respect to
// networking, robots.txt, rendering, caching, and error handling. It is
// immutable per call and threaded explicitly through the pipeline; nothing is
// read from the environment.
type FetchPolicy struct {
	AllowNetwork  bool          `yaml:"allow_network"`  // offline-first: default false
	AllowNon200   bool          `yaml:"allow_non_200"`  // keep snapshots for HTTP >= 400
	RespectRobots bool          `yaml:"respect_robots"` // check robots.txt before the page GET
	Timeout       time.Duration `yaml:"timeout"`
	UserAgent     string        `yaml:"user_agent"`
	CacheDir      string        `yaml:"cache_dir"`

	RenderJS        bool          `yaml:"render_js"` // headless render via chromium
	RenderWait      time.Duration `yaml:"render_wait"`
	RenderWaitUntil string        `yaml:"render_wait_until"` // load | domcontentloaded | networkidle
	RenderSelector  string        `yaml:"render_selector,omitempty"`
	SaveScreenshot  bool          `yaml:"save_screenshot"`

	StrictDOM   bool   `yaml:"strict_dom"`
	CaptchaMode string `yaml:"captcha_mode"` // strict | soft | off
	// Minimum visible-text length for rendered output to count as real
	// content rather than a challenge interstitial.
	MinBodyText int `yaml:"min_body_text"`
}

// MediaConfig holds the selection and quality gates for the media downloader.
type MediaConfig struct {
	MaxItems           int           `yaml:"max_items"`
	NumWorkers         int           `yaml:"num_workers"`
	MaxRequestsPerHost int           `yaml:"max_requests_per_host"`
	DelayPerHost       time.Duration `yaml:"delay_per_host"`

	AllowedKinds []string `yaml:"allowed_kinds,omitempty"` // empty = image, video, floorplan, document

	// Pre-request gates applied to finder hints.
	MinWidthHint  int   `yaml:"min_width_hint"`
	MinHeightHint int   `yaml:"min_height_hint"`
	MinBytesHint  int64 `yaml:"min_bytes_hint"`

	// Post-download gates.
	MinBytes       int64   `yaml:"min_bytes"` // byte floor; smaller files are deleted
	MinWidth       int     `yaml:"min_width"`
	MinHeight      int     `yaml:"min_height"`
	MinArea        int     `yaml:"min_area,omitempty"` // 0 = min_width * min_height
	MaxAspectRatio float64 `yaml:"max_aspect_ratio"`

	// Per-file download cap; 0 disables the cap.
	MaxFileBytes int64 `yaml:"max_file_bytes,omitempty"`

	SemaphoreAcquireTimeout time.Duration `yaml:"semaphore_acquire_timeout"`

	EnableIntelligence bool `yaml:"enable_intelligence"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"`
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"`
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"` // pointer for tri-state: nil=default
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// AppConfig is the root configuration for the CLI and MCP server.
type AppConfig struct {
	LogLevel string `yaml:"log_level,omitempty"`
	// StateDir hosts the Badger asset index; empty disables the index.
	StateDir string `yaml:"state_dir,omitempty"`
	// DBGCInterval paces the asset index value-log GC; 0 uses the store default.
	DBGCInterval       time.Duration    `yaml:"db_gc_interval,omitempty"`
	Policy             FetchPolicy      `yaml:"policy"`
	Media              MediaConfig      `yaml:"media"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// DefaultPolicy returns the offline-first fetch policy. Unmarshal YAML on top
// of it so omitted keys keep their defaults.
func DefaultPolicy() FetchPolicy {
	return FetchPolicy{
		AllowNetwork:    false,
		AllowNon200:     false,
		RespectRobots:   true,
		Timeout:         15 * time.Second,
		UserAgent:       "listing-ingest/0.2 (+deterministic-ingest)",
		CacheDir:        "data/cache",
		RenderJS:        false,
		RenderWait:      8 * time.Second,
		RenderWaitUntil: "networkidle",
		SaveScreenshot:  false,
		StrictDOM:       false,
		CaptchaMode:     "soft",
		MinBodyText:     400,
	}
}

// DefaultMedia returns the downloader defaults tuned for listing photo sets.
func DefaultMedia() MediaConfig {
	return MediaConfig{
		MaxItems:                64,
		NumWorkers:              4,
		MaxRequestsPerHost:      2,
		DelayPerHost:            250 * time.Millisecond,
		MinWidthHint:            150,
		MinHeightHint:           150,
		MinBytes:                1024,
		MinWidth:                150,
		MinHeight:               150,
		MaxAspectRatio:          4.0,
		SemaphoreAcquireTimeout: 30 * time.Second,
		EnableIntelligence:      false,
	}
}

// Default returns a complete AppConfig with every knob at its default value.
func Default() AppConfig {
	return AppConfig{
		LogLevel:     "info",
		DBGCInterval: 10 * time.Minute,
		Policy:       DefaultPolicy(),
		Media:        DefaultMedia(),
		HTTPClientSettings: HTTPClientConfig{
			Timeout:             30 * time.Second,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			DialerTimeout:       10 * time.Second,
			DialerKeepAlive:     30 * time.Second,
		},
	}
}

// EffectiveMinArea resolves the post-filter minimum pixel area.
func (m MediaConfig) EffectiveMinArea() int {
	if m.MinArea > 0 {
		return m.MinArea
	}
	return m.MinWidth * m.MinHeight
}

// EffectiveMaxAspect resolves the post-filter aspect ratio cap.
func (m MediaConfig) EffectiveMaxAspect() float64 {
	if m.MaxAspectRatio < 1.0 {
		return 4.0
	}
	return m.MaxAspectRatio
}
