package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"listing-ingest/pkg/config"
	"listing-ingest/pkg/ingest"
	"listing-ingest/pkg/log"
	"listing-ingest/pkg/mcp"
)

const version = "0.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ingest":
		runIngest(os.Args[2:])
	case "fetch":
		runFetch(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("listing-ingest %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `listing-ingest - Deterministic listing page and media ingester

Usage:
  listing-ingest <command> [options]

Commands:
  ingest      Ingest a listing: fetch, media discovery, downloads, insights
  fetch       Fetch a single listing page into the cache
  validate    Validate configuration file
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'listing-ingest <command> -h' for command-specific help.`)
}

// loadConfig loads the config file on top of the built-in defaults. A missing
// -config flag (empty path) yields pure defaults.
func loadConfig(path string) (*config.AppConfig, error) {
	cfg := config.Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	return &cfg, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runIngest handles the ingest subcommand
func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (optional, defaults apply)")
	urlFlag := fs.String("url", "", "Listing URL to ingest")
	fileFlag := fs.String("file", "", "Local HTML document to ingest instead of a URL")
	baseURL := fs.String("base-url", "", "Base URL for resolving relative media links when -file is used")
	photosDir := fs.String("photos", "", "Local directory of photos to analyze")
	noMedia := fs.Bool("no-media", false, "Skip media discovery and download")
	online := fs.Bool("online", false, "Allow network fetches on cache miss")
	render := fs.Bool("render", false, "Render pages in headless Chrome")
	intelFlag := fs.Bool("intel", false, "Enable media intelligence (phash, quality, palette, hero)")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: listing-ingest ingest [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *urlFlag == "" && *fileFlag == "" {
		fmt.Fprintln(os.Stderr, "Error: one of -url or -file is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, logger := mustSetup(*configFile, *logLevel)
	if *online {
		cfg.Policy.AllowNetwork = true
	}
	if *render {
		cfg.Policy.RenderJS = true
	}
	if *intelFlag {
		cfg.Media.EnableIntelligence = true
	}

	ctx, cancel := signalContext()
	defer cancel()

	pipeline, cleanup, err := ingest.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Pipeline setup failed: %v", err)
	}
	defer cleanup()

	result, err := pipeline.Ingest(ctx, ingest.Options{
		URL:           *urlFlag,
		FilePath:      *fileFlag,
		BaseURL:       *baseURL,
		PhotosDir:     *photosDir,
		DownloadMedia: !*noMedia,
	})
	if err != nil {
		logger.Fatalf("Ingest failed: %v", err)
	}

	printJSON(os.Stdout, ingestOutput(result))
}

// runFetch handles the fetch subcommand
func runFetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (optional, defaults apply)")
	urlFlag := fs.String("url", "", "URL to fetch")
	online := fs.Bool("online", false, "Allow network fetches on cache miss")
	render := fs.Bool("render", false, "Render the page in headless Chrome")
	noRobots := fs.Bool("no-robots", false, "Skip the robots.txt check")
	screenshot := fs.Bool("screenshot", false, "Save a full-page screenshot when rendering")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: listing-ingest fetch [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *urlFlag == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, logger := mustSetup(*configFile, *logLevel)
	if *online {
		cfg.Policy.AllowNetwork = true
	}
	if *render {
		cfg.Policy.RenderJS = true
	}
	if *noRobots {
		cfg.Policy.RespectRobots = false
	}
	if *screenshot {
		cfg.Policy.SaveScreenshot = true
	}

	ctx, cancel := signalContext()
	defer cancel()

	pipeline, cleanup, err := ingest.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Pipeline setup failed: %v", err)
	}
	defer cleanup()

	snap, err := pipeline.Fetch(ctx, *urlFlag, &cfg.Policy)
	if err != nil {
		logger.Fatalf("Fetch failed: %v", err)
	}

	fmt.Println(snap.HTMLPath)
	if snap.TreePath != "" {
		fmt.Println(snap.TreePath)
	}
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: listing-ingest validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to the provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "Configuration is valid.")
	return 0
}

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (optional, defaults apply)")
	transport := fs.String("transport", "stdio", "Transport: stdio or sse")
	port := fs.Int("port", 8811, "Port for SSE transport")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: listing-ingest mcp-server [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, logger := mustSetup(*configFile, *logLevel)

	ctx, cancel := signalContext()
	defer cancel()

	pipeline, cleanup, err := ingest.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Pipeline setup failed: %v", err)
	}
	defer cleanup()

	srv, err := mcp.NewServer(&mcp.ServerConfig{
		AppConfig: cfg,
		Pipeline:  pipeline,
		Transport: *transport,
		Port:      *port,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatalf("MCP server setup failed: %v", err)
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	if err := srv.Run(); err != nil {
		logger.Fatalf("MCP server exited: %v", err)
	}
}

// mustSetup loads and validates config, then builds the logger. Exits on
// error.
func mustSetup(configPath, logLevel string) (*config.AppConfig, *logrus.Logger) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := log.New(cfg.LogLevel)

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		logger.Warn(w)
	}
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	return cfg, logger
}

// ingestOutput shapes an ingest result for JSON output.
func ingestOutput(result *ingest.Result) map[string]interface{} {
	out := map[string]interface{}{
		"asset_count": len(result.Assets),
		"has_media":   result.Finder.HasMedia,
	}
	if result.Snapshot != nil {
		out["snapshot"] = map[string]interface{}{
			"url":               result.Snapshot.URL,
			"status_code":       result.Snapshot.StatusCode,
			"mode":              string(result.Snapshot.Mode),
			"html_path":         result.Snapshot.HTMLPath,
			"tree_path":         result.Snapshot.TreePath,
			"captcha_suspected": result.Snapshot.CaptchaSuspected,
		}
	}
	if result.Finder.PhotoCountHint >= 0 {
		out["photo_count_hint"] = result.Finder.PhotoCountHint
	}
	out["assets"] = result.Assets
	if result.Insights != nil {
		out["insights"] = result.Insights
	}
	return out
}

func printJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
	}
}
