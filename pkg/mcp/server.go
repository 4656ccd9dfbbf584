// Package mcp exposes the ingest pipeline over the Model Context Protocol so
// agent frameworks can fetch pages and run ingests as tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"listing-ingest/pkg/config"
	"listing-ingest/pkg/ingest"
)

const (
	serverName    = "listing-ingest"
	serverVersion = "0.2.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig *config.AppConfig
	Pipeline  *ingest.Pipeline
	Transport string // "stdio" or "sse"
	Port      int
	Logger    *logrus.Logger
}

// Server wraps the MCP server with the ingest tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("Pipeline is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	fetchPageTool := mcp.NewTool("fetch_page",
		mcp.WithDescription("Fetch a listing page into the deterministic cache and return snapshot metadata. Offline-first: serves cached artifacts unless networking is enabled."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The listing URL to fetch"),
		),
		mcp.WithBoolean("allow_network",
			mcp.Description("Allow a network fetch on cache miss (default: policy setting)"),
		),
		mcp.WithBoolean("render_js",
			mcp.Description("Render the page in headless Chrome (default: policy setting)"),
		),
	)
	s.mcpServer.AddTool(fetchPageTool, s.handleFetchPage)

	ingestListingTool := mcp.NewTool("ingest_listing",
		mcp.WithDescription("Start a background ingest of a listing: fetch, media discovery, downloads, and media insights. Takes a listing URL or a local HTML document. Returns immediately with a job ID."),
		mcp.WithString("url",
			mcp.Description("The listing URL to ingest (exactly one of url and file)"),
		),
		mcp.WithString("file",
			mcp.Description("Path to a local HTML document to ingest instead of a URL"),
		),
		mcp.WithString("base_url",
			mcp.Description("Base URL for resolving relative media links when file is used"),
		),
		mcp.WithBoolean("download_media",
			mcp.Description("Discover and download media (default: true)"),
		),
		mcp.WithBoolean("enable_intelligence",
			mcp.Description("Compute perceptual hashes, quality metrics, palettes, and hero ranking (default: config setting)"),
		),
	)
	s.mcpServer.AddTool(ingestListingTool, s.handleIngestListing)

	jobStatusTool := mcp.NewTool("job_status",
		mcp.WithDescription("Get the status and, once completed, the result of an ingest job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by ingest_listing"),
		),
	)
	s.mcpServer.AddTool(jobStatusTool, s.handleJobStatus)

	cancelJobTool := mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a pending or running ingest job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID to cancel"),
		),
	)
	s.mcpServer.AddTool(cancelJobTool, s.handleCancelJob)

	s.log.Infof("Registered %d MCP tools", 4)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}
