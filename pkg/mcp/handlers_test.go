package mcp

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-ingest/pkg/config"
	"listing-ingest/pkg/ingest"
)

// newTestServer builds a server around a pipeline that can only serve local
// documents; no fetcher or downloader is wired.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Policy.CacheDir = t.TempDir()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	pipeline := ingest.NewPipeline(nil, nil, nil, &cfg, logger.WithField("component", "ingest"))
	srv, err := NewServer(&ServerConfig{
		AppConfig: &cfg,
		Pipeline:  pipeline,
		Logger:    logger,
	})
	require.NoError(t, err)
	return srv
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = "ingest_listing"
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "tool results carry text content")
	return text.Text
}

func TestHandleIngestListing_RequiresURLOrFile(t *testing.T) {
	srv := newTestServer(t)

	res, err := srv.handleIngestListing(context.Background(), toolRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "exactly one of url and file")

	res, err = srv.handleIngestListing(context.Background(), toolRequest(map[string]interface{}{
		"url":  "https://portal.example.com/listings/1",
		"file": "/tmp/listing.html",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "url and file together are rejected")
}

func TestHandleIngestListing_RejectsInvalidURL(t *testing.T) {
	srv := newTestServer(t)

	res, err := srv.handleIngestListing(context.Background(), toolRequest(map[string]interface{}{
		"url": "not a url",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "invalid URL")
}

func TestHandleIngestListing_LocalFile(t *testing.T) {
	srv := newTestServer(t)

	htmlPath := filepath.Join(t.TempDir(), "listing.html")
	page := `<html><head><title>2BR Flat</title></head><body><img src="/photos/a.jpg"></body></html>`
	require.NoError(t, os.WriteFile(htmlPath, []byte(page), 0o644))

	res, err := srv.handleIngestListing(context.Background(), toolRequest(map[string]interface{}{
		"file":           htmlPath,
		"base_url":       "https://portal.example.com/listings/1",
		"download_media": false,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, "local file ingest starts a job: %s", resultText(t, res))

	var started struct {
		JobID  string `json:"job_id"`
		Source string `json:"source"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &started))
	assert.NotEmpty(t, started.JobID)
	assert.Equal(t, htmlPath, started.Source)
	assert.Equal(t, string(JobStatusPending), started.Status)

	require.Eventually(t, func() bool {
		job := srv.jobManager.GetJob(started.JobID)
		return job != nil && job.Status == JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond, "background ingest of a local document completes")
}

func TestHandleIngestListing_DedupsActiveSource(t *testing.T) {
	srv := newTestServer(t)

	// A job created out of band holds the source slot; the handler must not
	// start a second goroutine for it.
	job, created := srv.jobManager.CreateJob("/data/listing.html")
	require.True(t, created)

	res, err := srv.handleIngestListing(context.Background(), toolRequest(map[string]interface{}{
		"file": "/data/listing.html",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), job.ID)
	assert.Contains(t, resultText(t, res), "already in progress")
}
