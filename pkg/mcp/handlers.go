package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"listing-ingest/pkg/ingest"
)

// handleFetchPage handles the fetch_page tool
func (s *Server) handleFetchPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urlStr := request.GetString("url", "")
	if urlStr == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	if _, err := url.ParseRequestURI(urlStr); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid URL: %v", err)), nil
	}

	// Per-call policy overrides on a copy; the configured policy is shared.
	policy := s.cfg.AppConfig.Policy
	policy.AllowNetwork = request.GetBool("allow_network", policy.AllowNetwork)
	policy.RenderJS = request.GetBool("render_js", policy.RenderJS)

	start := time.Now()
	snap, err := s.cfg.Pipeline.Fetch(ctx, urlStr, &policy)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch failed: %v", err)), nil
	}

	result := map[string]interface{}{
		"url":               snap.URL,
		"status_code":       snap.StatusCode,
		"mode":              string(snap.Mode),
		"html_path":         snap.HTMLPath,
		"tree_path":         snap.TreePath,
		"bytes_size":        snap.BytesSize,
		"sha256":            snap.SHA256,
		"captcha_suspected": snap.CaptchaSuspected,
		"fetched_at":        snap.FetchedAt.Format(time.RFC3339),
		"elapsed_ms":        time.Since(start).Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleIngestListing handles the ingest_listing tool
func (s *Server) handleIngestListing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urlStr := request.GetString("url", "")
	filePath := request.GetString("file", "")
	if (urlStr == "") == (filePath == "") {
		return mcp.NewToolResultError("exactly one of url and file is required"), nil
	}
	if urlStr != "" {
		if _, err := url.ParseRequestURI(urlStr); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid URL: %v", err)), nil
		}
	}

	opts := ingest.Options{
		URL:           urlStr,
		FilePath:      filePath,
		BaseURL:       request.GetString("base_url", ""),
		DownloadMedia: request.GetBool("download_media", true),
	}
	if _, present := request.GetArguments()["enable_intelligence"]; present {
		enable := request.GetBool("enable_intelligence", false)
		opts.EnableIntelligence = &enable
	}

	source := urlStr
	if source == "" {
		source = filePath
	}
	job, created := s.jobManager.CreateJob(source)
	if !created {
		result := map[string]interface{}{
			"job_id":  job.ID,
			"status":  string(job.Status),
			"message": "ingest already in progress for this source",
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	go s.runIngestJob(job.ID, opts)

	result := map[string]interface{}{
		"job_id":  job.ID,
		"source":  source,
		"status":  string(JobStatusPending),
		"message": "ingest started, poll job_status with the job_id",
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runIngestJob executes an ingest in the background and records the outcome
func (s *Server) runIngestJob(jobID string, opts ingest.Options) {
	jobCtx := s.jobManager.GetContext(jobID)
	s.jobManager.UpdateStatus(jobID, JobStatusRunning, "")
	source := opts.URL
	if source == "" {
		source = opts.FilePath
	}
	jobLog := s.log.WithFields(logrus.Fields{"job_id": jobID, "source": source})
	jobLog.Info("Ingest job started")

	result, err := s.cfg.Pipeline.Ingest(jobCtx, opts)
	if err != nil {
		if jobCtx.Err() != nil {
			s.jobManager.UpdateStatus(jobID, JobStatusCancelled, jobCtx.Err().Error())
		} else {
			s.jobManager.UpdateStatus(jobID, JobStatusFailed, err.Error())
		}
		jobLog.Warnf("Ingest job did not complete: %v", err)
		return
	}

	s.jobManager.SetResult(jobID, formatJSON(summarizeResult(result)), len(result.Assets))
	s.jobManager.UpdateStatus(jobID, JobStatusCompleted, "")
	jobLog.WithField("assets", len(result.Assets)).Info("Ingest job completed")
}

// handleJobStatus handles the job_status tool
func (s *Server) handleJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job not found: %s", jobID)), nil
	}

	status := map[string]interface{}{
		"job_id":      job.ID,
		"url":         job.URL,
		"status":      string(job.Status),
		"started_at":  job.StartedAt.Format(time.RFC3339),
		"asset_count": job.AssetCount,
	}
	if !job.CompletedAt.IsZero() {
		status["completed_at"] = job.CompletedAt.Format(time.RFC3339)
	}
	if job.ErrorMessage != "" {
		status["error"] = job.ErrorMessage
	}
	if job.Status == JobStatusCompleted && job.ResultJSON != "" {
		var parsed interface{}
		if err := json.Unmarshal([]byte(job.ResultJSON), &parsed); err == nil {
			status["result"] = parsed
		}
	}
	return mcp.NewToolResultText(formatJSON(status)), nil
}

// handleCancelJob handles the cancel_job tool
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	if !s.jobManager.CancelJob(jobID) {
		return mcp.NewToolResultError(fmt.Sprintf("job %s is not pending or running", jobID)), nil
	}
	result := map[string]interface{}{
		"job_id": jobID,
		"status": string(JobStatusCancelled),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// summarizeResult flattens an ingest result into a JSON-friendly shape
func summarizeResult(result *ingest.Result) map[string]interface{} {
	out := map[string]interface{}{
		"asset_count": len(result.Assets),
	}
	if result.Snapshot != nil {
		out["snapshot"] = map[string]interface{}{
			"url":               result.Snapshot.URL,
			"status_code":       result.Snapshot.StatusCode,
			"mode":              string(result.Snapshot.Mode),
			"html_path":         result.Snapshot.HTMLPath,
			"captcha_suspected": result.Snapshot.CaptchaSuspected,
		}
	}
	out["has_media"] = result.Finder.HasMedia
	if result.Finder.PhotoCountHint >= 0 {
		out["photo_count_hint"] = result.Finder.PhotoCountHint
	}

	assets := make([]map[string]interface{}, 0, len(result.Assets))
	for _, a := range result.Assets {
		assets = append(assets, map[string]interface{}{
			"local_path": a.LocalPath,
			"url":        a.URL,
			"kind":       string(a.Kind),
			"sha256":     a.SHA256,
			"bytes":      a.BytesSize,
			"width":      a.Width,
			"height":     a.Height,
		})
	}
	out["assets"] = assets

	if result.Insights != nil {
		out["insights"] = result.Insights
	}
	return out
}

// formatJSON renders a value as indented JSON for tool output
func formatJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
