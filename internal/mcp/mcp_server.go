// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the Rewatch MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Rewatch Analytics Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
	}

	// --- 1. Tool: run_pipeline ---
	s.AddTool(mcp.NewTool("run_pipeline",
		mcp.WithDescription("Run the full watch-analytics pipeline over an event log and return the run report."),
		mcp.WithString("events_path", mcp.Description("Path to the watch-event log (csv or parquet). Defaults to the server's configured events file.")),
		mcp.WithString("gap", mcp.Description("Inactivity gap that splits sessions (e.g. '30 minutes').")),
		mcp.WithString("horizons", mcp.Description("Comma-separated retention horizons in days (e.g. '1,7,30').")),
	), h.handleRunPipeline)

	// --- 2. Tool: get_retention ---
	s.AddTool(mcp.NewTool("get_retention",
		mcp.WithDescription("Compute cohort retention and engagement KPIs for an event log."),
		mcp.WithString("events_path", mcp.Description("Path to the watch-event log.")),
		mcp.WithString("horizons", mcp.Description("Comma-separated retention horizons in days.")),
	), h.handleGetRetention)

	// --- 3. Tool: get_sessions ---
	s.AddTool(mcp.NewTool("get_sessions",
		mcp.WithDescription("Return the top viewing sessions ranked by total watch time."),
		mcp.WithString("events_path", mcp.Description("Path to the watch-event log.")),
		mcp.WithString("gap", mcp.Description("Inactivity gap that splits sessions (e.g. '30 minutes').")),
		mcp.WithNumber("limit", mcp.Description("Limit the number of results returned.")),
	), h.handleGetSessions)

	// --- 4. Tool: get_churn ---
	s.AddTool(mcp.NewTool("get_churn",
		mcp.WithDescription("Train the churn model and return per-horizon model quality plus the riskiest viewers."),
		mcp.WithString("events_path", mcp.Description("Path to the watch-event log.")),
		mcp.WithString("horizons", mcp.Description("Comma-separated churn horizons in days.")),
		mcp.WithNumber("limit", mcp.Description("Limit the number of scored viewers returned.")),
	), h.handleGetChurn)

	// --- 5. Tool: get_creators ---
	s.AddTool(mcp.NewTool("get_creators",
		mcp.WithDescription("Return the creator watch-share leaderboard and the cumulative share of the top-N creators."),
		mcp.WithString("events_path", mcp.Description("Path to the watch-event log.")),
		mcp.WithNumber("top_n", mcp.Description("How many top creators count toward the cumulative share.")),
	), h.handleGetCreators)

	// --- 6. Tool: compare_windows ---
	s.AddTool(mcp.NewTool("compare_windows",
		mcp.WithDescription("Compare engagement KPIs between two time windows of the same event log."),
		mcp.WithString("base_window", mcp.Description("Base window as 'start..end' dates (e.g. '2025-01-01..2025-01-31')."), mcp.Required()),
		mcp.WithString("target_window", mcp.Description("Target window as 'start..end' dates."), mcp.Required()),
		mcp.WithString("events_path", mcp.Description("Path to the watch-event log.")),
	), h.handleCompareWindows)

	return s
}

// StartMCPServer starts the Rewatch MCP server.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}
