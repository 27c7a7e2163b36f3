package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huangsam/rewatch/core"
	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
}

// cloneWithOverrides applies the shared tool arguments onto a config copy.
func (h *toolHandler) cloneWithOverrides(request mcp.CallToolRequest) (*contract.Config, error) {
	cfg := h.baseCfg.Clone()

	if p := request.GetString("events_path", ""); p != "" {
		cfg.EventsPath = p
	}
	if cfg.EventsPath == "" {
		return nil, fmt.Errorf("events_path is required when the server has no configured events file")
	}

	if g := request.GetString("gap", ""); g != "" {
		gap, err := contract.ParseLookbackDuration(g)
		if err != nil {
			return nil, fmt.Errorf("invalid gap: %w", err)
		}
		cfg.InactivityGap = gap
	}

	if hs := request.GetString("horizons", ""); hs != "" {
		horizons, err := contract.ParseHorizons(hs)
		if err != nil {
			return nil, fmt.Errorf("invalid horizons: %w", err)
		}
		cfg.Horizons = horizons
	}

	if l := request.GetInt("limit", 0); l > 0 {
		cfg.ResultLimit = l
	}

	return cfg, nil
}

func (h *toolHandler) handleRunPipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.cloneWithOverrides(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid pipeline parameters: %v", err)), nil
	}

	output, _, err := core.GetRunResults(core.WithSuppressHeader(ctx), cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("pipeline failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(output, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetRetention(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.cloneWithOverrides(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid retention parameters: %v", err)), nil
	}

	report, _, err := core.GetKPIReport(core.WithSuppressHeader(ctx), cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("retention analysis failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(report, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.cloneWithOverrides(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid session parameters: %v", err)), nil
	}

	sessions, _, err := core.GetSessionResults(core.WithSuppressHeader(ctx), cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sessionization failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(sessions, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetChurn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.cloneWithOverrides(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid churn parameters: %v", err)), nil
	}

	churnOut, _, err := core.GetChurnResults(core.WithSuppressHeader(ctx), cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("churn modeling failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(churnOut, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetCreators(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.cloneWithOverrides(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid creator parameters: %v", err)), nil
	}
	if n := request.GetInt("top_n", 0); n > 0 {
		cfg.TopCreators = n
	}

	report, _, err := core.GetKPIReport(core.WithSuppressHeader(ctx), cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("creator analysis failed: %v", err)), nil
	}

	result := struct {
		Creators        []schema.CreatorShare `json:"creators"`
		TopN            int                   `json:"top_n"`
		TopCreatorShare schema.Metric         `json:"top_creator_share"`
	}{
		Creators:        report.Creators,
		TopN:            report.TopN,
		TopCreatorShare: report.TopCreatorShare,
	}

	jsonData, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleCompareWindows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.cloneWithOverrides(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid comparison parameters: %v", err)), nil
	}

	baseStr := request.GetString("base_window", "")
	targetStr := request.GetString("target_window", "")
	if baseStr == "" || targetStr == "" {
		return mcp.NewToolResultError("invalid comparison parameters: base_window and target_window are required"), nil
	}

	cfg.BaseStart, cfg.BaseEnd, err = contract.ParseDateWindow(baseStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid base_window: %v", err)), nil
	}
	cfg.TargetStart, cfg.TargetEnd, err = contract.ParseDateWindow(targetStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid target_window: %v", err)), nil
	}
	cfg.CompareMode = true

	comparisonResult, _, err := core.GetCompareResults(core.WithSuppressHeader(ctx), cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("comparison failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(comparisonResult, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
