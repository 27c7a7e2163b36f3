package mcp_test

import (
	"context"
	"testing"

	"github.com/huangsam/rewatch/internal/contract"
	mcp_internal "github.com/huangsam/rewatch/internal/mcp"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPServerHandlers_ValidationErrors(t *testing.T) {
	baseCfg := &contract.Config{
		EventsPath: "events.csv",
		Horizons:   []int{1, 7, 30},
	}

	// Create a dummy manager, though we shouldn't hit it because we test validation errors
	var mgr contract.CacheManager
	s := mcp_internal.NewMCPServer(baseCfg, mgr)

	ctx := context.Background()

	t.Run("compare_windows missing windows", func(t *testing.T) {
		tool := s.GetTool("compare_windows")
		require.NotNil(t, tool, "Tool compare_windows should exist")

		req := mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name: "compare_windows",
				Arguments: map[string]any{
					"base_window": "", // Missing required
				},
			},
		}

		res, err := tool.Handler(ctx, req)
		require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
		assert.True(t, res.IsError, "The response should indicate an error state")
		assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "base_window and target_window are required")
	})

	t.Run("compare_windows malformed window", func(t *testing.T) {
		tool := s.GetTool("compare_windows")
		require.NotNil(t, tool)

		req := mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name: "compare_windows",
				Arguments: map[string]any{
					"base_window":   "2025-01-01", // Missing '..' separator
					"target_window": "2025-02-01..2025-02-28",
				},
			},
		}

		res, err := tool.Handler(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.IsError, "The response should indicate an error state")
		assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "invalid base_window")
	})

	t.Run("run_pipeline invalid gap", func(t *testing.T) {
		tool := s.GetTool("run_pipeline")
		require.NotNil(t, tool, "Tool run_pipeline should exist")

		req := mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name: "run_pipeline",
				Arguments: map[string]any{
					"gap": "not_a_duration", // Invalid
				},
			},
		}

		res, err := tool.Handler(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.IsError, "The response should indicate an error state")
		assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "invalid gap")
	})

	t.Run("get_retention invalid horizons", func(t *testing.T) {
		tool := s.GetTool("get_retention")
		require.NotNil(t, tool, "Tool get_retention should exist")

		req := mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name: "get_retention",
				Arguments: map[string]any{
					"horizons": "1,abc,30", // Invalid
				},
			},
		}

		res, err := tool.Handler(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.IsError, "The response should indicate an error state")
		assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "invalid horizons")
	})

	t.Run("get_sessions missing events path", func(t *testing.T) {
		noEventsCfg := &contract.Config{Horizons: []int{1}}
		s2 := mcp_internal.NewMCPServer(noEventsCfg, mgr)

		tool := s2.GetTool("get_sessions")
		require.NotNil(t, tool, "Tool get_sessions should exist")

		req := mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name:      "get_sessions",
				Arguments: map[string]any{},
			},
		}

		res, err := tool.Handler(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.IsError, "The response should indicate an error state")
		assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "events_path is required")
	})
}

func TestMCPServerToolRegistration(t *testing.T) {
	baseCfg := &contract.Config{EventsPath: "events.csv"}
	var mgr contract.CacheManager
	s := mcp_internal.NewMCPServer(baseCfg, mgr)

	for _, name := range []string{"run_pipeline", "get_retention", "get_sessions", "get_churn", "get_creators", "compare_windows"} {
		assert.NotNil(t, s.GetTool(name), "Tool %s should be registered", name)
	}
}
