package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mnemo-mcp/mnemo/internal/memory"
)

// MemoryContextTool handles the memory_context MCP tool.
type MemoryContextTool struct {
	store *memory.Store
}

// NewMemoryContextTool creates a MemoryContextTool.
func NewMemoryContextTool(store *memory.Store) *MemoryContextTool {
	return &MemoryContextTool{store: store}
}

// Definition returns the MCP tool definition for memory_context.
func (t *MemoryContextTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_context",
		mcp.WithDescription(
			"Get a briefing from memory: recent corrections, merged preferences, "+
				"recurring patterns and recent experiences. Call this at the start of "+
				"a session to pick up where previous sessions left off.",
		),
		mcp.WithString("project",
			mcp.Description("Focus the briefing on this project (omit for all)"),
		),
	)
}

// Handle processes the memory_context tool call.
func (t *MemoryContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")

	briefing, err := t.store.FormatBriefing(project)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build briefing: %v", err)), nil
	}

	if briefing == "" {
		return mcp.NewToolResultText("No memories recorded yet. Start with record_experience and learn_preference."), nil
	}

	return mcp.NewToolResultText(briefing), nil
}
