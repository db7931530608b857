package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mnemo-mcp/mnemo/internal/memory"
)

// GetTimelineTool handles the get_timeline MCP tool.
type GetTimelineTool struct {
	store *memory.Store
}

// NewGetTimelineTool creates a GetTimelineTool.
func NewGetTimelineTool(store *memory.Store) *GetTimelineTool {
	return &GetTimelineTool{store: store}
}

// Definition returns the MCP tool definition for get_timeline.
func (t *GetTimelineTool) Definition() mcp.Tool {
	return mcp.NewTool("get_timeline",
		mcp.WithDescription(
			"Show what else happened around a specific experience: every active "+
				"experience recorded within one hour of it, oldest first. Use after "+
				"query_memory to reconstruct the sequence of events around a result.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("The experience ID to center the timeline on (from query_memory results)"),
		),
	)
}

// Handle processes the get_timeline tool call.
func (t *GetTimelineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	entries, err := t.store.Timeline(int64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("timeline failed: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No timeline available for experience #%d.", id)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Timeline around #%d (%d entries within 1 hour):\n\n", id, len(entries))

	for i, e := range entries {
		marker := "    "
		if e.IsFocus {
			marker = ">>> "
		}
		outcome := "ok"
		if !e.Success {
			outcome = "failed"
		}
		line := fmt.Sprintf("%s#%d [%s/%s] %s: %s",
			marker, e.ID, e.Type, outcome, e.CreatedAt, memory.Truncate(e.Context, 200))
		if i == len(entries)-1 {
			line += " (latest)"
		}
		b.WriteString(line + "\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}
