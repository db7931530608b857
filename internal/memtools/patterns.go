package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mnemo-mcp/mnemo/internal/memory"
)

// GetPatternsTool handles the get_patterns MCP tool.
type GetPatternsTool struct {
	store *memory.Store
}

// NewGetPatternsTool creates a GetPatternsTool with the given memory store.
func NewGetPatternsTool(store *memory.Store) *GetPatternsTool {
	return &GetPatternsTool{store: store}
}

// Definition returns the MCP tool definition for get_patterns.
func (t *GetPatternsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_patterns",
		mcp.WithDescription(
			"List recurring patterns observed across corrections and experiences, "+
				"most frequent first. High-frequency patterns are habits worth fixing "+
				"or exploiting; check them before starting similar work.",
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum patterns to return (default: 10)"),
		),
	)
}

// Handle processes the get_patterns tool call.
func (t *GetPatternsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(req, "limit", 10)

	patterns, err := t.store.TopPatterns(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load patterns: %v", err)), nil
	}

	if len(patterns) == 0 {
		return mcp.NewToolResultText("No patterns detected yet. Patterns accumulate from record_correction calls."), nil
	}

	var b strings.Builder
	b.WriteString("## Recurring Patterns\n\n")

	for i, p := range patterns {
		fmt.Fprintf(&b, "%d. %s (%dx", i+1, p.Description, p.Frequency)
		if p.Category != "" {
			fmt.Fprintf(&b, ", %s", p.Category)
		}
		b.WriteString(")\n")
		if len(p.Examples) > 0 {
			fmt.Fprintf(&b, "   e.g. %q\n", p.Examples[len(p.Examples)-1])
		}
		fmt.Fprintf(&b, "   first seen %s, last seen %s\n", p.FirstSeen, p.LastSeen)
	}

	return mcp.NewToolResultText(b.String()), nil
}
