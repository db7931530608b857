package memtools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mnemo-mcp/mnemo/internal/memory"
)

// MemoryStatsTool handles the memory_stats MCP tool.
type MemoryStatsTool struct {
	store *memory.Store
}

// NewMemoryStatsTool creates a MemoryStatsTool with the given memory store.
func NewMemoryStatsTool(store *memory.Store) *MemoryStatsTool {
	return &MemoryStatsTool{store: store}
}

// Definition returns the MCP tool definition for memory_stats.
func (t *MemoryStatsTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_stats",
		mcp.WithDescription(
			"Show memory statistics: active and soft-deleted experiences, corrections, "+
				"preferences per scope, patterns, and the projects represented.",
		),
	)
}

// Handle processes the memory_stats tool call.
func (t *MemoryStatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.store.GetStats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("## Memory Statistics\n\n")
	sb.WriteString(fmt.Sprintf("- **Active experiences**: %d\n", stats.ActiveExperiences))
	sb.WriteString(fmt.Sprintf("- **Corrections**: %d\n", stats.Corrections))
	sb.WriteString(fmt.Sprintf("- **Soft-deleted**: %d\n", stats.SoftDeleted))
	sb.WriteString(fmt.Sprintf("- **Global preferences**: %d\n", stats.GlobalPreferences))
	sb.WriteString(fmt.Sprintf("- **Project preferences**: %d\n", stats.ProjectPreferences))
	sb.WriteString(fmt.Sprintf("- **Patterns**: %d\n", stats.Patterns))

	if len(stats.ByType) > 0 {
		types := make([]string, 0, len(stats.ByType))
		for typ := range stats.ByType {
			types = append(types, typ)
		}
		sort.Strings(types)

		parts := make([]string, 0, len(types))
		for _, typ := range types {
			parts = append(parts, fmt.Sprintf("%s %d", typ, stats.ByType[typ]))
		}
		sb.WriteString(fmt.Sprintf("- **By type**: %s\n", strings.Join(parts, ", ")))
	}

	if len(stats.Projects) > 0 {
		sb.WriteString(fmt.Sprintf("- **Projects** (%d): %s\n", len(stats.Projects), strings.Join(stats.Projects, ", ")))
	} else {
		sb.WriteString("- **Projects**: none\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}
