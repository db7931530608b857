package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mnemo-mcp/mnemo/internal/memory"
)

// GetRelatedTool handles the get_related MCP tool.
type GetRelatedTool struct {
	store *memory.Store
}

// NewGetRelatedTool creates a GetRelatedTool with the given memory store.
func NewGetRelatedTool(store *memory.Store) *GetRelatedTool {
	return &GetRelatedTool{store: store}
}

// Definition returns the MCP tool definition for get_related.
func (t *GetRelatedTool) Definition() mcp.Tool {
	return mcp.NewTool("get_related",
		mcp.WithDescription(
			"Traverse the knowledge graph from a starting experience. Follows "+
				"relations in both directions up to the given depth, returning connected "+
				"experiences with their relation types. Use this to understand the full "+
				"context around a fix, decision, or recurring problem.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("The experience ID to start traversal from"),
		),
		mcp.WithNumber("depth",
			mcp.Description("How many levels deep to traverse (default: 2, max: 5)"),
		),
	)
}

// Handle processes the get_related tool call.
func (t *GetRelatedTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	depth := intArg(req, "depth", 2)

	graph, err := t.store.RelatedExperiences(int64(id), depth)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to traverse relations: %v", err)), nil
	}

	return mcp.NewToolResultText(formatRelatedGraph(graph)), nil
}

// formatRelatedGraph renders a RelatedGraph as readable markdown.
func formatRelatedGraph(g *memory.RelatedGraph) string {
	var b strings.Builder

	// Root info
	fmt.Fprintf(&b, "# Related Experiences for #%d\n\n", g.Root.ID)
	fmt.Fprintf(&b, "**Type:** %s\n", g.Root.Type)
	if g.Root.Project != "" {
		fmt.Fprintf(&b, "**Project:** %s\n", g.Root.Project)
	}
	fmt.Fprintf(&b, "**Created:** %s\n", g.Root.CreatedAt)
	fmt.Fprintf(&b, "**Context:** %s\n\n", memory.Truncate(g.Root.Context, 200))

	if len(g.Connected) == 0 {
		b.WriteString("No relations found for this experience.\n")
		return b.String()
	}

	// Group by depth
	byDepth := make(map[int][]memory.RelatedNode)
	for _, n := range g.Connected {
		byDepth[n.Depth] = append(byDepth[n.Depth], n)
	}

	for d := 1; d <= g.MaxDepth; d++ {
		nodes, ok := byDepth[d]
		if !ok {
			continue
		}

		label := "Direct Relations"
		if d > 1 {
			label = fmt.Sprintf("Depth %d Relations", d)
		}
		fmt.Fprintf(&b, "## %s (depth %d)\n\n", label, d)

		for _, n := range nodes {
			arrow := "→"
			if n.Direction == "incoming" {
				arrow = "←"
			}
			fmt.Fprintf(&b, "- %s #%d [%s] %s (%s)", arrow, n.ID, n.Type, n.Context, n.RelationType)
			if n.Note != "" {
				fmt.Fprintf(&b, " [%s]", n.Note)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "**Total:** %d connected experience(s) across %d level(s)\n", g.TotalNodes, g.MaxDepth)

	return b.String()
}
