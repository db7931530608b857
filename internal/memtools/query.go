package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mnemo-mcp/mnemo/internal/memory"
)

// QueryMemoryTool handles the query_memory MCP tool.
type QueryMemoryTool struct {
	store *memory.Store
}

// NewQueryMemoryTool creates a QueryMemoryTool with the given memory store.
func NewQueryMemoryTool(store *memory.Store) *QueryMemoryTool {
	return &QueryMemoryTool{store: store}
}

// Definition returns the MCP tool definition for query_memory.
func (t *QueryMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool("query_memory",
		mcp.WithDescription(
			"Search past experiences with full-text search, ranked by a blend of "+
				"relevance, recency and outcome. Results are compact: metadata plus a "+
				"context snippet. This is the progressive disclosure pattern: query first, "+
				"then get_experience or get_timeline on interesting IDs.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to search for (matched against context, action, result and tags)"),
		),
		mcp.WithString("project",
			mcp.Description("Boost and filter to this project plus global entries"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 5)"),
		),
	)
}

// Handle processes the query_memory tool call.
func (t *QueryMemoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	project := req.GetString("project", "")
	limit := intArg(req, "limit", 5)

	results, err := t.store.Search(query, project, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No memories found for %q.", query)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matching memories:\n\n", len(results))

	for i, r := range results {
		c := r.Compact()
		outcome := "ok"
		if !c.Success {
			outcome = "failed"
		}
		fmt.Fprintf(&b, "[%d] #%d (%s, %s) score %.2f\n", i+1, c.ID, c.Type, outcome, r.Score)
		fmt.Fprintf(&b, "    %s\n", c.Context)

		meta := []string{c.CreatedAt}
		if c.Project != "" {
			meta = append(meta, "project: "+c.Project)
		}
		if c.Tags != "" {
			meta = append(meta, "tags: "+c.Tags)
		}
		if c.TopicKey != nil && *c.TopicKey != "" {
			meta = append(meta, "topic: "+*c.TopicKey)
		}
		if c.DuplicateCount > 1 {
			meta = append(meta, fmt.Sprintf("seen %dx", c.DuplicateCount))
		}
		fmt.Fprintf(&b, "    %s\n\n", strings.Join(meta, " | "))
	}

	b.WriteString("Use get_experience with an ID for the full record.")

	return mcp.NewToolResultText(b.String()), nil
}

// ─── GetExperienceTool ──────────────────────────────────────────────────────

// GetExperienceTool handles the get_experience MCP tool.
type GetExperienceTool struct {
	store *memory.Store
}

// NewGetExperienceTool creates a GetExperienceTool.
func NewGetExperienceTool(store *memory.Store) *GetExperienceTool {
	return &GetExperienceTool{store: store}
}

// Definition returns the MCP tool definition for get_experience.
func (t *GetExperienceTool) Definition() mcp.Tool {
	return mcp.NewTool("get_experience",
		mcp.WithDescription(
			"Get the full content of a specific experience by ID. Use when you need the "+
				"complete, untruncated record behind a query_memory or get_timeline result.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("The experience ID to retrieve"),
		),
	)
}

// Handle processes the get_experience tool call.
func (t *GetExperienceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	exp, err := t.store.GetExperience(int64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load experience: %v", err)), nil
	}
	if exp == nil {
		// Absence is an answer, not a failure.
		return mcp.NewToolResultText(fmt.Sprintf("Experience #%d not found.", id)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Experience #%d\n\n", exp.ID)
	fmt.Fprintf(&b, "**Type:** %s\n", exp.Type)

	outcome := "success"
	if !exp.Success {
		outcome = "failure"
	}
	fmt.Fprintf(&b, "**Outcome:** %s\n", outcome)

	if exp.Project != "" {
		fmt.Fprintf(&b, "**Project:** %s\n", exp.Project)
	}
	if exp.Tags != "" {
		fmt.Fprintf(&b, "**Tags:** %s\n", exp.Tags)
	}
	if exp.TopicKey != nil && *exp.TopicKey != "" {
		fmt.Fprintf(&b, "**Topic Key:** %s\n", *exp.TopicKey)
	}

	fmt.Fprintf(&b, "**Created:** %s\n", exp.CreatedAt)
	fmt.Fprintf(&b, "**Updated:** %s\n", exp.UpdatedAt)
	if exp.LastSeenAt != nil {
		fmt.Fprintf(&b, "**Last Seen:** %s\n", *exp.LastSeenAt)
	}
	fmt.Fprintf(&b, "**Revisions:** %d\n", exp.RevisionCount)
	fmt.Fprintf(&b, "**Duplicates:** %d\n\n", exp.DuplicateCount)

	fmt.Fprintf(&b, "## Context\n\n%s\n\n", exp.Context)
	fmt.Fprintf(&b, "## Action\n\n%s\n\n", exp.Action)
	fmt.Fprintf(&b, "## Result\n\n%s\n", exp.Result)

	// Append direct relations if any exist
	rels, relErr := t.store.GetRelations(exp.ID)
	if relErr == nil && len(rels) > 0 {
		var outgoing, incoming []string
		for _, r := range rels {
			if r.FromID == exp.ID {
				label := fmt.Sprintf("- → #%d (%s)", r.ToID, r.Type)
				if r.Note != "" {
					label += fmt.Sprintf(" [%s]", r.Note)
				}
				outgoing = append(outgoing, label)
			} else {
				label := fmt.Sprintf("- ← #%d (%s)", r.FromID, r.Type)
				if r.Note != "" {
					label += fmt.Sprintf(" [%s]", r.Note)
				}
				incoming = append(incoming, label)
			}
		}

		b.WriteString("\n## Relations\n\n")
		if len(outgoing) > 0 {
			b.WriteString("**Outgoing:**\n")
			for _, o := range outgoing {
				b.WriteString(o + "\n")
			}
		}
		if len(incoming) > 0 {
			if len(outgoing) > 0 {
				b.WriteString("\n")
			}
			b.WriteString("**Incoming:**\n")
			for _, in := range incoming {
				b.WriteString(in + "\n")
			}
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}
