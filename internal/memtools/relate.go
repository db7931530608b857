package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mnemo-mcp/mnemo/internal/memory"
)

// ─── RelateTool ─────────────────────────────────────────────────────────────

// RelateTool handles the relate_experiences MCP tool.
type RelateTool struct {
	store *memory.Store
}

// NewRelateTool creates a RelateTool with the given memory store.
func NewRelateTool(store *memory.Store) *RelateTool {
	return &RelateTool{store: store}
}

// Definition returns the MCP tool definition for relate_experiences.
func (t *RelateTool) Definition() mcp.Tool {
	return mcp.NewTool("relate_experiences",
		mcp.WithDescription(
			"Create a typed relation between two experiences. Use this to connect "+
				"related fixes, decisions and discoveries into a knowledge graph. "+
				"Common relation types: relates_to, caused_by, fixed_by, supersedes, part_of.",
		),
		mcp.WithNumber("from_id",
			mcp.Required(),
			mcp.Description("Source experience ID"),
		),
		mcp.WithNumber("to_id",
			mcp.Required(),
			mcp.Description("Target experience ID"),
		),
		mcp.WithString("relation_type",
			mcp.Description("Type of relation: relates_to, caused_by, fixed_by, supersedes, part_of, or any custom string (default: relates_to)"),
		),
		mcp.WithString("note",
			mcp.Description("Optional context about why these experiences are related"),
		),
		mcp.WithBoolean("bidirectional",
			mcp.Description("If true, creates both A→B and B→A relations atomically (default: false)"),
		),
	)
}

// Handle processes the relate_experiences tool call.
func (t *RelateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fromID := intArg(req, "from_id", 0)
	toID := intArg(req, "to_id", 0)

	if fromID == 0 {
		return mcp.NewToolResultError("'from_id' is required"), nil
	}
	if toID == 0 {
		return mcp.NewToolResultError("'to_id' is required"), nil
	}

	relType := req.GetString("relation_type", "relates_to")
	note := req.GetString("note", "")
	bidir := boolArg(req, "bidirectional", false)

	ids, err := t.store.AddRelation(memory.AddRelationParams{
		FromID:        int64(fromID),
		ToID:          int64(toID),
		Type:          relType,
		Note:          note,
		Bidirectional: bidir,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create relation: %v", err)), nil
	}

	if bidir {
		return mcp.NewToolResultText(
			fmt.Sprintf("Bidirectional relation created: #%d ↔ #%d (%s)\nRelation IDs: %d, %d",
				fromID, toID, relType, ids[0], ids[1]),
		), nil
	}

	return mcp.NewToolResultText(
		fmt.Sprintf("Relation created: #%d → #%d (%s)\nRelation ID: %d",
			fromID, toID, relType, ids[0]),
	), nil
}

// ─── UnrelateTool ───────────────────────────────────────────────────────────

// UnrelateTool handles the unrelate_experiences MCP tool.
type UnrelateTool struct {
	store *memory.Store
}

// NewUnrelateTool creates an UnrelateTool with the given memory store.
func NewUnrelateTool(store *memory.Store) *UnrelateTool {
	return &UnrelateTool{store: store}
}

// Definition returns the MCP tool definition for unrelate_experiences.
func (t *UnrelateTool) Definition() mcp.Tool {
	return mcp.NewTool("unrelate_experiences",
		mcp.WithDescription(
			"Remove a relation between experiences by relation ID. "+
				"Use get_experience or get_related to find relation IDs first.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Relation ID to remove"),
		),
	)
}

// Handle processes the unrelate_experiences tool call.
func (t *UnrelateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	if err := t.store.RemoveRelation(int64(id)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to remove relation: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Relation %d removed", id)), nil
}
