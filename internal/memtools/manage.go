package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mnemo-mcp/mnemo/internal/memory"
)

// ─── ForgetMemoryTool ───────────────────────────────────────────────────────

// ForgetMemoryTool handles the forget_memory MCP tool.
type ForgetMemoryTool struct {
	store *memory.Store
}

// NewForgetMemoryTool creates a ForgetMemoryTool with the given memory store.
func NewForgetMemoryTool(store *memory.Store) *ForgetMemoryTool {
	return &ForgetMemoryTool{store: store}
}

// Definition returns the MCP tool definition for forget_memory.
func (t *ForgetMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool("forget_memory",
		mcp.WithDescription(
			"Soft-delete experiences by ID, tag, or project. Forgotten experiences "+
				"disappear from search, timelines and stats, but the rows are retained. "+
				"At least one selector is required; multiple selectors combine additively.",
		),
		mcp.WithNumber("id",
			mcp.Description("Specific experience ID to forget"),
		),
		mcp.WithString("tag",
			mcp.Description("Forget all experiences carrying this tag"),
		),
		mcp.WithString("project",
			mcp.Description("Forget all experiences in this project"),
		),
	)
}

// Handle processes the forget_memory tool call.
func (t *ForgetMemoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	tag := req.GetString("tag", "")
	project := req.GetString("project", "")

	if id == 0 && tag == "" && project == "" {
		return mcp.NewToolResultError("provide at least one of 'id', 'tag' or 'project'"), nil
	}

	count, err := t.store.Forget(memory.ForgetParams{
		ID:      int64(id),
		Tag:     tag,
		Project: project,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to forget: %v", err)), nil
	}
	_ = t.store.MaybeCheckpoint()

	if count == 0 {
		return mcp.NewToolResultText("Nothing matched; no experiences forgotten."), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Forgot %d experience(s).", count)), nil
}

// ─── PruneMemoryTool ────────────────────────────────────────────────────────

// PruneMemoryTool handles the prune_memory MCP tool.
type PruneMemoryTool struct {
	store *memory.Store
}

// NewPruneMemoryTool creates a PruneMemoryTool.
func NewPruneMemoryTool(store *memory.Store) *PruneMemoryTool {
	return &PruneMemoryTool{store: store}
}

// Definition returns the MCP tool definition for prune_memory.
func (t *PruneMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool("prune_memory",
		mcp.WithDescription(
			"Run memory maintenance: soft-delete experiences past an age threshold "+
				"and/or hard-delete preferences below a confidence floor. At least one "+
				"threshold is required. A threshold matching nothing reports zero.",
		),
		mcp.WithNumber("older_than_days",
			mcp.Description("Soft-delete experiences older than this many days"),
		),
		mcp.WithBoolean("only_failures",
			mcp.Description("Restrict age-based pruning to failed experiences (default: false)"),
		),
		mcp.WithNumber("min_confidence",
			mcp.Description("Delete preferences whose stored confidence is below this value, in (0, 1]"),
		),
	)
}

// Handle processes the prune_memory tool call.
func (t *PruneMemoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := intArg(req, "older_than_days", 0)
	minConfidence, hasMinConfidence := floatArg(req, "min_confidence")

	if days == 0 && !hasMinConfidence {
		return mcp.NewToolResultError("provide 'older_than_days' and/or 'min_confidence'"), nil
	}

	result, err := t.store.Maintain(memory.MaintenanceParams{
		OlderThanDays:    days,
		OnlyFailures:     boolArg(req, "only_failures", false),
		MinConfidence:    minConfidence,
		HasMinConfidence: hasMinConfidence,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("maintenance failed: %v", err)), nil
	}

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d experience(s) pruned", result.ExperiencesPruned))
	}
	if hasMinConfidence {
		parts = append(parts, fmt.Sprintf("%d preference(s) removed", result.PreferencesPruned))
	}

	return mcp.NewToolResultText("Maintenance complete: " + strings.Join(parts, ", ")), nil
}
