package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mnemo-mcp/mnemo/internal/memory"
)

// CaptureLearningsTool handles the capture_learnings MCP tool.
type CaptureLearningsTool struct {
	store *memory.Store
}

// NewCaptureLearningsTool creates a CaptureLearningsTool with the given memory store.
func NewCaptureLearningsTool(store *memory.Store) *CaptureLearningsTool {
	return &CaptureLearningsTool{store: store}
}

// Definition returns the MCP tool definition for capture_learnings.
func (t *CaptureLearningsTool) Definition() mcp.Tool {
	return mcp.NewTool("capture_learnings",
		mcp.WithDescription(
			"Extract learnings from free-form text and save each as its own "+
				"experience. Looks for a '## Key Learnings' style section with numbered "+
				"or bulleted items. Items already in memory are skipped, so this is "+
				"safe to call on overlapping content.",
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The text to extract learnings from (session notes, a summary, a retro)"),
		),
		mcp.WithString("project",
			mcp.Description("Project to attribute the learnings to"),
		),
		mcp.WithString("source",
			mcp.Description("Where the content came from (default: session notes)"),
		),
	)
}

// Handle processes the capture_learnings tool call.
func (t *CaptureLearningsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	result, err := t.store.CaptureLearnings(memory.CaptureParams{
		Content: content,
		Project: req.GetString("project", ""),
		Source:  req.GetString("source", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("capture failed: %v", err)), nil
	}
	_ = t.store.MaybeCheckpoint()

	if result.Extracted == 0 {
		return mcp.NewToolResultText(
			"No learnings found. Use a '## Key Learnings' section with numbered or bulleted items.",
		), nil
	}

	response := fmt.Sprintf("Capture complete: %d extracted, %d saved, %d duplicate(s)",
		result.Extracted, result.Saved, result.Duplicates)
	if len(result.IDs) > 0 {
		ids := make([]string, len(result.IDs))
		for i, id := range result.IDs {
			ids[i] = fmt.Sprintf("#%d", id)
		}
		response += "\nSaved as: " + strings.Join(ids, ", ")
	}

	return mcp.NewToolResultText(response), nil
}
