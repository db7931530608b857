package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mnemo-mcp/mnemo/internal/memory"
)

// RecordSessionTool handles the record_session MCP tool.
type RecordSessionTool struct {
	store *memory.Store
}

// NewRecordSessionTool creates a RecordSessionTool.
func NewRecordSessionTool(store *memory.Store) *RecordSessionTool {
	return &RecordSessionTool{store: store}
}

// Definition returns the MCP tool definition for record_session.
func (t *RecordSessionTool) Definition() mcp.Tool {
	return mcp.NewTool("record_session",
		mcp.WithDescription(
			"Save an end-of-session summary. Call this when a session is ending or "+
				"when significant work is complete; future sessions surface it through "+
				"memory_context and query_memory.",
		),
		mcp.WithString("work_done",
			mcp.Required(),
			mcp.Description("What was accomplished this session"),
		),
		mcp.WithString("outcome",
			mcp.Required(),
			mcp.Description("How the session ended: state of the work, open problems, next steps"),
		),
		mcp.WithString("goal",
			mcp.Description("What the session set out to do"),
		),
		mcp.WithString("project",
			mcp.Description("Project name"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags"),
		),
	)
}

// Handle processes the record_session tool call.
func (t *RecordSessionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workDone := req.GetString("work_done", "")
	outcome := req.GetString("outcome", "")

	if workDone == "" {
		return mcp.NewToolResultError("'work_done' is required"), nil
	}
	if outcome == "" {
		return mcp.NewToolResultError("'outcome' is required"), nil
	}

	project := req.GetString("project", "")

	goal := req.GetString("goal", "")
	if goal == "" {
		goal = "Work session"
		if project != "" {
			goal = fmt.Sprintf("Work session on %s", project)
		}
	}

	id, _, err := t.store.Record(memory.RecordParams{
		Type:    memory.TypeSessionSummary,
		Context: goal,
		Action:  workDone,
		Result:  outcome,
		Success: true,
		Tags:    memory.SplitTags(req.GetString("tags", "")),
		Project: project,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save session summary: %v", err)), nil
	}
	_ = t.store.MaybeCheckpoint()

	if project != "" {
		return mcp.NewToolResultText(fmt.Sprintf("Session summary saved for %q (ID: %d)", project, id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session summary saved (ID: %d)", id)), nil
}
