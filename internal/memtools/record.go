package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mnemo-mcp/mnemo/internal/memory"
)

// RecordExperienceTool handles the record_experience MCP tool.
type RecordExperienceTool struct {
	store *memory.Store
}

// NewRecordExperienceTool creates a RecordExperienceTool with the given memory store.
func NewRecordExperienceTool(store *memory.Store) *RecordExperienceTool {
	return &RecordExperienceTool{store: store}
}

// Definition returns the MCP tool definition for record_experience.
func (t *RecordExperienceTool) Definition() mcp.Tool {
	return mcp.NewTool("record_experience",
		mcp.WithDescription(
			"Record an experience: what situation you were in, what you did, and how it "+
				"turned out. Experiences are the raw material of memory; they are deduplicated "+
				"within a short window and searchable later with query_memory. Use topic_key "+
				"for living notes that should be revised in place rather than accumulated.",
		),
		mcp.WithString("context",
			mcp.Required(),
			mcp.Description("The situation or problem you were facing"),
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("What you did about it"),
		),
		mcp.WithString("result",
			mcp.Required(),
			mcp.Description("What happened as a consequence"),
		),
		mcp.WithBoolean("success",
			mcp.Required(),
			mcp.Description("Whether the action worked"),
		),
		mcp.WithString("type",
			mcp.Description("Kind of experience (default: experience)"),
			mcp.Enum(memory.ValidTypes()...),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags for later filtering (e.g. 'auth,jwt')"),
		),
		mcp.WithString("project",
			mcp.Description("Project this experience belongs to (omit for global)"),
		),
		mcp.WithString("topic_key",
			mcp.Description("Stable topic identifier; recording the same topic again revises the existing entry"),
		),
	)
}

// Handle processes the record_experience tool call.
func (t *RecordExperienceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expContext := req.GetString("context", "")
	action := req.GetString("action", "")
	result := req.GetString("result", "")

	if expContext == "" {
		return mcp.NewToolResultError("'context' is required"), nil
	}
	if action == "" {
		return mcp.NewToolResultError("'action' is required"), nil
	}
	if result == "" {
		return mcp.NewToolResultError("'result' is required"), nil
	}
	success, ok := req.GetArguments()["success"].(bool)
	if !ok {
		return mcp.NewToolResultError("'success' is required"), nil
	}

	id, outcome, err := t.store.Record(memory.RecordParams{
		Type:     req.GetString("type", ""),
		Context:  expContext,
		Action:   action,
		Result:   result,
		Success:  success,
		Tags:     memory.SplitTags(req.GetString("tags", "")),
		Project:  req.GetString("project", ""),
		TopicKey: req.GetString("topic_key", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record experience: %v", err)), nil
	}
	_ = t.store.MaybeCheckpoint()

	var b strings.Builder
	switch outcome {
	case memory.OutcomeDeduplicated:
		fmt.Fprintf(&b, "Duplicate merged into experience #%d", id)
		if exp, getErr := t.store.GetExperience(id); getErr == nil && exp != nil {
			fmt.Fprintf(&b, " (seen %dx)", exp.DuplicateCount)
		}
		b.WriteString("\n")
	case memory.OutcomeUpserted:
		fmt.Fprintf(&b, "Topic revised in experience #%d", id)
		if exp, getErr := t.store.GetExperience(id); getErr == nil && exp != nil {
			fmt.Fprintf(&b, " (revision %d)", exp.RevisionCount)
		}
		b.WriteString("\n")
	default:
		fmt.Fprintf(&b, "Experience recorded (ID: %d)\n", id)
	}

	if total, countErr := t.store.CountActiveExperiences(); countErr == nil {
		fmt.Fprintf(&b, "Memory now holds %d active experiences", total)
	}

	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

// ─── RecordCorrectionTool ───────────────────────────────────────────────────

// RecordCorrectionTool handles the record_correction MCP tool.
type RecordCorrectionTool struct {
	store *memory.Store
}

// NewRecordCorrectionTool creates a RecordCorrectionTool.
func NewRecordCorrectionTool(store *memory.Store) *RecordCorrectionTool {
	return &RecordCorrectionTool{store: store}
}

// Definition returns the MCP tool definition for record_correction.
func (t *RecordCorrectionTool) Definition() mcp.Tool {
	return mcp.NewTool("record_correction",
		mcp.WithDescription(
			"Record a moment where the user corrected you: what you did, what they "+
				"actually wanted, and the lesson to carry forward. Corrections are stored "+
				"as failed experiences and aggregated into recurring patterns, so repeated "+
				"mistakes surface in memory_context briefings.",
		),
		mcp.WithString("what_i_did",
			mcp.Required(),
			mcp.Description("The behavior that was corrected"),
		),
		mcp.WithString("what_user_wanted",
			mcp.Required(),
			mcp.Description("What the user actually wanted instead"),
		),
		mcp.WithString("lesson",
			mcp.Required(),
			mcp.Description("The general lesson to remember"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags"),
		),
		mcp.WithString("project",
			mcp.Description("Project where the correction happened"),
		),
	)
}

// Handle processes the record_correction tool call.
func (t *RecordCorrectionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	whatIDid := req.GetString("what_i_did", "")
	whatUserWanted := req.GetString("what_user_wanted", "")
	lesson := req.GetString("lesson", "")

	if whatIDid == "" {
		return mcp.NewToolResultError("'what_i_did' is required"), nil
	}
	if whatUserWanted == "" {
		return mcp.NewToolResultError("'what_user_wanted' is required"), nil
	}
	if lesson == "" {
		return mcp.NewToolResultError("'lesson' is required"), nil
	}

	id, _, err := t.store.Record(memory.RecordParams{
		Type:    memory.TypeCorrection,
		Context: whatIDid,
		Action:  whatUserWanted,
		Result:  lesson,
		Success: false,
		Tags:    memory.SplitTags(req.GetString("tags", "")),
		Project: req.GetString("project", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record correction: %v", err)), nil
	}

	// The lesson doubles as a pattern so recurrence is countable.
	pattern, err := t.store.RecordPattern(lesson, "correction", whatIDid)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record pattern: %v", err)), nil
	}
	_ = t.store.MaybeCheckpoint()

	return mcp.NewToolResultText(fmt.Sprintf(
		"Correction recorded (ID: %d)\nPattern %q now seen %dx",
		id, pattern.Description, pattern.Frequency,
	)), nil
}
