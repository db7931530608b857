package memtools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mnemo-mcp/mnemo/internal/memory"
)

// LearnPreferenceTool handles the learn_preference MCP tool.
type LearnPreferenceTool struct {
	store *memory.Store
}

// NewLearnPreferenceTool creates a LearnPreferenceTool with the given memory store.
func NewLearnPreferenceTool(store *memory.Store) *LearnPreferenceTool {
	return &LearnPreferenceTool{store: store}
}

// Definition returns the MCP tool definition for learn_preference.
func (t *LearnPreferenceTool) Definition() mcp.Tool {
	return mcp.NewTool("learn_preference",
		mcp.WithDescription(
			"Store or re-affirm a user preference. New preferences start at low "+
				"confidence; each re-affirmation of the same key and scope raises it, "+
				"and long silence decays it at read time. Project-scoped preferences "+
				"override global ones with the same key.",
		),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Stable preference identifier (e.g. 'commit_style')"),
		),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("The preferred behavior (e.g. 'imperative mood, no emoji')"),
		),
		mcp.WithString("scope",
			mcp.Description("Project name, or 'global' for everywhere (default: global)"),
		),
		mcp.WithString("source",
			mcp.Description("Where this preference came from (e.g. 'explicit request', 'observed')"),
		),
	)
}

// Handle processes the learn_preference tool call.
func (t *LearnPreferenceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := req.GetString("key", "")
	value := req.GetString("value", "")

	if key == "" {
		return mcp.NewToolResultError("'key' is required"), nil
	}
	if value == "" {
		return mcp.NewToolResultError("'value' is required"), nil
	}

	scope := req.GetString("scope", "")
	source := req.GetString("source", "")

	pref, err := t.store.AffirmPreference(key, value, scope, source)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store preference: %v", err)), nil
	}
	_ = t.store.MaybeCheckpoint()

	effective := memory.EffectiveConfidence(*pref, time.Now().UTC())

	return mcp.NewToolResultText(fmt.Sprintf(
		"Preference stored: %s = %q (scope: %s)\nConfidence %.2f after %d confirmation(s), effective %.2f",
		pref.Key, pref.Value, pref.Scope, pref.Confidence, pref.ConfirmedCount, effective,
	)), nil
}

// ─── GetPreferencesTool ─────────────────────────────────────────────────────

// GetPreferencesTool handles the get_preferences MCP tool.
type GetPreferencesTool struct {
	store *memory.Store
}

// NewGetPreferencesTool creates a GetPreferencesTool.
func NewGetPreferencesTool(store *memory.Store) *GetPreferencesTool {
	return &GetPreferencesTool{store: store}
}

// Definition returns the MCP tool definition for get_preferences.
func (t *GetPreferencesTool) Definition() mcp.Tool {
	return mcp.NewTool("get_preferences",
		mcp.WithDescription(
			"List known user preferences with staleness-adjusted confidence. With a "+
				"project, global and project-scoped preferences are merged and the "+
				"project wins on key conflicts; without one, only globals are shown.",
		),
		mcp.WithString("project",
			mcp.Description("Project to merge preferences for (omit for global only)"),
		),
	)
}

// Handle processes the get_preferences tool call.
func (t *GetPreferencesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")

	prefs, err := t.store.MergedPreferences(project)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load preferences: %v", err)), nil
	}

	if len(prefs) == 0 {
		return mcp.NewToolResultText("No preferences recorded yet. Use learn_preference when the user states one."), nil
	}

	var b strings.Builder
	if project != "" {
		fmt.Fprintf(&b, "## Preferences (project: %s)\n\n", project)
	} else {
		b.WriteString("## Preferences (global)\n\n")
	}

	for _, p := range prefs {
		fmt.Fprintf(&b, "- **%s**: %s [%s] confidence %.2f", p.Key, p.Value, p.Origin, p.EffectiveConfidence)
		if p.ConfirmedCount > 1 {
			fmt.Fprintf(&b, " (%d confirmations)", p.ConfirmedCount)
		}
		b.WriteString("\n")
	}

	return mcp.NewToolResultText(b.String()), nil
}
