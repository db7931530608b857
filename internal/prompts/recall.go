// Package prompts implements MCP prompt handlers for memory workflows.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// RecallPrompt handles the memory-recall MCP prompt.
// It guides the AI to pull stored context before starting new work.
type RecallPrompt struct{}

// NewRecallPrompt creates a RecallPrompt.
func NewRecallPrompt() *RecallPrompt {
	return &RecallPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *RecallPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("memory-recall",
		mcp.WithPromptDescription(
			"Start a session by recalling what memory knows: past corrections, "+
				"preferences, patterns and recent work, optionally focused on one project.",
		),
		mcp.WithArgument("project",
			mcp.ArgumentDescription("Project to focus the recall on (omit for everything)"),
		),
	)
}

// Handle processes the memory-recall prompt request.
func (p *RecallPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	project := ""
	if args := req.Params.Arguments; args != nil {
		if v, ok := args["project"]; ok && v != "" {
			project = v
		}
	}

	contextCall := "`memory_context`"
	scope := "across all projects"
	if project != "" {
		contextCall = fmt.Sprintf("`memory_context` with project='%s'", project)
		scope = fmt.Sprintf("for project '%s'", project)
	}

	return &mcp.GetPromptResult{
		Description: "Recall stored memory " + scope,
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Before we start working, recall what you know %s.\n\n"+
						"Please:\n"+
						"1. Run %s to get the memory briefing\n"+
						"2. Summarize the corrections you must not repeat\n"+
						"3. List the preferences you will follow, with their confidence\n"+
						"4. If anything in the briefing looks relevant to what I ask next, "+
						"run `query_memory` to pull the details before acting",
					scope, contextCall,
				)),
			},
		},
	}, nil
}
