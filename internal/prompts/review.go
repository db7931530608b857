package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// ReviewPrompt handles the memory-review MCP prompt.
// It instructs the AI to audit what memory has accumulated and clean up.
type ReviewPrompt struct{}

// NewReviewPrompt creates a ReviewPrompt.
func NewReviewPrompt() *ReviewPrompt {
	return &ReviewPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReviewPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("memory-review",
		mcp.WithPromptDescription(
			"Review what memory has accumulated: statistics, recurring patterns "+
				"and stale entries, with guided cleanup via prune_memory and forget_memory.",
		),
	)
}

// Handle processes the memory-review prompt request.
func (p *ReviewPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Memory Review",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Let's review the state of your memory.\n\n" +
						"Please:\n" +
						"1. Run `memory_stats` and show me the numbers in a clear format\n" +
						"2. Run `get_patterns` and point out habits worth acting on\n" +
						"3. Run `get_preferences` and flag entries with low effective confidence\n" +
						"4. Suggest a cleanup: which `prune_memory` thresholds make sense, and " +
						"whether any tag or project deserves `forget_memory`\n" +
						"5. Wait for my confirmation before running any destructive tool",
				),
			},
		},
	}, nil
}
