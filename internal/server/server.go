// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations
// and injects them into the tools/prompts/resources that depend on them.
// No business logic lives here — only wiring.
package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/mnemo-mcp/mnemo/internal/config"
	"github.com/mnemo-mcp/mnemo/internal/memory"
	"github.com/mnemo-mcp/mnemo/internal/memtools"
	"github.com/mnemo-mcp/mnemo/internal/prompts"
	"github.com/mnemo-mcp/mnemo/internal/resources"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools, prompts,
// and resources registered. This is the single place where all
// dependencies are resolved.
//
// The returned cleanup function closes the memory store's database
// connection and must be called on shutdown (typically via defer).
// It is always non-nil and safe to call even if initialization failed.
func New() (*server.MCPServer, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, noop, fmt.Errorf("loading configuration: %w", err)
	}

	// Memory is the product here. A store that cannot open is fatal,
	// not a degraded mode.
	store, err := memory.New(cfg)
	if err != nil {
		return nil, noop, fmt.Errorf("opening memory store: %w", err)
	}
	cleanup := func() {
		_ = store.Checkpoint()
		_ = store.Close()
	}

	s := server.NewMCPServer(
		"mnemo",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	registerMemoryTools(s, store)

	// --- Register prompts ---

	recallPrompt := prompts.NewRecallPrompt()
	s.AddPrompt(recallPrompt.Definition(), recallPrompt.Handle)

	reviewPrompt := prompts.NewReviewPrompt()
	s.AddPrompt(reviewPrompt.Definition(), reviewPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(store)
	s.AddResource(resourceHandler.StatsResource(), resourceHandler.HandleStats)
	s.AddResource(resourceHandler.ContextResource(), resourceHandler.HandleContext)

	return s, cleanup, nil
}

// noop is a no-op cleanup function used as the default when
// initialization fails before the store is open.
func noop() {}

// registerMemoryTools registers all 19 memory MCP tools with the server.
func registerMemoryTools(s *server.MCPServer, ms *memory.Store) {
	// --- Recording ---
	recordExperience := memtools.NewRecordExperienceTool(ms)
	s.AddTool(recordExperience.Definition(), recordExperience.Handle)

	recordCorrection := memtools.NewRecordCorrectionTool(ms)
	s.AddTool(recordCorrection.Definition(), recordCorrection.Handle)

	learnPreference := memtools.NewLearnPreferenceTool(ms)
	s.AddTool(learnPreference.Definition(), learnPreference.Handle)

	// --- Query & retrieval ---
	queryMemory := memtools.NewQueryMemoryTool(ms)
	s.AddTool(queryMemory.Definition(), queryMemory.Handle)

	getExperience := memtools.NewGetExperienceTool(ms)
	s.AddTool(getExperience.Definition(), getExperience.Handle)

	getTimeline := memtools.NewGetTimelineTool(ms)
	s.AddTool(getTimeline.Definition(), getTimeline.Handle)

	memoryContext := memtools.NewMemoryContextTool(ms)
	s.AddTool(memoryContext.Definition(), memoryContext.Handle)

	// --- Preferences & patterns ---
	getPreferences := memtools.NewGetPreferencesTool(ms)
	s.AddTool(getPreferences.Definition(), getPreferences.Handle)

	getPatterns := memtools.NewGetPatternsTool(ms)
	s.AddTool(getPatterns.Definition(), getPatterns.Handle)

	// --- Statistics & maintenance ---
	memoryStats := memtools.NewMemoryStatsTool(ms)
	s.AddTool(memoryStats.Definition(), memoryStats.Handle)

	forgetMemory := memtools.NewForgetMemoryTool(ms)
	s.AddTool(forgetMemory.Definition(), forgetMemory.Handle)

	pruneMemory := memtools.NewPruneMemoryTool(ms)
	s.AddTool(pruneMemory.Definition(), pruneMemory.Handle)

	// --- Session workflow ---
	recordSession := memtools.NewRecordSessionTool(ms)
	s.AddTool(recordSession.Definition(), recordSession.Handle)

	captureLearnings := memtools.NewCaptureLearningsTool(ms)
	s.AddTool(captureLearnings.Definition(), captureLearnings.Handle)

	// --- Knowledge graph (relations) ---
	relate := memtools.NewRelateTool(ms)
	s.AddTool(relate.Definition(), relate.Handle)

	unrelate := memtools.NewUnrelateTool(ms)
	s.AddTool(unrelate.Definition(), unrelate.Handle)

	getRelated := memtools.NewGetRelatedTool(ms)
	s.AddTool(getRelated.Definition(), getRelated.Handle)

	// --- Import/export ---
	memoryExport := memtools.NewMemoryExportTool(ms)
	s.AddTool(memoryExport.Definition(), memoryExport.Handle)

	memoryImport := memtools.NewMemoryImportTool(ms)
	s.AddTool(memoryImport.Definition(), memoryImport.Handle)
}

// serverInstructions returns the system instructions that tell the AI
// how to use mnemo effectively.
func serverInstructions() string {
	return `You have access to mnemo, a persistent memory MCP server. It remembers
experiences, corrections, preferences and patterns across sessions, so
lessons learned once are not relearned every time.

## AT SESSION START

Call memory_context (with the project name when you know it) to pick up
corrections, preferences and recent work from previous sessions. Do this
BEFORE starting substantive work — past corrections are only useful if
you read them first.

## DURING WORK

You MUST record to memory when:
- The user corrects you → record_correction immediately, with the
  concrete behavior, what they wanted instead, and the general lesson
- The user states how they like things done → learn_preference
  (re-affirm existing keys rather than inventing near-duplicate ones)
- You finish a meaningful unit of work, especially one with a surprising
  outcome → record_experience with honest success=true/false
- You are about to do something you may have done before → query_memory
  first, then get_experience or get_timeline on interesting results

## CRITICAL: How Tools Work

mnemo tools are STORAGE tools, not AI tools. They persist content YOU
generate. Write real, substantive context/action/result text — never
placeholders. One experience per distinct event; the store deduplicates
rapid repeats, but it cannot split a blob of unrelated notes.

Use topic_key only for living notes that should be revised in place
(e.g. a project's architecture summary), not for one-off events.

## AT SESSION END

Call record_session with what was done and how it ended. If the session
produced a written summary with a "Key Learnings" section, pass it to
capture_learnings so each lesson is stored and deduplicated separately.

## HOUSEKEEPING

memory_stats shows what has accumulated. When memory grows noisy, use
prune_memory (age and confidence thresholds) and forget_memory
(targeted removal). Forgetting is soft: entries leave search but rows
are retained.`
}
