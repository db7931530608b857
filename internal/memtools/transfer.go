package memtools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mnemo-mcp/mnemo/internal/memory"
)

// ─── MemoryExportTool ───────────────────────────────────────────────────────

// MemoryExportTool handles the memory_export MCP tool.
type MemoryExportTool struct {
	store *memory.Store
}

// NewMemoryExportTool creates a MemoryExportTool with the given memory store.
func NewMemoryExportTool(store *memory.Store) *MemoryExportTool {
	return &MemoryExportTool{store: store}
}

// Definition returns the MCP tool definition for memory_export.
func (t *MemoryExportTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_export",
		mcp.WithDescription(
			"Export the entire memory database as a JSON snapshot, soft-deleted "+
				"entries included. With a path the snapshot is written to disk; "+
				"without one the JSON is returned inline.",
		),
		mcp.WithString("path",
			mcp.Description("File path to write the snapshot to (omit to return JSON inline)"),
		),
	)
}

// Handle processes the memory_export tool call.
func (t *MemoryExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := t.store.Export()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode snapshot: %v", err)), nil
	}

	path := req.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultText(string(encoded)), nil
	}

	if err := os.WriteFile(path, encoded, 0600); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to write snapshot: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Snapshot %s written to %s\n%d experience(s), %d preference(s), %d pattern(s), %d relation(s)",
		data.SnapshotID, path,
		len(data.Experiences), len(data.Preferences), len(data.Patterns), len(data.Relations),
	)), nil
}

// ─── MemoryImportTool ───────────────────────────────────────────────────────

// MemoryImportTool handles the memory_import MCP tool.
type MemoryImportTool struct {
	store *memory.Store
}

// NewMemoryImportTool creates a MemoryImportTool.
func NewMemoryImportTool(store *memory.Store) *MemoryImportTool {
	return &MemoryImportTool{store: store}
}

// Definition returns the MCP tool definition for memory_import.
func (t *MemoryImportTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_import",
		mcp.WithDescription(
			"Import a memory snapshot produced by memory_export. Records that "+
				"already exist are skipped, so importing the same snapshot twice is "+
				"safe. Provide either a file path or the snapshot JSON inline.",
		),
		mcp.WithString("path",
			mcp.Description("File path to read the snapshot from"),
		),
		mcp.WithString("content",
			mcp.Description("Snapshot JSON passed inline (alternative to path)"),
		),
	)
}

// Handle processes the memory_import tool call.
func (t *MemoryImportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	content := req.GetString("content", "")

	if path == "" && content == "" {
		return mcp.NewToolResultError("provide 'path' or 'content'"), nil
	}

	raw := []byte(content)
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read snapshot: %v", err)), nil
		}
		raw = fileData
	}

	var data memory.ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid snapshot JSON: %v", err)), nil
	}

	result, err := t.store.Import(&data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("import failed: %v", err)), nil
	}
	_ = t.store.MaybeCheckpoint()

	return mcp.NewToolResultText(fmt.Sprintf(
		"Import complete: %d experience(s), %d preference(s), %d pattern(s), %d relation(s); %d skipped",
		result.ExperiencesImported, result.PreferencesImported,
		result.PatternsImported, result.RelationsImported, result.Skipped,
	)), nil
}
