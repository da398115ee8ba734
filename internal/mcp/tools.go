package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nextcodehq/nextcode-mcp/internal/annotator"
	"github.com/nextcodehq/nextcode-mcp/internal/merge"
	"github.com/nextcodehq/nextcode-mcp/internal/settings"
	"github.com/nextcodehq/nextcode-mcp/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound = -32001 // Project has not been initialized
)

// stdout carries the protocol stream, so progress goes to stderr
var progressLog = log.New(os.Stderr, "[nextcode] ", log.LstdFlags)

// handleInitProject handles the init_project tool invocation
func (s *Server) handleInitProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	skipAnalysis := getBoolDefault(args, "skip_analysis", false)

	handle, err := s.openProject(path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	project, err := handle.scanner.GetOrCreateProject(ctx, path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	records, err := handle.scanner.Reconcile(ctx, project)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "sync failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	var pending []*storage.FileRecord
	for _, record := range records {
		if record.NeedsAIUpdate {
			pending = append(pending, record)
		}
	}

	response := map[string]interface{}{
		"synced":        true,
		"total_files":   project.TotalFiles,
		"files_pending": len(pending),
	}

	if !skipAnalysis {
		// One extra progress unit is reserved for project analysis
		tracker := annotator.NewTracker(len(pending)+1, reportProgress)

		stats := handle.annotator.Run(ctx, project, pending, tracker)
		response["files_annotated"] = stats.FilesAnnotated
		response["files_failed"] = stats.FilesFailed
		response["duration_ms"] = stats.Duration.Milliseconds()
		if len(stats.ErrorMessages) > 0 {
			errorCount := len(stats.ErrorMessages)
			if errorCount > 5 {
				response["errors"] = stats.ErrorMessages[:5]
				response["error_count"] = errorCount
			} else {
				response["errors"] = stats.ErrorMessages
			}
		}

		if err := s.synthesize(ctx, handle, project, tracker); err != nil {
			response["analysis_error"] = err.Error()
		}
	}

	tree, err := handle.scanner.FileTree(path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to build file tree", map[string]interface{}{
			"error": err.Error(),
		})
	}
	response["file_tree"] = tree

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// synthesize runs the three-round project analysis over the current registry
// contents. Failures before the synthesis rounds still consume the synthesis
// progress unit so the stream terminates.
func (s *Server) synthesize(ctx context.Context, handle *projectHandle, project *storage.Project, tracker *annotator.Tracker) error {
	fileTree, err := handle.scanner.TextFileTree(project.RootPath)
	if err != nil {
		err = fmt.Errorf("failed to render file tree: %w", err)
		tracker.Update(fmt.Sprintf("failed: project analysis: %v", err))
		return err
	}
	descriptions, err := handle.annotator.BehaviorDescriptions(ctx, project.ID)
	if err != nil {
		err = fmt.Errorf("failed to collect file descriptions: %w", err)
		tracker.Update(fmt.Sprintf("failed: project analysis: %v", err))
		return err
	}
	return handle.annotator.SynthesizeProject(ctx, project, fileTree, descriptions, tracker)
}

// handleGetFile handles the get_file tool invocation
func (s *Server) handleGetFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	filePath, ok := args["file_path"].(string)
	if !ok || filePath == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "file_path parameter is required", map[string]interface{}{
			"param":  "file_path",
			"reason": "missing or empty",
		})
	}

	handle, err := s.openProject(path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	project, err := handle.storage.GetProject(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeProjectNotFound, "project not initialized; run init_project first", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	content, err := os.ReadFile(filepath.Join(path, filepath.FromSlash(filePath)))
	if err != nil {
		response := map[string]interface{}{
			"exists":    false,
			"file_path": filePath,
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	raw := string(content)

	response := map[string]interface{}{
		"exists":    true,
		"file_path": filePath,
		"content":   raw,
	}

	record, err := handle.storage.GetFile(ctx, project.ID, filePath)
	if errors.Is(err, storage.ErrNotFound) {
		// Readable but not yet synced; serve the raw text alone
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load file record", map[string]interface{}{
			"error": err.Error(),
		})
	}

	annotated, warnings := merge.Annotations(raw, record.Funcs)
	for _, warning := range warnings {
		progressLog.Printf("%s: %s", record.FilePath, warning)
	}

	response["name"] = record.Name
	response["language"] = record.Language
	response["extension"] = record.Extension
	response["size_bytes"] = record.SizeBytes
	response["line_count"] = record.LineCount
	response["is_binary"] = record.IsBinary
	response["needs_ai_update"] = record.NeedsAIUpdate
	response["summary"] = record.Summary
	response["overview"] = record.Overview
	response["annotated_content"] = annotated
	if len(warnings) > 0 {
		response["warnings"] = warnings
	}
	if record.LastError != nil {
		response["last_error"] = *record.LastError
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetProjectGraph handles the get_project_graph tool invocation
func (s *Server) handleGetProjectGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle, project, mcpErr := s.loadProject(ctx, request)
	if mcpErr != nil {
		return nil, mcpErr
	}

	summary, err := handle.storage.GetProjectSummary(ctx, project.ID)
	if errors.Is(err, storage.ErrNotFound) {
		response := map[string]interface{}{
			"analyzed": false,
			"message":  "Project not analyzed. Use init_project or refresh_project_graph.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load project summary", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"analyzed": true,
		"graph":    summary.Graph,
		"modules":  summary.Modules,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRefreshProjectGraph handles the refresh_project_graph tool invocation
func (s *Server) handleRefreshProjectGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	handle, project, mcpErr := s.loadProject(ctx, request)
	if mcpErr != nil {
		return nil, mcpErr
	}

	tracker := annotator.NewTracker(1, reportProgress)
	if err := s.synthesize(ctx, handle, project, tracker); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "project analysis failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	summary, err := handle.storage.GetProjectSummary(ctx, project.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load project summary", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"analyzed": true,
		"graph":    summary.Graph,
		"modules":  summary.Modules,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSaveSettings handles the save_settings tool invocation
func (s *Server) handleSaveSettings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	s.settings.Update(settings.Settings{
		APIKey:   getStringDefault(args, "api_key", ""),
		BaseURL:  getStringDefault(args, "base_url", ""),
		Language: getStringDefault(args, "language", ""),
	})

	current := s.settings.Get()
	response := map[string]interface{}{
		"saved":       true,
		"has_api_key": current.APIKey != "",
		"base_url":    current.BaseURL,
		"language":    current.Language,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// loadProject resolves the path argument common to the graph tools into an
// open handle and an existing project row
func (s *Server) loadProject(ctx context.Context, request mcp.CallToolRequest) (*projectHandle, *storage.Project, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	handle, err := s.openProject(path)
	if err != nil {
		return nil, nil, newMCPError(ErrorCodeInternalError, "failed to open project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	project, err := handle.storage.GetProject(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, newMCPError(ErrorCodeProjectNotFound, "project not initialized; run init_project first", nil)
	}
	if err != nil {
		return nil, nil, newMCPError(ErrorCodeInternalError, "failed to load project", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return handle, project, nil
}

// reportProgress logs pipeline progress to stderr
func reportProgress(percent int, message string) {
	progressLog.Printf("%3d%% %s", percent, message)
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
