package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextcodehq/nextcode-mcp/internal/annotator"
	"github.com/nextcodehq/nextcode-mcp/internal/scanner"
	"github.com/nextcodehq/nextcode-mcp/internal/settings"
	"github.com/nextcodehq/nextcode-mcp/internal/storage"
)

func setupTestServer(t *testing.T) *Server {
	server := NewServer(settings.NewStore(settings.Settings{Language: "EN"}), Config{
		Scanner:   scanner.DefaultConfig(),
		Annotator: annotator.Config{},
	})
	t.Cleanup(server.Close)
	return server
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args
	return request
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	return decoded
}

func TestServer_Initialization(t *testing.T) {
	server := setupTestServer(t)

	assert.NotNil(t, server.mcp)
	assert.NotNil(t, server.settings)
	assert.NotNil(t, server.service)
	assert.Empty(t, server.projects)
}

func TestHandleInitProject_SkipAnalysis(t *testing.T) {
	server := setupTestServer(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte("print('hi')\n"), 0o644))

	result, err := server.handleInitProject(context.Background(), toolRequest(map[string]interface{}{
		"path":          root,
		"skip_analysis": true,
	}))
	require.NoError(t, err)

	response := resultJSON(t, result)
	assert.Equal(t, true, response["synced"])
	assert.Equal(t, float64(1), response["total_files"])
	assert.Equal(t, float64(1), response["files_pending"])
	assert.NotContains(t, response, "files_annotated")
	assert.Contains(t, response, "file_tree")

	// The project store lives under the root's .nextcode directory
	_, err = os.Stat(filepath.Join(root, scanner.StoreDirName, DatabaseFileName))
	assert.NoError(t, err)
}

func TestHandleInitProject_InvalidPath(t *testing.T) {
	server := setupTestServer(t)

	_, err := server.handleInitProject(context.Background(), toolRequest(map[string]interface{}{
		"path": "relative/path",
	}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleInitProject_MissingPath(t *testing.T) {
	server := setupTestServer(t)

	_, err := server.handleInitProject(context.Background(), toolRequest(map[string]interface{}{}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleGetFile(t *testing.T) {
	server := setupTestServer(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte("print('hi')\n"), 0o644))

	_, err := server.handleInitProject(context.Background(), toolRequest(map[string]interface{}{
		"path":          root,
		"skip_analysis": true,
	}))
	require.NoError(t, err)

	// Seed annotations so the merged view has content to insert
	handle, err := server.openProject(root)
	require.NoError(t, err)
	project, err := handle.storage.GetProject(context.Background(), root)
	require.NoError(t, err)
	record, err := handle.storage.GetFile(context.Background(), project.ID, "main.py")
	require.NoError(t, err)
	record.Summary = "prints a greeting"
	record.Funcs = []storage.FuncInfo{
		{FuncName: "main", AGLs: []storage.AGL{{Line: 1, Text: "#> 1. greet"}}},
	}
	require.NoError(t, handle.storage.UpsertFile(context.Background(), record))

	result, err := server.handleGetFile(context.Background(), toolRequest(map[string]interface{}{
		"path":      root,
		"file_path": "main.py",
	}))
	require.NoError(t, err)

	response := resultJSON(t, result)
	assert.Equal(t, true, response["exists"])
	assert.Equal(t, "print('hi')\n", response["content"])
	assert.Equal(t, "#> 1. greet\nprint('hi')\n", response["annotated_content"])
	assert.Equal(t, "prints a greeting", response["summary"])
}

func TestHandleGetFile_Unreadable(t *testing.T) {
	server := setupTestServer(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte("print('hi')\n"), 0o644))

	_, err := server.handleInitProject(context.Background(), toolRequest(map[string]interface{}{
		"path":          root,
		"skip_analysis": true,
	}))
	require.NoError(t, err)

	result, err := server.handleGetFile(context.Background(), toolRequest(map[string]interface{}{
		"path":      root,
		"file_path": "missing.py",
	}))
	require.NoError(t, err)

	response := resultJSON(t, result)
	assert.Equal(t, false, response["exists"])
}

func TestHandleGetProjectGraph_NotAnalyzed(t *testing.T) {
	server := setupTestServer(t)
	root := t.TempDir()

	_, err := server.handleInitProject(context.Background(), toolRequest(map[string]interface{}{
		"path":          root,
		"skip_analysis": true,
	}))
	require.NoError(t, err)

	result, err := server.handleGetProjectGraph(context.Background(), toolRequest(map[string]interface{}{
		"path": root,
	}))
	require.NoError(t, err)

	response := resultJSON(t, result)
	assert.Equal(t, false, response["analyzed"])
}

func TestHandleGetProjectGraph_ProjectNotFound(t *testing.T) {
	server := setupTestServer(t)
	root := t.TempDir()

	_, err := server.handleGetProjectGraph(context.Background(), toolRequest(map[string]interface{}{
		"path": root,
	}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeProjectNotFound, mcpErr.Code)
}

func TestHandleSaveSettings(t *testing.T) {
	server := setupTestServer(t)

	result, err := server.handleSaveSettings(context.Background(), toolRequest(map[string]interface{}{
		"api_key":  "secret",
		"base_url": "https://example.test",
	}))
	require.NoError(t, err)

	response := resultJSON(t, result)
	assert.Equal(t, true, response["saved"])
	assert.Equal(t, true, response["has_api_key"])
	assert.Equal(t, "https://example.test", response["base_url"])
	// Unset fields are left unchanged
	assert.Equal(t, "EN", response["language"])

	current := server.settings.Get()
	assert.Equal(t, "secret", current.APIKey)
}

func TestValidatePath(t *testing.T) {
	assert.ErrorIs(t, validatePath(""), ErrPathRequired)
	assert.ErrorIs(t, validatePath("relative"), ErrPathNotAbsolute)
	assert.ErrorIs(t, validatePath("/definitely/not/here"), ErrPathNotFound)

	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.ErrorIs(t, validatePath(file), ErrNotDirectory)

	assert.NoError(t, validatePath(t.TempDir()))
}

func TestOpenProject_ReusesHandle(t *testing.T) {
	server := setupTestServer(t)
	root := t.TempDir()

	first, err := server.openProject(root)
	require.NoError(t, err)
	second, err := server.openProject(root)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestToolDefinitions(t *testing.T) {
	for _, tool := range []mcp.Tool{
		initProjectTool(), getFileTool(), getProjectGraphTool(),
		refreshProjectGraphTool(), saveSettingsTool(),
	} {
		assert.NotEmpty(t, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.Equal(t, "object", tool.InputSchema.Type)
	}

	assert.Contains(t, initProjectTool().InputSchema.Required, "path")
	assert.Contains(t, getFileTool().InputSchema.Required, "file_path")
}
