package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// initProjectTool returns the tool definition for init_project
func initProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "init_project",
		Description: "Sync a project's files, annotate changed source files and rebuild the module graph",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
				"skip_analysis": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, only sync the file registry without calling the annotation service",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// getFileTool returns the tool definition for get_file
func getFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_file",
		Description: "Read a project file with its annotations merged into the source text",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the project root",
				},
			},
			Required: []string{"path", "file_path"},
		},
	}
}

// getProjectGraphTool returns the tool definition for get_project_graph
func getProjectGraphTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_project_graph",
		Description: "Return the stored module graph and module configurations for a project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
			},
			Required: []string{"path"},
		},
	}
}

// refreshProjectGraphTool returns the tool definition for refresh_project_graph
func refreshProjectGraphTool() mcp.Tool {
	return mcp.Tool{
		Name:        "refresh_project_graph",
		Description: "Re-run project analysis and replace the stored module graph without re-annotating files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
			},
			Required: []string{"path"},
		},
	}
}

// saveSettingsTool returns the tool definition for save_settings
func saveSettingsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "save_settings",
		Description: "Update annotation service settings; empty fields are left unchanged",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"api_key": map[string]interface{}{
					"type":        "string",
					"description": "Annotation service API key",
				},
				"base_url": map[string]interface{}{
					"type":        "string",
					"description": "Annotation service base URL",
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Prompt language code (EN or ZH)",
				},
			},
		},
	}
}
