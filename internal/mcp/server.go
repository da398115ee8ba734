package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/nextcodehq/nextcode-mcp/internal/annotator"
	"github.com/nextcodehq/nextcode-mcp/internal/llm"
	"github.com/nextcodehq/nextcode-mcp/internal/scanner"
	"github.com/nextcodehq/nextcode-mcp/internal/settings"
	"github.com/nextcodehq/nextcode-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "nextcode-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DatabaseFileName is the database file inside a project's store directory
	DatabaseFileName = "nextcode.db"
)

// Config carries the tunables the CLI resolves before startup
type Config struct {
	Scanner   scanner.Config
	Annotator annotator.Config
}

// projectHandle bundles the per-project dependencies. Each project keeps its
// own database under <root>/.nextcode, so storage is opened per root path.
type projectHandle struct {
	storage   storage.Storage
	scanner   *scanner.Scanner
	annotator *annotator.Annotator
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	settings *settings.Store
	service  *llm.Client
	config   Config

	mu       sync.Mutex
	projects map[string]*projectHandle
}

// NewServer creates a new MCP server instance
func NewServer(settingsStore *settings.Store, config Config) *Server {
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		settings: settingsStore,
		service:  llm.NewClient(settingsStore),
		config:   config,
		projects: make(map[string]*projectHandle),
	}

	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()
	return server.ServeStdio(s.mcp)
}

// Close releases every open project store
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for root, handle := range s.projects {
		_ = handle.storage.Close()
		delete(s.projects, root)
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(initProjectTool(), s.handleInitProject)
	s.mcp.AddTool(getFileTool(), s.handleGetFile)
	s.mcp.AddTool(getProjectGraphTool(), s.handleGetProjectGraph)
	s.mcp.AddTool(refreshProjectGraphTool(), s.handleRefreshProjectGraph)
	s.mcp.AddTool(saveSettingsTool(), s.handleSaveSettings)
}

// openProject returns the handle for a project root, opening its store on
// first use
func (s *Server) openProject(rootPath string) (*projectHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if handle, ok := s.projects[rootPath]; ok {
		return handle, nil
	}

	storeDir, err := scanner.EnsureStoreDir(rootPath)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(filepath.Join(storeDir, DatabaseFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open project store: %w", err)
	}

	handle := &projectHandle{
		storage:   store,
		scanner:   scanner.New(store, s.config.Scanner),
		annotator: annotator.New(store, s.service, s.settings, s.config.Annotator),
	}
	s.projects[rootPath] = handle
	return handle, nil
}
