package storage

import (
	"context"
	"time"
)

// Storage defines the interface for persisting per-project file records and
// project summaries.
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, rootPath string) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error

	// File registry operations
	UpsertFile(ctx context.Context, file *FileRecord) error
	GetFile(ctx context.Context, projectID int64, filePath string) (*FileRecord, error)
	ListFiles(ctx context.Context, projectID int64) ([]*FileRecord, error)
	ListPendingFiles(ctx context.Context, projectID int64) ([]*FileRecord, error)
	DeleteFilesExcept(ctx context.Context, projectID int64, livePaths []string) (deleted int, err error)

	// Project summary operations
	UpsertProjectSummary(ctx context.Context, summary *ProjectSummary) error
	GetProjectSummary(ctx context.Context, projectID int64) (*ProjectSummary, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Project represents a tracked codebase
type Project struct {
	ID           int64
	RootPath     string
	TotalFiles   int
	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FileRecord is the per-file source of truth for annotation state.
// Summary, Overview and Funcs are replaced as one unit when an annotation
// succeeds; they are never partially updated.
type FileRecord struct {
	ID            int64
	ProjectID     int64
	FilePath      string // Relative to project root, forward slashes
	Name          string
	ContentHash   string // SHA-256 hex digest
	Extension     string // Without leading dot
	SizeBytes     int64
	ModTime       time.Time
	Language      string
	LineCount     int
	IsBinary      bool
	NeedsAIUpdate bool
	Summary       string
	Overview      Overview
	Funcs         []FuncInfo
	LastError     *string // Nullable
	ErrorAt       *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Overview is the AI-generated file description pair
type Overview struct {
	Behavior string `json:"behavior"`
	Markdown string `json:"markdown"`
}

// FuncInfo groups the annotations of one function or module-level block
type FuncInfo struct {
	FuncName string `json:"func_name"`
	AGLs     []AGL  `json:"agls"`
}

// AGL is a single line annotation. Line is 1-based and refers to the
// un-annotated file as it existed when the annotation was generated.
type AGL struct {
	Line int    `json:"line"`
	Text string `json:"agl"`
}

// ProjectSummary holds the module graph for a project. It is overwritten
// wholesale on every refresh; no history is kept.
type ProjectSummary struct {
	ID        int64
	ProjectID int64
	Graph     string // Textual diagram specification
	Modules   []ModuleConfig
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ModuleConfig describes one inferred module and its annotated file tree
type ModuleConfig struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	FileTree    []FileTreeItem `json:"fileTree"`
}

// FileTreeItem is a node in a module's annotated file tree
type FileTreeItem struct {
	Name        string         `json:"name"`
	Path        string         `json:"path"`
	Description string         `json:"description"`
	Type        string         `json:"type,omitempty"` // "directory" or "file"
	Children    []FileTreeItem `json:"children,omitempty"`
}
