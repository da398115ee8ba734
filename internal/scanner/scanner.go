package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextcodehq/nextcode-mcp/internal/storage"
)

// StoreDirName is the project-local directory holding the database. It is
// always excluded from scanning.
const StoreDirName = ".nextcode"

// Config controls enumeration and annotation eligibility
type Config struct {
	IgnoredDirs       []string        // Directory names skipped entirely
	IgnoredFiles      map[string]bool // Exact file names skipped
	IgnoredExtensions map[string]bool // Extensions (no dot) skipped
	AIExtensions      map[string]bool // Extensions eligible for annotation

	// RetryFailed re-raises the pending flag for records that carry a
	// recorded error even when their content hash is unchanged. Off by
	// default: a failed file stays unannotated until its content changes.
	RetryFailed bool
}

// DefaultConfig returns the default ignore and eligibility sets
func DefaultConfig() Config {
	return Config{
		IgnoredDirs: []string{StoreDirName, "node_modules", ".git", ".github", ".DS_Store"},
		IgnoredFiles: map[string]bool{
			"__init__.py": true,
			".gitignore":  true,
			"LICENSE.txt": true,
		},
		IgnoredExtensions: map[string]bool{"exe": true},
		AIExtensions:      map[string]bool{"py": true},
	}
}

// Scanner reconciles the file registry against the file system
type Scanner struct {
	storage storage.Storage
	config  Config
}

// New creates a Scanner backed by the given storage
func New(store storage.Storage, config Config) *Scanner {
	if config.IgnoredFiles == nil {
		config.IgnoredFiles = map[string]bool{}
	}
	if config.IgnoredExtensions == nil {
		config.IgnoredExtensions = map[string]bool{}
	}
	if config.AIExtensions == nil {
		config.AIExtensions = map[string]bool{}
	}
	return &Scanner{storage: store, config: config}
}

// Eligible reports whether files with the given extension are annotated
func (sc *Scanner) Eligible(extension string) bool {
	return sc.config.AIExtensions[extension]
}

// discoverFiles enumerates project files, applying the ignore sets. Returned
// paths are relative to rootPath with forward slashes.
func (sc *Scanner) discoverFiles(rootPath string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			for _, dir := range sc.config.IgnoredDirs {
				if d.Name() == dir && path != rootPath {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if sc.config.IgnoredFiles[d.Name()] {
			return nil
		}
		if sc.config.IgnoredExtensions[Extension(path)] {
			return nil
		}

		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s: %w", rootPath, err)
	}

	return files, nil
}

// Reconcile synchronizes the registry with the current file system state:
// records for deleted paths are removed, changed files get their hash updated
// and the pending flag re-raised (for eligible extensions), and new files are
// inserted. Existing annotation data survives until new results overwrite it.
// Returns the full post-reconciliation record set.
func (sc *Scanner) Reconcile(ctx context.Context, project *storage.Project) ([]*storage.FileRecord, error) {
	livePaths, err := sc.discoverFiles(project.RootPath)
	if err != nil {
		return nil, err
	}

	tx, err := sc.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.DeleteFilesExcept(ctx, project.ID, livePaths); err != nil {
		return nil, err
	}

	for _, relPath := range livePaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := sc.reconcileFile(ctx, tx, project, relPath); err != nil {
			return nil, fmt.Errorf("failed to reconcile %s: %w", relPath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
	}

	project.TotalFiles = len(livePaths)
	project.LastSyncedAt = time.Now()
	if err := sc.storage.UpdateProject(ctx, project); err != nil {
		return nil, err
	}

	return sc.storage.ListFiles(ctx, project.ID)
}

// reconcileFile updates or inserts the registry record for one live file
func (sc *Scanner) reconcileFile(ctx context.Context, tx storage.Tx, project *storage.Project, relPath string) error {
	fullPath := filepath.Join(project.RootPath, filepath.FromSlash(relPath))

	info, err := os.Stat(fullPath)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return err
	}

	hash := HashBytes(content)
	extension := Extension(relPath)
	eligible := sc.Eligible(extension)

	existing, err := tx.GetFile(ctx, project.ID, relPath)
	if err != nil && err != storage.ErrNotFound {
		return err
	}

	if existing != nil {
		if existing.ContentHash == hash {
			if sc.config.RetryFailed && existing.LastError != nil && eligible && !existing.NeedsAIUpdate {
				existing.NeedsAIUpdate = true
				return tx.UpsertFile(ctx, existing)
			}
			// Unchanged; no write keeps reconciliation idempotent
			return nil
		}

		// Content changed: refresh hash and metadata, re-raise the pending
		// flag for eligible files. Old annotation data stays visible until
		// new results arrive.
		existing.ContentHash = hash
		existing.SizeBytes = info.Size()
		existing.ModTime = info.ModTime()
		existing.IsBinary = IsBinary(content)
		if eligible {
			existing.NeedsAIUpdate = true
			existing.LineCount = CountLines(string(content))
		}
		return tx.UpsertFile(ctx, existing)
	}

	record := &storage.FileRecord{
		ProjectID:     project.ID,
		FilePath:      relPath,
		Name:          filepath.Base(relPath),
		ContentHash:   hash,
		Extension:     extension,
		SizeBytes:     info.Size(),
		ModTime:       info.ModTime(),
		Language:      Language(relPath),
		IsBinary:      IsBinary(content),
		NeedsAIUpdate: eligible,
		Funcs:         []storage.FuncInfo{},
	}
	if eligible {
		record.LineCount = CountLines(string(content))
	}
	return tx.UpsertFile(ctx, record)
}

// GetOrCreateProject retrieves the project row for rootPath, creating it on
// first use
func (sc *Scanner) GetOrCreateProject(ctx context.Context, rootPath string) (*storage.Project, error) {
	project, err := sc.storage.GetProject(ctx, rootPath)
	if err == nil {
		return project, nil
	}
	if err != storage.ErrNotFound {
		return nil, err
	}

	project = &storage.Project{RootPath: rootPath}
	if err := sc.storage.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// EnsureStoreDir creates the project-local store directory and returns its path
func EnsureStoreDir(projectPath string) (string, error) {
	dir := filepath.Join(projectPath, StoreDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create store directory: %w", err)
	}
	return dir, nil
}

// ignored reports whether any segment of relPath matches an ignored directory
// or file name
func (sc *Scanner) ignored(relPath string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(relPath), "/") {
		if segment == "" {
			continue
		}
		for _, dir := range sc.config.IgnoredDirs {
			if segment == dir {
				return true
			}
		}
	}
	return false
}
