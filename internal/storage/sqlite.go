package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Project operations

func (s *SQLiteStorage) createProjectWithQuerier(ctx context.Context, q querier, project *Project) error {
	query := `
		INSERT INTO projects (root_path, total_files, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query, project.RootPath, project.TotalFiles, now, now)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	project.ID = id
	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateProject(ctx context.Context, project *Project) error {
	return s.createProjectWithQuerier(ctx, s.querier(), project)
}

func (s *SQLiteStorage) getProjectWithQuerier(ctx context.Context, q querier, rootPath string) (*Project, error) {
	query := `
		SELECT id, root_path, total_files, last_synced_at, created_at, updated_at
		FROM projects
		WHERE root_path = ?
	`
	var project Project
	var lastSyncedAt sql.NullTime
	err := q.QueryRowContext(ctx, query, rootPath).Scan(
		&project.ID, &project.RootPath, &project.TotalFiles,
		&lastSyncedAt, &project.CreatedAt, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastSyncedAt.Valid {
		project.LastSyncedAt = lastSyncedAt.Time
	}
	return &project, nil
}

func (s *SQLiteStorage) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	return s.getProjectWithQuerier(ctx, s.querier(), rootPath)
}

func (s *SQLiteStorage) updateProjectWithQuerier(ctx context.Context, q querier, project *Project) error {
	query := `
		UPDATE projects
		SET total_files = ?, last_synced_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	_, err := q.ExecContext(ctx, query, project.TotalFiles, project.LastSyncedAt, now, project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpdateProject(ctx context.Context, project *Project) error {
	return s.updateProjectWithQuerier(ctx, s.querier(), project)
}

// File operations

// upsertFileWithQuerier replaces the full record value on conflict so readers
// never observe a half-written record.
func (s *SQLiteStorage) upsertFileWithQuerier(ctx context.Context, q querier, file *FileRecord) error {
	funcsJSON, err := json.Marshal(file.Funcs)
	if err != nil {
		return fmt.Errorf("failed to encode funcs: %w", err)
	}
	if file.Funcs == nil {
		funcsJSON = []byte("[]")
	}

	query := `
		INSERT INTO files (project_id, file_path, name, content_hash, extension, size_bytes,
		                   mod_time, language, line_count, is_binary, needs_ai_update,
		                   summary, overview_behavior, overview_markdown, funcs,
		                   last_error, error_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, file_path) DO UPDATE SET
			name = excluded.name,
			content_hash = excluded.content_hash,
			extension = excluded.extension,
			size_bytes = excluded.size_bytes,
			mod_time = excluded.mod_time,
			language = excluded.language,
			line_count = excluded.line_count,
			is_binary = excluded.is_binary,
			needs_ai_update = excluded.needs_ai_update,
			summary = excluded.summary,
			overview_behavior = excluded.overview_behavior,
			overview_markdown = excluded.overview_markdown,
			funcs = excluded.funcs,
			last_error = excluded.last_error,
			error_at = excluded.error_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	var errorAt interface{}
	if file.ErrorAt != nil {
		errorAt = *file.ErrorAt
	}
	err = q.QueryRowContext(ctx, query,
		file.ProjectID, file.FilePath, file.Name, file.ContentHash, file.Extension,
		file.SizeBytes, file.ModTime, file.Language, file.LineCount, file.IsBinary,
		file.NeedsAIUpdate, file.Summary, file.Overview.Behavior, file.Overview.Markdown,
		string(funcsJSON), file.LastError, errorAt, now, now).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	file.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *FileRecord) error {
	return s.upsertFileWithQuerier(ctx, s.querier(), file)
}

const fileColumns = `id, project_id, file_path, name, content_hash, extension, size_bytes,
       mod_time, language, line_count, is_binary, needs_ai_update,
       summary, overview_behavior, overview_markdown, funcs,
       last_error, error_at, created_at, updated_at`

// scanFileRow scans one file row from either a *sql.Row or *sql.Rows
func scanFileRow(scan func(dest ...interface{}) error) (*FileRecord, error) {
	var file FileRecord
	var funcsJSON string
	var lastError sql.NullString
	var errorAt sql.NullTime

	err := scan(
		&file.ID, &file.ProjectID, &file.FilePath, &file.Name, &file.ContentHash,
		&file.Extension, &file.SizeBytes, &file.ModTime, &file.Language,
		&file.LineCount, &file.IsBinary, &file.NeedsAIUpdate,
		&file.Summary, &file.Overview.Behavior, &file.Overview.Markdown, &funcsJSON,
		&lastError, &errorAt, &file.CreatedAt, &file.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if funcsJSON != "" {
		if err := json.Unmarshal([]byte(funcsJSON), &file.Funcs); err != nil {
			return nil, fmt.Errorf("failed to decode funcs for %s: %w", file.FilePath, err)
		}
	}
	if lastError.Valid {
		file.LastError = &lastError.String
	}
	if errorAt.Valid {
		file.ErrorAt = &errorAt.Time
	}
	return &file, nil
}

func (s *SQLiteStorage) getFileWithQuerier(ctx context.Context, q querier, projectID int64, filePath string) (*FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE project_id = ? AND file_path = ?`
	row := q.QueryRowContext(ctx, query, projectID, filePath)
	file, err := scanFileRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *SQLiteStorage) GetFile(ctx context.Context, projectID int64, filePath string) (*FileRecord, error) {
	return s.getFileWithQuerier(ctx, s.querier(), projectID, filePath)
}

func (s *SQLiteStorage) listFilesWithQuerier(ctx context.Context, q querier, projectID int64, pendingOnly bool) ([]*FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE project_id = ?`
	if pendingOnly {
		query += ` AND needs_ai_update = 1`
	}
	query += ` ORDER BY file_path`

	rows, err := q.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*FileRecord, 0)
	for rows.Next() {
		file, err := scanFileRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *SQLiteStorage) ListFiles(ctx context.Context, projectID int64) ([]*FileRecord, error) {
	return s.listFilesWithQuerier(ctx, s.querier(), projectID, false)
}

func (s *SQLiteStorage) ListPendingFiles(ctx context.Context, projectID int64) ([]*FileRecord, error) {
	return s.listFilesWithQuerier(ctx, s.querier(), projectID, true)
}

// deleteChunkSize bounds placeholders per DELETE statement; SQLite caps bind
// variables per statement, so large projects are deleted in chunks.
var deleteChunkSize = 500

// deleteFilesExceptWithQuerier removes every record whose path is not in the
// live set, handling on-disk deletions. Stale paths are computed in Go and
// deleted in bounded chunks so the live set's size never exceeds the bind
// variable limit.
func (s *SQLiteStorage) deleteFilesExceptWithQuerier(ctx context.Context, q querier, projectID int64, livePaths []string) (int, error) {
	live := make(map[string]bool, len(livePaths))
	for _, p := range livePaths {
		live[p] = true
	}

	// The cursor is fully drained and closed before any DELETE runs: the pool
	// is capped at one connection, which the open rows would otherwise hold.
	stale, err := func() ([]string, error) {
		rows, err := q.QueryContext(ctx, `SELECT file_path FROM files WHERE project_id = ?`, projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to list files for deletion: %w", err)
		}
		defer func() { _ = rows.Close() }()

		var stale []string
		for rows.Next() {
			var path string
			if err := rows.Scan(&path); err != nil {
				return nil, err
			}
			if !live[path] {
				stale = append(stale, path)
			}
		}
		return stale, rows.Err()
	}()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for start := 0; start < len(stale); start += deleteChunkSize {
		end := start + deleteChunkSize
		if end > len(stale) {
			end = len(stale)
		}
		chunk := stale[start:end]

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]
		query := `DELETE FROM files WHERE project_id = ? AND file_path IN (` + placeholders + `)`

		args := make([]interface{}, 0, len(chunk)+1)
		args = append(args, projectID)
		for _, p := range chunk {
			args = append(args, p)
		}

		result, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to delete files: %w", err)
		}
		n, _ := result.RowsAffected()
		deleted += int(n)
	}
	return deleted, nil
}

func (s *SQLiteStorage) DeleteFilesExcept(ctx context.Context, projectID int64, livePaths []string) (int, error) {
	return s.deleteFilesExceptWithQuerier(ctx, s.querier(), projectID, livePaths)
}

// Project summary operations

func (s *SQLiteStorage) upsertProjectSummaryWithQuerier(ctx context.Context, q querier, summary *ProjectSummary) error {
	modulesJSON, err := json.Marshal(summary.Modules)
	if err != nil {
		return fmt.Errorf("failed to encode module configs: %w", err)
	}
	if summary.Modules == nil {
		modulesJSON = []byte("[]")
	}

	query := `
		INSERT INTO project_summaries (project_id, graph, module_configs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			graph = excluded.graph,
			module_configs = excluded.module_configs,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err = q.QueryRowContext(ctx, query,
		summary.ProjectID, summary.Graph, string(modulesJSON), now, now).Scan(&summary.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert project summary: %w", err)
	}
	summary.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertProjectSummary(ctx context.Context, summary *ProjectSummary) error {
	return s.upsertProjectSummaryWithQuerier(ctx, s.querier(), summary)
}

func (s *SQLiteStorage) getProjectSummaryWithQuerier(ctx context.Context, q querier, projectID int64) (*ProjectSummary, error) {
	query := `
		SELECT id, project_id, graph, module_configs, created_at, updated_at
		FROM project_summaries
		WHERE project_id = ?
	`
	var summary ProjectSummary
	var modulesJSON string
	err := q.QueryRowContext(ctx, query, projectID).Scan(
		&summary.ID, &summary.ProjectID, &summary.Graph, &modulesJSON,
		&summary.CreatedAt, &summary.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if modulesJSON != "" {
		if err := json.Unmarshal([]byte(modulesJSON), &summary.Modules); err != nil {
			return nil, fmt.Errorf("failed to decode module configs: %w", err)
		}
	}
	return &summary, nil
}

func (s *SQLiteStorage) GetProjectSummary(ctx context.Context, projectID int64) (*ProjectSummary, error) {
	return s.getProjectSummaryWithQuerier(ctx, s.querier(), projectID)
}

// Transaction method implementations delegate to the shared querier helpers.

func (t *sqliteTx) CreateProject(ctx context.Context, project *Project) error {
	return t.storage.createProjectWithQuerier(ctx, t.querier(), project)
}

func (t *sqliteTx) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	return t.storage.getProjectWithQuerier(ctx, t.querier(), rootPath)
}

func (t *sqliteTx) UpdateProject(ctx context.Context, project *Project) error {
	return t.storage.updateProjectWithQuerier(ctx, t.querier(), project)
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *FileRecord) error {
	return t.storage.upsertFileWithQuerier(ctx, t.querier(), file)
}

func (t *sqliteTx) GetFile(ctx context.Context, projectID int64, filePath string) (*FileRecord, error) {
	return t.storage.getFileWithQuerier(ctx, t.querier(), projectID, filePath)
}

func (t *sqliteTx) ListFiles(ctx context.Context, projectID int64) ([]*FileRecord, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier(), projectID, false)
}

func (t *sqliteTx) ListPendingFiles(ctx context.Context, projectID int64) ([]*FileRecord, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier(), projectID, true)
}

func (t *sqliteTx) DeleteFilesExcept(ctx context.Context, projectID int64, livePaths []string) (int, error) {
	return t.storage.deleteFilesExceptWithQuerier(ctx, t.querier(), projectID, livePaths)
}

func (t *sqliteTx) UpsertProjectSummary(ctx context.Context, summary *ProjectSummary) error {
	return t.storage.upsertProjectSummaryWithQuerier(ctx, t.querier(), summary)
}

func (t *sqliteTx) GetProjectSummary(ctx context.Context, projectID int64) (*ProjectSummary, error) {
	return t.storage.getProjectSummaryWithQuerier(ctx, t.querier(), projectID)
}

func (t *sqliteTx) Close() error {
	return errors.New("cannot close storage from within a transaction")
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions are not supported")
}
