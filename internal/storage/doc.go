// Package storage persists per-project file records and project summaries in
// a SQLite database stored inside the project's .nextcode directory.
//
// Two keyed collections are maintained: files (keyed by relative path within a
// project) and project_summaries (one row per project, overwritten wholesale on
// every refresh). Annotation-bearing fields of a file record (summary, overview,
// funcs) are always replaced together in a single statement, so concurrent
// readers never observe a partially updated record.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(filepath.Join(dir, ".nextcode", "nextcode.db"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	files, err := store.ListPendingFiles(ctx, project.ID)
//
// # Durability
//
// The database runs in WAL mode and every logical write is committed before
// the caller proceeds to dependent work. Multi-write operations (reconcile
// deletions plus upserts) can use BeginTx for atomicity.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with the
// cgo_sqlite tag switches to github.com/mattn/go-sqlite3.
package storage
