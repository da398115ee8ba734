package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextcodehq/nextcode-mcp/internal/storage"
)

func setupTestScanner(t *testing.T, config Config) (*Scanner, *storage.SQLiteStorage) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, config), store
}

func writeFile(t *testing.T, root, relPath, content string) {
	full := filepath.Join(root, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func reconcileProject(t *testing.T, sc *Scanner, root string) (*storage.Project, []*storage.FileRecord) {
	ctx := context.Background()
	project, err := sc.GetOrCreateProject(ctx, root)
	require.NoError(t, err)
	records, err := sc.Reconcile(ctx, project)
	require.NoError(t, err)
	return project, records
}

func recordByPath(records []*storage.FileRecord, path string) *storage.FileRecord {
	for _, record := range records {
		if record.FilePath == path {
			return record
		}
	}
	return nil
}

func TestReconcile_NewFiles(t *testing.T) {
	sc, _ := setupTestScanner(t, DefaultConfig())
	root := t.TempDir()
	writeFile(t, root, "main.py", "print('hello')\n")
	writeFile(t, root, "notes.txt", "plain text\n")
	writeFile(t, root, "__init__.py", "")
	writeFile(t, root, ".git/config", "[core]\n")
	writeFile(t, root, "node_modules/pkg/index.js", "x\n")

	project, records := reconcileProject(t, sc, root)

	assert.Equal(t, 2, project.TotalFiles)
	require.Len(t, records, 2)

	py := recordByPath(records, "main.py")
	require.NotNil(t, py)
	assert.True(t, py.NeedsAIUpdate)
	assert.Equal(t, "python", py.Language)
	assert.Equal(t, 1, py.LineCount)
	assert.Len(t, py.ContentHash, 64)

	txt := recordByPath(records, "notes.txt")
	require.NotNil(t, txt)
	assert.False(t, txt.NeedsAIUpdate, "ineligible extensions are never queued")
}

func TestReconcile_Idempotent(t *testing.T) {
	sc, store := setupTestScanner(t, DefaultConfig())
	root := t.TempDir()
	writeFile(t, root, "main.py", "print('hello')\n")

	_, records := reconcileProject(t, sc, root)
	py := recordByPath(records, "main.py")
	require.NotNil(t, py)

	// Simulate a completed annotation
	py.NeedsAIUpdate = false
	py.Summary = "prints a greeting"
	require.NoError(t, store.UpsertFile(context.Background(), py))

	// A second sync over unchanged content must not re-queue the file
	_, records = reconcileProject(t, sc, root)
	py = recordByPath(records, "main.py")
	require.NotNil(t, py)
	assert.False(t, py.NeedsAIUpdate)
	assert.Equal(t, "prints a greeting", py.Summary)
}

func TestReconcile_ModTimeOnlyChange(t *testing.T) {
	sc, store := setupTestScanner(t, DefaultConfig())
	root := t.TempDir()
	writeFile(t, root, "main.py", "print('hello')\n")

	_, records := reconcileProject(t, sc, root)
	py := recordByPath(records, "main.py")
	require.NotNil(t, py)
	py.NeedsAIUpdate = false
	require.NoError(t, store.UpsertFile(context.Background(), py))

	// Rewriting identical content bumps mod time but not the hash
	writeFile(t, root, "main.py", "print('hello')\n")

	_, records = reconcileProject(t, sc, root)
	py = recordByPath(records, "main.py")
	require.NotNil(t, py)
	assert.False(t, py.NeedsAIUpdate, "mod time alone never triggers re-annotation")
}

func TestReconcile_ContentChange(t *testing.T) {
	sc, store := setupTestScanner(t, DefaultConfig())
	root := t.TempDir()
	writeFile(t, root, "main.py", "print('hello')\n")

	_, records := reconcileProject(t, sc, root)
	py := recordByPath(records, "main.py")
	require.NotNil(t, py)
	oldHash := py.ContentHash

	py.NeedsAIUpdate = false
	py.Summary = "prints a greeting"
	py.Funcs = []storage.FuncInfo{{FuncName: "main", AGLs: []storage.AGL{{Line: 1, Text: "#> 1. greet"}}}}
	require.NoError(t, store.UpsertFile(context.Background(), py))

	writeFile(t, root, "main.py", "print('hello')\nprint('world')\n")

	_, records = reconcileProject(t, sc, root)
	py = recordByPath(records, "main.py")
	require.NotNil(t, py)
	assert.True(t, py.NeedsAIUpdate)
	assert.NotEqual(t, oldHash, py.ContentHash)
	assert.Equal(t, 2, py.LineCount)
	// Stale annotations stay visible until new results arrive
	assert.Equal(t, "prints a greeting", py.Summary)
	assert.Len(t, py.Funcs, 1)
}

func TestReconcile_Deletion(t *testing.T) {
	sc, _ := setupTestScanner(t, DefaultConfig())
	root := t.TempDir()
	writeFile(t, root, "main.py", "print('hello')\n")
	writeFile(t, root, "old.py", "gone = True\n")

	_, records := reconcileProject(t, sc, root)
	require.Len(t, records, 2)

	require.NoError(t, os.Remove(filepath.Join(root, "old.py")))

	project, records := reconcileProject(t, sc, root)
	require.Len(t, records, 1)
	assert.Equal(t, "main.py", records[0].FilePath)
	assert.Equal(t, 1, project.TotalFiles)
}

func TestReconcile_RetryFailedPolicy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.py", "print('hello')\n")

	sc, store := setupTestScanner(t, DefaultConfig())
	_, records := reconcileProject(t, sc, root)
	py := recordByPath(records, "main.py")
	require.NotNil(t, py)

	// Simulate a failed annotation attempt
	msg := "annotation service failed"
	py.NeedsAIUpdate = false
	py.LastError = &msg
	require.NoError(t, store.UpsertFile(context.Background(), py))

	// Default policy: a failed file stays parked while its content is unchanged
	_, records = reconcileProject(t, sc, root)
	py = recordByPath(records, "main.py")
	require.NotNil(t, py)
	assert.False(t, py.NeedsAIUpdate)

	// Opting in re-queues it
	retryConfig := DefaultConfig()
	retryConfig.RetryFailed = true
	retrySc := New(store, retryConfig)
	_, records = reconcileProject(t, retrySc, root)
	py = recordByPath(records, "main.py")
	require.NotNil(t, py)
	assert.True(t, py.NeedsAIUpdate)
}

func TestFileTree(t *testing.T) {
	sc, _ := setupTestScanner(t, DefaultConfig())
	root := t.TempDir()
	writeFile(t, root, "src/app.py", "pass\n")
	writeFile(t, root, "README.md", "# hi\n")
	writeFile(t, root, ".git/config", "[core]\n")

	tree, err := sc.FileTree(root)
	require.NoError(t, err)
	assert.Equal(t, "/", tree.ID)
	assert.True(t, tree.IsDirectory)
	require.Len(t, tree.Children, 2)

	var names []string
	for _, child := range tree.Children {
		names = append(names, child.Name)
	}
	assert.ElementsMatch(t, []string{"src", "README.md"}, names)
}

func TestTextFileTree(t *testing.T) {
	sc, _ := setupTestScanner(t, DefaultConfig())
	root := t.TempDir()
	writeFile(t, root, "src/app.py", "pass\n")
	writeFile(t, root, "src/util.py", "pass\n")
	writeFile(t, root, "README.md", "# hi\n")

	text, err := sc.TextFileTree(root)
	require.NoError(t, err)

	lines := strings.Split(text, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, filepath.Base(root), lines[0])
	// Directories render before files at each level
	assert.Equal(t, "├── src", lines[1])
	assert.Equal(t, "│   ├── app.py", lines[2])
	assert.Equal(t, "│   └── util.py", lines[3])
	assert.Equal(t, "└── README.md", lines[4])
}

func TestHashBytes(t *testing.T) {
	a := HashBytes([]byte("hello"))
	b := HashBytes([]byte("hello"))
	c := HashBytes([]byte("hello "))

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestIsBinary(t *testing.T) {
	assert.False(t, IsBinary([]byte("plain ascii text\n")))
	assert.True(t, IsBinary([]byte{0x89, 'P', 'N', 'G'}))
	assert.True(t, IsBinary([]byte{'a', 0, 'b'}))
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, CountLines(""))
	assert.Equal(t, 0, CountLines("  \n\n"))
	assert.Equal(t, 1, CountLines("one line\n"))
	assert.Equal(t, 3, CountLines("a\nb\nc"))
}

func TestExtensionAndLanguage(t *testing.T) {
	assert.Equal(t, "py", Extension("src/App.PY"))
	assert.Equal(t, "", Extension("Makefile"))
	assert.Equal(t, "python", Language("app.py"))
	assert.Equal(t, "xyz", Language("data.xyz"))
}
