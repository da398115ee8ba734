package annotator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/nextcodehq/nextcode-mcp/internal/llm"
	"github.com/nextcodehq/nextcode-mcp/internal/settings"
	"github.com/nextcodehq/nextcode-mcp/internal/storage"
)

// DefaultConcurrency bounds how many file annotations are in flight at once.
// Deliberately small: it limits external-service load and each task holds one
// file's full numbered content in memory.
const DefaultConcurrency = 2

const defaultCacheSize = 1024

// Service is the annotation service dependency. *llm.Client satisfies it.
type Service interface {
	Complete(ctx context.Context, model, systemPrompt, userContent string) (json.RawMessage, error)
}

// Config contains annotator configuration
type Config struct {
	Concurrency   int    // Max in-flight file annotations (default 2)
	ChatModel     string // Model for file annotation and document condensing
	ReasonerModel string // Model for doc selection and graph inference
	CacheSize     int    // Annotation result cache entries (default 1024)
}

// Stats aggregates the outcome of one pipeline run
type Stats struct {
	FilesAnnotated int
	FilesFailed    int
	Duration       time.Duration
	ErrorMessages  []string
}

// Annotator drives per-file annotation and project synthesis
type Annotator struct {
	storage  storage.Storage
	service  Service
	settings *settings.Store
	config   Config

	// cache maps content hash to a decoded annotation so re-seen identical
	// content never re-hits the service
	cache *lru.Cache[string, *llm.FileAnnotation]
}

// New creates an Annotator
func New(store storage.Storage, service Service, settingsStore *settings.Store, config Config) *Annotator {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.ChatModel == "" {
		config.ChatModel = llm.DefaultChatModel
	}
	if config.ReasonerModel == "" {
		config.ReasonerModel = llm.DefaultReasonerModel
	}
	if config.CacheSize <= 0 {
		config.CacheSize = defaultCacheSize
	}

	cache, err := lru.New[string, *llm.FileAnnotation](config.CacheSize)
	if err != nil {
		cache, _ = lru.New[string, *llm.FileAnnotation](defaultCacheSize)
	}

	return &Annotator{
		storage:  store,
		service:  service,
		settings: settingsStore,
		config:   config,
		cache:    cache,
	}
}

// NumberedContent renders file content with a filename header and a 1-based
// line number prefixed to every physical line, the form the annotation prompt
// expects line references against.
func NumberedContent(name, content string) string {
	lines := strings.Split(content, "\n")
	var b strings.Builder
	fmt.Fprintf(&b, "filename: %s\n", name)
	for i, line := range lines {
		fmt.Fprintf(&b, "%d: %s\n", i+1, line)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// AnnotateFile runs the full annotation round trip for one file: numbered
// rendering, service call, decode, persist. On success the record's summary,
// overview and funcs are replaced as one unit and the pending flag cleared.
// On failure the error is recorded on the record, the pending flag stays
// cleared (the file is not retried until its content changes), and the error
// propagates.
func (a *Annotator) AnnotateFile(ctx context.Context, project *storage.Project, record *storage.FileRecord, progress ProgressFunc) error {
	annotation, err := a.fetchAnnotation(ctx, project, record)
	if err != nil {
		a.recordFailure(ctx, record, err)
		progress(100, fmt.Sprintf("failed: %s", record.Name))
		return err
	}

	record.Summary = annotation.Summary
	record.Overview = annotation.Overview
	record.Funcs = annotation.Funcs
	record.NeedsAIUpdate = false
	record.LastError = nil
	record.ErrorAt = nil

	if err := a.storage.UpsertFile(ctx, record); err != nil {
		progress(100, fmt.Sprintf("failed: %s", record.Name))
		return fmt.Errorf("failed to persist annotation for %s: %w", record.FilePath, err)
	}

	progress(100, fmt.Sprintf("processed %s", record.Name))
	return nil
}

// fetchAnnotation returns the decoded annotation for a record, from cache
// when the same content hash has already been annotated this process.
func (a *Annotator) fetchAnnotation(ctx context.Context, project *storage.Project, record *storage.FileRecord) (*llm.FileAnnotation, error) {
	if cached, ok := a.cache.Get(record.ContentHash); ok {
		return cached, nil
	}

	fullPath := filepath.Join(project.RootPath, filepath.FromSlash(record.FilePath))
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", record.FilePath, err)
	}

	numbered := NumberedContent(record.Name, string(content))
	prompt := llm.Prompt(llm.PromptFileSummary, a.settings.Get().Language)

	raw, err := a.service.Complete(ctx, a.config.ChatModel, prompt, numbered)
	if err != nil {
		return nil, err
	}

	annotation, err := llm.DecodeFileAnnotation(raw)
	if err != nil {
		return nil, err
	}

	a.cache.Add(record.ContentHash, annotation)
	return annotation, nil
}

// recordFailure persists the error on the record. The pending flag is cleared
// so the file is not re-attempted automatically; the scanner's RetryFailed
// policy can opt back in.
func (a *Annotator) recordFailure(ctx context.Context, record *storage.FileRecord, cause error) {
	msg := cause.Error()
	now := time.Now()
	record.NeedsAIUpdate = false
	record.LastError = &msg
	record.ErrorAt = &now
	if err := a.storage.UpsertFile(ctx, record); err != nil {
		logf("failed to record annotation error for %s: %v", record.FilePath, err)
	}
}

// Run annotates every pending record under the concurrency cap. Failures are
// isolated per file: one file's failure never aborts its siblings. Completion
// order between files is not guaranteed.
func (a *Annotator) Run(ctx context.Context, project *storage.Project, pending []*storage.FileRecord, tracker *Tracker) *Stats {
	start := time.Now()
	stats := &Stats{ErrorMessages: make([]string, 0)}

	var g errgroup.Group
	g.SetLimit(a.config.Concurrency)

	var mu sync.Mutex
	for _, record := range pending {
		g.Go(func() error {
			err := a.AnnotateFile(ctx, project, record, func(percent int, message string) {
				tracker.Update(message)
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.FilesFailed++
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", record.FilePath, err))
			} else {
				stats.FilesAnnotated++
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.Duration = time.Since(start)
	return stats
}

// BehaviorDescriptions collects "path: behavior" lines for every annotated
// file, the per-file input of the final synthesis round.
func (a *Annotator) BehaviorDescriptions(ctx context.Context, projectID int64) (string, error) {
	files, err := a.storage.ListFiles(ctx, projectID)
	if err != nil {
		return "", err
	}

	var lines []string
	for _, file := range files {
		if file.Overview.Behavior == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", file.FilePath, file.Overview.Behavior))
	}
	return strings.Join(lines, "\n"), nil
}
