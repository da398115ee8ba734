package annotator

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// stdout carries the protocol stream, so package diagnostics go to stderr
var logger = log.New(os.Stderr, "[annotator] ", log.LstdFlags)

func logf(format string, args ...any) {
	logger.Printf(format, args...)
}

// ProgressFunc receives pipeline progress. percent is 0-100 over the whole
// run; message names the unit just finished.
type ProgressFunc func(percent int, message string)

// Tracker converts per-unit completions into overall run progress. The total
// is the pending file count plus one unit for project synthesis, so progress
// reaches 100 only after synthesis reports in.
type Tracker struct {
	mu        sync.Mutex
	total     int
	processed int
	report    ProgressFunc
}

// NewTracker creates a Tracker over total units. A nil report is allowed and
// makes every update a no-op.
func NewTracker(total int, report ProgressFunc) *Tracker {
	if total < 1 {
		total = 1
	}
	if report == nil {
		report = func(int, string) {}
	}
	return &Tracker{total: total, report: report}
}

// Update marks one unit complete and reports the new percentage
func (t *Tracker) Update(message string) {
	t.mu.Lock()
	if t.processed < t.total {
		t.processed++
	}
	percent := t.processed * 100 / t.total
	processed, total := t.processed, t.total
	t.mu.Unlock()

	t.report(percent, fmt.Sprintf("%s (%d/%d)", message, processed, total))
}

// Processed returns how many units have completed so far
func (t *Tracker) Processed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processed
}
