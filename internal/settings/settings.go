// Package settings holds mutable process-wide configuration for the
// annotation service. The store is constructed once at startup and passed
// explicitly to every component that needs it; values are read fresh on every
// service call, so a mid-run update takes effect on the next request.
package settings

import "sync"

// Settings is the configuration surface exposed to the presentation layer
type Settings struct {
	APIKey   string `json:"apiKey"`
	BaseURL  string `json:"baseUrl"`
	Language string `json:"language"` // Prompt language preference, e.g. "EN" or "ZH"
}

// Store is a concurrency-safe settings holder
type Store struct {
	mu       sync.RWMutex
	settings Settings
}

// NewStore creates a Store seeded with initial values
func NewStore(initial Settings) *Store {
	return &Store{settings: initial}
}

// Get returns a snapshot of the current settings
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update overwrites the fields present in patch, leaving empty fields as-is
func (s *Store) Update(patch Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patch.APIKey != "" {
		s.settings.APIKey = patch.APIKey
	}
	if patch.BaseURL != "" {
		s.settings.BaseURL = patch.BaseURL
	}
	if patch.Language != "" {
		s.settings.Language = patch.Language
	}
}
