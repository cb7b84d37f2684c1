// Package cache provides the local file-backed entity cache used to avoid
// redundant API calls between runs.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	perrors "github.com/excelcw/dtools-pull/internal/errors"
)

// Kind namespaces cache keys by entity type so keys can never collide across
// kinds.
type Kind string

const (
	KindTimeEntries     Kind = "TimeEntries"
	KindOpportunityList Kind = "OpportunityList"
	KindDetail          Kind = "OpportunityDetails"
	KindQuote           Kind = "QuoteDetails"
	KindChangeOrder     Kind = "ChangeDetails"
)

// Store is a per-entity key/value cache with load-or-miss semantics. Load
// returns ErrCacheMiss when the key is absent or its content cannot be
// parsed; both degrade to a live fetch, never a fatal error.
type Store interface {
	Load(kind Kind, key string, v any) error
	Save(kind Kind, key string, v any) error
}

// FileStore keeps one JSON document per entity under a per-kind
// subdirectory. A successful live fetch always overwrites the entry for its
// key (write-through), so the cache converges on the last thing the API
// returned.
type FileStore struct {
	root   string
	logger zerolog.Logger
}

// NewFileStore creates the per-kind subdirectories under root.
func NewFileStore(root string, logger zerolog.Logger) (*FileStore, error) {
	for _, kind := range []Kind{KindTimeEntries, KindOpportunityList, KindDetail, KindQuote, KindChangeOrder} {
		if err := os.MkdirAll(filepath.Join(root, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir for %s: %w", kind, err)
		}
	}
	return &FileStore{
		root:   root,
		logger: logger.With().Str("component", "cache").Logger(),
	}, nil
}

func (s *FileStore) path(kind Kind, key string) string {
	return filepath.Join(s.root, string(kind), key+".json")
}

// Load reads a cached entity into v. Absent or unparsable files are a miss.
func (s *FileStore) Load(kind Kind, key string, v any) error {
	path := s.path(kind, key)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("file", path).Msg("cache read failed")
		}
		return perrors.ErrCacheMiss
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn().Err(err).Str("file", path).Msg("cache entry corrupt")
		return perrors.ErrCacheMiss
	}
	return nil
}

// Save writes an entity to the cache. Failures are logged and swallowed —
// a cache write is never worth aborting a run for.
func (s *FileStore) Save(kind Kind, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn().Err(err).Str("kind", string(kind)).Str("key", key).Msg("cache encode failed")
		return nil
	}
	if err := os.WriteFile(s.path(kind, key), data, 0o644); err != nil {
		s.logger.Warn().Err(err).Str("kind", string(kind)).Str("key", key).Msg("cache write failed")
	}
	return nil
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemoryStore creates an empty in-memory cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func memKey(kind Kind, key string) string {
	return string(kind) + "/" + key
}

// Load reads a cached entity into v, or returns ErrCacheMiss.
func (s *MemoryStore) Load(kind Kind, key string, v any) error {
	s.mu.Lock()
	data, ok := s.entries[memKey(kind, key)]
	s.mu.Unlock()
	if !ok {
		return perrors.ErrCacheMiss
	}
	if err := json.Unmarshal(data, v); err != nil {
		return perrors.ErrCacheMiss
	}
	return nil
}

// Save stores an entity.
func (s *MemoryStore) Save(kind Kind, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	s.entries[memKey(kind, key)] = data
	s.mu.Unlock()
	return nil
}
