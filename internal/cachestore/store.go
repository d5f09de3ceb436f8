// Package cachestore is the durable symbol -> snapshot cache shared by every
// process of the dashboard. The whole store lives in one file that is loaded
// on every read and atomically replaced on every write.
package cachestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"marketpulse/internal/freshness"
	"marketpulse/internal/model"
)

// Entry is one cached payload and the UTC time it was fetched
type Entry struct {
	Key       string         `json:"key"`
	Payload   model.Snapshot `json:"payload"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Record is a key/payload pair submitted for storage
type Record struct {
	Key     string
	Payload model.Snapshot
}

// Stats partitions the stored entries by current TTL validity
type Stats struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Expired int `json:"expired"`
}

// Options configures a Store
type Options struct {
	// Path is the data file. The lock file is Path + ".lock".
	Path string

	// Fs holds the data file. Defaults to the OS filesystem.
	// Locking always uses the OS filesystem.
	Fs afero.Fs

	// SigningKey enables HMAC-SHA256 integrity checks when non-empty
	SigningKey []byte

	Policy *freshness.Policy
	Logger *slog.Logger
	Now    func() time.Time
}

// Store is a concurrency-safe handle on the durable cache.
// Readers share a lock; writers hold an exclusive lock across the whole
// load-mutate-persist cycle, so concurrent writers serialise and the last
// one wins at whole-store granularity.
type Store struct {
	path   string
	lock   fileLock
	fs     afero.Fs
	key    []byte
	policy *freshness.Policy
	logger *slog.Logger
	now    func() time.Time

	// mu orders goroutines sharing this handle; the file lock orders handles and processes
	mu sync.RWMutex
}

// Open prepares a store handle. The data file is created lazily on first write.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("cache path is required")
	}
	if opts.Policy == nil {
		return nil, errors.New("freshness policy is required")
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	dir := filepath.Dir(opts.Path)
	if err := opts.Fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory %s: %w", dir, err)
	}

	return &Store{
		path:   opts.Path,
		lock:   fileLock{path: opts.Path + ".lock"},
		fs:     opts.Fs,
		key:    opts.SigningKey,
		policy: opts.Policy,
		logger: opts.Logger,
		now:    opts.Now,
	}, nil
}

// Path returns the data file location
func (s *Store) Path() string {
	return s.path
}

// Get returns the raw entry for key regardless of age
func (s *Store) Get(ctx context.Context, key string) (Entry, bool) {
	st, err := s.read(ctx)
	if err != nil {
		s.logger.Warn("cache read failed", "key", key, "error", err)
		return Entry{}, false
	}
	e, ok := st.Entries[key]
	return e, ok
}

// GetMany partitions keys into fresh hits and misses. An entry older than its
// TTL is a miss. Both outputs keep the caller's input order.
func (s *Store) GetMany(ctx context.Context, keys []string) ([]Entry, []string) {
	st, err := s.read(ctx)
	if err != nil {
		s.logger.Warn("cache read failed, treating all keys as missing", "keys", len(keys), "error", err)
		misses := make([]string, len(keys))
		copy(misses, keys)
		return nil, misses
	}

	now := s.now()
	hits := make([]Entry, 0, len(keys))
	var misses []string
	for _, k := range keys {
		e, ok := st.Entries[k]
		if ok && !s.policy.ShouldRefresh(e.FetchedAt, now) {
			hits = append(hits, e)
			continue
		}
		misses = append(misses, k)
	}
	return hits, misses
}

// Put stores payload under key with FetchedAt set to now
func (s *Store) Put(ctx context.Context, key string, payload model.Snapshot) error {
	return s.PutMany(ctx, []Record{{Key: key, Payload: payload}})
}

// PutMany stores all records in a single load-mutate-persist cycle.
// On error the previously persisted store is left untouched.
func (s *Store) PutMany(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r.Key == "" {
			return errors.New("cache key must not be empty")
		}
	}

	return s.update(ctx, func(st *diskStore, now time.Time) {
		for _, r := range records {
			p := r.Payload
			p.Key = r.Key
			st.Entries[r.Key] = Entry{Key: r.Key, Payload: p, FetchedAt: now}
		}
	})
}

// Import writes entries keeping their own FetchedAt and returns how many were
// written. Used by one-off conversions of older cache layouts; a zero FetchedAt
// is replaced by now. An entry already stored with a later FetchedAt is kept.
func (s *Store) Import(ctx context.Context, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	written := 0
	err := s.update(ctx, func(st *diskStore, now time.Time) {
		for _, e := range entries {
			if e.Key == "" {
				continue
			}
			e.Payload.Key = e.Key
			if e.FetchedAt.IsZero() {
				e.FetchedAt = now
			}
			e.FetchedAt = e.FetchedAt.UTC()
			if cur, ok := st.Entries[e.Key]; ok && cur.FetchedAt.After(e.FetchedAt) {
				s.logger.Debug("keeping newer cached entry", "key", e.Key, "cached_at", cur.FetchedAt, "imported_at", e.FetchedAt)
				continue
			}
			st.Entries[e.Key] = e
			written++
		}
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// Clear removes the durable store entirely
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock.exclusive(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	s.logger.Info("cache cleared", "path", s.path)
	return nil
}

// Stats counts entries by validity at the current time
func (s *Store) Stats(ctx context.Context) Stats {
	st, err := s.read(ctx)
	if err != nil {
		s.logger.Warn("cache read failed", "error", err)
		return Stats{}
	}

	now := s.now()
	stats := Stats{Total: len(st.Entries)}
	for _, e := range st.Entries {
		if s.policy.ShouldRefresh(e.FetchedAt, now) {
			stats.Expired++
		} else {
			stats.Valid++
		}
	}
	return stats
}

// Keys lists stored keys in sorted order
func (s *Store) Keys(ctx context.Context) []string {
	st, err := s.read(ctx)
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(st.Entries))
	for k := range st.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// read loads the store under a shared lock. Only lock failures are errors;
// an unreadable file degrades to an empty store.
func (s *Store) read(ctx context.Context) (*diskStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unlock, err := s.lock.shared(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.load(), nil
}

func (s *Store) update(ctx context.Context, mutate func(st *diskStore, now time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock.exclusive(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	st := s.load()
	now := s.now().UTC()
	mutate(st, now)
	st.LastUpdated = now

	if err := s.persist(st); err != nil {
		s.logger.Error("cache write failed", "path", s.path, "error", err)
		return err
	}
	return nil
}

// load must be called with a lock held
func (s *Store) load() *diskStore {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cache file unreadable, starting empty", "path", s.path, "error", err)
		}
		return emptyStore()
	}
	if len(data) == 0 {
		return emptyStore()
	}

	st, err := decode(data, s.key)
	if err != nil {
		s.logger.Warn("cache file corrupt, starting empty", "path", s.path, "error", err)
		return emptyStore()
	}
	if st.Version != SchemaVersion {
		s.logger.Warn("cache version mismatch, starting empty",
			"path", s.path,
			"found", st.Version,
			"expected", SchemaVersion)
		return emptyStore()
	}
	return st
}

// persist writes to a temp file in the same directory and renames it over the
// data file, so readers see either the old or the new store, never a mix.
func (s *Store) persist(st *diskStore) error {
	st.Version = SchemaVersion
	data, err := encode(st, s.key)
	if err != nil {
		return err
	}

	tmp, err := afero.TempFile(s.fs, filepath.Dir(s.path), ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := s.fs.Rename(tmpPath, s.path); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
