// Package history persists finished task results as one JSON file per
// session, with atomic writes and an exclusive lock around every operation.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrz1836/deskpilot/internal/constants"
	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/flock"
)

// SchemaVersion is written into every record.
const SchemaVersion = 1

const (
	dirPerm  = 0o750
	filePerm = 0o600
	lockName = ".lock"
	fileExt  = ".json"
)

// Store persists and retrieves task results.
type Store interface {
	// Save writes result under its session ID, replacing any previous record.
	Save(ctx context.Context, result *domain.TaskResult) error

	// Get returns the result for sessionID or ErrSessionNotFound.
	Get(ctx context.Context, sessionID string) (*domain.TaskResult, error)

	// List returns every stored result, newest first.
	List(ctx context.Context) ([]*domain.TaskResult, error)

	// Delete removes one record.
	Delete(ctx context.Context, sessionID string) error

	// Clear removes every record and returns how many were removed.
	Clear(ctx context.Context) (int, error)
}

// record is the on-disk envelope.
type record struct {
	SchemaVersion int                `json:"schema_version"`
	Result        *domain.TaskResult `json:"result"`
}

// FileStore implements Store on the local filesystem.
type FileStore struct {
	dir    string
	logger zerolog.Logger
}

var _ Store = (*FileStore)(nil)

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger sets the logger used for skipped records.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *FileStore) { s.logger = logger }
}

// NewFileStore creates a store rooted at dir. The directory is created on
// the first write.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("failed to create history store: %w: directory is empty", dperrors.ErrInvalidParameter)
	}
	s := &FileStore{dir: dir, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+fileExt)
}

// lock creates the store directory and takes the store-wide lock.
func (s *FileStore) lock(ctx context.Context) (*flock.Lock, error) {
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return flock.Acquire(ctx, filepath.Join(s.dir, lockName), constants.LockTimeout)
}

// Save writes result atomically.
func (s *FileStore) Save(ctx context.Context, result *domain.TaskResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("failed to save session: %w: result is nil", dperrors.ErrInvalidParameter)
	}
	if !validID(result.SessionID) {
		return fmt.Errorf("failed to save session: %w: invalid session id %q", dperrors.ErrInvalidParameter, result.SessionID)
	}

	data, err := json.MarshalIndent(record{SchemaVersion: SchemaVersion, Result: result}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to save session '%s': %w", result.SessionID, err)
	}

	lock, err := s.lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to save session '%s': %w", result.SessionID, err)
	}
	defer func() { _ = lock.Release() }()

	if err := atomicWrite(s.path(result.SessionID), data); err != nil {
		return fmt.Errorf("failed to save session '%s': %w", result.SessionID, err)
	}
	return nil
}

// Get reads one record.
func (s *FileStore) Get(ctx context.Context, sessionID string) (*domain.TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validID(sessionID) {
		return nil, fmt.Errorf("failed to get session '%s': %w", sessionID, dperrors.ErrSessionNotFound)
	}
	if _, err := os.Stat(s.path(sessionID)); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to get session '%s': %w", sessionID, dperrors.ErrSessionNotFound)
	}

	lock, err := s.lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get session '%s': %w", sessionID, err)
	}
	defer func() { _ = lock.Release() }()

	return s.read(sessionID)
}

func (s *FileStore) read(id string) (*domain.TaskResult, error) {
	data, err := os.ReadFile(s.path(id)) //#nosec G304 -- id is a validated UUID
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to get session '%s': %w", id, dperrors.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to read session '%s': %w", id, err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse session '%s': corrupted history file: %w", id, err)
	}
	if rec.Result == nil {
		return nil, fmt.Errorf("failed to parse session '%s': corrupted history file: no result", id)
	}
	return rec.Result, nil
}

// ids lists the session IDs present on disk.
func (s *FileStore) ids() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		if id := strings.TrimSuffix(name, fileExt); validID(id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// List returns every readable record sorted by start time, newest first.
// Corrupted files are skipped with a warning.
func (s *FileStore) List(ctx context.Context) ([]*domain.TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.dir); errors.Is(err, fs.ErrNotExist) {
		return []*domain.TaskResult{}, nil
	}

	lock, err := s.lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = lock.Release() }()

	ids, err := s.ids()
	if err != nil {
		return nil, err
	}
	results := make([]*domain.TaskResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := s.read(id)
		if err != nil {
			s.logger.Warn().Err(err).Str("session_id", id).Msg("skipping unreadable history file")
			continue
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].StartedAt.After(results[j].StartedAt)
	})
	return results, nil
}

// Delete removes one record.
func (s *FileStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validID(sessionID) {
		return fmt.Errorf("failed to delete session '%s': %w", sessionID, dperrors.ErrSessionNotFound)
	}

	lock, err := s.lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete session '%s': %w", sessionID, err)
	}
	defer func() { _ = lock.Release() }()

	if err := os.Remove(s.path(sessionID)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete session '%s': %w", sessionID, dperrors.ErrSessionNotFound)
		}
		return fmt.Errorf("failed to delete session '%s': %w", sessionID, err)
	}
	return nil
}

// Clear removes every record.
func (s *FileStore) Clear(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if _, err := os.Stat(s.dir); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}

	lock, err := s.lock(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear sessions: %w", err)
	}
	defer func() { _ = lock.Release() }()

	ids, err := s.ids()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("failed to clear sessions: %w", err)
		}
		removed++
	}
	return removed, nil
}

// atomicWrite writes data to a temp file, syncs it and renames it over path.
func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
