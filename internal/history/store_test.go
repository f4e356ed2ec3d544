package history_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/history"
)

func newResult(task string, started time.Time) *domain.TaskResult {
	return &domain.TaskResult{
		Success:        true,
		SessionID:      uuid.NewString(),
		Task:           task,
		Status:         domain.StatusCompleted,
		StepsCompleted: 1,
		StepsTaken:     2,
		ExecutionLog: []domain.ExecutionLogEntry{
			{Step: 1, Action: "mouse_click", Outcome: "Clicked at (1, 2)", Success: true, Timestamp: started},
			{Step: 2, Action: "complete", Outcome: "Task completed successfully!", Success: true, Timestamp: started},
		},
		Message:    "Task completed!",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}
}

func newStore(t *testing.T) *history.FileStore {
	t.Helper()
	s, err := history.NewFileStore(filepath.Join(t.TempDir(), "history"))
	require.NoError(t, err)
	return s
}

func TestNewFileStore_EmptyDir(t *testing.T) {
	t.Parallel()

	_, err := history.NewFileStore(" ")
	require.ErrorIs(t, err, dperrors.ErrInvalidParameter)
}

func TestFileStore_SaveGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	want := newResult("open notepad", time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))

	require.NoError(t, s.Save(ctx, want))
	info, err := os.Stat(filepath.Join(s.Dir(), want.SessionID+".json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	_, err = os.Stat(filepath.Join(s.Dir(), want.SessionID+".json.tmp"))
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")

	got, err := s.Get(ctx, want.SessionID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// a second save replaces the record
	want.Message = "changed"
	require.NoError(t, s.Save(ctx, want))
	got, err = s.Get(ctx, want.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "changed", got.Message)
}

func TestFileStore_SaveRejectsInvalid(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)

	require.ErrorIs(t, s.Save(ctx, nil), dperrors.ErrInvalidParameter)

	r := newResult("x", time.Now())
	r.SessionID = "../escape"
	require.ErrorIs(t, s.Save(ctx, r), dperrors.ErrInvalidParameter)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, s.Save(cancelled, newResult("x", time.Now())), context.Canceled)
}

func TestFileStore_GetMissing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)

	_, err := s.Get(ctx, uuid.NewString())
	require.ErrorIs(t, err, dperrors.ErrSessionNotFound)

	_, err = s.Get(ctx, "not-a-uuid")
	require.ErrorIs(t, err, dperrors.ErrSessionNotFound)
}

func TestFileStore_List(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)

	empty, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	older := newResult("older", base)
	newer := newResult("newer", base.Add(time.Hour))
	require.NoError(t, s.Save(ctx, older))
	require.NoError(t, s.Save(ctx, newer))

	// stray and corrupted files are skipped
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("hi"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), uuid.NewString()+".json"), []byte("{broken"), 0o600))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Task)
	assert.Equal(t, "older", list[1].Task)
}

func TestFileStore_DeleteAndClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	a := newResult("a", time.Now())
	b := newResult("b", time.Now())
	c := newResult("c", time.Now())
	for _, r := range []*domain.TaskResult{a, b, c} {
		require.NoError(t, s.Save(ctx, r))
	}

	require.NoError(t, s.Delete(ctx, a.SessionID))
	require.ErrorIs(t, s.Delete(ctx, a.SessionID), dperrors.ErrSessionNotFound)
	require.ErrorIs(t, s.Delete(ctx, "bogus"), dperrors.ErrSessionNotFound)

	n, err = s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFileStore_CorruptedGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	id := uuid.NewString()
	require.NoError(t, os.MkdirAll(s.Dir(), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), id+".json"), []byte(`{"schema_version":1}`), 0o600))

	_, err := s.Get(ctx, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupted history file")
}
