package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/history"
)

const (
	sessionA1 = "aaaaaaaa-0000-4000-8000-000000000001"
	sessionA2 = "aaaaaaaa-0000-4000-8000-000000000002"
	sessionB  = "bbbbbbbb-0000-4000-8000-000000000003"
)

func seedHistory(t *testing.T, env *testEnv) *history.FileStore {
	t.Helper()

	store, err := history.NewFileStore(env.cfg.Agent.HistoryDir)
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{sessionA1, sessionA2, sessionB} {
		started := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Save(context.Background(), &domain.TaskResult{
			Success:        id == sessionB,
			SessionID:      id,
			Task:           "open the start menu " + id[:4],
			Status:         domain.StatusCompleted,
			StepsCompleted: 1,
			StepsTaken:     2,
			Message:        "Task completed!",
			ExecutionLog: []domain.ExecutionLogEntry{
				{Step: 1, Action: "mouse_click", Reasoning: "click start", Outcome: "clicked", Success: true},
			},
			StartedAt:  started,
			FinishedAt: started.Add(3 * time.Second),
		}))
	}
	return store
}

func TestHistory_List(t *testing.T) {
	env := newTestEnv(t)

	stdout, stderr, err := env.execute(t, "history", "list", "-o", "json")
	requireNoError(t, err, stderr)
	assert.JSONEq(t, "[]", stdout)

	seedHistory(t, env)

	stdout, stderr, err = env.execute(t, "history", "list", "-o", "json", "--limit", "2")
	requireNoError(t, err, stderr)
	var results []domain.TaskResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 2)
	assert.Equal(t, sessionB, results[0].SessionID, "newest first")
	assert.Equal(t, sessionA2, results[1].SessionID)

	stdout, stderr, err = env.execute(t, "history", "list")
	requireNoError(t, err, stderr)
	assert.Contains(t, stdout, "bbbbbbbb")
	assert.NotContains(t, stdout, sessionB, "ids are shortened")
	assert.Contains(t, stdout, "1/2")
	assert.Contains(t, stdout, "minutes ago")
}

func TestHistory_Show(t *testing.T) {
	env := newTestEnv(t)
	seedHistory(t, env)

	stdout, stderr, err := env.execute(t, "history", "show", "BBBB", "-o", "json")
	requireNoError(t, err, stderr)
	var res domain.TaskResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, sessionB, res.SessionID)
	assert.Len(t, res.ExecutionLog, 1)

	stdout, stderr, err = env.execute(t, "history", "show", sessionA1, "--verbose")
	requireNoError(t, err, stderr)
	assert.Contains(t, stdout, "Session "+sessionA1)
	assert.Contains(t, stdout, "1 completed of 2 taken")
	assert.Contains(t, stdout, "click start")
}

func TestHistory_ResolveErrors(t *testing.T) {
	env := newTestEnv(t)
	seedHistory(t, env)

	_, _, err := env.execute(t, "history", "show", "aaaa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
	assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))

	_, _, err = env.execute(t, "history", "show", "cccc")
	require.ErrorIs(t, err, dperrors.ErrSessionNotFound)
	assert.Equal(t, ExitError, ExitCodeForError(err))
}

func TestHistory_DeleteAndClear(t *testing.T) {
	env := newTestEnv(t)
	store := seedHistory(t, env)

	stdout, stderr, err := env.execute(t, "history", "delete", "aaaaaaaa-0000-4000-8000-000000000002", "-o", "json")
	requireNoError(t, err, stderr)
	assert.JSONEq(t, `{"deleted": "`+sessionA2+`"}`, stdout)

	_, err = store.Get(context.Background(), sessionA2)
	require.ErrorIs(t, err, dperrors.ErrSessionNotFound)

	stdout, stderr, err = env.execute(t, "history", "clear", "--yes", "-o", "json")
	requireNoError(t, err, stderr)
	assert.JSONEq(t, `{"deleted": 2}`, stdout)

	remaining, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestShortID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "aaaaaaaa", shortID(sessionA1))
	assert.Equal(t, "abc", shortID("abc"))
}
