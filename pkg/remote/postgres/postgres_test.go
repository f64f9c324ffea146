package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

func TestStore_skipIfNoDSN(t *testing.T) {
	dsn := os.Getenv("DAYLOG_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DAYLOG_POSTGRES_DSN not set, skipping postgres test")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	user := "test-" + task.NewID()
	day := timeutil.Date(2024, 1, 1)

	updates := make(chan []task.Task, 16)
	h, err := s.Listen(ctx, user, day, func(tasks []task.Task) { updates <- tasks })
	require.NoError(t, err)
	defer s.StopListening(h)

	select {
	case first := <-updates:
		require.Empty(t, first)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial snapshot")
	}

	a := task.New("Swim", day.At(6, 30))
	require.NoError(t, s.Save(ctx, user, a, day))
	select {
	case got := <-updates:
		require.Len(t, got, 1)
		require.Equal(t, a.ID, got[0].ID)
	case <-time.After(5 * time.Second):
		t.Fatal("no notification after save")
	}

	require.NoError(t, s.Delete(ctx, user, a.ID, day))
	require.NoError(t, s.Delete(ctx, user, a.ID, day))
	got, err := s.Fetch(ctx, user, day)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestListenerSurvivesTerminatedConnection(t *testing.T) {
	dsn := os.Getenv("DAYLOG_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DAYLOG_POSTGRES_DSN not set, skipping postgres test")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	user := "test-" + task.NewID()
	day := timeutil.Date(2024, 1, 2)

	var mu sync.Mutex
	var last []task.Task
	h, err := s.Listen(ctx, user, day, func(tasks []task.Task) {
		mu.Lock()
		last = tasks
		mu.Unlock()
	})
	require.NoError(t, err)
	require.Equal(t, 1, s.ListenerCount())

	_, err = s.Pool.Exec(ctx, `
SELECT pg_terminate_backend(pid) FROM pg_stat_activity
WHERE pid <> pg_backend_pid() AND query LIKE 'LISTEN %'`)
	require.NoError(t, err)

	a := task.New("Row", day.At(6, 0))
	require.NoError(t, s.Save(ctx, user, a, day))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last) == 1 && last[0].ID == a.ID
	}, 10*time.Second, 50*time.Millisecond)
	require.Equal(t, 1, s.ListenerCount(), "the subscription stays registered while it reconnects")

	s.StopListening(h)
	require.Zero(t, s.ListenerCount())
	require.NoError(t, s.Delete(ctx, user, a.ID, day))
}
