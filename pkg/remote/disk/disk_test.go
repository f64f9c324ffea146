package disk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

var jan1 = timeutil.Date(2024, 1, 1)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{BasePath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKeyTransformRoundTrip(t *testing.T) {
	key := toKey("user@example.com", jan1, "7f1c-uuid-like-id")
	pk := keyToPathTransform(key)
	assert.Equal(t, []string{encodeSegment("user@example.com"), "20240101"}, pk.Path)
	assert.Equal(t, encodeSegment("7f1c-uuid-like-id"), pk.FileName)
	assert.Equal(t, key, pathToKeyTransform(pk))
}

func TestStoreTaskIDsWithSeparators(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for _, id := range []string{"a~b", "x/y", "../z", "~"} {
		tk := task.Task{ID: id, Title: "odd " + id, TimeDate: jan1.At(8, 0)}
		require.NoError(t, s.Save(ctx, "u1", tk, jan1), id)
	}
	got, err := s.Fetch(ctx, "u1", jan1)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for _, id := range []string{"a~b", "x/y", "../z", "~"} {
		i := task.IndexOf(got, id)
		require.GreaterOrEqual(t, i, 0, id)
		assert.Equal(t, "odd "+id, got[i].Title)
	}

	require.NoError(t, s.Delete(ctx, "u1", "x/y", jan1))
	got, err = s.Fetch(ctx, "u1", jan1)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, -1, task.IndexOf(got, "x/y"))
}

func TestStoreSaveFetchDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := task.New("Run", jan1.At(7, 0))
	b := task.New("Lunch", jan1.At(12, 0))
	require.NoError(t, s.Save(ctx, "u1", a, jan1))
	require.NoError(t, s.Save(ctx, "u1", b, jan1))
	require.NoError(t, s.Save(ctx, "u1", task.New("Other day", jan1.AddDays(1).At(9, 0)), jan1.AddDays(1)))
	require.NoError(t, s.Save(ctx, "u2", task.New("Other user", jan1.At(9, 0)), jan1))

	got, err := s.Fetch(ctx, "u1", jan1)
	require.NoError(t, err)
	require.True(t, task.SameSet(got, []task.Task{a, b}))

	a.Title = "Run 5k"
	require.NoError(t, s.Save(ctx, "u1", a, jan1))
	got, err = s.Fetch(ctx, "u1", jan1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Run 5k", got[task.IndexOf(got, a.ID)].Title)

	require.NoError(t, s.Delete(ctx, "u1", a.ID, jan1))
	require.NoError(t, s.Delete(ctx, "u1", a.ID, jan1), "deleting a missing task succeeds")
	got, err = s.Fetch(ctx, "u1", jan1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)
}

func TestStoreListen(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	updates := make(chan []task.Task, 16)
	h, err := s.Listen(ctx, "u1", jan1, func(tasks []task.Task) { updates <- tasks })
	require.NoError(t, err)

	select {
	case first := <-updates:
		assert.Empty(t, first)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	a := task.New("Stretch", jan1.At(8, 0))
	require.NoError(t, s.Save(ctx, "u1", a, jan1))
	require.Eventually(t, func() bool {
		for {
			select {
			case got := <-updates:
				if len(got) == 1 && got[0].ID == a.ID {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 10*time.Millisecond)

	// Erasing the only task prunes the directory; later writes must still be seen.
	require.NoError(t, s.Delete(ctx, "u1", a.ID, jan1))
	b := task.New("Walk", jan1.At(18, 0))
	require.NoError(t, s.Save(ctx, "u1", b, jan1))
	require.Eventually(t, func() bool {
		for {
			select {
			case got := <-updates:
				if len(got) == 1 && got[0].ID == b.ID {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 10*time.Millisecond)

	s.StopListening(h)
}
