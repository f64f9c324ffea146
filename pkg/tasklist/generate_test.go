package tasklist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflip.dev/daylog/pkg/remote"
	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

type stubGenerator struct {
	mu      sync.Mutex
	asked   [][]task.Category
	atCall  func()
	failure error
}

func (g *stubGenerator) Generate(_ context.Context, day timeutil.Day, cats []task.Category) ([]task.Task, error) {
	g.mu.Lock()
	g.asked = append(g.asked, append([]task.Category(nil), cats...))
	hook := g.atCall
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	if g.failure != nil {
		return nil, g.failure
	}
	out := make([]task.Task, 0, len(cats))
	for i, cat := range cats {
		t := task.New("suggested "+string(cat), day.At(9+i, 0))
		t.Category = cat
		out = append(out, t)
	}
	return out, nil
}

func (g *stubGenerator) lastAsked() []task.Category {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.asked[len(g.asked)-1]
}

func withGenerator(g Generator) func(*Config) {
	return func(c *Config) { c.Generator = g }
}

func TestGenerateEmptyDayGetsFullBatch(t *testing.T) {
	gen := &stubGenerator{}
	h := newHarness(t, withGenerator(gen))

	require.NoError(t, h.c.GenerateTasks(context.Background(), jan1))
	assert.Equal(t, task.AllCategories(), gen.lastAsked())
	got := h.c.Tasks(jan1)
	require.Len(t, got, 3)
	for _, tk := range got {
		assert.True(t, tk.IsAIGenerated)
		assert.Equal(t, jan1, tk.DateKey())
	}
}

func TestGenerateReplacesPreviousBatchAfterDeletesSettle(t *testing.T) {
	gen := &stubGenerator{}
	h := newHarness(t, withGenerator(gen))
	ctx := context.Background()

	require.NoError(t, h.c.GenerateTasks(ctx, jan1))
	h.repo.Wait()
	first := ids(h.c.Tasks(jan1))
	manual := h.c.AddTask(task.New("mine", jan1.At(18, 0)))
	h.repo.Wait()

	var remoteAtGenerate []task.Task
	var replacingAtGenerate []string
	gen.mu.Lock()
	gen.atCall = func() {
		remoteAtGenerate, _ = h.remote.Fetch(ctx, user, jan1)
		replacingAtGenerate = h.c.Replacing()
	}
	gen.mu.Unlock()

	require.NoError(t, h.c.GenerateTasks(ctx, jan1))

	assert.Equal(t, task.AllCategories(), gen.lastAsked())
	assert.Equal(t, []string{manual.ID}, ids(remoteAtGenerate), "old batch deleted remotely before generating")
	assert.Empty(t, replacingAtGenerate)
	assert.Empty(t, h.c.Replacing())

	got := h.c.Tasks(jan1)
	require.Len(t, got, 4)
	for _, id := range first {
		assert.Equal(t, -1, task.IndexOf(got, id))
	}
	assert.NotEqual(t, -1, task.IndexOf(got, manual.ID))
}

func TestGenerateFillsMissingCategories(t *testing.T) {
	gen := &stubGenerator{}
	h := newHarness(t, withGenerator(gen))
	diet := task.New("Salad", jan1.At(12, 0))
	diet.Category = task.CategoryDiet
	h.c.AddTask(diet)

	require.NoError(t, h.c.GenerateTasks(context.Background(), jan1))
	assert.Equal(t, []task.Category{task.CategoryGeneric, task.CategoryFitness}, gen.lastAsked())
	assert.Len(t, h.c.Tasks(jan1), 3)
}

func TestGenerateNothingMissing(t *testing.T) {
	gen := &stubGenerator{}
	h := newHarness(t, withGenerator(gen))
	for _, cat := range task.AllCategories() {
		tk := task.New(string(cat), jan1.At(8, 0))
		tk.Category = cat
		h.c.AddTask(tk)
	}
	require.NoError(t, h.c.GenerateTasks(context.Background(), jan1))
	assert.Empty(t, gen.asked)
}

func TestGenerateSurfacesGeneratorError(t *testing.T) {
	boom := errors.New("model unavailable")
	h := newHarness(t, withGenerator(&stubGenerator{failure: boom}))
	err := h.c.GenerateTasks(context.Background(), jan1)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, h.c.Tasks(jan1))
}

func TestGenerateReplaceToleratesFailedDeletes(t *testing.T) {
	gen := &stubGenerator{}
	h := newHarness(t, withGenerator(gen))
	ctx := context.Background()
	require.NoError(t, h.c.GenerateTasks(ctx, jan1))
	h.repo.Wait()

	h.remote.SetFailDelete(func(string, string, timeutil.Day) error { return remote.ErrUnavailable })
	require.NoError(t, h.c.GenerateTasks(ctx, jan1))
	assert.Len(t, h.c.Tasks(jan1), 3)
	assert.Empty(t, h.c.Replacing())
}

func TestGenerateWithoutGenerator(t *testing.T) {
	h := newHarness(t)
	require.Error(t, h.c.GenerateTasks(context.Background(), jan1))
}
