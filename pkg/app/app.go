// Package app wires configuration to stores, the repository and the task
// list coordinator, and offers the high-level operations the CLI verbs share.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"tableflip.dev/daylog/pkg/cache"
	"tableflip.dev/daylog/pkg/config"
	"tableflip.dev/daylog/pkg/generator"
	"tableflip.dev/daylog/pkg/metrics"
	"tableflip.dev/daylog/pkg/remote"
	"tableflip.dev/daylog/pkg/remote/disk"
	"tableflip.dev/daylog/pkg/remote/postgres"
	"tableflip.dev/daylog/pkg/repository"
	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/tasklist"
	"tableflip.dev/daylog/pkg/timeutil"
)

var (
	ErrNotFound  = errors.New("app: task not found")
	ErrAmbiguous = errors.New("app: task reference is ambiguous")
)

// Service provides high-level task operations over a running coordinator.
type Service struct {
	Config     *config.Config
	Cache      cache.Store
	Remote     remote.Client
	Repository *repository.Repository
	Tasks      *tasklist.Coordinator
	Registry   *prometheus.Registry
	Metrics    *metrics.Sync

	log     *slog.Logger
	closers []func() error
}

// Open builds every component named by cfg.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("app: no configuration")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Service{Config: cfg, log: log, Registry: prometheus.NewRegistry()}
	s.Metrics = metrics.New(s.Registry)

	c, err := openCache(cfg.Cache, log)
	if err != nil {
		return nil, err
	}
	s.Cache = c
	s.closers = append(s.closers, c.Close)

	r, closeRemote, err := openRemote(ctx, cfg.Remote, log)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Remote = r
	if closeRemote != nil {
		s.closers = append(s.closers, closeRemote)
	}

	gen, err := openGenerator(cfg.Generator)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	s.Repository = repository.New(c, r, repository.Options{
		Logger:  log,
		Timeout: cfg.Remote.Timeout,
		Metrics: s.Metrics,
	})
	s.Tasks = tasklist.New(tasklist.Config{
		Repository:      s.Repository,
		Remote:          r,
		Auth:            tasklist.StaticUser(cfg.User),
		Generator:       gen,
		Logger:          log,
		Metrics:         s.Metrics,
		Debounce:        cfg.Sync.Debounce,
		DeletionTimeout: cfg.Sync.DeletionTimeout,
		Offline:         cfg.Remote.Offline,
	})
	return s, nil
}

func openCache(cfg config.Cache, log *slog.Logger) (cache.Store, error) {
	opts := cache.Options{Radius: cfg.Radius(), Logger: log}
	switch cfg.Mode {
	case config.CacheMemory:
		return cache.NewMemory(opts), nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("app: ensure cache directory: %w", err)
		}
		return cache.OpenSQLite(cfg.Path, opts)
	}
}

func openRemote(ctx context.Context, cfg config.Remote, log *slog.Logger) (remote.Client, func() error, error) {
	switch cfg.Kind {
	case config.RemoteMemory:
		return remote.NewMemory(), nil, nil
	case config.RemotePostgres:
		pg, err := postgres.Open(ctx, cfg.DSN, log)
		if err != nil {
			return nil, nil, fmt.Errorf("app: open postgres remote: %w", err)
		}
		return pg, pg.Close, nil
	default:
		d, err := disk.Open(disk.Options{BasePath: cfg.Path, Logger: log})
		if err != nil {
			return nil, nil, fmt.Errorf("app: open disk remote: %w", err)
		}
		return d, d.Close, nil
	}
}

func openGenerator(cfg config.Generator) (tasklist.Generator, error) {
	if cfg.Catalog == "" {
		return generator.Default(), nil
	}
	c, err := generator.Load(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return generator.New(c), nil
}

// Close stops the coordinator, waits for pending remote writes and closes
// the stores.
func (s *Service) Close() error {
	if s.Tasks != nil {
		_ = s.Tasks.Close()
	}
	if s.Repository != nil {
		s.Repository.Wait()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Day selects day and returns its tasks in display order.
func (s *Service) Day(ctx context.Context, day timeutil.Day) []task.Task {
	s.Tasks.HandleDateChange(ctx, day)
	return s.Tasks.Tasks(day)
}

// Find resolves ref against the tasks of day. ref is a 1-based position in
// display order, a full id, or a unique id prefix.
func (s *Service) Find(ctx context.Context, day timeutil.Day, ref string) (task.Task, error) {
	tasks := s.Day(ctx, day)
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return task.Task{}, ErrNotFound
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(tasks) {
		return tasks[n-1], nil
	}
	var match []task.Task
	for _, t := range tasks {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			match = append(match, t)
		}
	}
	switch len(match) {
	case 0:
		return task.Task{}, fmt.Errorf("%w: %q on %s", ErrNotFound, ref, day)
	case 1:
		return match[0], nil
	default:
		return task.Task{}, fmt.Errorf("%w: %q matches %d tasks", ErrAmbiguous, ref, len(match))
	}
}

// AddOptions are the optional attributes of a new task.
type AddOptions struct {
	Subtitle  string
	Metadata  string
	Category  task.Category
	Challenge bool
	Hour      int
	Minute    int
	DietItems []task.DietItem
}

// Add creates a task on day.
func (s *Service) Add(ctx context.Context, day timeutil.Day, title string, o AddOptions) (task.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return task.Task{}, errors.New("app: title required")
	}
	s.Tasks.HandleDateChange(ctx, day)
	t := task.New(title, day.At(o.Hour, o.Minute))
	t.Subtitle = o.Subtitle
	t.Metadata = o.Metadata
	t.Category = o.Category
	t.IsDailyChallenge = o.Challenge
	t.DietItems = o.DietItems
	return s.Tasks.AddTask(t), nil
}

// Complete toggles the completion flag of the task ref on day.
func (s *Service) Complete(ctx context.Context, day timeutil.Day, ref string) (task.Task, error) {
	t, err := s.Find(ctx, day, ref)
	if err != nil {
		return task.Task{}, err
	}
	updated, ok := s.Tasks.ToggleCompletion(t.ID)
	if !ok {
		return task.Task{}, fmt.Errorf("%w: %s", ErrNotFound, t.ID)
	}
	return updated, nil
}

// Move reschedules the task ref from day onto to, keeping its clock time.
func (s *Service) Move(ctx context.Context, day timeutil.Day, ref string, to timeutil.Day) (task.Task, error) {
	t, err := s.Find(ctx, day, ref)
	if err != nil {
		return task.Task{}, err
	}
	moved := t.MoveTo(to)
	s.Tasks.UpdateTask(moved, t)
	return moved, nil
}

// Remove deletes the task ref on day.
func (s *Service) Remove(ctx context.Context, day timeutil.Day, ref string) (task.Task, error) {
	t, err := s.Find(ctx, day, ref)
	if err != nil {
		return task.Task{}, err
	}
	s.Tasks.RemoveTask(t)
	return t, nil
}

// Generate fills day with generated tasks and returns the resulting day.
func (s *Service) Generate(ctx context.Context, day timeutil.Day) ([]task.Task, error) {
	s.Tasks.HandleDateChange(ctx, day)
	if err := s.Tasks.GenerateTasks(ctx, day); err != nil {
		return nil, err
	}
	return s.Tasks.Tasks(day), nil
}

// Watch follows day until ctx is done, calling fn with every change and the
// day's tasks at that moment.
func (s *Service) Watch(ctx context.Context, day timeutil.Day, fn func(tasklist.Change, []task.Task)) error {
	s.Tasks.HandleDateChange(ctx, day)
	changes := s.Tasks.Changes()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ch := <-changes:
			fn(ch, s.Tasks.Tasks(day))
		}
	}
}
