// Package disk implements remote.Client on a directory tree, one JSON file
// per task, laid out as <user>/<day>/<id>. Listeners are driven by fsnotify,
// so several processes sharing the tree see each other's writes.
package disk

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/peterbourgon/diskv/v3"

	"tableflip.dev/daylog/pkg/remote"
	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

const (
	keySep    = "~"
	dayLayout = "20060102"
)

// Options configures a Store.
type Options struct {
	BasePath string
	Logger   *slog.Logger
}

// Store is a diskv backed remote.Client.
type Store struct {
	d        *diskv.Diskv
	basePath string
	log      *slog.Logger

	mu        sync.Mutex
	listeners map[uint64]context.CancelFunc
}

var _ remote.Client = (*Store)(nil)

// Open prepares a Store rooted at opts.BasePath.
func Open(opts Options) (*Store, error) {
	if opts.BasePath == "" {
		return nil, errors.New("disk: base path required")
	}
	if err := os.MkdirAll(opts.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("disk: ensure base path: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		d: diskv.New(diskv.Options{
			BasePath:          opts.BasePath,
			AdvancedTransform: keyToPathTransform,
			InverseTransform:  pathToKeyTransform,
			// Other processes write the same tree; never serve reads from memory.
			CacheSizeMax: 0,
		}),
		basePath:  opts.BasePath,
		log:       log.With("component", "remote.disk"),
		listeners: make(map[uint64]context.CancelFunc),
	}, nil
}

func (s *Store) Fetch(ctx context.Context, userID string, day timeutil.Day) ([]task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := dayPrefix(userID, day)
	all := make([]task.Task, 0)
	for key := range s.d.Keys(ctx.Done()) {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		t, err := s.read(key)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Deleted between listing and reading.
				continue
			}
			s.log.Warn("skipping unreadable task", "key", key, "err", err)
			continue
		}
		all = append(all, t)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (s *Store) Save(ctx context.Context, userID string, t task.Task, day timeutil.Day) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ID == "" {
		return errors.New("disk: task id required")
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.d.Write(toKey(userID, day, t.ID), data)
}

func (s *Store) Delete(ctx context.Context, userID, taskID string, day timeutil.Day) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.d.Erase(toKey(userID, day, taskID))
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *Store) read(key string) (task.Task, error) {
	var t task.Task
	val, err := s.d.Read(key)
	if err != nil {
		return t, err
	}
	if err := json.Unmarshal(val, &t); err != nil {
		return t, err
	}
	id, err := decodeSegment(keyToPathTransform(key).FileName)
	if err != nil {
		return t, fmt.Errorf("disk: bad key %q: %w", key, err)
	}
	t.ID = id
	return t, nil
}

func (s *Store) dayDir(userID string, day timeutil.Day) string {
	return filepath.Join(s.basePath, encodeSegment(userID), day.Time().Format(dayLayout))
}

func keyToPathTransform(s string) *diskv.PathKey {
	parts := strings.Split(s, keySep)
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	return strings.Join(append(append([]string{}, pathKey.Path...), pathKey.FileName), keySep)
}

// toKey makes `user~day~id`.
func toKey(userID string, day timeutil.Day, id string) string {
	return dayPrefix(userID, day) + encodeSegment(id)
}

func dayPrefix(userID string, day timeutil.Day) string {
	return encodeSegment(userID) + keySep + day.Time().Format(dayLayout) + keySep
}

// User and task ids are arbitrary strings; hex keeps them path and separator
// safe.
func encodeSegment(s string) string {
	return hex.EncodeToString([]byte(s))
}

func decodeSegment(s string) (string, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
