package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

// SQLite is a Store backed by a local SQLite database.
type SQLite struct {
	db     *sql.DB
	radius int
	log    *slog.Logger

	mu        sync.Mutex
	window    Window
	hasWindow bool
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the cache database at path.
func OpenSQLite(path string, o Options) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open database: %w", err)
	}

	// WAL keeps readers from blocking on background bucket writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: set WAL mode: %w", err)
	}

	s := &SQLite{db: db, radius: o.radius(), log: o.logger()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: migrate: %w", err)
	}
	s.loadWindow()
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cached_tasks (
		day         TEXT NOT NULL,
		id          TEXT NOT NULL,
		doc         TEXT NOT NULL,
		updated_at  DATETIME NOT NULL,
		PRIMARY KEY (day, id)
	);

	CREATE INDEX IF NOT EXISTS cached_tasks_day ON cached_tasks(day);

	CREATE TABLE IF NOT EXISTS cached_days (
		day        TEXT PRIMARY KEY,
		loaded_at  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cache_window (
		id       INTEGER PRIMARY KEY CHECK (id = 1),
		pivot    TEXT NOT NULL,
		min_day  TEXT NOT NULL,
		max_day  TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// loadWindow restores the window persisted by a previous process. A missing
// or unreadable row leaves the cache windowless, which reads as a miss.
func (s *SQLite) loadWindow() {
	var pivot, min, max string
	err := s.db.QueryRow(`SELECT pivot, min_day, max_day FROM cache_window WHERE id = 1`).Scan(&pivot, &min, &max)
	if err == sql.ErrNoRows {
		return
	}
	if err != nil {
		s.log.Warn("cache: load window", "err", err)
		return
	}
	var w Window
	for _, f := range []struct {
		dst *timeutil.Day
		raw string
	}{{&w.Pivot, pivot}, {&w.Min, min}, {&w.Max, max}} {
		d, err := timeutil.ParseDay(f.raw)
		if err != nil {
			s.log.Warn("cache: corrupt window row", "err", err)
			return
		}
		*f.dst = d
	}
	// A radius change between runs re-centres on the stored pivot.
	w = NewWindow(w.Pivot, s.radius)
	s.mu.Lock()
	s.window, s.hasWindow = w, true
	s.mu.Unlock()
}

func (s *SQLite) Get(day timeutil.Day) ([]task.Task, bool) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM cached_days WHERE day = ?`, day.String()).Scan(&one)
	loaded := err == nil
	if err != nil && err != sql.ErrNoRows {
		s.log.Warn("cache: read loaded mark", "day", day, "err", err)
		return nil, false
	}

	rows, err := s.db.Query(`SELECT doc FROM cached_tasks WHERE day = ? ORDER BY id`, day.String())
	if err != nil {
		s.log.Warn("cache: read bucket", "day", day, "err", err)
		return nil, false
	}
	defer rows.Close()

	tasks, err := scanDocs(rows)
	if err != nil {
		s.log.Warn("cache: scan bucket", "day", day, "err", err)
		return nil, false
	}
	return tasks, loaded
}

func (s *SQLite) Put(day timeutil.Day, tasks []task.Task) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("cache: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cached_tasks WHERE day = ?`, day.String()); err != nil {
		return fmt.Errorf("cache: clear bucket %s: %w", day, err)
	}
	now := time.Now().UTC()
	for _, t := range tasks {
		doc, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("cache: encode task %s: %w", t.ID, err)
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO cached_tasks (day, id, doc, updated_at) VALUES (?, ?, ?, ?)`,
			day.String(), t.ID, string(doc), now,
		); err != nil {
			return fmt.Errorf("cache: insert task %s: %w", t.ID, err)
		}
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO cached_days (day, loaded_at) VALUES (?, ?)`,
		day.String(), now,
	); err != nil {
		return fmt.Errorf("cache: mark %s loaded: %w", day, err)
	}
	return tx.Commit()
}

func (s *SQLite) PutTask(t task.Task, day timeutil.Day) error {
	return s.upsert(t, day)
}

func (s *SQLite) Replace(t task.Task, day timeutil.Day) error {
	return s.upsert(t, day)
}

func (s *SQLite) upsert(t task.Task, day timeutil.Day) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("cache: encode task %s: %w", t.ID, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO cached_tasks (day, id, doc, updated_at) VALUES (?, ?, ?, ?)`,
		day.String(), t.ID, string(doc), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("cache: write task %s: %w", t.ID, err)
	}
	return nil
}

func (s *SQLite) Remove(id string, day timeutil.Day) error {
	if _, err := s.db.Exec(`DELETE FROM cached_tasks WHERE day = ? AND id = ?`, day.String(), id); err != nil {
		return fmt.Errorf("cache: remove task %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) CurrentWindow(pivot timeutil.Day) (Window, map[timeutil.Day][]task.Task) {
	w := NewWindow(pivot, s.radius)

	s.mu.Lock()
	s.window, s.hasWindow = w, true
	s.mu.Unlock()

	if err := s.evict(w); err != nil {
		s.log.Warn("cache: evict", "pivot", pivot, "err", err)
	}
	return w, s.resident(w)
}

func (s *SQLite) Window() (Window, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window, s.hasWindow
}

func (s *SQLite) evict(w Window) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM cached_tasks WHERE day < ? OR day > ?`,
		w.Min.String(), w.Max.String(),
	); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`DELETE FROM cached_days WHERE day < ? OR day > ?`,
		w.Min.String(), w.Max.String(),
	); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO cache_window (id, pivot, min_day, max_day) VALUES (1, ?, ?, ?)`,
		w.Pivot.String(), w.Min.String(), w.Max.String(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) resident(w Window) map[timeutil.Day][]task.Task {
	out := make(map[timeutil.Day][]task.Task)
	rows, err := s.db.Query(
		`SELECT day, doc FROM cached_tasks WHERE day >= ? AND day <= ? ORDER BY day, id`,
		w.Min.String(), w.Max.String(),
	)
	if err != nil {
		s.log.Warn("cache: read window", "err", err)
		return out
	}
	defer rows.Close()

	for rows.Next() {
		var rawDay, doc string
		if err := rows.Scan(&rawDay, &doc); err != nil {
			s.log.Warn("cache: scan window", "err", err)
			return out
		}
		day, err := timeutil.ParseDay(rawDay)
		if err != nil {
			continue
		}
		var t task.Task
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			s.log.Warn("cache: decode task", "day", rawDay, "err", err)
			continue
		}
		out[day] = append(out[day], t)
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("cache: iterate window", "err", err)
	}
	return out
}

func scanDocs(rows *sql.Rows) ([]task.Task, error) {
	var tasks []task.Task
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var t task.Task
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
