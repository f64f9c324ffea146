// Package postgres implements remote.Client on PostgreSQL. Each task is a
// jsonb row keyed by user, day and id; writes raise a NOTIFY on a shared
// channel and listeners refetch the day named in the payload.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tableflip.dev/daylog/pkg/remote"
	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

const channel = "daylog_tasks"

const schema = `
CREATE TABLE IF NOT EXISTS daylog_tasks (
	user_id    TEXT NOT NULL,
	day        TEXT NOT NULL,
	id         TEXT NOT NULL,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, day, id)
)`

// Store is the PostgreSQL implementation of remote.Client.
type Store struct {
	Pool *pgxpool.Pool
	log  *slog.Logger

	mu        sync.Mutex
	listeners map[uint64]context.CancelFunc
}

var _ remote.Client = (*Store)(nil)

type notice struct {
	User string `json:"user"`
	Day  string `json:"day"`
}

// Open opens a connection pool and creates the table if needed.
func Open(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres: dsn required")
	}
	if log == nil {
		log = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 20
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{
		Pool:      pool,
		log:       log.With("component", "remote.postgres"),
		listeners: make(map[uint64]context.CancelFunc),
	}, nil
}

// Close stops every listener and closes the pool.
func (s *Store) Close() error {
	if s == nil || s.Pool == nil {
		return nil
	}
	s.mu.Lock()
	for id, cancel := range s.listeners {
		cancel()
		delete(s.listeners, id)
	}
	s.mu.Unlock()
	s.Pool.Close()
	return nil
}

func (s *Store) Fetch(ctx context.Context, userID string, day timeutil.Day) ([]task.Task, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT doc FROM daylog_tasks WHERE user_id = $1 AND day = $2 ORDER BY id`,
		userID, day.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]task.Task, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var t task.Task
		if err := json.Unmarshal(doc, &t); err != nil {
			s.log.Warn("skipping undecodable task", "user", userID, "day", day, "err", err)
			continue
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Save(ctx context.Context, userID string, t task.Task, day timeutil.Day) error {
	if t.ID == "" {
		return errors.New("postgres: task id required")
	}
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
INSERT INTO daylog_tasks (user_id, day, id, doc, updated_at) VALUES ($1, $2, $3, $4, now())
ON CONFLICT (user_id, day, id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
			userID, day.String(), t.ID, doc); err != nil {
			return err
		}
		return notify(ctx, tx, userID, day)
	})
}

func (s *Store) Delete(ctx context.Context, userID, taskID string, day timeutil.Day) error {
	return pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM daylog_tasks WHERE user_id = $1 AND day = $2 AND id = $3`,
			userID, day.String(), taskID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		return notify(ctx, tx, userID, day)
	})
}

func notify(ctx context.Context, tx pgx.Tx, userID string, day timeutil.Day) error {
	payload, err := json.Marshal(notice{User: userID, Day: day.String()})
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, channel, string(payload))
	return err
}

// Listen holds a dedicated connection in LISTEN mode for the lifetime of the
// subscription. The initial snapshot is fetched after LISTEN is issued so no
// write between the two is missed. A lost connection is re-established with
// backoff and followed by a fresh snapshot.
func (s *Store) Listen(ctx context.Context, userID string, day timeutil.Day, onUpdate func([]task.Task)) (remote.Handle, error) {
	pc, err := s.listenConn(ctx)
	if err != nil {
		return remote.Handle{}, err
	}

	h := remote.NewHandle(userID, day)
	lctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.listeners[h.ID] = cancel
	s.mu.Unlock()

	go func() {
		defer s.forget(h.ID)
		s.follow(lctx, pc, userID, day, onUpdate)
	}()
	return h, nil
}

// listenConn takes a connection out of the pool and puts it in LISTEN mode.
// A connection left in LISTEN mode must not go back to the pool.
func (s *Store) listenConn(ctx context.Context) (*pgx.Conn, error) {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, err
	}
	return conn.Hijack(), nil
}

const (
	relistenMin = 250 * time.Millisecond
	relistenMax = 30 * time.Second
)

func (s *Store) follow(ctx context.Context, pc *pgx.Conn, userID string, day timeutil.Day, onUpdate func([]task.Task)) {
	log := s.log.With("user", userID, "day", day)
	want := day.String()
	deliver := func() {
		fctx, done := context.WithTimeout(ctx, 15*time.Second)
		defer done()
		tasks, err := s.Fetch(fctx, userID, day)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("listener fetch failed", "err", err)
			}
			return
		}
		if ctx.Err() == nil {
			onUpdate(tasks)
		}
	}

	backoff := relistenMin
	for {
		deliver()
		err := waitFor(ctx, pc, userID, want, deliver)
		_ = pc.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		log.Error("listener connection lost", "err", err)

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(2*backoff, relistenMax)
			if pc, err = s.listenConn(ctx); err == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			log.Error("listener reconnect failed", "err", err, "retry", backoff)
		}
		log.Info("listener reconnected")
		backoff = relistenMin
	}
}

// waitFor delivers on every notification naming userID and day until the
// connection fails or ctx is done.
func waitFor(ctx context.Context, pc *pgx.Conn, userID, day string, deliver func()) error {
	for {
		n, err := pc.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var msg notice
		if err := json.Unmarshal([]byte(n.Payload), &msg); err != nil {
			continue
		}
		if msg.User == userID && msg.Day == day {
			deliver()
		}
	}
}

func (s *Store) forget(id uint64) {
	s.mu.Lock()
	cancel, ok := s.listeners[id]
	delete(s.listeners, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// ListenerCount reports the subscriptions currently held open.
func (s *Store) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func (s *Store) StopListening(h remote.Handle) {
	s.forget(h.ID)
}
