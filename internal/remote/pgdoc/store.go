// Package pgdoc keeps the shared budget document in PostgreSQL. Writes upsert
// a JSONB row and raise a NOTIFY; subscribers LISTEN and re-read the row.
package pgdoc

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

	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/remote"
)

// Channel is the NOTIFY channel raised on every write.
const Channel = "budget_documents"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS budget_documents (
    path        TEXT PRIMARY KEY,
    body        JSONB NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
)`

// ErrNotConnected indicates Write or Subscribe ran before Connect.
var ErrNotConnected = errors.New("pgdoc: not connected")

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithBackoff sets the reconnect delay bounds for the change feed.
func WithBackoff(minDelay, maxDelay time.Duration) Option {
	return func(s *Store) {
		s.minBackoff = minDelay
		s.maxBackoff = maxDelay
	}
}

// Store is a remote document store on PostgreSQL.
type Store struct {
	dsn        string
	path       string
	log        *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration

	mu   sync.Mutex
	pool *pgxpool.Pool
}

var _ remote.DocumentStore = (*Store)(nil)

// New returns a store for the document at docPath in the database at dsn.
func New(dsn, docPath string, opts ...Option) *Store {
	s := &Store{
		dsn:        dsn,
		path:       docPath,
		log:        slog.New(slog.DiscardHandler),
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens the pool, checks the connection and ensures the table exists.
func (s *Store) Connect(ctx context.Context) error {
	config, err := pgxpool.ParseConfig(s.dsn)
	if err != nil {
		return fmt.Errorf("pgdoc: parsing database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("pgdoc: opening pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("pgdoc: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return fmt.Errorf("pgdoc: creating schema: %w", err)
	}

	s.mu.Lock()
	old := s.pool
	s.pool = pool
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.mu.Lock()
	pool := s.pool
	s.pool = nil
	s.mu.Unlock()
	if pool != nil {
		pool.Close()
	}
	return nil
}

// Write upserts the document and notifies listeners.
func (s *Store) Write(ctx context.Context, projects []model.Project, updatedAt time.Time) error {
	pool := s.currentPool()
	if pool == nil {
		return ErrNotConnected
	}

	body, err := json.Marshal(remote.NewDocument(projects, updatedAt))
	if err != nil {
		return fmt.Errorf("pgdoc: encoding document: %w", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgdoc: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO budget_documents (path, body, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (path)
		DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		s.path, body, updatedAt.UTC())
	if err != nil {
		return fmt.Errorf("pgdoc: upserting document: %w", err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", Channel, s.path); err != nil {
		return fmt.Errorf("pgdoc: notify: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgdoc: commit: %w", err)
	}
	return nil
}

// Fetch returns the stored document. ok is false when none exists yet.
func (s *Store) Fetch(ctx context.Context) (doc remote.Document, ok bool, err error) {
	pool := s.currentPool()
	if pool == nil {
		return remote.Document{}, false, ErrNotConnected
	}
	return fetch(ctx, pool, s.path)
}

// Subscribe delivers the current document, then every change, until the
// returned function is called. A lost connection is reported to onError and
// retried with exponential backoff.
func (s *Store) Subscribe(onData func([]model.Project), onError func(error)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		delay := s.minBackoff
		for {
			delivered, err := s.listen(ctx, onData)
			if ctx.Err() != nil {
				return
			}
			if delivered {
				delay = s.minBackoff
			}
			s.log.Warn("change feed interrupted", "err", err, "retry_in", delay)
			onError(err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, s.maxBackoff)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) listen(ctx context.Context, onData func([]model.Project)) (delivered bool, err error) {
	pool := s.currentPool()
	if pool == nil {
		return false, ErrNotConnected
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("pgdoc: acquiring connection: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		return false, fmt.Errorf("pgdoc: listen: %w", err)
	}

	deliver := func() error {
		doc, ok, err := fetch(ctx, conn, s.path)
		if err != nil {
			return err
		}
		if ok {
			onData(doc.Projects())
			delivered = true
		}
		return nil
	}

	if err := deliver(); err != nil {
		return delivered, err
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return delivered, fmt.Errorf("pgdoc: waiting for notification: %w", err)
		}
		if n.Payload != s.path {
			continue
		}
		if err := deliver(); err != nil {
			return delivered, err
		}
	}
}

func fetch(ctx context.Context, q querier, path string) (remote.Document, bool, error) {
	var body []byte
	err := q.QueryRow(ctx, "SELECT body FROM budget_documents WHERE path = $1", path).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return remote.Document{}, false, nil
	}
	if err != nil {
		return remote.Document{}, false, fmt.Errorf("pgdoc: reading document: %w", err)
	}
	doc, err := remote.DecodeDocument(body)
	if err != nil {
		return remote.Document{}, false, err
	}
	return doc, true, nil
}

func (s *Store) currentPool() *pgxpool.Pool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool
}
