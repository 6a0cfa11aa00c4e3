// Package store implements the Persistence & Integrity Layer (spec §4.B):
// transactional storage of teams, athletes, courses, sessions, runs, and
// segments over a relational schema with FK cascade, UNIQUE constraints,
// and a write-ahead log, safe under concurrent writers from both the
// network ingest path and the user-facing control path.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // pure-Go driver, no cgo

	xgclock "github.com/fieldcone/controller/internal/clock"
	"github.com/fieldcone/controller/internal/metrics"
)

// Config defines operational parameters for the underlying SQLite
// connection, grounded on the teacher's persistence/sqlite/config.go.
type Config struct {
	Path         string
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns sane defaults for a single-process field controller.
func DefaultConfig(path string) Config {
	return Config{
		Path:         path,
		BusyTimeout:  20 * time.Second, // spec §5: ~20s busy-timeout
		MaxOpenConns: 8,
	}
}

// Store is the concurrency-safe persistence facade consumed by the Course
// Lifecycle and Session Engine.
type Store struct {
	db     *sql.DB
	clock  xgclock.Clock
	log    zerolog.Logger
	uuidFn func() string
}

// Open opens (creating if absent) the SQLite database at cfg.Path with the
// mandatory PRAGMAs: WAL journal mode, the configured busy_timeout,
// NORMAL synchronous, and foreign_keys enforcement — the teacher's exact
// DSN-pragma recipe.
func Open(cfg Config, c xgclock.Clock, logger zerolog.Logger) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		cfg.Path, cfg.BusyTimeout.Milliseconds(),
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open failed: %w", err)
	}

	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 8
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping failed: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: schema apply failed: %w", err)
	}

	return &Store{
		db:     db,
		clock:  c,
		log:    logger.With().Str("component", "store").Logger(),
		uuidFn: xgclock.UUID,
	}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction: begins, defers rollback, commits on
// success, mirroring the teacher's "per-operation connection that opens,
// BEGINs implicitly, and COMMITs at scope exit; on exception, ROLLBACK"
// contract (spec §4.B).
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

// classify maps a raw sqlite driver error onto the Store's error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "locked") || strings.Contains(msg, "busy"):
		return fmt.Errorf("%w: %v", ErrTransientLocked, err)
	case strings.Contains(msg, "foreign key") || strings.Contains(msg, "check constraint"):
		return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	case strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed"):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	default:
		return err
	}
}

// retryBackoffMS is the spec §4.B / §5 exact ladder: 5 attempts,
// 100/200/300/400/500 ms.
var retryBackoffMS = [...]time.Duration{
	100 * time.Millisecond,
	200 * time.Millisecond,
	300 * time.Millisecond,
	400 * time.Millisecond,
	500 * time.Millisecond,
}

// withRetry retries fn on ErrTransientLocked using the spec's fixed
// backoff ladder. Used only by record_touch and check_segment_alerts per
// §4.B; all other writes surface a transient error immediately since the
// caller (Course Lifecycle, facade) is expected to report it.
func (s *Store) withRetry(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= len(retryBackoffMS); attempt++ {
		lastErr = s.withTx(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt == len(retryBackoffMS) {
			break
		}
		s.log.Warn().
			Str("event", "store.retry").
			Str("op", op).
			Int("attempt", attempt+1).
			Err(lastErr).
			Msg("transient lock, retrying")
		metrics.StoreRetry()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.clock.Sleep(retryBackoffMS[attempt])
	}
	s.log.Error().
		Str("event", "store.retry_exhausted").
		Str("op", op).
		Err(lastErr).
		Msg("transient lock not resolved after retries, dropping operation")
	return lastErr
}

func isTransient(err error) bool {
	return errors.Is(err, ErrTransientLocked)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
