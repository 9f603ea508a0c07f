package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/companion/internal/domain"
	_ "modernc.org/sqlite"
)

const (
	writeRetries   = 3
	writeBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Store using SQLite. Sessions survive restarts.
type SQLiteStore struct {
	db   *sql.DB
	keys *keyLock
	now  func() time.Time
}

// NewSQLite creates a new SQLite-backed session store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, keys: newKeyLock(), now: time.Now}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		user_id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		stage TEXT NOT NULL,
		target_language TEXT NOT NULL,
		profile_json TEXT,
		tasks_json TEXT NOT NULL DEFAULT '[]',
		completed_json TEXT NOT NULL DEFAULT '{}',
		stress_json TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetOrCreate returns a snapshot of the user's session, creating it if needed.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, userID string) (*domain.Session, error) {
	var snap *domain.Session
	err := s.Update(ctx, userID, func(sess *domain.Session) error {
		snap = sess.Clone()
		return nil
	})
	return snap, err
}

// Get returns the stored session or nil if the user has none.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (*domain.Session, error) {
	return s.load(ctx, userID)
}

// Update runs fn with exclusive access to the user's session and writes the
// result back when fn succeeds.
func (s *SQLiteStore) Update(ctx context.Context, userID string, fn func(*domain.Session) error) error {
	unlock := s.keys.Lock(userID)
	defer unlock()

	sess, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if sess == nil {
		sess = domain.NewSession(userID, s.now())
	}

	if err := fn(sess); err != nil {
		return err
	}
	sess.UpdatedAt = s.now()

	return s.saveWithRetry(ctx, sess)
}

// Count returns the number of stored sessions.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) load(ctx context.Context, userID string) (*domain.Session, error) {
	query := `
		SELECT user_id, mode, stage, target_language, profile_json,
		       tasks_json, completed_json, stress_json, created_at, updated_at
		FROM sessions WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var sess domain.Session
	var mode, stage string
	var profileJSON sql.NullString
	var tasksJSON, completedJSON, stressJSON string
	var createdAt, updatedAt int64

	err := row.Scan(
		&sess.UserID, &mode, &stage, &sess.TargetLanguage, &profileJSON,
		&tasksJSON, &completedJSON, &stressJSON, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.Mode = domain.Mode(mode)
	sess.Stage = domain.Stage(stage)
	if !sess.Stage.Valid() {
		slog.Warn("Stored session has unknown stage, resetting", "user_id", userID, "stage", stage)
		sess.Stage = domain.StageMainMenu
	}
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)

	if profileJSON.Valid && profileJSON.String != "" {
		sess.Profile = &domain.Profile{}
		if err := json.Unmarshal([]byte(profileJSON.String), sess.Profile); err != nil {
			return nil, fmt.Errorf("decode profile for %s: %w", userID, err)
		}
	}
	if err := json.Unmarshal([]byte(tasksJSON), &sess.DailyTasks); err != nil {
		return nil, fmt.Errorf("decode tasks for %s: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(completedJSON), &sess.CompletedTasks); err != nil {
		return nil, fmt.Errorf("decode completed tasks for %s: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(stressJSON), &sess.StressSamples); err != nil {
		return nil, fmt.Errorf("decode stress samples for %s: %w", userID, err)
	}
	if len(sess.CompletedTasks) == 0 {
		sess.CompletedTasks = nil
	}

	return &sess, nil
}

// saveWithRetry writes the session with exponential backoff on SQLITE_BUSY.
func (s *SQLiteStore) saveWithRetry(ctx context.Context, sess *domain.Session) error {
	var err error
	for i := 0; i < writeRetries; i++ {
		err = s.save(ctx, sess)
		if err == nil {
			return nil
		}
		if !isConflict(err) || i == writeRetries-1 {
			break
		}
		delay := writeBaseDelay * time.Duration(1<<i)
		slog.Debug("Session write hit SQLITE_BUSY, retrying",
			"user_id", sess.UserID,
			"attempt", i+1,
			"delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("save session for %s: %w", sess.UserID, err)
}

func (s *SQLiteStore) save(ctx context.Context, sess *domain.Session) error {
	query := `
	INSERT INTO sessions (
		user_id, mode, stage, target_language, profile_json,
		tasks_json, completed_json, stress_json, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		mode = excluded.mode,
		stage = excluded.stage,
		target_language = excluded.target_language,
		profile_json = excluded.profile_json,
		tasks_json = excluded.tasks_json,
		completed_json = excluded.completed_json,
		stress_json = excluded.stress_json,
		updated_at = excluded.updated_at`

	var profileJSON interface{}
	if sess.Profile != nil {
		b, err := json.Marshal(sess.Profile)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		profileJSON = string(b)
	}
	tasks, err := marshalOr(sess.DailyTasks, "[]")
	if err != nil {
		return err
	}
	completed, err := marshalOr(sess.CompletedTasks, "{}")
	if err != nil {
		return err
	}
	stress, err := marshalOr(sess.StressSamples, "[]")
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query,
		sess.UserID, string(sess.Mode), string(sess.Stage), sess.TargetLanguage, profileJSON,
		tasks, completed, stress,
		sess.CreatedAt.Unix(), sess.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func marshalOr[T any](v T, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode session field: %w", err)
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}
