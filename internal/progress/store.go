package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/humanmixer/api/internal/model"
)

// ErrNotWritable is returned when a write conflicts with a session's
// terminal state (typically a lost cancellation or completion race).
var ErrNotWritable = errors.New("session is not writable")

// Store persists one JobState row per session in SQLite. It is the only
// state a poller reads, so it must survive process restarts: a client
// polling across a backend redeploy sees the last recorded state instead
// of silent data loss. Sessions never share rows, so cross-session writes
// never interact.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	progress   REAL NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
)`

// Open initializes or connects to the progress database.
func Open(path string) (*Store, error) {
	// Pragmas go in the DSN so the driver applies them to every
	// connection in the pool; a plain Exec would only reach one.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Init records a freshly created session as pending with zero progress.
func (s *Store) Init(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, status, progress, error, updated_at) VALUES (?, ?, 0, '', ?)
		 ON CONFLICT(id) DO UPDATE SET status=excluded.status, progress=0, error='', updated_at=excluded.updated_at`,
		sessionID, string(model.StatusPending), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("init session %s: %w", sessionID, err)
	}
	return nil
}

// Get returns the session's state. Unknown sessions yield StatusNotFound
// rather than an error; polling before or after a session's lifetime is
// not a failure.
func (s *Store) Get(ctx context.Context, sessionID string) (model.JobState, error) {
	state := model.JobState{SessionID: sessionID, Status: model.StatusNotFound}

	row := s.db.QueryRowContext(ctx,
		`SELECT status, progress, error, updated_at FROM sessions WHERE id = ?`, sessionID)

	var status string
	var updatedAt int64
	err := row.Scan(&status, &state.Progress, &state.Error, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	state.Status = model.Status(status)
	state.UpdatedAt = time.Unix(updatedAt, 0)
	return state, nil
}

// SetProgress records a checkpoint. Progress never goes backwards and a
// failed session is never resurrected, which keeps a worker that lost a
// cancellation race from overwriting the terminal state.
func (s *Store) SetProgress(ctx context.Context, sessionID string, status model.Status, progress float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, progress = MAX(progress, ?), updated_at = ?
		 WHERE id = ? AND status != ?`,
		string(status), progress, time.Now().Unix(), sessionID, string(model.StatusFailed))
	if err != nil {
		return fmt.Errorf("set progress for session %s: %w", sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotWritable)
	}
	return nil
}

// Complete marks the session finished with full progress.
func (s *Store) Complete(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, progress = 1.0, updated_at = ?
		 WHERE id = ? AND status != ?`,
		string(model.StatusCompleted), time.Now().Unix(), sessionID, string(model.StatusFailed))
	if err != nil {
		return fmt.Errorf("complete session %s: %w", sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotWritable)
	}
	return nil
}

// Fail records a failure message and freezes progress at the last
// successful checkpoint. Resetting progress would destroy the only
// diagnostic signal of how far the job got. A completed session is never
// flipped to failed: its stems are already on disk, so a cancel that lost
// the race against Complete reports ErrNotWritable instead.
func (s *Store) Fail(ctx context.Context, sessionID, message string) error {
	if strings.TrimSpace(message) == "" {
		message = "separation failed"
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, error = ?, updated_at = ? WHERE id = ? AND status != ?`,
		string(model.StatusFailed), message, time.Now().Unix(), sessionID, string(model.StatusCompleted))
	if err != nil {
		return fmt.Errorf("fail session %s: %w", sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotWritable)
	}
	return nil
}

// Delete removes the session row entirely (explicit cleanup policy).
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}
