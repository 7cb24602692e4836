package stems

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const inputFileName = "input.wav"

// Repository stores each session's input recording, separated stems and
// mix outputs on the local filesystem. Every file lives under the
// session's own directory; nothing is ever addressed by a fixed,
// session-independent name, so concurrent sessions cannot collide.
type Repository struct {
	root string
}

// New creates the repository root if needed.
func New(root string) (*Repository, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create stem root %s: %w", root, err)
	}
	return &Repository{root: root}, nil
}

// Root returns the repository root directory, for static file serving.
func (r *Repository) Root() string {
	return r.root
}

// SessionDir returns the directory holding one session's files.
func (r *Repository) SessionDir(sessionID string) string {
	return filepath.Join(r.root, sessionID)
}

// SaveInput persists an uploaded recording under the session directory and
// returns the number of bytes written.
func (r *Repository) SaveInput(sessionID string, src io.Reader) (int64, error) {
	dir := r.SessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create session dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, inputFileName))
	if err != nil {
		return 0, fmt.Errorf("create input file: %w", err)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write input file: %w", err)
	}
	return n, nil
}

// InputPath returns the path of the session's uploaded recording.
func (r *Repository) InputPath(sessionID string) string {
	return filepath.Join(r.SessionDir(sessionID), inputFileName)
}

// StemPath returns the path of one named stem file for the session.
func (r *Repository) StemPath(sessionID, stem string) string {
	return filepath.Join(r.SessionDir(sessionID), stem+".wav")
}

// HasStem reports whether a stem file exists for the session.
func (r *Repository) HasStem(sessionID, stem string) bool {
	info, err := os.Stat(r.StemPath(sessionID, stem))
	return err == nil && !info.IsDir()
}

// NewMixPath reserves a fresh unique mix output name for the session and
// returns both the absolute path and the path relative to the repository
// root. Mix outputs are never overwritten; repeated mixes accumulate.
func (r *Repository) NewMixPath(sessionID string) (absPath, relPath string) {
	name := fmt.Sprintf("final_mix_%s.wav", strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return filepath.Join(r.SessionDir(sessionID), name), filepath.Join(sessionID, name)
}

// Purge removes every file belonging to the session.
func (r *Repository) Purge(sessionID string) error {
	if err := os.RemoveAll(r.SessionDir(sessionID)); err != nil {
		return fmt.Errorf("purge session %s: %w", sessionID, err)
	}
	return nil
}
