package session

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// Store hands out volatile per-request scratch directories under one root.
// Everything under the root is disposable; Clear wipes it wholesale.
type Store struct {
	root   string
	logger logging.Logger
}

// NewStore creates a store rooted at the given directory, creating it if
// needed
func NewStore(root string, logger logging.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("session root must not be empty")
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session root: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

// Root returns the scratch root directory
func (s *Store) Root() string {
	return s.root
}

// Acquire creates a fresh session directory. The short random id can
// collide with a live session, so creation retries until Mkdir wins.
func (s *Store) Acquire() (*Session, error) {
	for attempt := 0; attempt < 16; attempt++ {
		id := newSessionID()
		dir := filepath.Join(s.root, id)
		if err := os.Mkdir(dir, 0o755); err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return nil, fmt.Errorf("failed to create session dir: %w", err)
		}

		s.logger.Debug("Session acquired", logging.Fields{
			"session_id": id,
			"dir":        dir,
		})

		return &Session{id: id, dir: dir, logger: s.logger}, nil
	}
	return nil, fmt.Errorf("could not allocate a unique session id")
}

// Clear removes everything under the root and reports how many entries went
// away. Safe to call while sessions are live; their files just vanish.
func (s *Store) Clear() (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("failed to list session root: %w", err)
	}

	removed := 0
	var errs error
	for _, entry := range entries {
		path := filepath.Join(s.root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		removed++
	}

	s.logger.Debug("Session root cleared", logging.Fields{
		"removed": removed,
	})

	return removed, errs
}

// newSessionID builds the volatile directory name: SES_ plus six uppercase
// hex chars
func newSessionID() string {
	u := uuid.New()
	return "SES_" + strings.ToUpper(hex.EncodeToString(u[:3]))
}

// Session is one request's scratch directory
type Session struct {
	id     string
	dir    string
	logger logging.Logger
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Dir returns the session directory path
func (s *Session) Dir() string {
	return s.dir
}

// Create stores an upload under its base name and returns the stored path.
// Separators in name are stripped so uploads cannot escape the directory.
func (s *Session) Create(name string, r io.Reader) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "" || base == "." || base == ".." || base == "/" {
		return "", fmt.Errorf("unusable upload filename %q", name)
	}

	path := filepath.Join(s.dir, base)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create session file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write session file: %w", err)
	}
	return path, nil
}

// Release deletes the session directory and everything in it
func (s *Session) Release() {
	if err := os.RemoveAll(s.dir); err != nil {
		s.logger.Warn("Failed to remove session dir", logging.Fields{
			"session_id": s.id,
			"error":      err.Error(),
		})
	}
}
