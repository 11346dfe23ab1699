// Package recovery persists a crash-recovery snapshot of every dirty buffer
// to a SQLite-backed index (spec §6: "persisted recovery file"). Grounded on
// the teacher's internal/store/store.go (SQLite open, pragmas, schema-on-open
// pattern, nil-receiver-safe accessors) repurposed from a web-fetch cache
// into a buffer-keyed content+cursor snapshot store, with row keying derived
// from the buffer's path the way internal/delta/delta.go keys rows by a
// stable session id.
package recovery

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/realagiorganization/fresh/internal/fresherr"
)

const schema = `
CREATE TABLE IF NOT EXISTS recovery_snapshots (
	buffer_id  TEXT PRIMARY KEY,
	path       TEXT NOT NULL,
	content    TEXT NOT NULL,
	cursors    TEXT NOT NULL,
	updated    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recovery_updated ON recovery_snapshots(updated);
`

// CursorSnapshot is one cursor's position and selection anchor at the time
// of a recovery write, byte-offset based like internal/cursor.Cursor.
type CursorSnapshot struct {
	AnchorByte int `json:"anchor_byte"`
	ActiveByte int `json:"active_byte"`
}

// Snapshot is everything needed to reconstruct a buffer's unsaved state:
// its full content, the path it's backed by (empty for an unnamed buffer),
// and every cursor's position.
type Snapshot struct {
	Path    string
	Content string
	Cursors []CursorSnapshot
}

// Store is a SQLite-backed index of per-buffer recovery snapshots.
type Store struct {
	mu       sync.Mutex
	db       *sql.DB
	nextTemp int64
}

// Open creates or opens a recovery index database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fresherr.Wrap(fresherr.KindFsUnsupported, "open recovery db", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fresherr.Wrap(fresherr.KindFsUnsupported, fmt.Sprintf("pragma %q", pragma), err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fresherr.Wrap(fresherr.KindFsUnsupported, "create recovery schema", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database. Safe to call on a nil receiver.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// BufferID derives the stable recovery-index key for a file-backed buffer:
// a SHA-256 hex digest of its path, so the same file always recovers to the
// same row regardless of process restarts (spec §6: "indexed by a stable
// identifier derived from the buffer's file path").
func BufferID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}

// AllocateID returns a stable identifier for an unnamed buffer (spec §6:
// "or an allocated id if unnamed"). Each call returns a distinct id for the
// lifetime of the Store; callers should retain it for the buffer's session
// rather than calling this again for the same buffer.
func (s *Store) AllocateID() string {
	n := atomic.AddInt64(&s.nextTemp, 1)
	return fmt.Sprintf("unnamed-%d-%d", time.Now().UnixNano(), n)
}

// Save writes or replaces the recovery snapshot for bufferID. Call this on
// every tick where the buffer's recovery-dirty flag is raised; the caller
// clears that flag only after Save returns nil (spec §6: "clear the flag on
// successful write").
func (s *Store) Save(bufferID string, snap Snapshot) error {
	if s == nil {
		return fresherr.New(fresherr.KindFsUnsupported, "recovery store not configured")
	}
	cursors, err := json.Marshal(snap.Cursors)
	if err != nil {
		return fresherr.Wrap(fresherr.KindFsUnsupported, "marshal recovery cursors", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO recovery_snapshots (buffer_id, path, content, cursors, updated)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(buffer_id) DO UPDATE SET
			path=excluded.path, content=excluded.content,
			cursors=excluded.cursors, updated=excluded.updated`,
		bufferID, snap.Path, snap.Content, string(cursors), time.Now().Unix(),
	)
	if err != nil {
		return fresherr.Wrap(fresherr.KindFsUnsupported, "write recovery snapshot", err)
	}
	return nil
}

// Load returns the most recent recovery snapshot for bufferID, if any.
func (s *Store) Load(bufferID string) (Snapshot, bool, error) {
	if s == nil {
		return Snapshot{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var path, content, cursorsJSON string
	err := s.db.QueryRow(
		"SELECT path, content, cursors FROM recovery_snapshots WHERE buffer_id = ?",
		bufferID,
	).Scan(&path, &content, &cursorsJSON)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fresherr.Wrap(fresherr.KindFsUnsupported, "read recovery snapshot", err)
	}

	var cursors []CursorSnapshot
	if err := json.Unmarshal([]byte(cursorsJSON), &cursors); err != nil {
		return Snapshot{}, false, fresherr.Wrap(fresherr.KindFsUnsupported, "unmarshal recovery cursors", err)
	}
	return Snapshot{Path: path, Content: content, Cursors: cursors}, true, nil
}

// Delete removes bufferID's recovery snapshot, once its content has been
// written to the real user file and no longer needs a recovery copy.
func (s *Store) Delete(bufferID string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec("DELETE FROM recovery_snapshots WHERE buffer_id = ?", bufferID); err != nil {
		return fresherr.Wrap(fresherr.KindFsUnsupported, "delete recovery snapshot", err)
	}
	return nil
}

// ListStale returns every buffer_id whose last snapshot is older than
// maxAge, a startup hook for offering "recover this file?" prompts and for
// pruning abandoned entries from long-dead buffers.
func (s *Store) ListStale(maxAge time.Duration) ([]string, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge).Unix()
	rows, err := s.db.Query("SELECT buffer_id FROM recovery_snapshots WHERE updated <= ?", cutoff)
	if err != nil {
		return nil, fresherr.Wrap(fresherr.KindFsUnsupported, "list stale recovery entries", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			log.Warn().Err(err).Msg("recovery: scan stale row")
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListAll returns every recovery_id with a live snapshot, for a startup
// "recover previous session?" sweep.
func (s *Store) ListAll() ([]string, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT buffer_id FROM recovery_snapshots")
	if err != nil {
		return nil, fresherr.Wrap(fresherr.KindFsUnsupported, "list recovery entries", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
