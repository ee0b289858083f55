// Package history provides SQLite-based persistence for lesson progress records.
// If opening the DB or executing queries fails, the store falls back to in-memory storage.
package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"

	"github.com/edura/edura-core/internal/logger"
)

// Record is one lesson's progress snapshot as reported by the client.
type Record struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"sessionId"`
	CompletedParts int       `json:"completedParts"`
	PostedHomework bool      `json:"postedHomework"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Store persists records to SQLite when available and always keeps an
// in-memory copy as fallback.
type Store struct {
	mu      sync.Mutex
	records []Record // in-memory fallback
	db      *sql.DB
}

// Open opens (and creates) the database at path. Failures are logged and
// leave the store memory-only; Open never fails.
func Open(path string) *Store {
	s := &Store{}
	if path == "" {
		logger.L.Info("no history database configured; using in-memory history")
		return s
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		logger.L.Warn("sqlite open failed; using in-memory history", logger.Err(err))
		return s
	}
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS lesson_history (
        id TEXT PRIMARY KEY,
        session_id TEXT NOT NULL,
        completed_parts INTEGER NOT NULL DEFAULT 0,
        posted_homework BOOLEAN NOT NULL DEFAULT 0,
        created_at DATETIME
    );`); err != nil {
		logger.L.Warn("sqlite table creation failed; using in-memory history", logger.Err(err))
		db.Close()
		return s
	}
	logger.L.Info("sqlite history DB initialized", "path", path)
	s.db = db
	return s
}

// Persistent reports whether records reach the database.
func (s *Store) Persistent() bool {
	return s.db != nil
}

// Save stores r, generating the id and timestamp when absent.
func (s *Store) Save(r Record) (Record, error) {
	if r.SessionID == "" {
		return Record{}, fmt.Errorf("history record needs a sessionId")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	if s.db != nil {
		_, err := s.db.Exec(`INSERT OR REPLACE INTO lesson_history (id, session_id, completed_parts, posted_homework, created_at) VALUES (?,?,?,?,?);`,
			r.ID, r.SessionID, r.CompletedParts, r.PostedHomework, r.CreatedAt)
		if err != nil {
			logger.L.Error("failed to store history in sqlite; falling back to memory", logger.Err(err))
		}
	}

	s.mu.Lock()
	s.records = append(s.records, r)
	s.mu.Unlock()
	return r, nil
}

// List returns every record in insertion order.
func (s *Store) List() []Record {
	return s.query(`SELECT id, session_id, completed_parts, posted_homework, created_at FROM lesson_history ORDER BY rowid ASC;`, "")
}

// ListBySession returns the records of one lesson session.
func (s *Store) ListBySession(sessionID string) []Record {
	return s.query(`SELECT id, session_id, completed_parts, posted_homework, created_at FROM lesson_history WHERE session_id = ? ORDER BY rowid ASC;`, sessionID)
}

func (s *Store) query(q, sessionID string) []Record {
	out := []Record{}
	if s.db != nil {
		var (
			rows *sql.Rows
			err  error
		)
		if sessionID == "" {
			rows, err = s.db.Query(q)
		} else {
			rows, err = s.db.Query(q, sessionID)
		}
		if err == nil {
			defer rows.Close()
			for rows.Next() {
				var r Record
				if err := rows.Scan(&r.ID, &r.SessionID, &r.CompletedParts, &r.PostedHomework, &r.CreatedAt); err == nil {
					out = append(out, r)
				}
			}
			return out
		}
		logger.L.Error("history query failed; reading memory", logger.Err(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if sessionID == "" || r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
