// Package session keeps the per-student tutoring contexts. A session binds a
// generated id to a system prompt rendered from the student's data; it lives
// until it is ended (or, when a TTL is configured, until it is swept).
package session

import (
	"errors"
	"maps"
	"sync"
	"time"
)

// ErrNotFound is returned for unknown or already ended sessions.
var ErrNotFound = errors.New("session not found")

// Session is immutable once stored.
type Session struct {
	ID           string
	StudentData  map[string]any
	GradeReport  string
	SystemPrompt string
	CreatedAt    time.Time
}

// Store is a concurrency-safe keyed session store. Every operation is atomic
// with respect to the others.
type Store interface {
	// Insert adds s unless its id is taken.
	Insert(s Session) bool
	Get(id string) (Session, bool)
	// Delete reports whether the id was present.
	Delete(id string) bool
	Len() int
	// Sweep removes sessions created before cutoff and returns how many went.
	Sweep(cutoff time.Time) int
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Insert(s Session) bool {
	s.StudentData = maps.Clone(s.StudentData)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return false
	}
	m.sessions[s.ID] = s
	return true
}

func (m *MemoryStore) Get(id string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	s.StudentData = maps.Clone(s.StudentData)
	return s, ok
}

func (m *MemoryStore) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) Sweep(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
