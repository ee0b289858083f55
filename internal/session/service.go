package session

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/edura/edura-core/internal/conversation"
	"github.com/edura/edura-core/internal/llm"
	"github.com/edura/edura-core/internal/logger"
	"github.com/edura/edura-core/internal/metrics"
)

// Service implements the session lifecycle on top of a Store and streams
// session chats through the relay.
type Service struct {
	store    Store
	provider llm.Provider
	relay    *llm.Relay
	metrics  *metrics.Collector

	newID func() string
	now   func() time.Time
}

// NewService wires a session service. store must not be nil.
func NewService(store Store, provider llm.Provider, relay *llm.Relay, m *metrics.Collector) *Service {
	return &Service{
		store:    store,
		provider: provider,
		relay:    relay,
		metrics:  m,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Start creates a session for the student and returns its id.
func (s *Service) Start(studentData map[string]any, gradeReport string) (string, error) {
	name := conversation.StudentName(studentData)
	if gradeReport == "" {
		gradeReport = conversation.NoGradeReport
	}
	sess := Session{
		StudentData:  studentData,
		GradeReport:  gradeReport,
		SystemPrompt: conversation.StudentPrompt(name, gradeReport),
		CreatedAt:    s.now(),
	}

	// a collision is practically impossible, but Insert is the uniqueness check
	for range 3 {
		sess.ID = s.newID()
		if s.store.Insert(sess) {
			s.metrics.SetSessions(s.store.Len())
			logger.L.Info("session started", "session_id", sess.ID)
			return sess.ID, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique session id")
}

// Get returns a copy of the stored session.
func (s *Service) Get(id string) (Session, error) {
	sess, ok := s.store.Get(id)
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// Chat streams one turn of the session's conversation. ErrNotFound is
// returned before any upstream call is made.
func (s *Service) Chat(ctx context.Context, id, message string, history []llm.Message) (iter.Seq[llm.Event], error) {
	sess, ok := s.store.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	msgs := conversation.Assemble(sess.SystemPrompt, history, message)
	return s.relay.Stream(ctx, s.provider, msgs), nil
}

// End removes the session.
func (s *Service) End(id string) error {
	if !s.store.Delete(id) {
		return ErrNotFound
	}
	s.metrics.SetSessions(s.store.Len())
	logger.L.Info("session ended", "session_id", id)
	return nil
}

// Len is the number of live sessions.
func (s *Service) Len() int {
	return s.store.Len()
}
