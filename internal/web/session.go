package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"prodmanager/internal/manager"
)

const (
	sessionCookie = "pm_session"
	defaultTTL    = 30 * time.Minute
)

type session struct {
	mgr      *manager.Manager
	lastSeen time.Time
}

// SessionStore guarda um gerenciador por navegador. Sessões ociosas por mais
// de ttl são fechadas, o que revoga os previews delas.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	factory  func(id string) *manager.Manager
	now      func() time.Time

	OnChange func(active int)
}

func NewSessionStore(ttl time.Duration, factory func(id string) *manager.Manager) *SessionStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		factory:  factory,
		now:      time.Now,
	}
}

// Get devolve o gerenciador da sessão e estende a expiração.
func (s *SessionStore) Get(id string) (*manager.Manager, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.now().Sub(sess.lastSeen) > s.ttl {
		delete(s.sessions, id)
		sess.mgr.Close()
		s.notify()
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess.mgr, true
}

func (s *SessionStore) Create() (string, *manager.Manager) {
	id := uuid.NewString()
	m := s.factory(id)

	s.mu.Lock()
	s.sessions[id] = &session{mgr: m, lastSeen: s.now()}
	s.notify()
	s.mu.Unlock()
	return id, m
}

// Sweep fecha as sessões expiradas e devolve quantas foram removidas.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if s.now().Sub(sess.lastSeen) > s.ttl {
			delete(s.sessions, id)
			sess.mgr.Close()
			removed++
		}
	}
	if removed > 0 {
		s.notify()
	}
	return removed
}

func (s *SessionStore) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.mgr.Close()
		delete(s.sessions, id)
	}
	s.notify()
}

func (s *SessionStore) notify() {
	if s.OnChange != nil {
		s.OnChange(len(s.sessions))
	}
}
