// Package sessions stores per-user dialogue state.
package sessions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
	"github.com/larriantoniy/oplati_pay_bot/internal/ports"
)

// MemoryStore держит сессии в памяти процесса. Рестарт их теряет.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]domain.Session
	idleTTL  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewMemoryStore returns a store; idleTTL <= 0 disables eviction.
func NewMemoryStore(idleTTL time.Duration, logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]domain.Session),
		idleTTL:  idleTTL,
		now:      time.Now,
		logger:   logger,
	}
}

func (s *MemoryStore) Get(ctx context.Context, userID int64) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return nil, ports.ErrSessionNotFound
	}
	if s.expired(sess) {
		delete(s.sessions, userID)
		return nil, ports.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) Save(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = s.now()
	}
	s.sessions[cp.UserID] = cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID int64) error {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	return nil
}

// Len: число хранимых сессий, включая ещё не вычищенные.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.idleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.evict(); n > 0 {
				s.logger.Debug("idle sessions evicted", "count", n)
			}
		}
	}
}

func (s *MemoryStore) evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *MemoryStore) expired(sess domain.Session) bool {
	return s.idleTTL > 0 && s.now().Sub(sess.UpdatedAt) > s.idleTTL
}
