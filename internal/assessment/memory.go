package assessment

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryRepo is an in-process SessionRepo. Sessions are copied on the way
// in and out.
type MemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryRepo creates an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{sessions: make(map[string]*Session)}
}

func (r *MemoryRepo) Create(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (r *MemoryRepo) Save(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return ErrSessionNotFound
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *MemoryRepo) List(_ context.Context, f ListFilter) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, s := range r.sessions {
		if Matches(s, f) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Matches reports whether s satisfies f, ignoring Limit.
func Matches(s *Session, f ListFilter) bool {
	if f.Stage != "" && s.CurrentStage != f.Stage {
		return false
	}
	if f.Active && s.Final() {
		return false
	}
	if f.CandidateID != "" && s.CandidateID != f.CandidateID {
		return false
	}
	return true
}
