package sessionstore

import (
	"context"
	"sync"
	"time"

	"chatmrpt-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// MemoryStore is a single-process Store backed by go-cache. It serves tests
// and single-worker development runs; multi-worker deployments must use
// RedisStore since this one is not visible across processes.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: cache.New(SessionTTL, 10*time.Minute),
	}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*store.WorkflowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if x, found := s.cache.Get(sessionID); found {
		return x.(*store.WorkflowState).Clone(), nil
	}
	return nil, nil
}

func (s *MemoryStore) Put(ctx context.Context, st *store.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentVersion := int64(0)
	if x, found := s.cache.Get(st.SessionID); found {
		currentVersion = x.(*store.WorkflowState).Version
	}
	if st.Version != currentVersion {
		return ErrConflict
	}

	next := st.Clone()
	next.Version = currentVersion + 1
	next.UpdatedAt = time.Now()
	s.cache.Set(st.SessionID, next, cache.DefaultExpiration)

	st.Version = next.Version
	st.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(sessionID)
	return nil
}
