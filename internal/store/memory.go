package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mohammad-safakhou/planweave/internal/workflow"
)

// MemoryStore keeps workflows in process memory. It is the default backend
// and the one tests run against.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]workflow.Workflow
	current   *workflow.Workflow
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{workflows: make(map[string]workflow.Workflow)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	out := wf
	return &out, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, wf *workflow.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	doc := *wf
	doc.UpdatedAt = now
	if existing, ok := s.workflows[doc.ID]; ok {
		doc.CreatedAt = existing.CreatedAt
	} else {
		doc.CreatedAt = now
	}
	s.workflows[doc.ID] = doc
	wf.CreatedAt, wf.UpdatedAt = doc.CreatedAt, doc.UpdatedAt
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return ErrWorkflowNotFound
	}
	delete(s.workflows, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]workflow.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SetCurrent(ctx context.Context, wf *workflow.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := *wf
	doc.UpdatedAt = time.Now().UTC()
	s.current = &doc
	return nil
}

func (s *MemoryStore) GetCurrent(ctx context.Context) (*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoCurrent
	}
	out := *s.current
	return &out, nil
}
