package memory

import (
	"context"
	"sync"

	"paperpal/internal/domain"
	"paperpal/internal/vectorstore"
)

// Storage keeps saved indexes in process memory, keyed by location.
type Storage struct {
	mu      sync.RWMutex
	indexes map[string]*vectorstore.Index
}

func NewStorage() *Storage { return &Storage{indexes: map[string]*vectorstore.Index{}} }

func (s *Storage) Save(ctx context.Context, location string, ix *vectorstore.Index) error {
	if err := vectorstore.ValidateLocation(location); err != nil {
		return err
	}
	if err := ix.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := clone(ix)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes[location] = snap
	return nil
}

func (s *Storage) Load(ctx context.Context, location string) (*vectorstore.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ix, ok := s.indexes[location]
	if !ok {
		return nil, domain.ErrIndexNotFound
	}
	return clone(ix), nil
}

func (s *Storage) Exists(ctx context.Context, location string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[location]
	return ok, nil
}

// clone copies records and vectors so callers never share backing arrays.
func clone(ix *vectorstore.Index) *vectorstore.Index {
	out := &vectorstore.Index{Embedder: ix.Embedder, Dimension: ix.Dimension, Records: make([]domain.VectorRecord, len(ix.Records))}
	for i, r := range ix.Records {
		r.Embedding = append([]float32(nil), r.Embedding...)
		out.Records[i] = r
	}
	return out
}
