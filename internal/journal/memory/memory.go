package memory

import (
	"context"
	"sync"

	"rareport/internal/core"
)

// Store keeps the last size upload summaries in process memory.
type Store struct {
	mu    sync.Mutex
	items []core.UploadSummary
	next  int
	full  bool
}

func New(size int) *Store {
	if size < 1 {
		size = 1
	}
	return &Store{items: make([]core.UploadSummary, size)}
}

// Record implements journal.Recorder. The oldest entry is overwritten once
// the ring is full.
func (s *Store) Record(_ context.Context, sum core.UploadSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[s.next] = sum
	s.next = (s.next + 1) % len(s.items)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

// Recent implements journal.Lister.
func (s *Store) Recent(_ context.Context, limit int) ([]core.UploadSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.next
	if s.full {
		n = len(s.items)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]core.UploadSummary, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.next - i + len(s.items)) % len(s.items)
		out = append(out, s.items[idx])
	}
	return out, nil
}
