// Package numerator issues correlative document numbers per sequence code.
//
// Numbers are gap-intolerant within a strategy: the strict strategy locks the
// counter row for the duration of the ambient transaction, the cached strategy
// allocates blocks and tolerates gaps on restart in exchange for throughput.
package numerator

import (
	"context"
	"fmt"
	"sync"
)

// Storage persists sequence counters.
type Storage interface {
	// NextValue atomically increments and returns the counter. Implementations
	// must hold a row lock until the ambient transaction ends so concurrent
	// documents cannot share a number.
	NextValue(ctx context.Context, sequence string) (int64, error)

	// ReserveBlock advances the counter by size and returns the first value
	// of the reserved block.
	ReserveBlock(ctx context.Context, sequence string, size int64) (int64, error)
}

// Service formats correlative numbers from a Storage.
type Service struct {
	storage Storage
	format  string
}

// NewService creates a strict numerator. format is a fmt pattern receiving
// (sequence, value), default "%s-%06d".
func NewService(storage Storage, format string) *Service {
	if format == "" {
		format = "%s-%06d"
	}
	return &Service{storage: storage, format: format}
}

// Next issues the next number for the sequence.
func (s *Service) Next(ctx context.Context, sequence string) (string, error) {
	v, err := s.storage.NextValue(ctx, sequence)
	if err != nil {
		return "", fmt.Errorf("numerator next %q: %w", sequence, err)
	}
	return fmt.Sprintf(s.format, sequence, v), nil
}

// CachedService reserves counter blocks and hands numbers out from memory.
// Faster under load; unreturned numbers in a block are lost on restart.
type CachedService struct {
	storage   Storage
	format    string
	blockSize int64

	mu     sync.Mutex
	blocks map[string]*block
}

type block struct {
	next int64
	end  int64 // exclusive
}

// NewCachedService creates a block-allocating numerator.
func NewCachedService(storage Storage, format string, blockSize int64) *CachedService {
	if format == "" {
		format = "%s-%06d"
	}
	if blockSize <= 0 {
		blockSize = 50
	}
	return &CachedService{
		storage:   storage,
		format:    format,
		blockSize: blockSize,
		blocks:    make(map[string]*block),
	}
}

// Next issues the next number, reserving a new block when the current one is
// exhausted.
func (s *CachedService) Next(ctx context.Context, sequence string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.blocks[sequence]
	if b == nil || b.next >= b.end {
		first, err := s.storage.ReserveBlock(ctx, sequence, s.blockSize)
		if err != nil {
			return "", fmt.Errorf("numerator reserve block %q: %w", sequence, err)
		}
		b = &block{next: first, end: first + s.blockSize}
		s.blocks[sequence] = b
	}

	v := b.next
	b.next++
	return fmt.Sprintf(s.format, sequence, v), nil
}
