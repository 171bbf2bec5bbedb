package numerator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newMemStorage() *memStorage {
	return &memStorage{counters: make(map[string]int64)}
}

func (m *memStorage) NextValue(_ context.Context, sequence string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[sequence]++
	return m.counters[sequence], nil
}

func (m *memStorage) ReserveBlock(_ context.Context, sequence string, size int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	first := m.counters[sequence] + 1
	m.counters[sequence] += size
	return first, nil
}

func TestService_SequentialNumbers(t *testing.T) {
	svc := NewService(newMemStorage(), "")
	ctx := context.Background()

	n1, err := svc.Next(ctx, "ND")
	require.NoError(t, err)
	n2, err := svc.Next(ctx, "ND")
	require.NoError(t, err)

	assert.Equal(t, "ND-000001", n1)
	assert.Equal(t, "ND-000002", n2)
}

func TestService_IndependentSequences(t *testing.T) {
	svc := NewService(newMemStorage(), "")
	ctx := context.Background()

	n1, err := svc.Next(ctx, "FC")
	require.NoError(t, err)
	n2, err := svc.Next(ctx, "ND")
	require.NoError(t, err)

	assert.Equal(t, "FC-000001", n1)
	assert.Equal(t, "ND-000001", n2)
}

func TestCachedService_NoDuplicatesAcrossBlocks(t *testing.T) {
	svc := NewCachedService(newMemStorage(), "", 3)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		n, err := svc.Next(ctx, "ND")
		require.NoError(t, err)
		assert.False(t, seen[n], "duplicate number %s", n)
		seen[n] = true
	}
}

func TestCachedService_ConcurrentUnique(t *testing.T) {
	svc := NewCachedService(newMemStorage(), "", 5)
	ctx := context.Background()

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				n, err := svc.Next(ctx, "DOC")
				require.NoError(t, err)
				mu.Lock()
				assert.False(t, seen[n])
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 200)
}
