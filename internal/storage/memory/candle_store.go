package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solana-surge-lab/internal/domain"
	"solana-surge-lab/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.Candle // keyed by (address, timestamp_ms)
	order  []string                  // addresses in first-insert order
	counts map[string]int
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data:   make(map[string]*domain.Candle),
		counts: make(map[string]int),
	}
}

// candleKey generates a unique key for a candle.
func candleKey(address string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", address, timestampMs)
}

// InsertBulk adds multiple candles. Fails entire batch on duplicate.
func (s *CandleStore) InsertBulk(_ context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(candles))

	// First pass: validate and check duplicates (existing + intra-batch)
	for _, c := range candles {
		if c == nil || c.Address == "" {
			return storage.ErrInvalidInput
		}
		key := candleKey(c.Address, c.TimestampMs)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, c := range candles {
		candleCopy := *c
		s.data[candleKey(c.Address, c.TimestampMs)] = &candleCopy
		if s.counts[c.Address] == 0 {
			s.order = append(s.order, c.Address)
		}
		s.counts[c.Address]++
	}

	return nil
}

// GetByAddress retrieves all candles for a token, ordered by timestamp ASC.
func (s *CandleStore) GetByAddress(_ context.Context, address string) ([]*domain.Candle, error) {
	return s.collect(func(c *domain.Candle) bool {
		return c.Address == address
	}), nil
}

// Addresses returns every stored token in first-insert order.
func (s *CandleStore) Addresses(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out, nil
}

func (s *CandleStore) collect(match func(*domain.Candle) bool) []*domain.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candle
	for _, c := range s.data {
		if match(c) {
			candleCopy := *c
			result = append(result, &candleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result
}

var _ storage.CandleStore = (*CandleStore)(nil)
