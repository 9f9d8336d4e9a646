package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-surge-lab/internal/domain"
	"solana-surge-lab/internal/storage"
)

func event(id, addr string, start, window int64) *domain.Event {
	return &domain.Event{
		EventID:        id,
		Address:        addr,
		StartTimeMs:    start,
		EndTimeMs:      start + window/2,
		StartPrice:     1,
		EndPrice:       5,
		IncreaseFactor: 5,
		WindowMs:       window,
		TotalVolume:    100,
	}
}

func TestEventStore_InsertBulkCopies(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	e := event("e1", "a", 1000, 900000)
	require.NoError(t, store.InsertBulk(ctx, []*domain.Event{e}))
	e.IncreaseFactor = 99

	got, err := store.GetByWindow(ctx, 900000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Address)
	assert.Equal(t, 5.0, got[0].IncreaseFactor, "store keeps its own copy")

	none, err := store.GetByWindow(ctx, 300000)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEventStore_Duplicate(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.Event{event("e1", "a", 1000, 900000)}))
	err := store.InsertBulk(ctx, []*domain.Event{event("e1", "a", 1000, 900000)})
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey))

	err = store.InsertBulk(ctx, []*domain.Event{
		event("e2", "a", 2000, 900000),
		event("e2", "a", 2000, 900000),
	})
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey))

	got, err := store.GetByWindow(ctx, 900000)
	require.NoError(t, err)
	assert.Len(t, got, 1, "batch must roll back")
}

func TestEventStore_InvalidInput(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	assert.True(t, errors.Is(store.InsertBulk(ctx, []*domain.Event{nil}), storage.ErrInvalidInput))
	assert.True(t, errors.Is(store.InsertBulk(ctx, []*domain.Event{{}}), storage.ErrInvalidInput))
	assert.NoError(t, store.InsertBulk(ctx, nil))
}

func TestEventStore_GetByWindow(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.Event{
		event("e1", "b", 3000, 300000),
		event("e2", "a", 2000, 900000),
		event("e3", "a", 1000, 900000),
		event("e4", "a", 1000, 300000),
	}))

	fifteen, err := store.GetByWindow(ctx, 900000)
	require.NoError(t, err)
	require.Len(t, fifteen, 2)
	assert.Equal(t, "e3", fifteen[0].EventID)
	assert.Equal(t, "e2", fifteen[1].EventID)

	five, err := store.GetByWindow(ctx, 300000)
	require.NoError(t, err)
	require.Len(t, five, 2)
	assert.Equal(t, "a", five[0].Address)
	assert.Equal(t, "b", five[1].Address)
}

func TestEventStore_ConcurrentInsert(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.InsertBulk(ctx, []*domain.Event{event("same", "a", 1, 1)})
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.True(t, errors.Is(err, storage.ErrDuplicateKey))
		}
	}
	assert.Equal(t, 1, ok, "exactly one batch wins")
}
