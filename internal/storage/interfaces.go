package storage

import (
	"context"

	"solana-surge-lab/internal/domain"
)

// CandleStore provides access to cleaned candles.
type CandleStore interface {
	// InsertBulk adds multiple candles atomically.
	// Fails entire batch on any duplicate (address, timestamp_ms).
	InsertBulk(ctx context.Context, candles []*domain.Candle) error

	// GetByAddress retrieves all candles for a token, ordered by timestamp ASC.
	GetByAddress(ctx context.Context, address string) ([]*domain.Candle, error)

	// Addresses returns every stored token in first-insert order.
	Addresses(ctx context.Context) ([]string, error)
}

// EventStore provides access to detected price-increase events.
type EventStore interface {
	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.Event) error

	// GetByWindow retrieves events of one window size, ordered by (address, start_time_ms).
	GetByWindow(ctx context.Context, windowMs int64) ([]*domain.Event, error)
}
