// Package marketdata fetches candle history and new token listings from a
// Birdeye-style REST API.
package marketdata

import (
	"context"
	"time"

	"solana-surge-lab/internal/domain"
)

// CandleSource fetches raw candles for one token.
type CandleSource interface {
	// FetchCandles returns raw candles in [from, to] in API order.
	// Rows are tagged with the token address.
	FetchCandles(ctx context.Context, address string, from, to time.Time) ([]*domain.RawCandle, error)
}

// ListingSource fetches newly listed tokens.
type ListingSource interface {
	// NewListings returns up to limit recently listed tokens, newest first.
	NewListings(ctx context.Context, limit int) ([]*domain.TokenListing, error)
}

// Source is the full market-data surface used by the CLI.
type Source interface {
	CandleSource
	ListingSource
}
