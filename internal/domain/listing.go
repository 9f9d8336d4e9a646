package domain

// TokenListing represents a newly listed token returned by the market-data API.
type TokenListing struct {
	Address    string  // token mint address
	Name       string  // display name (may be empty)
	Symbol     string  // ticker symbol (may be empty)
	ListedAtMs int64   // listing / liquidity-added time, Unix ms
	Liquidity  float64 // liquidity in USD at listing time
}

// DisplayName returns the best human-readable name for the listing.
func (l *TokenListing) DisplayName() string {
	switch {
	case l.Name != "":
		return l.Name
	case l.Symbol != "":
		return l.Symbol
	default:
		return l.Address
	}
}
