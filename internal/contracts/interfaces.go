package contracts

import "context"

// QuoteClient fetches market data for one symbol. Both methods route
// through the rate limiter and fail with ErrNotFound on missing data.
type QuoteClient interface {
	// FetchLight costs one external call and returns a partial snapshot
	// (name falls back to the symbol, market cap to 0).
	FetchLight(ctx context.Context, symbol string) (*Snapshot, error)

	// FetchFull costs up to two external calls (quote + profile). Profile
	// failure degrades name/exchange/market cap; quote failure fails.
	FetchFull(ctx context.Context, symbol string) (*Snapshot, error)
}

// SymbolSource resolves an index name to its constituent symbols
type SymbolSource interface {
	Symbols(ctx context.Context, indexName string) ([]string, error)
}

// SymbolRanker screens a candidate universe down to the qualified
// symbols, best first
type SymbolRanker interface {
	Rank(ctx context.Context, symbols []string) ([]string, error)
}
