package exchange

import (
	"context"

	"github.com/xtrntr/coinex/internal/models"
)

// Read accessors consumed by external reporting and API layers. Absent
// records are nil results, never errors.

// Order returns the current version of an order, or nil if it is not open.
func (e *Engine) Order(ctx context.Context, id uint64) (*models.Order, error) {
	return e.orders.Get(ctx, id)
}

// Orders enumerates open orders matching the filter, sorted by descending
// bid price, over the inclusive index range [from, to].
func (e *Engine) Orders(ctx context.Context, f OrderFilter, from, to int) ([]*models.Order, error) {
	return e.orders.Orders(ctx, f, from, to)
}

// OrderCount returns the number of open orders.
func (e *Engine) OrderCount(ctx context.Context) (int, error) {
	return e.orders.Count(ctx)
}

// Trade returns the trade identified by the two order hashes, or nil.
func (e *Engine) Trade(ctx context.Context, orderFullHash, matchFullHash []byte) (*models.Trade, error) {
	return e.trades.Get(ctx, orderFullHash, matchFullHash)
}

// Trades enumerates trades matching the filter, most recent first, over the
// inclusive index range [from, to].
func (e *Engine) Trades(ctx context.Context, f TradeFilter, from, to int) ([]*models.Trade, error) {
	return e.trades.Trades(ctx, f, from, to)
}

// TradeCount returns the total number of recorded trades.
func (e *Engine) TradeCount(ctx context.Context) (int, error) {
	return e.trades.Count(ctx)
}
