package exchange

import (
	"context"

	"github.com/xtrntr/coinex/internal/models"
)

// OrderStore is the versioned persistence contract for open orders. Insert
// and Delete record a new version at the given height without erasing
// history; reads of the current book see only the latest version.
type OrderStore interface {
	Insert(ctx context.Context, o *models.Order, height int32) error
	Delete(ctx context.Context, o *models.Order, height int32) error

	// Get returns the current version of the order, or nil if absent.
	Get(ctx context.Context, id uint64) (*models.Order, error)

	// NextBidOrder returns the open order offering chainID for exchangeID
	// with the highest bid price; ties go to the earliest
	// (creationHeight, transactionHeight, transactionIndex) tuple.
	NextBidOrder(ctx context.Context, chainID, exchangeID uint32) (*models.Order, error)

	// NextAskOrder is the same book viewed from the ask side: lowest ask
	// price first, same tie-break.
	NextAskOrder(ctx context.Context, chainID, exchangeID uint32) (*models.Order, error)

	// Orders enumerates current orders matching the filter, sorted by
	// descending bid price, restricted to the inclusive index range
	// [from, to].
	Orders(ctx context.Context, f OrderFilter, from, to int) ([]*models.Order, error)

	Count(ctx context.Context) (int, error)

	// Rollback discards all versions above height and restores the latest
	// view as of that height.
	Rollback(ctx context.Context, height int32) error
}

// TradeStore is the append-only trade log. Insert is the only mutator.
type TradeStore interface {
	Insert(ctx context.Context, t *models.Trade) error

	// Get returns the trade identified by the two order hashes, or nil.
	Get(ctx context.Context, orderFullHash, matchFullHash []byte) (*models.Trade, error)

	// Trades enumerates trades matching the filter, most recent first
	// (descending height, then descending insertion order), restricted to
	// the inclusive index range [from, to].
	Trades(ctx context.Context, f TradeFilter, from, to int) ([]*models.Trade, error)

	Count(ctx context.Context) (int, error)

	Rollback(ctx context.Context, height int32) error
}

// OrderFilter selects orders by account and/or chain pair. Zero fields mean
// no criterion.
type OrderFilter struct {
	AccountID  uint64
	ChainID    uint32
	ExchangeID uint32
}

// TradeFilter selects trades by account, chain pair and/or originating order
// hash. Zero fields mean no criterion.
type TradeFilter struct {
	AccountID     uint64
	ChainID       uint32
	ExchangeID    uint32
	OrderFullHash []byte
}
