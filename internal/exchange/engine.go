// Package exchange implements the cross-chain order matching engine: it
// pairs opposing orders between two chains under price-time priority and
// drives the balance mutations and trade log writes for every fill.
//
// The engine runs on the single-threaded state-transition path of block
// application. One order submission is matched to completion before the next
// instruction is processed; there is no parallelism inside the matching loop
// and none is permitted.
package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xtrntr/coinex/internal/chain"
	"github.com/xtrntr/coinex/internal/ledger"
	"github.com/xtrntr/coinex/internal/models"
)

// ErrNotFound is returned by write-path operations referring to an unknown
// order. Read accessors report absence as a nil result instead.
var ErrNotFound = errors.New("exchange: order not found")

// Engine consumes newly submitted orders and matches them against the
// opposing book until the pair no longer crosses.
type Engine struct {
	registry   *chain.Registry
	blockchain chain.Blockchain
	orders     OrderStore
	trades     TradeStore
	balances   *ledger.Homes
	listeners  *tradeListeners
}

func NewEngine(reg *chain.Registry, bc chain.Blockchain, orders OrderStore, trades TradeStore, balances *ledger.Homes, log *zap.Logger) *Engine {
	return &Engine{
		registry:   reg,
		blockchain: bc,
		orders:     orders,
		trades:     trades,
		balances:   balances,
		listeners:  newTradeListeners(log),
	}
}

// AddTradeListener registers an observer invoked after every trade insertion.
func (e *Engine) AddTradeListener(fn TradeListener) ListenerID {
	return e.listeners.add(fn)
}

// RemoveTradeListener unregisters a previously added observer.
func (e *Engine) RemoveTradeListener(id ListenerID) bool {
	return e.listeners.remove(id)
}

// IssueOrder creates an order offering quantity units of chainID at bidPrice
// (requested coin priced in chainID units), reserves the offered quantity
// from the sender's unconfirmed balance, inserts the order and matches it
// against the opposing book. The returned order reflects the state after
// matching; a fully filled order comes back with Quantity 0.
//
// Business validation (positive price and quantity, sufficient spendable
// balance) is the caller's responsibility; the engine only enforces its own
// arithmetic invariants.
func (e *Engine) IssueOrder(ctx context.Context, tx models.TxContext, chainID, exchangeID uint32, quantity, bidPrice int64) (*models.Order, error) {
	c := e.registry.Chain(chainID)
	x := e.registry.Chain(exchangeID)
	if c == nil || x == nil {
		return nil, fmt.Errorf("exchange: unknown chain pair (%d, %d)", chainID, exchangeID)
	}
	if chainID == exchangeID {
		return nil, fmt.Errorf("exchange: chain %d cannot be exchanged for itself", chainID)
	}

	askPrice, err := askPriceFor(bidPrice, c.Decimals, x.Decimals)
	if err != nil {
		return nil, err
	}
	order := &models.Order{
		ID:                tx.ID,
		FullHash:          tx.FullHash,
		AccountID:         tx.SenderID,
		ChainID:           chainID,
		ExchangeID:        exchangeID,
		Quantity:          quantity,
		BidPrice:          bidPrice,
		AskPrice:          askPrice,
		CreationHeight:    e.blockchain.Height(),
		TransactionHeight: tx.Height,
		TransactionIndex:  tx.Index,
	}

	// Reserve the offered coins: the spendable balance drops now, the
	// confirmed balance only as fills settle.
	eventID := ledger.EventID{ID: order.ID, FullHash: order.FullHash, ChainID: chainID}
	if err := e.balances.ForChain(chainID).AddToUnconfirmedBalance(ctx, order.AccountID, ledger.EventOrderIssue, eventID, -quantity, 0); err != nil {
		return nil, err
	}
	if err := e.orders.Insert(ctx, order, e.blockchain.Height()); err != nil {
		return nil, err
	}
	if err := e.matchOrders(ctx, c, x); err != nil {
		return nil, err
	}

	final, err := e.orders.Get(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if final == nil {
		order.Quantity = 0
		return order, nil
	}
	return final, nil
}

// CancelOrder removes an open order and refunds its remaining quantity to
// the owner's unconfirmed balance.
func (e *Engine) CancelOrder(ctx context.Context, tx models.TxContext, orderID uint64) error {
	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	eventID := ledger.EventID{ID: tx.ID, FullHash: tx.FullHash, ChainID: order.ChainID}
	if err := e.balances.ForChain(order.ChainID).AddToUnconfirmedBalance(ctx, order.AccountID, ledger.EventOrderCancel, eventID, order.Quantity, 0); err != nil {
		return err
	}
	return e.orders.Delete(ctx, order, e.blockchain.Height())
}

// matchOrders runs the matching loop for the chain pair until the books no
// longer cross or one side empties.
//
// The bid orders offer coin A (the submitted order's chain) for coin B; the
// ask orders are the opposing book offering B for A.
func (e *Engine) matchOrders(ctx context.Context, chainA, chainB *chain.Chain) error {
	bidDecimals := chainA.Decimals
	askDecimals := chainB.Decimals
	for {
		askOrder, err := e.orders.NextAskOrder(ctx, chainB.ID, chainA.ID)
		if err != nil {
			return err
		}
		if askOrder == nil {
			return nil
		}
		bidOrder, err := e.orders.NextBidOrder(ctx, chainA.ID, chainB.ID)
		if err != nil {
			return err
		}
		if bidOrder == nil {
			return nil
		}

		// Chain-normalized price views. The bid order prices B in A
		// units, the ask order prices A in B units.
		bidOrderBid := coinValue(bidOrder.BidPrice, bidDecimals)
		bidOrderAsk := coinValue(bidOrder.AskPrice, askDecimals)
		askOrderBid := coinValue(askOrder.BidPrice, askDecimals)
		askOrderAsk := coinValue(askOrder.AskPrice, bidDecimals)
		if askOrderAsk.GreaterThan(bidOrderBid) {
			return nil
		}

		// Price-time priority: the older resting order sets the
		// clearing price, the later order crosses it.
		var bidPrice, askPrice decimal.Decimal // A/B and B/A respectively
		if olderThan(askOrder, bidOrder) {
			bidPrice, askPrice = askOrderAsk, askOrderBid
		} else {
			bidPrice, askPrice = bidOrderBid, bidOrderAsk
		}

		// bidQuantity: amount of B the bid order receives, limited by
		// what its remaining A buys at the clearing price.
		bidQuantity, err := unitsOf(coinValue(bidOrder.Quantity, bidDecimals).Mul(askPrice), askDecimals)
		if err != nil {
			return err
		}
		if bidQuantity == 0 {
			bidQuantity = 1 // dust floor
		}
		if bidQuantity >= askOrder.Quantity-1 {
			bidQuantity = askOrder.Quantity // near-exhaustion snap
		}
		// askQuantity: amount of A the ask order receives.
		askQuantity, err := unitsOf(coinValue(askOrder.Quantity, askDecimals).Mul(bidPrice), bidDecimals)
		if err != nil {
			return err
		}
		if askQuantity == 0 {
			askQuantity = 1
		}
		if askQuantity >= bidOrder.Quantity-1 {
			askQuantity = bidOrder.Quantity
		}

		bidTradePrice, err := unitsOf(bidPrice, bidDecimals)
		if err != nil {
			return err
		}
		askTradePrice, err := unitsOf(askPrice, askDecimals)
		if err != nil {
			return err
		}
		if err := e.addTrade(ctx, bidQuantity, bidTradePrice, bidOrder, askOrder); err != nil {
			return err
		}
		if err := e.addTrade(ctx, askQuantity, askTradePrice, askOrder, bidOrder); err != nil {
			return err
		}

		// Buyer side: spends askQuantity of A, receives bidQuantity of B.
		if err := e.updateQuantity(ctx, bidOrder, bidOrder.Quantity-askQuantity); err != nil {
			return err
		}
		bidEventID := ledger.EventID{ID: bidOrder.ID, FullHash: bidOrder.FullHash, ChainID: chainA.ID}
		if err := e.balances.ForChain(chainA.ID).AddToBalance(ctx, bidOrder.AccountID, ledger.EventTrade, bidEventID, -askQuantity, 0); err != nil {
			return err
		}
		if err := e.balances.ForChain(chainB.ID).AddToBalanceAndUnconfirmed(ctx, bidOrder.AccountID, ledger.EventTrade, bidEventID, bidQuantity, 0); err != nil {
			return err
		}

		// Seller side: spends bidQuantity of B, receives askQuantity of A.
		if err := e.updateQuantity(ctx, askOrder, askOrder.Quantity-bidQuantity); err != nil {
			return err
		}
		askEventID := ledger.EventID{ID: askOrder.ID, FullHash: askOrder.FullHash, ChainID: chainB.ID}
		if err := e.balances.ForChain(chainB.ID).AddToBalance(ctx, askOrder.AccountID, ledger.EventTrade, askEventID, -bidQuantity, 0); err != nil {
			return err
		}
		if err := e.balances.ForChain(chainA.ID).AddToBalanceAndUnconfirmed(ctx, askOrder.AccountID, ledger.EventTrade, askEventID, askQuantity, 0); err != nil {
			return err
		}
	}
}

func (e *Engine) addTrade(ctx context.Context, exchangeQuantity, exchangePrice int64, order, match *models.Order) error {
	block := e.blockchain.LastBlock()
	trade := &models.Trade{
		ChainID:          order.ChainID,
		ExchangeID:       order.ExchangeID,
		BlockID:          block.ID,
		Height:           block.Height,
		Timestamp:        block.Timestamp,
		ExchangeQuantity: exchangeQuantity,
		ExchangePrice:    exchangePrice,
		AccountID:        order.AccountID,
		OrderID:          order.ID,
		OrderFullHash:    order.FullHash,
		MatchID:          match.ID,
		MatchFullHash:    match.FullHash,
	}
	if err := e.trades.Insert(ctx, trade); err != nil {
		return err
	}
	e.listeners.notify(trade)
	return nil
}

// updateQuantity shrinks an order after a fill. The order is removed from
// the book the instant its quantity reaches zero; a negative quantity is a
// fatal invariant violation.
func (e *Engine) updateQuantity(ctx context.Context, order *models.Order, quantity int64) error {
	if quantity < 0 {
		return fmt.Errorf("negative quantity %d for order %d: %w",
			quantity, order.ID, ledger.ErrInvariantViolation)
	}
	order.Quantity = quantity
	if quantity == 0 {
		return e.orders.Delete(ctx, order, e.blockchain.Height())
	}
	return e.orders.Insert(ctx, order, e.blockchain.Height())
}

// olderThan reports whether a was submitted strictly before b, comparing
// (creationHeight, transactionHeight, transactionIndex).
func olderThan(a, b *models.Order) bool {
	if a.CreationHeight != b.CreationHeight {
		return a.CreationHeight < b.CreationHeight
	}
	if a.TransactionHeight != b.TransactionHeight {
		return a.TransactionHeight < b.TransactionHeight
	}
	return a.TransactionIndex < b.TransactionIndex
}
