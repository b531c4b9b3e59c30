package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/xtrntr/coinex/internal/exchange"
	"github.com/xtrntr/coinex/internal/models"
)

const tradeColumns = "chain_id, exchange_id, block_id, height, timestamp, exchange_quantity, " +
	"exchange_price, account_id, order_id, order_full_hash, match_id, match_full_hash"

var _ exchange.TradeStore = (*TradeTable)(nil)

// Insert appends a trade row. The trade log is append-only; there is no
// update or delete path outside of height rollback.
func (s *TradeTable) Insert(ctx context.Context, t *models.Trade) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO coin_trades ("+tradeColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)",
		t.ChainID, t.ExchangeID, signed(t.BlockID), t.Height, t.Timestamp, t.ExchangeQuantity,
		t.ExchangePrice, signed(t.AccountID), signed(t.OrderID), t.OrderFullHash, signed(t.MatchID), t.MatchFullHash)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

func (s *TradeTable) Get(ctx context.Context, orderFullHash, matchFullHash []byte) (*models.Trade, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+tradeColumns+" FROM coin_trades WHERE order_full_hash = $1 AND match_full_hash = $2",
		orderFullHash, matchFullHash)
	t, err := scanTrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return t, nil
}

func (s *TradeTable) Trades(ctx context.Context, f exchange.TradeFilter, from, to int) ([]*models.Trade, error) {
	if from < 0 {
		from = 0
	}
	if to < from {
		return nil, nil
	}
	var (
		where []string
		args  []any
	)
	if f.AccountID != 0 {
		args = append(args, signed(f.AccountID))
		where = append(where, "account_id = $"+strconv.Itoa(len(args)))
	}
	if f.ChainID != 0 {
		args = append(args, f.ChainID)
		where = append(where, "chain_id = $"+strconv.Itoa(len(args)))
	}
	if f.ExchangeID != 0 {
		args = append(args, f.ExchangeID)
		where = append(where, "exchange_id = $"+strconv.Itoa(len(args)))
	}
	if len(f.OrderFullHash) != 0 {
		args = append(args, f.OrderFullHash)
		where = append(where, "order_full_hash = $"+strconv.Itoa(len(args)))
	}
	query := "SELECT " + tradeColumns + " FROM coin_trades"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, to-from+1, from)
	query += " ORDER BY height DESC, db_id DESC" +
		" LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *TradeTable) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM coin_trades").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return n, nil
}

func (s *TradeTable) Rollback(ctx context.Context, height int32) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM coin_trades WHERE height > $1", height)
	if err != nil {
		return fmt.Errorf("failed to trim trades: %w", err)
	}
	return nil
}

func scanTrade(row pgx.Row) (*models.Trade, error) {
	var (
		t                  models.Trade
		chainID, exchID    int32
		blockID, accountID int64
		orderID, matchID   int64
	)
	err := row.Scan(&chainID, &exchID, &blockID, &t.Height, &t.Timestamp, &t.ExchangeQuantity,
		&t.ExchangePrice, &accountID, &orderID, &t.OrderFullHash, &matchID, &t.MatchFullHash)
	if err != nil {
		return nil, err
	}
	t.ChainID = uint32(chainID)
	t.ExchangeID = uint32(exchID)
	t.BlockID = unsigned(blockID)
	t.AccountID = unsigned(accountID)
	t.OrderID = unsigned(orderID)
	t.MatchID = unsigned(matchID)
	return &t, nil
}
