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

const orderColumns = "id, account_id, chain_id, exchange_id, quantity, bid_price, ask_price, " +
	"full_hash, creation_height, transaction_height, transaction_index"

var _ exchange.OrderStore = (*OrderTable)(nil)

func (s *OrderTable) Insert(ctx context.Context, o *models.Order, height int32) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"UPDATE coin_orders SET latest = FALSE WHERE id = $1 AND latest AND height < $2",
		signed(o.ID), height)
	if err != nil {
		return fmt.Errorf("failed to supersede order version: %w", err)
	}
	_, err = tx.Exec(ctx,
		"INSERT INTO coin_orders (id, account_id, chain_id, exchange_id, quantity, bid_price, ask_price, "+
			"full_hash, creation_height, height, transaction_height, transaction_index, latest, deleted) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, FALSE) "+
			"ON CONFLICT (id, height) DO UPDATE SET quantity = EXCLUDED.quantity, latest = TRUE, deleted = FALSE",
		signed(o.ID), signed(o.AccountID), o.ChainID, o.ExchangeID, o.Quantity, o.BidPrice, o.AskPrice,
		o.FullHash, o.CreationHeight, height, o.TransactionHeight, o.TransactionIndex)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *OrderTable) Delete(ctx context.Context, o *models.Order, height int32) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"UPDATE coin_orders SET latest = FALSE WHERE id = $1 AND latest AND height < $2",
		signed(o.ID), height)
	if err != nil {
		return fmt.Errorf("failed to supersede order version: %w", err)
	}
	_, err = tx.Exec(ctx,
		"INSERT INTO coin_orders (id, account_id, chain_id, exchange_id, quantity, bid_price, ask_price, "+
			"full_hash, creation_height, height, transaction_height, transaction_index, latest, deleted) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, FALSE, TRUE) "+
			"ON CONFLICT (id, height) DO UPDATE SET quantity = EXCLUDED.quantity, latest = FALSE, deleted = TRUE",
		signed(o.ID), signed(o.AccountID), o.ChainID, o.ExchangeID, o.Quantity, o.BidPrice, o.AskPrice,
		o.FullHash, o.CreationHeight, height, o.TransactionHeight, o.TransactionIndex)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *OrderTable) Get(ctx context.Context, id uint64) (*models.Order, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+orderColumns+" FROM coin_orders WHERE id = $1 AND latest", signed(id))
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (s *OrderTable) NextBidOrder(ctx context.Context, chainID, exchangeID uint32) (*models.Order, error) {
	return s.nextOrder(ctx, chainID, exchangeID, "bid_price DESC")
}

func (s *OrderTable) NextAskOrder(ctx context.Context, chainID, exchangeID uint32) (*models.Order, error) {
	return s.nextOrder(ctx, chainID, exchangeID, "ask_price ASC")
}

func (s *OrderTable) nextOrder(ctx context.Context, chainID, exchangeID uint32, priceOrder string) (*models.Order, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+orderColumns+" FROM coin_orders"+
			" WHERE chain_id = $1 AND exchange_id = $2 AND latest"+
			" ORDER BY "+priceOrder+", creation_height ASC, transaction_height ASC, transaction_index ASC"+
			" LIMIT 1",
		chainID, exchangeID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next order: %w", err)
	}
	return o, nil
}

func (s *OrderTable) Orders(ctx context.Context, f exchange.OrderFilter, from, to int) ([]*models.Order, error) {
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
	where = append(where, "latest")
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
	args = append(args, to-from+1, from)
	query := "SELECT " + orderColumns + " FROM coin_orders WHERE " + strings.Join(where, " AND ") +
		" ORDER BY bid_price DESC, creation_height ASC, transaction_height ASC, transaction_index ASC" +
		" LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *OrderTable) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM coin_orders WHERE latest").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

func (s *OrderTable) Rollback(ctx context.Context, height int32) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM coin_orders WHERE height > $1", height); err != nil {
		return fmt.Errorf("failed to trim orders: %w", err)
	}
	_, err = tx.Exec(ctx,
		"UPDATE coin_orders o SET latest = TRUE WHERE NOT deleted AND NOT latest"+
			" AND height = (SELECT MAX(height) FROM coin_orders WHERE id = o.id)")
	if err != nil {
		return fmt.Errorf("failed to restore latest orders: %w", err)
	}
	return tx.Commit(ctx)
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o                models.Order
		id, accountID    int64
		chainID, exchID  int32
		creation, txhgt  int32
		transactionIndex int16
	)
	err := row.Scan(&id, &accountID, &chainID, &exchID, &o.Quantity, &o.BidPrice, &o.AskPrice,
		&o.FullHash, &creation, &txhgt, &transactionIndex)
	if err != nil {
		return nil, err
	}
	o.ID = unsigned(id)
	o.AccountID = unsigned(accountID)
	o.ChainID = uint32(chainID)
	o.ExchangeID = uint32(exchID)
	o.CreationHeight = creation
	o.TransactionHeight = txhgt
	o.TransactionIndex = transactionIndex
	return &o, nil
}
