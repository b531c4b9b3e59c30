// Package pgstore persists the order book, trade log and balances in
// PostgreSQL using the versioned table layout: every mutation writes a new
// row at the current height, a latest flag marks the current view, and
// rollback trims rows above a height and restores the flags. The matching
// engine is the only writer; all writes happen inside the enclosing block
// application scope.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a PostgreSQL connection pool and hands out the per-table
// repositories.
type Store struct {
	Pool *pgxpool.Pool
}

// New initializes a new database connection pool.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &Store{Pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.Pool.Close()
}

// OrderTable is the versioned order book store.
type OrderTable struct {
	pool *pgxpool.Pool
}

func (s *Store) Orders() *OrderTable {
	return &OrderTable{pool: s.Pool}
}

// TradeTable is the append-only trade log.
type TradeTable struct {
	pool *pgxpool.Pool
}

func (s *Store) Trades() *TradeTable {
	return &TradeTable{pool: s.Pool}
}

// BalanceTable is the versioned balance store of one chain.
type BalanceTable struct {
	pool    *pgxpool.Pool
	chainID uint32
}

func (s *Store) Balances(chainID uint32) *BalanceTable {
	return &BalanceTable{pool: s.Pool, chainID: chainID}
}

// Ids are stored as BIGINT; unsigned identifiers round-trip through their
// two's-complement representation, as the ledger does everywhere.
func signed(u uint64) int64   { return int64(u) }
func unsigned(i int64) uint64 { return uint64(i) }
