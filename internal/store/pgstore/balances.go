package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xtrntr/coinex/internal/ledger"
	"github.com/xtrntr/coinex/internal/models"
)

var _ ledger.BalanceStore = (*BalanceTable)(nil)

func (s *BalanceTable) Balance(ctx context.Context, accountID uint64) (*models.Balance, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT account_id, balance, unconfirmed_balance FROM balances"+
			" WHERE chain_id = $1 AND account_id = $2 AND latest",
		s.chainID, signed(accountID))
	b, err := scanBalance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return b, nil
}

// BalanceAt resolves to the newest version at or below the height. A
// tombstone version means the balance was absent as of that height, so it
// must not be skipped in favor of an older live row.
func (s *BalanceTable) BalanceAt(ctx context.Context, accountID uint64, height int32) (*models.Balance, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT account_id, balance, unconfirmed_balance, deleted FROM balances"+
			" WHERE chain_id = $1 AND account_id = $2 AND height <= $3"+
			" ORDER BY height DESC LIMIT 1",
		s.chainID, signed(accountID), height)
	var (
		b       models.Balance
		accID   int64
		deleted bool
	)
	err := row.Scan(&accID, &b.Balance, &b.Unconfirmed, &deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance at height: %w", err)
	}
	if deleted {
		return nil, nil
	}
	b.AccountID = unsigned(accID)
	return &b, nil
}

func (s *BalanceTable) Save(ctx context.Context, b *models.Balance, height int32) error {
	return s.put(ctx, b, height, false)
}

// Delete marks the balance absent as of the given height. The zero-row
// policy lives in the ledger; the store just versions the tombstone.
func (s *BalanceTable) Delete(ctx context.Context, b *models.Balance, height int32) error {
	return s.put(ctx, b, height, true)
}

func (s *BalanceTable) put(ctx context.Context, b *models.Balance, height int32, deleted bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"UPDATE balances SET latest = FALSE WHERE chain_id = $1 AND account_id = $2 AND latest AND height < $3",
		s.chainID, signed(b.AccountID), height)
	if err != nil {
		return fmt.Errorf("failed to supersede balance version: %w", err)
	}
	_, err = tx.Exec(ctx,
		"INSERT INTO balances (chain_id, account_id, balance, unconfirmed_balance, height, latest, deleted)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7)"+
			" ON CONFLICT (chain_id, account_id, height) DO UPDATE SET"+
			" balance = EXCLUDED.balance, unconfirmed_balance = EXCLUDED.unconfirmed_balance,"+
			" latest = EXCLUDED.latest, deleted = EXCLUDED.deleted",
		s.chainID, signed(b.AccountID), b.Balance, b.Unconfirmed, height, !deleted, deleted)
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *BalanceTable) Rollback(ctx context.Context, height int32) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "DELETE FROM balances WHERE chain_id = $1 AND height > $2", s.chainID, height)
	if err != nil {
		return fmt.Errorf("failed to trim balances: %w", err)
	}
	_, err = tx.Exec(ctx,
		"UPDATE balances b SET latest = TRUE WHERE chain_id = $1 AND NOT deleted AND NOT latest"+
			" AND height = (SELECT MAX(height) FROM balances WHERE chain_id = $1 AND account_id = b.account_id)",
		s.chainID)
	if err != nil {
		return fmt.Errorf("failed to restore latest balances: %w", err)
	}
	return tx.Commit(ctx)
}

func scanBalance(row pgx.Row) (*models.Balance, error) {
	var (
		b         models.Balance
		accountID int64
	)
	if err := row.Scan(&accountID, &b.Balance, &b.Unconfirmed); err != nil {
		return nil, err
	}
	b.AccountID = unsigned(accountID)
	return &b, nil
}
