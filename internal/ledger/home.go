package ledger

import (
	"context"
	"fmt"

	"github.com/xtrntr/coinex/internal/chain"
	"github.com/xtrntr/coinex/internal/models"
)

// BalanceStore is the versioned persistence contract for Balance records on
// one chain. Absent balances are nil results, never errors. Save and Delete
// record a new version at the given height; history below it is preserved.
type BalanceStore interface {
	Balance(ctx context.Context, accountID uint64) (*models.Balance, error)
	BalanceAt(ctx context.Context, accountID uint64, height int32) (*models.Balance, error)
	Save(ctx context.Context, b *models.Balance, height int32) error
	Delete(ctx context.Context, b *models.Balance, height int32) error
	Rollback(ctx context.Context, height int32) error
}

// Home owns the balances of one chain. All mutations are overflow checked
// and consistency checked; violations are fatal. A balance whose fields are
// both zero after a mutation is deleted rather than kept as a zero row.
type Home struct {
	chain      *chain.Chain
	store      BalanceStore
	blockchain chain.Blockchain
	sink       Sink
	policy     Policy
}

func NewHome(c *chain.Chain, store BalanceStore, bc chain.Blockchain, sink Sink, policy Policy) *Home {
	if sink == nil {
		sink = NopSink{}
	}
	if policy == nil {
		policy = LogAll{}
	}
	return &Home{chain: c, store: store, blockchain: bc, sink: sink, policy: policy}
}

func (h *Home) Chain() *chain.Chain { return h.chain }

// Balance returns the current balance of the account. An account with no
// record has an implicit zero balance.
func (h *Home) Balance(ctx context.Context, accountID uint64) (*models.Balance, error) {
	b, err := h.store.Balance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return &models.Balance{AccountID: accountID}, nil
	}
	return b, nil
}

// BalanceAt returns the balance as of the given height.
func (h *Home) BalanceAt(ctx context.Context, accountID uint64, height int32) (*models.Balance, error) {
	b, err := h.store.BalanceAt(ctx, accountID, height)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return &models.Balance{AccountID: accountID}, nil
	}
	return b, nil
}

// AddToBalance adjusts the confirmed balance by amount+fee.
func (h *Home) AddToBalance(ctx context.Context, accountID uint64, event Event, eventID EventID, amount, fee int64) error {
	if amount == 0 && fee == 0 {
		return nil
	}
	b, err := h.Balance(ctx, accountID)
	if err != nil {
		return err
	}
	total, err := addExact(amount, fee)
	if err != nil {
		return fmt.Errorf("account %d on chain %d: %w", accountID, h.chain.ID, err)
	}
	b.Balance, err = addExact(b.Balance, total)
	if err != nil {
		return fmt.Errorf("account %d on chain %d: %w", accountID, h.chain.ID, err)
	}
	if err := h.checkBalance(b); err != nil {
		return err
	}
	if err := h.save(ctx, b); err != nil {
		return err
	}
	h.logEntries(b, event, eventID, HoldingConfirmed, amount, fee, b.Balance)
	return nil
}

// AddToUnconfirmedBalance adjusts the unconfirmed balance by amount+fee.
func (h *Home) AddToUnconfirmedBalance(ctx context.Context, accountID uint64, event Event, eventID EventID, amount, fee int64) error {
	if amount == 0 && fee == 0 {
		return nil
	}
	b, err := h.Balance(ctx, accountID)
	if err != nil {
		return err
	}
	total, err := addExact(amount, fee)
	if err != nil {
		return fmt.Errorf("account %d on chain %d: %w", accountID, h.chain.ID, err)
	}
	b.Unconfirmed, err = addExact(b.Unconfirmed, total)
	if err != nil {
		return fmt.Errorf("account %d on chain %d: %w", accountID, h.chain.ID, err)
	}
	if err := h.checkBalance(b); err != nil {
		return err
	}
	if err := h.save(ctx, b); err != nil {
		return err
	}
	h.logEntries(b, event, eventID, HoldingUnconfirmed, amount, fee, b.Unconfirmed)
	return nil
}

// AddToBalanceAndUnconfirmed adjusts both balances by amount+fee. Entries for
// the unconfirmed holding are emitted before the confirmed holding so the
// audit trail replays in a stable order.
func (h *Home) AddToBalanceAndUnconfirmed(ctx context.Context, accountID uint64, event Event, eventID EventID, amount, fee int64) error {
	if amount == 0 && fee == 0 {
		return nil
	}
	b, err := h.Balance(ctx, accountID)
	if err != nil {
		return err
	}
	total, err := addExact(amount, fee)
	if err != nil {
		return fmt.Errorf("account %d on chain %d: %w", accountID, h.chain.ID, err)
	}
	b.Balance, err = addExact(b.Balance, total)
	if err != nil {
		return fmt.Errorf("account %d on chain %d: %w", accountID, h.chain.ID, err)
	}
	b.Unconfirmed, err = addExact(b.Unconfirmed, total)
	if err != nil {
		return fmt.Errorf("account %d on chain %d: %w", accountID, h.chain.ID, err)
	}
	if err := h.checkBalance(b); err != nil {
		return err
	}
	if err := h.save(ctx, b); err != nil {
		return err
	}
	h.logEntries(b, event, eventID, HoldingUnconfirmed, amount, fee, b.Unconfirmed)
	h.logEntries(b, event, eventID, HoldingConfirmed, amount, fee, b.Balance)
	return nil
}

// checkBalance enforces the consistency invariant: neither field may be
// negative and the unconfirmed (spendable) balance may not exceed the
// confirmed one.
func (h *Home) checkBalance(b *models.Balance) error {
	if b.Balance < 0 {
		return fmt.Errorf("account %d on chain %d: negative balance %d: %w",
			b.AccountID, h.chain.ID, b.Balance, ErrInvariantViolation)
	}
	if b.Unconfirmed < 0 || b.Unconfirmed > b.Balance {
		return fmt.Errorf("account %d on chain %d: unconfirmed balance %d inconsistent with balance %d: %w",
			b.AccountID, h.chain.ID, b.Unconfirmed, b.Balance, ErrInvariantViolation)
	}
	return nil
}

func (h *Home) save(ctx context.Context, b *models.Balance) error {
	height := h.blockchain.Height()
	if b.Balance == 0 && b.Unconfirmed == 0 {
		return h.store.Delete(ctx, b, height)
	}
	return h.store.Save(ctx, b, height)
}

// logEntries emits the fee entry (if any) before the principal entry, each
// carrying the resulting value of the modified holding.
func (h *Home) logEntries(b *models.Balance, event Event, eventID EventID, holding Holding, amount, fee, result int64) {
	if !h.policy.MustLog(b.AccountID, holding == HoldingUnconfirmed) {
		return
	}
	height := h.blockchain.Height()
	if fee != 0 {
		h.sink.Record(Entry{
			Event:     EventFee,
			EventID:   eventID,
			AccountID: b.AccountID,
			ChainID:   h.chain.ID,
			Holding:   holding,
			Change:    fee,
			Balance:   result - amount,
			Height:    height,
		})
	}
	if amount != 0 {
		h.sink.Record(Entry{
			Event:     event,
			EventID:   eventID,
			AccountID: b.AccountID,
			ChainID:   h.chain.ID,
			Holding:   holding,
			Change:    amount,
			Balance:   result,
			Height:    height,
		})
	}
}

// addExact returns a+b or ErrInvariantViolation on int64 overflow.
func addExact(a, b int64) (int64, error) {
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		return 0, fmt.Errorf("integer overflow adding %d and %d: %w", a, b, ErrInvariantViolation)
	}
	return sum, nil
}
