package ledger_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtrntr/coinex/internal/chain"
	"github.com/xtrntr/coinex/internal/ledger"
	"github.com/xtrntr/coinex/internal/store/memstore"
)

const account = uint64(42)

var testChain = chain.Chain{ID: 3, Name: "ZCH", Decimals: 2}

// recordingSink captures entries for assertions.
type recordingSink struct {
	entries []ledger.Entry
}

func (s *recordingSink) Record(e ledger.Entry) {
	s.entries = append(s.entries, e)
}

// denyPolicy suppresses all entries.
type denyPolicy struct{}

func (denyPolicy) MustLog(uint64, bool) bool { return false }

func newHome(t *testing.T) (*ledger.Home, *recordingSink, *chain.State) {
	t.Helper()
	state := chain.NewState()
	state.SetLastBlock(chain.Block{ID: 1, Height: 10, Timestamp: 1000})
	sink := &recordingSink{}
	home := ledger.NewHome(&testChain, memstore.NewBalances(), state, sink, ledger.LogAll{})
	return home, sink, state
}

func eventID() ledger.EventID {
	return ledger.EventID{ID: 77, FullHash: []byte{0x77}, ChainID: testChain.ID}
}

func TestHome_ImplicitZeroBalance(t *testing.T) {
	home, _, _ := newHome(t)

	b, err := home.Balance(context.Background(), account)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, account, b.AccountID)
	assert.Zero(t, b.Balance)
	assert.Zero(t, b.Unconfirmed)
}

func TestHome_NoOpMutation(t *testing.T) {
	home, sink, _ := newHome(t)
	ctx := context.Background()

	require.NoError(t, home.AddToBalance(ctx, account, ledger.EventTrade, eventID(), 0, 0))
	require.NoError(t, home.AddToUnconfirmedBalance(ctx, account, ledger.EventTrade, eventID(), 0, 0))
	require.NoError(t, home.AddToBalanceAndUnconfirmed(ctx, account, ledger.EventTrade, eventID(), 0, 0))

	assert.Empty(t, sink.entries, "a zero mutation must not emit entries")
	b, err := home.Balance(ctx, account)
	require.NoError(t, err)
	assert.Zero(t, b.Balance)
}

func TestHome_DualMutationEntryOrder(t *testing.T) {
	home, sink, _ := newHome(t)
	ctx := context.Background()

	require.NoError(t, home.AddToBalanceAndUnconfirmed(ctx, account, ledger.EventFunding, eventID(), 5000, 0))

	require.Len(t, sink.entries, 2)
	assert.Equal(t, ledger.HoldingUnconfirmed, sink.entries[0].Holding,
		"the unconfirmed entry must come before the confirmed one")
	assert.Equal(t, ledger.HoldingConfirmed, sink.entries[1].Holding)
	for _, e := range sink.entries {
		assert.Equal(t, ledger.EventFunding, e.Event)
		assert.Equal(t, int64(5000), e.Change)
		assert.Equal(t, int64(5000), e.Balance)
		assert.Equal(t, int32(10), e.Height)
	}
}

func TestHome_FeeEntryBeforePrincipal(t *testing.T) {
	home, sink, _ := newHome(t)
	ctx := context.Background()

	require.NoError(t, home.AddToBalanceAndUnconfirmed(ctx, account, ledger.EventFunding, eventID(), 10000, 0))
	sink.entries = nil

	// Spend 30.00 plus a 1.00 fee from the confirmed balance.
	require.NoError(t, home.AddToBalance(ctx, account, ledger.EventTrade, eventID(), -3000, -100))

	require.Len(t, sink.entries, 2)
	fee, principal := sink.entries[0], sink.entries[1]
	assert.Equal(t, ledger.EventFee, fee.Event)
	assert.Equal(t, int64(-100), fee.Change)
	assert.Equal(t, int64(9900), fee.Balance, "fee entry carries the balance before the principal applies")
	assert.Equal(t, ledger.EventTrade, principal.Event)
	assert.Equal(t, int64(-3000), principal.Change)
	assert.Equal(t, int64(6900), principal.Balance)
}

func TestHome_PolicySuppressesEntries(t *testing.T) {
	state := chain.NewState()
	state.SetLastBlock(chain.Block{ID: 1, Height: 10, Timestamp: 1000})
	sink := &recordingSink{}
	home := ledger.NewHome(&testChain, memstore.NewBalances(), state, sink, denyPolicy{})

	require.NoError(t, home.AddToBalanceAndUnconfirmed(context.Background(), account, ledger.EventFunding, eventID(), 5000, 0))
	assert.Empty(t, sink.entries)

	// The mutation itself still applies.
	b, err := home.Balance(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), b.Balance)
}

func TestHome_NegativeBalanceFatal(t *testing.T) {
	home, _, _ := newHome(t)
	ctx := context.Background()

	err := home.AddToBalance(ctx, account, ledger.EventTrade, eventID(), -1, 0)
	require.ErrorIs(t, err, ledger.ErrInvariantViolation)

	// The failed mutation must not be persisted.
	b, err := home.Balance(ctx, account)
	require.NoError(t, err)
	assert.Zero(t, b.Balance)
}

func TestHome_UnconfirmedExceedsConfirmedFatal(t *testing.T) {
	home, _, _ := newHome(t)
	ctx := context.Background()

	require.NoError(t, home.AddToBalanceAndUnconfirmed(ctx, account, ledger.EventFunding, eventID(), 1000, 0))
	err := home.AddToUnconfirmedBalance(ctx, account, ledger.EventTrade, eventID(), 500, 0)
	require.ErrorIs(t, err, ledger.ErrInvariantViolation)
}

func TestHome_OverflowFatal(t *testing.T) {
	home, _, _ := newHome(t)
	ctx := context.Background()

	require.NoError(t, home.AddToBalanceAndUnconfirmed(ctx, account, ledger.EventFunding, eventID(), math.MaxInt64, 0))
	err := home.AddToBalance(ctx, account, ledger.EventTrade, eventID(), 1, 0)
	require.ErrorIs(t, err, ledger.ErrInvariantViolation)
}

func TestHome_ZeroRowDeleted(t *testing.T) {
	home, _, state := newHome(t)
	ctx := context.Background()

	require.NoError(t, home.AddToBalanceAndUnconfirmed(ctx, account, ledger.EventFunding, eventID(), 5000, 0))

	state.SetLastBlock(chain.Block{ID: 2, Height: 11, Timestamp: 1010})
	require.NoError(t, home.AddToBalanceAndUnconfirmed(ctx, account, ledger.EventTrade, eventID(), -5000, 0))

	// The current view is an implicit zero again.
	b, err := home.Balance(ctx, account)
	require.NoError(t, err)
	assert.Zero(t, b.Balance)
	assert.Zero(t, b.Unconfirmed)

	// History below the deletion height is preserved.
	prev, err := home.BalanceAt(ctx, account, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), prev.Balance)
	gone, err := home.BalanceAt(ctx, account, 11)
	require.NoError(t, err)
	assert.Zero(t, gone.Balance)
}

func TestHomes_ForChain(t *testing.T) {
	home, _, _ := newHome(t)
	homes := ledger.NewHomes(home)

	assert.Same(t, home, homes.ForChain(testChain.ID))
	assert.Nil(t, homes.ForChain(99))
}
