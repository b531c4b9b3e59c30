package memstore

import (
	"context"
	"testing"

	"github.com/xtrntr/coinex/internal/exchange"
	"github.com/xtrntr/coinex/internal/models"
)

func order(id uint64, bidPrice, askPrice, quantity int64, creationHeight int32, index int16) *models.Order {
	return &models.Order{
		ID:                id,
		FullHash:          []byte{byte(id)},
		AccountID:         500,
		ChainID:           1,
		ExchangeID:        2,
		Quantity:          quantity,
		BidPrice:          bidPrice,
		AskPrice:          askPrice,
		CreationHeight:    creationHeight,
		TransactionHeight: creationHeight,
		TransactionIndex:  index,
	}
}

func TestOrders_Versioning(t *testing.T) {
	ctx := context.Background()
	s := NewOrders()

	o := order(1, 100, 100, 5000, 10, 1)
	if err := s.Insert(ctx, o, 10); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// A fill shrinks the order at a later height.
	o.Quantity = 3000
	if err := s.Insert(ctx, o, 11); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil || got.Quantity != 3000 {
		t.Fatalf("expected latest quantity 3000, got %+v", got)
	}

	// Rolling back to the insert height restores the original quantity.
	if err := s.Rollback(ctx, 10); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	got, _ = s.Get(ctx, 1)
	if got == nil || got.Quantity != 5000 {
		t.Fatalf("expected quantity 5000 after rollback, got %+v", got)
	}

	// Rolling back below the insert height removes the order entirely.
	if err := s.Rollback(ctx, 9); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	if got, _ := s.Get(ctx, 1); got != nil {
		t.Fatalf("expected order gone after deep rollback, got %+v", got)
	}
}

func TestOrders_DeleteTombstone(t *testing.T) {
	ctx := context.Background()
	s := NewOrders()

	o := order(1, 100, 100, 5000, 10, 1)
	s.Insert(ctx, o, 10)
	s.Delete(ctx, o, 12)

	if got, _ := s.Get(ctx, 1); got != nil {
		t.Fatalf("expected deleted order invisible, got %+v", got)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("expected count 0 after delete, got %d", n)
	}

	// Rollback above the tombstone keeps the order deleted.
	s.Rollback(ctx, 12)
	if got, _ := s.Get(ctx, 1); got != nil {
		t.Error("expected order still deleted after rollback above tombstone")
	}
	// Rollback below the tombstone resurrects it.
	s.Rollback(ctx, 11)
	if got, _ := s.Get(ctx, 1); got == nil {
		t.Error("expected order restored after rollback below tombstone")
	}
}

func TestOrders_BestBidAndAsk(t *testing.T) {
	ctx := context.Background()
	s := NewOrders()

	s.Insert(ctx, order(1, 100, 100, 5000, 10, 1), 10)
	s.Insert(ctx, order(2, 120, 80, 5000, 10, 2), 10)
	s.Insert(ctx, order(3, 120, 80, 5000, 10, 3), 10)

	bid, err := s.NextBidOrder(ctx, 1, 2)
	if err != nil {
		t.Fatalf("next bid failed: %v", err)
	}
	// Highest bid price wins; the tie between 2 and 3 falls to the earlier
	// submission.
	if bid == nil || bid.ID != 2 {
		t.Fatalf("expected order 2 as best bid, got %+v", bid)
	}

	ask, err := s.NextAskOrder(ctx, 1, 2)
	if err != nil {
		t.Fatalf("next ask failed: %v", err)
	}
	if ask == nil || ask.ID != 2 {
		t.Fatalf("expected order 2 as best ask, got %+v", ask)
	}

	// No orders for the reversed pair.
	if none, _ := s.NextBidOrder(ctx, 2, 1); none != nil {
		t.Errorf("expected no bid for reversed pair, got %+v", none)
	}
}

func TestOrders_FilterAndPagination(t *testing.T) {
	ctx := context.Background()
	s := NewOrders()

	for i := int64(1); i <= 5; i++ {
		o := order(uint64(i), 100+i, 100, 1000, 10, int16(i))
		o.AccountID = 500 + uint64(i%2)
		s.Insert(ctx, o, 10)
	}

	all, err := s.Orders(ctx, exchange.OrderFilter{}, 0, 99)
	if err != nil {
		t.Fatalf("orders failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 orders, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].BidPrice < all[i].BidPrice {
			t.Fatal("expected orders sorted by descending bid price")
		}
	}

	page, _ := s.Orders(ctx, exchange.OrderFilter{}, 1, 2)
	if len(page) != 2 || page[0].ID != all[1].ID {
		t.Errorf("expected rows 1-2 of the full listing, got %d rows", len(page))
	}

	mine, _ := s.Orders(ctx, exchange.OrderFilter{AccountID: 501}, 0, 99)
	for _, o := range mine {
		if o.AccountID != 501 {
			t.Errorf("filter leaked order of account %d", o.AccountID)
		}
	}
	if len(mine) != 3 {
		t.Errorf("expected 3 orders for account 501, got %d", len(mine))
	}

	if none, _ := s.Orders(ctx, exchange.OrderFilter{}, 7, 9); none != nil {
		t.Errorf("expected empty page beyond the result set, got %d rows", len(none))
	}
}

func TestTrades_OrderingAndRollback(t *testing.T) {
	ctx := context.Background()
	s := NewTrades()

	rows := []models.Trade{
		{ChainID: 1, ExchangeID: 2, Height: 10, AccountID: 1, OrderID: 11, OrderFullHash: []byte{0x0B}, MatchID: 21, MatchFullHash: []byte{0x15}},
		{ChainID: 2, ExchangeID: 1, Height: 10, AccountID: 2, OrderID: 21, OrderFullHash: []byte{0x15}, MatchID: 11, MatchFullHash: []byte{0x0B}},
		{ChainID: 1, ExchangeID: 2, Height: 12, AccountID: 1, OrderID: 12, OrderFullHash: []byte{0x0C}, MatchID: 22, MatchFullHash: []byte{0x16}},
	}
	for i := range rows {
		if err := s.Insert(ctx, &rows[i]); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	all, err := s.Trades(ctx, exchange.TradeFilter{}, 0, 99)
	if err != nil {
		t.Fatalf("trades failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(all))
	}
	if all[0].Height != 12 {
		t.Errorf("expected most recent trade first, got height %d", all[0].Height)
	}
	// Within a height, later insertions come first.
	if all[1].OrderID != 21 || all[2].OrderID != 11 {
		t.Errorf("expected reverse insertion order within a height, got %d then %d",
			all[1].OrderID, all[2].OrderID)
	}

	got, _ := s.Get(ctx, []byte{0x15}, []byte{0x0B})
	if got == nil || got.OrderID != 21 {
		t.Fatalf("expected trade row for hash pair, got %+v", got)
	}

	byHash, _ := s.Trades(ctx, exchange.TradeFilter{OrderFullHash: []byte{0x0B}}, 0, 99)
	if len(byHash) != 1 || byHash[0].OrderID != 11 {
		t.Errorf("expected exactly the matching hash row, got %d rows", len(byHash))
	}

	if err := s.Rollback(ctx, 10); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	if n, _ := s.Count(ctx); n != 2 {
		t.Errorf("expected 2 trades after rollback, got %d", n)
	}
}

func TestBalances_AtHeight(t *testing.T) {
	ctx := context.Background()
	s := NewBalances()

	b := &models.Balance{AccountID: 9, Balance: 1000, Unconfirmed: 1000}
	s.Save(ctx, b, 10)
	b.Balance, b.Unconfirmed = 400, 0
	s.Save(ctx, b, 12)
	s.Delete(ctx, &models.Balance{AccountID: 9}, 14)

	if got, _ := s.Balance(ctx, 9); got != nil {
		t.Fatalf("expected deleted balance invisible, got %+v", got)
	}
	at11, _ := s.BalanceAt(ctx, 9, 11)
	if at11 == nil || at11.Balance != 1000 {
		t.Fatalf("expected balance 1000 at height 11, got %+v", at11)
	}
	at13, _ := s.BalanceAt(ctx, 9, 13)
	if at13 == nil || at13.Balance != 400 {
		t.Fatalf("expected balance 400 at height 13, got %+v", at13)
	}
	if at9, _ := s.BalanceAt(ctx, 9, 9); at9 != nil {
		t.Fatalf("expected no balance before first save, got %+v", at9)
	}

	// Rollback below the tombstone restores the latest surviving version.
	s.Rollback(ctx, 13)
	got, _ := s.Balance(ctx, 9)
	if got == nil || got.Balance != 400 {
		t.Fatalf("expected balance 400 after rollback, got %+v", got)
	}
}

func TestHistory_SameHeightReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewOrders()

	o := order(1, 100, 100, 5000, 10, 1)
	s.Insert(ctx, o, 10)
	o.Quantity = 4000
	s.Insert(ctx, o, 10)
	o.Quantity = 3000
	s.Insert(ctx, o, 10)

	got, _ := s.Get(ctx, 1)
	if got == nil || got.Quantity != 3000 {
		t.Fatalf("expected same-height writes to replace, got %+v", got)
	}
	// Only one version exists, so rolling back to the height keeps it.
	s.Rollback(ctx, 10)
	if got, _ := s.Get(ctx, 1); got == nil || got.Quantity != 3000 {
		t.Fatalf("expected single version to survive rollback, got %+v", got)
	}
}
