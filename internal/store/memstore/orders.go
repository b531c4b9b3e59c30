package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/xtrntr/coinex/internal/exchange"
	"github.com/xtrntr/coinex/internal/models"
)

// Orders is the in-memory order book store. The matching engine is the only
// writer; the lock exists for concurrent readers on external query paths.
type Orders struct {
	mu sync.RWMutex
	m  map[uint64]history[models.Order]
}

var _ exchange.OrderStore = (*Orders)(nil)

func NewOrders() *Orders {
	return &Orders{m: make(map[uint64]history[models.Order])}
}

func (s *Orders) Insert(_ context.Context, o *models.Order, height int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[o.ID] = s.m[o.ID].put(height, false, *o)
	return nil
}

func (s *Orders) Delete(_ context.Context, o *models.Order, height int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[o.ID] = s.m[o.ID].put(height, true, *o)
	return nil
}

func (s *Orders) Get(_ context.Context, id uint64) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.m[id].latest()
	if v == nil || v.deleted {
		return nil, nil
	}
	o := v.value
	return &o, nil
}

func (s *Orders) NextBidOrder(_ context.Context, chainID, exchangeID uint32) (*models.Order, error) {
	return s.next(chainID, exchangeID, func(a, b *models.Order) bool {
		if a.BidPrice != b.BidPrice {
			return a.BidPrice > b.BidPrice
		}
		return beforeTie(a, b)
	}), nil
}

func (s *Orders) NextAskOrder(_ context.Context, chainID, exchangeID uint32) (*models.Order, error) {
	return s.next(chainID, exchangeID, func(a, b *models.Order) bool {
		if a.AskPrice != b.AskPrice {
			return a.AskPrice < b.AskPrice
		}
		return beforeTie(a, b)
	}), nil
}

// next picks the single best open order for the pair under the given strict
// ordering. Selection by a total order is deterministic regardless of map
// iteration order.
func (s *Orders) next(chainID, exchangeID uint32, less func(a, b *models.Order) bool) *models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *models.Order
	for _, h := range s.m {
		v := h.latest()
		if v == nil || v.deleted {
			continue
		}
		if v.value.ChainID != chainID || v.value.ExchangeID != exchangeID {
			continue
		}
		o := v.value
		if best == nil || less(&o, best) {
			best = &o
		}
	}
	return best
}

func (s *Orders) Orders(_ context.Context, f exchange.OrderFilter, from, to int) ([]*models.Order, error) {
	s.mu.RLock()
	matched := make([]*models.Order, 0)
	for _, h := range s.m {
		v := h.latest()
		if v == nil || v.deleted {
			continue
		}
		o := v.value
		if f.AccountID != 0 && o.AccountID != f.AccountID {
			continue
		}
		if f.ChainID != 0 && o.ChainID != f.ChainID {
			continue
		}
		if f.ExchangeID != 0 && o.ExchangeID != f.ExchangeID {
			continue
		}
		matched = append(matched, &o)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].BidPrice != matched[j].BidPrice {
			return matched[i].BidPrice > matched[j].BidPrice
		}
		return beforeTie(matched[i], matched[j])
	})
	from, to, ok := rangeBounds(from, to, len(matched))
	if !ok {
		return nil, nil
	}
	return matched[from : to+1], nil
}

func (s *Orders) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, h := range s.m {
		if v := h.latest(); v != nil && !v.deleted {
			n++
		}
	}
	return n, nil
}

func (s *Orders) Rollback(_ context.Context, height int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, h := range s.m {
		h = h.rollback(height)
		if len(h) == 0 {
			delete(s.m, id)
		} else {
			s.m[id] = h
		}
	}
	return nil
}

// beforeTie orders by the submission tuple, earliest first, with the order
// id as the final total-order tiebreak.
func beforeTie(a, b *models.Order) bool {
	if a.CreationHeight != b.CreationHeight {
		return a.CreationHeight < b.CreationHeight
	}
	if a.TransactionHeight != b.TransactionHeight {
		return a.TransactionHeight < b.TransactionHeight
	}
	if a.TransactionIndex != b.TransactionIndex {
		return a.TransactionIndex < b.TransactionIndex
	}
	return a.ID < b.ID
}
