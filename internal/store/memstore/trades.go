package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/xtrntr/coinex/internal/exchange"
	"github.com/xtrntr/coinex/internal/models"
)

// Trades is the in-memory append-only trade log.
type Trades struct {
	mu   sync.RWMutex
	rows []models.Trade
}

var _ exchange.TradeStore = (*Trades)(nil)

func NewTrades() *Trades {
	return &Trades{}
}

func (s *Trades) Insert(_ context.Context, t *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, *t)
	return nil
}

func (s *Trades) Get(_ context.Context, orderFullHash, matchFullHash []byte) (*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.rows {
		t := s.rows[i]
		if bytes.Equal(t.OrderFullHash, orderFullHash) && bytes.Equal(t.MatchFullHash, matchFullHash) {
			return &t, nil
		}
	}
	return nil, nil
}

func (s *Trades) Trades(_ context.Context, f exchange.TradeFilter, from, to int) ([]*models.Trade, error) {
	s.mu.RLock()
	matched := make([]*models.Trade, 0)
	// Reverse insertion order; the stable sort below then yields height
	// descending with insertion order descending within a height.
	for i := len(s.rows) - 1; i >= 0; i-- {
		t := s.rows[i]
		if f.AccountID != 0 && t.AccountID != f.AccountID {
			continue
		}
		if f.ChainID != 0 && t.ChainID != f.ChainID {
			continue
		}
		if f.ExchangeID != 0 && t.ExchangeID != f.ExchangeID {
			continue
		}
		if len(f.OrderFullHash) != 0 && !bytes.Equal(t.OrderFullHash, f.OrderFullHash) {
			continue
		}
		matched = append(matched, &t)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Height > matched[j].Height
	})
	from, to, ok := rangeBounds(from, to, len(matched))
	if !ok {
		return nil, nil
	}
	return matched[from : to+1], nil
}

func (s *Trades) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows), nil
}

func (s *Trades) Rollback(_ context.Context, height int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[:0]
	for _, t := range s.rows {
		if t.Height <= height {
			kept = append(kept, t)
		}
	}
	s.rows = kept
	return nil
}
