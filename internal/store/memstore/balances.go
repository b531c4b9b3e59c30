package memstore

import (
	"context"
	"sync"

	"github.com/xtrntr/coinex/internal/ledger"
	"github.com/xtrntr/coinex/internal/models"
)

// Balances is the in-memory versioned balance store for one chain.
type Balances struct {
	mu sync.RWMutex
	m  map[uint64]history[models.Balance]
}

var _ ledger.BalanceStore = (*Balances)(nil)

func NewBalances() *Balances {
	return &Balances{m: make(map[uint64]history[models.Balance])}
}

func (s *Balances) Balance(_ context.Context, accountID uint64) (*models.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.m[accountID].latest()
	if v == nil || v.deleted {
		return nil, nil
	}
	b := v.value
	return &b, nil
}

func (s *Balances) BalanceAt(_ context.Context, accountID uint64, height int32) (*models.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.m[accountID].at(height)
	if v == nil || v.deleted {
		return nil, nil
	}
	b := v.value
	return &b, nil
}

func (s *Balances) Save(_ context.Context, b *models.Balance, height int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[b.AccountID] = s.m[b.AccountID].put(height, false, *b)
	return nil
}

func (s *Balances) Delete(_ context.Context, b *models.Balance, height int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[b.AccountID] = s.m[b.AccountID].put(height, true, *b)
	return nil
}

func (s *Balances) Rollback(_ context.Context, height int32) error {
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
