// Package chain holds the static metadata of the chains participating in the
// ledger and the current blockchain position. Both are plain injected values:
// the matching engine and the balance homes receive them at construction so
// that independent chain pairs can be instantiated in isolation.
package chain

import "fmt"

// Chain identifies one independently accounted coin within the ledger.
type Chain struct {
	ID       uint32
	Name     string
	Decimals int32 // decimal precision of the smallest unit
}

// Registry is a read-only lookup of chain metadata.
type Registry struct {
	chains map[uint32]*Chain
}

// NewRegistry builds a registry from the given chains. Chain ids must be
// non-zero and unique; decimals must be in [0, 18].
func NewRegistry(chains ...Chain) (*Registry, error) {
	r := &Registry{chains: make(map[uint32]*Chain, len(chains))}
	for i := range chains {
		c := chains[i]
		if c.ID == 0 {
			return nil, fmt.Errorf("chain %q: id must be non-zero", c.Name)
		}
		if c.Decimals < 0 || c.Decimals > 18 {
			return nil, fmt.Errorf("chain %q: decimals %d out of range", c.Name, c.Decimals)
		}
		if _, ok := r.chains[c.ID]; ok {
			return nil, fmt.Errorf("duplicate chain id %d", c.ID)
		}
		r.chains[c.ID] = &c
	}
	return r, nil
}

// Chain returns the chain with the given id, or nil if unknown.
func (r *Registry) Chain(id uint32) *Chain {
	return r.chains[id]
}

// Decimals returns the decimal precision registered for the chain id.
func (r *Registry) Decimals(id uint32) (int32, bool) {
	c, ok := r.chains[id]
	if !ok {
		return 0, false
	}
	return c.Decimals, true
}
