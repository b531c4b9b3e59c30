package ledger

// Homes is the set of balance homes keyed by chain id. It is the
// balance-store lookup consumed by the matching engine.
type Homes struct {
	byChain map[uint32]*Home
}

func NewHomes(homes ...*Home) *Homes {
	s := &Homes{byChain: make(map[uint32]*Home, len(homes))}
	for _, h := range homes {
		s.byChain[h.chain.ID] = h
	}
	return s
}

// ForChain returns the home owning the balances of the given chain, or nil
// if the chain has none.
func (s *Homes) ForChain(id uint32) *Home {
	return s.byChain[id]
}
