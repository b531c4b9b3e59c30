package chain

// Block is the position the ledger is currently applying.
type Block struct {
	ID        uint64
	Height    int32
	Timestamp int32 // seconds, ledger epoch
}

// Blockchain reports the in-progress block height and the last applied block.
// Implementations are supplied by the block application pipeline; writes and
// reads happen on its single-threaded state-transition path.
type Blockchain interface {
	Height() int32
	LastBlock() Block
}

// State is a plain Blockchain implementation driven by SetLastBlock. The
// block processor (or a test) advances it before applying transactions.
type State struct {
	last Block
}

func NewState() *State {
	return &State{}
}

func (s *State) Height() int32 {
	return s.last.Height
}

func (s *State) LastBlock() Block {
	return s.last
}

// SetLastBlock records the block whose transactions are being applied.
func (s *State) SetLastBlock(b Block) {
	s.last = b
}
