package models

// TxContext carries the identity of the transaction that created an order.
// It is supplied by the surrounding block application pipeline.
type TxContext struct {
	ID       uint64
	FullHash []byte // 32-byte transaction hash
	SenderID uint64
	Height   int32 // height of the block containing the transaction
	Index    int16 // position within the containing block
}

// Order is a standing offer to exchange Quantity units of the ChainID coin
// for the ExchangeID coin at a fixed rate.
//
// BidPrice is the price of the requested coin expressed in ChainID units.
// AskPrice is the reciprocal, the price of the offered coin in ExchangeID
// units; it is derived once at creation and never recomputed.
type Order struct {
	ID                uint64
	FullHash          []byte
	AccountID         uint64
	ChainID           uint32
	ExchangeID        uint32
	Quantity          int64 // remaining amount, smallest units of ChainID
	BidPrice          int64
	AskPrice          int64
	CreationHeight    int32
	TransactionHeight int32
	TransactionIndex  int16
}

// Trade is one settled leg of a match between two orders. Each match
// produces two Trade rows, one from each order's chain perspective.
// ExchangeQuantity is the amount of the ExchangeID coin received by the
// order's owner, priced at ExchangePrice (ExchangeID units per whole
// ChainID coin, scaled to ChainID decimals).
type Trade struct {
	ChainID          uint32
	ExchangeID       uint32
	BlockID          uint64
	Height           int32
	Timestamp        int32
	ExchangeQuantity int64
	ExchangePrice    int64
	AccountID        uint64
	OrderID          uint64
	OrderFullHash    []byte
	MatchID          uint64
	MatchFullHash    []byte
}

// Balance is a per-account, per-chain holding. Balance is the confirmed,
// settled amount; Unconfirmed is the spendable amount including pending
// effects (reservations by open orders).
type Balance struct {
	AccountID   uint64
	Balance     int64
	Unconfirmed int64
}
