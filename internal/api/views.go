package api

import (
	"encoding/hex"
	"strconv"

	"github.com/xtrntr/coinex/internal/models"
)

// Identifiers are unsigned 64-bit values; JSON numbers cannot carry them
// losslessly, so ids travel as decimal strings and hashes as hex.

type orderJSON struct {
	ID                string `json:"id"`
	FullHash          string `json:"full_hash"`
	AccountID         string `json:"account_id"`
	ChainID           uint32 `json:"chain_id"`
	ExchangeID        uint32 `json:"exchange_id"`
	Quantity          int64  `json:"quantity"`
	BidPrice          int64  `json:"bid_price"`
	AskPrice          int64  `json:"ask_price"`
	CreationHeight    int32  `json:"creation_height"`
	TransactionHeight int32  `json:"transaction_height"`
	TransactionIndex  int16  `json:"transaction_index"`
}

type tradeJSON struct {
	ChainID          uint32 `json:"chain_id"`
	ExchangeID       uint32 `json:"exchange_id"`
	BlockID          string `json:"block_id"`
	Height           int32  `json:"height"`
	Timestamp        int32  `json:"timestamp"`
	ExchangeQuantity int64  `json:"exchange_quantity"`
	ExchangePrice    int64  `json:"exchange_price"`
	AccountID        string `json:"account_id"`
	OrderID          string `json:"order_id"`
	OrderFullHash    string `json:"order_full_hash"`
	MatchID          string `json:"match_id"`
	MatchFullHash    string `json:"match_full_hash"`
}

type balanceJSON struct {
	AccountID   string `json:"account_id"`
	ChainID     uint32 `json:"chain_id"`
	Balance     int64  `json:"balance"`
	Unconfirmed int64  `json:"unconfirmed_balance"`
}

func orderView(o *models.Order) orderJSON {
	return orderJSON{
		ID:                strconv.FormatUint(o.ID, 10),
		FullHash:          hex.EncodeToString(o.FullHash),
		AccountID:         strconv.FormatUint(o.AccountID, 10),
		ChainID:           o.ChainID,
		ExchangeID:        o.ExchangeID,
		Quantity:          o.Quantity,
		BidPrice:          o.BidPrice,
		AskPrice:          o.AskPrice,
		CreationHeight:    o.CreationHeight,
		TransactionHeight: o.TransactionHeight,
		TransactionIndex:  o.TransactionIndex,
	}
}

func tradeView(t *models.Trade) tradeJSON {
	return tradeJSON{
		ChainID:          t.ChainID,
		ExchangeID:       t.ExchangeID,
		BlockID:          strconv.FormatUint(t.BlockID, 10),
		Height:           t.Height,
		Timestamp:        t.Timestamp,
		ExchangeQuantity: t.ExchangeQuantity,
		ExchangePrice:    t.ExchangePrice,
		AccountID:        strconv.FormatUint(t.AccountID, 10),
		OrderID:          strconv.FormatUint(t.OrderID, 10),
		OrderFullHash:    hex.EncodeToString(t.OrderFullHash),
		MatchID:          strconv.FormatUint(t.MatchID, 10),
		MatchFullHash:    hex.EncodeToString(t.MatchFullHash),
	}
}
