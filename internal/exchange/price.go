package exchange

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xtrntr/coinex/internal/ledger"
)

// All price and quantity math runs on exact decimals with truncation toward
// zero at every conversion back to integer units. Matching is re-executed
// independently on every node, so the results must be bit-identical; binary
// floating point is never used here.

// divPrecision is the number of decimal digits carried through the one
// division in this package (askPriceFor). 34 digits, matching IEEE 754-2008
// decimal128.
const divPrecision = 34

var one = decimal.New(1, 0)

// coinValue interprets v as smallest units of a chain with the given
// decimal precision.
func coinValue(v int64, decimals int32) decimal.Decimal {
	return decimal.New(v, -decimals)
}

// unitsOf converts d to smallest units of a chain with the given decimal
// precision, truncating toward zero. Overflow is a fatal invariant
// violation.
func unitsOf(d decimal.Decimal, decimals int32) (int64, error) {
	i := d.Shift(decimals).Truncate(0).BigInt()
	if !i.IsInt64() {
		return 0, fmt.Errorf("exchange: quantity %s overflows chain units: %w",
			d.String(), ledger.ErrInvariantViolation)
	}
	return i.Int64(), nil
}

// askPriceFor derives the ask price (offered coin priced in requested-coin
// units) as the reciprocal of the bid price, scaled to the requested chain's
// decimals and floored to 1 unit. It is computed once at order creation.
func askPriceFor(bidPrice int64, bidDecimals, askDecimals int32) (int64, error) {
	bid := coinValue(bidPrice, bidDecimals)
	ask, err := unitsOf(one.DivRound(bid, divPrecision), askDecimals)
	if err != nil {
		return 0, err
	}
	if ask <= 0 {
		ask = 1
	}
	return ask, nil
}
