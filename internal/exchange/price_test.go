package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAskPriceFor(t *testing.T) {
	tests := []struct {
		name        string
		bidPrice    int64
		bidDecimals int32
		askDecimals int32
		want        int64
	}{
		{"reciprocal of 2.00", 200, 2, 2, 50},
		{"reciprocal of 0.40", 40, 2, 2, 250},
		{"unit price", 100, 2, 2, 100},
		{"non-terminating reciprocal truncates", 300, 2, 2, 33},
		{"repeating reciprocal truncates", 700, 2, 2, 14},
		{"cross precision", 100_000_000, 8, 2, 100},
		{"tiny bid gives large ask", 1, 2, 2, 10000},
		{"huge bid floors to one unit", 1_000_000_000_000, 2, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := askPriceFor(tt.bidPrice, tt.bidDecimals, tt.askDecimals)
			if err != nil {
				t.Fatalf("askPriceFor(%d) returned error: %v", tt.bidPrice, err)
			}
			if got != tt.want {
				t.Errorf("askPriceFor(%d) = %d, want %d", tt.bidPrice, got, tt.want)
			}
		})
	}
}

func TestUnitsOf(t *testing.T) {
	tests := []struct {
		name     string
		value    decimal.Decimal
		decimals int32
		want     int64
	}{
		{"exact", decimal.RequireFromString("100.00"), 2, 10000},
		{"truncates toward zero", decimal.RequireFromString("0.999"), 2, 99},
		{"sub-unit truncates to zero", decimal.RequireFromString("0.004"), 2, 0},
		{"no decimals", decimal.RequireFromString("42.9"), 0, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unitsOf(tt.value, tt.decimals)
			if err != nil {
				t.Fatalf("unitsOf(%s) returned error: %v", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("unitsOf(%s) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestUnitsOfOverflow(t *testing.T) {
	huge := decimal.New(1, 30)
	if _, err := unitsOf(huge, 8); err == nil {
		t.Error("expected overflow error for value beyond int64 units")
	}
}
