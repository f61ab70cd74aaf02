// Package bidpolicy computes the lowest acceptable next bid for an auction.
//
// Two formulas are in use by the marketplace. StartPriceTenth adds a tenth of the
// start price to the current price and is the default. RoundedTenPercent raises the
// current price by ten percent and rounds up to the next multiple of ten; it is kept
// for compatibility with listings that were priced under that rule.
package bidpolicy

import (
	"fmt"
	"strings"
)

// FloorIncrement is the increment StartPriceTenth uses when the start price is not positive.
const FloorIncrement int64 = 100

// RoundingUnit is the unit RoundedTenPercent rounds up to.
const RoundingUnit int64 = 10

// Strategy returns the minimum next bid given the auction's current price,
// start price and number of bids so far.
type Strategy func(currentPrice, startPrice, bidCount int64) int64

// Named strategies
const (
	NameStartPriceTenth   = "start_price_tenth"
	NameRoundedTenPercent = "rounded_ten_percent"
)

// Default is the strategy used when none is configured.
var Default Strategy = StartPriceTenth

// MinimumNextBid applies the default strategy.
func MinimumNextBid(currentPrice, startPrice, bidCount int64) int64 {
	return Default(currentPrice, startPrice, bidCount)
}

// StartPriceTenth returns startPrice for the first bid, otherwise
// currentPrice + ceil(startPrice/10), or currentPrice + FloorIncrement
// when the start price is not positive.
func StartPriceTenth(currentPrice, startPrice, bidCount int64) int64 {
	if bidCount == 0 {
		return startPrice
	}
	increment := FloorIncrement
	if startPrice > 0 {
		increment = ceilDiv(startPrice, 10)
	}
	return currentPrice + increment
}

// RoundedTenPercent returns startPrice for the first bid, otherwise
// ceil(currentPrice*1.1/10)*10. If that does not exceed currentPrice
// it falls back to currentPrice + RoundingUnit.
func RoundedTenPercent(currentPrice, startPrice, bidCount int64) int64 {
	if bidCount == 0 {
		return startPrice
	}
	next := currentPrice
	if currentPrice > 0 {
		// current*1.1/10 == current*11/100
		next = ceilDiv(currentPrice*11, 100) * RoundingUnit
	}
	if next <= currentPrice {
		return currentPrice + RoundingUnit
	}
	return next
}

// Lookup resolves a strategy by its configured name. An empty name yields Default.
func Lookup(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return Default, nil
	case NameStartPriceTenth:
		return StartPriceTenth, nil
	case NameRoundedTenPercent:
		return RoundedTenPercent, nil
	default:
		return nil, fmt.Errorf("unknown minimum bid strategy %q", name)
	}
}

// ceilDiv divides a non-negative numerator by a positive denominator, rounding up.
func ceilDiv(n, d int64) int64 {
	return (n + d - 1) / d
}
