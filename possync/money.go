// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package possync

import "github.com/shopspring/decimal"

// Money fields are always exact multiples of 0.01. Every monetary value
// entering or leaving the sync layer is routed through these helpers so
// repeated local recalculation and remote JSON round-trips cannot drift.

// ToPreciseAmount rounds a raw floating-point amount to exact cents
// precision (half-up).
func ToPreciseAmount(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Cents returns the amount as an integer number of cents.
func Cents(v float64) int64 {
	return decimal.NewFromFloat(v).Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

// LineTotal computes price × quantity with a percentage discount applied,
// rounded to cents.
func LineTotal(price float64, quantity int, discountPercent float64) float64 {
	p := decimal.NewFromFloat(price)
	q := decimal.NewFromInt(int64(quantity))
	d := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discountPercent).Div(decimal.NewFromInt(100)))
	f, _ := p.Mul(q).Mul(d).Round(2).Float64()
	return f
}

// SumAmounts adds already-rounded amounts without reintroducing float drift.
func SumAmounts(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	f, _ := total.Round(2).Float64()
	return f
}
