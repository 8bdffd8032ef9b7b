package domain

import "github.com/shopspring/decimal"

type Currency string

const CurrencyINR Currency = "INR"

func (c Currency) IsValid() bool {
	return c == CurrencyINR
}

// FeeSplit is the platform's cut of a gross sale amount. All three values
// are integer minor units; Gross == Fee + Net always holds because Net is
// derived by subtraction, never rounded independently.
type FeeSplit struct {
	Gross int64
	Fee   int64
	Net   int64
}

// SplitFee computes the platform fee on a gross amount in minor units.
// feePercent is a percentage (10 means 10%). Rounding is half-up on the
// minor unit, so the split is deterministic across retried settlements.
func SplitFee(gross int64, feePercent decimal.Decimal) FeeSplit {
	fee := decimal.NewFromInt(gross).
		Mul(feePercent).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
	return FeeSplit{
		Gross: gross,
		Fee:   fee,
		Net:   gross - fee,
	}
}
