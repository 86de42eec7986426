// Package core provides the domain types shared by the engine, storage and services.
//
// This file contains helpers for parsing and converting monetary amounts.
// Amounts are exact decimals with two fractional digits and are persisted
// as integer cents, so no floating-point value ever touches an amount.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits carried by every amount.
const AmountScale = 2

// ParseAmount converts a decimal string to an amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Unlike a
// display parser it never rounds: more than two fractional digits is an error.
// Negative values are rejected; zero is allowed and left to the caller's rules.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,3")   -> 12.30, nil
//	ParseAmount("12.345") -> error (InvalidAmount)
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, Invalid(ErrInvalidAmount, "amount", "amount is required")
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, Invalid(ErrInvalidAmount, "amount", "amount must be unsigned")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Invalid(ErrInvalidAmount, "amount", "amount is not a decimal number")
	}
	if err := ValidateScale("amount", d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateScale rejects amounts carrying more than two fractional digits.
func ValidateScale(field string, d decimal.Decimal) error {
	if !d.Equal(d.Truncate(AmountScale)) {
		return Invalid(ErrInvalidAmount, field, "amount has more than 2 decimal places")
	}
	return nil
}

// ValidatePositive requires a strictly positive amount with at most two fractional digits.
func ValidatePositive(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return Invalid(ErrInvalidAmount, field, field+" must be greater than 0")
	}
	return ValidateScale(field, d)
}

// Cents returns the amount as integer cents. Callers validate the scale first.
func Cents(d decimal.Decimal) int64 {
	return d.Shift(AmountScale).IntPart()
}

// FromCents converts persisted integer cents back to an amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -AmountScale)
}

// FormatAmount renders an amount with exactly two fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}
