// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Canonical is the currency every server-side amount is denominated in.
const Canonical = "NGN"

var ErrUnknownCurrency = errors.New("unknown currency")

// Converter converts an amount between two currencies. Implementations
// may fail (rate lookup, network); callers decide the fallback policy.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)

func (f ConverterFunc) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	return f(ctx, amount, from, to)
}

// RateTable is an in-memory Converter keyed by units-per-canonical
// rates. It backs tests and the development server; production wiring
// uses the rate-service Client.
type RateTable struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewRateTable creates a rate table seeded with the canonical currency
// at 1.0 and a few common display currencies.
func NewRateTable() *RateTable {
	return &RateTable{
		rates: map[string]decimal.Decimal{
			Canonical: decimal.NewFromInt(1),
			"USD":     decimal.RequireFromString("0.00065"),
			"EUR":     decimal.RequireFromString("0.00060"),
			"GBP":     decimal.RequireFromString("0.00051"),
		},
	}
}

// Set installs or replaces the units-per-canonical rate for a currency.
func (t *RateTable) Set(code string, perCanonical decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rates[strings.ToUpper(code)] = perCanonical
}

// Convert converts amount from one currency to another through the
// canonical rate.
func (t *RateTable) Convert(_ context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return amount, nil
	}

	t.mu.RLock()
	fromRate, fromOK := t.rates[from]
	toRate, toOK := t.rates[to]
	t.mu.RUnlock()

	if !fromOK || fromRate.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	if !toOK {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}

	// amount / rate(from) brings the value back to canonical units.
	return amount.Div(fromRate).Mul(toRate), nil
}

var symbols = map[string]string{
	"NGN": "₦",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// Symbol returns the display symbol for a currency code, falling back
// to the code itself.
func Symbol(code string) string {
	if s, ok := symbols[strings.ToUpper(code)]; ok {
		return s
	}
	return strings.ToUpper(code)
}

// Format renders an amount rounded to whole units with thousands
// separators, e.g. 1250 -> "1,250".
func Format(amount decimal.Decimal) string {
	s := amount.Round(0).String()

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 && !(neg && b.Len() == 1) {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatWithSymbol renders an amount with its currency symbol, e.g.
// "₦1,250".
func FormatWithSymbol(amount decimal.Decimal, code string) string {
	return Symbol(code) + Format(amount)
}
