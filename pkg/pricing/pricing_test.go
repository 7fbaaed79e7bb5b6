// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuwa/bidwatch/pkg/currency"
	"github.com/kasuwa/bidwatch/pkg/model"
)

func testAuction() *model.Auction {
	return &model.Auction{
		ID:            "a1",
		StartingPrice: decimal.NewFromInt(1000),
		EndDate:       time.Now().Add(time.Hour),
		Bids: []model.Bid{
			{ID: "b1", Bidder: model.Bidder{ID: "u2"}, Amount: decimal.NewFromInt(1250)},
			{ID: "b2", Bidder: model.Bidder{ID: "u3"}, Amount: decimal.NewFromInt(1500)},
		},
		HighestBid: &model.HighestBid{
			Bidder: model.Bidder{ID: "u3"},
			Amount: decimal.NewFromInt(1500),
		},
	}
}

func TestReconcile_IdentityConversion(t *testing.T) {
	require := require.New(t)

	r := NewReconciler(currency.NewRateTable(), nil, nil)
	a := &model.Auction{
		ID:            "a1",
		StartingPrice: decimal.NewFromInt(1000),
		EndDate:       time.Now().Add(time.Hour),
	}

	prices := r.Reconcile(context.Background(), a, "NGN")

	require.Equal("NGN", prices.Currency)
	require.True(prices.CurrentBid.Equal(decimal.NewFromInt(1000)), "no bids: current falls back to starting price")
	require.True(prices.StartingPrice.Equal(decimal.NewFromInt(1000)))
	require.True(prices.NextBid.Equal(decimal.NewFromInt(1250)), "next bid is current plus the fixed increment")
	require.Empty(prices.Bids)
}

func TestReconcile_ConvertsEveryBid(t *testing.T) {
	require := require.New(t)

	table := currency.NewRateTable()
	table.Set("USD", decimal.RequireFromString("0.001"))

	r := NewReconciler(table, nil, nil)
	prices := r.Reconcile(context.Background(), testAuction(), "USD")

	require.Equal("USD", prices.Currency)
	require.True(prices.CurrentBid.Equal(decimal.NewFromInt(2)), "1500 NGN rounds to 2 USD, got %s", prices.CurrentBid)
	require.True(prices.StartingPrice.Equal(decimal.NewFromInt(1)))
	require.True(prices.NextBid.Equal(decimal.NewFromInt(2)), "next bid converts 1750 NGN, got %s", prices.NextBid)
	require.Len(prices.Bids, 2)
	require.True(prices.Bids["b1"].Equal(decimal.NewFromInt(1)))
	require.True(prices.Bids["b2"].Equal(decimal.NewFromInt(2)))
}

// failOn fails conversions of exactly one amount and converts the rest.
type failOn struct {
	amount decimal.Decimal
	rate   decimal.Decimal
}

func (f failOn) Convert(_ context.Context, amount decimal.Decimal, _, _ string) (decimal.Decimal, error) {
	if amount.Equal(f.amount) {
		return decimal.Zero, errors.New("rate lookup failed")
	}
	return amount.Mul(f.rate), nil
}

func TestReconcile_AtomicFallback(t *testing.T) {
	require := require.New(t)

	a := testAuction()
	// Fail only the next-bid conversion (1500 + 250).
	conv := failOn{amount: decimal.NewFromInt(1750), rate: decimal.RequireFromString("0.001")}

	r := NewReconciler(conv, nil, nil)
	prices := r.Reconcile(context.Background(), a, "USD")

	// One failed conversion degrades every quantity to canonical; a
	// partial mix of currencies is never surfaced.
	require.Equal(currency.Canonical, prices.Currency)
	require.True(prices.CurrentBid.Equal(decimal.NewFromInt(1500)))
	require.True(prices.StartingPrice.Equal(decimal.NewFromInt(1000)))
	require.True(prices.NextBid.Equal(decimal.NewFromInt(1750)))
	require.True(prices.Bids["b1"].Equal(decimal.NewFromInt(1250)))
	require.True(prices.Bids["b2"].Equal(decimal.NewFromInt(1500)))
}

func TestReconcile_RoundsToWholeUnits(t *testing.T) {
	table := currency.NewRateTable()
	table.Set("USD", decimal.RequireFromString("0.00065"))

	r := NewReconciler(table, nil, nil)
	prices := r.Reconcile(context.Background(), testAuction(), "USD")

	// 1500 * 0.00065 = 0.975 -> 1
	assert.True(t, prices.CurrentBid.Equal(decimal.NewFromInt(1)), "got %s", prices.CurrentBid)
	assert.True(t, prices.CurrentBid.Exponent() >= 0, "display amounts are whole units")
}

func TestCanonical(t *testing.T) {
	prices := Canonical(testAuction())

	assert.Equal(t, currency.Canonical, prices.Currency)
	assert.True(t, prices.CurrentBid.Equal(decimal.NewFromInt(1500)))
	assert.True(t, prices.NextBid.Equal(decimal.NewFromInt(1750)))
	assert.Len(t, prices.Bids, 2)
}
