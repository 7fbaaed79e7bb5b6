// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestResolveDisplayName(t *testing.T) {
	poster := Poster{ID: "v1", StoreName: "Ada's Finds"}

	tests := []struct {
		name     string
		bidder   Bidder
		viewerID string
		want     string
	}{
		{"viewer's own bid", Bidder{Kind: BidderUser, ID: "u1", DisplayName: "Chidi"}, "u1", "You"},
		{"poster's bid shows store name", Bidder{Kind: BidderVendor, ID: "v1"}, "u1", "Ada's Finds"},
		{"counterparty stored name", Bidder{Kind: BidderUser, ID: "u2", DisplayName: "Chidi"}, "u1", "Chidi"},
		{"unknown bidder", Bidder{Kind: BidderUser, ID: "u3"}, "u1", AnonymousBidder},
		{"empty everything still resolves", Bidder{}, "", AnonymousBidder},
		{"viewer precedence over stored name", Bidder{Kind: BidderUser, ID: "u1", DisplayName: "Chidi"}, "u1", "You"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveDisplayName(tt.bidder, tt.viewerID, poster))
		})
	}
}

func TestResolveDisplayName_PosterWithoutStoreName(t *testing.T) {
	// A poster with no store name falls through to the stored display
	// name, then to the anonymous fallback.
	poster := Poster{ID: "v1"}
	assert.Equal(t, "Vee", ResolveDisplayName(Bidder{ID: "v1", DisplayName: "Vee"}, "u1", poster))
	assert.Equal(t, AnonymousBidder, ResolveDisplayName(Bidder{ID: "v1"}, "u1", poster))
}

func TestAuction_CurrentAmount(t *testing.T) {
	a := &Auction{StartingPrice: decimal.NewFromInt(1000)}
	assert.True(t, a.CurrentAmount().Equal(decimal.NewFromInt(1000)))

	a.HighestBid = &HighestBid{Amount: decimal.NewFromInt(1500)}
	assert.True(t, a.CurrentAmount().Equal(decimal.NewFromInt(1500)))
}

func TestAuction_HasBidFrom(t *testing.T) {
	a := &Auction{Bids: []Bid{
		{ID: "b1", Bidder: Bidder{ID: "u1"}},
		{ID: "b2", Bidder: Bidder{ID: "u2"}},
	}}

	assert.True(t, a.HasBidFrom("u1"))
	assert.False(t, a.HasBidFrom("u3"))
	assert.False(t, a.HasBidFrom(""))
}
