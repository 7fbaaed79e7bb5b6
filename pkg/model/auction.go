// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnonymousBidder is the display name used when a bidder cannot be resolved.
const AnonymousBidder = "Anonymous Bidder"

// BidderKind discriminates the polymorphic bidder reference.
type BidderKind string

const (
	BidderUser   BidderKind = "user"
	BidderVendor BidderKind = "vendor"
)

// Bidder identifies who placed a bid. The polymorphic wire reference
// (user vs vendor) is resolved into this tagged form at the ingestion
// boundary so nothing downstream branches on wire shape.
type Bidder struct {
	Kind        BidderKind
	ID          string
	DisplayName string
}

// Bid is a single entry in an auction's bid history, amount in
// canonical currency.
type Bid struct {
	ID        string
	Bidder    Bidder
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// HighestBid is the server-declared leading bid. Absent when the
// auction has no bids yet.
type HighestBid struct {
	Bidder Bidder
	Amount decimal.Decimal
}

// Poster is the vendor who listed the auction. The poster cannot bid
// on their own auction.
type Poster struct {
	ID        string
	StoreName string
}

// Auction is a read-only snapshot of the server-owned aggregate. The
// client never merges fields; every successful read replaces the whole
// snapshot.
type Auction struct {
	ID            string
	HighestBid    *HighestBid
	StartingPrice decimal.Decimal
	ReservePrice  decimal.Decimal
	Bids          []Bid
	EndDate       time.Time
	Poster        Poster
	Verified      bool
}

// CurrentAmount returns the leading bid amount, or the starting price
// when no bids exist. Canonical currency.
func (a *Auction) CurrentAmount() decimal.Decimal {
	if a.HighestBid != nil {
		return a.HighestBid.Amount
	}
	return a.StartingPrice
}

// HasBidFrom reports whether the given bidder already has a bid in the
// history.
func (a *Auction) HasBidFrom(bidderID string) bool {
	if bidderID == "" {
		return false
	}
	for _, b := range a.Bids {
		if b.Bidder.ID == bidderID {
			return true
		}
	}
	return false
}

// ResolveDisplayName resolves the name shown for a bid. Resolution is
// total: it always returns a non-empty string.
//
// Priority: the viewer's own bids render as "You"; the poster renders
// as the store name; otherwise the bidder's stored display name; and
// finally AnonymousBidder when nothing else is known.
func ResolveDisplayName(b Bidder, viewerID string, poster Poster) string {
	if viewerID != "" && b.ID == viewerID {
		return "You"
	}
	if b.ID == poster.ID && poster.StoreName != "" {
		return poster.StoreName
	}
	if b.DisplayName != "" {
		return b.DisplayName
	}
	return AnonymousBidder
}
