package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kasuwa/bidwatch/pkg/model"
)

// The wire shapes mirror the marketplace API's JSON. The bidder field
// is polymorphic: either a bare id string or an embedded document whose
// shape depends on bidderModel. Everything is normalized into
// pkg/model at this boundary.

type wireAuction struct {
	ID            string          `json:"_id"`
	HighestBid    *wireHighestBid `json:"highestBid,omitempty"`
	StartingPrice decimal.Decimal `json:"startingPrice"`
	ReservePrice  decimal.Decimal `json:"reservePrice"`
	Bids          []wireBid       `json:"bids"`
	EndDate       time.Time       `json:"auctionEndDate"`
	Poster        wirePoster      `json:"poster"`
	Verified      bool            `json:"verified"`
}

type wireHighestBid struct {
	Bidder      json.RawMessage `json:"bidder"`
	BidderModel string          `json:"bidderModel"`
	Amount      decimal.Decimal `json:"amount"`
}

type wireBid struct {
	ID          string          `json:"_id"`
	Bidder      json.RawMessage `json:"bidder"`
	BidderModel string          `json:"bidderModel"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type wirePoster struct {
	ID        string `json:"_id"`
	StoreName string `json:"storeName"`
}

type wireBidderDoc struct {
	ID        string `json:"_id"`
	UserName  string `json:"userName"`
	StoreName string `json:"storeName"`
}

func bidderKind(bidderModel string) model.BidderKind {
	if strings.EqualFold(bidderModel, "vendor") {
		return model.BidderVendor
	}
	return model.BidderUser
}

// resolveBidder normalizes the polymorphic bidder reference. An
// unparseable reference degrades to an empty id, which downstream
// renders as an anonymous bidder rather than failing the whole read.
func resolveBidder(raw json.RawMessage, bidderModel string) model.Bidder {
	kind := bidderKind(bidderModel)

	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return model.Bidder{Kind: kind, ID: id}
	}

	var doc wireBidderDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.Bidder{Kind: kind}
	}

	name := doc.UserName
	if kind == model.BidderVendor && doc.StoreName != "" {
		name = doc.StoreName
	}
	return model.Bidder{Kind: kind, ID: doc.ID, DisplayName: name}
}

func (w wireAuction) toModel() *model.Auction {
	a := &model.Auction{
		ID:            w.ID,
		StartingPrice: w.StartingPrice,
		ReservePrice:  w.ReservePrice,
		EndDate:       w.EndDate,
		Poster:        model.Poster{ID: w.Poster.ID, StoreName: w.Poster.StoreName},
		Verified:      w.Verified,
	}

	if w.HighestBid != nil {
		a.HighestBid = &model.HighestBid{
			Bidder: resolveBidder(w.HighestBid.Bidder, w.HighestBid.BidderModel),
			Amount: w.HighestBid.Amount,
		}
	}

	a.Bids = make([]model.Bid, 0, len(w.Bids))
	for _, b := range w.Bids {
		a.Bids = append(a.Bids, model.Bid{
			ID:        b.ID,
			Bidder:    resolveBidder(b.Bidder, b.BidderModel),
			Amount:    b.Amount,
			CreatedAt: b.CreatedAt,
		})
	}

	return a
}

// DecodeAuction decodes a wire auction document (the contents of the
// "data" envelope) into its model form. Used by the websocket snapshot
// stream, which carries the same document as the read endpoint.
func DecodeAuction(raw []byte) (*model.Auction, error) {
	var w wireAuction
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	return w.toModel(), nil
}
