// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bidding

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kasuwa/bidwatch/pkg/api"
	"github.com/kasuwa/bidwatch/pkg/currency"
	"github.com/kasuwa/bidwatch/pkg/log"
	"github.com/kasuwa/bidwatch/pkg/metric"
	"github.com/kasuwa/bidwatch/pkg/model"
	"github.com/kasuwa/bidwatch/pkg/pricing"
)

// Mode selects between placing a first bid and raising an existing one.
type Mode string

const (
	ModePlace  Mode = "place"
	ModeUpdate Mode = "update"
)

var (
	// ErrNotAuthenticated rejects a submission with no auth token; the
	// caller should route the user to login with a return path.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrOwnAuction rejects the poster bidding on their own auction.
	ErrOwnAuction = errors.New("cannot bid on your own auction")
	// ErrConfirmationRequired rejects an UPDATE that the user has not
	// explicitly confirmed.
	ErrConfirmationRequired = errors.New("bid update requires confirmation")
	// ErrBelowMinimum rejects an amount under the minimum next bid.
	// Returned wrapped in a MinimumBidError.
	ErrBelowMinimum = errors.New("bid below minimum")
	// ErrReauthenticate translates the server's "bidder not found"
	// rejection into actionable guidance.
	ErrReauthenticate = errors.New("your session is no longer valid, please sign in again")
)

// MinimumBidError carries the display-currency minimum for the toast.
type MinimumBidError struct {
	Minimum  decimal.Decimal
	Currency string
}

func (e *MinimumBidError) Error() string {
	return "Bid must be at least " + currency.FormatWithSymbol(e.Minimum, e.Currency)
}

func (e *MinimumBidError) Unwrap() error { return ErrBelowMinimum }

// BidAPI is the write surface the controller needs.
type BidAPI interface {
	PlaceBid(ctx context.Context, auctionID string, amount decimal.Decimal) error
	UpgradeBid(ctx context.Context, auctionID string, amount decimal.Decimal) error
}

// SelectMode returns UPDATE iff the viewer already has a bid in the
// history, else PLACE.
func SelectMode(viewerID string, bids []model.Bid) Mode {
	for _, b := range bids {
		if viewerID != "" && b.Bidder.ID == viewerID {
			return ModeUpdate
		}
	}
	return ModePlace
}

// QuickBids returns the quick-bid shortcut amounts in display
// currency: the minimum next bid and two larger steps. They go through
// Submit like any typed amount.
func QuickBids(prices pricing.DisplayPrices) []decimal.Decimal {
	return []decimal.Decimal{
		prices.NextBid,
		prices.NextBid.Add(decimal.NewFromInt(500)),
		prices.NextBid.Add(decimal.NewFromInt(1000)),
	}
}

// Submission is one user-initiated bid attempt. Amount is in the
// display currency of Prices.
type Submission struct {
	Auction   *model.Auction
	Prices    pricing.DisplayPrices
	ViewerID  string
	Token     string
	Amount    decimal.Decimal
	Confirmed bool
}

// Result reports a confirmed write. Amount stays in display currency
// for the success toast.
type Result struct {
	Mode     Mode
	Amount   decimal.Decimal
	Currency string
}

// Controller validates and submits bids. It holds no auction state of
// its own; every call works off the snapshot the caller passes in.
type Controller struct {
	api     BidAPI
	conv    currency.Converter
	log     log.Logger
	metrics *metric.Metrics
}

// NewController creates a controller. Logger and metrics may be nil.
func NewController(bidAPI BidAPI, conv currency.Converter, logger log.Logger, metrics *metric.Metrics) *Controller {
	if logger == nil {
		logger = log.NoLog
	}
	return &Controller{api: bidAPI, conv: conv, log: logger, metrics: metrics}
}

// Submit runs the full gate chain, then writes the bid. Every gate
// failure short-circuits before any network call. On success the
// caller should clear the input, toast the display-currency amount and
// immediately refresh the auction snapshot rather than waiting for the
// next poll.
func (c *Controller) Submit(ctx context.Context, sub Submission) (*Result, error) {
	mode := SelectMode(sub.ViewerID, sub.Auction.Bids)

	if sub.Token == "" {
		return nil, ErrNotAuthenticated
	}
	if sub.ViewerID == sub.Auction.Poster.ID {
		return nil, ErrOwnAuction
	}
	if sub.Amount.LessThan(sub.Prices.NextBid) {
		return nil, &MinimumBidError{Minimum: sub.Prices.NextBid, Currency: sub.Prices.Currency}
	}
	if mode == ModeUpdate && !sub.Confirmed {
		return nil, ErrConfirmationRequired
	}

	canonical, err := c.conv.Convert(ctx, sub.Amount, sub.Prices.Currency, currency.Canonical)
	if err != nil {
		c.count(mode, "conversion_error")
		return nil, fmt.Errorf("convert bid amount: %w", err)
	}
	canonical = canonical.Round(0)

	if mode == ModeUpdate {
		err = c.api.UpgradeBid(ctx, sub.Auction.ID, canonical)
	} else {
		err = c.api.PlaceBid(ctx, sub.Auction.ID, canonical)
	}
	if err != nil {
		c.count(mode, "rejected")
		return nil, c.translate(mode, err)
	}

	c.count(mode, "accepted")
	c.log.Info("bid submitted",
		zap.String("auction", sub.Auction.ID),
		zap.String("mode", string(mode)),
		zap.String("amount", canonical.String()))

	return &Result{Mode: mode, Amount: sub.Amount.Round(0), Currency: sub.Prices.Currency}, nil
}

// translate maps server rejections onto user-facing errors, keeping the
// server message when there is one.
func (c *Controller) translate(mode Mode, err error) error {
	if errors.Is(err, api.ErrBidderNotFound) {
		return ErrReauthenticate
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return errors.New(apiErr.Message)
	}

	if mode == ModeUpdate {
		return fmt.Errorf("failed to update bid, please try again: %w", err)
	}
	return fmt.Errorf("failed to place bid, please try again: %w", err)
}

func (c *Controller) count(mode Mode, status string) {
	if c.metrics != nil {
		c.metrics.BidsSubmitted.WithLabelValues(string(mode), status).Inc()
	}
}
