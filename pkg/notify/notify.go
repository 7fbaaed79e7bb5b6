// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package notify

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kasuwa/bidwatch/pkg/currency"
	"github.com/kasuwa/bidwatch/pkg/log"
	"github.com/kasuwa/bidwatch/pkg/metric"
	"github.com/kasuwa/bidwatch/pkg/model"
)

// Notification is one user-visible toast for a newly observed bid.
type Notification struct {
	BidID      string
	BidderName string
	Amount     decimal.Decimal
	Currency   string
}

// Message renders the toast text, e.g. `New bid: ₦1,500 by Ada's Finds`.
func (n Notification) Message() string {
	return "New bid: " + currency.FormatWithSymbol(n.Amount, n.Currency) + " by " + n.BidderName
}

// Sink receives notifications. The terminal UI and tests implement it.
type Sink interface {
	Notify(n Notification)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Notification)

func (f SinkFunc) Notify(n Notification) { f(n) }

// Notifier raises a toast for every bid that appears in a fresh
// snapshot but was absent from the previous one. The caller owns the
// previous-bids snapshot and must replace it unconditionally after each
// call, which is what makes notification idempotent across polls.
type Notifier struct {
	conv    currency.Converter
	sink    Sink
	log     log.Logger
	metrics *metric.Metrics
}

// NewNotifier creates a notifier. Logger and metrics may be nil.
func NewNotifier(conv currency.Converter, sink Sink, logger log.Logger, metrics *metric.Metrics) *Notifier {
	if logger == nil {
		logger = log.NoLog
	}
	return &Notifier{conv: conv, sink: sink, log: logger, metrics: metrics}
}

// Publish diffs fresh against prev by bid ID and emits one notification
// per new bid, in fresh-list order, skipping the viewer's own bids.
// Amounts are converted to the target currency best-effort: a failed
// conversion falls back to the canonical amount for that bid without
// suppressing the notification. Returns the number of notifications
// emitted.
func (n *Notifier) Publish(ctx context.Context, prev, fresh []model.Bid, viewerID string, poster model.Poster, target string) int {
	seen := make(map[string]struct{}, len(prev))
	for _, b := range prev {
		seen[b.ID] = struct{}{}
	}

	emitted := 0
	for _, b := range fresh {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		if viewerID != "" && b.Bidder.ID == viewerID {
			continue
		}

		amount := b.Amount
		cur := currency.Canonical
		converted, err := n.conv.Convert(ctx, b.Amount, currency.Canonical, target)
		if err != nil {
			n.log.Debug("bid notification conversion failed, using canonical amount",
				zap.String("bid", b.ID), zap.Error(err))
		} else {
			amount = converted.Round(0)
			cur = target
		}

		n.sink.Notify(Notification{
			BidID:      b.ID,
			BidderName: model.ResolveDisplayName(b.Bidder, viewerID, poster),
			Amount:     amount,
			Currency:   cur,
		})
		emitted++
	}

	if n.metrics != nil && emitted > 0 {
		n.metrics.NotificationsEmitted.Add(float64(emitted))
	}
	return emitted
}
