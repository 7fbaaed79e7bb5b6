// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kasuwa/bidwatch/pkg/currency"
	"github.com/kasuwa/bidwatch/pkg/log"
	"github.com/kasuwa/bidwatch/pkg/metric"
	"github.com/kasuwa/bidwatch/pkg/model"
)

// Increment is the fixed canonical-currency step between the current
// bid and the minimum acceptable next bid.
var Increment = decimal.NewFromInt(250)

// DisplayPrices is the fully converted price view of one auction
// snapshot. It is recomputed wholesale whenever the snapshot or the
// display currency changes and is never partially converted: Currency
// names the denomination of every field.
type DisplayPrices struct {
	Currency      string
	CurrentBid    decimal.Decimal
	StartingPrice decimal.Decimal
	NextBid       decimal.Decimal
	Bids          map[string]decimal.Decimal
}

// Reconciler converts an auction snapshot's canonical amounts into a
// display currency, running every conversion concurrently.
type Reconciler struct {
	conv    currency.Converter
	log     log.Logger
	metrics *metric.Metrics
}

// NewReconciler creates a reconciler. Logger and metrics may be nil.
func NewReconciler(conv currency.Converter, logger log.Logger, metrics *metric.Metrics) *Reconciler {
	if logger == nil {
		logger = log.NoLog
	}
	return &Reconciler{conv: conv, log: logger, metrics: metrics}
}

// Reconcile converts the current bid, starting price, minimum next bid
// and every historical bid into the target currency. All conversions
// run concurrently and the result is atomic: if any conversion fails,
// every field falls back to the canonical amount so the caller never
// renders a mix of currencies. Conversion failure is a silent
// degradation, logged only for diagnostics.
func (r *Reconciler) Reconcile(ctx context.Context, a *model.Auction, target string) DisplayPrices {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
		}
	}()

	current := a.CurrentAmount()
	next := current.Add(Increment)

	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)

	out := DisplayPrices{
		Currency: target,
		Bids:     make(map[string]decimal.Decimal, len(a.Bids)),
	}

	convert := func(amount decimal.Decimal, assign func(decimal.Decimal)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			converted, err := r.conv.Convert(ctx, amount, currency.Canonical, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			assign(converted.Round(0))
		}()
	}

	convert(current, func(d decimal.Decimal) { out.CurrentBid = d })
	convert(a.StartingPrice, func(d decimal.Decimal) { out.StartingPrice = d })
	convert(next, func(d decimal.Decimal) { out.NextBid = d })
	for _, bid := range a.Bids {
		id, amount := bid.ID, bid.Amount
		convert(amount, func(d decimal.Decimal) { out.Bids[id] = d })
	}

	wg.Wait()

	if firstErr != nil {
		r.log.Debug("price conversion failed, using canonical amounts",
			zap.String("auction", a.ID),
			zap.String("target", target),
			zap.Error(firstErr))
		if r.metrics != nil {
			r.metrics.ConversionFallbacks.Inc()
		}
		return Canonical(a)
	}

	return out
}

// Canonical builds the unconverted fallback view of an auction.
func Canonical(a *model.Auction) DisplayPrices {
	current := a.CurrentAmount()
	out := DisplayPrices{
		Currency:      currency.Canonical,
		CurrentBid:    current.Round(0),
		StartingPrice: a.StartingPrice.Round(0),
		NextBid:       current.Add(Increment).Round(0),
		Bids:          make(map[string]decimal.Decimal, len(a.Bids)),
	}
	for _, bid := range a.Bids {
		out.Bids[bid.ID] = bid.Amount.Round(0)
	}
	return out
}
