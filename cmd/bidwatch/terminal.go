package main

import (
	"fmt"
	"sync"

	"github.com/kasuwa/bidwatch/pkg/countdown"
	"github.com/kasuwa/bidwatch/pkg/currency"
	"github.com/kasuwa/bidwatch/pkg/model"
	"github.com/kasuwa/bidwatch/pkg/notify"
	"github.com/kasuwa/bidwatch/pkg/pricing"
)

// terminal renders watcher events to stdout and keeps the last
// snapshot around for bid submissions. It doubles as the notification
// sink.
type terminal struct {
	mu      sync.Mutex
	auction *model.Auction
	prices  pricing.DisplayPrices
	loaded  bool
}

func (t *terminal) state() (*model.Auction, pricing.DisplayPrices, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.auction, t.prices, t.loaded
}

func (t *terminal) toast(msg string) {
	fmt.Println(">> " + msg)
}

func (t *terminal) Notify(n notify.Notification) {
	t.toast(n.Message())
}

func (t *terminal) OnSnapshot(a *model.Auction, prices pricing.DisplayPrices, left countdown.TimeLeft) {
	t.mu.Lock()
	t.auction = a
	t.prices = prices
	t.loaded = true
	t.mu.Unlock()

	verified := ""
	if a.Verified {
		verified = " [verified]"
	}
	fmt.Printf("%s%s | current %s | next bid %s | %d bids | %s left\n",
		a.Poster.StoreName, verified,
		currency.FormatWithSymbol(prices.CurrentBid, prices.Currency),
		currency.FormatWithSymbol(prices.NextBid, prices.Currency),
		len(a.Bids), left)
}

func (t *terminal) OnTick(left countdown.TimeLeft) {
	fmt.Printf("\r%s left ", left)
}

func (t *terminal) OnEnded() {
	fmt.Println("\nauction ended, bidding is closed")
}
