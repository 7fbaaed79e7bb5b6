// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuwa/bidwatch/pkg/countdown"
	"github.com/kasuwa/bidwatch/pkg/currency"
	"github.com/kasuwa/bidwatch/pkg/model"
	"github.com/kasuwa/bidwatch/pkg/notify"
	"github.com/kasuwa/bidwatch/pkg/pricing"
)

// scriptSource feeds scripted snapshots: Fetch pops from a queue, and
// the test pushes periodic snapshots straight into the channel.
type scriptSource struct {
	mu      sync.Mutex
	fetches []Snapshot
	ch      chan Snapshot
}

func newScriptSource(fetches ...Snapshot) *scriptSource {
	return &scriptSource{fetches: fetches, ch: make(chan Snapshot)}
}

func (s *scriptSource) push(snap Snapshot) { s.ch <- snap }

func (s *scriptSource) Fetch(context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.fetches) == 0 {
		return Snapshot{}, errors.New("connection refused")
	}
	snap := s.fetches[0]
	s.fetches = s.fetches[1:]
	return snap, nil
}

func (s *scriptSource) Subscribe(context.Context) <-chan Snapshot { return s.ch }

type recorder struct {
	mu            sync.Mutex
	snapshots     []*model.Auction
	prices        []pricing.DisplayPrices
	ticks         int
	ended         int
	notifications []notify.Notification
}

func (r *recorder) OnSnapshot(a *model.Auction, p pricing.DisplayPrices, _ countdown.TimeLeft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, a)
	r.prices = append(r.prices, p)
}

func (r *recorder) OnTick(countdown.TimeLeft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++
}

func (r *recorder) OnEnded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended++
}

func (r *recorder) Notify(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recorder) counts() (snapshots, ticks, ended, notifications int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots), r.ticks, r.ended, len(r.notifications)
}

func auctionAt(end time.Time, bids ...model.Bid) *model.Auction {
	return &model.Auction{
		ID:            "a1",
		StartingPrice: decimal.NewFromInt(1000),
		EndDate:       end,
		Poster:        model.Poster{ID: "v1", StoreName: "Ada's Finds"},
		Bids:          bids,
	}
}

func bid(id, bidderID string, amount int64) model.Bid {
	return model.Bid{
		ID:     id,
		Bidder: model.Bidder{Kind: model.BidderUser, ID: bidderID, DisplayName: bidderID},
		Amount: decimal.NewFromInt(amount),
	}
}

func newTestWatcher(t *testing.T, src Source, rec *recorder) *Watcher {
	t.Helper()

	table := currency.NewRateTable()
	w, err := New(Config{
		ViewerID:     "u1",
		Currency:     "NGN",
		Source:       src,
		Reconciler:   pricing.NewReconciler(table, nil, nil),
		Notifier:     notify.NewNotifier(table, rec, nil, nil),
		Listener:     rec,
		TickInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return w
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 2*time.Millisecond)
}

func TestWatcher_FirstLoadSeedsSilently(t *testing.T) {
	end := time.Now().Add(time.Hour)
	src := newScriptSource(Snapshot{Seq: 1, Auction: auctionAt(end, bid("b1", "u2", 1250))})
	rec := &recorder{}

	w := newTestWatcher(t, src, rec)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	snapshots, _, _, notifications := rec.counts()
	assert.Equal(t, 1, snapshots, "initial snapshot is rendered")
	assert.Zero(t, notifications, "bids present at first load are not notified")
}

func TestWatcher_NotifiesNewBidExactlyOnce(t *testing.T) {
	end := time.Now().Add(time.Hour)
	first := auctionAt(end, bid("b1", "u2", 1250))
	src := newScriptSource(Snapshot{Seq: 1, Auction: first})
	rec := &recorder{}

	w := newTestWatcher(t, src, rec)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// A new bid arrives in the next poll.
	second := auctionAt(end, bid("b1", "u2", 1250), bid("b2", "u3", 1500))
	src.push(Snapshot{Seq: 2, Auction: second})

	waitFor(t, func() bool { _, _, _, n := rec.counts(); return n == 1 })

	rec.mu.Lock()
	n := rec.notifications[0]
	rec.mu.Unlock()
	assert.Equal(t, "b2", n.BidID)
	assert.Equal(t, "u3", n.BidderName)

	// An unchanged list on the following poll stays silent.
	src.push(Snapshot{Seq: 3, Auction: second})
	waitFor(t, func() bool { s, _, _, _ := rec.counts(); return s == 3 })

	_, _, _, notifications := rec.counts()
	assert.Equal(t, 1, notifications)
}

func TestWatcher_SkipsViewerOwnBid(t *testing.T) {
	end := time.Now().Add(time.Hour)
	src := newScriptSource(Snapshot{Seq: 1, Auction: auctionAt(end)})
	rec := &recorder{}

	w := newTestWatcher(t, src, rec)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	src.push(Snapshot{Seq: 2, Auction: auctionAt(end, bid("b1", "u1", 1250))})
	waitFor(t, func() bool { s, _, _, _ := rec.counts(); return s == 2 })

	_, _, _, notifications := rec.counts()
	assert.Zero(t, notifications, "the viewer's own bid must not toast")
}

func TestWatcher_DiscardsStaleSnapshot(t *testing.T) {
	end := time.Now().Add(time.Hour)
	src := newScriptSource(Snapshot{Seq: 5, Auction: auctionAt(end)})
	rec := &recorder{}

	w := newTestWatcher(t, src, rec)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// A response from a read that started before the applied one
	// resolves late: it must not overwrite newer state.
	stale := auctionAt(end, bid("b1", "u2", 1250))
	src.push(Snapshot{Seq: 4, Auction: stale})

	fresh := auctionAt(end, bid("b2", "u3", 1500))
	src.push(Snapshot{Seq: 6, Auction: fresh})

	waitFor(t, func() bool { s, _, _, _ := rec.counts(); return s == 2 })

	rec.mu.Lock()
	last := rec.snapshots[len(rec.snapshots)-1]
	rec.mu.Unlock()
	require.Len(t, last.Bids, 1)
	assert.Equal(t, "b2", last.Bids[0].ID, "stale snapshot was dropped, fresh one applied")
}

func TestWatcher_RefreshAppliesOutOfBandRead(t *testing.T) {
	end := time.Now().Add(time.Hour)
	refreshed := auctionAt(end, bid("b9", "u9", 2000))
	src := newScriptSource(
		Snapshot{Seq: 1, Auction: auctionAt(end)},
		Snapshot{Seq: 2, Auction: refreshed},
	)
	rec := &recorder{}

	w := newTestWatcher(t, src, rec)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	w.Refresh()
	waitFor(t, func() bool { s, _, _, _ := rec.counts(); return s == 2 })

	rec.mu.Lock()
	last := rec.snapshots[len(rec.snapshots)-1]
	rec.mu.Unlock()
	require.Len(t, last.Bids, 1)
	assert.Equal(t, "b9", last.Bids[0].ID)
}

func TestWatcher_StopsWhenCountdownEnds(t *testing.T) {
	src := newScriptSource(Snapshot{Seq: 1, Auction: auctionAt(time.Now().Add(30 * time.Millisecond))})
	rec := &recorder{}

	w := newTestWatcher(t, src, rec)
	require.NoError(t, w.Start(context.Background()))

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after the countdown reached zero")
	}

	_, _, ended, _ := rec.counts()
	assert.Equal(t, 1, ended, "terminal state fires exactly once")
}

func TestWatcher_EndedSnapshotStopsImmediately(t *testing.T) {
	// A freshly applied snapshot whose end date already passed is
	// terminal in the same cycle: no further polls are taken.
	src := newScriptSource(Snapshot{Seq: 1, Auction: auctionAt(time.Now().Add(-time.Second))})
	rec := &recorder{}

	w := newTestWatcher(t, src, rec)
	require.NoError(t, w.Start(context.Background()))

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("watcher did not treat an already-ended auction as terminal")
	}

	snapshots, _, ended, _ := rec.counts()
	assert.Equal(t, 1, snapshots)
	assert.Equal(t, 1, ended)
}

func TestWatcher_InitialLoadFailure(t *testing.T) {
	src := newScriptSource() // nothing scripted: Fetch fails
	rec := &recorder{}

	w := newTestWatcher(t, src, rec)
	err := w.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load auction")

	snapshots, ticks, _, _ := rec.counts()
	assert.Zero(t, snapshots)
	assert.Zero(t, ticks, "polling never starts after a failed load")
}

func TestWatcher_NoEventsAfterStop(t *testing.T) {
	end := time.Now().Add(time.Hour)
	src := newScriptSource(Snapshot{Seq: 1, Auction: auctionAt(end)})
	rec := &recorder{}

	w := newTestWatcher(t, src, rec)
	require.NoError(t, w.Start(context.Background()))

	waitFor(t, func() bool { _, ticks, _, _ := rec.counts(); return ticks > 0 })
	w.Stop()

	snapshots, ticks, _, _ := rec.counts()
	time.Sleep(30 * time.Millisecond)

	gotSnapshots, gotTicks, _, _ := rec.counts()
	assert.Equal(t, snapshots, gotSnapshots, "no snapshot delivery after Stop")
	assert.Equal(t, ticks, gotTicks, "no ticks after Stop")
}
