// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kasuwa/bidwatch/pkg/countdown"
	"github.com/kasuwa/bidwatch/pkg/log"
	"github.com/kasuwa/bidwatch/pkg/metric"
	"github.com/kasuwa/bidwatch/pkg/model"
	"github.com/kasuwa/bidwatch/pkg/notify"
	"github.com/kasuwa/bidwatch/pkg/pricing"
)

// Listener receives watcher events. All callbacks run on the watcher's
// own goroutine, in order; none are invoked after Stop returns.
type Listener interface {
	// OnSnapshot delivers a freshly applied auction snapshot with its
	// reconciled prices and recomputed countdown.
	OnSnapshot(a *model.Auction, prices pricing.DisplayPrices, left countdown.TimeLeft)
	// OnTick delivers the once-per-second countdown update.
	OnTick(left countdown.TimeLeft)
	// OnEnded fires exactly once when the countdown reaches zero.
	OnEnded()
}

// ListenerFuncs adapts optional functions to the Listener interface.
type ListenerFuncs struct {
	Snapshot func(a *model.Auction, prices pricing.DisplayPrices, left countdown.TimeLeft)
	Tick     func(left countdown.TimeLeft)
	Ended    func()
}

func (l ListenerFuncs) OnSnapshot(a *model.Auction, prices pricing.DisplayPrices, left countdown.TimeLeft) {
	if l.Snapshot != nil {
		l.Snapshot(a, prices, left)
	}
}

func (l ListenerFuncs) OnTick(left countdown.TimeLeft) {
	if l.Tick != nil {
		l.Tick(left)
	}
}

func (l ListenerFuncs) OnEnded() {
	if l.Ended != nil {
		l.Ended()
	}
}

// Config wires a watcher.
type Config struct {
	ViewerID string
	Currency string

	Source     Source
	Reconciler *pricing.Reconciler
	Notifier   *notify.Notifier
	Listener   Listener

	// TickInterval drives the countdown refresh. Defaults to 1 second.
	TickInterval time.Duration

	Logger  log.Logger
	Metrics *metric.Metrics

	// Now is a clock seam for tests. Defaults to time.Now.
	Now func() time.Time
}

// Watcher owns the live view of one auction: it consumes snapshots
// from its source, diffs bid history for notifications, reconciles
// display prices and drives the countdown. All mutable state belongs
// to a single goroutine, so snapshot application is serialized and a
// later-arriving stale response can never overwrite newer state.
type Watcher struct {
	cfg Config

	cancel  context.CancelFunc
	done    chan struct{}
	refresh chan struct{}

	// state below is touched only by the run goroutine (and by Start
	// before the goroutine exists).
	auction  *model.Auction
	prevBids []model.Bid
	lastSeq  uint64
	lastLeft countdown.TimeLeft
	seeded   bool
}

// New creates a watcher.
func New(cfg Config) (*Watcher, error) {
	if cfg.Source == nil {
		return nil, errors.New("watch: source is required")
	}
	if cfg.Reconciler == nil {
		return nil, errors.New("watch: reconciler is required")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("watch: notifier is required")
	}
	if cfg.Listener == nil {
		cfg.Listener = ListenerFuncs{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NoLog
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Watcher{
		cfg:     cfg,
		done:    make(chan struct{}),
		refresh: make(chan struct{}, 1),
	}, nil
}

// Start performs the initial load and begins watching. If the initial
// read fails, the error is returned and no polling ever starts; the
// caller renders a full-page error with a retry. The first snapshot
// seeds the bid history silently: no notifications are raised for
// bids that were already there.
func (w *Watcher) Start(ctx context.Context) error {
	snap, err := w.cfg.Source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("load auction: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.apply(runCtx, snap)
	if w.lastLeft.IsZero() {
		// Already ended at load time: report terminal state, never
		// start the snapshot source.
		w.cfg.Listener.OnEnded()
		cancel()
		close(w.done)
		return nil
	}

	snapshots := w.cfg.Source.Subscribe(runCtx)
	go w.run(runCtx, snapshots)
	return nil
}

// Stop tears the watcher down: both timers are canceled and no
// listener or notification callback is made after Stop returns.
// In-flight reads are left to resolve into canceled contexts.
func (w *Watcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

// Done is closed when the watcher has fully stopped, either by Stop or
// by the auction reaching its end.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Refresh requests an immediate out-of-band read, used right after a
// successful bid write so the UI reflects the write without waiting
// for the next poll. Coalesced if one is already pending.
func (w *Watcher) Refresh() {
	select {
	case w.refresh <- struct{}{}:
	default:
	}
}

func (w *Watcher) run(ctx context.Context, snapshots <-chan Snapshot) {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			left := countdown.Compute(w.auction.EndDate, w.cfg.Now())
			w.lastLeft = left
			w.cfg.Listener.OnTick(left)
			if left.IsZero() {
				w.finish()
				return
			}

		case snap, ok := <-snapshots:
			if !ok {
				// Source gone (stream dropped). The countdown keeps
				// running on the last known end date.
				snapshots = nil
				continue
			}
			if !w.apply(ctx, snap) {
				continue
			}
			if w.lastLeft.IsZero() {
				w.finish()
				return
			}

		case <-w.refresh:
			snap, err := w.cfg.Source.Fetch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					w.cfg.Logger.Warn("out-of-band auction read failed", zap.Error(err))
				}
				continue
			}
			if !w.apply(ctx, snap) {
				continue
			}
			if w.lastLeft.IsZero() {
				w.finish()
				return
			}
		}
	}
}

// apply installs a snapshot. Within one cycle the order is fixed:
// diff against the previous bid list (notify), replace the list,
// replace the auction state, recompute the countdown from the server's
// end date, then reconcile display prices. Returns false when the
// snapshot is older than one already applied.
func (w *Watcher) apply(ctx context.Context, snap Snapshot) bool {
	if snap.Seq <= w.lastSeq {
		w.cfg.Logger.Debug("discarding stale auction snapshot",
			zap.Uint64("seq", snap.Seq), zap.Uint64("applied", w.lastSeq))
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.StaleSnapshots.Inc()
		}
		return false
	}
	w.lastSeq = snap.Seq

	a := snap.Auction
	if w.seeded {
		w.cfg.Notifier.Publish(ctx, w.prevBids, a.Bids, w.cfg.ViewerID, a.Poster, w.cfg.Currency)
	}
	w.prevBids = a.Bids
	w.auction = a
	w.seeded = true

	left := countdown.Compute(a.EndDate, w.cfg.Now())
	w.lastLeft = left

	prices := w.cfg.Reconciler.Reconcile(ctx, a, w.cfg.Currency)
	w.cfg.Listener.OnSnapshot(a, prices, left)
	return true
}

// finish reports terminal state and cancels the source. The decision
// here is deliberate: terminal is evaluated against the countdown
// computed in the same cycle, so an ended auction gets no further
// polls.
func (w *Watcher) finish() {
	w.cfg.Listener.OnEnded()
	w.cancel()
}
