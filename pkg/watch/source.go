// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package watch

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kasuwa/bidwatch/pkg/api"
	"github.com/kasuwa/bidwatch/pkg/log"
	"github.com/kasuwa/bidwatch/pkg/metric"
	"github.com/kasuwa/bidwatch/pkg/model"
)

// Snapshot is one auction read stamped with a monotonic sequence
// number. Sequence numbers are assigned when the read starts, so a
// response that lost a race against a later read can be recognized and
// discarded instead of overwriting newer state.
type Snapshot struct {
	Seq     uint64
	Auction *model.Auction
}

// Source yields auction snapshots. Fetch is a one-shot read used for
// the initial load and for out-of-band refreshes after a bid write;
// Subscribe delivers fresh snapshots until ctx is canceled. Whether
// snapshots come from polling or a push stream is the source's
// business; the watcher consumes both the same way.
type Source interface {
	Fetch(ctx context.Context) (Snapshot, error)
	Subscribe(ctx context.Context) <-chan Snapshot
}

// AuctionReader is the read surface a poll source needs.
type AuctionReader interface {
	GetAuction(ctx context.Context, id string) (*model.Auction, error)
}

// PollSource re-fetches the auction on a fixed interval.
type PollSource struct {
	reader    AuctionReader
	auctionID string
	interval  time.Duration
	seq       atomic.Uint64
	log       log.Logger
	metrics   *metric.Metrics
}

// NewPollSource creates a polling source. Logger and metrics may be
// nil; interval defaults to 5 seconds.
func NewPollSource(reader AuctionReader, auctionID string, interval time.Duration, logger log.Logger, metrics *metric.Metrics) *PollSource {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = log.NoLog
	}
	return &PollSource{
		reader:    reader,
		auctionID: auctionID,
		interval:  interval,
		log:       logger,
		metrics:   metrics,
	}
}

// Fetch reads the auction once, stamping the sequence before the
// request goes out.
func (s *PollSource) Fetch(ctx context.Context) (Snapshot, error) {
	seq := s.seq.Add(1)
	if s.metrics != nil {
		s.metrics.Polls.Inc()
	}

	a, err := s.reader.GetAuction(ctx, s.auctionID)
	if err != nil {
		if s.metrics != nil {
			s.metrics.PollFailures.Inc()
		}
		return Snapshot{}, err
	}
	return Snapshot{Seq: seq, Auction: a}, nil
}

// Subscribe polls on the configured interval until ctx is done. A
// failed poll is logged and skipped; the next tick retries.
func (s *PollSource) Subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			snap, err := s.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.Warn("auction poll failed", zap.String("auction", s.auctionID), zap.Error(err))
				continue
			}

			select {
			case ch <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// StreamSource receives pushed snapshots over a websocket, behind the
// same contract as polling. One-shot reads still go through the HTTP
// reader.
type StreamSource struct {
	reader    AuctionReader
	auctionID string
	wsURL     string
	seq       atomic.Uint64
	log       log.Logger
	metrics   *metric.Metrics
}

// NewStreamSource creates a websocket-backed source. wsURL is the full
// stream endpoint for the auction.
func NewStreamSource(reader AuctionReader, auctionID, wsURL string, logger log.Logger, metrics *metric.Metrics) *StreamSource {
	if logger == nil {
		logger = log.NoLog
	}
	return &StreamSource{
		reader:    reader,
		auctionID: auctionID,
		wsURL:     wsURL,
		log:       logger,
		metrics:   metrics,
	}
}

// Fetch reads the auction once over HTTP.
func (s *StreamSource) Fetch(ctx context.Context) (Snapshot, error) {
	seq := s.seq.Add(1)
	a, err := s.reader.GetAuction(ctx, s.auctionID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Seq: seq, Auction: a}, nil
}

type streamMessage struct {
	Data json.RawMessage `json:"data"`
}

// Subscribe dials the stream endpoint and forwards pushed snapshots
// until ctx is done or the connection drops. A dropped connection
// closes the channel; the watcher keeps its last snapshot and the
// countdown keeps running.
func (s *StreamSource) Subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	go func() {
		defer close(ch)

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, nil)
		if err != nil {
			s.log.Warn("auction stream dial failed", zap.String("url", s.wsURL), zap.Error(err))
			return
		}
		defer conn.Close()

		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			var msg streamMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if ctx.Err() == nil {
					s.log.Warn("auction stream closed", zap.Error(err))
				}
				return
			}

			a, err := api.DecodeAuction(msg.Data)
			if err != nil {
				s.log.Warn("auction stream decode failed", zap.Error(err))
				continue
			}

			snap := Snapshot{Seq: s.seq.Add(1), Auction: a}
			select {
			case ch <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
