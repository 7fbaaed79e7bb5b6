// bidwatch follows one auction from the terminal: it polls (or
// streams) the auction, prints the countdown and reconciled prices,
// toasts new bids from other bidders and lets the user place or raise
// a bid from stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kasuwa/bidwatch/pkg/api"
	"github.com/kasuwa/bidwatch/pkg/bidding"
	"github.com/kasuwa/bidwatch/pkg/currency"
	"github.com/kasuwa/bidwatch/pkg/log"
	"github.com/kasuwa/bidwatch/pkg/metric"
	"github.com/kasuwa/bidwatch/pkg/notify"
	"github.com/kasuwa/bidwatch/pkg/pricing"
	"github.com/kasuwa/bidwatch/pkg/watch"
)

var (
	apiURL       = flag.String("api", "http://localhost:8080", "Marketplace API base URL")
	auctionID    = flag.String("auction", "", "Auction id to watch (required)")
	viewerID     = flag.String("viewer", "", "Viewer id, used for self-bid detection")
	token        = flag.String("token", "", "Auth token (dev format id:name); empty watches read-only")
	displayCur   = flag.String("currency", currency.Canonical, "Display currency")
	useStream    = flag.Bool("stream", false, "Use the websocket snapshot stream instead of polling")
	pollInterval = flag.Duration("poll-interval", 5*time.Second, "Snapshot poll interval")
	metricsAddr  = flag.String("metrics-addr", "", "Address for /metrics and /healthz (disabled when empty)")
	logLevel     = flag.String("log-level", "warn", "Log level (debug/info/warn/error)")
)

func main() {
	flag.Parse()
	if *auctionID == "" {
		fmt.Fprintln(os.Stderr, "bidwatch: -auction is required")
		os.Exit(2)
	}

	logger := log.NewWithLevel(*logLevel)
	defer logger.Sync()

	metrics := metric.New()
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, metrics, logger)
	}

	client := api.NewClient(*apiURL, *token)
	converter := currency.NewClient(*apiURL)

	var source watch.Source
	if *useStream {
		wsURL := strings.Replace(*apiURL, "http", "ws", 1) +
			"/api/v1/auctions/" + *auctionID + "/stream"
		source = watch.NewStreamSource(client, *auctionID, wsURL, logger, metrics)
	} else {
		source = watch.NewPollSource(client, *auctionID, *pollInterval, logger, metrics)
	}

	ui := &terminal{}

	watcher, err := watch.New(watch.Config{
		ViewerID:   *viewerID,
		Currency:   *displayCur,
		Source:     source,
		Reconciler: pricing.NewReconciler(converter, logger, metrics),
		Notifier:   notify.NewNotifier(converter, ui, logger, metrics),
		Listener:   ui,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bidwatch: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := watcher.Start(ctx); err != nil {
		// Load failure: full error, retry hint, polling never started.
		fmt.Fprintf(os.Stderr, "bidwatch: %v\n", err)
		fmt.Fprintln(os.Stderr, "check the auction id or try again; back to auctions: "+*apiURL)
		os.Exit(1)
	}

	controller := bidding.NewController(client, converter, logger, metrics)
	go readCommands(ctx, ui, controller, watcher)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		watcher.Stop()
	case <-watcher.Done():
	}
}

func serveMetrics(addr string, metrics *metric.Metrics, logger log.Logger) {
	r := mux.NewRouter()
	r.Handle("/metrics", metrics.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("metrics server failed", zap.Error(err))
	}
}

// readCommands handles `bid <amount>` and `confirm <amount>` lines.
// Confirmation is the explicit user step required before an existing
// bid is raised.
func readCommands(ctx context.Context, ui *terminal, controller *bidding.Controller, watcher *watch.Watcher) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		verb := strings.ToLower(fields[0])
		if verb != "bid" && verb != "confirm" {
			continue
		}

		amount, err := decimal.NewFromString(fields[1])
		if err != nil {
			ui.toast("amounts look like: bid 1500")
			continue
		}

		auction, prices, ok := ui.state()
		if !ok {
			ui.toast("still loading, try again in a moment")
			continue
		}

		result, err := controller.Submit(ctx, bidding.Submission{
			Auction:   auction,
			Prices:    prices,
			ViewerID:  *viewerID,
			Token:     *token,
			Amount:    amount,
			Confirmed: verb == "confirm",
		})
		switch {
		case errors.Is(err, bidding.ErrConfirmationRequired):
			ui.toast(fmt.Sprintf("you already have a bid; type `confirm %s` to raise it", fields[1]))
		case errors.Is(err, bidding.ErrNotAuthenticated):
			ui.toast("sign in first: rerun with -token, you will land back on this auction")
		case err != nil:
			ui.toast(err.Error())
		default:
			ui.toast(fmt.Sprintf("%s accepted: %s", result.Mode,
				currency.FormatWithSymbol(result.Amount, result.Currency)))
			watcher.Refresh()
		}
	}
}
