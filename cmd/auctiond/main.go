// auctiond is a development stand-in for the marketplace auction API:
// it serves auction snapshots, accepts bid writes with the same
// validation the real backend applies, streams snapshots over a
// websocket and answers currency conversions from a static rate table.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kasuwa/bidwatch/pkg/currency"
	"github.com/kasuwa/bidwatch/pkg/log"
	"github.com/kasuwa/bidwatch/pkg/pricing"
)

var (
	port       = flag.String("port", "8080", "API server port")
	env        = flag.String("env", "development", "Environment (development/production)")
	logLevel   = flag.String("log-level", "info", "Log level (debug/info/warn/error)")
	seedDemo   = flag.Bool("seed", true, "Seed a demo auction on startup")
	seedLength = flag.Duration("seed-duration", 30*time.Minute, "Demo auction duration")
	softClose  = flag.Duration("soft-close", 2*time.Minute, "Extension window applied when a bid lands near the end")
)

func main() {
	flag.Parse()

	logger := log.NewWithLevel(*logLevel)
	defer logger.Sync()

	st := newStore()
	if *seedDemo {
		id := st.seed(*seedLength, *softClose)
		logger.Info("seeded demo auction", zap.String("auction", id))
	}

	router := setupRouter(st, logger)

	srv := &http.Server{
		Addr:    ":" + *port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
			os.Exit(1)
		}
	}()

	logger.Info("auctiond started", zap.String("port", *port), zap.String("env", *env))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}

func setupRouter(st *store, logger log.Logger) *gin.Engine {
	if *env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(config))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/auctions", st.createAuction)
		api.GET("/auctions/:id", st.getAuction)
		api.POST("/auctions/:id/bids", st.placeBid)
		api.PUT("/auctions/:id/bids", st.upgradeBid)
		api.GET("/auctions/:id/stream", st.streamAuction(logger))
		api.GET("/convert", st.convert)
	}

	return router
}

// bidder identity comes from a dev token of the form "id:name". The
// real backend resolves the token against its session store; an
// unparseable token gets the same rejection the real backend sends for
// a session that no longer maps to a user.
func parseToken(c *gin.Context) (id, name string, ok bool) {
	auth := c.GetHeader("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == "" || token == auth {
		return "", "", false
	}
	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

type bidRecord struct {
	ID          string
	BidderID    string
	BidderName  string
	BidderModel string
	Amount      decimal.Decimal
	CreatedAt   time.Time
}

type auctionState struct {
	ID            string
	StartingPrice decimal.Decimal
	ReservePrice  decimal.Decimal
	Bids          []bidRecord
	EndDate       time.Time
	PosterID      string
	StoreName     string
	Verified      bool
	SoftClose     time.Duration
}

func (a *auctionState) currentAmount() decimal.Decimal {
	if len(a.Bids) == 0 {
		return a.StartingPrice
	}
	high := a.Bids[0].Amount
	for _, b := range a.Bids[1:] {
		if b.Amount.GreaterThan(high) {
			high = b.Amount
		}
	}
	return high
}

func (a *auctionState) highestBid() *bidRecord {
	var high *bidRecord
	for i := range a.Bids {
		if high == nil || a.Bids[i].Amount.GreaterThan(high.Amount) {
			high = &a.Bids[i]
		}
	}
	return high
}

// extendIfClosing implements the soft-close window: a bid landing
// inside the window pushes the end date out by the window length.
func (a *auctionState) extendIfClosing(now time.Time) {
	if a.SoftClose <= 0 {
		return
	}
	if a.EndDate.Sub(now) <= a.SoftClose {
		a.EndDate = a.EndDate.Add(a.SoftClose)
	}
}

// wire renders the auction in the same document shape the production
// API uses, bidders embedded as user documents.
func (a *auctionState) wire() gin.H {
	bids := make([]gin.H, 0, len(a.Bids))
	for _, b := range a.Bids {
		bids = append(bids, gin.H{
			"_id":         b.ID,
			"bidder":      gin.H{"_id": b.BidderID, "userName": b.BidderName},
			"bidderModel": b.BidderModel,
			"amount":      b.Amount,
			"createdAt":   b.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	doc := gin.H{
		"_id":            a.ID,
		"startingPrice":  a.StartingPrice,
		"reservePrice":   a.ReservePrice,
		"bids":           bids,
		"auctionEndDate": a.EndDate.UTC().Format(time.RFC3339),
		"poster":         gin.H{"_id": a.PosterID, "storeName": a.StoreName},
		"verified":       a.Verified,
	}
	if high := a.highestBid(); high != nil {
		doc["highestBid"] = gin.H{
			"bidder":      gin.H{"_id": high.BidderID, "userName": high.BidderName},
			"bidderModel": high.BidderModel,
			"amount":      high.Amount,
		}
	}
	return doc
}

type store struct {
	mu       sync.RWMutex
	auctions map[string]*auctionState
	rates    *currency.RateTable
}

func newStore() *store {
	return &store{
		auctions: make(map[string]*auctionState),
		rates:    currency.NewRateTable(),
	}
}

func (s *store) seed(duration, soft time.Duration) string {
	a := &auctionState{
		ID:            uuid.NewString(),
		StartingPrice: decimal.NewFromInt(1000),
		ReservePrice:  decimal.NewFromInt(5000),
		EndDate:       time.Now().Add(duration),
		PosterID:      "vendor-demo",
		StoreName:     "Demo Store",
		Verified:      true,
		SoftClose:     soft,
	}
	s.mu.Lock()
	s.auctions[a.ID] = a
	s.mu.Unlock()
	return a.ID
}

func (s *store) createAuction(c *gin.Context) {
	posterID, storeName, ok := parseToken(c)
	if !ok {
		c.JSON(401, gin.H{"error": "Bidder not found"})
		return
	}

	var req struct {
		StartingPrice   decimal.Decimal `json:"startingPrice" binding:"required"`
		ReservePrice    decimal.Decimal `json:"reservePrice"`
		DurationSeconds int64           `json:"durationSeconds" binding:"required"`
		Verified        bool            `json:"verified"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	a := &auctionState{
		ID:            uuid.NewString(),
		StartingPrice: req.StartingPrice,
		ReservePrice:  req.ReservePrice,
		EndDate:       time.Now().Add(time.Duration(req.DurationSeconds) * time.Second),
		PosterID:      posterID,
		StoreName:     storeName,
		Verified:      req.Verified,
		SoftClose:     *softClose,
	}

	s.mu.Lock()
	s.auctions[a.ID] = a
	s.mu.Unlock()

	c.JSON(201, gin.H{"data": a.wire()})
}

func (s *store) getAuction(c *gin.Context) {
	s.mu.RLock()
	a, ok := s.auctions[c.Param("id")]
	if !ok {
		s.mu.RUnlock()
		c.JSON(404, gin.H{"error": "auction not found"})
		return
	}
	doc := a.wire()
	s.mu.RUnlock()

	c.JSON(200, gin.H{"data": doc})
}

func (s *store) placeBid(c *gin.Context) {
	s.writeBid(c, false)
}

func (s *store) upgradeBid(c *gin.Context) {
	s.writeBid(c, true)
}

func (s *store) writeBid(c *gin.Context, upgrade bool) {
	bidderID, bidderName, ok := parseToken(c)
	if !ok {
		c.JSON(401, gin.H{"error": "Bidder not found"})
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	a, found := s.auctions[c.Param("id")]
	if !found {
		c.JSON(404, gin.H{"error": "auction not found"})
		return
	}

	if now.After(a.EndDate) {
		c.JSON(409, gin.H{"error": "auction has ended"})
		return
	}
	if bidderID == a.PosterID {
		c.JSON(403, gin.H{"error": "you cannot bid on your own auction"})
		return
	}

	existing := -1
	for i, b := range a.Bids {
		if b.BidderID == bidderID {
			existing = i
			break
		}
	}
	if upgrade && existing < 0 {
		c.JSON(409, gin.H{"error": "no existing bid to update"})
		return
	}
	if !upgrade && existing >= 0 {
		c.JSON(409, gin.H{"error": "you already have a bid, update it instead"})
		return
	}

	minimum := a.currentAmount().Add(pricing.Increment)
	if req.Amount.LessThan(minimum) {
		c.JSON(422, gin.H{"error": fmt.Sprintf("bid must be at least %s", minimum)})
		return
	}

	rec := bidRecord{
		ID:          uuid.NewString(),
		BidderID:    bidderID,
		BidderName:  bidderName,
		BidderModel: "User",
		Amount:      req.Amount,
		CreatedAt:   now,
	}
	if upgrade {
		a.Bids[existing] = rec
	} else {
		a.Bids = append(a.Bids, rec)
	}
	a.extendIfClosing(now)

	c.JSON(201, gin.H{"data": a.wire()})
}

func (s *store) convert(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid amount"})
		return
	}
	from := c.DefaultQuery("from", currency.Canonical)
	to := c.DefaultQuery("to", currency.Canonical)

	converted, err := s.rates.Convert(c.Request.Context(), amount, from, to)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, gin.H{"amount": converted, "from": from, "to": to})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamAuction pushes the auction document over a websocket every two
// seconds, same envelope as the read endpoint. The connection closes
// when the auction ends.
func (s *store) streamAuction(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		s.mu.RLock()
		_, found := s.auctions[id]
		s.mu.RUnlock()
		if !found {
			c.JSON(404, gin.H{"error": "auction not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("stream upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			s.mu.RLock()
			a, ok := s.auctions[id]
			var doc gin.H
			ended := true
			if ok {
				doc = a.wire()
				ended = time.Now().After(a.EndDate)
			}
			s.mu.RUnlock()

			if !ok {
				return
			}
			if err := conn.WriteJSON(gin.H{"data": doc}); err != nil {
				return
			}
			if ended {
				return
			}
		}
	}
}
