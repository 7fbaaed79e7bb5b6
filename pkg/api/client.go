package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kasuwa/bidwatch/pkg/model"
)

var (
	// ErrNotFound reports that the auction does not exist.
	ErrNotFound = errors.New("auction not found")
	// ErrBidderNotFound reports that the server no longer recognizes
	// the authenticated bidder; the user must re-authenticate.
	ErrBidderNotFound = errors.New("bidder not found")
)

// APIError is a structured server rejection.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

// Client talks to the marketplace auction API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates an auction API client. Token may be empty for
// read-only use and set later once the user authenticates.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetToken replaces the auth token used for bid writes.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the currently configured auth token.
func (c *Client) Token() string {
	return c.token
}

// GetAuction fetches the full auction snapshot.
func (c *Client) GetAuction(ctx context.Context, id string) (*model.Auction, error) {
	reqURL := fmt.Sprintf("%s/api/v1/auctions/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(resp)
	}

	var envelope struct {
		Data wireAuction `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode auction: %w", err)
	}

	return envelope.Data.toModel(), nil
}

// PlaceBid submits a first bid on an auction. Amount is canonical
// currency.
func (c *Client) PlaceBid(ctx context.Context, auctionID string, amount decimal.Decimal) error {
	return c.writeBid(ctx, http.MethodPost, auctionID, amount)
}

// UpgradeBid raises the viewer's existing bid. Amount is canonical
// currency.
func (c *Client) UpgradeBid(ctx context.Context, auctionID string, amount decimal.Decimal) error {
	return c.writeBid(ctx, http.MethodPut, auctionID, amount)
}

func (c *Client) writeBid(ctx context.Context, method, auctionID string, amount decimal.Decimal) error {
	body, err := json.Marshal(map[string]decimal.Decimal{"amount": amount})
	if err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s/api/v1/auctions/%s/bids", c.baseURL, auctionID)
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}
	return c.decodeError(resp)
}

func (c *Client) decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body struct {
		Error string `json:"error"`
	}
	message := ""
	if err := json.Unmarshal(raw, &body); err == nil {
		message = body.Error
	}

	if strings.Contains(strings.ToLower(message), "bidder not found") {
		return fmt.Errorf("%w: %s", ErrBidderNotFound, message)
	}
	return &APIError{Status: resp.StatusCode, Message: message}
}
