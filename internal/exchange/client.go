// Package exchange implements the CoinDCX REST collaborators: public market
// data (latest trade price, historical candles), authenticated balances, and
// order submission. In simulation mode order submission is a logged no-op and
// balances report a fixed wallet; the engine still books trades in its own
// ledger either way.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"scalper-botv1/internal/model"

	"github.com/google/uuid"
)

// ErrNoData indicates the exchange returned an empty trade history. The
// caller should skip the cycle and retry on the next cadence.
var ErrNoData = errors.New("exchange: no recent trades")

const (
	defaultPublicURL = "https://public.coindcx.com"
	defaultAPIURL    = "https://api.coindcx.com"
	defaultTimeout   = 10 * time.Second

	// Fixed wallet reported in simulation mode.
	simWalletQuote = 10500.0
	simWalletBTC   = 0.05
)

// Config configures the exchange client.
type Config struct {
	PublicURL  string // public market-data host; default CoinDCX public API
	APIURL     string // authenticated host; default CoinDCX exchange API
	Pair       string // market-data pair, e.g. "B-BTC_USDT"
	Market     string // order-book market code, e.g. "BTCUSDT"
	Interval   string // candle interval for history, e.g. "1m"
	APIKey     string
	APISecret  string
	Simulation bool
	Timeout    time.Duration
}

// Client is the REST client for all exchange collaborators.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a Client with sensible defaults filled in.
func New(cfg Config) *Client {
	if cfg.PublicURL == "" {
		cfg.PublicURL = defaultPublicURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// LatestPrice returns the most recent trade price for the configured pair,
// or ErrNoData when the trade history is empty.
func (c *Client) LatestPrice(ctx context.Context) (float64, error) {
	q := url.Values{}
	q.Set("pair", c.cfg.Pair)
	q.Set("limit", "1")

	var ticks []tradeTick
	if err := c.getJSON(ctx, c.cfg.PublicURL+"/market_data/trade_history?"+q.Encode(), &ticks); err != nil {
		return 0, fmt.Errorf("trade history: %w", err)
	}
	if len(ticks) == 0 {
		return 0, ErrNoData
	}
	return float64(ticks[0].Price), nil
}

// RecentBars fetches historical candles for the configured pair and interval,
// normalized to oldest-first order.
func (c *Client) RecentBars(ctx context.Context) ([]model.Candle, error) {
	q := url.Values{}
	q.Set("pair", c.cfg.Pair)
	q.Set("interval", c.cfg.Interval)
	// Cache-buster: the public endpoint serves stale candles otherwise.
	q.Set("_t", strconv.FormatInt(time.Now().UnixMilli(), 10))

	var bars []bar
	if err := c.getJSON(ctx, c.cfg.PublicURL+"/market_data/candles?"+q.Encode(), &bars); err != nil {
		return nil, fmt.Errorf("candles: %w", err)
	}

	// Response is newest-first.
	candles := make([]model.Candle, 0, len(bars))
	for i := len(bars) - 1; i >= 0; i-- {
		b := bars[i]
		candles = append(candles, model.Candle{
			Time:  b.Time,
			Open:  float64(b.Open),
			High:  float64(b.High),
			Low:   float64(b.Low),
			Close: float64(b.Close),
		})
	}
	return candles, nil
}

// Balances returns asset balances keyed by currency code. Simulation mode
// reports a fixed wallet without touching the network.
func (c *Client) Balances(ctx context.Context) (map[string]float64, error) {
	if c.cfg.Simulation {
		return map[string]float64{"USDT": simWalletQuote, "BTC": simWalletBTC}, nil
	}

	body := []byte(fmt.Sprintf(`{"timestamp":%d}`, time.Now().UnixMilli()))
	req, err := c.newSignedRequest(ctx, "/exchange/v1/users/balances", body)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("balances: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("balances: unexpected status %d", resp.StatusCode)
	}

	var entries []balanceEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("balances decode: %w", err)
	}

	balances := make(map[string]float64, len(entries))
	for _, e := range entries {
		balances[e.Currency] = float64(e.Balance)
	}
	return balances, nil
}

// SubmitOrder places a limit order for the configured market. In simulation
// mode the intent is logged and no request is made.
func (c *Client) SubmitOrder(ctx context.Context, side string, price, qty float64) error {
	if c.cfg.Simulation {
		log.Printf("[exchange] (simulation) %s %.6f %s @ %.2f", side, qty, c.cfg.Market, price)
		return nil
	}

	payload := orderPayload{
		Side:          side,
		OrderType:     "limit_order",
		Market:        c.cfg.Market,
		PricePerUnit:  price,
		TotalQuantity: qty,
		ClientOrderID: uuid.NewString(),
		Timestamp:     time.Now().UnixMilli(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("order marshal: %w", err)
	}

	req, err := c.newSignedRequest(ctx, "/exchange/v1/orders/create", body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("order create: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("order create: unexpected status %d", resp.StatusCode)
	}

	log.Printf("[exchange] order accepted: %s %.6f %s @ %.2f (client id %s)",
		side, qty, c.cfg.Market, price, payload.ClientOrderID)
	return nil
}

// getJSON issues a GET with cache-defeating headers and decodes the response.
func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// newSignedRequest builds an authenticated POST with the HMAC signature
// headers the exchange expects.
func (c *Client) newSignedRequest(ctx context.Context, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-AUTH-APIKEY", c.cfg.APIKey)
	req.Header.Set("X-AUTH-SIGNATURE", Sign(body, c.cfg.APISecret))
	return req, nil
}
