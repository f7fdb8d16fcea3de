package finance

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultCoinGeckoBase is the public CoinGecko API host.
const DefaultCoinGeckoBase = "https://api.coingecko.com"

// DefaultFinnhubBase is the public Finnhub API host.
const DefaultFinnhubBase = "https://finnhub.io"

// Client fetches spot prices from CoinGecko and Finnhub.
type Client struct {
	coingeckoBase string
	finnhubBase   string
	finnhubKey    string
	httpClient    *http.Client
}

// NewClient creates a finance client. The Finnhub key may be empty, in
// which case Quote returns an error.
func NewClient(coingeckoBase, finnhubBase, finnhubKey string, timeout time.Duration) *Client {
	return &Client{
		coingeckoBase: coingeckoBase,
		finnhubBase:   finnhubBase,
		finnhubKey:    finnhubKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BTCQuote is the current Bitcoin price with an optional 24h change.
type BTCQuote struct {
	PriceUSD  float64
	Change24h float64
	HasChange bool
}

// BTCPrice returns the current BTC price in USD and its 24h percent change.
func (c *Client) BTCPrice() (BTCQuote, error) {
	resp, err := c.httpClient.Get(c.coingeckoBase + "/api/v3/simple/price?ids=bitcoin&vs_currencies=usd&include_24hr_change=true")
	if err != nil {
		return BTCQuote{}, fmt.Errorf("coingecko request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return BTCQuote{}, fmt.Errorf("failed reading coingecko response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return BTCQuote{}, fmt.Errorf("coingecko non-success status=%d", resp.StatusCode)
	}

	var parsed struct {
		Bitcoin struct {
			USD       *float64 `json:"usd"`
			Change24h *float64 `json:"usd_24h_change"`
		} `json:"bitcoin"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return BTCQuote{}, fmt.Errorf("failed to parse coingecko response: %w", err)
	}
	if parsed.Bitcoin.USD == nil {
		return BTCQuote{}, fmt.Errorf("coingecko response missing price")
	}
	q := BTCQuote{PriceUSD: *parsed.Bitcoin.USD}
	if parsed.Bitcoin.Change24h != nil {
		q.Change24h = *parsed.Bitcoin.Change24h
		q.HasChange = true
	}
	return q, nil
}

// Quote returns the current price for a stock ticker via Finnhub. A zero
// or missing price is reported as an error so the caller can word the
// "could not fetch" reply.
func (c *Client) Quote(ticker string) (float64, error) {
	if c.finnhubKey == "" {
		return 0, fmt.Errorf("finnhub api key not set")
	}
	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("token", c.finnhubKey)

	resp, err := c.httpClient.Get(c.finnhubBase + "/api/v1/quote?" + params.Encode())
	if err != nil {
		return 0, fmt.Errorf("finnhub request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed reading finnhub response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("finnhub non-success status=%d", resp.StatusCode)
	}

	var parsed struct {
		Current float64 `json:"c"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse finnhub response: %w", err)
	}
	if parsed.Current == 0 {
		return 0, fmt.Errorf("no price for %s", ticker)
	}
	return parsed.Current, nil
}
