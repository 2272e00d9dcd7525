package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// coinGeckoIDs сопоставляет тикеры с идентификаторами CoinGecko.
// Неизвестный тикер запрашивается в нижнем регистре как есть.
var coinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"BNB":  "binancecoin",
	"XRP":  "ripple",
	"DOGE": "dogecoin",
	"ADA":  "cardano",
	"TON":  "the-open-network",
	"USDT": "tether",
}

// CoinGecko — клиент /simple/price.
type CoinGecko struct {
	baseURL string
	http    *http.Client
}

// NewCoinGecko создаёт клиента CoinGecko.
func NewCoinGecko(baseURL string, client *http.Client) *CoinGecko {
	return &CoinGecko{baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

func (c *CoinGecko) Name() string { return "coingecko" }

func coinGeckoID(symbol string) string {
	if id, ok := coinGeckoIDs[symbol]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// Fetch запрашивает цены всех тикеров одним запросом.
func (c *CoinGecko) Fetch(ctx context.Context, symbols []string) ([]Quote, error) {
	ids := make([]string, 0, len(symbols))
	for _, s := range symbols {
		ids = append(ids, coinGeckoID(s))
	}

	values := url.Values{}
	values.Set("ids", strings.Join(ids, ","))
	values.Set("vs_currencies", "usd")
	values.Set("include_market_cap", "true")
	values.Set("include_24hr_change", "true")
	values.Set("include_last_updated_at", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("coingecko: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload map[string]struct {
		USD           float64 `json:"usd"`
		USDMarketCap  float64 `json:"usd_market_cap"`
		USD24hChange  float64 `json:"usd_24h_change"`
		LastUpdatedAt int64   `json:"last_updated_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("coingecko: decode: %w", err)
	}

	quotes := make([]Quote, 0, len(symbols))
	for _, s := range symbols {
		entry, ok := payload[coinGeckoID(s)]
		if !ok {
			continue
		}
		quotes = append(quotes, Quote{
			Symbol:    s,
			PriceUSD:  entry.USD,
			Change24h: entry.USD24hChange,
			MarketCap: entry.USDMarketCap,
			UpdatedAt: time.Unix(entry.LastUpdatedAt, 0).UTC(),
		})
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("coingecko: нет котировок для %v", symbols)
	}
	return quotes, nil
}
