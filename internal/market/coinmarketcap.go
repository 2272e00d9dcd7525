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

// CoinMarketCap — клиент /v1/cryptocurrency/quotes/latest.
type CoinMarketCap struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewCoinMarketCap создаёт клиента CoinMarketCap.
func NewCoinMarketCap(baseURL, apiKey string, client *http.Client) *CoinMarketCap {
	return &CoinMarketCap{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: client}
}

func (c *CoinMarketCap) Name() string { return "coinmarketcap" }

type cmcResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data map[string]struct {
		Symbol string `json:"symbol"`
		Quote  map[string]struct {
			Price            float64   `json:"price"`
			PercentChange24h float64   `json:"percent_change_24h"`
			MarketCap        float64   `json:"market_cap"`
			LastUpdated      time.Time `json:"last_updated"`
		} `json:"quote"`
	} `json:"data"`
}

// Fetch запрашивает котировки по тикерам.
func (c *CoinMarketCap) Fetch(ctx context.Context, symbols []string) ([]Quote, error) {
	values := url.Values{}
	values.Set("symbol", strings.Join(symbols, ","))
	values.Set("convert", "USD")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/cryptocurrency/quotes/latest?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("coinmarketcap: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload cmcResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("coinmarketcap: decode: %w", err)
	}
	if payload.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("coinmarketcap: %d %s", payload.Status.ErrorCode, payload.Status.ErrorMessage)
	}

	quotes := make([]Quote, 0, len(symbols))
	for _, s := range symbols {
		entry, ok := payload.Data[s]
		if !ok {
			continue
		}
		usd, ok := entry.Quote["USD"]
		if !ok {
			continue
		}
		quotes = append(quotes, Quote{
			Symbol:    s,
			PriceUSD:  usd.Price,
			Change24h: usd.PercentChange24h,
			MarketCap: usd.MarketCap,
			UpdatedAt: usd.LastUpdated.UTC(),
		})
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("coinmarketcap: нет котировок для %v", symbols)
	}
	return quotes, nil
}
