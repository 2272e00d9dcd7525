package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client — клиент API NowPayments.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient создаёт клиента с ключом API.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// CreatePayment создаёт платёж и возвращает адрес для оплаты.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("nowpayments: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("nowpayments /v1/payment: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("nowpayments: decode: %w", err)
	}
	if payment.PaymentID == "" {
		return nil, fmt.Errorf("nowpayments: пустой payment_id")
	}
	return &payment, nil
}
